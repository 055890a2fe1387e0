package tpsdk

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	// DefaultTokenLifetime is assumed when the token endpoint omits
	// expires_in and the access token carries no exp claim.
	DefaultTokenLifetime = time.Hour

	// DefaultExpirySkew is how long before its expiry a token is treated as
	// expired, to absorb clock skew and in-flight latency.
	DefaultExpirySkew = 60 * time.Second
)

// Credentials is the client-credentials pair issued by the vendor.
type Credentials struct {
	ClientID     string
	ClientSecret string
}

// Validate checks that both halves of the pair are present.
func (c Credentials) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.ClientID, validation.Required, validation.By(notWhitespace)),
		validation.Field(&c.ClientSecret, validation.Required, validation.By(notWhitespace)),
	)
}

// Token is a bearer token and the instant it stops being accepted.
type Token struct {
	AccessToken string
	ExpiresAt   time.Time
}

// validAt reports whether the token can still be used at now, treating it
// as expired skew before ExpiresAt.
func (t Token) validAt(now time.Time, skew time.Duration) bool {
	return t.AccessToken != "" && now.Before(t.ExpiresAt.Add(-skew))
}

// TokenManager owns the client-credentials exchange and the one current
// Token. Refresh is lazy: a new exchange happens only when ValidToken finds
// the cached token missing or expired. It is safe for concurrent use;
// concurrent callers on a cold cache share a single exchange.
type TokenManager struct {
	config     clientcredentials.Config
	httpClient *http.Client
	skew       time.Duration
	now        func() time.Time
	logger     *slog.Logger

	mu    sync.RWMutex
	token Token
}

func newTokenManager(
	creds Credentials,
	tokenURL string,
	httpClient *http.Client,
	skew time.Duration,
	now func() time.Time,
	logger *slog.Logger,
) *TokenManager {
	return &TokenManager{
		config: clientcredentials.Config{
			ClientID:     creds.ClientID,
			ClientSecret: creds.ClientSecret,
			TokenURL:     tokenURL,
			AuthStyle:    oauth2.AuthStyleInParams,
		},
		httpClient: httpClient,
		skew:       skew,
		now:        now,
		logger:     logger,
	}
}

// ValidToken returns a bearer token that is valid for at least the expiry
// skew, exchanging credentials first if needed. Failures are KindAuth.
func (m *TokenManager) ValidToken(ctx context.Context) (string, error) {
	tok, err := m.validToken(ctx)
	if err != nil {
		return "", err
	}
	return tok.AccessToken, nil
}

func (m *TokenManager) validToken(ctx context.Context) (Token, error) {
	m.mu.RLock()
	if m.token.validAt(m.now(), m.skew) {
		tok := m.token
		m.mu.RUnlock()
		return tok, nil
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	// Double-check after acquiring write lock (another goroutine may have refreshed)
	if m.token.validAt(m.now(), m.skew) {
		return m.token, nil
	}

	return m.refreshLocked(ctx)
}

// Refresh performs an exchange even if the cached token is still valid.
func (m *TokenManager) Refresh(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	tok, err := m.refreshLocked(ctx)
	if err != nil {
		return "", err
	}
	return tok.AccessToken, nil
}

// replace exchanges for a new token unless the cached one has already moved
// on from stale, in which case the cached one is returned.
func (m *TokenManager) replace(ctx context.Context, stale string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.token.AccessToken != stale && m.token.validAt(m.now(), m.skew) {
		return m.token.AccessToken, nil
	}

	tok, err := m.refreshLocked(ctx)
	if err != nil {
		return "", err
	}
	return tok.AccessToken, nil
}

// Current returns the cached token without checking or refreshing it.
func (m *TokenManager) Current() (Token, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token, m.token.AccessToken != ""
}

// refreshLocked runs one exchange. The cached token is only replaced on
// success. Caller must hold m.mu for writing.
func (m *TokenManager) refreshLocked(ctx context.Context) (Token, error) {
	issuedAt := m.now()

	ctx = context.WithValue(ctx, oauth2.HTTPClient, m.httpClient)
	resp, err := m.config.Token(ctx)
	if err != nil {
		m.logger.Warn("token exchange failed", "token_url", m.config.TokenURL, "error", err)
		return Token{}, tokenExchangeError(err)
	}

	m.token = Token{
		AccessToken: resp.AccessToken,
		ExpiresAt:   expiresAt(resp, issuedAt),
	}

	m.logger.Info("access token refreshed",
		"fingerprint", fingerprint(m.token.AccessToken),
		"expires_at", m.token.ExpiresAt,
	)

	return m.token, nil
}

// TokenSource adapts the manager to oauth2.TokenSource so other x/oauth2
// consumers can share its cache. ctx is used for any exchange it triggers.
func (m *TokenManager) TokenSource(ctx context.Context) oauth2.TokenSource {
	return &tokenSource{manager: m, ctx: ctx}
}

type tokenSource struct {
	manager *TokenManager
	ctx     context.Context
}

// Token implements oauth2.TokenSource.
func (s *tokenSource) Token() (*oauth2.Token, error) {
	tok, err := s.manager.validToken(s.ctx)
	if err != nil {
		return nil, err
	}

	return &oauth2.Token{
		AccessToken: tok.AccessToken,
		TokenType:   "Bearer",
		Expiry:      tok.ExpiresAt,
	}, nil
}

// expiresAt derives the absolute expiry of a freshly issued token: from
// expires_in when present, then from the JWT exp claim, and finally from
// DefaultTokenLifetime.
func expiresAt(tok *oauth2.Token, issuedAt time.Time) time.Time {
	if tok.ExpiresIn > 0 {
		return issuedAt.Add(time.Duration(tok.ExpiresIn) * time.Second)
	}
	if !tok.Expiry.IsZero() {
		return issuedAt.Add(time.Until(tok.Expiry))
	}
	if exp, ok := jwtExpiry(tok.AccessToken); ok {
		return exp
	}
	return issuedAt.Add(DefaultTokenLifetime)
}

// jwtExpiry reads the exp claim of a JWT access token. The signature is not
// checked: the token is only ever presented back to its issuer.
func jwtExpiry(accessToken string) (time.Time, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, claims); err != nil {
		return time.Time{}, false
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

// tokenExchangeError turns any exchange failure into a KindAuth error,
// keeping the token endpoint's status and body when it answered.
func tokenExchangeError(err error) *Error {
	e := &Error{
		Kind:    KindAuth,
		Message: "failed to obtain access token",
		Err:     err,
	}

	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		if re.Response != nil {
			e.StatusCode = re.Response.StatusCode
		}
		e.Body = string(re.Body)
	}

	return e
}

// fingerprint identifies a token in logs without revealing it.
func fingerprint(token string) string {
	sum := sha256.Sum256([]byte(token))
	return base64.RawURLEncoding.EncodeToString(sum[:])[:12]
}
