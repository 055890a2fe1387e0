package tpsdk

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aussiebroadwan/threatprotection/pkg/httpx"
	"github.com/aussiebroadwan/threatprotection/pkg/slogx"
)

const (
	// DefaultBaseURL is the Threat Protection API root.
	DefaultBaseURL = "https://threatprotection-api.proofpoint.com"

	// DefaultTokenURL is the OAuth2 token endpoint.
	DefaultTokenURL = "https://auth.proofpoint.com/v1/token"

	// DefaultTimeout bounds each HTTP round trip.
	DefaultTimeout = 30 * time.Second

	// DefaultUserAgent is sent on every request unless overridden.
	DefaultUserAgent = "threatprotection-go/0.1"
)

// Client calls the Threat Protection API. It owns a TokenManager and
// attaches a valid bearer token to every request. Safe for concurrent use.
type Client struct {
	baseURL     string
	userAgent   string
	httpClient  *http.Client
	tokens      *TokenManager
	reauthRetry bool
	now         func() time.Time
	logger      *slog.Logger
}

// Option configures a Client.
type Option func(*settings)

type settings struct {
	baseURL     string
	tokenURL    string
	httpClient  *http.Client
	timeout     time.Duration
	logger      *slog.Logger
	skew        time.Duration
	reauthRetry bool
	rateLimit   httpx.RateLimitConfig
	now         func() time.Time
	userAgent   string
}

// WithBaseURL overrides DefaultBaseURL.
func WithBaseURL(u string) Option {
	return func(s *settings) { s.baseURL = u }
}

// WithTokenURL overrides DefaultTokenURL.
func WithTokenURL(u string) Option {
	return func(s *settings) { s.tokenURL = u }
}

// WithHTTPClient supplies the transport. The client is copied, not mutated.
func WithHTTPClient(hc *http.Client) Option {
	return func(s *settings) { s.httpClient = hc }
}

// WithTimeout overrides the per-request timeout. Without it, the supplied
// HTTP client's timeout is kept, or DefaultTimeout if it has none.
func WithTimeout(d time.Duration) Option {
	return func(s *settings) { s.timeout = d }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *settings) { s.logger = l }
}

// WithExpirySkew overrides DefaultExpirySkew.
func WithExpirySkew(d time.Duration) Option {
	return func(s *settings) { s.skew = d }
}

// WithReauthRetry controls the single retry after a 401. When enabled (the
// default) a 401 forces one token refresh and the request is sent once more.
// A 403 is never retried.
func WithReauthRetry(enabled bool) Option {
	return func(s *settings) { s.reauthRetry = enabled }
}

// WithRateLimit throttles outbound requests, token exchanges included.
func WithRateLimit(cfg httpx.RateLimitConfig) Option {
	return func(s *settings) { s.rateLimit = cfg }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *settings) { s.now = now }
}

// WithUserAgent overrides DefaultUserAgent.
func WithUserAgent(ua string) Option {
	return func(s *settings) { s.userAgent = ua }
}

// NewClient builds a Client and eagerly fetches the first token, so rejected
// credentials fail here with a KindAuth error rather than on first use.
func NewClient(ctx context.Context, clientID, clientSecret string, opts ...Option) (*Client, error) {
	creds := Credentials{ClientID: clientID, ClientSecret: clientSecret}
	if err := creds.Validate(); err != nil {
		return nil, wrapValidation("invalid credentials", err)
	}

	s := settings{
		baseURL:     DefaultBaseURL,
		tokenURL:    DefaultTokenURL,
		skew:        DefaultExpirySkew,
		reauthRetry: true,
		now:         time.Now,
		userAgent:   DefaultUserAgent,
	}
	for _, opt := range opts {
		opt(&s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}

	hc := s.buildHTTPClient()

	c := &Client{
		baseURL:     strings.TrimSuffix(s.baseURL, "/"),
		userAgent:   s.userAgent,
		httpClient:  hc,
		tokens:      newTokenManager(creds, s.tokenURL, hc, s.skew, s.now, s.logger),
		reauthRetry: s.reauthRetry,
		now:         s.now,
		logger:      s.logger,
	}

	if _, err := c.tokens.ValidToken(ctx); err != nil {
		return nil, err
	}

	return c, nil
}

// buildHTTPClient copies the configured client and layers logging and the
// optional rate limit over its transport.
func (s *settings) buildHTTPClient() *http.Client {
	hc := &http.Client{}
	if s.httpClient != nil {
		copied := *s.httpClient
		hc = &copied
	}

	switch {
	case s.timeout > 0:
		hc.Timeout = s.timeout
	case hc.Timeout == 0:
		hc.Timeout = DefaultTimeout
	}

	hc.Transport = slogx.Transport(s.logger, httpx.LimitedTransport(s.rateLimit, hc.Transport))
	return hc
}

// Tokens returns the client's token manager.
func (c *Client) Tokens() *TokenManager {
	return c.tokens
}

// BaseURL returns the API root requests are sent to.
func (c *Client) BaseURL() string {
	return c.baseURL
}
