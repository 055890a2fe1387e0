package tpsdk

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/threatprotection/pkg/slogx"
	"github.com/aussiebroadwan/threatprotection/pkg/tpsdk/tptest"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func TestTokenCaching(t *testing.T) {
	t.Parallel()

	t.Run("one exchange while the token is valid", func(t *testing.T) {
		t.Parallel()

		srv := tptest.NewServer(t)
		clock := newFakeClock()
		c := newTestClient(t, srv, WithClock(clock.Now))
		require.Equal(t, 1, srv.Exchanges())

		first, err := c.Tokens().ValidToken(context.Background())
		require.NoError(t, err)

		clock.Advance(30 * time.Minute)
		second, err := c.Tokens().ValidToken(context.Background())
		require.NoError(t, err)

		require.Equal(t, first, second)
		require.Equal(t, 1, srv.Exchanges())
	})

	t.Run("exchanges again once expired", func(t *testing.T) {
		t.Parallel()

		srv := tptest.NewServer(t)
		clock := newFakeClock()
		c := newTestClient(t, srv, WithClock(clock.Now))

		first, err := c.Tokens().ValidToken(context.Background())
		require.NoError(t, err)

		clock.Advance(2 * time.Hour)
		second, err := c.Tokens().ValidToken(context.Background())
		require.NoError(t, err)

		require.NotEqual(t, first, second)
		require.Equal(t, 2, srv.Exchanges())
	})

	t.Run("treats a token inside the skew as expired", func(t *testing.T) {
		t.Parallel()

		srv := tptest.NewServer(t)
		clock := newFakeClock()
		c := newTestClient(t, srv, WithClock(clock.Now))

		// One hour lifetime, 60s skew: 59m30s in is already too late.
		clock.Advance(59*time.Minute + 30*time.Second)
		_, err := c.Tokens().ValidToken(context.Background())
		require.NoError(t, err)
		require.Equal(t, 2, srv.Exchanges())
	})

	t.Run("custom skew", func(t *testing.T) {
		t.Parallel()

		srv := tptest.NewServer(t)
		clock := newFakeClock()
		c := newTestClient(t, srv, WithClock(clock.Now), WithExpirySkew(10*time.Minute))

		clock.Advance(51 * time.Minute)
		_, err := c.Tokens().ValidToken(context.Background())
		require.NoError(t, err)
		require.Equal(t, 2, srv.Exchanges())
	})

	t.Run("refresh forces an exchange", func(t *testing.T) {
		t.Parallel()

		srv := tptest.NewServer(t)
		c := newTestClient(t, srv)

		before, ok := c.Tokens().Current()
		require.True(t, ok)

		tok, err := c.Tokens().Refresh(context.Background())
		require.NoError(t, err)
		require.NotEqual(t, before.AccessToken, tok)
		require.Equal(t, 2, srv.Exchanges())
	})
}

func TestTokenConcurrentColdCache(t *testing.T) {
	t.Parallel()

	srv := tptest.NewServer(t, tptest.WithTokenDelay(50*time.Millisecond))
	m := newTokenManager(
		Credentials{ClientID: srv.ClientID, ClientSecret: srv.ClientSecret},
		srv.TokenURL(),
		srv.Client(),
		DefaultExpirySkew,
		time.Now,
		slogx.Discard(),
	)

	const callers = 16
	tokens := make([]string, callers)
	errs := make([]error, callers)

	var wg sync.WaitGroup
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tokens[i], errs[i] = m.ValidToken(context.Background())
		}()
	}
	wg.Wait()

	for i := range callers {
		require.NoError(t, errs[i])
		require.Equal(t, tokens[0], tokens[i])
	}
	require.Equal(t, 1, srv.Exchanges())
}

func TestTokenFailedRefreshKeepsCachedToken(t *testing.T) {
	t.Parallel()

	srv := tptest.NewServer(t)
	clock := newFakeClock()
	c := newTestClient(t, srv, WithClock(clock.Now))

	cached, ok := c.Tokens().Current()
	require.True(t, ok)

	srv.FailTokenEndpoint(tptest.JSON(http.StatusInternalServerError, map[string]string{"error": "server_error"}))
	clock.Advance(2 * time.Hour)

	_, err := c.Tokens().ValidToken(context.Background())
	require.Error(t, err)
	require.True(t, IsAuth(err))

	var e *Error
	require.True(t, errors.As(err, &e))
	require.Equal(t, http.StatusInternalServerError, e.StatusCode)

	current, ok := c.Tokens().Current()
	require.True(t, ok)
	require.Equal(t, cached, current)

	srv.RestoreTokenEndpoint()
	fresh, err := c.Tokens().ValidToken(context.Background())
	require.NoError(t, err)
	require.NotEqual(t, cached.AccessToken, fresh)
}

func TestTokenLifetime(t *testing.T) {
	t.Parallel()

	t.Run("from expires_in", func(t *testing.T) {
		t.Parallel()

		srv := tptest.NewServer(t, tptest.WithTokenLifetime(20*time.Minute))
		clock := newFakeClock()
		c := newTestClient(t, srv, WithClock(clock.Now))

		tok, ok := c.Tokens().Current()
		require.True(t, ok)
		require.WithinDuration(t, clock.Now().Add(20*time.Minute), tok.ExpiresAt, 5*time.Second)
	})

	t.Run("from the JWT exp claim", func(t *testing.T) {
		t.Parallel()

		srv := tptest.NewServer(t, tptest.WithoutExpiresIn(), tptest.WithTokenLifetime(10*time.Minute))
		c := newTestClient(t, srv)

		tok, ok := c.Tokens().Current()
		require.True(t, ok)
		require.WithinDuration(t, time.Now().Add(10*time.Minute), tok.ExpiresAt, 5*time.Second)
	})

	t.Run("defaults to one hour", func(t *testing.T) {
		t.Parallel()

		srv := tptest.NewServer(t, tptest.WithoutExpiresIn(), tptest.WithOpaqueTokens())
		clock := newFakeClock()
		c := newTestClient(t, srv, WithClock(clock.Now))

		tok, ok := c.Tokens().Current()
		require.True(t, ok)
		require.Equal(t, clock.Now().Add(DefaultTokenLifetime), tok.ExpiresAt)
	})
}

func TestNewClientCredentials(t *testing.T) {
	t.Parallel()

	t.Run("rejected credentials fail at construction", func(t *testing.T) {
		t.Parallel()

		srv := tptest.NewServer(t)
		c, err := NewClient(context.Background(), "wrong", "credentials",
			WithBaseURL(srv.URL),
			WithTokenURL(srv.TokenURL()),
			WithHTTPClient(srv.Client()),
			WithLogger(slogx.Discard()),
		)
		require.Nil(t, c)
		require.Error(t, err)
		require.True(t, IsAuth(err))
		require.ErrorIs(t, err, ErrAuth)

		var e *Error
		require.True(t, errors.As(err, &e))
		require.Equal(t, http.StatusUnauthorized, e.StatusCode)
		require.Contains(t, e.Body, "invalid_client")
		require.Empty(t, srv.Calls())
	})

	t.Run("empty credentials are a validation error", func(t *testing.T) {
		t.Parallel()

		srv := tptest.NewServer(t)
		c, err := NewClient(context.Background(), "", "  ",
			WithTokenURL(srv.TokenURL()),
			WithHTTPClient(srv.Client()),
		)
		require.Nil(t, c)
		require.True(t, IsValidation(err))
		require.Zero(t, srv.Exchanges())
	})

	t.Run("whitespace credentials are a validation error", func(t *testing.T) {
		t.Parallel()

		srv := tptest.NewServer(t)
		for _, creds := range []Credentials{
			{ClientID: srv.ClientID, ClientSecret: "   "},
			{ClientID: "\t", ClientSecret: srv.ClientSecret},
		} {
			c, err := NewClient(context.Background(), creds.ClientID, creds.ClientSecret,
				WithTokenURL(srv.TokenURL()),
				WithHTTPClient(srv.Client()),
			)
			require.Nil(t, c)
			require.True(t, IsValidation(err), "credentials %+v", creds)
		}
		require.Zero(t, srv.Exchanges())
	})

	t.Run("unreachable token endpoint is an auth error", func(t *testing.T) {
		t.Parallel()

		srv := tptest.NewServer(t)
		tokenURL := srv.TokenURL()
		srv.Close()

		c, err := NewClient(context.Background(), srv.ClientID, srv.ClientSecret,
			WithTokenURL(tokenURL),
			WithLogger(slogx.Discard()),
		)
		require.Nil(t, c)
		require.True(t, IsAuth(err))
	})
}

func TestTokenSource(t *testing.T) {
	t.Parallel()

	srv := tptest.NewServer(t)
	c := newTestClient(t, srv)

	var ts oauth2.TokenSource = c.Tokens().TokenSource(context.Background())
	tok, err := ts.Token()
	require.NoError(t, err)

	current, ok := c.Tokens().Current()
	require.True(t, ok)
	require.Equal(t, current.AccessToken, tok.AccessToken)
	require.Equal(t, "Bearer", tok.TokenType)
	require.Equal(t, current.ExpiresAt, tok.Expiry)
	require.Equal(t, 1, srv.Exchanges())
}

func TestJWTExpiry(t *testing.T) {
	t.Parallel()

	_, ok := jwtExpiry("not-a-jwt")
	require.False(t, ok)
}

func TestFingerprint(t *testing.T) {
	t.Parallel()

	require.Len(t, fingerprint("token"), 12)
	require.Equal(t, fingerprint("token"), fingerprint("token"))
	require.NotEqual(t, fingerprint("token"), fingerprint("other"))
}
