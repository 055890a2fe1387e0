package httpx_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aussiebroadwan/threatprotection/pkg/httpx"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func TestParseRetryAfter(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

	t.Run("delta seconds", func(t *testing.T) {
		d, ok := httpx.ParseRetryAfter("30", now)
		require.True(t, ok)
		require.Equal(t, 30*time.Second, d)
	})

	t.Run("http date", func(t *testing.T) {
		d, ok := httpx.ParseRetryAfter(now.Add(90*time.Second).Format(http.TimeFormat), now)
		require.True(t, ok)
		require.Equal(t, 90*time.Second, d)
	})

	t.Run("date in the past", func(t *testing.T) {
		d, ok := httpx.ParseRetryAfter(now.Add(-time.Hour).Format(http.TimeFormat), now)
		require.True(t, ok)
		require.Zero(t, d)
	})

	t.Run("absent or garbage", func(t *testing.T) {
		for _, v := range []string{"", "  ", "soon", "-5"} {
			_, ok := httpx.ParseRetryAfter(v, now)
			require.False(t, ok, "value %q", v)
		}
	})
}

func TestRateLimitConfig(t *testing.T) {
	t.Parallel()

	require.False(t, httpx.RateLimitConfig{}.Enabled())
	require.Equal(t, rate.Inf, httpx.RateLimitConfig{}.Limit())

	cfg := httpx.RateLimitConfig{RequestsPerWindow: 120, Window: time.Minute, Burst: 5}
	require.True(t, cfg.Enabled())
	require.InDelta(t, 2.0, float64(cfg.Limit()), 0.0001)
}

func TestParseRateLimitFromEnv(t *testing.T) {
	t.Setenv("RATELIMIT_TEST_REQUESTS", "10")
	t.Setenv("RATELIMIT_TEST_WINDOW_SEC", "5")
	t.Setenv("RATELIMIT_TEST_BURST", "not-a-number")

	def := httpx.RateLimitConfig{RequestsPerWindow: 1, Window: time.Minute, Burst: 3}
	cfg := httpx.ParseRateLimitFromEnv("TEST", def)

	require.Equal(t, 10, cfg.RequestsPerWindow)
	require.Equal(t, 5*time.Second, cfg.Window)
	require.Equal(t, 3, cfg.Burst)
}

type countingTransport struct{ calls atomic.Int32 }

func (c *countingTransport) RoundTrip(*http.Request) (*http.Response, error) {
	c.calls.Add(1)
	rec := httptest.NewRecorder()
	rec.WriteHeader(http.StatusNoContent)
	return rec.Result(), nil
}

func TestLimitedTransportDisabledPassesThrough(t *testing.T) {
	t.Parallel()

	next := &countingTransport{}
	require.Same(t, next, httpx.LimitedTransport(httpx.RateLimitConfig{}, next))
}

func TestLimitedTransportHonoursContext(t *testing.T) {
	t.Parallel()

	next := &countingTransport{}
	rt := httpx.LimitedTransport(httpx.RateLimitConfig{
		RequestsPerWindow: 1,
		Window:            time.Hour,
		Burst:             1,
	}, next)

	req := httptest.NewRequest(http.MethodGet, "http://example.test/", nil)

	// First request consumes the burst.
	resp, err := rt.RoundTrip(req)
	require.NoError(t, err)
	resp.Body.Close()

	ctx, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
	defer cancel()

	_, err = rt.RoundTrip(req.WithContext(ctx))
	require.Error(t, err)
	require.Contains(t, err.Error(), "rate limit wait")
	require.EqualValues(t, 1, next.calls.Load())
}

func TestWriteJSON(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	httpx.WriteJSON(rec, http.StatusCreated, map[string]string{"ok": "yes"})

	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	require.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	require.JSONEq(t, `{"ok":"yes"}`, rec.Body.String())
	require.True(t, httpx.IsSuccess(204))
	require.False(t, httpx.IsSuccess(301))
}
