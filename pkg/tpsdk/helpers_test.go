package tpsdk

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/threatprotection/pkg/slogx"
	"github.com/aussiebroadwan/threatprotection/pkg/tpsdk/tptest"
	"github.com/stretchr/testify/require"
)

// newTestClient returns a Client wired to srv with logging discarded.
func newTestClient(t *testing.T, srv *tptest.Server, opts ...Option) *Client {
	t.Helper()

	base := []Option{
		WithBaseURL(srv.URL),
		WithTokenURL(srv.TokenURL()),
		WithHTTPClient(srv.Client()),
		WithLogger(slogx.Discard()),
	}

	c, err := NewClient(context.Background(), srv.ClientID, srv.ClientSecret, append(base, opts...)...)
	require.NoError(t, err)
	require.NotNil(t, c)
	return c
}

// fakeClock is a manually advanced clock for expiry tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// decodeBody unmarshals a recorded request body into a generic map.
func decodeBody(t *testing.T, call tptest.Call) map[string]any {
	t.Helper()

	var m map[string]any
	require.NoError(t, json.Unmarshal(call.Body, &m))
	return m
}
