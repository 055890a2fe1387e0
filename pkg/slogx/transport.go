package slogx

import (
	"log/slog"
	"net/http"
	"time"
)

// RequestIDHeader is the header outbound requests carry their ID in.
const RequestIDHeader = "X-Request-ID"

// Transport wraps next so every outbound request is logged with its method,
// host, path, status and duration. Requests are logged at debug level and
// transport failures at warn. A logger attached to the request context wins
// over base.
func Transport(base *slog.Logger, next http.RoundTripper) http.RoundTripper {
	if next == nil {
		next = http.DefaultTransport
	}
	return &loggingTransport{base: base, next: next}
}

type loggingTransport struct {
	base *slog.Logger
	next http.RoundTripper
}

func (t *loggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()

	logger := FromContext(req.Context(), t.base).With(
		"method", req.Method,
		"host", req.URL.Host,
		"path", req.URL.Path,
	)
	if reqID := req.Header.Get(RequestIDHeader); reqID != "" {
		logger = logger.With("req_id", reqID)
	}

	resp, err := t.next.RoundTrip(req)
	duration := time.Since(start).Milliseconds()
	if err != nil {
		logger.Warn("http_request_failed",
			"duration_ms", duration,
			"error", err,
		)
		return nil, err
	}

	logger.Debug("http_request",
		"status", resp.StatusCode,
		"duration_ms", duration,
	)
	return resp, nil
}
