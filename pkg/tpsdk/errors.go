package tpsdk

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/aussiebroadwan/threatprotection/pkg/httpx"
)

// ============================================================================
// Error kinds
// ============================================================================

// Kind classifies an Error. Kinds are mutually exclusive.
type Kind int

const (
	// KindValidation is malformed caller input, detected before any network call.
	KindValidation Kind = iota + 1

	// KindAuth is a 401/403 from the API, or any failure from the token endpoint.
	KindAuth

	// KindBadRequest is a 400 from the API.
	KindBadRequest

	// KindRateLimit is a 429 from the API.
	KindRateLimit

	// KindAPI is any other non-2xx status.
	KindAPI

	// KindTransport is the transport sub-kind of KindAPI: the request never
	// produced a response (connection refused, timeout, cancelled context).
	KindTransport
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation_error"
	case KindAuth:
		return "auth_error"
	case KindBadRequest:
		return "bad_request"
	case KindRateLimit:
		return "rate_limit"
	case KindAPI:
		return "api_error"
	case KindTransport:
		return "transport_error"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ============================================================================
// Error
// ============================================================================

// Error is the single error type returned by every Client and TokenManager
// method. Switch on Kind, or use the IsX helpers.
type Error struct {
	Kind Kind

	// StatusCode is the HTTP status, or 0 when no response was received.
	StatusCode int

	// Message is the human readable detail. For API failures it is the error
	// detail parsed from the response body when there is one.
	Message string

	// Body is the raw response body, if any.
	Body string

	// RetryAfter is the server's Retry-After hint on KindRateLimit errors.
	// HasRetryAfter distinguishes "retry immediately" from "no hint".
	RetryAfter    time.Duration
	HasRetryAfter bool

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("tpsdk: ")
	b.WriteString(e.Kind.String())
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (%d)", e.StatusCode)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the kind sentinels below, so errors.Is(err, ErrRateLimit) works.
// A transport error also matches ErrAPI.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || !t.sentinel() {
		return false
	}
	if t.Kind == e.Kind {
		return true
	}
	return t.Kind == KindAPI && e.Kind == KindTransport
}

func (e *Error) sentinel() bool {
	return e.StatusCode == 0 && e.Message == "" && e.Body == "" && e.Err == nil
}

// Sentinels for errors.Is. They carry only a Kind.
var (
	ErrValidation = &Error{Kind: KindValidation}
	ErrAuth       = &Error{Kind: KindAuth}
	ErrBadRequest = &Error{Kind: KindBadRequest}
	ErrRateLimit  = &Error{Kind: KindRateLimit}
	ErrAPI        = &Error{Kind: KindAPI}
	ErrTransport  = &Error{Kind: KindTransport}
)

// KindOf returns the Kind of err, or 0 if err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// IsValidation reports whether err is a KindValidation error.
func IsValidation(err error) bool { return KindOf(err) == KindValidation }

// IsAuth reports whether err is a KindAuth error.
func IsAuth(err error) bool { return KindOf(err) == KindAuth }

// IsBadRequest reports whether err is a KindBadRequest error.
func IsBadRequest(err error) bool { return KindOf(err) == KindBadRequest }

// IsRateLimited reports whether err is a KindRateLimit error.
func IsRateLimited(err error) bool { return KindOf(err) == KindRateLimit }

// IsTransport reports whether err is a KindTransport error.
func IsTransport(err error) bool { return KindOf(err) == KindTransport }

// IsAPIError reports whether err is a catch-all API error, including
// transport failures.
func IsAPIError(err error) bool {
	k := KindOf(err)
	return k == KindAPI || k == KindTransport
}

// ============================================================================
// Constructors
// ============================================================================

func validationError(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func wrapValidation(msg string, err error) *Error {
	return &Error{Kind: KindValidation, Message: msg, Err: err}
}

func transportError(msg string, err error) *Error {
	return &Error{Kind: KindTransport, Message: msg, Err: err}
}

// ============================================================================
// Response classification
// ============================================================================

// errorDetailKeys are tried in order when pulling a message out of an error
// body. errorMessage is what the Threat Protection API uses; the rest cover
// gateways and the OAuth2 token endpoint.
var errorDetailKeys = []string{"errorMessage", "error", "message", "error_description"}

// parseErrorResponse maps a non-2xx response to a typed Error. Returns nil
// for 2xx responses.
func parseErrorResponse(resp *http.Response, body []byte, now time.Time) error {
	if httpx.IsSuccess(resp.StatusCode) {
		return nil
	}

	e := &Error{
		StatusCode: resp.StatusCode,
		Message:    errorDetail(body),
		Body:       string(body),
	}
	if e.Message == "" {
		e.Message = http.StatusText(resp.StatusCode)
	}

	switch resp.StatusCode {
	case http.StatusBadRequest:
		e.Kind = KindBadRequest
	case http.StatusUnauthorized, http.StatusForbidden:
		e.Kind = KindAuth
	case http.StatusTooManyRequests:
		e.Kind = KindRateLimit
		e.RetryAfter, e.HasRetryAfter = httpx.ParseRetryAfter(resp.Header.Get(httpx.HeaderRetryAfter), now)
	default:
		e.Kind = KindAPI
	}

	return e
}

// errorDetail extracts the most specific error message from a response body.
// Non-JSON bodies are returned trimmed as-is.
func errorDetail(body []byte) string {
	text := strings.TrimSpace(string(body))
	if text == "" {
		return ""
	}

	var obj map[string]any
	if err := json.Unmarshal(body, &obj); err != nil {
		return text
	}

	for _, key := range errorDetailKeys {
		if s, ok := obj[key].(string); ok && s != "" {
			return s
		}
	}

	return text
}
