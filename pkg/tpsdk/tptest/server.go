// Package tptest provides an in-process fake of the Threat Protection API
// and its OAuth2 token endpoint, for tests of code built on tpsdk.
//
// The fake issues JWT access tokens for one client-credentials pair, rejects
// API calls that do not carry a token it issued, records every API call, and
// answers each route with responses queued through Handle.
package tptest

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/threatprotection/pkg/httpx"
	"github.com/golang-jwt/jwt/v5"
)

const (
	DefaultClientID     = "test-client"
	DefaultClientSecret = "test-secret"

	// TokenPath is where the fake serves the token endpoint.
	TokenPath = "/v1/token"
)

// Call is one recorded API request.
type Call struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header
	Body   []byte
}

// Response is a scripted answer to an API call.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// JSON builds a Response whose body is v encoded as JSON.
func JSON(status int, v any) Response {
	body, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("tptest: cannot marshal response: %v", err))
	}
	return Response{
		Status: status,
		Header: http.Header{"Content-Type": {"application/json"}},
		Body:   body,
	}
}

// Raw builds a Response with an arbitrary body and content type.
func Raw(status int, contentType string, body []byte) Response {
	return Response{
		Status: status,
		Header: http.Header{"Content-Type": {contentType}},
		Body:   body,
	}
}

// WithHeader returns a copy of r with an extra header set.
func (r Response) WithHeader(key, value string) Response {
	h := r.Header.Clone()
	if h == nil {
		h = http.Header{}
	}
	h.Set(key, value)
	r.Header = h
	return r
}

// Option configures a Server.
type Option func(*Server)

// WithCredentials sets the accepted client-credentials pair.
func WithCredentials(clientID, clientSecret string) Option {
	return func(s *Server) {
		s.ClientID = clientID
		s.ClientSecret = clientSecret
	}
}

// WithTokenLifetime sets the lifetime of issued tokens (default one hour).
func WithTokenLifetime(d time.Duration) Option {
	return func(s *Server) { s.lifetime = d }
}

// WithoutExpiresIn omits expires_in from token responses.
func WithoutExpiresIn() Option {
	return func(s *Server) { s.omitExpiresIn = true }
}

// WithOpaqueTokens issues random non-JWT access tokens.
func WithOpaqueTokens() Option {
	return func(s *Server) { s.opaque = true }
}

// WithTokenDelay makes the token endpoint sleep before answering.
func WithTokenDelay(d time.Duration) Option {
	return func(s *Server) { s.tokenDelay = d }
}

// Server is the fake. Embeds the underlying httptest.Server.
type Server struct {
	*httptest.Server

	ClientID     string
	ClientSecret string

	lifetime      time.Duration
	omitExpiresIn bool
	opaque        bool
	tokenDelay    time.Duration
	signingKey    []byte

	mu           sync.Mutex
	exchanges    int
	issued       map[string]bool
	tokenFailure *Response
	routes       map[string][]Response
	calls        []Call
}

// NewServer starts a fake and registers its shutdown with t.Cleanup.
func NewServer(t testing.TB, opts ...Option) *Server {
	t.Helper()

	s := &Server{
		ClientID:     DefaultClientID,
		ClientSecret: DefaultClientSecret,
		lifetime:     time.Hour,
		signingKey:   make([]byte, 32),
		issued:       make(map[string]bool),
		routes:       make(map[string][]Response),
	}
	if _, err := rand.Read(s.signingKey); err != nil {
		t.Fatalf("tptest: signing key: %v", err)
	}
	for _, opt := range opts {
		opt(s)
	}

	mux := http.NewServeMux()
	mux.HandleFunc(TokenPath, s.handleToken)
	mux.HandleFunc("/", s.handleAPI)

	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)

	return s
}

// TokenURL returns the token endpoint URL.
func (s *Server) TokenURL() string {
	return s.URL + TokenPath
}

// Exchanges returns how many token requests the fake has received.
func (s *Server) Exchanges() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exchanges
}

// Calls returns a copy of the recorded API calls, oldest first.
func (s *Server) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// LastCall returns the most recent API call. It fails t if there is none.
func (s *Server) LastCall(t testing.TB) Call {
	t.Helper()

	calls := s.Calls()
	if len(calls) == 0 {
		t.Fatalf("tptest: no API calls recorded")
	}
	return calls[len(calls)-1]
}

// Handle queues responses for method and path. Each call consumes one
// response; the last one keeps answering once the queue is drained.
func (s *Server) Handle(method, path string, responses ...Response) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.routes[method+" "+path] = append(s.routes[method+" "+path], responses...)
}

// RevokeTokens invalidates every token issued so far.
func (s *Server) RevokeTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.issued = make(map[string]bool)
}

// FailTokenEndpoint makes every following token request answer with r.
func (s *Server) FailTokenEndpoint(r Response) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokenFailure = &r
}

// RestoreTokenEndpoint undoes FailTokenEndpoint.
func (s *Server) RestoreTokenEndpoint() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokenFailure = nil
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpx.WriteJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "invalid_request"})
		return
	}

	s.mu.Lock()
	s.exchanges++
	n := s.exchanges
	failure := s.tokenFailure
	s.mu.Unlock()

	if s.tokenDelay > 0 {
		time.Sleep(s.tokenDelay)
	}

	if failure != nil {
		writeResponse(w, *failure)
		return
	}

	if err := r.ParseForm(); err != nil {
		httpx.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_request"})
		return
	}

	if r.PostForm.Get("grant_type") != "client_credentials" {
		httpx.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "unsupported_grant_type"})
		return
	}

	if r.PostForm.Get("client_id") != s.ClientID || r.PostForm.Get("client_secret") != s.ClientSecret {
		httpx.WriteJSON(w, http.StatusUnauthorized, map[string]string{
			"error":             "invalid_client",
			"error_description": "Invalid client credentials",
		})
		return
	}

	token, err := s.mint(n)
	if err != nil {
		httpx.WriteJSON(w, http.StatusInternalServerError, map[string]string{"error": "server_error"})
		return
	}

	s.mu.Lock()
	s.issued[token] = true
	s.mu.Unlock()

	resp := map[string]any{
		"access_token": token,
		"token_type":   "Bearer",
	}
	if !s.omitExpiresIn {
		resp["expires_in"] = int(s.lifetime.Seconds())
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

func (s *Server) mint(n int) (string, error) {
	if s.opaque {
		buf := make([]byte, 16)
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		return fmt.Sprintf("opaque-%d-%x", n, buf), nil
	}

	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   s.ClientID,
		ID:        strconv.Itoa(n),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.lifetime)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signingKey)
}

func (s *Server) handleAPI(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	s.mu.Lock()
	s.calls = append(s.calls, Call{
		Method: r.Method,
		Path:   r.URL.Path,
		Query:  r.URL.Query(),
		Header: r.Header.Clone(),
		Body:   body,
	})
	token, _ := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	authorized := s.issued[token]

	key := r.Method + " " + r.URL.Path
	queue := s.routes[key]
	var resp *Response
	if authorized && len(queue) > 0 {
		resp = &queue[0]
		if len(queue) > 1 {
			s.routes[key] = queue[1:]
		}
	}
	s.mu.Unlock()

	switch {
	case !authorized:
		httpx.WriteJSON(w, http.StatusUnauthorized, map[string]string{"errorMessage": "invalid or expired token"})
	case resp == nil:
		httpx.WriteJSON(w, http.StatusNotFound, map[string]string{"errorMessage": "no route for " + key})
	default:
		writeResponse(w, *resp)
	}
}

func writeResponse(w http.ResponseWriter, r Response) {
	for k, vs := range r.Header {
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}
	status := r.Status
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	_, _ = w.Write(r.Body)
}
