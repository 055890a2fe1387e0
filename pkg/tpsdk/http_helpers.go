package tpsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/aussiebroadwan/threatprotection/pkg/idx"
	"github.com/aussiebroadwan/threatprotection/pkg/slogx"
)

// request describes one API call. body, when set, is sent as JSON.
type request struct {
	method string
	path   string
	query  url.Values
	body   any
	accept string
}

// url builds a complete URL from the base URL, path and query.
func (c *Client) url(path string, query url.Values) string {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// do runs r with a valid bearer token and returns the body of a 2xx
// response. Non-2xx responses become typed errors. A 401 triggers one token
// refresh and one resend when reauthRetry is on.
func (c *Client) do(ctx context.Context, r request) ([]byte, error) {
	var payload []byte
	if r.body != nil {
		b, err := json.Marshal(r.body)
		if err != nil {
			return nil, wrapValidation("failed to marshal request", err)
		}
		payload = b
	}

	token, err := c.tokens.ValidToken(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := c.send(ctx, r, payload, token)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusUnauthorized && c.reauthRetry {
		drainAndClose(resp)
		slogx.FromContext(ctx, c.logger).Info("request unauthorized, refreshing token",
			"method", r.method,
			"path", r.path,
		)

		token, err = c.tokens.replace(ctx, token)
		if err != nil {
			return nil, err
		}

		resp, err = c.send(ctx, r, payload, token)
		if err != nil {
			return nil, err
		}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transportError("failed to read response body", err)
	}

	if err := parseErrorResponse(resp, body, c.now()); err != nil {
		return nil, err
	}

	return body, nil
}

// send issues a single HTTP request carrying token.
func (c *Client) send(ctx context.Context, r request, payload []byte, token string) (*http.Response, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, c.url(r.path, r.query), body)
	if err != nil {
		return nil, transportError("failed to create request", err)
	}

	accept := r.accept
	if accept == "" {
		accept = "application/json"
	}

	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", accept)
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set(slogx.RequestIDHeader, idx.New().String())
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, transportError("failed to send request", err)
	}

	return resp, nil
}

// doJSON runs r and decodes the response body into T. An empty 2xx body
// yields the zero value.
func doJSON[T any](ctx context.Context, c *Client, r request) (T, error) {
	var out T

	body, err := c.do(ctx, r)
	if err != nil {
		return out, err
	}

	if len(bytes.TrimSpace(body)) == 0 {
		return out, nil
	}

	if err := json.Unmarshal(body, &out); err != nil {
		return out, &Error{
			Kind:    KindAPI,
			Message: "failed to decode response",
			Body:    string(body),
			Err:     err,
		}
	}

	return out, nil
}

// pathID validates an identifier that will be interpolated into a path and
// returns it escaped.
func pathID(name, id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", validationError("%s is required", name)
	}
	return url.PathEscape(id), nil
}

func drainAndClose(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	_ = resp.Body.Close()
}
