// Package backend talks to the catalog REST service on behalf of the
// dashboard and the display.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"example/merch-display/internal/logger"
	"example/merch-display/internal/models"
	"example/merch-display/internal/session"

	"golang.org/x/oauth2"
)

// maxResponseBytes bounds how much of an upstream body is buffered
const maxResponseBytes = 32 << 20

// Response is a buffered upstream answer
type Response struct {
	Status      int
	ContentType string
	Body        []byte
}

// OK reports a 2xx status
func (r *Response) OK() bool {
	return r.Status >= 200 && r.Status < 300
}

// StatusError is returned by the typed helpers for non-2xx answers
type StatusError struct {
	Op     string
	Status int
	Body   []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: backend answered %d", e.Op, e.Status)
}

// Client forwards requests to the backend with a bearer token
type Client struct {
	baseURL  string
	http     *http.Client
	fallback oauth2.TokenSource
}

// New creates a client for baseURL. Requests carry the token found in their
// context; fallback, when non-nil, supplies one otherwise.
func New(baseURL string, httpClient *http.Client, fallback oauth2.TokenSource) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		http:     httpClient,
		fallback: fallback,
	}
}

// StaticToken wraps a fixed service token, or returns nil when token is empty
func StaticToken(token string) oauth2.TokenSource {
	if token == "" {
		return nil
	}
	return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"})
}

// Forward sends one request and buffers the answer whatever its status.
// An error means the backend could not be reached.
func (c *Client) Forward(ctx context.Context, method, path string, body io.Reader, contentType string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	if err := c.authorize(ctx, req); err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		logger.Log.Errorw("Backend request failed", "method", method, "path", path, "error", err)
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read %s %s: %w", method, path, err)
	}
	logger.Log.Debugw("Backend request", "method", method, "path", path, "status", resp.StatusCode, "duration_ms", time.Since(start).Milliseconds())
	return &Response{Status: resp.StatusCode, ContentType: resp.Header.Get("Content-Type"), Body: data}, nil
}

func (c *Client) authorize(ctx context.Context, req *http.Request) error {
	if tok, ok := session.FromContext(ctx); ok {
		tok.SetAuthHeader(req)
		return nil
	}
	if c.fallback == nil {
		return nil
	}
	tok, err := c.fallback.Token()
	if err != nil {
		return fmt.Errorf("service token: %w", err)
	}
	tok.SetAuthHeader(req)
	return nil
}

// doJSON sends v as JSON (when non-nil) and decodes a {payload} envelope into out
func (c *Client) doJSON(ctx context.Context, op, method, path string, v any, out any) error {
	var body io.Reader
	contentType := ""
	if v != nil {
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("%s: encode body: %w", op, err)
		}
		body = bytes.NewReader(data)
		contentType = "application/json"
	}
	resp, err := c.Forward(ctx, method, path, body, contentType)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if !resp.OK() {
		return &StatusError{Op: op, Status: resp.Status, Body: resp.Body}
	}
	if out == nil || len(resp.Body) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}

// ListProducts fetches the catalog
func (c *Client) ListProducts(ctx context.Context) ([]models.Product, error) {
	var env models.Envelope[[]models.Product]
	if err := c.doJSON(ctx, "list products", http.MethodGet, "/products", nil, &env); err != nil {
		return nil, err
	}
	return env.Payload, nil
}

// GetSettings fetches the organization's display settings
func (c *Client) GetSettings(ctx context.Context) (models.Settings, error) {
	var env models.Envelope[models.Settings]
	if err := c.doJSON(ctx, "get settings", http.MethodGet, "/settings", nil, &env); err != nil {
		return models.Settings{}, err
	}
	return env.Payload, nil
}

// UpdateSettings sends the partial body as received; the backend merges it
func (c *Client) UpdateSettings(ctx context.Context, partial json.RawMessage) error {
	if !json.Valid(partial) {
		return fmt.Errorf("update settings: body is not valid JSON")
	}
	resp, err := c.Forward(ctx, http.MethodPut, "/settings", bytes.NewReader(partial), "application/json")
	if err != nil {
		return fmt.Errorf("update settings: %w", err)
	}
	if !resp.OK() {
		return &StatusError{Op: "update settings", Status: resp.Status, Body: resp.Body}
	}
	return nil
}
