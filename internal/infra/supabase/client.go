// Package supabase provides a client for Supabase PostgREST.
// It is the default budget store: rows live in the "budgets" table with
// "number" as the unique conflict key.
package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("supabase")

// Client wraps HTTP calls to Supabase PostgREST API.
type Client struct {
	httpClient     *http.Client
	baseURL        string
	apiKey         string
	serviceRoleKey string
	cb             *gobreaker.CircuitBreaker
	logger         *zap.Logger
}

// NewClient creates a Supabase client. apiKey falls back to the service role
// key when empty, which is what PostgREST expects for server-side callers.
func NewClient(httpClient *http.Client, baseURL, apiKey, serviceRoleKey string, cb *gobreaker.CircuitBreaker, logger *zap.Logger) *Client {
	if apiKey == "" {
		apiKey = serviceRoleKey
	}
	return &Client{
		httpClient:     httpClient,
		baseURL:        strings.TrimRight(baseURL, "/"),
		apiKey:         apiKey,
		serviceRoleKey: serviceRoleKey,
		cb:             cb,
		logger:         logger,
	}
}

// doRequest executes an authenticated GET-style request to Supabase PostgREST.
// Any non-2xx status is an error: reads always answer with a JSON array, so a
// 404 means a missing table or a wrong base URL, never an empty result.
func (c *Client) doRequest(ctx context.Context, method, path string) ([]byte, error) {
	req, err := c.newRequest(ctx, method, path, nil)
	if err != nil {
		c.logger.Error("supabase: failed to create request",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err),
		)
		return nil, err
	}
	req.Header.Set("Prefer", "return=representation")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("supabase: request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err),
		)
		return nil, err
	}
	defer resp.Body.Close()

	body, err := readBody(resp)
	if err != nil {
		c.logger.Error("supabase: failed to read response body",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err),
		)
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("supabase: non-2xx response",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(body)),
		)
		return nil, apiError(resp.StatusCode, body)
	}

	c.logger.Debug("supabase: request OK",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
	)

	return body, nil
}

// postgrestError is the JSON error body returned by PostgREST.
type postgrestError struct {
	Message string `json:"message"`
	Code    string `json:"code"`
	Details string `json:"details"`
	Hint    string `json:"hint"`
}

// apiError keeps PostgREST's own message when the body carries one.
func apiError(status int, body []byte) error {
	var pe postgrestError
	if err := json.Unmarshal(body, &pe); err == nil && pe.Message != "" {
		return fmt.Errorf("%s", pe.Message)
	}
	text := strings.TrimSpace(string(body))
	if text == "" {
		text = http.StatusText(status)
	}
	return fmt.Errorf("supabase returned status %d: %s", status, text)
}
