// Package stash is a minimal GraphQL client for the Stash media server,
// covering the scene, marker and tag operations marker review needs.
package stash

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/machinebox/graphql"
)

const (
	maxResponseBytes = 32 << 20
	maxErrorBody     = 4096
)

// RequestError is a non-2xx response from the GraphQL endpoint.
type RequestError struct {
	StatusCode int
	Body       string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("stash request failed: HTTP %d: %s", e.StatusCode, e.Body)
}

// IsRetryable returns true for server errors (5xx).
// Client errors (4xx) are considered permanent.
func (e *RequestError) IsRetryable() bool {
	return e.StatusCode >= 500
}

// GraphQLError is a 2xx response whose body carries an errors array.
type GraphQLError struct {
	Operation string
	Messages  []string
}

func (e *GraphQLError) Error() string {
	return fmt.Sprintf("stash %s: %s", e.Operation, strings.Join(e.Messages, "; "))
}

type Client struct {
	gql    *graphql.Client
	apiKey string
	logger *slog.Logger
}

// NewClient returns a client for the Stash instance at baseURL, e.g.
// http://localhost:9999. apiKey may be empty when Stash runs without auth.
func NewClient(baseURL, apiKey string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	httpClient := &http.Client{
		Timeout:   30 * time.Second,
		Transport: statusTransport{base: http.DefaultTransport},
	}
	endpoint := strings.TrimRight(baseURL, "/") + "/graphql"
	return &Client{
		gql:    graphql.NewClient(endpoint, graphql.WithHTTPClient(httpClient)),
		apiKey: apiKey,
		logger: logger,
	}
}

// statusTransport turns non-2xx responses into a RequestError so the status
// code survives the GraphQL client, and caps the size of accepted bodies.
type statusTransport struct {
	base http.RoundTripper
}

func (t statusTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(r)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		resp.Body.Close()
		return nil, &RequestError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	resp.Body = limitedBody{Reader: io.LimitReader(resp.Body, maxResponseBytes), Closer: resp.Body}
	return resp, nil
}

type limitedBody struct {
	io.Reader
	io.Closer
}

// do runs one GraphQL operation and decodes its data object into out.
func (c *Client) do(ctx context.Context, op, query string, vars map[string]any, out any) error {
	req := graphql.NewRequest(query)
	for k, v := range vars {
		req.Var(k, v)
	}
	requestID := uuid.NewString()
	req.Header.Set("X-Request-Id", requestID)
	if c.apiKey != "" {
		req.Header.Set("ApiKey", c.apiKey)
	}

	start := time.Now()
	err := c.gql.Run(ctx, req, out)

	c.logger.Debug("stash request",
		"operation", op,
		"duration_ms", time.Since(start).Milliseconds(),
		"request_id", requestID,
		"error", err,
	)
	if err != nil {
		return classifyError(op, err)
	}
	return nil
}

// classifyError maps GraphQL client failures onto RequestError and
// GraphQLError. The client reports only the first error of an errors array.
func classifyError(op string, err error) error {
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return reqErr
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("http request failed: %w", err)
	}
	if msg, ok := strings.CutPrefix(err.Error(), "graphql: "); ok {
		return &GraphQLError{Operation: op, Messages: []string{msg}}
	}
	return fmt.Errorf("decode %s response: %w", op, err)
}

// Version returns the Stash server version string.
func (c *Client) Version(ctx context.Context) (string, error) {
	var data struct {
		Version struct {
			Version string `json:"version"`
		} `json:"version"`
	}
	if err := c.do(ctx, "Version", `query Version { version { version } }`, nil, &data); err != nil {
		return "", err
	}
	return data.Version.Version, nil
}
