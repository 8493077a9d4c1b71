package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultTimeout = 10 * time.Second

// Doer is the minimal interface needed from an HTTP client.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// TokenSource supplies the bearer token sent with every request.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Client performs JSON calls against one upstream service and classifies failures.
type Client struct {
	service string
	baseURL string
	doer    Doer
	tokens  TokenSource
	timeout time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default *http.Client.
func WithHTTPClient(doer Doer) Option {
	return func(c *Client) {
		c.doer = doer
	}
}

// WithTokenSource enables bearer authentication.
func WithTokenSource(tokens TokenSource) Option {
	return func(c *Client) {
		c.tokens = tokens
	}
}

// WithTimeout sets the per-request timeout of the default client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// NewClient creates a client for the named service rooted at baseURL.
func NewClient(service, baseURL string, opts ...Option) *Client {
	c := &Client{
		service: service,
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: defaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.doer == nil {
		c.doer = &http.Client{Timeout: c.timeout}
	}
	return c
}

// Service returns the name used in error reports.
func (c *Client) Service() string {
	return c.service
}

// Call sends body as JSON (nil for no body) and returns the 2xx response body.
func (c *Client) Call(ctx context.Context, method, path string, body any, headers map[string]string) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, NewServiceError(CategoryInternal, c.service, "failed to marshal request", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, NewServiceError(CategoryInternal, c.service, "failed to create request", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	if c.tokens != nil {
		token, err := c.tokens.Token(ctx)
		if err != nil {
			return nil, NewServiceError(CategoryAuthentication, c.service, "failed to mint service token", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.doer.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return nil, ctx.Err()
		}
		if errors.Is(ctx.Err(), context.DeadlineExceeded) || isTimeout(err) {
			return nil, NewServiceError(CategoryTimeout, c.service, "request timeout", err)
		}
		return nil, NewServiceError(CategoryOutage, c.service, "failed to execute request", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, NewServiceError(CategoryOutage, c.service, "failed to read response", err)
	}

	if err := c.classifyStatus(resp.StatusCode, respBody); err != nil {
		return nil, err
	}
	return respBody, nil
}

func (c *Client) classifyStatus(status int, body []byte) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return NewServiceError(CategoryAuthentication, c.service, fmt.Sprintf("authentication failed: %d", status), nil)
	case status == http.StatusNotFound:
		return NewServiceError(CategoryNotFound, c.service, "resource not found", nil)
	case status == http.StatusTooManyRequests:
		return NewServiceError(CategoryRateLimited, c.service, "rate limit exceeded", nil)
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return NewServiceError(CategoryTimeout, c.service, fmt.Sprintf("upstream timeout: %d", status), nil)
	case status >= 500:
		return NewServiceError(CategoryOutage, c.service, fmt.Sprintf("service unavailable: %d", status), nil)
	default:
		return Malformed(c.service, fmt.Sprintf("request rejected: %d", status), body, nil)
	}
}

func isTimeout(err error) bool {
	var te interface{ Timeout() bool }
	return errors.As(err, &te) && te.Timeout()
}
