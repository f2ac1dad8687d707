// Package client is a typed client for the plugstore admin API.
package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/GriffinCanCode/plugstore/internal/domain/root"
	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
)

// ErrNotFound is returned for 404 responses
var ErrNotFound = errors.New("not found")

// APIError is a non-2xx response from the server
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("plugstore: %d %s", e.Status, e.Message)
}

func (e *APIError) Is(target error) bool {
	return target == ErrNotFound && e.Status == http.StatusNotFound
}

// Options configures a Client
type Options struct {
	Timeout    time.Duration
	MaxRetries int
	MinWait    time.Duration
	MaxWait    time.Duration
}

// DefaultOptions returns the CLI defaults
func DefaultOptions() Options {
	return Options{
		Timeout:    30 * time.Second,
		MaxRetries: 3,
		MinWait:    200 * time.Millisecond,
		MaxWait:    5 * time.Second,
	}
}

// Client talks to one plugstore server
type Client struct {
	resty *resty.Client
}

// New creates a client for baseURL. Requests are retried on connection
// errors, 429 and 503.
func New(baseURL string, opts Options) *Client {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 0 // resty owns retries
	retryClient.Logger = nil

	r := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(opts.Timeout).
		SetRetryCount(opts.MaxRetries).
		SetRetryWaitTime(opts.MinWait).
		SetRetryMaxWaitTime(opts.MaxWait).
		SetHeader("User-Agent", "plugstorectl/1.0").
		SetTransport(retryClient.HTTPClient.Transport).
		AddRetryCondition(func(resp *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			code := resp.StatusCode()
			return code == http.StatusTooManyRequests || code == http.StatusServiceUnavailable
		})
	r.JSONMarshal = sonic.Marshal
	r.JSONUnmarshal = sonic.Unmarshal

	return &Client{resty: r}
}

type envelope struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	req := c.resty.R().SetContext(ctx)
	if body != nil {
		req.SetBody(body)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return err
	}

	if resp.IsError() {
		var env envelope
		msg := resp.Status()
		if sonic.Unmarshal(resp.Body(), &env) == nil && env.Error != "" {
			msg = env.Error
		}
		return &APIError{Status: resp.StatusCode(), Message: msg}
	}

	if out != nil {
		if err := sonic.Unmarshal(resp.Body(), out); err != nil {
			return fmt.Errorf("decode %s %s: %w", method, path, err)
		}
	}
	return nil
}

// Health is the server's health report
type Health struct {
	Status     string `json:"status"`
	StorageDir string `json:"storage_dir"`
	QueueDepth int    `json:"queue_depth"`
	Breaker    string `json:"breaker"`
	Instances  int    `json:"instances"`
	Uptime     string `json:"uptime"`
}

// Health fetches /health
func (c *Client) Health(ctx context.Context) (Health, error) {
	var h Health
	err := c.do(ctx, http.MethodGet, "/health", nil, &h)
	return h, err
}

// NodeID resolves the node id for an origin pair
func (c *Client) NodeID(ctx context.Context, origin, topLevelOrigin, mode string) (string, error) {
	q := url.Values{"origin": {origin}, "top_level_origin": {topLevelOrigin}, "mode": {mode}}
	var out struct {
		NodeID string `json:"node_id"`
	}
	err := c.do(ctx, http.MethodGet, "/nodeid?"+q.Encode(), nil, &out)
	return out.NodeID, err
}

// Names lists a node's record names
func (c *Client) Names(ctx context.Context, nodeID string) ([]string, error) {
	var out struct {
		Names []string `json:"names"`
	}
	err := c.do(ctx, http.MethodGet, "/nodes/"+url.PathEscape(nodeID)+"/records", nil, &out)
	return out.Names, err
}

// ClearAll wipes persistent storage and waits for completion
func (c *Client) ClearAll(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/storage/clear", nil, nil)
}

// Forget removes every origin pair matching pattern
func (c *Client) Forget(ctx context.Context, pattern string) (int, error) {
	var out struct {
		Removed int `json:"removed"`
	}
	err := c.do(ctx, http.MethodPost, "/storage/forget", map[string]string{"pattern": pattern}, &out)
	return out.Removed, err
}

// EndPrivateSession discards private-mode data
func (c *Client) EndPrivateSession(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/private-session/end", nil, nil)
}

// Usage fetches storage usage
func (c *Client) Usage(ctx context.Context) (root.Usage, error) {
	var out struct {
		Usage root.Usage `json:"usage"`
	}
	err := c.do(ctx, http.MethodGet, "/storage/usage", nil, &out)
	return out.Usage, err
}

// IsEmpty reports whether persistent storage is empty
func (c *Client) IsEmpty(ctx context.Context) (bool, error) {
	var out struct {
		Empty bool `json:"empty"`
	}
	err := c.do(ctx, http.MethodGet, "/storage/empty", nil, &out)
	return out.Empty, err
}
