// Package client is a Go SDK for the termbridge HTTP API.
package client

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// Client talks to a termbridge server.
type Client struct {
	resty *resty.Client
}

// Option customizes a Client.
type Option func(*Client)

// WithTimeout sets the per-request timeout. Defaults to 30 seconds.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.resty.SetTimeout(d) }
}

// WithRetries enables retrying failed requests.
func WithRetries(count int) Option {
	return func(c *Client) {
		c.resty.SetRetryCount(count).
			SetRetryWaitTime(500 * time.Millisecond).
			SetRetryMaxWaitTime(5 * time.Second)
	}
}

// New creates a client for the server at baseURL.
func New(baseURL string, opts ...Option) *Client {
	r := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(30 * time.Second).
		SetHeader("User-Agent", "termbridge-client/"+Version)

	c := &Client{resty: r}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Version is the SDK version sent in the User-Agent header.
const Version = "1.0.0"

// APIError is a non-2xx response from the server.
type APIError struct {
	Status  int    `json:"-"`
	Message string `json:"error"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("termbridge: server returned %d: %s", e.Status, e.Message)
}

// SessionInfo is a point-in-time snapshot of one session, as reported
// by the server.
type SessionInfo struct {
	ID         string    `json:"id"`
	Shell      string    `json:"shell"`
	WorkingDir string    `json:"working_dir"`
	Rows       uint16    `json:"rows"`
	Cols       uint16    `json:"cols"`
	StartedAt  time.Time `json:"started_at"`
	Closed     bool      `json:"closed"`
}

type spawnResponse struct {
	SessionID string `json:"session_id"`
}

type countResponse struct {
	Count int `json:"count"`
}

type listResponse struct {
	Sessions []SessionInfo `json:"sessions"`
	Count    int                    `json:"count"`
}

type scrollbackResponse struct {
	SessionID string `json:"session_id"`
	Data      string `json:"data"`
}

// Spawn starts a new shell session and returns its id. Zero rows or
// cols fall back to the server default of 24x80.
func (c *Client) Spawn(ctx context.Context, rows, cols uint16, workingDir string) (string, error) {
	var out spawnResponse
	resp, err := c.request(ctx).
		SetBody(map[string]any{"rows": rows, "cols": cols, "working_dir": workingDir}).
		SetResult(&out).
		Post("/sessions")
	if err := c.check(resp, err); err != nil {
		return "", err
	}
	return out.SessionID, nil
}

// Write forwards input bytes to the session's shell.
func (c *Client) Write(ctx context.Context, id string, data []byte) error {
	resp, err := c.request(ctx).
		SetBody(map[string]any{"data": string(data)}).
		Post("/sessions/" + id + "/write")
	return c.check(resp, err)
}

// Resize applies a new window size to the session's PTY.
func (c *Client) Resize(ctx context.Context, id string, rows, cols uint16) error {
	resp, err := c.request(ctx).
		SetBody(map[string]any{"rows": rows, "cols": cols}).
		Post("/sessions/" + id + "/resize")
	return c.check(resp, err)
}

// Close requests cooperative shutdown of a session. It succeeds for
// any id, issued or not.
func (c *Client) Close(ctx context.Context, id string) error {
	resp, err := c.request(ctx).Delete("/sessions/" + id)
	return c.check(resp, err)
}

// Count returns the number of live sessions.
func (c *Client) Count(ctx context.Context) (int, error) {
	var out countResponse
	resp, err := c.request(ctx).SetResult(&out).Get("/count")
	if err := c.check(resp, err); err != nil {
		return 0, err
	}
	return out.Count, nil
}

// List returns snapshots of all live sessions.
func (c *Client) List(ctx context.Context) ([]SessionInfo, error) {
	var out listResponse
	resp, err := c.request(ctx).SetResult(&out).Get("/sessions")
	if err := c.check(resp, err); err != nil {
		return nil, err
	}
	return out.Sessions, nil
}

// Get returns a snapshot of one session.
func (c *Client) Get(ctx context.Context, id string) (SessionInfo, error) {
	var out SessionInfo
	resp, err := c.request(ctx).SetResult(&out).Get("/sessions/" + id)
	if err := c.check(resp, err); err != nil {
		return SessionInfo{}, err
	}
	return out, nil
}

// Scrollback returns the session's buffered recent output.
func (c *Client) Scrollback(ctx context.Context, id string) (string, error) {
	var out scrollbackResponse
	resp, err := c.request(ctx).SetResult(&out).Get("/sessions/" + id + "/scrollback")
	if err := c.check(resp, err); err != nil {
		return "", err
	}
	return out.Data, nil
}

// Healthy reports whether the server answers its health endpoint.
func (c *Client) Healthy(ctx context.Context) error {
	resp, err := c.request(ctx).Get("/health")
	return c.check(resp, err)
}

func (c *Client) request(ctx context.Context) *resty.Request {
	return c.resty.R().SetContext(ctx).SetError(&APIError{})
}

// check folds transport errors and non-2xx statuses into one error
// return.
func (c *Client) check(resp *resty.Response, err error) error {
	if err != nil {
		return fmt.Errorf("termbridge: request failed: %w", err)
	}
	if resp.IsError() {
		apiErr, ok := resp.Error().(*APIError)
		if !ok || apiErr.Message == "" {
			apiErr = &APIError{Message: resp.Status()}
		}
		apiErr.Status = resp.StatusCode()
		return apiErr
	}
	return nil
}
