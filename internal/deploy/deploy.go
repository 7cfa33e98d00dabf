// Package deploy triggers the hosting platform's deployment webhook.
package deploy

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/conneroisu/sitecycle/internal/errors"
	"github.com/conneroisu/sitecycle/internal/logging"
)

// Job is the deployment job the hook queued.
type Job struct {
	ID        string `json:"id"`
	State     string `json:"state"`
	CreatedAt int64  `json:"createdAt"`
}

// Created returns CreatedAt, which the platform reports in milliseconds.
func (j Job) Created() time.Time {
	return time.UnixMilli(j.CreatedAt)
}

type response struct {
	Job *Job `json:"job"`
}

// Client posts to a deploy hook URL.
type Client struct {
	hookURL string
	http    *http.Client
	logger  logging.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.http = c
	}
}

// WithLogger sets the client logger.
func WithLogger(l logging.Logger) Option {
	return func(cl *Client) {
		cl.logger = l
	}
}

// NewClient creates a client for hookURL with the given request timeout.
func NewClient(hookURL string, timeout time.Duration, opts ...Option) (*Client, error) {
	if hookURL == "" {
		return nil, errors.NewDeployError(errors.ErrCodeDeployHookUnset, "deploy hook URL is not set", nil)
	}
	c := &Client{
		hookURL: hookURL,
		http:    &http.Client{Timeout: timeout},
		logger:  logging.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.WithComponent("deploy")
	return c, nil
}

// Trigger POSTs to the hook once and returns the queued job. Failures are
// returned, never retried.
func (c *Client) Trigger(ctx context.Context) (*Job, error) {
	target := logging.RedactURL(c.hookURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.hookURL, nil)
	if err != nil {
		return nil, errors.NewDeployError(errors.ErrCodeDeployRequest, "invalid deploy hook URL", err).
			WithContext("url", target)
	}

	c.logger.Debug(ctx, "triggering deploy", "url", target)
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.NewDeployError(errors.ErrCodeDeployRequest, "deploy request failed", err).
			WithContext("url", target)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, errors.NewDeployError(errors.ErrCodeDeployRequest, "failed to read deploy response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errors.NewDeployError(errors.ErrCodeDeployStatus,
			fmt.Sprintf("deploy hook returned %s", resp.Status), nil).
			WithContext("status", resp.StatusCode).
			WithContext("url", target)
	}

	var decoded response
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, errors.NewDeployError(errors.ErrCodeDeployRequest, "invalid deploy response", err)
	}
	if decoded.Job == nil {
		return nil, errors.NewDeployError(errors.ErrCodeDeployRequest, "deploy response has no job", nil)
	}
	return decoded.Job, nil
}
