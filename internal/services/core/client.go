// Copyright (c) 2024, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package core

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/ministryofjustice/hmpps-book-a-prison-visit-ui/internal/buildinfo"
	"github.com/ministryofjustice/hmpps-book-a-prison-visit-ui/internal/config"
)

const DefaultTimeout = 10 * time.Second

var (
	// Global HTTP client pool
	httpClients sync.Map

	ErrNotConfigured = errors.New("api client is not configured")
)

// TokenSource supplies the bearer token sent to an upstream API
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// APIError is a non-2xx response from an upstream API
type APIError struct {
	API        string
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s %s returned %d", e.API, e.Method, e.URL, e.StatusCode)
}

// Temporary reports whether the request may succeed if repeated
func (e *APIError) Temporary() bool {
	return e.StatusCode >= http.StatusInternalServerError || e.StatusCode == http.StatusTooManyRequests
}

// getHTTPClient returns a client with the specified timeout
func getHTTPClient(timeout time.Duration) *http.Client {
	// Use the timeout as the key
	if client, ok := httpClients.Load(timeout); ok {
		return client.(*http.Client)
	}

	client := &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
		Timeout: timeout,
	}

	actual, _ := httpClients.LoadOrStore(timeout, client)
	return actual.(*http.Client)
}

// Client is a JSON REST client for one upstream API
type Client struct {
	name    string
	baseURL string
	http    *http.Client
	tokens  TokenSource
	logger  zerolog.Logger
}

// NewClient creates a client for the API at cfg.URL. tokens may be nil for
// unauthenticated APIs.
func NewClient(name string, cfg config.APIConfig, tokens TokenSource, logger zerolog.Logger) *Client {
	timeout := cfg.Timeout()
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		name:    name,
		baseURL: strings.TrimRight(cfg.URL, "/"),
		http:    getHTTPClient(timeout),
		tokens:  tokens,
		logger:  logger.With().Str("api", name).Logger(),
	}
}

// Name returns the API name used in logs and errors
func (c *Client) Name() string {
	return c.name
}

// DoJSON sends body (if any) as JSON to path and decodes a JSON response into out
// (if any). A non-2xx status is returned as *APIError.
func (c *Client) DoJSON(ctx context.Context, method, path string, body, out interface{}) error {
	if c.baseURL == "" {
		return ErrNotConfigured
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return errors.Wrapf(err, "%s: encode request", c.name)
		}
		reader = bytes.NewReader(payload)
	}

	url := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return errors.Wrapf(err, "%s: build request", c.name)
	}

	buildinfo.AttachUserAgentHeader(req)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if c.tokens != nil {
		token, err := c.tokens.Token(ctx)
		if err != nil {
			return errors.Wrapf(err, "%s: system token", c.name)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Error().Err(err).Str("method", method).Str("url", url).Msg("Request failed")
		return errors.Wrapf(err, "%s: %s %s", c.name, method, url)
	}
	defer resp.Body.Close()

	c.logger.Debug().
		Str("method", method).
		Str("url", url).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("Upstream response")

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrapf(err, "%s: read response", c.name)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{
			API:        c.name,
			Method:     method,
			URL:        url,
			StatusCode: resp.StatusCode,
			Body:       string(respBody),
		}
		c.logger.Warn().Err(apiErr).Msg("Upstream error response")
		return apiErr
	}

	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return errors.Wrapf(err, "%s: decode response", c.name)
	}
	return nil
}
