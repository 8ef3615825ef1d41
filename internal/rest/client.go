// Package rest provides the outbound HTTP primitive used to reach listing services.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultTimeout = 15 * time.Second

// Requester sends a JSON request to path (relative to the requester's base URL) and returns the response body.
type Requester interface {
	Request(ctx context.Context, method, path string, body any, credential string) ([]byte, error)
}

// StatusObserver is told the status code of every response received. Used to feed the response-code tally.
type StatusObserver interface {
	RecordResponse(code int)
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Method string
	URL    string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("rest: %s %s failed status=%d body=%s", e.Method, e.URL, e.Code, e.Body)
}

// Client is an HTTP Requester. No retries are performed.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	// Observer may be nil.
	Observer  StatusObserver
	UserAgent string
}

// NewClient returns a client rooted at baseURL.
func NewClient(baseURL string, observer StatusObserver) *Client {
	return &Client{
		BaseURL:    strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: defaultTimeout},
		Observer:   observer,
		UserAgent:  "discord-stats (https://github.com/BR88C/discord-boilerplate)",
	}
}

// Request sends body as JSON (nil sends no body) with credential as the Authorization header.
func (c *Client) Request(ctx context.Context, method, path string, body any, credential string) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("rest: encode body: %w", err)
		}
		reader = bytes.NewReader(raw)
	}
	url := c.BaseURL + "/" + strings.TrimPrefix(path, "/")
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if credential != "" {
		req.Header.Set("Authorization", credential)
	}
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if c.Observer != nil {
		c.Observer.RecordResponse(resp.StatusCode)
	}
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("rest: read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{Method: method, URL: url, Code: resp.StatusCode, Body: string(b)}
	}
	return b, nil
}
