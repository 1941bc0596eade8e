// Package websearch resolves a free-text query to the first organic web
// result through the Serper search API.
package websearch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultURL is the Serper search endpoint.
const DefaultURL = "https://google.serper.dev/search"

var (
	// ErrQueryRequired is returned for an empty query.
	ErrQueryRequired = errors.New("query is required")

	// ErrMalformedResponse is returned when the upstream body is not a
	// search result document.
	ErrMalformedResponse = errors.New("malformed search response")
)

// StatusError carries a non-2xx upstream status.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("search upstream returned %d", e.StatusCode)
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.httpClient = c }
}

// WithURL points the client at a different endpoint.
func WithURL(u string) Option {
	return func(cl *Client) { cl.url = u }
}

// Client calls the search API with a server-held key.
type Client struct {
	apiKey     string
	url        string
	httpClient *http.Client
}

func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:     apiKey,
		url:        DefaultURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type searchRequest struct {
	Q string `json:"q"`
}

type searchResponse struct {
	Organic *[]struct {
		Link string `json:"link"`
	} `json:"organic"`
}

// FirstLink returns the link of the first organic result, or "" when the
// result list is empty. There is no retry.
func (c *Client) FirstLink(ctx context.Context, query string) (string, error) {
	if query == "" {
		return "", ErrQueryRequired
	}

	payload, err := json.Marshal(searchRequest{Q: query})
	if err != nil {
		return "", fmt.Errorf("encode search request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-KEY", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return "", &StatusError{StatusCode: resp.StatusCode}
	}

	var body searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if body.Organic == nil {
		return "", fmt.Errorf("%w: no organic results field", ErrMalformedResponse)
	}
	if len(*body.Organic) == 0 {
		return "", nil
	}
	return (*body.Organic)[0].Link, nil
}
