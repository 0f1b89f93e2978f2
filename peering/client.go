// Package peering wraps the node-to-node HTTP calls. Every outbound request
// carries a deadline; an unreachable or non-200 peer is reported as
// ErrPeerUnreachable so callers can treat it like an empty answer.
package peering

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrPeerUnreachable covers timeouts, transport failures and non-200
// responses. Callers normally degrade to "no candidate" on it.
var ErrPeerUnreachable = errors.New("peering: peer unreachable")

// DefaultTimeout bounds a single node-to-node request.
const DefaultTimeout = time.Second

// Client issues GETs and form POSTs against fleet members.
type Client struct {
	http    *http.Client
	timeout time.Duration
}

// NewClient returns a client with the given per-request timeout;
// zero selects DefaultTimeout.
func NewClient(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		http:    &http.Client{},
		timeout: timeout,
	}
}

// Get requests http://<addr><path>?<query> and returns the response body.
// An empty body with status 200 returns (nil, nil).
func (c *Client) Get(ctx context.Context, addr, path string, query url.Values) ([]byte, error) {
	target := "http://" + addr + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("peering: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	return c.do(req)
}

// PostForm posts url-encoded form data to http://<addr><path> and returns
// the response body.
func (c *Client) PostForm(ctx context.Context, addr, path string, form url.Values) ([]byte, error) {
	target := "http://" + addr + path

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("peering: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	return c.do(req)
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	res, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPeerUnreachable, err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s returned %d", ErrPeerUnreachable, req.URL.Host, res.StatusCode)
	}

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrPeerUnreachable, err)
	}
	if len(body) == 0 {
		return nil, nil
	}
	return body, nil
}
