package endpoint

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	// maxResponseSize limits how much of a response body is read (1 MB)
	maxResponseSize = 1 << 20

	// defaultTimeout applies to the client built by DefaultHTTPClient
	defaultTimeout = 10 * time.Second
)

// Doer is satisfied by *http.Client
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// HTTPClient adapts a Doer to the Client interface
type HTTPClient struct {
	doer Doer
}

// NewHTTPClient wraps doer. A nil doer falls back to DefaultHTTPClient.
func NewHTTPClient(doer Doer) *HTTPClient {
	if doer == nil {
		doer = DefaultHTTPClient()
	}
	return &HTTPClient{doer: doer}
}

// DefaultHTTPClient returns an *http.Client with a request timeout
func DefaultHTTPClient() *http.Client {
	return &http.Client{Timeout: defaultTimeout}
}

// Respond implements Client
func (c *HTTPClient) Respond(ctx context.Context, r *Request) (*Response, error) {
	if r == nil || r.URL == nil {
		return nil, errors.New("request URL is required")
	}

	var body io.Reader
	if len(r.Body) > 0 {
		body = bytes.NewReader(r.Body)
	}

	req, err := http.NewRequestWithContext(ctx, r.Method, r.URL.String(), body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	for k, vs := range r.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := c.doer.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       data,
	}, nil
}
