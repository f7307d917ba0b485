// Package endpoint defines the request/response contract shared by every
// OAuth2 grant and the loops that drive it against an HTTP capable client.
package endpoint

import (
	"context"
	"net/http"
	"net/url"
	"time"
)

// Request is a transport agnostic HTTP request rendered by an endpoint
type Request struct {
	Method string
	URL    *url.URL
	Header http.Header
	Body   []byte
}

// NewRequest creates a request with an initialized header map
func NewRequest(method string, u *url.URL) *Request {
	return &Request{
		Method: method,
		URL:    u,
		Header: make(http.Header),
	}
}

// NewFormRequest creates a POST request carrying an urlencoded form body
func NewFormRequest(u *url.URL, form Params) *Request {
	req := NewRequest(http.MethodPost, u)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.Body = []byte(form.Encode())
	return req
}

// Response is the raw response handed back by a Client
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// IsSuccess reports whether the status code is in the 2xx range
func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Client is the HTTP capability injected into every flow
type Client interface {
	// Respond sends the request and returns the raw response
	Respond(ctx context.Context, req *Request) (*Response, error)
}

// ClientFunc adapts a function to the Client interface
type ClientFunc func(ctx context.Context, req *Request) (*Response, error)

// Respond implements Client
func (f ClientFunc) Respond(ctx context.Context, req *Request) (*Response, error) {
	return f(ctx, req)
}

// Endpoint renders one request and parses its response.
// Implementations must be pure functions of their explicit inputs.
type Endpoint[O any] interface {
	// RenderRequest builds the outgoing request
	RenderRequest() (*Request, error)

	// ParseResponse turns the raw response into the endpoint output.
	// A successfully parsed protocol error body is returned as a typed
	// error value, malformed input as *ParseError.
	ParseResponse(resp *Response) (O, error)
}

// RetryContext carries the loop progress into a retryable endpoint.
// It is owned by the loop so the endpoint itself holds no mutable state.
type RetryContext struct {
	// Attempt is the zero based index of the attempt being rendered or parsed
	Attempt int

	// Elapsed is the total time spent waiting between attempts so far
	Elapsed time.Duration
}

// Outcome is the result of parsing a retryable response: either the final
// output or a recognized reason to try again.
type Outcome[O, R any] struct {
	output O
	reason R
	retry  bool
}

// Done wraps a final output
func Done[O, R any](output O) Outcome[O, R] {
	return Outcome[O, R]{output: output}
}

// Retry wraps a recognized retry signal
func Retry[O, R any](reason R) Outcome[O, R] {
	return Outcome[O, R]{reason: reason, retry: true}
}

// Output returns the final output and whether the outcome is final
func (o Outcome[O, R]) Output() (O, bool) {
	return o.output, !o.retry
}

// Reason returns the retry reason and whether the outcome asks for a retry
func (o Outcome[O, R]) Reason() (R, bool) {
	return o.reason, o.retry
}

// Retryable is an endpoint used where the protocol defines polling
type Retryable[O, R any] interface {
	// RenderRequest builds the outgoing request for the given attempt
	RenderRequest(rc RetryContext) (*Request, error)

	// ParseResponse returns either the final output or a retry reason
	ParseResponse(resp *Response, rc RetryContext) (Outcome[O, R], error)

	// NextRetryIn computes the delay before the next attempt
	NextRetryIn(rc RetryContext) time.Duration

	// MaxRetryCount bounds the number of attempts
	MaxRetryCount() int
}
