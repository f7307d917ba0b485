package endpoint

import (
	"errors"
	"fmt"
)

// ErrExhausted is matched by every *ExhaustedError
var ErrExhausted = errors.New("retry budget exhausted")

// RenderError indicates a local configuration problem while building a
// request. It is always fatal.
type RenderError struct {
	Err error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("rendering request: %v", e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }

// TransportError wraps a failure reported by the injected Client
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("sending request: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ParseError indicates a response that did not match the expected shape
type ParseError struct {
	StatusCode int
	Body       []byte
	Err        error
}

// NewParseError builds a ParseError for resp
func NewParseError(resp *Response, err error) *ParseError {
	pe := &ParseError{Err: err}
	if resp != nil {
		pe.StatusCode = resp.StatusCode
		pe.Body = resp.Body
	}
	return pe
}

func (e *ParseError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("parsing response: %v", e.Err)
	}
	return fmt.Sprintf("parsing response (status %d): %v", e.StatusCode, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ExhaustedError is returned when a retryable endpoint keeps asking for a
// retry after MaxRetryCount attempts.
type ExhaustedError struct {
	Attempts   int
	LastReason any
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("retry budget exhausted after %d attempts (last reason: %v)", e.Attempts, e.LastReason)
}

// Is makes errors.Is(err, ErrExhausted) match
func (e *ExhaustedError) Is(target error) bool {
	return target == ErrExhausted
}

// protocolError is implemented by successfully parsed protocol failures,
// such as an OAuth2 error body, which must pass through untouched.
type protocolError interface {
	error
	ProtocolErrorCode() string
}

func classifyParseError(resp *Response, err error) error {
	var pe *ParseError
	if errors.As(err, &pe) {
		return err
	}
	var perr protocolError
	if errors.As(err, &perr) {
		return err
	}
	return NewParseError(resp, err)
}
