// Package deviceflow implements the client side of the OAuth 2.0 Device
// Authorization Grant (RFC 8628)
package deviceflow

import (
	"log/slog"

	"github.com/wrale/oauth2-flows/internal/endpoint"
)

// DefaultMaxRetryCount bounds polling to 360 attempts, which at the
// default 5s interval matches the usual 30 minute device code lifetime
const DefaultMaxRetryCount = 360

// Option configures the device flow
type Option func(*options)

type options struct {
	maxRetryCount int
	sleep         endpoint.Sleeper
	logger        *slog.Logger
}

// WithMaxRetryCount sets the maximum number of token polling attempts.
// Values below one are ignored.
func WithMaxRetryCount(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxRetryCount = n
		}
	}
}

// WithSleeper replaces the wait between polling attempts
func WithSleeper(s endpoint.Sleeper) Option {
	return func(o *options) {
		if s != nil {
			o.sleep = s
		}
	}
}

// WithLogger sets the flow logger
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}
