package endpoint

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Execute renders the endpoint request, sends it through the client and
// parses the response.
func Execute[O any](ctx context.Context, c Client, ep Endpoint[O]) (O, error) {
	var zero O

	req, err := ep.RenderRequest()
	if err != nil {
		return zero, asRenderError(err)
	}

	resp, err := c.Respond(ctx, req)
	if err != nil {
		return zero, &TransportError{Err: err}
	}

	out, err := ep.ParseResponse(resp)
	if err != nil {
		return zero, classifyParseError(resp, err)
	}
	return out, nil
}

// Sleeper waits for d or until ctx is done
type Sleeper func(ctx context.Context, d time.Duration) error

// Sleep is the default Sleeper backed by a timer
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// RetryOption configures ExecuteRetryable
type RetryOption func(*retryConfig)

type retryConfig struct {
	sleep  Sleeper
	notify func(rc RetryContext, reason any, next time.Duration)
	logger *slog.Logger
}

// WithSleeper replaces the timer based wait, mainly for tests
func WithSleeper(s Sleeper) RetryOption {
	return func(c *retryConfig) {
		c.sleep = s
	}
}

// WithNotify registers a callback invoked before every wait
func WithNotify(fn func(rc RetryContext, reason any, next time.Duration)) RetryOption {
	return func(c *retryConfig) {
		c.notify = fn
	}
}

// WithLogger sets the logger used by the loop
func WithLogger(l *slog.Logger) RetryOption {
	return func(c *retryConfig) {
		c.logger = l
	}
}

// ExecuteRetryable drives a retryable endpoint until it yields a final
// output, fails, or exhausts its retry budget. The first attempt is sent
// immediately; every later attempt waits NextRetryIn first. All mutable
// progress lives in the loop, never in the endpoint.
func ExecuteRetryable[O, R any](ctx context.Context, c Client, ep Retryable[O, R], opts ...RetryOption) (O, error) {
	cfg := retryConfig{
		sleep:  Sleep,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	var (
		zero       O
		rc         RetryContext
		lastReason any
	)

	maxAttempts := ep.MaxRetryCount()
	for rc.Attempt = 0; rc.Attempt < maxAttempts; rc.Attempt++ {
		if rc.Attempt > 0 {
			wait := ep.NextRetryIn(rc)
			if cfg.notify != nil {
				cfg.notify(rc, lastReason, wait)
			}
			if err := cfg.sleep(ctx, wait); err != nil {
				return zero, err
			}
			rc.Elapsed += wait
		}

		req, err := ep.RenderRequest(rc)
		if err != nil {
			return zero, asRenderError(err)
		}

		resp, err := c.Respond(ctx, req)
		if err != nil {
			return zero, &TransportError{Err: err}
		}

		outcome, err := ep.ParseResponse(resp, rc)
		if err != nil {
			return zero, classifyParseError(resp, err)
		}

		if out, done := outcome.Output(); done {
			return out, nil
		}

		reason, _ := outcome.Reason()
		lastReason = reason
		cfg.logger.Debug("endpoint asked for retry",
			"attempt", rc.Attempt+1,
			"max_attempts", maxAttempts,
			"reason", reason,
		)
	}

	return zero, &ExhaustedError{Attempts: maxAttempts, LastReason: lastReason}
}

func asRenderError(err error) error {
	var re *RenderError
	if errors.As(err, &re) {
		return err
	}
	return &RenderError{Err: err}
}
