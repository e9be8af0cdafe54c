package api

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// RetryConfig configures retry behavior
type RetryConfig struct {
	MaxAttempts int
	InitialWait time.Duration
	MaxWait     time.Duration
	// Statuses are the HTTP codes treated as transient.
	Statuses []int
}

// DefaultRetryConfig mirrors the exchange's documented throttling behaviour:
// five attempts, 0.8s doubling backoff, retry on 429 and 5xx gateway errors.
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts: 5,
		InitialWait: 800 * time.Millisecond,
		MaxWait:     8 * time.Second,
		Statuses:    []int{429, 500, 502, 503, 504},
	}
}

// Backoff returns the wait before retry number attempt (1-based).
func (rc *RetryConfig) Backoff(attempt int) time.Duration {
	wait := rc.InitialWait
	for i := 1; i < attempt; i++ {
		wait *= 2
		if wait >= rc.MaxWait {
			return rc.MaxWait
		}
	}
	if wait > rc.MaxWait {
		return rc.MaxWait
	}
	return wait
}

// WaitFor is the pause before the retry following a failed attempt: the
// capped backoff, stretched to a longer Retry-After hint up to MaxWait.
func (rc *RetryConfig) WaitFor(attempt int, err error) time.Duration {
	wait := rc.Backoff(attempt)
	var se *StatusError
	if errors.As(err, &se) && se.RetryAfter > wait {
		wait = min(se.RetryAfter, rc.MaxWait)
	}
	return wait
}

// Sleep waits for d or until ctx is done, whichever comes first.
func Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// IsTransient reports whether err is worth another attempt: a network
// failure, a client timeout or one of the configured status codes.
// Cancellation never is.
func (rc *RetryConfig) IsTransient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		for _, s := range rc.Statuses {
			if se.Code == s {
				return true
			}
		}
		return false
	}
	return true
}

// DoWithRetry executes a request, retrying transient failures with capped
// exponential backoff. A Retry-After hint longer than the backoff is honoured
// up to MaxWait. Waiting stops as soon as the request context is done.
func (c *Client) DoWithRetry(req *Request, config *RetryConfig) (*Response, error) {
	if config == nil {
		config = DefaultRetryConfig()
	}

	var lastErr error
	for attempt := 1; attempt <= config.MaxAttempts; attempt++ {
		if err := c.limiter.Wait(req.ctx); err != nil {
			return nil, err
		}

		resp, err := c.Do(req)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if ctxErr := req.ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("request abandoned: %w: %w", ctxErr, err)
		}
		if !config.IsTransient(err) {
			return nil, err
		}
		if attempt == config.MaxAttempts {
			break
		}

		wait := config.WaitFor(attempt, err)
		c.logWarn(req.ctx, "Request failed, retrying", "attempt", attempt, "error", err, "waitTime", wait)
		if err := Sleep(req.ctx, wait); err != nil {
			return nil, fmt.Errorf("request abandoned: %w", err)
		}
	}

	c.logWarn(req.ctx, "All retry attempts failed", "maxAttempts", config.MaxAttempts, "error", lastErr)
	return nil, fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, config.MaxAttempts, lastErr)
}
