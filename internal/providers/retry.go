package providers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sethvargo/go-retry"
)

// StatusError is a non-2xx response from a collaborator API.
type StatusError struct {
	Service string
	Code    int
	Body    string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s returned status %d", e.Service, e.Code)
	}
	return fmt.Sprintf("%s returned status %d: %s", e.Service, e.Code, e.Body)
}

// Temporary reports whether retrying the request could succeed.
func (e *StatusError) Temporary() bool {
	return e.Code == 429 || e.Code >= 500
}

// Retry runs task with Fibonacci backoff. Only errors that ShouldRetry
// accepts are retried; the last error is returned unwrapped.
func Retry(ctx context.Context, maxRetries uint64, base time.Duration, task func(ctx context.Context) error) error {
	if base <= 0 {
		base = 250 * time.Millisecond
	}
	b := retry.WithMaxRetries(maxRetries, retry.NewFibonacci(base))
	return retry.Do(ctx, b, func(ctx context.Context) error {
		err := task(ctx)
		if ShouldRetry(err) {
			return retry.RetryableError(err)
		}
		return err
	})
}

// ShouldRetry treats transport failures and temporary statuses as retryable.
// Cancellation and other status codes are permanent.
func ShouldRetry(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Temporary()
	}
	var permanent *PermanentError
	return !errors.As(err, &permanent)
}

// PermanentError marks a failure that retrying cannot fix, such as an
// undecodable response body.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }

func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent wraps err so Retry gives up immediately.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}
