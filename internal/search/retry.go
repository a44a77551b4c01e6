package search

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/rs/zerolog/log"
)

// retryableError marks a failure worth another attempt.
type retryableError struct{ err error }

func (e *retryableError) Error() string { return e.err.Error() }
func (e *retryableError) Unwrap() error { return e.err }

func retryable(err error) error { return &retryableError{err: err} }

func isRetryable(err error) bool {
	var re *retryableError
	return errors.As(err, &re)
}

// backoffDelay returns base * 2^attempt plus up to one base of jitter.
func backoffDelay(base time.Duration, attempt int) time.Duration {
	if base <= 0 {
		return 0
	}
	d := base << attempt
	return d + time.Duration(rand.Int63n(int64(base)))
}

// withRetry runs fn up to attempts times while it returns retryable errors.
// The final error wraps ErrUpstream.
func withRetry(ctx context.Context, attempts int, base time.Duration, op string, fn func(context.Context) error) error {
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for i := 0; i < attempts; i++ {
		err = fn(ctx)
		if err == nil {
			return nil
		}
		if !isRetryable(err) || i == attempts-1 {
			break
		}
		wait := backoffDelay(base, i)
		log.Warn().Err(err).Str("op", op).Int("attempt", i+1).Dur("retry_in", wait).Msg("search attempt failed")
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", ErrUpstream, ctx.Err())
		case <-time.After(wait):
		}
	}
	return fmt.Errorf("%w: %s: %v", ErrUpstream, op, err)
}
