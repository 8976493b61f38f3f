package core

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"github.com/cockroachdb/errors"
)

// RetryPolicy bounds retries of a chunk commit.
type RetryPolicy struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	BackoffFactor  float64
	Jitter         bool

	// Retryable classifies errors; IsTransient when nil.
	Retryable func(error) bool
}

// DefaultRetryPolicy retries transient store errors three times.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:     3,
		InitialBackoff: 200 * time.Millisecond,
		MaxBackoff:     5 * time.Second,
		BackoffFactor:  2.0,
		Jitter:         true,
	}
}

// NoRetry runs the operation exactly once.
func NoRetry() RetryPolicy {
	return RetryPolicy{}
}

// RetryObserver is told about every failed attempt that will be retried.
type RetryObserver func(attempt int, backoff time.Duration, err error)

// Retry runs fn until it succeeds, returns a non-retryable error, the
// policy is exhausted or ctx is done.
func Retry(ctx context.Context, policy RetryPolicy, observe RetryObserver, fn func(ctx context.Context) error) error {
	retryable := policy.Retryable
	if retryable == nil {
		retryable = IsTransient
	}

	var lastErr error
	for attempt := 0; attempt <= policy.MaxRetries; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if !retryable(err) || attempt == policy.MaxRetries {
			break
		}

		backoff := policy.backoff(attempt)
		if observe != nil {
			observe(attempt+1, backoff, err)
		}

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return errors.WithSecondaryError(errors.Wrap(ctx.Err(), "retry cancelled"), lastErr)
		case <-timer.C:
		}
	}

	if policy.MaxRetries > 0 && retryable(lastErr) {
		return errors.Wrapf(lastErr, "gave up after %d retries", policy.MaxRetries)
	}
	return lastErr
}

func (p RetryPolicy) backoff(attempt int) time.Duration {
	factor := p.BackoffFactor
	if factor < 1 {
		factor = 1
	}
	d := float64(p.InitialBackoff) * math.Pow(factor, float64(attempt))
	if p.MaxBackoff > 0 && d > float64(p.MaxBackoff) {
		d = float64(p.MaxBackoff)
	}
	if p.Jitter {
		d += d * 0.1 * (2*rand.Float64() - 1)
	}
	return time.Duration(d)
}
