// Copyright (c) 2024, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package resilience

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/pkg/errors"
)

const (
	MaxRetries     = 3
	InitialBackoff = 100 * time.Millisecond
	MaxBackoff     = 2 * time.Second
)

// ErrCircuitOpen is returned instead of calling an upstream that keeps failing
var ErrCircuitOpen = errors.New("circuit breaker open")

// CircuitBreaker implements a simple circuit breaker pattern
type CircuitBreaker struct {
	mutex        sync.Mutex
	failures     int
	lastFailure  time.Time
	maxFailures  int
	resetTimeout time.Duration
	now          func() time.Time
}

func NewCircuitBreaker(maxFailures int, resetTimeout time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		maxFailures:  maxFailures,
		resetTimeout: resetTimeout,
		now:          time.Now,
	}
}

func (cb *CircuitBreaker) IsOpen() bool {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	if cb.failures < cb.maxFailures {
		return false
	}
	if cb.now().Sub(cb.lastFailure) > cb.resetTimeout {
		// half open: let the next call through
		cb.failures = 0
		return false
	}
	return true
}

func (cb *CircuitBreaker) RecordFailure() {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	cb.failures++
	cb.lastFailure = cb.now()
}

func (cb *CircuitBreaker) RecordSuccess() {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	cb.failures = 0
}

// Do runs fn unless the breaker is open and records the outcome. Permanent errors
// and the caller's own cancellation or deadline are not upstream failures.
func (cb *CircuitBreaker) Do(fn func() error) error {
	if cb.IsOpen() {
		return ErrCircuitOpen
	}
	if err := fn(); err != nil {
		if !IsPermanent(err) && !isContextError(err) {
			cb.RecordFailure()
		}
		return err
	}
	cb.RecordSuccess()
	return nil
}

func isContextError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

type permanentError struct {
	err error
}

func (p *permanentError) Error() string { return p.err.Error() }

func (p *permanentError) Unwrap() error { return p.err }

// Permanent marks err as not worth retrying, e.g. a 4xx from an upstream API
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// Backoff configures RetryWithBackoff
type Backoff struct {
	Attempts int
	Initial  time.Duration
	Max      time.Duration
}

// DefaultBackoff is used by RetryWithBackoff
var DefaultBackoff = Backoff{Attempts: MaxRetries, Initial: InitialBackoff, Max: MaxBackoff}

// RetryWithBackoff implements exponential backoff retry logic
func RetryWithBackoff(ctx context.Context, fn func() error) error {
	return DefaultBackoff.Retry(ctx, fn)
}

// Retry calls fn until it succeeds, returns a permanent error or runs out of attempts
func (b Backoff) Retry(ctx context.Context, fn func() error) error {
	var err error
	backoff := b.Initial

	for i := 0; i < b.Attempts; i++ {
		if err = fn(); err == nil {
			return nil
		}
		if IsPermanent(err) {
			return err
		}
		if i == b.Attempts-1 {
			break
		}

		// Check if context is cancelled before sleeping
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
			// Exponential backoff with jitter
			jitter := time.Duration(float64(backoff) * (0.5 + rand.Float64()))
			backoff *= 2
			if backoff > b.Max {
				backoff = b.Max
			}
			backoff += jitter
		}
	}

	return fmt.Errorf("failed after %d retries: %w", b.Attempts, err)
}
