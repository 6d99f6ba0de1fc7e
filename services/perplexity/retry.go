// Copyright (C) 2026 Openplexity Contributors (maintainers@openplexity.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package perplexity

import (
	"context"
	"math/rand"
	"time"
)

// =============================================================================
// RetryPolicy
// =============================================================================

// RetryPolicy is an explicit, caller-owned description of how to
// repeat a failed operation.
//
// The streaming core never retries on its own: a disconnect surfaces
// as an error with partials intact, and the caller decides whether to
// start a fresh exchange. Components that do retry (the webhook
// analyzer, the CLI) hold a RetryPolicy value and run operations
// through Do, so retry behavior is visible in one place per caller
// instead of buried across the stack.
//
// # Thread Safety
//
// RetryPolicy is an immutable value; share and copy freely.
type RetryPolicy struct {
	// MaxAttempts is the total number of tries, including the first.
	// Values below 1 behave as 1.
	MaxAttempts int

	// InitialBackoff is the delay before the second attempt.
	InitialBackoff time.Duration

	// MaxBackoff caps the delay between attempts.
	MaxBackoff time.Duration

	// Multiplier grows the delay after each attempt. Values below 1
	// behave as 1 (constant backoff).
	Multiplier float64

	// Jitter is the fraction of the delay randomized away, in
	// [0, 1). 0.2 means each delay is drawn from [0.8d, d].
	Jitter float64

	// Retryable decides whether an error is worth another attempt.
	// Nil means DefaultRetryable.
	Retryable func(error) bool
}

// DefaultRetryPolicy returns the policy used when callers have no
// specific requirements: 3 attempts, 500ms initial backoff doubling
// up to 8s, 20% jitter.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    3,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     8 * time.Second,
		Multiplier:     2,
		Jitter:         0.2,
	}
}

// NoRetry returns a policy that runs the operation exactly once.
func NoRetry() RetryPolicy {
	return RetryPolicy{MaxAttempts: 1}
}

// DefaultRetryable retries disconnects and unclassified failures.
// Auth, validation, protocol, and not-found errors never improve on
// retry, and continuity absence is a property of the result.
func DefaultRetryable(err error) bool {
	switch KindOf(err) {
	case KindAuth, KindValidation, KindProtocol, KindNotFound, KindNoContinuity, KindDecode:
		return false
	}
	return true
}

// Backoff returns the delay before the given attempt. Attempt 0 is
// the first try and has no delay.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}

	mult := p.Multiplier
	if mult < 1 {
		mult = 1
	}

	d := float64(p.InitialBackoff)
	for i := 1; i < attempt; i++ {
		d *= mult
		if p.MaxBackoff > 0 && d >= float64(p.MaxBackoff) {
			d = float64(p.MaxBackoff)
			break
		}
	}
	if p.MaxBackoff > 0 && d > float64(p.MaxBackoff) {
		d = float64(p.MaxBackoff)
	}

	if p.Jitter > 0 {
		d -= d * p.Jitter * rand.Float64()
	}
	return time.Duration(d)
}

// Do runs op until it succeeds, the attempts are exhausted, the
// error is not retryable, or the context is canceled. Returns the
// last error observed.
func (p RetryPolicy) Do(ctx context.Context, op func(context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	retryable := p.Retryable
	if retryable == nil {
		retryable = DefaultRetryable
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if delay := p.Backoff(attempt); delay > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}

		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return lastErr
		}
		if !retryable(lastErr) {
			return lastErr
		}
	}
	return lastErr
}
