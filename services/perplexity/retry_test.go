// Copyright (C) 2026 Openplexity Contributors (maintainers@openplexity.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package perplexity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestRetryPolicy_BackoffBounds verifies backoff grows by the
// multiplier and never exceeds the cap.
func TestRetryPolicy_BackoffBounds(t *testing.T) {
	p := RetryPolicy{
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     time.Second,
		Multiplier:     2,
	}

	assert.Equal(t, time.Duration(0), p.Backoff(0))
	assert.Equal(t, 100*time.Millisecond, p.Backoff(1))
	assert.Equal(t, 200*time.Millisecond, p.Backoff(2))
	assert.Equal(t, 400*time.Millisecond, p.Backoff(3))
	assert.Equal(t, 800*time.Millisecond, p.Backoff(4))
	assert.Equal(t, time.Second, p.Backoff(5))
	assert.Equal(t, time.Second, p.Backoff(50))
}

// TestRetryPolicy_JitterStaysInRange verifies jittered delays land
// in [d*(1-jitter), d].
func TestRetryPolicy_JitterStaysInRange(t *testing.T) {
	p := RetryPolicy{
		InitialBackoff: 100 * time.Millisecond,
		Multiplier:     1,
		Jitter:         0.5,
	}

	for i := 0; i < 100; i++ {
		d := p.Backoff(1)
		assert.GreaterOrEqual(t, d, 50*time.Millisecond)
		assert.LessOrEqual(t, d, 100*time.Millisecond)
	}
}

// TestRetryPolicy_DoSucceedsAfterTransientFailures verifies Do keeps
// trying retryable errors up to the attempt budget.
func TestRetryPolicy_DoSucceedsAfterTransientFailures(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 3}

	calls := 0
	err := p.Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return NewError(KindDisconnected, "transient")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

// TestRetryPolicy_DoStopsOnNonRetryable verifies permanent failures
// stop immediately.
func TestRetryPolicy_DoStopsOnNonRetryable(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 5}

	calls := 0
	err := p.Do(context.Background(), func(context.Context) error {
		calls++
		return NewError(KindAuth, "bad cookies")
	})

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAuth))
	assert.Equal(t, 1, calls)
}

// TestRetryPolicy_DoExhaustsAttempts verifies the last error
// surfaces when the budget runs out.
func TestRetryPolicy_DoExhaustsAttempts(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 2}

	calls := 0
	err := p.Do(context.Background(), func(context.Context) error {
		calls++
		return NewError(KindDisconnected, "always down")
	})

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDisconnected))
	assert.Equal(t, 2, calls)
}

// TestRetryPolicy_DoHonorsCancellation verifies a canceled context
// stops the backoff wait.
func TestRetryPolicy_DoHonorsCancellation(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 10, InitialBackoff: time.Minute, Multiplier: 1}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	err := p.Do(ctx, func(context.Context) error {
		return NewError(KindDisconnected, "down")
	})

	require.Error(t, err)
	assert.Less(t, time.Since(start), 10*time.Second, "must not sit out the full backoff")
}

// TestDefaultRetryable verifies the error kind classification.
func TestDefaultRetryable(t *testing.T) {
	assert.True(t, DefaultRetryable(NewError(KindDisconnected, "x")))
	assert.True(t, DefaultRetryable(errors.New("plain network error")))

	assert.False(t, DefaultRetryable(NewError(KindAuth, "x")))
	assert.False(t, DefaultRetryable(NewError(KindValidation, "x")))
	assert.False(t, DefaultRetryable(NewError(KindProtocol, "x")))
	assert.False(t, DefaultRetryable(NewError(KindNotFound, "x")))
	assert.False(t, DefaultRetryable(NewError(KindNoContinuity, "x")))
}

// TestNoRetry verifies the single-shot policy.
func TestNoRetry(t *testing.T) {
	calls := 0
	err := NoRetry().Do(context.Background(), func(context.Context) error {
		calls++
		return NewError(KindDisconnected, "down")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}
