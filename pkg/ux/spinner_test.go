// Copyright (C) 2026 Openplexity Contributors (maintainers@openplexity.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ux

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func useMachinePersonality(t *testing.T) {
	t.Helper()
	original := GetPersonality()
	SetPersonalityLevel(PersonalityMachine)
	t.Cleanup(func() { SetPersonality(original) })
}

// TestSpinner_StartStopMachineMode verifies the spinner degrades to a
// one-shot progress line without goroutines.
func TestSpinner_StartStopMachineMode(t *testing.T) {
	useMachinePersonality(t)

	s := NewSpinner("working")
	s.Start()
	s.Stop()

	// Stop after Stop must be a no-op
	s.Stop()
}

// TestSpinner_DoubleStart verifies Start is idempotent.
func TestSpinner_DoubleStart(t *testing.T) {
	useMachinePersonality(t)

	s := NewSpinner("working")
	s.Start()
	s.Start()
	s.Stop()
}

// TestWithSpinner_Success verifies the wrapped function's nil error
// propagates.
func TestWithSpinner_Success(t *testing.T) {
	useMachinePersonality(t)

	called := false
	err := WithSpinner("step", func() error {
		called = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, called)
}

// TestWithSpinner_Error verifies the wrapped function's error
// propagates.
func TestWithSpinner_Error(t *testing.T) {
	useMachinePersonality(t)

	wantErr := errors.New("boom")
	err := WithSpinner("step", func() error { return wantErr })
	assert.ErrorIs(t, err, wantErr)
}

// TestSpinner_WithType verifies frame sets exist for all types.
func TestSpinner_WithType(t *testing.T) {
	for _, typ := range []SpinnerType{SpinnerDots, SpinnerSearch, SpinnerPulse} {
		assert.NotEmpty(t, spinnerFrames[typ])
	}
}
