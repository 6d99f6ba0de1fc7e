// Copyright (C) 2026 Openplexity Contributors (maintainers@openplexity.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ux

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildChain constructs a valid hash chain over the given contents.
func buildChain(t *testing.T, contents []string) []ChainEvent {
	t.Helper()
	computer := NewSHA256HashComputer()

	events := make([]ChainEvent, len(contents))
	prevHash := ""
	for i, content := range contents {
		createdAt := int64(1735657200000 + i)
		hash := computer.ComputeEventHash(content, createdAt, prevHash)
		events[i] = ChainEvent{
			Type:      "partial",
			Content:   content,
			CreatedAt: createdAt,
			Hash:      hash,
			PrevHash:  prevHash,
		}
		prevHash = hash
	}
	return events
}

// TestChainVerifier_ValidChain verifies an intact chain passes.
func TestChainVerifier_ValidChain(t *testing.T) {
	events := buildChain(t, []string{"alpha", "beta", "gamma"})

	result := NewFullChainVerifier().Verify(events)

	assert.True(t, result.Valid)
	assert.Equal(t, 3, result.ChainLength)
	assert.Equal(t, -1, result.InvalidEventIndex)
	assert.Equal(t, events[2].Hash, result.FinalHash)
}

// TestChainVerifier_EmptyChain verifies an empty chain is valid.
func TestChainVerifier_EmptyChain(t *testing.T) {
	result := NewFullChainVerifier().Verify(nil)
	assert.True(t, result.Valid)
	assert.Equal(t, 0, result.ChainLength)
}

// TestChainVerifier_TamperedContent verifies a modified event is
// located by index.
func TestChainVerifier_TamperedContent(t *testing.T) {
	events := buildChain(t, []string{"alpha", "beta", "gamma"})
	events[1].Content = "tampered"

	result := NewFullChainVerifier().Verify(events)

	require.False(t, result.Valid)
	assert.Equal(t, 1, result.InvalidEventIndex)
	assert.Contains(t, result.ErrorMessage, "hash mismatch")
}

// TestChainVerifier_BrokenLink verifies a PrevHash mismatch is
// detected.
func TestChainVerifier_BrokenLink(t *testing.T) {
	events := buildChain(t, []string{"alpha", "beta", "gamma"})
	events[2].PrevHash = events[0].Hash

	result := NewFullChainVerifier().Verify(events)

	require.False(t, result.Valid)
	assert.Equal(t, 2, result.InvalidEventIndex)
	assert.Contains(t, result.ErrorMessage, "chain broken")
}

// TestChainVerifier_FirstEventPrevHash verifies the chain must start
// from an empty PrevHash.
func TestChainVerifier_FirstEventPrevHash(t *testing.T) {
	events := buildChain(t, []string{"alpha"})
	events[0].PrevHash = "bogus"

	result := NewFullChainVerifier().Verify(events)

	require.False(t, result.Valid)
	assert.Equal(t, 0, result.InvalidEventIndex)
}

// TestSHA256HashComputer_Deterministic verifies hash computation is
// stable and sensitive to every input.
func TestSHA256HashComputer_Deterministic(t *testing.T) {
	computer := NewSHA256HashComputer()

	a := computer.ComputeEventHash("content", 1000, "prev")
	b := computer.ComputeEventHash("content", 1000, "prev")
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)

	assert.NotEqual(t, a, computer.ComputeEventHash("content2", 1000, "prev"))
	assert.NotEqual(t, a, computer.ComputeEventHash("content", 1001, "prev"))
	assert.NotEqual(t, a, computer.ComputeEventHash("content", 1000, "prev2"))
}

// TestSHA256HashComputer_DelimiterPreventsCollisions verifies field
// boundaries are unambiguous.
func TestSHA256HashComputer_DelimiterPreventsCollisions(t *testing.T) {
	computer := NewSHA256HashComputer()
	a := computer.ComputeEventHash("abc", 1, "23")
	b := computer.ComputeEventHash("abc1", 2, "3")
	assert.NotEqual(t, a, b)
}

// TestFormatVerification verifies display formatting for both
// outcomes.
func TestFormatVerification(t *testing.T) {
	valid := &ChainVerificationResult{Valid: true, ChainLength: 5, FinalHash: "0123456789abcdef"}
	assert.Contains(t, FormatVerification(valid), "chain verified: 5 events")

	invalid := &ChainVerificationResult{Valid: false, ErrorMessage: "hash mismatch at event 2"}
	assert.Contains(t, FormatVerification(invalid), "chain INVALID")
}
