// Copyright (C) 2026 Openplexity Contributors (maintainers@openplexity.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// This file defines integrity verification types for hash chain
// validation of relayed search streams.
//
// Hash Chain Design:
//
//	Each relayed event carries a Hash computed from its content and a
//	PrevHash linking to the previous event:
//
//	Event[0] → Event[1] → Event[2] → ... → Event[N]
//
// If any event is modified in transit or storage, its hash changes,
// breaking the chain. The gateway computes hashes when it relays a
// stream; clients recompute them to detect tampering.
package ux

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
)

// secureHashEqual performs constant-time comparison of two hash
// strings. Prevents timing attacks that reveal how many leading
// characters of a hash are correct.
func secureHashEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// =============================================================================
// Types
// =============================================================================

// ChainEvent is the minimal shape a relayed stream event needs for
// chain verification.
//
// # Fields
//
//   - Type: Event type label ("status", "partial", "final", ...)
//   - Content: The event payload that was hashed
//   - CreatedAt: Unix milliseconds when the event was relayed
//   - Hash: SHA-256 over content, timestamp, and PrevHash
//   - PrevHash: Hash of the previous event. Empty for the first event.
type ChainEvent struct {
	Type      string `json:"type"`
	Content   string `json:"content"`
	CreatedAt int64  `json:"created_at"`
	Hash      string `json:"hash"`
	PrevHash  string `json:"prev_hash"`
}

// HashComputer computes event and content hashes.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use.
type HashComputer interface {
	// ComputeEventHash computes the chained hash of one event.
	ComputeEventHash(content string, createdAt int64, prevHash string) string

	// ComputeContentHash computes a plain content hash.
	ComputeContentHash(content string) string
}

// ChainVerifier verifies a hash chain over relayed stream events.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use.
type ChainVerifier interface {
	// Verify walks the chain and reports the first break, if any.
	Verify(events []ChainEvent) *ChainVerificationResult
}

// ChainVerificationResult contains detailed results from chain
// verification.
//
// # Fields
//
//   - Valid: Whether the entire chain is valid
//   - ChainLength: Number of events verified
//   - FinalHash: The hash of the last event in the chain
//   - InvalidEventIndex: Index of first invalid event (-1 if all valid)
//   - ExpectedHash: What the hash should have been (if invalid)
//   - ActualHash: What the hash actually was (if invalid)
//   - ErrorMessage: Human-readable error description
//
// # Thread Safety
//
// Immutable after creation. Safe for concurrent read access.
type ChainVerificationResult struct {
	Valid             bool   `json:"valid"`
	ChainLength       int    `json:"chain_length"`
	FinalHash         string `json:"final_hash,omitempty"`
	InvalidEventIndex int    `json:"invalid_event_index"`
	ExpectedHash      string `json:"expected_hash,omitempty"`
	ActualHash        string `json:"actual_hash,omitempty"`
	ErrorMessage      string `json:"error_message,omitempty"`
}

// fullChainVerifier verifies chains by recomputing all hashes.
type fullChainVerifier struct {
	hashComputer HashComputer
}

// sha256HashComputer is the production HashComputer. Stateless.
type sha256HashComputer struct{}

var (
	_ ChainVerifier = (*fullChainVerifier)(nil)
	_ HashComputer  = (*sha256HashComputer)(nil)
)

// =============================================================================
// Constructors
// =============================================================================

// NewFullChainVerifier creates a verifier that recomputes every hash.
func NewFullChainVerifier() ChainVerifier {
	return &fullChainVerifier{hashComputer: NewSHA256HashComputer()}
}

// NewSHA256HashComputer creates the standard SHA-256 hash computer.
func NewSHA256HashComputer() HashComputer {
	return &sha256HashComputer{}
}

// =============================================================================
// fullChainVerifier
// =============================================================================

// Verify fully verifies the chain by recomputing all hashes.
//
// # Description
//
// Performs complete verification by:
//  1. Checking the first event has an empty PrevHash
//  2. Verifying each event's PrevHash matches the previous Hash
//  3. Recomputing each event's hash from content
//  4. Verifying the computed hash matches the stored Hash
//
// # Assumptions
//
//   - Events are in the order they were relayed
func (v *fullChainVerifier) Verify(events []ChainEvent) *ChainVerificationResult {
	result := &ChainVerificationResult{
		Valid:             true,
		ChainLength:       len(events),
		InvalidEventIndex: -1,
	}

	if len(events) == 0 {
		return result
	}

	if events[0].PrevHash != "" {
		result.Valid = false
		result.InvalidEventIndex = 0
		result.ActualHash = events[0].PrevHash
		result.ErrorMessage = "first event should have empty PrevHash"
		return result
	}

	prevHash := ""
	for i, event := range events {
		if !secureHashEqual(event.PrevHash, prevHash) {
			result.Valid = false
			result.InvalidEventIndex = i
			result.ExpectedHash = prevHash
			result.ActualHash = event.PrevHash
			result.ErrorMessage = fmt.Sprintf(
				"chain broken at event %d: expected PrevHash %s, got %s",
				i, truncateHash(prevHash), truncateHash(event.PrevHash),
			)
			return result
		}

		computedHash := v.hashComputer.ComputeEventHash(
			event.Content, event.CreatedAt, event.PrevHash,
		)
		if !secureHashEqual(computedHash, event.Hash) {
			result.Valid = false
			result.InvalidEventIndex = i
			result.ExpectedHash = computedHash
			result.ActualHash = event.Hash
			result.ErrorMessage = fmt.Sprintf(
				"hash mismatch at event %d: computed %s, stored %s (content may have been modified)",
				i, truncateHash(computedHash), truncateHash(event.Hash),
			)
			return result
		}

		prevHash = event.Hash
	}

	result.FinalHash = events[len(events)-1].Hash
	return result
}

// =============================================================================
// sha256HashComputer
// =============================================================================

// ComputeEventHash computes SHA256(Content || CreatedAt || PrevHash).
//
// A null byte delimiter prevents collision attacks where different
// field splits produce the same concatenated string.
func (c *sha256HashComputer) ComputeEventHash(content string, createdAt int64, prevHash string) string {
	data := fmt.Sprintf("%s\x00%d\x00%s", content, createdAt, prevHash)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}

// ComputeContentHash computes the SHA-256 hash of content.
func (c *sha256HashComputer) ComputeContentHash(content string) string {
	hash := sha256.Sum256([]byte(content))
	return hex.EncodeToString(hash[:])
}

// =============================================================================
// Display helpers
// =============================================================================

// FormatVerification renders a verification result for display.
func FormatVerification(result *ChainVerificationResult) string {
	if result.Valid {
		return fmt.Sprintf("chain verified: %d events, final hash %s",
			result.ChainLength, truncateHash(result.FinalHash))
	}
	return fmt.Sprintf("chain INVALID: %s", result.ErrorMessage)
}

// truncateHash returns a truncated hash for display in error messages.
func truncateHash(hash string) string {
	if len(hash) <= 12 {
		return hash
	}
	return hash[:12] + "…"
}
