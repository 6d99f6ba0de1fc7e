// Copyright (C) 2026 Openplexity Contributors (maintainers@openplexity.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

import (
	"time"

	"github.com/google/uuid"

	"github.com/openplexity/openplexity/services/perplexity"
)

// =============================================================================
// Session Types
// =============================================================================

// SessionRecord is a persisted gateway conversation session.
//
// # Description
//
// A session pins the upstream continuity tokens between HTTP requests
// so stateless clients can hold a multi-turn conversation. The record
// is stored in the session store under SessionID and refreshed on
// every completed turn.
//
// # Fields
//
//   - SessionID: UUID v4 identifying the session.
//   - CreatedAt: Unix milliseconds when the session was created.
//   - UpdatedAt: Unix milliseconds of the last completed turn.
//   - TurnCount: Number of completed turns.
//   - LastQuery: The most recent query, kept for listing UIs.
//   - Context: Upstream continuity carried to the next turn.
type SessionRecord struct {
	SessionID string                         `json:"session_id" validate:"required,uuid4"`
	CreatedAt int64                          `json:"created_at"`
	UpdatedAt int64                          `json:"updated_at"`
	TurnCount int                            `json:"turn_count"`
	LastQuery string                         `json:"last_query,omitempty"`
	Context   perplexity.ConversationContext `json:"context"`
}

// NewSessionRecord creates an empty session with a fresh ID.
func NewSessionRecord() *SessionRecord {
	now := time.Now().UnixMilli()
	return &SessionRecord{
		SessionID: uuid.NewString(),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Validate validates the SessionRecord fields.
func (s *SessionRecord) Validate() error {
	return searchValidate.Struct(s)
}

// RecordTurn updates the session after a completed exchange.
func (s *SessionRecord) RecordTurn(query string, ctx perplexity.ConversationContext) {
	s.LastQuery = query
	s.Context = ctx
	s.TurnCount++
	s.UpdatedAt = time.Now().UnixMilli()
}

// SessionSummary is the listing view of a session. The continuity
// tokens stay server-side.
type SessionSummary struct {
	SessionID string `json:"session_id"`
	CreatedAt int64  `json:"created_at"`
	UpdatedAt int64  `json:"updated_at"`
	TurnCount int    `json:"turn_count"`
	LastQuery string `json:"last_query,omitempty"`
}

// Summary strips the continuity tokens for list responses.
func (s *SessionRecord) Summary() SessionSummary {
	return SessionSummary{
		SessionID: s.SessionID,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
		TurnCount: s.TurnCount,
		LastQuery: s.LastQuery,
	}
}
