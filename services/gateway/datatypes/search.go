// Copyright (C) 2026 Openplexity Contributors (maintainers@openplexity.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package datatypes provides request and response types for the
// gateway service.
//
// This file contains the search endpoint types. For session and
// webhook types, see session.go and webhook.go.
package datatypes

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/openplexity/openplexity/services/perplexity"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// MaxQueryBytes is the maximum size of a single query string.
	// Oversized payloads are rejected before reaching the upstream.
	MaxQueryBytes = 32 * 1024 // 32KB

	// MaxAttachments is the maximum number of attachment URLs per
	// request.
	MaxAttachments = 10
)

// =============================================================================
// Shared Validator Instance
// =============================================================================

// searchValidate is the validator instance for gateway datatypes.
// Initialized in init() with custom validators.
var searchValidate *validator.Validate

func init() {
	searchValidate = validator.New()
	_ = searchValidate.RegisterValidation("maxbytes", validateMaxBytes)
}

// validateMaxBytes checks byte length, not rune count, so multi-byte
// payloads cannot slip past the limit.
func validateMaxBytes(fl validator.FieldLevel) bool {
	return len(fl.Field().String()) <= MaxQueryBytes
}

// =============================================================================
// Search Request Types
// =============================================================================

// SearchRequest represents a search request body.
//
// # Description
//
// SearchRequest carries one question plus the knobs that shape how
// the upstream answers it. It is shared by POST /api/search (blocking)
// and POST /api/search/stream (SSE relay). Every request includes a
// unique ID and timestamp for audit trails and log correlation.
//
// # Fields
//
//   - RequestID: Unique identifier for this request (UUID v4).
//     Generated server-side when absent.
//   - Timestamp: Unix milliseconds (UTC) when the request was created.
//     Generated server-side when absent.
//   - Query: Required. The question, at most 32KB.
//   - Mode: Search mode (auto, pro, reasoning, deep research, deep lab).
//     Empty means auto.
//   - Model: Model preference within the mode.
//   - SearchSources: Source categories (web, scholar, social, edgar).
//   - Profile: Query profile to expand the question with.
//   - Space: Space name or UUID to scope the search to.
//   - Incognito: When true, the exchange leaves no upstream history
//     and no continuity is returned.
//   - Attachments: Uploaded file URLs to reference, at most 10.
//   - SessionID: Optional gateway session to thread this request into.
//     The stored conversation context is applied as the follow-up.
//
// # Validation
//
// Uses go-playground/validator:
//   - RequestID: uuid4 when present
//   - Query: required, max 32768 bytes
//   - SearchSources: each element one of web|scholar|social|edgar
//   - Attachments: at most 10 elements, each a URL
type SearchRequest struct {
	RequestID     string   `json:"request_id" validate:"omitempty,uuid4"`
	Timestamp     int64    `json:"timestamp" validate:"gte=0"`
	Query         string   `json:"query" validate:"required,maxbytes"`
	Mode          string   `json:"mode"`
	Model         string   `json:"model"`
	SearchSources []string `json:"search_sources" validate:"omitempty,dive,oneof=web scholar social edgar"`
	Profile       string   `json:"profile"`
	Space         string   `json:"space"`
	Incognito     bool     `json:"incognito"`
	Attachments   []string `json:"attachments" validate:"omitempty,max=10,dive,url"`
	SessionID     string   `json:"session_id" validate:"omitempty,uuid4"`
}

// Validate validates the SearchRequest fields.
func (r *SearchRequest) Validate() error {
	return searchValidate.Struct(r)
}

// EnsureDefaults populates RequestID and Timestamp if the client did
// not provide them.
func (r *SearchRequest) EnsureDefaults() {
	if r.RequestID == "" {
		r.RequestID = uuid.NewString()
	}
	if r.Timestamp == 0 {
		r.Timestamp = time.Now().UnixMilli()
	}
}

// Options converts the request into client search options. The
// follow-up context, when any, is attached by the handler after the
// session lookup.
func (r *SearchRequest) Options() perplexity.SearchOptions {
	return perplexity.SearchOptions{
		Query:       r.Query,
		Mode:        perplexity.Mode(r.Mode),
		Model:       r.Model,
		Sources:     r.SearchSources,
		Profile:     perplexity.Profile(r.Profile),
		Space:       r.Space,
		Incognito:   r.Incognito,
		Attachments: r.Attachments,
	}
}

// =============================================================================
// Search Response Types
// =============================================================================

// SearchResponse represents the blocking search response.
//
// # Fields
//
//   - ResponseID: Unique identifier for this response (UUID v4).
//   - RequestID: Echo of the request ID for correlation.
//   - Timestamp: Unix milliseconds when the response was generated.
//   - SessionID: Gateway session holding the conversation context,
//     when session tracking was requested.
//   - Result: The assembled search result.
//   - ProcessingTimeMs: Time taken to process the request.
type SearchResponse struct {
	ResponseID       string                  `json:"response_id"`
	RequestID        string                  `json:"request_id"`
	Timestamp        int64                   `json:"timestamp"`
	SessionID        string                  `json:"session_id,omitempty"`
	Result           perplexity.SearchResult `json:"result"`
	ProcessingTimeMs int64                   `json:"processing_time_ms"`
}

// NewSearchResponse creates a SearchResponse with generated ID and
// timestamp.
func NewSearchResponse(requestID string, result perplexity.SearchResult) *SearchResponse {
	return &SearchResponse{
		ResponseID: uuid.NewString(),
		RequestID:  requestID,
		Timestamp:  time.Now().UnixMilli(),
		Result:     result,
	}
}

// =============================================================================
// Stream Event Types
// =============================================================================

// StreamEvent is one relayed SSE event.
//
// # Description
//
// The gateway converts upstream search progress into this envelope.
// Each event is assigned an Id, CreatedAt timestamp, and a hash chain
// entry (Hash, PrevHash) so clients can verify the relay was not
// tampered with.
//
// # Fields
//
//   - Id: UUID v4 for ordering and deduplication.
//   - Type: status, partial, sources, related, final, error, done.
//   - Content: Answer text for partial and final events.
//   - Message: Status message for status events.
//   - Sources: Cited sources for sources events.
//   - Related: Follow-up suggestions for related events.
//   - SessionId: Gateway session ID on the done event.
//   - Error: Sanitized error message for error events.
//   - CreatedAt: Unix milliseconds when the event was relayed.
//   - Hash: SHA-256 over content, timestamp, and PrevHash.
//   - PrevHash: Hash of the previous event. Empty for the first.
type StreamEvent struct {
	Id        string              `json:"id,omitempty"`
	Type      string              `json:"type"`
	Content   string              `json:"content,omitempty"`
	Message   string              `json:"message,omitempty"`
	Sources   []perplexity.Source `json:"sources,omitempty"`
	Related   []string            `json:"related,omitempty"`
	SessionId string              `json:"session_id,omitempty"`
	Error     string              `json:"error,omitempty"`
	CreatedAt int64               `json:"created_at,omitempty"`
	Hash      string              `json:"hash,omitempty"`
	PrevHash  string              `json:"prev_hash,omitempty"`
}
