// Copyright (C) 2026 Openplexity Contributors (maintainers@openplexity.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package perplexity implements an unofficial client for the
// Perplexity AI conversational search API.
//
// The package is organized around a small streaming core:
//
//	HTTP Response Body → ChunkDecoder → StreamEvent → AnswerAccumulator → SearchResult
//
// ChunkDecoder turns raw SSE frames into typed StreamEvents.
// AnswerAccumulator folds events into an in-progress SearchResult.
// StreamSession drives one request/response exchange end to end and
// produces a ConversationContext for follow-up turns. Client is the
// high-level facade wiring credentials, spaces, and profiles together.
//
// Nothing in this package retries or persists. Retry decisions live
// in RetryPolicy values owned by callers; persistence belongs to the
// gateway's session store.
package perplexity

// =============================================================================
// Step Types
// =============================================================================

// StepType tags the kind of pipeline step the upstream reported
// inside a message frame.
//
// The upstream vocabulary is open-ended. Known tags get constants
// below; anything else travels through as-is so new upstream step
// kinds degrade to status events instead of failing the stream.
type StepType string

const (
	// StepSearchWeb reports the engine is querying the web.
	StepSearchWeb StepType = "SEARCH_WEB"

	// StepSearchResults carries the list of retrieved sources.
	StepSearchResults StepType = "SEARCH_RESULTS"

	// StepFinal carries the authoritative answer document.
	StepFinal StepType = "FINAL"
)

// Known reports whether the tag is part of the recognized vocabulary.
func (s StepType) Known() bool {
	switch s {
	case StepSearchWeb, StepSearchResults, StepFinal:
		return true
	}
	return false
}

// =============================================================================
// Event Types
// =============================================================================

// EventType identifies what a StreamEvent carries.
type EventType int

const (
	// EventStatus reports engine progress (searching, reading,
	// unrecognized step kinds). Informational only; accumulators
	// record the latest status but never fold it into the answer.
	EventStatus EventType = iota

	// EventPartialAnswer carries an incremental fragment of answer
	// text. Fragments append in arrival order.
	EventPartialAnswer

	// EventSourceList carries the current complete set of sources.
	// Each occurrence replaces the previous set.
	EventSourceList

	// EventRelatedQueries carries suggested follow-up queries.
	// Each occurrence replaces the previous set.
	EventRelatedQueries

	// EventFinalAnswer carries the authoritative answer document.
	// Terminal: it overrides everything accumulated so far.
	EventFinalAnswer

	// EventError reports a failure. Terminal when it ends the
	// exchange (disconnect, auth); per-frame decode errors leave the
	// stream running.
	EventError

	// EventDone marks the upstream end_of_stream frame. Not a
	// content event; it closes an exchange that is still open.
	EventDone
)

// String returns the stable wire name for the event type.
func (t EventType) String() string {
	switch t {
	case EventStatus:
		return "status"
	case EventPartialAnswer:
		return "partial"
	case EventSourceList:
		return "sources"
	case EventRelatedQueries:
		return "related"
	case EventFinalAnswer:
		return "final"
	case EventError:
		return "error"
	case EventDone:
		return "done"
	default:
		return "unknown"
	}
}

// =============================================================================
// Event Payloads
// =============================================================================

// Source is a single cited document.
type Source struct {
	// Name is the document title.
	Name string `json:"name"`

	// URL is the document location.
	URL string `json:"url"`

	// Snippet is the extract shown alongside the citation.
	Snippet string `json:"snippet,omitempty"`
}

// FinalAnswer is the authoritative answer document carried by a
// FINAL step. The upstream double-encodes it: the step content holds
// a JSON string whose decoded value is this document.
type FinalAnswer struct {
	// Answer is the complete answer text.
	Answer string `json:"answer"`

	// Sources is the final citation set.
	Sources []Source `json:"sources,omitempty"`

	// Related holds suggested follow-up queries.
	Related []string `json:"related,omitempty"`

	// Chunks holds the incremental text fragments that composed the
	// answer, when the upstream includes them.
	Chunks []string `json:"chunks,omitempty"`
}

// StreamEvent is one typed occurrence decoded from the stream.
//
// Exactly the fields implied by Type are populated; the rest stay
// zero. Continuity holds per-frame conversation metadata whenever the
// frame carried it, independent of the event type.
type StreamEvent struct {
	// Type selects which payload fields are meaningful.
	Type EventType

	// Step is the upstream step tag that produced this event.
	// Empty for events synthesized outside a step (frame-level
	// related queries, errors, done).
	Step StepType

	// Message is the status text for EventStatus and the error
	// description for EventError.
	Message string

	// Text is the answer fragment for EventPartialAnswer.
	Text string

	// Sources is the replacement source set for EventSourceList.
	Sources []Source

	// Related is the replacement query set for EventRelatedQueries.
	Related []string

	// Final is the authoritative document for EventFinalAnswer.
	Final *FinalAnswer

	// Err classifies the failure for EventError.
	Err *ClientError

	// Continuity carries conversation metadata seen on the frame.
	Continuity ContinuityMeta
}

// Terminal reports whether the event ends the exchange for
// accumulation purposes. Per-frame decode errors are not terminal.
func (e StreamEvent) Terminal() bool {
	switch e.Type {
	case EventFinalAnswer:
		return true
	case EventError:
		return e.Err == nil || e.Err.Kind != KindDecode
	}
	return false
}

// ContinuityMeta is the conversation metadata the upstream attaches
// to frames. Zero values mean the frame carried none.
type ContinuityMeta struct {
	// BackendUUID identifies the conversation thread upstream.
	BackendUUID string

	// ReadWriteToken authorizes appending to the thread.
	ReadWriteToken string
}

// Empty reports whether no metadata is present.
func (m ContinuityMeta) Empty() bool {
	return m.BackendUUID == "" && m.ReadWriteToken == ""
}
