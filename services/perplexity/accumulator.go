// Copyright (C) 2026 Openplexity Contributors (maintainers@openplexity.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package perplexity

import (
	"strings"
	"sync"
)

// =============================================================================
// SearchResult
// =============================================================================

// SearchResult is the assembled outcome of one exchange.
//
// A result may be partial: when a stream fails or disconnects, the
// fields hold everything accumulated up to the failure and Complete
// stays false.
type SearchResult struct {
	// Query is the query that produced this result.
	Query string `json:"query"`

	// Answer is the assembled answer text.
	Answer string `json:"answer"`

	// Sources is the most recent citation set.
	Sources []Source `json:"sources,omitempty"`

	// Related holds suggested follow-up queries.
	Related []string `json:"related,omitempty"`

	// Status is the most recent progress message.
	Status string `json:"status,omitempty"`

	// BackendUUID identifies the conversation thread upstream.
	// Empty for incognito exchanges.
	BackendUUID string `json:"backend_uuid,omitempty"`

	// ReadWriteToken authorizes follow-up turns on the thread.
	ReadWriteToken string `json:"read_write_token,omitempty"`

	// Complete is true only when a final answer arrived.
	Complete bool `json:"complete"`

	// DecodeErrors counts frames that failed to decode. Nonzero with
	// Complete true means the stream recovered.
	DecodeErrors int `json:"decode_errors,omitempty"`

	// Err holds the terminal failure, if any.
	Err *ClientError `json:"error,omitempty"`
}

// =============================================================================
// AnswerAccumulator
// =============================================================================

// AnswerAccumulator folds StreamEvents into an in-progress
// SearchResult.
//
// Folding rules:
//
//   - EventStatus: records the latest status message.
//   - EventPartialAnswer: appends to the answer buffer in order.
//   - EventSourceList: REPLACES the source set. The upstream resends
//     the complete set each time; appending would duplicate.
//   - EventRelatedQueries: REPLACES the related set, same reason.
//   - EventFinalAnswer: overrides the buffered answer wholesale and
//     freezes the accumulator as complete. The final document is
//     authoritative; buffered fragments are discarded, not merged.
//   - EventError (terminal kinds): freezes as failed, retaining
//     everything accumulated so far.
//   - EventError (KindDecode): counts the failure and keeps going.
//   - EventDone: closes an exchange still open; after a terminal
//     event it is an idempotent no-op.
//
// Applying a content event after the accumulator froze returns a
// KindProtocol error and mutates nothing.
//
// Folding is deterministic: the same event sequence always produces
// the same result.
//
// # Thread Safety
//
// Apply is called by the single goroutine reading the stream, but
// Snapshot may be called concurrently by progress observers, so all
// state is mutex-guarded.
type AnswerAccumulator struct {
	mu sync.Mutex

	query      string
	answer     strings.Builder
	sources    []Source
	related    []string
	status     string
	meta       ContinuityMeta
	decodeErrs int

	frozen   bool
	complete bool
	failure  *ClientError
}

// NewAnswerAccumulator creates an accumulator for one exchange.
func NewAnswerAccumulator(query string) *AnswerAccumulator {
	return &AnswerAccumulator{query: query}
}

// Apply folds one event into the result under construction.
//
// Returns a KindProtocol error when a content event arrives after a
// terminal event; all other inputs succeed.
func (a *AnswerAccumulator) Apply(ev StreamEvent) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.frozen {
		if ev.Type == EventDone {
			return nil
		}
		return NewError(KindProtocol, "%s event after terminal event", ev.Type)
	}

	if !ev.Continuity.Empty() {
		a.meta = ev.Continuity
	}

	switch ev.Type {
	case EventStatus:
		if ev.Message != "" {
			a.status = ev.Message
		}

	case EventPartialAnswer:
		a.answer.WriteString(ev.Text)

	case EventSourceList:
		a.sources = ev.Sources

	case EventRelatedQueries:
		a.related = ev.Related

	case EventFinalAnswer:
		a.override(ev.Final)
		a.frozen = true
		a.complete = true

	case EventError:
		if ev.Err != nil && ev.Err.Kind == KindDecode {
			a.decodeErrs++
			return nil
		}
		a.failure = ev.Err
		if a.failure == nil {
			a.failure = NewError(KindUnknown, "%s", ev.Message)
		}
		a.frozen = true

	case EventDone:
		a.frozen = true
	}

	return nil
}

// override replaces the buffered state with the final document.
func (a *AnswerAccumulator) override(final *FinalAnswer) {
	if final == nil {
		return
	}
	a.answer.Reset()
	a.answer.WriteString(final.Answer)
	if len(final.Sources) > 0 {
		a.sources = final.Sources
	}
	if len(final.Related) > 0 {
		a.related = final.Related
	}
}

// Snapshot returns a copy of the result accumulated so far.
//
// Safe to call at any time from any goroutine; the returned value
// shares no mutable state with the accumulator.
func (a *AnswerAccumulator) Snapshot() SearchResult {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.snapshotLocked()
}

// snapshotLocked builds the result copy. Caller holds the mutex.
func (a *AnswerAccumulator) snapshotLocked() SearchResult {
	res := SearchResult{
		Query:          a.query,
		Answer:         a.answer.String(),
		Status:         a.status,
		BackendUUID:    a.meta.BackendUUID,
		ReadWriteToken: a.meta.ReadWriteToken,
		Complete:       a.complete,
		DecodeErrors:   a.decodeErrs,
		Err:            a.failure,
	}
	if len(a.sources) > 0 {
		res.Sources = append([]Source(nil), a.sources...)
	}
	if len(a.related) > 0 {
		res.Related = append([]string(nil), a.related...)
	}
	return res
}

// Terminal reports whether the accumulator has frozen.
func (a *AnswerAccumulator) Terminal() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.frozen
}

// Result returns the assembled result.
//
// When the exchange failed, the partial result is returned together
// with the terminal error so callers keep access to whatever arrived
// before the failure.
func (a *AnswerAccumulator) Result() (SearchResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	res := a.snapshotLocked()
	if a.failure != nil {
		return res, a.failure
	}
	return res, nil
}
