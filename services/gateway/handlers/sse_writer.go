// Copyright (C) 2026 Openplexity Contributors (maintainers@openplexity.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/openplexity/openplexity/pkg/ux"
	"github.com/openplexity/openplexity/services/gateway/datatypes"
	"github.com/openplexity/openplexity/services/perplexity"
)

// =============================================================================
// SSE Writer Interface
// =============================================================================

// SSEWriter writes server-sent events with a tamper-evident hash
// chain. Each event's hash covers its content, timestamp, and the
// previous event's hash, so clients can verify the relay end to end.
type SSEWriter interface {
	// WriteEvent writes a fully-formed event, assigning its ID,
	// timestamp, and chain hashes.
	WriteEvent(event *datatypes.StreamEvent) error

	// WriteStatus writes a status event.
	WriteStatus(message string) error

	// WriteDelta writes a partial answer fragment.
	WriteDelta(content string) error

	// WriteSources writes the current citation set.
	WriteSources(sources []perplexity.Source) error

	// WriteRelated writes suggested follow-up queries.
	WriteRelated(related []string) error

	// WriteFinal writes the authoritative answer.
	WriteFinal(content string, sources []perplexity.Source, related []string) error

	// WriteError writes an error event.
	WriteError(message string) error

	// WriteDone writes the terminal done event, carrying the gateway
	// session ID when session tracking is active.
	WriteDone(sessionID string) error

	// WriteKeepAlive writes an SSE comment to hold the connection
	// open. Comments are not part of the hash chain.
	WriteKeepAlive() error
}

// =============================================================================
// Implementation
// =============================================================================

// sseWriter is the production SSEWriter.
//
// # Thread Safety
//
// Safe for concurrent use. The mutex serializes writes so keep-alives
// from a ticker goroutine cannot interleave with event frames.
type sseWriter struct {
	writer   http.ResponseWriter
	flusher  http.Flusher
	hasher   ux.HashComputer
	mu       sync.Mutex
	prevHash string
}

// NewSSEWriter creates an SSEWriter over the response. Returns an
// error when the response does not support flushing.
func NewSSEWriter(w http.ResponseWriter) (SSEWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("response writer does not support flushing")
	}
	return &sseWriter{
		writer:  w,
		flusher: flusher,
		hasher:  ux.NewSHA256HashComputer(),
	}, nil
}

// SetSSEHeaders sets the response headers for an SSE stream. Must be
// called before the first write.
func SetSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
}

var _ SSEWriter = (*sseWriter)(nil)

func (s *sseWriter) WriteEvent(event *datatypes.StreamEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	event.Id = uuid.NewString()
	event.CreatedAt = time.Now().UnixMilli()
	event.PrevHash = s.prevHash
	event.Hash = s.hasher.ComputeEventHash(event.Content, event.CreatedAt, event.PrevHash)

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal stream event: %w", err)
	}

	if _, err := fmt.Fprintf(s.writer, "event: %s\ndata: %s\n\n", event.Type, data); err != nil {
		return fmt.Errorf("write stream event: %w", err)
	}
	s.flusher.Flush()

	s.prevHash = event.Hash
	return nil
}

func (s *sseWriter) WriteStatus(message string) error {
	return s.WriteEvent(&datatypes.StreamEvent{
		Type:    perplexity.EventStatus.String(),
		Message: message,
	})
}

func (s *sseWriter) WriteDelta(content string) error {
	return s.WriteEvent(&datatypes.StreamEvent{
		Type:    perplexity.EventPartialAnswer.String(),
		Content: content,
	})
}

func (s *sseWriter) WriteSources(sources []perplexity.Source) error {
	return s.WriteEvent(&datatypes.StreamEvent{
		Type:    perplexity.EventSourceList.String(),
		Sources: sources,
	})
}

func (s *sseWriter) WriteRelated(related []string) error {
	return s.WriteEvent(&datatypes.StreamEvent{
		Type:    perplexity.EventRelatedQueries.String(),
		Related: related,
	})
}

func (s *sseWriter) WriteFinal(content string, sources []perplexity.Source, related []string) error {
	return s.WriteEvent(&datatypes.StreamEvent{
		Type:    perplexity.EventFinalAnswer.String(),
		Content: content,
		Sources: sources,
		Related: related,
	})
}

func (s *sseWriter) WriteError(message string) error {
	return s.WriteEvent(&datatypes.StreamEvent{
		Type:  perplexity.EventError.String(),
		Error: message,
	})
}

func (s *sseWriter) WriteDone(sessionID string) error {
	return s.WriteEvent(&datatypes.StreamEvent{
		Type:      perplexity.EventDone.String(),
		SessionId: sessionID,
	})
}

func (s *sseWriter) WriteKeepAlive() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := fmt.Fprint(s.writer, ": ping\n\n"); err != nil {
		return fmt.Errorf("write keep-alive: %w", err)
	}
	s.flusher.Flush()
	return nil
}
