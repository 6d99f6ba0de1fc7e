// Copyright (C) 2026 Openplexity Contributors (maintainers@openplexity.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// This file contains the ChunkDecoder, which converts raw SSE frames
// from the upstream answer stream into typed StreamEvents.
//
// Single Responsibility:
//
//	The decoder ONLY decodes. It performs no I/O, no accumulation,
//	and no retry logic. This separation keeps the wire format in one
//	place and makes the decode path testable with literal frames.
package perplexity

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// =============================================================================
// Wire Format
// =============================================================================

// The upstream stream is SSE with CRLF framing:
//
//	event: message\r\n
//	data: {"text": ..., "backend_uuid": ...}\r\n
//	\r\n
//
// Frames are delimited by a blank line (\r\n\r\n). The final frame is
// "event: end_of_stream". The data payload's "text" field is either a
// JSON array of steps, or a JSON string that itself decodes to one.
// Each step is {"step_type": "...", "content": {...}}. A FINAL step's
// content holds an "answer" field that is a second level of JSON
// encoding: a string whose decoded value is the answer document.

const (
	// FrameDelimiter separates frames on the wire.
	FrameDelimiter = "\r\n\r\n"

	frameEventMessage     = "message"
	frameEventEndOfStream = "end_of_stream"
)

// frameEnvelope is the data payload of a message frame. Fields the
// decoder does not consume are ignored.
type frameEnvelope struct {
	Text           json.RawMessage `json:"text"`
	BackendUUID    string          `json:"backend_uuid"`
	ReadWriteToken string          `json:"read_write_token"`
	RelatedQueries []string        `json:"related_queries"`
	Status         string          `json:"status"`
}

// frameStep is one entry of the envelope's step list.
type frameStep struct {
	StepType string          `json:"step_type"`
	Content  json.RawMessage `json:"content"`
}

// searchWebContent is the content of a SEARCH_WEB step.
type searchWebContent struct {
	Queries []string `json:"queries"`
}

// searchResultsContent is the content of a SEARCH_RESULTS step.
type searchResultsContent struct {
	WebResults []wireResult `json:"web_results"`
}

// finalContent is the content of a FINAL step. Answer is a JSON
// string whose decoded value is finalDocument.
type finalContent struct {
	Answer string `json:"answer"`
}

// finalDocument is the decoded answer document.
type finalDocument struct {
	Answer         string       `json:"answer"`
	WebResults     []wireResult `json:"web_results"`
	Chunks         []string     `json:"chunks"`
	RelatedQueries []string     `json:"related_queries"`
}

// wireResult is a cited document on the wire.
type wireResult struct {
	Name    string `json:"name"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// toSource converts a wire result to the public Source type.
func (r wireResult) toSource() Source {
	return Source{Name: r.Name, URL: r.URL, Snippet: r.Snippet}
}

// toSources converts a wire result list, returning nil for empty.
func toSources(results []wireResult) []Source {
	if len(results) == 0 {
		return nil
	}
	sources := make([]Source, len(results))
	for i, r := range results {
		sources[i] = r.toSource()
	}
	return sources
}

// =============================================================================
// ChunkDecoder
// =============================================================================

// ChunkDecoder converts raw SSE frames into StreamEvents.
//
// The decoder is stateful: frames may carry step content without a
// step_type tag, which is interpreted under the most recent tag seen.
// Use one decoder per stream and do not share it across streams.
//
// Error handling:
//
//	A malformed frame produces an EventError event of kind
//	KindDecode and leaves the decoder ready for the next frame. The
//	decoder never returns a Go error and never panics on input; one
//	bad frame must not kill an otherwise healthy stream.
//
// Thread Safety:
//
//	Not safe for concurrent use. A stream is read by one goroutine.
//
// Example:
//
//	dec := NewChunkDecoder()
//	for frame := range frames {
//	    for _, ev := range dec.DecodeFrame(frame) {
//	        acc.Apply(ev)
//	    }
//	}
type ChunkDecoder struct {
	// lastStep is the step tag governing untagged content.
	lastStep StepType
}

// NewChunkDecoder creates a decoder for a single stream.
func NewChunkDecoder() *ChunkDecoder {
	return &ChunkDecoder{}
}

// DecodeFrame decodes one complete SSE frame into events.
//
// A frame is everything between two frame delimiters, without the
// delimiters themselves. Most frames produce zero or one event; a
// frame whose step list carries several steps yields one event per
// step, in arrival order.
//
// Returns:
//   - nil for blank frames, comments, and unrecognized frame events
//   - [{EventDone}] for the end_of_stream frame
//   - decoded content events for message frames
//   - [{EventError, KindDecode}] for malformed frames
func (d *ChunkDecoder) DecodeFrame(frame []byte) []StreamEvent {
	frame = bytes.TrimSpace(frame)
	if len(frame) == 0 || frame[0] == ':' {
		return nil
	}

	eventName, data := splitFrame(frame)
	switch eventName {
	case frameEventEndOfStream:
		return []StreamEvent{{Type: EventDone}}
	case frameEventMessage:
		return d.decodeMessage(data)
	default:
		// Unknown frame events (keep-alives, future extensions)
		return nil
	}
}

// decodeMessage decodes the data payload of a message frame.
func (d *ChunkDecoder) decodeMessage(data []byte) []StreamEvent {
	if len(data) == 0 {
		return d.decodeFailure(fmt.Errorf("message frame without data"))
	}

	var env frameEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return d.decodeFailure(err)
	}

	meta := ContinuityMeta{
		BackendUUID:    env.BackendUUID,
		ReadWriteToken: env.ReadWriteToken,
	}

	var events []StreamEvent
	if len(env.Text) > 0 {
		var err error
		events, err = d.decodeText(env.Text)
		if err != nil {
			return d.decodeFailure(err)
		}
	}

	if len(env.RelatedQueries) > 0 {
		events = append(events, StreamEvent{
			Type:    EventRelatedQueries,
			Related: env.RelatedQueries,
		})
	}

	// A frame carrying only continuity metadata still has to surface
	// it, otherwise the conversation thread identity is lost.
	if len(events) == 0 && !meta.Empty() {
		events = append(events, StreamEvent{
			Type:    EventStatus,
			Message: env.Status,
		})
	}

	for i := range events {
		events[i].Continuity = meta
	}
	return events
}

// decodeText decodes the envelope's text field, which is either a
// step list, a JSON string wrapping a step list, or a plain text
// fragment.
func (d *ChunkDecoder) decodeText(raw json.RawMessage) ([]StreamEvent, error) {
	// Unwrap one level of string encoding when present.
	if len(raw) > 0 && raw[0] == '"' {
		var inner string
		if err := json.Unmarshal(raw, &inner); err != nil {
			return nil, fmt.Errorf("unwrap text field: %w", err)
		}
		trimmed := strings.TrimSpace(inner)
		if strings.HasPrefix(trimmed, "[") || strings.HasPrefix(trimmed, "{") {
			raw = json.RawMessage(trimmed)
		} else {
			// Plain text fragment
			return []StreamEvent{{Type: EventPartialAnswer, Text: inner, Step: d.lastStep}}, nil
		}
	}

	var steps []frameStep
	if len(raw) > 0 && raw[0] == '{' {
		// Single step object without the list wrapper
		var step frameStep
		if err := json.Unmarshal(raw, &step); err != nil {
			return nil, fmt.Errorf("decode step object: %w", err)
		}
		steps = []frameStep{step}
	} else if err := json.Unmarshal(raw, &steps); err != nil {
		return nil, fmt.Errorf("decode step list: %w", err)
	}

	var events []StreamEvent
	for _, step := range steps {
		ev, err := d.decodeStep(step)
		if err != nil {
			return nil, err
		}
		if ev != nil {
			events = append(events, *ev)
		}
	}
	return events, nil
}

// decodeStep decodes one step into at most one event. Untagged steps
// inherit the most recent tag; tagged steps update it.
func (d *ChunkDecoder) decodeStep(step frameStep) (*StreamEvent, error) {
	tag := StepType(step.StepType)
	if tag == "" {
		tag = d.lastStep
	} else {
		d.lastStep = tag
	}

	switch tag {
	case StepSearchWeb:
		var content searchWebContent
		if len(step.Content) > 0 {
			if err := json.Unmarshal(step.Content, &content); err != nil {
				return nil, fmt.Errorf("decode %s content: %w", tag, err)
			}
		}
		msg := "searching the web"
		if len(content.Queries) > 0 {
			msg = "searching: " + strings.Join(content.Queries, ", ")
		}
		return &StreamEvent{Type: EventStatus, Step: tag, Message: msg}, nil

	case StepSearchResults:
		var content searchResultsContent
		if err := json.Unmarshal(step.Content, &content); err != nil {
			return nil, fmt.Errorf("decode %s content: %w", tag, err)
		}
		return &StreamEvent{Type: EventSourceList, Step: tag, Sources: toSources(content.WebResults)}, nil

	case StepFinal:
		final, err := decodeFinal(step.Content)
		if err != nil {
			return nil, err
		}
		return &StreamEvent{Type: EventFinalAnswer, Step: tag, Final: final}, nil

	case "":
		// Untagged content before any tagged step: treat raw content
		// as an answer fragment.
		return &StreamEvent{Type: EventPartialAnswer, Text: string(step.Content)}, nil

	default:
		// Unknown step kinds pass through as status so new upstream
		// pipeline stages degrade instead of failing the stream.
		return &StreamEvent{Type: EventStatus, Step: tag, Message: string(step.Content)}, nil
	}
}

// decodeFinal decodes the double-encoded FINAL answer document.
//
// The outer content holds {"answer": "<json string>"}. When the inner
// string is not valid JSON the upstream occasionally ships the bare
// answer text, so that is accepted as a fallback rather than failing
// the terminal event.
func decodeFinal(content json.RawMessage) (*FinalAnswer, error) {
	var outer finalContent
	if err := json.Unmarshal(content, &outer); err != nil {
		return nil, fmt.Errorf("decode FINAL content: %w", err)
	}

	var doc finalDocument
	if err := json.Unmarshal([]byte(outer.Answer), &doc); err != nil {
		return &FinalAnswer{Answer: outer.Answer}, nil
	}

	return &FinalAnswer{
		Answer:  doc.Answer,
		Sources: toSources(doc.WebResults),
		Related: doc.RelatedQueries,
		Chunks:  doc.Chunks,
	}, nil
}

// decodeFailure wraps a parse error in a per-frame error event.
func (d *ChunkDecoder) decodeFailure(err error) []StreamEvent {
	ce := WrapError(KindDecode, err, "undecodable frame")
	return []StreamEvent{{Type: EventError, Message: ce.Message, Err: ce}}
}

// splitFrame separates the event name and data payload of a frame.
// Per the SSE grammar, multiple data lines concatenate with newlines.
func splitFrame(frame []byte) (string, []byte) {
	var eventName string
	var dataParts [][]byte

	for _, line := range bytes.Split(frame, []byte("\n")) {
		line = bytes.TrimRight(line, "\r")
		switch {
		case bytes.HasPrefix(line, []byte("event:")):
			eventName = string(bytes.TrimSpace(line[len("event:"):]))
		case bytes.HasPrefix(line, []byte("data:")):
			dataParts = append(dataParts, bytes.TrimSpace(line[len("data:"):]))
		}
	}

	return eventName, bytes.Join(dataParts, []byte("\n"))
}
