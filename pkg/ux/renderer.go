// Copyright (C) 2026 Openplexity Contributors (maintainers@openplexity.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// This file defines stream renderers for search progress.
//
// A renderer receives the event callbacks of one search exchange and
// turns them into terminal output (or a buffered transcript). The
// lifecycle of every exchange is:
//
//	OnStatus* → OnAnswerDelta* → OnSources? → OnRelated? →
//	(OnFinal | OnError) → OnDone? → Finalize
//
// Renderers are single-use. Create a fresh renderer per exchange.
package ux

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
)

// =============================================================================
// Types
// =============================================================================

// SourceInfo describes one cited source of an answer.
type SourceInfo struct {
	Name    string `json:"name"`
	URL     string `json:"url"`
	Snippet string `json:"snippet,omitempty"`
}

// RenderResult is the transcript a renderer accumulated over one
// exchange.
type RenderResult struct {
	Answer  string
	Sources []SourceInfo
	Related []string
	Status  string
	Err     error
}

// StreamRenderer renders the progress of one search exchange.
//
// # Thread Safety
//
// Implementations are safe for calls from a single goroutine at a
// time, which matches how progress callbacks are delivered.
type StreamRenderer interface {
	// OnStatus reports an upstream phase change ("searching: ...").
	OnStatus(message string)

	// OnAnswerDelta appends a fragment of the streaming answer.
	OnAnswerDelta(delta string)

	// OnSources replaces the current source list.
	OnSources(sources []SourceInfo)

	// OnRelated replaces the current related-query suggestions.
	OnRelated(queries []string)

	// OnFinal delivers the authoritative final answer. It supersedes
	// everything accumulated through OnAnswerDelta.
	OnFinal(answer string)

	// OnError reports a failed exchange. Partial output stays visible.
	OnError(err error)

	// OnDone marks the end of the stream.
	OnDone()

	// Finalize flushes pending output. Call exactly once, after the
	// last event.
	Finalize()

	// Result returns the accumulated transcript.
	Result() RenderResult
}

// =============================================================================
// Terminal renderer
// =============================================================================

// terminalStreamRenderer writes progress to a terminal, honoring the
// active personality level.
type terminalStreamRenderer struct {
	mu          sync.Mutex
	writer      io.Writer
	personality PersonalityLevel
	showSources bool
	showRelated bool

	spinner  *Spinner
	answer   strings.Builder
	printed  int
	sources  []SourceInfo
	related  []string
	status   string
	err      error
	finished bool
}

var _ StreamRenderer = (*terminalStreamRenderer)(nil)

// NewTerminalStreamRenderer creates a renderer writing to w.
//
// A nil writer defaults to stdout.
func NewTerminalStreamRenderer(w io.Writer, personality PersonalityLevel) StreamRenderer {
	if w == nil {
		w = os.Stdout
	}
	p := GetPersonality()
	return &terminalStreamRenderer{
		writer:      w,
		personality: personality,
		showSources: p.ShowSources,
		showRelated: p.ShowRelated,
	}
}

// NewDefaultStreamRenderer creates a terminal renderer for stdout
// with the current personality level.
func NewDefaultStreamRenderer() StreamRenderer {
	return NewTerminalStreamRenderer(os.Stdout, GetPersonality().Level)
}

func (r *terminalStreamRenderer) OnStatus(message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status = message

	if r.personality == PersonalityMachine {
		fmt.Fprintf(r.writer, "STATUS: %s\n", message)
		return
	}

	// The spinner only makes sense before the answer starts flowing.
	if r.printed > 0 {
		return
	}
	if r.spinner == nil {
		r.spinner = NewSpinner(message).WithType(SpinnerSearch)
		r.spinner.Start()
	} else {
		r.spinner.UpdateMessage(message)
	}
}

func (r *terminalStreamRenderer) OnAnswerDelta(delta string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopSpinnerLocked()
	r.answer.WriteString(delta)

	if r.personality == PersonalityMachine {
		// Machine mode buffers until Finalize
		return
	}

	fmt.Fprint(r.writer, delta)
	r.printed = r.answer.Len()
}

func (r *terminalStreamRenderer) OnSources(sources []SourceInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources = sources
}

func (r *terminalStreamRenderer) OnRelated(queries []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.related = queries
}

func (r *terminalStreamRenderer) OnFinal(answer string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopSpinnerLocked()

	prior := r.answer.String()
	r.answer.Reset()
	r.answer.WriteString(answer)

	if r.personality == PersonalityMachine {
		return
	}

	// The final answer usually extends what already streamed. Print
	// only the unseen remainder; restart the line when it diverges.
	switch {
	case r.printed == 0:
		fmt.Fprint(r.writer, answer)
	case strings.HasPrefix(answer, prior[:r.printed]):
		fmt.Fprint(r.writer, answer[r.printed:])
	default:
		fmt.Fprintln(r.writer)
		fmt.Fprint(r.writer, answer)
	}
	r.printed = len(answer)
}

func (r *terminalStreamRenderer) OnError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopSpinnerLocked()
	r.err = err

	if r.personality == PersonalityMachine {
		fmt.Fprintf(r.writer, "ERROR: %v\n", err)
		return
	}
	if r.printed > 0 {
		fmt.Fprintln(r.writer)
	}
	fmt.Fprintf(r.writer, "%s %s\n", IconError.Render(), Styles.Error.Render(err.Error()))
}

func (r *terminalStreamRenderer) OnDone() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopSpinnerLocked()
}

func (r *terminalStreamRenderer) Finalize() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.finished {
		return
	}
	r.finished = true
	r.stopSpinnerLocked()

	if r.personality == PersonalityMachine {
		r.finalizeMachineLocked()
		return
	}

	if r.printed > 0 && !strings.HasSuffix(r.answer.String(), "\n") {
		fmt.Fprintln(r.writer)
	}
	if r.showSources && len(r.sources) > 0 {
		r.renderSourcesLocked()
	}
	if r.showRelated && len(r.related) > 0 && r.personality != PersonalityMinimal {
		r.renderRelatedLocked()
	}
}

func (r *terminalStreamRenderer) finalizeMachineLocked() {
	if r.answer.Len() > 0 {
		fmt.Fprintf(r.writer, "ANSWER: %s\n", r.answer.String())
	}
	for _, src := range r.sources {
		fmt.Fprintf(r.writer, "SOURCE: %s\t%s\n", src.Name, src.URL)
	}
	for _, q := range r.related {
		fmt.Fprintf(r.writer, "RELATED: %s\n", q)
	}
}

func (r *terminalStreamRenderer) renderSourcesLocked() {
	fmt.Fprintln(r.writer)
	fmt.Fprintln(r.writer, Styles.Subtitle.Render("Sources"))
	for i, src := range r.sources {
		name := src.Name
		if name == "" {
			name = src.URL
		}
		fmt.Fprintf(r.writer, "  %s [%d] %s\n", IconSource.Render(), i+1, name)
		if src.URL != "" && r.personality != PersonalityMinimal {
			fmt.Fprintf(r.writer, "      %s\n", Styles.Muted.Render(src.URL))
		}
	}
}

func (r *terminalStreamRenderer) renderRelatedLocked() {
	fmt.Fprintln(r.writer)
	fmt.Fprintln(r.writer, Styles.Subtitle.Render("Related"))
	for _, q := range r.related {
		fmt.Fprintf(r.writer, "  %s %s\n", IconSpark.Render(), q)
	}
}

func (r *terminalStreamRenderer) Result() RenderResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	return RenderResult{
		Answer:  r.answer.String(),
		Sources: append([]SourceInfo(nil), r.sources...),
		Related: append([]string(nil), r.related...),
		Status:  r.status,
		Err:     r.err,
	}
}

func (r *terminalStreamRenderer) stopSpinnerLocked() {
	if r.spinner != nil {
		r.spinner.Stop()
		r.spinner = nil
	}
}

// =============================================================================
// Buffer renderer
// =============================================================================

// bufferStreamRenderer accumulates silently. Useful when the caller
// wants the transcript without terminal output, such as tests or
// machine-readable subcommands.
type bufferStreamRenderer struct {
	mu      sync.Mutex
	answer  strings.Builder
	sources []SourceInfo
	related []string
	status  string
	err     error
}

var _ StreamRenderer = (*bufferStreamRenderer)(nil)

// NewBufferStreamRenderer creates a renderer that produces no output.
func NewBufferStreamRenderer() StreamRenderer {
	return &bufferStreamRenderer{}
}

func (r *bufferStreamRenderer) OnStatus(message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status = message
}

func (r *bufferStreamRenderer) OnAnswerDelta(delta string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.answer.WriteString(delta)
}

func (r *bufferStreamRenderer) OnSources(sources []SourceInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources = sources
}

func (r *bufferStreamRenderer) OnRelated(queries []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.related = queries
}

func (r *bufferStreamRenderer) OnFinal(answer string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.answer.Reset()
	r.answer.WriteString(answer)
}

func (r *bufferStreamRenderer) OnError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
}

func (r *bufferStreamRenderer) OnDone() {}

func (r *bufferStreamRenderer) Finalize() {}

func (r *bufferStreamRenderer) Result() RenderResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	return RenderResult{
		Answer:  r.answer.String(),
		Sources: append([]SourceInfo(nil), r.sources...),
		Related: append([]string(nil), r.related...),
		Status:  r.status,
		Err:     r.err,
	}
}
