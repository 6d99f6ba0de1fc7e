// Copyright (C) 2026 Openplexity Contributors (maintainers@openplexity.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ux

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// TestChatUI_HeaderMachine verifies the machine header is a single
// parseable line.
func TestChatUI_HeaderMachine(t *testing.T) {
	var buf bytes.Buffer
	ui := NewChatUIWithWriter(&buf, PersonalityMachine)

	ui.Header(HeaderConfig{
		Mode:          "pro",
		Model:         "claude45sonnet",
		Space:         "Research",
		Authenticated: true,
	})

	out := buf.String()
	assert.Contains(t, out, "CHAT_START:")
	assert.Contains(t, out, "mode=pro")
	assert.Contains(t, out, "model=claude45sonnet")
	assert.Contains(t, out, "space=Research")
	assert.Contains(t, out, "authenticated=true")
}

// TestChatUI_HeaderMachineIncognito verifies incognito is flagged.
func TestChatUI_HeaderMachineIncognito(t *testing.T) {
	var buf bytes.Buffer
	ui := NewChatUIWithWriter(&buf, PersonalityMachine)

	ui.Header(HeaderConfig{Mode: "auto", Incognito: true})

	assert.Contains(t, buf.String(), "incognito=true")
}

// TestChatUI_Response verifies answer rendering per personality.
func TestChatUI_Response(t *testing.T) {
	var machine bytes.Buffer
	NewChatUIWithWriter(&machine, PersonalityMachine).Response("the answer")
	assert.Equal(t, "RESPONSE: the answer\n", machine.String())

	var minimal bytes.Buffer
	NewChatUIWithWriter(&minimal, PersonalityMinimal).Response("the answer")
	assert.Contains(t, minimal.String(), "the answer")
}

// TestChatUI_Sources verifies source listings include names and URLs.
func TestChatUI_Sources(t *testing.T) {
	sources := []SourceInfo{
		{Name: "Go Blog", URL: "https://go.dev/blog"},
		{Name: "Spec", URL: "https://go.dev/ref/spec"},
	}

	var machine bytes.Buffer
	NewChatUIWithWriter(&machine, PersonalityMachine).Sources(sources)
	assert.Contains(t, machine.String(), "SOURCE: Go Blog\thttps://go.dev/blog")
	assert.Contains(t, machine.String(), "SOURCE: Spec\thttps://go.dev/ref/spec")

	var minimal bytes.Buffer
	NewChatUIWithWriter(&minimal, PersonalityMinimal).Sources(sources)
	assert.Contains(t, minimal.String(), "1. Go Blog")
	assert.Contains(t, minimal.String(), "2. Spec")
}

// TestChatUI_SourcesEmpty verifies nothing prints without sources.
func TestChatUI_SourcesEmpty(t *testing.T) {
	var buf bytes.Buffer
	NewChatUIWithWriter(&buf, PersonalityMachine).Sources(nil)
	assert.Empty(t, buf.String())
}

// TestChatUI_Related verifies related queries render in machine mode
// and are suppressed in minimal mode.
func TestChatUI_Related(t *testing.T) {
	queries := []string{"how do goroutines work"}

	var machine bytes.Buffer
	NewChatUIWithWriter(&machine, PersonalityMachine).Related(queries)
	assert.Contains(t, machine.String(), "RELATED: how do goroutines work")

	var minimal bytes.Buffer
	NewChatUIWithWriter(&minimal, PersonalityMinimal).Related(queries)
	assert.Empty(t, minimal.String())
}

// TestChatUI_Error verifies errors render without ending the session.
func TestChatUI_Error(t *testing.T) {
	var buf bytes.Buffer
	NewChatUIWithWriter(&buf, PersonalityMachine).Error(errors.New("upstream rejected credentials"))
	assert.Contains(t, buf.String(), "CHAT_ERROR: upstream rejected credentials")
}

// TestChatUI_ContinuityLost verifies the warning renders the reason.
func TestChatUI_ContinuityLost(t *testing.T) {
	var buf bytes.Buffer
	NewChatUIWithWriter(&buf, PersonalityMachine).ContinuityLost("incognito exchange")
	assert.Contains(t, buf.String(), "CONTINUITY_LOST: incognito exchange")
}

// TestChatUI_SessionEnd verifies the summary carries the stats.
func TestChatUI_SessionEnd(t *testing.T) {
	var buf bytes.Buffer
	NewChatUIWithWriter(&buf, PersonalityMachine).SessionEnd(SessionStats{
		TurnCount:   3,
		SourceCount: 7,
		Duration:    95 * time.Second,
	})
	assert.Contains(t, buf.String(), "CHAT_END: turns=3 sources=7 duration=1m35s")
}

// TestFormatDuration verifies compact duration rendering.
func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "42s", formatDuration(42*time.Second))
	assert.Equal(t, "2m5s", formatDuration(125*time.Second))
	assert.Equal(t, "1h30m", formatDuration(90*time.Minute))
}
