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

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestTerminalRenderer_MachineMode verifies machine output is line
// oriented and greppable.
func TestTerminalRenderer_MachineMode(t *testing.T) {
	var buf bytes.Buffer
	r := NewTerminalStreamRenderer(&buf, PersonalityMachine)

	r.OnStatus("searching: go generics")
	r.OnAnswerDelta("Generics arrived ")
	r.OnAnswerDelta("in Go 1.18.")
	r.OnSources([]SourceInfo{{Name: "Go Blog", URL: "https://go.dev/blog"}})
	r.OnRelated([]string{"what are type parameters"})
	r.OnDone()
	r.Finalize()

	out := buf.String()
	assert.Contains(t, out, "STATUS: searching: go generics")
	assert.Contains(t, out, "ANSWER: Generics arrived in Go 1.18.")
	assert.Contains(t, out, "SOURCE: Go Blog\thttps://go.dev/blog")
	assert.Contains(t, out, "RELATED: what are type parameters")
}

// TestTerminalRenderer_StreamsDeltas verifies fragments print as they
// arrive in interactive modes.
func TestTerminalRenderer_StreamsDeltas(t *testing.T) {
	var buf bytes.Buffer
	r := NewTerminalStreamRenderer(&buf, PersonalityMinimal)

	r.OnAnswerDelta("first ")
	assert.Equal(t, "first ", buf.String())

	r.OnAnswerDelta("second")
	assert.Equal(t, "first second", buf.String())
}

// TestTerminalRenderer_FinalPrintsOnlyRemainder verifies a final
// answer that extends the streamed prefix does not reprint it.
func TestTerminalRenderer_FinalPrintsOnlyRemainder(t *testing.T) {
	var buf bytes.Buffer
	r := NewTerminalStreamRenderer(&buf, PersonalityMinimal)

	r.OnAnswerDelta("The answer ")
	r.OnFinal("The answer is 42.")
	r.OnDone()

	assert.Equal(t, "The answer is 42.", buf.String())
	assert.Equal(t, "The answer is 42.", r.Result().Answer)
}

// TestTerminalRenderer_FinalRestartsOnDivergence verifies a final
// answer that disagrees with the streamed text is printed in full.
func TestTerminalRenderer_FinalRestartsOnDivergence(t *testing.T) {
	var buf bytes.Buffer
	r := NewTerminalStreamRenderer(&buf, PersonalityMinimal)

	r.OnAnswerDelta("draft text")
	r.OnFinal("Corrected answer.")

	assert.Contains(t, buf.String(), "Corrected answer.")
	assert.Equal(t, "Corrected answer.", r.Result().Answer)
}

// TestTerminalRenderer_ErrorKeepsPartial verifies the partial answer
// stays in the result after a failure.
func TestTerminalRenderer_ErrorKeepsPartial(t *testing.T) {
	var buf bytes.Buffer
	r := NewTerminalStreamRenderer(&buf, PersonalityMinimal)

	r.OnAnswerDelta("partial text")
	r.OnError(errors.New("stream interrupted"))
	r.Finalize()

	res := r.Result()
	require.Error(t, res.Err)
	assert.Equal(t, "partial text", res.Answer)
	assert.Contains(t, buf.String(), "stream interrupted")
}

// TestTerminalRenderer_FinalizeIsIdempotent verifies calling Finalize
// twice does not duplicate the source listing.
func TestTerminalRenderer_FinalizeIsIdempotent(t *testing.T) {
	var buf bytes.Buffer
	r := NewTerminalStreamRenderer(&buf, PersonalityMachine)

	r.OnAnswerDelta("done")
	r.Finalize()
	first := buf.String()
	r.Finalize()

	assert.Equal(t, first, buf.String())
}

// TestBufferRenderer_Silent verifies the buffer renderer produces the
// transcript without output side effects.
func TestBufferRenderer_Silent(t *testing.T) {
	r := NewBufferStreamRenderer()

	r.OnStatus("searching")
	r.OnAnswerDelta("a ")
	r.OnAnswerDelta("b")
	r.OnFinal("a b c")
	r.OnSources([]SourceInfo{{Name: "src", URL: "https://example.com"}})
	r.OnRelated([]string{"follow up"})
	r.OnDone()
	r.Finalize()

	res := r.Result()
	assert.Equal(t, "a b c", res.Answer)
	assert.Equal(t, "searching", res.Status)
	require.Len(t, res.Sources, 1)
	assert.Equal(t, []string{"follow up"}, res.Related)
	assert.NoError(t, res.Err)
}

// TestBufferRenderer_ResultIsACopy verifies mutating a returned
// result does not affect the renderer's state.
func TestBufferRenderer_ResultIsACopy(t *testing.T) {
	r := NewBufferStreamRenderer()
	r.OnSources([]SourceInfo{{Name: "one"}})

	res := r.Result()
	res.Sources[0].Name = "mutated"

	assert.Equal(t, "one", r.Result().Sources[0].Name)
}
