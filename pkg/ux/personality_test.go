// Copyright (C) 2026 Openplexity Contributors (maintainers@openplexity.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ux

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestParsePersonalityLevel verifies aliases and the fallback.
func TestParsePersonalityLevel(t *testing.T) {
	assert.Equal(t, PersonalityFull, ParsePersonalityLevel("full"))
	assert.Equal(t, PersonalityFull, ParsePersonalityLevel("F"))
	assert.Equal(t, PersonalityStandard, ParsePersonalityLevel("std"))
	assert.Equal(t, PersonalityMinimal, ParsePersonalityLevel("min"))
	assert.Equal(t, PersonalityMachine, ParsePersonalityLevel("quiet"))
	assert.Equal(t, PersonalityMachine, ParsePersonalityLevel("q"))
	assert.Equal(t, PersonalityStandard, ParsePersonalityLevel("bogus"))
}

// TestSetPersonalityLevel verifies level updates round-trip.
func TestSetPersonalityLevel(t *testing.T) {
	original := GetPersonality()
	defer SetPersonality(original)

	SetPersonalityLevel(PersonalityMachine)
	assert.Equal(t, PersonalityMachine, GetPersonality().Level)

	SetPersonalityLevel(PersonalityFull)
	assert.Equal(t, PersonalityFull, GetPersonality().Level)
}

// TestInitPersonality_EnvOverride verifies the environment variable
// wins over terminal detection.
func TestInitPersonality_EnvOverride(t *testing.T) {
	original := GetPersonality()
	defer SetPersonality(original)

	t.Setenv(PersonalityEnv, "minimal")
	InitPersonality()
	assert.Equal(t, PersonalityMinimal, GetPersonality().Level)
}

// TestDefaultPersonality verifies defaults show sources and related
// queries.
func TestDefaultPersonality(t *testing.T) {
	p := DefaultPersonality()
	assert.Equal(t, PersonalityFull, p.Level)
	assert.True(t, p.ShowSources)
	assert.True(t, p.ShowRelated)
}
