// Copyright (C) 2026 Openplexity Contributors (maintainers@openplexity.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestHealth verifies the liveness probe.
func TestHealth(t *testing.T) {
	router := newTestRouter(newTestHandlers(t, &fakeSearcher{}))

	rec := getPath(t, router, "/health")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
	assert.Contains(t, rec.Body.String(), `"authenticated":true`)
}

// TestListModes verifies every mode is listed and pro carries its
// model roster.
func TestListModes(t *testing.T) {
	router := newTestRouter(newTestHandlers(t, &fakeSearcher{}))

	rec := getPath(t, router, "/api/modes")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Modes []struct {
			Name   string   `json:"name"`
			Models []string `json:"models"`
		} `json:"modes"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Modes, 5)

	names := make(map[string][]string)
	for _, m := range resp.Modes {
		names[m.Name] = m.Models
	}
	require.Contains(t, names, "pro")
	assert.Contains(t, names["pro"], "claude45sonnet")
	require.Contains(t, names, "deep research")
}

// TestListProfiles verifies the profile roster includes simple.
func TestListProfiles(t *testing.T) {
	router := newTestRouter(newTestHandlers(t, &fakeSearcher{}))

	rec := getPath(t, router, "/api/profiles")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Profiles []string `json:"profiles"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp.Profiles, "simple")
	assert.Contains(t, resp.Profiles, "debugging")
}

// TestListSpaces verifies the known-space listing.
func TestListSpaces(t *testing.T) {
	fake := &fakeSearcher{spaces: map[string]string{
		"Research": "3f1c8a9e-0000-4000-8000-000000000002",
	}}
	router := newTestRouter(newTestHandlers(t, fake))

	rec := getPath(t, router, "/api/spaces")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Research")
}

// TestCreateSpace verifies creation and the validation path.
func TestCreateSpace(t *testing.T) {
	router := newTestRouter(newTestHandlers(t, &fakeSearcher{}))

	rec := postJSON(t, router, "/api/spaces", gin.H{"title": "Trading"})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), "Trading")

	rec = postJSON(t, router, "/api/spaces", gin.H{"description": "no title"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
