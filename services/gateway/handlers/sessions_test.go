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
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openplexity/openplexity/services/gateway/datatypes"
)

// getPath performs a GET against the router.
func getPath(t *testing.T, router http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

// TestSessions_CreateGetDelete verifies the session lifecycle over
// HTTP.
func TestSessions_CreateGetDelete(t *testing.T) {
	router := newTestRouter(newTestHandlers(t, &fakeSearcher{}))

	rec := postJSON(t, router, "/api/sessions", nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	var created datatypes.SessionSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.NotEmpty(t, created.SessionID)
	assert.Equal(t, 0, created.TurnCount)

	rec = getPath(t, router, "/api/sessions/"+created.SessionID)
	require.Equal(t, http.StatusOK, rec.Code)

	req := httptest.NewRequest(http.MethodDelete, "/api/sessions/"+created.SessionID, nil)
	del := httptest.NewRecorder()
	router.ServeHTTP(del, req)
	require.Equal(t, http.StatusOK, del.Code)

	rec = getPath(t, router, "/api/sessions/"+created.SessionID)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

// TestSessions_List verifies listing and that continuity tokens are
// not serialized.
func TestSessions_List(t *testing.T) {
	h := newTestHandlers(t, &fakeSearcher{})
	router := newTestRouter(h)

	for i := 0; i < 3; i++ {
		rec := postJSON(t, router, "/api/sessions", nil)
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec := getPath(t, router, "/api/sessions")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Sessions []datatypes.SessionSummary `json:"sessions"`
		Count    int                        `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 3, resp.Count)
	assert.NotContains(t, rec.Body.String(), "read_write_token")
}
