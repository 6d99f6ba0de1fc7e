// Copyright (C) 2026 Openplexity Contributors (maintainers@openplexity.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package perplexity

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// capturingServer records ask payloads and answers each exchange
// with a fixed final answer.
type capturingServer struct {
	mu       sync.Mutex
	payloads []map[string]any
	srv      *httptest.Server
}

func newCapturingServer(t *testing.T) *capturingServer {
	t.Helper()
	cs := &capturingServer{}
	cs.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != askEndpoint {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		var payload map[string]any
		_ = json.NewDecoder(r.Body).Decode(&payload)
		cs.mu.Lock()
		cs.payloads = append(cs.payloads, payload)
		cs.mu.Unlock()

		w.Header().Set("Content-Type", "text/event-stream")
		writeFrame(t, w, "message", finalFrameData(t, "answer", nil))
		writeFrame(t, w, "end_of_stream", "{}")
	}))
	t.Cleanup(cs.srv.Close)
	return cs
}

// lastParams returns the params object of the most recent payload.
func (cs *capturingServer) lastParams(t *testing.T) map[string]any {
	t.Helper()
	cs.mu.Lock()
	defer cs.mu.Unlock()
	require.NotEmpty(t, cs.payloads)
	params, ok := cs.payloads[len(cs.payloads)-1]["params"].(map[string]any)
	require.True(t, ok)
	return params
}

func (cs *capturingServer) lastQuery(t *testing.T) string {
	t.Helper()
	cs.mu.Lock()
	defer cs.mu.Unlock()
	require.NotEmpty(t, cs.payloads)
	return cs.payloads[len(cs.payloads)-1]["query_str"].(string)
}

func newTestClient(cs *capturingServer, spaces SpaceResolver) *Client {
	return NewClient(ClientConfig{
		HTTPClient: cs.srv.Client(),
		BaseURL:    cs.srv.URL,
		Spaces:     spaces,
	})
}

// TestClient_Search verifies the blocking facade returns the final
// answer.
func TestClient_Search(t *testing.T) {
	cs := newCapturingServer(t)
	client := newTestClient(cs, nil)

	res, err := client.Search(context.Background(), SearchOptions{Query: "hello"})
	require.NoError(t, err)
	assert.True(t, res.Complete)
	assert.Equal(t, "answer", res.Answer)
}

// TestClient_ProfileExpansionReachesWire verifies the expanded query
// is what goes out.
func TestClient_ProfileExpansionReachesWire(t *testing.T) {
	cs := newCapturingServer(t)
	client := newTestClient(cs, nil)

	_, err := client.Search(context.Background(), SearchOptions{
		Query:   "goroutine leaks",
		Profile: ProfileDebugging,
	})
	require.NoError(t, err)

	assert.Equal(t, "goroutine leaks. "+ProfileInstruction(ProfileDebugging), cs.lastQuery(t))
}

// TestClient_InvalidProfileFailsBeforeNetwork verifies profile typos
// never reach the upstream.
func TestClient_InvalidProfileFailsBeforeNetwork(t *testing.T) {
	cs := newCapturingServer(t)
	client := newTestClient(cs, nil)

	_, err := client.Search(context.Background(), SearchOptions{
		Query:   "q",
		Profile: Profile("no_such_profile"),
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrValidation))
	assert.Empty(t, cs.payloads, "no request must be sent")
}

// TestClient_SpaceResolvedByName verifies a configured space name
// lands on the payload as its UUID.
func TestClient_SpaceResolvedByName(t *testing.T) {
	cs := newCapturingServer(t)
	client := newTestClient(cs, StaticSpaces{"Research": testSpaceUUID})

	_, err := client.Search(context.Background(), SearchOptions{Query: "q", Space: "Research"})
	require.NoError(t, err)

	assert.Equal(t, testSpaceUUID, cs.lastParams(t)["target_collection_uuid"])
}

// TestClient_UnknownSpaceDegradesSilently verifies an unknown space
// name drops the space and the search still runs.
func TestClient_UnknownSpaceDegradesSilently(t *testing.T) {
	cs := newCapturingServer(t)
	client := newTestClient(cs, StaticSpaces{})

	res, err := client.Search(context.Background(), SearchOptions{Query: "q", Space: "Ghost Space"})
	require.NoError(t, err)
	assert.True(t, res.Complete)
	assert.NotContains(t, cs.lastParams(t), "target_collection_uuid")
}

// TestClient_FollowUpThreading verifies a context derived from one
// exchange threads into the next.
func TestClient_FollowUpThreading(t *testing.T) {
	cs := newCapturingServer(t)
	client := newTestClient(cs, nil)

	first, err := client.Search(context.Background(), SearchOptions{Query: "first"})
	require.NoError(t, err)

	follow, err := client.FollowUpFrom(first, nil)
	require.NoError(t, err)

	_, err = client.Search(context.Background(), SearchOptions{Query: "second", FollowUp: &follow})
	require.NoError(t, err)

	params := cs.lastParams(t)
	assert.Equal(t, "b-stream", params["last_backend_uuid"])
	assert.Equal(t, "t-stream", params["read_write_token"])
}

// TestClient_CreateSpace verifies space creation and auto-save into
// a file-backed store.
func TestClient_CreateSpace(t *testing.T) {
	store, _ := newTestStore(t, `{}`)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, collectionsEndpoint, r.URL.Path)
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		assert.Equal(t, "Trading", body["title"])
		assert.Equal(t, float64(1), body["access"])

		_ = json.NewEncoder(w).Encode(SpaceInfo{UUID: testSpaceUUID, Title: "Trading", Slug: "trading"})
	}))
	t.Cleanup(srv.Close)

	client := NewClient(ClientConfig{
		HTTPClient: srv.Client(),
		BaseURL:    srv.URL,
		Spaces:     store,
	})

	info, err := client.CreateSpace(context.Background(), CreateSpaceOptions{
		Title:    "Trading",
		AutoSave: true,
	})
	require.NoError(t, err)
	assert.Equal(t, testSpaceUUID, info.UUID)

	resolved, err := store.Resolve("Trading")
	require.NoError(t, err)
	assert.Equal(t, testSpaceUUID, resolved)
}

// TestClient_CreateSpace_RequiresTitle verifies validation.
func TestClient_CreateSpace_RequiresTitle(t *testing.T) {
	client := NewClient(ClientConfig{})
	_, err := client.CreateSpace(context.Background(), CreateSpaceOptions{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrValidation))
}

// TestClient_SessionInfo verifies the session endpoint round-trip.
func TestClient_SessionInfo(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/auth/session", r.URL.Path)
		_, _ = w.Write([]byte(`{"user":{"id":"u-1"}}`))
	}))
	t.Cleanup(srv.Close)

	client := NewClient(ClientConfig{HTTPClient: srv.Client(), BaseURL: srv.URL})

	info, err := client.SessionInfo(context.Background())
	require.NoError(t, err)
	assert.Contains(t, info, "user")
}
