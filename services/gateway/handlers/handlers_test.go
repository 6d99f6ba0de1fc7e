// Copyright (C) 2026 Openplexity Contributors (maintainers@openplexity.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/openplexity/openplexity/services/gateway/observability"
	"github.com/openplexity/openplexity/services/gateway/sessionstore"
	"github.com/openplexity/openplexity/services/perplexity"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeSearcher is a scripted Searcher for handler tests.
type fakeSearcher struct {
	mu      sync.Mutex
	result  perplexity.SearchResult
	err     error
	events  []perplexity.StreamEvent
	gotOpts []perplexity.SearchOptions
	spaces  map[string]string
}

func (f *fakeSearcher) record(opts perplexity.SearchOptions) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gotOpts = append(f.gotOpts, opts)
}

func (f *fakeSearcher) lastOpts() (perplexity.SearchOptions, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.gotOpts) == 0 {
		return perplexity.SearchOptions{}, false
	}
	return f.gotOpts[len(f.gotOpts)-1], true
}

func (f *fakeSearcher) Search(_ context.Context, opts perplexity.SearchOptions) (perplexity.SearchResult, error) {
	f.record(opts)
	return f.result, f.err
}

func (f *fakeSearcher) SearchStream(_ context.Context, opts perplexity.SearchOptions, onProgress perplexity.ProgressFunc) (perplexity.SearchResult, error) {
	f.record(opts)
	if onProgress != nil {
		for _, ev := range f.events {
			onProgress(ev, func() perplexity.SearchResult { return f.result })
		}
	}
	return f.result, f.err
}

func (f *fakeSearcher) FollowUpFrom(res perplexity.SearchResult, attachments []string) (perplexity.ConversationContext, error) {
	return perplexity.ContextFromResult(res, attachments)
}

func (f *fakeSearcher) CreateSpace(_ context.Context, opts perplexity.CreateSpaceOptions) (perplexity.SpaceInfo, error) {
	if opts.Title == "" {
		return perplexity.SpaceInfo{}, perplexity.NewError(perplexity.KindValidation, "space title must not be empty")
	}
	return perplexity.SpaceInfo{UUID: "3f1c8a9e-0000-4000-8000-000000000001", Title: opts.Title}, nil
}

func (f *fakeSearcher) Spaces() map[string]string {
	return f.spaces
}

func (f *fakeSearcher) SessionInfo(_ context.Context) (map[string]any, error) {
	return map[string]any{"user": map[string]any{"email": "dev@example.com"}}, nil
}

func (f *fakeSearcher) Authenticated() bool { return true }

var _ Searcher = (*fakeSearcher)(nil)

// newTestHandlers wires a Handlers over the fake with an in-memory
// session store.
func newTestHandlers(t *testing.T, fake *fakeSearcher) *Handlers {
	t.Helper()
	store, err := sessionstore.Open(sessionstore.InMemoryConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	h := New(fake, store, slog.New(slog.NewTextHandler(io.Discard, nil)))
	h.Metrics = observability.DefaultMetrics()
	h.Retry = perplexity.NoRetry()
	return h
}

// newTestRouter registers the endpoints under test.
func newTestRouter(h *Handlers) *gin.Engine {
	router := gin.New()
	router.GET("/health", h.Health())
	router.POST("/api/search", h.Search())
	router.POST("/api/search/stream", h.SearchStream())
	router.GET("/api/modes", h.ListModes())
	router.GET("/api/profiles", h.ListProfiles())
	router.GET("/api/spaces", h.ListSpaces())
	router.POST("/api/spaces", h.CreateSpace())
	router.POST("/api/webhook/analyze", h.WebhookAnalyze())
	router.POST("/api/sessions", h.CreateSession())
	router.GET("/api/sessions", h.ListSessions())
	router.GET("/api/sessions/:id", h.GetSession())
	router.DELETE("/api/sessions/:id", h.DeleteSession())
	return router
}
