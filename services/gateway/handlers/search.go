// Copyright (C) 2026 Openplexity Contributors (maintainers@openplexity.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"

	"github.com/openplexity/openplexity/services/gateway/datatypes"
	"github.com/openplexity/openplexity/services/gateway/observability"
	"github.com/openplexity/openplexity/services/gateway/sessionstore"
	"github.com/openplexity/openplexity/services/perplexity"
)

// keepAliveInterval is how often an idle SSE stream gets a comment
// frame to keep intermediaries from closing the connection.
const keepAliveInterval = 15 * time.Second

// =============================================================================
// Blocking Search
// =============================================================================

// Search handles POST /api/search. It runs one exchange to completion
// and returns the assembled result as a single JSON document.
func (h *Handlers) Search() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		req, record, ok := h.bindSearchRequest(c, observability.EndpointSearch)
		if !ok {
			return
		}

		ctx, span := tracer.Start(c.Request.Context(), "gateway.search")
		defer span.End()
		span.SetAttributes(
			attribute.String("request.id", req.RequestID),
			attribute.String("search.mode", req.Mode),
		)

		opts := req.Options()
		if record != nil && record.Context.Valid() {
			follow := record.Context
			opts.FollowUp = &follow
		}

		result, err := h.Client.Search(ctx, opts)
		if err != nil {
			span.RecordError(err)
			h.respondError(c, observability.EndpointSearch, err)
			h.Metrics.RecordRequest(observability.EndpointSearch, "error", time.Since(start).Seconds())
			return
		}

		resp := datatypes.NewSearchResponse(req.RequestID, result)
		resp.ProcessingTimeMs = time.Since(start).Milliseconds()
		if record != nil {
			h.recordSessionTurn(record, req.Query, result)
			resp.SessionID = record.SessionID
		}

		h.Metrics.RecordRequest(observability.EndpointSearch, "ok", time.Since(start).Seconds())
		c.JSON(http.StatusOK, resp)
	}
}

// =============================================================================
// Streaming Search
// =============================================================================

// SearchStream handles POST /api/search/stream. It relays upstream
// progress as server-sent events carrying a verifiable hash chain,
// with keep-alive comments while the upstream is quiet.
func (h *Handlers) SearchStream() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		req, record, ok := h.bindSearchRequest(c, observability.EndpointStream)
		if !ok {
			return
		}

		ctx, span := tracer.Start(c.Request.Context(), "gateway.search_stream")
		defer span.End()
		span.SetAttributes(attribute.String("request.id", req.RequestID))

		SetSSEHeaders(c.Writer)
		writer, err := NewSSEWriter(c.Writer)
		if err != nil {
			h.respondError(c, observability.EndpointStream, err)
			return
		}

		h.Metrics.StreamStarted(observability.EndpointStream)
		defer func() {
			h.Metrics.StreamEnded(observability.EndpointStream, time.Since(start).Seconds())
		}()

		// Keep-alive ticker runs until the exchange finishes. The
		// writer's mutex keeps comment frames out of event frames.
		stopKeepAlive := make(chan struct{})
		go func() {
			ticker := time.NewTicker(keepAliveInterval)
			defer ticker.Stop()
			for {
				select {
				case <-stopKeepAlive:
					return
				case <-ticker.C:
					if writer.WriteKeepAlive() == nil {
						h.Metrics.RecordKeepAlive(observability.EndpointStream)
					}
				}
			}
		}()
		defer close(stopKeepAlive)

		opts := req.Options()
		if record != nil && record.Context.Valid() {
			follow := record.Context
			opts.FollowUp = &follow
		}

		firstEvent := true
		onProgress := func(ev perplexity.StreamEvent, _ func() perplexity.SearchResult) {
			if firstEvent {
				firstEvent = false
				h.Metrics.RecordTimeToFirstEvent(observability.EndpointStream, time.Since(start).Seconds())
			}
			h.relayEvent(writer, ev)
		}

		result, err := h.Client.SearchStream(ctx, opts, onProgress)
		if err != nil {
			span.RecordError(err)
			if ctx.Err() != nil {
				h.Metrics.RecordClientDisconnect(observability.EndpointStream)
				return
			}
			h.Metrics.RecordError(observability.EndpointStream, codeForKind(perplexity.KindOf(err)))
			_ = writer.WriteError(err.Error())
			return
		}

		sessionID := ""
		if record != nil {
			h.recordSessionTurn(record, req.Query, result)
			sessionID = record.SessionID
		}
		_ = writer.WriteDone(sessionID)
	}
}

// relayEvent converts one upstream event into an SSE frame. Done is
// suppressed here; the handler writes its own done event carrying the
// session ID.
func (h *Handlers) relayEvent(writer SSEWriter, ev perplexity.StreamEvent) {
	var err error
	switch ev.Type {
	case perplexity.EventStatus:
		err = writer.WriteStatus(ev.Message)
	case perplexity.EventPartialAnswer:
		err = writer.WriteDelta(ev.Text)
	case perplexity.EventSourceList:
		err = writer.WriteSources(ev.Sources)
	case perplexity.EventRelatedQueries:
		err = writer.WriteRelated(ev.Related)
	case perplexity.EventFinalAnswer:
		if ev.Final != nil {
			err = writer.WriteFinal(ev.Final.Answer, ev.Final.Sources, ev.Final.Related)
		}
	case perplexity.EventError:
		if ev.Err != nil && ev.Err.Kind == perplexity.KindDecode {
			// Per-frame decode problems leave the stream running.
			// Surface them as status so clients can log them.
			err = writer.WriteStatus("skipped an undecodable frame")
		}
	case perplexity.EventDone:
	}
	if err != nil {
		h.Logger.Warn("failed to relay stream event",
			"event_type", ev.Type.String(), "error", err)
	}
}

// =============================================================================
// Shared Request Plumbing
// =============================================================================

// bindSearchRequest parses, validates, and defaults a search request,
// loading its session record when one is referenced. On failure it
// writes the error response and returns ok=false.
func (h *Handlers) bindSearchRequest(c *gin.Context, endpoint observability.Endpoint) (*datatypes.SearchRequest, *datatypes.SessionRecord, bool) {
	var req datatypes.SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Metrics.RecordError(endpoint, observability.ErrorCodeValidation)
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return nil, nil, false
	}
	if err := req.Validate(); err != nil {
		h.Metrics.RecordError(endpoint, observability.ErrorCodeValidation)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return nil, nil, false
	}
	req.EnsureDefaults()

	var record *datatypes.SessionRecord
	if req.SessionID != "" {
		if h.Store == nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "session tracking is not enabled"})
			return nil, nil, false
		}
		var err error
		record, err = h.Store.Get(req.SessionID)
		if err != nil {
			if errors.Is(err, sessionstore.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "unknown session: " + req.SessionID})
			} else {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "session lookup failed"})
			}
			return nil, nil, false
		}
		h.Metrics.RecordSessionOp("get")
	}

	return &req, record, true
}

// recordSessionTurn persists the continuity of a completed exchange.
// Incognito exchanges carry no continuity; the turn still counts.
func (h *Handlers) recordSessionTurn(record *datatypes.SessionRecord, query string, result perplexity.SearchResult) {
	follow, err := h.Client.FollowUpFrom(result, record.Context.Attachments)
	if err != nil {
		follow = record.Context
	}
	record.RecordTurn(query, follow)
	if err := h.Store.Put(record); err != nil {
		h.Logger.Warn("failed to persist session turn",
			"session_id", record.SessionID, "error", err)
		return
	}
	h.Metrics.RecordSessionOp("put")
}
