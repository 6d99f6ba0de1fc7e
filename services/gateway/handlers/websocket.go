// Copyright (C) 2026 Openplexity Contributors (maintainers@openplexity.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/openplexity/openplexity/pkg/ux"
	"github.com/openplexity/openplexity/services/gateway/datatypes"
	"github.com/openplexity/openplexity/services/gateway/observability"
	"github.com/openplexity/openplexity/services/perplexity"
)

// upgrader configures the WebSocket upgrade. Origin checking is
// delegated to the auth middleware in front of this handler.
var upgrader = websocket.Upgrader{
	CheckOrigin:     func(r *http.Request) bool { return true },
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

// wsQuery is one inbound conversation turn.
type wsQuery struct {
	Query         string   `json:"query"`
	Mode          string   `json:"mode"`
	Model         string   `json:"model"`
	Profile       string   `json:"profile"`
	Space         string   `json:"space"`
	Incognito     bool     `json:"incognito"`
	SearchSources []string `json:"search_sources"`
}

// wsConn wraps a connection with a write lock and the per-connection
// event hash chain.
type wsConn struct {
	conn     *websocket.Conn
	hasher   ux.HashComputer
	mu       sync.Mutex
	prevHash string
}

// send writes one chained event to the connection.
func (w *wsConn) send(event *datatypes.StreamEvent) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	event.Id = uuid.NewString()
	event.CreatedAt = time.Now().UnixMilli()
	event.PrevHash = w.prevHash
	event.Hash = w.hasher.ComputeEventHash(event.Content, event.CreatedAt, event.PrevHash)

	if err := w.conn.WriteJSON(event); err != nil {
		return err
	}
	w.prevHash = event.Hash
	return nil
}

// =============================================================================
// WebSocket Search
// =============================================================================

// WebSocketSearch handles GET /api/ws. One connection is one
// conversation: the continuity from each completed turn threads into
// the next query sent on the same socket.
func (h *Handlers) WebSocketSearch() gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			h.Logger.Warn("websocket upgrade failed", "error", err)
			return
		}
		defer func() { _ = conn.Close() }()

		start := time.Now()
		h.Metrics.StreamStarted(observability.EndpointWebSocket)
		defer func() {
			h.Metrics.StreamEnded(observability.EndpointWebSocket, time.Since(start).Seconds())
		}()

		connectionID := uuid.NewString()
		h.Logger.Info("websocket conversation opened", "connection_id", connectionID)

		ws := &wsConn{conn: conn, hasher: ux.NewSHA256HashComputer()}
		var follow *perplexity.ConversationContext

		for {
			var query wsQuery
			if err := conn.ReadJSON(&query); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					h.Metrics.RecordClientDisconnect(observability.EndpointWebSocket)
				}
				h.Logger.Info("websocket conversation closed",
					"connection_id", connectionID, "turns_duration", time.Since(start).Round(time.Second))
				return
			}
			if query.Query == "" {
				_ = ws.send(&datatypes.StreamEvent{
					Type:  perplexity.EventError.String(),
					Error: "query must not be empty",
				})
				continue
			}

			result := h.runWebSocketTurn(c, ws, query, follow)

			// Incognito turns return no continuity; the conversation
			// resumes from the last threaded turn.
			if next, err := h.Client.FollowUpFrom(result, nil); err == nil {
				follow = &next
			}
		}
	}
}

// runWebSocketTurn executes one turn, relaying progress events.
func (h *Handlers) runWebSocketTurn(c *gin.Context, ws *wsConn, query wsQuery, follow *perplexity.ConversationContext) perplexity.SearchResult {
	ctx, span := tracer.Start(c.Request.Context(), "gateway.websocket_turn")
	defer span.End()

	opts := perplexity.SearchOptions{
		Query:     query.Query,
		Mode:      perplexity.Mode(query.Mode),
		Model:     query.Model,
		Profile:   perplexity.Profile(query.Profile),
		Space:     query.Space,
		Incognito: query.Incognito,
		Sources:   query.SearchSources,
		FollowUp:  follow,
	}

	onProgress := func(ev perplexity.StreamEvent, _ func() perplexity.SearchResult) {
		h.relayWebSocketEvent(ws, ev)
	}

	result, err := h.Client.SearchStream(ctx, opts, onProgress)
	if err != nil {
		span.RecordError(err)
		h.Metrics.RecordError(observability.EndpointWebSocket, codeForKind(perplexity.KindOf(err)))
		_ = ws.send(&datatypes.StreamEvent{
			Type:  perplexity.EventError.String(),
			Error: err.Error(),
		})
		return result
	}

	_ = ws.send(&datatypes.StreamEvent{Type: perplexity.EventDone.String()})
	return result
}

// relayWebSocketEvent mirrors relayEvent for the WebSocket transport.
func (h *Handlers) relayWebSocketEvent(ws *wsConn, ev perplexity.StreamEvent) {
	event := &datatypes.StreamEvent{Type: ev.Type.String()}
	switch ev.Type {
	case perplexity.EventStatus:
		event.Message = ev.Message
	case perplexity.EventPartialAnswer:
		event.Content = ev.Text
	case perplexity.EventSourceList:
		event.Sources = ev.Sources
	case perplexity.EventRelatedQueries:
		event.Related = ev.Related
	case perplexity.EventFinalAnswer:
		if ev.Final == nil {
			return
		}
		event.Content = ev.Final.Answer
		event.Sources = ev.Final.Sources
		event.Related = ev.Final.Related
	default:
		// Errors and done are reported by the turn driver with the
		// outcome it observed.
		return
	}
	if err := ws.send(event); err != nil {
		h.Logger.Warn("failed to relay websocket event",
			"event_type", ev.Type.String(), "error", err)
	}
}
