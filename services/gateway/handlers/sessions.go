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

	"github.com/gin-gonic/gin"

	"github.com/openplexity/openplexity/services/gateway/datatypes"
	"github.com/openplexity/openplexity/services/gateway/observability"
	"github.com/openplexity/openplexity/services/gateway/sessionstore"
)

// =============================================================================
// Session Endpoints
// =============================================================================

// CreateSession handles POST /api/sessions. It mints an empty session
// whose ID later search requests can thread through.
func (h *Handlers) CreateSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		record := datatypes.NewSessionRecord()
		if err := h.Store.Put(record); err != nil {
			h.Metrics.RecordError(observability.EndpointSessions, observability.ErrorCodeInternal)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create session"})
			return
		}
		h.Metrics.RecordSessionOp("create")
		c.JSON(http.StatusCreated, record.Summary())
	}
}

// ListSessions handles GET /api/sessions.
func (h *Handlers) ListSessions() gin.HandlerFunc {
	return func(c *gin.Context) {
		sessions, err := h.Store.List()
		if err != nil {
			h.Metrics.RecordError(observability.EndpointSessions, observability.ErrorCodeInternal)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list sessions"})
			return
		}
		h.Metrics.RecordSessionOp("list")
		c.JSON(http.StatusOK, gin.H{"sessions": sessions, "count": len(sessions)})
	}
}

// GetSession handles GET /api/sessions/:id.
func (h *Handlers) GetSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		record, err := h.Store.Get(c.Param("id"))
		if err != nil {
			if errors.Is(err, sessionstore.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
				return
			}
			h.Metrics.RecordError(observability.EndpointSessions, observability.ErrorCodeInternal)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "session lookup failed"})
			return
		}
		h.Metrics.RecordSessionOp("get")
		c.JSON(http.StatusOK, record.Summary())
	}
}

// DeleteSession handles DELETE /api/sessions/:id. Deleting an
// unknown session succeeds; the end state is the same.
func (h *Handlers) DeleteSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := h.Store.Delete(c.Param("id")); err != nil {
			h.Metrics.RecordError(observability.EndpointSessions, observability.ErrorCodeInternal)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "session delete failed"})
			return
		}
		h.Metrics.RecordSessionOp("delete")
		c.JSON(http.StatusOK, gin.H{"deleted": c.Param("id")})
	}
}
