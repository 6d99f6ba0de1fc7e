// Copyright (C) 2026 Openplexity Contributors (maintainers@openplexity.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/openplexity/openplexity/services/gateway/observability"
	"github.com/openplexity/openplexity/services/perplexity"
)

// =============================================================================
// Health and Discovery Endpoints
// =============================================================================

// Health handles GET /health.
func (h *Handlers) Health() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":        "ok",
			"authenticated": h.Client.Authenticated(),
		})
	}
}

// ListModes handles GET /api/modes. Each mode is returned with the
// model names it accepts.
func (h *Handlers) ListModes() gin.HandlerFunc {
	return func(c *gin.Context) {
		modes := make([]gin.H, 0)
		for _, mode := range perplexity.Modes() {
			modes = append(modes, gin.H{
				"name":   mode,
				"models": perplexity.ModelsFor(perplexity.Mode(mode)),
			})
		}
		c.JSON(http.StatusOK, gin.H{"modes": modes})
	}
}

// ListProfiles handles GET /api/profiles.
func (h *Handlers) ListProfiles() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"profiles": perplexity.ProfileNames()})
	}
}

// ListSpaces handles GET /api/spaces.
func (h *Handlers) ListSpaces() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"spaces": h.Client.Spaces()})
	}
}

// createSpaceRequest is the body for POST /api/spaces.
type createSpaceRequest struct {
	Title        string `json:"title"`
	Description  string `json:"description"`
	Emoji        string `json:"emoji"`
	Instructions string `json:"instructions"`
}

// CreateSpace handles POST /api/spaces.
func (h *Handlers) CreateSpace() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createSpaceRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			h.Metrics.RecordError(observability.EndpointSpaces, observability.ErrorCodeValidation)
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
			return
		}

		info, err := h.Client.CreateSpace(c.Request.Context(), perplexity.CreateSpaceOptions{
			Title:        req.Title,
			Description:  req.Description,
			Emoji:        req.Emoji,
			Instructions: req.Instructions,
			AutoSave:     true,
		})
		if err != nil {
			h.respondError(c, observability.EndpointSpaces, err)
			return
		}
		c.JSON(http.StatusCreated, info)
	}
}

// UpstreamSession handles GET /api/upstream/session. It proxies the
// upstream account probe so operators can check which identity the
// gateway's cookies resolve to.
func (h *Handlers) UpstreamSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		info, err := h.Client.SessionInfo(c.Request.Context())
		if err != nil {
			h.respondError(c, observability.EndpointSessions, err)
			return
		}
		c.JSON(http.StatusOK, info)
	}
}
