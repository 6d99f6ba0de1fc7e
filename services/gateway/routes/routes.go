// Copyright (C) 2026 Openplexity Contributors (maintainers@openplexity.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package routes wires the gateway's HTTP endpoints to their
// handlers.
package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/openplexity/openplexity/services/gateway/handlers"
	"github.com/openplexity/openplexity/services/gateway/middleware"
)

// Config tunes the route setup.
type Config struct {
	// APIKeys authorizes /api access. Empty means open access.
	APIKeys []string

	// RateLimit is the per-client rate limit for /api. Zero values
	// disable limiting.
	RateLimit middleware.RateLimitConfig

	// EnableSessions registers the session endpoints. Requires a
	// session store on the handlers.
	EnableSessions bool
}

// SetupRoutes registers every gateway endpoint on the router.
//
// Layout:
//
//	GET  /health                   liveness probe, unauthenticated
//	GET  /metrics                  Prometheus scrape, unauthenticated
//	POST /api/search               blocking search
//	POST /api/search/stream        SSE relay
//	GET  /api/ws                   WebSocket conversation
//	GET  /api/modes                modes and their models
//	GET  /api/profiles             query profiles
//	GET  /api/spaces               known spaces
//	POST /api/spaces               create a space
//	GET  /api/upstream/session     upstream account probe
//	POST /api/webhook/analyze      asynchronous batch
//	POST /api/sessions             create a session
//	GET  /api/sessions             list sessions
//	GET  /api/sessions/:id         session detail
//	DELETE /api/sessions/:id       delete a session
func SetupRoutes(router *gin.Engine, h *handlers.Handlers, cfg Config) {
	router.GET("/health", h.Health())
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api")
	api.Use(middleware.APIKeyAuth(cfg.APIKeys))
	if cfg.RateLimit.RequestsPerSecond > 0 {
		api.Use(middleware.RateLimit(cfg.RateLimit))
	}

	api.POST("/search", h.Search())
	api.POST("/search/stream", h.SearchStream())
	api.GET("/ws", h.WebSocketSearch())

	api.GET("/modes", h.ListModes())
	api.GET("/profiles", h.ListProfiles())
	api.GET("/spaces", h.ListSpaces())
	api.POST("/spaces", h.CreateSpace())
	api.GET("/upstream/session", h.UpstreamSession())

	api.POST("/webhook/analyze", h.WebhookAnalyze())

	if cfg.EnableSessions {
		sessions := api.Group("/sessions")
		sessions.POST("", h.CreateSession())
		sessions.GET("", h.ListSessions())
		sessions.GET("/:id", h.GetSession())
		sessions.DELETE("/:id", h.DeleteSession())
	}
}
