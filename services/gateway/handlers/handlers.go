// Copyright (C) 2026 Openplexity Contributors (maintainers@openplexity.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package handlers implements the gateway's HTTP endpoints.
//
// The handlers translate between the REST surface and the streaming
// search client: blocking search, SSE relay, WebSocket chat, session
// CRUD, space management, and asynchronous webhook batches.
package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"

	"github.com/openplexity/openplexity/services/gateway/observability"
	"github.com/openplexity/openplexity/services/gateway/sessionstore"
	"github.com/openplexity/openplexity/services/perplexity"
)

// tracer is the package-level tracer for handler spans.
var tracer = otel.Tracer("openplexity.gateway.handlers")

// =============================================================================
// Searcher Interface
// =============================================================================

// Searcher is the slice of the search client the handlers use.
// Narrowed to an interface so tests can substitute a fake upstream.
type Searcher interface {
	Search(ctx context.Context, opts perplexity.SearchOptions) (perplexity.SearchResult, error)
	SearchStream(ctx context.Context, opts perplexity.SearchOptions, onProgress perplexity.ProgressFunc) (perplexity.SearchResult, error)
	FollowUpFrom(res perplexity.SearchResult, attachments []string) (perplexity.ConversationContext, error)
	CreateSpace(ctx context.Context, opts perplexity.CreateSpaceOptions) (perplexity.SpaceInfo, error)
	Spaces() map[string]string
	SessionInfo(ctx context.Context) (map[string]any, error)
	Authenticated() bool
}

// Compile-time check that the real client satisfies the interface.
var _ Searcher = (*perplexity.Client)(nil)

// =============================================================================
// Handlers
// =============================================================================

// Handlers holds the dependencies shared by all endpoints.
//
// # Fields
//
//   - Client: The upstream search client.
//   - Store: Session persistence. Nil disables session tracking.
//   - Metrics: Prometheus metrics sink.
//   - Logger: Structured logger.
//   - Retry: Retry policy applied to webhook batch queries.
type Handlers struct {
	Client  Searcher
	Store   *sessionstore.Store
	Metrics *observability.GatewayMetrics
	Logger  *slog.Logger
	Retry   perplexity.RetryPolicy
}

// New creates a Handlers with sensible defaults for nil collaborators.
func New(client Searcher, store *sessionstore.Store, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		Client:  client,
		Store:   store,
		Metrics: observability.DefaultMetrics(),
		Logger:  logger,
		Retry:   perplexity.DefaultRetryPolicy(),
	}
}

// =============================================================================
// Error Mapping
// =============================================================================

// statusForKind maps a client error kind to an HTTP status.
func statusForKind(kind perplexity.ErrorKind) int {
	switch kind {
	case perplexity.KindValidation:
		return http.StatusBadRequest
	case perplexity.KindAuth:
		return http.StatusUnauthorized
	case perplexity.KindNotFound:
		return http.StatusNotFound
	case perplexity.KindDisconnected:
		return http.StatusBadGateway
	case perplexity.KindProtocol, perplexity.KindDecode:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// codeForKind maps a client error kind to a metrics error code.
func codeForKind(kind perplexity.ErrorKind) observability.ErrorCode {
	switch kind {
	case perplexity.KindValidation:
		return observability.ErrorCodeValidation
	case perplexity.KindAuth:
		return observability.ErrorCodeAuth
	case perplexity.KindDecode:
		return observability.ErrorCodeDecode
	case perplexity.KindProtocol:
		return observability.ErrorCodeProtocol
	case perplexity.KindDisconnected:
		return observability.ErrorCodeDisconnected
	case perplexity.KindNotFound:
		return observability.ErrorCodeNotFound
	default:
		return observability.ErrorCodeInternal
	}
}

// respondError writes a JSON error response and records the metric.
func (h *Handlers) respondError(c *gin.Context, endpoint observability.Endpoint, err error) {
	kind := perplexity.KindOf(err)
	h.Metrics.RecordError(endpoint, codeForKind(kind))
	c.JSON(statusForKind(kind), gin.H{"error": err.Error()})
}
