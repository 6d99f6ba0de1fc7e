// Copyright (C) 2026 Openplexity Contributors (maintainers@openplexity.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/openplexity/openplexity/services/gateway/datatypes"
	"github.com/openplexity/openplexity/services/gateway/observability"
	"github.com/openplexity/openplexity/services/perplexity"
)

const (
	// batchConcurrency caps parallel upstream exchanges per job.
	batchConcurrency = 4

	// batchTimeout bounds one whole analyze job.
	batchTimeout = 15 * time.Minute

	// deliveryTimeout bounds one callback POST.
	deliveryTimeout = 30 * time.Second
)

// =============================================================================
// Webhook Analyze
// =============================================================================

// WebhookAnalyze handles POST /api/webhook/analyze. The batch is
// accepted with 202 and runs in the background; the assembled results
// are POSTed to the callback URL when every query has finished.
func (h *Handlers) WebhookAnalyze() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.WebhookAnalyzeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			h.Metrics.RecordError(observability.EndpointWebhook, observability.ErrorCodeValidation)
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
			return
		}
		if err := req.Validate(); err != nil {
			h.Metrics.RecordError(observability.EndpointWebhook, observability.ErrorCodeValidation)
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		req.EnsureDefaults()

		accepted := datatypes.NewWebhookAccepted(req.RequestID, len(req.Queries))

		// The job outlives the request, so it runs on a detached
		// context bounded by the batch timeout.
		go h.runAnalyzeJob(context.WithoutCancel(c.Request.Context()), accepted.JobID, req)

		c.JSON(http.StatusAccepted, accepted)
	}
}

// runAnalyzeJob executes the batch and delivers the results.
func (h *Handlers) runAnalyzeJob(ctx context.Context, jobID string, req datatypes.WebhookAnalyzeRequest) {
	ctx, cancel := context.WithTimeout(ctx, batchTimeout)
	defer cancel()

	ctx, span := tracer.Start(ctx, "gateway.webhook_analyze")
	defer span.End()

	start := time.Now()
	results := make([]datatypes.WebhookQueryResult, len(req.Queries))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(batchConcurrency)
	for i, query := range req.Queries {
		i, query := i, query
		g.Go(func() error {
			results[i] = h.runAnalyzeQuery(gctx, query, req)
			return nil
		})
	}
	// Workers never return errors; failures land in their result slot.
	_ = g.Wait()

	delivery := datatypes.NewWebhookDelivery(jobID, req.RequestID, results)
	if err := h.deliverWebhook(ctx, req.CallbackURL, delivery); err != nil {
		h.Metrics.RecordWebhookDelivery("failed")
		h.Logger.Error("webhook delivery failed",
			"job_id", jobID, "callback_url", req.CallbackURL, "error", err)
		return
	}
	h.Metrics.RecordWebhookDelivery("delivered")
	h.Logger.Info("webhook batch delivered",
		"job_id", jobID,
		"queries", len(req.Queries),
		"succeeded", delivery.Succeeded,
		"failed", delivery.Failed,
		"duration", time.Since(start).Round(time.Millisecond))
}

// runAnalyzeQuery runs one query with the retry policy. Transient
// upstream failures are retried; the last error is reported in the
// result slot.
func (h *Handlers) runAnalyzeQuery(ctx context.Context, query string, req datatypes.WebhookAnalyzeRequest) datatypes.WebhookQueryResult {
	opts := perplexity.SearchOptions{
		Query:   query,
		Mode:    perplexity.Mode(req.Mode),
		Profile: perplexity.Profile(req.Profile),
		Space:   req.Space,
		Sources: req.SearchSources,
	}

	var result perplexity.SearchResult
	attempt := 0
	err := h.Retry.Do(ctx, func(ctx context.Context) error {
		if attempt > 0 {
			h.Metrics.UpstreamRetriesTotal.Inc()
		}
		attempt++
		var err error
		result, err = h.Client.Search(ctx, opts)
		return err
	})

	out := datatypes.WebhookQueryResult{Query: query, Result: result}
	if err != nil {
		out.Error = err.Error()
		h.Metrics.RecordError(observability.EndpointWebhook, codeForKind(perplexity.KindOf(err)))
	}
	return out
}

// deliverWebhook POSTs the delivery payload to the callback URL.
// Non-2xx responses count as failures.
func (h *Handlers) deliverWebhook(ctx context.Context, callbackURL string, delivery *datatypes.WebhookDelivery) error {
	body, err := json.Marshal(delivery)
	if err != nil {
		return fmt.Errorf("marshal webhook delivery: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, deliveryTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, callbackURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Openplexity-Job-Id", delivery.JobID)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook delivery: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("callback returned status %d", resp.StatusCode)
	}
	return nil
}
