// Copyright (C) 2026 Openplexity Contributors (maintainers@openplexity.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

import (
	"time"

	"github.com/google/uuid"

	"github.com/openplexity/openplexity/services/perplexity"
)

// =============================================================================
// Webhook Constants
// =============================================================================

const (
	// MaxBatchQueries caps how many queries one analyze job may carry.
	MaxBatchQueries = 20
)

// =============================================================================
// Webhook Request Types
// =============================================================================

// WebhookAnalyzeRequest asks the gateway to run a batch of queries
// asynchronously and POST the assembled results to a callback URL.
//
// # Fields
//
//   - RequestID: Unique identifier for this request (UUID v4).
//   - Queries: The questions to run, at most 20, each at most 32KB.
//   - Mode: Search mode applied to every query.
//   - Profile: Query profile applied to every query.
//   - Space: Space name or UUID applied to every query.
//   - SearchSources: Source categories applied to every query.
//   - CallbackURL: Required. Where to deliver the results. Must be
//     an http or https URL.
type WebhookAnalyzeRequest struct {
	RequestID     string   `json:"request_id" validate:"omitempty,uuid4"`
	Queries       []string `json:"queries" validate:"required,min=1,max=20,dive,required,maxbytes"`
	Mode          string   `json:"mode"`
	Profile       string   `json:"profile"`
	Space         string   `json:"space"`
	SearchSources []string `json:"search_sources" validate:"omitempty,dive,oneof=web scholar social edgar"`
	CallbackURL   string   `json:"callback_url" validate:"required,url,startswith=http"`
}

// Validate validates the WebhookAnalyzeRequest fields.
func (r *WebhookAnalyzeRequest) Validate() error {
	return searchValidate.Struct(r)
}

// EnsureDefaults populates RequestID if the client did not provide
// one.
func (r *WebhookAnalyzeRequest) EnsureDefaults() {
	if r.RequestID == "" {
		r.RequestID = uuid.NewString()
	}
}

// =============================================================================
// Webhook Response Types
// =============================================================================

// WebhookAccepted acknowledges an analyze job. Returned with 202
// while the job runs in the background.
type WebhookAccepted struct {
	JobID      string `json:"job_id"`
	RequestID  string `json:"request_id"`
	QueryCount int    `json:"query_count"`
	Status     string `json:"status"`
}

// NewWebhookAccepted creates the acknowledgement for an accepted job.
func NewWebhookAccepted(requestID string, queryCount int) *WebhookAccepted {
	return &WebhookAccepted{
		JobID:      uuid.NewString(),
		RequestID:  requestID,
		QueryCount: queryCount,
		Status:     "accepted",
	}
}

// WebhookQueryResult is one query's outcome inside a delivered batch.
type WebhookQueryResult struct {
	Query  string                  `json:"query"`
	Result perplexity.SearchResult `json:"result"`
	Error  string                  `json:"error,omitempty"`
}

// WebhookDelivery is the payload POSTed to the callback URL when the
// batch completes. Results keep the order of the submitted queries.
type WebhookDelivery struct {
	JobID       string               `json:"job_id"`
	RequestID   string               `json:"request_id"`
	CompletedAt int64                `json:"completed_at"`
	Succeeded   int                  `json:"succeeded"`
	Failed      int                  `json:"failed"`
	Results     []WebhookQueryResult `json:"results"`
}

// NewWebhookDelivery assembles the delivery payload from per-query
// outcomes.
func NewWebhookDelivery(jobID, requestID string, results []WebhookQueryResult) *WebhookDelivery {
	d := &WebhookDelivery{
		JobID:       jobID,
		RequestID:   requestID,
		CompletedAt: time.Now().UnixMilli(),
		Results:     results,
	}
	for _, r := range results {
		if r.Error == "" {
			d.Succeeded++
		} else {
			d.Failed++
		}
	}
	return d
}
