// Copyright (C) 2026 Openplexity Contributors (maintainers@openplexity.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package observability provides Prometheus metrics and OpenTelemetry
// tracing for the gateway service.
package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// Namespace is the Prometheus namespace for all gateway metrics.
	Namespace = "openplexity"

	// Subsystem is the Prometheus subsystem for gateway metrics.
	Subsystem = "gateway"
)

// Endpoint labels a metric with the API surface that produced it.
type Endpoint string

const (
	EndpointSearch    Endpoint = "search"
	EndpointStream    Endpoint = "search_stream"
	EndpointWebSocket Endpoint = "websocket"
	EndpointWebhook   Endpoint = "webhook_analyze"
	EndpointSessions  Endpoint = "sessions"
	EndpointSpaces    Endpoint = "spaces"
)

// ErrorCode labels error metrics with the client error kind.
type ErrorCode string

const (
	ErrorCodeValidation   ErrorCode = "validation"
	ErrorCodeAuth         ErrorCode = "auth"
	ErrorCodeDecode       ErrorCode = "decode"
	ErrorCodeProtocol     ErrorCode = "protocol"
	ErrorCodeDisconnected ErrorCode = "disconnected"
	ErrorCodeNotFound     ErrorCode = "not_found"
	ErrorCodeInternal     ErrorCode = "internal"
)

// =============================================================================
// Gateway Metrics
// =============================================================================

// GatewayMetrics holds all Prometheus metrics for the gateway.
//
// # Thread Safety
//
// All Prometheus metric types are safe for concurrent use.
type GatewayMetrics struct {
	// RequestsTotal counts API requests by endpoint and status.
	RequestsTotal *prometheus.CounterVec

	// RequestDuration observes end-to-end request latency.
	RequestDuration *prometheus.HistogramVec

	// ErrorsTotal counts errors by endpoint and error code.
	ErrorsTotal *prometheus.CounterVec

	// ActiveStreams gauges currently open SSE and WebSocket streams.
	ActiveStreams *prometheus.GaugeVec

	// StreamDuration observes how long streams stay open.
	StreamDuration *prometheus.HistogramVec

	// TimeToFirstEvent observes latency until the first relayed
	// stream event.
	TimeToFirstEvent *prometheus.HistogramVec

	// KeepAlivesTotal counts keep-alive comments written to idle
	// streams.
	KeepAlivesTotal *prometheus.CounterVec

	// ClientDisconnectsTotal counts streams ended by the client.
	ClientDisconnectsTotal *prometheus.CounterVec

	// UpstreamRetriesTotal counts retried upstream attempts.
	UpstreamRetriesTotal prometheus.Counter

	// WebhookDeliveriesTotal counts callback deliveries by outcome.
	WebhookDeliveriesTotal *prometheus.CounterVec

	// SessionOpsTotal counts session store operations by kind.
	SessionOpsTotal *prometheus.CounterVec
}

var (
	defaultMetrics *GatewayMetrics
	metricsOnce    sync.Once
)

// InitMetrics initializes the process-wide metrics singleton. Safe to
// call more than once.
func InitMetrics() *GatewayMetrics {
	metricsOnce.Do(func() {
		defaultMetrics = newGatewayMetrics()
	})
	return defaultMetrics
}

// DefaultMetrics returns the metrics singleton, initializing it on
// first use.
func DefaultMetrics() *GatewayMetrics {
	return InitMetrics()
}

func newGatewayMetrics() *GatewayMetrics {
	return &GatewayMetrics{
		RequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: Subsystem,
			Name:      "requests_total",
			Help:      "Total API requests by endpoint and status.",
		}, []string{"endpoint", "status"}),

		RequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: Subsystem,
			Name:      "request_duration_seconds",
			Help:      "End-to-end request latency in seconds.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"endpoint"}),

		ErrorsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: Subsystem,
			Name:      "errors_total",
			Help:      "Total errors by endpoint and error code.",
		}, []string{"endpoint", "code"}),

		ActiveStreams: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: Subsystem,
			Name:      "active_streams",
			Help:      "Currently open streaming connections.",
		}, []string{"endpoint"}),

		StreamDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: Subsystem,
			Name:      "stream_duration_seconds",
			Help:      "How long streaming connections stay open.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}, []string{"endpoint"}),

		TimeToFirstEvent: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: Subsystem,
			Name:      "time_to_first_event_seconds",
			Help:      "Latency until the first relayed stream event.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}, []string{"endpoint"}),

		KeepAlivesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: Subsystem,
			Name:      "keepalives_total",
			Help:      "Keep-alive comments written to idle streams.",
		}, []string{"endpoint"}),

		ClientDisconnectsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: Subsystem,
			Name:      "client_disconnects_total",
			Help:      "Streams ended by the client before completion.",
		}, []string{"endpoint"}),

		UpstreamRetriesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: Subsystem,
			Name:      "upstream_retries_total",
			Help:      "Retried upstream attempts.",
		}),

		WebhookDeliveriesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: Subsystem,
			Name:      "webhook_deliveries_total",
			Help:      "Callback deliveries by outcome.",
		}, []string{"outcome"}),

		SessionOpsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: Subsystem,
			Name:      "session_ops_total",
			Help:      "Session store operations by kind.",
		}, []string{"op"}),
	}
}

// =============================================================================
// Helper Methods
// =============================================================================

// RecordRequest records a completed request.
func (m *GatewayMetrics) RecordRequest(endpoint Endpoint, status string, seconds float64) {
	m.RequestsTotal.WithLabelValues(string(endpoint), status).Inc()
	m.RequestDuration.WithLabelValues(string(endpoint)).Observe(seconds)
}

// RecordError records an error outcome.
func (m *GatewayMetrics) RecordError(endpoint Endpoint, code ErrorCode) {
	m.ErrorsTotal.WithLabelValues(string(endpoint), string(code)).Inc()
}

// StreamStarted marks a stream as open.
func (m *GatewayMetrics) StreamStarted(endpoint Endpoint) {
	m.ActiveStreams.WithLabelValues(string(endpoint)).Inc()
}

// StreamEnded marks a stream as closed and records its duration.
func (m *GatewayMetrics) StreamEnded(endpoint Endpoint, seconds float64) {
	m.ActiveStreams.WithLabelValues(string(endpoint)).Dec()
	m.StreamDuration.WithLabelValues(string(endpoint)).Observe(seconds)
}

// RecordTimeToFirstEvent records latency to the first relayed event.
func (m *GatewayMetrics) RecordTimeToFirstEvent(endpoint Endpoint, seconds float64) {
	m.TimeToFirstEvent.WithLabelValues(string(endpoint)).Observe(seconds)
}

// RecordKeepAlive counts one keep-alive write.
func (m *GatewayMetrics) RecordKeepAlive(endpoint Endpoint) {
	m.KeepAlivesTotal.WithLabelValues(string(endpoint)).Inc()
}

// RecordClientDisconnect counts one client-initiated disconnect.
func (m *GatewayMetrics) RecordClientDisconnect(endpoint Endpoint) {
	m.ClientDisconnectsTotal.WithLabelValues(string(endpoint)).Inc()
}

// RecordWebhookDelivery counts one callback delivery attempt.
func (m *GatewayMetrics) RecordWebhookDelivery(outcome string) {
	m.WebhookDeliveriesTotal.WithLabelValues(outcome).Inc()
}

// RecordSessionOp counts one session store operation.
func (m *GatewayMetrics) RecordSessionOp(op string) {
	m.SessionOpsTotal.WithLabelValues(op).Inc()
}
