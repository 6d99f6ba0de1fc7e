// Copyright (C) 2026 Openplexity Contributors (maintainers@openplexity.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package perplexity

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/openplexity/openplexity/pkg/logging"
)

// tracer is the package tracer for streaming spans.
var tracer = otel.Tracer("openplexity.perplexity")

// =============================================================================
// Wire Endpoints
// =============================================================================

const (
	// DefaultBaseURL is the production upstream.
	DefaultBaseURL = "https://www.perplexity.ai"

	// askEndpoint streams answers for one query.
	askEndpoint = "/rest/sse/perplexity_ask"

	// collectionsEndpoint creates a new space.
	collectionsEndpoint = "/rest/collections/create_collection"

	// wireVersion is the API version tag sent on every payload.
	wireVersion = "2.18"

	// maxFrameSize bounds a single SSE frame. FINAL frames carry the
	// whole answer document and can run to megabytes.
	maxFrameSize = 16 * 1024 * 1024
)

// =============================================================================
// Progress Callback
// =============================================================================

// ProgressFunc observes decoded events during a streaming exchange.
//
// The snapshot function materializes a copy of the result assembled
// so far; it is cheap to ignore and only does work when called, so
// callers that only care about token-level events pay nothing for
// snapshot support.
//
// Callbacks run on the stream-reading goroutine. A slow callback
// slows the stream; offload heavy work.
type ProgressFunc func(ev StreamEvent, snapshot func() SearchResult)

// =============================================================================
// StreamSession
// =============================================================================

// StreamSession drives a single request/response exchange.
//
// A session is single-use: construct, Run once, discard. It owns a
// fresh ChunkDecoder and AnswerAccumulator, opens the SSE request,
// folds frames until a terminal event or end_of_stream, and returns
// the assembled result.
//
// Failure semantics:
//
//   - HTTP 401/403 before any frame: KindAuth error.
//   - Connection drop mid-stream: KindDisconnected error, with the
//     partial result still populated in the returned SearchResult.
//   - Context cancellation: the context error, partials preserved.
//
// The session never retries. See RetryPolicy.
//
// # Thread Safety
//
// Run must be called by one goroutine. The accumulator behind the
// progress snapshots is internally synchronized, so snapshot
// functions may be handed to other goroutines.
type StreamSession struct {
	httpClient *http.Client
	baseURL    string
	creds      *Credentials
	logger     *logging.Logger

	query   string
	payload map[string]any

	decoder *ChunkDecoder
	acc     *AnswerAccumulator
}

// NewStreamSession prepares a session for one exchange.
//
// The payload comes from RequestBuilder.Build. The http.Client and
// Credentials are borrowed, not owned.
func NewStreamSession(httpClient *http.Client, baseURL string, creds *Credentials, logger *logging.Logger, query string, payload map[string]any) *StreamSession {
	if logger == nil {
		logger = logging.Default()
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &StreamSession{
		httpClient: httpClient,
		baseURL:    baseURL,
		creds:      creds,
		logger:     logger,
		query:      query,
		payload:    payload,
		decoder:    NewChunkDecoder(),
		acc:        NewAnswerAccumulator(query),
	}
}

// Run executes the exchange.
//
// onProgress may be nil. The returned SearchResult is always
// populated, even on error, with whatever accumulated before the
// failure.
func (s *StreamSession) Run(ctx context.Context, onProgress ProgressFunc) (SearchResult, error) {
	ctx, span := tracer.Start(ctx, "perplexity.stream")
	defer span.End()
	span.SetAttributes(
		attribute.Int("query.length", len(s.query)),
		attribute.Bool("authenticated", s.creds != nil && s.creds.Present()),
	)

	start := time.Now()
	resp, err := s.open(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return s.fail(onProgress, err)
	}
	defer resp.Body.Close()

	if err := s.checkStatus(resp); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return s.fail(onProgress, err)
	}

	err = s.consume(ctx, resp.Body, onProgress)
	res, resErr := s.acc.Result()
	if err == nil {
		err = resErr
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetAttributes(attribute.Int("answer.length", len(res.Answer)))
	}
	s.logger.Debug("stream session finished",
		"complete", res.Complete,
		"duration_ms", time.Since(start).Milliseconds(),
		"decode_errors", res.DecodeErrors,
	)
	return res, err
}

// open sends the POST and returns the streaming response.
func (s *StreamSession) open(ctx context.Context) (*http.Response, error) {
	body, err := json.Marshal(s.payload)
	if err != nil {
		return nil, WrapError(KindValidation, err, "encode request payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+askEndpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build stream request: %w", err)
	}

	if s.creds != nil {
		headers, err := s.creds.Headers()
		if err != nil {
			return nil, fmt.Errorf("render credential headers: %w", err)
		}
		req.Header = headers
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, WrapError(KindDisconnected, err, "open answer stream")
	}
	return resp, nil
}

// checkStatus classifies non-200 responses. The body is drained for
// the error message and the response must not be used afterwards.
func (s *StreamSession) checkStatus(resp *http.Response) error {
	if resp.StatusCode == http.StatusOK {
		return nil
	}

	detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return NewError(KindAuth, "upstream rejected credentials (HTTP %d)", resp.StatusCode)
	default:
		return NewError(KindUnknown, "upstream HTTP %d: %s", resp.StatusCode, bytes.TrimSpace(detail))
	}
}

// consume reads frames until a terminal event, end_of_stream, or a
// transport failure.
func (s *StreamSession) consume(ctx context.Context, body io.Reader, onProgress ProgressFunc) error {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 64*1024), maxFrameSize)
	scanner.Split(scanFrames)

	closed := false
	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		for _, ev := range s.decoder.DecodeFrame(scanner.Bytes()) {
			if err := s.acc.Apply(ev); err != nil {
				// Content after a terminal event: report and stop.
				return err
			}
			s.emit(onProgress, ev)
			if ev.Type == EventDone || ev.Terminal() {
				closed = true
			}
		}
		if closed {
			return nil
		}
	}

	if err := scanner.Err(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return s.disconnect(onProgress, err)
	}
	// EOF without end_of_stream: the upstream hung up early.
	return s.disconnect(onProgress, io.ErrUnexpectedEOF)
}

// disconnect records a mid-stream drop on the accumulator so the
// partial result carries the failure, then returns it.
func (s *StreamSession) disconnect(onProgress ProgressFunc, cause error) error {
	ce := WrapError(KindDisconnected, cause, "stream dropped before completion")
	ev := StreamEvent{Type: EventError, Message: ce.Message, Err: ce}
	_ = s.acc.Apply(ev)
	s.emit(onProgress, ev)
	return ce
}

// fail routes a pre-stream failure through the accumulator so the
// caller sees a uniform result shape.
func (s *StreamSession) fail(onProgress ProgressFunc, err error) (SearchResult, error) {
	ce, ok := err.(*ClientError)
	if !ok {
		ce = WrapError(KindUnknown, err, "exchange failed")
	}
	ev := StreamEvent{Type: EventError, Message: ce.Message, Err: ce}
	_ = s.acc.Apply(ev)
	s.emit(onProgress, ev)
	res, _ := s.acc.Result()
	return res, err
}

// emit invokes the progress callback with a lazy snapshot.
func (s *StreamSession) emit(onProgress ProgressFunc, ev StreamEvent) {
	if onProgress == nil {
		return
	}
	onProgress(ev, s.acc.Snapshot)
}

// scanFrames is a bufio.SplitFunc yielding one SSE frame per token.
// Frames are CRLF-delimited on the wire; bare LF delimiters are
// accepted for test servers.
func scanFrames(data []byte, atEOF bool) (int, []byte, error) {
	if i := bytes.Index(data, []byte("\r\n\r\n")); i >= 0 {
		return i + 4, data[:i], nil
	}
	if i := bytes.Index(data, []byte("\n\n")); i >= 0 {
		return i + 2, data[:i], nil
	}
	if atEOF && len(data) > 0 {
		return len(data), data, nil
	}
	return 0, nil, nil
}
