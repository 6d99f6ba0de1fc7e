// Copyright (C) 2026 Openplexity Contributors (maintainers@openplexity.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package perplexity

import (
	"errors"
	"fmt"
)

// =============================================================================
// Error Kinds
// =============================================================================

// ErrorKind classifies client failures so callers can branch on the
// category without string matching.
//
// The kinds form a closed set. Retry decisions belong to RetryPolicy;
// nothing in this package retries on its own.
type ErrorKind int

const (
	// KindUnknown is the zero value for unclassified failures.
	KindUnknown ErrorKind = iota

	// KindDecode indicates a malformed SSE frame or undecodable JSON
	// payload. Decode failures are reported per frame; the stream
	// itself keeps going.
	KindDecode

	// KindProtocol indicates the upstream violated the expected
	// exchange sequence, such as content arriving after a terminal
	// event.
	KindProtocol

	// KindDisconnected indicates the connection dropped mid-stream
	// before a terminal event. Partial results remain available.
	KindDisconnected

	// KindAuth indicates the upstream rejected the request with
	// HTTP 401 or 403. Cookies are missing, expired, or revoked.
	KindAuth

	// KindNoContinuity indicates a result cannot seed a follow-up
	// exchange because the upstream withheld the backend identifier
	// (typical for incognito exchanges).
	KindNoContinuity

	// KindNotFound indicates a named entity (space, profile, session)
	// has no match.
	KindNotFound

	// KindValidation indicates the request was rejected locally
	// before any network traffic (bad mode, model, source, profile).
	KindValidation
)

// String returns the stable name of the kind.
func (k ErrorKind) String() string {
	switch k {
	case KindDecode:
		return "decode_error"
	case KindProtocol:
		return "protocol_error"
	case KindDisconnected:
		return "disconnected"
	case KindAuth:
		return "auth_error"
	case KindNoContinuity:
		return "no_continuity_available"
	case KindNotFound:
		return "not_found"
	case KindValidation:
		return "validation_error"
	default:
		return "unknown"
	}
}

// =============================================================================
// Sentinel Errors
// =============================================================================

// Sentinels for errors.Is checks. Every *ClientError matches the
// sentinel of its kind.
var (
	ErrDecode       = errors.New("malformed stream frame")
	ErrProtocol     = errors.New("protocol violation")
	ErrDisconnected = errors.New("stream disconnected")
	ErrAuth         = errors.New("authentication rejected")
	ErrNoContinuity = errors.New("no continuity available")
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("invalid request")
)

// sentinelFor maps a kind to its sentinel.
func sentinelFor(kind ErrorKind) error {
	switch kind {
	case KindDecode:
		return ErrDecode
	case KindProtocol:
		return ErrProtocol
	case KindDisconnected:
		return ErrDisconnected
	case KindAuth:
		return ErrAuth
	case KindNoContinuity:
		return ErrNoContinuity
	case KindNotFound:
		return ErrNotFound
	case KindValidation:
		return ErrValidation
	default:
		return nil
	}
}

// =============================================================================
// ClientError
// =============================================================================

// ClientError carries an ErrorKind alongside the message and an
// optional wrapped cause.
//
// # Thread Safety
//
// ClientError is immutable after construction and safe to share.
type ClientError struct {
	// Kind classifies the failure.
	Kind ErrorKind

	// Message is the human-readable description.
	Message string

	// Cause is the wrapped underlying error, if any.
	Cause error
}

// NewError creates a ClientError with the given kind and message.
func NewError(kind ErrorKind, format string, args ...any) *ClientError {
	return &ClientError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WrapError creates a ClientError wrapping an underlying cause.
func WrapError(kind ErrorKind, cause error, format string, args ...any) *ClientError {
	return &ClientError{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// Error implements the error interface.
func (e *ClientError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the wrapped cause.
func (e *ClientError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is the sentinel for this error's kind,
// making errors.Is(err, perplexity.ErrAuth) work without unwrapping.
func (e *ClientError) Is(target error) bool {
	return target == sentinelFor(e.Kind)
}

// KindOf extracts the ErrorKind from any error in the chain.
// Returns KindUnknown when no ClientError is present.
func KindOf(err error) ErrorKind {
	var ce *ClientError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return KindUnknown
}
