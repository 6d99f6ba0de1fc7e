// Copyright (C) 2026 Openplexity Contributors (maintainers@openplexity.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package perplexity

// =============================================================================
// ConversationContext
// =============================================================================

// ConversationContext carries everything needed to continue a
// conversation thread in a later exchange.
//
// A context is a plain value: serialize it, store it, hand it across
// process boundaries. The gateway persists contexts in its session
// store; the MCP server round-trips them through tool results.
//
// # Thread Safety
//
// Immutable by convention. Copy freely.
type ConversationContext struct {
	// BackendUUID identifies the conversation thread upstream.
	BackendUUID string `json:"backend_uuid"`

	// ReadWriteToken authorizes appending turns to the thread.
	ReadWriteToken string `json:"read_write_token"`

	// Attachments carries forward file URLs attached to earlier
	// turns, so follow-ups keep referring to the same documents.
	Attachments []string `json:"attachments,omitempty"`
}

// ContextFromResult derives a follow-up context from a completed
// exchange.
//
// Returns a KindNoContinuity error when the result carries no backend
// identifier, which is the normal outcome of an incognito exchange:
// the upstream deliberately withholds the thread identity, so there
// is nothing to continue from.
func ContextFromResult(res SearchResult, attachments []string) (ConversationContext, error) {
	if res.BackendUUID == "" {
		return ConversationContext{}, NewError(KindNoContinuity,
			"result has no backend identifier to continue from")
	}
	ctx := ConversationContext{
		BackendUUID:    res.BackendUUID,
		ReadWriteToken: res.ReadWriteToken,
	}
	if len(attachments) > 0 {
		ctx.Attachments = append([]string(nil), attachments...)
	}
	return ctx, nil
}

// Valid reports whether the context can seed a follow-up.
func (c ConversationContext) Valid() bool {
	return c.BackendUUID != ""
}

// WithAttachments returns a copy with the attachment list extended.
// The receiver is not modified.
func (c ConversationContext) WithAttachments(urls ...string) ConversationContext {
	next := c
	next.Attachments = append(append([]string(nil), c.Attachments...), urls...)
	return next
}
