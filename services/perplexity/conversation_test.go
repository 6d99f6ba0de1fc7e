// Copyright (C) 2026 Openplexity Contributors (maintainers@openplexity.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package perplexity

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestContextFromResult verifies continuity derives from a threaded
// result.
func TestContextFromResult(t *testing.T) {
	res := SearchResult{BackendUUID: "b-1", ReadWriteToken: "t-1"}

	ctx, err := ContextFromResult(res, []string{"https://files/doc.pdf"})
	require.NoError(t, err)
	assert.Equal(t, "b-1", ctx.BackendUUID)
	assert.Equal(t, "t-1", ctx.ReadWriteToken)
	assert.Equal(t, []string{"https://files/doc.pdf"}, ctx.Attachments)
	assert.True(t, ctx.Valid())
}

// TestContextFromResult_Incognito verifies an incognito result (no
// backend identifier) yields a no-continuity error.
func TestContextFromResult_Incognito(t *testing.T) {
	_, err := ContextFromResult(SearchResult{Answer: "text but no thread"}, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoContinuity))
}

// TestContext_RoundTripThroughBuilder verifies a derived context
// threads back into the next request payload unchanged.
func TestContext_RoundTripThroughBuilder(t *testing.T) {
	res := SearchResult{BackendUUID: "b-42", ReadWriteToken: "t-42"}
	ctx, err := ContextFromResult(res, []string{"https://files/a.txt"})
	require.NoError(t, err)

	payload, err := NewRequestBuilder("follow up").WithFollowUp(ctx).Build()
	require.NoError(t, err)

	params := payload["params"].(map[string]any)
	assert.Equal(t, "b-42", params["last_backend_uuid"])
	assert.Equal(t, "t-42", params["read_write_token"])
	assert.Contains(t, params["attachments"], "https://files/a.txt")
}

// TestContext_WithAttachments verifies the receiver is not mutated.
func TestContext_WithAttachments(t *testing.T) {
	base := ConversationContext{BackendUUID: "b", Attachments: []string{"one"}}

	extended := base.WithAttachments("two")

	assert.Equal(t, []string{"one"}, base.Attachments)
	assert.Equal(t, []string{"one", "two"}, extended.Attachments)
}
