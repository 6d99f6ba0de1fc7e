// Copyright (C) 2026 Openplexity Contributors (maintainers@openplexity.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package sessionstore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openplexity/openplexity/services/gateway/datatypes"
	"github.com/openplexity/openplexity/services/perplexity"
)

// newTestStore opens an in-memory store that closes with the test.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(InMemoryConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// TestStore_PutGet verifies a round trip through the store.
func TestStore_PutGet(t *testing.T) {
	s := newTestStore(t)

	rec := datatypes.NewSessionRecord()
	rec.RecordTurn("first question", perplexity.ConversationContext{
		BackendUUID:    "b-1",
		ReadWriteToken: "t-1",
	})
	require.NoError(t, s.Put(rec))

	got, err := s.Get(rec.SessionID)
	require.NoError(t, err)
	assert.Equal(t, rec.SessionID, got.SessionID)
	assert.Equal(t, "first question", got.LastQuery)
	assert.Equal(t, "b-1", got.Context.BackendUUID)
	assert.Equal(t, "t-1", got.Context.ReadWriteToken)
	assert.Equal(t, 1, got.TurnCount)
}

// TestStore_GetMissing verifies ErrNotFound for unknown IDs.
func TestStore_GetMissing(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Get("00000000-0000-4000-8000-000000000000")
	require.ErrorIs(t, err, ErrNotFound)
}

// TestStore_PutRejectsInvalid verifies records are validated before
// storage.
func TestStore_PutRejectsInvalid(t *testing.T) {
	s := newTestStore(t)

	err := s.Put(&datatypes.SessionRecord{SessionID: "not-a-uuid"})
	require.Error(t, err)
}

// TestStore_Overwrite verifies a later Put replaces the record.
func TestStore_Overwrite(t *testing.T) {
	s := newTestStore(t)

	rec := datatypes.NewSessionRecord()
	rec.RecordTurn("one", perplexity.ConversationContext{BackendUUID: "b-1", ReadWriteToken: "t"})
	require.NoError(t, s.Put(rec))

	rec.RecordTurn("two", perplexity.ConversationContext{BackendUUID: "b-2", ReadWriteToken: "t"})
	require.NoError(t, s.Put(rec))

	got, err := s.Get(rec.SessionID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.TurnCount)
	assert.Equal(t, "two", got.LastQuery)
	assert.Equal(t, "b-2", got.Context.BackendUUID)
}

// TestStore_Delete verifies deletion and that deleting an unknown
// session is a no-op.
func TestStore_Delete(t *testing.T) {
	s := newTestStore(t)

	rec := datatypes.NewSessionRecord()
	require.NoError(t, s.Put(rec))
	require.NoError(t, s.Delete(rec.SessionID))

	_, err := s.Get(rec.SessionID)
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Delete(rec.SessionID))
}

// TestStore_List verifies listing returns summaries newest first and
// never exposes continuity tokens.
func TestStore_List(t *testing.T) {
	s := newTestStore(t)

	older := datatypes.NewSessionRecord()
	older.UpdatedAt = time.Now().Add(-time.Hour).UnixMilli()
	older.LastQuery = "old"
	require.NoError(t, s.Put(older))

	newer := datatypes.NewSessionRecord()
	newer.LastQuery = "new"
	require.NoError(t, s.Put(newer))

	list, err := s.List()
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, newer.SessionID, list[0].SessionID)
	assert.Equal(t, older.SessionID, list[1].SessionID)
}

// TestStore_TTLExpiry verifies sessions age out after the TTL.
func TestStore_TTLExpiry(t *testing.T) {
	cfg := InMemoryConfig()
	cfg.SessionTTL = 50 * time.Millisecond
	s, err := Open(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	rec := datatypes.NewSessionRecord()
	require.NoError(t, s.Put(rec))

	_, err = s.Get(rec.SessionID)
	require.NoError(t, err)

	time.Sleep(100 * time.Millisecond)

	_, err = s.Get(rec.SessionID)
	require.ErrorIs(t, err, ErrNotFound)
}

// TestStore_CloseIsIdempotent verifies double Close is safe.
func TestStore_CloseIsIdempotent(t *testing.T) {
	s, err := Open(InMemoryConfig())
	require.NoError(t, err)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
}
