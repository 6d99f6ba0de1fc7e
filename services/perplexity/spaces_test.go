// Copyright (C) 2026 Openplexity Contributors (maintainers@openplexity.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package perplexity

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSpaceUUID = "ca8b447a-4d33-4936-a3e5-a9d31b789cb3"

// newTestStore writes a spaces file and opens a store over it.
func newTestStore(t *testing.T, content string) (*SpaceStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "spaces.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	store, err := NewSpaceStore(path, nil)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store, path
}

// TestSpaceStore_UUIDPassthrough verifies a v4-shaped identifier
// bypasses the mapping entirely.
func TestSpaceStore_UUIDPassthrough(t *testing.T) {
	store, _ := newTestStore(t, `{}`)

	got, err := store.Resolve(testSpaceUUID)
	require.NoError(t, err)
	assert.Equal(t, testSpaceUUID, got)
}

// TestSpaceStore_NameLookup verifies exact-match name resolution.
func TestSpaceStore_NameLookup(t *testing.T) {
	store, _ := newTestStore(t, `{"Trading Analysis":"`+testSpaceUUID+`"}`)

	got, err := store.Resolve("Trading Analysis")
	require.NoError(t, err)
	assert.Equal(t, testSpaceUUID, got)
}

// TestSpaceStore_UnknownName verifies unknown names report not-found.
func TestSpaceStore_UnknownName(t *testing.T) {
	store, _ := newTestStore(t, `{}`)

	_, err := store.Resolve("No Such Space")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
}

// TestSpaceStore_EmptyIdentifier verifies the empty identifier means
// no space, not an error.
func TestSpaceStore_EmptyIdentifier(t *testing.T) {
	store, _ := newTestStore(t, `{}`)

	got, err := store.Resolve("")
	require.NoError(t, err)
	assert.Empty(t, got)
}

// TestSpaceStore_WrapperFormat verifies the {"spaces": {...}} file
// form loads.
func TestSpaceStore_WrapperFormat(t *testing.T) {
	store, _ := newTestStore(t, `{"spaces":{"Research":"`+testSpaceUUID+`"}}`)

	got, err := store.Resolve("Research")
	require.NoError(t, err)
	assert.Equal(t, testSpaceUUID, got)
}

// TestSpaceStore_AddPersists verifies Add updates the file and the
// in-memory mapping.
func TestSpaceStore_AddPersists(t *testing.T) {
	store, path := newTestStore(t, `{}`)

	require.NoError(t, store.Add("New Space", testSpaceUUID))

	got, err := store.Resolve("New Space")
	require.NoError(t, err)
	assert.Equal(t, testSpaceUUID, got)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "New Space")
}

// TestSpaceStore_ReloadsOnFileChange verifies an external edit to the
// file becomes visible without a restart.
func TestSpaceStore_ReloadsOnFileChange(t *testing.T) {
	store, path := newTestStore(t, `{}`)

	require.NoError(t, os.WriteFile(path, []byte(`{"Added Later":"`+testSpaceUUID+`"}`), 0644))

	require.Eventually(t, func() bool {
		_, err := store.Resolve("Added Later")
		return err == nil
	}, 3*time.Second, 20*time.Millisecond, "watcher must pick up the edit")
}

// TestSpaceStore_MissingFile verifies a missing file starts an empty
// store rather than failing.
func TestSpaceStore_MissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "spaces.json")

	store, err := NewSpaceStore(path, nil)
	require.NoError(t, err)
	defer store.Close()

	assert.Empty(t, store.List())
}

// TestStaticSpaces verifies the in-memory resolver follows the same
// rules as the file-backed one.
func TestStaticSpaces(t *testing.T) {
	spaces := StaticSpaces{"Docs": testSpaceUUID}

	got, err := spaces.Resolve("Docs")
	require.NoError(t, err)
	assert.Equal(t, testSpaceUUID, got)

	got, err = spaces.Resolve(testSpaceUUID)
	require.NoError(t, err)
	assert.Equal(t, testSpaceUUID, got)

	_, err = spaces.Resolve("missing")
	assert.True(t, errors.Is(err, ErrNotFound))
}

// TestIsSpaceUUID verifies only v4-shaped identifiers pass through.
func TestIsSpaceUUID(t *testing.T) {
	assert.True(t, IsSpaceUUID(testSpaceUUID))
	assert.False(t, IsSpaceUUID("Trading Analysis"))
	assert.False(t, IsSpaceUUID("not-a-uuid-at-all"))
	// v1 layout: version nibble is 1
	assert.False(t, IsSpaceUUID("ca8b447a-4d33-1936-a3e5-a9d31b789cb3"))
}
