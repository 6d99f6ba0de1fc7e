// Copyright (C) 2026 Openplexity Contributors (maintainers@openplexity.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package perplexity

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"

	"github.com/openplexity/openplexity/pkg/logging"
)

// =============================================================================
// SpaceResolver Interface
// =============================================================================

// SpaceResolver maps a user-facing space identifier to the upstream
// collection UUID.
//
// Resolution rules:
//
//  1. An identifier already shaped like a version-4 UUID passes
//     through untouched. No lookup, no existence check; the upstream
//     is the authority on whether the collection exists.
//  2. Anything else is an exact-match name lookup in the configured
//     mapping.
//  3. An unknown name is a KindNotFound error. Callers that want the
//     original degradation behavior drop the space and proceed
//     without one, logging a warning; they do not fail the search.
//
// Thread Safety:
//
//	Implementations must be safe for concurrent use.
type SpaceResolver interface {
	// Resolve maps a name or UUID to a collection UUID.
	Resolve(identifier string) (string, error)

	// List returns a copy of the configured name→UUID mapping.
	List() map[string]string
}

// IsSpaceUUID reports whether the identifier has version-4 UUID
// shape and therefore bypasses name resolution.
func IsSpaceUUID(identifier string) bool {
	u, err := uuid.Parse(identifier)
	return err == nil && u.Version() == 4
}

// =============================================================================
// SpaceStore Implementation
// =============================================================================

// SpaceStore is a SpaceResolver backed by a spaces.json file.
//
// The file holds a flat name→UUID object:
//
//	{"Trading Analysis": "ca8b447a-4d33-4936-a3e5-a9d31b789cb3"}
//
// A wrapper form {"spaces": {...}} is accepted for compatibility
// with older exports.
//
// The store watches the file with fsnotify and reloads on change, so
// edits made by other tools (or another process's auto-save) become
// visible without a restart.
type SpaceStore struct {
	path   string
	logger *logging.Logger

	mu     sync.RWMutex
	spaces map[string]string

	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewSpaceStore loads the mapping and starts the file watcher.
//
// A missing file is not an error; the store starts empty and picks
// the file up when it appears. Close must be called to stop the
// watcher.
func NewSpaceStore(path string, logger *logging.Logger) (*SpaceStore, error) {
	if logger == nil {
		logger = logging.Default()
	}
	s := &SpaceStore{
		path:   path,
		logger: logger,
		spaces: map[string]string{},
		done:   make(chan struct{}),
	}

	if err := s.reload(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("load spaces mapping: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create spaces watcher: %w", err)
	}
	// Watch the directory: editors and atomic writers replace the
	// file, which drops a watch placed on the file itself.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch spaces directory: %w", err)
	}
	s.watcher = watcher
	go s.watchLoop()

	return s, nil
}

// Resolve implements SpaceResolver.
func (s *SpaceStore) Resolve(identifier string) (string, error) {
	if identifier == "" {
		return "", nil
	}
	if IsSpaceUUID(identifier) {
		return identifier, nil
	}

	s.mu.RLock()
	id, ok := s.spaces[identifier]
	s.mu.RUnlock()
	if !ok {
		return "", NewError(KindNotFound, "space %q not configured", identifier)
	}
	return id, nil
}

// List implements SpaceResolver.
func (s *SpaceStore) List() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.spaces))
	for name, id := range s.spaces {
		out[name] = id
	}
	return out
}

// Add records a name→UUID mapping and persists the file.
func (s *SpaceStore) Add(name, collectionUUID string) error {
	s.mu.Lock()
	s.spaces[name] = collectionUUID
	data, err := json.MarshalIndent(s.spaces, "", "  ")
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("encode spaces mapping: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0644); err != nil {
		return fmt.Errorf("write spaces mapping: %w", err)
	}
	return nil
}

// Close stops the file watcher.
func (s *SpaceStore) Close() error {
	close(s.done)
	if s.watcher != nil {
		return s.watcher.Close()
	}
	return nil
}

// reload reads the mapping from disk.
func (s *SpaceStore) reload() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return err
	}

	spaces := map[string]string{}
	if err := json.Unmarshal(data, &spaces); err != nil {
		// Wrapper form
		var wrapper struct {
			Spaces map[string]string `json:"spaces"`
		}
		if werr := json.Unmarshal(data, &wrapper); werr != nil || wrapper.Spaces == nil {
			return fmt.Errorf("parse %s: %w", s.path, err)
		}
		spaces = wrapper.Spaces
	}

	s.mu.Lock()
	s.spaces = spaces
	s.mu.Unlock()
	return nil
}

// watchLoop reloads the mapping when the file changes.
func (s *SpaceStore) watchLoop() {
	target := filepath.Clean(s.path)
	for {
		select {
		case <-s.done:
			return
		case ev, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if err := s.reload(); err != nil {
				s.logger.Warn("spaces mapping reload failed", "path", s.path, "error", err.Error())
				continue
			}
			s.logger.Info("spaces mapping reloaded", "path", s.path, "count", len(s.List()))
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.logger.Warn("spaces watcher error", "error", err.Error())
		}
	}
}

// =============================================================================
// Static Resolver
// =============================================================================

// StaticSpaces is a fixed in-memory SpaceResolver, used by tests and
// by deployments that configure spaces inline instead of via file.
type StaticSpaces map[string]string

// Resolve implements SpaceResolver.
func (m StaticSpaces) Resolve(identifier string) (string, error) {
	if identifier == "" {
		return "", nil
	}
	if IsSpaceUUID(identifier) {
		return identifier, nil
	}
	if id, ok := m[identifier]; ok {
		return id, nil
	}
	return "", NewError(KindNotFound, "space %q not configured", identifier)
}

// List implements SpaceResolver.
func (m StaticSpaces) List() map[string]string {
	out := make(map[string]string, len(m))
	for name, id := range m {
		out[name] = id
	}
	return out
}

// =============================================================================
// Compile-time Interface Checks
// =============================================================================

var (
	_ SpaceResolver = (*SpaceStore)(nil)
	_ SpaceResolver = (StaticSpaces)(nil)
)
