// Copyright (C) 2026 Openplexity Contributors (maintainers@openplexity.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package sessionstore persists gateway conversation sessions in an
// embedded BadgerDB key-value store.
//
// Sessions hold the upstream continuity tokens between HTTP requests.
// Each record is stored under a "session/" prefixed key with a TTL,
// so abandoned conversations age out without a sweeper.
package sessionstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/openplexity/openplexity/services/gateway/datatypes"
)

// =============================================================================
// Errors
// =============================================================================

// ErrNotFound is returned when a session ID has no record, either
// because it never existed or because its TTL expired.
var ErrNotFound = errors.New("session not found")

// =============================================================================
// Configuration
// =============================================================================

// Config holds the session store configuration.
//
// # Fields
//
//   - Path: Directory for the database files. Ignored when InMemory.
//   - InMemory: Run entirely in memory. Used by tests and ephemeral
//     deployments.
//   - SyncWrites: Sync writes to disk immediately. Slower but safer.
//   - SessionTTL: How long an idle session survives. Refreshed on
//     every write. Zero means sessions never expire.
//   - Logger: Structured logger. Defaults to slog.Default().
//   - GCInterval: How often to run value log garbage collection.
//     Zero disables the GC loop.
//   - GCDiscardRatio: Minimum ratio of discardable data before a GC
//     rewrite happens.
type Config struct {
	Path           string
	InMemory       bool
	SyncWrites     bool
	SessionTTL     time.Duration
	Logger         *slog.Logger
	GCInterval     time.Duration
	GCDiscardRatio float64
}

// DefaultConfig returns a production configuration rooted at path.
func DefaultConfig(path string) Config {
	return Config{
		Path:           path,
		SyncWrites:     false,
		SessionTTL:     24 * time.Hour,
		GCInterval:     10 * time.Minute,
		GCDiscardRatio: 0.5,
	}
}

// InMemoryConfig returns a configuration for an in-memory store.
func InMemoryConfig() Config {
	return Config{
		InMemory:   true,
		SessionTTL: 24 * time.Hour,
	}
}

// =============================================================================
// Badger Logger Adapter
// =============================================================================

// badgerLogger adapts slog to badger's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// =============================================================================
// Store
// =============================================================================

const keyPrefix = "session/"

// Store is a BadgerDB-backed session store.
//
// # Thread Safety
//
// All methods are safe for concurrent use. Badger transactions give
// each call a consistent snapshot.
type Store struct {
	db     *badger.DB
	ttl    time.Duration
	logger *slog.Logger

	gcStop chan struct{}
	gcDone chan struct{}
	once   sync.Once
}

// Open opens the session store with the given configuration.
func Open(cfg Config) (*Store, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create session store dir: %w", err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.
		WithSyncWrites(cfg.SyncWrites).
		WithLogger(&badgerLogger{logger: logger.With("component", "badger")})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open session store: %w", err)
	}

	s := &Store{
		db:     db,
		ttl:    cfg.SessionTTL,
		logger: logger,
		gcStop: make(chan struct{}),
		gcDone: make(chan struct{}),
	}

	if !cfg.InMemory && cfg.GCInterval > 0 {
		go s.runGC(cfg.GCInterval, cfg.GCDiscardRatio)
	} else {
		close(s.gcDone)
	}

	return s, nil
}

// runGC runs value log garbage collection until Close.
func (s *Store) runGC(interval time.Duration, discardRatio float64) {
	defer close(s.gcDone)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.gcStop:
			return
		case <-ticker.C:
			err := s.db.RunValueLogGC(discardRatio)
			if err != nil && !errors.Is(err, badger.ErrNoRewrite) {
				s.logger.Warn("session store GC failed", "error", err)
			}
		}
	}
}

// Close stops the GC loop and closes the database.
func (s *Store) Close() error {
	var err error
	s.once.Do(func() {
		close(s.gcStop)
		<-s.gcDone
		err = s.db.Close()
	})
	return err
}

// Put stores a session record, refreshing its TTL.
func (s *Store) Put(rec *datatypes.SessionRecord) error {
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("invalid session record: %w", err)
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal session %s: %w", rec.SessionID, err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry([]byte(keyPrefix+rec.SessionID), data)
		if s.ttl > 0 {
			entry = entry.WithTTL(s.ttl)
		}
		return txn.SetEntry(entry)
	})
}

// Get retrieves a session record by ID. Returns ErrNotFound when the
// session does not exist or has expired.
func (s *Store) Get(sessionID string) (*datatypes.SessionRecord, error) {
	var rec datatypes.SessionRecord
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyPrefix + sessionID))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return ErrNotFound
			}
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// Delete removes a session. Deleting an unknown session is not an
// error.
func (s *Store) Delete(sessionID string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(keyPrefix + sessionID))
	})
}

// List returns summaries of all live sessions, newest first.
func (s *Store) List() ([]datatypes.SessionSummary, error) {
	var out []datatypes.SessionSummary
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(keyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var rec datatypes.SessionRecord
				if err := json.Unmarshal(val, &rec); err != nil {
					// A corrupt record should not poison the listing.
					s.logger.Warn("skipping unreadable session record",
						"key", string(it.Item().Key()), "error", err)
					return nil
				}
				out = append(out, rec.Summary())
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].UpdatedAt > out[j].UpdatedAt
	})
	return out, nil
}
