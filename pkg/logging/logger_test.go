// Copyright (C) 2026 Openplexity Contributors (maintainers@openplexity.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

// =============================================================================
// Level Tests
// =============================================================================

// TestLevel_String verifies the human-readable names, including the
// fallback for out-of-range values.
func TestLevel_String(t *testing.T) {
	tests := []struct {
		level Level
		want  string
	}{
		{LevelDebug, "DEBUG"},
		{LevelInfo, "INFO"},
		{LevelWarn, "WARN"},
		{LevelError, "ERROR"},
		{Level(42), "UNKNOWN"},
		{Level(-1), "UNKNOWN"},
	}
	for _, tt := range tests {
		if got := tt.level.String(); got != tt.want {
			t.Errorf("Level(%d).String() = %q, want %q", tt.level, got, tt.want)
		}
	}
}

// TestLevel_toSlogLevel verifies the mapping onto slog levels and that
// unknown levels default to Info.
func TestLevel_toSlogLevel(t *testing.T) {
	tests := []struct {
		level Level
		want  slog.Level
	}{
		{LevelDebug, slog.LevelDebug},
		{LevelInfo, slog.LevelInfo},
		{LevelWarn, slog.LevelWarn},
		{LevelError, slog.LevelError},
		{Level(42), slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := tt.level.toSlogLevel(); got != tt.want {
			t.Errorf("Level(%d).toSlogLevel() = %v, want %v", tt.level, got, tt.want)
		}
	}
}

// =============================================================================
// Constructor Tests
// =============================================================================

// TestNew_ZeroConfig verifies that a zero-value Config produces a
// usable logger.
func TestNew_ZeroConfig(t *testing.T) {
	logger := New(Config{})
	if logger == nil {
		t.Fatal("New returned nil")
	}
	if logger.Slog() == nil {
		t.Error("Slog() returned nil")
	}
	logger.Info("zero config works")
}

// TestDefault verifies the default logger settings.
func TestDefault(t *testing.T) {
	logger := Default()
	if logger == nil {
		t.Fatal("Default returned nil")
	}
	if logger.config.Level != LevelInfo {
		t.Errorf("default level = %v, want LevelInfo", logger.config.Level)
	}
	if logger.config.Service != "openplexity" {
		t.Errorf("default service = %q, want %q", logger.config.Service, "openplexity")
	}
}

// TestNew_WithLogDir verifies that file logging creates the directory
// and a dated, service-named log file containing JSON entries.
func TestNew_WithLogDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")

	logger := New(Config{
		Level:   LevelInfo,
		LogDir:  dir,
		Service: "testsvc",
		Quiet:   true,
	})
	logger.Info("file entry", "key", "value")
	if err := logger.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	wantName := "testsvc_" + time.Now().Format("2006-01-02") + ".log"
	data, err := os.ReadFile(filepath.Join(dir, wantName))
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}

	var entry map[string]any
	line := strings.TrimSpace(string(data))
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		t.Fatalf("log file is not JSON: %v\n%s", err, line)
	}
	if entry["msg"] != "file entry" {
		t.Errorf("msg = %v, want %q", entry["msg"], "file entry")
	}
	if entry["service"] != "testsvc" {
		t.Errorf("service = %v, want %q", entry["service"], "testsvc")
	}
	if entry["key"] != "value" {
		t.Errorf("key = %v, want %q", entry["key"], "value")
	}
}

// TestNew_WithLogDir_DefaultService verifies the filename fallback
// when no service name is configured.
func TestNew_WithLogDir_DefaultService(t *testing.T) {
	dir := t.TempDir()

	logger := New(Config{LogDir: dir, Quiet: true})
	logger.Info("hello")
	if err := logger.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	wantName := "openplexity_" + time.Now().Format("2006-01-02") + ".log"
	if _, err := os.Stat(filepath.Join(dir, wantName)); err != nil {
		t.Errorf("expected log file %s: %v", wantName, err)
	}
}

// TestNew_WithLogDir_Unwritable verifies that an unusable log
// directory degrades to a working logger instead of failing.
func TestNew_WithLogDir_Unwritable(t *testing.T) {
	logger := New(Config{LogDir: "/proc/no-such-dir/logs", Quiet: true})
	if logger == nil {
		t.Fatal("New returned nil for an unwritable LogDir")
	}
	logger.Info("still works")
	if err := logger.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}

// =============================================================================
// Logging and Filtering Tests
// =============================================================================

// TestLogger_LevelFiltering verifies that messages below the
// configured level never reach the exporter.
func TestLogger_LevelFiltering(t *testing.T) {
	exporter := NewBufferedExporter()
	logger := New(Config{
		Level:    LevelWarn,
		Quiet:    true,
		Exporter: exporter,
	})

	logger.Debug("dropped")
	logger.Info("dropped too")
	logger.Warn("kept")
	logger.Error("kept too")

	waitForEntries(t, exporter, 2)
	for _, e := range exporter.Entries() {
		if e.Level < LevelWarn {
			t.Errorf("exported entry below threshold: %v %q", e.Level, e.Message)
		}
	}
}

// TestLogger_ExportCarriesAttrs verifies the exported entry fields.
func TestLogger_ExportCarriesAttrs(t *testing.T) {
	exporter := NewBufferedExporter()
	logger := New(Config{
		Level:    LevelInfo,
		Service:  "gateway",
		Quiet:    true,
		Exporter: exporter,
	})

	logger.Info("search started", "mode", "pro", "attempt", 2)

	waitForEntries(t, exporter, 1)
	entry := exporter.Entries()[0]
	if entry.Message != "search started" {
		t.Errorf("Message = %q", entry.Message)
	}
	if entry.Service != "gateway" {
		t.Errorf("Service = %q", entry.Service)
	}
	if entry.Attrs["mode"] != "pro" {
		t.Errorf("Attrs[mode] = %v", entry.Attrs["mode"])
	}
	if entry.Attrs["attempt"] != 2 {
		t.Errorf("Attrs[attempt] = %v", entry.Attrs["attempt"])
	}
	if entry.Timestamp.IsZero() {
		t.Error("Timestamp is zero")
	}
}

// TestLogger_With verifies that child loggers share the file handle
// and exporter with the parent.
func TestLogger_With(t *testing.T) {
	exporter := NewBufferedExporter()
	parent := New(Config{Level: LevelInfo, Quiet: true, Exporter: exporter})

	child := parent.With("request_id", "r-1")
	if child == parent {
		t.Fatal("With returned the same logger")
	}
	if child.exporter != parent.exporter {
		t.Error("child does not share the exporter")
	}
	if child.file != parent.file {
		t.Error("child does not share the file handle")
	}

	child.Info("child message")
	waitForEntries(t, exporter, 1)
}

// TestLogger_ConcurrentUse exercises the logger from many goroutines.
func TestLogger_ConcurrentUse(t *testing.T) {
	exporter := NewBufferedExporter()
	logger := New(Config{Level: LevelInfo, Quiet: true, Exporter: exporter})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				logger.Info("concurrent", "worker", n, "iter", j)
			}
		}(i)
	}
	wg.Wait()

	waitForEntries(t, exporter, 200)
}

// =============================================================================
// Close Tests
// =============================================================================

// TestLogger_Close_NoResources verifies Close on a stderr-only logger.
func TestLogger_Close_NoResources(t *testing.T) {
	logger := New(Config{Quiet: true})
	if err := logger.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}

// TestLogger_Close_FlushesExporter verifies that Close flushes and
// closes the exporter and surfaces its errors.
func TestLogger_Close_FlushesExporter(t *testing.T) {
	exporter := &failingExporter{closeErr: errors.New("close failed")}
	logger := New(Config{Quiet: true, Exporter: exporter})

	err := logger.Close()
	if err == nil {
		t.Fatal("Close did not surface the exporter error")
	}
	if !exporter.flushed {
		t.Error("Close did not flush the exporter")
	}
}

// =============================================================================
// multiHandler Tests
// =============================================================================

// TestMultiHandler_FanOut verifies that a record reaches every
// enabled handler and skips disabled ones.
func TestMultiHandler_FanOut(t *testing.T) {
	var bufA, bufB bytes.Buffer
	h := &multiHandler{handlers: []slog.Handler{
		slog.NewTextHandler(&bufA, &slog.HandlerOptions{Level: slog.LevelDebug}),
		slog.NewTextHandler(&bufB, &slog.HandlerOptions{Level: slog.LevelError}),
	}}

	logger := slog.New(h)
	logger.Info("fan out")

	if !strings.Contains(bufA.String(), "fan out") {
		t.Error("debug handler missed the record")
	}
	if bufB.Len() != 0 {
		t.Errorf("error-level handler received an info record: %s", bufB.String())
	}
}

// TestMultiHandler_Enabled verifies that Enabled is the union of the
// wrapped handlers.
func TestMultiHandler_Enabled(t *testing.T) {
	h := &multiHandler{handlers: []slog.Handler{
		slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}),
		slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}),
	}}
	if !h.Enabled(context.Background(), slog.LevelInfo) {
		t.Error("Enabled(Info) = false, want true")
	}
	if h.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("Enabled(Debug) = true, want false")
	}
}

// TestMultiHandler_WithAttrs verifies attrs propagate to all handlers.
func TestMultiHandler_WithAttrs(t *testing.T) {
	var bufA, bufB bytes.Buffer
	h := &multiHandler{handlers: []slog.Handler{
		slog.NewTextHandler(&bufA, nil),
		slog.NewJSONHandler(&bufB, nil),
	}}

	logger := slog.New(h.WithAttrs([]slog.Attr{slog.String("service", "cli")}))
	logger.Info("attributed")

	if !strings.Contains(bufA.String(), "service=cli") {
		t.Errorf("text handler missing attr: %s", bufA.String())
	}
	if !strings.Contains(bufB.String(), `"service":"cli"`) {
		t.Errorf("json handler missing attr: %s", bufB.String())
	}
}

// =============================================================================
// Helper Tests
// =============================================================================

// TestExpandPath verifies tilde expansion and pass-through.
func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}

	if got := expandPath("~/logs"); got != filepath.Join(home, "logs") {
		t.Errorf("expandPath(~/logs) = %q", got)
	}
	if got := expandPath("/var/log"); got != "/var/log" {
		t.Errorf("expandPath(/var/log) = %q", got)
	}
	if got := expandPath(""); got != "" {
		t.Errorf("expandPath(\"\") = %q", got)
	}
}

// TestArgsToMap verifies pairing, odd trailing args, and non-string
// keys.
func TestArgsToMap(t *testing.T) {
	m := argsToMap([]any{"a", 1, "b", "two", 3, "dropped-key", "c"})
	if m["a"] != 1 || m["b"] != "two" {
		t.Errorf("argsToMap pairs wrong: %v", m)
	}
	if _, ok := m["c"]; ok {
		t.Error("trailing key without value was kept")
	}
	if len(m) != 2 {
		t.Errorf("len = %d, want 2: %v", len(m), m)
	}
}

// =============================================================================
// Exporter Tests
// =============================================================================

// TestBufferedExporter verifies collection and that Entries returns a
// copy.
func TestBufferedExporter(t *testing.T) {
	e := NewBufferedExporter()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := e.Export(ctx, LogEntry{Message: "m", Level: LevelInfo}); err != nil {
			t.Fatalf("Export: %v", err)
		}
	}

	entries := e.Entries()
	if len(entries) != 3 {
		t.Fatalf("len(Entries) = %d, want 3", len(entries))
	}

	entries[0].Message = "mutated"
	if e.Entries()[0].Message != "m" {
		t.Error("Entries returned a reference to internal state")
	}
}

// TestWriterExporter verifies the line format.
func TestWriterExporter(t *testing.T) {
	var buf bytes.Buffer
	e := NewWriterExporter(&buf)

	err := e.Export(context.Background(), LogEntry{
		Timestamp: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Level:     LevelWarn,
		Message:   "disk almost full",
		Attrs:     map[string]any{"free_mb": 12},
	})
	if err != nil {
		t.Fatalf("Export: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "WARN") || !strings.Contains(out, "disk almost full") {
		t.Errorf("unexpected output: %s", out)
	}
}

// TestNopExporter verifies all methods are safe no-ops.
func TestNopExporter(t *testing.T) {
	e := &NopExporter{}
	ctx := context.Background()
	if err := e.Export(ctx, LogEntry{}); err != nil {
		t.Errorf("Export: %v", err)
	}
	if err := e.Flush(ctx); err != nil {
		t.Errorf("Flush: %v", err)
	}
	if err := e.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}

// =============================================================================
// Test Helpers
// =============================================================================

// waitForEntries polls the exporter until at least n entries arrive.
// Export runs on a goroutine per call, so arrival is asynchronous.
func waitForEntries(t *testing.T, e *BufferedExporter, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(e.Entries()) >= n {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d entries, got %d", n, len(e.Entries()))
}

// failingExporter fails on Close and records Flush calls.
type failingExporter struct {
	flushed  bool
	closeErr error
}

func (e *failingExporter) Export(ctx context.Context, entry LogEntry) error { return nil }

func (e *failingExporter) Flush(ctx context.Context) error {
	e.flushed = true
	return nil
}

func (e *failingExporter) Close() error { return e.closeErr }
