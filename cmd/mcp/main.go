// Copyright (C) 2026 Openplexity Contributors (maintainers@openplexity.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// The mcp daemon speaks the Model Context Protocol over stdio so
// agent runtimes can call the search client as tools. Stdout carries
// protocol frames only, so logging runs in quiet mode.
package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/openplexity/openplexity/pkg/logging"
	"github.com/openplexity/openplexity/services/mcp"
	"github.com/openplexity/openplexity/services/perplexity"
)

var version = "dev"

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	dataDir := envOr("OPENPLEXITY_DATA_DIR", filepath.Join(os.TempDir(), "openplexity"))

	logger := logging.New(logging.Config{
		Level:   logging.LevelInfo,
		Service: "openplexity-mcp",
		LogDir:  envOr("OPENPLEXITY_LOG_DIR", filepath.Join(dataDir, "logs")),
		Quiet:   true,
	})
	defer func() { _ = logger.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cookiesPath := envOr("OPENPLEXITY_COOKIES_PATH", filepath.Join(dataDir, "cookies.json"))
	cookies, err := perplexity.LoadCookies(cookiesPath)
	if err != nil {
		logger.Warn("no cookie file, running anonymously", "path", cookiesPath, "error", err)
		cookies = nil
	}
	creds, err := perplexity.NewCredentials(cookies, logger)
	if err != nil {
		log.Fatalf("failed to load credentials: %v", err)
	}

	spacesPath := filepath.Join(dataDir, "spaces.json")
	// The store watches the parent directory, which must exist.
	if err := os.MkdirAll(filepath.Dir(spacesPath), 0750); err != nil {
		log.Fatalf("failed to create the data directory: %v", err)
	}
	spaces, err := perplexity.NewSpaceStore(spacesPath, logger)
	if err != nil {
		log.Fatalf("failed to open the space store: %v", err)
	}

	client := perplexity.NewClient(perplexity.ClientConfig{
		BaseURL:     envOr("OPENPLEXITY_BASE_URL", ""),
		Credentials: creds,
		Spaces:      spaces,
		Logger:      logger,
	})

	server := mcp.NewServer(mcp.Config{
		Client:  client,
		Logger:  logger.Slog(),
		Version: version,
		In:      os.Stdin,
		Out:     os.Stdout,
	})

	if err := server.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("mcp server failed: %v", err)
	}
}
