// Copyright (C) 2026 Openplexity Contributors (maintainers@openplexity.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// The gateway daemon exposes the search client over REST, SSE, and
// WebSocket, with Prometheus metrics and OTLP tracing.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/openplexity/openplexity/pkg/logging"
	"github.com/openplexity/openplexity/services/gateway/handlers"
	"github.com/openplexity/openplexity/services/gateway/middleware"
	"github.com/openplexity/openplexity/services/gateway/observability"
	"github.com/openplexity/openplexity/services/gateway/routes"
	"github.com/openplexity/openplexity/services/gateway/sessionstore"
	"github.com/openplexity/openplexity/services/perplexity"
)

const serviceName = "openplexity-gateway"

// envOr returns the environment value or a fallback.
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// buildClient assembles the upstream search client from the data
// directory. A missing cookie file yields an anonymous client.
func buildClient(dataDir string, logger *logging.Logger) (*perplexity.Client, error) {
	cookiesPath := envOr("OPENPLEXITY_COOKIES_PATH", filepath.Join(dataDir, "cookies.json"))
	cookies, err := perplexity.LoadCookies(cookiesPath)
	if err != nil {
		logger.Warn("no cookie file, running anonymously", "path", cookiesPath, "error", err)
		cookies = nil
	}
	creds, err := perplexity.NewCredentials(cookies, logger)
	if err != nil {
		return nil, err
	}

	spacesPath := filepath.Join(dataDir, "spaces.json")
	// The store watches the parent directory, which must exist.
	if err := os.MkdirAll(filepath.Dir(spacesPath), 0750); err != nil {
		return nil, err
	}
	spaces, err := perplexity.NewSpaceStore(spacesPath, logger)
	if err != nil {
		return nil, err
	}

	return perplexity.NewClient(perplexity.ClientConfig{
		BaseURL:     envOr("OPENPLEXITY_BASE_URL", ""),
		Credentials: creds,
		Spaces:      spaces,
		Logger:      logger,
	}), nil
}

func main() {
	port := envOr("OPENPLEXITY_GATEWAY_PORT", "8080")
	dataDir := envOr("OPENPLEXITY_DATA_DIR", filepath.Join(os.TempDir(), "openplexity"))

	logger := logging.New(logging.Config{
		Level:   logging.LevelInfo,
		Service: serviceName,
		JSON:    true,
	})
	defer func() { _ = logger.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := observability.InitTracer(ctx, serviceName,
		os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"))
	if err != nil {
		log.Fatalf("failed to set up the OTLP tracer: %v", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracer(shutdownCtx); err != nil {
			logger.Error("tracer shutdown failed", "error", err)
		}
	}()
	observability.InitMetrics()

	store, err := sessionstore.Open(sessionstore.DefaultConfig(filepath.Join(dataDir, "sessions")))
	if err != nil {
		log.Fatalf("failed to open the session store: %v", err)
	}
	defer func() { _ = store.Close() }()

	client, err := buildClient(dataDir, logger)
	if err != nil {
		log.Fatalf("failed to build the search client: %v", err)
	}

	h := handlers.New(client, store, logger.Slog())

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(serviceName))

	var apiKeys []string
	if raw := os.Getenv("OPENPLEXITY_API_KEYS"); raw != "" {
		for _, key := range strings.Split(raw, ",") {
			if key = strings.TrimSpace(key); key != "" {
				apiKeys = append(apiKeys, key)
			}
		}
	}

	routes.SetupRoutes(router, h, routes.Config{
		APIKeys:        apiKeys,
		RateLimit:      middleware.DefaultRateLimitConfig(),
		EnableSessions: true,
	})

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("gateway listening", "port", port, "authenticated", client.Authenticated())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server failed: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
}
