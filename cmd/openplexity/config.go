// Copyright (C) 2026 Openplexity Contributors (maintainers@openplexity.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/openplexity/openplexity/pkg/logging"
	"github.com/openplexity/openplexity/services/perplexity"
)

// Config is the CLI configuration, loaded from YAML.
type Config struct {
	// CookiesPath points at the cookies file. Empty falls back to
	// the default locations.
	CookiesPath string `yaml:"cookies_path"`

	// SpacesPath points at the space name→UUID mapping file.
	SpacesPath string `yaml:"spaces_path"`

	// BaseURL overrides the upstream, for debugging proxies.
	BaseURL string `yaml:"base_url"`

	// Mode is the default search mode.
	Mode string `yaml:"mode"`

	// Model is the default model within the mode.
	Model string `yaml:"model"`

	// Personality is the default output personality.
	Personality string `yaml:"personality"`

	// LogLevel is the minimum log level (debug, info, warn, error).
	LogLevel string `yaml:"log_level"`

	// LogDir enables file logging when set.
	LogDir string `yaml:"log_dir"`
}

var (
	config          Config
	configPath      string
	personalityFlag string
)

// configDir returns ~/.openplexity, creating nothing.
func configDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".openplexity")
}

// loadConfig reads the config file. A missing file is fine; flags and
// defaults cover everything.
func loadConfig() error {
	path := configPath
	if path == "" {
		path = filepath.Join(configDir(), "config.yaml")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// newLogger builds the CLI logger from config.
func newLogger() *logging.Logger {
	level := logging.LevelWarn
	switch config.LogLevel {
	case "debug":
		level = logging.LevelDebug
	case "info":
		level = logging.LevelInfo
	case "error":
		level = logging.LevelError
	}
	return logging.New(logging.Config{
		Level:   level,
		Service: "cli",
		LogDir:  config.LogDir,
	})
}

// newSearchClient assembles the client from config: cookies (if
// any), the file-backed space store, and the logger.
func newSearchClient(logger *logging.Logger) (*perplexity.Client, error) {
	cookiePaths := []string{
		filepath.Join(configDir(), "cookies.json"),
		"cookies.json",
	}
	if config.CookiesPath != "" {
		cookiePaths = []string{config.CookiesPath}
	}

	cookies, err := perplexity.LoadCookies(cookiePaths...)
	if err != nil {
		// Anonymous access works for basic searches.
		cookies = nil
	}
	creds, err := perplexity.NewCredentials(cookies, logger)
	if err != nil {
		return nil, err
	}

	spacesPath := config.SpacesPath
	if spacesPath == "" {
		spacesPath = filepath.Join(configDir(), "spaces.json")
	}
	// The store watches the parent directory, which must exist.
	if err := os.MkdirAll(filepath.Dir(spacesPath), 0750); err != nil {
		return nil, fmt.Errorf("create config dir: %w", err)
	}
	spaces, err := perplexity.NewSpaceStore(spacesPath, logger)
	if err != nil {
		return nil, fmt.Errorf("open space store: %w", err)
	}

	return perplexity.NewClient(perplexity.ClientConfig{
		BaseURL:     config.BaseURL,
		Credentials: creds,
		Spaces:      spaces,
		Logger:      logger,
	}), nil
}
