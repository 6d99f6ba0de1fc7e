// Copyright (C) 2026 Openplexity Contributors (maintainers@openplexity.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/openplexity/openplexity/pkg/ux"
)

// version is stamped by the build.
var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "openplexity",
	Short: "Ask Perplexity from the terminal",
	Long: `Openplexity is an unofficial Perplexity client: one-shot searches,
threaded chat conversations, spaces, and query profiles, driven from
your terminal.`,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.openplexity/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&personalityFlag, "personality", "", "output personality: full, standard, minimal, machine")

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if err := loadConfig(); err != nil {
			return err
		}
		ux.InitPersonality()
		if personalityFlag != "" {
			ux.SetPersonalityLevel(ux.ParsePersonalityLevel(personalityFlag))
		} else if config.Personality != "" {
			ux.SetPersonalityLevel(ux.ParsePersonalityLevel(config.Personality))
		}
		return nil
	}
}
