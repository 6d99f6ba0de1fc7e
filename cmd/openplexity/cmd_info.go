// Copyright (C) 2026 Openplexity Contributors (maintainers@openplexity.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/openplexity/openplexity/services/perplexity"
)

var (
	modesCmd = &cobra.Command{
		Use:   "modes",
		Short: "List search modes and their models",
		Run: func(cmd *cobra.Command, args []string) {
			for _, mode := range perplexity.Modes() {
				fmt.Println(mode)
				for _, model := range perplexity.ModelsFor(perplexity.Mode(mode)) {
					fmt.Printf("  %s\n", model)
				}
			}
		},
	}

	profilesCmd = &cobra.Command{
		Use:   "profiles",
		Short: "List query profiles",
		Run: func(cmd *cobra.Command, args []string) {
			for _, name := range perplexity.ProfileNames() {
				fmt.Println(name)
			}
		},
	}

	whoamiCmd = &cobra.Command{
		Use:   "whoami",
		Short: "Show the upstream session identity",
		RunE:  runWhoami,
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version)
		},
	}
)

func init() {
	rootCmd.AddCommand(modesCmd)
	rootCmd.AddCommand(profilesCmd)
	rootCmd.AddCommand(whoamiCmd)
	rootCmd.AddCommand(versionCmd)
}

func runWhoami(cmd *cobra.Command, args []string) error {
	logger := newLogger()
	defer func() { _ = logger.Close() }()

	client, err := newSearchClient(logger)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	info, err := client.SessionInfo(ctx)
	if err != nil {
		return fmt.Errorf("fetching session info: %w", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(info)
}
