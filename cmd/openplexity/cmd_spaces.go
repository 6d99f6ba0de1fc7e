// Copyright (C) 2026 Openplexity Contributors (maintainers@openplexity.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/openplexity/openplexity/services/perplexity"
)

var (
	spaceDescription  string
	spaceEmoji        string
	spaceInstructions string

	spacesCmd = &cobra.Command{
		Use:   "spaces",
		Short: "Manage spaces",
	}

	spacesListCmd = &cobra.Command{
		Use:   "list",
		Short: "List known spaces",
		RunE:  runSpacesList,
	}

	spacesCreateCmd = &cobra.Command{
		Use:   "create [title]",
		Short: "Create a new space",
		Args:  cobra.ExactArgs(1),
		RunE:  runSpacesCreate,
	}
)

func init() {
	spacesCreateCmd.Flags().StringVarP(&spaceDescription, "description", "d", "", "space description")
	spacesCreateCmd.Flags().StringVarP(&spaceEmoji, "emoji", "e", "", "space emoji")
	spacesCreateCmd.Flags().StringVarP(&spaceInstructions, "instructions", "i", "", "custom instructions for queries in this space")
	spacesCmd.AddCommand(spacesListCmd)
	spacesCmd.AddCommand(spacesCreateCmd)
	rootCmd.AddCommand(spacesCmd)
}

func runSpacesList(cmd *cobra.Command, args []string) error {
	logger := newLogger()
	defer func() { _ = logger.Close() }()

	client, err := newSearchClient(logger)
	if err != nil {
		return err
	}

	spaces := client.Spaces()
	if len(spaces) == 0 {
		fmt.Println("no spaces known; create one with 'openplexity spaces create'")
		return nil
	}

	names := make([]string, 0, len(spaces))
	for name := range spaces {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("%-30s %s\n", name, spaces[name])
	}
	return nil
}

func runSpacesCreate(cmd *cobra.Command, args []string) error {
	logger := newLogger()
	defer func() { _ = logger.Close() }()

	client, err := newSearchClient(logger)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	info, err := client.CreateSpace(ctx, perplexity.CreateSpaceOptions{
		Title:        args[0],
		Description:  spaceDescription,
		Emoji:        spaceEmoji,
		Instructions: spaceInstructions,
		AutoSave:     true,
	})
	if err != nil {
		return fmt.Errorf("creating space: %w", err)
	}
	fmt.Printf("created space %q (%s)\n", info.Title, info.UUID)
	return nil
}
