// Copyright (C) 2026 Openplexity Contributors (maintainers@openplexity.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/openplexity/openplexity/pkg/ux"
	"github.com/openplexity/openplexity/services/perplexity"
)

var (
	chatMode      string
	chatModel     string
	chatProfile   string
	chatSpace     string
	chatIncognito bool

	chatCmd = &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat session",
		Long: `Opens an interactive session where each question is threaded as a
follow-up to the previous answer. Type 'exit' or press Ctrl-D to end.`,
		RunE: runChatCommand,
	}
)

func init() {
	chatCmd.Flags().StringVarP(&chatMode, "mode", "m", "", "search mode: auto, pro, reasoning, 'deep research', 'deep lab'")
	chatCmd.Flags().StringVar(&chatModel, "model", "", "model within the mode")
	chatCmd.Flags().StringVarP(&chatProfile, "profile", "p", "", "query profile to expand questions with")
	chatCmd.Flags().StringVarP(&chatSpace, "space", "s", "", "space name or UUID to search in")
	chatCmd.Flags().BoolVar(&chatIncognito, "incognito", false, "leave no history upstream")
	rootCmd.AddCommand(chatCmd)
}

func runChatCommand(cmd *cobra.Command, args []string) error {
	logger := newLogger()
	defer func() { _ = logger.Close() }()

	client, err := newSearchClient(logger)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	mode := pick(chatMode, config.Mode)
	model := pick(chatModel, config.Model)

	ui := ux.NewChatUI()
	ui.Header(ux.HeaderConfig{
		Mode:          mode,
		Model:         model,
		Space:         chatSpace,
		Profile:       chatProfile,
		Incognito:     chatIncognito,
		Authenticated: client.Authenticated(),
	})

	stats := ux.SessionStats{}
	start := time.Now()
	seenSources := map[string]struct{}{}
	var follow *perplexity.ConversationContext

	reader := bufio.NewReader(os.Stdin)
	for {
		if ctx.Err() != nil {
			break
		}
		fmt.Print(ui.Prompt())
		line, err := reader.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				fmt.Println()
				break
			}
			return fmt.Errorf("reading input: %w", err)
		}
		query := strings.TrimSpace(line)
		if query == "" {
			continue
		}
		if query == "exit" || query == "quit" {
			break
		}

		opts := perplexity.SearchOptions{
			Query:     query,
			Mode:      perplexity.Mode(mode),
			Model:     model,
			Profile:   perplexity.Profile(chatProfile),
			Space:     chatSpace,
			Incognito: chatIncognito,
			FollowUp:  follow,
		}

		renderer := ux.NewDefaultStreamRenderer()
		result, err := client.SearchStream(ctx, opts, renderProgress(renderer))
		renderer.Finalize()
		if err != nil {
			if perplexity.KindOf(err) == perplexity.KindNoContinuity {
				ui.ContinuityLost(err.Error())
				follow = nil
				continue
			}
			if ctx.Err() != nil {
				break
			}
			ui.Error(err)
			continue
		}

		stats.TurnCount++
		for _, s := range result.Sources {
			if _, ok := seenSources[s.URL]; !ok {
				seenSources[s.URL] = struct{}{}
				stats.SourceCount++
			}
		}

		if next, err := client.FollowUpFrom(result, nil); err == nil {
			follow = &next
		} else {
			ui.ContinuityLost(err.Error())
			follow = nil
		}
	}

	stats.Duration = time.Since(start)
	ui.SessionEnd(stats)
	return nil
}
