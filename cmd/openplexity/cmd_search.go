// Copyright (C) 2026 Openplexity Contributors (maintainers@openplexity.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/openplexity/openplexity/pkg/ux"
	"github.com/openplexity/openplexity/services/perplexity"
)

var (
	searchMode      string
	searchModel     string
	searchProfile   string
	searchSpace     string
	searchSources   []string
	searchIncognito bool
	searchAttach    []string

	searchCmd = &cobra.Command{
		Use:   "search [question]",
		Short: "Run one search and stream the answer",
		Long: `Sends one question upstream and streams the answer as it is
generated, followed by the cited sources and related queries.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runSearchCommand,
	}
)

func init() {
	searchCmd.Flags().StringVarP(&searchMode, "mode", "m", "", "search mode: auto, pro, reasoning, 'deep research', 'deep lab'")
	searchCmd.Flags().StringVar(&searchModel, "model", "", "model within the mode")
	searchCmd.Flags().StringVarP(&searchProfile, "profile", "p", "", "query profile to expand the question with")
	searchCmd.Flags().StringVarP(&searchSpace, "space", "s", "", "space name or UUID to search in")
	searchCmd.Flags().StringSliceVar(&searchSources, "sources", nil, "source categories: web, scholar, social, edgar")
	searchCmd.Flags().BoolVar(&searchIncognito, "incognito", false, "leave no history upstream")
	searchCmd.Flags().StringSliceVar(&searchAttach, "attach", nil, "pre-uploaded file URLs to reference")
	rootCmd.AddCommand(searchCmd)
}

// signalContext returns a context canceled on SIGINT/SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runSearchCommand(cmd *cobra.Command, args []string) error {
	logger := newLogger()
	defer func() { _ = logger.Close() }()

	client, err := newSearchClient(logger)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	opts := perplexity.SearchOptions{
		Query:       strings.Join(args, " "),
		Mode:        perplexity.Mode(pick(searchMode, config.Mode)),
		Model:       pick(searchModel, config.Model),
		Profile:     perplexity.Profile(searchProfile),
		Space:       searchSpace,
		Sources:     searchSources,
		Incognito:   searchIncognito,
		Attachments: searchAttach,
	}

	renderer := ux.NewDefaultStreamRenderer()
	_, err = client.SearchStream(ctx, opts, renderProgress(renderer))
	renderer.Finalize()
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}
	return nil
}

// pick returns the flag value when set, otherwise the config default.
func pick(flag, fallback string) string {
	if flag != "" {
		return flag
	}
	return fallback
}

// renderProgress bridges stream events onto a renderer.
func renderProgress(r ux.StreamRenderer) perplexity.ProgressFunc {
	return func(ev perplexity.StreamEvent, _ func() perplexity.SearchResult) {
		switch ev.Type {
		case perplexity.EventStatus:
			r.OnStatus(ev.Message)
		case perplexity.EventPartialAnswer:
			r.OnAnswerDelta(ev.Text)
		case perplexity.EventSourceList:
			r.OnSources(toSourceInfos(ev.Sources))
		case perplexity.EventRelatedQueries:
			r.OnRelated(ev.Related)
		case perplexity.EventFinalAnswer:
			if ev.Final != nil {
				if len(ev.Final.Sources) > 0 {
					r.OnSources(toSourceInfos(ev.Final.Sources))
				}
				if len(ev.Final.Related) > 0 {
					r.OnRelated(ev.Final.Related)
				}
				r.OnFinal(ev.Final.Answer)
			}
		case perplexity.EventError:
			if ev.Err != nil && ev.Err.Kind != perplexity.KindDecode {
				r.OnError(ev.Err)
			}
		case perplexity.EventDone:
			r.OnDone()
		}
	}
}

// toSourceInfos converts wire sources to display sources.
func toSourceInfos(sources []perplexity.Source) []ux.SourceInfo {
	out := make([]ux.SourceInfo, 0, len(sources))
	for _, s := range sources {
		out = append(out, ux.SourceInfo{Name: s.Name, URL: s.URL, Snippet: s.Snippet})
	}
	return out
}
