// Copyright (C) 2026 Openplexity Contributors (maintainers@openplexity.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package mcp

import (
	"context"
	"fmt"

	"github.com/openplexity/openplexity/services/perplexity"
)

const (
	toolNameSearch       = "perplexity.search"
	toolNameChat         = "perplexity.chat"
	toolNameListSpaces   = "perplexity.list_spaces"
	toolNameCreateSpace  = "perplexity.create_space"
	toolNameListProfiles = "perplexity.list_profiles"
	toolNameListModes    = "perplexity.list_modes"
)

// buildToolRegistry declares the tool surface.
func (s *Server) buildToolRegistry() map[string]toolDefinition {
	return map[string]toolDefinition{
		toolNameSearch: {
			Name:        toolNameSearch,
			Description: "Run one web search and return the assembled answer with sources.",
			InputSchema: searchInputSchema(false),
			handler:     s.handleSearch,
		},
		toolNameChat: {
			Name: toolNameChat,
			Description: "Threaded search: pass the backend_uuid and read_write_token " +
				"from a previous result to continue that conversation.",
			InputSchema: searchInputSchema(true),
			handler:     s.handleChat,
		},
		toolNameListSpaces: {
			Name:        toolNameListSpaces,
			Description: "List known spaces as name to UUID mappings.",
			InputSchema: emptyInputSchema(),
			handler:     s.handleListSpaces,
		},
		toolNameCreateSpace: {
			Name:        toolNameCreateSpace,
			Description: "Create a new space and record its name locally.",
			InputSchema: createSpaceInputSchema(),
			handler:     s.handleCreateSpace,
		},
		toolNameListProfiles: {
			Name:        toolNameListProfiles,
			Description: "List the query profiles that can expand a search.",
			InputSchema: emptyInputSchema(),
			handler:     s.handleListProfiles,
		},
		toolNameListModes: {
			Name:        toolNameListModes,
			Description: "List search modes and the models each accepts.",
			InputSchema: emptyInputSchema(),
			handler:     s.handleListModes,
		},
	}
}

// =============================================================================
// Input Schemas
// =============================================================================

func searchInputSchema(withContinuity bool) map[string]any {
	props := map[string]any{
		"query": map[string]any{
			"type":        "string",
			"description": "The question to answer.",
		},
		"mode": map[string]any{
			"type":        "string",
			"description": "Search mode: auto, pro, reasoning, deep research, deep lab.",
		},
		"model": map[string]any{
			"type":        "string",
			"description": "Model preference within the mode.",
		},
		"profile": map[string]any{
			"type":        "string",
			"description": "Query profile to expand the question with.",
		},
		"space": map[string]any{
			"type":        "string",
			"description": "Space name or UUID to scope the search to.",
		},
		"incognito": map[string]any{
			"type":        "boolean",
			"description": "Leave no history upstream. Disables continuity.",
		},
		"sources": map[string]any{
			"type":        "array",
			"items":       map[string]any{"type": "string"},
			"description": "Source categories: web, scholar, social, edgar.",
		},
	}
	if withContinuity {
		props["backend_uuid"] = map[string]any{
			"type":        "string",
			"description": "Thread identifier from a previous result.",
		}
		props["read_write_token"] = map[string]any{
			"type":        "string",
			"description": "Thread token from a previous result.",
		}
	}
	return map[string]any{
		"type":       "object",
		"properties": props,
		"required":   []string{"query"},
	}
}

func createSpaceInputSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"title":        map[string]any{"type": "string", "description": "Space name."},
			"description":  map[string]any{"type": "string"},
			"emoji":        map[string]any{"type": "string"},
			"instructions": map[string]any{"type": "string", "description": "System prompt applied inside the space."},
		},
		"required": []string{"title"},
	}
}

func emptyInputSchema() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{},
	}
}

// =============================================================================
// Argument Extraction
// =============================================================================

func stringArg(args map[string]any, key string) string {
	v, _ := args[key].(string)
	return v
}

func boolArg(args map[string]any, key string) bool {
	v, _ := args[key].(bool)
	return v
}

func stringSliceArg(args map[string]any, key string) []string {
	raw, ok := args[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// optionsFromArgs builds search options from tool arguments.
func optionsFromArgs(args map[string]any) (perplexity.SearchOptions, *toolError) {
	query := stringArg(args, "query")
	if query == "" {
		return perplexity.SearchOptions{}, &toolError{
			Code:    "INVALID_PARAMS",
			Message: "query must not be empty",
		}
	}
	return perplexity.SearchOptions{
		Query:     query,
		Mode:      perplexity.Mode(stringArg(args, "mode")),
		Model:     stringArg(args, "model"),
		Profile:   perplexity.Profile(stringArg(args, "profile")),
		Space:     stringArg(args, "space"),
		Incognito: boolArg(args, "incognito"),
		Sources:   stringSliceArg(args, "sources"),
	}, nil
}

// =============================================================================
// Tool Handlers
// =============================================================================

// searchPayload is the structured content for search and chat tools.
type searchPayload struct {
	Answer         string              `json:"answer"`
	Sources        []perplexity.Source `json:"sources,omitempty"`
	Related        []string            `json:"related,omitempty"`
	BackendUUID    string              `json:"backend_uuid,omitempty"`
	ReadWriteToken string              `json:"read_write_token,omitempty"`
}

func (s *Server) handleSearch(ctx context.Context, args map[string]any) (toolCallResult, *toolError) {
	opts, terr := optionsFromArgs(args)
	if terr != nil {
		return toolCallResult{}, terr
	}
	return s.runSearch(ctx, opts)
}

// handleChat is handleSearch plus continuity threading.
func (s *Server) handleChat(ctx context.Context, args map[string]any) (toolCallResult, *toolError) {
	opts, terr := optionsFromArgs(args)
	if terr != nil {
		return toolCallResult{}, terr
	}

	backendUUID := stringArg(args, "backend_uuid")
	token := stringArg(args, "read_write_token")
	if backendUUID != "" && token != "" {
		opts.FollowUp = &perplexity.ConversationContext{
			BackendUUID:    backendUUID,
			ReadWriteToken: token,
		}
	}
	return s.runSearch(ctx, opts)
}

func (s *Server) runSearch(ctx context.Context, opts perplexity.SearchOptions) (toolCallResult, *toolError) {
	result, err := s.client.Search(ctx, opts)
	if err != nil {
		return toolCallResult{}, searchError(err)
	}

	payload := searchPayload{
		Answer:         result.Answer,
		Sources:        result.Sources,
		Related:        result.Related,
		BackendUUID:    result.BackendUUID,
		ReadWriteToken: result.ReadWriteToken,
	}
	return textResult(result.Answer, payload), nil
}

func (s *Server) handleListSpaces(_ context.Context, _ map[string]any) (toolCallResult, *toolError) {
	spaces := s.client.Spaces()
	text := fmt.Sprintf("%d known spaces", len(spaces))
	return textResult(text, map[string]any{"spaces": spaces}), nil
}

func (s *Server) handleCreateSpace(ctx context.Context, args map[string]any) (toolCallResult, *toolError) {
	title := stringArg(args, "title")
	if title == "" {
		return toolCallResult{}, &toolError{Code: "INVALID_PARAMS", Message: "title must not be empty"}
	}

	info, err := s.client.CreateSpace(ctx, perplexity.CreateSpaceOptions{
		Title:        title,
		Description:  stringArg(args, "description"),
		Emoji:        stringArg(args, "emoji"),
		Instructions: stringArg(args, "instructions"),
		AutoSave:     true,
	})
	if err != nil {
		return toolCallResult{}, searchError(err)
	}
	return textResult("created space "+info.Title, info), nil
}

func (s *Server) handleListProfiles(_ context.Context, _ map[string]any) (toolCallResult, *toolError) {
	profiles := perplexity.ProfileNames()
	return textResult(fmt.Sprintf("%d profiles", len(profiles)),
		map[string]any{"profiles": profiles}), nil
}

func (s *Server) handleListModes(_ context.Context, _ map[string]any) (toolCallResult, *toolError) {
	modes := make(map[string][]string)
	for _, mode := range perplexity.Modes() {
		modes[mode] = perplexity.ModelsFor(perplexity.Mode(mode))
	}
	return textResult(fmt.Sprintf("%d modes", len(modes)),
		map[string]any{"modes": modes}), nil
}

// searchError classifies an upstream failure for tool consumers.
func searchError(err error) *toolError {
	code := "UPSTREAM_ERROR"
	switch perplexity.KindOf(err) {
	case perplexity.KindValidation:
		code = "INVALID_PARAMS"
	case perplexity.KindAuth:
		code = "AUTH_REQUIRED"
	case perplexity.KindNotFound:
		code = "NOT_FOUND"
	case perplexity.KindDisconnected:
		code = "UPSTREAM_DISCONNECTED"
	}
	return &toolError{Code: code, Message: err.Error()}
}
