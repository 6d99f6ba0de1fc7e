// Copyright (C) 2026 Openplexity Contributors (maintainers@openplexity.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package perplexity

import (
	"strings"

	"github.com/google/uuid"
)

// =============================================================================
// Modes, Models, Sources
// =============================================================================

// Mode selects the answer engine tier.
type Mode string

const (
	ModeAuto         Mode = "auto"
	ModePro          Mode = "pro"
	ModeReasoning    Mode = "reasoning"
	ModeDeepResearch Mode = "deep research"
	ModeDeepLab      Mode = "deep lab"
)

// modelPreferences maps each mode to its accepted model names and
// their wire-level preference values. The empty model name is the
// mode default.
var modelPreferences = map[Mode]map[string]string{
	ModeAuto: {"": "turbo"},
	ModePro: {
		"":                       "pplx_pro",
		"pplx_pro":               "pplx_pro",
		"sonar":                  "sonar",
		"gpt-4.5":                "gpt45",
		"gpt-4o":                 "gpt4o",
		"gpt41":                  "gpt41",
		"gpt5":                   "gpt5",
		"gpt5thinking":           "gpt5thinking",
		"o3":                     "o3",
		"claude 3.7 sonnet":      "claude2",
		"claude":                 "claude2",
		"claude37sonnetthinking": "claude37sonnetthinking",
		"claude45sonnet":         "claude45sonnet",
		"claude45sonnetthinking": "claude45sonnetthinking",
		"gemini 2.0 flash":       "gemini2flash",
		"gemini2flash":           "gemini2flash",
		"grok-2":                 "grok",
		"grok4":                  "grok4",
	},
	ModeReasoning: {
		"":                  "pplx_reasoning",
		"r1":                "r1",
		"o3-mini":           "o3mini",
		"claude 3.7 sonnet": "claude37sonnetthinking",
	},
	ModeDeepResearch: {"": "pplx_alpha", "pplx_alpha": "pplx_alpha"},
	ModeDeepLab:      {"": "pplx_beta", "pplx_beta": "pplx_beta"},
}

// modesRequiringModel lists modes where the caller must pick a model
// explicitly instead of relying on the default.
var modesRequiringModel = map[Mode]bool{
	ModePro:       true,
	ModeReasoning: true,
	ModeDeepLab:   true,
}

// Valid retrieval sources.
const (
	SourceWeb     = "web"
	SourceScholar = "scholar"
	SourceSocial  = "social"
	SourceEdgar   = "edgar"
)

var validSources = map[string]bool{
	SourceWeb:     true,
	SourceScholar: true,
	SourceSocial:  true,
	SourceEdgar:   true,
}

// Modes returns all mode names.
func Modes() []string {
	return []string{
		string(ModeAuto), string(ModePro), string(ModeReasoning),
		string(ModeDeepResearch), string(ModeDeepLab),
	}
}

// ModelsFor returns the accepted model names for a mode, excluding
// the empty default entry.
func ModelsFor(mode Mode) []string {
	prefs, ok := modelPreferences[mode]
	if !ok {
		return nil
	}
	models := make([]string, 0, len(prefs))
	for name := range prefs {
		if name != "" {
			models = append(models, name)
		}
	}
	return models
}

// =============================================================================
// RequestBuilder
// =============================================================================

// RequestBuilder assembles the wire payload for one exchange.
//
// Zero value is not useful; start from NewRequestBuilder, chain the
// With methods, and finish with Build. Build validates everything
// locally so an invalid request never reaches the network.
//
// The builder is a plain value; each With method mutates the
// receiver copy it was called on and returns it, so chains read
// naturally and intermediate builders can be reused as templates.
type RequestBuilder struct {
	query       string
	mode        Mode
	model       string
	sources     []string
	language    string
	timezone    string
	searchFocus string
	space       string
	followUp    *ConversationContext
	incognito   bool
	attachments []string
	visitorID   string
	querySource string
}

// NewRequestBuilder starts a builder with upstream defaults:
// auto mode, web source, en-US, internet focus.
func NewRequestBuilder(query string) RequestBuilder {
	return RequestBuilder{
		query:       query,
		mode:        ModeAuto,
		sources:     []string{SourceWeb},
		language:    "en-US",
		timezone:    "Europe/Berlin",
		searchFocus: "internet",
		querySource: "home",
	}
}

// WithMode selects the answer engine tier.
func (b RequestBuilder) WithMode(mode Mode) RequestBuilder {
	b.mode = mode
	return b
}

// WithModel selects a model within the mode.
func (b RequestBuilder) WithModel(model string) RequestBuilder {
	b.model = model
	return b
}

// WithSources replaces the retrieval corpora.
func (b RequestBuilder) WithSources(sources ...string) RequestBuilder {
	b.sources = sources
	return b
}

// WithLanguage sets the response language tag.
func (b RequestBuilder) WithLanguage(language string) RequestBuilder {
	b.language = language
	return b
}

// WithTimezone sets the client timezone hint.
func (b RequestBuilder) WithTimezone(tz string) RequestBuilder {
	b.timezone = tz
	return b
}

// WithSearchFocus sets the focus hint (default "internet").
func (b RequestBuilder) WithSearchFocus(focus string) RequestBuilder {
	b.searchFocus = focus
	return b
}

// WithSpace targets a collection by UUID. Resolution from names
// happens in SpaceResolver before the builder is involved.
func (b RequestBuilder) WithSpace(collectionUUID string) RequestBuilder {
	b.space = collectionUUID
	return b
}

// WithFollowUp continues an earlier conversation thread.
func (b RequestBuilder) WithFollowUp(ctx ConversationContext) RequestBuilder {
	b.followUp = &ctx
	return b
}

// WithIncognito requests an unthreaded exchange. The upstream will
// withhold continuity metadata for it.
func (b RequestBuilder) WithIncognito(incognito bool) RequestBuilder {
	b.incognito = incognito
	return b
}

// WithAttachments adds pre-uploaded file URLs to the exchange.
func (b RequestBuilder) WithAttachments(urls ...string) RequestBuilder {
	b.attachments = append(b.attachments, urls...)
	return b
}

// WithVisitorID pins the visitor identifier. When unset, Build
// generates a fresh one.
func (b RequestBuilder) WithVisitorID(id string) RequestBuilder {
	b.visitorID = id
	return b
}

// WithQuerySource tags where the query originated ("home" default).
func (b RequestBuilder) WithQuerySource(src string) RequestBuilder {
	b.querySource = src
	return b
}

// Build validates the builder and produces the wire payload.
//
// Validation errors are KindValidation:
//   - empty query
//   - unknown mode or source
//   - missing model for modes that require one
//   - model not accepted by the mode
func (b RequestBuilder) Build() (map[string]any, error) {
	if strings.TrimSpace(b.query) == "" {
		return nil, NewError(KindValidation, "query must not be empty")
	}

	prefs, ok := modelPreferences[b.mode]
	if !ok {
		return nil, NewError(KindValidation, "invalid search mode %q (valid: %v)", b.mode, Modes())
	}
	if modesRequiringModel[b.mode] && b.model == "" {
		return nil, NewError(KindValidation, "model selection is required for %q mode", b.mode)
	}
	preference, ok := prefs[b.model]
	if !ok {
		return nil, NewError(KindValidation, "invalid model %q for mode %q", b.model, b.mode)
	}

	sources := b.sources
	if len(sources) == 0 {
		sources = []string{SourceWeb}
	}
	for _, src := range sources {
		if !validSources[src] {
			return nil, NewError(KindValidation, "invalid source %q (valid: web, scholar, social, edgar)", src)
		}
	}

	wireMode := "copilot"
	if b.mode == ModeAuto {
		wireMode = "concise"
	}

	visitorID := b.visitorID
	if visitorID == "" {
		visitorID = uuid.NewString()
	}

	attachments := append([]string(nil), b.attachments...)
	var lastBackendUUID, readWriteToken any
	if b.followUp != nil {
		attachments = append(attachments, b.followUp.Attachments...)
		lastBackendUUID = b.followUp.BackendUUID
		readWriteToken = b.followUp.ReadWriteToken
	}

	params := map[string]any{
		"attachments":            attachments,
		"language":               b.language,
		"timezone":               b.timezone,
		"search_focus":           b.searchFocus,
		"search_recency_filter":  nil,
		"frontend_context_uuid":  uuid.NewString(),
		"frontend_uuid":          uuid.NewString(),
		"mode":                   wireMode,
		"model_preference":       preference,
		"is_related_query":       false,
		"is_sponsored":           false,
		"visitor_id":             visitorID,
		"user_nextauth_id":       nil,
		"prompt_source":          "user",
		"query_source":           b.querySource,
		"is_incognito":           b.incognito,
		"time_from_first_type":   nil,
		"local_search_enabled":   false,
		"use_schematized_api":    true,
		"send_back_text_in_streaming_api": false,
		"supported_block_use_cases": []string{
			"answer_modes", "media_items", "knowledge_cards", "inline_entity_cards",
			"place_widgets", "finance_widgets", "sports_widgets", "shopping_widgets",
			"jobs_widgets", "search_result_widgets", "clarification_responses",
			"inline_images", "inline_assets", "inline_finance_widgets",
			"placeholder_cards", "diff_blocks", "inline_knowledge_cards",
			"entity_group_v2", "refinement_filters", "canvas_mode", "maps_preview",
		},
		"client_coordinates":        nil,
		"mentions":                  []string{},
		"dsl_query":                 b.query,
		"skip_search_enabled":       true,
		"is_nav_suggestions_disabled": false,
		"always_search_override":    false,
		"override_no_search":        false,
		"comet_max_assistant_enabled": false,
		"should_ask_for_mcp_tool_confirmation": true,
		"last_backend_uuid":         lastBackendUUID,
		"read_write_token":          readWriteToken,
		"source":                    "default",
		"sources":                   sources,
		"version":                   wireVersion,
	}
	if b.space != "" {
		params["target_collection_uuid"] = b.space
	}

	return map[string]any{
		"query_str": b.query,
		"params":    params,
	}, nil
}

// Query returns the builder's query text.
func (b RequestBuilder) Query() string {
	return b.query
}
