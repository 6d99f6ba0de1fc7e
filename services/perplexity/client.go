// Copyright (C) 2026 Openplexity Contributors (maintainers@openplexity.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package perplexity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/openplexity/openplexity/pkg/logging"
)

// =============================================================================
// Client Configuration
// =============================================================================

// ClientConfig wires a Client's collaborators. Credentials must be
// provided explicitly; there is no ambient credential discovery.
type ClientConfig struct {
	// HTTPClient is the transport. Nil gets a client with a 5-minute
	// timeout, sized for deep-research exchanges.
	HTTPClient *http.Client

	// BaseURL overrides the upstream, used by tests. Empty means
	// DefaultBaseURL.
	BaseURL string

	// Credentials authenticates upstream requests. Nil means
	// anonymous.
	Credentials *Credentials

	// Spaces resolves space identifiers. Nil disables space targeting.
	Spaces SpaceResolver

	// Logger receives structured logs. Nil means the default logger.
	Logger *logging.Logger
}

// =============================================================================
// Client
// =============================================================================

// Client is the high-level facade over the streaming core.
//
// It threads credentials, space resolution, and profile expansion
// into StreamSessions, one per exchange.
//
// # Thread Safety
//
// Safe for concurrent use. Each exchange gets its own session state.
type Client struct {
	httpClient *http.Client
	baseURL    string
	creds      *Credentials
	spaces     SpaceResolver
	logger     *logging.Logger
	visitorID  string
}

// NewClient creates a Client from the config.
func NewClient(cfg ClientConfig) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Minute}
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	creds := cfg.Credentials
	if creds == nil {
		creds = &Credentials{}
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    baseURL,
		creds:      creds,
		spaces:     cfg.Spaces,
		logger:     logger,
		visitorID:  uuid.NewString(),
	}
}

// =============================================================================
// Search
// =============================================================================

// SearchOptions describes one exchange.
type SearchOptions struct {
	// Query is the user's question. Required.
	Query string

	// Mode selects the engine tier. Empty means ModeAuto.
	Mode Mode

	// Model selects a model within the mode.
	Model string

	// Sources selects retrieval corpora. Empty means web.
	Sources []string

	// Profile expands the query with a preset instruction suffix.
	Profile Profile

	// Space targets a collection by name or UUID. An unknown name is
	// dropped with a warning; the search proceeds without a space.
	Space string

	// Language is the response language tag (default en-US).
	Language string

	// Timezone is the client timezone hint.
	Timezone string

	// SearchFocus is the focus hint (default "internet").
	SearchFocus string

	// Incognito requests an unthreaded exchange.
	Incognito bool

	// Attachments holds pre-uploaded file URLs.
	Attachments []string

	// FollowUp continues an earlier conversation.
	FollowUp *ConversationContext
}

// Search runs one blocking exchange and returns the final result.
func (c *Client) Search(ctx context.Context, opts SearchOptions) (SearchResult, error) {
	return c.SearchStream(ctx, opts, nil)
}

// SearchStream runs one exchange, reporting progress through
// onProgress. The returned result is the same one the last progress
// snapshot would produce.
func (c *Client) SearchStream(ctx context.Context, opts SearchOptions, onProgress ProgressFunc) (SearchResult, error) {
	query, payload, err := c.prepare(opts)
	if err != nil {
		return SearchResult{}, err
	}

	session := NewStreamSession(c.httpClient, c.baseURL, c.creds, c.logger, query, payload)
	return session.Run(ctx, onProgress)
}

// FollowUpFrom derives a continuity context from a result, carrying
// forward the given attachments.
func (c *Client) FollowUpFrom(res SearchResult, attachments []string) (ConversationContext, error) {
	return ContextFromResult(res, attachments)
}

// prepare expands the profile, resolves the space, and builds the
// wire payload. All failures here are pre-network.
func (c *Client) prepare(opts SearchOptions) (string, map[string]any, error) {
	query, err := ExpandQuery(opts.Query, opts.Profile)
	if err != nil {
		return "", nil, err
	}

	builder := NewRequestBuilder(query).
		WithIncognito(opts.Incognito).
		WithVisitorID(c.visitorID).
		WithAttachments(opts.Attachments...)

	if opts.Mode != "" {
		builder = builder.WithMode(opts.Mode)
	}
	if opts.Model != "" {
		builder = builder.WithModel(opts.Model)
	}
	if len(opts.Sources) > 0 {
		builder = builder.WithSources(opts.Sources...)
	}
	if opts.Language != "" {
		builder = builder.WithLanguage(opts.Language)
	}
	if opts.Timezone != "" {
		builder = builder.WithTimezone(opts.Timezone)
	}
	if opts.SearchFocus != "" {
		builder = builder.WithSearchFocus(opts.SearchFocus)
	}
	if opts.FollowUp != nil {
		builder = builder.WithFollowUp(*opts.FollowUp)
	}

	if opts.Space != "" {
		collectionUUID, err := c.resolveSpace(opts.Space)
		if err != nil {
			return "", nil, err
		}
		if collectionUUID != "" {
			builder = builder.WithSpace(collectionUUID)
		}
	}

	payload, err := builder.Build()
	if err != nil {
		return "", nil, err
	}
	return query, payload, nil
}

// resolveSpace maps the identifier through the resolver. An unknown
// name degrades to "no space" with a warning instead of failing the
// search, matching how space targeting has always behaved: the space
// is an enhancement, not a precondition.
func (c *Client) resolveSpace(identifier string) (string, error) {
	if c.spaces == nil {
		c.logger.Warn("space requested but no resolver configured", "space", identifier)
		return "", nil
	}
	collectionUUID, err := c.spaces.Resolve(identifier)
	if err != nil {
		if KindOf(err) == KindNotFound {
			c.logger.Warn("space not found, searching without it", "space", identifier)
			return "", nil
		}
		return "", err
	}
	return collectionUUID, nil
}

// =============================================================================
// Spaces
// =============================================================================

// CreateSpaceOptions describes a new space.
type CreateSpaceOptions struct {
	// Title names the space. Required.
	Title string

	// Description explains the space's purpose.
	Description string

	// Emoji decorates the space.
	Emoji string

	// Instructions is the system prompt applied inside the space.
	Instructions string

	// Access level: 1 private (default), 2 team, 3 public.
	Access int

	// AutoSave records the new space in the local mapping so its
	// name resolves immediately.
	AutoSave bool
}

// SpaceInfo describes a created space.
type SpaceInfo struct {
	UUID  string `json:"uuid"`
	Title string `json:"title"`
	Slug  string `json:"slug"`
}

// CreateSpace creates a space upstream.
//
// With AutoSave set and a file-backed resolver configured, the new
// space's name→UUID mapping is persisted locally.
func (c *Client) CreateSpace(ctx context.Context, opts CreateSpaceOptions) (SpaceInfo, error) {
	if opts.Title == "" {
		return SpaceInfo{}, NewError(KindValidation, "space title must not be empty")
	}
	access := opts.Access
	if access == 0 {
		access = 1
	}

	body := map[string]any{
		"title":        opts.Title,
		"description":  opts.Description,
		"emoji":        opts.Emoji,
		"instructions": opts.Instructions,
		"access":       access,
		"version":      wireVersion,
		"source":       "default",
	}

	var info SpaceInfo
	if err := c.postJSON(ctx, collectionsEndpoint, body, &info); err != nil {
		return SpaceInfo{}, err
	}

	c.logger.Info("space created", "title", opts.Title, "uuid", info.UUID)

	if opts.AutoSave && info.UUID != "" {
		if store, ok := c.spaces.(*SpaceStore); ok {
			if err := store.Add(opts.Title, info.UUID); err != nil {
				c.logger.Warn("space created but mapping not saved", "error", err.Error())
			}
		}
	}
	return info, nil
}

// Spaces returns the configured space mapping, or nil when no
// resolver is wired.
func (c *Client) Spaces() map[string]string {
	if c.spaces == nil {
		return nil
	}
	return c.spaces.List()
}

// =============================================================================
// Session Info
// =============================================================================

// SessionInfo reports the upstream account session state for the
// configured credentials.
func (c *Client) SessionInfo(ctx context.Context) (map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/auth/session", nil)
	if err != nil {
		return nil, fmt.Errorf("build session request: %w", err)
	}
	headers, err := c.creds.Headers()
	if err != nil {
		return nil, err
	}
	req.Header = headers

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, WrapError(KindDisconnected, err, "fetch session info")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, NewError(KindAuth, "upstream rejected credentials (HTTP %d)", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, NewError(KindUnknown, "session info HTTP %d", resp.StatusCode)
	}

	var info map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, WrapError(KindDecode, err, "decode session info")
	}
	return info, nil
}

// Authenticated reports whether credentials are configured.
func (c *Client) Authenticated() bool {
	return c.creds.Present()
}

// postJSON posts a JSON body and decodes a JSON response.
func (c *Client) postJSON(ctx context.Context, path string, body any, out any) error {
	encoded, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	headers, err := c.creds.Headers()
	if err != nil {
		return err
	}
	req.Header = headers
	req.Header.Set("accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return WrapError(KindDisconnected, err, "post %s", path)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return NewError(KindAuth, "upstream rejected credentials (HTTP %d)", resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return NewError(KindUnknown, "upstream HTTP %d: %s", resp.StatusCode, bytes.TrimSpace(detail))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return WrapError(KindDecode, err, "decode %s response", path)
	}
	return nil
}
