// Copyright (C) 2026 Openplexity Contributors (maintainers@openplexity.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package mcp implements a Model Context Protocol server over stdio.
//
// The server speaks JSON-RPC 2.0, one message per line, and exposes
// the search client as MCP tools so LLM agents can issue queries,
// hold threaded conversations, and manage spaces.
package mcp

import (
	"context"
	"encoding/json"
)

// =============================================================================
// JSON-RPC 2.0 Messages
// =============================================================================

// protocolVersion is the MCP protocol revision this server speaks.
const protocolVersion = "2024-11-05"

// JSON-RPC error codes.
const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeInternalError  = -32603
)

// rpcRequest is one inbound JSON-RPC message. Notifications carry a
// nil ID and get no response.
type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// rpcResponse is one outbound JSON-RPC message.
type rpcResponse struct {
	JSONRPC string    `json:"jsonrpc"`
	ID      any       `json:"id"`
	Result  any       `json:"result,omitempty"`
	Error   *rpcError `json:"error,omitempty"`
}

// rpcError is the JSON-RPC error object.
type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// =============================================================================
// MCP Payloads
// =============================================================================

// initializeResult answers the initialize handshake.
type initializeResult struct {
	ProtocolVersion string         `json:"protocolVersion"`
	Capabilities    map[string]any `json:"capabilities"`
	ServerInfo      serverInfo     `json:"serverInfo"`
}

type serverInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// toolHandler executes one tool call.
type toolHandler func(ctx context.Context, args map[string]any) (toolCallResult, *toolError)

// toolDefinition describes one tool for tools/list.
type toolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema"`
	handler     toolHandler
}

// toolsCallParams is the params object of a tools/call request.
type toolsCallParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// toolCallResult is the result object of a tools/call response.
type toolCallResult struct {
	Content           []toolContentItem `json:"content"`
	StructuredContent any               `json:"structuredContent,omitempty"`
	IsError           bool              `json:"isError,omitempty"`
}

// toolContentItem is one content block in a tool result.
type toolContentItem struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// toolError is a tool-level failure, reported inside a successful
// JSON-RPC response per the MCP convention.
type toolError struct {
	Code    string
	Message string
}

// textResult wraps plain text in a tool result.
func textResult(text string, structured any) toolCallResult {
	return toolCallResult{
		Content:           []toolContentItem{{Type: "text", Text: text}},
		StructuredContent: structured,
	}
}

// errorResult converts a toolError into the wire shape.
func errorResult(te toolError) toolCallResult {
	return toolCallResult{
		Content: []toolContentItem{{
			Type: "text",
			Text: te.Code + ": " + te.Message,
		}},
		IsError: true,
	}
}
