// Copyright (C) 2026 Openplexity Contributors (maintainers@openplexity.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"

	"github.com/openplexity/openplexity/services/perplexity"
)

// =============================================================================
// Server
// =============================================================================

// Searcher is the slice of the search client the MCP tools use.
type Searcher interface {
	Search(ctx context.Context, opts perplexity.SearchOptions) (perplexity.SearchResult, error)
	CreateSpace(ctx context.Context, opts perplexity.CreateSpaceOptions) (perplexity.SpaceInfo, error)
	Spaces() map[string]string
}

var _ Searcher = (*perplexity.Client)(nil)

// Server is a stdio MCP server.
//
// # Description
//
// Server reads newline-delimited JSON-RPC requests, dispatches them
// to the tool registry, and writes responses. stdout carries protocol
// traffic only; all logging goes through the structured logger, which
// the caller must point at stderr or a file.
//
// # Thread Safety
//
// Requests are handled sequentially in arrival order. The write
// mutex exists so a future concurrent dispatcher cannot interleave
// response bytes.
type Server struct {
	client  Searcher
	logger  *slog.Logger
	version string

	in    io.Reader
	out   io.Writer
	wmu   sync.Mutex
	tools map[string]toolDefinition
}

// Config wires a Server.
type Config struct {
	// Client is the upstream search client. Required.
	Client Searcher

	// Logger receives structured logs. Must not write to stdout.
	Logger *slog.Logger

	// Version is reported in the initialize handshake.
	Version string

	// In and Out override the transport, used by tests. Nil means
	// the caller passes os.Stdin/os.Stdout to Run explicitly via
	// NewServer's defaults.
	In  io.Reader
	Out io.Writer
}

// NewServer creates a Server over the given transport.
func NewServer(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	version := cfg.Version
	if version == "" {
		version = "dev"
	}
	s := &Server{
		client:  cfg.Client,
		logger:  logger,
		version: version,
		in:      cfg.In,
		out:     cfg.Out,
	}
	s.tools = s.buildToolRegistry()
	return s
}

// Run serves requests until the input closes or the context is
// canceled.
func (s *Server) Run(ctx context.Context) error {
	scanner := bufio.NewScanner(s.in)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req rpcRequest
		if err := json.Unmarshal(line, &req); err != nil {
			s.writeError(nil, codeParseError, "malformed JSON-RPC message")
			continue
		}
		s.dispatch(ctx, req)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read stdio transport: %w", err)
	}
	return nil
}

// dispatch routes one request to its method handler.
func (s *Server) dispatch(ctx context.Context, req rpcRequest) {
	s.logger.Debug("mcp request", "method", req.Method)

	switch req.Method {
	case "initialize":
		s.writeResult(req.ID, initializeResult{
			ProtocolVersion: protocolVersion,
			Capabilities: map[string]any{
				"tools":     map[string]any{},
				"resources": map[string]any{},
			},
			ServerInfo:      serverInfo{Name: "openplexity", Version: s.version},
		})
	case "notifications/initialized", "notifications/cancelled":
		// Notifications get no response.
	case "ping":
		s.writeResult(req.ID, map[string]any{})
	case "tools/list":
		s.handleToolsList(req.ID)
	case "tools/call":
		s.handleToolsCall(ctx, req)
	case "resources/list":
		s.handleResourcesList(req.ID)
	case "resources/read":
		s.handleResourcesRead(req)
	default:
		if req.ID == nil {
			return
		}
		s.writeError(req.ID, codeMethodNotFound, "unknown method: "+req.Method)
	}
}

// handleToolsList returns the registry in stable name order.
func (s *Server) handleToolsList(id any) {
	names := make([]string, 0, len(s.tools))
	for name := range s.tools {
		names = append(names, name)
	}
	sort.Strings(names)

	tools := make([]toolDefinition, 0, len(names))
	for _, name := range names {
		tools = append(tools, s.tools[name])
	}
	s.writeResult(id, map[string]any{"tools": tools})
}

// handleToolsCall executes one tool. Tool failures are reported as
// successful responses with IsError set, per the MCP convention;
// protocol failures use JSON-RPC errors.
func (s *Server) handleToolsCall(ctx context.Context, req rpcRequest) {
	var params toolsCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		s.writeError(req.ID, codeInvalidParams, "malformed tools/call params")
		return
	}

	tool, ok := s.tools[params.Name]
	if !ok {
		s.writeResult(req.ID, errorResult(toolError{
			Code:    "UNKNOWN_TOOL",
			Message: "unknown tool: " + params.Name,
		}))
		return
	}

	result, terr := tool.handler(ctx, params.Arguments)
	if terr != nil {
		s.logger.Warn("tool call failed",
			"tool", params.Name, "code", terr.Code, "error", terr.Message)
		s.writeResult(req.ID, errorResult(*terr))
		return
	}
	s.writeResult(req.ID, result)
}

// writeResult writes a success response as one line.
func (s *Server) writeResult(id any, result any) {
	s.write(rpcResponse{JSONRPC: "2.0", ID: id, Result: result})
}

// writeError writes an error response as one line.
func (s *Server) writeError(id any, code int, message string) {
	s.write(rpcResponse{JSONRPC: "2.0", ID: id, Error: &rpcError{Code: code, Message: message}})
}

func (s *Server) write(resp rpcResponse) {
	data, err := json.Marshal(resp)
	if err != nil {
		s.logger.Error("failed to marshal response", "error", err)
		return
	}

	s.wmu.Lock()
	defer s.wmu.Unlock()
	if _, err := s.out.Write(append(data, '\n')); err != nil {
		s.logger.Error("failed to write response", "error", err)
	}
}
