// Copyright (C) 2026 Openplexity Contributors (maintainers@openplexity.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package mcp

import (
	"encoding/json"
	"sort"
	"strings"
)

// =====================================================================
// Resources
// =====================================================================

// spaceURIPrefix namespaces the space resources.
const spaceURIPrefix = "openplexity://space/"

// resourceDefinition describes one resource for resources/list.
type resourceDefinition struct {
	URI         string `json:"uri"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	MimeType    string `json:"mimeType,omitempty"`
}

// resourcesReadParams is the params object of a resources/read request.
type resourcesReadParams struct {
	URI string `json:"uri"`
}

// resourceContents is one entry in a resources/read result.
type resourceContents struct {
	URI      string `json:"uri"`
	MimeType string `json:"mimeType,omitempty"`
	Text     string `json:"text,omitempty"`
}

// spaceResource is the JSON body of a space resource.
type spaceResource struct {
	Name string `json:"name"`
	UUID string `json:"uuid"`
}

// handleResourcesList exposes each known space as a resource so
// clients can discover valid space targets without a tool call.
func (s *Server) handleResourcesList(id any) {
	spaces := s.client.Spaces()

	names := make([]string, 0, len(spaces))
	for name := range spaces {
		names = append(names, name)
	}
	sort.Strings(names)

	resources := make([]resourceDefinition, 0, len(names))
	for _, name := range names {
		resources = append(resources, resourceDefinition{
			URI:         spaceURIPrefix + spaces[name],
			Name:        name,
			Description: "Perplexity space " + name,
			MimeType:    "application/json",
		})
	}
	s.writeResult(id, map[string]any{"resources": resources})
}

// handleResourcesRead resolves one space resource by URI.
func (s *Server) handleResourcesRead(req rpcRequest) {
	var params resourcesReadParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		s.writeError(req.ID, codeInvalidParams, "malformed resources/read params")
		return
	}

	uuid, ok := strings.CutPrefix(params.URI, spaceURIPrefix)
	if !ok {
		s.writeError(req.ID, codeInvalidParams, "unknown resource: "+params.URI)
		return
	}

	for name, id := range s.client.Spaces() {
		if id == uuid {
			body, err := json.Marshal(spaceResource{Name: name, UUID: id})
			if err != nil {
				s.writeError(req.ID, codeInternalError, "encode resource")
				return
			}
			s.writeResult(req.ID, map[string]any{"contents": []resourceContents{{
				URI:      params.URI,
				MimeType: "application/json",
				Text:     string(body),
			}}})
			return
		}
	}
	s.writeError(req.ID, codeInvalidParams, "unknown resource: "+params.URI)
}
