package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/mozilla-ai/mcphub/internal/auth"
	"github.com/mozilla-ai/mcphub/internal/contracts"
	"github.com/mozilla-ai/mcphub/internal/domain"
	"github.com/mozilla-ai/mcphub/internal/errors"
)

// Mention asks for every tool of a server, or a single tool of it.
type Mention struct {
	Type     string `doc:"mcpServer for every tool of the server, mcpTool for one tool" enum:"mcpServer,mcpTool" json:"type"`
	Name     string `doc:"Server name for server mentions, tool name for tool mentions"                          json:"name"`
	ServerID string `doc:"ID of the mentioned server"                                                            json:"serverId"`
}

// AllowedServer restricts a server to a subset of its tools.
type AllowedServer struct {
	Tools []string `doc:"Allowed tool names" json:"tools"`
}

// ToolSelectRequest represents the incoming API request for selecting tools for a single invocation.
type ToolSelectRequest struct {
	Body struct {
		Mentions          []Mention                `doc:"Explicit server or tool mentions, these take precedence" json:"mentions,omitempty"`
		AllowedMCPServers map[string]AllowedServer `doc:"Allow-list keyed by server ID"                            json:"allowedMcpServers,omitempty"`
	}
}

// ToolSelectResponse represents the wrapped API response for selected tools keyed by composite tool key.
type ToolSelectResponse struct {
	Body map[string]ToolHandle
}

// RegisterToolRoutes sets up tool selection endpoints.
func RegisterToolRoutes(routerAPI huma.API, registry contracts.MCPRegistry, apiPathPrefix string) {
	toolsAPI := huma.NewGroup(routerAPI, apiPathPrefix)
	tags := []string{"Tools"}

	huma.Register(
		toolsAPI,
		huma.Operation{
			OperationID: "selectTools",
			Method:      http.MethodPost,
			Path:        "/select",
			Summary:     "Select the tools available to the caller",
			Tags:        tags,
		},
		func(ctx context.Context, input *ToolSelectRequest) (*ToolSelectResponse, error) {
			return handleSelectTools(ctx, registry, input)
		},
	)
}

// handleSelectTools narrows the caller's accessible tools by mentions, or failing that by the allow-list.
func handleSelectTools(
	ctx context.Context,
	registry contracts.MCPRegistry,
	input *ToolSelectRequest,
) (*ToolSelectResponse, error) {
	callerID := auth.CallerFromContext(ctx)
	if callerID == "" {
		return nil, errors.ErrUnauthorized
	}

	mentions := make([]domain.Mention, 0, len(input.Body.Mentions))
	for _, m := range input.Body.Mentions {
		mentions = append(mentions, domain.Mention{
			Type:     domain.MentionType(m.Type),
			Name:     m.Name,
			ServerID: m.ServerID,
		})
	}

	var allowed domain.AllowList
	if input.Body.AllowedMCPServers != nil {
		allowed = make(domain.AllowList, len(input.Body.AllowedMCPServers))
		for id, a := range input.Body.AllowedMCPServers {
			allowed[id] = domain.AllowedServer{Tools: a.Tools}
		}
	}

	tools, err := registry.LoadTools(ctx, callerID, mentions, allowed)
	if err != nil {
		return nil, err
	}

	body := make(map[string]ToolHandle, len(tools))
	for key, t := range tools {
		data, err := DomainToolHandle(t).ToAPIType()
		if err != nil {
			return nil, err
		}
		body[key] = data
	}

	return &ToolSelectResponse{Body: body}, nil
}
