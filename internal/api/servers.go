package api

import (
	"context"
	"encoding/json"
	stdErrors "errors"
	"fmt"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/mozilla-ai/mcphub/internal/auth"
	"github.com/mozilla-ai/mcphub/internal/contracts"
	"github.com/mozilla-ai/mcphub/internal/domain"
	"github.com/mozilla-ai/mcphub/internal/errors"
	"github.com/mozilla-ai/mcphub/internal/filter"
)

const (
	scopeMine   = "mine"
	scopeShared = "shared"
)

// ServerListRequest represents the incoming API request for listing servers visible to the caller.
type ServerListRequest struct {
	Name       string `doc:"Filter by partial server name"          query:"name"`
	Visibility string `doc:"Filter by visibility"                   enum:"private,public,readonly"                  query:"visibility"`
	Status     string `doc:"Filter by live client status"           enum:"connected,disconnected,loading,authorizing" query:"status"`
	Scope      string `doc:"Only servers the caller owns or only servers shared with the caller" enum:"mine,shared" query:"scope"`
}

// ServerListResponse represents the wrapped API response for a list of servers.
type ServerListResponse struct {
	Body []ServerView
}

// ServerIDRequest identifies a server by ID.
type ServerIDRequest struct {
	ID string `doc:"Server ID" path:"id"`
}

// ServerResponse represents the wrapped API response for a single server.
type ServerResponse struct {
	Body Server
}

// ServerUpdateRequest represents the incoming API request to change a server's visibility.
type ServerUpdateRequest struct {
	ID   string `doc:"Server ID" path:"id"`
	Body struct {
		_ struct{} `additionalProperties:"true" json:"-"`

		Visibility *string `doc:"New visibility; omitted leaves the server unchanged" enum:"private,public,readonly" json:"visibility,omitempty"`
	}
}

// ServerCreateRequest represents the incoming API request to register a server, or replace the config of one.
type ServerCreateRequest struct {
	Body struct {
		_ struct{} `additionalProperties:"true" json:"-"`

		ID         string         `doc:"ID of an owned server whose config should be replaced" json:"id,omitempty"`
		Name       string         `doc:"Unique server name"                                     json:"name"                 minLength:"1"`
		Config     map[string]any `doc:"Stdio ({command,args,env}) or remote ({url,headers}) config" json:"config"`
		Visibility string         `doc:"Defaults to private"                                    enum:"private,public,readonly" json:"visibility,omitempty"`
	}
}

// ServerSaveResponse represents the wrapped API response after saving a server.
type ServerSaveResponse struct {
	Body struct {
		Success bool   `json:"success"`
		Data    Server `json:"data"`
	}
}

// SuccessResponse is returned by operations that have nothing else to report.
type SuccessResponse struct {
	Body struct {
		Success bool `json:"success"`
	}
}

// ServerToolCallRequest represents the incoming API request to call a tool on a particular server.
type ServerToolCallRequest struct {
	ID   string         `doc:"Server ID"                example:"0b0f5a0e-7d0b-4a8e-9a8b-3c2f1d0e9b7a" path:"id"`
	Tool string         `doc:"Name of the tool to call" example:"get_current_time"                      path:"tool"`
	Body map[string]any `doc:"Tool arguments"                                                                required:"false"`
}

// ToolCallResponse represents the wrapped API response for calling a tool.
type ToolCallResponse struct {
	Body string
}

// RegisterServerRoutes sets up the MCP server registry endpoints.
func RegisterServerRoutes(routerAPI huma.API, registry contracts.MCPRegistry, apiPathPrefix string) {
	serversAPI := huma.NewGroup(routerAPI, apiPathPrefix)
	tags := []string{"Servers"}

	huma.Register(
		serversAPI,
		huma.Operation{
			OperationID: "listServers",
			Method:      http.MethodGet,
			Path:        "/list",
			Summary:     "List servers visible to the caller",
			Tags:        tags,
		},
		func(ctx context.Context, input *ServerListRequest) (*ServerListResponse, error) {
			return handleListServers(ctx, registry, input)
		},
	)

	huma.Register(
		serversAPI,
		huma.Operation{
			OperationID: "getServer",
			Method:      http.MethodGet,
			Path:        "/{id}",
			Summary:     "Get a server",
			Tags:        tags,
		},
		func(ctx context.Context, input *ServerIDRequest) (*ServerResponse, error) {
			return handleGetServer(ctx, registry, input.ID)
		},
	)

	huma.Register(
		serversAPI,
		huma.Operation{
			OperationID: "updateServer",
			Method:      http.MethodPut,
			Path:        "/{id}",
			Summary:     "Change the visibility of an owned server",
			Tags:        tags,
		},
		func(ctx context.Context, input *ServerUpdateRequest) (*ServerResponse, error) {
			return handleUpdateServer(ctx, registry, input)
		},
	)

	huma.Register(
		serversAPI,
		huma.Operation{
			OperationID: "deleteServer",
			Method:      http.MethodDelete,
			Path:        "/{id}",
			Summary:     "Delete an owned server",
			Tags:        tags,
		},
		func(ctx context.Context, input *ServerIDRequest) (*SuccessResponse, error) {
			return handleDeleteServer(ctx, registry, input.ID)
		},
	)

	huma.Register(
		serversAPI,
		huma.Operation{
			OperationID: "saveServer",
			Method:      http.MethodPost,
			Summary:     "Register a server, or replace the config of an owned server",
			Tags:        tags,
		},
		func(ctx context.Context, input *ServerCreateRequest) (*ServerSaveResponse, error) {
			return handleSaveServer(ctx, registry, input)
		},
	)

	huma.Register(
		serversAPI,
		huma.Operation{
			OperationID: "callTool",
			Method:      http.MethodPost,
			Path:        "/{id}/tools/{tool}",
			Summary:     "Call a tool on a server",
			Tags:        append(tags, "Tools"),
		},
		func(ctx context.Context, input *ServerToolCallRequest) (*ToolCallResponse, error) {
			return handleServerToolCall(ctx, registry, input.ID, input.Tool, input.Body)
		},
	)
}

// handleListServers returns the servers visible to the caller, narrowed by any supplied filters.
// Anonymous callers get an empty list rather than an error.
func handleListServers(
	ctx context.Context,
	registry contracts.MCPRegistry,
	input *ServerListRequest,
) (*ServerListResponse, error) {
	views, err := registry.List(ctx, auth.CallerFromContext(ctx))
	if err != nil {
		return nil, err
	}

	filters := map[string]string{
		"name":       input.Name,
		"visibility": input.Visibility,
		"status":     input.Status,
		"scope":      input.Scope,
	}

	matched := make([]DomainAccessibleView, 0, len(views))
	for _, v := range views {
		ok, err := filter.Match(v, filters, viewMatchers()...)
		if err != nil {
			return nil, err
		}
		if ok {
			matched = append(matched, DomainAccessibleView(v))
		}
	}

	body, err := convertAll[DomainAccessibleView, ServerView](matched)
	if err != nil {
		return nil, err
	}

	return &ServerListResponse{Body: body}, nil
}

func viewMatchers() []filter.Option[domain.AccessibleView] {
	return []filter.Option[domain.AccessibleView]{
		filter.WithMatcher("name", filter.Partial(func(v domain.AccessibleView) string { return v.Name })),
		filter.WithMatcher("visibility", filter.Equals(func(v domain.AccessibleView) string { return string(v.Visibility) })),
		filter.WithMatcher("status", filter.Equals(func(v domain.AccessibleView) string { return string(v.Status) })),
		filter.WithMatcher("scope", func(v domain.AccessibleView, val string) bool {
			switch filter.NormalizeString(val) {
			case scopeMine:
				return v.IsOwner
			case scopeShared:
				return !v.IsOwner
			default:
				return false
			}
		}),
	}
}

func handleGetServer(ctx context.Context, registry contracts.MCPRegistry, id string) (*ServerResponse, error) {
	rec, err := registry.Get(ctx, auth.CallerFromContext(ctx), id)
	if err != nil {
		return nil, err
	}

	return serverResponse(rec)
}

func handleUpdateServer(
	ctx context.Context,
	registry contracts.MCPRegistry,
	input *ServerUpdateRequest,
) (*ServerResponse, error) {
	var visibility *domain.Visibility
	if input.Body.Visibility != nil && *input.Body.Visibility != "" {
		v, err := domain.ParseVisibility(*input.Body.Visibility)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", errors.ErrBadRequest, err)
		}
		visibility = &v
	}

	rec, err := registry.UpdateVisibility(ctx, auth.CallerFromContext(ctx), input.ID, visibility)
	if err != nil {
		return nil, err
	}

	return serverResponse(rec)
}

func handleDeleteServer(ctx context.Context, registry contracts.MCPRegistry, id string) (*SuccessResponse, error) {
	if err := registry.Delete(ctx, auth.CallerFromContext(ctx), id); err != nil {
		return nil, err
	}

	resp := &SuccessResponse{}
	resp.Body.Success = true

	return resp, nil
}

// handleSaveServer validates the config before saving.
// Save failures other than bad input or access are reported as 500 with the underlying message.
func handleSaveServer(
	ctx context.Context,
	registry contracts.MCPRegistry,
	input *ServerCreateRequest,
) (*ServerSaveResponse, error) {
	callerID := auth.CallerFromContext(ctx)
	if callerID == "" {
		return nil, errors.ErrUnauthorized
	}

	if input.Body.Config == nil {
		return nil, fmt.Errorf("%w: config is required", errors.ErrBadRequest)
	}
	raw, err := json.Marshal(input.Body.Config)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errors.ErrBadRequest, err)
	}
	cfg, err := domain.DecodeServerConfig(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errors.ErrBadRequest, err)
	}

	visibility := domain.VisibilityPrivate
	if input.Body.Visibility != "" {
		if visibility, err = domain.ParseVisibility(input.Body.Visibility); err != nil {
			return nil, fmt.Errorf("%w: %w", errors.ErrBadRequest, err)
		}
	}

	rec, err := registry.Save(ctx, callerID, domain.SaveRequest{
		ID:         input.Body.ID,
		Name:       input.Body.Name,
		Config:     cfg,
		Visibility: visibility,
	})
	switch {
	case err == nil:
	case stdErrors.Is(err, errors.ErrUnauthorized),
		stdErrors.Is(err, errors.ErrAccessDenied),
		stdErrors.Is(err, errors.ErrBadRequest):
		return nil, err
	default:
		return nil, huma.Error500InternalServerError(err.Error())
	}

	data, err := DomainServerRecord(rec).ToAPIType()
	if err != nil {
		return nil, err
	}

	resp := &ServerSaveResponse{}
	resp.Body.Success = true
	resp.Body.Data = data

	return resp, nil
}

// handleServerToolCall handles making a call to a specific tool which exists on an MCP server.
func handleServerToolCall(
	ctx context.Context,
	registry contracts.MCPRegistry,
	serverID string,
	tool string,
	args map[string]any,
) (*ToolCallResponse, error) {
	result, err := registry.CallTool(ctx, auth.CallerFromContext(ctx), serverID, tool, args)
	if err != nil {
		return nil, err
	}

	return &ToolCallResponse{Body: result}, nil
}

func serverResponse(rec domain.ServerRecord) (*ServerResponse, error) {
	data, err := DomainServerRecord(rec).ToAPIType()
	if err != nil {
		return nil, err
	}

	return &ServerResponse{Body: data}, nil
}
