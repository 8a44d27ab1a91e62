package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/hashicorp/go-hclog"

	"github.com/mozilla-ai/mcphub/internal/contracts"
	"github.com/mozilla-ai/mcphub/internal/domain"
)

const (
	HealthStatusOK HealthStatus = "ok"

	// healthPingTimeout bounds the repository ping performed per health request.
	healthPingTimeout = 2 * time.Second
)

// HealthStatus represents the overall status of the service.
type HealthStatus string

// ClientCounts summarizes live MCP clients.
type ClientCounts struct {
	Total     int `doc:"Live clients known to the service" json:"total"`
	Connected int `doc:"Live clients currently connected"  json:"connected"`
}

// HealthResponse is the response for GET /health.
type HealthResponse struct {
	Body struct {
		Status  HealthStatus `doc:"Overall service status" json:"status"`
		Clients ClientCounts `json:"clients"`
	}
}

// RegisterHealthRoutes sets up health-related API endpoint routes.
func RegisterHealthRoutes(
	routerAPI huma.API,
	logger hclog.Logger,
	repo contracts.MCPRepository,
	clients contracts.MCPClientAccessor,
	apiPathPrefix string,
) {
	healthAPI := huma.NewGroup(routerAPI, apiPathPrefix)
	tags := []string{"Health"}

	huma.Register(
		healthAPI,
		huma.Operation{
			OperationID: "getHealth",
			Method:      http.MethodGet,
			Summary:     "Report service health",
			Tags:        tags,
		},
		func(ctx context.Context, _ *struct{}) (*HealthResponse, error) {
			return handleHealth(ctx, logger, repo, clients)
		},
	)
}

// handleHealth reports 503 when the repository is unreachable.
func handleHealth(
	ctx context.Context,
	logger hclog.Logger,
	repo contracts.MCPRepository,
	clients contracts.MCPClientAccessor,
) (*HealthResponse, error) {
	pingCtx, cancel := context.WithTimeout(ctx, healthPingTimeout)
	defer cancel()

	if err := repo.Ping(pingCtx); err != nil {
		logger.Warn("Health check failed", "error", err)
		return nil, huma.Error503ServiceUnavailable("repository unreachable")
	}

	resp := &HealthResponse{}
	resp.Body.Status = HealthStatusOK
	for _, c := range clients.Clients() {
		resp.Body.Clients.Total++
		if c.Status == domain.ClientStatusConnected {
			resp.Body.Clients.Connected++
		}
	}

	return resp, nil
}
