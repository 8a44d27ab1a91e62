package api

import (
	"fmt"
	"net/url"
	"reflect"

	"github.com/danielgtaylor/huma/v2"
	"github.com/hashicorp/go-hclog"

	"github.com/mozilla-ai/mcphub/internal/contracts"
)

// APIVersion is the version used in the OpenAPI spec and URL paths.
const APIVersion = "v1"

// Dependencies are the collaborators the API routes are served by.
type Dependencies struct {
	Logger      hclog.Logger
	Registry    contracts.MCPRegistry
	Repository  contracts.MCPRepository
	Clients     contracts.MCPClientAccessor
	Storage     contracts.FileStorage
	MaxFileSize int64
}

// Validate ensures all required dependencies are provided and valid.
func (d Dependencies) Validate() error {
	if d.Logger == nil || reflect.ValueOf(d.Logger).IsNil() {
		return fmt.Errorf("logger cannot be nil")
	}
	if d.Registry == nil || reflect.ValueOf(d.Registry).IsNil() {
		return fmt.Errorf("registry cannot be nil")
	}
	if d.Repository == nil || reflect.ValueOf(d.Repository).IsNil() {
		return fmt.Errorf("repository cannot be nil")
	}
	if d.Clients == nil || reflect.ValueOf(d.Clients).IsNil() {
		return fmt.Errorf("client accessor cannot be nil")
	}
	if d.Storage == nil || reflect.ValueOf(d.Storage).IsNil() {
		return fmt.Errorf("file storage cannot be nil")
	}
	if d.MaxFileSize <= 0 {
		return fmt.Errorf("max file size must be positive, got %d", d.MaxFileSize)
	}
	return nil
}

// RegisterRoutes registers all API routes on the provided Huma router.
// This is the single source of truth for the API route structure.
// Returns the API path prefix (e.g., "/api/v1") under which the routes are created.
func RegisterRoutes(router huma.API, deps Dependencies) (string, error) {
	if router == nil || reflect.ValueOf(router).IsNil() {
		return "", fmt.Errorf("router cannot be nil")
	}
	if err := deps.Validate(); err != nil {
		return "", err
	}

	// Extract API version from the router's OpenAPI spec.
	apiVersionID := router.OpenAPI().Info.Version

	// Safe way to ensure /api/{version}.
	apiPathPrefix, err := url.JoinPath("/api", apiVersionID)
	if err != nil {
		return "", fmt.Errorf("failed to construct API path prefix: %w", err)
	}

	logger := deps.Logger.Named("handlers")

	// Group all routes under the /api/{version} prefix.
	versionedGroup := huma.NewGroup(router, apiPathPrefix)
	RegisterHealthRoutes(versionedGroup, logger, deps.Repository, deps.Clients, "/health")
	RegisterServerRoutes(versionedGroup, deps.Registry, "/mcp")
	RegisterToolRoutes(versionedGroup, deps.Registry, "/tools")
	RegisterFileRoutes(versionedGroup, logger, deps.Storage, deps.MaxFileSize, "/files")

	return apiPathPrefix, nil
}
