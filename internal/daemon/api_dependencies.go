package daemon

import (
	"fmt"
	"reflect"

	"github.com/hashicorp/go-hclog"

	"github.com/mozilla-ai/mcphub/internal/auth"
	"github.com/mozilla-ai/mcphub/internal/contracts"
)

// APIDependencies contains the required external dependencies for the API server.
// NewAPIDependencies should be used to create instances of APIDependencies.
type APIDependencies struct {
	// Addr specifies the network address to bind (e.g., "0.0.0.0:8090").
	Addr string

	// Registry serves the caller-scoped server registry operations.
	Registry contracts.MCPRegistry

	// Repository is pinged by the health endpoint.
	Repository contracts.MCPRepository

	// Clients reports live client state to the health endpoint.
	Clients contracts.MCPClientAccessor

	// Storage holds uploaded files.
	Storage contracts.FileStorage

	// Verifier resolves session tokens to user IDs.
	Verifier auth.TokenVerifier

	// Logger for API server operations.
	Logger hclog.Logger
}

// NewAPIDependencies creates and validates APIDependencies.
func NewAPIDependencies(
	logger hclog.Logger,
	addr string,
	registry contracts.MCPRegistry,
	repo contracts.MCPRepository,
	clients contracts.MCPClientAccessor,
	store contracts.FileStorage,
	verifier auth.TokenVerifier,
) (APIDependencies, error) {
	deps := APIDependencies{
		Addr:       addr,
		Registry:   registry,
		Repository: repo,
		Clients:    clients,
		Storage:    store,
		Verifier:   verifier,
		Logger:     logger,
	}

	if err := deps.Validate(); err != nil {
		return APIDependencies{}, err
	}

	return deps, nil
}

// Validate ensures all required dependencies are provided and valid.
func (d APIDependencies) Validate() error {
	if err := validateAddr(d.Addr); err != nil {
		return fmt.Errorf("invalid API address '%s': %w", d.Addr, err)
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
	if d.Verifier == nil || reflect.ValueOf(d.Verifier).IsNil() {
		return fmt.Errorf("token verifier cannot be nil")
	}
	if d.Logger == nil || reflect.ValueOf(d.Logger).IsNil() {
		return fmt.Errorf("logger cannot be nil")
	}
	return nil
}
