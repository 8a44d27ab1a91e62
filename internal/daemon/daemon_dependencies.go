package daemon

import (
	"fmt"
	"reflect"

	"github.com/hashicorp/go-hclog"

	"github.com/mozilla-ai/mcphub/internal/auth"
	"github.com/mozilla-ai/mcphub/internal/contracts"
)

// Dependencies contains required dependencies for the Daemon.
// NewDependencies should be used to create instances of Dependencies.
type Dependencies struct {
	// APIAddr specifies the network address for the APIServer to bind (e.g., "0.0.0.0:8090").
	APIAddr string

	// Logger for daemon and subcomponent (API server, client manager, registry) operations.
	Logger hclog.Logger

	// Repository persists MCP server records.
	Repository contracts.MCPRepository

	// Storage holds uploaded files.
	Storage contracts.FileStorage

	// Verifier resolves session tokens to user IDs.
	Verifier auth.TokenVerifier

	// Connector opens sessions to MCP servers.
	Connector Connector
}

// NewDependencies creates and validates Dependencies.
func NewDependencies(
	logger hclog.Logger,
	apiAddr string,
	repo contracts.MCPRepository,
	store contracts.FileStorage,
	verifier auth.TokenVerifier,
	connector Connector,
) (Dependencies, error) {
	deps := Dependencies{
		APIAddr:    apiAddr,
		Logger:     logger,
		Repository: repo,
		Storage:    store,
		Verifier:   verifier,
		Connector:  connector,
	}

	if err := deps.Validate(); err != nil {
		return Dependencies{}, err
	}

	return deps, nil
}

// Validate ensures all required dependencies are provided and valid.
func (d Dependencies) Validate() error {
	if d.Logger == nil || reflect.ValueOf(d.Logger).IsNil() {
		return fmt.Errorf("logger cannot be nil")
	}

	if err := validateAddr(d.APIAddr); err != nil {
		return fmt.Errorf("invalid API address '%s': %w", d.APIAddr, err)
	}

	if d.Repository == nil || reflect.ValueOf(d.Repository).IsNil() {
		return fmt.Errorf("repository cannot be nil")
	}

	if d.Storage == nil || reflect.ValueOf(d.Storage).IsNil() {
		return fmt.Errorf("file storage cannot be nil")
	}

	if d.Verifier == nil || reflect.ValueOf(d.Verifier).IsNil() {
		return fmt.Errorf("token verifier cannot be nil")
	}

	if d.Connector == nil || reflect.ValueOf(d.Connector).IsNil() {
		return fmt.Errorf("connector cannot be nil")
	}

	return nil
}
