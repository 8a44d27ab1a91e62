package daemon

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/mozilla-ai/mcphub/internal/registry"
)

// Daemon runs the mcphub service: the HTTP API plus the lifecycle of live MCP clients.
// NewDaemon should be used to create instances of Daemon.
type Daemon struct {
	logger        hclog.Logger
	apiServer     *APIServer
	clientManager *ClientManager
	registry      *registry.Service

	clientHealthCheckInterval time.Duration
	clientHealthCheckTimeout  time.Duration
	clientShutdownTimeout     time.Duration
}

// NewDaemon wires the client manager, registry service and API server from deps.
func NewDaemon(deps Dependencies, opt ...Option) (*Daemon, error) {
	if err := deps.Validate(); err != nil {
		return nil, fmt.Errorf("invalid dependencies: %w", err)
	}

	opts, err := NewOptions(opt...)
	if err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}

	clientManager, err := NewClientManager(deps.Logger, deps.Connector, opts.ClientInitTimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to create client manager: %w", err)
	}

	svc, err := registry.NewService(deps.Logger, deps.Repository, clientManager, opts.ReconcileConcurrency)
	if err != nil {
		return nil, fmt.Errorf("failed to create registry service: %w", err)
	}

	apiDeps, err := NewAPIDependencies(
		deps.Logger,
		deps.APIAddr,
		svc,
		deps.Repository,
		clientManager,
		deps.Storage,
		deps.Verifier,
	)
	if err != nil {
		return nil, fmt.Errorf("invalid API dependencies: %w", err)
	}

	apiServer, err := NewAPIServer(apiDeps, opts.APIOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to create daemon API server: %w", err)
	}

	return &Daemon{
		logger:                    deps.Logger.Named("daemon"),
		apiServer:                 apiServer,
		clientManager:             clientManager,
		registry:                  svc,
		clientHealthCheckInterval: opts.ClientHealthCheckInterval,
		clientHealthCheckTimeout:  opts.ClientHealthCheckTimeout,
		clientShutdownTimeout:     opts.ClientShutdownTimeout,
	}, nil
}

// StartAndManage connects persisted servers, starts health checks and serves the API.
// It blocks until ctx is canceled or the API server fails, then closes every live client.
func (d *Daemon) StartAndManage(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Live clients are rebuilt from the persisted set; list requests keep reconciling afterward.
	if _, err := d.registry.Sync(runCtx); err != nil {
		d.logger.Error("Initial reconciliation failed", "error", err)
	}

	go d.healthCheckLoop(runCtx, d.clientHealthCheckInterval, d.clientHealthCheckTimeout)

	err := d.apiServer.Start(runCtx)
	cancel()
	d.shutdown()

	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("API server failed: %w", err)
	}

	return nil
}

func (d *Daemon) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), d.clientShutdownTimeout)
	defer cancel()

	d.logger.Info("Shutting down all MCP clients", "count", d.clientManager.Len())
	if err := d.clientManager.CloseAll(ctx); err != nil {
		d.logger.Warn("Some MCP clients did not close cleanly", "error", err)
	}
}

func (d *Daemon) healthCheckLoop(ctx context.Context, interval time.Duration, timeout time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("Stopping MCP server health checks")
			return
		case <-ticker.C:
			d.clientManager.PingAll(ctx, timeout)
		}
	}
}
