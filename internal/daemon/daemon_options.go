package daemon

import (
	"fmt"
	"time"
)

// Options contains optional configuration for the daemon.
// NewOptions should be used to create instances of Options.
type Options struct {
	// APIOptions contains functional options for the API server.
	APIOptions []APIOption

	// ClientInitTimeout specifies how long to wait for MCP server initialization.
	ClientInitTimeout time.Duration

	// ClientHealthCheckInterval specifies how often to ping MCP servers for health checks.
	ClientHealthCheckInterval time.Duration

	// ClientHealthCheckTimeout specifies maximum time to wait for health check responses.
	ClientHealthCheckTimeout time.Duration

	// ClientShutdownTimeout specifies how long to wait for MCP clients to close.
	ClientShutdownTimeout time.Duration

	// ReconcileConcurrency caps how many connects or disconnects a reconciliation runs at once.
	ReconcileConcurrency int
}

// Option defines a functional option for configuring Options.
// Options are applied in order, with later options overriding earlier ones.
type Option func(*Options) error

// NewOptions creates Options with optional configurations applied.
// Starts with default values, then applies options in order with later options overriding earlier ones.
func NewOptions(opts ...Option) (Options, error) {
	options := defaultOptions()

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&options); err != nil {
			return Options{}, err
		}
	}

	return options, nil
}

// WithAPIOptions configures API server options.
// Replaces all previous API configuration including CORS settings.
func WithAPIOptions(apiOpts ...APIOption) Option {
	return func(o *Options) error {
		o.APIOptions = apiOpts
		return nil
	}
}

// WithClientInitTimeout bounds connecting to and initializing an MCP server.
func WithClientInitTimeout(timeout time.Duration) Option {
	return func(o *Options) error {
		if timeout <= 0 {
			return fmt.Errorf("init timeout must be positive, got %v", timeout)
		}
		o.ClientInitTimeout = timeout
		return nil
	}
}

// WithHealthCheckInterval configures how often live clients are pinged.
func WithHealthCheckInterval(interval time.Duration) Option {
	return func(o *Options) error {
		if interval <= 0 {
			return fmt.Errorf("health check interval must be positive, got %v", interval)
		}
		o.ClientHealthCheckInterval = interval
		return nil
	}
}

// WithHealthCheckTimeout bounds a single ping.
func WithHealthCheckTimeout(timeout time.Duration) Option {
	return func(o *Options) error {
		if timeout <= 0 {
			return fmt.Errorf("health check timeout must be positive, got %v", timeout)
		}
		o.ClientHealthCheckTimeout = timeout
		return nil
	}
}

// WithClientShutdownTimeout bounds closing every live client on shutdown.
func WithClientShutdownTimeout(timeout time.Duration) Option {
	return func(o *Options) error {
		if timeout <= 0 {
			return fmt.Errorf("client shutdown timeout must be positive, got %v", timeout)
		}
		o.ClientShutdownTimeout = timeout
		return nil
	}
}

// DefaultClientInitTimeout is the default time to wait for MCP server initialization.
func DefaultClientInitTimeout() time.Duration {
	return 30 * time.Second
}

// DefaultHealthCheckInterval is the default interval for health checks.
func DefaultHealthCheckInterval() time.Duration {
	return 10 * time.Second
}

// DefaultHealthCheckTimeout is the default timeout for health check responses.
func DefaultHealthCheckTimeout() time.Duration {
	return 3 * time.Second
}

// WithReconcileConcurrency limits the number of concurrent corrective actions per reconciliation.
func WithReconcileConcurrency(limit int) Option {
	return func(o *Options) error {
		if limit <= 0 {
			return fmt.Errorf("reconcile concurrency must be positive, got %d", limit)
		}
		o.ReconcileConcurrency = limit
		return nil
	}
}

// DefaultReconcileConcurrency is the default number of concurrent corrective actions.
func DefaultReconcileConcurrency() int {
	return 8
}

// DefaultClientShutdownTimeout is the default time to wait for MCP clients to close.
func DefaultClientShutdownTimeout() time.Duration {
	return 5 * time.Second
}

// defaultOptions returns Options with default values.
func defaultOptions() Options {
	return Options{
		ClientInitTimeout:         DefaultClientInitTimeout(),
		ClientHealthCheckInterval: DefaultHealthCheckInterval(),
		ClientHealthCheckTimeout:  DefaultHealthCheckTimeout(),
		ClientShutdownTimeout:     DefaultClientShutdownTimeout(),
		ReconcileConcurrency:      DefaultReconcileConcurrency(),
	}
}
