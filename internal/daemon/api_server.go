package daemon

import (
	"context"
	stdErrors "errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/hashicorp/go-hclog"

	"github.com/mozilla-ai/mcphub/internal/api"
	"github.com/mozilla-ai/mcphub/internal/auth"
	"github.com/mozilla-ai/mcphub/internal/cmd"
	"github.com/mozilla-ai/mcphub/internal/contracts"
	"github.com/mozilla-ai/mcphub/internal/errors"
	"github.com/mozilla-ai/mcphub/internal/metrics"
)

// installErrorHandler guards the package-level huma error constructor.
var installErrorHandler sync.Once

// APIServer manages the HTTP API for the daemon.
// NewAPIServer should be used to create instances of APIServer.
type APIServer struct {
	// Logger for API server operations.
	logger hclog.Logger

	registry   contracts.MCPRegistry
	repository contracts.MCPRepository
	clients    contracts.MCPClientAccessor
	storage    contracts.FileStorage
	verifier   auth.TokenVerifier

	// Addr specifies the network address to bind.
	addr string

	// CORS configuration for cross-origin requests.
	cors CORSConfig

	// ShutdownTimeout specifies how long to wait for graceful shutdown.
	shutdownTimeout time.Duration

	maxFileSize    int64
	authCookieName string
	metricsEnabled bool
}

// NewAPIServer creates a new API server with the provided dependencies and options.
// Applies default options first, then user-provided options to ensure all fields have valid values.
func NewAPIServer(deps APIDependencies, opt ...APIOption) (*APIServer, error) {
	if err := deps.Validate(); err != nil {
		return nil, fmt.Errorf("invalid dependencies for API server: %w", err)
	}

	// Ensure we always start with defaults and apply user options on top.
	apiOpts, err := NewAPIOptions(opt...)
	if err != nil {
		return nil, fmt.Errorf("invalid API options: %w", err)
	}

	return &APIServer{
		logger:          deps.Logger.Named("api"),
		registry:        deps.Registry,
		repository:      deps.Repository,
		clients:         deps.Clients,
		storage:         deps.Storage,
		verifier:        deps.Verifier,
		addr:            deps.Addr,
		cors:            apiOpts.CORS,
		shutdownTimeout: apiOpts.ShutdownTimeout,
		maxFileSize:     apiOpts.MaxFileSize,
		authCookieName:  apiOpts.AuthCookieName,
		metricsEnabled:  apiOpts.MetricsEnabled,
	}, nil
}

// Handler builds the HTTP handler serving the API.
func (a *APIServer) Handler() (http.Handler, string, error) {
	mux := chi.NewMux()
	mux.Use(middleware.StripSlashes)
	mux.Use(middleware.Recoverer)

	// Add CORS middleware if enabled.
	if a.cors.Enabled {
		a.applyCORS(mux)
	}

	mux.Use(metrics.Middleware)
	mux.Use(auth.Middleware(a.logger.Named("auth"), a.verifier, a.authCookieName))

	if a.metricsEnabled {
		mux.Handle("/metrics", metrics.Handler())
	}

	// Configure the error handling wrapping.
	installErrorHandler.Do(func() {
		huma.NewErrorWithContext = errorHandler(a.logger)
	})

	config := huma.DefaultConfig("mcphub docs", api.APIVersion)
	config.Info.Description = "MCP server registry " + cmd.Version()
	router := humachi.New(mux, config)

	apiPathPrefix, err := api.RegisterRoutes(router, api.Dependencies{
		Logger:      a.logger,
		Registry:    a.registry,
		Repository:  a.repository,
		Clients:     a.clients,
		Storage:     a.storage,
		MaxFileSize: a.maxFileSize,
	})
	if err != nil {
		return nil, "", err
	}

	return mux, apiPathPrefix, nil
}

// Start starts the API server and blocks until the context is canceled or an error occurs.
func (a *APIServer) Start(ctx context.Context) error {
	handler, apiPathPrefix, err := a.Handler()
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              a.addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)

	// Start the API.
	go func() {
		a.logger.Info("Starting API server", "address", a.addr, "prefix", apiPathPrefix)
		if err := srv.ListenAndServe(); err != nil && !stdErrors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Handle graceful shutdown.
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()
		a.logger.Info("Shutting down API server...")
		_ = srv.Shutdown(shutdownCtx)
		a.logger.Info("Shutdown complete")
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// applyCORS applies CORS middleware to the router based on the configured options.
func (a *APIServer) applyCORS(mux *chi.Mux) {
	a.logger.Info("Enabling CORS", "origins", a.cors.AllowOrigins)

	corsOptions := cors.Options{
		AllowedOrigins:   a.cors.AllowOrigins,
		AllowedMethods:   a.cors.AllowMethods,
		AllowedHeaders:   a.cors.AllowedHeaders,
		ExposedHeaders:   a.cors.ExposedHeaders,
		AllowCredentials: a.cors.AllowCredentials,
		MaxAge:           int(a.cors.MaxAge.Seconds()),
	}

	// Handle wildcard origins properly.
	for i, origin := range corsOptions.AllowedOrigins {
		if origin == "*" {
			corsOptions.AllowedOrigins = []string{"*"}
			corsOptions.AllowCredentials = false
			break
		}
		corsOptions.AllowedOrigins[i] = strings.TrimSpace(origin)
	}

	mux.Use(cors.Handler(corsOptions))
}

// mapError maps application domain errors to appropriate HTTP status codes.
//
// This function is the central place where domain errors from internal/errors are converted to HTTP responses.
// When adding new errors to internal/errors/errors.go, you MUST add them here to prevent them from falling
// through to the default case which returns HTTP 500.
//
// Mapping guidelines:
//   - 400: Client errors (bad input, invalid requests, rejected files)
//   - 401: Missing session, and access denied (clients treat both as 401)
//   - 404: Resource not found errors
//   - 413: Upload too large
//   - 502: MCP server failures
//   - 500: Unexpected internal errors (default case)
//
// Don't forget to:
// 1. Add test cases to TestMapError (internal/daemon/api_server_test.go)
// 2. Update the documentation in internal/errors/errors.go
func mapError(logger hclog.Logger, err error) huma.StatusError {
	switch {
	case stdErrors.Is(err, errors.ErrUnauthorized):
		return huma.Error401Unauthorized("Unauthorized")
	case stdErrors.Is(err, errors.ErrAccessDenied):
		return huma.Error401Unauthorized("Unauthorized")
	case stdErrors.Is(err, errors.ErrBadRequest):
		return huma.Error400BadRequest(err.Error())
	case stdErrors.Is(err, errors.ErrStorage):
		return huma.Error400BadRequest(err.Error())
	case stdErrors.Is(err, errors.ErrServerNotFound):
		return huma.Error404NotFound(err.Error())
	case stdErrors.Is(err, errors.ErrFileNotFound):
		return huma.Error404NotFound("File not found")
	case stdErrors.Is(err, errors.ErrFileTooLarge):
		return huma.NewError(http.StatusRequestEntityTooLarge, err.Error())
	case stdErrors.Is(err, errors.ErrClientNotConnected):
		return huma.Error502BadGateway(err.Error())
	case stdErrors.Is(err, errors.ErrToolCallFailed):
		logger.Error("Tool call failed", "error", err)
		return huma.Error502BadGateway("MCP server error calling tool", err)
	case stdErrors.Is(err, errors.ErrServerNameTaken):
		return huma.Error500InternalServerError(err.Error())
	case stdErrors.Is(err, errors.ErrPersistence):
		logger.Error("Persistence failure", "error", err)
		return huma.Error500InternalServerError("Internal server error")
	default:
		logger.Error("Unexpected error handling request", "error", err)
		return huma.Error500InternalServerError("Internal server error")
	}
}

// errorHandler wraps error handling for the application when converting to API friendly errors.
// Request validation failures are reported as 400 rather than huma's 422.
// Errors returned by handlers arrive as 500s and are resolved by mapError.
func errorHandler(logger hclog.Logger) func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
	return func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity {
			status = http.StatusBadRequest
		}

		switch {
		case len(errs) == 0:
			// No errors provided; return a generic error.
			return huma.NewError(status, msg)
		case status != http.StatusInternalServerError:
			// Huma-originated errors (validation, body parsing) keep their details.
			return huma.NewError(status, msg, errs...)
		case len(errs) == 1:
			// Single error; map it directly.
			return mapError(logger, errs[0])
		default:
			// Multiple errors; join them and map.
			return mapError(logger, stdErrors.Join(errs...))
		}
	}
}
