//go:build docsgen_api
// +build docsgen_api

package main

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/mozilla-ai/mcphub/internal/auth"
	"github.com/mozilla-ai/mcphub/internal/daemon"
	"github.com/mozilla-ai/mcphub/internal/perms"
	"github.com/mozilla-ai/mcphub/internal/registry"
	"github.com/mozilla-ai/mcphub/internal/repository"
	"github.com/mozilla-ai/mcphub/internal/storage"
)

// main generates the OpenAPI specification for the mcphub API.
// It assumes it is run from the repository root.
func main() {
	logger := hclog.New(&hclog.LoggerOptions{
		Name:   "mcphub.docsgen.api",
		Level:  hclog.Info,
		Output: os.Stderr,
	})

	// Output path for the OpenAPI spec, relative to the repository root.
	outputPath := "./docs/api/openapi.yaml"

	spec, err := openAPISpec(logger)
	if err != nil {
		logger.Error("failed to generate OpenAPI YAML", "error", err)
		os.Exit(1)
	}

	docsDir := filepath.Dir(outputPath)
	if err := os.MkdirAll(docsDir, perms.RegularDir); err != nil {
		logger.Error("failed to create docs directory", "path", docsDir, "error", err)
		os.Exit(1)
	}

	if err := os.WriteFile(outputPath, spec, perms.RegularFile); err != nil {
		logger.Error("failed to write OpenAPI spec", "path", outputPath, "error", err)
		os.Exit(1)
	}

	logger.Info("OpenAPI spec generated", "path", outputPath, "size", fmt.Sprintf("%d bytes", len(spec)))
}

// openAPISpec builds the API server on in-memory collaborators and fetches the spec it serves.
// Route definitions are all that matter here; nothing is connected or stored.
func openAPISpec(logger hclog.Logger) ([]byte, error) {
	filesDir, err := os.MkdirTemp("", "mcphub-docsgen")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(filesDir)

	repo := repository.NewMemory()
	store, err := storage.NewLocal(filesDir, storage.DefaultPublicBaseURL)
	if err != nil {
		return nil, err
	}
	verifier, err := auth.NewJWT([]byte("docsgen"), "")
	if err != nil {
		return nil, err
	}
	connector, err := daemon.NewMCPConnector(logger, "mcphub-docsgen", "dev")
	if err != nil {
		return nil, err
	}
	clients, err := daemon.NewClientManager(logger, connector, time.Second)
	if err != nil {
		return nil, err
	}
	reg, err := registry.NewService(logger, repo, clients, 1)
	if err != nil {
		return nil, err
	}

	deps, err := daemon.NewAPIDependencies(logger, "localhost:0", reg, repo, clients, store, verifier)
	if err != nil {
		return nil, err
	}
	server, err := daemon.NewAPIServer(deps)
	if err != nil {
		return nil, err
	}
	handler, prefix, err := server.Handler()
	if err != nil {
		return nil, err
	}
	logger.Info("Routes registered", "prefix", prefix)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/openapi.yaml", nil))
	if rec.Code != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d fetching OpenAPI spec", rec.Code)
	}

	return rec.Body.Bytes(), nil
}
