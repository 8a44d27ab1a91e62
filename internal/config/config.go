// Package config loads the mcphub service configuration.
//
// Values come from a TOML or YAML file (chosen by extension), layered over defaults,
// with a small set of environment overrides applied last.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/mozilla-ai/mcphub/internal/auth"
	"github.com/mozilla-ai/mcphub/internal/files"
	"github.com/mozilla-ai/mcphub/internal/storage"
)

const (
	// StorageBackendLocal stores uploads on the local filesystem.
	StorageBackendLocal = "local"

	// StorageBackendS3 stores uploads in an S3 compatible bucket.
	StorageBackendS3 = "s3"
)

// Environment variables that override file values.
const (
	EnvVarDatabaseURL = "DATABASE_URL"
	EnvVarAuthSecret  = "MCPHUB_AUTH_SECRET"
	EnvVarAPIAddr     = "MCPHUB_API_ADDR"
)

// Config is the root of the mcphub configuration file.
type Config struct {
	API      APISection      `toml:"api"      yaml:"api"`
	Database DatabaseSection `toml:"database" yaml:"database"`
	Storage  StorageSection  `toml:"storage"  yaml:"storage"`
	Auth     AuthSection     `toml:"auth"     yaml:"auth"`
	Clients  ClientsSection  `toml:"clients"  yaml:"clients"`

	// path is the file this configuration was loaded from, empty when only defaults apply.
	path string
}

// APISection contains HTTP API settings.
type APISection struct {
	// Addr to bind the API server (e.g. "0.0.0.0:8090").
	Addr string `toml:"addr" yaml:"addr"`

	// ShutdownTimeout bounds graceful shutdown of the HTTP server.
	ShutdownTimeout Duration `toml:"shutdown_timeout" yaml:"shutdown_timeout"`

	// Metrics exposes prometheus metrics on /metrics when true.
	Metrics bool `toml:"metrics" yaml:"metrics"`

	CORS CORSSection `toml:"cors" yaml:"cors"`
}

// CORSSection contains Cross-Origin Resource Sharing settings.
type CORSSection struct {
	Enable           bool     `toml:"enable"            yaml:"enable"`
	AllowOrigins     []string `toml:"allow_origins"     yaml:"allow_origins"`
	AllowMethods     []string `toml:"allow_methods"     yaml:"allow_methods"`
	AllowHeaders     []string `toml:"allow_headers"     yaml:"allow_headers"`
	ExposeHeaders    []string `toml:"expose_headers"    yaml:"expose_headers"`
	AllowCredentials bool     `toml:"allow_credentials" yaml:"allow_credentials"`
	MaxAge           Duration `toml:"max_age"           yaml:"max_age"`
}

// DatabaseSection contains Postgres settings.
type DatabaseSection struct {
	URL      string `toml:"url"       yaml:"url"`
	MaxConns int32  `toml:"max_conns" yaml:"max_conns"`
}

// StorageSection selects and configures the file storage backend.
type StorageSection struct {
	// Backend is one of StorageBackendLocal or StorageBackendS3.
	Backend string `toml:"backend" yaml:"backend"`

	// Dir is the root directory of the local backend, see Config.StorageDir.
	Dir string `toml:"dir" yaml:"dir"`

	// PublicBaseURL prefixes the key in returned file URLs.
	PublicBaseURL string `toml:"public_base_url" yaml:"public_base_url"`

	// MaxFileSize is the upload ceiling in bytes.
	MaxFileSize int64 `toml:"max_file_size" yaml:"max_file_size"`

	S3 S3Section `toml:"s3" yaml:"s3"`
}

// S3Section configures the S3 storage backend.
// Credentials are resolved by the AWS SDK default chain.
type S3Section struct {
	Bucket   string `toml:"bucket"   yaml:"bucket"`
	Prefix   string `toml:"prefix"   yaml:"prefix"`
	Region   string `toml:"region"   yaml:"region"`
	Endpoint string `toml:"endpoint" yaml:"endpoint"`
}

// AuthSection configures session token verification.
type AuthSection struct {
	Secret     string `toml:"secret"      yaml:"secret"`
	Issuer     string `toml:"issuer"      yaml:"issuer"`
	CookieName string `toml:"cookie_name" yaml:"cookie_name"`
}

// ClientsSection configures live MCP client management.
type ClientsSection struct {
	InitTimeout          Duration `toml:"init_timeout"          yaml:"init_timeout"`
	HealthInterval       Duration `toml:"health_interval"       yaml:"health_interval"`
	HealthTimeout        Duration `toml:"health_timeout"        yaml:"health_timeout"`
	ShutdownTimeout      Duration `toml:"shutdown_timeout"      yaml:"shutdown_timeout"`
	ReconcileConcurrency int      `toml:"reconcile_concurrency" yaml:"reconcile_concurrency"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		API: APISection{
			Addr:            "0.0.0.0:8090",
			ShutdownTimeout: Duration(5 * time.Second),
			Metrics:         true,
			CORS: CORSSection{
				MaxAge: Duration(5 * time.Minute),
			},
		},
		Database: DatabaseSection{
			MaxConns: 10,
		},
		Storage: StorageSection{
			Backend:       StorageBackendLocal,
			PublicBaseURL: storage.DefaultPublicBaseURL,
			MaxFileSize:   storage.DefaultMaxFileSize,
		},
		Auth: AuthSection{
			Issuer:     "mcphub",
			CookieName: auth.DefaultCookieName,
		},
		Clients: ClientsSection{
			InitTimeout:          Duration(30 * time.Second),
			HealthInterval:       Duration(10 * time.Second),
			HealthTimeout:        Duration(3 * time.Second),
			ShutdownTimeout:      Duration(5 * time.Second),
			ReconcileConcurrency: 8,
		},
	}
}

// Path returns the file this configuration was loaded from.
func (c *Config) Path() string {
	return c.path
}

// StorageDir returns the root directory of the local storage backend.
// When storage.dir is unset files go under the user data directory.
func (c *Config) StorageDir() (string, error) {
	if dir := strings.TrimSpace(c.Storage.Dir); dir != "" {
		return dir, nil
	}

	dataDir, err := files.UserSpecificDataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dataDir, "files"), nil
}

// ApplyEnv overrides file values with environment variables, looked up with getenv.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := strings.TrimSpace(getenv(EnvVarDatabaseURL)); v != "" {
		c.Database.URL = v
	}
	if v := strings.TrimSpace(getenv(EnvVarAuthSecret)); v != "" {
		c.Auth.Secret = v
	}
	if v := strings.TrimSpace(getenv(EnvVarAPIAddr)); v != "" {
		c.API.Addr = v
	}
}

// Validate checks values that do not depend on the runtime mode.
func (c *Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.API.Addr) == "" {
		errs = append(errs, NewErrInvalidValue("api.addr", c.API.Addr))
	}

	switch c.Storage.Backend {
	case StorageBackendLocal:
	case StorageBackendS3:
		if strings.TrimSpace(c.Storage.S3.Bucket) == "" {
			errs = append(errs, NewErrInvalidValue("storage.s3.bucket", c.Storage.S3.Bucket))
		}
		if c.Storage.S3.Endpoint != "" {
			if _, err := url.ParseRequestURI(c.Storage.S3.Endpoint); err != nil {
				errs = append(errs, NewErrInvalidValue("storage.s3.endpoint", c.Storage.S3.Endpoint))
			}
		}
	default:
		errs = append(errs, NewErrInvalidValue("storage.backend", c.Storage.Backend))
	}

	if c.Storage.MaxFileSize <= 0 {
		errs = append(errs, NewErrInvalidValue("storage.max_file_size", fmt.Sprint(c.Storage.MaxFileSize)))
	}

	if c.Database.MaxConns <= 0 {
		errs = append(errs, NewErrInvalidValue("database.max_conns", fmt.Sprint(c.Database.MaxConns)))
	}

	if c.Clients.ReconcileConcurrency <= 0 {
		errs = append(errs, NewErrInvalidValue(
			"clients.reconcile_concurrency",
			fmt.Sprint(c.Clients.ReconcileConcurrency),
		))
	}

	for key, d := range map[string]Duration{
		"api.shutdown_timeout":     c.API.ShutdownTimeout,
		"clients.init_timeout":     c.Clients.InitTimeout,
		"clients.health_interval":  c.Clients.HealthInterval,
		"clients.health_timeout":   c.Clients.HealthTimeout,
		"clients.shutdown_timeout": c.Clients.ShutdownTimeout,
	} {
		if d <= 0 {
			errs = append(errs, NewErrInvalidValue(key, d.String()))
		}
	}

	return errors.Join(errs...)
}

// RequireDatabase rejects a configuration without a database URL.
func RequireDatabase(c *Config) error {
	if strings.TrimSpace(c.Database.URL) == "" {
		return fmt.Errorf("%w: database.url is required (or set %s)", ErrInvalidValue, EnvVarDatabaseURL)
	}
	return nil
}

// RequireAuthSecret rejects a configuration without a session signing secret.
func RequireAuthSecret(c *Config) error {
	if strings.TrimSpace(c.Auth.Secret) == "" {
		return fmt.Errorf("%w: auth.secret is required (or set %s)", ErrInvalidValue, EnvVarAuthSecret)
	}
	return nil
}
