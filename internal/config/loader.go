package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/mozilla-ai/mcphub/internal/files"
)

var _ Loader = (*DefaultLoader)(nil)

// Loader produces a validated Config from a file path.
type Loader interface {
	Load(path string) (*Config, error)
}

// DefaultLoader reads TOML or YAML files, then applies environment overrides.
// A missing file is not an error; defaults and the environment are used instead.
type DefaultLoader struct {
	// Getenv looks up environment variables, os.Getenv when nil.
	Getenv func(string) string
}

func (d *DefaultLoader) Load(path string) (*Config, error) {
	cfg := Default()

	path = resolvePath(strings.TrimSpace(path))
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// Defaults only.
		case err != nil:
			return nil, fmt.Errorf("%w: failed to read config file (%s): %w", ErrConfigLoadFailed, path, err)
		default:
			if err := decode(path, data, cfg); err != nil {
				return nil, fmt.Errorf("%w: failed to decode config from file (%s): %w", ErrConfigLoadFailed, path, err)
			}
			cfg.path = path
		}
	}

	getenv := d.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	cfg.ApplyEnv(getenv)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfigLoadFailed, err)
	}

	return cfg, nil
}

// resolvePath falls back to the user config directory for a bare file name
// that does not exist in the working directory.
func resolvePath(path string) string {
	if path == "" || filepath.Base(path) != path {
		return path
	}
	if _, err := os.Stat(path); err == nil {
		return path
	}

	dir, err := files.UserSpecificConfigDir()
	if err != nil {
		return path
	}
	if candidate := filepath.Join(dir, path); fileExists(candidate) {
		return candidate
	}

	return path
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func decode(path string, data []byte, cfg *Config) error {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		md, err := toml.NewDecoder(bytes.NewReader(data)).Decode(cfg)
		if err != nil {
			return err
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return fmt.Errorf("unknown keys: %v", undecoded)
		}
		return nil
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return err
		}
		return nil
	default:
		return fmt.Errorf("unsupported config file extension '%s' (use .toml, .yaml or .yml)", ext)
	}
}

// LoadDotEnv loads variables from the given .env files into the process environment.
// Variables already set are left alone. Missing files are skipped.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if _, err := os.Stat(p); os.IsNotExist(err) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("failed to load env file (%s): %w", p, err)
		}
	}
	return nil
}

// ValidationPredicate evaluates a loaded Config and returns an error if invalid.
type ValidationPredicate func(*Config) error

// validatingLoader wraps a Loader to run additional validation predicates at load time.
type validatingLoader struct {
	Loader
	predicates []ValidationPredicate
}

// NewValidatingLoader creates a loader that runs validation predicates after Load().
func NewValidatingLoader(inner Loader, predicates ...ValidationPredicate) Loader {
	return &validatingLoader{
		Loader:     inner,
		predicates: predicates,
	}
}

// Load delegates to inner loader, then runs validation predicates.
func (l *validatingLoader) Load(path string) (*Config, error) {
	cfg, err := l.Loader.Load(path)
	if err != nil {
		return nil, err
	}

	for _, predicate := range l.predicates {
		if err := predicate(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}
