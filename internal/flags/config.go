// Package flags declares the global command line flags shared by every mcphub command.
// Each flag falls back to an environment variable, then to a default.
package flags

import (
	"os"
	"strings"

	"github.com/spf13/pflag"
)

const (
	// Env vars
	EnvVarConfigFile = "MCPHUB_CONFIG_FILE"
	EnvVarLogPath    = "MCPHUB_LOG_PATH"
	EnvVarLogLevel   = "MCPHUB_LOG_LEVEL"

	// Defaults
	DefaultConfigFile = "mcphub.toml"
	DefaultLogPath    = ""
	DefaultLogLevel   = "info"

	// Flag names
	FlagNameConfigFile = "config-file"
	FlagNameLogPath    = "log-path"
	FlagNameLogLevel   = "log-level"
)

var (
	ConfigFile string
	LogPath    string
	LogLevel   string
)

// InitFlags registers the global flags on fs, seeding defaults from the environment.
func InitFlags(fs *pflag.FlagSet) {
	initConfigFile(fs)
	initLogger(fs)
}

func initConfigFile(fs *pflag.FlagSet) {
	if ConfigFile == "" {
		ConfigFile = fromEnv(EnvVarConfigFile, DefaultConfigFile)
	}
	fs.StringVar(&ConfigFile, FlagNameConfigFile, ConfigFile, "path to config file (.toml, .yaml or .yml)")
}

func initLogger(fs *pflag.FlagSet) {
	if LogPath == "" {
		LogPath = fromEnv(EnvVarLogPath, DefaultLogPath)
	}
	fs.StringVar(&LogPath, FlagNameLogPath, LogPath, "path to generated log file")

	if LogLevel == "" {
		LogLevel = strings.ToLower(fromEnv(EnvVarLogLevel, DefaultLogLevel))
	}
	fs.StringVar(&LogLevel, FlagNameLogLevel, LogLevel, "log level for mcphub logs (trace, debug, info, warn, error, off)")
}

func fromEnv(key string, fallback string) string {
	if env := strings.TrimSpace(os.Getenv(key)); env != "" {
		return env
	}
	return fallback
}
