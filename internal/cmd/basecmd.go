// Package cmd holds helpers shared by the mcphub cobra commands.
package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/hashicorp/go-hclog"

	"github.com/mozilla-ai/mcphub/internal/flags"
	"github.com/mozilla-ai/mcphub/internal/perms"
)

var version = "dev" // Set at build time using -ldflags

// Version reports the build version of mcphub.
func Version() string {
	return version
}

type BaseCmd struct {
	logger hclog.Logger
}

// SetLogger updates the command's logger
func (c *BaseCmd) SetLogger(logger hclog.Logger) {
	c.logger = logger
}

// Logger returns the current logger for the command
func (c *BaseCmd) Logger() hclog.Logger {
	if c.logger != nil {
		return c.logger
	}

	logger, err := NewLogger(flags.LogPath, flags.LogLevel, os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v, logging disabled\n", err)
		logger = hclog.NewNullLogger()
	}
	c.logger = logger

	return c.logger
}

// NewLogger builds the root logger.
// Output goes to logPath when set, otherwise to fallback (io.Discard when nil).
// Level falls back to flags.DefaultLogLevel when empty or unknown.
func NewLogger(logPath string, level string, fallback io.Writer) (hclog.Logger, error) {
	var output io.Writer = io.Discard
	if fallback != nil {
		output = fallback
	}

	if logPath = strings.TrimSpace(logPath); logPath != "" {
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, perms.RegularFile)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file (%s): %w", logPath, err)
		}
		output = f
	}

	return hclog.New(&hclog.LoggerOptions{
		Name:   "mcphub",
		Level:  LogLevel(level),
		Output: output,
	}), nil
}

// LogLevel parses a log level name, defaulting to flags.DefaultLogLevel.
func LogLevel(level string) hclog.Level {
	switch lvl := strings.ToLower(strings.TrimSpace(level)); lvl {
	case "trace", "debug", "info", "warn", "error", "off":
		return hclog.LevelFromString(lvl)
	default:
		return hclog.LevelFromString(flags.DefaultLogLevel)
	}
}
