package domain

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

const (
	// ConfigKindStdio identifies a server launched as a local process speaking MCP over stdio.
	ConfigKindStdio ConfigKind = "stdio"

	// ConfigKindRemote identifies a server reached over HTTP (streamable HTTP or SSE).
	ConfigKindRemote ConfigKind = "remote"
)

// serverConfigSchema accepts exactly one of the two config shapes.
// An object carrying both 'command' and 'url' matches both branches and is rejected.
const serverConfigSchema = `{
  "oneOf": [
    {
      "type": "object",
      "required": ["command"],
      "properties": {
        "command": {"type": "string", "minLength": 1},
        "args": {"type": "array", "items": {"type": "string"}},
        "env": {"type": "object", "additionalProperties": {"type": "string"}}
      }
    },
    {
      "type": "object",
      "required": ["url"],
      "properties": {
        "url": {"type": "string", "format": "uri"},
        "headers": {"type": "object", "additionalProperties": {"type": "string"}}
      }
    }
  ]
}`

// configSchema is compiled once, the schema is a constant so failure here is a programming error.
var configSchema = func() *gojsonschema.Schema {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(serverConfigSchema))
	if err != nil {
		panic(fmt.Sprintf("invalid server config schema: %v", err))
	}
	return s
}()

// ConfigKind names the variant of a ServerConfig.
type ConfigKind string

// ServerConfig is the closed set of ways to reach an MCP server.
// The only implementations are StdioConfig and RemoteConfig.
type ServerConfig interface {
	// Kind returns the variant of this config.
	Kind() ConfigKind

	isServerConfig()
}

// StdioConfig launches an MCP server as a child process.
type StdioConfig struct {
	Command string            `json:"command"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
}

// RemoteConfig connects to an MCP server over HTTP.
type RemoteConfig struct {
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers,omitempty"`
}

func (StdioConfig) Kind() ConfigKind { return ConfigKindStdio }

func (StdioConfig) isServerConfig() {}

func (RemoteConfig) Kind() ConfigKind { return ConfigKindRemote }

func (RemoteConfig) isServerConfig() {}

// ValidateServerConfig checks raw JSON against the accepted config shapes.
// The returned error describes every schema violation.
func ValidateServerConfig(data []byte) error {
	result, err := configSchema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if result.Valid() {
		return nil
	}

	msgs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		msgs = append(msgs, e.String())
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

// DecodeServerConfig validates raw JSON and decodes it into the matching variant.
// The variant is chosen by field presence: 'command' selects StdioConfig, 'url' selects RemoteConfig.
func DecodeServerConfig(data []byte) (ServerConfig, error) {
	if err := ValidateServerConfig(data); err != nil {
		return nil, err
	}

	var probe struct {
		Command *string `json:"command"`
		URL     *string `json:"url"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	switch {
	case probe.Command != nil:
		var cfg StdioConfig
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("invalid stdio config: %w", err)
		}
		return cfg, nil
	case probe.URL != nil:
		var cfg RemoteConfig
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("invalid remote config: %w", err)
		}
		u, err := url.Parse(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("invalid remote config url: %w", err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return nil, fmt.Errorf("invalid remote config url '%s': scheme must be http or https", cfg.URL)
		}
		return cfg, nil
	default:
		return nil, fmt.Errorf("invalid config: one of 'command' or 'url' is required")
	}
}

// EncodeServerConfig serializes a config for storage.
func EncodeServerConfig(cfg ServerConfig) ([]byte, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	return json.Marshal(cfg)
}
