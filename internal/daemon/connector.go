package daemon

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"reflect"
	"slices"
	"strings"

	"github.com/hashicorp/go-hclog"
	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/mozilla-ai/mcphub/internal/domain"
)

// Session is an initialized connection to a single MCP server.
type Session interface {
	ListTools(ctx context.Context) ([]domain.ToolInfo, error)
	CallTool(ctx context.Context, name string, args map[string]any) (*mcp.CallToolResult, error)
	Ping(ctx context.Context) error
	Close() error
}

// Connector opens sessions to MCP servers.
type Connector interface {
	Connect(ctx context.Context, rec domain.ServerRecord) (Session, error)
}

// MCPConnector opens sessions using mcp-go clients.
// Stdio configs launch a subprocess; remote configs try streamable HTTP first and fall back to SSE.
type MCPConnector struct {
	logger     hclog.Logger
	clientInfo mcp.Implementation
}

// NewMCPConnector creates a connector that identifies itself to servers as name/version.
func NewMCPConnector(logger hclog.Logger, name string, version string) (*MCPConnector, error) {
	if logger == nil || reflect.ValueOf(logger).IsNil() {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	return &MCPConnector{
		logger:     logger.Named("connector"),
		clientInfo: mcp.Implementation{Name: name, Version: version},
	}, nil
}

// Connect starts a client for the record's config and performs the MCP initialize handshake.
// The context bounds the handshake only; the session outlives it.
func (c *MCPConnector) Connect(ctx context.Context, rec domain.ServerRecord) (Session, error) {
	switch cfg := rec.Config.(type) {
	case domain.StdioConfig:
		return c.connectStdio(ctx, rec, cfg)
	case domain.RemoteConfig:
		return c.connectRemote(ctx, rec, cfg)
	default:
		return nil, fmt.Errorf("unsupported config type %T for server '%s'", rec.Config, rec.Name)
	}
}

func (c *MCPConnector) connectStdio(ctx context.Context, rec domain.ServerRecord, cfg domain.StdioConfig) (Session, error) {
	env := make([]string, 0, len(cfg.Env))
	for _, k := range slices.Sorted(maps.Keys(cfg.Env)) {
		env = append(env, k+"="+cfg.Env[k])
	}

	c.logger.Info("Starting MCP server", "id", rec.ID, "name", rec.Name, "command", cfg.Command, "args", cfg.Args)

	stdioClient, err := client.NewStdioMCPClient(cfg.Command, env, cfg.Args...)
	if err != nil {
		return nil, fmt.Errorf("error starting MCP server '%s': %w", rec.Name, err)
	}

	if stderr, ok := client.GetStderr(stdioClient); ok {
		go c.pipeStderr(rec.Name, stderr)
	}

	if err := c.initialize(ctx, stdioClient, rec.Name); err != nil {
		_ = stdioClient.Close()
		return nil, err
	}

	return &mcpSession{client: stdioClient}, nil
}

func (c *MCPConnector) connectRemote(ctx context.Context, rec domain.ServerRecord, cfg domain.RemoteConfig) (Session, error) {
	// Start ties long-lived streams to its context, which must outlive the handshake deadline.
	streamCtx := context.WithoutCancel(ctx)

	httpClient, err := client.NewStreamableHttpClient(cfg.URL, transport.WithHTTPHeaders(cfg.Headers))
	if err != nil {
		return nil, fmt.Errorf("error creating streamable HTTP client for '%s': %w", rec.Name, err)
	}
	err = httpClient.Start(streamCtx)
	if err == nil {
		err = c.initialize(ctx, httpClient, rec.Name)
	}
	if err == nil {
		return &mcpSession{client: httpClient}, nil
	}
	c.logger.Debug("Streamable HTTP connect failed, falling back to SSE", "name", rec.Name, "error", err)
	_ = httpClient.Close()

	sseClient, err := client.NewSSEMCPClient(cfg.URL, transport.WithHeaders(cfg.Headers))
	if err != nil {
		return nil, fmt.Errorf("error creating SSE client for '%s': %w", rec.Name, err)
	}
	if err := sseClient.Start(streamCtx); err != nil {
		_ = sseClient.Close()
		return nil, fmt.Errorf("error connecting to MCP server '%s': %w", rec.Name, err)
	}
	if err := c.initialize(ctx, sseClient, rec.Name); err != nil {
		_ = sseClient.Close()
		return nil, err
	}

	return &mcpSession{client: sseClient}, nil
}

func (c *MCPConnector) initialize(ctx context.Context, mcpClient *client.Client, name string) error {
	initResult, err := mcpClient.Initialize(ctx, mcp.InitializeRequest{
		Params: mcp.InitializeParams{
			ProtocolVersion: mcp.LATEST_PROTOCOL_VERSION,
			ClientInfo:      c.clientInfo,
		},
	})
	if err != nil {
		return fmt.Errorf("error initializing MCP client '%s': %w", name, err)
	}

	c.logger.Info(
		"Initialized MCP server",
		"name", name,
		"server", fmt.Sprintf("%s@%s", initResult.ServerInfo.Name, initResult.ServerInfo.Version),
	)

	return nil
}

func (c *MCPConnector) pipeStderr(name string, stderr io.Reader) {
	logger := c.logger.Named(name)
	scanner := bufio.NewScanner(stderr)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			logger.Info("stderr", "line", line)
		}
	}
	if err := scanner.Err(); err != nil {
		logger.Debug("Stopped reading stderr", "error", err)
	}
}

// mcpSession adapts an mcp-go client to Session.
type mcpSession struct {
	client client.MCPClient
}

func (s *mcpSession) ListTools(ctx context.Context) ([]domain.ToolInfo, error) {
	result, err := s.client.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, fmt.Errorf("list tools returned no result")
	}

	tools := make([]domain.ToolInfo, 0, len(result.Tools))
	for _, t := range result.Tools {
		schema, err := inputSchema(t)
		if err != nil {
			return nil, fmt.Errorf("tool '%s': %w", t.Name, err)
		}
		tools = append(tools, domain.ToolInfo{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: schema,
		})
	}

	return tools, nil
}

func (s *mcpSession) CallTool(ctx context.Context, name string, args map[string]any) (*mcp.CallToolResult, error) {
	return s.client.CallTool(ctx, mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	})
}

func (s *mcpSession) Ping(ctx context.Context) error {
	return s.client.Ping(ctx)
}

func (s *mcpSession) Close() error {
	return s.client.Close()
}

// inputSchema converts a tool's declared input schema to a generic JSON object.
func inputSchema(t mcp.Tool) (map[string]any, error) {
	raw := t.RawInputSchema
	if len(raw) == 0 {
		b, err := json.Marshal(t.InputSchema)
		if err != nil {
			return nil, fmt.Errorf("marshal input schema: %w", err)
		}
		raw = b
	}

	var schema map[string]any
	if err := json.Unmarshal(raw, &schema); err != nil {
		return nil, fmt.Errorf("unmarshal input schema: %w", err)
	}
	return schema, nil
}
