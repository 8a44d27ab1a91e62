package domain

import "strings"

const (
	// MentionTypeServer asks for every tool of a server.
	MentionTypeServer MentionType = "mcpServer"

	// MentionTypeTool asks for a single tool of a server.
	MentionTypeTool MentionType = "mcpTool"
)

// toolKeySeparator joins server id and tool name in a composite tool key.
const toolKeySeparator = ":"

// MentionType distinguishes server mentions from tool mentions.
type MentionType string

// ToolHandle identifies a tool exposed by a connected MCP server.
type ToolHandle struct {
	ServerID    string
	ServerName  string
	ToolName    string
	Description string
	InputSchema map[string]any
}

// Mention is an explicit request to include a server's tools (or one tool) in a single invocation.
type Mention struct {
	Type MentionType

	// Name is the server name for server mentions, and the tool name for tool mentions.
	Name     string
	ServerID string
}

// AllowedServer restricts a server to a named subset of its tools.
type AllowedServer struct {
	Tools []string
}

// AllowList maps server id to the tools allowed from that server.
type AllowList map[string]AllowedServer

// ToolKey returns the composite key under which a tool is exposed.
func ToolKey(serverID string, toolName string) string {
	return serverID + toolKeySeparator + toolName
}

// SplitToolKey splits a composite tool key into server id and tool name.
// Server ids never contain the separator, tool names may.
func SplitToolKey(key string) (serverID string, toolName string, ok bool) {
	return strings.Cut(key, toolKeySeparator)
}

// Key returns the composite key of the handle.
func (t ToolHandle) Key() string {
	return ToolKey(t.ServerID, t.ToolName)
}
