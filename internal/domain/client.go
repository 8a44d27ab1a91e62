package domain

import "time"

const (
	ClientStatusConnected    ClientStatus = "connected"
	ClientStatusDisconnected ClientStatus = "disconnected"
	ClientStatusLoading      ClientStatus = "loading"
	ClientStatusAuthorizing  ClientStatus = "authorizing"
)

// ClientStatus is the connection state of a live MCP client.
type ClientStatus string

// ToolInfo describes a tool discovered on an MCP server.
type ToolInfo struct {
	Name        string
	Description string
	InputSchema map[string]any
}

// LiveClient is a snapshot of the in-memory connection state for a ServerRecord.
// It is never persisted.
type LiveClient struct {
	// ID is the ServerRecord.ID this client belongs to.
	ID       string
	Name     string
	Status   ClientStatus
	Error    string
	ToolInfo []ToolInfo

	// LastChecked is when the connection was last confirmed (connect or ping), nil if never.
	LastChecked *time.Time
}
