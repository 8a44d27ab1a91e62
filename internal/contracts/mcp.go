package contracts

import (
	"context"
	"io"

	"github.com/mozilla-ai/mcphub/internal/domain"
)

// MCPRepository persists MCP server records.
type MCPRepository interface {
	// Save inserts the record, or when a record with the same ID exists, updates only its config and UpdatedAt.
	Save(ctx context.Context, rec domain.ServerRecord) (domain.ServerRecord, error)

	// SelectByID returns the record with the given ID, or errors.ErrServerNotFound.
	SelectByID(ctx context.Context, id string) (domain.ServerRecord, error)

	// SelectAll returns every record regardless of owner or visibility.
	// It must only be used for reconciliation, never to build a caller-facing response.
	SelectAll(ctx context.Context) ([]domain.ServerRecord, error)

	// SelectAllByAccess returns the records owned by the user plus every public or readonly record.
	SelectAllByAccess(ctx context.Context, userID string) ([]domain.ServerRecord, error)

	// DeleteByID removes the record with the given ID.
	DeleteByID(ctx context.Context, id string) error

	// SelectByServerName returns the record with the given name, or errors.ErrServerNotFound.
	SelectByServerName(ctx context.Context, name string) (domain.ServerRecord, error)

	// ExistsByServerName reports whether a record with the given name exists.
	ExistsByServerName(ctx context.Context, name string) (bool, error)

	// CheckAccess reports whether the user may access the record; unknown IDs are never accessible.
	CheckAccess(ctx context.Context, id string, userID string, destructive bool) (bool, error)

	// UpdateVisibility changes the visibility of the record.
	UpdateVisibility(ctx context.Context, id string, visibility domain.Visibility) error

	// Ping checks that the underlying store is reachable.
	Ping(ctx context.Context) error
}

// MCPClientController drives live client connections.
type MCPClientController interface {
	// Refresh connects the server, or reconnects it when a client already exists.
	// Calling Refresh while a connect for the same server is in flight must be a no-op.
	Refresh(ctx context.Context, rec domain.ServerRecord) error

	// Disconnect closes and forgets the client for the server ID.
	Disconnect(ctx context.Context, id string) error
}

// MCPClientAccessor provides read access to live clients and their tools.
type MCPClientAccessor interface {
	// Clients returns a snapshot of every live client.
	Clients() []domain.LiveClient

	// Client returns the live client for the server ID.
	// It returns a boolean to indicate whether the client was found.
	Client(id string) (domain.LiveClient, bool)

	// Tools returns the tools of every connected client keyed by composite tool key.
	Tools() map[string]domain.ToolHandle

	// CallTool invokes a tool on the connected client for the server ID.
	CallTool(ctx context.Context, serverID string, tool string, args map[string]any) (string, error)
}

// MCPClientManager is the full set of operations over live clients.
type MCPClientManager interface {
	MCPClientAccessor
	MCPClientController
}

// FileStorage stores uploaded files.
type FileStorage interface {
	// Upload stores the content and returns its key, public URL and metadata.
	Upload(ctx context.Context, r io.Reader, opts domain.UploadOptions) (domain.UploadResult, error)

	// Download opens the stored content, or returns errors.ErrFileNotFound.
	// Callers must close the returned reader.
	Download(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete removes the stored content.
	Delete(ctx context.Context, key string) error

	// Exists reports whether content is stored under the key.
	Exists(ctx context.Context, key string) (bool, error)

	// Metadata returns the metadata of the stored content, or errors.ErrFileNotFound.
	Metadata(ctx context.Context, key string) (domain.FileMetadata, error)

	// PublicURL returns the URL under which the key is served.
	PublicURL(key string) string
}

// MCPRegistry is the caller-scoped view of the server registry.
// An empty callerID is an anonymous caller.
type MCPRegistry interface {
	// List reconciles live clients against the store and returns the servers visible to the caller.
	List(ctx context.Context, callerID string) ([]domain.AccessibleView, error)

	// Get returns a server the caller may read.
	Get(ctx context.Context, callerID string, id string) (domain.ServerRecord, error)

	// Save creates a server owned by the caller, or replaces the config of one the caller owns.
	Save(ctx context.Context, callerID string, req domain.SaveRequest) (domain.ServerRecord, error)

	// UpdateVisibility changes the visibility of a server the caller owns; nil leaves it unchanged.
	UpdateVisibility(ctx context.Context, callerID string, id string, v *domain.Visibility) (domain.ServerRecord, error)

	// Delete removes a server the caller owns and disconnects its client.
	Delete(ctx context.Context, callerID string, id string) error

	// LoadTools returns the tools the caller may use, narrowed by mentions or an allow-list.
	LoadTools(
		ctx context.Context,
		callerID string,
		mentions []domain.Mention,
		allowed domain.AllowList,
	) (map[string]domain.ToolHandle, error)

	// CallTool invokes a tool on a server the caller may read.
	CallTool(ctx context.Context, callerID string, serverID string, tool string, args map[string]any) (string, error)
}
