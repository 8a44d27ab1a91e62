package api

import (
	"fmt"
	"time"

	"github.com/mozilla-ai/mcphub/internal/domain"
)

type Convertible[T any] interface {
	// ToAPIType can be used to convert a wrapped domain type to an API-safe type.
	// It should be responsible for any normalization required to ensure consistency
	// across the API boundary.
	ToAPIType() (T, error)
}

// DomainServerRecord is a wrapper that allows receivers to be declared in the API package that deal with domain types.
type DomainServerRecord domain.ServerRecord

// DomainAccessibleView wraps domain.AccessibleView.
type DomainAccessibleView domain.AccessibleView

// DomainToolHandle wraps domain.ToolHandle.
type DomainToolHandle domain.ToolHandle

// DomainUploadResult wraps domain.UploadResult.
type DomainUploadResult domain.UploadResult

// Server is a persisted MCP server record.
type Server struct {
	ID         string    `doc:"Server ID"                              json:"id"`
	Name       string    `doc:"Unique server name"                     json:"name"`
	Config     any       `doc:"Stdio or remote connection config"      json:"config"`
	UserID     string    `doc:"ID of the owning user"                  json:"userId,omitempty"`
	Visibility string    `doc:"Who can see and use the server"         json:"visibility"`
	CreatedAt  time.Time `doc:"When the server was registered"         json:"createdAt"`
	UpdatedAt  time.Time `doc:"When the server config last changed"    json:"updatedAt"`
}

// ServerView is a server as seen by the caller, joined with its live client state.
type ServerView struct {
	ID         string     `doc:"Server ID"                                               json:"id"`
	Name       string     `doc:"Unique server name"                                      json:"name"`
	Config     any        `doc:"Stdio or remote connection config"                       json:"config"`
	Status     string     `doc:"Live client status"                                      json:"status"`
	Error      string     `doc:"Last connection error"                                   json:"error,omitempty"`
	ToolInfo   []ToolInfo `doc:"Tools discovered on the server"                          json:"toolInfo"`
	Visibility string     `doc:"Who can see and use the server"                          json:"visibility"`
	OwnerID    *string    `doc:"Owner of a server shared with the caller, omitted when owned or unowned" json:"ownerId,omitempty"`
}

// ToolInfo describes a tool discovered on an MCP server.
type ToolInfo struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	InputSchema map[string]any `json:"inputSchema,omitempty"`
}

// ToolHandle is a tool selected for a caller, keyed by composite tool key in responses.
type ToolHandle struct {
	ServerID    string         `doc:"ID of the server exposing the tool" json:"serverId"`
	ServerName  string         `doc:"Name of the server"                 json:"serverName"`
	ToolName    string         `doc:"Name of the tool on the server"     json:"toolName"`
	Description string         `doc:"Tool description"                   json:"description,omitempty"`
	InputSchema map[string]any `doc:"Tool input JSON schema"             json:"inputSchema,omitempty"`
}

// FileMetadata describes a stored file.
type FileMetadata struct {
	Filename     string     `json:"filename"`
	ContentType  string     `json:"contentType"`
	Size         int64      `json:"size"`
	LastModified *time.Time `json:"lastModified,omitempty"`
}

// FileUpload is returned after a successful upload.
type FileUpload struct {
	URL      string       `doc:"URL the file is served from" json:"url"`
	Key      string       `doc:"Storage key"                 json:"key"`
	Metadata FileMetadata `json:"metadata"`
}

// ToAPIType can be used to convert a wrapped domain type to an API-safe type.
func (d DomainServerRecord) ToAPIType() (Server, error) {
	if d.Config == nil {
		return Server{}, fmt.Errorf("server '%s' has no config", d.ID)
	}

	return Server{
		ID:         d.ID,
		Name:       d.Name,
		Config:     d.Config,
		UserID:     d.UserID,
		Visibility: string(d.Visibility),
		CreatedAt:  d.CreatedAt,
		UpdatedAt:  d.UpdatedAt,
	}, nil
}

// ToAPIType can be used to convert a wrapped domain type to an API-safe type.
func (d DomainAccessibleView) ToAPIType() (ServerView, error) {
	if d.Config == nil {
		return ServerView{}, fmt.Errorf("server '%s' has no config", d.ID)
	}

	tools := make([]ToolInfo, 0, len(d.ToolInfo))
	for _, t := range d.ToolInfo {
		tools = append(tools, ToolInfo{Name: t.Name, Description: t.Description, InputSchema: t.InputSchema})
	}

	return ServerView{
		ID:         d.ID,
		Name:       d.Name,
		Config:     d.Config,
		Status:     string(d.Status),
		Error:      d.Error,
		ToolInfo:   tools,
		Visibility: string(d.Visibility),
		OwnerID:    d.OwnerID,
	}, nil
}

// ToAPIType can be used to convert a wrapped domain type to an API-safe type.
func (d DomainToolHandle) ToAPIType() (ToolHandle, error) {
	return ToolHandle{
		ServerID:    d.ServerID,
		ServerName:  d.ServerName,
		ToolName:    d.ToolName,
		Description: d.Description,
		InputSchema: d.InputSchema,
	}, nil
}

// ToAPIType can be used to convert a wrapped domain type to an API-safe type.
func (d DomainUploadResult) ToAPIType() (FileUpload, error) {
	return FileUpload{
		URL: d.URL,
		Key: d.Key,
		Metadata: FileMetadata{
			Filename:     d.Metadata.Filename,
			ContentType:  d.Metadata.ContentType,
			Size:         d.Metadata.Size,
			LastModified: d.Metadata.LastModified,
		},
	}, nil
}

// convertAll converts a slice of wrapped domain types, stopping at the first failure.
func convertAll[D Convertible[T], T any](items []D) ([]T, error) {
	out := make([]T, 0, len(items))
	for _, item := range items {
		v, err := item.ToAPIType()
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
