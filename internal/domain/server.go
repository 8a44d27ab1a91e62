package domain

import (
	"fmt"
	"strings"
	"time"
)

const (
	// VisibilityPrivate records are only visible to their owner.
	VisibilityPrivate Visibility = "private"

	// VisibilityPublic records are visible to, and usable by, every authenticated caller.
	VisibilityPublic Visibility = "public"

	// VisibilityReadOnly records are visible to every authenticated caller, but only the owner may change them.
	VisibilityReadOnly Visibility = "readonly"
)

// Visibility is the sharing policy of a ServerRecord.
type Visibility string

// ServerRecord is the persisted configuration of an MCP server.
type ServerRecord struct {
	// ID is the stable identity of the server, and the key used for its live client and tool handles.
	ID string

	// Name is the human-readable server name, also used to match mentions.
	Name string

	// Config describes how to reach the server.
	Config ServerConfig

	// UserID is the owning principal. Empty for legacy records which have no owner.
	UserID string

	// Visibility controls who besides the owner can see and use the server.
	Visibility Visibility

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ParseVisibility normalizes and validates a visibility value.
func ParseVisibility(s string) (Visibility, error) {
	v := Visibility(strings.ToLower(strings.TrimSpace(s)))
	if !v.IsValid() {
		return "", fmt.Errorf("invalid visibility '%s', must be one of: private, public, readonly", s)
	}
	return v, nil
}

// IsValid reports whether v is a known visibility.
func (v Visibility) IsValid() bool {
	switch v {
	case VisibilityPrivate, VisibilityPublic, VisibilityReadOnly:
		return true
	default:
		return false
	}
}

// IsShared reports whether records with this visibility can be seen by callers other than the owner.
func (v Visibility) IsShared() bool {
	return v == VisibilityPublic || v == VisibilityReadOnly
}

// IsOwnedBy reports whether the caller owns the record.
// Records without an owner are never owned, and an empty caller never owns anything.
func (r ServerRecord) IsOwnedBy(callerID string) bool {
	return callerID != "" && r.UserID == callerID
}

// CanAccess decides whether the caller may use the record.
// Owners always have access. Everyone else only gets non-destructive access to shared records;
// destructive operations (visibility change, config update, delete) always require ownership.
func CanAccess(r ServerRecord, callerID string, destructive bool) bool {
	if r.IsOwnedBy(callerID) {
		return true
	}
	return !destructive && r.Visibility.IsShared()
}

// SaveRequest describes a server to create, or when ID is set, a server whose config should be replaced.
type SaveRequest struct {
	ID         string
	Name       string
	Config     ServerConfig
	Visibility Visibility
}
