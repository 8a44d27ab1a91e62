package api

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mozilla-ai/mcphub/internal/domain"
)

func TestDomainAccessibleView_ToAPIType(t *testing.T) {
	t.Parallel()

	owner := "u2"
	view := domain.AccessibleView{
		ID:         "a",
		Name:       "alpha",
		Config:     domain.RemoteConfig{URL: "https://example.com/mcp"},
		Visibility: domain.VisibilityPublic,
		Status:     domain.ClientStatusDisconnected,
		Error:      "dial tcp: refused",
		ToolInfo:   []domain.ToolInfo{{Name: "t", Description: "d"}},
		OwnerID:    &owner,
	}

	got, err := DomainAccessibleView(view).ToAPIType()
	require.NoError(t, err)

	b, err := json.Marshal(got)
	require.NoError(t, err)
	require.JSONEq(t, `{
		"id": "a",
		"name": "alpha",
		"config": {"url": "https://example.com/mcp"},
		"status": "disconnected",
		"error": "dial tcp: refused",
		"toolInfo": [{"name": "t", "description": "d"}],
		"visibility": "public",
		"ownerId": "u2"
	}`, string(b))

	// Owned views omit the owner entirely.
	view.OwnerID = nil
	view.ToolInfo = nil
	view.Error = ""
	got, err = DomainAccessibleView(view).ToAPIType()
	require.NoError(t, err)
	b, err = json.Marshal(got)
	require.NoError(t, err)
	require.NotContains(t, string(b), "ownerId")
	require.Contains(t, string(b), `"toolInfo":[]`)
}

func TestDomainServerRecord_ToAPIType(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	rec := domain.ServerRecord{
		ID:         "a",
		Name:       "alpha",
		Config:     domain.StdioConfig{Command: "npx"},
		UserID:     "u1",
		Visibility: domain.VisibilityPrivate,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	got, err := DomainServerRecord(rec).ToAPIType()
	require.NoError(t, err)
	require.Equal(t, "u1", got.UserID)
	require.Equal(t, "private", got.Visibility)
	require.Equal(t, now, got.CreatedAt)

	rec.Config = nil
	_, err = DomainServerRecord(rec).ToAPIType()
	require.Error(t, err)
}

func TestConvertAll(t *testing.T) {
	t.Parallel()

	handles := []DomainToolHandle{
		{ServerID: "S1", ToolName: "A"},
		{ServerID: "S2", ToolName: "B"},
	}

	got, err := convertAll[DomainToolHandle, ToolHandle](handles)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "B", got[1].ToolName)
}
