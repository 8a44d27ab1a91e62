package api

import (
	"context"
	"slices"
	"sync"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/require"

	"github.com/mozilla-ai/mcphub/internal/auth"
	"github.com/mozilla-ai/mcphub/internal/domain"
	"github.com/mozilla-ai/mcphub/internal/registry"
	"github.com/mozilla-ai/mcphub/internal/repository"
)

// mockClientManager implements contracts.MCPClientManager for testing.
type mockClientManager struct {
	mu        sync.Mutex
	live      []domain.LiveClient
	tools     map[string]domain.ToolHandle
	refreshed []string
	callErr   error
}

func (m *mockClientManager) Refresh(_ context.Context, rec domain.ServerRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refreshed = append(m.refreshed, rec.ID)
	return nil
}

func (m *mockClientManager) Disconnect(_ context.Context, _ string) error { return nil }

func (m *mockClientManager) Clients() []domain.LiveClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.live)
}

func (m *mockClientManager) Client(id string) (domain.LiveClient, bool) {
	for _, c := range m.Clients() {
		if c.ID == id {
			return c, true
		}
	}
	return domain.LiveClient{}, false
}

func (m *mockClientManager) Tools() map[string]domain.ToolHandle {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tools
}

func (m *mockClientManager) CallTool(_ context.Context, serverID string, tool string, args map[string]any) (string, error) {
	if m.callErr != nil {
		return "", m.callErr
	}
	return serverID + "/" + tool + "/" + stringArg(args, "q"), nil
}

func stringArg(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return s
}

type testEnv struct {
	repo    *repository.Memory
	clients *mockClientManager
	service *registry.Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	repo := repository.NewMemory()
	clients := &mockClientManager{tools: map[string]domain.ToolHandle{}}
	service, err := registry.NewService(hclog.NewNullLogger(), repo, clients, 2)
	require.NoError(t, err)

	return &testEnv{repo: repo, clients: clients, service: service}
}

// seed stores a record directly, bypassing ownership checks.
func (e *testEnv) seed(t *testing.T, id string, name string, owner string, v domain.Visibility) domain.ServerRecord {
	t.Helper()

	rec, err := e.repo.Save(context.Background(), domain.ServerRecord{
		ID:         id,
		Name:       name,
		Config:     domain.StdioConfig{Command: "npx", Args: []string{name}},
		UserID:     owner,
		Visibility: v,
	})
	require.NoError(t, err)
	return rec
}

func asCaller(userID string) context.Context {
	return auth.WithCaller(context.Background(), userID)
}
