package registry

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/require"

	"github.com/mozilla-ai/mcphub/internal/domain"
	errorsint "github.com/mozilla-ai/mcphub/internal/errors"
	"github.com/mozilla-ai/mcphub/internal/repository"
)

// fakeManager is a test implementation of contracts.MCPClientManager.
type fakeManager struct {
	mu            sync.Mutex
	live          []domain.LiveClient
	tools         map[string]domain.ToolHandle
	refreshed     []string
	disconnected  []string
	refreshErr    error
	disconnectErr error
	gate          chan struct{}
}

func (f *fakeManager) Refresh(_ context.Context, rec domain.ServerRecord) error {
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshed = append(f.refreshed, rec.ID)
	return f.refreshErr
}

func (f *fakeManager) Disconnect(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnected = append(f.disconnected, id)
	return f.disconnectErr
}

func (f *fakeManager) Clients() []domain.LiveClient {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.live)
}

func (f *fakeManager) Client(id string) (domain.LiveClient, bool) {
	for _, c := range f.Clients() {
		if c.ID == id {
			return c, true
		}
	}
	return domain.LiveClient{}, false
}

func (f *fakeManager) Tools() map[string]domain.ToolHandle {
	return f.tools
}

func (f *fakeManager) CallTool(_ context.Context, serverID string, tool string, _ map[string]any) (string, error) {
	return serverID + "/" + tool, nil
}

func (f *fakeManager) calls() ([]string, []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r := slices.Clone(f.refreshed)
	d := slices.Clone(f.disconnected)
	slices.Sort(r)
	slices.Sort(d)
	return r, d
}

func waitDone(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("reconciliation did not settle")
	}
}

func rec(id string, owner string, v domain.Visibility) domain.ServerRecord {
	return domain.ServerRecord{
		ID:         id,
		Name:       "server-" + id,
		Config:     domain.StdioConfig{Command: "echo"},
		UserID:     owner,
		Visibility: v,
	}
}

func TestPlan(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		persisted      []domain.ServerRecord
		live           []domain.LiveClient
		wantConnect    []string
		wantDisconnect []string
	}{
		{
			name:           "nothing to do",
			wantConnect:    []string{},
			wantDisconnect: []string{},
		},
		{
			name:           "one missing live client",
			persisted:      []domain.ServerRecord{{ID: "S1"}, {ID: "S2"}},
			live:           []domain.LiveClient{{ID: "S1"}},
			wantConnect:    []string{"S2"},
			wantDisconnect: []string{},
		},
		{
			name:           "stale live client",
			persisted:      []domain.ServerRecord{{ID: "S1"}},
			live:           []domain.LiveClient{{ID: "S1"}, {ID: "S9"}},
			wantConnect:    []string{},
			wantDisconnect: []string{"S9"},
		},
		{
			name:      "disconnected live client is retried",
			persisted: []domain.ServerRecord{{ID: "S1"}, {ID: "S2"}, {ID: "S3"}},
			live: []domain.LiveClient{
				{ID: "S1", Status: domain.ClientStatusDisconnected},
				{ID: "S2", Status: domain.ClientStatusLoading},
				{ID: "S3", Status: domain.ClientStatusConnected},
			},
			wantConnect:    []string{"S1"},
			wantDisconnect: []string{},
		},
		{
			name:           "disjoint",
			persisted:      []domain.ServerRecord{{ID: "A"}},
			live:           []domain.LiveClient{{ID: "B"}},
			wantConnect:    []string{"A"},
			wantDisconnect: []string{"B"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			toConnect, toDisconnect := Plan(tc.persisted, tc.live)
			ids := make([]string, 0, len(toConnect))
			for _, r := range toConnect {
				ids = append(ids, r.ID)
			}
			require.Equal(t, tc.wantConnect, ids)
			require.Equal(t, tc.wantDisconnect, toDisconnect)
		})
	}
}

func TestReconciler_Reconcile_ConnectsOnlyMissing(t *testing.T) {
	t.Parallel()

	m := &fakeManager{}
	r, err := NewReconciler(hclog.NewNullLogger(), m, 0)
	require.NoError(t, err)

	done := r.Reconcile(
		[]domain.ServerRecord{{ID: "S1"}, {ID: "S2"}},
		[]domain.LiveClient{{ID: "S1"}},
	)
	waitDone(t, done)

	refreshed, disconnected := m.calls()
	require.Equal(t, []string{"S2"}, refreshed)
	require.Empty(t, disconnected)
}

func TestReconciler_Reconcile_DisconnectsStale(t *testing.T) {
	t.Parallel()

	m := &fakeManager{}
	r, err := NewReconciler(hclog.NewNullLogger(), m, 2)
	require.NoError(t, err)

	waitDone(t, r.Reconcile(nil, []domain.LiveClient{{ID: "gone-1"}, {ID: "gone-2"}}))

	refreshed, disconnected := m.calls()
	require.Empty(t, refreshed)
	require.Equal(t, []string{"gone-1", "gone-2"}, disconnected)
}

func TestReconciler_Reconcile_SwallowsFailures(t *testing.T) {
	t.Parallel()

	m := &fakeManager{refreshErr: errors.New("spawn failed"), disconnectErr: errors.New("close failed")}
	r, err := NewReconciler(hclog.NewNullLogger(), m, 1)
	require.NoError(t, err)

	waitDone(t, r.Reconcile(
		[]domain.ServerRecord{{ID: "A"}, {ID: "B"}},
		[]domain.LiveClient{{ID: "C"}},
	))

	// Every action is attempted even though each one fails.
	refreshed, disconnected := m.calls()
	require.Equal(t, []string{"A", "B"}, refreshed)
	require.Equal(t, []string{"C"}, disconnected)
}

func TestReconciler_Reconcile_DoesNotBlock(t *testing.T) {
	t.Parallel()

	m := &fakeManager{gate: make(chan struct{})}
	r, err := NewReconciler(hclog.NewNullLogger(), m, 0)
	require.NoError(t, err)

	done := r.Reconcile([]domain.ServerRecord{{ID: "slow"}}, nil)

	select {
	case <-done:
		t.Fatal("reconciliation settled before the connect completed")
	default:
	}

	close(m.gate)
	waitDone(t, done)

	refreshed, _ := m.calls()
	require.Equal(t, []string{"slow"}, refreshed)
}

func TestReconciler_Reconcile_NothingToDo(t *testing.T) {
	t.Parallel()

	r, err := NewReconciler(hclog.NewNullLogger(), &fakeManager{}, 0)
	require.NoError(t, err)

	done := r.Reconcile([]domain.ServerRecord{{ID: "A"}}, []domain.LiveClient{{ID: "A"}})
	select {
	case <-done:
	default:
		t.Fatal("expected an already closed channel")
	}
}

func TestNewReconciler_Validation(t *testing.T) {
	t.Parallel()

	_, err := NewReconciler(nil, &fakeManager{}, 1)
	require.EqualError(t, err, "logger cannot be nil")

	var nilManager *fakeManager
	_, err = NewReconciler(hclog.NewNullLogger(), nilManager, 1)
	require.EqualError(t, err, "client controller cannot be nil")
}

func seedRepo(t *testing.T, recs ...domain.ServerRecord) *repository.Memory {
	t.Helper()

	repo := repository.NewMemory()
	for _, r := range recs {
		_, err := repo.Save(context.Background(), r)
		require.NoError(t, err)
	}
	return repo
}

func TestResolver_ListVisible(t *testing.T) {
	t.Parallel()

	repo := seedRepo(t,
		rec("mine", "u1", domain.VisibilityPrivate),
		rec("theirs-private", "u2", domain.VisibilityPrivate),
		rec("theirs-public", "u2", domain.VisibilityPublic),
		rec("theirs-readonly", "u2", domain.VisibilityReadOnly),
	)
	m := &fakeManager{live: []domain.LiveClient{{
		ID:       "mine",
		Status:   domain.ClientStatusConnected,
		ToolInfo: []domain.ToolInfo{{Name: "t"}},
	}}}

	r, err := NewResolver(repo, m)
	require.NoError(t, err)

	t.Run("unauthenticated sees nothing", func(t *testing.T) {
		t.Parallel()

		views, err := r.ListVisible(context.Background(), "")
		require.NoError(t, err)
		require.NotNil(t, views)
		require.Empty(t, views)
	})

	t.Run("owner and shared records", func(t *testing.T) {
		t.Parallel()

		views, err := r.ListVisible(context.Background(), "u1")
		require.NoError(t, err)

		byID := make(map[string]domain.AccessibleView, len(views))
		for _, v := range views {
			byID[v.ID] = v
		}
		require.Len(t, byID, 3)
		require.NotContains(t, byID, "theirs-private")

		mine := byID["mine"]
		require.True(t, mine.IsOwner)
		require.Nil(t, mine.OwnerID)
		require.Equal(t, domain.ClientStatusConnected, mine.Status)
		require.Len(t, mine.ToolInfo, 1)

		shared := byID["theirs-public"]
		require.False(t, shared.IsOwner)
		require.NotNil(t, shared.OwnerID)
		require.Equal(t, "u2", *shared.OwnerID)
		require.Equal(t, domain.ClientStatusLoading, shared.Status)
		require.NotNil(t, shared.ToolInfo)
		require.Empty(t, shared.ToolInfo)
	})
}

func TestResolver_CheckAccess_EmptyCaller(t *testing.T) {
	t.Parallel()

	repo := seedRepo(t, rec("pub", "u1", domain.VisibilityPublic))
	r, err := NewResolver(repo, &fakeManager{})
	require.NoError(t, err)

	ok, err := r.CheckAccess(context.Background(), "pub", "", false)
	require.NoError(t, err)
	require.False(t, ok)
}

func newTestService(t *testing.T, repo *repository.Memory, m *fakeManager) *Service {
	t.Helper()

	s, err := NewService(hclog.NewNullLogger(), repo, m, 0)
	require.NoError(t, err)
	return s
}

func TestService_List_ReflectsStateBeforeReconcile(t *testing.T) {
	t.Parallel()

	repo := seedRepo(t, rec("S1", "u1", domain.VisibilityPrivate), rec("S2", "u1", domain.VisibilityPrivate))
	m := &fakeManager{
		live: []domain.LiveClient{
			{ID: "S1", Status: domain.ClientStatusConnected},
			{ID: "stale", Status: domain.ClientStatusConnected},
		},
		gate: make(chan struct{}),
	}
	s := newTestService(t, repo, m)

	views, err := s.List(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, views, 2)

	statuses := map[string]domain.ClientStatus{}
	for _, v := range views {
		statuses[v.ID] = v.Status
	}
	require.Equal(t, domain.ClientStatusConnected, statuses["S1"])
	require.Equal(t, domain.ClientStatusLoading, statuses["S2"])

	close(m.gate)
	require.Eventually(t, func() bool {
		refreshed, disconnected := m.calls()
		return slices.Equal(refreshed, []string{"S2"}) && slices.Equal(disconnected, []string{"stale"})
	}, 5*time.Second, 10*time.Millisecond)
}

func TestService_List_Unauthenticated(t *testing.T) {
	t.Parallel()

	repo := seedRepo(t, rec("S1", "u1", domain.VisibilityPublic))
	m := &fakeManager{}
	s := newTestService(t, repo, m)

	views, err := s.List(context.Background(), "")
	require.NoError(t, err)
	require.Empty(t, views)

	// Reconciliation still runs for anonymous callers.
	require.Eventually(t, func() bool {
		refreshed, _ := m.calls()
		return slices.Equal(refreshed, []string{"S1"})
	}, 5*time.Second, 10*time.Millisecond)
}

func TestService_Get(t *testing.T) {
	t.Parallel()

	repo := seedRepo(t, rec("priv", "u1", domain.VisibilityPrivate), rec("ro", "u1", domain.VisibilityReadOnly))
	s := newTestService(t, repo, &fakeManager{})

	got, err := s.Get(context.Background(), "u1", "priv")
	require.NoError(t, err)
	require.Equal(t, "priv", got.ID)

	_, err = s.Get(context.Background(), "u2", "priv")
	require.ErrorIs(t, err, errorsint.ErrAccessDenied)

	got, err = s.Get(context.Background(), "u2", "ro")
	require.NoError(t, err)
	require.Equal(t, "ro", got.ID)

	_, err = s.Get(context.Background(), "", "ro")
	require.ErrorIs(t, err, errorsint.ErrUnauthorized)

	_, err = s.Get(context.Background(), "u1", "missing")
	require.ErrorIs(t, err, errorsint.ErrAccessDenied)
}

func TestService_UpdateVisibility(t *testing.T) {
	t.Parallel()

	repo := seedRepo(t, rec("pub", "u1", domain.VisibilityPublic))
	s := newTestService(t, repo, &fakeManager{})

	private := domain.VisibilityPrivate
	_, err := s.UpdateVisibility(context.Background(), "u2", "pub", &private)
	require.ErrorIs(t, err, errorsint.ErrAccessDenied)

	unchanged, err := repo.SelectByID(context.Background(), "pub")
	require.NoError(t, err)
	require.Equal(t, domain.VisibilityPublic, unchanged.Visibility)

	updated, err := s.UpdateVisibility(context.Background(), "u1", "pub", &private)
	require.NoError(t, err)
	require.Equal(t, domain.VisibilityPrivate, updated.Visibility)

	same, err := s.UpdateVisibility(context.Background(), "u1", "pub", nil)
	require.NoError(t, err)
	require.Equal(t, domain.VisibilityPrivate, same.Visibility)
}

func TestService_Delete(t *testing.T) {
	t.Parallel()

	repo := seedRepo(t, rec("ro", "u1", domain.VisibilityReadOnly))
	m := &fakeManager{}
	s := newTestService(t, repo, m)

	require.ErrorIs(t, s.Delete(context.Background(), "u2", "ro"), errorsint.ErrAccessDenied)
	_, err := repo.SelectByID(context.Background(), "ro")
	require.NoError(t, err)

	require.NoError(t, s.Delete(context.Background(), "u1", "ro"))
	_, err = repo.SelectByID(context.Background(), "ro")
	require.ErrorIs(t, err, errorsint.ErrServerNotFound)

	require.Eventually(t, func() bool {
		_, disconnected := m.calls()
		return slices.Equal(disconnected, []string{"ro"})
	}, 5*time.Second, 10*time.Millisecond)
}

// vanishingRepo removes the record just before deleting it, as a concurrent delete would.
type vanishingRepo struct {
	*repository.Memory
}

func (r *vanishingRepo) DeleteByID(ctx context.Context, id string) error {
	if err := r.Memory.DeleteByID(ctx, id); err != nil {
		return err
	}
	return r.Memory.DeleteByID(ctx, id)
}

func TestService_Delete_ConcurrentDeleteSucceeds(t *testing.T) {
	t.Parallel()

	repo := &vanishingRepo{Memory: seedRepo(t, rec("s1", "u1", domain.VisibilityPrivate))}
	m := &fakeManager{}
	s, err := NewService(hclog.NewNullLogger(), repo, m, 0)
	require.NoError(t, err)

	require.NoError(t, s.Delete(context.Background(), "u1", "s1"))

	require.Eventually(t, func() bool {
		_, disconnected := m.calls()
		return slices.Equal(disconnected, []string{"s1"})
	}, 5*time.Second, 10*time.Millisecond)
}

func TestService_Save(t *testing.T) {
	t.Parallel()

	t.Run("defaults to private and refreshes", func(t *testing.T) {
		t.Parallel()

		repo := repository.NewMemory()
		m := &fakeManager{}
		s := newTestService(t, repo, m)

		saved, err := s.Save(context.Background(), "u1", domain.SaveRequest{
			Name:   "time",
			Config: domain.StdioConfig{Command: "uvx", Args: []string{"mcp-server-time"}},
		})
		require.NoError(t, err)
		require.NotEmpty(t, saved.ID)
		require.Equal(t, "u1", saved.UserID)
		require.Equal(t, domain.VisibilityPrivate, saved.Visibility)

		require.Eventually(t, func() bool {
			refreshed, _ := m.calls()
			return slices.Equal(refreshed, []string{saved.ID})
		}, 5*time.Second, 10*time.Millisecond)
	})

	t.Run("name taken", func(t *testing.T) {
		t.Parallel()

		repo := seedRepo(t, rec("a", "u1", domain.VisibilityPrivate))
		s := newTestService(t, repo, &fakeManager{})

		_, err := s.Save(context.Background(), "u2", domain.SaveRequest{Name: "server-a", Config: domain.StdioConfig{Command: "x"}})
		require.ErrorIs(t, err, errorsint.ErrServerNameTaken)
	})

	t.Run("config update requires ownership", func(t *testing.T) {
		t.Parallel()

		repo := seedRepo(t, rec("a", "u1", domain.VisibilityPublic))
		s := newTestService(t, repo, &fakeManager{})

		newCfg := domain.RemoteConfig{URL: "https://example.com/mcp"}
		_, err := s.Save(context.Background(), "u2", domain.SaveRequest{ID: "a", Name: "server-a", Config: newCfg})
		require.ErrorIs(t, err, errorsint.ErrAccessDenied)

		saved, err := s.Save(context.Background(), "u1", domain.SaveRequest{ID: "a", Name: "server-a", Config: newCfg})
		require.NoError(t, err)
		require.Equal(t, newCfg, saved.Config)
		require.Equal(t, domain.VisibilityPublic, saved.Visibility)
	})

	t.Run("invalid input", func(t *testing.T) {
		t.Parallel()

		s := newTestService(t, repository.NewMemory(), &fakeManager{})

		_, err := s.Save(context.Background(), "", domain.SaveRequest{Name: "x", Config: domain.StdioConfig{Command: "x"}})
		require.ErrorIs(t, err, errorsint.ErrUnauthorized)

		_, err = s.Save(context.Background(), "u1", domain.SaveRequest{Name: "  ", Config: domain.StdioConfig{Command: "x"}})
		require.ErrorIs(t, err, errorsint.ErrBadRequest)

		_, err = s.Save(context.Background(), "u1", domain.SaveRequest{Name: "x"})
		require.ErrorIs(t, err, errorsint.ErrBadRequest)

		_, err = s.Save(context.Background(), "u1", domain.SaveRequest{
			Name:       "x",
			Config:     domain.StdioConfig{Command: "x"},
			Visibility: "everyone",
		})
		require.ErrorIs(t, err, errorsint.ErrBadRequest)
	})
}

func TestService_LoadTools_RespectsAccessBoundary(t *testing.T) {
	t.Parallel()

	repo := seedRepo(t,
		rec("mine", "u1", domain.VisibilityPrivate),
		rec("hidden", "u2", domain.VisibilityPrivate),
	)
	m := &fakeManager{tools: map[string]domain.ToolHandle{
		"mine:a":   {ServerID: "mine", ServerName: "server-mine", ToolName: "a"},
		"hidden:b": {ServerID: "hidden", ServerName: "server-hidden", ToolName: "b"},
	}}
	s := newTestService(t, repo, m)

	got, err := s.LoadTools(context.Background(), "u1", []domain.Mention{
		{Type: domain.MentionTypeServer, Name: "server-hidden", ServerID: "hidden"},
		{Type: domain.MentionTypeServer, Name: "server-mine", ServerID: "mine"},
	}, nil)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Contains(t, got, "mine:a")

	got, err = s.LoadTools(context.Background(), "", nil, domain.AllowList{"mine": {Tools: []string{"a"}}})
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestService_CallTool(t *testing.T) {
	t.Parallel()

	repo := seedRepo(t, rec("priv", "u1", domain.VisibilityPrivate))
	s := newTestService(t, repo, &fakeManager{})

	out, err := s.CallTool(context.Background(), "u1", "priv", "a", nil)
	require.NoError(t, err)
	require.Equal(t, "priv/a", out)

	_, err = s.CallTool(context.Background(), "u2", "priv", "a", nil)
	require.ErrorIs(t, err, errorsint.ErrAccessDenied)
}
