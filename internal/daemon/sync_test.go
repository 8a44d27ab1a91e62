package daemon

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/require"

	"github.com/mozilla-ai/mcphub/internal/domain"
	"github.com/mozilla-ai/mcphub/internal/registry"
	"github.com/mozilla-ai/mcphub/internal/repository"
)

func syncAndWait(t *testing.T, svc *registry.Service) {
	t.Helper()

	done, err := svc.Sync(context.Background())
	require.NoError(t, err)
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("sync did not settle")
	}
}

func TestSync_RetriesFailedConnect(t *testing.T) {
	t.Parallel()

	repo := repository.NewMemory()
	connector := newFakeConnector()
	cm := newTestManager(t, connector)

	svc, err := registry.NewService(hclog.NewNullLogger(), repo, cm, 1)
	require.NoError(t, err)

	saved, err := repo.Save(context.Background(), domain.ServerRecord{
		Name:   "flaky",
		Config: domain.StdioConfig{Command: "flaky"},
		UserID: "alice",
	})
	require.NoError(t, err)

	connector.mu.Lock()
	connector.errs[saved.ID] = errors.New("connection refused")
	connector.mu.Unlock()

	syncAndWait(t, svc)

	c, ok := cm.Client(saved.ID)
	require.True(t, ok)
	require.Equal(t, domain.ClientStatusDisconnected, c.Status)
	require.Contains(t, c.Error, "connection refused")

	connector.mu.Lock()
	delete(connector.errs, saved.ID)
	connector.mu.Unlock()

	syncAndWait(t, svc)

	c, ok = cm.Client(saved.ID)
	require.True(t, ok)
	require.Equal(t, domain.ClientStatusConnected, c.Status)
	require.Empty(t, c.Error)
	require.Equal(t, 2, connector.callCount(saved.ID))

	// A healthy client is left alone.
	syncAndWait(t, svc)
	require.Equal(t, 2, connector.callCount(saved.ID))
}
