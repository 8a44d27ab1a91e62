package repository

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mozilla-ai/mcphub/internal/contracts"
	"github.com/mozilla-ai/mcphub/internal/domain"
	"github.com/mozilla-ai/mcphub/internal/errors"
)

// Memory is an in-process MCPRepository.
// It is used for development mode and tests; nothing is persisted across restarts.
type Memory struct {
	mu      sync.RWMutex
	records map[string]domain.ServerRecord
	now     func() time.Time
}

var _ contracts.MCPRepository = (*Memory)(nil)

// NewMemory returns an empty in-memory repository.
func NewMemory() *Memory {
	return &Memory{
		records: make(map[string]domain.ServerRecord),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Save inserts rec or updates the config of an existing record with the same ID.
func (m *Memory) Save(_ context.Context, rec domain.ServerRecord) (domain.ServerRecord, error) {
	if rec.Config == nil {
		return domain.ServerRecord{}, fmt.Errorf("%w: server config is required", errors.ErrBadRequest)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()

	if existing, ok := m.records[rec.ID]; ok && rec.ID != "" {
		existing.Config = rec.Config
		existing.UpdatedAt = now
		m.records[rec.ID] = existing
		return existing, nil
	}

	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Visibility == "" {
		rec.Visibility = domain.VisibilityPrivate
	}
	rec.CreatedAt = now
	rec.UpdatedAt = now
	m.records[rec.ID] = rec

	return rec, nil
}

func (m *Memory) SelectByID(_ context.Context, id string) (domain.ServerRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.records[id]
	if !ok {
		return domain.ServerRecord{}, fmt.Errorf("%w: %s", errors.ErrServerNotFound, id)
	}
	return rec, nil
}

func (m *Memory) SelectAll(_ context.Context) ([]domain.ServerRecord, error) {
	return m.collect(func(domain.ServerRecord) bool { return true }), nil
}

func (m *Memory) SelectAllByAccess(_ context.Context, userID string) ([]domain.ServerRecord, error) {
	return m.collect(func(r domain.ServerRecord) bool {
		return (userID != "" && r.UserID == userID) || r.Visibility.IsShared()
	}), nil
}

func (m *Memory) DeleteByID(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.records[id]; !ok {
		return fmt.Errorf("%w: %s", errors.ErrServerNotFound, id)
	}
	delete(m.records, id)
	return nil
}

func (m *Memory) SelectByServerName(_ context.Context, name string) (domain.ServerRecord, error) {
	matches := m.collect(func(r domain.ServerRecord) bool { return r.Name == name })
	if len(matches) == 0 {
		return domain.ServerRecord{}, fmt.Errorf("%w: %s", errors.ErrServerNotFound, name)
	}
	return matches[0], nil
}

func (m *Memory) ExistsByServerName(ctx context.Context, name string) (bool, error) {
	_, err := m.SelectByServerName(ctx, name)
	return err == nil, nil
}

func (m *Memory) CheckAccess(_ context.Context, id string, userID string, destructive bool) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.records[id]
	if !ok {
		return false, nil
	}
	return domain.CanAccess(rec, userID, destructive), nil
}

func (m *Memory) UpdateVisibility(_ context.Context, id string, visibility domain.Visibility) error {
	if !visibility.IsValid() {
		return fmt.Errorf("%w: invalid visibility %q", errors.ErrBadRequest, visibility)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[id]
	if !ok {
		return fmt.Errorf("%w: %s", errors.ErrServerNotFound, id)
	}
	rec.Visibility = visibility
	rec.UpdatedAt = m.now()
	m.records[id] = rec
	return nil
}

func (m *Memory) Ping(context.Context) error {
	return nil
}

// collect returns matching records ordered by creation time, then ID.
func (m *Memory) collect(keep func(domain.ServerRecord) bool) []domain.ServerRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]domain.ServerRecord, 0, len(m.records))
	for _, r := range m.records {
		if keep(r) {
			out = append(out, r)
		}
	}

	slices.SortFunc(out, func(a, b domain.ServerRecord) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})

	return out
}
