package registry

import (
	"context"
	"fmt"
	"reflect"

	"github.com/mozilla-ai/mcphub/internal/contracts"
	"github.com/mozilla-ai/mcphub/internal/domain"
)

// Resolver applies visibility rules to persisted records and joins them with live client state.
type Resolver struct {
	repo    contracts.MCPRepository
	clients contracts.MCPClientAccessor
}

func NewResolver(repo contracts.MCPRepository, clients contracts.MCPClientAccessor) (*Resolver, error) {
	if repo == nil || reflect.ValueOf(repo).IsNil() {
		return nil, fmt.Errorf("repository cannot be nil")
	}
	if clients == nil || reflect.ValueOf(clients).IsNil() {
		return nil, fmt.Errorf("client accessor cannot be nil")
	}

	return &Resolver{repo: repo, clients: clients}, nil
}

// ListVisible returns the records visible to the caller joined with the current live clients.
// An empty caller sees nothing.
func (r *Resolver) ListVisible(ctx context.Context, callerID string) ([]domain.AccessibleView, error) {
	return r.ListVisibleFrom(ctx, callerID, r.clients.Clients())
}

// ListVisibleFrom is ListVisible using a previously captured live client snapshot.
func (r *Resolver) ListVisibleFrom(
	ctx context.Context,
	callerID string,
	live []domain.LiveClient,
) ([]domain.AccessibleView, error) {
	views := make([]domain.AccessibleView, 0)
	if callerID == "" {
		return views, nil
	}

	records, err := r.repo.SelectAllByAccess(ctx, callerID)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]*domain.LiveClient, len(live))
	for i := range live {
		byID[live[i].ID] = &live[i]
	}

	for _, rec := range records {
		views = append(views, domain.Project(rec, byID[rec.ID], callerID))
	}

	return views, nil
}

// AccessibleServerIDs returns the IDs of every record the caller may use.
func (r *Resolver) AccessibleServerIDs(ctx context.Context, callerID string) (map[string]struct{}, error) {
	ids := make(map[string]struct{})
	if callerID == "" {
		return ids, nil
	}

	records, err := r.repo.SelectAllByAccess(ctx, callerID)
	if err != nil {
		return nil, err
	}
	for _, rec := range records {
		ids[rec.ID] = struct{}{}
	}

	return ids, nil
}

// CheckAccess reports whether the caller may access the record; unknown IDs and empty callers never can.
func (r *Resolver) CheckAccess(ctx context.Context, id string, callerID string, destructive bool) (bool, error) {
	if callerID == "" {
		return false, nil
	}
	return r.repo.CheckAccess(ctx, id, callerID, destructive)
}
