package registry

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/hashicorp/go-hclog"

	"github.com/mozilla-ai/mcphub/internal/contracts"
	"github.com/mozilla-ai/mcphub/internal/domain"
	errorsint "github.com/mozilla-ai/mcphub/internal/errors"
	"github.com/mozilla-ai/mcphub/internal/filter"
)

var _ contracts.MCPRegistry = (*Service)(nil)

// Service implements the server registry operations exposed over the API.
type Service struct {
	logger     hclog.Logger
	repo       contracts.MCPRepository
	clients    contracts.MCPClientAccessor
	reconciler *Reconciler
	resolver   *Resolver
}

// NewService wires a Service from its collaborators.
func NewService(
	logger hclog.Logger,
	repo contracts.MCPRepository,
	clients contracts.MCPClientManager,
	concurrency int,
) (*Service, error) {
	if logger == nil || reflect.ValueOf(logger).IsNil() {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if repo == nil || reflect.ValueOf(repo).IsNil() {
		return nil, fmt.Errorf("repository cannot be nil")
	}
	if clients == nil || reflect.ValueOf(clients).IsNil() {
		return nil, fmt.Errorf("client manager cannot be nil")
	}

	reconciler, err := NewReconciler(logger, clients, concurrency)
	if err != nil {
		return nil, err
	}
	resolver, err := NewResolver(repo, clients)
	if err != nil {
		return nil, err
	}

	return &Service{
		logger:     logger.Named("registry"),
		repo:       repo,
		clients:    clients,
		reconciler: reconciler,
		resolver:   resolver,
	}, nil
}

// Sync reconciles every persisted record against the live clients without waiting for the result.
// The returned channel is closed once every corrective action has settled.
func (s *Service) Sync(ctx context.Context) (<-chan struct{}, error) {
	persisted, err := s.repo.SelectAll(ctx)
	if err != nil {
		return nil, err
	}
	return s.reconciler.Reconcile(persisted, s.clients.Clients()), nil
}

// List reconciles, then returns the servers visible to the caller.
// Views reflect live client state from before reconciliation.
func (s *Service) List(ctx context.Context, callerID string) ([]domain.AccessibleView, error) {
	live := s.clients.Clients()

	persisted, err := s.repo.SelectAll(ctx)
	if err != nil {
		return nil, err
	}
	s.reconciler.Reconcile(persisted, live)

	return s.resolver.ListVisibleFrom(ctx, callerID, live)
}

// Get returns a record the caller may read.
func (s *Service) Get(ctx context.Context, callerID string, id string) (domain.ServerRecord, error) {
	if err := s.authorize(ctx, callerID, id, false); err != nil {
		return domain.ServerRecord{}, err
	}
	return s.repo.SelectByID(ctx, id)
}

// UpdateVisibility changes the visibility of a record the caller owns and returns the updated record.
// A nil visibility leaves the record unchanged.
func (s *Service) UpdateVisibility(
	ctx context.Context,
	callerID string,
	id string,
	visibility *domain.Visibility,
) (domain.ServerRecord, error) {
	if err := s.authorize(ctx, callerID, id, true); err != nil {
		return domain.ServerRecord{}, err
	}

	if visibility != nil && *visibility != "" {
		if err := s.repo.UpdateVisibility(ctx, id, *visibility); err != nil {
			return domain.ServerRecord{}, err
		}
		s.logger.Info("Visibility updated", "id", id, "visibility", *visibility)
	}

	return s.repo.SelectByID(ctx, id)
}

// Delete removes a record the caller owns and disconnects its live client.
func (s *Service) Delete(ctx context.Context, callerID string, id string) error {
	if err := s.authorize(ctx, callerID, id, true); err != nil {
		return err
	}

	// A concurrent delete may have removed the record since the access check.
	if err := s.repo.DeleteByID(ctx, id); err != nil && !errors.Is(err, errorsint.ErrServerNotFound) {
		return err
	}
	s.logger.Info("Server deleted", "id", id)

	// Anything missed here is picked up by the next reconciliation.
	s.reconciler.run(nil, []string{id})

	return nil
}

// Save creates a server owned by the caller, or replaces the config of one the caller owns,
// then refreshes its live client in the background.
func (s *Service) Save(ctx context.Context, callerID string, req domain.SaveRequest) (domain.ServerRecord, error) {
	if callerID == "" {
		return domain.ServerRecord{}, errorsint.ErrUnauthorized
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return domain.ServerRecord{}, fmt.Errorf("%w: server name cannot be empty", errorsint.ErrBadRequest)
	}
	if req.Config == nil {
		return domain.ServerRecord{}, fmt.Errorf("%w: server config is required", errorsint.ErrBadRequest)
	}
	if req.Visibility == "" {
		req.Visibility = domain.VisibilityPrivate
	}
	if !req.Visibility.IsValid() {
		return domain.ServerRecord{}, fmt.Errorf("%w: invalid visibility %q", errorsint.ErrBadRequest, req.Visibility)
	}

	if req.ID != "" {
		if err := s.authorize(ctx, callerID, req.ID, true); err != nil {
			return domain.ServerRecord{}, err
		}
	} else {
		exists, err := s.repo.ExistsByServerName(ctx, req.Name)
		if err != nil {
			return domain.ServerRecord{}, err
		}
		if exists {
			return domain.ServerRecord{}, fmt.Errorf("%w: %s", errorsint.ErrServerNameTaken, req.Name)
		}
	}

	saved, err := s.repo.Save(ctx, domain.ServerRecord{
		ID:         req.ID,
		Name:       req.Name,
		Config:     req.Config,
		UserID:     callerID,
		Visibility: req.Visibility,
	})
	if err != nil {
		return domain.ServerRecord{}, err
	}
	s.logger.Info("Server saved", "id", saved.ID, "name", saved.Name, "kind", saved.Config.Kind())

	s.reconciler.Refresh(saved)

	return saved, nil
}

// LoadTools returns the tools the caller may use, narrowed by mentions or an allow-list.
func (s *Service) LoadTools(
	ctx context.Context,
	callerID string,
	mentions []domain.Mention,
	allowed domain.AllowList,
) (map[string]domain.ToolHandle, error) {
	accessible, err := s.resolver.AccessibleServerIDs(ctx, callerID)
	if err != nil {
		return nil, err
	}

	return filter.SelectTools(s.clients.Tools(), filter.ToolSelectOptions{
		AccessibleServerIDs: accessible,
		Mentions:            mentions,
		AllowedServers:      allowed,
	}), nil
}

// CallTool invokes a tool on a server the caller may access.
func (s *Service) CallTool(
	ctx context.Context,
	callerID string,
	serverID string,
	tool string,
	args map[string]any,
) (string, error) {
	if err := s.authorize(ctx, callerID, serverID, false); err != nil {
		return "", err
	}
	return s.clients.CallTool(ctx, serverID, tool, args)
}

// Resolver returns the visibility resolver used by the service.
func (s *Service) Resolver() *Resolver {
	return s.resolver
}

func (s *Service) authorize(ctx context.Context, callerID string, id string, destructive bool) error {
	if callerID == "" {
		return errorsint.ErrUnauthorized
	}

	ok, err := s.resolver.CheckAccess(ctx, id, callerID, destructive)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", errorsint.ErrAccessDenied, id)
	}

	return nil
}
