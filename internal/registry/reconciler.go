// Package registry keeps persisted MCP server records and live clients in step,
// and applies per-caller visibility to what is returned.
package registry

import (
	"context"
	"fmt"
	"reflect"

	"github.com/hashicorp/go-hclog"
	"golang.org/x/sync/errgroup"

	"github.com/mozilla-ai/mcphub/internal/contracts"
	"github.com/mozilla-ai/mcphub/internal/domain"
	"github.com/mozilla-ai/mcphub/internal/metrics"
)

// DefaultReconcileConcurrency is the default number of connect/disconnect actions run at once.
const DefaultReconcileConcurrency = 8

// Reconciler issues best-effort corrective actions so that live clients follow persisted records.
type Reconciler struct {
	logger      hclog.Logger
	controller  contracts.MCPClientController
	concurrency int
}

// NewReconciler creates a Reconciler driving the given controller.
// A concurrency below one selects DefaultReconcileConcurrency.
func NewReconciler(logger hclog.Logger, controller contracts.MCPClientController, concurrency int) (*Reconciler, error) {
	if logger == nil || reflect.ValueOf(logger).IsNil() {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if controller == nil || reflect.ValueOf(controller).IsNil() {
		return nil, fmt.Errorf("client controller cannot be nil")
	}
	if concurrency < 1 {
		concurrency = DefaultReconcileConcurrency
	}

	return &Reconciler{
		logger:      logger.Named("reconciler"),
		controller:  controller,
		concurrency: concurrency,
	}, nil
}

// Plan returns the persisted records that have no live client or whose live client is disconnected,
// and the IDs of live clients that have no persisted record.
func Plan(persisted []domain.ServerRecord, live []domain.LiveClient) ([]domain.ServerRecord, []string) {
	persistedIDs := make(map[string]struct{}, len(persisted))
	for _, rec := range persisted {
		persistedIDs[rec.ID] = struct{}{}
	}
	liveStatus := make(map[string]domain.ClientStatus, len(live))
	for _, c := range live {
		liveStatus[c.ID] = c.Status
	}

	toConnect := make([]domain.ServerRecord, 0)
	for _, rec := range persisted {
		status, ok := liveStatus[rec.ID]
		if !ok || status == domain.ClientStatusDisconnected {
			toConnect = append(toConnect, rec)
		}
	}

	toDisconnect := make([]string, 0)
	for _, c := range live {
		if _, ok := persistedIDs[c.ID]; !ok {
			toDisconnect = append(toDisconnect, c.ID)
		}
	}

	return toConnect, toDisconnect
}

// Reconcile connects every persisted record without a healthy live client and disconnects every live client
// without a persisted record. It never blocks: the actions run in the background, failures are logged
// and counted, and the returned channel is closed once every action has settled.
func (r *Reconciler) Reconcile(persisted []domain.ServerRecord, live []domain.LiveClient) <-chan struct{} {
	toConnect, toDisconnect := Plan(persisted, live)
	if len(toConnect) > 0 || len(toDisconnect) > 0 {
		r.logger.Debug("Reconciling", "connect", len(toConnect), "disconnect", len(toDisconnect))
	}
	return r.run(toConnect, toDisconnect)
}

// Refresh (re)connects a single record in the background.
// The returned channel is closed once the attempt has settled.
func (r *Reconciler) Refresh(rec domain.ServerRecord) <-chan struct{} {
	return r.run([]domain.ServerRecord{rec}, nil)
}

func (r *Reconciler) run(toConnect []domain.ServerRecord, toDisconnect []string) <-chan struct{} {
	done := make(chan struct{})
	if len(toConnect) == 0 && len(toDisconnect) == 0 {
		close(done)
		return done
	}

	// Detached from any request so that the caller returning does not cancel the actions.
	ctx := context.Background()

	go func() {
		defer close(done)

		var g errgroup.Group
		g.SetLimit(r.concurrency)

		for _, rec := range toConnect {
			g.Go(func() error {
				err := r.controller.Refresh(ctx, rec)
				metrics.RecordReconcileAction(metrics.ActionConnect, err == nil)
				if err != nil {
					r.logger.Warn("Connect failed", "id", rec.ID, "name", rec.Name, "error", err)
				}
				return nil
			})
		}

		for _, id := range toDisconnect {
			g.Go(func() error {
				err := r.controller.Disconnect(ctx, id)
				metrics.RecordReconcileAction(metrics.ActionDisconnect, err == nil)
				if err != nil {
					r.logger.Warn("Disconnect failed", "id", id, "error", err)
				}
				return nil
			})
		}

		_ = g.Wait()
	}()

	return done
}
