package daemon

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/mark3labs/mcp-go/mcp"
	"golang.org/x/sync/errgroup"

	"github.com/mozilla-ai/mcphub/internal/contracts"
	"github.com/mozilla-ai/mcphub/internal/domain"
	errorsint "github.com/mozilla-ai/mcphub/internal/errors"
	"github.com/mozilla-ai/mcphub/internal/metrics"
)

var _ contracts.MCPClientManager = (*ClientManager)(nil)

// ClientManager holds live client connections keyed by server ID.
// It is safe for concurrent use by multiple goroutines.
type ClientManager struct {
	mu          sync.RWMutex
	logger      hclog.Logger
	connector   Connector
	initTimeout time.Duration
	entries     map[string]*clientEntry
	now         func() time.Time
}

// clientEntry is the mutable state of a single live client, guarded by ClientManager.mu.
type clientEntry struct {
	id          string
	name        string
	status      domain.ClientStatus
	lastErr     string
	session     Session
	tools       []domain.ToolInfo
	lastChecked *time.Time

	// generation increases on every (re)connect so that stale results can be discarded.
	generation uint64
	connecting bool
	// pending is the newest record requested while a connect was in flight.
	pending *domain.ServerRecord
}

// NewClientManager creates an empty ClientManager which opens sessions with the given connector.
// initTimeout bounds each connect and initial tool listing.
func NewClientManager(logger hclog.Logger, connector Connector, initTimeout time.Duration) (*ClientManager, error) {
	if logger == nil || reflect.ValueOf(logger).IsNil() {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if connector == nil || reflect.ValueOf(connector).IsNil() {
		return nil, fmt.Errorf("connector cannot be nil")
	}
	if initTimeout <= 0 {
		return nil, fmt.Errorf("init timeout must be positive, got %v", initTimeout)
	}

	return &ClientManager{
		logger:      logger.Named("clients"),
		connector:   connector,
		initTimeout: initTimeout,
		entries:     make(map[string]*clientEntry),
		now:         func() time.Time { return time.Now().UTC() },
	}, nil
}

// Refresh connects the server described by rec, replacing any existing session for the same ID.
// When a connect for the same ID is already in flight the call returns immediately,
// and the in-flight attempt reconnects with rec once it settles if rec changed the name or config.
// The live client is recorded even when connecting fails, with a disconnected status and the error.
func (cm *ClientManager) Refresh(ctx context.Context, rec domain.ServerRecord) error {
	cm.mu.Lock()
	entry, ok := cm.entries[rec.ID]
	if ok && entry.connecting {
		entry.pending = &rec
		cm.mu.Unlock()
		cm.logger.Debug("Connect already in flight", "id", rec.ID, "name", rec.Name)
		return nil
	}
	if !ok {
		entry = &clientEntry{id: rec.ID}
		cm.entries[rec.ID] = entry
	}
	previous := entry.session
	entry.name = rec.Name
	entry.session = nil
	entry.tools = nil
	entry.lastErr = ""
	entry.status = domain.ClientStatusLoading
	entry.connecting = true
	entry.generation++
	generation := entry.generation
	cm.mu.Unlock()

	if previous != nil {
		if err := previous.Close(); err != nil {
			cm.logger.Warn("Error closing previous session", "id", rec.ID, "name", rec.Name, "error", err)
		}
	}

	connectCtx, cancel := context.WithTimeout(ctx, cm.initTimeout)
	defer cancel()

	session, tools, err := cm.connect(connectCtx, rec)
	metrics.RecordConnect(err == nil)

	cm.mu.Lock()
	current, ok := cm.entries[rec.ID]
	if !ok || current != entry || current.generation != generation {
		cm.mu.Unlock()
		// Disconnected or replaced while connecting.
		if session != nil {
			_ = session.Close()
		}
		cm.logger.Debug("Discarding superseded connect", "id", rec.ID, "name", rec.Name)
		return nil
	}

	pending := entry.pending
	entry.pending = nil
	now := cm.now()
	entry.connecting = false
	entry.lastChecked = &now
	if err != nil {
		entry.status = domain.ClientStatusDisconnected
		entry.lastErr = err.Error()
	} else {
		entry.status = domain.ClientStatusConnected
		entry.session = session
		entry.tools = tools
	}
	cm.mu.Unlock()
	cm.updateGauges()

	if err != nil {
		cm.logger.Error("Failed to connect MCP server", "id", rec.ID, "name", rec.Name, "error", err)
	} else {
		cm.logger.Info("MCP server connected", "id", rec.ID, "name", rec.Name, "tools", len(tools))
	}

	if pending != nil && changed(rec, *pending) {
		cm.logger.Debug("Reconnecting with updated record", "id", rec.ID, "name", pending.Name)
		return cm.Refresh(ctx, *pending)
	}

	if err != nil {
		return fmt.Errorf("connect '%s': %w", rec.Name, err)
	}
	return nil
}

// changed reports whether next describes a different server than prev.
func changed(prev domain.ServerRecord, next domain.ServerRecord) bool {
	return prev.Name != next.Name || !reflect.DeepEqual(prev.Config, next.Config)
}

func (cm *ClientManager) connect(ctx context.Context, rec domain.ServerRecord) (Session, []domain.ToolInfo, error) {
	session, err := cm.connector.Connect(ctx, rec)
	if err != nil {
		return nil, nil, err
	}

	tools, err := session.ListTools(ctx)
	if err != nil {
		_ = session.Close()
		return nil, nil, fmt.Errorf("list tools: %w", err)
	}

	return session, tools, nil
}

// Disconnect closes and forgets the client for the server ID.
// Disconnecting an unknown ID is a no-op.
func (cm *ClientManager) Disconnect(_ context.Context, id string) error {
	cm.mu.Lock()
	entry, ok := cm.entries[id]
	if ok {
		delete(cm.entries, id)
	}
	cm.mu.Unlock()

	if !ok {
		return nil
	}
	cm.updateGauges()

	cm.logger.Info("Disconnecting MCP server", "id", id, "name", entry.name)
	if entry.session == nil {
		return nil
	}
	if err := entry.session.Close(); err != nil {
		return fmt.Errorf("close '%s': %w", entry.name, err)
	}

	return nil
}

// Clients returns a snapshot of every live client ordered by name, then ID.
func (cm *ClientManager) Clients() []domain.LiveClient {
	cm.mu.RLock()
	clients := make([]domain.LiveClient, 0, len(cm.entries))
	for _, e := range cm.entries {
		clients = append(clients, e.snapshot())
	}
	cm.mu.RUnlock()

	slices.SortFunc(clients, func(a, b domain.LiveClient) int {
		if c := strings.Compare(a.Name, b.Name); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})

	return clients
}

// Client returns the live client for the given server ID.
// It returns a boolean to indicate whether the client was found.
func (cm *ClientManager) Client(id string) (domain.LiveClient, bool) {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	e, ok := cm.entries[id]
	if !ok {
		return domain.LiveClient{}, false
	}
	return e.snapshot(), true
}

// Tools returns the tools of every connected client keyed by domain.ToolKey.
func (cm *ClientManager) Tools() map[string]domain.ToolHandle {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	handles := make(map[string]domain.ToolHandle)
	for _, e := range cm.entries {
		if e.status != domain.ClientStatusConnected {
			continue
		}
		for _, t := range e.tools {
			h := domain.ToolHandle{
				ServerID:    e.id,
				ServerName:  e.name,
				ToolName:    t.Name,
				Description: t.Description,
				InputSchema: t.InputSchema,
			}
			handles[h.Key()] = h
		}
	}

	return handles
}

// CallTool invokes a tool on the connected client for the server ID and returns its text output.
func (cm *ClientManager) CallTool(ctx context.Context, serverID string, tool string, args map[string]any) (string, error) {
	cm.mu.RLock()
	e, ok := cm.entries[serverID]
	var session Session
	var name string
	if ok && e.status == domain.ClientStatusConnected {
		session = e.session
		name = e.name
	}
	cm.mu.RUnlock()

	if session == nil {
		return "", fmt.Errorf("%w: %s", errorsint.ErrClientNotConnected, serverID)
	}

	result, err := session.CallTool(ctx, tool, args)
	switch {
	case err != nil:
		return "", fmt.Errorf("%w: %s/%s: %w", errorsint.ErrToolCallFailed, name, tool, err)
	case result == nil:
		return "", fmt.Errorf("%w: %s/%s: result was nil", errorsint.ErrToolCallFailed, name, tool)
	case result.IsError:
		return "", fmt.Errorf("%w: %s/%s: %s", errorsint.ErrToolCallFailed, name, tool, extractMessage(result.Content))
	}

	return extractMessage(result.Content), nil
}

// PingAll pings every connected client concurrently, updating status and LastChecked.
// A failed ping marks the client disconnected; a later successful ping restores it.
func (cm *ClientManager) PingAll(ctx context.Context, timeout time.Duration) {
	type target struct {
		entry      *clientEntry
		session    Session
		generation uint64
	}

	cm.mu.RLock()
	targets := make([]target, 0, len(cm.entries))
	for _, e := range cm.entries {
		if e.session == nil || e.connecting {
			continue
		}
		targets = append(targets, target{entry: e, session: e.session, generation: e.generation})
	}
	cm.mu.RUnlock()

	var g errgroup.Group
	for _, t := range targets {
		g.Go(func() error {
			pingCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			err := t.session.Ping(pingCtx)
			metrics.RecordPing(err == nil)

			cm.mu.Lock()
			defer cm.mu.Unlock()
			if cm.entries[t.entry.id] != t.entry || t.entry.generation != t.generation {
				return nil
			}

			now := cm.now()
			t.entry.lastChecked = &now
			if err != nil {
				cm.logger.Warn("Error pinging MCP server", "id", t.entry.id, "name", t.entry.name, "error", err)
				t.entry.status = domain.ClientStatusDisconnected
				t.entry.lastErr = err.Error()
				return nil
			}

			cm.logger.Debug("Ping successful", "id", t.entry.id, "name", t.entry.name)
			t.entry.status = domain.ClientStatusConnected
			t.entry.lastErr = ""
			return nil
		})
	}
	_ = g.Wait()

	cm.updateGauges()
}

// CloseAll closes every session concurrently and forgets all clients.
// It returns the combined close errors.
func (cm *ClientManager) CloseAll(ctx context.Context) error {
	cm.mu.Lock()
	entries := cm.entries
	cm.entries = make(map[string]*clientEntry)
	cm.mu.Unlock()

	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs []error
	)
	for _, e := range entries {
		if e.session == nil {
			continue
		}
		g.Go(func() error {
			done := make(chan error, 1)
			go func() { done <- e.session.Close() }()

			var err error
			select {
			case err = <-done:
			case <-ctx.Done():
				err = ctx.Err()
			}
			if err != nil {
				cm.logger.Error("Error closing client connection to MCP server", "name", e.name, "error", err)
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", e.name, err))
				mu.Unlock()
				return nil
			}
			cm.logger.Info("Closed client connection to MCP server", "name", e.name)
			return nil
		})
	}
	_ = g.Wait()
	cm.updateGauges()

	return errors.Join(errs...)
}

// Len returns the number of live clients.
func (cm *ClientManager) Len() int {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return len(cm.entries)
}

func (cm *ClientManager) updateGauges() {
	counts := map[domain.ClientStatus]int{
		domain.ClientStatusConnected:    0,
		domain.ClientStatusDisconnected: 0,
		domain.ClientStatusLoading:      0,
		domain.ClientStatusAuthorizing:  0,
	}

	cm.mu.RLock()
	for _, e := range cm.entries {
		counts[e.status]++
	}
	cm.mu.RUnlock()

	for status, n := range counts {
		metrics.SetLiveClients(string(status), float64(n))
	}
}

func (e *clientEntry) snapshot() domain.LiveClient {
	tools := make([]domain.ToolInfo, len(e.tools))
	copy(tools, e.tools)

	var lastChecked *time.Time
	if e.lastChecked != nil {
		t := *e.lastChecked
		lastChecked = &t
	}

	return domain.LiveClient{
		ID:          e.id,
		Name:        e.name,
		Status:      e.status,
		Error:       e.lastErr,
		ToolInfo:    tools,
		LastChecked: lastChecked,
	}
}

// extractMessage attempts to extract a single message from content that is returned from a tool call.
func extractMessage(content []mcp.Content) string {
	for _, c := range content {
		if tc, ok := c.(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}
