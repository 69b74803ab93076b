package workspace

import (
	"context"
	"sync"

	"github.com/apogee-systems/passops/internal/events"
	"github.com/apogee-systems/passops/internal/models"
	"github.com/apogee-systems/passops/internal/store"
	"github.com/apogee-systems/passops/internal/txn"
)

// Registry tracks open workspaces by opportunity id so a host surface can
// route requests. Each opportunity has at most one open workspace; workspaces
// share nothing, so the registry lock only guards the map.
type Registry struct {
	updater  store.BatchUpdater
	emitter  events.Emitter
	archiver txn.Archiver

	mu   sync.Mutex
	open map[string]*Workspace
}

func NewRegistry(updater store.BatchUpdater, emitter events.Emitter, archiver txn.Archiver) *Registry {
	return &Registry{
		updater:  updater,
		emitter:  emitter,
		archiver: archiver,
		open:     map[string]*Workspace{},
	}
}

// Open creates a workspace for the opportunity. Rejected when one is already open.
func (r *Registry) Open(opp models.CollectionOpportunity, candidates []models.AvailablePass, sites []models.Site) (*Workspace, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.open[opp.ID]; exists {
		return nil, models.NewValidationError("workspace-open",
			"workspace already open for opportunity %s", opp.ID)
	}
	ws := New(opp, candidates, sites, r.updater, r.emitter, r.archiver)
	r.open[opp.ID] = ws
	return ws, nil
}

// Get returns the open workspace for an opportunity, if any.
func (r *Registry) Get(opportunityID string) (*Workspace, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ws, ok := r.open[opportunityID]
	return ws, ok
}

// Close discards the workspace for an opportunity. Closing an opportunity with
// no open workspace is a no-op.
func (r *Registry) Close(ctx context.Context, opportunityID string) {
	r.mu.Lock()
	ws, ok := r.open[opportunityID]
	delete(r.open, opportunityID)
	r.mu.Unlock()
	if ok {
		ws.Close(ctx)
	}
}
