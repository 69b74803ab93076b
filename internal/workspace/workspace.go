// Package workspace hosts one reallocation editing session per collection
// opportunity: a ledger/history pair, a transaction manager, and the event
// surface the host UI subscribes to.
package workspace

import (
	"context"
	"log"
	"sync"

	"github.com/apogee-systems/passops/internal/autoplan"
	"github.com/apogee-systems/passops/internal/conflict"
	"github.com/apogee-systems/passops/internal/events"
	"github.com/apogee-systems/passops/internal/ledger"
	"github.com/apogee-systems/passops/internal/models"
	"github.com/apogee-systems/passops/internal/store"
	"github.com/apogee-systems/passops/internal/txn"
)

// Workspace owns the ephemeral editing state for one opportunity. It is
// created when the reallocation view opens and discarded on close; durable
// state lives entirely behind the injected BatchUpdater.
type Workspace struct {
	mu         sync.Mutex
	opp        models.CollectionOpportunity
	candidates []models.AvailablePass
	sites      []models.Site
	ledger     *ledger.Ledger
	manager    *txn.Manager
	emitter    events.Emitter
	conflicts  []models.Conflict
	closed     bool
}

// New opens a workspace. emitter may be nil; archiver may be nil.
func New(opp models.CollectionOpportunity, candidates []models.AvailablePass, sites []models.Site,
	updater store.BatchUpdater, emitter events.Emitter, archiver txn.Archiver) *Workspace {
	if emitter == nil {
		emitter = events.Nop{}
	}
	mgr := txn.New(opp.ID, updater)
	if archiver != nil {
		mgr.WithArchiver(archiver)
	}
	return &Workspace{
		opp:        opp,
		candidates: append([]models.AvailablePass(nil), candidates...),
		sites:      append([]models.Site(nil), sites...),
		ledger:     ledger.New(),
		manager:    mgr,
		emitter:    emitter,
	}
}

// Opportunity returns the opportunity with its derived match status and
// outstanding conflicts recomputed from the current ledger state.
func (w *Workspace) Opportunity() models.CollectionOpportunity {
	w.mu.Lock()
	defer w.mu.Unlock()
	opp := w.opp
	opp.Conflicts = append([]models.Conflict(nil), w.conflicts...)
	opp.MatchStatus = conflict.MatchStatusFor(w.ledger.Snapshot(), w.conflicts)
	return opp
}

// Candidates returns the upstream pass candidates for this opportunity.
func (w *Workspace) Candidates() []models.AvailablePass {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]models.AvailablePass(nil), w.candidates...)
}

// Sites returns the ground station inventory for this opportunity.
func (w *Workspace) Sites() []models.Site {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]models.Site(nil), w.sites...)
}

// Snapshot returns the current ledger state.
func (w *Workspace) Snapshot() ledger.Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.ledger.Snapshot()
}

// CanUndo reports whether an undo is available.
func (w *Workspace) CanUndo() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.ledger.History().CanUndo()
}

// CanRedo reports whether a redo is available.
func (w *Workspace) CanRedo() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.ledger.History().CanRedo()
}

// Allocate inserts or replaces the allocation for the candidate serving
// siteID. Conflicts detected for the candidate are recorded on the opportunity
// and announced, but do not block the edit; the resolution workflow clears
// them.
func (w *Workspace) Allocate(ctx context.Context, siteID string, count int) (ledger.Snapshot, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ledger.Snapshot{}, models.ErrWorkspaceClosed
	}
	candidate, ok := w.candidate(siteID)
	if !ok {
		return w.ledger.Snapshot(), models.NewValidationError("unknown-candidate",
			"no candidate pass for site %s", siteID)
	}

	detected := conflict.Detect(w.opp, w.ledger.Snapshot(), candidate)

	snap, err := w.ledger.Allocate(candidate, count)
	if err != nil {
		return snap, err
	}

	if len(detected) > 0 {
		w.conflicts = mergeConflicts(w.conflicts, detected)
		w.emitter.Emit(ctx, events.Event{
			Type:          events.TypeConflictDetected,
			OpportunityID: w.opp.ID,
			Payload:       detected,
		})
	}
	w.emitter.Emit(ctx, events.Event{
		Type:          events.TypeAllocated,
		OpportunityID: w.opp.ID,
		Payload:       mustGet(snap, siteID),
	})
	return snap, nil
}

// Adjust changes an allocated site's pass count by delta, clamped to the valid
// range. The second return is false when the clamped value equals the current
// one; no history entry or event is produced then.
func (w *Workspace) Adjust(ctx context.Context, siteID string, delta int) (ledger.Snapshot, bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ledger.Snapshot{}, false, models.ErrWorkspaceClosed
	}
	snap, changed, err := w.ledger.Adjust(siteID, delta)
	if err != nil || !changed {
		return snap, changed, err
	}
	w.emitter.Emit(ctx, events.Event{
		Type:          events.TypeAdjusted,
		OpportunityID: w.opp.ID,
		Payload:       mustGet(snap, siteID),
	})
	return snap, true, nil
}

// SetOverrideReason attaches justification text to an allocated site.
func (w *Workspace) SetOverrideReason(ctx context.Context, siteID, reason string) (ledger.Snapshot, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ledger.Snapshot{}, models.ErrWorkspaceClosed
	}
	snap, err := w.ledger.SetOverrideReason(siteID, reason)
	if err != nil {
		return snap, err
	}
	w.emitter.Emit(ctx, events.Event{
		Type:          events.TypeOverrideSet,
		OpportunityID: w.opp.ID,
		Payload:       mustGet(snap, siteID),
	})
	return snap, nil
}

// Remove deletes the allocation for a site.
func (w *Workspace) Remove(ctx context.Context, siteID string) (ledger.Snapshot, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ledger.Snapshot{}, models.ErrWorkspaceClosed
	}
	snap, err := w.ledger.Remove(siteID)
	if err != nil {
		return snap, err
	}
	w.emitter.Emit(ctx, events.Event{
		Type:          events.TypeRemoved,
		OpportunityID: w.opp.ID,
		Payload:       siteID,
	})
	return snap, nil
}

// AutoAllocate runs the heuristic over the workspace candidates and applies
// the proposal as one batch, undoable in a single step.
func (w *Workspace) AutoAllocate(ctx context.Context) (ledger.Snapshot, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ledger.Snapshot{}, models.ErrWorkspaceClosed
	}
	plan := autoplan.Plan(w.candidates)
	snap, err := w.ledger.ApplyAutoPlan(plan)
	if err != nil {
		return snap, err
	}
	w.emitter.Emit(ctx, events.Event{
		Type:          events.TypeAutoAllocated,
		OpportunityID: w.opp.ID,
		Payload:       plan,
	})
	return snap, nil
}

// Undo inverts the most recent change; reports false when there is none.
func (w *Workspace) Undo(ctx context.Context) (ledger.Snapshot, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ledger.Snapshot{}, false
	}
	snap, ok := w.ledger.Undo()
	if ok {
		w.emitter.Emit(ctx, events.Event{Type: events.TypeUndone, OpportunityID: w.opp.ID})
	}
	return snap, ok
}

// Redo re-applies the next undone change; reports false when there is none.
func (w *Workspace) Redo(ctx context.Context) (ledger.Snapshot, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ledger.Snapshot{}, false
	}
	snap, ok := w.ledger.Redo()
	if ok {
		w.emitter.Emit(ctx, events.Event{Type: events.TypeRedone, OpportunityID: w.opp.ID})
	}
	return snap, ok
}

// Resolve applies the operator's decision for one outstanding conflict. A
// successful resolution clears the conflict from the opportunity; an
// escalation additionally stamps the justification on the affected site's
// allocation as an undoable override edit.
func (w *Workspace) Resolve(ctx context.Context, req conflict.Request) (conflict.Outcome, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return conflict.Outcome{}, models.ErrWorkspaceClosed
	}
	outcome, err := conflict.Resolve(req)
	if err != nil {
		return conflict.Outcome{}, err
	}

	if outcome.Escalated {
		if _, ok := w.ledger.Snapshot().Get(req.Conflict.ConflictingID); ok {
			if _, err := w.ledger.SetOverrideReason(req.Conflict.ConflictingID, "escalated: "+outcome.Justification); err != nil {
				return conflict.Outcome{}, err
			}
		}
	}

	w.conflicts = dropConflict(w.conflicts, req.Conflict)
	w.emitter.Emit(ctx, events.Event{
		Type:          events.TypeConflictResolved,
		OpportunityID: w.opp.ID,
		Payload:       outcome,
	})
	return outcome, nil
}

// Pending returns the change set that a Commit would submit right now.
func (w *Workspace) Pending() []store.AllocationChange {
	w.mu.Lock()
	snap := w.ledger.Snapshot()
	w.mu.Unlock()
	return w.manager.Pending(snap)
}

// Commit submits the pending change set to the remote store. The workspace
// lock is not held across the network call, so editing continues while a
// commit is outstanding; those edits form the next pending set. If the
// workspace was closed while the commit was in flight, the result is dropped
// and logged, never applied.
func (w *Workspace) Commit(ctx context.Context) (store.ChangeBatch, error) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return store.ChangeBatch{}, models.ErrWorkspaceClosed
	}
	snap := w.ledger.Snapshot()
	w.mu.Unlock()

	batch, err := w.manager.Commit(ctx, snap)

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		log.Printf("[workspace] commit result for %s dropped: workspace closed (err=%v)", w.opp.ID, err)
		return store.ChangeBatch{}, models.ErrWorkspaceClosed
	}
	if err != nil {
		if _, ok := err.(*models.CommitFailure); ok {
			w.emitter.Emit(ctx, events.Event{
				Type:          events.TypeCommitFailed,
				OpportunityID: w.opp.ID,
				Payload:       err.Error(),
			})
		}
		return store.ChangeBatch{}, err
	}

	w.ledger.History().Clear()
	w.emitter.Emit(ctx, events.Event{
		Type:          events.TypeCommitted,
		OpportunityID: w.opp.ID,
		Payload:       batch,
	})
	return batch, nil
}

// Rollback discards all pending changes, restoring the last committed
// baseline and clearing history.
func (w *Workspace) Rollback(ctx context.Context) (ledger.Snapshot, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ledger.Snapshot{}, models.ErrWorkspaceClosed
	}
	baseline := w.manager.Rollback()
	w.ledger.Reset(baseline)
	w.conflicts = nil
	w.emitter.Emit(ctx, events.Event{Type: events.TypeRolledBack, OpportunityID: w.opp.ID})
	return w.ledger.Snapshot(), nil
}

// Close discards the workspace. Idempotent; an outstanding commit's result
// will be dropped when it resolves.
func (w *Workspace) Close(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.closed = true
	w.emitter.Emit(ctx, events.Event{Type: events.TypeWorkspaceClosed, OpportunityID: w.opp.ID})
}

func (w *Workspace) candidate(siteID string) (models.AvailablePass, bool) {
	for _, c := range w.candidates {
		if c.Site.ID == siteID {
			return c, true
		}
	}
	return models.AvailablePass{}, false
}

func mergeConflicts(existing, detected []models.Conflict) []models.Conflict {
	seen := map[models.Conflict]bool{}
	for _, c := range existing {
		seen[c] = true
	}
	for _, c := range detected {
		if !seen[c] {
			existing = append(existing, c)
			seen[c] = true
		}
	}
	return existing
}

func dropConflict(conflicts []models.Conflict, target models.Conflict) []models.Conflict {
	out := conflicts[:0]
	for _, c := range conflicts {
		if c != target {
			out = append(out, c)
		}
	}
	return out
}

func mustGet(snap ledger.Snapshot, siteID string) models.SiteAllocation {
	rec, _ := snap.Get(siteID)
	return rec
}
