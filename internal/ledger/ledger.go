package ledger

import (
	"sort"

	"github.com/apogee-systems/passops/internal/models"
)

// DefaultTimeDistribution labels allocations that spread passes evenly across
// the collection window; the remote store expects a label on every change.
const DefaultTimeDistribution = "balanced"

// Snapshot is an immutable view of the ledger at one version. Mutating ledger
// operations return a fresh Snapshot; existing snapshots never change.
type Snapshot struct {
	records map[string]models.SiteAllocation
}

// Get returns the allocation record for a site, if present.
func (s Snapshot) Get(siteID string) (models.SiteAllocation, bool) {
	rec, ok := s.records[siteID]
	return rec, ok
}

// Records returns all allocation records sorted by site identifier.
func (s Snapshot) Records() []models.SiteAllocation {
	out := make([]models.SiteAllocation, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Site.ID < out[j].Site.ID })
	return out
}

// Len reports the number of allocated sites.
func (s Snapshot) Len() int {
	return len(s.records)
}

// TotalAllocatedPasses sums the pass counts of all records. Always derived,
// never stored, so it cannot drift from the records.
func (s Snapshot) TotalAllocatedPasses() int {
	total := 0
	for _, rec := range s.records {
		total += rec.Passes
	}
	return total
}

func (s Snapshot) clone() map[string]models.SiteAllocation {
	next := make(map[string]models.SiteAllocation, len(s.records))
	for k, v := range s.records {
		next[k] = v
	}
	return next
}

// Ledger is the authoritative site→allocation mapping for one collection
// opportunity being edited. It owns the change history; every mutating call
// appends a ChangeRecord unless it arrives through the undo/redo replay path.
//
// Ledger is not safe for concurrent use; the owning workspace serializes
// access, matching the single-threaded editing model.
type Ledger struct {
	current Snapshot
	history *History
}

func New() *Ledger {
	return &Ledger{
		current: Snapshot{records: map[string]models.SiteAllocation{}},
		history: NewHistory(),
	}
}

// Snapshot returns the current immutable state.
func (l *Ledger) Snapshot() Snapshot {
	return l.current
}

// History exposes the change history stack.
func (l *Ledger) History() *History {
	return l.history
}

// Reset replaces the ledger state with the given snapshot and clears history.
// Used by rollback to restore the committed baseline.
func (l *Ledger) Reset(snap Snapshot) {
	l.current = Snapshot{records: snap.clone()}
	l.history.Clear()
}

// Allocate inserts or replaces the record for pass.Site with the given count.
func (l *Ledger) Allocate(pass models.AvailablePass, count int) (Snapshot, error) {
	if count < 0 || count > models.MaxPassesPerSite {
		return l.current, models.NewValidationError("pass-count-range",
			"count %d outside [0, %d]", count, models.MaxPassesPerSite)
	}
	next := models.SiteAllocation{
		Site:             pass.Site,
		Passes:           count,
		CapacityUsed:     pass.CapacityUsed,
		CapacityTotal:    pass.CapacityTotal,
		Quality:          pass.Quality,
		TimeDistribution: DefaultTimeDistribution,
	}
	delta := SiteDelta{SiteID: pass.Site.ID, Prev: l.prev(pass.Site.ID), Next: &next}
	return l.commit(newRecord(ChangeAllocate, delta)), nil
}

// Adjust changes the pass count for an allocated site by delta, clamping the
// result to [0, MaxPassesPerSite]. When the clamped value equals the current
// value the call is a reported no-op: the second return is false and no
// history entry is produced.
func (l *Ledger) Adjust(siteID string, delta int) (Snapshot, bool, error) {
	rec, ok := l.current.Get(siteID)
	if !ok {
		return l.current, false, models.NewValidationError("unknown-site",
			"site %s has no allocation to adjust", siteID)
	}
	clamped := clampPasses(rec.Passes + delta)
	if clamped == rec.Passes {
		return l.current, false, nil
	}
	next := rec
	next.Passes = clamped
	change := SiteDelta{SiteID: siteID, Prev: &rec, Next: &next}
	return l.commit(newRecord(ChangeAdjust, change)), true, nil
}

// SetOverrideReason attaches justification text to an allocated site.
func (l *Ledger) SetOverrideReason(siteID, reason string) (Snapshot, error) {
	rec, ok := l.current.Get(siteID)
	if !ok {
		return l.current, models.NewValidationError("unknown-site",
			"site %s has no allocation to annotate", siteID)
	}
	next := rec
	next.OverrideReason = reason
	delta := SiteDelta{SiteID: siteID, Prev: &rec, Next: &next}
	return l.commit(newRecord(ChangeOverrideReason, delta)), nil
}

// Remove deletes the record for a site.
func (l *Ledger) Remove(siteID string) (Snapshot, error) {
	rec, ok := l.current.Get(siteID)
	if !ok {
		return l.current, models.NewValidationError("unknown-site",
			"site %s has no allocation to remove", siteID)
	}
	delta := SiteDelta{SiteID: siteID, Prev: &rec, Next: nil}
	return l.commit(newRecord(ChangeRemove, delta)), nil
}

// ApplyAutoPlan merges a heuristic proposal into the ledger as one
// auto-allocate record, so a single undo reverts the entire batch.
func (l *Ledger) ApplyAutoPlan(allocs []models.SiteAllocation) (Snapshot, error) {
	if len(allocs) == 0 {
		return l.current, models.NewValidationError("empty-plan", "auto-allocation produced no candidates")
	}
	deltas := make([]SiteDelta, 0, len(allocs))
	seen := map[string]bool{}
	for _, alloc := range allocs {
		if alloc.Passes < 0 || alloc.Passes > models.MaxPassesPerSite {
			return l.current, models.NewValidationError("pass-count-range",
				"count %d outside [0, %d]", alloc.Passes, models.MaxPassesPerSite)
		}
		if seen[alloc.Site.ID] {
			return l.current, models.NewValidationError("duplicate-site",
				"plan contains site %s twice", alloc.Site.ID)
		}
		seen[alloc.Site.ID] = true
		next := alloc
		deltas = append(deltas, SiteDelta{SiteID: alloc.Site.ID, Prev: l.prev(alloc.Site.ID), Next: &next})
	}
	return l.commit(newRecord(ChangeAutoAllocate, deltas...)), nil
}

// Undo inverts the most recent change. Reports false when there is nothing to
// undo. The inversion runs through the suppressed-history path so the ledger
// and history never diverge.
func (l *Ledger) Undo() (Snapshot, bool) {
	rec, ok := l.history.stepBack()
	if !ok {
		return l.current, false
	}
	l.apply(rec.Deltas, false)
	return l.current, true
}

// Redo re-applies the next change after the current index, if any.
func (l *Ledger) Redo() (Snapshot, bool) {
	rec, ok := l.history.stepForward()
	if !ok {
		return l.current, false
	}
	l.apply(rec.Deltas, true)
	return l.current, true
}

func (l *Ledger) prev(siteID string) *models.SiteAllocation {
	if rec, ok := l.current.Get(siteID); ok {
		return &rec
	}
	return nil
}

func (l *Ledger) commit(rec ChangeRecord) Snapshot {
	l.apply(rec.Deltas, true)
	l.history.Push(rec)
	return l.current
}

// apply is the single mutation path. forward applies each delta's Next state;
// !forward restores Prev. History is never touched here.
func (l *Ledger) apply(deltas []SiteDelta, forward bool) {
	next := l.current.clone()
	for _, d := range deltas {
		target := d.Next
		if !forward {
			target = d.Prev
		}
		if target == nil {
			delete(next, d.SiteID)
			continue
		}
		next[d.SiteID] = *target
	}
	l.current = Snapshot{records: next}
}

func clampPasses(n int) int {
	if n < 0 {
		return 0
	}
	if n > models.MaxPassesPerSite {
		return models.MaxPassesPerSite
	}
	return n
}
