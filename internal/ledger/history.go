package ledger

import (
	"time"

	"github.com/google/uuid"

	"github.com/apogee-systems/passops/internal/models"
)

// ChangeKind discriminates the mutation variants a ChangeRecord can carry.
type ChangeKind string

const (
	ChangeAllocate       ChangeKind = "allocate"
	ChangeAdjust         ChangeKind = "adjust"
	ChangeOverrideReason ChangeKind = "override-reason"
	ChangeAutoAllocate   ChangeKind = "auto-allocate"
	ChangeRemove         ChangeKind = "remove"
)

// SiteDelta records the before/after state of one site so a ChangeRecord can
// be both re-applied and inverted. Prev is nil when the site had no record;
// Next is nil when the mutation removes it.
type SiteDelta struct {
	SiteID string
	Prev   *models.SiteAllocation
	Next   *models.SiteAllocation
}

// ChangeRecord is one undoable/redoable mutation. Every kind carries exactly
// one delta except auto-allocate, which batches its sites so a single undo
// reverts the whole proposal.
type ChangeRecord struct {
	ID     uuid.UUID
	Kind   ChangeKind
	At     time.Time
	Deltas []SiteDelta
}

func newRecord(kind ChangeKind, deltas ...SiteDelta) ChangeRecord {
	return ChangeRecord{
		ID:     uuid.New(),
		Kind:   kind,
		At:     time.Now().UTC(),
		Deltas: deltas,
	}
}

// History is a sequence of ChangeRecords with a current index. The index
// points at the most recently applied record, -1 when nothing is applied.
type History struct {
	entries []ChangeRecord
	index   int
}

func NewHistory() *History {
	return &History{index: -1}
}

// Push appends a record, discarding any redo future beyond the current index.
func (h *History) Push(rec ChangeRecord) {
	h.entries = append(h.entries[:h.index+1], rec)
	h.index++
}

func (h *History) CanUndo() bool {
	return h.index >= 0
}

func (h *History) CanRedo() bool {
	return h.index < len(h.entries)-1
}

// Len reports how many records are currently retained (applied or redoable).
func (h *History) Len() int {
	return len(h.entries)
}

// Clear drops all records; used after a successful commit or a rollback.
func (h *History) Clear() {
	h.entries = nil
	h.index = -1
}

// stepBack returns the record to invert and moves the index before it.
func (h *History) stepBack() (ChangeRecord, bool) {
	if !h.CanUndo() {
		return ChangeRecord{}, false
	}
	rec := h.entries[h.index]
	h.index--
	return rec, true
}

// stepForward returns the record to re-apply and moves the index onto it.
func (h *History) stepForward() (ChangeRecord, bool) {
	if !h.CanRedo() {
		return ChangeRecord{}, false
	}
	h.index++
	return h.entries[h.index], true
}
