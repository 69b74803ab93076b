// Package txn batches ledger mutations into pending change sets and commits
// them against the remote allocation store.
package txn

import (
	"context"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/apogee-systems/passops/internal/ledger"
	"github.com/apogee-systems/passops/internal/models"
	"github.com/apogee-systems/passops/internal/store"
)

// Archiver receives successfully committed batches for durable archival.
type Archiver interface {
	ArchiveBatch(ctx context.Context, batch store.ChangeBatch) error
}

// Manager tracks the committed baseline for one opportunity and submits the
// pending change set as one atomic batch. At most one commit may be in flight
// per opportunity; local editing is never blocked by an outstanding commit.
type Manager struct {
	opportunityID string
	updater       store.BatchUpdater
	archiver      Archiver

	mu       sync.Mutex
	inFlight bool
	baseline ledger.Snapshot
}

func New(opportunityID string, updater store.BatchUpdater) *Manager {
	return &Manager{opportunityID: opportunityID, updater: updater}
}

// WithArchiver attaches a best-effort archiver for committed batches.
func (m *Manager) WithArchiver(a Archiver) *Manager {
	m.archiver = a
	return m
}

// Baseline returns the last successfully committed ledger state.
func (m *Manager) Baseline() ledger.Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.baseline
}

// InFlight reports whether a commit is currently outstanding.
func (m *Manager) InFlight() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.inFlight
}

// Pending derives the change set between the committed baseline and the given
// ledger state. Sites removed since the baseline appear with zero passes.
func (m *Manager) Pending(current ledger.Snapshot) []store.AllocationChange {
	m.mu.Lock()
	baseline := m.baseline
	m.mu.Unlock()
	return diff(m.opportunityID, baseline, current)
}

// Commit submits the pending change set as one atomic batch.
//
// The pending set is captured before the network call; mutations made while
// the commit is outstanding form a new pending set for the next Commit. On
// success the captured state becomes the new baseline. On failure nothing
// changes locally, so retry is lossless.
func (m *Manager) Commit(ctx context.Context, current ledger.Snapshot) (store.ChangeBatch, error) {
	m.mu.Lock()
	if m.inFlight {
		m.mu.Unlock()
		return store.ChangeBatch{}, models.ErrCommitInFlight
	}
	pending := diff(m.opportunityID, m.baseline, current)
	if len(pending) == 0 {
		m.mu.Unlock()
		return store.ChangeBatch{}, models.ErrNothingToCommit
	}
	m.inFlight = true
	m.mu.Unlock()

	batch := store.ChangeBatch{
		ID:            uuid.New(),
		OpportunityID: m.opportunityID,
		SubmittedAt:   time.Now().UTC(),
		Changes:       pending,
	}

	err := m.updater.ApplyBatch(ctx, batch)

	m.mu.Lock()
	m.inFlight = false
	if err != nil {
		m.mu.Unlock()
		return store.ChangeBatch{}, &models.CommitFailure{Err: err}
	}
	m.baseline = current
	m.mu.Unlock()

	if m.archiver != nil {
		if err := m.archiver.ArchiveBatch(ctx, batch); err != nil {
			log.Printf("[txn] archive batch %s: %v", batch.ID, err)
		}
	}
	return batch, nil
}

// Rollback discards pending changes and returns the committed baseline for the
// caller to restore into the ledger.
func (m *Manager) Rollback() ledger.Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.baseline
}

func diff(opportunityID string, baseline, current ledger.Snapshot) []store.AllocationChange {
	var changes []store.AllocationChange
	for _, rec := range current.Records() {
		if base, ok := baseline.Get(rec.Site.ID); ok && base == rec {
			continue
		}
		changes = append(changes, store.AllocationChange{
			OpportunityID:    opportunityID,
			SiteID:           rec.Site.ID,
			Passes:           rec.Passes,
			TimeDistribution: rec.TimeDistribution,
			OverrideReason:   rec.OverrideReason,
		})
	}
	for _, base := range baseline.Records() {
		if _, ok := current.Get(base.Site.ID); ok {
			continue
		}
		changes = append(changes, store.AllocationChange{
			OpportunityID:    opportunityID,
			SiteID:           base.Site.ID,
			Passes:           0,
			TimeDistribution: base.TimeDistribution,
		})
	}
	sort.Slice(changes, func(i, j int) bool { return changes[i].SiteID < changes[j].SiteID })
	return changes
}
