package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apogee-systems/passops/internal/store"
)

func batch(changes ...store.AllocationChange) store.ChangeBatch {
	return store.ChangeBatch{
		ID:            uuid.New(),
		OpportunityID: "opp-1",
		SubmittedAt:   time.Now().UTC(),
		Changes:       changes,
	}
}

func TestApplyBatchUpsertsAndRemoves(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	b := batch(
		store.AllocationChange{OpportunityID: "opp-1", SiteID: "a", Passes: 5, TimeDistribution: "balanced"},
		store.AllocationChange{OpportunityID: "opp-1", SiteID: "b", Passes: 0, TimeDistribution: "balanced"},
	)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO allocation_batches").
		WithArgs(b.ID, "opp-1", 2, b.SubmittedAt).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO site_allocations").
		WithArgs("opp-1", "a", 5, "balanced", "", b.ID).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("DELETE FROM site_allocations").
		WithArgs("opp-1", "b").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	pg := store.NewPGStore(db)
	require.NoError(t, pg.ApplyBatch(context.Background(), b))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyBatchRollsBackOnFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	b := batch(store.AllocationChange{OpportunityID: "opp-1", SiteID: "a", Passes: 5, TimeDistribution: "balanced"})

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO allocation_batches").
		WillReturnError(errors.New("constraint violation"))
	mock.ExpectRollback()

	pg := store.NewPGStore(db)
	err = pg.ApplyBatch(context.Background(), b)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert batch")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMemoryStoreTracksState(t *testing.T) {
	mem := store.NewMemoryStore()
	ctx := context.Background()

	first := batch(
		store.AllocationChange{OpportunityID: "opp-1", SiteID: "a", Passes: 5},
		store.AllocationChange{OpportunityID: "opp-1", SiteID: "b", Passes: 3},
	)
	require.NoError(t, mem.ApplyBatch(ctx, first))

	second := batch(store.AllocationChange{OpportunityID: "opp-1", SiteID: "b", Passes: 0})
	require.NoError(t, mem.ApplyBatch(ctx, second))

	allocs := mem.Allocations(ctx, "opp-1")
	require.Len(t, allocs, 1)
	assert.Equal(t, "a", allocs[0].SiteID)
	assert.Equal(t, 2, mem.BatchCount())

	_, err := mem.GetBatch(ctx, uuid.New())
	assert.ErrorIs(t, err, store.ErrNotFound)
}
