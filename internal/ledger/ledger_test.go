package ledger_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apogee-systems/passops/internal/ledger"
	"github.com/apogee-systems/passops/internal/models"
)

func pass(siteID string, quality models.QualityTier, count int) models.AvailablePass {
	return models.AvailablePass{
		Site:          models.Site{ID: siteID, Name: "Station " + siteID, Code: siteID},
		Quality:       quality,
		PassCount:     count,
		CapacityUsed:  2,
		CapacityTotal: 10,
		MatchScore:    80,
	}
}

func TestAllocateInsertsAndReplaces(t *testing.T) {
	l := ledger.New()

	snap, err := l.Allocate(pass("svalbard", models.QualityExcellent, 8), 8)
	require.NoError(t, err)
	assert.Equal(t, 1, snap.Len())

	rec, ok := snap.Get("svalbard")
	require.True(t, ok)
	assert.Equal(t, 8, rec.Passes)
	assert.Equal(t, models.QualityExcellent, rec.Quality)

	// Allocating the same site again replaces, never duplicates.
	snap, err = l.Allocate(pass("svalbard", models.QualityGood, 5), 5)
	require.NoError(t, err)
	assert.Equal(t, 1, snap.Len())
	rec, _ = snap.Get("svalbard")
	assert.Equal(t, 5, rec.Passes)
}

func TestAllocateRejectsCountOutOfRange(t *testing.T) {
	l := ledger.New()

	_, err := l.Allocate(pass("kiruna", models.QualityGood, 25), 25)
	require.Error(t, err)
	assert.True(t, models.IsValidation(err))

	_, err = l.Allocate(pass("kiruna", models.QualityGood, 5), -1)
	require.Error(t, err)
	assert.True(t, models.IsValidation(err))

	// Nothing touched the ledger.
	assert.Equal(t, 0, l.Snapshot().Len())
	assert.False(t, l.History().CanUndo())
}

func TestAdjustClampsToBounds(t *testing.T) {
	l := ledger.New()
	_, err := l.Allocate(pass("fairbanks", models.QualityGood, 10), 10)
	require.NoError(t, err)

	snap, changed, err := l.Adjust("fairbanks", 100)
	require.NoError(t, err)
	assert.True(t, changed)
	rec, _ := snap.Get("fairbanks")
	assert.Equal(t, models.MaxPassesPerSite, rec.Passes)

	snap, changed, err = l.Adjust("fairbanks", -100)
	require.NoError(t, err)
	assert.True(t, changed)
	rec, _ = snap.Get("fairbanks")
	assert.Equal(t, 0, rec.Passes)
}

func TestAdjustNoOpWhenClampedValueUnchanged(t *testing.T) {
	l := ledger.New()
	_, err := l.Allocate(pass("fairbanks", models.QualityGood, 20), 20)
	require.NoError(t, err)
	historyLen := l.History().Len()

	_, changed, err := l.Adjust("fairbanks", 5)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, historyLen, l.History().Len(), "no-op adjust must not record history")
}

func TestAdjustUnknownSite(t *testing.T) {
	l := ledger.New()
	_, _, err := l.Adjust("nowhere", 1)
	require.Error(t, err)
	assert.True(t, models.IsValidation(err))
}

func TestRemoveAndUnknownRemove(t *testing.T) {
	l := ledger.New()
	_, err := l.Allocate(pass("hawaii", models.QualityFair, 3), 3)
	require.NoError(t, err)

	snap, err := l.Remove("hawaii")
	require.NoError(t, err)
	assert.Equal(t, 0, snap.Len())

	_, err = l.Remove("hawaii")
	require.Error(t, err)
	assert.True(t, models.IsValidation(err))
}

func TestTotalAllocatedPassesNeverDrifts(t *testing.T) {
	l := ledger.New()

	_, err := l.Allocate(pass("a", models.QualityExcellent, 8), 8)
	require.NoError(t, err)
	_, err = l.Allocate(pass("b", models.QualityGood, 6), 6)
	require.NoError(t, err)
	_, _, err = l.Adjust("a", -3)
	require.NoError(t, err)
	_, err = l.Remove("b")
	require.NoError(t, err)
	_, err = l.Allocate(pass("c", models.QualityFair, 4), 4)
	require.NoError(t, err)

	snap := l.Snapshot()
	sum := 0
	for _, rec := range snap.Records() {
		sum += rec.Passes
	}
	assert.Equal(t, sum, snap.TotalAllocatedPasses())
	assert.Equal(t, 9, snap.TotalAllocatedPasses())
}

func TestSnapshotsAreImmutable(t *testing.T) {
	l := ledger.New()
	_, err := l.Allocate(pass("a", models.QualityExcellent, 8), 8)
	require.NoError(t, err)
	before := l.Snapshot()

	_, _, err = l.Adjust("a", -5)
	require.NoError(t, err)

	rec, _ := before.Get("a")
	assert.Equal(t, 8, rec.Passes, "earlier snapshot must not observe later mutations")
	rec, _ = l.Snapshot().Get("a")
	assert.Equal(t, 3, rec.Passes)
}

func TestSetOverrideReason(t *testing.T) {
	l := ledger.New()
	_, err := l.Allocate(pass("a", models.QualityExcellent, 8), 8)
	require.NoError(t, err)

	snap, err := l.SetOverrideReason("a", "customer priority window")
	require.NoError(t, err)
	rec, _ := snap.Get("a")
	assert.Equal(t, "customer priority window", rec.OverrideReason)

	_, err = l.SetOverrideReason("missing", "x")
	require.Error(t, err)
	assert.True(t, models.IsValidation(err))
}
