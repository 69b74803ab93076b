package autoplan_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apogee-systems/passops/internal/autoplan"
	"github.com/apogee-systems/passops/internal/models"
)

func candidate(siteID string, quality models.QualityTier, score, passCount int, recommended bool) models.AvailablePass {
	return models.AvailablePass{
		Site:        models.Site{ID: siteID, Name: "Station " + siteID, Code: siteID},
		Quality:     quality,
		PassCount:   passCount,
		MatchScore:  score,
		Recommended: recommended,
	}
}

func TestPlanSelectsTopThreeRecommended(t *testing.T) {
	candidates := []models.AvailablePass{
		{Site: models.Site{ID: "A"}, Quality: models.QualityExcellent, MatchScore: 95, PassCount: 12, Recommended: true},
		{Site: models.Site{ID: "B"}, Quality: models.QualityGood, MatchScore: 80, PassCount: 6, Recommended: true},
		{Site: models.Site{ID: "C"}, Quality: models.QualityFair, MatchScore: 60, PassCount: 4, Recommended: true},
		{Site: models.Site{ID: "D"}, Quality: models.QualityPoor, MatchScore: 40, PassCount: 8},
	}

	allocs := autoplan.Plan(candidates)
	require.Len(t, allocs, 3)

	assert.Equal(t, "A", allocs[0].Site.ID)
	assert.Equal(t, "B", allocs[1].Site.ID)
	assert.Equal(t, "C", allocs[2].Site.ID)

	// min(10, passCount) each.
	assert.Equal(t, 10, allocs[0].Passes)
	assert.Equal(t, 6, allocs[1].Passes)
	assert.Equal(t, 4, allocs[2].Passes)

	for _, a := range allocs {
		assert.Equal(t, autoplan.OverrideReasonAuto, a.OverrideReason)
	}
}

func TestPlanQualityOrderWithScoreTieBreak(t *testing.T) {
	candidates := []models.AvailablePass{
		candidate("low-score-excellent", models.QualityExcellent, 50, 5, true),
		candidate("good-high", models.QualityGood, 99, 5, true),
		candidate("good-low", models.QualityGood, 70, 5, true),
		candidate("excellent", models.QualityExcellent, 90, 5, true),
	}

	allocs := autoplan.Plan(candidates)
	require.Len(t, allocs, 3)
	assert.Equal(t, "excellent", allocs[0].Site.ID)
	assert.Equal(t, "low-score-excellent", allocs[1].Site.ID)
	assert.Equal(t, "good-high", allocs[2].Site.ID)
}

func TestPlanIsDeterministic(t *testing.T) {
	candidates := []models.AvailablePass{
		candidate("a", models.QualityGood, 80, 12, true),
		candidate("b", models.QualityGood, 80, 3, true),
		candidate("c", models.QualityExcellent, 95, 20, true),
		candidate("d", models.QualityFair, 60, 1, true),
	}

	first := autoplan.Plan(candidates)
	for i := 0; i < 50; i++ {
		assert.Equal(t, first, autoplan.Plan(candidates))
	}
	// Equal scores keep input order (stable sort).
	assert.Equal(t, "c", first[0].Site.ID)
	assert.Equal(t, "a", first[1].Site.ID)
	assert.Equal(t, "b", first[2].Site.ID)
}

func TestPlanIgnoresUnrecommended(t *testing.T) {
	candidates := []models.AvailablePass{
		candidate("a", models.QualityExcellent, 95, 5, false),
		candidate("b", models.QualityPoor, 10, 5, true),
	}
	allocs := autoplan.Plan(candidates)
	require.Len(t, allocs, 1)
	assert.Equal(t, "b", allocs[0].Site.ID)
}

func TestPlanEmptyInput(t *testing.T) {
	assert.Empty(t, autoplan.Plan(nil))
}
