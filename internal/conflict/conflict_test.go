package conflict_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apogee-systems/passops/internal/conflict"
	"github.com/apogee-systems/passops/internal/ledger"
	"github.com/apogee-systems/passops/internal/models"
)

func opportunity(capacity int) models.CollectionOpportunity {
	return models.CollectionOpportunity{
		ID:        "opp-1",
		Satellite: "SKY-7",
		Priority:  models.PriorityHigh,
		Capacity:  capacity,
	}
}

func TestDetectUpstreamConflicts(t *testing.T) {
	cand := models.AvailablePass{
		Site:      models.Site{ID: "svalbard"},
		PassCount: 2,
		Conflicts: []string{"overlaps opp-9 downlink", "site maintenance window"},
	}

	conflicts := conflict.Detect(opportunity(100), ledger.New().Snapshot(), cand)
	require.Len(t, conflicts, 2)
	assert.Equal(t, "opp-1", conflicts[0].OpportunityID)
	assert.Equal(t, "svalbard", conflicts[0].ConflictingID)
	assert.Equal(t, models.SeverityMedium, conflicts[0].Severity)
}

func TestDetectCapacityOverrun(t *testing.T) {
	l := ledger.New()
	_, err := l.Allocate(models.AvailablePass{Site: models.Site{ID: "a"}, PassCount: 8}, 8)
	require.NoError(t, err)

	cand := models.AvailablePass{Site: models.Site{ID: "b"}, PassCount: 5}

	conflicts := conflict.Detect(opportunity(10), l.Snapshot(), cand)
	require.Len(t, conflicts, 1)
	assert.Equal(t, models.SeverityHigh, conflicts[0].Severity)

	// Within capacity: clean.
	assert.Empty(t, conflict.Detect(opportunity(20), l.Snapshot(), cand))
}

func TestDetectOverrideReasonSuppressesCapacityConflict(t *testing.T) {
	l := ledger.New()
	_, err := l.Allocate(models.AvailablePass{Site: models.Site{ID: "a"}, PassCount: 8}, 8)
	require.NoError(t, err)
	_, err = l.SetOverrideReason("a", "approved surge")
	require.NoError(t, err)

	// Re-allocating the annotated site cannot raise a capacity conflict.
	cand := models.AvailablePass{Site: models.Site{ID: "a"}, PassCount: 15}
	assert.Empty(t, conflict.Detect(opportunity(10), l.Snapshot(), cand))
}

func TestDetectReallocationReplacesNotAdds(t *testing.T) {
	l := ledger.New()
	_, err := l.Allocate(models.AvailablePass{Site: models.Site{ID: "a"}, PassCount: 8}, 8)
	require.NoError(t, err)

	// Replacing 8 passes with 9 projects 9, not 17.
	cand := models.AvailablePass{Site: models.Site{ID: "a"}, PassCount: 9}
	assert.Empty(t, conflict.Detect(opportunity(10), l.Snapshot(), cand))
}

func option(id string, confidence float64, projected int, recommended bool) models.ResolutionOption {
	return models.ResolutionOption{
		ID:          id,
		Description: "shift to alternate site",
		Impact: models.ResolutionImpact{
			CapacityPct:        80,
			QualityPct:         90,
			ConfidencePct:      confidence,
			ProjectedConflicts: projected,
		},
		Recommended: recommended,
	}
}

func TestHighRiskClassification(t *testing.T) {
	assert.True(t, conflict.IsHighRisk(option("o", 65, 0, false)), "low confidence is high risk")
	assert.True(t, conflict.IsHighRisk(option("o", 90, 1, false)), "remaining conflicts are high risk")
	assert.True(t, conflict.IsHighRisk(option("o", 65, 1, false)))
	assert.False(t, conflict.IsHighRisk(option("o", 70, 0, false)))
	assert.False(t, conflict.IsHighRisk(option("o", 95, 0, false)))
}

func TestHighRiskRequiresJustification(t *testing.T) {
	c := models.Conflict{OpportunityID: "opp-1", ConflictingID: "a", Reason: "overlap"}
	opts := []models.ResolutionOption{option("risky", 65, 1, true)}

	_, err := conflict.Resolve(conflict.Request{Conflict: c, Options: opts, Decision: conflict.DecisionAccept})
	var ee *models.EscalationRequiredError
	require.True(t, errors.As(err, &ee))

	outcome, err := conflict.Resolve(conflict.Request{
		Conflict: c, Options: opts, Decision: conflict.DecisionAccept, Justification: "x",
	})
	require.NoError(t, err)
	require.NotNil(t, outcome.Applied)
	assert.Equal(t, "risky", outcome.Applied.ID)
	assert.Equal(t, "x", outcome.Justification)
}

func TestAcceptRequiresResolvableOption(t *testing.T) {
	c := models.Conflict{OpportunityID: "opp-1", ConflictingID: "a"}
	opts := []models.ResolutionOption{option("one", 90, 0, false), option("two", 85, 0, false)}

	_, err := conflict.Resolve(conflict.Request{Conflict: c, Options: opts, Decision: conflict.DecisionAccept})
	assert.True(t, models.IsValidation(err))

	// Explicit selection satisfies accept when nothing is recommended.
	outcome, err := conflict.Resolve(conflict.Request{
		Conflict: c, Options: opts, Decision: conflict.DecisionAccept, SelectedID: "two",
	})
	require.NoError(t, err)
	assert.Equal(t, "two", outcome.Applied.ID)
}

func TestAcceptPrefersRecommended(t *testing.T) {
	c := models.Conflict{OpportunityID: "opp-1", ConflictingID: "a"}
	opts := []models.ResolutionOption{option("plain", 90, 0, false), option("best", 95, 0, true)}

	outcome, err := conflict.Resolve(conflict.Request{Conflict: c, Options: opts, Decision: conflict.DecisionAccept})
	require.NoError(t, err)
	assert.Equal(t, "best", outcome.Applied.ID)
}

func TestModifyRequiresExplicitNonRecommendedSelection(t *testing.T) {
	c := models.Conflict{OpportunityID: "opp-1", ConflictingID: "a"}
	opts := []models.ResolutionOption{option("rec", 95, 0, true), option("alt", 90, 0, false)}

	_, err := conflict.Resolve(conflict.Request{Conflict: c, Options: opts, Decision: conflict.DecisionModify})
	assert.True(t, models.IsValidation(err))

	_, err = conflict.Resolve(conflict.Request{
		Conflict: c, Options: opts, Decision: conflict.DecisionModify, SelectedID: "rec",
	})
	assert.True(t, models.IsValidation(err), "recommended options go through accept")

	outcome, err := conflict.Resolve(conflict.Request{
		Conflict: c, Options: opts, Decision: conflict.DecisionModify, SelectedID: "alt",
	})
	require.NoError(t, err)
	assert.Equal(t, "alt", outcome.Applied.ID)
}

func TestEscalateRequiresJustification(t *testing.T) {
	c := models.Conflict{OpportunityID: "opp-1", ConflictingID: "a"}

	_, err := conflict.Resolve(conflict.Request{Conflict: c, Decision: conflict.DecisionEscalate})
	var ee *models.EscalationRequiredError
	require.True(t, errors.As(err, &ee))

	outcome, err := conflict.Resolve(conflict.Request{
		Conflict: c, Decision: conflict.DecisionEscalate, Justification: "ops director approval 2026-08-30",
	})
	require.NoError(t, err)
	assert.True(t, outcome.Escalated)
	assert.Nil(t, outcome.Applied, "escalation applies no impact")
}

func TestMultipleRecommendedRejected(t *testing.T) {
	c := models.Conflict{OpportunityID: "opp-1", ConflictingID: "a"}
	opts := []models.ResolutionOption{option("one", 95, 0, true), option("two", 90, 0, true)}

	_, err := conflict.Resolve(conflict.Request{Conflict: c, Options: opts, Decision: conflict.DecisionAccept})
	assert.True(t, models.IsValidation(err))
}
