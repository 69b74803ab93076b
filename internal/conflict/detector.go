// Package conflict detects allocation incompatibilities and applies operator
// resolution decisions.
package conflict

import (
	"fmt"

	"github.com/apogee-systems/passops/internal/ledger"
	"github.com/apogee-systems/passops/internal/models"
)

// Detect evaluates a candidate pass against the opportunity and the current
// ledger state. A candidate conflicts when the upstream source flagged it, or
// when allocating it would push the total past the opportunity's declared
// capacity with no override reason recorded for the site.
func Detect(opp models.CollectionOpportunity, snap ledger.Snapshot, candidate models.AvailablePass) []models.Conflict {
	var conflicts []models.Conflict
	for _, reason := range candidate.Conflicts {
		conflicts = append(conflicts, models.Conflict{
			OpportunityID: opp.ID,
			ConflictingID: candidate.Site.ID,
			Reason:        reason,
			Severity:      models.SeverityMedium,
		})
	}

	projected := snap.TotalAllocatedPasses() + candidate.PassCount
	if existing, ok := snap.Get(candidate.Site.ID); ok {
		// Re-allocating a site replaces its record rather than adding to it.
		projected -= existing.Passes
		if existing.OverrideReason != "" {
			return conflicts
		}
	}
	if projected > opp.Capacity {
		conflicts = append(conflicts, models.Conflict{
			OpportunityID: opp.ID,
			ConflictingID: candidate.Site.ID,
			Reason: fmt.Sprintf("allocation would use %d of %d declared capacity without override",
				projected, opp.Capacity),
			Severity: models.SeverityHigh,
		})
	}
	return conflicts
}

// MatchStatusFor derives the opportunity's match status from the ledger state
// and any outstanding conflicts.
func MatchStatusFor(snap ledger.Snapshot, conflicts []models.Conflict) models.MatchStatus {
	if snap.Len() == 0 {
		return models.MatchUnmatched
	}
	if len(conflicts) > 0 {
		return models.MatchSuboptimal
	}
	return models.MatchBaseline
}
