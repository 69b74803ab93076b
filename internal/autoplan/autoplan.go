// Package autoplan proposes an allocation from upstream pass candidates.
package autoplan

import (
	"sort"

	"github.com/apogee-systems/passops/internal/ledger"
	"github.com/apogee-systems/passops/internal/models"
)

// OverrideReasonAuto marks allocations produced by the heuristic so the audit
// trail can distinguish them from manual edits.
const OverrideReasonAuto = "auto-allocated: best available passes"

const (
	maxSites         = 3
	maxPassesPerPick = 10
)

// Plan selects up to three recommended candidates, best quality first with
// match score breaking ties, and allocates min(10, passCount) passes each.
// Pure and deterministic: identical candidate input yields identical output.
func Plan(candidates []models.AvailablePass) []models.SiteAllocation {
	picks := make([]models.AvailablePass, 0, len(candidates))
	for _, c := range candidates {
		if c.Recommended {
			picks = append(picks, c)
		}
	}
	sort.SliceStable(picks, func(i, j int) bool {
		if picks[i].Quality.Rank() != picks[j].Quality.Rank() {
			return picks[i].Quality.Rank() < picks[j].Quality.Rank()
		}
		return picks[i].MatchScore > picks[j].MatchScore
	})
	if len(picks) > maxSites {
		picks = picks[:maxSites]
	}

	allocs := make([]models.SiteAllocation, 0, len(picks))
	for _, c := range picks {
		passes := c.PassCount
		if passes > maxPassesPerPick {
			passes = maxPassesPerPick
		}
		allocs = append(allocs, models.SiteAllocation{
			Site:             c.Site,
			Passes:           passes,
			CapacityUsed:     c.CapacityUsed,
			CapacityTotal:    c.CapacityTotal,
			Quality:          c.Quality,
			TimeDistribution: ledger.DefaultTimeDistribution,
			OverrideReason:   OverrideReasonAuto,
		})
	}
	return allocs
}
