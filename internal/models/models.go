package models

import "time"

// Priority orders collection opportunities for scheduling decisions.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

var priorityWeights = map[Priority]int{
	PriorityLow:      1,
	PriorityMedium:   2,
	PriorityHigh:     3,
	PriorityCritical: 4,
}

// Weight returns the numeric weight of the priority; unknown priorities weigh 0.
func (p Priority) Weight() int {
	return priorityWeights[p]
}

// MatchStatus summarizes how well an opportunity's current allocations satisfy it.
type MatchStatus string

const (
	MatchBaseline   MatchStatus = "baseline"
	MatchSuboptimal MatchStatus = "suboptimal"
	MatchUnmatched  MatchStatus = "unmatched"
)

// QualityTier ranks candidate passes. Lower rank is better.
type QualityTier string

const (
	QualityExcellent QualityTier = "excellent"
	QualityGood      QualityTier = "good"
	QualityFair      QualityTier = "fair"
	QualityPoor      QualityTier = "poor"
)

var qualityRanks = map[QualityTier]int{
	QualityExcellent: 0,
	QualityGood:      1,
	QualityFair:      2,
	QualityPoor:      3,
}

// Rank returns the sort rank of the tier; unknown tiers sort last.
func (q QualityTier) Rank() int {
	if r, ok := qualityRanks[q]; ok {
		return r
	}
	return len(qualityRanks)
}

// Severity grades a detected conflict.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// CollectionOpportunity is the unit being allocated. The engine never mutates
// it except to recompute MatchStatus and Conflicts.
type CollectionOpportunity struct {
	ID          string      `json:"id"`
	Satellite   string      `json:"satellite"`
	Priority    Priority    `json:"priority"`
	Capacity    int         `json:"capacity"`
	MatchStatus MatchStatus `json:"matchStatus"`
	Conflicts   []Conflict  `json:"conflicts,omitempty"`
}

// Site is a ground station candidate from the upstream inventory source.
type Site struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	Code              string `json:"code"`
	RemainingCapacity int    `json:"remainingCapacity"`
}

// AvailablePass is a candidate allocation produced by the upstream
// pass-geometry source. Read-only to the engine.
type AvailablePass struct {
	Site          Site          `json:"site"`
	Quality       QualityTier   `json:"quality"`
	PassCount     int           `json:"passCount"`
	TotalDuration time.Duration `json:"totalDuration"`
	PeakElevation float64       `json:"peakElevation"`
	CapacityUsed  int           `json:"capacityUsed"`
	CapacityTotal int           `json:"capacityTotal"`
	Conflicts     []string      `json:"conflicts,omitempty"`
	MatchScore    int           `json:"matchScore"`
	Recommended   bool          `json:"recommended"`
}

// MaxPassesPerSite bounds the allocated pass count of a single site.
const MaxPassesPerSite = 20

// SiteAllocation is the ledger's unit of truth, keyed uniquely by Site.ID.
type SiteAllocation struct {
	Site             Site        `json:"site"`
	Passes           int         `json:"passes"`
	CapacityUsed     int         `json:"capacityUsed"`
	CapacityTotal    int         `json:"capacityTotal"`
	Quality          QualityTier `json:"quality"`
	TimeDistribution string      `json:"timeDistribution,omitempty"`
	OverrideReason   string      `json:"overrideReason,omitempty"`
}

// Conflict is a detected incompatibility for an opportunity.
type Conflict struct {
	OpportunityID string   `json:"opportunityId"`
	ConflictingID string   `json:"conflictingId"`
	Reason        string   `json:"reason"`
	Severity      Severity `json:"severity"`
}

// ResolutionImpact carries the scored consequences of applying an option.
type ResolutionImpact struct {
	CapacityPct        float64 `json:"capacityPct"`
	QualityPct         float64 `json:"qualityPct"`
	ConfidencePct      float64 `json:"confidencePct"`
	ProjectedConflicts int     `json:"projectedConflicts"`
}

// ResolutionOption is one candidate fix for a conflict. At most one option per
// conflict carries Recommended=true; that contract is enforced at resolution time.
type ResolutionOption struct {
	ID          string           `json:"id"`
	Description string           `json:"description"`
	Impact      ResolutionImpact `json:"impact"`
	Recommended bool             `json:"recommended"`
}
