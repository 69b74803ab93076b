package conflict

import (
	"github.com/apogee-systems/passops/internal/models"
)

// Decision is the operator's terminal choice for a detected conflict.
type Decision string

const (
	DecisionAccept   Decision = "accept"
	DecisionModify   Decision = "modify"
	DecisionEscalate Decision = "escalate"
)

// highRiskConfidenceFloor is the confidence percentage below which a
// resolution option is classified high risk.
const highRiskConfidenceFloor = 70

// Request carries one conflict, its scored options from the upstream scoring
// collaborator, and the operator's decision.
type Request struct {
	Conflict      models.Conflict
	Options       []models.ResolutionOption
	Decision      Decision
	SelectedID    string
	Justification string
}

// Outcome is the result of a resolution. Applied is nil for escalations, which
// record a marker instead of applying any impact.
type Outcome struct {
	Conflict      models.Conflict          `json:"conflict"`
	Applied       *models.ResolutionOption `json:"applied,omitempty"`
	Escalated     bool                     `json:"escalated"`
	Justification string                   `json:"justification,omitempty"`
}

// IsHighRisk classifies an option: low confidence or any projected remaining
// conflicts means the fix requires justification before it may be applied.
func IsHighRisk(opt models.ResolutionOption) bool {
	return opt.Impact.ConfidencePct < highRiskConfidenceFloor || opt.Impact.ProjectedConflicts > 0
}

// Resolve validates and applies the operator's decision.
func Resolve(req Request) (Outcome, error) {
	if err := validateOptions(req.Options); err != nil {
		return Outcome{}, err
	}

	switch req.Decision {
	case DecisionEscalate:
		if req.Justification == "" {
			return Outcome{}, &models.EscalationRequiredError{Reason: "escalation requires justification text"}
		}
		return Outcome{Conflict: req.Conflict, Escalated: true, Justification: req.Justification}, nil

	case DecisionAccept:
		opt := recommendedOption(req.Options)
		if opt == nil {
			opt = selectedOption(req.Options, req.SelectedID)
		}
		if opt == nil {
			return Outcome{}, models.NewValidationError("no-resolvable-option",
				"accept requires a recommended or explicitly selected option")
		}
		return applyOption(req, opt)

	case DecisionModify:
		opt := selectedOption(req.Options, req.SelectedID)
		if opt == nil {
			return Outcome{}, models.NewValidationError("no-resolvable-option",
				"modify requires an explicitly selected option")
		}
		if opt.Recommended {
			return Outcome{}, models.NewValidationError("recommended-via-modify",
				"option %s is the recommended fix; use accept", opt.ID)
		}
		return applyOption(req, opt)

	default:
		return Outcome{}, models.NewValidationError("unknown-decision", "decision %q not recognized", req.Decision)
	}
}

func applyOption(req Request, opt *models.ResolutionOption) (Outcome, error) {
	if IsHighRisk(*opt) && req.Justification == "" {
		return Outcome{}, &models.EscalationRequiredError{
			Reason: "high-risk resolution requires justification text",
		}
	}
	return Outcome{
		Conflict:      req.Conflict,
		Applied:       opt,
		Justification: req.Justification,
	}, nil
}

func validateOptions(options []models.ResolutionOption) error {
	recommended := 0
	for _, opt := range options {
		if opt.Recommended {
			recommended++
		}
	}
	if recommended > 1 {
		return models.NewValidationError("multiple-recommended",
			"%d options flagged recommended, at most one allowed", recommended)
	}
	return nil
}

func recommendedOption(options []models.ResolutionOption) *models.ResolutionOption {
	for i := range options {
		if options[i].Recommended {
			return &options[i]
		}
	}
	return nil
}

func selectedOption(options []models.ResolutionOption, id string) *models.ResolutionOption {
	if id == "" {
		return nil
	}
	for i := range options {
		if options[i].ID == id {
			return &options[i]
		}
	}
	return nil
}
