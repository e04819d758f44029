package models

import dErrors "dossierflow/pkg/domain-errors"

// DossierStatus is the closed enumeration over a dossier's lifecycle. All
// transition checks go through CanTransitionTo; nothing compares raw strings.
type DossierStatus string

const (
	StatusEligible        DossierStatus = "eligible"
	StatusExpertAssigned  DossierStatus = "expert_assigned"
	StatusInProgress      DossierStatus = "in_progress"
	StatusValidated       DossierStatus = "validated"
	StatusRejected        DossierStatus = "rejected"
	StatusRefundCompleted DossierStatus = "refund_completed"
)

// dossierTransitions is the single source of truth for legal status moves.
// Every status except refund_completed may additionally move to rejected.
var dossierTransitions = map[DossierStatus][]DossierStatus{
	StatusEligible:        {StatusExpertAssigned, StatusRejected},
	StatusExpertAssigned:  {StatusInProgress, StatusRejected},
	StatusInProgress:      {StatusValidated, StatusRejected},
	StatusValidated:       {StatusRefundCompleted, StatusRejected},
	StatusRejected:        {},
	StatusRefundCompleted: {},
}

// CanTransitionTo reports whether moving from s to target is legal.
func (s DossierStatus) CanTransitionTo(target DossierStatus) bool {
	for _, allowed := range dossierTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the dossier is read-only (administrative note
// fields excepted).
func (s DossierStatus) IsTerminal() bool {
	return s == StatusRejected || s == StatusRefundCompleted
}

// IsActive reports whether steps may still be worked on.
func (s DossierStatus) IsActive() bool {
	return s == StatusExpertAssigned || s == StatusInProgress
}

// StepType classifies a unit of work.
type StepType string

const (
	StepValidation    StepType = "validation"
	StepDocumentation StepType = "documentation"
	StepExpertise     StepType = "expertise"
	StepApproval      StepType = "approval"
	StepPayment       StepType = "payment"
)

// StepStatus is the stored status of a step. "overdue" is deliberately
// absent: it is a read-time projection (see Dossier.OverdueSteps), never a
// stored state.
type StepStatus string

const (
	StepPending    StepStatus = "pending"
	StepInProgress StepStatus = "in_progress"
	StepCompleted  StepStatus = "completed"
	StepBlocked    StepStatus = "blocked"
)

// stepTransitions: pending→in_progress→completed, anything non-terminal may
// block, and unblocking always returns to pending to force re-pickup.
var stepTransitions = map[StepStatus][]StepStatus{
	StepPending:    {StepInProgress, StepBlocked},
	StepInProgress: {StepCompleted, StepBlocked},
	StepBlocked:    {StepPending},
	StepCompleted:  {},
}

// CanTransitionTo reports whether a step may move from s to target.
func (s StepStatus) CanTransitionTo(target StepStatus) bool {
	for _, allowed := range stepTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// ParseStepStatus validates external input at a trust boundary.
func ParseStepStatus(raw string) (StepStatus, error) {
	status := StepStatus(raw)
	if _, ok := stepTransitions[status]; !ok {
		return "", dErrors.Newf(dErrors.CodeBadRequest, "unknown step status %q", raw)
	}
	return status, nil
}

// QuoteStatus tracks the devis negotiation cycle.
type QuoteStatus string

const (
	QuoteNone      QuoteStatus = "none"
	QuoteProposed  QuoteStatus = "proposed"
	QuoteAccepted  QuoteStatus = "accepted"
	QuoteRejected  QuoteStatus = "rejected"
	QuoteNeedsInfo QuoteStatus = "needs_info"
)
