package models

import (
	"time"

	"dossierflow/pkg/domain"
	dErrors "dossierflow/pkg/domain-errors"
)

// Dossier is the aggregate root for one client's application for one
// product: the stage it is in, the ordered steps composing that stage, the
// optional quote negotiation, and the audit settlement.
//
// Invariants:
//   - 0 <= CurrentStepIndex <= len(Steps)
//   - 0 <= Progress <= 100, non-decreasing while the status is active
//   - at most one step is in_progress at any time
//   - terminal statuses (rejected, refund_completed) freeze the aggregate
//
// The dossier row, embedded steps and quote included, is the unit of
// locking: concurrent writers are serialized by an optimistic check on
// UpdatedAt at the store layer, so mutation methods here can assume they
// own the aggregate.
type Dossier struct {
	ID               domain.DossierID  `json:"id"`
	ClientID         domain.ClientID   `json:"client_id"`
	ProductID        domain.ProductID  `json:"product_id"`
	ProductCategory  string            `json:"product_category"`
	ExpertID         *domain.ExpertID  `json:"expert_id,omitempty"`
	Status           DossierStatus     `json:"status"`
	CurrentStepIndex int               `json:"current_step_index"`
	Progress         int               `json:"progress"`
	Priority         int               `json:"priority"`
	EstimatedAmount  float64           `json:"estimated_amount"`
	Steps            []Step            `json:"steps"`
	Quote            *Quote            `json:"quote,omitempty"`
	Audit            *AuditResult      `json:"audit,omitempty"`
	AuditHistory     []AuditResult     `json:"audit_history,omitempty"`
	Provenance       map[string]string `json:"provenance,omitempty"`
	RejectionReason  string            `json:"rejection_reason,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

// NewDossier creates a dossier in the eligible state. Creation corresponds
// to the external eligibility decision; everything afterwards goes through
// orchestrator operations.
func NewDossier(id domain.DossierID, clientID domain.ClientID, productID domain.ProductID, category string, priority int, estimatedAmount float64, provenance map[string]string, now time.Time) (*Dossier, error) {
	if category == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "product category is required")
	}
	if estimatedAmount < 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "estimated amount must not be negative")
	}
	return &Dossier{
		ID:              id,
		ClientID:        clientID,
		ProductID:       productID,
		ProductCategory: category,
		Status:          StatusEligible,
		Priority:        priority,
		EstimatedAmount: estimatedAmount,
		Provenance:      provenance,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

// Clone returns a deep copy. Stores hand out clones so a caller mutating a
// loaded dossier can never bypass the optimistic write path.
func (d *Dossier) Clone() *Dossier {
	cp := *d
	if d.ExpertID != nil {
		expertID := *d.ExpertID
		cp.ExpertID = &expertID
	}
	cp.Steps = make([]Step, len(d.Steps))
	copy(cp.Steps, d.Steps)
	if d.Quote != nil {
		cp.Quote = d.Quote.clone()
	}
	if d.Audit != nil {
		audit := *d.Audit
		cp.Audit = &audit
	}
	if len(d.AuditHistory) > 0 {
		cp.AuditHistory = make([]AuditResult, len(d.AuditHistory))
		copy(cp.AuditHistory, d.AuditHistory)
	}
	if d.Provenance != nil {
		cp.Provenance = make(map[string]string, len(d.Provenance))
		for k, v := range d.Provenance {
			cp.Provenance[k] = v
		}
	}
	return &cp
}

// AssignExpert moves eligible→expert_assigned and seeds the step ledger from
// the product template. Steps arrive ordered; the first becomes current.
func (d *Dossier) AssignExpert(expertID domain.ExpertID, steps []Step, actor domain.Actor, now time.Time) ([]DomainEvent, error) {
	if expertID.IsZero() {
		return nil, dErrors.New(dErrors.CodeValidation, "expert id is required")
	}
	if !d.Status.CanTransitionTo(StatusExpertAssigned) {
		return nil, dErrors.Newf(dErrors.CodeInvalidTransition, "cannot assign expert while dossier is %s", d.Status)
	}
	if len(steps) == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "step template produced no steps")
	}

	before := d.Status
	d.ExpertID = &expertID
	d.Status = StatusExpertAssigned
	d.Steps = steps
	d.CurrentStepIndex = 0
	d.UpdatedAt = now

	return []DomainEvent{event(d, EventExpertAssigned, actor, string(before), string(d.Status), now)}, nil
}

// StartWork moves expert_assigned→in_progress explicitly. The same
// transition also happens implicitly on the first accepted step advance.
func (d *Dossier) StartWork(actor domain.Actor, now time.Time) ([]DomainEvent, error) {
	if !d.Status.CanTransitionTo(StatusInProgress) {
		return nil, dErrors.Newf(dErrors.CodeInvalidTransition, "cannot start work while dossier is %s", d.Status)
	}
	before := d.Status
	d.Status = StatusInProgress
	d.UpdatedAt = now
	return []DomainEvent{event(d, EventWorkStarted, actor, string(before), string(d.Status), now)}, nil
}

// Reject terminates the dossier from any non-final state. A reason is
// mandatory; it is the only thing a terminal dossier keeps being asked
// about.
func (d *Dossier) Reject(reason string, actor domain.Actor, now time.Time) ([]DomainEvent, error) {
	if reason == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "rejection reason is required")
	}
	if !d.Status.CanTransitionTo(StatusRejected) {
		return nil, dErrors.Newf(dErrors.CodeInvalidTransition, "cannot reject a %s dossier", d.Status)
	}
	before := d.Status
	d.Status = StatusRejected
	d.RejectionReason = reason
	d.UpdatedAt = now
	return []DomainEvent{event(d, EventDossierRejected, actor, string(before), string(d.Status), now)}, nil
}

// ConfirmPayment moves validated→refund_completed and pins progress at 100.
func (d *Dossier) ConfirmPayment(invoiceID string, actor domain.Actor, now time.Time) ([]DomainEvent, error) {
	if invoiceID == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "invoice id is required")
	}
	if !d.Status.CanTransitionTo(StatusRefundCompleted) {
		return nil, dErrors.Newf(dErrors.CodeInvalidTransition, "cannot confirm payment while dossier is %s", d.Status)
	}
	before := d.Status
	d.Status = StatusRefundCompleted
	d.Progress = 100
	d.UpdatedAt = now
	e := event(d, EventPaymentConfirmed, actor, string(before), string(d.Status), now)
	return []DomainEvent{e}, nil
}

// AllStepsCompleted reports whether every step in the ledger is completed.
func (d *Dossier) AllStepsCompleted() bool {
	if len(d.Steps) == 0 {
		return false
	}
	for _, s := range d.Steps {
		if s.Status != StepCompleted {
			return false
		}
	}
	return true
}

// validateIfComplete applies in_progress→validated once both conditions
// hold: the ledger is fully completed and an audit result exists. Called
// after step completion and after audit finalization, whichever lands last.
func (d *Dossier) validateIfComplete(actor domain.Actor, now time.Time) []DomainEvent {
	if d.Status != StatusInProgress || d.Audit == nil || !d.AllStepsCompleted() {
		return nil
	}
	before := d.Status
	d.Status = StatusValidated
	d.UpdatedAt = now
	return []DomainEvent{event(d, EventDossierValidated, actor, string(before), string(d.Status), now)}
}

// recomputeProgress derives progress from the ledger. Integer division is
// deliberate: 1/3 steps reads 33, 2/3 reads 66.
func (d *Dossier) recomputeProgress() {
	if len(d.Steps) == 0 {
		return
	}
	completed := 0
	for _, s := range d.Steps {
		if s.Status == StepCompleted {
			completed++
		}
	}
	next := completed * 100 / len(d.Steps)
	if next > d.Progress {
		d.Progress = next
	}
}

// CreatedEvent is emitted once at creation time, alongside the insert.
func (d *Dossier) CreatedEvent(actor domain.Actor, now time.Time) DomainEvent {
	return event(d, EventDossierCreated, actor, "", string(d.Status), now)
}
