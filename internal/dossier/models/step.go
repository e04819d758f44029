package models

import (
	"time"

	"dossierflow/pkg/domain"
	dErrors "dossierflow/pkg/domain-errors"
)

// Step is one unit of required work within a dossier. Steps live embedded in
// the aggregate; ordering and status legality are enforced by AdvanceStep.
type Step struct {
	ID                domain.StepID `json:"id"`
	Name              string        `json:"name"`
	Type              StepType      `json:"type"`
	Status            StepStatus    `json:"status"`
	Assignee          domain.Actor  `json:"assignee,omitzero"`
	Priority          int           `json:"priority"`
	DueDate           *time.Time    `json:"due_date,omitempty"`
	EstimatedDuration time.Duration `json:"estimated_duration"`
	Progress          int           `json:"progress"`
	StartedAt         *time.Time    `json:"started_at,omitempty"`
	CompletedAt       *time.Time    `json:"completed_at,omitempty"`
}

// IsOverdue is the read-time overdue projection: past due and not completed.
// The stored status never changes because of a deadline.
func (s Step) IsOverdue(now time.Time) bool {
	return s.DueDate != nil && s.DueDate.Before(now) && s.Status != StepCompleted && s.Status != StepBlocked
}

// AdvanceStep moves one step through its lifecycle, enforcing the
// single-active-step discipline:
//
//   - only the step at CurrentStepIndex, or an already-blocked step, may be
//     advanced; a non-current pending step fails with OutOfOrder
//   - transitions follow pending→in_progress→completed, with blocking from
//     any non-terminal state and unblocking back to pending only
//   - completing a step auto-advances CurrentStepIndex to the next pending
//     step and recomputes progress; no step is ever skipped implicitly
//
// The first accepted advance on an expert_assigned dossier implicitly
// starts work, and completing the final step validates the dossier when an
// audit result already exists.
func (d *Dossier) AdvanceStep(stepID domain.StepID, target StepStatus, actor domain.Actor, now time.Time) ([]DomainEvent, error) {
	if !d.Status.IsActive() {
		return nil, dErrors.Newf(dErrors.CodeInvalidTransition, "dossier is %s and accepts no step updates", d.Status)
	}

	idx := -1
	for i := range d.Steps {
		if d.Steps[i].ID == stepID {
			idx = i
			break
		}
	}
	if idx == -1 {
		return nil, dErrors.New(dErrors.CodeNotFound, "step not found in dossier")
	}
	step := &d.Steps[idx]

	if step.Status != StepBlocked && idx != d.CurrentStepIndex {
		return nil, dErrors.Newf(dErrors.CodeOutOfOrder, "step %d is not the current step (%d)", idx, d.CurrentStepIndex)
	}
	if !step.Status.CanTransitionTo(target) {
		return nil, dErrors.Newf(dErrors.CodeInvalidTransition, "step cannot move from %s to %s", step.Status, target)
	}

	var events []DomainEvent
	if d.Status == StatusExpertAssigned {
		started, err := d.StartWork(actor, now)
		if err != nil {
			return nil, err
		}
		events = append(events, started...)
	}

	before := step.Status
	step.Status = target
	switch target {
	case StepInProgress:
		startedAt := now
		step.StartedAt = &startedAt
		step.Assignee = actor
		events = append(events, stepEvent(d, EventStepAdvanced, actor, step.ID, before, target, now))
	case StepBlocked:
		events = append(events, stepEvent(d, EventStepBlocked, actor, step.ID, before, target, now))
	case StepPending:
		// Unblock: progress resets so the step is picked up from scratch.
		step.Progress = 0
		step.StartedAt = nil
		events = append(events, stepEvent(d, EventStepUnblocked, actor, step.ID, before, target, now))
	case StepCompleted:
		completedAt := now
		step.CompletedAt = &completedAt
		step.Progress = 100
		events = append(events, stepEvent(d, EventStepCompleted, actor, step.ID, before, target, now))
		d.advanceCursor(idx)
		d.recomputeProgress()
		events = append(events, d.validateIfComplete(actor, now)...)
	}

	d.UpdatedAt = now
	return events, nil
}

// advanceCursor moves CurrentStepIndex to the next pending step after a
// completion. When nothing is pending past the cursor it parks at
// len(Steps), the "ledger exhausted" position.
func (d *Dossier) advanceCursor(completedIdx int) {
	if completedIdx != d.CurrentStepIndex {
		return
	}
	for i := d.CurrentStepIndex + 1; i < len(d.Steps); i++ {
		if d.Steps[i].Status == StepPending {
			d.CurrentStepIndex = i
			return
		}
	}
	d.CurrentStepIndex = len(d.Steps)
}

// OverdueSteps is a pure read-time projection; it mutates nothing and is
// what periodic SLA sweeps call from outside the engine.
func (d *Dossier) OverdueSteps(now time.Time) []Step {
	var overdue []Step
	for _, s := range d.Steps {
		if s.IsOverdue(now) {
			overdue = append(overdue, s)
		}
	}
	return overdue
}

// CurrentStep returns the step under the cursor, or nil when the ledger is
// exhausted or not yet seeded.
func (d *Dossier) CurrentStep() *Step {
	if d.CurrentStepIndex < 0 || d.CurrentStepIndex >= len(d.Steps) {
		return nil
	}
	return &d.Steps[d.CurrentStepIndex]
}

// schedulePaymentStep appends a pending payment step unless one is already
// pending or underway. Quote acceptance calls this; it is idempotent.
func (d *Dossier) schedulePaymentStep(now time.Time) bool {
	for _, s := range d.Steps {
		if s.Type == StepPayment && s.Status != StepCompleted {
			return false
		}
	}
	d.Steps = append(d.Steps, Step{
		ID:       domain.NewStepID(),
		Name:     "Payment",
		Type:     StepPayment,
		Status:   StepPending,
		Priority: 1,
	})
	if d.CurrentStepIndex >= len(d.Steps) {
		d.CurrentStepIndex = len(d.Steps) - 1
	}
	d.UpdatedAt = now
	return true
}
