package models

import (
	"time"

	"dossierflow/pkg/domain"
)

// EventKind labels an accepted transition.
type EventKind string

const (
	EventDossierCreated     EventKind = "dossier_created"
	EventExpertAssigned     EventKind = "expert_assigned"
	EventWorkStarted        EventKind = "work_started"
	EventStepAdvanced       EventKind = "step_advanced"
	EventStepCompleted      EventKind = "step_completed"
	EventStepBlocked        EventKind = "step_blocked"
	EventStepUnblocked      EventKind = "step_unblocked"
	EventQuoteProposed      EventKind = "quote_proposed"
	EventQuoteAccepted      EventKind = "quote_accepted"
	EventQuoteRejected      EventKind = "quote_rejected"
	EventQuoteInfoRequested EventKind = "quote_info_requested"
	EventQuoteInfoProvided  EventKind = "quote_info_provided"
	EventAuditFinalized     EventKind = "audit_finalized"
	EventAuditAmended       EventKind = "audit_amended"
	EventDossierValidated   EventKind = "dossier_validated"
	EventPaymentConfirmed   EventKind = "payment_confirmed"
	EventDossierRejected    EventKind = "dossier_rejected"
)

// DomainEvent is the immutable record of one accepted transition. The engine
// appends events to the outbox in the same transaction as the aggregate
// write and never re-delivers them itself; at-least-once delivery is the
// dispatcher's concern.
type DomainEvent struct {
	DossierID   domain.DossierID `json:"dossier_id"`
	Kind        EventKind        `json:"kind"`
	Actor       domain.Actor     `json:"actor"`
	BeforeState string           `json:"before_state"`
	AfterState  string           `json:"after_state"`
	StepID      *domain.StepID   `json:"step_id,omitempty"`
	Timestamp   time.Time        `json:"timestamp"`
}

// event is a small constructor keeping the call sites in the aggregate
// methods readable.
func event(d *Dossier, kind EventKind, actor domain.Actor, before, after string, now time.Time) DomainEvent {
	return DomainEvent{
		DossierID:   d.ID,
		Kind:        kind,
		Actor:       actor,
		BeforeState: before,
		AfterState:  after,
		Timestamp:   now,
	}
}

// stepEvent tags the event with the step it concerns.
func stepEvent(d *Dossier, kind EventKind, actor domain.Actor, stepID domain.StepID, before, after StepStatus, now time.Time) DomainEvent {
	e := event(d, kind, actor, string(before), string(after), now)
	e.StepID = &stepID
	return e
}
