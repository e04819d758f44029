package models

import (
	"time"

	"dossierflow/pkg/domain"
	dErrors "dossierflow/pkg/domain-errors"
)

// AuditResult records the expert's settlement of a dossier. Commission and
// net amounts are never stored here; they are recomputed from the rates on
// every read (see the settlement package).
type AuditResult struct {
	MontantInitial                float64      `json:"montant_initial"`
	MontantFinal                  float64      `json:"montant_final"`
	ClientFeePercentageNegotiated *float64     `json:"client_fee_percentage_negotiated,omitempty"`
	ClientFeePercentageDefault    float64      `json:"client_fee_percentage_default"`
	CommissionNegotiated          bool         `json:"commission_negotiated"`
	RapportDetaille               string       `json:"rapport_detaille"`
	Notes                         string       `json:"notes,omitempty"` // internal-only, never in client responses
	CompletedBy                   domain.Actor `json:"completed_by"`
	CompletedAt                   time.Time    `json:"completed_at"`
	Amended                       bool         `json:"amended,omitempty"`
}

// ApplyAudit attaches a finalized audit result. Writing is legal once per
// dossier; a second write fails with AlreadyFinalized unless amend is set,
// in which case the prior record moves to the audit history and the new one
// supersedes it. Finalizing may complete the dossier when the ledger is
// already done.
func (d *Dossier) ApplyAudit(result AuditResult, amend bool, actor domain.Actor, now time.Time) ([]DomainEvent, error) {
	if d.Status.IsTerminal() {
		return nil, dErrors.Newf(dErrors.CodeInvalidTransition, "dossier is %s", d.Status)
	}
	if d.Status != StatusInProgress && d.Status != StatusValidated {
		return nil, dErrors.Newf(dErrors.CodeInvalidTransition, "cannot finalize audit while dossier is %s", d.Status)
	}

	kind := EventAuditFinalized
	if d.Audit != nil {
		if !amend {
			return nil, dErrors.New(dErrors.CodeAlreadyFinalized, "audit already finalized for this dossier")
		}
		if actor.Kind != domain.ActorAdmin {
			return nil, dErrors.New(dErrors.CodeValidation, "only an admin may amend a finalized audit")
		}
		d.AuditHistory = append(d.AuditHistory, *d.Audit)
		result.Amended = true
		kind = EventAuditAmended
	}

	d.Audit = &result
	d.UpdatedAt = now

	events := []DomainEvent{event(d, kind, actor, string(d.Status), string(d.Status), now)}
	events = append(events, d.validateIfComplete(actor, now)...)
	return events, nil
}
