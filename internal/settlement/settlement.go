// Package settlement is the pure commission calculator. No side effects, no
// stored results: commission and net amounts are derived from the audit
// rates every time they are needed, so they can never drift from the inputs.
package settlement

import (
	"math"
	"strings"
	"time"

	"dossierflow/internal/dossier/models"
	"dossierflow/pkg/domain"
	dErrors "dossierflow/pkg/domain-errors"
)

// Result is the commission split for one audited amount.
type Result struct {
	CommissionAmount float64 `json:"commission_amount"`
	NetClient        float64 `json:"net_client"`
}

// ComputeCommission splits montantFinal between commission and the client.
// The negotiated rate wins when present; otherwise the default applies. A
// negative or missing amount is treated as zero so the output is never
// negative.
func ComputeCommission(montantFinal float64, negotiatedRate *float64, defaultRate float64) Result {
	if montantFinal < 0 || math.IsNaN(montantFinal) {
		montantFinal = 0
	}
	rate := defaultRate
	if negotiatedRate != nil {
		rate = *negotiatedRate
	}
	commission := roundCents(montantFinal * rate)
	return Result{
		CommissionAmount: commission,
		NetClient:        roundCents(montantFinal - commission),
	}
}

// ForAudit computes the split for a stored audit result.
func ForAudit(audit models.AuditResult) Result {
	return ComputeCommission(audit.MontantFinal, audit.ClientFeePercentageNegotiated, audit.ClientFeePercentageDefault)
}

// AuditInput is what an expert submits at audit completion.
type AuditInput struct {
	MontantFinal                  float64
	RapportDetaille               string
	Notes                         string
	ClientFeePercentageNegotiated *float64
	ClientFeePercentageDefault    float64
}

// FinalizeAudit validates the input and builds the audit record, stamping
// who completed it and when. The montant initial is the dossier's estimate
// at the time of finalization. Idempotency (one result per dossier) is
// enforced where the record is attached, not here.
func FinalizeAudit(d *models.Dossier, in AuditInput, actor domain.Actor, now time.Time) (models.AuditResult, error) {
	if in.MontantFinal < 0 {
		return models.AuditResult{}, dErrors.New(dErrors.CodeValidation, "montant final must not be negative")
	}
	if strings.TrimSpace(in.RapportDetaille) == "" {
		return models.AuditResult{}, dErrors.New(dErrors.CodeValidation, "rapport detaille is required")
	}
	if in.ClientFeePercentageDefault <= 0 || in.ClientFeePercentageDefault > 1 {
		return models.AuditResult{}, dErrors.New(dErrors.CodeValidation, "default fee percentage must be within (0,1]")
	}
	if in.ClientFeePercentageNegotiated != nil {
		rate := *in.ClientFeePercentageNegotiated
		if rate < 0 || rate > 1 {
			return models.AuditResult{}, dErrors.New(dErrors.CodeValidation, "negotiated fee percentage must be within [0,1]")
		}
	}

	return models.AuditResult{
		MontantInitial:                d.EstimatedAmount,
		MontantFinal:                  in.MontantFinal,
		ClientFeePercentageNegotiated: in.ClientFeePercentageNegotiated,
		ClientFeePercentageDefault:    in.ClientFeePercentageDefault,
		CommissionNegotiated:          in.ClientFeePercentageNegotiated != nil,
		RapportDetaille:               in.RapportDetaille,
		Notes:                         in.Notes,
		CompletedBy:                   actor,
		CompletedAt:                   now,
	}, nil
}

func roundCents(amount float64) float64 {
	return math.Round(amount*100) / 100
}
