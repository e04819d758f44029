package handler

import (
	"time"

	"dossierflow/internal/dossier/models"
	"dossierflow/internal/dossier/service"
	"dossierflow/internal/settlement"
	"dossierflow/pkg/domain"
)

type dossierResponse struct {
	ID               domain.DossierID     `json:"id"`
	ClientID         domain.ClientID      `json:"client_id"`
	ProductID        domain.ProductID     `json:"product_id"`
	ProductCategory  string               `json:"product_category"`
	ExpertID         *domain.ExpertID     `json:"expert_id,omitempty"`
	Status           models.DossierStatus `json:"status"`
	CurrentStepIndex int                  `json:"current_step_index"`
	Progress         int                  `json:"progress"`
	Priority         int                  `json:"priority"`
	EstimatedAmount  float64              `json:"estimated_amount"`
	Steps            []models.Step        `json:"steps"`
	Quote            *models.Quote        `json:"quote,omitempty"`
	Audit            *auditResponse       `json:"audit,omitempty"`
	RejectionReason  string               `json:"rejection_reason,omitempty"`
	CreatedAt        time.Time            `json:"created_at"`
	UpdatedAt        time.Time            `json:"updated_at"`
}

// auditResponse mirrors the stored result minus internal notes, which only
// experts and the back office may read.
type auditResponse struct {
	MontantInitial                float64      `json:"montant_initial"`
	MontantFinal                  float64      `json:"montant_final"`
	ClientFeePercentageNegotiated *float64     `json:"client_fee_percentage_negotiated,omitempty"`
	ClientFeePercentageDefault    float64      `json:"client_fee_percentage_default"`
	CommissionNegotiated          bool         `json:"commission_negotiated"`
	RapportDetaille               string       `json:"rapport_detaille"`
	Notes                         string       `json:"notes,omitempty"`
	CompletedBy                   domain.Actor `json:"completed_by"`
	CompletedAt                   time.Time    `json:"completed_at"`
	Amended                       bool         `json:"amended,omitempty"`
}

type snapshotResponse struct {
	Dossier      dossierResponse    `json:"dossier"`
	Settlement   *settlement.Result `json:"settlement,omitempty"`
	OverdueSteps []models.Step      `json:"overdue_steps,omitempty"`
}

func toDossierResponse(d *models.Dossier, viewer domain.Actor) dossierResponse {
	return dossierResponse{
		ID:               d.ID,
		ClientID:         d.ClientID,
		ProductID:        d.ProductID,
		ProductCategory:  d.ProductCategory,
		ExpertID:         d.ExpertID,
		Status:           d.Status,
		CurrentStepIndex: d.CurrentStepIndex,
		Progress:         d.Progress,
		Priority:         d.Priority,
		EstimatedAmount:  d.EstimatedAmount,
		Steps:            d.Steps,
		Quote:            d.Quote,
		Audit:            toAuditResponse(d.Audit, viewer),
		RejectionReason:  d.RejectionReason,
		CreatedAt:        d.CreatedAt,
		UpdatedAt:        d.UpdatedAt,
	}
}

func toAuditResponse(a *models.AuditResult, viewer domain.Actor) *auditResponse {
	if a == nil {
		return nil
	}
	resp := &auditResponse{
		MontantInitial:                a.MontantInitial,
		MontantFinal:                  a.MontantFinal,
		ClientFeePercentageNegotiated: a.ClientFeePercentageNegotiated,
		ClientFeePercentageDefault:    a.ClientFeePercentageDefault,
		CommissionNegotiated:          a.CommissionNegotiated,
		RapportDetaille:               a.RapportDetaille,
		CompletedBy:                   a.CompletedBy,
		CompletedAt:                   a.CompletedAt,
		Amended:                       a.Amended,
	}
	if viewer.Kind != domain.ActorClient {
		resp.Notes = a.Notes
	}
	return resp
}

func toSnapshotResponse(snap *service.Snapshot, viewer domain.Actor) snapshotResponse {
	return snapshotResponse{
		Dossier:      toDossierResponse(snap.Dossier, viewer),
		Settlement:   snap.Settlement,
		OverdueSteps: snap.OverdueSteps,
	}
}
