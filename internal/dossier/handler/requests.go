package handler

import (
	"time"

	"dossierflow/internal/dossier/models"
	"dossierflow/internal/dossier/service"
	"dossierflow/internal/settlement"
	"dossierflow/pkg/domain"
	dErrors "dossierflow/pkg/domain-errors"
)

type createDossierRequest struct {
	ClientID        string            `json:"client_id"`
	ProductID       string            `json:"product_id"`
	ProductCategory string            `json:"product_category"`
	Priority        int               `json:"priority"`
	EstimatedAmount float64           `json:"estimated_amount"`
	Provenance      map[string]string `json:"provenance,omitempty"`
}

func (r createDossierRequest) toInput() (service.CreateDossierInput, error) {
	clientID, err := domain.ParseClientID(r.ClientID)
	if err != nil {
		return service.CreateDossierInput{}, err
	}
	productID, err := domain.ParseProductID(r.ProductID)
	if err != nil {
		return service.CreateDossierInput{}, err
	}
	return service.CreateDossierInput{
		ClientID:        clientID,
		ProductID:       productID,
		ProductCategory: r.ProductCategory,
		Priority:        r.Priority,
		EstimatedAmount: r.EstimatedAmount,
		Provenance:      r.Provenance,
	}, nil
}

type assignExpertRequest struct {
	ExpertID string `json:"expert_id"`
}

type advanceStepRequest struct {
	Status string `json:"status"`
}

func (r advanceStepRequest) target() (models.StepStatus, error) {
	return models.ParseStepStatus(r.Status)
}

type proposeQuoteRequest struct {
	Amount     float64   `json:"amount"`
	ValidUntil time.Time `json:"valid_until"`
	Comment    string    `json:"comment,omitempty"`
	DocumentID string    `json:"document_id,omitempty"`
}

func (r proposeQuoteRequest) toProposal() service.QuoteProposal {
	return service.QuoteProposal{
		Amount:     r.Amount,
		ValidUntil: r.ValidUntil,
		Comment:    r.Comment,
		DocumentID: r.DocumentID,
	}
}

type quoteCommentRequest struct {
	Comment string `json:"comment"`
}

type finalizeAuditRequest struct {
	MontantFinal                  float64  `json:"montant_final"`
	RapportDetaille               string   `json:"rapport_detaille"`
	Notes                         string   `json:"notes,omitempty"`
	ClientFeePercentageNegotiated *float64 `json:"client_fee_percentage_negotiated,omitempty"`
	ClientFeePercentageDefault    float64  `json:"client_fee_percentage_default"`
	Amend                         bool     `json:"amend,omitempty"`
}

func (r finalizeAuditRequest) toInput() settlement.AuditInput {
	return settlement.AuditInput{
		MontantFinal:                  r.MontantFinal,
		RapportDetaille:               r.RapportDetaille,
		Notes:                         r.Notes,
		ClientFeePercentageNegotiated: r.ClientFeePercentageNegotiated,
		ClientFeePercentageDefault:    r.ClientFeePercentageDefault,
	}
}

type confirmPaymentRequest struct {
	InvoiceID string `json:"invoice_id"`
}

type rejectDossierRequest struct {
	Reason string `json:"reason"`
}

func (r rejectDossierRequest) validate() error {
	if r.Reason == "" {
		return dErrors.New(dErrors.CodeValidation, "rejection reason is required")
	}
	return nil
}
