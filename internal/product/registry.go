// Package product exposes the step-template registry: the canonical ordered
// step list seeded into a dossier when an expert is assigned. The registry
// is an external collaborator boundary; the static implementation here
// carries the known product categories and a generic fallback.
package product

import (
	"context"
	"time"

	"dossierflow/internal/dossier/models"
	"dossierflow/pkg/domain"
	dErrors "dossierflow/pkg/domain-errors"
)

// StepTemplate is one entry of a product's canonical step list.
type StepTemplate struct {
	Name              string
	Type              models.StepType
	EstimatedDuration time.Duration
	Priority          int
}

// TemplateRegistry resolves a product category to its ordered step list.
type TemplateRegistry interface {
	StepsFor(ctx context.Context, category string) ([]StepTemplate, error)
}

// StaticRegistry is the in-process registry implementation.
type StaticRegistry struct {
	templates map[string][]StepTemplate
	fallback  []StepTemplate
}

// NewStaticRegistry seeds the registry with the known product categories.
// Durations are working estimates surfaced to assignees, not SLAs.
func NewStaticRegistry() *StaticRegistry {
	generic := []StepTemplate{
		{Name: "Eligibility validation", Type: models.StepValidation, EstimatedDuration: 2 * 24 * time.Hour, Priority: 1},
		{Name: "Document collection", Type: models.StepDocumentation, EstimatedDuration: 5 * 24 * time.Hour, Priority: 2},
		{Name: "Expert audit", Type: models.StepExpertise, EstimatedDuration: 10 * 24 * time.Hour, Priority: 2},
		{Name: "Client approval", Type: models.StepApproval, EstimatedDuration: 3 * 24 * time.Hour, Priority: 1},
		{Name: "Refund payment", Type: models.StepPayment, EstimatedDuration: 15 * 24 * time.Hour, Priority: 1},
	}
	return &StaticRegistry{
		fallback: generic,
		templates: map[string][]StepTemplate{
			"ticpe": {
				{Name: "Fleet eligibility validation", Type: models.StepValidation, EstimatedDuration: 2 * 24 * time.Hour, Priority: 1},
				{Name: "Fuel invoice collection", Type: models.StepDocumentation, EstimatedDuration: 7 * 24 * time.Hour, Priority: 2},
				{Name: "Consumption audit", Type: models.StepExpertise, EstimatedDuration: 10 * 24 * time.Hour, Priority: 2},
				{Name: "Client approval", Type: models.StepApproval, EstimatedDuration: 3 * 24 * time.Hour, Priority: 1},
				{Name: "Customs refund payment", Type: models.StepPayment, EstimatedDuration: 30 * 24 * time.Hour, Priority: 1},
			},
			"urssaf": {
				{Name: "Contribution base validation", Type: models.StepValidation, EstimatedDuration: 3 * 24 * time.Hour, Priority: 1},
				{Name: "Payroll document collection", Type: models.StepDocumentation, EstimatedDuration: 7 * 24 * time.Hour, Priority: 2},
				{Name: "Contribution audit", Type: models.StepExpertise, EstimatedDuration: 14 * 24 * time.Hour, Priority: 2},
				{Name: "Client approval", Type: models.StepApproval, EstimatedDuration: 3 * 24 * time.Hour, Priority: 1},
				{Name: "Refund payment", Type: models.StepPayment, EstimatedDuration: 21 * 24 * time.Hour, Priority: 1},
			},
		},
	}
}

// StepsFor returns the template for the category, falling back to the
// generic list for unknown categories so new products never block
// assignment.
func (r *StaticRegistry) StepsFor(_ context.Context, category string) ([]StepTemplate, error) {
	if category == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "product category is required")
	}
	if tpl, ok := r.templates[category]; ok {
		return tpl, nil
	}
	return r.fallback, nil
}

// Materialize turns templates into ledger steps, minting ids and stamping
// due dates from the estimated durations.
func Materialize(templates []StepTemplate, now time.Time) []models.Step {
	steps := make([]models.Step, 0, len(templates))
	for _, tpl := range templates {
		due := now.Add(tpl.EstimatedDuration)
		steps = append(steps, models.Step{
			ID:                domain.NewStepID(),
			Name:              tpl.Name,
			Type:              tpl.Type,
			Status:            models.StepPending,
			Priority:          tpl.Priority,
			DueDate:           &due,
			EstimatedDuration: tpl.EstimatedDuration,
		})
	}
	return steps
}
