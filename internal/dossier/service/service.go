// Package service is the dossier orchestrator: every workflow operation
// enters here, loads the aggregate, applies the domain mutation, and
// commits it together with the emitted events through one optimistic write.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"dossierflow/internal/dossier/metrics"
	"dossierflow/internal/dossier/models"
	"dossierflow/internal/product"
	"dossierflow/internal/settlement"
	"dossierflow/pkg/domain"
	dErrors "dossierflow/pkg/domain-errors"
	"dossierflow/pkg/platform/sentinel"
	"dossierflow/pkg/requestcontext"
)

const tracerName = "dossierflow/internal/dossier/service"

// DossierStore persists the aggregate and stages its events atomically.
type DossierStore interface {
	Create(ctx context.Context, d *models.Dossier, events []models.DomainEvent) error
	FindByID(ctx context.Context, id domain.DossierID) (*models.Dossier, error)
	Update(ctx context.Context, d *models.Dossier, expectedUpdatedAt time.Time, events []models.DomainEvent) error
}

// TemplateRegistry resolves a product category to its canonical step list.
type TemplateRegistry interface {
	StepsFor(ctx context.Context, category string) ([]product.StepTemplate, error)
}

// Service orchestrates the dossier workflow.
type Service struct {
	store     DossierStore
	templates TemplateRegistry
	logger    *slog.Logger
	metrics   *metrics.Metrics
	tracer    trace.Tracer
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// New constructs a Service.
func New(store DossierStore, templates TemplateRegistry, opts ...Option) *Service {
	s := &Service{
		store:     store,
		templates: templates,
		logger:    slog.Default(),
		tracer:    otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateDossierInput carries everything the eligibility decision hands over.
type CreateDossierInput struct {
	ClientID        domain.ClientID
	ProductID       domain.ProductID
	ProductCategory string
	Priority        int
	EstimatedAmount float64
	Provenance      map[string]string
}

// CreateDossier registers a new eligible dossier.
func (s *Service) CreateDossier(ctx context.Context, in CreateDossierInput) (*models.Dossier, error) {
	ctx, span := s.tracer.Start(ctx, "dossier.Create")
	defer span.End()
	start := time.Now()
	defer func() { s.metrics.ObserveOperation("create", time.Since(start)) }()

	if in.ClientID.IsZero() {
		return nil, s.reject(span, dErrors.New(dErrors.CodeValidation, "client id is required"))
	}
	if in.ProductID.IsZero() {
		return nil, s.reject(span, dErrors.New(dErrors.CodeValidation, "product id is required"))
	}

	now := requestcontext.Now(ctx)
	actor := requestcontext.Actor(ctx)
	d, err := models.NewDossier(domain.NewDossierID(), in.ClientID, in.ProductID,
		in.ProductCategory, in.Priority, in.EstimatedAmount, in.Provenance, now)
	if err != nil {
		return nil, s.reject(span, err)
	}

	created := d.CreatedEvent(actor, now)
	if err := s.store.Create(ctx, d, []models.DomainEvent{created}); err != nil {
		return nil, s.reject(span, s.translateStoreErr(err))
	}

	span.SetAttributes(attribute.String("dossier.id", d.ID.String()))
	s.metrics.IncrementTransition(string(created.Kind))
	s.logger.InfoContext(ctx, "dossier created",
		"dossier_id", d.ID,
		"client_id", d.ClientID,
		"product_category", d.ProductCategory,
		"request_id", requestcontext.RequestID(ctx),
	)
	return d, nil
}

// AssignExpert seeds the step ledger from the product template and moves the
// dossier to expert_assigned.
func (s *Service) AssignExpert(ctx context.Context, id domain.DossierID, expertID domain.ExpertID) (*models.Dossier, error) {
	return s.mutate(ctx, "assign_expert", id, func(ctx context.Context, d *models.Dossier, actor domain.Actor, now time.Time) ([]models.DomainEvent, error) {
		templates, err := s.templates.StepsFor(ctx, d.ProductCategory)
		if err != nil {
			return nil, err
		}
		return d.AssignExpert(expertID, product.Materialize(templates, now), actor, now)
	})
}

// StartWork moves the dossier to in_progress explicitly.
func (s *Service) StartWork(ctx context.Context, id domain.DossierID) (*models.Dossier, error) {
	return s.mutate(ctx, "start_work", id, func(_ context.Context, d *models.Dossier, actor domain.Actor, now time.Time) ([]models.DomainEvent, error) {
		return d.StartWork(actor, now)
	})
}

// AdvanceStep records a step status update on the ledger.
func (s *Service) AdvanceStep(ctx context.Context, id domain.DossierID, stepID domain.StepID, target models.StepStatus) (*models.Dossier, error) {
	return s.mutate(ctx, "advance_step", id, func(_ context.Context, d *models.Dossier, actor domain.Actor, now time.Time) ([]models.DomainEvent, error) {
		return d.AdvanceStep(stepID, target, actor, now)
	})
}

// QuoteProposal is an expert's fee proposal for a dossier.
type QuoteProposal struct {
	Amount     float64
	ValidUntil time.Time
	Comment    string
	DocumentID string
}

// ProposeQuote opens (or reopens) a negotiation cycle.
func (s *Service) ProposeQuote(ctx context.Context, id domain.DossierID, proposal QuoteProposal) (*models.Dossier, error) {
	return s.mutate(ctx, "propose_quote", id, func(_ context.Context, d *models.Dossier, actor domain.Actor, now time.Time) ([]models.DomainEvent, error) {
		return d.ProposeQuote(proposal.Amount, proposal.ValidUntil, proposal.Comment, proposal.DocumentID, actor, now)
	})
}

// AcceptQuote closes the negotiation and schedules the payment step.
func (s *Service) AcceptQuote(ctx context.Context, id domain.DossierID, comment string) (*models.Dossier, error) {
	return s.mutate(ctx, "accept_quote", id, func(_ context.Context, d *models.Dossier, actor domain.Actor, now time.Time) ([]models.DomainEvent, error) {
		return d.AcceptQuote(comment, actor, now)
	})
}

// RejectQuote closes the current cycle; a fresh proposal may follow.
func (s *Service) RejectQuote(ctx context.Context, id domain.DossierID, comment string) (*models.Dossier, error) {
	return s.mutate(ctx, "reject_quote", id, func(_ context.Context, d *models.Dossier, actor domain.Actor, now time.Time) ([]models.DomainEvent, error) {
		return d.RejectQuote(comment, actor, now)
	})
}

// RequestQuoteInfo asks the proposer for clarification.
func (s *Service) RequestQuoteInfo(ctx context.Context, id domain.DossierID, comment string) (*models.Dossier, error) {
	return s.mutate(ctx, "request_quote_info", id, func(_ context.Context, d *models.Dossier, actor domain.Actor, now time.Time) ([]models.DomainEvent, error) {
		return d.RequestQuoteInfo(comment, actor, now)
	})
}

// RespondQuoteInfo answers an information request, returning the quote to
// proposed.
func (s *Service) RespondQuoteInfo(ctx context.Context, id domain.DossierID, comment string) (*models.Dossier, error) {
	return s.mutate(ctx, "respond_quote_info", id, func(_ context.Context, d *models.Dossier, actor domain.Actor, now time.Time) ([]models.DomainEvent, error) {
		return d.RespondQuoteInfo(comment, actor, now)
	})
}

// FinalizeAudit attaches the audit result. With amend set, an existing
// result is superseded and archived; otherwise a second finalization is
// refused.
func (s *Service) FinalizeAudit(ctx context.Context, id domain.DossierID, in settlement.AuditInput, amend bool) (*models.Dossier, error) {
	return s.mutate(ctx, "finalize_audit", id, func(_ context.Context, d *models.Dossier, actor domain.Actor, now time.Time) ([]models.DomainEvent, error) {
		result, err := settlement.FinalizeAudit(d, in, actor, now)
		if err != nil {
			return nil, err
		}
		return d.ApplyAudit(result, amend, actor, now)
	})
}

// ConfirmPayment records the refund payout and closes the dossier.
func (s *Service) ConfirmPayment(ctx context.Context, id domain.DossierID, invoiceID string) (*models.Dossier, error) {
	return s.mutate(ctx, "confirm_payment", id, func(_ context.Context, d *models.Dossier, actor domain.Actor, now time.Time) ([]models.DomainEvent, error) {
		return d.ConfirmPayment(invoiceID, actor, now)
	})
}

// Reject terminates the dossier with a mandatory reason.
func (s *Service) Reject(ctx context.Context, id domain.DossierID, reason string) (*models.Dossier, error) {
	return s.mutate(ctx, "reject", id, func(_ context.Context, d *models.Dossier, actor domain.Actor, now time.Time) ([]models.DomainEvent, error) {
		return d.Reject(reason, actor, now)
	})
}

// Snapshot is the read model for one dossier: the aggregate plus the
// derived settlement split when an audit result exists.
type Snapshot struct {
	Dossier      *models.Dossier    `json:"dossier"`
	Settlement   *settlement.Result `json:"settlement,omitempty"`
	OverdueSteps []models.Step      `json:"overdue_steps,omitempty"`
}

// Snapshot loads the dossier with its derived views.
func (s *Service) Snapshot(ctx context.Context, id domain.DossierID) (*Snapshot, error) {
	ctx, span := s.tracer.Start(ctx, "dossier.Snapshot",
		trace.WithAttributes(attribute.String("dossier.id", id.String())))
	defer span.End()

	d, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, s.reject(span, s.translateStoreErr(err))
	}

	snap := &Snapshot{
		Dossier:      d,
		OverdueSteps: d.OverdueSteps(requestcontext.Now(ctx)),
	}
	if d.Audit != nil {
		split := settlement.ForAudit(*d.Audit)
		snap.Settlement = &split
	}
	return snap, nil
}

// OverdueSteps is the derived overdue view: steps past due that are neither
// completed nor blocked, evaluated against the request time.
func (s *Service) OverdueSteps(ctx context.Context, id domain.DossierID) ([]models.Step, error) {
	d, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, s.translateStoreErr(err)
	}
	return d.OverdueSteps(requestcontext.Now(ctx)), nil
}

// mutate is the single write path: load, apply, commit with the optimistic
// fence, record events. Every workflow operation goes through here.
func (s *Service) mutate(ctx context.Context, op string, id domain.DossierID, fn func(ctx context.Context, d *models.Dossier, actor domain.Actor, now time.Time) ([]models.DomainEvent, error)) (*models.Dossier, error) {
	ctx, span := s.tracer.Start(ctx, "dossier."+op,
		trace.WithAttributes(attribute.String("dossier.id", id.String())))
	defer span.End()
	start := time.Now()
	defer func() { s.metrics.ObserveOperation(op, time.Since(start)) }()

	d, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, s.reject(span, s.translateStoreErr(err))
	}
	expected := d.UpdatedAt

	actor := requestcontext.Actor(ctx)
	now := requestcontext.Now(ctx)
	events, err := fn(ctx, d, actor, now)
	if err != nil {
		return nil, s.reject(span, err)
	}

	if err := s.store.Update(ctx, d, expected, events); err != nil {
		return nil, s.reject(span, s.translateStoreErr(err))
	}

	for _, e := range events {
		s.metrics.IncrementTransition(string(e.Kind))
	}
	s.logger.InfoContext(ctx, "dossier operation applied",
		"operation", op,
		"dossier_id", d.ID,
		"status", d.Status,
		"progress", d.Progress,
		"events", len(events),
		"request_id", requestcontext.RequestID(ctx),
	)
	return d, nil
}

// translateStoreErr maps sentinel infrastructure errors to coded domain
// errors at the service boundary.
func (s *Service) translateStoreErr(err error) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "dossier not found")
	case errors.Is(err, sentinel.ErrConcurrentModification):
		return dErrors.New(dErrors.CodeConcurrentModification, "dossier was modified concurrently, reload and retry")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.New(dErrors.CodeConcurrentModification, "dossier already exists")
	case errors.Is(err, context.DeadlineExceeded):
		return dErrors.Wrap(err, dErrors.CodeTimeout, "store operation timed out")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "store operation failed")
	}
}

func (s *Service) reject(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	s.metrics.IncrementError(string(dErrors.CodeOf(err)))
	return err
}
