package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"dossierflow/internal/dossier/models"
	"dossierflow/internal/dossier/store"
	"dossierflow/internal/product"
	"dossierflow/internal/settlement"
	"dossierflow/pkg/domain"
	dErrors "dossierflow/pkg/domain-errors"
	"dossierflow/pkg/platform/sentinel"
	"dossierflow/pkg/requestcontext"
)

type ServiceSuite struct {
	suite.Suite

	store   *store.InMemory
	service *Service
	now     time.Time

	client domain.Actor
	expert domain.Actor
	admin  domain.Actor
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.store = store.NewInMemory()
	s.service = New(s.store, product.NewStaticRegistry())
	s.now = time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC)
	s.client = domain.Actor{ID: uuid.New(), Kind: domain.ActorClient}
	s.expert = domain.Actor{ID: uuid.New(), Kind: domain.ActorExpert}
	s.admin = domain.Actor{ID: uuid.New(), Kind: domain.ActorAdmin}
}

// ctx builds a request context for an actor at an offset from the suite
// anchor, mirroring what the middleware chain does in production.
func (s *ServiceSuite) ctx(actor domain.Actor, offset time.Duration) context.Context {
	ctx := requestcontext.WithActor(context.Background(), actor)
	return requestcontext.WithTime(ctx, s.now.Add(offset))
}

func (s *ServiceSuite) createDossier() *models.Dossier {
	d, err := s.service.CreateDossier(s.ctx(s.admin, 0), CreateDossierInput{
		ClientID:        domain.NewClientID(),
		ProductID:       domain.NewProductID(),
		ProductCategory: "ticpe",
		Priority:        2,
		EstimatedAmount: 12000,
		Provenance:      map[string]string{"source": "simulator"},
	})
	s.Require().NoError(err)
	return d
}

func (s *ServiceSuite) TestCreateDossier() {
	s.Run("creates in eligible state and stages the event", func() {
		d := s.createDossier()
		s.Equal(models.StatusEligible, d.Status)
		s.Equal(0, d.Progress)
		s.Empty(d.Steps)

		batch, err := s.store.PendingBatch(context.Background(), 10)
		s.Require().NoError(err)
		s.Require().Len(batch, 1)
		s.Equal(models.EventDossierCreated, batch[0].Event.Kind)
	})

	s.Run("rejects missing client id", func() {
		_, err := s.service.CreateDossier(s.ctx(s.admin, 0), CreateDossierInput{
			ProductID:       domain.NewProductID(),
			ProductCategory: "ticpe",
		})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("rejects missing category", func() {
		_, err := s.service.CreateDossier(s.ctx(s.admin, 0), CreateDossierInput{
			ClientID:  domain.NewClientID(),
			ProductID: domain.NewProductID(),
		})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *ServiceSuite) TestAssignExpert() {
	s.Run("seeds the ledger from the product template", func() {
		d := s.createDossier()

		updated, err := s.service.AssignExpert(s.ctx(s.admin, time.Hour), d.ID, domain.NewExpertID())
		s.Require().NoError(err)
		s.Equal(models.StatusExpertAssigned, updated.Status)
		s.Require().Len(updated.Steps, 5)
		s.Equal(models.StepPending, updated.Steps[0].Status)
		s.NotNil(updated.Steps[0].DueDate)
		s.NotNil(updated.ExpertID)
	})

	s.Run("unknown dossier yields not_found", func() {
		_, err := s.service.AssignExpert(s.ctx(s.admin, 0), domain.NewDossierID(), domain.NewExpertID())
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("double assignment yields invalid_transition", func() {
		d := s.createDossier()
		_, err := s.service.AssignExpert(s.ctx(s.admin, time.Hour), d.ID, domain.NewExpertID())
		s.Require().NoError(err)

		_, err = s.service.AssignExpert(s.ctx(s.admin, 2*time.Hour), d.ID, domain.NewExpertID())
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidTransition))
	})
}

func (s *ServiceSuite) TestFullLifecycle() {
	d := s.createDossier()

	assigned, err := s.service.AssignExpert(s.ctx(s.admin, time.Hour), d.ID, domain.NewExpertID())
	s.Require().NoError(err)

	// Walk every step to completion. The first advance implicitly starts
	// the work.
	offset := 2 * time.Hour
	for i, step := range assigned.Steps {
		_, err := s.service.AdvanceStep(s.ctx(s.expert, offset), d.ID, step.ID, models.StepInProgress)
		s.Require().NoError(err, "start step %d", i)
		offset += time.Hour
		current, err := s.service.AdvanceStep(s.ctx(s.expert, offset), d.ID, step.ID, models.StepCompleted)
		s.Require().NoError(err, "complete step %d", i)
		offset += time.Hour

		want := (i + 1) * 100 / len(assigned.Steps)
		s.Equal(want, current.Progress, "progress after step %d", i)
	}

	// All steps done but no audit: still in progress.
	snap, err := s.service.Snapshot(s.ctx(s.admin, offset), d.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusInProgress, snap.Dossier.Status)
	s.Nil(snap.Settlement)

	// Audit finalization tips the dossier into validated.
	audited, err := s.service.FinalizeAudit(s.ctx(s.expert, offset), d.ID, settlement.AuditInput{
		MontantFinal:               13400,
		RapportDetaille:            "https://docs.example/rapport.pdf",
		ClientFeePercentageDefault: 0.05,
	}, false)
	s.Require().NoError(err)
	s.Equal(models.StatusValidated, audited.Status)

	done, err := s.service.ConfirmPayment(s.ctx(s.admin, offset+time.Hour), d.ID, "INV-2026-0042")
	s.Require().NoError(err)
	s.Equal(models.StatusRefundCompleted, done.Status)
	s.Equal(100, done.Progress)

	// The snapshot now carries the derived settlement split.
	snap, err = s.service.Snapshot(s.ctx(s.admin, offset+2*time.Hour), d.ID)
	s.Require().NoError(err)
	s.Require().NotNil(snap.Settlement)
	s.InDelta(670.0, snap.Settlement.CommissionAmount, 0.001)
	s.InDelta(12730.0, snap.Settlement.NetClient, 0.001)
}

func (s *ServiceSuite) TestQuoteNegotiation() {
	d := s.createDossier()
	assigned, err := s.service.AssignExpert(s.ctx(s.admin, time.Hour), d.ID, domain.NewExpertID())
	s.Require().NoError(err)
	_, err = s.service.StartWork(s.ctx(s.expert, 2*time.Hour), d.ID)
	s.Require().NoError(err)
	s.Require().NotEmpty(assigned.Steps)

	proposal := QuoteProposal{
		Amount:     950,
		ValidUntil: s.now.Add(30 * 24 * time.Hour),
		Comment:    "standard fee for a fleet this size",
		DocumentID: "doc-123",
	}

	s.Run("propose, request info, respond, accept", func() {
		proposed, err := s.service.ProposeQuote(s.ctx(s.expert, 3*time.Hour), d.ID, proposal)
		s.Require().NoError(err)
		s.Equal(models.QuoteProposed, proposed.Quote.Status)

		_, err = s.service.RequestQuoteInfo(s.ctx(s.client, 4*time.Hour), d.ID, "does this include the customs filing?")
		s.Require().NoError(err)
		_, err = s.service.RespondQuoteInfo(s.ctx(s.expert, 5*time.Hour), d.ID, "yes, filing is included")
		s.Require().NoError(err)

		accepted, err := s.service.AcceptQuote(s.ctx(s.client, 6*time.Hour), d.ID, "ok, go ahead")
		s.Require().NoError(err)
		s.Equal(models.QuoteAccepted, accepted.Quote.Status)
		s.Len(accepted.Quote.Comments, 4)
	})

	s.Run("accepting twice yields invalid_quote_state", func() {
		_, err := s.service.AcceptQuote(s.ctx(s.client, 7*time.Hour), d.ID, "again")
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidQuoteState))
	})
}

func (s *ServiceSuite) TestFinalizeAudit() {
	d := s.createDossier()
	_, err := s.service.AssignExpert(s.ctx(s.admin, time.Hour), d.ID, domain.NewExpertID())
	s.Require().NoError(err)
	_, err = s.service.StartWork(s.ctx(s.expert, 2*time.Hour), d.ID)
	s.Require().NoError(err)

	input := settlement.AuditInput{
		MontantFinal:               9000,
		RapportDetaille:            "https://docs.example/rapport.pdf",
		ClientFeePercentageDefault: 0.05,
	}

	s.Run("first finalization sticks", func() {
		audited, err := s.service.FinalizeAudit(s.ctx(s.expert, 3*time.Hour), d.ID, input, false)
		s.Require().NoError(err)
		s.Require().NotNil(audited.Audit)
		s.Equal(9000.0, audited.Audit.MontantFinal)
		s.Equal(s.expert, audited.Audit.CompletedBy)
	})

	s.Run("second finalization without amend is refused", func() {
		_, err := s.service.FinalizeAudit(s.ctx(s.expert, 4*time.Hour), d.ID, input, false)
		s.True(dErrors.HasCode(err, dErrors.CodeAlreadyFinalized))
	})

	s.Run("amend requires an admin", func() {
		_, err := s.service.FinalizeAudit(s.ctx(s.expert, 5*time.Hour), d.ID, input, true)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("admin amend archives the prior result", func() {
		amendedInput := input
		amendedInput.MontantFinal = 9500
		amended, err := s.service.FinalizeAudit(s.ctx(s.admin, 6*time.Hour), d.ID, amendedInput, true)
		s.Require().NoError(err)
		s.Equal(9500.0, amended.Audit.MontantFinal)
		s.True(amended.Audit.Amended)
		s.Require().Len(amended.AuditHistory, 1)
		s.Equal(9000.0, amended.AuditHistory[0].MontantFinal)
	})

	s.Run("validation failures carry validation_error", func() {
		bad := input
		bad.RapportDetaille = "  "
		_, err := s.service.FinalizeAudit(s.ctx(s.admin, 7*time.Hour), d.ID, bad, true)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *ServiceSuite) TestReject() {
	s.Run("rejection needs a reason", func() {
		d := s.createDossier()
		_, err := s.service.Reject(s.ctx(s.admin, time.Hour), d.ID, "")
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("terminal dossiers refuse further operations", func() {
		d := s.createDossier()
		_, err := s.service.Reject(s.ctx(s.admin, time.Hour), d.ID, "duplicate submission")
		s.Require().NoError(err)

		_, err = s.service.AssignExpert(s.ctx(s.admin, 2*time.Hour), d.ID, domain.NewExpertID())
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidTransition))
	})
}

func (s *ServiceSuite) TestOverdueSteps() {
	d := s.createDossier()
	assigned, err := s.service.AssignExpert(s.ctx(s.admin, time.Hour), d.ID, domain.NewExpertID())
	s.Require().NoError(err)

	// Before any due date passes the view is empty.
	overdue, err := s.service.OverdueSteps(s.ctx(s.admin, 2*time.Hour), d.ID)
	s.Require().NoError(err)
	s.Empty(overdue)

	// Far enough in the future every unfinished step is overdue.
	overdue, err = s.service.OverdueSteps(s.ctx(s.admin, 365*24*time.Hour), d.ID)
	s.Require().NoError(err)
	s.Len(overdue, len(assigned.Steps))
}

func (s *ServiceSuite) TestConcurrentModification() {
	d := s.createDossier()
	_, err := s.service.AssignExpert(s.ctx(s.admin, time.Hour), d.ID, domain.NewExpertID())
	s.Require().NoError(err)

	svc := New(&stalingStore{DossierStore: s.store}, product.NewStaticRegistry())
	_, err = svc.StartWork(s.ctx(s.expert, 2*time.Hour), d.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeConcurrentModification))
}

// stalingStore simulates a writer that slips in between the service's read
// and write, as happens when two requests race on the same dossier.
type stalingStore struct {
	DossierStore
}

func (s *stalingStore) Update(ctx context.Context, d *models.Dossier, _ time.Time, _ []models.DomainEvent) error {
	return sentinel.ErrConcurrentModification
}
