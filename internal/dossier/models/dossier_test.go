package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"dossierflow/pkg/domain"
	dErrors "dossierflow/pkg/domain-errors"
)

type DossierSuite struct {
	suite.Suite
	now    time.Time
	admin  domain.Actor
	expert domain.Actor
}

func TestDossierSuite(t *testing.T) {
	suite.Run(t, new(DossierSuite))
}

func (s *DossierSuite) SetupTest() {
	s.now = time.Date(2026, 2, 2, 9, 0, 0, 0, time.UTC)
	s.admin = domain.Actor{ID: uuid.New(), Kind: domain.ActorAdmin}
	s.expert = domain.Actor{ID: uuid.New(), Kind: domain.ActorExpert}
}

func (s *DossierSuite) newDossier() *Dossier {
	d, err := NewDossier(domain.NewDossierID(), domain.ClientID(uuid.New()), domain.ProductID(uuid.New()), "ticpe", 2, 10000, map[string]string{"source": "referral"}, s.now)
	s.Require().NoError(err)
	return d
}

func (s *DossierSuite) assigned() *Dossier {
	d := s.newDossier()
	_, err := d.AssignExpert(domain.ExpertID(uuid.New()), []Step{
		{ID: domain.NewStepID(), Name: "Validation", Type: StepValidation, Status: StepPending},
		{ID: domain.NewStepID(), Name: "Expertise", Type: StepExpertise, Status: StepPending},
	}, s.admin, s.now)
	s.Require().NoError(err)
	return d
}

func (s *DossierSuite) completeAll(d *Dossier) {
	for i := range d.Steps {
		_, err := d.AdvanceStep(d.Steps[i].ID, StepInProgress, s.expert, s.now)
		s.Require().NoError(err)
		_, err = d.AdvanceStep(d.Steps[i].ID, StepCompleted, s.expert, s.now)
		s.Require().NoError(err)
	}
}

func (s *DossierSuite) audit() AuditResult {
	return AuditResult{
		MontantInitial:             10000,
		MontantFinal:               12000,
		ClientFeePercentageDefault: 0.3,
		RapportDetaille:            "final report",
		CompletedBy:                s.expert,
		CompletedAt:                s.now,
	}
}

func (s *DossierSuite) TestAssignExpert() {
	s.Run("legal only from eligible", func() {
		d := s.assigned()
		_, err := d.AssignExpert(domain.ExpertID(uuid.New()), []Step{{ID: domain.NewStepID(), Status: StepPending}}, s.admin, s.now)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidTransition))
	})

	s.Run("seeds the ledger", func() {
		d := s.assigned()
		s.Equal(StatusExpertAssigned, d.Status)
		s.Len(d.Steps, 2)
		s.Equal(0, d.CurrentStepIndex)
		s.NotNil(d.ExpertID)
	})

	s.Run("empty template is rejected", func() {
		d := s.newDossier()
		_, err := d.AssignExpert(domain.ExpertID(uuid.New()), nil, s.admin, s.now)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *DossierSuite) TestLifecycleToRefund() {
	d := s.assigned()
	s.completeAll(d)
	s.Equal(StatusInProgress, d.Status)

	events, err := d.ApplyAudit(s.audit(), false, s.expert, s.now)
	s.Require().NoError(err)
	s.Equal(StatusValidated, d.Status, "audit after last step validates the dossier")
	s.Require().Len(events, 2)
	s.Equal(EventAuditFinalized, events[0].Kind)
	s.Equal(EventDossierValidated, events[1].Kind)

	events, err = d.ConfirmPayment("INV-2026-0042", s.admin, s.now)
	s.Require().NoError(err)
	s.Equal(StatusRefundCompleted, d.Status)
	s.Equal(100, d.Progress)
	s.Equal(EventPaymentConfirmed, events[0].Kind)

	s.Run("terminal dossier is frozen", func() {
		_, err := d.ConfirmPayment("INV-2026-0042", s.admin, s.now)
		s.Require().Error(err)
		_, err = d.Reject("too late", s.admin, s.now)
		s.Require().Error(err)
	})
}

func (s *DossierSuite) TestAuditBeforeLastStep() {
	d := s.assigned()
	_, err := d.AdvanceStep(d.Steps[0].ID, StepInProgress, s.expert, s.now)
	s.Require().NoError(err)

	events, err := d.ApplyAudit(s.audit(), false, s.expert, s.now)
	s.Require().NoError(err)
	s.Equal(StatusInProgress, d.Status, "steps still open, no validation yet")
	s.Len(events, 1)

	// Finishing the ledger afterwards triggers validation from the step side.
	_, err = d.AdvanceStep(d.Steps[0].ID, StepCompleted, s.expert, s.now)
	s.Require().NoError(err)
	_, err = d.AdvanceStep(d.Steps[1].ID, StepInProgress, s.expert, s.now)
	s.Require().NoError(err)
	events, err = d.AdvanceStep(d.Steps[1].ID, StepCompleted, s.expert, s.now)
	s.Require().NoError(err)
	s.Equal(StatusValidated, d.Status)
	s.Equal(EventDossierValidated, events[len(events)-1].Kind)
}

func (s *DossierSuite) TestAuditIdempotence() {
	d := s.assigned()
	s.completeAll(d)
	first := s.audit()
	_, err := d.ApplyAudit(first, false, s.expert, s.now)
	s.Require().NoError(err)

	s.Run("second write fails", func() {
		second := s.audit()
		second.MontantFinal = 99999
		_, err := d.ApplyAudit(second, false, s.expert, s.now)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeAlreadyFinalized))
		s.Equal(12000.0, d.Audit.MontantFinal, "first result stays intact")
	})

	s.Run("admin amend supersedes and keeps history", func() {
		amended := s.audit()
		amended.MontantFinal = 13000
		events, err := d.ApplyAudit(amended, true, s.admin, s.now)
		s.Require().NoError(err)
		s.Equal(EventAuditAmended, events[0].Kind)
		s.Equal(13000.0, d.Audit.MontantFinal)
		s.True(d.Audit.Amended)
		s.Require().Len(d.AuditHistory, 1)
		s.Equal(12000.0, d.AuditHistory[0].MontantFinal)
	})

	s.Run("non-admin cannot amend", func() {
		amended := s.audit()
		_, err := d.ApplyAudit(amended, true, s.expert, s.now)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *DossierSuite) TestReject() {
	s.Run("requires a reason", func() {
		d := s.assigned()
		_, err := d.Reject("", s.admin, s.now)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("legal from every non-terminal state", func() {
		for _, build := range []func() *Dossier{s.newDossier, s.assigned} {
			d := build()
			_, err := d.Reject("not eligible after review", s.admin, s.now)
			s.Require().NoError(err)
			s.Equal(StatusRejected, d.Status)
			s.Equal("not eligible after review", d.RejectionReason)
		}
	})
}

func (s *DossierSuite) TestClone() {
	d := s.assigned()
	_, err := d.ProposeQuote(2000, s.now.Add(24*time.Hour), "proposal", "doc-1", s.expert, s.now)
	s.Require().NoError(err)

	cp := d.Clone()
	cp.Steps[0].Status = StepCompleted
	cp.Quote.Status = QuoteAccepted
	cp.Provenance["source"] = "changed"
	*cp.ExpertID = domain.ExpertID(uuid.New())

	s.Equal(StepPending, d.Steps[0].Status)
	s.Equal(QuoteProposed, d.Quote.Status)
	s.Equal("referral", d.Provenance["source"])
	s.NotEqual(*cp.ExpertID, *d.ExpertID)
}
