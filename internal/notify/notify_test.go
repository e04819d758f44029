package notify

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"dossierflow/internal/dossier/models"
	"dossierflow/internal/dossier/store"
	"dossierflow/pkg/domain"
)

type NotifierSuite struct {
	suite.Suite

	ctx      context.Context
	store    *store.InMemory
	feed     *InMemoryFeed
	notifier *Notifier
	now      time.Time

	dossier *models.Dossier
	expert  domain.ExpertID
}

func TestNotifierSuite(t *testing.T) {
	suite.Run(t, new(NotifierSuite))
}

func (s *NotifierSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = store.NewInMemory()
	s.feed = NewInMemoryFeed(0)
	s.notifier = NewNotifier(s.feed, s.store, nil)
	s.now = time.Date(2026, 5, 7, 14, 0, 0, 0, time.UTC)
	s.expert = domain.NewExpertID()

	d, err := models.NewDossier(
		domain.NewDossierID(), domain.NewClientID(), domain.NewProductID(),
		"ticpe", 1, 8000, nil, s.now,
	)
	s.Require().NoError(err)
	s.dossier = d
	s.Require().NoError(s.store.Create(s.ctx, d, nil))
}

func (s *NotifierSuite) assign() {
	steps := []models.Step{{
		ID: domain.NewStepID(), Name: "Fleet eligibility validation",
		Type: models.StepValidation, Status: models.StepPending,
	}}
	admin := domain.Actor{ID: uuid.New(), Kind: domain.ActorAdmin}
	stale := s.dossier.UpdatedAt
	events, err := s.dossier.AssignExpert(s.expert, steps, admin, s.now.Add(time.Minute))
	s.Require().NoError(err)
	s.Require().NoError(s.store.Update(s.ctx, s.dossier, stale, events))
}

func (s *NotifierSuite) deliver(kind models.EventKind) {
	e := models.DomainEvent{
		DossierID: s.dossier.ID,
		Kind:      kind,
		Actor:     domain.Actor{ID: uuid.New(), Kind: domain.ActorAdmin},
		Timestamp: s.now,
	}
	s.Require().NoError(s.notifier.Deliver(s.ctx, e))
}

func (s *NotifierSuite) feedFor(r Recipient) []Notification {
	out, err := s.feed.Recent(s.ctx, r, 10)
	s.Require().NoError(err)
	return out
}

func (s *NotifierSuite) TestCreatedFansOutToAdminAndClient() {
	s.deliver(models.EventDossierCreated)

	admin := s.feedFor(Recipient{Kind: domain.ActorAdmin})
	s.Require().Len(admin, 1)
	s.Equal("Dossier opened", admin[0].Title)
	s.Equal("/dossiers/"+s.dossier.ID.String(), admin[0].ActionURL)

	client := s.feedFor(Recipient{Kind: domain.ActorClient, ID: uuid.UUID(s.dossier.ClientID)})
	s.Require().Len(client, 1)
}

func (s *NotifierSuite) TestQuoteDecisionsReachTheExpert() {
	s.assign()
	s.deliver(models.EventQuoteAccepted)

	expert := s.feedFor(Recipient{Kind: domain.ActorExpert, ID: uuid.UUID(s.expert)})
	s.Require().Len(expert, 1)
	s.Equal("Quote accepted", expert[0].Title)

	// The client proposed nothing to be told about.
	client := s.feedFor(Recipient{Kind: domain.ActorClient, ID: uuid.UUID(s.dossier.ClientID)})
	s.Empty(client)
}

func (s *NotifierSuite) TestQuoteDecisionWithoutExpertIsDropped() {
	// No expert assigned yet: nothing to deliver, but no error either.
	s.deliver(models.EventQuoteAccepted)
	s.Empty(s.feedFor(Recipient{Kind: domain.ActorAdmin}))
}

func (s *NotifierSuite) TestUnknownDossierFails() {
	e := models.DomainEvent{DossierID: domain.NewDossierID(), Kind: models.EventWorkStarted, Timestamp: s.now}
	s.Error(s.notifier.Deliver(s.ctx, e))
}

func (s *NotifierSuite) TestFeedIsNewestFirstAndCapped() {
	feed := NewInMemoryFeed(3)
	r := Recipient{Kind: domain.ActorAdmin}
	for i := 0; i < 5; i++ {
		err := feed.Push(s.ctx, Notification{
			ID:        uuid.New(),
			Recipient: r,
			Title:     string(rune('a' + i)),
			CreatedAt: s.now.Add(time.Duration(i) * time.Minute),
		})
		s.Require().NoError(err)
	}

	out, err := feed.Recent(s.ctx, r, 10)
	s.Require().NoError(err)
	s.Require().Len(out, 3)
	s.Equal("e", out[0].Title)
	s.Equal("c", out[2].Title)
}
