// Package notify turns domain events into per-recipient feed entries. The
// dispatcher hands it events from the outbox; it resolves who needs to know
// and pushes a notification onto each recipient's feed.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"dossierflow/internal/dossier/models"
	"dossierflow/pkg/domain"
)

// Recipient addresses one feed. Admin notifications are a broadcast feed
// shared by the back office, so their ID stays zero.
type Recipient struct {
	Kind domain.ActorKind `json:"kind"`
	ID   uuid.UUID        `json:"id,omitempty"`
}

// Key is the feed identifier used by the stores.
func (r Recipient) Key() string {
	if r.ID == uuid.Nil {
		return string(r.Kind)
	}
	return string(r.Kind) + ":" + r.ID.String()
}

// Notification is one feed entry.
type Notification struct {
	ID        uuid.UUID        `json:"id"`
	DossierID domain.DossierID `json:"dossier_id"`
	Kind      models.EventKind `json:"kind"`
	Recipient Recipient        `json:"recipient"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	ActionURL string           `json:"action_url,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
}

// FeedStore holds per-recipient notification feeds, newest first.
type FeedStore interface {
	Push(ctx context.Context, n Notification) error
	Recent(ctx context.Context, r Recipient, limit int) ([]Notification, error)
}

// DossierReader resolves a dossier so the notifier can address its parties.
type DossierReader interface {
	FindByID(ctx context.Context, id domain.DossierID) (*models.Dossier, error)
}

// Notifier is the notification sink for the outbox dispatcher.
type Notifier struct {
	feeds    FeedStore
	dossiers DossierReader
	logger   *slog.Logger
}

func NewNotifier(feeds FeedStore, dossiers DossierReader, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{feeds: feeds, dossiers: dossiers, logger: logger}
}

// Name identifies the sink in dispatcher logs and metrics.
func (n *Notifier) Name() string { return "notify" }

// Deliver fans one event out to every interested party's feed.
func (n *Notifier) Deliver(ctx context.Context, e models.DomainEvent) error {
	d, err := n.dossiers.FindByID(ctx, e.DossierID)
	if err != nil {
		return fmt.Errorf("resolve dossier %s: %w", e.DossierID, err)
	}

	for _, r := range recipientsFor(e, d) {
		title, message := renderMessage(e, d)
		entry := Notification{
			ID:        uuid.New(),
			DossierID: e.DossierID,
			Kind:      e.Kind,
			Recipient: r,
			Title:     title,
			Message:   message,
			ActionURL: "/dossiers/" + e.DossierID.String(),
			CreatedAt: e.Timestamp,
		}
		if err := n.feeds.Push(ctx, entry); err != nil {
			return fmt.Errorf("push to %s: %w", r.Key(), err)
		}
		n.logger.DebugContext(ctx, "notification pushed",
			"dossier_id", e.DossierID,
			"kind", e.Kind,
			"recipient", r.Key(),
		)
	}
	return nil
}

// recipientsFor encodes the fan-out rules: who cares about which lifecycle
// event. The back office receives a broadcast for everything it needs to act
// on; client and expert only get what concerns their side.
func recipientsFor(e models.DomainEvent, d *models.Dossier) []Recipient {
	admin := Recipient{Kind: domain.ActorAdmin}
	client := Recipient{Kind: domain.ActorClient, ID: uuid.UUID(d.ClientID)}
	var expert *Recipient
	if d.ExpertID != nil {
		expert = &Recipient{Kind: domain.ActorExpert, ID: uuid.UUID(*d.ExpertID)}
	}

	var out []Recipient
	switch e.Kind {
	case models.EventDossierCreated:
		out = []Recipient{admin, client}
	case models.EventExpertAssigned:
		out = []Recipient{client}
		if expert != nil {
			out = append(out, *expert)
		}
	case models.EventWorkStarted, models.EventStepCompleted, models.EventStepAdvanced, models.EventStepUnblocked:
		out = []Recipient{client}
	case models.EventStepBlocked:
		out = []Recipient{client, admin}
	case models.EventQuoteProposed, models.EventQuoteInfoProvided:
		out = []Recipient{client}
	case models.EventQuoteAccepted, models.EventQuoteRejected, models.EventQuoteInfoRequested:
		if expert != nil {
			out = []Recipient{*expert}
		}
	case models.EventAuditFinalized, models.EventAuditAmended, models.EventDossierValidated, models.EventPaymentConfirmed:
		out = []Recipient{client, admin}
	case models.EventDossierRejected:
		out = []Recipient{client, admin}
	default:
		out = []Recipient{admin}
	}
	return out
}

func renderMessage(e models.DomainEvent, d *models.Dossier) (title, message string) {
	switch e.Kind {
	case models.EventDossierCreated:
		return "Dossier opened", fmt.Sprintf("A new %s dossier is waiting for an expert.", d.ProductCategory)
	case models.EventExpertAssigned:
		return "Expert assigned", "An expert has been assigned to your dossier."
	case models.EventWorkStarted:
		return "Work started", "Your expert has started processing the dossier."
	case models.EventStepCompleted:
		return "Step completed", fmt.Sprintf("Your dossier is now %d%% complete.", d.Progress)
	case models.EventStepBlocked:
		return "Step blocked", "A step on the dossier is blocked and needs attention."
	case models.EventStepUnblocked:
		return "Step unblocked", "A previously blocked step can move again."
	case models.EventQuoteProposed:
		return "Quote received", "Your expert sent a fee quote for review."
	case models.EventQuoteAccepted:
		return "Quote accepted", "The client accepted your quote."
	case models.EventQuoteRejected:
		return "Quote declined", "The client declined your quote."
	case models.EventQuoteInfoRequested:
		return "Question on your quote", "The client asked for more information about your quote."
	case models.EventQuoteInfoProvided:
		return "Quote updated", "Your expert answered your question on the quote."
	case models.EventAuditFinalized:
		return "Audit completed", "The audit result for the dossier is available."
	case models.EventAuditAmended:
		return "Audit amended", "The audit result for the dossier was revised."
	case models.EventDossierValidated:
		return "Dossier validated", "All steps are complete; the refund is being processed."
	case models.EventPaymentConfirmed:
		return "Refund paid", "The refund payment for your dossier was confirmed."
	case models.EventDossierRejected:
		return "Dossier closed", "The dossier was closed: " + d.RejectionReason
	default:
		return string(e.Kind), "Dossier update."
	}
}
