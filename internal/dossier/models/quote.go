package models

import (
	"time"

	"dossierflow/pkg/domain"
	dErrors "dossierflow/pkg/domain-errors"
)

// QuoteComment is one side's message in the negotiation. The history is
// append-only; nothing ever rewrites an earlier comment.
type QuoteComment struct {
	Actor   domain.Actor `json:"actor"`
	Message string       `json:"message"`
	At      time.Time    `json:"at"`
}

// Quote is the devis exchanged between expert and client. One active
// instance per dossier; accepted is terminal, rejected is terminal for the
// cycle, and a fresh proposal after rejected/needs_info starts a new cycle
// over the same comment history.
type Quote struct {
	Status     QuoteStatus    `json:"status"`
	Amount     float64        `json:"amount"`
	ValidUntil time.Time      `json:"valid_until"`
	DocumentID string         `json:"document_id,omitempty"`
	Comments   []QuoteComment `json:"comments,omitempty"`
	ProposedAt time.Time      `json:"proposed_at"`
	ResolvedAt *time.Time     `json:"resolved_at,omitempty"`
	Cycle      int            `json:"cycle"`
}

func (q *Quote) clone() *Quote {
	cp := *q
	cp.Comments = make([]QuoteComment, len(q.Comments))
	copy(cp.Comments, q.Comments)
	if q.ResolvedAt != nil {
		resolved := *q.ResolvedAt
		cp.ResolvedAt = &resolved
	}
	return &cp
}

func (q *Quote) appendComment(actor domain.Actor, message string, now time.Time) {
	if message == "" {
		return
	}
	q.Comments = append(q.Comments, QuoteComment{Actor: actor, Message: message, At: now})
}

// quoteStatus treats an absent quote as the none state.
func (d *Dossier) quoteStatus() QuoteStatus {
	if d.Quote == nil {
		return QuoteNone
	}
	return d.Quote.Status
}

// ProposeQuote starts a negotiation cycle. Legal from none, or after a
// rejected/needs_info outcome (fresh cycle, amounts may change, comments
// accumulate). Accepted is terminal: no re-proposal.
func (d *Dossier) ProposeQuote(amount float64, validUntil time.Time, comment, documentID string, actor domain.Actor, now time.Time) ([]DomainEvent, error) {
	if d.Status.IsTerminal() {
		return nil, dErrors.Newf(dErrors.CodeInvalidTransition, "dossier is %s", d.Status)
	}
	from := d.quoteStatus()
	switch from {
	case QuoteNone, QuoteRejected, QuoteNeedsInfo:
	default:
		return nil, dErrors.Newf(dErrors.CodeInvalidQuoteState, "cannot propose while quote is %s", from)
	}
	if amount <= 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "quote amount must be positive")
	}
	if !validUntil.After(now) {
		return nil, dErrors.New(dErrors.CodeValidation, "quote validity must end in the future")
	}

	cycle := 1
	var comments []QuoteComment
	if d.Quote != nil {
		cycle = d.Quote.Cycle + 1
		comments = d.Quote.Comments
	}
	d.Quote = &Quote{
		Status:     QuoteProposed,
		Amount:     amount,
		ValidUntil: validUntil,
		DocumentID: documentID,
		Comments:   comments,
		ProposedAt: now,
		Cycle:      cycle,
	}
	d.Quote.appendComment(actor, comment, now)
	d.UpdatedAt = now
	return []DomainEvent{event(d, EventQuoteProposed, actor, string(from), string(QuoteProposed), now)}, nil
}

// AcceptQuote closes the negotiation. Acceptance also schedules the payment
// step if the ledger does not already carry a pending one.
func (d *Dossier) AcceptQuote(comment string, actor domain.Actor, now time.Time) ([]DomainEvent, error) {
	if err := d.requireQuoteState(QuoteProposed, "accept"); err != nil {
		return nil, err
	}
	d.Quote.Status = QuoteAccepted
	d.Quote.ResolvedAt = &now
	d.Quote.appendComment(actor, comment, now)
	d.schedulePaymentStep(now)
	d.UpdatedAt = now
	return []DomainEvent{event(d, EventQuoteAccepted, actor, string(QuoteProposed), string(QuoteAccepted), now)}, nil
}

// RejectQuote closes the current cycle. The refusal reason is mandatory.
func (d *Dossier) RejectQuote(comment string, actor domain.Actor, now time.Time) ([]DomainEvent, error) {
	if comment == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "refusal reason is required")
	}
	if err := d.requireQuoteState(QuoteProposed, "reject"); err != nil {
		return nil, err
	}
	d.Quote.Status = QuoteRejected
	d.Quote.ResolvedAt = &now
	d.Quote.appendComment(actor, comment, now)
	d.UpdatedAt = now
	return []DomainEvent{event(d, EventQuoteRejected, actor, string(QuoteProposed), string(QuoteRejected), now)}, nil
}

// RequestQuoteInfo is the client side of the ping-pong loop.
func (d *Dossier) RequestQuoteInfo(comment string, actor domain.Actor, now time.Time) ([]DomainEvent, error) {
	if comment == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "information request needs a comment")
	}
	if err := d.requireQuoteState(QuoteProposed, "request information on"); err != nil {
		return nil, err
	}
	d.Quote.Status = QuoteNeedsInfo
	d.Quote.appendComment(actor, comment, now)
	d.UpdatedAt = now
	return []DomainEvent{event(d, EventQuoteInfoRequested, actor, string(QuoteProposed), string(QuoteNeedsInfo), now)}, nil
}

// RespondQuoteInfo is the expert side of the loop: the quote returns to
// proposed with the answer appended, any number of times.
func (d *Dossier) RespondQuoteInfo(comment string, actor domain.Actor, now time.Time) ([]DomainEvent, error) {
	if comment == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "response needs a comment")
	}
	if err := d.requireQuoteState(QuoteNeedsInfo, "respond on"); err != nil {
		return nil, err
	}
	d.Quote.Status = QuoteProposed
	d.Quote.appendComment(actor, comment, now)
	d.UpdatedAt = now
	return []DomainEvent{event(d, EventQuoteInfoProvided, actor, string(QuoteNeedsInfo), string(QuoteProposed), now)}, nil
}

func (d *Dossier) requireQuoteState(want QuoteStatus, verb string) error {
	if d.Status.IsTerminal() {
		return dErrors.Newf(dErrors.CodeInvalidTransition, "dossier is %s", d.Status)
	}
	if got := d.quoteStatus(); got != want {
		return dErrors.Newf(dErrors.CodeInvalidQuoteState, "cannot %s a %s quote", verb, got)
	}
	return nil
}
