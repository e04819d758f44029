// Package handler exposes the dossier workflow over HTTP. Handlers parse,
// delegate to the service, and translate coded errors; no workflow rules
// live here.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"dossierflow/internal/dossier/models"
	"dossierflow/internal/dossier/service"
	"dossierflow/internal/notify"
	"dossierflow/internal/platform/middleware"
	"dossierflow/internal/settlement"
	"dossierflow/pkg/domain"
	dErrors "dossierflow/pkg/domain-errors"
	"dossierflow/pkg/platform/httputil"
	actormw "dossierflow/pkg/platform/middleware/actor"
	"dossierflow/pkg/platform/middleware/requesttime"
	"dossierflow/pkg/requestcontext"
)

// Service is what the handlers need from the orchestrator.
type Service interface {
	CreateDossier(ctx context.Context, in service.CreateDossierInput) (*models.Dossier, error)
	AssignExpert(ctx context.Context, id domain.DossierID, expertID domain.ExpertID) (*models.Dossier, error)
	StartWork(ctx context.Context, id domain.DossierID) (*models.Dossier, error)
	AdvanceStep(ctx context.Context, id domain.DossierID, stepID domain.StepID, target models.StepStatus) (*models.Dossier, error)
	ProposeQuote(ctx context.Context, id domain.DossierID, proposal service.QuoteProposal) (*models.Dossier, error)
	AcceptQuote(ctx context.Context, id domain.DossierID, comment string) (*models.Dossier, error)
	RejectQuote(ctx context.Context, id domain.DossierID, comment string) (*models.Dossier, error)
	RequestQuoteInfo(ctx context.Context, id domain.DossierID, comment string) (*models.Dossier, error)
	RespondQuoteInfo(ctx context.Context, id domain.DossierID, comment string) (*models.Dossier, error)
	FinalizeAudit(ctx context.Context, id domain.DossierID, in settlement.AuditInput, amend bool) (*models.Dossier, error)
	ConfirmPayment(ctx context.Context, id domain.DossierID, invoiceID string) (*models.Dossier, error)
	Reject(ctx context.Context, id domain.DossierID, reason string) (*models.Dossier, error)
	Snapshot(ctx context.Context, id domain.DossierID) (*service.Snapshot, error)
	OverdueSteps(ctx context.Context, id domain.DossierID) ([]models.Step, error)
}

// Handler handles dossier workflow endpoints.
type Handler struct {
	service  Service
	feeds    notify.FeedStore
	resolver *actormw.Resolver
	logger   *slog.Logger
}

func New(svc Service, feeds notify.FeedStore, resolver *actormw.Resolver, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{service: svc, feeds: feeds, resolver: resolver, logger: logger}
}

// Register mounts the workflow routes.
func (h *Handler) Register(r chi.Router) {
	router := chi.NewRouter()
	router.Use(middleware.Recovery(h.logger))
	router.Use(middleware.RequestID)
	router.Use(requesttime.Middleware)
	router.Use(middleware.Logger(h.logger))
	router.Use(middleware.ContentTypeJSON)
	router.Use(actormw.Middleware(h.resolver, h.logger))

	router.Post("/dossiers", h.handleCreate)
	router.Route("/dossiers/{dossierID}", func(r chi.Router) {
		r.Get("/", h.handleSnapshot)
		r.Get("/overdue", h.handleOverdue)
		r.Post("/assign", h.handleAssignExpert)
		r.Post("/start", h.handleStartWork)
		r.Post("/steps/{stepID}", h.handleAdvanceStep)
		r.Post("/quote", h.handleProposeQuote)
		r.Post("/quote/accept", h.handleAcceptQuote)
		r.Post("/quote/reject", h.handleRejectQuote)
		r.Post("/quote/request-info", h.handleRequestQuoteInfo)
		r.Post("/quote/respond-info", h.handleRespondQuoteInfo)
		r.Post("/audit", h.handleFinalizeAudit)
		r.Post("/payment", h.handleConfirmPayment)
		r.Post("/reject", h.handleReject)
	})
	router.Get("/notifications", h.handleNotifications)

	r.Mount("/", router)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[createDossierRequest](w, r, h.logger, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	in, err := req.toInput()
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	d, err := h.service.CreateDossier(ctx, in)
	if err != nil {
		h.writeServiceError(w, r, "create dossier", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toDossierResponse(d, requestcontext.Actor(ctx)))
}

func (h *Handler) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := domain.ParseDossierID(chi.URLParam(r, "dossierID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	snap, err := h.service.Snapshot(ctx, id)
	if err != nil {
		h.writeServiceError(w, r, "load dossier", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toSnapshotResponse(snap, requestcontext.Actor(ctx)))
}

func (h *Handler) handleOverdue(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseDossierID(chi.URLParam(r, "dossierID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	steps, err := h.service.OverdueSteps(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, "load overdue steps", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string][]models.Step{"overdue_steps": steps})
}

func (h *Handler) handleAssignExpert(w http.ResponseWriter, r *http.Request) {
	h.mutation(w, r, "assign expert", func(ctx context.Context, id domain.DossierID) (*models.Dossier, error) {
		req, err := httputil.Decode[assignExpertRequest](w, r)
		if err != nil {
			return nil, err
		}
		expertID, err := domain.ParseExpertID(req.ExpertID)
		if err != nil {
			return nil, err
		}
		return h.service.AssignExpert(ctx, id, expertID)
	})
}

func (h *Handler) handleStartWork(w http.ResponseWriter, r *http.Request) {
	h.mutation(w, r, "start work", func(ctx context.Context, id domain.DossierID) (*models.Dossier, error) {
		return h.service.StartWork(ctx, id)
	})
}

func (h *Handler) handleAdvanceStep(w http.ResponseWriter, r *http.Request) {
	h.mutation(w, r, "advance step", func(ctx context.Context, id domain.DossierID) (*models.Dossier, error) {
		stepID, err := domain.ParseStepID(chi.URLParam(r, "stepID"))
		if err != nil {
			return nil, err
		}
		req, err := httputil.Decode[advanceStepRequest](w, r)
		if err != nil {
			return nil, err
		}
		target, err := req.target()
		if err != nil {
			return nil, err
		}
		return h.service.AdvanceStep(ctx, id, stepID, target)
	})
}

func (h *Handler) handleProposeQuote(w http.ResponseWriter, r *http.Request) {
	h.mutation(w, r, "propose quote", func(ctx context.Context, id domain.DossierID) (*models.Dossier, error) {
		req, err := httputil.Decode[proposeQuoteRequest](w, r)
		if err != nil {
			return nil, err
		}
		return h.service.ProposeQuote(ctx, id, req.toProposal())
	})
}

func (h *Handler) handleAcceptQuote(w http.ResponseWriter, r *http.Request) {
	h.quoteComment(w, r, "accept quote", h.service.AcceptQuote)
}

func (h *Handler) handleRejectQuote(w http.ResponseWriter, r *http.Request) {
	h.quoteComment(w, r, "reject quote", h.service.RejectQuote)
}

func (h *Handler) handleRequestQuoteInfo(w http.ResponseWriter, r *http.Request) {
	h.quoteComment(w, r, "request quote info", h.service.RequestQuoteInfo)
}

func (h *Handler) handleRespondQuoteInfo(w http.ResponseWriter, r *http.Request) {
	h.quoteComment(w, r, "respond quote info", h.service.RespondQuoteInfo)
}

func (h *Handler) handleFinalizeAudit(w http.ResponseWriter, r *http.Request) {
	h.mutation(w, r, "finalize audit", func(ctx context.Context, id domain.DossierID) (*models.Dossier, error) {
		req, err := httputil.Decode[finalizeAuditRequest](w, r)
		if err != nil {
			return nil, err
		}
		return h.service.FinalizeAudit(ctx, id, req.toInput(), req.Amend)
	})
}

func (h *Handler) handleConfirmPayment(w http.ResponseWriter, r *http.Request) {
	h.mutation(w, r, "confirm payment", func(ctx context.Context, id domain.DossierID) (*models.Dossier, error) {
		req, err := httputil.Decode[confirmPaymentRequest](w, r)
		if err != nil {
			return nil, err
		}
		return h.service.ConfirmPayment(ctx, id, req.InvoiceID)
	})
}

func (h *Handler) handleReject(w http.ResponseWriter, r *http.Request) {
	h.mutation(w, r, "reject dossier", func(ctx context.Context, id domain.DossierID) (*models.Dossier, error) {
		req, err := httputil.Decode[rejectDossierRequest](w, r)
		if err != nil {
			return nil, err
		}
		if err := req.validate(); err != nil {
			return nil, err
		}
		return h.service.Reject(ctx, id, req.Reason)
	})
}

// handleNotifications returns the caller's feed, newest first. Admins read
// the back-office broadcast feed.
func (h *Handler) handleNotifications(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := requestcontext.Actor(ctx)

	recipient := notify.Recipient{Kind: actor.Kind, ID: actor.ID}
	if actor.Kind == domain.ActorAdmin {
		recipient = notify.Recipient{Kind: domain.ActorAdmin}
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "limit must be a positive integer"))
			return
		}
		limit = parsed
	}

	feed, err := h.feeds.Recent(ctx, recipient, limit)
	if err != nil {
		h.writeServiceError(w, r, "load notifications", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string][]notify.Notification{"notifications": feed})
}

// mutation factors the shared shape of every write endpoint: parse the
// dossier id, run the operation, return the updated dossier.
func (h *Handler) mutation(w http.ResponseWriter, r *http.Request, op string, fn func(ctx context.Context, id domain.DossierID) (*models.Dossier, error)) {
	ctx := r.Context()
	id, err := domain.ParseDossierID(chi.URLParam(r, "dossierID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	d, err := fn(ctx, id)
	if err != nil {
		h.writeServiceError(w, r, op, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toDossierResponse(d, requestcontext.Actor(ctx)))
}

func (h *Handler) quoteComment(w http.ResponseWriter, r *http.Request, op string, fn func(ctx context.Context, id domain.DossierID, comment string) (*models.Dossier, error)) {
	h.mutation(w, r, op, func(ctx context.Context, id domain.DossierID) (*models.Dossier, error) {
		req, err := httputil.Decode[quoteCommentRequest](w, r)
		if err != nil {
			return nil, err
		}
		return fn(ctx, id, req.Comment)
	})
}

func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, op string, err error) {
	ctx := r.Context()
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, "operation failed",
			"operation", op,
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
	} else {
		h.logger.WarnContext(ctx, "operation rejected",
			"operation", op,
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
	}
	httputil.WriteError(w, err)
}
