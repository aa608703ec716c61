package handler

import (
	"context"
	"log/slog"
	"net/http"

	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/allresumeservices/client-intake/internal/http/response"
	"github.com/allresumeservices/client-intake/internal/observability"
	"github.com/allresumeservices/client-intake/internal/security"
	"github.com/allresumeservices/client-intake/internal/service"
)

// TokenHandler is called by the payment collaborator once a purchase clears.
type TokenHandler struct {
	tokens   service.TokenServiceInterface
	notifier service.IntakeNotifier
	logger   *slog.Logger
}

func NewTokenHandler(tokens service.TokenServiceInterface, notifier service.IntakeNotifier, logger *slog.Logger) *TokenHandler {
	return &TokenHandler{tokens: tokens, notifier: notifier, logger: logger}
}

func (h *TokenHandler) Issue(w http.ResponseWriter, r *http.Request) {
	var in service.IssueTokenInput
	if err := decodeJSON(w, r, &in); err != nil {
		response.Error(w, r, http.StatusBadRequest, response.CodeBadRequest, "invalid payload", nil)
		return
	}
	out, err := h.tokens.Issue(r.Context(), in)
	if err != nil {
		writeServiceError(w, r, err, "failed to issue intake token")
		return
	}

	actor := actorFromRequest(r)
	observability.EmitAudit(r.Context(), h.logger, observability.AuditInput{
		Event:     "intake.token_issued",
		ActorID:   actor.ID,
		ActorRole: actor.Role,
		TargetID:  security.TokenFingerprint(out.Token),
		Outcome:   "success",
		RequestID: chimiddleware.GetReqID(r.Context()),
		Attrs:     []slog.Attr{slog.String("order_reference", out.OrderReference)},
	})

	if in.Email != "" && h.notifier != nil {
		err := h.notifier.ResumeLinkIssued(context.WithoutCancel(r.Context()), service.ResumeLinkNotification{
			Email:          in.Email,
			FirstName:      in.FirstName,
			OrderReference: out.OrderReference,
			ResumeURL:      out.ResumeURL,
		})
		if err != nil {
			h.logger.WarnContext(r.Context(), "resume link notification failed", "order_reference", out.OrderReference, "error", err)
		}
	}
	response.JSON(w, r, http.StatusCreated, out)
}
