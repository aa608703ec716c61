package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/allresumeservices/client-intake/internal/domain"
	"github.com/allresumeservices/client-intake/internal/http/response"
	"github.com/allresumeservices/client-intake/internal/observability"
	"github.com/allresumeservices/client-intake/internal/security"
	"github.com/allresumeservices/client-intake/internal/service"
)

// IntakeHandler serves the client-facing form: autosave, resume, finalize
// and file uploads. The token in the path is the only credential.
type IntakeHandler struct {
	drafts   service.DraftServiceInterface
	finalize service.FinalizeServiceInterface
	uploads  service.UploadService
	verifier service.TokenVerifier
	notifier service.IntakeNotifier
	logger   *slog.Logger
}

func NewIntakeHandler(
	drafts service.DraftServiceInterface,
	finalize service.FinalizeServiceInterface,
	uploads service.UploadService,
	verifier service.TokenVerifier,
	notifier service.IntakeNotifier,
	logger *slog.Logger,
) *IntakeHandler {
	return &IntakeHandler{
		drafts:   drafts,
		finalize: finalize,
		uploads:  uploads,
		verifier: verifier,
		notifier: notifier,
		logger:   logger,
	}
}

func (h *IntakeHandler) SaveDraft(w http.ResponseWriter, r *http.Request) {
	var in service.SaveDraftInput
	if err := decodeJSON(w, r, &in); err != nil {
		response.Error(w, r, http.StatusBadRequest, response.CodeBadRequest, "invalid payload", nil)
		return
	}
	view, err := h.drafts.Save(r.Context(), chi.URLParam(r, "token"), in)
	if err != nil {
		writeServiceError(w, r, err, "failed to save draft")
		return
	}
	response.JSON(w, r, http.StatusOK, view)
}

func (h *IntakeHandler) LoadDraft(w http.ResponseWriter, r *http.Request) {
	view, err := h.drafts.Load(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		writeServiceError(w, r, err, "failed to load draft")
		return
	}
	response.JSON(w, r, http.StatusOK, view)
}

func (h *IntakeHandler) DeleteDraft(w http.ResponseWriter, r *http.Request) {
	if err := h.drafts.Delete(r.Context(), chi.URLParam(r, "token")); err != nil {
		writeServiceError(w, r, err, "failed to delete draft")
		return
	}
	response.NoContent(w)
}

// Finalize submits the draft. Client and staff notifications go out after
// the record is committed and never affect the response.
func (h *IntakeHandler) Finalize(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	rec, err := h.finalize.Finalize(r.Context(), token)
	if err != nil {
		observability.EmitAudit(r.Context(), h.logger, observability.AuditInput{
			Event:     "intake.finalized",
			TargetID:  security.TokenFingerprint(token),
			Outcome:   "failure",
			Reason:    err.Error(),
			RequestID: chimiddleware.GetReqID(r.Context()),
		})
		writeServiceError(w, r, err, "failed to submit intake")
		return
	}

	observability.EmitAudit(r.Context(), h.logger, observability.AuditInput{
		Event:     "intake.finalized",
		TargetID:  strconv.FormatUint(uint64(rec.ID), 10),
		Outcome:   "success",
		RequestID: chimiddleware.GetReqID(r.Context()),
		Attrs:     []slog.Attr{slog.Int("history_entries", len(rec.EmploymentHistory))},
	})
	h.notifySubmitted(r.Context(), rec)
	response.JSON(w, r, http.StatusCreated, rec)
}

func (h *IntakeHandler) notifySubmitted(ctx context.Context, rec *domain.IntakeRecord) {
	if h.notifier == nil {
		return
	}
	err := h.notifier.IntakeSubmitted(context.WithoutCancel(ctx), service.IntakeSubmittedNotification{
		IntakeID:            rec.ID,
		Email:               rec.Email,
		FullName:            strings.TrimSpace(rec.FirstName + " " + rec.LastName),
		PurchasedService:    rec.PurchasedService,
		PaypalTransactionID: domain.StringValue(rec.PaypalTransactionID),
		OrderReference:      rec.OrderReference,
		SubmittedAt:         rec.SubmittedAt,
	})
	if err != nil {
		h.logger.WarnContext(ctx, "intake submitted notification failed", "intake_id", rec.ID, "error", err)
	}
}

func (h *IntakeHandler) PresignUpload(w http.ResponseWriter, r *http.Request) {
	token, ok := h.uploadToken(w, r)
	if !ok {
		return
	}
	var in service.PresignUploadInput
	if err := decodeJSON(w, r, &in); err != nil {
		response.Error(w, r, http.StatusBadRequest, response.CodeBadRequest, "invalid payload", nil)
		return
	}
	out, err := h.uploads.PresignUpload(r.Context(), token, in)
	if err != nil {
		writeServiceError(w, r, err, "failed to prepare upload")
		return
	}
	response.JSON(w, r, http.StatusCreated, out)
}

func (h *IntakeHandler) DeleteUpload(w http.ResponseWriter, r *http.Request) {
	token, ok := h.uploadToken(w, r)
	if !ok {
		return
	}
	key := strings.TrimSpace(r.URL.Query().Get("key"))
	if key == "" {
		response.Error(w, r, http.StatusBadRequest, response.CodeBadRequest, "key is required", nil)
		return
	}
	if err := h.uploads.DeleteUpload(r.Context(), token, key); err != nil {
		writeServiceError(w, r, err, "failed to delete upload")
		return
	}
	response.NoContent(w)
}

func (h *IntakeHandler) uploadToken(w http.ResponseWriter, r *http.Request) (string, bool) {
	if h.uploads == nil {
		response.Error(w, r, http.StatusServiceUnavailable, response.CodeDependencyUnready, "file uploads are not enabled", nil)
		return "", false
	}
	token := strings.TrimSpace(chi.URLParam(r, "token"))
	if token == "" {
		writeServiceError(w, r, service.ErrInvalidToken, "")
		return "", false
	}
	if h.verifier != nil {
		if _, err := h.verifier.Verify(token); err != nil {
			writeServiceError(w, r, err, "failed to verify token")
			return "", false
		}
	}
	return token, true
}
