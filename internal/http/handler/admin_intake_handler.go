package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/allresumeservices/client-intake/internal/http/response"
	"github.com/allresumeservices/client-intake/internal/service"
)

const dateLayout = "2006-01-02"

type AdminIntakeHandler struct {
	svc      service.IntakeAdminServiceInterface
	notifier service.IntakeNotifier
	logger   *slog.Logger
}

func NewAdminIntakeHandler(svc service.IntakeAdminServiceInterface, notifier service.IntakeNotifier, logger *slog.Logger) *AdminIntakeHandler {
	return &AdminIntakeHandler{svc: svc, notifier: notifier, logger: logger}
}

func (h *AdminIntakeHandler) List(w http.ResponseWriter, r *http.Request) {
	filter, err := parseIntakeListFilter(r)
	if err != nil {
		response.Error(w, r, http.StatusBadRequest, response.CodeBadRequest, err.Error(), nil)
		return
	}
	page, err := h.svc.List(r.Context(), filter)
	if err != nil {
		writeServiceError(w, r, err, "failed to list intakes")
		return
	}
	response.JSON(w, r, http.StatusOK, page)
}

func (h *AdminIntakeHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parsePathID(chi.URLParam(r, "id"))
	if err != nil {
		response.Error(w, r, http.StatusBadRequest, response.CodeBadRequest, "invalid intake id", nil)
		return
	}
	rec, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err, "failed to load intake")
		return
	}
	response.JSON(w, r, http.StatusOK, rec)
}

func (h *AdminIntakeHandler) GetByTransaction(w http.ResponseWriter, r *http.Request) {
	txn := strings.TrimSpace(chi.URLParam(r, "transaction_id"))
	if txn == "" {
		response.Error(w, r, http.StatusBadRequest, response.CodeBadRequest, "transaction id is required", nil)
		return
	}
	rec, err := h.svc.GetByTransaction(r.Context(), txn)
	if err != nil {
		writeServiceError(w, r, err, "failed to load intake")
		return
	}
	response.JSON(w, r, http.StatusOK, rec)
}

func (h *AdminIntakeHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := parsePathID(chi.URLParam(r, "id"))
	if err != nil {
		response.Error(w, r, http.StatusBadRequest, response.CodeBadRequest, "invalid intake id", nil)
		return
	}
	var in service.UpdateStatusInput
	if err := decodeJSON(w, r, &in); err != nil {
		response.Error(w, r, http.StatusBadRequest, response.CodeBadRequest, "invalid payload", nil)
		return
	}
	actor := actorFromRequest(r)
	rec, err := h.svc.UpdateStatus(r.Context(), id, in, actor)
	if err != nil {
		writeServiceError(w, r, err, "failed to update intake")
		return
	}

	if in.Status != nil && h.notifier != nil {
		err := h.notifier.StatusChanged(context.WithoutCancel(r.Context()), service.StatusChangedNotification{
			IntakeID:  rec.ID,
			Status:    rec.Status,
			ChangedBy: actor.ID,
			ChangedAt: rec.UpdatedAt,
		})
		if err != nil {
			h.logger.WarnContext(r.Context(), "status change notification failed", "intake_id", rec.ID, "error", err)
		}
	}
	response.JSON(w, r, http.StatusOK, rec)
}

// parseIntakeListFilter reads status, q, service, from, to, page, page_size,
// sort_by and sort_order. Dates are YYYY-MM-DD; "to" covers the whole day.
func parseIntakeListFilter(r *http.Request) (service.IntakeListFilter, error) {
	q := r.URL.Query()
	f := service.IntakeListFilter{
		Status:    strings.TrimSpace(q.Get("status")),
		Search:    strings.TrimSpace(q.Get("q")),
		Service:   strings.TrimSpace(q.Get("service")),
		SortBy:    strings.TrimSpace(q.Get("sort_by")),
		SortOrder: strings.TrimSpace(q.Get("sort_order")),
	}
	var err error
	if f.Page, err = parseOptionalInt(q.Get("page"), "page"); err != nil {
		return f, err
	}
	if f.PageSize, err = parseOptionalInt(q.Get("page_size"), "page_size"); err != nil {
		return f, err
	}
	if v := strings.TrimSpace(q.Get("from")); v != "" {
		t, err := time.Parse(dateLayout, v)
		if err != nil {
			return f, errBadQuery("from")
		}
		f.SubmittedFrom = &t
	}
	if v := strings.TrimSpace(q.Get("to")); v != "" {
		t, err := time.Parse(dateLayout, v)
		if err != nil {
			return f, errBadQuery("to")
		}
		end := t.Add(24*time.Hour - time.Nanosecond)
		f.SubmittedTo = &end
	}
	if f.SubmittedFrom != nil && f.SubmittedTo != nil && f.SubmittedTo.Before(*f.SubmittedFrom) {
		return f, errBadQuery("to")
	}
	return f, nil
}

func parseOptionalInt(raw, name string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, errBadQuery(name)
	}
	return n, nil
}

type badQueryError string

func (e badQueryError) Error() string { return "invalid query parameter " + string(e) }

func errBadQuery(name string) error { return badQueryError(name) }
