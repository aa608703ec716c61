package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/allresumeservices/client-intake/internal/http/middleware"
	"github.com/allresumeservices/client-intake/internal/http/response"
	"github.com/allresumeservices/client-intake/internal/security"
	"github.com/allresumeservices/client-intake/internal/service"
)

const maxRequestBodyBytes = 1 << 20

// writeServiceError maps service errors onto HTTP responses. fallback is the
// message used for anything unrecognised.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		response.Error(w, r, http.StatusUnprocessableEntity, response.CodeValidationFailed, "one or more fields are invalid", verr.Fields)
	case errors.Is(err, service.ErrInvalidToken), errors.Is(err, security.ErrInvalidToken):
		response.Error(w, r, http.StatusBadRequest, response.CodeInvalidToken, "invalid intake token", nil)
	case errors.Is(err, service.ErrDraftNotFound):
		response.Error(w, r, http.StatusNotFound, response.CodeDraftNotFound, "no draft exists for this token", nil)
	case errors.Is(err, service.ErrAutosaveFailed):
		response.Error(w, r, http.StatusServiceUnavailable, response.CodeAutosaveFailed, "autosave failed, your changes are kept locally and will be retried", nil)
	case errors.Is(err, service.ErrDuplicateIntake):
		response.Error(w, r, http.StatusConflict, response.CodeDuplicateIntake, err.Error(), nil)
	case errors.Is(err, service.ErrFinalizeFailed):
		response.Error(w, r, http.StatusInternalServerError, response.CodeFinalizeFailed, "submission failed, please try again", nil)
	case errors.Is(err, service.ErrInvalidStatus):
		response.Error(w, r, http.StatusBadRequest, response.CodeInvalidStatus, err.Error(), nil)
	case errors.Is(err, service.ErrEmptyStatusUpdate):
		response.Error(w, r, http.StatusBadRequest, response.CodeBadRequest, err.Error(), nil)
	case errors.Is(err, service.ErrIntakeNotFound):
		response.Error(w, r, http.StatusNotFound, response.CodeNotFound, "intake record not found", nil)
	case errors.Is(err, service.ErrFileTooBig), errors.Is(err, service.ErrInvalidFileType), errors.Is(err, service.ErrInvalidUploadKind):
		response.Error(w, r, http.StatusBadRequest, response.CodeBadRequest, err.Error(), nil)
	case errors.Is(err, service.ErrUnauthorizedAccess):
		response.Error(w, r, http.StatusForbidden, response.CodeForbidden, err.Error(), nil)
	case errors.Is(err, service.ErrBucketCreationFailed), errors.Is(err, service.ErrURLGenerationFailed), errors.Is(err, service.ErrDeleteFailed):
		response.Error(w, r, http.StatusServiceUnavailable, response.CodeDependencyUnready, "file storage is unavailable", nil)
	default:
		response.Error(w, r, http.StatusInternalServerError, response.CodeInternal, fallback, nil)
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("decode request body: %w", err)
	}
	return nil
}

func parsePathID(raw string) (uint, error) {
	id, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
	if err != nil || id == 0 {
		return 0, errors.New("invalid id")
	}
	return uint(id), nil
}

func actorFromRequest(r *http.Request) service.Actor {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		return service.Actor{}
	}
	actor := service.Actor{ID: claims.Subject}
	if len(claims.Roles) > 0 {
		actor.Role = claims.Roles[0]
	}
	return actor
}
