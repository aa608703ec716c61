package response

import (
	"encoding/json"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

const (
	CodeBadRequest          = "BAD_REQUEST"
	CodeUnauthorized        = "UNAUTHORIZED"
	CodeForbidden           = "FORBIDDEN"
	CodeNotFound            = "NOT_FOUND"
	CodeMethodNotAllowed    = "METHOD_NOT_ALLOWED"
	CodeConflict            = "CONFLICT"
	CodeInternal            = "INTERNAL"
	CodeRateLimited         = "RATE_LIMITED"
	CodeDependencyUnready   = "DEPENDENCY_UNREADY"
	CodeValidationFailed    = "VALIDATION_FAILED"
	CodeInvalidToken        = "INVALID_TOKEN"
	CodeDraftNotFound       = "DRAFT_NOT_FOUND"
	CodeAutosaveFailed      = "AUTOSAVE_FAILED"
	CodeFinalizeFailed      = "FINALIZE_FAILED"
	CodeDuplicateIntake     = "DUPLICATE_INTAKE"
	CodeInvalidStatus       = "INVALID_STATUS"
	CodeIdempotencyConflict = "IDEMPOTENCY_CONFLICT"
)

var problemTitles = map[string]string{
	CodeBadRequest:          "Bad Request",
	CodeUnauthorized:        "Unauthorized",
	CodeForbidden:           "Forbidden",
	CodeNotFound:            "Not Found",
	CodeMethodNotAllowed:    "Method Not Allowed",
	CodeConflict:            "Conflict",
	CodeInternal:            "Internal Server Error",
	CodeRateLimited:         "Too Many Requests",
	CodeDependencyUnready:   "Service Unavailable",
	CodeValidationFailed:    "Validation Failed",
	CodeInvalidToken:        "Invalid Intake Token",
	CodeDraftNotFound:       "Draft Not Found",
	CodeAutosaveFailed:      "Autosave Failed",
	CodeFinalizeFailed:      "Finalize Failed",
	CodeDuplicateIntake:     "Duplicate Intake",
	CodeInvalidStatus:       "Invalid Status",
	CodeIdempotencyConflict: "Idempotency Key Conflict",
}

type envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *apiError   `json:"error,omitempty"`
	Meta    meta        `json:"meta"`
}

type apiError struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

type meta struct {
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
}

type problemDetails struct {
	Type      string      `json:"type"`
	Title     string      `json:"title"`
	Status    int         `json:"status"`
	Detail    string      `json:"detail"`
	Instance  string      `json:"instance"`
	Code      string      `json:"code"`
	RequestID string      `json:"request_id"`
	Errors    interface{} `json:"errors,omitempty"`
}

func JSON(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{Success: true, Data: data, Meta: buildMeta(r)})
}

func Error(w http.ResponseWriter, r *http.Request, status int, code, message string, details interface{}) {
	if prefersProblemJSON(r) {
		w.Header().Set("Content-Type", "application/problem+json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(problemDetails{
			Type:      problemType(code),
			Title:     problemTitle(code, status),
			Status:    status,
			Detail:    message,
			Instance:  r.URL.Path,
			Code:      code,
			RequestID: buildMeta(r).RequestID,
			Errors:    details,
		})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{
		Success: false,
		Error:   &apiError{Code: code, Message: message, Details: details},
		Meta:    buildMeta(r),
	})
}

func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

func buildMeta(r *http.Request) meta {
	id := chimiddleware.GetReqID(r.Context())
	if id == "" {
		id = r.Header.Get("X-Request-Id")
	}
	if id == "" {
		id = "req-unknown"
	}
	return meta{RequestID: id, Timestamp: time.Now().UTC()}
}

// prefersProblemJSON reports whether the client listed problem+json in
// Accept with a non-zero quality.
func prefersProblemJSON(r *http.Request) bool {
	for _, item := range strings.Split(r.Header.Get("Accept"), ",") {
		mediaType, params, err := mime.ParseMediaType(strings.TrimSpace(item))
		if err != nil || mediaType != "application/problem+json" {
			continue
		}
		if q, ok := params["q"]; ok {
			if v, err := strconv.ParseFloat(q, 64); err != nil || v <= 0 {
				continue
			}
		}
		return true
	}
	return false
}

func problemType(code string) string {
	slug := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(code)), "_", "-")
	if slug == "" {
		slug = "unknown"
	}
	return "urn:problem:client-intake:" + slug
}

func problemTitle(code string, status int) string {
	if title, ok := problemTitles[strings.ToUpper(strings.TrimSpace(code))]; ok {
		return title
	}
	if text := http.StatusText(status); text != "" {
		return text
	}
	return "Error"
}
