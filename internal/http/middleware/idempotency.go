package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/allresumeservices/client-intake/internal/http/response"
	"github.com/allresumeservices/client-intake/internal/service"
)

const (
	IdempotencyKeyHeader      = "Idempotency-Key"
	idempotencyReplayedHeader = "Idempotent-Replayed"
	maxIdempotencyKeyLen      = 128
	maxIdempotentBodyBytes    = 1 << 20
)

// Idempotency replays the first response for a repeated Idempotency-Key.
// Requests without the header pass through. Server errors release the key so
// a retry runs again. A failing store never blocks the request.
func Idempotency(store service.IdempotencyStore, scope string, ttl time.Duration, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := strings.TrimSpace(r.Header.Get(IdempotencyKeyHeader))
			if key == "" || store == nil {
				next.ServeHTTP(w, r)
				return
			}
			if len(key) > maxIdempotencyKeyLen {
				response.Error(w, r, http.StatusBadRequest, response.CodeBadRequest, "idempotency key too long", nil)
				return
			}

			body, err := io.ReadAll(io.LimitReader(r.Body, maxIdempotentBodyBytes))
			if err != nil {
				response.Error(w, r, http.StatusBadRequest, response.CodeBadRequest, "unreadable request body", nil)
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))
			fp := requestFingerprint(r, body)

			begin, err := store.Begin(r.Context(), scope, key, fp, ttl)
			if err != nil {
				logger.WarnContext(r.Context(), "idempotency store unavailable", "scope", scope, "error", err)
				next.ServeHTTP(w, r)
				return
			}
			switch begin.State {
			case service.IdempotencyStateReplay:
				w.Header().Set("Content-Type", begin.Cached.ContentType)
				w.Header().Set(idempotencyReplayedHeader, "true")
				w.WriteHeader(begin.Cached.StatusCode)
				_, _ = w.Write(begin.Cached.Body)
				return
			case service.IdempotencyStateConflict:
				response.Error(w, r, http.StatusUnprocessableEntity, response.CodeIdempotencyConflict, "idempotency key reused with a different request", nil)
				return
			case service.IdempotencyStateInProgress:
				w.Header().Set("Retry-After", "1")
				response.Error(w, r, http.StatusConflict, response.CodeConflict, "a request with this idempotency key is in progress", nil)
				return
			}

			var captured bytes.Buffer
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			ww.Tee(&captured)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			if status >= 500 {
				if err := store.Release(r.Context(), scope, key, fp); err != nil {
					logger.WarnContext(r.Context(), "idempotency release failed", "scope", scope, "error", err)
				}
				return
			}
			cached := service.CachedHTTPResponse{
				StatusCode:  status,
				ContentType: ww.Header().Get("Content-Type"),
				Body:        captured.Bytes(),
			}
			if err := store.Complete(r.Context(), scope, key, fp, cached, ttl); err != nil {
				logger.WarnContext(r.Context(), "idempotency complete failed", "scope", scope, "error", err)
			}
		})
	}
}

func requestFingerprint(r *http.Request, body []byte) string {
	h := sha256.New()
	_, _ = io.WriteString(h, r.Method+"\n"+r.URL.Path+"\n")
	_, _ = h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}
