package middleware

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/allresumeservices/client-intake/internal/service"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func countingHandler(calls *int, status int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*calls++
		body, _ := io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"echo":` + string(body) + `}`))
	})
}

func idemRequest(key, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/intake/drafts/tok/finalize", strings.NewReader(body))
	if key != "" {
		req.Header.Set(IdempotencyKeyHeader, key)
	}
	return req
}

func TestIdempotencyReplaysFirstResponse(t *testing.T) {
	calls := 0
	h := Idempotency(service.NewInMemoryIdempotencyStore(), "finalize", time.Hour, discardLogger())(countingHandler(&calls, http.StatusCreated))

	first := httptest.NewRecorder()
	h.ServeHTTP(first, idemRequest("k1", `1`))
	second := httptest.NewRecorder()
	h.ServeHTTP(second, idemRequest("k1", `1`))

	if calls != 1 {
		t.Fatalf("expected handler to run once, ran %d times", calls)
	}
	if second.Code != http.StatusCreated || second.Body.String() != first.Body.String() {
		t.Fatalf("expected identical replay, got %d %q vs %q", second.Code, second.Body.String(), first.Body.String())
	}
	if second.Header().Get("Idempotent-Replayed") != "true" {
		t.Fatal("expected replay header")
	}

	conflict := httptest.NewRecorder()
	h.ServeHTTP(conflict, idemRequest("k1", `2`))
	if conflict.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for reused key with new body, got %d", conflict.Code)
	}
}

func TestIdempotencyCapturesImplicitStatusAndKeepsFlusher(t *testing.T) {
	calls := 0
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		flusher, ok := w.(http.Flusher)
		if !ok {
			t.Fatal("wrapped writer must still implement http.Flusher")
		}
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("part-1;"))
		flusher.Flush()
		_, _ = w.Write([]byte("part-2"))
	})
	h := Idempotency(service.NewInMemoryIdempotencyStore(), "uploads", time.Hour, discardLogger())(next)

	first := httptest.NewRecorder()
	h.ServeHTTP(first, idemRequest("k-stream", `{}`))
	if first.Code != http.StatusOK || first.Body.String() != "part-1;part-2" || !first.Flushed {
		t.Fatalf("unexpected first response: %d %q flushed=%v", first.Code, first.Body.String(), first.Flushed)
	}

	replay := httptest.NewRecorder()
	h.ServeHTTP(replay, idemRequest("k-stream", `{}`))
	if calls != 1 {
		t.Fatalf("expected one handler run, got %d", calls)
	}
	if replay.Code != http.StatusOK || replay.Body.String() != "part-1;part-2" || replay.Header().Get("Content-Type") != "text/plain" {
		t.Fatalf("unexpected replay: %d %q %q", replay.Code, replay.Body.String(), replay.Header().Get("Content-Type"))
	}
}

func TestIdempotencyReleasesOnServerError(t *testing.T) {
	calls := 0
	h := Idempotency(service.NewInMemoryIdempotencyStore(), "finalize", time.Hour, discardLogger())(countingHandler(&calls, http.StatusInternalServerError))

	for i := 0; i < 2; i++ {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, idemRequest("k2", `{}`))
		if rr.Code != http.StatusInternalServerError {
			t.Fatalf("expected 500, got %d", rr.Code)
		}
	}
	if calls != 2 {
		t.Fatalf("expected retry after server error to run again, ran %d", calls)
	}
}

func TestIdempotencyPassThrough(t *testing.T) {
	calls := 0
	h := Idempotency(service.NewInMemoryIdempotencyStore(), "finalize", time.Hour, discardLogger())(countingHandler(&calls, http.StatusOK))
	for i := 0; i < 2; i++ {
		h.ServeHTTP(httptest.NewRecorder(), idemRequest("", `{}`))
	}
	if calls != 2 {
		t.Fatalf("requests without a key must not be deduplicated, ran %d", calls)
	}

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, idemRequest(strings.Repeat("k", 200), `{}`))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for oversized key, got %d", rr.Code)
	}
}

type failingIdempotencyStore struct{}

func (failingIdempotencyStore) Begin(context.Context, string, string, string, time.Duration) (service.IdempotencyBeginResult, error) {
	return service.IdempotencyBeginResult{}, errors.New("redis down")
}

func (failingIdempotencyStore) Complete(context.Context, string, string, string, service.CachedHTTPResponse, time.Duration) error {
	return nil
}

func (failingIdempotencyStore) Release(context.Context, string, string, string) error {
	return nil
}

func TestIdempotencyStoreFailureFailsOpen(t *testing.T) {
	calls := 0
	h := Idempotency(failingIdempotencyStore{}, "tokens", time.Hour, discardLogger())(countingHandler(&calls, http.StatusCreated))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, idemRequest("k3", `{}`))
	if rr.Code != http.StatusCreated || calls != 1 {
		t.Fatalf("expected request to proceed, got %d calls=%d", rr.Code, calls)
	}
}

func TestIdempotencyInProgress(t *testing.T) {
	store := service.NewInMemoryIdempotencyStore()
	if _, err := store.Begin(context.Background(), "finalize", "k4", requestFingerprint(idemRequest("k4", `{}`), []byte(`{}`)), time.Hour); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	calls := 0
	h := Idempotency(store, "finalize", time.Hour, discardLogger())(countingHandler(&calls, http.StatusCreated))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, idemRequest("k4", `{}`))
	if rr.Code != http.StatusConflict || calls != 0 {
		t.Fatalf("expected 409 while in progress, got %d calls=%d", rr.Code, calls)
	}
}
