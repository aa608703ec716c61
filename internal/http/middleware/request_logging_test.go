package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestRequestLoggerLogsRouteNotToken(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	r := chi.NewRouter()
	r.Use(RequestLogger(logger))
	r.Get("/api/v1/intake/drafts/{token}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/intake/drafts/tok_very_secret", nil))

	if strings.Contains(buf.String(), "tok_very_secret") {
		t.Fatalf("token leaked into request log: %s", buf.String())
	}
	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode log: %v", err)
	}
	if entry["route"] != "/api/v1/intake/drafts/{token}" || entry["status"] != float64(404) || entry["level"] != "WARN" {
		t.Fatalf("unexpected log entry: %+v", entry)
	}
}

func TestTracingNamesSpanAfterRoute(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	httpTracer = tp.Tracer("test")
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		httpTracer = otel.Tracer("github.com/allresumeservices/client-intake/internal/http")
		_ = tp.Shutdown(context.Background())
	})

	r := chi.NewRouter()
	r.Use(Tracing())
	r.Post("/api/v1/intake/drafts/{token}/finalize", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/v1/intake/drafts/abc/finalize", nil))

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected one span, got %d", len(spans))
	}
	if spans[0].Name != "POST /api/v1/intake/drafts/{token}/finalize" {
		t.Fatalf("unexpected span name %q", spans[0].Name)
	}
	if spans[0].Status.Code.String() != "Error" {
		t.Fatalf("expected error status for 500, got %v", spans[0].Status)
	}
}
