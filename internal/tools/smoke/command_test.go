package smoke

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/allresumeservices/client-intake/internal/config"
)

func TestNewRootCommandHasRun(t *testing.T) {
	cmd := NewRootCommand()
	if cmd.Use != "smoke" {
		t.Fatalf("unexpected use: %s", cmd.Use)
	}
	c, _, err := cmd.Find([]string{"run"})
	if err != nil || c == nil {
		t.Fatalf("expected run subcommand: err=%v", err)
	}
	if c.Flags().Lookup("keep") == nil {
		t.Fatal("expected --keep flag on run")
	}
}

type fakeAPI struct {
	mu          sync.Mutex
	traceparent []string
	saved       map[string]any
	deleted     bool
	readyStatus int
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.traceparent = append(f.traceparent, r.Header.Get("traceparent"))
	write := func(status int, data any) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(map[string]any{"success": status < 400, "data": data})
	}
	switch {
	case r.URL.Path == "/health/ready":
		if f.readyStatus != 0 {
			w.WriteHeader(f.readyStatus)
			_, _ = w.Write([]byte(`{"success":false,"error":{"code":"DEPENDENCY_UNREADY","message":"db down"}}`))
			return
		}
		write(http.StatusOK, map[string]string{"status": "ready"})
	case r.URL.Path == "/api/v1/internal/intake/tokens":
		if !strings.HasPrefix(r.Header.Get("Authorization"), "Bearer ") {
			write(http.StatusUnauthorized, nil)
			return
		}
		write(http.StatusCreated, map[string]string{"token": "abc.def"})
	case r.URL.Path == "/api/v1/intake/drafts/abc.def":
		switch r.Method {
		case http.MethodPut:
			_ = json.NewDecoder(r.Body).Decode(&f.saved)
			write(http.StatusOK, f.saved)
		case http.MethodGet:
			write(http.StatusOK, f.saved)
		case http.MethodDelete:
			f.deleted = true
			w.WriteHeader(http.StatusNoContent)
		}
	default:
		write(http.StatusNotFound, nil)
	}
}

func smokeConfig() *config.Config {
	return &config.Config{JWTIssuer: "client-intake", JWTAudience: "client-intake-api", JWTSecret: strings.Repeat("j", 40)}
}

func TestRunSmokeRoundTripsDraft(t *testing.T) {
	api := &fakeAPI{}
	srv := httptest.NewServer(api)
	defer srv.Close()

	details, err := runSmoke(context.Background(), options{baseURL: srv.URL + "/"}, smokeConfig())
	if err != nil {
		t.Fatalf("smoke run: %v (details=%v)", err, details)
	}
	if !api.deleted {
		t.Fatal("expected smoke draft to be deleted")
	}
	traceID := strings.TrimPrefix(details[0], "trace_id: ")
	if len(traceID) != 32 {
		t.Fatalf("unexpected trace detail %q", details[0])
	}
	for _, tp := range api.traceparent {
		if !strings.Contains(tp, traceID) {
			t.Fatalf("request missing shared traceparent: %q", tp)
		}
	}
	if details[len(details)-1] != "draft deleted" {
		t.Fatalf("unexpected details: %v", details)
	}
}

func TestRunSmokeKeepLeavesDraft(t *testing.T) {
	api := &fakeAPI{}
	srv := httptest.NewServer(api)
	defer srv.Close()

	if _, err := runSmoke(context.Background(), options{baseURL: srv.URL, keep: true}, smokeConfig()); err != nil {
		t.Fatalf("smoke run: %v", err)
	}
	if api.deleted {
		t.Fatal("draft should be kept")
	}
}

func TestRunSmokeReportsUnreadyAPI(t *testing.T) {
	api := &fakeAPI{readyStatus: http.StatusServiceUnavailable}
	srv := httptest.NewServer(api)
	defer srv.Close()

	_, err := runSmoke(context.Background(), options{baseURL: srv.URL}, smokeConfig())
	if err == nil || !strings.Contains(err.Error(), "DEPENDENCY_UNREADY") {
		t.Fatalf("expected readiness failure, got %v", err)
	}
}

func TestRunSmokeInvalidBaseURL(t *testing.T) {
	if _, err := runSmoke(context.Background(), options{baseURL: "://bad"}, smokeConfig()); err == nil {
		t.Fatal("expected invalid base url error")
	}
}

func TestRunCIPath(t *testing.T) {
	details, err := run(options{ci: true, timeout: time.Second}, "title", "run", func(ctx context.Context) ([]string, error) {
		return []string{"ok"}, nil
	})
	if err != nil || len(details) != 1 {
		t.Fatalf("expected success details, got details=%v err=%v", details, err)
	}
}
