package di

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/allresumeservices/client-intake/internal/config"
	"github.com/allresumeservices/client-intake/internal/http/middleware"
	"github.com/allresumeservices/client-intake/internal/http/router"
	"github.com/allresumeservices/client-intake/internal/security"
	"github.com/allresumeservices/client-intake/internal/service"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestProvideHTTPServer(t *testing.T) {
	cfg := &config.Config{HTTPPort: "9999"}
	srv := provideHTTPServer(cfg, nil)
	if srv.Addr != ":9999" {
		t.Fatalf("unexpected addr: %s", srv.Addr)
	}
	if srv.ReadTimeout.Seconds() != 10 {
		t.Fatalf("unexpected read timeout: %v", srv.ReadTimeout)
	}
}

func TestProvideRouterDependencies(t *testing.T) {
	cfg := &config.Config{AutosaveRateLimitPerMin: 90, IdempotencyTTL: time.Hour}
	dep := provideRouterDependencies(nil, nil, nil, nil, nil, nil, nil, nil, discardLogger(), cfg)
	if dep.AutosaveRateLimitRPM != 90 || dep.IdempotencyTTL != time.Hour {
		t.Fatalf("unexpected router dependencies: %+v", dep)
	}
	_ = router.Dependencies(dep)
}

func TestOptionalBackendsFallBackWhenDisabled(t *testing.T) {
	cfg := &config.Config{}
	client, cleanup, err := provideRedisClient(cfg, discardLogger())
	if err != nil || client != nil {
		t.Fatalf("expected no redis client when disabled, got %v %v", client, err)
	}
	cleanup()

	if _, ok := provideIdempotencyStore(client).(*service.InMemoryIdempotencyStore); !ok {
		t.Fatal("expected in-memory idempotency store")
	}
	if _, ok := provideIntakeCacheStore(client).(*service.InMemoryIntakeCacheStore); !ok {
		t.Fatal("expected in-memory intake cache")
	}
	if _, ok := provideRateLimiter(client).(*middleware.RedisLimiter); ok {
		t.Fatal("expected local limiter without redis")
	}

	notifier, cleanupNotifier, err := provideIntakeNotifier(cfg, discardLogger())
	if err != nil {
		t.Fatalf("notifier: %v", err)
	}
	defer cleanupNotifier()
	if _, ok := notifier.(*service.LogIntakeNotifier); !ok {
		t.Fatalf("expected log notifier without kafka, got %T", notifier)
	}

	uploads, err := provideUploadService(cfg)
	if err != nil || uploads != nil {
		t.Fatalf("expected nil upload service when storage disabled, got %v %v", uploads, err)
	}
}

func TestRedisBackedProviders(t *testing.T) {
	mr := miniredis.RunT(t)
	client, cleanup, err := provideRedisClient(&config.Config{RedisEnabled: true, RedisAddr: mr.Addr()}, discardLogger())
	if err != nil || client == nil {
		t.Fatalf("expected redis client, got %v %v", client, err)
	}
	defer cleanup()

	if _, ok := provideRateLimiter(client).(*middleware.RedisLimiter); !ok {
		t.Fatal("expected redis limiter")
	}
	if _, ok := provideIdempotencyStore(client).(*service.RedisIdempotencyStore); !ok {
		t.Fatal("expected redis idempotency store")
	}
	if _, ok := provideIntakeCacheStore(client).(*service.RedisIntakeCacheStore); !ok {
		t.Fatal("expected redis intake cache")
	}

	h := provideHealthHandler(nil, client)
	rr := httptest.NewRecorder()
	h.Ready(rr, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected ready with live redis, got %d", rr.Code)
	}

	mr.Close()
	rr = httptest.NewRecorder()
	h.Ready(rr, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 once redis is gone, got %d", rr.Code)
	}
}

func TestProvideBypassEvaluator(t *testing.T) {
	jwtMgr := security.NewJWTManager("iss", "aud", "providers-test-secret-0123456789abcdef")
	if eval, err := provideBypassEvaluator(&config.Config{}, jwtMgr); err != nil || eval != nil {
		t.Fatalf("expected no evaluator when every bypass is off, err=%v", err)
	}
	if _, err := provideBypassEvaluator(&config.Config{RateLimitTrustedCIDRs: []string{"10.0.0.0/40"}}, jwtMgr); err == nil {
		t.Fatal("expected malformed cidr to fail")
	}
	eval, err := provideBypassEvaluator(&config.Config{RateLimitTrustedSubjects: []string{"payments-relay"}}, jwtMgr)
	if err != nil || eval == nil {
		t.Fatalf("expected evaluator for trusted subjects, err=%v", err)
	}
	tok, err := jwtMgr.SignAccessToken("payments-relay", []string{security.RolePayments}, time.Minute)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/internal/intake/tokens", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	if ok, reason := eval(req); !ok || reason != middleware.BypassReasonTrustedSubject {
		t.Fatalf("expected trusted subject bypass, got %v %q", ok, reason)
	}
}
