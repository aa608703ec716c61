package router

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/allresumeservices/client-intake/internal/http/handler"
	"github.com/allresumeservices/client-intake/internal/http/middleware"
	"github.com/allresumeservices/client-intake/internal/http/response"
	"github.com/allresumeservices/client-intake/internal/security"
	"github.com/allresumeservices/client-intake/internal/service"
)

const (
	defaultIdempotencyTTL = 24 * time.Hour
	internalRateLimitRPM  = 60
)

type Dependencies struct {
	IntakeHandler      *handler.IntakeHandler
	TokenHandler       *handler.TokenHandler
	AdminIntakeHandler *handler.AdminIntakeHandler
	HealthHandler      *handler.HealthHandler

	JWTManager       *security.JWTManager
	RateLimiter      middleware.Limiter
	IdempotencyStore service.IdempotencyStore
	BypassEvaluator  middleware.BypassEvaluator
	Logger           *slog.Logger

	AutosaveRateLimitRPM int
	IdempotencyTTL       time.Duration
}

func NewRouter(dep Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Tracing())
	r.Use(middleware.RequestLogger(dep.Logger))
	r.Use(chimiddleware.Recoverer)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, r, http.StatusNotFound, response.CodeNotFound, "route not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, r, http.StatusMethodNotAllowed, response.CodeMethodNotAllowed, "method not allowed", nil)
	})

	limiter := dep.RateLimiter
	if limiter == nil {
		limiter = middleware.NewLocalLimiter()
	}
	idemTTL := dep.IdempotencyTTL
	if idemTTL <= 0 {
		idemTTL = defaultIdempotencyTTL
	}

	if dep.HealthHandler != nil {
		r.Get("/health/live", dep.HealthHandler.Live)
		r.Get("/health/ready", dep.HealthHandler.Ready)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/intake/drafts/{token}", func(r chi.Router) {
			autosave := middleware.NewRateLimiter(
				limiter,
				middleware.PerMinutePolicy(dep.AutosaveRateLimitRPM),
				middleware.FailOpen,
				"autosave",
				middleware.IntakeTokenKeyFunc("token"),
			)
			r.With(autosave.Middleware()).Put("/", dep.IntakeHandler.SaveDraft)
			r.Get("/", dep.IntakeHandler.LoadDraft)
			r.Delete("/", dep.IntakeHandler.DeleteDraft)
			r.With(middleware.Idempotency(dep.IdempotencyStore, "finalize", idemTTL, dep.Logger)).
				Post("/finalize", dep.IntakeHandler.Finalize)
			uploads := middleware.NewRateLimiter(
				limiter,
				middleware.PerMinutePolicy(dep.AutosaveRateLimitRPM),
				middleware.FailOpen,
				"uploads",
				middleware.IntakeTokenKeyFunc("token"),
			)
			r.With(uploads.Middleware()).Post("/uploads", dep.IntakeHandler.PresignUpload)
			r.Delete("/uploads", dep.IntakeHandler.DeleteUpload)
		})

		r.Route("/internal/intake", func(r chi.Router) {
			internal := middleware.NewRateLimiter(
				limiter,
				middleware.PerMinutePolicy(internalRateLimitRPM),
				middleware.FailClosed,
				"internal",
				middleware.SubjectOrIPKeyFunc(dep.JWTManager),
			).WithBypass(dep.BypassEvaluator)
			r.Use(middleware.Authenticate(dep.JWTManager))
			r.Use(middleware.RequireRoles(security.RolePayments, security.RoleAdmin))
			r.Use(internal.Middleware())
			r.With(middleware.Idempotency(dep.IdempotencyStore, "tokens", idemTTL, dep.Logger)).
				Post("/tokens", dep.TokenHandler.Issue)
		})

		r.Route("/admin/intakes", func(r chi.Router) {
			r.Use(middleware.Authenticate(dep.JWTManager))
			r.Use(middleware.RequireRoles(security.RoleAdmin))
			r.Get("/", dep.AdminIntakeHandler.List)
			r.Get("/by-transaction/{transaction_id}", dep.AdminIntakeHandler.GetByTransaction)
			r.Get("/{id}", dep.AdminIntakeHandler.Get)
			r.Patch("/{id}/status", dep.AdminIntakeHandler.UpdateStatus)
		})
	})
	return r
}
