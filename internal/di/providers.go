package di

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/wire"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/allresumeservices/client-intake/internal/app"
	"github.com/allresumeservices/client-intake/internal/config"
	"github.com/allresumeservices/client-intake/internal/database"
	"github.com/allresumeservices/client-intake/internal/http/handler"
	"github.com/allresumeservices/client-intake/internal/http/middleware"
	"github.com/allresumeservices/client-intake/internal/http/router"
	"github.com/allresumeservices/client-intake/internal/observability"
	"github.com/allresumeservices/client-intake/internal/repository"
	"github.com/allresumeservices/client-intake/internal/security"
	"github.com/allresumeservices/client-intake/internal/service"
)

var ConfigSet = wire.NewSet(config.Load)

var ObservabilitySet = wire.NewSet(
	observability.NewLogger,
	provideTelemetry,
)

var RuntimeInfraSet = wire.NewSet(
	provideOpenDB,
	provideRedisClient,
	provideRateLimiter,
	provideIdempotencyStore,
	provideIntakeCacheStore,
	provideIntakeNotifier,
	provideUploadService,
)

var RepositorySet = wire.NewSet(
	repository.NewDraftRepository,
	repository.NewIntakeRepository,
	repository.NewUnitOfWork,
)

var SecuritySet = wire.NewSet(
	provideIntakeTokenIssuer,
	provideJWTManager,
	wire.Bind(new(service.TokenIssuer), new(*security.IntakeTokenIssuer)),
	wire.Bind(new(service.TokenVerifier), new(*security.IntakeTokenIssuer)),
)

var ServiceSet = wire.NewSet(
	service.NewDraftService,
	service.NewFinalizeService,
	provideTokenService,
	service.NewIntakeAdminService,
	wire.Bind(new(service.DraftServiceInterface), new(*service.DraftService)),
	wire.Bind(new(service.FinalizeServiceInterface), new(*service.FinalizeService)),
	wire.Bind(new(service.TokenServiceInterface), new(*service.TokenService)),
	wire.Bind(new(service.IntakeAdminServiceInterface), new(*service.IntakeAdminService)),
)

var HTTPSet = wire.NewSet(
	handler.NewIntakeHandler,
	handler.NewTokenHandler,
	handler.NewAdminIntakeHandler,
	provideHealthHandler,
	provideBypassEvaluator,
	provideRouterDependencies,
	router.NewRouter,
	provideHTTPServer,
)

var AppSet = wire.NewSet(app.New)

func provideTelemetry(cfg *config.Config, logger *slog.Logger) (*observability.Runtime, error) {
	return observability.InitRuntime(context.Background(), cfg, logger)
}

func provideOpenDB(cfg *config.Config) (*gorm.DB, func(), error) {
	db, err := database.Open(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	cleanup := func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	return db, cleanup, nil
}

// provideRedisClient returns nil when Redis is disabled; every consumer falls
// back to an in-process implementation.
func provideRedisClient(cfg *config.Config, logger *slog.Logger) (*redis.Client, func(), error) {
	if !cfg.RedisEnabled {
		return nil, func() {}, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis ping failed at startup", "addr", cfg.RedisAddr, "error", err)
	}
	return client, func() { _ = client.Close() }, nil
}

func provideRateLimiter(client *redis.Client) middleware.Limiter {
	if client == nil {
		return middleware.NewLocalLimiter()
	}
	return middleware.NewRedisLimiter(client, "")
}

func provideIdempotencyStore(client *redis.Client) service.IdempotencyStore {
	if client == nil {
		return service.NewInMemoryIdempotencyStore()
	}
	return service.NewRedisIdempotencyStore(client, "")
}

func provideIntakeCacheStore(client *redis.Client) service.IntakeCacheStore {
	if client == nil {
		return service.NewInMemoryIntakeCacheStore()
	}
	return service.NewRedisIntakeCacheStore(client, "")
}

func provideIntakeNotifier(cfg *config.Config, logger *slog.Logger) (service.IntakeNotifier, func(), error) {
	if !cfg.KafkaEnabled {
		return service.NewLogIntakeNotifier(logger), func() {}, nil
	}
	producer, err := service.NewSaramaSyncProducer(cfg.KafkaBrokers)
	if err != nil {
		return nil, nil, fmt.Errorf("create kafka producer: %w", err)
	}
	n := service.NewKafkaIntakeNotifier(producer, cfg.KafkaIntakeTopic, cfg.OTELServiceName, logger)
	return n, func() { _ = producer.Close() }, nil
}

// provideUploadService returns a nil UploadService when storage is disabled;
// upload routes then answer 503.
func provideUploadService(cfg *config.Config) (service.UploadService, error) {
	if !cfg.StorageEnabled {
		return nil, nil
	}
	svc, err := service.NewMinIOUploadService(cfg.StorageEndpoint, cfg.StorageAccessKey, cfg.StorageSecretKey, cfg.StorageBucket, cfg.StorageUseSSL)
	if err != nil {
		return nil, err
	}
	return svc, nil
}

func provideIntakeTokenIssuer(cfg *config.Config) *security.IntakeTokenIssuer {
	return security.NewIntakeTokenIssuer(cfg.IntakeTokenSecret)
}

func provideJWTManager(cfg *config.Config) *security.JWTManager {
	return security.NewJWTManager(cfg.JWTIssuer, cfg.JWTAudience, cfg.JWTSecret)
}

func provideTokenService(issuer service.TokenIssuer, cfg *config.Config) *service.TokenService {
	return service.NewTokenService(issuer, cfg.IntakeResumeBaseURL)
}

func provideHealthHandler(db *gorm.DB, client *redis.Client) *handler.HealthHandler {
	checks := map[string]handler.ReadinessCheck{}
	if db != nil {
		checks["database"] = func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		}
	}
	if client != nil {
		checks["redis"] = func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		}
	}
	return handler.NewHealthHandler(checks)
}

func provideBypassEvaluator(cfg *config.Config, jwtMgr *security.JWTManager) (middleware.BypassEvaluator, error) {
	return middleware.NewBypassEvaluator(middleware.BypassPolicy{
		Probes:          cfg.RateLimitBypassProbes,
		TrustedCIDRs:    cfg.RateLimitTrustedCIDRs,
		TrustedSubjects: cfg.RateLimitTrustedSubjects,
	}, jwtMgr)
}

func provideRouterDependencies(
	intakeHandler *handler.IntakeHandler,
	tokenHandler *handler.TokenHandler,
	adminHandler *handler.AdminIntakeHandler,
	healthHandler *handler.HealthHandler,
	jwtMgr *security.JWTManager,
	limiter middleware.Limiter,
	idempotency service.IdempotencyStore,
	bypass middleware.BypassEvaluator,
	logger *slog.Logger,
	cfg *config.Config,
) router.Dependencies {
	return router.Dependencies{
		IntakeHandler:        intakeHandler,
		TokenHandler:         tokenHandler,
		AdminIntakeHandler:   adminHandler,
		HealthHandler:        healthHandler,
		JWTManager:           jwtMgr,
		RateLimiter:          limiter,
		IdempotencyStore:     idempotency,
		BypassEvaluator:      bypass,
		Logger:               logger,
		AutosaveRateLimitRPM: cfg.AutosaveRateLimitPerMin,
		IdempotencyTTL:       cfg.IdempotencyTTL,
	}
}

func provideHTTPServer(cfg *config.Config, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           h,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

type MigrationRunner struct {
	db *gorm.DB
}

func NewMigrationRunner(db *gorm.DB) *MigrationRunner {
	return &MigrationRunner{db: db}
}

func (m *MigrationRunner) Run() error {
	return database.Migrate(m.db)
}

// DraftMaintenanceJob bundles what the operator draft jobs need.
type DraftMaintenanceJob struct {
	Config  *config.Config
	Service *service.DraftMaintenanceService
}

func NewDraftMaintenanceJob(cfg *config.Config, svc *service.DraftMaintenanceService) *DraftMaintenanceJob {
	return &DraftMaintenanceJob{Config: cfg, Service: svc}
}
