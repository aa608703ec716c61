package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env      string
	HTTPPort string

	DatabaseURL string

	LogLevel  string
	LogFormat string

	IntakeTokenSecret   string
	IntakeResumeBaseURL string

	JWTIssuer   string
	JWTAudience string
	JWTSecret   string

	AutosaveRateLimitPerMin  int
	RateLimitBypassProbes    bool
	RateLimitTrustedCIDRs    []string
	RateLimitTrustedSubjects []string
	IdempotencyTTL           time.Duration

	RedisEnabled  bool
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	KafkaEnabled     bool
	KafkaBrokers     []string
	KafkaIntakeTopic string

	StorageEnabled   bool
	StorageEndpoint  string
	StorageAccessKey string
	StorageSecretKey string
	StorageBucket    string
	StorageUseSSL    bool

	OTELTracingEnabled       bool
	OTELMetricsEnabled       bool
	OTELExporterOTLPEndpoint string
	OTELExporterOTLPInsecure bool
	OTELServiceName          string
	OTELTraceSamplingRatio   float64

	DraftRetention     time.Duration
	DraftReminderAfter time.Duration
}

// LoadEnvFile reads KEY=VALUE pairs into the process environment. Variables
// that are already set win over the file; a missing file is not an error.
func LoadEnvFile(path string) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("stat env file: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("env file %s is a directory", path)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file: %w", err)
	}
	return nil
}

func Load() (*Config, error) {
	cfg := &Config{
		Env:                      getEnv("APP_ENV", "development"),
		HTTPPort:                 getEnv("HTTP_PORT", "8080"),
		DatabaseURL:              os.Getenv("DATABASE_URL"),
		LogLevel:                 strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat:                strings.ToLower(getEnv("LOG_FORMAT", "json")),
		IntakeTokenSecret:        os.Getenv("INTAKE_TOKEN_SECRET"),
		IntakeResumeBaseURL:      getEnv("INTAKE_RESUME_BASE_URL", "http://localhost:3000/thank-you-onboarding"),
		JWTIssuer:                getEnv("JWT_ISSUER", "client-intake"),
		JWTAudience:              getEnv("JWT_AUDIENCE", "client-intake-api"),
		JWTSecret:                os.Getenv("JWT_SECRET"),
		AutosaveRateLimitPerMin:  getEnvInt("AUTOSAVE_RATE_LIMIT_PER_MIN", 120),
		RateLimitBypassProbes:    getEnvBool("RATE_LIMIT_BYPASS_PROBES", true),
		RateLimitTrustedCIDRs:    splitCSV(os.Getenv("RATE_LIMIT_TRUSTED_CIDRS")),
		RateLimitTrustedSubjects: splitCSV(os.Getenv("RATE_LIMIT_TRUSTED_SUBJECTS")),
		RedisEnabled:             getEnvBool("REDIS_ENABLED", false),
		RedisAddr:                getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:            os.Getenv("REDIS_PASSWORD"),
		RedisDB:                  getEnvInt("REDIS_DB", 0),
		KafkaEnabled:             getEnvBool("KAFKA_ENABLED", false),
		KafkaBrokers:             splitCSV(getEnv("KAFKA_BROKERS", "localhost:9092")),
		KafkaIntakeTopic:         getEnv("KAFKA_INTAKE_TOPIC", "client-intake.events"),
		StorageEnabled:           getEnvBool("STORAGE_ENABLED", false),
		StorageEndpoint:          getEnv("STORAGE_ENDPOINT", "localhost:9000"),
		StorageAccessKey:         os.Getenv("STORAGE_ACCESS_KEY"),
		StorageSecretKey:         os.Getenv("STORAGE_SECRET_KEY"),
		StorageBucket:            getEnv("STORAGE_BUCKET", "intake-uploads"),
		StorageUseSSL:            getEnvBool("STORAGE_USE_SSL", true),
		OTELTracingEnabled:       getEnvBool("OTEL_TRACING_ENABLED", false),
		OTELMetricsEnabled:       getEnvBool("OTEL_METRICS_ENABLED", false),
		OTELExporterOTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318"),
		OTELExporterOTLPInsecure: getEnvBool("OTEL_EXPORTER_OTLP_INSECURE", true),
		OTELServiceName:          getEnv("OTEL_SERVICE_NAME", "client-intake"),
		OTELTraceSamplingRatio:   getEnvFloat("OTEL_TRACE_SAMPLING_RATIO", 1.0),
	}

	retention, err := time.ParseDuration(getEnv("DRAFT_RETENTION", "2160h"))
	if err != nil {
		return nil, fmt.Errorf("parse DRAFT_RETENTION: %w", err)
	}
	cfg.DraftRetention = retention

	reminder, err := time.ParseDuration(getEnv("DRAFT_REMINDER_AFTER", "24h"))
	if err != nil {
		return nil, fmt.Errorf("parse DRAFT_REMINDER_AFTER: %w", err)
	}
	cfg.DraftReminderAfter = reminder

	idemTTL, err := time.ParseDuration(getEnv("IDEMPOTENCY_TTL", "24h"))
	if err != nil {
		return nil, fmt.Errorf("parse IDEMPOTENCY_TTL: %w", err)
	}
	cfg.IdempotencyTTL = idemTTL

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []string
	if c.DatabaseURL == "" {
		errs = append(errs, "DATABASE_URL is required")
	}
	if len(c.IntakeTokenSecret) < 32 {
		errs = append(errs, "INTAKE_TOKEN_SECRET must be at least 32 chars")
	}
	if len(c.JWTSecret) < 32 {
		errs = append(errs, "JWT_SECRET must be at least 32 chars")
	}
	if c.JWTSecret != "" && c.JWTSecret == c.IntakeTokenSecret {
		errs = append(errs, "JWT_SECRET and INTAKE_TOKEN_SECRET must differ")
	}
	if c.AutosaveRateLimitPerMin <= 0 {
		errs = append(errs, "AUTOSAVE_RATE_LIMIT_PER_MIN must be > 0")
	}
	if c.IdempotencyTTL <= 0 {
		errs = append(errs, "IDEMPOTENCY_TTL must be > 0")
	}
	if c.KafkaEnabled && len(c.KafkaBrokers) == 0 {
		errs = append(errs, "KAFKA_BROKERS is required when KAFKA_ENABLED=true")
	}
	if c.StorageEnabled && (c.StorageAccessKey == "" || c.StorageSecretKey == "") {
		errs = append(errs, "STORAGE_ACCESS_KEY and STORAGE_SECRET_KEY are required when STORAGE_ENABLED=true")
	}
	if c.DraftRetention <= 0 {
		errs = append(errs, "DRAFT_RETENTION must be > 0")
	}
	if c.DraftReminderAfter <= 0 || c.DraftReminderAfter >= c.DraftRetention {
		errs = append(errs, "DRAFT_REMINDER_AFTER must be > 0 and shorter than DRAFT_RETENTION")
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func getEnvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getEnvFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		trim := strings.TrimSpace(p)
		if trim != "" {
			out = append(out, trim)
		}
	}
	return out
}
