package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/yungbote/studyforge-backend/internal/data/db"
	"github.com/yungbote/studyforge-backend/internal/jobs/worker"
	"github.com/yungbote/studyforge-backend/internal/learning/generator"
	"github.com/yungbote/studyforge-backend/internal/observability"
	"github.com/yungbote/studyforge-backend/internal/platform/envutil"
	"github.com/yungbote/studyforge-backend/internal/platform/gemini"
	"github.com/yungbote/studyforge-backend/internal/realtime/bus"
)

const DevJWTSecret = "dev-secret-change-me"

type Config struct {
	Port        string
	LogMode     string
	LogLevel    string
	Environment string
	Version     string

	// RunServer and RunWorker split the API and the job worker across
	// processes; both default on for a single-binary deployment.
	RunServer bool
	RunWorker bool

	DB db.Config

	JWTSecretKey   string
	JWTIssuer      string
	AccessTokenTTL time.Duration

	Gemini     gemini.Config
	Generation generator.Config
	Worker     worker.Config

	Redis bus.RedisConfig

	Otel           observability.OtelConfig
	MetricsEnabled bool

	CORSAllowedOrigins []string
}

func LoadConfig() Config {
	env := envutil.String("APP_ENV", "development")
	return Config{
		Port:        envutil.String("PORT", "8080"),
		LogMode:     envutil.String("LOG_MODE", "development"),
		LogLevel:    envutil.String("LOG_LEVEL", "debug"),
		Environment: env,
		Version:     envutil.String("APP_VERSION", "dev"),

		RunServer: envutil.Bool("RUN_SERVER", true),
		RunWorker: envutil.Bool("RUN_WORKER", true),

		DB: db.Config{
			Driver:       envutil.String("DB_DRIVER", db.DriverPostgres),
			DSN:          envutil.String("DATABASE_URL", ""),
			Host:         envutil.String("POSTGRES_HOST", "localhost"),
			Port:         envutil.String("POSTGRES_PORT", "5432"),
			User:         envutil.String("POSTGRES_USER", "postgres"),
			Password:     envutil.String("POSTGRES_PASSWORD", ""),
			Name:         envutil.String("POSTGRES_NAME", "studyforge"),
			SSLMode:      envutil.String("POSTGRES_SSLMODE", "disable"),
			SQLitePath:   envutil.String("SQLITE_PATH", "studyforge.db"),
			MaxOpenConns: envutil.Int("DB_MAX_OPEN_CONNS", 20),
			SlowQuery:    envutil.Duration("DB_SLOW_QUERY", time.Second),
		},

		JWTSecretKey:   envutil.String("JWT_SECRET_KEY", ""),
		JWTIssuer:      envutil.String("JWT_ISSUER", ""),
		AccessTokenTTL: envutil.Duration("ACCESS_TOKEN_TTL", time.Hour),

		Gemini: gemini.Config{
			APIKey:      envutil.String("GEMINI_API_KEY", ""),
			Model:       envutil.String("GEMINI_MODEL", "gemini-2.0-flash"),
			Temperature: float32(envutil.Float("GEMINI_TEMPERATURE", 0.7)),
			MaxTokens:   int32(envutil.Int("GEMINI_MAX_OUTPUT_TOKENS", 8192)),
		},
		Generation: generator.Config{
			CallTimeout:    envutil.Duration("GENERATION_CALL_TIMEOUT", 90*time.Second),
			MaxAttempts:    envutil.Int("GENERATION_MAX_ATTEMPTS", 3),
			InitialBackoff: envutil.Duration("GENERATION_INITIAL_BACKOFF", time.Second),
			MaxBackoff:     envutil.Duration("GENERATION_MAX_BACKOFF", 15*time.Second),
		},
		Worker: worker.Config{
			Concurrency:       envutil.Int("WORKER_CONCURRENCY", 4),
			PollInterval:      envutil.Duration("WORKER_POLL_INTERVAL", time.Second),
			StaleAfter:        envutil.Duration("WORKER_STALE_AFTER", 15*time.Minute),
			MaxAttempts:       envutil.Int("WORKER_MAX_ATTEMPTS", 3),
			HeartbeatInterval: envutil.Duration("WORKER_HEARTBEAT_INTERVAL", 0),
		},

		Redis: bus.RedisConfig{
			Addr:     envutil.String("REDIS_ADDR", ""),
			Password: envutil.String("REDIS_PASSWORD", ""),
			DB:       envutil.Int("REDIS_DB", 0),
			Channel:  envutil.String("REDIS_CHANNEL", "studyforge:sse"),
		},

		Otel: observability.OtelConfig{
			Enabled:     envutil.Bool("OTEL_ENABLED", false),
			ServiceName: envutil.String("OTEL_SERVICE_NAME", "studyforge-api"),
			Environment: env,
			Endpoint:    envutil.String("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			Headers:     envutil.String("OTEL_EXPORTER_OTLP_HEADERS", ""),
			Insecure:    envutil.Bool("OTEL_EXPORTER_OTLP_INSECURE", false),
			SampleRatio: envutil.Float("OTEL_SAMPLER_RATIO", 0.1),
		},
		MetricsEnabled: envutil.Bool("METRICS_ENABLED", false),

		CORSAllowedOrigins: envutil.List("CORS_ALLOWED_ORIGINS", nil),
	}
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

// Validate fills development defaults and rejects configurations that
// cannot run.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.JWTSecretKey) == "" {
		if c.IsProduction() {
			return fmt.Errorf("JWT_SECRET_KEY is required in production")
		}
		c.JWTSecretKey = DevJWTSecret
	}
	if strings.TrimSpace(c.Gemini.APIKey) == "" {
		return fmt.Errorf("GEMINI_API_KEY is required")
	}
	if !c.RunServer && !c.RunWorker {
		return fmt.Errorf("RUN_SERVER and RUN_WORKER are both disabled")
	}
	if c.Worker.Concurrency < 0 || c.Generation.MaxAttempts < 0 {
		return fmt.Errorf("worker concurrency and generation attempts must not be negative")
	}
	return nil
}
