// Package config reads the service settings from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
	BackendMemory   = "memory"
)

type Config struct {
	DatabaseURL string
	JWTSecret   string
	Port        string
	AppEnv      string
	SentryDSN   string
	LogLevel    string

	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	RevocationBackend string
	RedisURL          string
	SweepSchedule     string

	AdminUserIDs     string
	ClaimsPolicyFile string
	AdminUsername    string
	AdminPassword    string

	LoginMaxAttempts      int
	LoginLockDuration     time.Duration
	LoginRateLimitMax     int
	LoginRateLimitWindow  time.Duration
	TrustProxyHeaders     bool
	LoginAttemptRetention time.Duration
	CleanupBatchSize      int

	CORSAllowedOrigins []string
	CronSecret         string

	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxLifetime time.Duration
	DBConnMaxIdleTime time.Duration
	RunMigrations     bool
}

// Load reads the environment, optionally seeding it from a .env file first.
// Only DATABASE_URL and JWT_SECRET are required; DATABASE_URL may be omitted
// when every store runs in memory.
func Load(loadDotEnv bool) (Config, error) {
	if loadDotEnv {
		_ = godotenv.Load()
	}

	cfg := Config{
		DatabaseURL: strings.TrimSpace(os.Getenv("DATABASE_URL")),
		Port:        envOrDefault("PORT", "8080"),
		AppEnv:      envOrDefault("APP_ENV", "development"),
		SentryDSN:   strings.TrimSpace(os.Getenv("SENTRY_DSN")),
		LogLevel:    envOrDefault("LOG_LEVEL", "info"),

		AccessTokenTTL:  envMinutesOrDefault("ACCESS_TOKEN_TTL_MINUTES", 15),
		RefreshTokenTTL: envHoursOrDefault("REFRESH_TOKEN_TTL_HOURS", 720),

		RevocationBackend: strings.ToLower(envOrDefault("REVOCATION_BACKEND", BackendPostgres)),
		RedisURL:          strings.TrimSpace(os.Getenv("REDIS_URL")),
		SweepSchedule:     envOrDefault("REVOCATION_SWEEP_SCHEDULE", "@every 15m"),

		AdminUserIDs:     strings.TrimSpace(os.Getenv("ADMIN_USER_IDS")),
		ClaimsPolicyFile: strings.TrimSpace(os.Getenv("CLAIMS_POLICY_FILE")),
		AdminUsername:    strings.TrimSpace(os.Getenv("ADMIN_USERNAME")),
		AdminPassword:    os.Getenv("ADMIN_PASSWORD"),

		LoginMaxAttempts:      envIntOrDefault("LOGIN_MAX_ATTEMPTS", 5),
		LoginLockDuration:     envMinutesOrDefault("LOGIN_LOCK_MINUTES", 15),
		LoginRateLimitMax:     envIntOrDefault("LOGIN_RATE_LIMIT_MAX", 10),
		LoginRateLimitWindow:  envSecondsOrDefault("LOGIN_RATE_LIMIT_WINDOW_SECONDS", 60),
		TrustProxyHeaders:     EnvBoolOrDefault("TRUST_PROXY_HEADERS", false),
		LoginAttemptRetention: envDaysOrDefault("AUTH_LOGIN_ATTEMPT_RETENTION_DAYS", 30),
		CleanupBatchSize:      envIntOrDefault("AUTH_CLEANUP_BATCH_SIZE", 500),

		CORSAllowedOrigins: envListOrDefault("CORS_ALLOWED_ORIGINS", nil),
		CronSecret:         strings.TrimSpace(os.Getenv("CRON_SECRET")),

		DBMaxOpenConns:    envIntOrDefault("DB_MAX_OPEN_CONNS", 10),
		DBMaxIdleConns:    envIntOrDefault("DB_MAX_IDLE_CONNS", 5),
		DBConnMaxLifetime: envMinutesOrDefault("DB_CONN_MAX_LIFETIME_MINUTES", 30),
		DBConnMaxIdleTime: envMinutesOrDefault("DB_CONN_MAX_IDLE_TIME_MINUTES", 10),
		RunMigrations:     EnvBoolOrDefault("RUN_MIGRATIONS_ON_STARTUP", false),
	}

	secret, err := mustEnv("JWT_SECRET")
	if err != nil {
		return Config{}, err
	}
	cfg.JWTSecret = secret

	switch cfg.RevocationBackend {
	case BackendPostgres, BackendMemory:
	case BackendRedis:
		if cfg.RedisURL == "" {
			return Config{}, fmt.Errorf("missing required env: REDIS_URL (REVOCATION_BACKEND=redis)")
		}
	default:
		return Config{}, fmt.Errorf("unsupported REVOCATION_BACKEND %q", cfg.RevocationBackend)
	}

	if cfg.DatabaseURL == "" && !cfg.InMemory() {
		return Config{}, fmt.Errorf("missing required env: DATABASE_URL")
	}

	return cfg, nil
}

// InMemory reports whether the service runs without Postgres at all.
func (c Config) InMemory() bool {
	return c.RevocationBackend == BackendMemory && c.DatabaseURL == ""
}

func mustEnv(name string) (string, error) {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return "", fmt.Errorf("missing required env: %s", name)
	}
	return value, nil
}

func envOrDefault(name, fallback string) string {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	return value
}

func envIntOrDefault(name string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func envMinutesOrDefault(name string, fallback int) time.Duration {
	return time.Duration(envIntOrDefault(name, fallback)) * time.Minute
}

func envHoursOrDefault(name string, fallback int) time.Duration {
	return time.Duration(envIntOrDefault(name, fallback)) * time.Hour
}

func envDaysOrDefault(name string, fallback int) time.Duration {
	return time.Duration(envIntOrDefault(name, fallback)) * 24 * time.Hour
}

func envSecondsOrDefault(name string, fallback int) time.Duration {
	return time.Duration(envIntOrDefault(name, fallback)) * time.Second
}

func envListOrDefault(name string, fallback []string) []string {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}

	var items []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			items = append(items, part)
		}
	}
	return items
}

func EnvBoolOrDefault(name string, fallback bool) bool {
	value := strings.TrimSpace(strings.ToLower(os.Getenv(name)))
	if value == "" {
		return fallback
	}

	switch value {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}
