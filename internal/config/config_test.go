package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		"DATABASE_URL", "JWT_SECRET", "PORT", "APP_ENV", "REVOCATION_BACKEND", "REDIS_URL",
		"ACCESS_TOKEN_TTL_MINUTES", "REFRESH_TOKEN_TTL_HOURS", "CORS_ALLOWED_ORIGINS",
		"RUN_MIGRATIONS_ON_STARTUP", "LOGIN_MAX_ATTEMPTS", "REVOCATION_SWEEP_SCHEDULE",
		"TRUST_PROXY_HEADERS",
	} {
		t.Setenv(name, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_URL", "postgres://localhost/store")
	t.Setenv("JWT_SECRET", "s3cret")

	cfg, err := Load(false)
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "development", cfg.AppEnv)
	assert.Equal(t, 15*time.Minute, cfg.AccessTokenTTL)
	assert.Equal(t, 720*time.Hour, cfg.RefreshTokenTTL)
	assert.Equal(t, BackendPostgres, cfg.RevocationBackend)
	assert.Equal(t, "@every 15m", cfg.SweepSchedule)
	assert.Equal(t, 5, cfg.LoginMaxAttempts)
	assert.False(t, cfg.RunMigrations)
	assert.False(t, cfg.TrustProxyHeaders)
	assert.False(t, cfg.InMemory())
	assert.Nil(t, cfg.CORSAllowedOrigins)
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("REVOCATION_BACKEND", "Redis")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("DATABASE_URL", "postgres://localhost/store")
	t.Setenv("ACCESS_TOKEN_TTL_MINUTES", "5")
	t.Setenv("REFRESH_TOKEN_TTL_HOURS", "not-a-number")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, ,https://b.example")
	t.Setenv("RUN_MIGRATIONS_ON_STARTUP", "yes")
	t.Setenv("TRUST_PROXY_HEADERS", "true")

	cfg, err := Load(false)
	require.NoError(t, err)
	assert.Equal(t, BackendRedis, cfg.RevocationBackend)
	assert.Equal(t, 5*time.Minute, cfg.AccessTokenTTL)
	assert.Equal(t, 720*time.Hour, cfg.RefreshTokenTTL, "bad values fall back to the default")
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowedOrigins)
	assert.True(t, cfg.RunMigrations)
	assert.True(t, cfg.TrustProxyHeaders)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"NoSecret", map[string]string{"DATABASE_URL": "postgres://x"}, "JWT_SECRET"},
		{"NoDatabase", map[string]string{"JWT_SECRET": "s"}, "DATABASE_URL"},
		{"RedisWithoutURL", map[string]string{"JWT_SECRET": "s", "DATABASE_URL": "postgres://x", "REVOCATION_BACKEND": "redis"}, "REDIS_URL"},
		{"UnknownBackend", map[string]string{"JWT_SECRET": "s", "DATABASE_URL": "postgres://x", "REVOCATION_BACKEND": "etcd"}, "unsupported"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load(false)
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestInMemory(t *testing.T) {
	clearEnv(t)
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("REVOCATION_BACKEND", "memory")

	cfg, err := Load(false)
	require.NoError(t, err)
	assert.True(t, cfg.InMemory())
}

func TestEnvBoolOrDefault(t *testing.T) {
	for value, want := range map[string]bool{"1": true, "ON": true, "off": false, "no": false, "maybe": true, "": true} {
		t.Setenv("SOME_FLAG", value)
		assert.Equal(t, want, EnvBoolOrDefault("SOME_FLAG", true), value)
	}
}
