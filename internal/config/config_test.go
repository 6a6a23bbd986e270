package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("JWT_SECRET_KEY", "")
	t.Setenv("JWT_ACCESS_TTL", "")
	t.Setenv("LOG_FILE", "")

	cfg := Load()

	assert.Equal(t, EnvDevelopment, cfg.AppEnv)
	assert.True(t, cfg.Debug)
	assert.Equal(t, "sqlite:///webapp.db", cfg.Database.URL)
	assert.Equal(t, DefaultJWTSecret, cfg.Auth.JWTSecret)
	assert.Equal(t, "24h", cfg.Auth.JWTAccessTTL)
	assert.False(t, cfg.Auth.RequireSecureSecret)
	assert.Equal(t, "INFO", cfg.Log.Level)
	assert.Empty(t, cfg.Log.File)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("DATABASE_URL", "sqlite:////var/lib/webapp/app.db")
	t.Setenv("JWT_SECRET_KEY", "from-env")
	t.Setenv("JWT_PREVIOUS_SECRET_KEYS", " old-1 , ,old-2")
	t.Setenv("CORS_ALLOWED_ORIGINS", "http://a.example,http://b.example")

	cfg := Load()

	assert.Equal(t, "sqlite:////var/lib/webapp/app.db", cfg.Database.URL)
	assert.Equal(t, "from-env", cfg.Auth.JWTSecret)
	assert.Equal(t, []string{"old-1", "old-2"}, cfg.Auth.JWTPreviousSecrets)
	assert.Equal(t, []string{"http://a.example", "http://b.example"}, cfg.CORS.AllowedOrigins)
}

func TestLoadProfiles(t *testing.T) {
	tests := []struct {
		name       string
		env        string
		wantEnv    string
		wantDebug  bool
		wantSecure bool
	}{
		{name: "production", env: "production", wantEnv: EnvProduction, wantDebug: false, wantSecure: true},
		{name: "testing", env: "TESTING", wantEnv: EnvTesting, wantDebug: true, wantSecure: false},
		{name: "unknown-falls-back", env: "staging", wantEnv: EnvDevelopment, wantDebug: true, wantSecure: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("APP_ENV", tt.env)
			cfg := Load()
			require.Equal(t, tt.wantEnv, cfg.AppEnv)
			assert.Equal(t, tt.wantDebug, cfg.Debug)
			assert.Equal(t, tt.wantSecure, cfg.Auth.RequireSecureSecret)
		})
	}
}

func TestLoadTestingUsesMemoryDatabase(t *testing.T) {
	t.Setenv("APP_ENV", "testing")
	t.Setenv("DATABASE_URL", "sqlite:///webapp.db")

	cfg := Load()

	assert.Equal(t, "sqlite:///:memory:", cfg.Database.URL)
	assert.True(t, cfg.Debug)
}
