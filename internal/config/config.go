package config

import (
	"os"
	"strings"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
	EnvTesting     = "testing"

	// Version is reported by the health endpoint.
	Version = "1.0.0"

	DefaultJWTSecret = "jwt-secret-key"
)

type Config struct {
	AppEnv   string
	Debug    bool
	Server   ServerConfig
	Database DatabaseConfig
	Auth     AuthConfig
	CORS     CORSConfig
	Log      LogConfig
}

type ServerConfig struct {
	Addr string
}

type DatabaseConfig struct {
	URL     string
	Timeout string
}

type AuthConfig struct {
	JWTSecret          string
	JWTPreviousSecrets []string
	JWTAccessTTL       string
	// RequireSecureSecret rejects the built-in signing key fallback.
	RequireSecureSecret bool
	AdminUsername       string
	AdminPassword       string
	AdminEmail          string
}

type CORSConfig struct {
	AllowedOrigins   []string
	AllowCredentials bool
}

type LogConfig struct {
	Level string
	File  string
}

func Load() Config {
	env := normalizeEnv(os.Getenv("APP_ENV"))

	cfg := Config{
		AppEnv: env,
		Server: ServerConfig{
			Addr: getenv("ADDR", ":5000"),
		},
		Database: DatabaseConfig{
			URL:     getenv("DATABASE_URL", "sqlite:///webapp.db"),
			Timeout: getenv("DB_TIMEOUT", "5s"),
		},
		Auth: AuthConfig{
			JWTSecret:          getenv("JWT_SECRET_KEY", DefaultJWTSecret),
			JWTPreviousSecrets: splitList(os.Getenv("JWT_PREVIOUS_SECRET_KEYS")),
			JWTAccessTTL:       getenv("JWT_ACCESS_TTL", "24h"),
			AdminUsername:      os.Getenv("ADMIN_USERNAME"),
			AdminPassword:      os.Getenv("ADMIN_PASSWORD"),
			AdminEmail:         os.Getenv("ADMIN_EMAIL"),
		},
		CORS: CORSConfig{
			AllowedOrigins:   splitList(os.Getenv("CORS_ALLOWED_ORIGINS")),
			AllowCredentials: getenv("CORS_ALLOW_CREDENTIALS", "false") == "true",
		},
		Log: LogConfig{
			Level: getenv("LOG_LEVEL", "INFO"),
			File:  os.Getenv("LOG_FILE"),
		},
	}

	switch env {
	case EnvProduction:
		cfg.Auth.RequireSecureSecret = true
	case EnvTesting:
		cfg.Debug = true
		// DATABASE_URL is ignored so tests never touch a real file.
		cfg.Database.URL = "sqlite:///:memory:"
	default:
		cfg.Debug = true
	}

	return cfg
}

func normalizeEnv(value string) string {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case EnvProduction:
		return EnvProduction
	case EnvTesting:
		return EnvTesting
	default:
		return EnvDevelopment
	}
}

func splitList(value string) []string {
	var out []string
	for _, item := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func getenv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
