package config

import (
	"log/slog"
	"os"
	"strings"
	"time"
)

const (
	defaultEnv            = "development"
	defaultDBPath         = "./dev.db"
	defaultPort           = "8080"
	defaultMigrationsDir  = "migrations"
	defaultLogLevel       = "info"
	defaultSeedTenant     = "demo"
	defaultSettingsTTL    = 5 * time.Minute
	defaultAllowedOrigins = "*"
)

// Config holds application configuration sourced from environment variables.
type Config struct {
	Env                string
	Port               string
	DBPath             string
	MigrationsDir      string
	LogLevel           string
	TenantTokenSecret  string
	CORSAllowedOrigins []string
	SettingsCacheTTL   time.Duration
	SeedTenant         string
}

// IsDev reports whether the service runs in local development mode.
func (c Config) IsDev() bool {
	return c.Env == "" || c.Env == "development" || c.Env == "dev"
}

// Load reads environment variables and returns a populated Config.
func Load() Config {
	// Best-effort: production injects real environment variables.
	if err := loadDotEnv(".env"); err != nil {
		slog.Warn("could not load .env file", "error", err)
	}

	cfg := Config{
		Env:                getEnv("APP_ENV", defaultEnv),
		Port:               getEnv("PORT", defaultPort),
		DBPath:             getEnv("DB_PATH", defaultDBPath),
		MigrationsDir:      getEnv("MIGRATIONS_DIR", defaultMigrationsDir),
		LogLevel:           getEnv("LOG_LEVEL", defaultLogLevel),
		TenantTokenSecret:  os.Getenv("TENANT_TOKEN_SECRET"),
		CORSAllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", defaultAllowedOrigins)),
		SettingsCacheTTL:   defaultSettingsTTL,
		SeedTenant:         getEnv("SEED_TENANT", defaultSeedTenant),
	}

	if raw := os.Getenv("SETTINGS_CACHE_TTL"); raw != "" {
		ttl, err := time.ParseDuration(raw)
		if err != nil || ttl <= 0 {
			slog.Warn("invalid SETTINGS_CACHE_TTL, using default", "value", raw, "default", defaultSettingsTTL)
		} else {
			cfg.SettingsCacheTTL = ttl
		}
	}

	if cfg.TenantTokenSecret == "" {
		slog.Warn("TENANT_TOKEN_SECRET is not set; every API call will be rejected")
	}

	return cfg
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
