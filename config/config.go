/*
Package config assembles server settings from the environment.

PURPOSE:
  One place that knows every variable the server reads and its default.
  cmd/server calls Load, then lets command-line flags override.

VARIABLES:
  PORT              HTTP port                         8080
  DB_DRIVER         sqlite | postgres                 sqlite
  DATABASE_URL      file path or postgres URL         crm.db
  DB_MAX_OPEN_CONNS postgres pool size                10
  JWT_SECRET        HMAC key for session tokens       (dev default, warned)
  SESSION_TTL       token lifetime                    12h
  CORS_ORIGINS      comma-separated origins           http://localhost:3000
  LOG_LEVEL         debug | info | warn | error       info
  SEED_FILE         YAML seed loaded at startup       (none)
  ENABLE_SCENARIOS  expose /api/scenarios             false

SEE ALSO:
  - env.go: typed getters
  - cmd/server/main.go: flag overrides
*/
package config

import (
	"errors"
	"time"

	"github.com/sirupsen/logrus"
)

// DevJWTSecret is used when JWT_SECRET is unset. Never in production.
const DevJWTSecret = "dev-only-insecure-secret"

// Config holds every runtime setting of the server.
type Config struct {
	Port            string
	DBDriver        string
	DatabaseURL     string
	DBMaxOpenConns  int
	JWTSecret       string
	SessionTTL      time.Duration
	CORSOrigins     []string
	LogLevel        logrus.Level
	SeedFile        string
	EnableScenarios bool
}

// Load reads env files and the process environment.
func Load(logger logrus.FieldLogger) Config {
	LoadEnv(logger)

	cfg := Config{
		Port:            GetEnv("PORT", "8080"),
		DBDriver:        GetEnv("DB_DRIVER", "sqlite"),
		DatabaseURL:     GetEnv("DATABASE_URL", "crm.db"),
		DBMaxOpenConns:  GetEnvInt("DB_MAX_OPEN_CONNS", 10),
		JWTSecret:       GetEnv("JWT_SECRET", ""),
		SessionTTL:      GetEnvDuration("SESSION_TTL", 12*time.Hour),
		CORSOrigins:     GetEnvList("CORS_ORIGINS", []string{"http://localhost:3000", "http://localhost:5173"}),
		LogLevel:        GetLogLevel(),
		SeedFile:        GetEnv("SEED_FILE", ""),
		EnableScenarios: GetEnvBool("ENABLE_SCENARIOS", false),
	}
	if cfg.JWTSecret == "" {
		if logger != nil {
			logger.Warn("JWT_SECRET not set, using insecure development secret")
		}
		cfg.JWTSecret = DevJWTSecret
	}
	return cfg
}

// Validate checks settings that would only fail later at runtime.
func (c Config) Validate() error {
	if c.Port == "" {
		return errors.New("port is required")
	}
	if c.DBDriver != "sqlite" && c.DBDriver != "sqlite3" && c.DBDriver != "postgres" && c.DBDriver != "postgresql" {
		return errors.New("DB_DRIVER must be sqlite or postgres")
	}
	if len(c.JWTSecret) < 16 {
		return errors.New("JWT_SECRET must be at least 16 characters")
	}
	if c.SessionTTL <= 0 {
		return errors.New("SESSION_TTL must be positive")
	}
	return nil
}
