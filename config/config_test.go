package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetEnvWithDefault(t *testing.T) {
	t.Setenv("FOO", "")
	assert.Equal(t, "bar", GetEnv("FOO", "bar"))
	t.Setenv("FOO", "baz")
	assert.Equal(t, "baz", GetEnv("FOO", "bar"))
}

func TestGetEnvInt(t *testing.T) {
	t.Setenv("NUM", "100")
	assert.Equal(t, 100, GetEnvInt("NUM", 42))
	t.Setenv("NUM", "notint")
	assert.Equal(t, 7, GetEnvInt("NUM", 7), "parse error falls back")
}

func TestGetEnvBoolAndDuration(t *testing.T) {
	t.Setenv("FLAG", "false")
	assert.False(t, GetEnvBool("FLAG", true))
	t.Setenv("TTL", "90m")
	assert.Equal(t, 90*time.Minute, GetEnvDuration("TTL", time.Hour))
	t.Setenv("TTL", "-1h")
	assert.Equal(t, time.Hour, GetEnvDuration("TTL", time.Hour), "non-positive falls back")
}

func TestGetEnvList(t *testing.T) {
	t.Setenv("ORIGINS", " http://a.test , ,http://b.test")
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, GetEnvList("ORIGINS", nil))
	t.Setenv("ORIGINS", "")
	assert.Equal(t, []string{"x"}, GetEnvList("ORIGINS", []string{"x"}))
}

func TestGetLogLevel(t *testing.T) {
	t.Setenv("LOG_LEVEL", "DEBUG")
	assert.Equal(t, logrus.DebugLevel, GetLogLevel())
	t.Setenv("LOG_LEVEL", "warn")
	assert.Equal(t, logrus.WarnLevel, GetLogLevel())
	t.Setenv("LOG_LEVEL", "")
	assert.Equal(t, logrus.InfoLevel, GetLogLevel())
}

func TestLoad_DefaultsAndDotEnv(t *testing.T) {
	// GIVEN: A working directory with a .env overriding PORT
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("PORT=9999\nSESSION_TTL=1h\n"), 0o600))
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(wd) })

	for _, k := range []string{"PORT", "DB_DRIVER", "DATABASE_URL", "JWT_SECRET", "SESSION_TTL", "ENABLE_SCENARIOS"} {
		t.Setenv(k, "")
	}

	// WHEN: Loading
	cfg := Load(nil)

	// THEN: .env values win, the rest are defaults
	assert.Equal(t, "9999", cfg.Port)
	assert.Equal(t, time.Hour, cfg.SessionTTL)
	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, "crm.db", cfg.DatabaseURL)
	assert.Equal(t, DevJWTSecret, cfg.JWTSecret)
	assert.False(t, cfg.EnableScenarios)
	assert.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	ok := Config{Port: "8080", DBDriver: "postgres", JWTSecret: "0123456789abcdef", SessionTTL: time.Hour}
	assert.NoError(t, ok.Validate())

	bad := ok
	bad.DBDriver = "mysql"
	assert.Error(t, bad.Validate())

	bad = ok
	bad.JWTSecret = "short"
	assert.Error(t, bad.Validate())
}
