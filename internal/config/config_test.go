package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadParsesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: "9090"
redis:
  addr: localhost:6379
content:
  ttl: 5m
cache:
  driver: sqlite
  sqlite_path: /tmp/quiz.db
game:
  target: Kanye West
ratelimit:
  per_second: 5
  burst: 10
log:
  level: debug
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, "sqlite", cfg.Cache.Driver)
	assert.Equal(t, "Kanye West", cfg.Game.Target)
	assert.Equal(t, 10, cfg.RateLimit.Burst)
	assert.Equal(t, 5*time.Minute, TTLDuration(cfg.Content.TTL, time.Hour))
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel())
}

func TestLoadMissingFileUsesEnv(t *testing.T) {
	t.Setenv("JWT_SECRET", "from-the-environment")
	t.Setenv("DATABASE_URL", "postgres://localhost/quiz")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "from-the-environment", cfg.Auth.JWTSecret)
	assert.Equal(t, "postgres://localhost/quiz", cfg.Postgres.URL)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel())
}

func TestLoadRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [unterminated"), 0o600))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestTTLDurationFallback(t *testing.T) {
	assert.Equal(t, time.Minute, TTLDuration("", time.Minute))
	assert.Equal(t, time.Minute, TTLDuration("soon", time.Minute))
	assert.Equal(t, 3*time.Second, TTLDuration("3s", time.Minute))
}
