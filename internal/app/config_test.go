package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	require.Equal(t, 8000, cfg.Server.Port)
	require.Equal(t, "info", cfg.Server.LogLevel)
	require.Equal(t, "sqlite", cfg.Database.Driver)
	require.Equal(t, 300*time.Second, cfg.Access.RoleCacheTTL)
	require.Equal(t, 30, cfg.Access.DefaultGrantDays)
	require.Equal(t, 365, cfg.Access.BaseAccessGrantDays)
	require.Equal(t, "@hourly", cfg.Maintenance.SweepSchedule)
	require.Equal(t, 90, cfg.Maintenance.AuditRetentionDays)
}

func TestLoadConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	contents := []byte(`
server:
  port: 9100
  log_level: debug
database:
  driver: postgres
  postgres:
    enabled: true
    host: db.internal
    port: 5432
    database: fbstats
    username: bot
    password: secret
gateway:
  secret: topsecret
access:
  role_cache_ttl: 120s
  default_grant_days: 14
admins:
  - 1001
  - 1002
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), contents, 0o600))

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	require.Equal(t, 9100, cfg.Server.Port)
	require.Equal(t, "debug", cfg.Server.LogLevel)
	require.Equal(t, "postgres", cfg.Database.Driver)
	require.True(t, cfg.Database.Postgres.Enabled)
	require.Equal(t, "db.internal", cfg.Database.Postgres.Host)
	require.Equal(t, "topsecret", cfg.Gateway.Secret)
	require.Equal(t, 2*time.Minute, cfg.Access.RoleCacheTTL)
	require.Equal(t, 14, cfg.Access.DefaultGrantDays)
	require.Equal(t, []int64{1001, 1002}, cfg.Admins)
	// Untouched keys keep their defaults.
	require.Equal(t, 365, cfg.Access.BaseAccessGrantDays)
}

func TestLoadConfigFromEnvironment(t *testing.T) {
	t.Setenv("FBSTATS_SERVER_PORT", "9200")
	t.Setenv("FBSTATS_GATEWAY_SECRET", "env-secret")
	t.Setenv("FBSTATS_ACCESS_ROLE_CACHE_TTL", "60s")

	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	require.Equal(t, 9200, cfg.Server.Port)
	require.Equal(t, "env-secret", cfg.Gateway.Secret)
	require.Equal(t, time.Minute, cfg.Access.RoleCacheTTL)
}
