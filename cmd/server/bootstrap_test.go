package main

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kbrejes/fb-stats-bot/internal/app"
)

func TestConvertDatabaseConfigDefaultsToSQLite(t *testing.T) {
	cfg := &app.Config{}
	cfg.Database.Path = " ./data/fbstats.sqlite "

	dbCfg := convertDatabaseConfig(cfg)
	require.Equal(t, "sqlite", dbCfg.Driver)
	require.Equal(t, "./data/fbstats.sqlite", dbCfg.Path)
}

func TestConvertDatabaseConfigPostgresAlias(t *testing.T) {
	cfg := &app.Config{}
	cfg.Database.Driver = "PostgreSQL"
	cfg.Database.Postgres.Host = "db.internal"
	cfg.Database.Postgres.Port = 5432
	cfg.Database.Postgres.Database = "fbstats"
	cfg.Database.Postgres.Username = "bot"
	cfg.Database.Postgres.Password = "secret"

	dbCfg := convertDatabaseConfig(cfg)
	require.Equal(t, "postgres", dbCfg.Driver)
	require.Equal(t, "db.internal", dbCfg.Host)
	require.Equal(t, 5432, dbCfg.Port)
	require.Equal(t, "fbstats", dbCfg.Name)
	require.Equal(t, "bot", dbCfg.User)
	require.Equal(t, "secret", dbCfg.Password)
}

func TestConvertDatabaseConfigUnknownDriverPassedThrough(t *testing.T) {
	cfg := &app.Config{}
	cfg.Database.Driver = "oracle"

	dbCfg := convertDatabaseConfig(cfg)
	require.Equal(t, "oracle", dbCfg.Driver)
}
