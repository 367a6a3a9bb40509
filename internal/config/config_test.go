package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func clearEnv(t *testing.T) {
	for _, k := range []string{"SEARCH_ADDR", "SEARCH_PORT", "SEARCH_KEY", "SEARCH_SKIP_SYNC", "SERVER_PORT", "DISCUIT_URL"} {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(writeConfig(t, "log_level: debug\n"))
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 2500, cfg.Sync.BatchSize)
	assert.Equal(t, 4, cfg.Sync.Concurrency)
	assert.Equal(t, 1000, cfg.Sync.PageSize)
	assert.Equal(t, 10, cfg.Ingest.BatchSize)
	assert.Equal(t, 5*time.Second, cfg.Ingest.BatchTimeout)
	assert.Equal(t, time.Second, cfg.Ingest.ResubscribeBackoff)
	assert.Equal(t, 30*time.Second, cfg.Ingest.MaxResubscribeBackoff)
	assert.Equal(t, "posts", cfg.Search.Index)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, cfg.Search.Timeout, cfg.Sync.TaskTimeout)
}

func TestLoad_ExpandsEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("TEST_DB_PASSWORD", "s3cret")

	cfg, err := Load(writeConfig(t, `
database:
  host: db
  port: 5433
  user: indexer
  password: ${TEST_DB_PASSWORD}
  dbname: posts
sync:
  batch_size: 100
  concurrency: 2
ingest:
  batch_timeout: 250ms
`))
	require.NoError(t, err)

	assert.Equal(t, "s3cret", cfg.Database.Password)
	assert.Equal(t, "host=db port=5433 user=indexer password=s3cret dbname=posts sslmode=disable", cfg.Database.DSN())
	assert.Equal(t, "postgres://indexer:s3cret@db:5433/posts?sslmode=disable", cfg.Database.MigrationURL())
	assert.Equal(t, 100, cfg.Sync.BatchSize)
	assert.Equal(t, 2, cfg.Sync.Concurrency)
	assert.Equal(t, 250*time.Millisecond, cfg.Ingest.BatchTimeout)
}

func TestLoad_MissingFileFallsBackToDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))

	require.ErrorIs(t, err, ErrFileMissing)
	require.NotNil(t, cfg)
	assert.Equal(t, "http://127.0.0.1:7700", cfg.Search.URL)
	assert.Equal(t, ":3001", cfg.HTTP.Addr)
}

func TestLoad_LegacyEnvironmentVariables(t *testing.T) {
	clearEnv(t)
	t.Setenv("SEARCH_ADDR", "http://meili")
	t.Setenv("SEARCH_PORT", "7701")
	t.Setenv("SEARCH_KEY", "masterKey")
	t.Setenv("SEARCH_SKIP_SYNC", "true")
	t.Setenv("SERVER_PORT", "8080")
	t.Setenv("DISCUIT_URL", "http://discuit.local/api")

	cfg, err := Load(writeConfig(t, "{}\n"))
	require.NoError(t, err)

	assert.Equal(t, "http://meili:7701", cfg.Search.URL)
	assert.Equal(t, "masterKey", cfg.Search.APIKey)
	assert.True(t, cfg.Search.SkipSync)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, "http://discuit.local/api", cfg.Discuit.APIURL)
}

func TestLoad_InvalidYAML(t *testing.T) {
	clearEnv(t)
	_, err := Load(writeConfig(t, "sync: [unclosed\n"))
	assert.Error(t, err)
}

func TestDatabaseConfig_Sqlite(t *testing.T) {
	d := DatabaseConfig{Driver: "sqlite", Path: "/tmp/posts.db"}
	assert.Equal(t, "/tmp/posts.db", d.DSN())
	assert.Equal(t, "sqlite:///tmp/posts.db", d.MigrationURL())
}
