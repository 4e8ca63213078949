package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envFrom(vars map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		value, ok := vars[key]
		return value, ok
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tasktree.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, BackendSQLite, cfg.Store.Backend)
	assert.Equal(t, 5*time.Second, cfg.Store.Timeout)
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
store:
  backend: neo4j
  timeout: 250ms
neo4j:
  uri: bolt://graph:7687
  database: tasks
log:
  level: debug
`)
	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, BackendNeo4j, cfg.Store.Backend)
	assert.Equal(t, 250*time.Millisecond, cfg.Store.Timeout)
	assert.Equal(t, "bolt://graph:7687", cfg.Neo4j.URI)
	assert.Equal(t, "tasks", cfg.Neo4j.Database)
	assert.Equal(t, "neo4j", cfg.Neo4j.Username, "unset fields keep their defaults")
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadFileErrors(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = LoadFile(writeConfig(t, "store: [not, a, map]"))
	assert.ErrorContains(t, err, "parsing config")
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	err := cfg.ApplyEnv(envFrom(map[string]string{
		"TASKTREE_STORE_BACKEND":    "memory",
		"TASKTREE_STORE_TIMEOUT":    "2s",
		"TASKTREE_SQLITE_POOL_SIZE": "3",
		"TASKTREE_LOG_FORMAT":       "text",
	}))
	require.NoError(t, err)
	assert.Equal(t, BackendMemory, cfg.Store.Backend)
	assert.Equal(t, 2*time.Second, cfg.Store.Timeout)
	assert.Equal(t, 3, cfg.SQLite.PoolSize)
	assert.Equal(t, "text", cfg.Log.Format)

	err = cfg.ApplyEnv(envFrom(map[string]string{
		"TASKTREE_STORE_TIMEOUT":    "soon",
		"TASKTREE_SQLITE_POOL_SIZE": "many",
	}))
	assert.ErrorContains(t, err, "TASKTREE_STORE_TIMEOUT")
	assert.ErrorContains(t, err, "TASKTREE_SQLITE_POOL_SIZE")
}

func TestLoadLayersFileEnvAndFlags(t *testing.T) {
	path := writeConfig(t, `
store:
  backend: sqlite
sqlite:
  path: /from/file.db
http:
  addr: 127.0.0.1:9000
`)
	env := envFrom(map[string]string{
		"TASKTREE_CONFIG":      path,
		"TASKTREE_SQLITE_PATH": "/from/env.db",
		"TASKTREE_LOG_LEVEL":   "warn",
	})

	cfg, err := Load("tasktree", []string{"--log-level", "error", "--store-timeout=1s"}, env)
	require.NoError(t, err)
	assert.Equal(t, "/from/env.db", cfg.SQLite.Path)
	assert.Equal(t, "127.0.0.1:9000", cfg.HTTP.Addr)
	assert.Equal(t, "error", cfg.Log.Level)
	assert.Equal(t, time.Second, cfg.Store.Timeout)

	cfg, err = Load("tasktree", []string{"--config", path, "--sqlite-path", "/from/flag.db"}, envFrom(nil))
	require.NoError(t, err)
	assert.Equal(t, "/from/flag.db", cfg.SQLite.Path)
	assert.Equal(t, "127.0.0.1:9000", cfg.HTTP.Addr)
}

func TestLoadRejects(t *testing.T) {
	_, err := Load("tasktree", []string{"--store", "redis"}, envFrom(nil))
	assert.ErrorContains(t, err, "unknown backend")

	_, err = Load("tasktree", []string{"--store-timeout", "0s"}, envFrom(nil))
	assert.ErrorContains(t, err, "store.timeout")

	_, err = Load("tasktree", []string{"extra"}, envFrom(nil))
	assert.ErrorContains(t, err, "unexpected argument")

	_, err = Load("tasktree", []string{"--help"}, envFrom(nil))
	assert.ErrorIs(t, err, pflag.ErrHelp)
}

func TestValidateCollectsEveryProblem(t *testing.T) {
	cfg := Default()
	cfg.SQLite.Path = " "
	cfg.Log.Level = "loud"
	cfg.Log.Format = "xml"

	err := cfg.Validate()
	assert.ErrorContains(t, err, "sqlite.path")
	assert.ErrorContains(t, err, "log.level")
	assert.ErrorContains(t, err, "log.format")
}

func TestInitNeo4jBuildsLazyDriver(t *testing.T) {
	driver, err := InitNeo4j(Default().Neo4j)
	require.NoError(t, err)
	assert.NoError(t, driver.Close(context.Background()))

	_, err = InitNeo4j(Neo4jConfig{URI: "http://not-bolt"})
	assert.Error(t, err)
}
