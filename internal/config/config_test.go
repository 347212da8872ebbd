package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, BackendMemory, cfg.Store.Backend)
	assert.Equal(t, 200000, cfg.MaxErrorLength)
	assert.Equal(t, "Program_Chairs", cfg.Names.ProgramChairs)
	assert.True(t, cfg.Metrics)
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "venueflow.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
base_url: https://venues.example.org
log_level: debug
store:
  backend: sqlite
  path: /tmp/venues.db
names:
  reviewers: Program_Committee
`), 0o644))

	t.Setenv("VENUEFLOW_LOG_LEVEL", "warn")
	t.Setenv("VENUEFLOW_NAMES_AREA_CHAIRS", "Meta_Reviewers")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://venues.example.org", cfg.BaseURL)
	assert.Equal(t, "warn", cfg.LogLevel, "environment wins over the file")
	assert.Equal(t, BackendSQLite, cfg.Store.Backend)
	assert.Equal(t, "/tmp/venues.db", cfg.Store.Path)
	assert.Equal(t, "Program_Committee", cfg.Names.Reviewers)
	assert.Equal(t, "Meta_Reviewers", cfg.Names.AreaChairs)
	assert.Equal(t, "Authors", cfg.Names.Authors, "unset names keep their defaults")
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "read config")

	t.Setenv("VENUEFLOW_MAX_ERROR_LENGTH", "many")
	_, err = Load("")
	assert.ErrorContains(t, err, "parse env:")
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Store.Backend = "postgres"
	cfg.LogLevel = "loud"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown store backend "postgres"`)
	assert.Contains(t, err.Error(), `unknown log level "loud"`)

	cfg = Default()
	cfg.Store.Backend = BackendRedis
	cfg.Store.Redis.Addr = ""
	assert.ErrorContains(t, cfg.Validate(), "store.redis.addr")
}

func TestLoad_Hooks(t *testing.T) {
	path := filepath.Join(t.TempDir(), "venueflow.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
hooks:
  dir: /srv/hooks
  notify:
    command: ./mail.sh
    env:
      SMTP_HOST: localhost
`), 0o644))
	t.Setenv("VENUEFLOW_HOOKS_SOLVE_COMMAND", "matcher")
	t.Setenv("VENUEFLOW_HOOKS_SOLVE_ARGS", "--mode fast")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/srv/hooks", cfg.Hooks.Dir)
	assert.Equal(t, "./mail.sh", cfg.Hooks.Notify.Command)
	assert.Equal(t, "localhost", cfg.Hooks.Notify.Env["SMTP_HOST"])
	assert.Equal(t, "matcher", cfg.Hooks.Solve.Command)
	assert.Equal(t, []string{"--mode", "fast"}, cfg.Hooks.Solve.Args)

	cfg.Hooks.Notify.Env = map[string]string{"VENUEFLOW_HOOK": "x"}
	assert.ErrorContains(t, cfg.Validate(), "hooks.notify")
}
