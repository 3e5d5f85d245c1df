package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/coding-eval/internal/model"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck
	return dir
}

func TestLoadDefaults(t *testing.T) {
	// No config.yaml in the temp dir
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "coding-eval.db", cfg.Store.DatabaseURL)
	assert.Equal(t, int32(4), cfg.Store.MaxConns)
	assert.Equal(t, "claude-sonnet-4-5-20250929", cfg.Anthropic.Model)
	assert.Equal(t, "claude-haiku-4-5-20251001", cfg.Anthropic.ExtractModel)
	assert.Equal(t, int64(4096), cfg.Anthropic.MaxTokens)
	assert.Equal(t, 50, cfg.Anthropic.RequestsPerMinute)
	assert.Equal(t, 4, cfg.Eval.Concurrency)
	assert.Equal(t, 10, cfg.Eval.DetailRuns)
	assert.Equal(t, 2000, cfg.Eval.ExcerptChars)
	assert.Equal(t, "inbox", cfg.Ingest.InboxDir)
	assert.Equal(t, "utf-8", cfg.Ingest.Charset)
	assert.Equal(t, 500, cfg.Ingest.DebounceMs)
	assert.Equal(t, 3, cfg.Breaker.FailureThreshold)
	assert.Equal(t, 15, cfg.Breaker.ResetTimeoutSecs)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: postgres
  database_url: postgres://localhost/codeeval
anthropic:
  model: claude-opus-4-1-20250805
eval:
  concurrency: 8
log:
  level: debug
  format: console
server:
  port: 9090
  allowed_origins:
    - http://localhost:5173
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://localhost/codeeval", cfg.Store.DatabaseURL)
	assert.Equal(t, "claude-opus-4-1-20250805", cfg.Anthropic.Model)
	assert.Equal(t, 8, cfg.Eval.Concurrency)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, []string{"http://localhost:5173"}, cfg.Server.AllowedOrigins)
	// Defaults still apply for unset values
	assert.Equal(t, 2000, cfg.Eval.ExcerptChars)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("CODEEVAL_STORE_DRIVER", "memory")
	t.Setenv("CODEEVAL_LOG_LEVEL", "warn")
	t.Setenv("CODEEVAL_ANTHROPIC_KEY", "sk-ant-test")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "memory", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "sk-ant-test", cfg.Anthropic.Key)
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("store: [\n"), 0644))

	_, err := Load()
	assert.Error(t, err)
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validDefaults returns a Config with all defaults populated for validation tests.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Store.Driver = "sqlite"
	cfg.Store.DatabaseURL = "coding-eval.db"
	cfg.Breaker.FailureThreshold = 3
	cfg.Eval.Concurrency = 4
	cfg.Eval.DetailRuns = 10
	cfg.Eval.ExcerptChars = 2000
	cfg.Server.Port = 8080
	return cfg
}

func TestValidateStore(t *testing.T) {
	cfg := validDefaults()
	assert.NoError(t, cfg.Validate("store"))

	cfg.Store.Driver = "postgres"
	cfg.Store.DatabaseURL = ""
	err := cfg.Validate("store")
	assert.ErrorContains(t, err, "store.database_url is required")

	cfg.Store.Driver = "memory"
	assert.NoError(t, cfg.Validate("store"))

	cfg.Store.Driver = "mysql"
	assert.ErrorContains(t, cfg.Validate("store"), `store.driver "mysql"`)
}

func TestValidateModel_MissingCredential(t *testing.T) {
	cfg := validDefaults()

	err := cfg.Validate("model")
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrMissingCredential))
	assert.Contains(t, err.Error(), "anthropic.key is required")

	cfg.Anthropic.Key = "sk-ant-key"
	assert.NoError(t, cfg.Validate("model"))
}

func TestValidateEval(t *testing.T) {
	cfg := validDefaults()
	cfg.Anthropic.Key = "sk-ant-key"
	assert.NoError(t, cfg.Validate("eval"))

	cfg.Eval.Concurrency = 0
	err := cfg.Validate("eval")
	assert.ErrorContains(t, err, "eval.concurrency must be between 1 and 32")
	assert.False(t, errors.Is(err, model.ErrMissingCredential))

	cfg.Eval.Concurrency = 33
	assert.Error(t, cfg.Validate("eval"))
}

func TestValidateServe(t *testing.T) {
	cfg := validDefaults()
	assert.NoError(t, cfg.Validate("serve"), "serve runs without a model key")

	cfg.Server.Port = 0
	assert.ErrorContains(t, cfg.Validate("serve"), "server.port must be > 0")
}

func TestValidateUnknownMode(t *testing.T) {
	cfg := validDefaults()
	err := cfg.Validate("unknown")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}
