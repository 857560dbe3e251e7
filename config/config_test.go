package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{EnvOpenAIAPIKey, EnvOpenAIAPIKeys, EnvOpenAIBaseURL, EnvWorkerTier, EnvLogLevel, EnvOutputDir} {
		t.Setenv(key, "")
	}
	t.Chdir(t.TempDir())
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "fast", cfg.WorkerTier)
	assert.Equal(t, 4000, cfg.MaxOutputTokens)
	assert.Equal(t, 0, cfg.MaxIterations)
	assert.Equal(t, 60, cfg.RequestsPerMinute)
	assert.Equal(t, 90000, cfg.TokensPerMinute)
	assert.Equal(t, "marker", cfg.CompletionMode)
	assert.True(t, cfg.SaveLog)
	assert.Equal(t, "gpt-5", cfg.Models.High)
	assert.ErrorIs(t, cfg.RequireAPIKey(), ErrNoAPIKey)
}

func TestLoadFileThenEnv(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "maestro.yaml", `
api_keys: [file-key]
worker_tier: balanced
max_iterations: 8
timeout: 90s
models:
  high: gpt-5-mini
save_log: false
`)
	t.Setenv(EnvLogLevel, "DEBUG")
	t.Setenv(EnvOutputDir, "runs")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"file-key"}, cfg.APIKeys)
	assert.Equal(t, "balanced", cfg.WorkerTier)
	assert.Equal(t, 8, cfg.MaxIterations)
	assert.Equal(t, 90*time.Second, cfg.Timeout)
	assert.Equal(t, "gpt-5-mini", cfg.Models.High)
	assert.Equal(t, "gpt-4o", cfg.Models.Balanced)
	assert.False(t, cfg.SaveLog)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "runs", cfg.OutputDir)
	assert.NoError(t, cfg.RequireAPIKey())
}

func TestEnvKeysOverrideFile(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "maestro.yaml", "api_keys: [file-key]\n")
	t.Setenv(EnvOpenAIAPIKey, "sk-one")
	t.Setenv(EnvOpenAIAPIKeys, "sk-two, sk-one ,,sk-three")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"sk-one", "sk-two", "sk-three"}, cfg.APIKeys)
}

func TestLoadDotEnv(t *testing.T) {
	clearEnv(t)
	require.NoError(t, os.Unsetenv(EnvWorkerTier))
	require.NoError(t, os.WriteFile(".env", []byte("MAESTRO_WORKER_TIER=high\n"), 0o644))

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "high", cfg.WorkerTier)
}

func TestOverridesRunBeforeValidation(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvWorkerTier, "turbo")

	_, err := Load("")
	require.ErrorContains(t, err, "invalid configuration")

	cfg, err := Load("", func(c *Config) { c.WorkerTier = "high" })
	require.NoError(t, err)
	assert.Equal(t, "high", cfg.WorkerTier)
}

func TestLoadRejectsInvalid(t *testing.T) {
	clearEnv(t)

	_, err := Load(writeFile(t, "bad.yaml", "worker_tier: turbo\n"))
	assert.ErrorContains(t, err, "invalid configuration")

	_, err = Load(writeFile(t, "bad.yaml", "completion_mode: vibes\n"))
	assert.Error(t, err)

	_, err = Load(writeFile(t, "bad.yaml", "max_output_tokens: 0\n"))
	assert.Error(t, err)

	_, err = Load(writeFile(t, "bad.yaml", "base_url: not a url\n"))
	assert.Error(t, err)

	_, err = Load(writeFile(t, "bad.yaml", "models: [\n"))
	assert.ErrorContains(t, err, "failed to parse config")

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "failed to read config")
}
