package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
server:
  listen_port: "9001"
telegram:
  token: "test_token"
  api_url: "http://localhost:8081"
  webhook_url: "https://test.com"
bot:
  language: "fa"
  allowed_user_ids:
    - 123
    - 456
download:
  dir: "/data/dl"
  max_file_size: 52428800
  process_timeout: "30m"
database:
  path: "test.db"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "9001", cfg.Server.ListenPort)
	assert.Equal(t, "test_token", cfg.Telegram.Token)
	assert.Equal(t, "http://localhost:8081", cfg.Telegram.APIURL)
	assert.Equal(t, "https://test.com", cfg.Telegram.WebhookURL)
	assert.Equal(t, "fa", cfg.Bot.Language)
	assert.Equal(t, []int64{123, 456}, cfg.Bot.AllowedUserIDs)
	assert.Equal(t, "/data/dl", cfg.Download.Dir)
	assert.Equal(t, int64(52428800), cfg.Download.MaxFileSize)
	assert.Equal(t, 30*time.Minute, cfg.Download.GetProcessTimeout())
	assert.Equal(t, "test.db", cfg.Database.Path)

	// Untouched sections keep their defaults
	assert.Equal(t, 4, cfg.Download.MaxConcurrent)
	assert.Equal(t, 10000, cfg.Registry.Capacity)
	assert.Equal(t, 30*time.Minute, cfg.GetRegistryTTL(), "registry TTL follows the process timeout")
}

func TestLoad_FileNotExists_FallsBackToDefault(t *testing.T) {
	cfg, err := Load("non_existent_file.yaml")
	require.NoError(t, err)
	assert.Equal(t, "9081", cfg.Server.ListenPort)
}

func TestLoad_EmbeddedDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "9081", cfg.Server.ListenPort)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "en", cfg.Bot.Language)
	assert.Equal(t, int64(2*1024*1024*1024), cfg.Download.MaxFileSize)
	assert.Equal(t, time.Hour, cfg.Download.GetProcessTimeout())
	assert.Equal(t, 5*time.Second, cfg.Download.GetProgressInterval())
	assert.Equal(t, time.Hour, cfg.GetRegistryTTL())
	assert.Equal(t, "https://api.telegram.org", cfg.Telegram.APIURL)
}

func TestLoad_WithEnvVars(t *testing.T) {
	t.Setenv("TEST_TOKEN", "secret-from-env")

	path := writeConfig(t, `
telegram:
  token: "$TEST_TOKEN"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "secret-from-env", cfg.Telegram.Token)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("GRABBER_TELEGRAM_TOKEN", "env-token")
	t.Setenv("GRABBER_DOWNLOAD_MAX_CONCURRENT", "9")
	t.Setenv("GRABBER_ALLOWED_USER_IDS", "1,2,3")
	t.Setenv("GRABBER_REGISTRY_TTL", "10m")

	path := writeConfig(t, `
telegram:
  token: "file-token"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "env-token", cfg.Telegram.Token)
	assert.Equal(t, 9, cfg.Download.MaxConcurrent)
	assert.Equal(t, []int64{1, 2, 3}, cfg.Bot.AllowedUserIDs)
	assert.Equal(t, 10*time.Minute, cfg.GetRegistryTTL())
}

func TestLoad_ProcessTimeoutInSeconds(t *testing.T) {
	t.Setenv("PROCESS_TIMEOUT", "3600")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "3600", cfg.Download.ProcessTimeout)
	assert.Equal(t, time.Hour, cfg.Download.GetProcessTimeout())

	cfg.Telegram.Token = "token"
	assert.NoError(t, cfg.Validate())

	t.Setenv("GRABBER_DOWNLOAD_PROCESS_TIMEOUT", "90m")
	cfg, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, 90*time.Minute, cfg.Download.GetProcessTimeout())
}

func TestDurationFallbacks(t *testing.T) {
	d := DownloadConfig{ProcessTimeout: "garbage", ProgressInterval: "-1s"}
	assert.Equal(t, DefaultProcessTimeout, d.GetProcessTimeout())
	assert.Equal(t, DefaultProgressInterval, d.GetProgressInterval())
	assert.Equal(t, DefaultProbeTimeout, d.GetProbeTimeout())
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg, err := Load("")
		require.NoError(t, err)
		cfg.Telegram.Token = "token"
		return cfg
	}

	t.Run("defaults with token are valid", func(t *testing.T) {
		assert.NoError(t, valid().Validate())
	})

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"missing token", func(c *Config) { c.Telegram.Token = "" }, "telegram.token is required"},
		{"missing db path", func(c *Config) { c.Database.Path = "" }, "database.path is required"},
		{"missing download dir", func(c *Config) { c.Download.Dir = "" }, "download.dir is required"},
		{"zero max size", func(c *Config) { c.Download.MaxFileSize = 0 }, "download.max_file_size must be positive"},
		{"zero concurrency", func(c *Config) { c.Download.MaxConcurrent = 0 }, "download.max_concurrent must be positive"},
		{"negative capacity", func(c *Config) { c.Registry.Capacity = -1 }, "registry.capacity must not be negative"},
		{"bad timeout", func(c *Config) { c.Download.ProcessTimeout = "soon" }, "download.process_timeout: invalid duration format"},
		{"non-positive ttl", func(c *Config) { c.Registry.TTL = "0s" }, "registry.ttl must be positive"},
		{"zero seconds timeout", func(c *Config) { c.Download.ProcessTimeout = "0" }, "download.process_timeout must be positive"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	t.Run("collects every problem", func(t *testing.T) {
		cfg := valid()
		cfg.Telegram.Token = ""
		cfg.Download.Dir = ""
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "telegram.token")
		assert.Contains(t, err.Error(), "download.dir")
	})
}
