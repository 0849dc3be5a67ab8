package testutil

import (
	"io"
	"log/slog"
	"testing"

	"github.com/runixer/grabber/internal/config"
	"github.com/runixer/grabber/internal/i18n"
)

// TestLogger returns a discarding logger for tests.
func TestLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// TestConfig returns a config with sensible test defaults.
func TestConfig() *config.Config {
	cfg := &config.Config{
		Telegram: config.TelegramConfig{
			Token:  "123456:test-token",
			APIURL: "http://telegram.invalid",
		},
		Bot: config.BotConfig{
			Language: "en",
		},
		Download: config.DownloadConfig{
			Dir:              "downloads",
			MaxFileSize:      50 * 1024 * 1024,
			ProcessTimeout:   "1m",
			MaxConcurrent:    2,
			ProgressInterval: "5s",
		},
		Registry: config.RegistryConfig{
			Capacity: 100,
		},
		Database: config.DatabaseConfig{
			Path:                  ":memory:",
			KeepDeliveriesPerUser: 100,
		},
	}
	cfg.Server.ListenPort = "0"
	return cfg
}

// TestTranslator returns the translator built from the embedded locales.
func TestTranslator(t *testing.T) *i18n.Translator {
	t.Helper()
	tr, err := i18n.NewTranslator("en")
	if err != nil {
		t.Fatalf("failed to create test translator: %v", err)
	}
	return tr
}
