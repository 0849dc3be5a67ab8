package config

import (
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultConfig []byte

// Defaults used when a duration is empty or invalid.
const (
	DefaultProcessTimeout   = 1 * time.Hour
	DefaultProgressInterval = 5 * time.Second
	DefaultProbeTimeout     = 30 * time.Second
	DefaultMaintenanceEvery = 1 * time.Hour
)

type LogConfig struct {
	Level string `yaml:"level" env:"GRABBER_LOG_LEVEL"`
	// File enables a rotating log file next to stdout.
	File       string `yaml:"file" env:"GRABBER_LOG_FILE"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

type TelegramConfig struct {
	Token string `yaml:"token" env:"GRABBER_TELEGRAM_TOKEN,TG_BOT_TOKEN"`
	// APIURL points to a Bot API server. A self-hosted one lifts the upload limit to 2 GiB.
	APIURL        string `yaml:"api_url" env:"GRABBER_TELEGRAM_API_URL"`
	WebhookURL    string `yaml:"webhook_url" env:"GRABBER_TELEGRAM_WEBHOOK_URL"`
	WebhookPath   string // Auto-generated from token hash (not configurable)
	WebhookSecret string // Auto-generated from token hash (not configurable)
	ProxyURL      string `yaml:"proxy_url" env:"GRABBER_TELEGRAM_PROXY_URL"`
}

type BotConfig struct {
	Language       string  `yaml:"language" env:"GRABBER_BOT_LANGUAGE"`
	AllowedUserIDs []int64 `yaml:"allowed_user_ids" env:"GRABBER_ALLOWED_USER_IDS"`
	// EditsPerSecond limits status message edits per chat. 0 disables the limiter.
	EditsPerSecond float64 `yaml:"edits_per_second" env:"GRABBER_BOT_EDITS_PER_SECOND"`
	EditBurst      int     `yaml:"edit_burst"`
}

type DownloadConfig struct {
	Dir              string `yaml:"dir" env:"GRABBER_DOWNLOAD_DIR,DOWNLOAD_LOCATION"`
	MaxFileSize      int64  `yaml:"max_file_size" env:"GRABBER_DOWNLOAD_MAX_FILE_SIZE,TG_MAX_FILE_SIZE"`
	// ProcessTimeout is a duration ("90m") or a bare number of seconds ("3600").
	ProcessTimeout   string `yaml:"process_timeout" env:"GRABBER_DOWNLOAD_PROCESS_TIMEOUT,PROCESS_TIMEOUT"`
	MaxConcurrent    int    `yaml:"max_concurrent" env:"GRABBER_DOWNLOAD_MAX_CONCURRENT"`
	ProgressInterval string `yaml:"progress_interval"`
	YTDLPPath        string `yaml:"ytdlp_path" env:"GRABBER_YTDLP_PATH"`
	FFmpegPath       string `yaml:"ffmpeg_path" env:"GRABBER_FFMPEG_PATH"`
	FFprobePath      string `yaml:"ffprobe_path" env:"GRABBER_FFPROBE_PATH"`
	ProbeTimeout     string `yaml:"probe_timeout"`
}

// GetProcessTimeout returns the deadline of a single download job.
func (c *DownloadConfig) GetProcessTimeout() time.Duration {
	return parseDurationOr(c.ProcessTimeout, DefaultProcessTimeout)
}

// GetProgressInterval returns the status update period.
func (c *DownloadConfig) GetProgressInterval() time.Duration {
	return parseDurationOr(c.ProgressInterval, DefaultProgressInterval)
}

func (c *DownloadConfig) GetProbeTimeout() time.Duration {
	return parseDurationOr(c.ProbeTimeout, DefaultProbeTimeout)
}

type RegistryConfig struct {
	Capacity int `yaml:"capacity" env:"GRABBER_REGISTRY_CAPACITY"`
	// TTL defaults to the process timeout when empty.
	TTL string `yaml:"ttl" env:"GRABBER_REGISTRY_TTL"`
}

type DatabaseConfig struct {
	Path                  string `yaml:"path" env:"GRABBER_DATABASE_PATH"`
	KeepDeliveriesPerUser int    `yaml:"keep_deliveries_per_user"`
	MaintenanceInterval   string `yaml:"maintenance_interval"`
}

func (c *DatabaseConfig) GetMaintenanceInterval() time.Duration {
	return parseDurationOr(c.MaintenanceInterval, DefaultMaintenanceEvery)
}

type Config struct {
	Log    LogConfig `yaml:"log"`
	Server struct {
		ListenPort string `yaml:"listen_port" env:"GRABBER_SERVER_PORT"`
	} `yaml:"server"`
	Telegram TelegramConfig `yaml:"telegram"`
	Bot      BotConfig      `yaml:"bot"`
	Download DownloadConfig `yaml:"download"`
	Registry RegistryConfig `yaml:"registry"`
	Database DatabaseConfig `yaml:"database"`
}

// GetRegistryTTL returns how long a quality menu stays usable.
func (c *Config) GetRegistryTTL() time.Duration {
	return parseDurationOr(c.Registry.TTL, c.Download.GetProcessTimeout())
}

func parseDurationOr(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := parseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// parseDuration accepts Go durations and bare integers meaning seconds.
func parseDuration(s string) (time.Duration, error) {
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	return time.ParseDuration(s)
}

// Load loads configuration from the specified file path.
// It first loads the embedded default configuration, then merges the user config on top.
// Finally, it overrides values with environment variables.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(defaultConfig, &cfg); err != nil {
		return nil, err
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, err
			}
			slog.Warn("config file not found, using defaults", "path", path)
		} else {
			expandedData := []byte(os.ExpandEnv(string(data)))

			// Unmarshal user config on top of defaults (merges non-zero values)
			if err := yaml.Unmarshal(expandedData, &cfg); err != nil {
				return nil, err
			}
			slog.Info("loaded user config", "path", path)
		}
	}

	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks configuration for required fields and valid ranges.
// Returns an error describing all validation failures.
func (c *Config) Validate() error {
	var errs []error

	if c.Telegram.Token == "" {
		errs = append(errs, errors.New("telegram.token is required"))
	}
	if c.Database.Path == "" {
		errs = append(errs, errors.New("database.path is required"))
	}
	if c.Download.Dir == "" {
		errs = append(errs, errors.New("download.dir is required"))
	}
	if c.Bot.Language == "" {
		errs = append(errs, errors.New("bot.language is required"))
	}

	if c.Download.MaxFileSize <= 0 {
		errs = append(errs, fmt.Errorf("download.max_file_size must be positive, got %d", c.Download.MaxFileSize))
	}
	if c.Download.MaxConcurrent <= 0 {
		errs = append(errs, fmt.Errorf("download.max_concurrent must be positive, got %d", c.Download.MaxConcurrent))
	}
	if c.Registry.Capacity < 0 {
		errs = append(errs, fmt.Errorf("registry.capacity must not be negative, got %d", c.Registry.Capacity))
	}
	if c.Bot.EditsPerSecond < 0 {
		errs = append(errs, fmt.Errorf("bot.edits_per_second must not be negative, got %f", c.Bot.EditsPerSecond))
	}
	if c.Database.KeepDeliveriesPerUser < 0 {
		errs = append(errs, fmt.Errorf("database.keep_deliveries_per_user must not be negative, got %d", c.Database.KeepDeliveriesPerUser))
	}

	durations := []struct {
		name  string
		value string
	}{
		{"download.process_timeout", c.Download.ProcessTimeout},
		{"download.progress_interval", c.Download.ProgressInterval},
		{"download.probe_timeout", c.Download.ProbeTimeout},
		{"registry.ttl", c.Registry.TTL},
		{"database.maintenance_interval", c.Database.MaintenanceInterval},
	}
	for _, d := range durations {
		if d.value == "" {
			continue
		}
		parsed, err := parseDuration(d.value)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: invalid duration format %q: %w", d.name, d.value, err))
			continue
		}
		if parsed <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %s", d.name, d.value))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
