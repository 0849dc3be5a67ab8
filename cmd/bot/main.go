package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/runixer/grabber/internal/app"
	"github.com/runixer/grabber/internal/bot"
	"github.com/runixer/grabber/internal/config"
	"github.com/runixer/grabber/internal/i18n"
	"github.com/runixer/grabber/internal/storage"
	"github.com/runixer/grabber/internal/telegram"
	"github.com/runixer/grabber/internal/web"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/errgroup"
)

var Version = "dev"

var buildInfo = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: "grabber",
		Name:      "build_info",
		Help:      "Build information with version and Go runtime details",
	},
	[]string{"version", "go_version"},
)

func init() {
	buildInfo.WithLabelValues(Version, runtime.Version()).Set(1)
}

func runHealthcheck(configPath string) int {
	// Config errors are tolerated here: the app may run with env vars only.
	cfg, err := config.Load(configPath)
	port := "9081"
	if err == nil && cfg.Server.ListenPort != "" {
		port = cfg.Server.ListenPort
	} else if envPort := os.Getenv("GRABBER_SERVER_PORT"); envPort != "" {
		port = envPort
	}

	url := fmt.Sprintf("http://localhost:%s/healthz", port)
	client := &http.Client{
		Timeout: 5 * time.Second,
	}
	resp, err := client.Get(url)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Healthcheck failed: %v\n", err)
		return 1
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(os.Stderr, "Healthcheck returned status: %d\n", resp.StatusCode)
		return 1
	}
	return 0
}

// webhookCredentials derives the webhook path and secret from the bot token.
// The first half of the hash is the secret header, the second the URL path,
// so both stay stable across restarts.
func webhookCredentials(token string) (path, secret string) {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[16:]), hex.EncodeToString(hash[:16])
}

func main() {
	// JSON logging before config load; replaced once the log config is known.
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})))

	if files, err := app.LoadEnv(); err != nil {
		slog.Warn("failed to load dotenv files, relying on environment variables", "error", err)
	} else if len(files) > 0 {
		slog.Info("loaded environment files", "files", files)
	}

	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	healthcheck := flag.Bool("healthcheck", false, "run healthcheck and exit")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("grabber", Version)
		os.Exit(0)
	}

	if *healthcheck {
		os.Exit(runHealthcheck(*configPath))
	}

	os.Exit(run(*configPath))
}

func run(configPath string) int {
	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return 1
	}

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		return 1
	}

	logger, logCloser := app.NewLogger(cfg.Log)
	defer logCloser.Close()
	slog.SetDefault(logger)
	logger.Info("Config loaded successfully", "allowed_users", len(cfg.Bot.AllowedUserIDs))

	store, err := storage.NewSQLiteStore(logger, cfg.Database.Path)
	if err != nil {
		logger.Error("failed to create storage", "error", err)
		return 1
	}
	defer store.Close()

	if err := store.Init(); err != nil {
		logger.Error("failed to initialize storage", "error", err)
		return 1
	}
	logger.Info("Database initialized successfully.")

	api, err := telegram.NewClient(cfg.Telegram.Token, cfg.Telegram.APIURL, cfg.Telegram.ProxyURL)
	if err != nil {
		logger.Error("failed to create telegram client", "error", err)
		return 1
	}
	logger.Info("Telegram client created successfully.", "api_url", cfg.Telegram.APIURL)

	translator, err := i18n.NewTranslator(cfg.Bot.Language)
	if err != nil {
		logger.Error("failed to initialize translator", "error", err)
		return 1
	}
	logger.Info("Translator initialized", "default_lang", cfg.Bot.Language, "languages", translator.Languages())

	services, err := app.SetupServices(logger, cfg, store, api, translator)
	if err != nil {
		logger.Error("failed to set up services", "error", err)
		return 1
	}

	b, err := bot.NewBot(logger, api, cfg, store, store, services.Orchestrator, services.Workspace, services.Files, translator)
	if err != nil {
		logger.Error("failed to create bot", "error", err)
		return 1
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if cfg.Telegram.WebhookURL != "" {
		cfg.Telegram.WebhookPath, cfg.Telegram.WebhookSecret = webhookCredentials(cfg.Telegram.Token)

		webhookURL := cfg.Telegram.WebhookURL + "/telegram/" + cfg.Telegram.WebhookPath
		if err := b.SetWebhook(webhookURL, cfg.Telegram.WebhookSecret); err != nil {
			logger.Error("failed to set webhook", "error", err)
			return 1
		}
		logger.Info("Webhook set", "url", cfg.Telegram.WebhookURL)
	}

	g, gctx := errgroup.WithContext(ctx)

	webServer := web.NewServer(gctx, logger, cfg, store, store, store, b)
	g.Go(func() error {
		if err := webServer.Start(gctx); err != nil {
			return fmt.Errorf("web server: %w", err)
		}
		return nil
	})

	if cfg.Telegram.WebhookURL == "" {
		logger.Info("Webhook not set, using long polling.")

		// Clear webhook first to ensure we can get updates
		if err := b.SetWebhook("", ""); err != nil {
			logger.Warn("failed to clear webhook", "error", err)
		}

		g.Go(func() error {
			poll(gctx, b, logger)
			return nil
		})
	}

	logger.Info("Starting Grabber", "version", Version)

	if err := g.Wait(); err != nil {
		logger.Error("shutting down after failure", "error", err)
	}
	logger.Info("Shutting down...")

	// Running jobs finish before the store closes.
	b.Stop()
	return 0
}

// poll fetches updates until ctx is done. Each update is handled in its own
// goroutine so a long download never blocks polling.
func poll(ctx context.Context, b *bot.Bot, logger *slog.Logger) {
	offset := 0
	for {
		select {
		case <-ctx.Done():
			logger.Info("Polling goroutine received shutdown signal")
			return
		default:
		}

		updates, err := b.API().GetUpdates(ctx, telegram.GetUpdatesRequest{
			Offset:         offset,
			Timeout:        25, // Use 25s to avoid http client timeout (30s)
			AllowedUpdates: bot.AllowedUpdates,
		})
		if err != nil {
			// Only log and retry if context is not cancelled (shutdown)
			if ctx.Err() == nil {
				logger.Error("failed to get updates", "error", err)
				select {
				case <-ctx.Done():
				case <-time.After(5 * time.Second):
				}
			}
			continue
		}

		for i := range updates {
			update := &updates[i]
			if update.UpdateID >= offset {
				offset = update.UpdateID + 1
			}
			b.ProcessUpdateAsync(ctx, update, "long_polling")
		}
	}
}
