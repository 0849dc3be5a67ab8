package app

import (
	"fmt"
	"log/slog"

	"github.com/runixer/grabber/internal/config"
	"github.com/runixer/grabber/internal/extractor"
	"github.com/runixer/grabber/internal/files"
	"github.com/runixer/grabber/internal/i18n"
	"github.com/runixer/grabber/internal/media"
	"github.com/runixer/grabber/internal/pipeline"
	"github.com/runixer/grabber/internal/progress"
	"github.com/runixer/grabber/internal/registry"
	"github.com/runixer/grabber/internal/storage"
	"github.com/runixer/grabber/internal/telegram"
	"github.com/runixer/grabber/internal/workspace"
)

// Services holds everything the bot needs besides the Telegram client
// and storage, so the bot binary and tools share one wiring.
type Services struct {
	Engine       extractor.Engine
	Classifier   *media.Classifier
	Thumbnails   *media.Thumbnailer
	Workspace    *workspace.Workspace
	Registry     registry.Store
	Limiters     *progress.LimiterPool
	Files        *files.Processor
	Orchestrator *pipeline.Orchestrator
	Translator   *i18n.Translator
}

// SetupServices wires the download pipeline.
//
// Binaries (yt-dlp, ffmpeg, ffprobe) are looked up lazily, so a missing
// tool surfaces as a per-job failure rather than a startup error.
func SetupServices(
	logger *slog.Logger,
	cfg *config.Config,
	store *storage.SQLiteStore,
	api telegram.BotAPI,
	translator *i18n.Translator,
) (*Services, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if api == nil {
		return nil, fmt.Errorf("telegram client is required")
	}
	if translator == nil {
		return nil, fmt.Errorf("translator is required")
	}

	dl := cfg.Download
	services := &Services{
		Engine:     extractor.NewYTDLP(dl.YTDLPPath, dl.FFmpegPath, logger),
		Classifier: media.NewClassifier(media.NewFFProbe(dl.FFprobePath, dl.GetProbeTimeout()), logger),
		Thumbnails: media.NewThumbnailer(dl.FFmpegPath, logger),
		Workspace:  workspace.New(dl.Dir, logger),
		Registry:   registry.NewMemoryStore(cfg.Registry.Capacity, cfg.GetRegistryTTL()),
		Limiters:   progress.NewLimiterPool(cfg.Bot.EditsPerSecond, cfg.Bot.EditBurst),
		Files:      files.NewProcessor(telegram.NewHTTPFileDownloader(api), logger),
		Translator: translator,
	}

	deps := pipeline.Deps{
		API:        api,
		Engine:     services.Engine,
		Registry:   services.Registry,
		Classifier: services.Classifier,
		Thumbnails: services.Thumbnails,
		Workspace:  services.Workspace,
		Translator: translator,
		Limiters:   services.Limiters,
		Logger:     logger,
	}
	// A nil *SQLiteStore must stay a nil interface.
	if store != nil {
		deps.Deliveries = store
	}

	services.Orchestrator = pipeline.NewOrchestrator(deps, pipeline.Config{
		MaxFileSize:      dl.MaxFileSize,
		ProcessTimeout:   dl.GetProcessTimeout(),
		MaxConcurrent:    dl.MaxConcurrent,
		ProgressInterval: dl.GetProgressInterval(),
	})

	logger.Info("Download pipeline initialized",
		"max_concurrent", dl.MaxConcurrent,
		"max_file_size", dl.MaxFileSize,
		"process_timeout", dl.GetProcessTimeout().String(),
	)
	return services, nil
}
