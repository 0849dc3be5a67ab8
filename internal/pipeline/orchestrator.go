// Package pipeline drives one link from the quality menu to the delivered
// file: format listing, selection, download, size gate, classification,
// upload and cleanup.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/sync/semaphore"

	"github.com/runixer/grabber/internal/extractor"
	"github.com/runixer/grabber/internal/i18n"
	"github.com/runixer/grabber/internal/media"
	"github.com/runixer/grabber/internal/progress"
	"github.com/runixer/grabber/internal/registry"
	"github.com/runixer/grabber/internal/storage"
	"github.com/runixer/grabber/internal/telegram"
	"github.com/runixer/grabber/internal/token"
	"github.com/runixer/grabber/internal/workspace"
)

// finalEditTimeout bounds the status edit sent after a job ends, which
// runs on a context detached from the (possibly expired) job deadline.
const finalEditTimeout = 30 * time.Second

const defaultProcessTimeout = time.Hour

const engineStopGrace = 10 * time.Second

// captionLimit is Telegram's caption length limit.
const captionLimit = 1024

// Classifier decides how a downloaded file is delivered.
type Classifier interface {
	Classify(ctx context.Context, path string) media.Delivery
}

// Thumbnailer picks the thumbnail attached to an upload.
type Thumbnailer interface {
	Resolve(ctx context.Context, custom, mediaPath string, d media.Delivery) (string, bool)
}

// Config holds the limits applied to every job.
type Config struct {
	MaxFileSize      int64
	ProcessTimeout   time.Duration
	MaxConcurrent    int
	ProgressInterval time.Duration
}

// Deps are the collaborators of an Orchestrator. Deliveries may be nil.
type Deps struct {
	API        telegram.BotAPI
	Engine     extractor.Engine
	Registry   registry.Store
	Classifier Classifier
	Thumbnails Thumbnailer
	Workspace  *workspace.Workspace
	Deliveries storage.DeliveryRepository
	Translator *i18n.Translator
	Limiters   *progress.LimiterPool
	Logger     *slog.Logger
}

// MenuRequest is a link sent by a user.
type MenuRequest struct {
	ChatID    int64
	MessageID int // the message carrying the link
	UserID    int64
	URL       string
	Lang      string
}

// SelectionRequest is a press on a quality button.
type SelectionRequest struct {
	ChatID    int64
	MessageID int // the menu message
	// ReplyToMessageID is the user's link message; the file is sent as a
	// reply to it. Zero when Telegram did not include it.
	ReplyToMessageID int
	UserID           int64
	Data             string
	Lang             string
}

// Orchestrator runs requests. It is safe for concurrent use.
type Orchestrator struct {
	deps   Deps
	cfg    Config
	sem    *semaphore.Weighted
	logger *slog.Logger
	now    func() time.Time
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(deps Deps, cfg Config) *Orchestrator {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 1
	}
	if cfg.ProgressInterval <= 0 {
		cfg.ProgressInterval = progress.DefaultInterval
	}
	if cfg.ProcessTimeout <= 0 {
		cfg.ProcessTimeout = defaultProcessTimeout
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Limiters == nil {
		deps.Limiters = progress.NewLimiterPool(0, 0)
	}
	return &Orchestrator{
		deps:   deps,
		cfg:    cfg,
		sem:    semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
		logger: deps.Logger.With("component", "pipeline"),
		now:    time.Now,
	}
}

// ShowMenu answers a link with the quality menu. User-facing failures are
// reported by editing the status message and are not returned.
func (o *Orchestrator) ShowMenu(ctx context.Context, req MenuRequest) error {
	tr := o.deps.Translator.For(req.Lang)
	logger := o.logger.With("user_id", req.UserID, "chat_id", req.ChatID)
	m := newMachine(MenuRequested, logger)
	start := o.now()

	status, err := o.deps.API.SendMessage(ctx, telegram.SendMessageRequest{
		ChatID:                req.ChatID,
		Text:                  tr("pipeline.fetching_formats"),
		ReplyToMessageID:      req.MessageID,
		DisableWebPagePreview: true,
	})
	if err != nil {
		m.advance(Failed)
		recordMenu(menuResultError)
		return fmt.Errorf("failed to send status message: %w", err)
	}

	menu, err := o.listFormats(ctx, req)
	if err != nil {
		m.advance(Failed)
		kind := FailureKind(err)
		recordMenu(kind)
		logger.Info("menu not shown", "url", req.URL, "kind", kind, "error", err)
		o.edit(ctx, req.ChatID, status.MessageID, describe(tr, err), nil)
		return nil
	}

	text := tr("pipeline.choose_quality")
	if menu.Hidden > 0 {
		recordHiddenOptions(menu.Hidden)
		logger.Warn("quality menu truncated", "hidden", menu.Hidden, "offered", menu.Offered)
		text += "\n\n" + tr("pipeline.hidden_formats", menu.Hidden)
	}

	m.advance(FormatsListed)
	o.edit(ctx, req.ChatID, status.MessageID, text, menu.Keyboard)
	recordMenu(menuResultShown)
	recordPhase(phaseMenu, o.now().Sub(start).Seconds())
	logger.Debug("quality menu shown", "offered", menu.Offered, "duplicates", menu.Duplicates)
	return nil
}

func (o *Orchestrator) listFormats(ctx context.Context, req MenuRequest) (Menu, error) {
	ctx, cancel := context.WithTimeout(ctx, o.cfg.ProcessTimeout)
	defer cancel()

	info, err := o.deps.Engine.ListFormats(ctx, req.URL)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) && !errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("%w: %w", context.DeadlineExceeded, err)
		}
		return Menu{}, err
	}
	if len(info.Formats) == 0 {
		return Menu{}, ErrNoFormats
	}

	tr := o.deps.Translator.For(req.Lang)
	key := registry.Key(req.ChatID, req.MessageID)
	menu, err := BuildMenu(info.Formats, key, tr("pipeline.size_unknown"))
	if err != nil {
		return menu, err
	}
	o.deps.Registry.Put(key, req.URL)
	return menu, nil
}

// HandleSelection runs the job chosen by a button press. It blocks until
// the job ends; failures are reported to the user and recorded, not returned.
func (o *Orchestrator) HandleSelection(ctx context.Context, req SelectionRequest) error {
	tr := o.deps.Translator.For(req.Lang)
	logger := o.logger.With("user_id", req.UserID, "chat_id", req.ChatID)

	sel, url, err := o.resolve(req.Data)
	if err != nil {
		kind := FailureKind(err)
		recordJob(jobStatusRejected, kind)
		logger.Info("selection rejected", "kind", kind, "error", err)
		o.edit(ctx, req.ChatID, req.MessageID, describe(tr, err), nil)
		return nil
	}

	j := &job{
		id:     newJobID(o.now()),
		req:    req,
		sel:    sel,
		url:    url,
		tr:     tr,
		record: storage.Delivery{UserID: req.UserID, ChatID: req.ChatID, URL: url, FormatID: sel.FormatID, Container: sel.Container},
	}
	j.logger = logger.With("job_id", j.id, "format", sel.FormatID, "container", sel.Container)
	j.machine = newMachine(FormatsListed, j.logger)
	j.machine.advance(SelectionReceived)

	if !o.sem.TryAcquire(1) {
		o.edit(ctx, req.ChatID, req.MessageID, tr("pipeline.queued"), nil)
		if err := o.sem.Acquire(ctx, 1); err != nil {
			j.machine.advance(Failed)
			j.machine.advance(CleanedUp)
			o.finish(ctx, j, err)
			return nil
		}
	}
	defer o.sem.Release(1)

	jobsInFlight.Inc()
	defer jobsInFlight.Dec()

	o.run(ctx, j)
	return nil
}

func (o *Orchestrator) resolve(data string) (token.Selection, string, error) {
	sel, err := token.Decode(data)
	if err != nil {
		return token.Selection{}, "", err
	}
	url, err := o.deps.Registry.Get(sel.Key)
	if err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			return sel, "", fmt.Errorf("%w: %s", ErrSelectionExpired, sel.Key)
		}
		return sel, "", err
	}
	return sel, url, nil
}

// job is one selected format on its way to the user.
type job struct {
	id      string
	req     SelectionRequest
	sel     token.Selection
	url     string
	tr      func(string, ...interface{}) string
	logger  *slog.Logger
	machine *machine

	// scratch directory and the files in it, removed when the job ends
	dir       string
	mediaPath string
	thumbPath string

	downloadTime time.Duration
	uploadTime   time.Duration
	record       storage.Delivery
}

// Precheck validates callback data without side effects. It returns the
// text to show the user when the selection cannot run.
func (o *Orchestrator) Precheck(data, lang string) (string, bool) {
	if _, _, err := o.resolve(data); err != nil {
		return describe(o.deps.Translator.For(lang), err), false
	}
	return "", true
}

func newJobID(t time.Time) string {
	return ulid.MustNew(ulid.Timestamp(t), ulid.DefaultEntropy()).String()
}

// run executes the job under the process deadline. Every path, success or
// not, goes through cleanup before the final status edit.
func (o *Orchestrator) run(parent context.Context, j *job) {
	ctx, cancel := context.WithTimeout(parent, o.cfg.ProcessTimeout)
	defer cancel()

	j.logger.Info("job started", "url", j.url)
	err := o.execute(ctx, j)
	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) && !errors.Is(err, context.DeadlineExceeded) {
		err = fmt.Errorf("%w: %w", context.DeadlineExceeded, err)
	}

	if err != nil {
		switch j.machine.current() {
		case Downloading:
			j.machine.advance(DownloadFailed)
		case Uploading:
			j.machine.advance(UploadFailed)
		default:
			j.machine.advance(Failed)
		}
	}

	o.deps.Workspace.Cleanup(j.dir, j.mediaPath, j.thumbPath)
	j.machine.advance(CleanedUp)

	o.finish(parent, j, err)
}

func (o *Orchestrator) execute(ctx context.Context, j *job) error {
	dir, err := o.deps.Workspace.EnsureJob(j.req.UserID, j.id)
	if err != nil {
		return err
	}
	j.dir = dir

	// Download
	j.machine.advance(Downloading)
	o.edit(ctx, j.req.ChatID, j.req.MessageID, j.tr("pipeline.download_start"), nil)
	start := o.now()
	path, err := o.download(ctx, j, dir)
	j.downloadTime = o.now().Sub(start)
	recordPhase(phaseDownload, j.downloadTime.Seconds())
	if err != nil {
		return err
	}
	j.mediaPath = path
	j.machine.advance(DownloadComplete)

	// Size gate
	j.machine.advance(SizeCheck)
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}
	j.record.SizeBytes = info.Size()
	j.record.Title = titleFromPath(path)
	if o.cfg.MaxFileSize > 0 && info.Size() > o.cfg.MaxFileSize {
		return fmt.Errorf("%w: %s", ErrFileTooLarge, progress.FormatBytes(float64(o.cfg.MaxFileSize)))
	}

	// Upload
	j.machine.advance(Uploading)
	o.edit(ctx, j.req.ChatID, j.req.MessageID, j.tr("pipeline.upload_start"), nil)
	start = o.now()
	err = o.upload(ctx, j)
	j.uploadTime = o.now().Sub(start)
	recordPhase(phaseUpload, j.uploadTime.Seconds())
	if err != nil {
		return err
	}
	j.machine.advance(UploadComplete)
	return nil
}

type downloadResult struct {
	path string
	err  error
}

// download runs the engine on its own goroutine so that the job honours its
// deadline even if the engine is slow to react to cancellation.
func (o *Orchestrator) download(ctx context.Context, j *job, dir string) (string, error) {
	reporter := o.reporter(j, j.tr("pipeline.download_title"), "download")
	reporter.Start(ctx)
	defer reporter.Close()

	done := make(chan downloadResult, 1)
	go func() {
		path, err := o.deps.Engine.Download(ctx, extractor.DownloadRequest{
			URL:       j.url,
			FormatID:  j.sel.FormatID,
			Container: j.sel.Container,
			Dir:       dir,
		}, reporter.Send)
		done <- downloadResult{path: path, err: err}
	}()

	select {
	case res := <-done:
		return res.path, res.err
	case <-ctx.Done():
		// Give the engine a moment to kill yt-dlp so cleanup does not race
		// with files still being written.
		select {
		case <-done:
		case <-time.After(engineStopGrace):
			j.logger.Warn("download engine still running after cancellation")
		}
		return "", ctx.Err()
	}
}

func (o *Orchestrator) upload(ctx context.Context, j *job) error {
	delivery := o.deps.Classifier.Classify(ctx, j.mediaPath)
	j.record.Shape = delivery.Shape.String()

	custom := ""
	if o.deps.Workspace.HasThumbnail(j.req.UserID) {
		custom = o.deps.Workspace.ThumbnailPath(j.req.UserID)
	}
	thumb, generated := o.deps.Thumbnails.Resolve(ctx, custom, j.mediaPath, delivery)
	if generated {
		j.thumbPath = thumb
	}

	j.logger.Info("uploading",
		"shape", delivery.Shape.String(),
		"size", j.record.SizeBytes,
		"duration", delivery.Duration,
		"thumbnail", thumb != "",
	)

	if err := o.deps.API.SendChatAction(ctx, telegram.SendChatActionRequest{
		ChatID: j.req.ChatID,
		Action: chatAction(delivery.Shape),
	}); err != nil {
		j.logger.Debug("failed to send chat action", "error", err)
	}

	reporter := o.reporter(j, j.tr("pipeline.upload_title"), "upload")
	reporter.Start(ctx)
	defer reporter.Close()

	if err := o.send(ctx, j, delivery, thumb, reporter.UploadFunc()); err != nil {
		return fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	return nil
}

func (o *Orchestrator) send(ctx context.Context, j *job, d media.Delivery, thumb string, onProgress telegram.UploadProgressFunc) error {
	caption := telegram.TruncateText(j.record.Title, captionLimit)
	replyTo := j.req.ReplyToMessageID

	var err error
	switch d.Shape {
	case media.VideoNote:
		_, err = o.deps.API.SendVideoNote(ctx, telegram.SendVideoNoteRequest{
			ChatID:           j.req.ChatID,
			ReplyToMessageID: replyTo,
			Path:             j.mediaPath,
			Duration:         d.DurationSeconds(),
			Length:           d.Width,
			Thumbnail:        thumb,
			Progress:         onProgress,
		})
	case media.Video:
		_, err = o.deps.API.SendVideo(ctx, telegram.SendVideoRequest{
			ChatID:            j.req.ChatID,
			ReplyToMessageID:  replyTo,
			Path:              j.mediaPath,
			Caption:           caption,
			Duration:          d.DurationSeconds(),
			Width:             d.Width,
			Height:            d.Height,
			Thumbnail:         thumb,
			SupportsStreaming: true,
			Progress:          onProgress,
		})
	case media.Audio:
		_, err = o.deps.API.SendAudio(ctx, telegram.SendAudioRequest{
			ChatID:           j.req.ChatID,
			ReplyToMessageID: replyTo,
			Path:             j.mediaPath,
			Caption:          caption,
			Duration:         d.DurationSeconds(),
			Title:            j.record.Title,
			Thumbnail:        thumb,
			Progress:         onProgress,
		})
	default:
		_, err = o.deps.API.SendDocument(ctx, telegram.SendDocumentRequest{
			ChatID:           j.req.ChatID,
			ReplyToMessageID: replyTo,
			Path:             j.mediaPath,
			Caption:          caption,
			Thumbnail:        thumb,
			Progress:         onProgress,
		})
	}
	return err
}

func chatAction(s media.Shape) string {
	switch s {
	case media.Video:
		return telegram.ActionUploadVideo
	case media.Audio:
		return telegram.ActionUploadVoice
	case media.VideoNote:
		return telegram.ActionUploadVideoNote
	default:
		return telegram.ActionUploadDocument
	}
}

func (o *Orchestrator) reporter(j *job, title, kind string) *progress.Reporter {
	return progress.NewReporter(progress.ReporterConfig{
		API:       o.deps.API,
		ChatID:    j.req.ChatID,
		MessageID: j.req.MessageID,
		Title:     title,
		Translate: j.tr,
		Throttle:  progress.Throttle{Interval: o.cfg.ProgressInterval},
		Limiter:   o.deps.Limiters.Get(j.req.ChatID),
		Logger:    j.logger,
		Kind:      kind,
	})
}

// finish reports the outcome to the user and records it.
func (o *Orchestrator) finish(parent context.Context, j *job, err error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), finalEditTimeout)
	defer cancel()

	if err == nil {
		j.record.Status = storage.DeliveryDelivered
		o.edit(ctx, j.req.ChatID, j.req.MessageID,
			j.tr("pipeline.done", int(j.downloadTime.Seconds()), int(j.uploadTime.Seconds())), nil)
		recordJob(jobStatusDelivered, "")
		j.logger.Info("job delivered",
			"size", j.record.SizeBytes,
			"download_seconds", j.downloadTime.Seconds(),
			"upload_seconds", j.uploadTime.Seconds(),
		)
	} else {
		kind := FailureKind(err)
		j.record.Status = storage.DeliveryFailed
		j.record.FailureKind = kind
		o.edit(ctx, j.req.ChatID, j.req.MessageID, describe(j.tr, err), nil)
		recordJob(jobStatusFailed, kind)
		if kind == internalFailure.kind {
			j.logger.Error("job failed", "error", err)
		} else {
			j.logger.Info("job failed", "kind", kind, "error", err)
		}
	}

	if o.deps.Deliveries == nil {
		return
	}
	j.record.JobID = j.id
	j.record.DownloadSeconds = int(j.downloadTime.Seconds())
	j.record.UploadSeconds = int(j.uploadTime.Seconds())
	j.record.CreatedAt = o.now()
	if err := o.deps.Deliveries.RecordDelivery(j.record); err != nil {
		j.logger.Error("failed to record delivery", "error", err)
	}
}

// edit replaces the text of a status message. It honours the chat's edit
// limiter and a single flood-control wait; failures are logged only.
func (o *Orchestrator) edit(ctx context.Context, chatID int64, messageID int, text string, markup *telegram.InlineKeyboardMarkup) {
	req := telegram.EditMessageTextRequest{
		ChatID:                chatID,
		MessageID:             messageID,
		Text:                  telegram.TruncateText(text, telegram.MessageTextLimit),
		DisableWebPagePreview: true,
		ReplyMarkup:           markup,
	}
	limiter := o.deps.Limiters.Get(chatID)

	for attempt := 0; attempt < 2; attempt++ {
		if err := limiter.Wait(ctx); err != nil {
			return
		}
		_, err := o.deps.API.EditMessageText(ctx, req)
		if err == nil || telegram.IsMessageNotModified(err) {
			return
		}
		wait, ok := telegram.RetryAfter(err)
		if !ok || attempt > 0 {
			o.logger.Warn("failed to edit status message", "chat_id", chatID, "message_id", messageID, "error", err)
			return
		}
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return
		}
	}
}

// titleFromPath recovers the title from the "<title>.<ext>" output name.
func titleFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
