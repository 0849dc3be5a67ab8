package progress

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/runixer/grabber/internal/telegram"
)

// DefaultQueueSize bounds the number of samples waiting for the consumer.
const DefaultQueueSize = 16

// Editor is the subset of the Bot API used to update a status message.
type Editor interface {
	EditMessageText(ctx context.Context, req telegram.EditMessageTextRequest) (*telegram.Message, error)
}

// ReporterConfig configures a Reporter.
type ReporterConfig struct {
	API       Editor
	ChatID    int64
	MessageID int
	Title     string
	Translate Translate
	Throttle  Throttle
	Limiter   *rate.Limiter // nil means unlimited
	QueueSize int
	Logger    *slog.Logger
	Kind      string // metrics label: "download" or "upload"

	// Now and Sleep are overridable for tests.
	Now   func() time.Time
	Sleep func(ctx context.Context, d time.Duration) error
}

// Reporter receives samples from a transfer callback and edits one status
// message from a single consumer goroutine. Producers never block on
// Telegram: intermediate samples are dropped when the queue is full,
// completion samples are always delivered while the reporter is open.
type Reporter struct {
	cfg     ReporterConfig
	start   time.Time
	samples chan Sample
	done    chan struct{}

	mu     sync.RWMutex
	closed bool

	lastText string
}

// NewReporter creates a reporter. Call Start before sending samples.
func NewReporter(cfg ReporterConfig) *Reporter {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Sleep == nil {
		cfg.Sleep = sleepContext
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Kind == "" {
		cfg.Kind = "download"
	}
	return &Reporter{
		cfg:     cfg,
		samples: make(chan Sample, cfg.QueueSize),
		done:    make(chan struct{}),
	}
}

// Start records the transfer start time and launches the consumer.
func (r *Reporter) Start(ctx context.Context) {
	r.start = r.cfg.Now()
	go func() {
		defer close(r.done)
		for s := range r.samples {
			r.handle(ctx, s)
		}
	}()
}

// Send queues a sample. Safe to call from any goroutine, including after Close.
func (r *Reporter) Send(s Sample) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return
	}

	if s.Complete() {
		select {
		case r.samples <- s:
		case <-r.done:
		}
		return
	}

	select {
	case r.samples <- s:
	default:
		recordDroppedSample(r.cfg.Kind)
	}
}

// UploadFunc adapts the reporter to the multipart upload callback.
func (r *Reporter) UploadFunc() telegram.UploadProgressFunc {
	return func(sent, total int64) {
		r.Send(Sample{Transferred: sent, Total: total})
	}
}

// Close stops accepting samples and waits until queued ones are handled.
func (r *Reporter) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		<-r.done
		return
	}
	r.closed = true
	close(r.samples)
	r.mu.Unlock()
	<-r.done
}

func (r *Reporter) handle(ctx context.Context, s Sample) {
	elapsed := r.cfg.Now().Sub(r.start)
	if !r.cfg.Throttle.ShouldEmit(elapsed, s) {
		return
	}

	text := telegram.TruncateText(Render(r.cfg.Translate, r.cfg.Title, elapsed, s), telegram.MessageTextLimit)
	if text == r.lastText {
		recordEdit(r.cfg.Kind, editResultNotModified)
		return
	}

	if r.cfg.Limiter != nil {
		if err := r.cfg.Limiter.Wait(ctx); err != nil {
			return
		}
	}

	req := telegram.EditMessageTextRequest{
		ChatID:                r.cfg.ChatID,
		MessageID:             r.cfg.MessageID,
		Text:                  text,
		DisableWebPagePreview: true,
	}

	for {
		_, err := r.cfg.API.EditMessageText(ctx, req)
		switch {
		case err == nil:
			r.lastText = text
			recordEdit(r.cfg.Kind, editResultSent)
			return
		case telegram.IsMessageNotModified(err):
			r.lastText = text
			recordEdit(r.cfg.Kind, editResultNotModified)
			return
		}

		if wait, ok := telegram.RetryAfter(err); ok {
			recordEdit(r.cfg.Kind, editResultRateLimited)
			r.cfg.Logger.Debug("progress edit rate limited", "retry_after", wait)
			if err := r.cfg.Sleep(ctx, wait); err != nil {
				return
			}
			continue
		}

		recordEdit(r.cfg.Kind, editResultError)
		r.cfg.Logger.Warn("failed to edit progress message", "error", err)
		return
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
