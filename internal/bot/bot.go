package bot

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/runixer/grabber/internal/config"
	"github.com/runixer/grabber/internal/files"
	"github.com/runixer/grabber/internal/i18n"
	"github.com/runixer/grabber/internal/pipeline"
	"github.com/runixer/grabber/internal/storage"
	"github.com/runixer/grabber/internal/telegram"
	"github.com/runixer/grabber/internal/workspace"
)

// Pipeline runs link and selection requests.
type Pipeline interface {
	ShowMenu(ctx context.Context, req pipeline.MenuRequest) error
	HandleSelection(ctx context.Context, req pipeline.SelectionRequest) error
	Precheck(data, lang string) (string, bool)
}

type Bot struct {
	api        telegram.BotAPI
	cfg        *config.Config
	userRepo   storage.UserRepository
	statsRepo  storage.DeliveryRepository
	pipeline   Pipeline
	workspace  *workspace.Workspace
	files      *files.Processor
	logger     *slog.Logger
	translator *i18n.Translator
	wg         sync.WaitGroup
}

func NewBot(logger *slog.Logger, api telegram.BotAPI, cfg *config.Config, userRepo storage.UserRepository, statsRepo storage.DeliveryRepository, p Pipeline, ws *workspace.Workspace, fileProcessor *files.Processor, translator *i18n.Translator) (*Bot, error) {
	b := &Bot{
		api:        api,
		cfg:        cfg,
		userRepo:   userRepo,
		statsRepo:  statsRepo,
		pipeline:   p,
		workspace:  ws,
		files:      fileProcessor,
		logger:     logger.With("component", "bot"),
		translator: translator,
	}

	if err := b.setCommands(context.Background()); err != nil {
		// Команды в меню клиента не критичны для работы бота.
		b.logger.Warn("failed to set bot commands", "error", err)
	}

	return b, nil
}

// setCommands publishes the command menu once per locale, plus the default
// list for clients whose language has no locale.
func (b *Bot) setCommands(ctx context.Context) error {
	if err := b.api.SetMyCommands(ctx, telegram.SetMyCommandsRequest{
		Commands: b.commandList(b.cfg.Bot.Language),
	}); err != nil {
		return err
	}
	for _, lang := range b.translator.Languages() {
		if err := b.api.SetMyCommands(ctx, telegram.SetMyCommandsRequest{
			Commands:     b.commandList(lang),
			LanguageCode: lang,
		}); err != nil {
			return err
		}
	}
	return nil
}

func (b *Bot) API() telegram.BotAPI {
	return b.api
}

func (b *Bot) SetWebhook(webhookURL, secretToken string) error {
	req := telegram.SetWebhookRequest{
		URL:            webhookURL,
		SecretToken:    secretToken,
		AllowedUpdates: AllowedUpdates,
	}
	return b.api.SetWebhook(context.Background(), req)
}

// AllowedUpdates lists the update kinds the bot handles.
var AllowedUpdates = []string{"message", "callback_query"}

// Stop waits for in-flight handlers, including running downloads.
func (b *Bot) Stop() {
	b.logger.Info("Waiting for active bot handlers to finish...")
	b.wg.Wait()
	b.logger.Info("Bot stopped.")
}

func (b *Bot) HandleUpdate(ctx context.Context, rawUpdate json.RawMessage, remoteAddr string) {
	var update telegram.Update
	if err := json.Unmarshal(rawUpdate, &update); err != nil {
		b.logger.Error("failed to unmarshal update", "error", err, "remote_addr", remoteAddr)
		return
	}
	b.ProcessUpdate(ctx, &update, remoteAddr)
}

// HandleUpdateAsync starts processing a raw update in a goroutine.
// It properly handles WaitGroup to ensure graceful shutdown.
// Used by webhook handler.
func (b *Bot) HandleUpdateAsync(ctx context.Context, rawUpdate json.RawMessage, remoteAddr string) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.HandleUpdate(ctx, rawUpdate, remoteAddr)
	}()
}

// ProcessUpdateAsync starts processing an update in a goroutine.
// It properly handles WaitGroup to ensure graceful shutdown.
func (b *Bot) ProcessUpdateAsync(ctx context.Context, update *telegram.Update, source string) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.ProcessUpdate(ctx, update, source)
	}()
}

// ProcessUpdate handles one update synchronously. Requests that were
// accepted finish even when ctx is cancelled by shutdown.
func (b *Bot) ProcessUpdate(ctx context.Context, update *telegram.Update, source string) {
	start := time.Now()
	ctx = context.WithoutCancel(ctx)

	switch {
	case update.Message != nil:
		b.handleMessage(ctx, update, source)
		recordUpdate(updateTypeMessage, time.Since(start).Seconds())
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update, source)
		recordUpdate(updateTypeCallback, time.Since(start).Seconds())
	default:
		recordUpdate(updateTypeOther, time.Since(start).Seconds())
	}
}

// isAllowed checks the optional allow-list. An empty list admits everyone.
func (b *Bot) isAllowed(userID int64) bool {
	if len(b.cfg.Bot.AllowedUserIDs) == 0 {
		return true
	}
	for _, id := range b.cfg.Bot.AllowedUserIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// languageOf picks the locale for a user.
func (b *Bot) languageOf(user *telegram.User) string {
	if user == nil {
		return b.translator.Match("")
	}
	return b.translator.Match(user.LanguageCode)
}

func (b *Bot) rememberUser(user *telegram.User, logger *slog.Logger) {
	if b.userRepo == nil {
		return
	}
	if err := b.userRepo.UpsertUser(storage.User{
		ID:           user.ID,
		Username:     user.Username,
		FirstName:    user.FirstName,
		LastName:     user.LastName,
		LanguageCode: user.LanguageCode,
		LastSeen:     time.Now(),
	}); err != nil {
		logger.Error("failed to upsert user", "error", err)
	}
}

func (b *Bot) reply(ctx context.Context, msg *telegram.Message, text string, logger *slog.Logger) {
	if _, err := b.api.SendMessage(ctx, telegram.SendMessageRequest{
		ChatID:                msg.Chat.ID,
		Text:                  telegram.TruncateText(text, telegram.MessageTextLimit),
		ReplyToMessageID:      msg.MessageID,
		DisableWebPagePreview: true,
	}); err != nil {
		logger.Error("failed to send message", "error", err)
	}
}
