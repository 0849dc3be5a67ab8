package bot

import (
	"context"
	"log/slog"
	"regexp"
	"strings"

	"github.com/runixer/grabber/internal/files"
	"github.com/runixer/grabber/internal/pipeline"
	"github.com/runixer/grabber/internal/telegram"
	"github.com/runixer/grabber/internal/token"
)

// linkPattern accepts one http(s) URL as the whole message text.
var linkPattern = regexp.MustCompile(`^(http|https)://[^\s/$.?#].[^\s]*$`)

// IsLink reports whether text is a link the bot will process.
func IsLink(text string) bool {
	return linkPattern.MatchString(strings.TrimSpace(text))
}

func (b *Bot) handleMessage(ctx context.Context, update *telegram.Update, source string) {
	msg := update.Message
	if msg.From == nil || msg.Chat == nil {
		return
	}
	// Только личные чаты: в группах бот молчит.
	if !msg.IsPrivate() {
		return
	}

	user := msg.From
	logger := b.logger.With(
		"update_id", update.UpdateID,
		"user_id", user.ID,
		"username", user.Username,
		"source", source,
	)
	logger.Debug("Received message")

	b.rememberUser(user, logger)

	lang := b.languageOf(user)
	tr := b.translator.For(lang)

	if !b.isAllowed(user.ID) {
		logger.Warn("Unauthorized access")
		recordUnauthorized()
		b.reply(ctx, msg, tr("bot.not_allowed"), logger)
		return
	}

	if cmd, ok := parseCommand(msg.Text); ok {
		b.handleCommand(ctx, msg, cmd, lang, logger)
		return
	}

	if files.HasImage(msg) {
		b.handleThumbnail(ctx, msg, lang, logger)
		return
	}

	text := strings.TrimSpace(msg.Text)
	if !IsLink(text) {
		return
	}

	logger.Info("link received", "url", text)
	if err := b.pipeline.ShowMenu(ctx, pipeline.MenuRequest{
		ChatID:    msg.Chat.ID,
		MessageID: msg.MessageID,
		UserID:    user.ID,
		URL:       text,
		Lang:      lang,
	}); err != nil {
		logger.Error("failed to show quality menu", "error", err)
	}
}

func (b *Bot) handleCallback(ctx context.Context, update *telegram.Update, source string) {
	cb := update.CallbackQuery
	if cb.From == nil {
		return
	}
	logger := b.logger.With(
		"update_id", update.UpdateID,
		"user_id", cb.From.ID,
		"source", source,
	)

	lang := b.languageOf(cb.From)
	tr := b.translator.For(lang)

	if !b.isAllowed(cb.From.ID) {
		logger.Warn("Unauthorized callback")
		recordUnauthorized()
		b.answer(ctx, cb.ID, tr("bot.not_allowed"), logger)
		return
	}

	if !token.HasPrefix(cb.Data) || cb.Message == nil || cb.Message.Chat == nil {
		b.answer(ctx, cb.ID, tr("bot.unknown_callback"), logger)
		return
	}

	text, ok := b.pipeline.Precheck(cb.Data, lang)
	if ok {
		text = tr("pipeline.selection_accepted")
	}
	b.answer(ctx, cb.ID, text, logger)

	req := pipeline.SelectionRequest{
		ChatID:    cb.Message.Chat.ID,
		MessageID: cb.Message.MessageID,
		UserID:    cb.From.ID,
		Data:      cb.Data,
		Lang:      lang,
	}
	if cb.Message.ReplyToMessage != nil {
		req.ReplyToMessageID = cb.Message.ReplyToMessage.MessageID
	}

	if err := b.pipeline.HandleSelection(ctx, req); err != nil {
		logger.Error("failed to handle selection", "error", err)
	}
}

func (b *Bot) answer(ctx context.Context, callbackID, text string, logger *slog.Logger) {
	if err := b.api.AnswerCallbackQuery(ctx, telegram.AnswerCallbackQueryRequest{
		CallbackQueryID: callbackID,
		Text:            text,
	}); err != nil {
		logger.Warn("failed to answer callback query", "error", err)
	}
}

// handleThumbnail stores the image as the user's custom thumbnail.
func (b *Bot) handleThumbnail(ctx context.Context, msg *telegram.Message, lang string, logger *slog.Logger) {
	tr := b.translator.For(lang)
	userID := msg.From.ID

	if _, err := b.workspace.Ensure(userID); err != nil {
		logger.Error("failed to prepare user directory", "error", err)
		b.reply(ctx, msg, tr("bot.thumbnail_failed"), logger)
		return
	}

	saved, err := b.files.SaveImage(ctx, msg, b.workspace.ThumbnailPath(userID))
	if err != nil {
		logger.Error("failed to save thumbnail", "error", err)
		b.reply(ctx, msg, tr("bot.thumbnail_failed"), logger)
		return
	}

	logger.Info("custom thumbnail saved", "file_type", saved.FileType, "size", saved.Size)
	b.reply(ctx, msg, tr("bot.thumbnail_saved"), logger)
}
