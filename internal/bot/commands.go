package bot

import (
	"context"
	"log/slog"
	"strings"

	"github.com/runixer/grabber/internal/progress"
	"github.com/runixer/grabber/internal/storage"
	"github.com/runixer/grabber/internal/telegram"
)

// Supported commands.
const (
	cmdStart    = "start"
	cmdHelp     = "help"
	cmdThumb    = "thumb"
	cmdDelThumb = "delthumb"
	cmdStats    = "stats"
)

// recentDeliveries is how many past jobs /stats lists.
const recentDeliveries = 5

var menuCommands = []string{cmdStart, cmdHelp, cmdThumb, cmdDelThumb, cmdStats}

func (b *Bot) commandList(lang string) []telegram.BotCommand {
	commands := make([]telegram.BotCommand, 0, len(menuCommands))
	for _, c := range menuCommands {
		commands = append(commands, telegram.BotCommand{
			Command:     c,
			Description: b.translator.Get(lang, "commands."+c),
		})
	}
	return commands
}

// parseCommand extracts the command name from "/name@bot args".
func parseCommand(text string) (string, bool) {
	if !strings.HasPrefix(text, "/") {
		return "", false
	}
	name := strings.Fields(text[1:])
	if len(name) == 0 {
		return "", false
	}
	cmd, _, _ := strings.Cut(name[0], "@")
	return strings.ToLower(cmd), cmd != ""
}

func (b *Bot) handleCommand(ctx context.Context, msg *telegram.Message, cmd, lang string, logger *slog.Logger) {
	tr := b.translator.For(lang)
	userID := msg.From.ID
	recordCommand(cmd)

	switch cmd {
	case cmdStart:
		b.reply(ctx, msg, tr("bot.start", msg.From.FirstName), logger)
	case cmdHelp:
		b.reply(ctx, msg, tr("bot.help"), logger)
	case cmdThumb:
		if b.workspace.HasThumbnail(userID) {
			b.reply(ctx, msg, tr("bot.thumbnail_set"), logger)
		} else {
			b.reply(ctx, msg, tr("bot.thumbnail_none"), logger)
		}
	case cmdDelThumb:
		deleted, err := b.workspace.DeleteThumbnail(userID)
		switch {
		case err != nil:
			logger.Error("failed to delete thumbnail", "error", err)
			b.reply(ctx, msg, tr("errors.internal"), logger)
		case deleted:
			b.reply(ctx, msg, tr("bot.thumbnail_deleted"), logger)
		default:
			b.reply(ctx, msg, tr("bot.thumbnail_none"), logger)
		}
	case cmdStats:
		b.handleStats(ctx, msg, lang, logger)
	default:
		b.reply(ctx, msg, tr("bot.help"), logger)
	}
}

func (b *Bot) handleStats(ctx context.Context, msg *telegram.Message, lang string, logger *slog.Logger) {
	tr := b.translator.For(lang)
	stats, err := b.statsRepo.GetUserStats(msg.From.ID)
	if err != nil {
		logger.Error("failed to load user stats", "error", err)
		b.reply(ctx, msg, tr("bot.stats_failed"), logger)
		return
	}
	if stats.Delivered == 0 && stats.Failed == 0 {
		b.reply(ctx, msg, tr("bot.stats_empty"), logger)
		return
	}

	size := progress.FormatBytes(float64(stats.TotalBytes))
	if size == "" {
		size = "0 B"
	}
	text := tr("bot.stats", stats.Delivered, size, stats.Failed)

	recent, err := b.statsRepo.GetRecentDeliveries(msg.From.ID, recentDeliveries)
	if err != nil {
		logger.Warn("failed to load recent deliveries", "error", err)
	}
	if len(recent) > 0 {
		lines := []string{tr("bot.stats_recent")}
		for _, d := range recent {
			lines = append(lines, recentLine(tr, d))
		}
		text += "\n\n" + strings.Join(lines, "\n")
	}
	b.reply(ctx, msg, text, logger)
}

func recentLine(tr func(string, ...interface{}) string, d storage.Delivery) string {
	title := d.Title
	if title == "" {
		title = d.URL
	}
	if d.Status != storage.DeliveryDelivered {
		return tr("bot.stats_recent_failed", title)
	}
	size := progress.FormatBytes(float64(d.SizeBytes))
	if size == "" {
		size = "0 B"
	}
	return tr("bot.stats_recent_delivered", title, size)
}
