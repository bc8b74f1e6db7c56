package notify

import (
	"context"
	"fmt"

	"salonbook/internal/config"
	"salonbook/internal/domain"
	"salonbook/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// Notifier delivers a formatted notification to the salon staff.
type Notifier interface {
	Notify(ctx context.Context, text string) error
}

// TelegramNotifier posts notifications to the admin chat.
type TelegramNotifier struct {
	bot    domain.TelegramSender
	chatID int64
}

func NewTelegramNotifier(bot domain.TelegramSender, chatID int64) *TelegramNotifier {
	return &TelegramNotifier{bot: bot, chatID: chatID}
}

// NewTelegramBot connects to the Bot API. It returns nil, nil when no token
// is configured so callers fall back to NoopNotifier.
func NewTelegramBot(cfg config.TelegramConfig, logger *zerolog.Logger) (*tgbotapi.BotAPI, error) {
	if cfg.BotToken == "" {
		return nil, nil
	}
	bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	bot.Debug = cfg.Debug
	logger.Info().Str("account", bot.Self.UserName).Msg("Authorized on telegram account")
	return bot, nil
}

func (n *TelegramNotifier) Notify(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(n.chatID, text)
	msg.ParseMode = models.ParseModeMarkdown
	_, err := n.bot.Send(msg)
	return err
}

// NoopNotifier drops notifications, used when telegram is not configured.
type NoopNotifier struct{}

func (NoopNotifier) Notify(context.Context, string) error { return nil }
