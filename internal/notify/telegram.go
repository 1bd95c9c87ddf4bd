package notify

import (
	"context"
	"errors"
	"fmt"

	"cabo/internal/domain"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// NewBot connects to the Bot API; it performs a getMe call.
func NewBot(token string) (*tgbotapi.BotAPI, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	return bot, nil
}

// TelegramNotifier sends plain-text alerts to the managers' chats.
type TelegramNotifier struct {
	bot     domain.TelegramSender
	chatIDs []int64
}

func NewTelegramNotifier(bot domain.TelegramSender, chatIDs []int64) *TelegramNotifier {
	return &TelegramNotifier{bot: bot, chatIDs: chatIDs}
}

func (n *TelegramNotifier) Notify(ctx context.Context, text string) error {
	var errs []error
	for _, id := range n.chatIDs {
		if err := ctx.Err(); err != nil {
			return err
		}
		msg := tgbotapi.NewMessage(id, text)
		msg.DisableWebPagePreview = true
		if _, err := n.bot.Send(msg); err != nil {
			errs = append(errs, fmt.Errorf("chat %d: %w", id, err))
		}
	}
	return errors.Join(errs...)
}
