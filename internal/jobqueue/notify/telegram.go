package notify

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/trigg3rX/triggerx-jobqueue/internal/jobqueue/types"
)

type telegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramChannel posts alerts to one chat.
type TelegramChannel struct {
	api    telegramAPI
	chatID int64
}

// NewTelegramChannel authenticates the bot token with the Telegram API.
func NewTelegramChannel(token string, chatID int64) (*TelegramChannel, error) {
	if token == "" || chatID == 0 {
		return nil, fmt.Errorf("telegram bot token and chat id are required")
	}
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	return &TelegramChannel{api: bot, chatID: chatID}, nil
}

func (c *TelegramChannel) Name() string { return "telegram" }

func (c *TelegramChannel) Send(_ context.Context, a types.QueueAlert) error {
	msg := tgbotapi.NewMessage(c.chatID, FormatText(a))
	msg.DisableWebPagePreview = true
	if _, err := c.api.Send(msg); err != nil {
		return fmt.Errorf("failed to send telegram message: %w", err)
	}
	return nil
}
