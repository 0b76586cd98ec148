package telegram

import (
	"fmt"

	"gopkg.in/tucnak/telebot.v2"

	"github.com/smallsky163/hualin-assistant/internal/app/config"
)

// NewBotAPI dials the Telegram Bot API with a long poller.
func NewBotAPI(cfg config.TelegramConfig) (*telebot.Bot, error) {
	tb, err := telebot.NewBot(telebot.Settings{
		Token:  cfg.Token,
		Poller: &telebot.LongPoller{Timeout: cfg.PollTimeout},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	return tb, nil
}

// Messenger adapts the bot connection into the one-way notification
// sender used by the fan-out engine. It shares the underlying bot with
// the interactive handlers.
type Messenger struct {
	tb *telebot.Bot
}

func NewMessenger(tb *telebot.Bot) *Messenger {
	return &Messenger{tb: tb}
}

func (m *Messenger) Notify(userID int64, text string) error {
	_, err := m.tb.Send(&telebot.User{ID: userID}, text, telebot.ModeMarkdown)
	return err
}
