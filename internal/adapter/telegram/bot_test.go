package telegram

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gopkg.in/tucnak/telebot.v2"

	"github.com/smallsky163/hualin-assistant/internal/app/config"
	"github.com/smallsky163/hualin-assistant/internal/platform/logger"
	"github.com/smallsky163/hualin-assistant/internal/service"
)

func TestOnCallback_IgnoresMessagelessCallbacks(t *testing.T) {
	cont := service.NewContinuationTable()
	b := NewBot(nil, config.TelegramConfig{}, nil, nil, nil, nil, nil, cont, nil, 0, logger.NoOp{})

	for _, data := range []string{"price:l1", "desc:l1", "loc:l1", "pub:l1", "sold:l1", "del:l1", "ok:1:credits100", "no:1"} {
		assert.NotPanics(t, func() {
			b.onCallback(&telebot.Callback{Data: data, Sender: &telebot.User{ID: 1}})
		}, "callback data %q", data)
	}

	// No continuation may be installed off a callback that has no
	// message to anchor the edit to.
	_, ok := cont.Take(0)
	assert.False(t, ok)
}
