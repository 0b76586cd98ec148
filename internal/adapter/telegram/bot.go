package telegram

import (
	"net/url"
	"strconv"

	"gopkg.in/tucnak/telebot.v2"

	"github.com/smallsky163/hualin-assistant/internal/app/config"
	"github.com/smallsky163/hualin-assistant/internal/domain/entity"
	"github.com/smallsky163/hualin-assistant/internal/platform/logger"
	"github.com/smallsky163/hualin-assistant/internal/repository"
	"github.com/smallsky163/hualin-assistant/internal/service"
)

// Callback data prefixes
const (
	cbEditPrice = "price:"
	cbEditDesc  = "desc:"
	cbEditLoc   = "loc:"
	cbPublish   = "pub:"
	cbSold      = "sold:"
	cbDiscard   = "del:"
	cbApprove   = "ok:"
	cbReject    = "no:"
)

const msgTransientError = "宝子，AI 大脑卡壳了，请稍后再试～"

// Bot wires the Telegram update stream to the assistant's services. All
// heavy work (generation, uploads) runs on the dispatcher; handlers only
// validate, enqueue and reply.
type Bot struct {
	tb        *telebot.Bot
	cfg       config.TelegramConfig
	gate      *service.CreditGate
	lifecycle *service.LifecycleService
	ingest    *service.IngestService
	search    *service.SearchService
	subs      repository.SubscriptionRepository
	cont      *service.ContinuationTable
	tasks     service.TaskSubmitter
	maxImage  int64
	log       logger.Logger
}

func NewBot(
	tb *telebot.Bot,
	cfg config.TelegramConfig,
	gate *service.CreditGate,
	lifecycle *service.LifecycleService,
	ingest *service.IngestService,
	search *service.SearchService,
	subs repository.SubscriptionRepository,
	cont *service.ContinuationTable,
	tasks service.TaskSubmitter,
	maxImage int64,
	log logger.Logger,
) *Bot {
	return &Bot{
		tb:        tb,
		cfg:       cfg,
		gate:      gate,
		lifecycle: lifecycle,
		ingest:    ingest,
		search:    search,
		subs:      subs,
		cont:      cont,
		tasks:     tasks,
		maxImage:  maxImage,
		log:       log,
	}
}

// Start registers all handlers and blocks polling for updates.
func (b *Bot) Start() {
	b.registerHandlers()
	b.log.Infof("telegram bot started")
	b.tb.Start()
}

func (b *Bot) Stop() {
	b.tb.Stop()
}

func (b *Bot) send(to telebot.Recipient, what interface{}, options ...interface{}) {
	if _, err := b.tb.Send(to, what, options...); err != nil {
		b.log.Warnf("failed to send telegram message: %v", err)
	}
}

func (b *Bot) storefrontLink(listingID string) string {
	return b.cfg.StorefrontURL + "?id=" + url.QueryEscape(listingID)
}

// draftKeyboard is attached to every draft preview; each button carries
// the listing id in its callback data.
func (b *Bot) draftKeyboard(listingID string) *telebot.ReplyMarkup {
	menu := &telebot.ReplyMarkup{}
	menu.InlineKeyboard = [][]telebot.InlineButton{
		{
			{Text: "💰 改价格", Data: cbEditPrice + listingID},
			{Text: "✏️ 改描述", Data: cbEditDesc + listingID},
			{Text: "📍 改地点", Data: cbEditLoc + listingID},
		},
		{
			{Text: "🚀 发布", Data: cbPublish + listingID},
			{Text: "🗑 删除", Data: cbDiscard + listingID},
		},
	}
	return menu
}

func (b *Bot) activeKeyboard(listingID string) *telebot.ReplyMarkup {
	menu := &telebot.ReplyMarkup{}
	menu.InlineKeyboard = [][]telebot.InlineButton{
		{{Text: "✅ 标记已售出", Data: cbSold + listingID}},
		{{Text: "🔗 去店铺查看", URL: b.storefrontLink(listingID)}},
	}
	return menu
}

func (b *Bot) keyboardFor(l *entity.Listing, viewerID int64) *telebot.ReplyMarkup {
	if l.OwnerID != viewerID {
		return nil
	}
	switch l.Status {
	case entity.StatusDraft:
		return b.draftKeyboard(l.ID)
	case entity.StatusActive:
		return b.activeKeyboard(l.ID)
	}
	return nil
}

// approvalKeyboard is what the operator sees next to a forwarded
// payment proof.
func approvalKeyboard(userID int64) *telebot.ReplyMarkup {
	uid := strconv.FormatInt(userID, 10)
	menu := &telebot.ReplyMarkup{}
	menu.InlineKeyboard = [][]telebot.InlineButton{
		{{Text: "💎 100 积分", Data: cbApprove + uid + ":" + service.PlanCredits100}},
		{
			{Text: "🏅 月卡会员", Data: cbApprove + uid + ":" + service.PlanVIP31},
			{Text: "👑 年卡会员", Data: cbApprove + uid + ":" + service.PlanVIP365},
		},
		{{Text: "❌ 驳回", Data: cbReject + uid}},
	}
	return menu
}

func (b *Bot) mainMenu() *telebot.ReplyMarkup {
	menu := &telebot.ReplyMarkup{}
	menu.InlineKeyboard = [][]telebot.InlineButton{
		{{Text: "🛒 逛逛小店", URL: b.cfg.StorefrontURL}},
	}
	return menu
}

// refreshPreview edits the draft preview message in place so the chat
// always shows a single, current card per listing.
func (b *Bot) refreshPreview(chatID int64, messageID int, l *entity.Listing) {
	stored := telebot.StoredMessage{
		MessageID: strconv.Itoa(messageID),
		ChatID:    chatID,
	}
	if _, err := b.tb.Edit(stored, service.RenderListing(l), b.keyboardFor(l, l.OwnerID), telebot.ModeMarkdown); err != nil {
		b.log.Warnf("failed to refresh preview for listing %s: %v", l.ID, err)
	}
}
