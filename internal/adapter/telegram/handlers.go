package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"gopkg.in/tucnak/telebot.v2"

	"github.com/smallsky163/hualin-assistant/internal/domain/entity"
	"github.com/smallsky163/hualin-assistant/internal/service"
)

const (
	handlerTimeout = 10 * time.Second
	ingestTimeout  = 120 * time.Second

	maxSearchResults = 10
)

const welcomeText = `你好呀宝子！我是你的闲置小助手 🌟

把宝贝拍张照片发给我，AI 会自动帮你写好文案、起好价格，确认后一键上架到小店。

常用指令：
/claim - 每日签到领积分
/balance - 查询积分和信誉
/my - 我的宝贝
/search 关键词 - 搜索在售宝贝
/subscribe 关键词 - 订阅上新提醒
/unsubscribe 关键词 - 取消订阅

发送带"付款"或"充值"字样说明的截图可以申请充值哦～`

func (b *Bot) registerHandlers() {
	b.tb.Handle("/start", b.onStart)
	b.tb.Handle("/claim", b.onClaim)
	b.tb.Handle("/balance", b.onBalance)
	b.tb.Handle("/my", b.onMyListings)
	b.tb.Handle("/view", b.onView)
	b.tb.Handle("/search", b.onSearch)
	b.tb.Handle("/subscribe", b.onSubscribe)
	b.tb.Handle("/unsubscribe", b.onUnsubscribe)

	b.tb.Handle(telebot.OnPhoto, b.onPhoto)
	b.tb.Handle(telebot.OnText, b.onText)
	b.tb.Handle(telebot.OnLocation, b.onLocation)
	b.tb.Handle(telebot.OnCallback, b.onCallback)
}

func (b *Bot) onStart(m *telebot.Message) {
	b.cont.Clear(m.Chat.ID)
	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	if _, err := b.gate.EnsureProfile(ctx, m.Sender.ID, m.Sender.Username); err != nil {
		b.log.Errorf("failed to ensure profile for user %d: %v", m.Sender.ID, err)
		b.send(m.Sender, msgTransientError)
		return
	}
	b.send(m.Sender, welcomeText, b.mainMenu())
}

func (b *Bot) onClaim(m *telebot.Message) {
	b.cont.Clear(m.Chat.ID)
	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	claimed, balance, err := b.gate.ClaimDaily(ctx, m.Sender.ID)
	if err != nil {
		b.log.Errorf("daily claim failed for user %d: %v", m.Sender.ID, err)
		b.send(m.Sender, msgTransientError)
		return
	}
	if !claimed {
		b.send(m.Sender, fmt.Sprintf("今天已经签到过啦～ 当前积分：%d", balance))
		return
	}
	b.send(m.Sender, fmt.Sprintf("签到成功 🎉 当前积分：%d", balance))
}

func (b *Bot) onBalance(m *telebot.Message) {
	b.cont.Clear(m.Chat.ID)
	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	profile, err := b.gate.EnsureProfile(ctx, m.Sender.ID, m.Sender.Username)
	if err != nil {
		b.log.Errorf("failed to load profile for user %d: %v", m.Sender.ID, err)
		b.send(m.Sender, msgTransientError)
		return
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "💎 积分：%d\n⭐ 信誉：%d\n", profile.Credits, profile.Trust)
	if profile.IsVIP(time.Now()) {
		fmt.Fprintf(&sb, "👑 会员有效期至 %s", profile.VIPExpiresAt.Format("2006-01-02"))
	} else {
		sb.WriteString("普通用户（发送付款截图可开通会员）")
	}
	b.send(m.Sender, sb.String())
}

func (b *Bot) onMyListings(m *telebot.Message) {
	b.cont.Clear(m.Chat.ID)
	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	listings, err := b.lifecycle.Owned(ctx, m.Sender.ID)
	if err != nil {
		b.log.Errorf("failed to list listings for user %d: %v", m.Sender.ID, err)
		b.send(m.Sender, msgTransientError)
		return
	}
	if len(listings) == 0 {
		b.send(m.Sender, "你还没有宝贝，发张照片试试吧 📸")
		return
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "你的宝贝（%d 件）：\n\n", len(listings))
	for _, l := range listings {
		fmt.Fprintf(&sb, "%s *%s*", statusBadge(l.Status), l.Name)
		if !l.Negotiable {
			fmt.Fprintf(&sb, " - %d 元", l.Price)
		}
		fmt.Fprintf(&sb, "\n/view %s\n\n", l.ID)
	}
	b.send(m.Sender, sb.String(), telebot.ModeMarkdown)
}

func statusBadge(s entity.ListingStatus) string {
	switch s {
	case entity.StatusDraft:
		return "📝"
	case entity.StatusActive:
		return "🛍"
	case entity.StatusSold:
		return "✅"
	}
	return "❔"
}

func (b *Bot) onView(m *telebot.Message) {
	b.cont.Clear(m.Chat.ID)
	id := strings.TrimSpace(m.Payload)
	if id == "" {
		b.send(m.Sender, "用法：/view 宝贝编号")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	listing, err := b.lifecycle.View(ctx, id, m.Sender.ID)
	if err != nil {
		if errors.Is(err, entity.ErrListingNotFound) {
			b.send(m.Sender, "没有找到这个宝贝哦～")
			return
		}
		b.log.Errorf("failed to view listing %s: %v", id, err)
		b.send(m.Sender, msgTransientError)
		return
	}
	b.send(m.Sender, service.RenderListing(listing), b.keyboardFor(listing, m.Sender.ID), telebot.ModeMarkdown)
}

func (b *Bot) onSearch(m *telebot.Message) {
	b.cont.Clear(m.Chat.ID)
	query := strings.TrimSpace(m.Payload)
	if query == "" {
		b.send(m.Sender, "用法：/search 想找的东西，比如 /search 2000 以内的自行车")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), ingestTimeout)
	defer cancel()

	results, err := b.search.Search(ctx, m.Sender.ID, query)
	if err != nil {
		if errors.Is(err, entity.ErrInsufficientCredits) {
			b.send(m.Sender, "积分不足啦，/claim 签到或充值后再来搜索～")
			return
		}
		b.log.Errorf("search failed for user %d: %v", m.Sender.ID, err)
		b.send(m.Sender, msgTransientError)
		return
	}
	if len(results) == 0 {
		b.send(m.Sender, "暂时没有匹配的宝贝，可以 /subscribe 关键词 等上新提醒哦～")
		return
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "找到 %d 个宝贝：\n\n", len(results))
	for i, l := range results {
		if i == maxSearchResults {
			sb.WriteString("……还有更多，去小店逛逛吧")
			break
		}
		fmt.Fprintf(&sb, "📦 *%s*", l.Name)
		if l.Negotiable {
			sb.WriteString(" - 面议")
		} else {
			fmt.Fprintf(&sb, " - %d 元", l.Price)
		}
		if l.Location != "" {
			fmt.Fprintf(&sb, " (%s)", l.Location)
		}
		fmt.Fprintf(&sb, "\n/view %s\n\n", l.ID)
	}
	b.send(m.Sender, sb.String(), telebot.ModeMarkdown)
}

func (b *Bot) onSubscribe(m *telebot.Message) {
	b.cont.Clear(m.Chat.ID)
	keyword := strings.TrimSpace(m.Payload)
	if keyword == "" {
		b.send(m.Sender, "用法：/subscribe 关键词")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	sub := &entity.Subscription{UserID: m.Sender.ID, Keyword: keyword}
	if err := b.subs.Add(ctx, sub); err != nil {
		b.log.Errorf("failed to add subscription for user %d: %v", m.Sender.ID, err)
		b.send(m.Sender, msgTransientError)
		return
	}
	b.send(m.Sender, fmt.Sprintf("已订阅「%s」，有新宝贝上架会第一时间通知你 🔔", keyword))
}

func (b *Bot) onUnsubscribe(m *telebot.Message) {
	b.cont.Clear(m.Chat.ID)
	keyword := strings.TrimSpace(m.Payload)
	if keyword == "" {
		b.send(m.Sender, "用法：/unsubscribe 关键词")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	if err := b.subs.Remove(ctx, m.Sender.ID, keyword); err != nil {
		b.send(m.Sender, fmt.Sprintf("你没有订阅「%s」哦", keyword))
		return
	}
	b.send(m.Sender, fmt.Sprintf("已取消订阅「%s」", keyword))
}

// onPhoto is the entry of the listing pipeline. Payment proofs are
// routed to the operator instead; everything else is acknowledged
// immediately and processed on the dispatcher so polling never stalls
// behind a slow generation.
func (b *Bot) onPhoto(m *telebot.Message) {
	b.cont.Clear(m.Chat.ID)
	if m.Photo == nil {
		return
	}

	if service.IsPaymentProof(m.Caption) {
		b.handlePaymentProof(m)
		return
	}

	if b.maxImage > 0 && int64(m.Photo.FileSize) > b.maxImage {
		b.send(m.Sender, "图片太大了，换一张小一点的试试～")
		return
	}

	sender := m.Sender
	chatID := m.Chat.ID
	caption := m.Caption
	photo := *m.Photo

	b.send(sender, "收到宝贝照片 📸 AI 正在分析生成文案，请稍等...")

	submitted := b.tasks.Submit(func() {
		ctx, cancel := context.WithTimeout(context.Background(), ingestTimeout)
		defer cancel()

		image, err := b.downloadPhoto(&photo)
		if err != nil {
			b.log.Errorf("failed to download photo from user %d: %v", sender.ID, err)
			b.send(sender, msgTransientError)
			return
		}

		result, err := b.ingest.ProcessPhoto(ctx, service.PhotoSubmission{
			UserID:  sender.ID,
			ChatID:  chatID,
			Caption: caption,
			Image:   image,
		})
		if err != nil {
			if errors.Is(err, entity.ErrInsufficientCredits) {
				b.send(sender, "积分不足啦 😢 /claim 签到领积分，或发送付款截图充值～")
				return
			}
			b.log.Errorf("photo ingestion failed for user %d: %v", sender.ID, err)
			b.send(sender, msgTransientError)
			return
		}
		b.send(sender, result.Preview, b.draftKeyboard(result.Listing.ID), telebot.ModeMarkdown)
	})
	if !submitted {
		b.send(sender, msgTransientError)
	}
}

func (b *Bot) downloadPhoto(photo *telebot.Photo) ([]byte, error) {
	rc, err := b.tb.GetFile(&photo.File)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch file %s: %w", photo.FileID, err)
	}
	defer rc.Close()

	limit := b.maxImage
	if limit <= 0 {
		limit = 4 << 20
	}
	data, err := io.ReadAll(io.LimitReader(rc, limit+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", photo.FileID, err)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("file %s exceeds %d bytes", photo.FileID, limit)
	}
	return data, nil
}

func (b *Bot) handlePaymentProof(m *telebot.Message) {
	admin := &telebot.User{ID: b.cfg.AdminID}
	if _, err := b.tb.Forward(admin, m); err != nil {
		b.log.Errorf("failed to forward payment proof from user %d: %v", m.Sender.ID, err)
		b.send(m.Sender, msgTransientError)
		return
	}

	note := fmt.Sprintf("用户 %d (@%s) 申请充值，请选择方案：", m.Sender.ID, m.Sender.Username)
	b.send(admin, note, approvalKeyboard(m.Sender.ID))
	b.send(m.Sender, "收到支付凭证 🧾 已转交管理员审核，通过后会通知你～")
}

// onText resolves a pending edit continuation if one is installed for
// the chat; otherwise non-command text just gets the main menu.
func (b *Bot) onText(m *telebot.Message) {
	pe, ok := b.cont.Take(m.Chat.ID)
	if !ok {
		if !strings.HasPrefix(m.Text, "/") {
			b.send(m.Sender, welcomeText, b.mainMenu())
		}
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	var (
		listing *entity.Listing
		err     error
	)
	switch pe.Kind {
	case service.AwaitPrice:
		listing, err = b.lifecycle.EditPrice(ctx, pe.ListingID, m.Sender.ID, m.Text)
		if errors.Is(err, entity.ErrInvalidPrice) {
			b.cont.Set(m.Chat.ID, pe)
			b.send(m.Sender, "价格要是一个非负整数哦，再试一次～")
			return
		}
	case service.AwaitDescription:
		listing, err = b.lifecycle.EditDescription(ctx, pe.ListingID, m.Sender.ID, m.Text)
		if errors.Is(err, entity.ErrDescriptionTooShort) {
			b.cont.Set(m.Chat.ID, pe)
			b.send(m.Sender, "描述太短啦，至少写 5 个字～")
			return
		}
	case service.AwaitLocation:
		listing, err = b.lifecycle.EditLocation(ctx, pe.ListingID, m.Sender.ID, m.Text)
		if errors.Is(err, entity.ErrEmptyLocation) {
			b.cont.Set(m.Chat.ID, pe)
			b.send(m.Sender, "地点不能为空哦，再发一次～")
			return
		}
	default:
		return
	}

	if err != nil {
		b.replyEditError(m.Sender, pe.ListingID, err)
		return
	}

	b.refreshPreview(m.Chat.ID, pe.MessageID, listing)
	b.send(m.Sender, "更新好啦 ✅")
}

// onLocation handles a shared map pin while a location edit is pending:
// the coordinates are resolved to a place name first.
func (b *Bot) onLocation(m *telebot.Message) {
	pe, ok := b.cont.Take(m.Chat.ID)
	if !ok || pe.Kind != service.AwaitLocation {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), ingestTimeout)
	defer cancel()

	place, err := b.lifecycle.ResolvePlace(ctx, m.Location.Lat, m.Location.Lng)
	if err != nil {
		b.log.Warnf("place resolution failed for user %d: %v", m.Sender.ID, err)
		b.cont.Set(m.Chat.ID, pe)
		b.send(m.Sender, "定位解析失败了，直接发文字地点也可以～")
		return
	}

	listing, err := b.lifecycle.EditLocation(ctx, pe.ListingID, m.Sender.ID, place)
	if err != nil {
		b.replyEditError(m.Sender, pe.ListingID, err)
		return
	}
	b.refreshPreview(m.Chat.ID, pe.MessageID, listing)
	b.send(m.Sender, fmt.Sprintf("地点已更新为「%s」✅", place))
}

func (b *Bot) replyEditError(to telebot.Recipient, listingID string, err error) {
	switch {
	case errors.Is(err, entity.ErrListingNotFound):
		b.send(to, "这个宝贝已经不存在了哦～")
	case errors.Is(err, entity.ErrForbidden):
		b.send(to, "这不是你的宝贝哦～")
	case errors.Is(err, entity.ErrInvalidTransition):
		b.send(to, "宝贝已上架，不能再修改啦～")
	default:
		b.log.Errorf("edit failed for listing %s: %v", listingID, err)
		b.send(to, msgTransientError)
	}
}

func (b *Bot) onCallback(c *telebot.Callback) {
	// Callbacks from inline-mode results carry no message; every action
	// here anchors to the message the buttons live on.
	if c.Message == nil {
		b.log.Warnf("callback without message from user %d, ignoring", c.Sender.ID)
		return
	}

	data := strings.TrimSpace(c.Data)
	switch {
	case strings.HasPrefix(data, cbEditPrice):
		b.installEdit(c, service.AwaitPrice, strings.TrimPrefix(data, cbEditPrice), "发送新的价格（整数，单位：元）")
	case strings.HasPrefix(data, cbEditDesc):
		b.installEdit(c, service.AwaitDescription, strings.TrimPrefix(data, cbEditDesc), "发送新的描述（至少 5 个字）")
	case strings.HasPrefix(data, cbEditLoc):
		b.installEdit(c, service.AwaitLocation, strings.TrimPrefix(data, cbEditLoc), "发送文字地点，或直接分享一个位置 📍")
	case strings.HasPrefix(data, cbPublish):
		b.handlePublish(c, strings.TrimPrefix(data, cbPublish))
	case strings.HasPrefix(data, cbSold):
		b.handleSold(c, strings.TrimPrefix(data, cbSold))
	case strings.HasPrefix(data, cbDiscard):
		b.handleDiscard(c, strings.TrimPrefix(data, cbDiscard))
	case strings.HasPrefix(data, cbApprove):
		b.handleApproval(c, strings.TrimPrefix(data, cbApprove))
	case strings.HasPrefix(data, cbReject):
		b.handleRejection(c, strings.TrimPrefix(data, cbReject))
	default:
		b.respond(c, "")
	}
}

func (b *Bot) respond(c *telebot.Callback, text string) {
	if err := b.tb.Respond(c, &telebot.CallbackResponse{Text: text}); err != nil {
		b.log.Warnf("failed to respond to callback: %v", err)
	}
}

func (b *Bot) respondAlert(c *telebot.Callback, text string) {
	if err := b.tb.Respond(c, &telebot.CallbackResponse{Text: text, ShowAlert: true}); err != nil {
		b.log.Warnf("failed to respond to callback: %v", err)
	}
}

func (b *Bot) installEdit(c *telebot.Callback, kind service.AwaitKind, listingID, prompt string) {
	b.cont.Set(c.Message.Chat.ID, service.PendingEdit{
		Kind:      kind,
		ListingID: listingID,
		MessageID: c.Message.ID,
	})
	b.respond(c, "")
	b.send(c.Sender, prompt)
}

func (b *Bot) handlePublish(c *telebot.Callback, listingID string) {
	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	listing, err := b.lifecycle.Publish(ctx, listingID, c.Sender.ID, c.Sender.Username)
	if err != nil {
		switch {
		case errors.Is(err, entity.ErrNoPublicHandle):
			b.respondAlert(c, "请先在 Telegram 设置里配置公开用户名，买家才能联系到你哦～")
		case errors.Is(err, entity.ErrInvalidTransition):
			b.respondAlert(c, "这个宝贝不能发布了～")
		case errors.Is(err, entity.ErrListingNotFound), errors.Is(err, entity.ErrForbidden):
			b.respondAlert(c, "宝贝不存在或不属于你～")
		default:
			b.log.Errorf("publish failed for listing %s: %v", listingID, err)
			b.respondAlert(c, msgTransientError)
		}
		return
	}

	if _, err := b.tb.Edit(c.Message, service.RenderListing(listing), b.activeKeyboard(listing.ID), telebot.ModeMarkdown); err != nil {
		b.log.Warnf("failed to refresh published listing %s: %v", listingID, err)
	}
	b.respond(c, "发布成功 🎉")
}

func (b *Bot) handleSold(c *telebot.Callback, listingID string) {
	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	listing, err := b.lifecycle.MarkSold(ctx, listingID, c.Sender.ID)
	if err != nil {
		switch {
		case errors.Is(err, entity.ErrInvalidTransition):
			b.respondAlert(c, "只有在售的宝贝才能标记售出哦～")
		case errors.Is(err, entity.ErrListingNotFound), errors.Is(err, entity.ErrForbidden):
			b.respondAlert(c, "宝贝不存在或不属于你～")
		default:
			b.log.Errorf("mark sold failed for listing %s: %v", listingID, err)
			b.respondAlert(c, msgTransientError)
		}
		return
	}

	if _, err := b.tb.Edit(c.Message, service.RenderListing(listing), telebot.ModeMarkdown); err != nil {
		b.log.Warnf("failed to refresh sold listing %s: %v", listingID, err)
	}
	b.respond(c, "恭喜出手 🎉 信誉 +10")
}

func (b *Bot) handleDiscard(c *telebot.Callback, listingID string) {
	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	if err := b.lifecycle.Discard(ctx, listingID, c.Sender.ID); err != nil {
		switch {
		case errors.Is(err, entity.ErrInvalidTransition):
			b.respondAlert(c, "已上架的宝贝不能删除哦～")
		case errors.Is(err, entity.ErrListingNotFound), errors.Is(err, entity.ErrForbidden):
			b.respondAlert(c, "宝贝不存在或不属于你～")
		default:
			b.log.Errorf("discard failed for listing %s: %v", listingID, err)
			b.respondAlert(c, msgTransientError)
		}
		return
	}

	if _, err := b.tb.Edit(c.Message, "🗑 草稿已删除"); err != nil {
		b.log.Warnf("failed to refresh discarded listing %s: %v", listingID, err)
	}
	b.respond(c, "已删除")
}

// handleApproval applies an operator-approved top-up plan. Only the
// configured admin can press these buttons.
func (b *Bot) handleApproval(c *telebot.Callback, payload string) {
	if c.Sender.ID != b.cfg.AdminID {
		b.respondAlert(c, "无权操作")
		return
	}

	parts := strings.SplitN(payload, ":", 2)
	if len(parts) != 2 {
		b.respondAlert(c, "无效的审批数据")
		return
	}
	userID, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		b.respondAlert(c, "无效的用户编号")
		return
	}
	plan := parts[1]

	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	if err := b.gate.ApplyTopUp(ctx, userID, plan); err != nil {
		b.log.Errorf("top-up %s failed for user %d: %v", plan, userID, err)
		b.respondAlert(c, "充值失败："+err.Error())
		return
	}

	if _, err := b.tb.Edit(c.Message, fmt.Sprintf("✅ 已为用户 %d 开通 %s", userID, planLabel(plan))); err != nil {
		b.log.Warnf("failed to update approval message: %v", err)
	}
	b.respond(c, "已处理")
	b.send(&telebot.User{ID: userID}, fmt.Sprintf("充值到账啦 🎉 %s 已生效，感谢支持～", planLabel(plan)))
}

func (b *Bot) handleRejection(c *telebot.Callback, payload string) {
	if c.Sender.ID != b.cfg.AdminID {
		b.respondAlert(c, "无权操作")
		return
	}

	userID, err := strconv.ParseInt(strings.TrimSpace(payload), 10, 64)
	if err != nil {
		b.respondAlert(c, "无效的用户编号")
		return
	}

	if _, err := b.tb.Edit(c.Message, fmt.Sprintf("❌ 已驳回用户 %d 的充值申请", userID)); err != nil {
		b.log.Warnf("failed to update rejection message: %v", err)
	}
	b.respond(c, "已驳回")
	b.send(&telebot.User{ID: userID}, "你的充值申请未通过审核，如有疑问请联系管理员～")
}

func planLabel(plan string) string {
	switch plan {
	case service.PlanCredits100:
		return "100 积分"
	case service.PlanVIP31:
		return "月卡会员"
	case service.PlanVIP365:
		return "年卡会员"
	}
	return plan
}
