package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/smallsky163/hualin-assistant/internal/domain/entity"
	"github.com/smallsky163/hualin-assistant/internal/platform/logger"
)

// marketingPrompt mirrors what the storefront expects: marketing copy
// for the photo, then a strict machine-readable tail line.
const marketingPrompt = `你是一个精通小红书流量密码的海外二手交易专家。
请根据图片分析商品，并输出以下结构的内容：
1. 【文案部分】：
- 包含爆款标题（带 Emoji）。
- 宝贝描述（成色、感受、转手原因）。
- 诚心价格、标签。
- 语言要亲切（如：宝子、绝绝子）。

2. 【数据部分】：
请在文案最后一行，严格按照以下格式输出（不要有任何额外字符）：
DATA:商品名|价格数字

例如：
DATA:iPhoneX|180`

const dataTailPrefix = "DATA:"

const defaultItemName = "未知商品"

// Captions containing any of these markers are treated as payment
// proofs and routed to the operator instead of the listing pipeline.
var paymentProofMarkers = []string{"付款", "充值", "转账", "payment", "top up", "topup"}

// IsPaymentProof reports whether a photo caption marks the photo as a
// payment proof rather than an item to sell.
func IsPaymentProof(caption string) bool {
	lower := strings.ToLower(caption)
	for _, marker := range paymentProofMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// GeneratedListing is the parsed generation result. Display
// always carries the user-facing copy, even when the structured tail was
// missing or malformed.
type GeneratedListing struct {
	Name       string
	Price      int64
	Negotiable bool
	Display    string
}

// ParseGenerated extracts the DATA:<name>|<price> tail from the raw
// model output and strips it from the displayed text. Absence or a
// malformed tail degrades to safe defaults; the copy itself is never
// dropped.
func ParseGenerated(text string) GeneratedListing {
	out := GeneratedListing{
		Name:       defaultItemName,
		Negotiable: true,
		Display:    strings.TrimSpace(text),
	}

	idx := strings.Index(text, dataTailPrefix)
	if idx < 0 {
		return out
	}

	if display := strings.TrimSpace(text[:idx]); display != "" {
		out.Display = display
	}

	tail := text[idx+len(dataTailPrefix):]
	if nl := strings.IndexByte(tail, '\n'); nl >= 0 {
		tail = tail[:nl]
	}

	parts := strings.SplitN(tail, "|", 2)
	if name := strings.TrimSpace(parts[0]); name != "" {
		out.Name = name
	}
	if len(parts) == 2 {
		if price, err := strconv.ParseInt(strings.TrimSpace(parts[1]), 10, 64); err == nil && price >= 0 {
			out.Price = price
			out.Negotiable = false
		}
	}
	return out
}

// PhotoSubmission is one photo-bearing chat event, already resolved to
// image bytes by the transport.
type PhotoSubmission struct {
	UserID  int64
	ChatID  int64
	Caption string
	Image   []byte
}

// IngestResult is what the transport presents back to the seller.
type IngestResult struct {
	Listing *entity.Listing
	Preview string
}

// IngestService runs the photo-to-draft pipeline inside a dispatcher
// worker: authorize, generate, parse, upload, debit, create.
type IngestService struct {
	gate        *CreditGate
	lifecycle   *LifecycleService
	gen         Generator
	photos      PhotoStorage
	listingCost int64
	log         logger.Logger
}

func NewIngestService(
	gate *CreditGate,
	lifecycle *LifecycleService,
	gen Generator,
	photos PhotoStorage,
	listingCost int64,
	log logger.Logger,
) *IngestService {
	return &IngestService{
		gate:        gate,
		lifecycle:   lifecycle,
		gen:         gen,
		photos:      photos,
		listingCost: listingCost,
		log:         log,
	}
}

// ProcessPhoto turns a photo submission into a draft listing. Credits
// are debited only after the generation succeeded, so a stalled or
// failed model call costs the user nothing. The caption, when present,
// is passed as a hint that outranks the image.
func (s *IngestService) ProcessPhoto(ctx context.Context, sub PhotoSubmission) (*IngestResult, error) {
	permit, err := s.gate.Authorize(ctx, sub.UserID, s.listingCost)
	if err != nil {
		return nil, err
	}
	if !permit.Allowed {
		return nil, entity.ErrInsufficientCredits
	}

	prompt := marketingPrompt
	if caption := strings.TrimSpace(sub.Caption); caption != "" {
		prompt += fmt.Sprintf("\n\n用户补充说明（与图片冲突时以此为准）：%s", caption)
	}

	raw, err := s.gen.Generate(ctx, sub.Image, prompt)
	if err != nil {
		return nil, fmt.Errorf("generation failed for user %d: %w", sub.UserID, err)
	}
	parsed := ParseGenerated(raw)

	photoURL, err := s.photos.Upload(ctx, sub.Image)
	if err != nil {
		// The draft is still worth keeping without a hosted photo.
		s.log.Warnf("photo upload failed for user %d: %v", sub.UserID, err)
		photoURL = ""
	}

	if !permit.VIP {
		if err := s.gate.Debit(ctx, sub.UserID, s.listingCost); err != nil {
			return nil, err
		}
	}

	listing, err := s.lifecycle.CreateDraft(ctx, DraftInput{
		OwnerID:     sub.UserID,
		Name:        parsed.Name,
		Price:       parsed.Price,
		Negotiable:  parsed.Negotiable,
		Description: parsed.Display,
		PhotoURL:    photoURL,
	})
	if err != nil {
		return nil, err
	}

	return &IngestResult{Listing: listing, Preview: RenderListing(listing)}, nil
}
