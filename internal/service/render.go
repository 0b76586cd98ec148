package service

import (
	"fmt"
	"strings"

	"github.com/smallsky163/hualin-assistant/internal/domain/entity"
)

// RenderListing projects a listing into its preview text. The structured
// price and location fields are authoritative: the generated description
// may still carry an embedded, stale price, but the header lines always
// come from the stored fields.
func RenderListing(l *entity.Listing) string {
	var b strings.Builder

	switch l.Status {
	case entity.StatusDraft:
		b.WriteString("📝 *草稿*\n\n")
	case entity.StatusActive:
		b.WriteString("🛍 *在售*\n\n")
	case entity.StatusSold:
		b.WriteString("✅ *已售出*\n\n")
	}

	fmt.Fprintf(&b, "📦 %s\n", l.Name)
	if l.Negotiable {
		b.WriteString("💰 价格: 面议\n")
	} else {
		fmt.Fprintf(&b, "💰 价格: %d 元\n", l.Price)
	}
	if l.Location != "" {
		fmt.Fprintf(&b, "📍 地点: %s\n", l.Location)
	}
	if l.Username != "" {
		fmt.Fprintf(&b, "👤 卖家: @%s\n", l.Username)
	}

	if l.Description != "" {
		b.WriteString("\n")
		b.WriteString(l.Description)
	}

	if l.Status == entity.StatusSold {
		b.WriteString("\n\n该宝贝已找到新主人～")
	}
	return b.String()
}

// RenderNotification is the message pushed to a matched subscriber.
func RenderNotification(l *entity.Listing, ownerTrust int64) string {
	var b strings.Builder
	b.WriteString("🔔 *有新宝贝上架了！*\n\n")
	fmt.Fprintf(&b, "📦 %s\n", l.Name)
	if l.Negotiable {
		b.WriteString("💰 价格: 面议\n")
	} else {
		fmt.Fprintf(&b, "💰 价格: %d 元\n", l.Price)
	}
	if l.Location != "" {
		fmt.Fprintf(&b, "📍 地点: %s\n", l.Location)
	}
	if l.Username != "" {
		fmt.Fprintf(&b, "👤 卖家: @%s (信誉 %d)\n", l.Username, ownerTrust)
	}
	return b.String()
}
