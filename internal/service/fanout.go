package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/smallsky163/hualin-assistant/internal/domain/entity"
	"github.com/smallsky163/hualin-assistant/internal/platform/logger"
	"github.com/smallsky163/hualin-assistant/internal/repository"
)

// FanoutEngine matches a just-activated listing against every keyword
// subscription and pushes one notification per matched subscriber. The
// seller is never notified about their own listing, and a subscriber
// with several matching keywords still receives a single message.
type FanoutEngine struct {
	listings repository.ListingRepository
	subs     repository.SubscriptionRepository
	profiles repository.ProfileRepository
	notifier Notifier
	log      logger.Logger
}

func NewFanoutEngine(
	listings repository.ListingRepository,
	subs repository.SubscriptionRepository,
	profiles repository.ProfileRepository,
	notifier Notifier,
	log logger.Logger,
) *FanoutEngine {
	return &FanoutEngine{
		listings: listings,
		subs:     subs,
		profiles: profiles,
		notifier: notifier,
		log:      log,
	}
}

// Fanout delivers best-effort: a subscriber that cannot be reached is
// logged and skipped, never aborting delivery to the rest. There is no
// retry and no durable queue. Returns the number of deliveries made.
func (f *FanoutEngine) Fanout(ctx context.Context, listingID string) (int, error) {
	listing, err := f.listings.FindByID(ctx, listingID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return 0, entity.ErrListingNotFound
		}
		return 0, fmt.Errorf("failed to load listing %s for fanout: %w", listingID, err)
	}
	if listing.Status != entity.StatusActive {
		return 0, nil
	}

	var ownerTrust int64
	if owner, err := f.profiles.FindByUserID(ctx, listing.OwnerID); err == nil {
		ownerTrust = owner.Trust
	} else {
		f.log.Warnf("failed to load owner profile for listing %s: %v", listingID, err)
	}

	subs, err := f.subs.FindAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to scan subscriptions: %w", err)
	}

	haystack := strings.ToLower(listing.Name + " " + listing.Description)
	recipients := make(map[int64]struct{})
	for _, sub := range subs {
		if sub.UserID == listing.OwnerID {
			continue
		}
		keyword := strings.ToLower(strings.TrimSpace(sub.Keyword))
		if keyword == "" {
			continue
		}
		if strings.Contains(haystack, keyword) {
			recipients[sub.UserID] = struct{}{}
		}
	}

	text := RenderNotification(listing, ownerTrust)
	delivered := 0
	for userID := range recipients {
		if err := f.notifier.Notify(userID, text); err != nil {
			f.log.Warnf("failed to notify user %d about listing %s: %v", userID, listingID, err)
			continue
		}
		delivered++
	}

	f.log.Infof("fanout done: listing=%s matched=%d delivered=%d", listingID, len(recipients), delivered)
	return delivered, nil
}
