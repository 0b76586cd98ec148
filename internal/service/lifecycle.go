package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/smallsky163/hualin-assistant/internal/adapter/nats"
	"github.com/smallsky163/hualin-assistant/internal/domain/entity"
	"github.com/smallsky163/hualin-assistant/internal/platform/logger"
	"github.com/smallsky163/hualin-assistant/internal/repository"
)

const (
	minDescriptionLen = 5
	trustSoldBonus    = 10
)

const (
	natsSubjectListingActivated = "listing.activated"
	natsSubjectListingSold      = "listing.sold"
)

const resolvePlacePrompt = `请根据经纬度 %.5f,%.5f 给出最贴近的地点名称（小区/街道/商圈级别即可）。只输出地点名称本身，不要任何其他文字。`

// DraftInput is what the ingestion pipeline hands over to create a new
// draft listing.
type DraftInput struct {
	OwnerID     int64
	Name        string
	Price       int64
	Negotiable  bool
	Description string
	PhotoURL    string
}

// LifecycleEvent is the payload published to NATS on status changes.
type LifecycleEvent struct {
	ListingID string `json:"listing_id"`
	OwnerID   int64  `json:"owner_id"`
	Name      string `json:"name"`
	Price     int64  `json:"price"`
	Status    string `json:"status"`
}

// LifecycleService owns the draft-editing and publication workflow of a
// listing: draft -> active -> sold, plus draft -> deleted. Every mutating
// operation verifies that the acting identity owns the listing before it
// touches the store, and status transitions are the last write of any
// operation that writes more than one thing.
type LifecycleService struct {
	listings repository.ListingRepository
	profiles repository.ProfileRepository
	cache    repository.ListingCache
	fanout   NotificationFanout
	tasks    TaskSubmitter
	events   nats.MessagePublisher
	gen      Generator
	cacheTTL time.Duration
	log      logger.Logger
}

func NewLifecycleService(
	listings repository.ListingRepository,
	profiles repository.ProfileRepository,
	cache repository.ListingCache,
	fanout NotificationFanout,
	tasks TaskSubmitter,
	events nats.MessagePublisher,
	gen Generator,
	cacheTTL time.Duration,
	log logger.Logger,
) *LifecycleService {
	return &LifecycleService{
		listings: listings,
		profiles: profiles,
		cache:    cache,
		fanout:   fanout,
		tasks:    tasks,
		events:   events,
		gen:      gen,
		cacheTTL: cacheTTL,
		log:      log,
	}
}

// CreateDraft persists a new listing in draft state. Only the ingestion
// pipeline calls this; users never create listings directly.
func (s *LifecycleService) CreateDraft(ctx context.Context, in DraftInput) (*entity.Listing, error) {
	if in.Price < 0 {
		return nil, entity.ErrInvalidPrice
	}
	listing := &entity.Listing{
		OwnerID:     in.OwnerID,
		Name:        in.Name,
		Price:       in.Price,
		Negotiable:  in.Negotiable,
		Description: in.Description,
		PhotoURL:    in.PhotoURL,
		Status:      entity.StatusDraft,
	}
	if err := s.listings.Create(ctx, listing); err != nil {
		return nil, fmt.Errorf("failed to create draft: %w", err)
	}
	s.log.Infof("draft created: listing=%s owner=%d", listing.ID, in.OwnerID)
	return listing, nil
}

func (s *LifecycleService) getOwned(ctx context.Context, id string, userID int64) (*entity.Listing, error) {
	listing, err := s.listings.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, entity.ErrListingNotFound
		}
		return nil, err
	}
	if listing.OwnerID != userID {
		s.log.Warnf("forbidden: listing=%s owner=%d actor=%d", id, listing.OwnerID, userID)
		return nil, entity.ErrForbidden
	}
	return listing, nil
}

// EditPrice sets a new price from raw user text. Only a non-negative
// whole number is accepted; anything else is a validation error and the
// stored price stays untouched.
func (s *LifecycleService) EditPrice(ctx context.Context, id string, userID int64, rawText string) (*entity.Listing, error) {
	price, err := strconv.ParseInt(strings.TrimSpace(rawText), 10, 64)
	if err != nil || price < 0 {
		return nil, entity.ErrInvalidPrice
	}

	listing, err := s.getOwned(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	if listing.Status != entity.StatusDraft {
		return nil, entity.ErrInvalidTransition
	}

	listing.Price = price
	listing.Negotiable = false
	if err := s.listings.Update(ctx, listing); err != nil {
		return nil, fmt.Errorf("failed to update price for listing %s: %w", id, err)
	}
	return listing, nil
}

// EditDescription replaces the description; trimmed input shorter than
// the minimum is rejected.
func (s *LifecycleService) EditDescription(ctx context.Context, id string, userID int64, rawText string) (*entity.Listing, error) {
	text := strings.TrimSpace(rawText)
	if utf8.RuneCountInString(text) < minDescriptionLen {
		return nil, entity.ErrDescriptionTooShort
	}

	listing, err := s.getOwned(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	if listing.Status != entity.StatusDraft {
		return nil, entity.ErrInvalidTransition
	}

	listing.Description = text
	if err := s.listings.Update(ctx, listing); err != nil {
		return nil, fmt.Errorf("failed to update description for listing %s: %w", id, err)
	}
	return listing, nil
}

// EditLocation sets the location from free text or a resolved place name.
func (s *LifecycleService) EditLocation(ctx context.Context, id string, userID int64, locationText string) (*entity.Listing, error) {
	text := strings.TrimSpace(locationText)
	if text == "" {
		return nil, entity.ErrEmptyLocation
	}

	listing, err := s.getOwned(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	if listing.Status != entity.StatusDraft {
		return nil, entity.ErrInvalidTransition
	}

	listing.Location = text
	if err := s.listings.Update(ctx, listing); err != nil {
		return nil, fmt.Errorf("failed to update location for listing %s: %w", id, err)
	}
	return listing, nil
}

// ResolvePlace turns coordinates into a human place name through the
// content-generation collaborator.
func (s *LifecycleService) ResolvePlace(ctx context.Context, lat, lng float32) (string, error) {
	text, err := s.gen.GenerateText(ctx, fmt.Sprintf(resolvePlacePrompt, lat, lng))
	if err != nil {
		return "", fmt.Errorf("failed to resolve place for %.5f,%.5f: %w", lat, lng, err)
	}
	place := strings.TrimSpace(text)
	if i := strings.IndexByte(place, '\n'); i >= 0 {
		place = strings.TrimSpace(place[:i])
	}
	if place == "" {
		return "", entity.ErrEmptyLocation
	}
	return place, nil
}

// Publish activates a draft. The acting user must carry a stable public
// handle; without one the listing stays untouched. On success the
// fan-out engine is queued exactly once, decoupled from the reply sent
// to the publisher.
func (s *LifecycleService) Publish(ctx context.Context, id string, userID int64, actingHandle string) (*entity.Listing, error) {
	handle := strings.TrimSpace(actingHandle)
	if handle == "" {
		return nil, entity.ErrNoPublicHandle
	}

	listing, err := s.getOwned(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	if !listing.CanTransition(entity.StatusActive) {
		return nil, entity.ErrInvalidTransition
	}

	listing.Username = handle
	listing.Status = entity.StatusActive
	if err := s.listings.Update(ctx, listing); err != nil {
		return nil, fmt.Errorf("failed to publish listing %s: %w", id, err)
	}

	if err := s.cache.Set(ctx, listing, s.cacheTTL); err != nil {
		s.log.Warnf("failed to cache published listing %s: %v", id, err)
	}
	s.publishEvent(ctx, natsSubjectListingActivated, listing)

	listingID := listing.ID
	if !s.tasks.Submit(func() {
		if _, err := s.fanout.Fanout(context.Background(), listingID); err != nil {
			s.log.Errorf("fanout failed for listing %s: %v", listingID, err)
		}
	}) {
		s.log.Warnf("dispatcher stopped, skipping fanout for listing %s", listingID)
	}

	s.log.Infof("listing published: listing=%s owner=%d", id, userID)
	return listing, nil
}

// MarkSold closes an active listing. The owner's trust score gets the
// fixed bonus through the store's atomic increment; the status write
// comes last.
func (s *LifecycleService) MarkSold(ctx context.Context, id string, userID int64) (*entity.Listing, error) {
	listing, err := s.getOwned(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	if !listing.CanTransition(entity.StatusSold) {
		return nil, entity.ErrInvalidTransition
	}

	if err := s.profiles.IncrementField(ctx, userID, repository.ProfileFieldTrust, trustSoldBonus); err != nil {
		return nil, fmt.Errorf("failed to bump trust for user %d: %w", userID, err)
	}

	listing.Status = entity.StatusSold
	if err := s.listings.Update(ctx, listing); err != nil {
		return nil, fmt.Errorf("failed to mark listing %s sold: %w", id, err)
	}

	if err := s.cache.Delete(ctx, id); err != nil {
		s.log.Warnf("failed to drop cached listing %s: %v", id, err)
	}
	s.publishEvent(ctx, natsSubjectListingSold, listing)

	s.log.Infof("listing sold: listing=%s owner=%d", id, userID)
	return listing, nil
}

// Discard removes a draft. Published listings cannot be deleted.
func (s *LifecycleService) Discard(ctx context.Context, id string, userID int64) error {
	listing, err := s.getOwned(ctx, id, userID)
	if err != nil {
		return err
	}
	if listing.Status != entity.StatusDraft {
		return entity.ErrInvalidTransition
	}

	if err := s.listings.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return entity.ErrListingNotFound
		}
		return fmt.Errorf("failed to discard listing %s: %w", id, err)
	}
	if err := s.cache.Delete(ctx, id); err != nil {
		s.log.Warnf("failed to drop cached listing %s: %v", id, err)
	}
	return nil
}

// View loads a listing for display. Drafts stay private to their owner;
// active listings go through the read cache.
func (s *LifecycleService) View(ctx context.Context, id string, viewerID int64) (*entity.Listing, error) {
	if cached, err := s.cache.Get(ctx, id); err == nil {
		if cached.Status == entity.StatusActive {
			return cached, nil
		}
	}

	listing, err := s.listings.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, entity.ErrListingNotFound
		}
		return nil, err
	}
	if listing.Status == entity.StatusDraft && listing.OwnerID != viewerID {
		return nil, entity.ErrListingNotFound
	}
	if listing.Status == entity.StatusActive {
		if err := s.cache.Set(ctx, listing, s.cacheTTL); err != nil {
			s.log.Warnf("failed to cache listing %s: %v", id, err)
		}
	}
	return listing, nil
}

// Owned lists everything the user has, drafts included.
func (s *LifecycleService) Owned(ctx context.Context, userID int64) ([]*entity.Listing, error) {
	listings, err := s.listings.FindByOwner(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list listings for user %d: %w", userID, err)
	}
	return listings, nil
}

func (s *LifecycleService) publishEvent(ctx context.Context, subject string, listing *entity.Listing) {
	event := LifecycleEvent{
		ListingID: listing.ID,
		OwnerID:   listing.OwnerID,
		Name:      listing.Name,
		Price:     listing.Price,
		Status:    string(listing.Status),
	}
	if err := s.events.Publish(ctx, subject, event); err != nil {
		s.log.Warnf("failed to publish %s event for listing %s: %v", subject, listing.ID, err)
	}
}
