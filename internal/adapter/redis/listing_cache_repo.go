package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/smallsky163/hualin-assistant/internal/domain/entity"
	"github.com/smallsky163/hualin-assistant/internal/repository"
	"github.com/redis/go-redis/v9"
)

const listingCacheKeyPrefix = "listing:"

type listingCacheRepository struct {
	client *redis.Client
}

func NewListingCacheRepository(client *redis.Client) repository.ListingCache {
	return &listingCacheRepository{client: client}
}

func listingCacheKey(id string) string {
	return listingCacheKeyPrefix + id
}

func (r *listingCacheRepository) Get(ctx context.Context, id string) (*entity.Listing, error) {
	val, err := r.client.Get(ctx, listingCacheKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get listing %s from cache: %w", id, err)
	}

	var listing entity.Listing
	if err := json.Unmarshal(val, &listing); err != nil {
		// A corrupt entry is dropped so the next read falls through to the store.
		_ = r.Delete(ctx, id)
		return nil, fmt.Errorf("failed to unmarshal cached listing %s: %w", id, err)
	}
	return &listing, nil
}

func (r *listingCacheRepository) Set(ctx context.Context, listing *entity.Listing, ttl time.Duration) error {
	if listing == nil || listing.ID == "" {
		return errors.New("cannot cache nil listing or listing without ID")
	}
	data, err := json.Marshal(listing)
	if err != nil {
		return fmt.Errorf("failed to marshal listing %s for cache: %w", listing.ID, err)
	}
	if err := r.client.Set(ctx, listingCacheKey(listing.ID), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache listing %s: %w", listing.ID, err)
	}
	return nil
}

func (r *listingCacheRepository) Delete(ctx context.Context, id string) error {
	if err := r.client.Del(ctx, listingCacheKey(id)).Err(); err != nil {
		return fmt.Errorf("failed to drop cached listing %s: %w", id, err)
	}
	return nil
}
