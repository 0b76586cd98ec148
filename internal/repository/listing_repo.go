package repository

import (
	"context"
	"time"

	"github.com/smallsky163/hualin-assistant/internal/domain/entity"
)

type ListingRepository interface {
	// Create assigns a store ID and persists the listing.
	Create(ctx context.Context, listing *entity.Listing) error
	Update(ctx context.Context, listing *entity.Listing) error
	Delete(ctx context.Context, id string) error
	FindByID(ctx context.Context, id string) (*entity.Listing, error)
	FindByOwner(ctx context.Context, ownerID int64) ([]*entity.Listing, error)
	// FindActive scans active listings only; drafts are never visible here.
	FindActive(ctx context.Context, filter entity.SearchFilter) ([]*entity.Listing, error)
}

// ListingCache is a read-through cache in front of FindByID for the
// public view and search paths. Get returns ErrNotFound on a miss.
type ListingCache interface {
	Get(ctx context.Context, id string) (*entity.Listing, error)
	Set(ctx context.Context, listing *entity.Listing, ttl time.Duration) error
	Delete(ctx context.Context, id string) error
}
