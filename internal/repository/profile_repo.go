package repository

import (
	"context"

	"github.com/smallsky163/hualin-assistant/internal/domain/entity"
)

// Numeric profile fields addressable by IncrementField.
const (
	ProfileFieldCredits = "credits"
	ProfileFieldTrust   = "trust"
)

type ProfileRepository interface {
	Create(ctx context.Context, profile *entity.Profile) error
	Update(ctx context.Context, profile *entity.Profile) error
	FindByUserID(ctx context.Context, userID int64) (*entity.Profile, error)
	// IncrementField atomically adds delta to a numeric field of the
	// profile row. Used for credit debits and trust bumps so that
	// concurrent workers cannot lose an update.
	IncrementField(ctx context.Context, userID int64, field string, delta int64) error
}
