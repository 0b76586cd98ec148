package repository

import (
	"context"

	"github.com/smallsky163/hualin-assistant/internal/domain/entity"
)

type SubscriptionRepository interface {
	Add(ctx context.Context, sub *entity.Subscription) error
	// Remove deletes every subscription matching (userID, keyword) exactly.
	Remove(ctx context.Context, userID int64, keyword string) error
	FindByUserID(ctx context.Context, userID int64) ([]*entity.Subscription, error)
	FindAll(ctx context.Context) ([]*entity.Subscription, error)
}
