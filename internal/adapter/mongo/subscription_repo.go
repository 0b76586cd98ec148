package mongo

import (
	"context"
	"fmt"
	"time"

	"github.com/smallsky163/hualin-assistant/internal/app/config"
	"github.com/smallsky163/hualin-assistant/internal/domain/entity"
	"github.com/smallsky163/hualin-assistant/internal/repository"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

const subscriptionCollectionName = "subscriptions"

type subscriptionRepository struct {
	collection *mongo.Collection
}

func NewSubscriptionRepository(client *mongo.Client, cfg config.MongoDBConfig) repository.SubscriptionRepository {
	return &subscriptionRepository{
		collection: client.Database(cfg.Database).Collection(subscriptionCollectionName),
	}
}

func (r *subscriptionRepository) Add(ctx context.Context, sub *entity.Subscription) error {
	now := time.Now().UTC()
	doc := subscriptionDoc{
		UserID:    sub.UserID,
		Keyword:   sub.Keyword,
		CreatedAt: now,
	}

	res, err := r.collection.InsertOne(ctx, doc)
	if err != nil {
		return fmt.Errorf("failed to add subscription for user %d: %w", sub.UserID, err)
	}
	if objectID, ok := res.InsertedID.(primitive.ObjectID); ok {
		sub.ID = objectID.Hex()
	}
	sub.CreatedAt = now
	return nil
}

func (r *subscriptionRepository) Remove(ctx context.Context, userID int64, keyword string) error {
	res, err := r.collection.DeleteMany(ctx, bson.M{"user_id": userID, "keyword": keyword})
	if err != nil {
		return fmt.Errorf("failed to remove subscription (%d, %q): %w", userID, keyword, err)
	}
	if res.DeletedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *subscriptionRepository) FindByUserID(ctx context.Context, userID int64) ([]*entity.Subscription, error) {
	cursor, err := r.collection.Find(ctx, bson.M{"user_id": userID})
	if err != nil {
		return nil, fmt.Errorf("failed to find subscriptions for user %d: %w", userID, err)
	}
	defer cursor.Close(ctx)

	return decodeSubscriptions(ctx, cursor)
}

func (r *subscriptionRepository) FindAll(ctx context.Context) ([]*entity.Subscription, error) {
	cursor, err := r.collection.Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("failed to scan subscriptions: %w", err)
	}
	defer cursor.Close(ctx)

	return decodeSubscriptions(ctx, cursor)
}

func decodeSubscriptions(ctx context.Context, cursor *mongo.Cursor) ([]*entity.Subscription, error) {
	var subs []*entity.Subscription
	for cursor.Next(ctx) {
		var doc subscriptionDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode subscription: %w", err)
		}
		subs = append(subs, doc.toEntity())
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("subscription cursor error: %w", err)
	}
	return subs, nil
}
