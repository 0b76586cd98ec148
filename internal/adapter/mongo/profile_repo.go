package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/smallsky163/hualin-assistant/internal/app/config"
	"github.com/smallsky163/hualin-assistant/internal/domain/entity"
	"github.com/smallsky163/hualin-assistant/internal/repository"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

const profileCollectionName = "profiles"

type profileRepository struct {
	collection *mongo.Collection
}

func NewProfileRepository(client *mongo.Client, cfg config.MongoDBConfig) repository.ProfileRepository {
	return &profileRepository{
		collection: client.Database(cfg.Database).Collection(profileCollectionName),
	}
}

func (r *profileRepository) Create(ctx context.Context, profile *entity.Profile) error {
	now := time.Now().UTC()
	doc := profileDoc{
		UserID:        profile.UserID,
		Handle:        profile.Handle,
		Credits:       profile.Credits,
		Trust:         profile.Trust,
		VIPExpiresAt:  profile.VIPExpiresAt,
		LastClaimDate: profile.LastClaimDate,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if _, err := r.collection.InsertOne(ctx, doc); err != nil {
		// The user id is the document key, so a concurrent first contact
		// shows up as a duplicate insert.
		if mongo.IsDuplicateKeyError(err) {
			return repository.ErrAlreadyExists
		}
		return fmt.Errorf("failed to create profile for user %d: %w", profile.UserID, err)
	}
	profile.CreatedAt = now
	profile.UpdatedAt = now
	return nil
}

func (r *profileRepository) Update(ctx context.Context, profile *entity.Profile) error {
	now := time.Now().UTC()
	update := bson.M{"$set": bson.M{
		"handle":          profile.Handle,
		"credits":         profile.Credits,
		"trust":           profile.Trust,
		"vip_expires_at":  profile.VIPExpiresAt,
		"last_claim_date": profile.LastClaimDate,
		"updated_at":      now,
	}}

	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": profile.UserID}, update)
	if err != nil {
		return fmt.Errorf("failed to update profile for user %d: %w", profile.UserID, err)
	}
	if res.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	profile.UpdatedAt = now
	return nil
}

func (r *profileRepository) FindByUserID(ctx context.Context, userID int64) (*entity.Profile, error) {
	var doc profileDoc
	err := r.collection.FindOne(ctx, bson.M{"_id": userID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get profile for user %d: %w", userID, err)
	}
	return doc.toEntity(), nil
}

func (r *profileRepository) IncrementField(ctx context.Context, userID int64, field string, delta int64) error {
	update := bson.M{
		"$inc": bson.M{field: delta},
		"$set": bson.M{"updated_at": time.Now().UTC()},
	}

	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": userID}, update)
	if err != nil {
		return fmt.Errorf("failed to increment %s for user %d: %w", field, userID, err)
	}
	if res.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}
