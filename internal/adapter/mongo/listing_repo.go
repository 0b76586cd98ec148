package mongo

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/smallsky163/hualin-assistant/internal/app/config"
	"github.com/smallsky163/hualin-assistant/internal/domain/entity"
	"github.com/smallsky163/hualin-assistant/internal/repository"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const listingCollectionName = "listings"

type listingRepository struct {
	collection *mongo.Collection
}

func NewListingRepository(client *mongo.Client, cfg config.MongoDBConfig) repository.ListingRepository {
	return &listingRepository{
		collection: client.Database(cfg.Database).Collection(listingCollectionName),
	}
}

func (r *listingRepository) Create(ctx context.Context, listing *entity.Listing) error {
	now := time.Now().UTC()
	doc := listingDoc{
		OwnerID:     listing.OwnerID,
		Name:        listing.Name,
		Price:       listing.Price,
		Negotiable:  listing.Negotiable,
		Description: listing.Description,
		Location:    listing.Location,
		PhotoURL:    listing.PhotoURL,
		Status:      string(listing.Status),
		Username:    listing.Username,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	res, err := r.collection.InsertOne(ctx, doc)
	if err != nil {
		return fmt.Errorf("failed to create listing: %w", err)
	}

	objectID, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return fmt.Errorf("failed to convert inserted ID to ObjectID")
	}
	listing.ID = objectID.Hex()
	listing.CreatedAt = now
	listing.UpdatedAt = now
	return nil
}

func (r *listingRepository) Update(ctx context.Context, listing *entity.Listing) error {
	objID, err := primitive.ObjectIDFromHex(listing.ID)
	if err != nil {
		return fmt.Errorf("invalid listing ID format: %w", repository.ErrUpdateFailed)
	}

	now := time.Now().UTC()
	update := bson.M{"$set": bson.M{
		"name":        listing.Name,
		"price":       listing.Price,
		"negotiable":  listing.Negotiable,
		"description": listing.Description,
		"location":    listing.Location,
		"photo_url":   listing.PhotoURL,
		"status":      string(listing.Status),
		"username":    listing.Username,
		"updated_at":  now,
	}}

	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": objID}, update)
	if err != nil {
		return fmt.Errorf("failed to update listing %s: %w", listing.ID, err)
	}
	if res.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	listing.UpdatedAt = now
	return nil
}

func (r *listingRepository) Delete(ctx context.Context, id string) error {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("invalid listing ID format: %w", repository.ErrDeleteFailed)
	}

	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": objID})
	if err != nil {
		return fmt.Errorf("failed to delete listing %s: %w", id, err)
	}
	if res.DeletedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *listingRepository) FindByID(ctx context.Context, id string) (*entity.Listing, error) {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("invalid listing ID format: %w", repository.ErrNotFound)
	}

	var doc listingDoc
	err = r.collection.FindOne(ctx, bson.M{"_id": objID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get listing by ID %s: %w", id, err)
	}
	return doc.toEntity(), nil
}

func (r *listingRepository) FindByOwner(ctx context.Context, ownerID int64) ([]*entity.Listing, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := r.collection.Find(ctx, bson.M{"owner_id": ownerID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find listings for owner %d: %w", ownerID, err)
	}
	defer cursor.Close(ctx)

	return decodeListings(ctx, cursor)
}

func (r *listingRepository) FindActive(ctx context.Context, filter entity.SearchFilter) ([]*entity.Listing, error) {
	query := bson.M{"status": string(entity.StatusActive)}
	if filter.Keyword != "" {
		pattern := primitive.Regex{Pattern: regexQuoteMeta(filter.Keyword), Options: "i"}
		query["$or"] = bson.A{
			bson.M{"name": pattern},
			bson.M{"description": pattern},
		}
	}
	if filter.MaxPrice > 0 {
		query["price"] = bson.M{"$lte": filter.MaxPrice}
	}
	if filter.Location != "" {
		query["location"] = primitive.Regex{Pattern: regexQuoteMeta(filter.Location), Options: "i"}
	}

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := r.collection.Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to search active listings: %w", err)
	}
	defer cursor.Close(ctx)

	return decodeListings(ctx, cursor)
}

func decodeListings(ctx context.Context, cursor *mongo.Cursor) ([]*entity.Listing, error) {
	var listings []*entity.Listing
	for cursor.Next(ctx) {
		var doc listingDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode listing: %w", err)
		}
		listings = append(listings, doc.toEntity())
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("listing cursor error: %w", err)
	}
	return listings, nil
}

// regexQuoteMeta escapes user text before it is embedded in a $regex
// query so that keywords like "c++" match literally.
func regexQuoteMeta(s string) string {
	return regexp.QuoteMeta(s)
}
