package mongo

import (
	"time"

	"github.com/smallsky163/hualin-assistant/internal/domain/entity"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type listingDoc struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	OwnerID     int64              `bson:"owner_id"`
	Name        string             `bson:"name"`
	Price       int64              `bson:"price"`
	Negotiable  bool               `bson:"negotiable"`
	Description string             `bson:"description"`
	Location    string             `bson:"location,omitempty"`
	PhotoURL    string             `bson:"photo_url,omitempty"`
	Status      string             `bson:"status"`
	Username    string             `bson:"username,omitempty"`
	CreatedAt   time.Time          `bson:"created_at"`
	UpdatedAt   time.Time          `bson:"updated_at"`
}

func (d *listingDoc) toEntity() *entity.Listing {
	return &entity.Listing{
		ID:          d.ID.Hex(),
		OwnerID:     d.OwnerID,
		Name:        d.Name,
		Price:       d.Price,
		Negotiable:  d.Negotiable,
		Description: d.Description,
		Location:    d.Location,
		PhotoURL:    d.PhotoURL,
		Status:      entity.ListingStatus(d.Status),
		Username:    d.Username,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}

type profileDoc struct {
	UserID        int64      `bson:"_id"`
	Handle        string     `bson:"handle,omitempty"`
	Credits       int64      `bson:"credits"`
	Trust         int64      `bson:"trust"`
	VIPExpiresAt  *time.Time `bson:"vip_expires_at,omitempty"`
	LastClaimDate string     `bson:"last_claim_date,omitempty"`
	CreatedAt     time.Time  `bson:"created_at"`
	UpdatedAt     time.Time  `bson:"updated_at"`
}

func (d *profileDoc) toEntity() *entity.Profile {
	return &entity.Profile{
		UserID:        d.UserID,
		Handle:        d.Handle,
		Credits:       d.Credits,
		Trust:         d.Trust,
		VIPExpiresAt:  d.VIPExpiresAt,
		LastClaimDate: d.LastClaimDate,
		CreatedAt:     d.CreatedAt,
		UpdatedAt:     d.UpdatedAt,
	}
}

type subscriptionDoc struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	UserID    int64              `bson:"user_id"`
	Keyword   string             `bson:"keyword"`
	CreatedAt time.Time          `bson:"created_at"`
}

func (d *subscriptionDoc) toEntity() *entity.Subscription {
	return &entity.Subscription{
		ID:        d.ID.Hex(),
		UserID:    d.UserID,
		Keyword:   d.Keyword,
		CreatedAt: d.CreatedAt,
	}
}
