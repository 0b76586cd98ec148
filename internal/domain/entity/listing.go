package entity

import "time"

type ListingStatus string

const (
	StatusDraft  ListingStatus = "draft"
	StatusActive ListingStatus = "active"
	StatusSold   ListingStatus = "sold"
)

// Listing is a sellable item record. It is created as a draft by the
// ingestion pipeline, edited by its owner, published to the marketplace
// and finally marked sold. Deletion is a hard row removal and is only
// allowed while the listing is still a draft.
type Listing struct {
	ID          string
	OwnerID     int64
	Name        string
	Price       int64
	Negotiable  bool
	Description string
	Location    string
	PhotoURL    string
	Status      ListingStatus
	Username    string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// CanTransition reports whether the status change is allowed by the
// lifecycle: draft -> active -> sold, never backward.
func (l *Listing) CanTransition(to ListingStatus) bool {
	switch to {
	case StatusActive:
		return l.Status == StatusDraft
	case StatusSold:
		return l.Status == StatusActive
	default:
		return false
	}
}

// SearchFilter narrows an active-listing scan. Zero values mean "no
// constraint"; it is filled best-effort from a free-text query.
type SearchFilter struct {
	Keyword  string
	MaxPrice int64
	Location string
}
