package entity

import "time"

// Subscription binds a user to a keyword. Published listings whose name
// or description contain the keyword (case-insensitive) are pushed to
// the subscriber. Duplicates are allowed; they are harmless no-ops at
// delivery time because recipients are deduplicated per listing.
type Subscription struct {
	ID        string
	UserID    int64
	Keyword   string
	CreatedAt time.Time
}
