package entity

import "time"

// Profile is the per-user account: credit balance, trust score and the
// optional VIP membership window. It is created lazily on the first
// interaction with fixed starting values.
type Profile struct {
	UserID        int64
	Handle        string
	Credits       int64
	Trust         int64
	VIPExpiresAt  *time.Time
	LastClaimDate string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// IsVIP reports whether the membership is still running at the given
// instant. An absent expiry means no membership at all.
func (p *Profile) IsVIP(now time.Time) bool {
	return p.VIPExpiresAt != nil && p.VIPExpiresAt.After(now)
}
