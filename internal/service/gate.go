package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/smallsky163/hualin-assistant/internal/app/config"
	"github.com/smallsky163/hualin-assistant/internal/domain/entity"
	"github.com/smallsky163/hualin-assistant/internal/platform/logger"
	"github.com/smallsky163/hualin-assistant/internal/repository"
)

// Top-up plans an operator can approve from a payment proof.
const (
	PlanCredits100 = "credits100"
	PlanVIP31      = "vip31"
	PlanVIP365     = "vip365"

	topUpCreditAmount = 100
)

const claimDateLayout = "2006-01-02"

// Permit is the outcome of an authorization check. A VIP permit carries
// zero cost, so no debit must follow the gated action.
type Permit struct {
	Allowed bool
	VIP     bool
	Balance int64
}

// CreditGate decides whether a privileged action may proceed and
// performs the associated debit. The debit is a discrete step taken
// after the gated action verifiably succeeded, so a failed generation
// never consumes credits.
type CreditGate struct {
	profiles repository.ProfileRepository
	cfg      config.CreditsConfig
	loc      *time.Location
	log      logger.Logger
	now      func() time.Time
}

func NewCreditGate(profiles repository.ProfileRepository, cfg config.CreditsConfig, log logger.Logger) (*CreditGate, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid credits timezone %q: %w", cfg.Timezone, err)
	}
	return &CreditGate{
		profiles: profiles,
		cfg:      cfg,
		loc:      loc,
		log:      log,
		now:      time.Now,
	}, nil
}

// EnsureProfile loads the profile, creating it with the fixed starting
// balance on first contact. A non-empty handle refreshes the stored one.
func (g *CreditGate) EnsureProfile(ctx context.Context, userID int64, handle string) (*entity.Profile, error) {
	profile, err := g.profiles.FindByUserID(ctx, userID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("failed to load profile for user %d: %w", userID, err)
		}
		profile = &entity.Profile{
			UserID:  userID,
			Handle:  handle,
			Credits: g.cfg.StartingBalance,
			Trust:   0,
		}
		if err := g.profiles.Create(ctx, profile); err != nil {
			// A concurrent first contact may have created it between the
			// lookup and the insert; the existing row wins.
			if errors.Is(err, repository.ErrAlreadyExists) {
				existing, findErr := g.profiles.FindByUserID(ctx, userID)
				if findErr != nil {
					return nil, fmt.Errorf("failed to load profile for user %d: %w", userID, findErr)
				}
				return existing, nil
			}
			return nil, fmt.Errorf("failed to create profile for user %d: %w", userID, err)
		}
		g.log.Infof("profile created: user=%d starting_credits=%d", userID, g.cfg.StartingBalance)
		return profile, nil
	}

	if handle != "" && profile.Handle != handle {
		profile.Handle = handle
		if err := g.profiles.Update(ctx, profile); err != nil {
			g.log.Warnf("failed to refresh handle for user %d: %v", userID, err)
		}
	}
	return profile, nil
}

// Authorize checks whether the action may proceed. It never debits: a
// permit for a non-VIP caller means the balance covers the cost and the
// caller is expected to Debit once the action succeeded.
func (g *CreditGate) Authorize(ctx context.Context, userID int64, cost int64) (Permit, error) {
	profile, err := g.EnsureProfile(ctx, userID, "")
	if err != nil {
		return Permit{}, err
	}

	if profile.IsVIP(g.now()) {
		return Permit{Allowed: true, VIP: true, Balance: profile.Credits}, nil
	}
	return Permit{Allowed: profile.Credits >= cost, Balance: profile.Credits}, nil
}

// Debit takes the cost off the balance via the store's atomic increment.
func (g *CreditGate) Debit(ctx context.Context, userID int64, cost int64) error {
	if cost <= 0 {
		return nil
	}
	if err := g.profiles.IncrementField(ctx, userID, repository.ProfileFieldCredits, -cost); err != nil {
		return fmt.Errorf("failed to debit %d credits from user %d: %w", cost, userID, err)
	}
	return nil
}

// ClaimDaily grants the fixed daily credit amount at most once per
// calendar day in the reference timezone. Repeat calls the same day are
// no-ops.
func (g *CreditGate) ClaimDaily(ctx context.Context, userID int64) (bool, int64, error) {
	profile, err := g.EnsureProfile(ctx, userID, "")
	if err != nil {
		return false, 0, err
	}

	today := g.now().In(g.loc).Format(claimDateLayout)
	if profile.LastClaimDate == today {
		return false, profile.Credits, nil
	}

	profile.Credits += g.cfg.DailyClaim
	profile.LastClaimDate = today
	if err := g.profiles.Update(ctx, profile); err != nil {
		return false, 0, fmt.Errorf("failed to store daily claim for user %d: %w", userID, err)
	}
	return true, profile.Credits, nil
}

// ApplyTopUp credits an operator-approved plan: a flat credit grant or a
// membership extension. A running membership is extended from its current
// expiry, not cut back to now.
func (g *CreditGate) ApplyTopUp(ctx context.Context, userID int64, plan string) error {
	switch plan {
	case PlanCredits100:
		if err := g.profiles.IncrementField(ctx, userID, repository.ProfileFieldCredits, topUpCreditAmount); err != nil {
			return fmt.Errorf("failed to grant credits to user %d: %w", userID, err)
		}
		return nil
	case PlanVIP31, PlanVIP365:
		profile, err := g.EnsureProfile(ctx, userID, "")
		if err != nil {
			return err
		}
		days := 31
		if plan == PlanVIP365 {
			days = 365
		}
		base := g.now()
		if profile.VIPExpiresAt != nil && profile.VIPExpiresAt.After(base) {
			base = *profile.VIPExpiresAt
		}
		expiry := base.AddDate(0, 0, days)
		profile.VIPExpiresAt = &expiry
		if err := g.profiles.Update(ctx, profile); err != nil {
			return fmt.Errorf("failed to extend membership for user %d: %w", userID, err)
		}
		return nil
	default:
		return entity.ErrUnknownPlan
	}
}
