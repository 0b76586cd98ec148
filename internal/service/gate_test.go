package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/smallsky163/hualin-assistant/internal/app/config"
	"github.com/smallsky163/hualin-assistant/internal/domain/entity"
	"github.com/smallsky163/hualin-assistant/internal/platform/logger"
	"github.com/smallsky163/hualin-assistant/internal/repository"
)

func testCreditsConfig() config.CreditsConfig {
	return config.CreditsConfig{
		StartingBalance: 20,
		DailyClaim:      5,
		ListingCost:     10,
		SearchCost:      5,
		Timezone:        "Asia/Shanghai",
	}
}

func newTestGate(t *testing.T, profiles *MockProfileRepository) *CreditGate {
	t.Helper()
	gate, err := NewCreditGate(profiles, testCreditsConfig(), logger.NoOp{})
	assert.NoError(t, err)
	gate.now = func() time.Time {
		return time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	}
	return gate
}

func TestCreditGate_EnsureProfile_CreatesWithStartingBalance(t *testing.T) {
	profiles := new(MockProfileRepository)
	gate := newTestGate(t, profiles)

	profiles.On("FindByUserID", mock.Anything, int64(42)).Return(nil, repository.ErrNotFound).Once()
	profiles.On("Create", mock.Anything, mock.MatchedBy(func(p *entity.Profile) bool {
		return p.UserID == 42 && p.Credits == 20 && p.Trust == 0 && p.Handle == "alice"
	})).Return(nil).Once()

	profile, err := gate.EnsureProfile(context.Background(), 42, "alice")
	assert.NoError(t, err)
	assert.Equal(t, int64(20), profile.Credits)
	profiles.AssertExpectations(t)
}

func TestCreditGate_EnsureProfile_ConcurrentFirstContact(t *testing.T) {
	profiles := new(MockProfileRepository)
	gate := newTestGate(t, profiles)

	// Another request created the row between the lookup and the insert.
	existing := &entity.Profile{UserID: 42, Handle: "alice", Credits: 20}
	profiles.On("FindByUserID", mock.Anything, int64(42)).Return(nil, repository.ErrNotFound).Once()
	profiles.On("Create", mock.Anything, mock.Anything).Return(repository.ErrAlreadyExists).Once()
	profiles.On("FindByUserID", mock.Anything, int64(42)).Return(existing, nil).Once()

	profile, err := gate.EnsureProfile(context.Background(), 42, "alice")
	assert.NoError(t, err)
	assert.Equal(t, existing, profile)
	profiles.AssertExpectations(t)
}

func TestCreditGate_Authorize_DeniesOnLowBalance(t *testing.T) {
	profiles := new(MockProfileRepository)
	gate := newTestGate(t, profiles)

	profiles.On("FindByUserID", mock.Anything, int64(1)).
		Return(&entity.Profile{UserID: 1, Credits: 5}, nil).Once()

	permit, err := gate.Authorize(context.Background(), 1, 10)
	assert.NoError(t, err)
	assert.False(t, permit.Allowed)
	assert.False(t, permit.VIP)
	assert.Equal(t, int64(5), permit.Balance)
}

func TestCreditGate_Authorize_VIPBypassesCost(t *testing.T) {
	profiles := new(MockProfileRepository)
	gate := newTestGate(t, profiles)

	expiry := time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC)
	profiles.On("FindByUserID", mock.Anything, int64(1)).
		Return(&entity.Profile{UserID: 1, Credits: 0, VIPExpiresAt: &expiry}, nil).Once()

	permit, err := gate.Authorize(context.Background(), 1, 10)
	assert.NoError(t, err)
	assert.True(t, permit.Allowed)
	assert.True(t, permit.VIP)
}

func TestCreditGate_Debit_UsesAtomicIncrement(t *testing.T) {
	profiles := new(MockProfileRepository)
	gate := newTestGate(t, profiles)

	profiles.On("IncrementField", mock.Anything, int64(1), repository.ProfileFieldCredits, int64(-10)).
		Return(nil).Once()

	assert.NoError(t, gate.Debit(context.Background(), 1, 10))
	profiles.AssertExpectations(t)
}

func TestCreditGate_ClaimDaily_GrantsOncePerDay(t *testing.T) {
	profiles := new(MockProfileRepository)
	gate := newTestGate(t, profiles)

	profile := &entity.Profile{UserID: 1, Credits: 20}
	profiles.On("FindByUserID", mock.Anything, int64(1)).Return(profile, nil)
	profiles.On("Update", mock.Anything, mock.Anything).Return(nil).Once()

	claimed, balance, err := gate.ClaimDaily(context.Background(), 1)
	assert.NoError(t, err)
	assert.True(t, claimed)
	assert.Equal(t, int64(25), balance)

	// Same day again: the stored claim date now matches, no second grant.
	claimed, balance, err = gate.ClaimDaily(context.Background(), 1)
	assert.NoError(t, err)
	assert.False(t, claimed)
	assert.Equal(t, int64(25), balance)
	profiles.AssertExpectations(t)
}

func TestCreditGate_ApplyTopUp_Credits(t *testing.T) {
	profiles := new(MockProfileRepository)
	gate := newTestGate(t, profiles)

	profiles.On("IncrementField", mock.Anything, int64(7), repository.ProfileFieldCredits, int64(100)).
		Return(nil).Once()

	assert.NoError(t, gate.ApplyTopUp(context.Background(), 7, PlanCredits100))
	profiles.AssertExpectations(t)
}

func TestCreditGate_ApplyTopUp_ExtendsRunningMembership(t *testing.T) {
	profiles := new(MockProfileRepository)
	gate := newTestGate(t, profiles)

	current := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	profile := &entity.Profile{UserID: 7, VIPExpiresAt: &current}
	profiles.On("FindByUserID", mock.Anything, int64(7)).Return(profile, nil).Once()
	profiles.On("Update", mock.Anything, profile).Return(nil).Once()

	assert.NoError(t, gate.ApplyTopUp(context.Background(), 7, PlanVIP31))
	assert.Equal(t, current.AddDate(0, 0, 31), *profile.VIPExpiresAt)
}

func TestCreditGate_ApplyTopUp_UnknownPlan(t *testing.T) {
	profiles := new(MockProfileRepository)
	gate := newTestGate(t, profiles)

	err := gate.ApplyTopUp(context.Background(), 7, "vip9000")
	assert.ErrorIs(t, err, entity.ErrUnknownPlan)
}
