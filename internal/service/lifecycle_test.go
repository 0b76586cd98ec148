package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/smallsky163/hualin-assistant/internal/domain/entity"
	"github.com/smallsky163/hualin-assistant/internal/platform/logger"
	"github.com/smallsky163/hualin-assistant/internal/repository"
)

type lifecycleFixture struct {
	listings *MockListingRepository
	profiles *MockProfileRepository
	cache    *MockListingCache
	fanout   *MockFanout
	events   *MockPublisher
	gen      *MockGenerator
	svc      *LifecycleService
}

func newLifecycleFixture() *lifecycleFixture {
	f := &lifecycleFixture{
		listings: new(MockListingRepository),
		profiles: new(MockProfileRepository),
		cache:    new(MockListingCache),
		fanout:   new(MockFanout),
		events:   new(MockPublisher),
		gen:      new(MockGenerator),
	}
	f.svc = NewLifecycleService(
		f.listings, f.profiles, f.cache,
		f.fanout, &syncSubmitter{}, f.events, f.gen,
		time.Hour, logger.NoOp{},
	)
	return f
}

func draftListing(id string, ownerID int64) *entity.Listing {
	return &entity.Listing{
		ID:          id,
		OwnerID:     ownerID,
		Name:        "旧自行车",
		Price:       0,
		Negotiable:  true,
		Description: "九成新，通勤代步好伙伴",
		Status:      entity.StatusDraft,
	}
}

func TestLifecycle_EditPrice(t *testing.T) {
	f := newLifecycleFixture()
	f.listings.On("FindByID", mock.Anything, "l1").Return(draftListing("l1", 10), nil).Once()
	f.listings.On("Update", mock.Anything, mock.MatchedBy(func(l *entity.Listing) bool {
		return l.Price == 88 && !l.Negotiable
	})).Return(nil).Once()

	listing, err := f.svc.EditPrice(context.Background(), "l1", 10, " 88 ")
	assert.NoError(t, err)
	assert.Equal(t, int64(88), listing.Price)
	f.listings.AssertExpectations(t)
}

func TestLifecycle_EditPrice_RejectsGarbage(t *testing.T) {
	f := newLifecycleFixture()

	for _, raw := range []string{"abc", "-5", "12.5", ""} {
		_, err := f.svc.EditPrice(context.Background(), "l1", 10, raw)
		assert.ErrorIs(t, err, entity.ErrInvalidPrice, "input %q", raw)
	}
	f.listings.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

func TestLifecycle_EditPrice_Forbidden(t *testing.T) {
	f := newLifecycleFixture()
	f.listings.On("FindByID", mock.Anything, "l1").Return(draftListing("l1", 10), nil).Once()

	_, err := f.svc.EditPrice(context.Background(), "l1", 99, "50")
	assert.ErrorIs(t, err, entity.ErrForbidden)
}

func TestLifecycle_EditDescription_TooShort(t *testing.T) {
	f := newLifecycleFixture()

	_, err := f.svc.EditDescription(context.Background(), "l1", 10, "  好  ")
	assert.ErrorIs(t, err, entity.ErrDescriptionTooShort)
}

func TestLifecycle_EditDescription(t *testing.T) {
	f := newLifecycleFixture()
	f.listings.On("FindByID", mock.Anything, "l1").Return(draftListing("l1", 10), nil).Once()
	f.listings.On("Update", mock.Anything, mock.Anything).Return(nil).Once()

	listing, err := f.svc.EditDescription(context.Background(), "l1", 10, "送货上门，诚心可议")
	assert.NoError(t, err)
	assert.Equal(t, "送货上门，诚心可议", listing.Description)
}

func TestLifecycle_Publish_RequiresPublicHandle(t *testing.T) {
	f := newLifecycleFixture()

	_, err := f.svc.Publish(context.Background(), "l1", 10, "  ")
	assert.ErrorIs(t, err, entity.ErrNoPublicHandle)
	f.listings.AssertNotCalled(t, "FindByID", mock.Anything, mock.Anything)
}

func TestLifecycle_Publish_ActivatesAndQueuesFanout(t *testing.T) {
	f := newLifecycleFixture()
	f.listings.On("FindByID", mock.Anything, "l1").Return(draftListing("l1", 10), nil).Once()
	f.listings.On("Update", mock.Anything, mock.MatchedBy(func(l *entity.Listing) bool {
		return l.Status == entity.StatusActive && l.Username == "alice"
	})).Return(nil).Once()
	f.cache.On("Set", mock.Anything, mock.Anything, time.Hour).Return(nil).Once()
	f.events.On("Publish", mock.Anything, "listing.activated", mock.Anything).Return(nil).Once()
	f.fanout.On("Fanout", mock.Anything, "l1").Return(2, nil).Once()

	listing, err := f.svc.Publish(context.Background(), "l1", 10, "alice")
	assert.NoError(t, err)
	assert.Equal(t, entity.StatusActive, listing.Status)
	f.fanout.AssertNumberOfCalls(t, "Fanout", 1)
}

func TestLifecycle_Publish_AlreadySold(t *testing.T) {
	f := newLifecycleFixture()
	sold := draftListing("l1", 10)
	sold.Status = entity.StatusSold
	f.listings.On("FindByID", mock.Anything, "l1").Return(sold, nil).Once()

	_, err := f.svc.Publish(context.Background(), "l1", 10, "alice")
	assert.ErrorIs(t, err, entity.ErrInvalidTransition)
}

func TestLifecycle_MarkSold_BumpsTrustBeforeStatus(t *testing.T) {
	f := newLifecycleFixture()
	active := draftListing("l1", 10)
	active.Status = entity.StatusActive

	f.listings.On("FindByID", mock.Anything, "l1").Return(active, nil).Once()
	f.profiles.On("IncrementField", mock.Anything, int64(10), repository.ProfileFieldTrust, int64(10)).
		Return(nil).Once()
	f.listings.On("Update", mock.Anything, mock.MatchedBy(func(l *entity.Listing) bool {
		return l.Status == entity.StatusSold
	})).Return(nil).Once()
	f.cache.On("Delete", mock.Anything, "l1").Return(nil).Once()
	f.events.On("Publish", mock.Anything, "listing.sold", mock.Anything).Return(nil).Once()

	listing, err := f.svc.MarkSold(context.Background(), "l1", 10)
	assert.NoError(t, err)
	assert.Equal(t, entity.StatusSold, listing.Status)
	f.profiles.AssertExpectations(t)
}

func TestLifecycle_MarkSold_Twice(t *testing.T) {
	f := newLifecycleFixture()
	sold := draftListing("l1", 10)
	sold.Status = entity.StatusSold
	f.listings.On("FindByID", mock.Anything, "l1").Return(sold, nil).Once()

	_, err := f.svc.MarkSold(context.Background(), "l1", 10)
	assert.ErrorIs(t, err, entity.ErrInvalidTransition)
	f.profiles.AssertNotCalled(t, "IncrementField", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestLifecycle_Discard_ActiveRefused(t *testing.T) {
	f := newLifecycleFixture()
	active := draftListing("l1", 10)
	active.Status = entity.StatusActive
	f.listings.On("FindByID", mock.Anything, "l1").Return(active, nil).Once()

	err := f.svc.Discard(context.Background(), "l1", 10)
	assert.ErrorIs(t, err, entity.ErrInvalidTransition)
	f.listings.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

func TestLifecycle_View_DraftHiddenFromStrangers(t *testing.T) {
	f := newLifecycleFixture()
	f.cache.On("Get", mock.Anything, "l1").Return(nil, repository.ErrNotFound)
	f.listings.On("FindByID", mock.Anything, "l1").Return(draftListing("l1", 10), nil)

	_, err := f.svc.View(context.Background(), "l1", 99)
	assert.ErrorIs(t, err, entity.ErrListingNotFound)

	listing, err := f.svc.View(context.Background(), "l1", 10)
	assert.NoError(t, err)
	assert.Equal(t, "l1", listing.ID)
}

func TestLifecycle_LastEditWins(t *testing.T) {
	f := newLifecycleFixture()
	listing := draftListing("l1", 10)
	f.listings.On("FindByID", mock.Anything, "l1").Return(listing, nil)
	f.listings.On("Update", mock.Anything, mock.Anything).Return(nil)

	_, err := f.svc.EditPrice(context.Background(), "l1", 10, "100")
	assert.NoError(t, err)
	updated, err := f.svc.EditPrice(context.Background(), "l1", 10, "80")
	assert.NoError(t, err)

	assert.Equal(t, int64(80), updated.Price)
	preview := RenderListing(updated)
	assert.Contains(t, preview, "80 元")
	assert.NotContains(t, preview, "100 元")
}
