package service

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/smallsky163/hualin-assistant/internal/domain/entity"
)

type MockListingRepository struct{ mock.Mock }

func (m *MockListingRepository) Create(ctx context.Context, listing *entity.Listing) error {
	args := m.Called(ctx, listing)
	return args.Error(0)
}
func (m *MockListingRepository) Update(ctx context.Context, listing *entity.Listing) error {
	args := m.Called(ctx, listing)
	return args.Error(0)
}
func (m *MockListingRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}
func (m *MockListingRepository) FindByID(ctx context.Context, id string) (*entity.Listing, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Listing), args.Error(1)
}
func (m *MockListingRepository) FindByOwner(ctx context.Context, ownerID int64) ([]*entity.Listing, error) {
	args := m.Called(ctx, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entity.Listing), args.Error(1)
}
func (m *MockListingRepository) FindActive(ctx context.Context, filter entity.SearchFilter) ([]*entity.Listing, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entity.Listing), args.Error(1)
}

type MockProfileRepository struct{ mock.Mock }

func (m *MockProfileRepository) Create(ctx context.Context, profile *entity.Profile) error {
	args := m.Called(ctx, profile)
	return args.Error(0)
}
func (m *MockProfileRepository) Update(ctx context.Context, profile *entity.Profile) error {
	args := m.Called(ctx, profile)
	return args.Error(0)
}
func (m *MockProfileRepository) FindByUserID(ctx context.Context, userID int64) (*entity.Profile, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Profile), args.Error(1)
}
func (m *MockProfileRepository) IncrementField(ctx context.Context, userID int64, field string, delta int64) error {
	args := m.Called(ctx, userID, field, delta)
	return args.Error(0)
}

type MockSubscriptionRepository struct{ mock.Mock }

func (m *MockSubscriptionRepository) Add(ctx context.Context, sub *entity.Subscription) error {
	args := m.Called(ctx, sub)
	return args.Error(0)
}
func (m *MockSubscriptionRepository) Remove(ctx context.Context, userID int64, keyword string) error {
	args := m.Called(ctx, userID, keyword)
	return args.Error(0)
}
func (m *MockSubscriptionRepository) FindByUserID(ctx context.Context, userID int64) ([]*entity.Subscription, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entity.Subscription), args.Error(1)
}
func (m *MockSubscriptionRepository) FindAll(ctx context.Context) ([]*entity.Subscription, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entity.Subscription), args.Error(1)
}

type MockListingCache struct{ mock.Mock }

func (m *MockListingCache) Get(ctx context.Context, id string) (*entity.Listing, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Listing), args.Error(1)
}
func (m *MockListingCache) Set(ctx context.Context, listing *entity.Listing, ttl time.Duration) error {
	args := m.Called(ctx, listing, ttl)
	return args.Error(0)
}
func (m *MockListingCache) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type MockGenerator struct{ mock.Mock }

func (m *MockGenerator) Generate(ctx context.Context, image []byte, prompt string) (string, error) {
	args := m.Called(ctx, image, prompt)
	return args.String(0), args.Error(1)
}
func (m *MockGenerator) GenerateText(ctx context.Context, prompt string) (string, error) {
	args := m.Called(ctx, prompt)
	return args.String(0), args.Error(1)
}

type MockPhotoStorage struct{ mock.Mock }

func (m *MockPhotoStorage) Upload(ctx context.Context, data []byte) (string, error) {
	args := m.Called(ctx, data)
	return args.String(0), args.Error(1)
}

type MockNotifier struct{ mock.Mock }

func (m *MockNotifier) Notify(userID int64, text string) error {
	args := m.Called(userID, text)
	return args.Error(0)
}

type MockFanout struct{ mock.Mock }

func (m *MockFanout) Fanout(ctx context.Context, listingID string) (int, error) {
	args := m.Called(ctx, listingID)
	return args.Int(0), args.Error(1)
}

type MockPublisher struct{ mock.Mock }

func (m *MockPublisher) Publish(ctx context.Context, subject string, message interface{}) error {
	args := m.Called(ctx, subject, message)
	return args.Error(0)
}
func (m *MockPublisher) PublishRaw(ctx context.Context, subject string, data []byte) error {
	args := m.Called(ctx, subject, data)
	return args.Error(0)
}

// syncSubmitter runs submitted tasks inline so tests observe fan-out
// effects without a worker pool.
type syncSubmitter struct{ closed bool }

func (s *syncSubmitter) Submit(task func()) bool {
	if s.closed {
		return false
	}
	task()
	return true
}
