package integration

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"github.com/storefront/backend/internal/domain/integration"
)

func newTestLogger() *zap.Logger {
	logger, _ := zap.NewDevelopment()
	return logger
}

// MockJobRepository is a mock implementation of integration.JobRepository
type MockJobRepository struct {
	mock.Mock
}

func (m *MockJobRepository) Create(ctx context.Context, job *integration.Job, items []*integration.JobItem) error {
	args := m.Called(ctx, job, items)
	return args.Error(0)
}

func (m *MockJobRepository) FindByID(ctx context.Context, id uuid.UUID) (*integration.Job, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.Job), args.Error(1)
}

func (m *MockJobRepository) List(ctx context.Context, filter integration.JobFilter) ([]integration.Job, int64, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]integration.Job), args.Get(1).(int64), args.Error(2)
}

func (m *MockJobRepository) FindItems(ctx context.Context, jobID uuid.UUID) ([]integration.JobItem, error) {
	args := m.Called(ctx, jobID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]integration.JobItem), args.Error(1)
}

func (m *MockJobRepository) CountItemsByStatus(ctx context.Context, jobID uuid.UUID) (integration.ItemStatusCounts, error) {
	args := m.Called(ctx, jobID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(integration.ItemStatusCounts), args.Error(1)
}

func (m *MockJobRepository) ClaimPendingJobs(ctx context.Context, limit int) ([]integration.Job, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]integration.Job), args.Error(1)
}

func (m *MockJobRepository) FindJobsWithDueItems(ctx context.Context, now time.Time, limit int) ([]integration.Job, error) {
	args := m.Called(ctx, now, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]integration.Job), args.Error(1)
}

func (m *MockJobRepository) ClaimDueItems(ctx context.Context, jobID uuid.UUID, now time.Time, limit int) ([]*integration.JobItem, error) {
	args := m.Called(ctx, jobID, now, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*integration.JobItem), args.Error(1)
}

func (m *MockJobRepository) SaveItemOutcome(ctx context.Context, item *integration.JobItem, terminal bool) error {
	args := m.Called(ctx, item, terminal)
	return args.Error(0)
}

func (m *MockJobRepository) CompleteIfFinished(ctx context.Context, jobID uuid.UUID, now time.Time) (bool, error) {
	args := m.Called(ctx, jobID, now)
	return args.Bool(0), args.Error(1)
}

func (m *MockJobRepository) CompleteFinishedJobs(ctx context.Context, now time.Time) (int64, error) {
	args := m.Called(ctx, now)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockJobRepository) MarkFailed(ctx context.Context, jobID uuid.UUID, message string, now time.Time) error {
	args := m.Called(ctx, jobID, message, now)
	return args.Error(0)
}

func (m *MockJobRepository) Cancel(ctx context.Context, jobID uuid.UUID, now time.Time) error {
	args := m.Called(ctx, jobID, now)
	return args.Error(0)
}

func (m *MockJobRepository) ResetFailedItems(ctx context.Context, jobID uuid.UUID, now time.Time) (int, error) {
	args := m.Called(ctx, jobID, now)
	return args.Int(0), args.Error(1)
}

func (m *MockJobRepository) RecoverStaleItems(ctx context.Context, olderThan time.Time) (int64, error) {
	args := m.Called(ctx, olderThan)
	return args.Get(0).(int64), args.Error(1)
}

// MockSyncLogRepository is a mock implementation of integration.SyncLogRepository
type MockSyncLogRepository struct {
	mock.Mock
}

func (m *MockSyncLogRepository) Append(ctx context.Context, entry *integration.SyncLog) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockSyncLogRepository) ListByJob(ctx context.Context, jobID uuid.UUID, limit int) ([]integration.SyncLog, error) {
	args := m.Called(ctx, jobID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]integration.SyncLog), args.Error(1)
}

// MockChannelAccountRepository is a mock implementation of integration.ChannelAccountRepository
type MockChannelAccountRepository struct {
	mock.Mock
}

func (m *MockChannelAccountRepository) FindByID(ctx context.Context, id uuid.UUID) (*integration.ChannelAccount, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.ChannelAccount), args.Error(1)
}

func (m *MockChannelAccountRepository) FindActiveByPlatform(ctx context.Context, platform integration.PlatformCode) ([]integration.ChannelAccount, error) {
	args := m.Called(ctx, platform)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]integration.ChannelAccount), args.Error(1)
}

func (m *MockChannelAccountRepository) FindExpiring(ctx context.Context, before time.Time) ([]integration.ChannelAccount, error) {
	args := m.Called(ctx, before)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]integration.ChannelAccount), args.Error(1)
}

func (m *MockChannelAccountRepository) SaveTokens(ctx context.Context, id uuid.UUID, tokens *integration.TokenSet, refreshedAt time.Time) error {
	args := m.Called(ctx, id, tokens, refreshedAt)
	return args.Error(0)
}

func (m *MockChannelAccountRepository) RecordRefreshFailure(ctx context.Context, id uuid.UUID, message string, at time.Time) error {
	args := m.Called(ctx, id, message, at)
	return args.Error(0)
}

// MockListingStore is a mock implementation of integration.ListingStore
type MockListingStore struct {
	mock.Mock
}

func (m *MockListingStore) GetListing(ctx context.Context, id uuid.UUID) (*integration.Listing, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.Listing), args.Error(1)
}

func (m *MockListingStore) FindListingsByIDs(ctx context.Context, ids []uuid.UUID) ([]integration.Listing, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]integration.Listing), args.Error(1)
}

func (m *MockListingStore) FindListingByPlatformID(ctx context.Context, accountID uuid.UUID, platformProductID string) (*integration.Listing, error) {
	args := m.Called(ctx, accountID, platformProductID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.Listing), args.Error(1)
}

func (m *MockListingStore) UpsertListing(ctx context.Context, listing *integration.Listing) (bool, error) {
	args := m.Called(ctx, listing)
	return args.Bool(0), args.Error(1)
}

// MockConnectorProvider is a mock implementation of integration.ConnectorProvider
type MockConnectorProvider struct {
	mock.Mock
}

func (m *MockConnectorProvider) ForAccount(account *integration.ChannelAccount) (integration.Connector, error) {
	args := m.Called(account)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(integration.Connector), args.Error(1)
}

func (m *MockConnectorProvider) Invalidate(accountID uuid.UUID) {
	m.Called(accountID)
}

// MockConnector is a mock implementation of integration.Connector
type MockConnector struct {
	mock.Mock
}

func (m *MockConnector) Platform() integration.PlatformCode {
	args := m.Called()
	return args.Get(0).(integration.PlatformCode)
}

func (m *MockConnector) VerifySignature(rawBody []byte, signature string) bool {
	args := m.Called(rawBody, signature)
	return args.Bool(0)
}

func (m *MockConnector) DecodeEvent(envelope *integration.WebhookEnvelope) (integration.WebhookEvent, error) {
	args := m.Called(envelope)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(integration.WebhookEvent), args.Error(1)
}

func (m *MockConnector) GetProduct(ctx context.Context, platformProductID string) (*integration.Product, error) {
	args := m.Called(ctx, platformProductID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.Product), args.Error(1)
}

func (m *MockConnector) CreateProduct(ctx context.Context, product *integration.Product) (*integration.Product, error) {
	args := m.Called(ctx, product)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.Product), args.Error(1)
}

func (m *MockConnector) UpdateProduct(ctx context.Context, platformProductID string, product *integration.Product) (*integration.Product, error) {
	args := m.Called(ctx, platformProductID, product)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.Product), args.Error(1)
}

func (m *MockConnector) UpdateStock(ctx context.Context, platformProductID string, stock int) error {
	args := m.Called(ctx, platformProductID, stock)
	return args.Error(0)
}

func (m *MockConnector) UpdatePrice(ctx context.Context, platformProductID string, price decimal.Decimal, compareAt *decimal.Decimal) error {
	args := m.Called(ctx, platformProductID, price, compareAt)
	return args.Error(0)
}

func (m *MockConnector) ListOrders(ctx context.Context, filter integration.OrderFilter) ([]integration.Order, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]integration.Order), args.Error(1)
}

func (m *MockConnector) GetOrder(ctx context.Context, platformOrderID string) (*integration.Order, error) {
	args := m.Called(ctx, platformOrderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.Order), args.Error(1)
}

func (m *MockConnector) UpdateOrderStatus(ctx context.Context, platformOrderID string, update integration.OrderStatusUpdate) error {
	args := m.Called(ctx, platformOrderID, update)
	return args.Error(0)
}

func (m *MockConnector) HealthCheck(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// MockTokenRefresher is a mock implementation of integration.TokenRefresher
type MockTokenRefresher struct {
	mock.Mock
}

func (m *MockTokenRefresher) RefreshToken(ctx context.Context, account *integration.ChannelAccount) (*integration.TokenSet, error) {
	args := m.Called(ctx, account)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.TokenSet), args.Error(1)
}

// MockIdempotencyStore is a mock implementation of shared.IdempotencyStore
type MockIdempotencyStore struct {
	mock.Mock
}

func (m *MockIdempotencyStore) MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, key, ttl)
	return args.Bool(0), args.Error(1)
}

func (m *MockIdempotencyStore) IsProcessed(ctx context.Context, key string) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}

func (m *MockIdempotencyStore) Release(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *MockIdempotencyStore) Close() error {
	return m.Called().Error(0)
}

// countingNotifier records engine wake-ups
type countingNotifier struct {
	calls int
}

func (n *countingNotifier) Notify() {
	n.calls++
}

func newTestAccount(platform integration.PlatformCode) *integration.ChannelAccount {
	return &integration.ChannelAccount{
		ID:            uuid.New(),
		TenantID:      uuid.New(),
		Platform:      platform,
		ShopID:        "shop-1001",
		AppKey:        "app-key",
		AppSecret:     "app-secret",
		WebhookSecret: "hook-secret",
		AccessToken:   "access-token",
		RefreshToken:  "refresh-token",
		IsActive:      true,
	}
}
