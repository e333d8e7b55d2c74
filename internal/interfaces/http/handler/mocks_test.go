package handler

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	integrationapp "github.com/storefront/backend/internal/application/integration"
	"github.com/storefront/backend/internal/domain/integration"
)

// MockJobManager is a mock implementation of JobManager
type MockJobManager struct {
	mock.Mock
}

func (m *MockJobManager) Submit(ctx context.Context, req integrationapp.SubmitJobRequest) (*integration.Job, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.Job), args.Error(1)
}

func (m *MockJobManager) GetJob(ctx context.Context, id uuid.UUID) (*integrationapp.JobResponse, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integrationapp.JobResponse), args.Error(1)
}

func (m *MockJobManager) ListJobs(ctx context.Context, filter integration.JobFilter) ([]integrationapp.JobResponse, int64, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]integrationapp.JobResponse), args.Get(1).(int64), args.Error(2)
}

func (m *MockJobManager) GetItems(ctx context.Context, jobID uuid.UUID) ([]integrationapp.JobItemResponse, error) {
	args := m.Called(ctx, jobID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]integrationapp.JobItemResponse), args.Error(1)
}

func (m *MockJobManager) GetLogs(ctx context.Context, jobID uuid.UUID, limit int) ([]integrationapp.SyncLogResponse, error) {
	args := m.Called(ctx, jobID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]integrationapp.SyncLogResponse), args.Error(1)
}

func (m *MockJobManager) RetryJob(ctx context.Context, id uuid.UUID) (*integration.Job, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.Job), args.Error(1)
}

func (m *MockJobManager) CancelJob(ctx context.Context, id uuid.UUID) (*integration.Job, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.Job), args.Error(1)
}

// MockWebhookProcessor is a mock implementation of WebhookProcessor
type MockWebhookProcessor struct {
	mock.Mock
}

func (m *MockWebhookProcessor) HandleWebhook(ctx context.Context, d integrationapp.WebhookDelivery) (*integrationapp.WebhookResult, error) {
	args := m.Called(ctx, d)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integrationapp.WebhookResult), args.Error(1)
}

// MockStockReconciler is a mock implementation of StockReconciler
type MockStockReconciler struct {
	mock.Mock
}

func (m *MockStockReconciler) ReconcileStock(ctx context.Context, req integrationapp.StockBatchRequest) (*integrationapp.StockBatchResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integrationapp.StockBatchResult), args.Error(1)
}

// MockTokenRefreshTrigger is a mock implementation of TokenRefreshTrigger
type MockTokenRefreshTrigger struct {
	mock.Mock
}

func (m *MockTokenRefreshTrigger) RunNow(ctx context.Context) (integration.TokenRefreshSummary, error) {
	args := m.Called(ctx)
	return args.Get(0).(integration.TokenRefreshSummary), args.Error(1)
}

// MockAccountHealthChecker is a mock implementation of AccountHealthChecker
type MockAccountHealthChecker struct {
	mock.Mock
}

func (m *MockAccountHealthChecker) CheckHealth(ctx context.Context, id uuid.UUID) (*integrationapp.AccountHealthResponse, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integrationapp.AccountHealthResponse), args.Error(1)
}
