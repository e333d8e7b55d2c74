package integration

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/storefront/backend/internal/domain/integration"
)

type jobServiceFixture struct {
	jobs     *MockJobRepository
	logs     *MockSyncLogRepository
	accounts *MockChannelAccountRepository
	notifier *countingNotifier
	service  *JobService
}

func newJobServiceFixture() *jobServiceFixture {
	f := &jobServiceFixture{
		jobs:     new(MockJobRepository),
		logs:     new(MockSyncLogRepository),
		accounts: new(MockChannelAccountRepository),
		notifier: &countingNotifier{},
	}
	f.service = NewJobService(f.jobs, f.logs, f.accounts, f.notifier, newTestLogger())
	f.logs.On("Append", mock.Anything, mock.Anything).Return(nil).Maybe()
	return f
}

func stockSpecs(ids ...string) []integration.JobItemSpec {
	specs := make([]integration.JobItemSpec, 0, len(ids))
	for _, id := range ids {
		specs = append(specs, integration.JobItemSpec{ItemType: integration.ItemTypeStock, ItemID: id})
	}
	return specs
}

func TestJobService_Submit(t *testing.T) {
	f := newJobServiceFixture()
	account := newTestAccount(integration.PlatformCodeTaobao)
	account.MaxRetries = 5

	f.accounts.On("FindByID", mock.Anything, account.ID).Return(account, nil)
	f.jobs.On("Create", mock.Anything, mock.AnythingOfType("*integration.Job"), mock.AnythingOfType("[]*integration.JobItem")).
		Return(nil)

	job, err := f.service.Submit(context.Background(), SubmitJobRequest{
		Type:             integration.JobTypePush,
		Channel:          integration.PlatformCodeTaobao,
		ChannelAccountID: &account.ID,
		Items:            stockSpecs("a", "b"),
	})

	require.NoError(t, err)
	assert.Equal(t, integration.JobStatusPending, job.Status)
	assert.Equal(t, 2, job.TotalItems)
	assert.Equal(t, 1, f.notifier.calls)

	items := f.jobs.Calls[0].Arguments.Get(2).([]*integration.JobItem)
	require.Len(t, items, 2)
	assert.Equal(t, 5, items[0].MaxAttempts)
	f.logs.AssertCalled(t, "Append", mock.Anything, mock.MatchedBy(func(e *integration.SyncLog) bool {
		return e.Message == "Job submitted" && *e.JobID == job.ID
	}))
}

func TestJobService_Submit_MaxAttemptsOverride(t *testing.T) {
	f := newJobServiceFixture()
	account := newTestAccount(integration.PlatformCodeDouyin)
	f.accounts.On("FindActiveByPlatform", mock.Anything, integration.PlatformCodeDouyin).
		Return([]integration.ChannelAccount{*account}, nil)
	f.jobs.On("Create", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	_, err := f.service.Submit(context.Background(), SubmitJobRequest{
		Type:        integration.JobTypePull,
		Channel:     integration.PlatformCodeDouyin,
		Items:       stockSpecs("p-1"),
		MaxAttempts: 7,
	})

	require.NoError(t, err)
	items := f.jobs.Calls[0].Arguments.Get(2).([]*integration.JobItem)
	assert.Equal(t, 7, items[0].MaxAttempts)
}

func TestJobService_Submit_Validation(t *testing.T) {
	account := newTestAccount(integration.PlatformCodeTaobao)
	inactive := newTestAccount(integration.PlatformCodeTaobao)
	inactive.IsActive = false
	missing := uuid.New()

	tests := []struct {
		name    string
		req     SubmitJobRequest
		wantErr error
	}{
		{
			name:    "invalid type",
			req:     SubmitJobRequest{Type: "mirror", Channel: integration.PlatformCodeTaobao, Items: stockSpecs("a")},
			wantErr: integration.ErrInvalidJobType,
		},
		{
			name:    "no items",
			req:     SubmitJobRequest{Type: integration.JobTypePull, Channel: integration.PlatformCodeTaobao},
			wantErr: integration.ErrJobHasNoItems,
		},
		{
			name:    "unknown account",
			req:     SubmitJobRequest{Type: integration.JobTypePull, Channel: integration.PlatformCodeTaobao, ChannelAccountID: &missing, Items: stockSpecs("a")},
			wantErr: ErrAccountNotFound,
		},
		{
			name:    "inactive account",
			req:     SubmitJobRequest{Type: integration.JobTypePull, Channel: integration.PlatformCodeTaobao, ChannelAccountID: &inactive.ID, Items: stockSpecs("a")},
			wantErr: ErrAccountInactive,
		},
		{
			name:    "channel mismatch",
			req:     SubmitJobRequest{Type: integration.JobTypePull, Channel: integration.PlatformCodeKuaishou, ChannelAccountID: &account.ID, Items: stockSpecs("a")},
			wantErr: ErrChannelMismatch,
		},
		{
			name:    "max attempts out of range",
			req:     SubmitJobRequest{Type: integration.JobTypePull, Channel: integration.PlatformCodeTaobao, Items: stockSpecs("a"), MaxAttempts: 11},
			wantErr: integration.ErrInvalidMaxAttempts,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newJobServiceFixture()
			f.accounts.On("FindByID", mock.Anything, account.ID).Return(account, nil)
			f.accounts.On("FindByID", mock.Anything, inactive.ID).Return(inactive, nil)
			f.accounts.On("FindByID", mock.Anything, missing).Return(nil, integration.ErrAccountNotFound)
			f.accounts.On("FindActiveByPlatform", mock.Anything, integration.PlatformCodeTaobao).
				Return([]integration.ChannelAccount{*account}, nil).Maybe()

			job, err := f.service.Submit(context.Background(), tt.req)

			assert.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, job)
			f.jobs.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
			assert.Zero(t, f.notifier.calls)
		})
	}
}

func TestJobService_Submit_ResolvesSoleAccount(t *testing.T) {
	f := newJobServiceFixture()
	account := newTestAccount(integration.PlatformCodeTaobao)
	account.MaxRetries = 4
	f.accounts.On("FindActiveByPlatform", mock.Anything, integration.PlatformCodeTaobao).
		Return([]integration.ChannelAccount{*account}, nil)
	f.jobs.On("Create", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	job, err := f.service.Submit(context.Background(), SubmitJobRequest{
		Type:    integration.JobTypePull,
		Channel: integration.PlatformCodeTaobao,
		Items:   stockSpecs("a"),
	})

	require.NoError(t, err)
	require.NotNil(t, job.ChannelAccountID)
	assert.Equal(t, account.ID, *job.ChannelAccountID)
	items := f.jobs.Calls[0].Arguments.Get(2).([]*integration.JobItem)
	assert.Equal(t, 4, items[0].MaxAttempts)
	assert.Equal(t, 1, f.notifier.calls)
}

func TestJobService_Submit_AccountRequired(t *testing.T) {
	tests := []struct {
		name   string
		active []integration.ChannelAccount
	}{
		{name: "no active account", active: []integration.ChannelAccount{}},
		{name: "several active accounts", active: []integration.ChannelAccount{
			*newTestAccount(integration.PlatformCodeTaobao),
			*newTestAccount(integration.PlatformCodeTaobao),
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newJobServiceFixture()
			f.accounts.On("FindActiveByPlatform", mock.Anything, integration.PlatformCodeTaobao).Return(tt.active, nil)

			job, err := f.service.Submit(context.Background(), SubmitJobRequest{
				Type:    integration.JobTypePull,
				Channel: integration.PlatformCodeTaobao,
				Items:   stockSpecs("a"),
			})

			assert.ErrorIs(t, err, ErrAccountRequired)
			assert.Nil(t, job)
			f.jobs.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
			assert.Zero(t, f.notifier.calls)
		})
	}
}

func TestJobService_Submit_StoreError(t *testing.T) {
	f := newJobServiceFixture()
	account := newTestAccount(integration.PlatformCodeTaobao)
	f.accounts.On("FindActiveByPlatform", mock.Anything, integration.PlatformCodeTaobao).
		Return([]integration.ChannelAccount{*account}, nil)
	f.jobs.On("Create", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("connection refused"))

	_, err := f.service.Submit(context.Background(), SubmitJobRequest{
		Type:    integration.JobTypePull,
		Channel: integration.PlatformCodeTaobao,
		Items:   stockSpecs("a"),
	})

	assert.ErrorContains(t, err, "connection refused")
	assert.Zero(t, f.notifier.calls)
}

func TestJobService_GetJob(t *testing.T) {
	f := newJobServiceFixture()
	job := &integration.Job{ID: uuid.New(), Type: integration.JobTypePull, Status: integration.JobStatusRunning, TotalItems: 3}
	f.jobs.On("FindByID", mock.Anything, job.ID).Return(job, nil)
	f.jobs.On("CountItemsByStatus", mock.Anything, job.ID).Return(integration.ItemStatusCounts{
		integration.ItemStatusCompleted: 2,
		integration.ItemStatusPending:   1,
	}, nil)

	resp, err := f.service.GetJob(context.Background(), job.ID)

	require.NoError(t, err)
	assert.Equal(t, job.ID, resp.ID)
	assert.Equal(t, map[string]int{"completed": 2, "pending": 1}, resp.ItemCounts)
}

func TestJobService_GetJob_NotFound(t *testing.T) {
	f := newJobServiceFixture()
	id := uuid.New()
	f.jobs.On("FindByID", mock.Anything, id).Return(nil, integration.ErrJobNotFound)

	_, err := f.service.GetJob(context.Background(), id)

	assert.ErrorIs(t, err, integration.ErrJobNotFound)
}

func TestJobService_ListJobs(t *testing.T) {
	f := newJobServiceFixture()
	filter := integration.JobFilter{Status: integration.JobStatusFailed, Page: 2, PageSize: 10}
	jobs := []integration.Job{{ID: uuid.New()}, {ID: uuid.New()}}
	f.jobs.On("List", mock.Anything, filter).Return(jobs, int64(12), nil)

	out, total, err := f.service.ListJobs(context.Background(), filter)

	require.NoError(t, err)
	assert.Equal(t, int64(12), total)
	require.Len(t, out, 2)
	assert.Equal(t, jobs[1].ID, out[1].ID)
}

func TestJobService_GetItems(t *testing.T) {
	f := newJobServiceFixture()
	jobID := uuid.New()
	f.jobs.On("FindByID", mock.Anything, jobID).Return(&integration.Job{ID: jobID}, nil)
	f.jobs.On("FindItems", mock.Anything, jobID).Return([]integration.JobItem{
		{ID: uuid.New(), JobID: jobID, ItemType: integration.ItemTypeOrder, ItemID: "O-1", Status: integration.ItemStatusFailed, Attempts: 3},
	}, nil)

	items, err := f.service.GetItems(context.Background(), jobID)

	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "O-1", items[0].ItemID)
	assert.Equal(t, 3, items[0].Attempts)
}

func TestJobService_GetLogs_LimitClamped(t *testing.T) {
	f := newJobServiceFixture()
	jobID := uuid.New()
	f.jobs.On("FindByID", mock.Anything, jobID).Return(&integration.Job{ID: jobID}, nil)
	f.logs.On("ListByJob", mock.Anything, jobID, MaxLogLimit).Return([]integration.SyncLog{
		{ID: uuid.New(), JobID: &jobID, Level: integration.LogLevelError, Message: "Item failed"},
	}, nil)

	entries, err := f.service.GetLogs(context.Background(), jobID, 50_000)

	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, integration.LogLevelError, entries[0].Level)
}

func TestJobService_RetryJob(t *testing.T) {
	f := newJobServiceFixture()
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	f.service.now = func() time.Time { return now }
	jobID := uuid.New()

	f.jobs.On("ResetFailedItems", mock.Anything, jobID, now).Return(2, nil)
	f.jobs.On("FindByID", mock.Anything, jobID).Return(&integration.Job{ID: jobID, Status: integration.JobStatusPending}, nil)

	job, err := f.service.RetryJob(context.Background(), jobID)

	require.NoError(t, err)
	assert.Equal(t, integration.JobStatusPending, job.Status)
	assert.Equal(t, 1, f.notifier.calls)
	f.logs.AssertCalled(t, "Append", mock.Anything, mock.MatchedBy(func(e *integration.SyncLog) bool {
		return e.Message == "Job retry requested" && e.Context["resetItems"] == 2
	}))
}

func TestJobService_RetryJob_NotRetryable(t *testing.T) {
	f := newJobServiceFixture()
	jobID := uuid.New()
	f.jobs.On("ResetFailedItems", mock.Anything, jobID, mock.Anything).Return(0, integration.ErrJobNotRetryable)

	_, err := f.service.RetryJob(context.Background(), jobID)

	assert.ErrorIs(t, err, integration.ErrJobNotRetryable)
	assert.Zero(t, f.notifier.calls)
}

func TestJobService_CancelJob(t *testing.T) {
	f := newJobServiceFixture()
	jobID := uuid.New()
	f.jobs.On("Cancel", mock.Anything, jobID, mock.Anything).Return(nil)
	f.jobs.On("FindByID", mock.Anything, jobID).Return(&integration.Job{ID: jobID, Status: integration.JobStatusCancelled}, nil)

	job, err := f.service.CancelJob(context.Background(), jobID)

	require.NoError(t, err)
	assert.Equal(t, integration.JobStatusCancelled, job.Status)
}

func TestJobService_CancelJob_NotPending(t *testing.T) {
	f := newJobServiceFixture()
	jobID := uuid.New()
	f.jobs.On("Cancel", mock.Anything, jobID, mock.Anything).Return(integration.ErrJobNotCancellable)

	_, err := f.service.CancelJob(context.Background(), jobID)

	assert.ErrorIs(t, err, integration.ErrJobNotCancellable)
	f.jobs.AssertNotCalled(t, "FindByID", mock.Anything, jobID)
}

func TestJobService_NilNotifier(t *testing.T) {
	jobs := new(MockJobRepository)
	logs := new(MockSyncLogRepository)
	logs.On("Append", mock.Anything, mock.Anything).Return(errors.New("log table missing"))
	jobs.On("Create", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	service := NewJobService(jobs, logs, new(MockChannelAccountRepository), nil, newTestLogger())

	_, err := service.Submit(context.Background(), SubmitJobRequest{
		Type:    integration.JobTypePull,
		Channel: integration.PlatformCodeTaobao,
		Items:   stockSpecs("a"),
	})

	assert.NoError(t, err)
}
