package integration

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/storefront/backend/internal/domain/integration"
	"github.com/storefront/backend/internal/domain/shared"
)

// Default limits for inspection endpoints
const (
	DefaultLogLimit = 200
	MaxLogLimit     = 1000
)

// Errors surfaced to API callers
var (
	ErrAccountNotFound = shared.NewDomainError("NOT_FOUND", "Channel account not found")
	ErrAccountInactive = shared.NewDomainError("INVALID_STATE", "Channel account is inactive")
	ErrChannelMismatch = shared.NewDomainError("INVALID_INPUT", "Channel does not match the channel account's platform")
	ErrAccountRequired = shared.NewDomainError("INVALID_INPUT", "Channel account id is required unless the channel has exactly one active account")
)

// JobNotifier wakes the job engine after new work is stored
type JobNotifier interface {
	Notify()
}

// JobService submits and inspects sync jobs
type JobService struct {
	jobs     integration.JobRepository
	logs     integration.SyncLogRepository
	accounts integration.ChannelAccountRepository
	notifier JobNotifier
	logger   *zap.Logger
	now      func() time.Time
}

// NewJobService creates a new JobService. notifier may be nil when no
// engine runs in this process.
func NewJobService(
	jobs integration.JobRepository,
	logs integration.SyncLogRepository,
	accounts integration.ChannelAccountRepository,
	notifier JobNotifier,
	logger *zap.Logger,
) *JobService {
	return &JobService{
		jobs:     jobs,
		logs:     logs,
		accounts: accounts,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
}

// ---------------------------------------------------------------------------
// Submission
// ---------------------------------------------------------------------------

// Submit validates and stores a job with its items, then wakes the engine.
// Without a channel account id the channel's only active account is used.
func (s *JobService) Submit(ctx context.Context, req SubmitJobRequest) (*integration.Job, error) {
	var account *integration.ChannelAccount
	if req.ChannelAccountID != nil {
		var err error
		account, err = s.activeAccount(ctx, *req.ChannelAccountID)
		if err != nil {
			return nil, err
		}
		if account.Platform != req.Channel {
			return nil, ErrChannelMismatch
		}
	} else {
		var err error
		account, err = s.soleAccount(ctx, req.Channel)
		if err != nil {
			return nil, err
		}
		req.ChannelAccountID = &account.ID
	}

	job, err := s.create(ctx, req, account)
	if err != nil {
		return nil, err
	}
	s.notify()
	return job, nil
}

// submitForAccount stores a job generated internally for a known account.
// The caller notifies the engine once all of its jobs are stored.
func (s *JobService) submitForAccount(
	ctx context.Context,
	account *integration.ChannelAccount,
	jobType integration.JobType,
	specs []integration.JobItemSpec,
	metadata integration.Metadata,
) (*integration.Job, error) {
	return s.create(ctx, SubmitJobRequest{
		Type:             jobType,
		Channel:          account.Platform,
		ChannelAccountID: &account.ID,
		Items:            specs,
		Metadata:         metadata,
	}, account)
}

func (s *JobService) create(ctx context.Context, req SubmitJobRequest, account *integration.ChannelAccount) (*integration.Job, error) {
	maxAttempts := req.MaxAttempts
	if maxAttempts == 0 && account != nil {
		maxAttempts = account.ItemMaxAttempts()
	}

	job, items, err := integration.NewJob(req.Type, req.Channel, req.ChannelAccountID, req.Items, maxAttempts, req.Metadata)
	if err != nil {
		return nil, err
	}
	if err := s.jobs.Create(ctx, job, items); err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	s.logger.Info("Job submitted",
		zap.String("job_id", job.ID.String()),
		zap.String("type", string(job.Type)),
		zap.String("channel", job.Channel.String()),
		zap.Int("items", job.TotalItems),
	)
	s.appendLog(ctx, integration.NewSyncLog(&job.ID, integration.LogLevelInfo, "Job submitted", integration.Metadata{
		"type":    string(job.Type),
		"channel": job.Channel.String(),
		"items":   job.TotalItems,
	}))
	return job, nil
}

// ---------------------------------------------------------------------------
// Inspection
// ---------------------------------------------------------------------------

// GetJob returns a job with its per-status item counts
func (s *JobService) GetJob(ctx context.Context, id uuid.UUID) (*JobResponse, error) {
	job, err := s.jobs.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	counts, err := s.jobs.CountItemsByStatus(ctx, id)
	if err != nil {
		return nil, err
	}

	resp := ToJobResponse(job)
	resp.ItemCounts = make(map[string]int, len(counts))
	for status, n := range counts {
		resp.ItemCounts[string(status)] = n
	}
	return &resp, nil
}

// ListJobs returns a page of jobs and the total matching the filter
func (s *JobService) ListJobs(ctx context.Context, filter integration.JobFilter) ([]JobResponse, int64, error) {
	jobs, total, err := s.jobs.List(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	out := make([]JobResponse, 0, len(jobs))
	for i := range jobs {
		out = append(out, ToJobResponse(&jobs[i]))
	}
	return out, total, nil
}

// GetItems returns the items of a job
func (s *JobService) GetItems(ctx context.Context, jobID uuid.UUID) ([]JobItemResponse, error) {
	if _, err := s.jobs.FindByID(ctx, jobID); err != nil {
		return nil, err
	}
	items, err := s.jobs.FindItems(ctx, jobID)
	if err != nil {
		return nil, err
	}
	out := make([]JobItemResponse, 0, len(items))
	for i := range items {
		out = append(out, ToJobItemResponse(&items[i]))
	}
	return out, nil
}

// GetLogs returns a job's sync log, oldest first
func (s *JobService) GetLogs(ctx context.Context, jobID uuid.UUID, limit int) ([]SyncLogResponse, error) {
	if _, err := s.jobs.FindByID(ctx, jobID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultLogLimit
	}
	limit = min(limit, MaxLogLimit)

	entries, err := s.logs.ListByJob(ctx, jobID, limit)
	if err != nil {
		return nil, err
	}
	out := make([]SyncLogResponse, 0, len(entries))
	for i := range entries {
		out = append(out, ToSyncLogResponse(&entries[i]))
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// Control
// ---------------------------------------------------------------------------

// RetryJob resets a job's failed items and the job to pending
func (s *JobService) RetryJob(ctx context.Context, id uuid.UUID) (*integration.Job, error) {
	reset, err := s.jobs.ResetFailedItems(ctx, id, s.now())
	if err != nil {
		return nil, err
	}

	s.logger.Info("Job retry requested",
		zap.String("job_id", id.String()),
		zap.Int("reset_items", reset),
	)
	s.appendLog(ctx, integration.NewSyncLog(&id, integration.LogLevelInfo, "Job retry requested", integration.Metadata{
		"resetItems": reset,
	}))
	s.notify()

	return s.jobs.FindByID(ctx, id)
}

// CancelJob cancels a pending job
func (s *JobService) CancelJob(ctx context.Context, id uuid.UUID) (*integration.Job, error) {
	if err := s.jobs.Cancel(ctx, id, s.now()); err != nil {
		return nil, err
	}

	s.logger.Info("Job cancelled", zap.String("job_id", id.String()))
	s.appendLog(ctx, integration.NewSyncLog(&id, integration.LogLevelInfo, "Job cancelled", nil))

	return s.jobs.FindByID(ctx, id)
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func (s *JobService) activeAccount(ctx context.Context, id uuid.UUID) (*integration.ChannelAccount, error) {
	account, err := s.accounts.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, integration.ErrAccountNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	if !account.IsActive {
		return nil, ErrAccountInactive
	}
	return account, nil
}

func (s *JobService) soleAccount(ctx context.Context, channel integration.PlatformCode) (*integration.ChannelAccount, error) {
	if !channel.IsValid() {
		return nil, integration.ErrInvalidChannel
	}
	accounts, err := s.accounts.FindActiveByPlatform(ctx, channel)
	if err != nil {
		return nil, err
	}
	if len(accounts) != 1 {
		s.logger.Info("Job submission without channel account rejected",
			zap.String("channel", channel.String()),
			zap.Int("active_accounts", len(accounts)),
		)
		return nil, ErrAccountRequired
	}
	return &accounts[0], nil
}

func (s *JobService) notify() {
	if s.notifier != nil {
		s.notifier.Notify()
	}
}

func (s *JobService) appendLog(ctx context.Context, entry *integration.SyncLog) {
	if err := s.logs.Append(ctx, entry); err != nil {
		s.logger.Warn("Failed to append sync log", zap.String("message", entry.Message), zap.Error(err))
	}
}
