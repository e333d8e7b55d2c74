package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/storefront/backend/internal/domain/integration"
	"github.com/storefront/backend/internal/infrastructure/config"
	"github.com/storefront/backend/internal/infrastructure/logger"
	"github.com/storefront/backend/internal/infrastructure/telemetry"
)

// EngineConfig holds job engine configuration
type EngineConfig struct {
	// Workers is the number of jobs processed concurrently
	Workers int
	// QueueSize bounds the channel feeding the workers
	QueueSize int
	// BatchSize is the number of jobs claimed, and items claimed per job, in one round
	BatchSize int
	// ItemConcurrency is the number of items of one job processed concurrently
	ItemConcurrency int
	// PollInterval is how often the store is polled for work
	PollInterval time.Duration
	// StaleItemAfter is the lease after which a processing item is considered abandoned
	StaleItemAfter time.Duration
	// RetryPolicy is the backoff between item attempts
	RetryPolicy integration.RetryPolicy
}

// DefaultEngineConfig returns default configuration
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		Workers:         4,
		QueueSize:       100,
		BatchSize:       10,
		ItemConcurrency: 5,
		PollInterval:    2 * time.Second,
		StaleItemAfter:  10 * time.Minute,
		RetryPolicy:     integration.DefaultRetryPolicy(),
	}
}

// EngineConfigFrom maps the engine config section, keeping defaults for
// unset values
func EngineConfigFrom(cfg config.EngineConfig) EngineConfig {
	c := DefaultEngineConfig()
	if cfg.Workers > 0 {
		c.Workers = cfg.Workers
	}
	if cfg.QueueSize > 0 {
		c.QueueSize = cfg.QueueSize
	}
	if cfg.BatchSize > 0 {
		c.BatchSize = cfg.BatchSize
	}
	if cfg.ItemConcurrency > 0 {
		c.ItemConcurrency = cfg.ItemConcurrency
	}
	if cfg.PollInterval > 0 {
		c.PollInterval = cfg.PollInterval
	}
	if cfg.StaleItemAfter > 0 {
		c.StaleItemAfter = cfg.StaleItemAfter
	}
	if cfg.RetryBase > 0 {
		c.RetryPolicy.Base = cfg.RetryBase
	}
	if cfg.RetryCap > 0 {
		c.RetryPolicy.Cap = cfg.RetryCap
	}
	return c
}

// Validate validates the configuration
func (c *EngineConfig) Validate() error {
	if c.Workers <= 0 || c.ItemConcurrency <= 0 || c.BatchSize <= 0 {
		return ErrInvalidConfig
	}
	if c.QueueSize < c.BatchSize {
		return ErrInvalidConfig
	}
	if c.PollInterval <= 0 || c.StaleItemAfter <= 0 {
		return ErrInvalidConfig
	}
	return nil
}

// Engine executes pending jobs from the job store with a fixed worker pool.
//
// A poll loop claims pending jobs and finds running jobs with due retry
// items, and hands their ids to the workers through a bounded queue. A job
// is queued at most once per instance at a time; across instances the store's
// row locks keep claims disjoint.
type Engine struct {
	config     EngineConfig
	jobs       integration.JobRepository
	logs       integration.SyncLogRepository
	accounts   integration.ChannelAccountRepository
	connectors integration.ConnectorProvider
	executor   ItemExecutor
	metrics    *Metrics
	logger     *zap.Logger
	now        func() time.Time

	queue     chan uuid.UUID
	wake      chan struct{}
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool

	inFlightMu sync.Mutex
	inFlight   map[uuid.UUID]struct{}
}

// NewEngine creates a new job engine
func NewEngine(
	config EngineConfig,
	jobs integration.JobRepository,
	logs integration.SyncLogRepository,
	accounts integration.ChannelAccountRepository,
	connectors integration.ConnectorProvider,
	executor ItemExecutor,
	metrics *Metrics,
	logger *zap.Logger,
) (*Engine, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &Engine{
		config:     config,
		jobs:       jobs,
		logs:       logs,
		accounts:   accounts,
		connectors: connectors,
		executor:   executor,
		metrics:    metrics,
		logger:     logger,
		now:        time.Now,
		queue:      make(chan uuid.UUID, config.QueueSize),
		wake:       make(chan struct{}, 1),
		inFlight:   make(map[uuid.UUID]struct{}),
	}, nil
}

// Start starts the workers and the poll loop
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.isRunning {
		e.mu.Unlock()
		return nil
	}
	e.isRunning = true
	e.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	e.cancel = cancel

	for i := 0; i < e.config.Workers; i++ {
		e.wg.Add(1)
		go e.worker(ctx, i)
	}

	e.wg.Add(1)
	go e.pollLoop(ctx)

	e.logger.Info("Job engine started",
		zap.Int("workers", e.config.Workers),
		zap.Int("item_concurrency", e.config.ItemConcurrency),
		zap.Duration("poll_interval", e.config.PollInterval),
	)

	return nil
}

// Stop cancels in-flight work and waits for the workers to return. Items
// interrupted mid-attempt stay processing until their lease expires.
func (e *Engine) Stop(ctx context.Context) error {
	e.mu.Lock()
	if !e.isRunning {
		e.mu.Unlock()
		return ErrEngineNotRunning
	}
	e.isRunning = false
	e.mu.Unlock()

	if e.cancel != nil {
		e.cancel()
	}

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		e.logger.Info("Job engine stopped gracefully")
		return nil
	case <-ctx.Done():
		e.logger.Warn("Job engine stop timed out")
		return ctx.Err()
	}
}

// Notify wakes the poll loop so newly submitted jobs start without waiting
// for the next tick. It never blocks.
func (e *Engine) Notify() {
	select {
	case e.wake <- struct{}{}:
	default:
	}
}

// pollLoop polls on every tick and on every notification
func (e *Engine) pollLoop(ctx context.Context) {
	defer e.wg.Done()

	ticker := time.NewTicker(e.config.PollInterval)
	defer ticker.Stop()

	e.poll(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.poll(ctx)
		case <-e.wake:
			e.poll(ctx)
		}
	}
}

// poll runs one round of recovery and claiming and returns the number of
// jobs queued
func (e *Engine) poll(ctx context.Context) int {
	now := e.now()

	if recovered, err := e.jobs.RecoverStaleItems(ctx, now.Add(-e.config.StaleItemAfter)); err != nil {
		e.logger.Error("Failed to recover stale items", zap.Error(err))
	} else if recovered > 0 {
		e.logger.Warn("Recovered stale job items", zap.Int64("count", recovered))
	}

	if completed, err := e.jobs.CompleteFinishedJobs(ctx, now); err != nil {
		e.logger.Error("Failed to complete finished jobs", zap.Error(err))
	} else if completed > 0 {
		e.logger.Info("Completed finished jobs", zap.Int64("count", completed))
	}

	queued := 0

	claimed, err := e.jobs.ClaimPendingJobs(ctx, e.config.BatchSize)
	if err != nil {
		e.logger.Error("Failed to claim pending jobs", zap.Error(err))
	}
	e.metrics.jobsClaimedAdd(len(claimed))
	for i := range claimed {
		e.logger.Info("Job claimed",
			zap.String("job_id", claimed[i].ID.String()),
			zap.String("type", string(claimed[i].Type)),
			zap.String("channel", claimed[i].Channel.String()),
			zap.Int("total_items", claimed[i].TotalItems),
		)
		if e.enqueue(claimed[i].ID) {
			queued++
		}
	}

	due, err := e.jobs.FindJobsWithDueItems(ctx, now, e.config.BatchSize)
	if err != nil {
		e.logger.Error("Failed to find jobs with due items", zap.Error(err))
	}
	for i := range due {
		if e.enqueue(due[i].ID) {
			queued++
		}
	}

	return queued
}

// enqueue hands a job to the workers unless it is already queued or running
// here. A full queue drops the job; its due items bring it back next round.
func (e *Engine) enqueue(jobID uuid.UUID) bool {
	e.inFlightMu.Lock()
	if _, ok := e.inFlight[jobID]; ok {
		e.inFlightMu.Unlock()
		return false
	}
	e.inFlight[jobID] = struct{}{}
	e.inFlightMu.Unlock()

	select {
	case e.queue <- jobID:
		e.metrics.setQueueDepth(len(e.queue))
		return true
	default:
		e.release(jobID)
		e.logger.Warn("Job queue is full, deferring job", zap.String("job_id", jobID.String()))
		return false
	}
}

func (e *Engine) release(jobID uuid.UUID) {
	e.inFlightMu.Lock()
	delete(e.inFlight, jobID)
	e.inFlightMu.Unlock()
}

// worker processes jobs from the queue
func (e *Engine) worker(ctx context.Context, workerID int) {
	defer e.wg.Done()

	e.logger.Debug("Engine worker started", zap.Int("worker_id", workerID))

	for {
		select {
		case <-ctx.Done():
			e.logger.Debug("Engine worker stopping", zap.Int("worker_id", workerID))
			return
		case jobID := <-e.queue:
			e.metrics.setQueueDepth(len(e.queue))
			e.processJob(ctx, jobID)
			e.release(jobID)
		}
	}
}

// processJob drains the due items of a running job and completes it once
// every item is terminal
func (e *Engine) processJob(ctx context.Context, jobID uuid.UUID) {
	job, err := e.jobs.FindByID(ctx, jobID)
	if err != nil {
		e.logger.Error("Failed to load job", zap.String("job_id", jobID.String()), zap.Error(err))
		return
	}
	if job.Status != integration.JobStatusRunning {
		return
	}

	ctx, span := telemetry.StartSpan(ctx, "sync.job.process",
		telemetry.WithAttribute(telemetry.SpanAttrJobID, job.ID),
		telemetry.WithAttribute(telemetry.SpanAttrJobType, string(job.Type)),
		telemetry.WithAttribute(telemetry.SpanAttrChannel, job.Channel),
	)
	defer span.End()

	target, err := e.resolveTarget(ctx, job)
	if err != nil {
		e.failJob(ctx, job, err)
		return
	}

	for ctx.Err() == nil {
		items, err := e.jobs.ClaimDueItems(ctx, job.ID, e.now(), e.config.BatchSize)
		if err != nil {
			e.failJob(ctx, job, fmt.Errorf("claim items: %w", err))
			return
		}
		if len(items) == 0 {
			break
		}
		if err := e.processItems(ctx, job, items, target); err != nil {
			e.failJob(ctx, job, err)
			return
		}
	}
	if ctx.Err() != nil {
		return
	}

	completed, err := e.jobs.CompleteIfFinished(ctx, job.ID, e.now())
	if err != nil {
		e.failJob(ctx, job, fmt.Errorf("complete job: %w", err))
		return
	}
	if completed {
		e.logger.Info("Job completed",
			zap.String("job_id", job.ID.String()),
			zap.String("type", string(job.Type)),
			zap.String("channel", job.Channel.String()),
		)
		e.appendLog(ctx, integration.NewSyncLog(&job.ID, integration.LogLevelInfo, "Job completed", nil))
	}
}

// resolveTarget loads the job's account and its connector
func (e *Engine) resolveTarget(ctx context.Context, job *integration.Job) (Target, error) {
	if job.ChannelAccountID == nil {
		return Target{}, fmt.Errorf("%w: job has no channel account", integration.ErrAccountNotFound)
	}
	account, err := e.accounts.FindByID(ctx, *job.ChannelAccountID)
	if err != nil {
		return Target{}, fmt.Errorf("load channel account: %w", err)
	}
	if account.Platform != job.Channel {
		return Target{}, fmt.Errorf("%w: account %s is %s, job channel is %s",
			integration.ErrPlatformNotSupported, account.ID, account.Platform, job.Channel)
	}
	connector, err := e.connectors.ForAccount(account)
	if err != nil {
		return Target{}, err
	}
	return Target{Account: account, Connector: connector}, nil
}

// processItems runs a batch of claimed items with bounded concurrency. It
// returns the first job store error.
func (e *Engine) processItems(ctx context.Context, job *integration.Job, items []*integration.JobItem, target Target) error {
	sem := make(chan struct{}, e.config.ItemConcurrency)
	var (
		wg       sync.WaitGroup
		errMu    sync.Mutex
		firstErr error
	)

	for _, item := range items {
		sem <- struct{}{}
		wg.Add(1)
		go func(item *integration.JobItem) {
			defer func() {
				<-sem
				wg.Done()
			}()
			if err := e.processItem(ctx, job, item, target); err != nil {
				errMu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				errMu.Unlock()
			}
		}(item)
	}
	wg.Wait()

	return firstErr
}

// processItem runs one attempt and records its outcome
func (e *Engine) processItem(ctx context.Context, job *integration.Job, item *integration.JobItem, target Target) error {
	ctx, span := telemetry.StartSpan(ctx, "sync.item.execute",
		telemetry.WithAttribute(telemetry.SpanAttrItemID, item.ItemID),
		telemetry.WithAttribute(telemetry.SpanAttrItemType, string(item.ItemType)),
		telemetry.WithAttribute(telemetry.SpanAttrAttempt, item.Attempts+1),
	)
	defer span.End()

	started := time.Now()
	outcome, execErr := e.executor.Execute(ctx, job, item, target)
	if ctx.Err() != nil {
		// Shutting down. The lease returns the item to pending.
		return nil
	}

	now := e.now()
	fields := append(logger.JobFields(job.ID.String(), item.ItemID, item.Attempts+1),
		zap.String("item_type", string(item.ItemType)),
		zap.String("platform", job.Channel.String()),
	)

	var (
		terminal bool
		result   string
		entry    *integration.SyncLog
	)
	if execErr == nil {
		if err := item.MarkCompleted(now); err != nil {
			return err
		}
		terminal = true
		result = itemResultCompleted
		telemetry.SetAttributes(span, "sync.direction", string(outcome.Direction), "sync.applied", outcome.Applied)
		entry = integration.NewSyncLog(&job.ID, integration.LogLevelInfo, "Item completed", integration.Metadata{
			"direction": string(outcome.Direction),
			"applied":   outcome.Applied,
		})
	} else {
		code, retryable := classifyItemError(execErr)
		telemetry.RecordError(span, execErr)
		var err error
		terminal, err = item.RecordFailure(execErr.Error(), retryable, e.config.RetryPolicy, now)
		if err != nil {
			return err
		}

		level := integration.LogLevelWarning
		message := "Item attempt failed, retry scheduled"
		result = itemResultRetry
		if terminal {
			level = integration.LogLevelError
			message = "Item failed"
			result = itemResultFailed
		}
		details := integration.Metadata{
			"code":      code,
			"error":     execErr.Error(),
			"retryable": retryable,
		}
		if item.NextRetryAt != nil {
			details["nextRetryAt"] = item.NextRetryAt.UTC().Format(time.RFC3339)
		}
		entry = integration.NewSyncLog(&job.ID, level, message, details)

		e.logger.Warn(message, append(fields,
			zap.Int("max_attempts", item.MaxAttempts),
			zap.String("code", code),
			zap.Error(execErr),
		)...)
	}

	if err := e.jobs.SaveItemOutcome(ctx, item, terminal); err != nil {
		return fmt.Errorf("save item %s: %w", item.ID, err)
	}

	e.metrics.observeItem(string(job.Type), string(item.ItemType), result, time.Since(started))
	e.appendLog(ctx, entry.ForItem(item))
	e.logger.Debug("Item processed", append(fields, zap.String("result", result))...)
	return nil
}

// failJob marks a job failed after an engine-level error. Cancellation is
// not a failure.
func (e *Engine) failJob(ctx context.Context, job *integration.Job, cause error) {
	if ctx.Err() != nil {
		return
	}
	message := cause.Error()
	telemetry.RecordError(trace.SpanFromContext(ctx), cause)
	e.logger.Error("Job failed",
		zap.String("job_id", job.ID.String()),
		zap.String("channel", job.Channel.String()),
		zap.Error(cause),
	)
	if err := e.jobs.MarkFailed(ctx, job.ID, message, e.now()); err != nil {
		e.logger.Error("Failed to mark job failed", zap.String("job_id", job.ID.String()), zap.Error(err))
		return
	}
	e.appendLog(ctx, integration.NewSyncLog(&job.ID, integration.LogLevelError, "Job failed", integration.Metadata{
		"error": message,
	}))
}

func (e *Engine) appendLog(ctx context.Context, entry *integration.SyncLog) {
	if err := e.logs.Append(ctx, entry); err != nil {
		e.logger.Warn("Failed to append sync log", zap.String("message", entry.Message), zap.Error(err))
	}
}

// classifyItemError returns the error code recorded for a failed attempt and
// whether the attempt may be retried
func classifyItemError(err error) (string, bool) {
	if connErr, ok := integration.AsConnectorError(err); ok {
		return string(connErr.Code), connErr.Retryable
	}
	switch {
	case errors.Is(err, integration.ErrRecordNotFound):
		return "RECORD_NOT_FOUND", false
	case errors.Is(err, ErrInvalidItem), errors.Is(err, ErrUnsupportedItem):
		return "INVALID_ITEM", false
	case errors.Is(err, ErrListingNotPublished):
		return "NOT_PUBLISHED", false
	case errors.Is(err, context.DeadlineExceeded):
		return string(integration.ConnectorErrTimeout), true
	default:
		return "INTERNAL", true
	}
}
