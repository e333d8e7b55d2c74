package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/storefront/backend/internal/domain/integration"
	"github.com/storefront/backend/internal/infrastructure/config"
)

// TokenRefreshRunner refreshes the access tokens of accounts close to expiry
type TokenRefreshRunner interface {
	RefreshExpiring(ctx context.Context) (integration.TokenRefreshSummary, error)
}

// CronTriggerConfig holds configuration for the token refresh trigger
type CronTriggerConfig struct {
	// Schedule is a five field cron expression, or a descriptor like @every 5m
	Schedule string
	// Timeout bounds a single run
	Timeout time.Duration
}

// DefaultCronTriggerConfig returns default cron trigger configuration
func DefaultCronTriggerConfig() CronTriggerConfig {
	return CronTriggerConfig{
		Schedule: "@every 10m",
		Timeout:  2 * time.Minute,
	}
}

// CronTriggerConfigFrom maps the token refresh config section
func CronTriggerConfigFrom(cfg config.TokenRefreshConfig) CronTriggerConfig {
	c := DefaultCronTriggerConfig()
	if cfg.Schedule != "" {
		c.Schedule = cfg.Schedule
	}
	if cfg.Timeout > 0 {
		c.Timeout = cfg.Timeout
	}
	return c
}

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// CronTrigger runs the token refresh on a cron schedule. A run still in
// progress when the next one is due causes that tick to be skipped.
type CronTrigger struct {
	config   CronTriggerConfig
	schedule cron.Schedule
	runner   TokenRefreshRunner
	metrics  *Metrics
	logger   *zap.Logger

	cron      *cron.Cron
	ctx       context.Context
	cancel    context.CancelFunc
	mu        sync.Mutex
	isRunning bool
}

// NewCronTrigger creates a new token refresh trigger
func NewCronTrigger(
	config CronTriggerConfig,
	runner TokenRefreshRunner,
	metrics *Metrics,
	logger *zap.Logger,
) (*CronTrigger, error) {
	schedule, err := cronParser.Parse(config.Schedule)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidSchedule, config.Schedule, err)
	}
	if config.Timeout <= 0 {
		return nil, ErrInvalidConfig
	}

	return &CronTrigger{
		config:   config,
		schedule: schedule,
		runner:   runner,
		metrics:  metrics,
		logger:   logger,
	}, nil
}

// Start schedules the refresh job
func (t *CronTrigger) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.isRunning {
		return nil
	}

	t.ctx, t.cancel = context.WithCancel(ctx)
	log := cronLogger{logger: t.logger.Sugar()}
	t.cron = cron.New(
		cron.WithParser(cronParser),
		cron.WithLogger(log),
		cron.WithChain(cron.Recover(log), cron.SkipIfStillRunning(log)),
	)
	t.cron.Schedule(t.schedule, cron.FuncJob(func() {
		t.RunNow(t.ctx)
	}))
	t.cron.Start()
	t.isRunning = true

	t.logger.Info("Token refresh trigger started",
		zap.String("schedule", t.config.Schedule),
		zap.Time("next_run", t.schedule.Next(time.Now())),
	)
	return nil
}

// Stop stops scheduling and waits for a running refresh to finish
func (t *CronTrigger) Stop(ctx context.Context) error {
	t.mu.Lock()
	if !t.isRunning {
		t.mu.Unlock()
		return nil
	}
	t.isRunning = false
	stopped := t.cron.Stop()
	cancel := t.cancel
	t.mu.Unlock()

	select {
	case <-stopped.Done():
		cancel()
		t.logger.Info("Token refresh trigger stopped")
		return nil
	case <-ctx.Done():
		cancel()
		t.logger.Warn("Token refresh trigger stop timed out")
		return ctx.Err()
	}
}

// RunNow performs one refresh run synchronously
func (t *CronTrigger) RunNow(ctx context.Context) (integration.TokenRefreshSummary, error) {
	ctx, cancel := context.WithTimeout(ctx, t.config.Timeout)
	defer cancel()

	started := time.Now()
	summary, err := t.runner.RefreshExpiring(ctx)
	if err != nil {
		t.logger.Error("Token refresh run failed", zap.Error(err))
		return summary, err
	}

	t.metrics.ObserveTokenRefresh(summary.Refreshed, summary.Failed)
	fields := []zap.Field{
		zap.Int("checked", summary.Checked),
		zap.Int("refreshed", summary.Refreshed),
		zap.Int("failed", summary.Failed),
		zap.Duration("duration", time.Since(started)),
	}
	if summary.Failed > 0 {
		t.logger.Warn("Token refresh run finished with failures", fields...)
	} else {
		t.logger.Info("Token refresh run finished", fields...)
	}
	return summary, nil
}

// cronLogger adapts zap to cron.Logger
type cronLogger struct {
	logger *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Errorw(msg, append(keysAndValues, "error", err)...)
}
