package integration

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/storefront/backend/internal/domain/integration"
	"github.com/storefront/backend/internal/domain/shared"
)

// MaxStockBatchSize bounds the number of updates in one batch
const MaxStockBatchSize = 1000

// Per-item error codes that precede the stock rules
const (
	StockErrListingNotFound    = "LISTING_NOT_FOUND"
	StockErrAccountUnavailable = "ACCOUNT_UNAVAILABLE"
)

// Stock batch errors
var (
	ErrInvalidCommitMode = shared.NewDomainError("INVALID_INPUT", "Commit mode must be preview or commit")
	ErrEmptyStockBatch   = shared.NewDomainError("INVALID_INPUT", "At least one stock update is required")
	ErrStockBatchTooBig  = shared.NewDomainError("INVALID_INPUT", "Too many stock updates in one batch")
)

// StockReconciliationService validates bulk stock changes and, in commit
// mode, hands the accepted ones to the engine as push jobs
type StockReconciliationService struct {
	listings    integration.ListingStore
	accounts    integration.ChannelAccountRepository
	jobs        *JobService
	idempotency shared.IdempotencyStore
	notifier    JobNotifier
	ttl         time.Duration
	logger      *zap.Logger
	now         func() time.Time
}

// StockReconciliationServiceConfig contains configuration for StockReconciliationService
type StockReconciliationServiceConfig struct {
	Listings integration.ListingStore
	Accounts integration.ChannelAccountRepository
	Jobs     *JobService
	// Idempotency detects repeated commits. Nil disables the check.
	Idempotency shared.IdempotencyStore
	Notifier    JobNotifier
	// KeyTTL defaults to 24 hours
	KeyTTL time.Duration
	Logger *zap.Logger
}

// NewStockReconciliationService creates a new StockReconciliationService
func NewStockReconciliationService(cfg StockReconciliationServiceConfig) *StockReconciliationService {
	ttl := cfg.KeyTTL
	if ttl <= 0 {
		ttl = shared.DefaultIdempotencyConfig().TTL
	}
	return &StockReconciliationService{
		listings:    cfg.Listings,
		accounts:    cfg.Accounts,
		jobs:        cfg.Jobs,
		idempotency: cfg.Idempotency,
		notifier:    cfg.Notifier,
		ttl:         ttl,
		logger:      cfg.Logger,
		now:         time.Now,
	}
}

// ReconcileStock validates every update and commits the valid ones when asked
func (s *StockReconciliationService) ReconcileStock(ctx context.Context, req StockBatchRequest) (*StockBatchResult, error) {
	started := s.now()

	if req.CommitMode == "" {
		req.CommitMode = CommitModePreview
	}
	if !req.CommitMode.IsValid() {
		return nil, ErrInvalidCommitMode
	}
	if len(req.Updates) == 0 {
		return nil, ErrEmptyStockBatch
	}
	if len(req.Updates) > MaxStockBatchSize {
		return nil, ErrStockBatchTooBig
	}

	commit := req.CommitMode == CommitModeCommit && !req.DryRun
	if commit && req.IdempotencyKey != "" && s.idempotency != nil {
		key := stockBatchKey(req.IdempotencyKey)
		fresh, err := s.idempotency.MarkProcessed(ctx, key, s.ttl)
		if err != nil {
			return nil, err
		}
		if !fresh {
			s.logger.Info("Duplicate stock batch commit rejected", zap.String("idempotency_key", req.IdempotencyKey))
			return nil, shared.ErrDuplicateRequest
		}
		result, err := s.reconcile(ctx, req, commit, started)
		if err != nil {
			s.release(ctx, key)
			return nil, err
		}
		return result, nil
	}
	return s.reconcile(ctx, req, commit, started)
}

// reconcile validates the batch and, when commit is set, creates one push job
// per channel account. On error any job it already created is cancelled.
func (s *StockReconciliationService) reconcile(
	ctx context.Context,
	req StockBatchRequest,
	commit bool,
	started time.Time,
) (*StockBatchResult, error) {
	listings, err := s.loadListings(ctx, req.Updates)
	if err != nil {
		return nil, err
	}
	accounts := make(map[uuid.UUID]*integration.ChannelAccount)

	result := &StockBatchResult{
		Success:        true,
		CommitMode:     req.CommitMode,
		ProcessedItems: make([]StockItemResult, 0, len(req.Updates)),
		PreviewMode:    req.CommitMode == CommitModePreview,
		DryRun:         req.DryRun,
		CreatedJobs:    []uuid.UUID{},
	}
	accepted := make(map[uuid.UUID][]StockUpdate)
	var accountOrder []uuid.UUID

	for _, u := range req.Updates {
		item := StockItemResult{
			ListingID: u.ListingID,
			NewStock:  u.NewStock,
			Warnings:  []integration.StockWarning{},
		}

		listing, ok := listings[u.ListingID]
		if !ok {
			item.Status = StockItemError
			item.ErrorCode = StockErrListingNotFound
			item.Error = "Listing not found"
			result.ProcessedItems = append(result.ProcessedItems, item)
			continue
		}
		productID, accountID := listing.ProductID, listing.ChannelAccountID
		item.ProductID = &productID
		item.ChannelAccountID = &accountID
		item.CurrentStock = listing.Stock

		account, err := s.account(ctx, accounts, accountID)
		if err != nil {
			return nil, err
		}
		if account == nil || !account.IsActive {
			item.Status = StockItemError
			item.ErrorCode = StockErrAccountUnavailable
			item.Error = "Channel account is missing or inactive"
			result.ProcessedItems = append(result.ProcessedItems, item)
			continue
		}

		check := integration.ValidateStockChange(listing.Stock, u.NewStock, listing.LowStockThreshold)
		item.Change = check.Change
		switch {
		case !check.Valid:
			item.Status = StockItemError
			item.ErrorCode = check.ErrorCode
			item.Error = check.Error
		case len(check.Warnings) > 0:
			item.Status = StockItemWarning
			item.Warnings = check.Warnings
		default:
			item.Status = StockItemSuccess
		}
		result.ProcessedItems = append(result.ProcessedItems, item)

		if check.Valid {
			if _, seen := accepted[accountID]; !seen {
				accountOrder = append(accountOrder, accountID)
			}
			accepted[accountID] = append(accepted[accountID], u)
		}
	}

	result.Summary = summarizeStock(result.ProcessedItems)

	if commit {
		for _, accountID := range accountOrder {
			job, err := s.submitPush(ctx, accounts[accountID], accepted[accountID])
			if err != nil {
				s.cancelCreated(ctx, result.CreatedJobs)
				return nil, err
			}
			result.CreatedJobs = append(result.CreatedJobs, job.ID)
		}
		if len(result.CreatedJobs) > 0 && s.notifier != nil {
			s.notifier.Notify()
		}
	}

	result.ProcessingTime = s.now().Sub(started).Milliseconds()
	s.logger.Info("Stock batch processed",
		zap.String("commit_mode", string(req.CommitMode)),
		zap.Bool("dry_run", req.DryRun),
		zap.Int("total", result.Summary.Total),
		zap.Int("failed", result.Summary.Failed),
		zap.Int("jobs", len(result.CreatedJobs)),
	)
	return result, nil
}

func stockBatchKey(idempotencyKey string) string {
	return "stock-batch:" + idempotencyKey
}

// release forgets a batch key after a failed commit so the caller can retry
func (s *StockReconciliationService) release(ctx context.Context, key string) {
	if err := s.idempotency.Release(ctx, key); err != nil {
		s.logger.Error("Failed to release stock batch idempotency key",
			zap.String("key", key),
			zap.Error(err),
		)
	}
}

// cancelCreated withdraws jobs of a batch that failed part way through. A
// job the engine already claimed can no longer be cancelled and is logged.
func (s *StockReconciliationService) cancelCreated(ctx context.Context, jobIDs []uuid.UUID) {
	for _, id := range jobIDs {
		if _, err := s.jobs.CancelJob(ctx, id); err != nil {
			s.logger.Warn("Failed to cancel job of failed stock batch",
				zap.String("job_id", id.String()),
				zap.Error(err),
			)
		}
	}
}

func (s *StockReconciliationService) loadListings(ctx context.Context, updates []StockUpdate) (map[uuid.UUID]integration.Listing, error) {
	ids := make([]uuid.UUID, 0, len(updates))
	seen := make(map[uuid.UUID]struct{}, len(updates))
	for _, u := range updates {
		if u.ListingID == uuid.Nil {
			continue
		}
		if _, ok := seen[u.ListingID]; ok {
			continue
		}
		seen[u.ListingID] = struct{}{}
		ids = append(ids, u.ListingID)
	}

	byID := make(map[uuid.UUID]integration.Listing, len(ids))
	if len(ids) == 0 {
		return byID, nil
	}
	listings, err := s.listings.FindListingsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, l := range listings {
		byID[l.ID] = l
	}
	return byID, nil
}

// account resolves and caches an account. A missing account yields nil.
func (s *StockReconciliationService) account(
	ctx context.Context,
	cache map[uuid.UUID]*integration.ChannelAccount,
	id uuid.UUID,
) (*integration.ChannelAccount, error) {
	if account, ok := cache[id]; ok {
		return account, nil
	}
	account, err := s.accounts.FindByID(ctx, id)
	if err != nil && !errors.Is(err, integration.ErrAccountNotFound) {
		return nil, err
	}
	cache[id] = account
	return account, nil
}

// submitPush creates one push job for an account. A listing updated more
// than once in the batch keeps its last value.
func (s *StockReconciliationService) submitPush(
	ctx context.Context,
	account *integration.ChannelAccount,
	updates []StockUpdate,
) (*integration.Job, error) {
	index := make(map[uuid.UUID]int, len(updates))
	specs := make([]integration.JobItemSpec, 0, len(updates))
	for _, u := range updates {
		meta := integration.Metadata{integration.MetaNewStock: u.NewStock}
		if u.Reason != "" {
			meta[integration.MetaReason] = u.Reason
		}
		spec := integration.JobItemSpec{
			ItemType: integration.ItemTypeStock,
			ItemID:   u.ListingID.String(),
			Metadata: meta,
		}
		if i, ok := index[u.ListingID]; ok {
			specs[i] = spec
			continue
		}
		index[u.ListingID] = len(specs)
		specs = append(specs, spec)
	}

	return s.jobs.submitForAccount(ctx, account, integration.JobTypePush, specs, integration.Metadata{
		"source": "stock-batch",
	})
}

func summarizeStock(items []StockItemResult) StockSummary {
	summary := StockSummary{Total: len(items)}
	for _, item := range items {
		switch item.Status {
		case StockItemError:
			summary.Failed++
			continue
		case StockItemWarning:
			summary.Warnings++
		}
		summary.Successful++
		summary.TotalStockChange += item.Change
	}
	return summary
}
