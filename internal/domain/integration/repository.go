package integration

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Record store errors
var (
	ErrRecordNotFound  = errors.New("integration: record not found")
	ErrAccountNotFound = errors.New("integration: channel account not found")
)

// JobFilter narrows job listings
type JobFilter struct {
	Status           JobStatus
	Channel          PlatformCode
	ChannelAccountID *uuid.UUID
	Page             int
	PageSize         int
	// SortBy is a column name; unknown columns fall back to created_at
	SortBy    string
	SortOrder string
}

// ItemStatusCounts is the number of a job's items per status
type ItemStatusCounts map[ItemStatus]int

// JobRepository is the durable job queue
type JobRepository interface {
	// Create stores a job and all its items atomically
	Create(ctx context.Context, job *Job, items []*JobItem) error
	FindByID(ctx context.Context, id uuid.UUID) (*Job, error)
	List(ctx context.Context, filter JobFilter) ([]Job, int64, error)
	FindItems(ctx context.Context, jobID uuid.UUID) ([]JobItem, error)
	CountItemsByStatus(ctx context.Context, jobID uuid.UUID) (ItemStatusCounts, error)

	// ClaimPendingJobs moves up to limit pending jobs, oldest first, to
	// running. Rows locked by another instance are skipped.
	ClaimPendingJobs(ctx context.Context, limit int) ([]Job, error)
	// FindJobsWithDueItems returns running jobs with pending items due at now
	FindJobsWithDueItems(ctx context.Context, now time.Time, limit int) ([]Job, error)
	// ClaimDueItems moves up to limit due pending items of a job to processing
	ClaimDueItems(ctx context.Context, jobID uuid.UUID, now time.Time, limit int) ([]*JobItem, error)
	// SaveItemOutcome persists an item leaving processing. When terminal, the
	// job's completed or failed counter is incremented in the same transaction.
	SaveItemOutcome(ctx context.Context, item *JobItem, terminal bool) error
	// CompleteIfFinished completes a running job whose items are all terminal.
	// It reports whether the job was completed by this call.
	CompleteIfFinished(ctx context.Context, jobID uuid.UUID, now time.Time) (bool, error)
	// CompleteFinishedJobs completes every running job whose items are all
	// terminal. It recovers jobs whose worker stopped before completing them.
	CompleteFinishedJobs(ctx context.Context, now time.Time) (int64, error)
	MarkFailed(ctx context.Context, jobID uuid.UUID, message string, now time.Time) error
	// Cancel moves a pending job to cancelled
	Cancel(ctx context.Context, jobID uuid.UUID, now time.Time) error
	// ResetFailedItems resets failed items to pending and the job to pending.
	// It returns the number of items reset.
	ResetFailedItems(ctx context.Context, jobID uuid.UUID, now time.Time) (int, error)
	// RecoverStaleItems returns items stuck in processing since before
	// olderThan to pending.
	RecoverStaleItems(ctx context.Context, olderThan time.Time) (int64, error)
}

// SyncLogRepository is the append-only audit trail
type SyncLogRepository interface {
	Append(ctx context.Context, entry *SyncLog) error
	ListByJob(ctx context.Context, jobID uuid.UUID, limit int) ([]SyncLog, error)
}

// ChannelAccountRepository is the credential store
type ChannelAccountRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*ChannelAccount, error)
	// FindActiveByPlatform returns the active accounts of one platform
	FindActiveByPlatform(ctx context.Context, platform PlatformCode) ([]ChannelAccount, error)
	// FindExpiring returns active accounts with a refresh token whose access
	// token expires before the given time
	FindExpiring(ctx context.Context, before time.Time) ([]ChannelAccount, error)
	SaveTokens(ctx context.Context, id uuid.UUID, tokens *TokenSet, refreshedAt time.Time) error
	RecordRefreshFailure(ctx context.Context, id uuid.UUID, message string, at time.Time) error
}

// ProductStore reads and writes canonical products. Upsert applies only
// when the incoming UpdatedAt is not older than the stored one and reports
// whether it was applied.
type ProductStore interface {
	GetProduct(ctx context.Context, id uuid.UUID) (*Product, error)
	UpsertProduct(ctx context.Context, product *Product) (bool, error)
}

// OrderStore reads and writes canonical orders
type OrderStore interface {
	GetOrder(ctx context.Context, id uuid.UUID) (*Order, error)
	FindOrderByPlatformID(ctx context.Context, accountID uuid.UUID, platformOrderID string) (*Order, error)
	UpsertOrder(ctx context.Context, order *Order) (bool, error)
}

// ListingStore reads and writes channel listings
type ListingStore interface {
	GetListing(ctx context.Context, id uuid.UUID) (*Listing, error)
	FindListingsByIDs(ctx context.Context, ids []uuid.UUID) ([]Listing, error)
	FindListingByPlatformID(ctx context.Context, accountID uuid.UUID, platformProductID string) (*Listing, error)
	UpsertListing(ctx context.Context, listing *Listing) (bool, error)
}

// RecordStore groups the canonical record stores the engine writes through
type RecordStore interface {
	ProductStore
	OrderStore
	ListingStore
}
