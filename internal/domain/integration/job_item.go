package integration

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrItemInvalidTransition is returned when an item status change is not allowed
var ErrItemInvalidTransition = errors.New("integration: invalid job item status transition")

// DefaultMaxAttempts is used when neither the submitter nor the account sets one
const DefaultMaxAttempts = 3

// ItemType is the kind of record a job item operates on
type ItemType string

const (
	ItemTypeProduct ItemType = "product"
	ItemTypeOrder   ItemType = "order"
	ItemTypeStock   ItemType = "stock"
	ItemTypePrice   ItemType = "price"
)

// IsValid returns true if the item type is valid
func (t ItemType) IsValid() bool {
	switch t {
	case ItemTypeProduct, ItemTypeOrder, ItemTypeStock, ItemTypePrice:
		return true
	default:
		return false
	}
}

// ItemStatus is the lifecycle state of a job item
type ItemStatus string

const (
	ItemStatusPending    ItemStatus = "pending"
	ItemStatusProcessing ItemStatus = "processing"
	ItemStatusCompleted  ItemStatus = "completed"
	ItemStatusFailed     ItemStatus = "failed"
)

// IsTerminal reports whether the item will not be processed again
func (s ItemStatus) IsTerminal() bool {
	return s == ItemStatusCompleted || s == ItemStatusFailed
}

// Metadata keys understood by the job engine
const (
	MetaNewStock       = "newStock"
	MetaStockHint      = "stockHint"
	MetaPrice          = "price"
	MetaCompareAtPrice = "compareAtPrice"
	MetaReason         = "reason"
	MetaEvent          = "event"
)

// JobItem is one atomic operation within a job. It is owned by its job.
type JobItem struct {
	ID           uuid.UUID
	JobID        uuid.UUID
	ItemType     ItemType
	ItemID       string
	Status       ItemStatus
	Attempts     int
	MaxAttempts  int
	NextRetryAt  *time.Time
	ErrorMessage string
	Metadata     Metadata
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func newJobItem(jobID uuid.UUID, spec JobItemSpec, maxAttempts int, now time.Time) *JobItem {
	metadata := spec.Metadata
	if metadata == nil {
		metadata = Metadata{}
	}
	return &JobItem{
		ID:          uuid.New(),
		JobID:       jobID,
		ItemType:    spec.ItemType,
		ItemID:      spec.ItemID,
		Status:      ItemStatusPending,
		MaxAttempts: maxAttempts,
		Metadata:    metadata,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// IsDue reports whether a pending item may be picked up at now
func (i *JobItem) IsDue(now time.Time) bool {
	if i.Status != ItemStatusPending {
		return false
	}
	return i.NextRetryAt == nil || !i.NextRetryAt.After(now)
}

// MarkProcessing claims the item for a worker
func (i *JobItem) MarkProcessing(now time.Time) error {
	if i.Status != ItemStatusPending {
		return ErrItemInvalidTransition
	}
	i.Status = ItemStatusProcessing
	i.UpdatedAt = now
	return nil
}

// MarkCompleted records a successful attempt
func (i *JobItem) MarkCompleted(now time.Time) error {
	if i.Status != ItemStatusProcessing {
		return ErrItemInvalidTransition
	}
	i.Attempts++
	i.Status = ItemStatusCompleted
	i.ErrorMessage = ""
	i.NextRetryAt = nil
	i.UpdatedAt = now
	return nil
}

// RecordFailure records a failed attempt. Retryable failures go back to
// pending with a backoff until MaxAttempts is reached; everything else is
// frozen at failed. The returned bool reports whether the item is terminal.
func (i *JobItem) RecordFailure(message string, retryable bool, policy RetryPolicy, now time.Time) (bool, error) {
	if i.Status != ItemStatusProcessing {
		return false, ErrItemInvalidTransition
	}
	if i.Attempts < i.MaxAttempts {
		i.Attempts++
	}
	i.ErrorMessage = message
	i.UpdatedAt = now

	if retryable && i.Attempts < i.MaxAttempts {
		next := now.Add(policy.Delay(i.Attempts))
		i.Status = ItemStatusPending
		i.NextRetryAt = &next
		return false, nil
	}

	i.Status = ItemStatusFailed
	i.NextRetryAt = nil
	return true, nil
}

// ResetForRetry returns a failed item to pending with a clean attempt count
func (i *JobItem) ResetForRetry(now time.Time) error {
	if i.Status != ItemStatusFailed {
		return ErrItemInvalidTransition
	}
	i.Status = ItemStatusPending
	i.Attempts = 0
	i.ErrorMessage = ""
	i.NextRetryAt = nil
	i.UpdatedAt = now
	return nil
}
