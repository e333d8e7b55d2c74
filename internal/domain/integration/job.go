package integration

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/storefront/backend/internal/domain/shared"
)

// API-visible job errors
var (
	ErrJobNotFound        = shared.NewDomainError("NOT_FOUND", "Sync job not found")
	ErrJobNotCancellable  = shared.NewDomainError("INVALID_STATE", "Only pending jobs can be cancelled")
	ErrJobNotRetryable    = shared.NewDomainError("INVALID_STATE", "Job has no failed items to retry")
	ErrInvalidJobType     = shared.NewDomainError("INVALID_INPUT", "Job type must be one of pull, push, sync")
	ErrInvalidChannel     = shared.NewDomainError("INVALID_INPUT", "Unsupported channel")
	ErrJobHasNoItems      = shared.NewDomainError("INVALID_INPUT", "Job must contain at least one item")
	ErrInvalidItemType    = shared.NewDomainError("INVALID_INPUT", "Item type must be one of product, order, stock, price")
	ErrMissingItemID      = shared.NewDomainError("INVALID_INPUT", "Item id is required")
	ErrInvalidMaxAttempts = shared.NewDomainError("INVALID_INPUT", "Max attempts must be between 1 and 10")
)

// ErrJobInvalidTransition is returned when a status change is not allowed
var ErrJobInvalidTransition = errors.New("integration: invalid job status transition")

// MaxAllowedAttempts bounds per-item retry configuration
const MaxAllowedAttempts = 10

// JobType is the direction of a sync job
type JobType string

const (
	// JobTypePull fetches from the platform and upserts the canonical record
	JobTypePull JobType = "pull"
	// JobTypePush reads the canonical record and sends it to the platform
	JobTypePush JobType = "push"
	// JobTypeSync compares both copies and keeps the newer one
	JobTypeSync JobType = "sync"
)

// IsValid returns true if the job type is valid
func (t JobType) IsValid() bool {
	switch t {
	case JobTypePull, JobTypePush, JobTypeSync:
		return true
	default:
		return false
	}
}

// JobStatus is the lifecycle state of a job
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// IsTerminal reports whether no further processing happens in this state
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}

// Metadata is free-form JSON attached to jobs, items and log entries
type Metadata map[string]any

// String returns the value for key when it is a string
func (m Metadata) String(key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

// Int returns the value for key as an int. JSON numbers decode as float64.
func (m Metadata) Int(key string) (int, bool) {
	switch v := m[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

// Job is a unit of synchronization work.
//
// CompletedItems + FailedItems never exceeds TotalItems, and equals it once
// the job is completed.
type Job struct {
	ID               uuid.UUID
	Type             JobType
	Channel          PlatformCode
	ChannelAccountID *uuid.UUID
	Status           JobStatus
	TotalItems       int
	CompletedItems   int
	FailedItems      int
	StartedAt        *time.Time
	CompletedAt      *time.Time
	ErrorMessage     string
	Metadata         Metadata
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// JobItemSpec describes one item of a job being submitted
type JobItemSpec struct {
	ItemType ItemType
	ItemID   string
	Metadata Metadata
}

// NewJob creates a pending job together with its items
func NewJob(
	jobType JobType,
	channel PlatformCode,
	accountID *uuid.UUID,
	specs []JobItemSpec,
	maxAttempts int,
	metadata Metadata,
) (*Job, []*JobItem, error) {
	if !jobType.IsValid() {
		return nil, nil, ErrInvalidJobType
	}
	if !channel.IsValid() {
		return nil, nil, ErrInvalidChannel
	}
	if len(specs) == 0 {
		return nil, nil, ErrJobHasNoItems
	}
	if maxAttempts == 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if maxAttempts < 1 || maxAttempts > MaxAllowedAttempts {
		return nil, nil, ErrInvalidMaxAttempts
	}

	now := time.Now()
	job := &Job{
		ID:               uuid.New(),
		Type:             jobType,
		Channel:          channel,
		ChannelAccountID: accountID,
		Status:           JobStatusPending,
		TotalItems:       len(specs),
		Metadata:         metadata,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if job.Metadata == nil {
		job.Metadata = Metadata{}
	}

	items := make([]*JobItem, 0, len(specs))
	for _, spec := range specs {
		if !spec.ItemType.IsValid() {
			return nil, nil, ErrInvalidItemType
		}
		if strings.TrimSpace(spec.ItemID) == "" {
			return nil, nil, ErrMissingItemID
		}
		items = append(items, newJobItem(job.ID, spec, maxAttempts, now))
	}

	return job, items, nil
}

// Start marks a pending job as claimed by a worker
func (j *Job) Start(now time.Time) error {
	if j.Status != JobStatusPending {
		return ErrJobInvalidTransition
	}
	j.Status = JobStatusRunning
	j.StartedAt = &now
	j.UpdatedAt = now
	return nil
}

// RecordItemCompleted counts one item reaching completed
func (j *Job) RecordItemCompleted() error {
	if j.IsFinished() {
		return ErrJobInvalidTransition
	}
	j.CompletedItems++
	return nil
}

// RecordItemFailed counts one item reaching failed
func (j *Job) RecordItemFailed() error {
	if j.IsFinished() {
		return ErrJobInvalidTransition
	}
	j.FailedItems++
	return nil
}

// IsFinished reports whether every item reached a terminal status
func (j *Job) IsFinished() bool {
	return j.CompletedItems+j.FailedItems >= j.TotalItems
}

// Complete finishes a running job. Failed items do not fail the job.
func (j *Job) Complete(now time.Time) error {
	if j.Status != JobStatusRunning || !j.IsFinished() {
		return ErrJobInvalidTransition
	}
	j.Status = JobStatusCompleted
	j.CompletedAt = &now
	j.UpdatedAt = now
	return nil
}

// Fail marks the job failed after an engine-level error
func (j *Job) Fail(message string, now time.Time) error {
	if j.Status.IsTerminal() {
		return ErrJobInvalidTransition
	}
	j.Status = JobStatusFailed
	j.ErrorMessage = message
	j.CompletedAt = &now
	j.UpdatedAt = now
	return nil
}

// Cancel moves a pending job to cancelled. Running jobs are not preempted.
func (j *Job) Cancel(now time.Time) error {
	if j.Status != JobStatusPending {
		return ErrJobNotCancellable
	}
	j.Status = JobStatusCancelled
	j.CompletedAt = &now
	j.UpdatedAt = now
	return nil
}

// CanRetry reports whether the job has failed work to retry
func (j *Job) CanRetry() bool {
	return j.Status == JobStatusFailed || (j.Status == JobStatusCompleted && j.FailedItems > 0)
}

// ResetForRetry returns the job to pending after resetCount failed items
// were reset to pending.
func (j *Job) ResetForRetry(resetCount int, now time.Time) error {
	if !j.CanRetry() {
		return ErrJobNotRetryable
	}
	if resetCount > j.FailedItems {
		return ErrJobInvalidTransition
	}
	j.FailedItems -= resetCount
	j.Status = JobStatusPending
	j.ErrorMessage = ""
	j.StartedAt = nil
	j.CompletedAt = nil
	j.UpdatedAt = now
	return nil
}
