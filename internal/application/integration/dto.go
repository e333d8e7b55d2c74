package integration

import (
	"time"

	"github.com/google/uuid"

	"github.com/storefront/backend/internal/domain/integration"
)

// ---------------------------------------------------------------------------
// Job DTOs
// ---------------------------------------------------------------------------

// SubmitJobRequest is a request to enqueue a sync job
type SubmitJobRequest struct {
	Type             integration.JobType
	Channel          integration.PlatformCode
	ChannelAccountID *uuid.UUID
	Items            []integration.JobItemSpec
	Metadata         integration.Metadata
	// MaxAttempts overrides the per-item attempt limit. Zero uses the
	// channel account's retry setting.
	MaxAttempts int
}

// JobResponse represents a job in API responses
type JobResponse struct {
	ID               uuid.UUID                `json:"id"`
	Type             integration.JobType      `json:"type"`
	Channel          integration.PlatformCode `json:"channel"`
	ChannelAccountID *uuid.UUID               `json:"channelAccountId,omitempty"`
	Status           integration.JobStatus    `json:"status"`
	TotalItems       int                      `json:"totalItems"`
	CompletedItems   int                      `json:"completedItems"`
	FailedItems      int                      `json:"failedItems"`
	ItemCounts       map[string]int           `json:"itemCounts,omitempty"`
	StartedAt        *time.Time               `json:"startedAt,omitempty"`
	CompletedAt      *time.Time               `json:"completedAt,omitempty"`
	ErrorMessage     string                   `json:"errorMessage,omitempty"`
	Metadata         integration.Metadata     `json:"metadata"`
	CreatedAt        time.Time                `json:"createdAt"`
	UpdatedAt        time.Time                `json:"updatedAt"`
}

// JobItemResponse represents a job item in API responses
type JobItemResponse struct {
	ID           uuid.UUID              `json:"id"`
	JobID        uuid.UUID              `json:"jobId"`
	ItemType     integration.ItemType   `json:"itemType"`
	ItemID       string                 `json:"itemId"`
	Status       integration.ItemStatus `json:"status"`
	Attempts     int                    `json:"attempts"`
	MaxAttempts  int                    `json:"maxAttempts"`
	NextRetryAt  *time.Time             `json:"nextRetryAt,omitempty"`
	ErrorMessage string                 `json:"errorMessage,omitempty"`
	Metadata     integration.Metadata   `json:"metadata"`
	CreatedAt    time.Time              `json:"createdAt"`
	UpdatedAt    time.Time              `json:"updatedAt"`
}

// SyncLogResponse represents a sync log entry in API responses
type SyncLogResponse struct {
	ID        uuid.UUID            `json:"id"`
	JobID     *uuid.UUID           `json:"jobId,omitempty"`
	JobItemID *uuid.UUID           `json:"jobItemId,omitempty"`
	Level     integration.LogLevel `json:"level"`
	Message   string               `json:"message"`
	Context   integration.Metadata `json:"context,omitempty"`
	CreatedAt time.Time            `json:"createdAt"`
}

// ToJobResponse converts a domain job to a response DTO
func ToJobResponse(job *integration.Job) JobResponse {
	return JobResponse{
		ID:               job.ID,
		Type:             job.Type,
		Channel:          job.Channel,
		ChannelAccountID: job.ChannelAccountID,
		Status:           job.Status,
		TotalItems:       job.TotalItems,
		CompletedItems:   job.CompletedItems,
		FailedItems:      job.FailedItems,
		StartedAt:        job.StartedAt,
		CompletedAt:      job.CompletedAt,
		ErrorMessage:     job.ErrorMessage,
		Metadata:         job.Metadata,
		CreatedAt:        job.CreatedAt,
		UpdatedAt:        job.UpdatedAt,
	}
}

// ToJobItemResponse converts a domain job item to a response DTO
func ToJobItemResponse(item *integration.JobItem) JobItemResponse {
	return JobItemResponse{
		ID:           item.ID,
		JobID:        item.JobID,
		ItemType:     item.ItemType,
		ItemID:       item.ItemID,
		Status:       item.Status,
		Attempts:     item.Attempts,
		MaxAttempts:  item.MaxAttempts,
		NextRetryAt:  item.NextRetryAt,
		ErrorMessage: item.ErrorMessage,
		Metadata:     item.Metadata,
		CreatedAt:    item.CreatedAt,
		UpdatedAt:    item.UpdatedAt,
	}
}

// ToSyncLogResponse converts a domain sync log entry to a response DTO
func ToSyncLogResponse(entry *integration.SyncLog) SyncLogResponse {
	return SyncLogResponse{
		ID:        entry.ID,
		JobID:     entry.JobID,
		JobItemID: entry.JobItemID,
		Level:     entry.Level,
		Message:   entry.Message,
		Context:   entry.Context,
		CreatedAt: entry.CreatedAt,
	}
}

// ---------------------------------------------------------------------------
// Webhook DTOs
// ---------------------------------------------------------------------------

// WebhookDelivery is one inbound webhook request as received
type WebhookDelivery struct {
	Platform  integration.PlatformCode
	AccountID uuid.UUID
	Body      []byte
	Signature string
	Timestamp string
}

// WebhookResult is the outcome of a webhook delivery
type WebhookResult struct {
	Success     bool        `json:"success"`
	Event       string      `json:"event"`
	Processed   bool        `json:"processed"`
	Duplicate   bool        `json:"duplicate,omitempty"`
	CreatedJobs []uuid.UUID `json:"createdJobs"`
	// ProcessingTime is in milliseconds
	ProcessingTime int64 `json:"processingTime"`
}

// ---------------------------------------------------------------------------
// Stock Reconciliation DTOs
// ---------------------------------------------------------------------------

// CommitMode selects whether a stock batch is only validated or also applied
type CommitMode string

const (
	CommitModePreview CommitMode = "preview"
	CommitModeCommit  CommitMode = "commit"
)

// IsValid returns true if the commit mode is known
func (m CommitMode) IsValid() bool {
	return m == CommitModePreview || m == CommitModeCommit
}

// StockUpdate is one proposed stock level for a listing
type StockUpdate struct {
	ListingID uuid.UUID
	NewStock  int
	Reason    string
}

// StockBatchRequest is a bulk set of proposed stock changes
type StockBatchRequest struct {
	Updates        []StockUpdate
	CommitMode     CommitMode
	IdempotencyKey string
	DryRun         bool
}

// StockItemStatus is the validation outcome of one stock change
type StockItemStatus string

const (
	StockItemSuccess StockItemStatus = "success"
	StockItemWarning StockItemStatus = "warning"
	StockItemError   StockItemStatus = "error"
)

// StockItemResult reports the outcome of one proposed change
type StockItemResult struct {
	ListingID        uuid.UUID                  `json:"listingId"`
	ProductID        *uuid.UUID                 `json:"productId,omitempty"`
	ChannelAccountID *uuid.UUID                 `json:"channelAccountId,omitempty"`
	CurrentStock     int                        `json:"currentStock"`
	NewStock         int                        `json:"newStock"`
	Change           int                        `json:"change"`
	Status           StockItemStatus            `json:"status"`
	ErrorCode        string                     `json:"errorCode,omitempty"`
	Error            string                     `json:"error,omitempty"`
	Warnings         []integration.StockWarning `json:"warnings"`
}

// StockSummary folds the per-item results
type StockSummary struct {
	Total            int `json:"total"`
	Successful       int `json:"successful"`
	Failed           int `json:"failed"`
	Warnings         int `json:"warnings"`
	TotalStockChange int `json:"totalStockChange"`
}

// StockBatchResult is the response of a stock batch
type StockBatchResult struct {
	Success        bool              `json:"success"`
	CommitMode     CommitMode        `json:"commitMode"`
	ProcessedItems []StockItemResult `json:"processedItems"`
	Summary        StockSummary      `json:"summary"`
	PreviewMode    bool              `json:"previewMode"`
	DryRun         bool              `json:"dryRun"`
	CreatedJobs    []uuid.UUID       `json:"createdJobs"`
	// ProcessingTime is in milliseconds
	ProcessingTime int64 `json:"processingTime"`
}

// ---------------------------------------------------------------------------
// Account DTOs
// ---------------------------------------------------------------------------

// AccountHealthResponse reports whether a channel account's platform API is reachable
type AccountHealthResponse struct {
	AccountID uuid.UUID                `json:"accountId"`
	Platform  integration.PlatformCode `json:"platform"`
	Healthy   bool                     `json:"healthy"`
	Code      string                   `json:"code,omitempty"`
	Error     string                   `json:"error,omitempty"`
	// Latency is in milliseconds
	Latency   int64     `json:"latency"`
	CheckedAt time.Time `json:"checkedAt"`
}
