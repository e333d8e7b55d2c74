package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/storefront/backend/internal/domain/integration"
)

// JobModel is the persistence model for a sync job
type JobModel struct {
	BaseModel
	Type             integration.JobType      `gorm:"type:varchar(10);not null"`
	Channel          integration.PlatformCode `gorm:"type:varchar(20);not null;index:idx_jobs_channel"`
	ChannelAccountID *uuid.UUID               `gorm:"type:uuid;index:idx_jobs_account"`
	Status           integration.JobStatus    `gorm:"type:varchar(20);not null;index:idx_jobs_status_created,priority:1"`
	TotalItems       int                      `gorm:"not null;default:0"`
	CompletedItems   int                      `gorm:"not null;default:0"`
	FailedItems      int                      `gorm:"not null;default:0"`
	StartedAt        *time.Time
	CompletedAt      *time.Time
	ErrorMessage     string  `gorm:"type:text"`
	Metadata         JSONMap `gorm:"type:jsonb"`
}

// TableName returns the table name for GORM
func (JobModel) TableName() string {
	return "jobs"
}

// ToDomain converts the persistence model to a domain Job
func (m *JobModel) ToDomain() *integration.Job {
	return &integration.Job{
		ID:               m.ID,
		Type:             m.Type,
		Channel:          m.Channel,
		ChannelAccountID: m.ChannelAccountID,
		Status:           m.Status,
		TotalItems:       m.TotalItems,
		CompletedItems:   m.CompletedItems,
		FailedItems:      m.FailedItems,
		StartedAt:        m.StartedAt,
		CompletedAt:      m.CompletedAt,
		ErrorMessage:     m.ErrorMessage,
		Metadata:         integration.Metadata(m.Metadata),
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}
}

// JobModelFromDomain creates a persistence model from a domain Job
func JobModelFromDomain(j *integration.Job) *JobModel {
	m := &JobModel{
		Type:             j.Type,
		Channel:          j.Channel,
		ChannelAccountID: j.ChannelAccountID,
		Status:           j.Status,
		TotalItems:       j.TotalItems,
		CompletedItems:   j.CompletedItems,
		FailedItems:      j.FailedItems,
		StartedAt:        j.StartedAt,
		CompletedAt:      j.CompletedAt,
		ErrorMessage:     j.ErrorMessage,
		Metadata:         JSONMap(j.Metadata),
	}
	m.fromDomain(j.ID, j.CreatedAt, j.UpdatedAt)
	return m
}

// JobItemModel is the persistence model for one item of a sync job
type JobItemModel struct {
	BaseModel
	JobID        uuid.UUID              `gorm:"type:uuid;not null;index:idx_job_items_job_status,priority:1"`
	ItemType     integration.ItemType   `gorm:"type:varchar(10);not null"`
	ItemID       string                 `gorm:"type:varchar(100);not null"`
	Status       integration.ItemStatus `gorm:"type:varchar(20);not null;index:idx_job_items_job_status,priority:2"`
	Attempts     int                    `gorm:"not null;default:0"`
	MaxAttempts  int                    `gorm:"not null;default:3"`
	NextRetryAt  *time.Time             `gorm:"index:idx_job_items_next_retry"`
	ErrorMessage string                 `gorm:"type:text"`
	Metadata     JSONMap                `gorm:"type:jsonb"`
}

// TableName returns the table name for GORM
func (JobItemModel) TableName() string {
	return "job_items"
}

// ToDomain converts the persistence model to a domain JobItem
func (m *JobItemModel) ToDomain() *integration.JobItem {
	return &integration.JobItem{
		ID:           m.ID,
		JobID:        m.JobID,
		ItemType:     m.ItemType,
		ItemID:       m.ItemID,
		Status:       m.Status,
		Attempts:     m.Attempts,
		MaxAttempts:  m.MaxAttempts,
		NextRetryAt:  m.NextRetryAt,
		ErrorMessage: m.ErrorMessage,
		Metadata:     integration.Metadata(m.Metadata),
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

// JobItemModelFromDomain creates a persistence model from a domain JobItem
func JobItemModelFromDomain(i *integration.JobItem) *JobItemModel {
	m := &JobItemModel{
		JobID:        i.JobID,
		ItemType:     i.ItemType,
		ItemID:       i.ItemID,
		Status:       i.Status,
		Attempts:     i.Attempts,
		MaxAttempts:  i.MaxAttempts,
		NextRetryAt:  i.NextRetryAt,
		ErrorMessage: i.ErrorMessage,
		Metadata:     JSONMap(i.Metadata),
	}
	m.fromDomain(i.ID, i.CreatedAt, i.UpdatedAt)
	return m
}

// SyncLogModel is the persistence model for an audit log entry.
// Rows are only ever inserted.
type SyncLogModel struct {
	ID        uuid.UUID            `gorm:"type:uuid;primary_key"`
	JobID     *uuid.UUID           `gorm:"type:uuid;index:idx_sync_logs_job_created,priority:1"`
	JobItemID *uuid.UUID           `gorm:"type:uuid"`
	Level     integration.LogLevel `gorm:"type:varchar(10);not null"`
	Message   string               `gorm:"type:text;not null"`
	Context   JSONMap              `gorm:"type:jsonb"`
	CreatedAt time.Time            `gorm:"not null;index:idx_sync_logs_job_created,priority:2"`
}

// TableName returns the table name for GORM
func (SyncLogModel) TableName() string {
	return "sync_logs"
}

// ToDomain converts the persistence model to a domain SyncLog
func (m *SyncLogModel) ToDomain() *integration.SyncLog {
	return &integration.SyncLog{
		ID:        m.ID,
		JobID:     m.JobID,
		JobItemID: m.JobItemID,
		Level:     m.Level,
		Message:   m.Message,
		Context:   integration.Metadata(m.Context),
		CreatedAt: m.CreatedAt,
	}
}

// SyncLogModelFromDomain creates a persistence model from a domain SyncLog
func SyncLogModelFromDomain(l *integration.SyncLog) *SyncLogModel {
	return &SyncLogModel{
		ID:        l.ID,
		JobID:     l.JobID,
		JobItemID: l.JobItemID,
		Level:     l.Level,
		Message:   l.Message,
		Context:   JSONMap(l.Context),
		CreatedAt: l.CreatedAt,
	}
}
