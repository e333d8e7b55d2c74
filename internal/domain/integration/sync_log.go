package integration

import (
	"time"

	"github.com/google/uuid"
)

// LogLevel is the severity of a sync log entry
type LogLevel string

const (
	LogLevelInfo    LogLevel = "info"
	LogLevelWarning LogLevel = "warning"
	LogLevelError   LogLevel = "error"
)

// SyncLog is an append-only audit entry. Entries are never updated or deleted.
type SyncLog struct {
	ID        uuid.UUID
	JobID     *uuid.UUID
	JobItemID *uuid.UUID
	Level     LogLevel
	Message   string
	Context   Metadata
	CreatedAt time.Time
}

// NewSyncLog creates a log entry stamped with the current time
func NewSyncLog(jobID *uuid.UUID, level LogLevel, message string, context Metadata) *SyncLog {
	return &SyncLog{
		ID:        uuid.New(),
		JobID:     jobID,
		Level:     level,
		Message:   message,
		Context:   context,
		CreatedAt: time.Now(),
	}
}

// ForItem attaches the job item the entry is about
func (l *SyncLog) ForItem(item *JobItem) *SyncLog {
	l.JobItemID = &item.ID
	if l.Context == nil {
		l.Context = Metadata{}
	}
	l.Context["itemId"] = item.ItemID
	l.Context["itemType"] = string(item.ItemType)
	l.Context["attempt"] = item.Attempts
	return l
}
