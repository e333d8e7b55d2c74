package persistence

import (
	"context"

	"github.com/google/uuid"
	"github.com/storefront/backend/internal/domain/integration"
	"github.com/storefront/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

const defaultSyncLogLimit = 500

// GormSyncLogRepository implements integration.SyncLogRepository using GORM.
// It has no update or delete path.
type GormSyncLogRepository struct {
	db *gorm.DB
}

// NewGormSyncLogRepository creates a new GormSyncLogRepository
func NewGormSyncLogRepository(db *gorm.DB) *GormSyncLogRepository {
	return &GormSyncLogRepository{db: db}
}

// Append inserts a log entry
func (r *GormSyncLogRepository) Append(ctx context.Context, entry *integration.SyncLog) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(models.SyncLogModelFromDomain(entry)).Error
}

// ListByJob returns a job's log entries, oldest first
func (r *GormSyncLogRepository) ListByJob(ctx context.Context, jobID uuid.UUID, limit int) ([]integration.SyncLog, error) {
	if limit <= 0 || limit > defaultSyncLogLimit {
		limit = defaultSyncLogLimit
	}

	var logModels []models.SyncLogModel
	if err := r.db.WithContext(ctx).
		Where("job_id = ?", jobID).
		Order("created_at ASC").
		Limit(limit).
		Find(&logModels).Error; err != nil {
		return nil, err
	}

	entries := make([]integration.SyncLog, len(logModels))
	for i := range logModels {
		entries[i] = *logModels[i].ToDomain()
	}
	return entries, nil
}

var _ integration.SyncLogRepository = (*GormSyncLogRepository)(nil)
