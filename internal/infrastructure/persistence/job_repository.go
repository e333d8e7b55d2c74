package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/storefront/backend/internal/domain/integration"
	"github.com/storefront/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	defaultJobPageSize = 20
	maxJobPageSize     = 100
	itemInsertBatch    = 200
)

// skipLocked locks the selected rows and skips rows locked by another transaction
var skipLocked = clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}

// GormJobRepository implements integration.JobRepository using GORM
type GormJobRepository struct {
	db *gorm.DB
}

// NewGormJobRepository creates a new GormJobRepository
func NewGormJobRepository(db *gorm.DB) *GormJobRepository {
	return &GormJobRepository{db: db}
}

// Create stores a job and its items in one transaction
func (r *GormJobRepository) Create(ctx context.Context, job *integration.Job, items []*integration.JobItem) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(models.JobModelFromDomain(job)).Error; err != nil {
			return fmt.Errorf("failed to create job: %w", err)
		}
		if len(items) == 0 {
			return nil
		}
		itemModels := make([]*models.JobItemModel, len(items))
		for i, item := range items {
			itemModels[i] = models.JobItemModelFromDomain(item)
		}
		if err := tx.CreateInBatches(itemModels, itemInsertBatch).Error; err != nil {
			return fmt.Errorf("failed to create job items: %w", err)
		}
		return nil
	})
}

// FindByID finds a job by ID
func (r *GormJobRepository) FindByID(ctx context.Context, id uuid.UUID) (*integration.Job, error) {
	var model models.JobModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, integration.ErrJobNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// List returns a page of jobs and the total number of matches. Jobs are
// newest first unless the filter names another sort column.
func (r *GormJobRepository) List(ctx context.Context, filter integration.JobFilter) ([]integration.Job, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.JobModel{})
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Channel != "" {
		query = query.Where("channel = ?", filter.Channel)
	}
	if filter.ChannelAccountID != nil {
		query = query.Where("channel_account_id = ?", *filter.ChannelAccountID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page, pageSize := normalizePage(filter.Page, filter.PageSize)
	sortField := ValidateSortField(filter.SortBy, JobSortFields, "created_at")
	sortOrder := ValidateSortOrder(filter.SortOrder)
	var jobModels []models.JobModel
	if err := query.
		Order(sortField + " " + sortOrder + ", id " + sortOrder).
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&jobModels).Error; err != nil {
		return nil, 0, err
	}

	jobs := make([]integration.Job, len(jobModels))
	for i := range jobModels {
		jobs[i] = *jobModels[i].ToDomain()
	}
	return jobs, total, nil
}

// FindItems returns all items of a job in creation order
func (r *GormJobRepository) FindItems(ctx context.Context, jobID uuid.UUID) ([]integration.JobItem, error) {
	var itemModels []models.JobItemModel
	if err := r.db.WithContext(ctx).
		Where("job_id = ?", jobID).
		Order("created_at ASC, id ASC").
		Find(&itemModels).Error; err != nil {
		return nil, err
	}

	items := make([]integration.JobItem, len(itemModels))
	for i := range itemModels {
		items[i] = *itemModels[i].ToDomain()
	}
	return items, nil
}

// CountItemsByStatus returns the number of a job's items per status
func (r *GormJobRepository) CountItemsByStatus(ctx context.Context, jobID uuid.UUID) (integration.ItemStatusCounts, error) {
	var rows []struct {
		Status integration.ItemStatus
		Count  int
	}
	if err := r.db.WithContext(ctx).
		Model(&models.JobItemModel{}).
		Select("status, COUNT(*) AS count").
		Where("job_id = ?", jobID).
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	counts := make(integration.ItemStatusCounts, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

// ClaimPendingJobs moves up to limit pending jobs to running
func (r *GormJobRepository) ClaimPendingJobs(ctx context.Context, limit int) ([]integration.Job, error) {
	var jobModels []models.JobModel

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Clauses(skipLocked).
			Where("status = ?", integration.JobStatusPending).
			Order("created_at ASC").
			Limit(limit).
			Find(&jobModels).Error; err != nil {
			return err
		}
		if len(jobModels) == 0 {
			return nil
		}

		ids := make([]uuid.UUID, len(jobModels))
		for i := range jobModels {
			ids[i] = jobModels[i].ID
		}

		now := time.Now()
		if err := tx.Model(&models.JobModel{}).
			Where("id IN ? AND status = ?", ids, integration.JobStatusPending).
			Updates(map[string]any{
				"status":     integration.JobStatusRunning,
				"started_at": now,
				"updated_at": now,
			}).Error; err != nil {
			return err
		}

		for i := range jobModels {
			jobModels[i].Status = integration.JobStatusRunning
			jobModels[i].StartedAt = &now
			jobModels[i].UpdatedAt = now
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	jobs := make([]integration.Job, len(jobModels))
	for i := range jobModels {
		jobs[i] = *jobModels[i].ToDomain()
	}
	return jobs, nil
}

// FindJobsWithDueItems returns running jobs that have pending items due at now
func (r *GormJobRepository) FindJobsWithDueItems(ctx context.Context, now time.Time, limit int) ([]integration.Job, error) {
	var jobModels []models.JobModel
	if err := r.db.WithContext(ctx).
		Where("status = ?", integration.JobStatusRunning).
		Where(`EXISTS (SELECT 1 FROM job_items WHERE job_items.job_id = jobs.id
			AND job_items.status = ? AND (job_items.next_retry_at IS NULL OR job_items.next_retry_at <= ?))`,
			integration.ItemStatusPending, now).
		Order("updated_at ASC").
		Limit(limit).
		Find(&jobModels).Error; err != nil {
		return nil, err
	}

	jobs := make([]integration.Job, len(jobModels))
	for i := range jobModels {
		jobs[i] = *jobModels[i].ToDomain()
	}
	return jobs, nil
}

// ClaimDueItems moves up to limit due pending items of a job to processing
func (r *GormJobRepository) ClaimDueItems(ctx context.Context, jobID uuid.UUID, now time.Time, limit int) ([]*integration.JobItem, error) {
	var itemModels []models.JobItemModel

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Clauses(skipLocked).
			Where("job_id = ? AND status = ?", jobID, integration.ItemStatusPending).
			Where("(next_retry_at IS NULL OR next_retry_at <= ?)", now).
			Order("created_at ASC, id ASC").
			Limit(limit).
			Find(&itemModels).Error; err != nil {
			return err
		}
		if len(itemModels) == 0 {
			return nil
		}

		ids := make([]uuid.UUID, len(itemModels))
		for i := range itemModels {
			ids[i] = itemModels[i].ID
		}

		if err := tx.Model(&models.JobItemModel{}).
			Where("id IN ? AND status = ?", ids, integration.ItemStatusPending).
			Updates(map[string]any{
				"status":     integration.ItemStatusProcessing,
				"updated_at": now,
			}).Error; err != nil {
			return err
		}

		for i := range itemModels {
			itemModels[i].Status = integration.ItemStatusProcessing
			itemModels[i].UpdatedAt = now
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	items := make([]*integration.JobItem, len(itemModels))
	for i := range itemModels {
		items[i] = itemModels[i].ToDomain()
	}
	return items, nil
}

// SaveItemOutcome persists an item leaving processing and, when the item is
// terminal, increments the job counter in the same transaction
func (r *GormJobRepository) SaveItemOutcome(ctx context.Context, item *integration.JobItem, terminal bool) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.JobItemModel{}).
			Where("id = ? AND status = ?", item.ID, integration.ItemStatusProcessing).
			Updates(map[string]any{
				"status":        item.Status,
				"attempts":      item.Attempts,
				"next_retry_at": item.NextRetryAt,
				"error_message": item.ErrorMessage,
				"updated_at":    item.UpdatedAt,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("%w: item %s is not processing", integration.ErrItemInvalidTransition, item.ID)
		}
		if !terminal {
			return nil
		}

		column := "completed_items"
		if item.Status == integration.ItemStatusFailed {
			column = "failed_items"
		}
		result = tx.Model(&models.JobModel{}).
			Where("id = ? AND completed_items + failed_items < total_items", item.JobID).
			Updates(map[string]any{
				column:       gorm.Expr(column + " + 1"),
				"updated_at": item.UpdatedAt,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("%w: job %s counters are full", integration.ErrJobInvalidTransition, item.JobID)
		}
		return nil
	})
}

// CompleteIfFinished completes a running job whose items are all terminal
func (r *GormJobRepository) CompleteIfFinished(ctx context.Context, jobID uuid.UUID, now time.Time) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.JobModel{}).
		Where("id = ? AND status = ? AND completed_items + failed_items >= total_items", jobID, integration.JobStatusRunning).
		Updates(map[string]any{
			"status":       integration.JobStatusCompleted,
			"completed_at": now,
			"updated_at":   now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// CompleteFinishedJobs completes running jobs whose items are all terminal but
// whose completion was never recorded
func (r *GormJobRepository) CompleteFinishedJobs(ctx context.Context, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Model(&models.JobModel{}).
		Where("status = ? AND completed_items + failed_items >= total_items", integration.JobStatusRunning).
		Updates(map[string]any{
			"status":       integration.JobStatusCompleted,
			"completed_at": now,
			"updated_at":   now,
		})
	return result.RowsAffected, result.Error
}

// MarkFailed moves a non-terminal job to failed
func (r *GormJobRepository) MarkFailed(ctx context.Context, jobID uuid.UUID, message string, now time.Time) error {
	result := r.db.WithContext(ctx).Model(&models.JobModel{}).
		Where("id = ? AND status IN ?", jobID, []integration.JobStatus{integration.JobStatusPending, integration.JobStatusRunning}).
		Updates(map[string]any{
			"status":        integration.JobStatusFailed,
			"error_message": message,
			"completed_at":  now,
			"updated_at":    now,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: job %s is already terminal", integration.ErrJobInvalidTransition, jobID)
	}
	return nil
}

// Cancel moves a pending job to cancelled
func (r *GormJobRepository) Cancel(ctx context.Context, jobID uuid.UUID, now time.Time) error {
	result := r.db.WithContext(ctx).Model(&models.JobModel{}).
		Where("id = ? AND status = ?", jobID, integration.JobStatusPending).
		Updates(map[string]any{
			"status":       integration.JobStatusCancelled,
			"completed_at": now,
			"updated_at":   now,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		return nil
	}

	if _, err := r.FindByID(ctx, jobID); err != nil {
		return err
	}
	return integration.ErrJobNotCancellable
}

// ResetFailedItems resets a job's failed items to pending and the job to pending
func (r *GormJobRepository) ResetFailedItems(ctx context.Context, jobID uuid.UUID, now time.Time) (int, error) {
	var reset int

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var model models.JobModel
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&model, "id = ?", jobID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return integration.ErrJobNotFound
			}
			return err
		}
		job := model.ToDomain()
		if !job.CanRetry() {
			return integration.ErrJobNotRetryable
		}

		result := tx.Model(&models.JobItemModel{}).
			Where("job_id = ? AND status = ?", jobID, integration.ItemStatusFailed).
			Updates(map[string]any{
				"status":        integration.ItemStatusPending,
				"attempts":      0,
				"next_retry_at": nil,
				"error_message": "",
				"updated_at":    now,
			})
		if result.Error != nil {
			return result.Error
		}
		reset = int(result.RowsAffected)

		if err := job.ResetForRetry(reset, now); err != nil {
			return err
		}
		return tx.Model(&models.JobModel{}).
			Where("id = ?", jobID).
			Updates(map[string]any{
				"status":        job.Status,
				"failed_items":  job.FailedItems,
				"error_message": "",
				"started_at":    nil,
				"completed_at":  nil,
				"updated_at":    now,
			}).Error
	})
	if err != nil {
		return 0, err
	}
	return reset, nil
}

// RecoverStaleItems returns items stuck in processing since before olderThan to pending
func (r *GormJobRepository) RecoverStaleItems(ctx context.Context, olderThan time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Model(&models.JobItemModel{}).
		Where("status = ? AND updated_at < ?", integration.ItemStatusProcessing, olderThan).
		Updates(map[string]any{
			"status":     integration.ItemStatusPending,
			"updated_at": time.Now(),
		})
	return result.RowsAffected, result.Error
}

func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultJobPageSize
	}
	if pageSize > maxJobPageSize {
		pageSize = maxJobPageSize
	}
	return page, pageSize
}

var _ integration.JobRepository = (*GormJobRepository)(nil)
