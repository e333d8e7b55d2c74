package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/storefront/backend/internal/domain/integration"
	"github.com/storefront/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormChannelAccountRepository implements integration.ChannelAccountRepository using GORM
type GormChannelAccountRepository struct {
	db *gorm.DB
}

// NewGormChannelAccountRepository creates a new GormChannelAccountRepository
func NewGormChannelAccountRepository(db *gorm.DB) *GormChannelAccountRepository {
	return &GormChannelAccountRepository{db: db}
}

// Create inserts a channel account
func (r *GormChannelAccountRepository) Create(ctx context.Context, account *integration.ChannelAccount) error {
	if account.ID == uuid.Nil {
		account.ID = uuid.New()
	}
	now := time.Now()
	if account.CreatedAt.IsZero() {
		account.CreatedAt = now
	}
	account.UpdatedAt = now
	return r.db.WithContext(ctx).Create(models.ChannelAccountModelFromDomain(account)).Error
}

// FindByID finds a channel account by ID
func (r *GormChannelAccountRepository) FindByID(ctx context.Context, id uuid.UUID) (*integration.ChannelAccount, error) {
	var model models.ChannelAccountModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, integration.ErrAccountNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindActiveByPlatform returns the active accounts of one platform, oldest first
func (r *GormChannelAccountRepository) FindActiveByPlatform(ctx context.Context, platform integration.PlatformCode) ([]integration.ChannelAccount, error) {
	var accountModels []models.ChannelAccountModel
	if err := r.db.WithContext(ctx).
		Where("platform = ? AND is_active = ?", platform, true).
		Order("created_at ASC").
		Find(&accountModels).Error; err != nil {
		return nil, err
	}

	accounts := make([]integration.ChannelAccount, len(accountModels))
	for i := range accountModels {
		accounts[i] = *accountModels[i].ToDomain()
	}
	return accounts, nil
}

// FindExpiring returns active accounts holding a refresh token whose access
// token expires before the given time
func (r *GormChannelAccountRepository) FindExpiring(ctx context.Context, before time.Time) ([]integration.ChannelAccount, error) {
	var accountModels []models.ChannelAccountModel
	if err := r.db.WithContext(ctx).
		Where("is_active = ? AND refresh_token <> ''", true).
		Where("token_expires_at IS NOT NULL AND token_expires_at <= ?", before).
		Order("token_expires_at ASC").
		Find(&accountModels).Error; err != nil {
		return nil, err
	}

	accounts := make([]integration.ChannelAccount, len(accountModels))
	for i := range accountModels {
		accounts[i] = *accountModels[i].ToDomain()
	}
	return accounts, nil
}

// SaveTokens stores a refreshed token set and clears the last refresh error.
// An empty refresh token keeps the stored one.
func (r *GormChannelAccountRepository) SaveTokens(ctx context.Context, id uuid.UUID, tokens *integration.TokenSet, refreshedAt time.Time) error {
	updates := map[string]any{
		"access_token":       tokens.AccessToken,
		"token_expires_at":   tokens.ExpiresAt,
		"last_refresh_at":    refreshedAt,
		"last_refresh_error": "",
		"updated_at":         refreshedAt,
	}
	if tokens.RefreshToken != "" {
		updates["refresh_token"] = tokens.RefreshToken
	}

	result := r.db.WithContext(ctx).Model(&models.ChannelAccountModel{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return integration.ErrAccountNotFound
	}
	return nil
}

// RecordRefreshFailure stores the reason the last token refresh failed
func (r *GormChannelAccountRepository) RecordRefreshFailure(ctx context.Context, id uuid.UUID, message string, at time.Time) error {
	result := r.db.WithContext(ctx).Model(&models.ChannelAccountModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"last_refresh_error": message,
			"updated_at":         at,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return integration.ErrAccountNotFound
	}
	return nil
}

var _ integration.ChannelAccountRepository = (*GormChannelAccountRepository)(nil)
