package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/storefront/backend/internal/domain/integration"
	"github.com/storefront/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	productUpsertColumns = []string{"sku", "title", "description", "images", "price", "compare_at_price", "stock", "status", "updated_at"}
	orderUpsertColumns   = []string{"status", "platform_status", "buyer_name", "total_amount", "currency", "items", "tracking_number", "carrier", "placed_at", "updated_at"}
	listingUpsertColumns = []string{"product_id", "channel_account_id", "platform_product_id", "stock", "price", "low_stock_threshold", "updated_at"}
)

// GormRecordStore implements integration.RecordStore using GORM.
// Every upsert is a single INSERT ... ON CONFLICT statement that only
// overwrites a row when the incoming updated_at is not older than the stored one.
type GormRecordStore struct {
	db *gorm.DB
}

// NewGormRecordStore creates a new GormRecordStore
func NewGormRecordStore(db *gorm.DB) *GormRecordStore {
	return &GormRecordStore{db: db}
}

// lastWriteWins builds the conflict clause for table keyed by columns
func lastWriteWins(table string, keys []string, columns []string) clause.OnConflict {
	conflictColumns := make([]clause.Column, len(keys))
	for i, key := range keys {
		conflictColumns[i] = clause.Column{Name: key}
	}
	return clause.OnConflict{
		Columns:   conflictColumns,
		DoUpdates: clause.AssignmentColumns(columns),
		Where: clause.Where{Exprs: []clause.Expression{
			clause.Expr{SQL: table + ".updated_at <= excluded.updated_at"},
		}},
	}
}

// GetProduct finds a canonical product by ID
func (s *GormRecordStore) GetProduct(ctx context.Context, id uuid.UUID) (*integration.Product, error) {
	var model models.ProductModel
	if err := s.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, integration.ErrRecordNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// UpsertProduct writes a product unless the stored copy is newer
func (s *GormRecordStore) UpsertProduct(ctx context.Context, product *integration.Product) (bool, error) {
	if product.ID == uuid.Nil {
		product.ID = uuid.New()
	}
	result := s.db.WithContext(ctx).
		Clauses(lastWriteWins("products", []string{"id"}, productUpsertColumns)).
		Create(models.ProductModelFromDomain(product))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// GetOrder finds a canonical order by ID
func (s *GormRecordStore) GetOrder(ctx context.Context, id uuid.UUID) (*integration.Order, error) {
	var model models.OrderModel
	if err := s.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, integration.ErrRecordNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindOrderByPlatformID finds the canonical copy of a platform order
func (s *GormRecordStore) FindOrderByPlatformID(ctx context.Context, accountID uuid.UUID, platformOrderID string) (*integration.Order, error) {
	var model models.OrderModel
	if err := s.db.WithContext(ctx).
		Where("channel_account_id = ? AND platform_order_id = ?", accountID, platformOrderID).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, integration.ErrRecordNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// UpsertOrder writes an order keyed by account and platform order id unless
// the stored copy is newer
func (s *GormRecordStore) UpsertOrder(ctx context.Context, order *integration.Order) (bool, error) {
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	result := s.db.WithContext(ctx).
		Clauses(lastWriteWins("orders", []string{"channel_account_id", "platform_order_id"}, orderUpsertColumns)).
		Create(models.OrderModelFromDomain(order))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// GetListing finds a listing by ID
func (s *GormRecordStore) GetListing(ctx context.Context, id uuid.UUID) (*integration.Listing, error) {
	var model models.ListingModel
	if err := s.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, integration.ErrRecordNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindListingsByIDs returns the listings that exist among ids
func (s *GormRecordStore) FindListingsByIDs(ctx context.Context, ids []uuid.UUID) ([]integration.Listing, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var listingModels []models.ListingModel
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&listingModels).Error; err != nil {
		return nil, err
	}

	listings := make([]integration.Listing, len(listingModels))
	for i := range listingModels {
		listings[i] = *listingModels[i].ToDomain()
	}
	return listings, nil
}

// FindListingByPlatformID finds the listing of a platform product on an account
func (s *GormRecordStore) FindListingByPlatformID(ctx context.Context, accountID uuid.UUID, platformProductID string) (*integration.Listing, error) {
	var model models.ListingModel
	if err := s.db.WithContext(ctx).
		Where("channel_account_id = ? AND platform_product_id = ?", accountID, platformProductID).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, integration.ErrRecordNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// UpsertListing writes a listing unless the stored copy is newer
func (s *GormRecordStore) UpsertListing(ctx context.Context, listing *integration.Listing) (bool, error) {
	if listing.ID == uuid.Nil {
		listing.ID = uuid.New()
	}
	if listing.LowStockThreshold == 0 {
		listing.LowStockThreshold = integration.DefaultLowStockThreshold
	}
	result := s.db.WithContext(ctx).
		Clauses(lastWriteWins("listings", []string{"id"}, listingUpsertColumns)).
		Create(models.ListingModelFromDomain(listing))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

var _ integration.RecordStore = (*GormRecordStore)(nil)
