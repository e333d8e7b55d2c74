package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/storefront/backend/internal/domain/integration"
)

// ProductModel is the persistence model for a canonical product
type ProductModel struct {
	ID             uuid.UUID                 `gorm:"type:uuid;primary_key"`
	SKU            string                    `gorm:"type:varchar(64);index"`
	Title          string                    `gorm:"type:varchar(500);not null"`
	Description    string                    `gorm:"type:text"`
	Images         StringList                `gorm:"type:jsonb"`
	Price          decimal.Decimal           `gorm:"type:decimal(18,4);not null"`
	CompareAtPrice *decimal.Decimal          `gorm:"type:decimal(18,4)"`
	Stock          int                       `gorm:"not null;default:0"`
	Status         integration.ProductStatus `gorm:"type:varchar(20);not null"`
	UpdatedAt      time.Time                 `gorm:"not null"`
}

// TableName returns the table name for GORM
func (ProductModel) TableName() string {
	return "products"
}

// ToDomain converts the persistence model to a domain Product
func (m *ProductModel) ToDomain() *integration.Product {
	return &integration.Product{
		ID:             m.ID,
		SKU:            m.SKU,
		Title:          m.Title,
		Description:    m.Description,
		Images:         []string(m.Images),
		Price:          m.Price,
		CompareAtPrice: m.CompareAtPrice,
		Stock:          m.Stock,
		Status:         m.Status,
		UpdatedAt:      m.UpdatedAt,
	}
}

// ProductModelFromDomain creates a persistence model from a domain Product
func ProductModelFromDomain(p *integration.Product) *ProductModel {
	return &ProductModel{
		ID:             p.ID,
		SKU:            p.SKU,
		Title:          p.Title,
		Description:    p.Description,
		Images:         StringList(p.Images),
		Price:          p.Price,
		CompareAtPrice: p.CompareAtPrice,
		Stock:          p.Stock,
		Status:         p.Status,
		UpdatedAt:      p.UpdatedAt,
	}
}

// OrderModel is the persistence model for a canonical order
type OrderModel struct {
	ID               uuid.UUID               `gorm:"type:uuid;primary_key"`
	ChannelAccountID uuid.UUID               `gorm:"type:uuid;not null;uniqueIndex:idx_orders_account_platform,priority:1"`
	PlatformOrderID  string                  `gorm:"type:varchar(100);not null;uniqueIndex:idx_orders_account_platform,priority:2"`
	Status           integration.OrderStatus `gorm:"type:varchar(20);not null"`
	PlatformStatus   string                  `gorm:"type:varchar(50)"`
	BuyerName        string                  `gorm:"type:varchar(200)"`
	TotalAmount      decimal.Decimal         `gorm:"type:decimal(18,4);not null"`
	Currency         string                  `gorm:"type:varchar(3)"`
	Items            OrderLines              `gorm:"type:jsonb"`
	TrackingNumber   string                  `gorm:"type:varchar(100)"`
	Carrier          string                  `gorm:"type:varchar(100)"`
	PlacedAt         time.Time
	UpdatedAt        time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (OrderModel) TableName() string {
	return "orders"
}

// ToDomain converts the persistence model to a domain Order
func (m *OrderModel) ToDomain() *integration.Order {
	return &integration.Order{
		ID:               m.ID,
		ChannelAccountID: m.ChannelAccountID,
		PlatformOrderID:  m.PlatformOrderID,
		Status:           m.Status,
		PlatformStatus:   m.PlatformStatus,
		BuyerName:        m.BuyerName,
		TotalAmount:      m.TotalAmount,
		Currency:         m.Currency,
		Items:            []integration.OrderItem(m.Items),
		TrackingNumber:   m.TrackingNumber,
		Carrier:          m.Carrier,
		PlacedAt:         m.PlacedAt,
		UpdatedAt:        m.UpdatedAt,
	}
}

// OrderModelFromDomain creates a persistence model from a domain Order
func OrderModelFromDomain(o *integration.Order) *OrderModel {
	return &OrderModel{
		ID:               o.ID,
		ChannelAccountID: o.ChannelAccountID,
		PlatformOrderID:  o.PlatformOrderID,
		Status:           o.Status,
		PlatformStatus:   o.PlatformStatus,
		BuyerName:        o.BuyerName,
		TotalAmount:      o.TotalAmount,
		Currency:         o.Currency,
		Items:            OrderLines(o.Items),
		TrackingNumber:   o.TrackingNumber,
		Carrier:          o.Carrier,
		PlacedAt:         o.PlacedAt,
		UpdatedAt:        o.UpdatedAt,
	}
}

// ListingModel is the persistence model for a product's copy on one channel account
type ListingModel struct {
	ID                uuid.UUID       `gorm:"type:uuid;primary_key"`
	ProductID         uuid.UUID       `gorm:"type:uuid;not null;index"`
	ChannelAccountID  uuid.UUID       `gorm:"type:uuid;not null;index:idx_listings_account_platform,priority:1"`
	PlatformProductID string          `gorm:"type:varchar(100);index:idx_listings_account_platform,priority:2"`
	Stock             int             `gorm:"not null;default:0"`
	Price             decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	LowStockThreshold int             `gorm:"not null;default:5"`
	UpdatedAt         time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (ListingModel) TableName() string {
	return "listings"
}

// ToDomain converts the persistence model to a domain Listing
func (m *ListingModel) ToDomain() *integration.Listing {
	return &integration.Listing{
		ID:                m.ID,
		ProductID:         m.ProductID,
		ChannelAccountID:  m.ChannelAccountID,
		PlatformProductID: m.PlatformProductID,
		Stock:             m.Stock,
		Price:             m.Price,
		LowStockThreshold: m.LowStockThreshold,
		UpdatedAt:         m.UpdatedAt,
	}
}

// ListingModelFromDomain creates a persistence model from a domain Listing
func ListingModelFromDomain(l *integration.Listing) *ListingModel {
	return &ListingModel{
		ID:                l.ID,
		ProductID:         l.ProductID,
		ChannelAccountID:  l.ChannelAccountID,
		PlatformProductID: l.PlatformProductID,
		Stock:             l.Stock,
		Price:             l.Price,
		LowStockThreshold: l.LowStockThreshold,
		UpdatedAt:         l.UpdatedAt,
	}
}
