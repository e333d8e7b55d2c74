package integration

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ProductStatus is the canonical product status
type ProductStatus string

const (
	ProductStatusDraft    ProductStatus = "draft"
	ProductStatusActive   ProductStatus = "active"
	ProductStatusInactive ProductStatus = "inactive"
	ProductStatusDeleted  ProductStatus = "deleted"
)

// OrderStatus is the canonical order status
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusPaid      OrderStatus = "paid"
	OrderStatusShipped   OrderStatus = "shipped"
	OrderStatusDelivered OrderStatus = "delivered"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusCancelled OrderStatus = "cancelled"
	OrderStatusRefunding OrderStatus = "refunding"
	OrderStatusRefunded  OrderStatus = "refunded"
	OrderStatusClosed    OrderStatus = "closed"
)

// IsValid returns true if the order status is known
func (s OrderStatus) IsValid() bool {
	switch s {
	case OrderStatusPending, OrderStatusPaid, OrderStatusShipped, OrderStatusDelivered,
		OrderStatusCompleted, OrderStatusCancelled, OrderStatusRefunding,
		OrderStatusRefunded, OrderStatusClosed:
		return true
	default:
		return false
	}
}

// Product is the canonical product record. On values returned by a connector
// PlatformID holds the platform's product id and ID is unset.
type Product struct {
	ID             uuid.UUID
	PlatformID     string
	SKU            string   `validate:"max=64"`
	Title          string   `validate:"required"`
	Description    string
	Images         []string `validate:"dive,url"`
	Price          decimal.Decimal
	CompareAtPrice *decimal.Decimal
	Stock          int
	Status         ProductStatus
	UpdatedAt      time.Time
}

// OrderItem is a line of a canonical order
type OrderItem struct {
	PlatformProductID string
	SKU               string
	Title             string
	Quantity          int
	UnitPrice         decimal.Decimal
}

// Order is the canonical order record
type Order struct {
	ID               uuid.UUID
	ChannelAccountID uuid.UUID
	PlatformOrderID  string
	Status           OrderStatus
	PlatformStatus   string
	BuyerName        string
	TotalAmount      decimal.Decimal
	Currency         string
	Items            []OrderItem
	TrackingNumber   string
	Carrier          string
	PlacedAt         time.Time
	UpdatedAt        time.Time
}

// ProductIDs returns the distinct platform product ids on the order
func (o *Order) ProductIDs() []string {
	seen := make(map[string]struct{}, len(o.Items))
	ids := make([]string, 0, len(o.Items))
	for _, item := range o.Items {
		if item.PlatformProductID == "" {
			continue
		}
		if _, ok := seen[item.PlatformProductID]; ok {
			continue
		}
		seen[item.PlatformProductID] = struct{}{}
		ids = append(ids, item.PlatformProductID)
	}
	return ids
}

// DefaultLowStockThreshold is applied to listings without their own threshold
const DefaultLowStockThreshold = 5

// Listing links a canonical product to its copy on one channel account
type Listing struct {
	ID                uuid.UUID
	ProductID         uuid.UUID
	ChannelAccountID  uuid.UUID
	PlatformProductID string
	Stock             int
	Price             decimal.Decimal
	LowStockThreshold int
	UpdatedAt         time.Time
}

// ChannelAccount holds one shop's platform credentials and call limits.
// The engine only reads it; token fields are written by the refresh flow.
type ChannelAccount struct {
	ID                    uuid.UUID
	TenantID              uuid.UUID
	Platform              PlatformCode
	Market                string
	ShopID                string
	AppKey                string
	AppSecret             string
	WebhookSecret         string
	AccessToken           string
	RefreshToken          string
	TokenExpiresAt        *time.Time
	RateLimitPerMinute    int
	MaxRetries            int
	RequestTimeoutSeconds int
	// SignatureUnverified marks accounts whose platform has no finalized
	// webhook signing scheme. Deliveries are accepted without verification.
	SignatureUnverified bool
	Sandbox             bool
	IsActive            bool
	LastRefreshAt       *time.Time
	LastRefreshError    string
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// Account defaults
const (
	DefaultRateLimitPerMinute    = 60
	DefaultRequestTimeoutSeconds = 30
)

// RequestTimeout returns the per-call timeout for this account
func (a *ChannelAccount) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return DefaultRequestTimeoutSeconds * time.Second
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// RequestsPerMinute returns the configured rate limit
func (a *ChannelAccount) RequestsPerMinute() int {
	if a.RateLimitPerMinute <= 0 {
		return DefaultRateLimitPerMinute
	}
	return a.RateLimitPerMinute
}

// ItemMaxAttempts returns the retry budget for items of this account
func (a *ChannelAccount) ItemMaxAttempts() int {
	if a.MaxRetries <= 0 {
		return DefaultMaxAttempts
	}
	return min(a.MaxRetries, MaxAllowedAttempts)
}

