package integration

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ConnectorErrorCode classifies a connector failure
type ConnectorErrorCode string

const (
	// Transient failures, retried with backoff
	ConnectorErrTimeout             ConnectorErrorCode = "TIMEOUT"
	ConnectorErrRateLimited         ConnectorErrorCode = "RATE_LIMITED"
	ConnectorErrPlatformUnavailable ConnectorErrorCode = "PLATFORM_UNAVAILABLE"
	ConnectorErrServerError         ConnectorErrorCode = "SERVER_ERROR"

	// Permanent failures, never retried
	ConnectorErrValidation       ConnectorErrorCode = "VALIDATION"
	ConnectorErrNotFound         ConnectorErrorCode = "NOT_FOUND"
	ConnectorErrUnauthorized     ConnectorErrorCode = "UNAUTHORIZED"
	ConnectorErrPolicyRestricted ConnectorErrorCode = "POLICY_RESTRICTED"
	ConnectorErrBadResponse      ConnectorErrorCode = "BAD_RESPONSE"
)

// Retryable reports whether failures with this code are transient
func (c ConnectorErrorCode) Retryable() bool {
	switch c {
	case ConnectorErrTimeout, ConnectorErrRateLimited, ConnectorErrPlatformUnavailable, ConnectorErrServerError:
		return true
	default:
		return false
	}
}

// ConnectorError is the typed failure every connector operation returns
type ConnectorError struct {
	Code      ConnectorErrorCode
	Message   string
	Retryable bool
}

// Error implements the error interface
func (e *ConnectorError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewConnectorError creates a ConnectorError whose retryability follows its code
func NewConnectorError(code ConnectorErrorCode, format string, args ...any) *ConnectorError {
	return &ConnectorError{
		Code:      code,
		Message:   fmt.Sprintf(format, args...),
		Retryable: code.Retryable(),
	}
}

// AsConnectorError unwraps err into a ConnectorError
func AsConnectorError(err error) (*ConnectorError, bool) {
	var connErr *ConnectorError
	if errors.As(err, &connErr) {
		return connErr, true
	}
	return nil, false
}

// OrderFilter narrows ListOrders
type OrderFilter struct {
	Status      *OrderStatus
	UpdatedFrom time.Time
	UpdatedTo   time.Time
	Page        int
	PageSize    int
}

// OrderStatusUpdate is pushed to the platform for an order
type OrderStatusUpdate struct {
	Status         OrderStatus
	TrackingNumber string
	Carrier        string
}

// Connector is the port to one platform's API, bound to one channel account.
// Every failure is a *ConnectorError.
type Connector interface {
	Platform() PlatformCode

	// VerifySignature checks an inbound webhook body against its signature
	// header in constant time.
	VerifySignature(rawBody []byte, signature string) bool
	// DecodeEvent maps a validated envelope onto the event taxonomy. Unknown
	// event names yield UnhandledEvent, never an error.
	DecodeEvent(envelope *WebhookEnvelope) (WebhookEvent, error)

	GetProduct(ctx context.Context, platformProductID string) (*Product, error)
	CreateProduct(ctx context.Context, product *Product) (*Product, error)
	UpdateProduct(ctx context.Context, platformProductID string, product *Product) (*Product, error)
	UpdateStock(ctx context.Context, platformProductID string, stock int) error
	UpdatePrice(ctx context.Context, platformProductID string, price decimal.Decimal, compareAt *decimal.Decimal) error

	ListOrders(ctx context.Context, filter OrderFilter) ([]Order, error)
	GetOrder(ctx context.Context, platformOrderID string) (*Order, error)
	UpdateOrderStatus(ctx context.Context, platformOrderID string, update OrderStatusUpdate) error

	HealthCheck(ctx context.Context) error
}

// ConnectorProvider hands out connectors bound to channel accounts
type ConnectorProvider interface {
	ForAccount(account *ChannelAccount) (Connector, error)
	Invalidate(accountID uuid.UUID)
}

// TokenSet is the result of an access token refresh
type TokenSet struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// TokenRefresher runs a platform's token refresh flow for one account
type TokenRefresher interface {
	RefreshToken(ctx context.Context, account *ChannelAccount) (*TokenSet, error)
}

// TokenRefreshFailure is one account whose refresh failed in a run
type TokenRefreshFailure struct {
	AccountID uuid.UUID    `json:"accountId"`
	Platform  PlatformCode `json:"platform"`
	Error     string       `json:"error"`
}

// TokenRefreshSummary is the outcome of one scheduled refresh run
type TokenRefreshSummary struct {
	Checked   int                   `json:"checked"`
	Refreshed int                   `json:"refreshed"`
	Failed    int                   `json:"failed"`
	Failures  []TokenRefreshFailure `json:"failures"`
}
