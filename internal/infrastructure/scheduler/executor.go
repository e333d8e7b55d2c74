package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/storefront/backend/internal/domain/integration"
)

// Target is the account and connector a job runs against
type Target struct {
	Account   *integration.ChannelAccount
	Connector integration.Connector
}

// Outcome describes a successful item attempt
type Outcome struct {
	// Direction is the way data moved. Pull and push jobs always report
	// their own direction; sync jobs report the last-write-wins decision.
	Direction integration.SyncDirection
	// Applied is false when the canonical store kept a newer copy
	Applied bool
}

// ItemExecutor performs one attempt of a job item
type ItemExecutor interface {
	Execute(ctx context.Context, job *integration.Job, item *integration.JobItem, target Target) (Outcome, error)
}

// SyncExecutor dispatches items by job type and item type.
//
// Pull items carry the platform id of the product or order. Push and sync
// items carry the canonical id: a listing id for product, stock and price
// items and an order id for order items.
type SyncExecutor struct {
	records integration.RecordStore
	logger  *zap.Logger
	now     func() time.Time
}

// NewSyncExecutor creates an executor writing through records
func NewSyncExecutor(records integration.RecordStore, logger *zap.Logger) *SyncExecutor {
	return &SyncExecutor{
		records: records,
		logger:  logger,
		now:     time.Now,
	}
}

// Execute runs one attempt of item
func (e *SyncExecutor) Execute(ctx context.Context, job *integration.Job, item *integration.JobItem, target Target) (Outcome, error) {
	switch job.Type {
	case integration.JobTypePull:
		return e.pull(ctx, item, target)
	case integration.JobTypePush:
		return e.push(ctx, item, target)
	case integration.JobTypeSync:
		return e.sync(ctx, item, target)
	default:
		return Outcome{}, fmt.Errorf("%w: job type %q", ErrUnsupportedItem, job.Type)
	}
}

// ---------------------------------------------------------------------------
// Pull
// ---------------------------------------------------------------------------

func (e *SyncExecutor) pull(ctx context.Context, item *integration.JobItem, target Target) (Outcome, error) {
	switch item.ItemType {
	case integration.ItemTypeProduct, integration.ItemTypeStock, integration.ItemTypePrice:
		remote, err := target.Connector.GetProduct(ctx, item.ItemID)
		if err != nil {
			return Outcome{}, err
		}
		if hint, ok := item.Metadata.Int(integration.MetaStockHint); ok && hint != remote.Stock {
			e.logger.Debug("Platform stock differs from webhook hint",
				zap.String("item_id", item.ItemID),
				zap.Int("hint", hint),
				zap.Int("stock", remote.Stock),
			)
		}
		applied, err := e.storeProduct(ctx, target, remote)
		return Outcome{Direction: integration.SyncDirectionPull, Applied: applied}, err
	case integration.ItemTypeOrder:
		remote, err := target.Connector.GetOrder(ctx, item.ItemID)
		if err != nil {
			return Outcome{}, err
		}
		applied, err := e.storeOrder(ctx, target, remote, uuid.Nil)
		return Outcome{Direction: integration.SyncDirectionPull, Applied: applied}, err
	default:
		return Outcome{}, fmt.Errorf("%w: item type %q", ErrUnsupportedItem, item.ItemType)
	}
}

// storeProduct upserts the canonical product and the account's listing of it
func (e *SyncExecutor) storeProduct(ctx context.Context, target Target, remote *integration.Product) (bool, error) {
	listing, err := e.records.FindListingByPlatformID(ctx, target.Account.ID, remote.PlatformID)
	switch {
	case errors.Is(err, integration.ErrRecordNotFound):
		listing = &integration.Listing{
			ProductID:         uuid.New(),
			ChannelAccountID:  target.Account.ID,
			PlatformProductID: remote.PlatformID,
		}
	case err != nil:
		return false, err
	}

	updatedAt := remote.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = e.now().UTC()
	}

	product := *remote
	product.ID = listing.ProductID
	product.UpdatedAt = updatedAt
	applied, err := e.records.UpsertProduct(ctx, &product)
	if err != nil {
		return false, err
	}

	listing.Stock = remote.Stock
	listing.Price = remote.Price
	listing.UpdatedAt = updatedAt
	listingApplied, err := e.records.UpsertListing(ctx, listing)
	if err != nil {
		return false, err
	}
	return applied || listingApplied, nil
}

// storeOrder upserts the canonical copy of a platform order. A non-nil id
// keeps the canonical order's identity.
func (e *SyncExecutor) storeOrder(ctx context.Context, target Target, remote *integration.Order, id uuid.UUID) (bool, error) {
	if id == uuid.Nil {
		existing, err := e.records.FindOrderByPlatformID(ctx, target.Account.ID, remote.PlatformOrderID)
		switch {
		case err == nil:
			id = existing.ID
		case !errors.Is(err, integration.ErrRecordNotFound):
			return false, err
		}
	}
	order := *remote
	order.ID = id
	order.ChannelAccountID = target.Account.ID
	if order.UpdatedAt.IsZero() {
		order.UpdatedAt = e.now().UTC()
	}
	return e.records.UpsertOrder(ctx, &order)
}

// ---------------------------------------------------------------------------
// Push
// ---------------------------------------------------------------------------

func (e *SyncExecutor) push(ctx context.Context, item *integration.JobItem, target Target) (Outcome, error) {
	if item.ItemType == integration.ItemTypeOrder {
		order, err := e.loadOrder(ctx, item.ItemID, target)
		if err != nil {
			return Outcome{}, err
		}
		return e.pushOrder(ctx, order, target)
	}

	listing, err := e.loadListing(ctx, item.ItemID, target)
	if err != nil {
		return Outcome{}, err
	}

	switch item.ItemType {
	case integration.ItemTypeProduct:
		return e.pushProduct(ctx, listing, target)
	case integration.ItemTypeStock:
		stock := listing.Stock
		if n, ok := item.Metadata.Int(integration.MetaNewStock); ok {
			stock = n
		}
		return e.pushStock(ctx, listing, stock, target)
	case integration.ItemTypePrice:
		price, ok, err := metadataDecimal(item.Metadata, integration.MetaPrice)
		if err != nil {
			return Outcome{}, err
		}
		if !ok {
			price = listing.Price
		}
		compareAt, hasCompareAt, err := metadataDecimal(item.Metadata, integration.MetaCompareAtPrice)
		if err != nil {
			return Outcome{}, err
		}
		var compareAtPtr *decimal.Decimal
		if hasCompareAt {
			compareAtPtr = &compareAt
		}
		return e.pushPrice(ctx, listing, price, compareAtPtr, target)
	default:
		return Outcome{}, fmt.Errorf("%w: item type %q", ErrUnsupportedItem, item.ItemType)
	}
}

// pushProduct creates the platform product on first push and updates it after
func (e *SyncExecutor) pushProduct(ctx context.Context, listing *integration.Listing, target Target) (Outcome, error) {
	product, err := e.records.GetProduct(ctx, listing.ProductID)
	if err != nil {
		return Outcome{}, err
	}

	var written *integration.Product
	if listing.PlatformProductID == "" {
		written, err = target.Connector.CreateProduct(ctx, product)
		if err != nil {
			return Outcome{}, err
		}
		listing.PlatformProductID = written.PlatformID
	} else {
		written, err = target.Connector.UpdateProduct(ctx, listing.PlatformProductID, product)
		if err != nil {
			return Outcome{}, err
		}
	}

	listing.Stock = product.Stock
	listing.Price = product.Price
	listing.UpdatedAt = latest(listing.UpdatedAt, written.UpdatedAt)
	applied, err := e.records.UpsertListing(ctx, listing)
	return Outcome{Direction: integration.SyncDirectionPush, Applied: applied}, err
}

func (e *SyncExecutor) pushStock(ctx context.Context, listing *integration.Listing, stock int, target Target) (Outcome, error) {
	if listing.PlatformProductID == "" {
		return Outcome{}, fmt.Errorf("%w: %s", ErrListingNotPublished, listing.ID)
	}
	if err := target.Connector.UpdateStock(ctx, listing.PlatformProductID, stock); err != nil {
		return Outcome{}, err
	}
	listing.Stock = stock
	listing.UpdatedAt = latest(listing.UpdatedAt, e.now().UTC())
	applied, err := e.records.UpsertListing(ctx, listing)
	return Outcome{Direction: integration.SyncDirectionPush, Applied: applied}, err
}

func (e *SyncExecutor) pushPrice(ctx context.Context, listing *integration.Listing, price decimal.Decimal, compareAt *decimal.Decimal, target Target) (Outcome, error) {
	if listing.PlatformProductID == "" {
		return Outcome{}, fmt.Errorf("%w: %s", ErrListingNotPublished, listing.ID)
	}
	if err := target.Connector.UpdatePrice(ctx, listing.PlatformProductID, price, compareAt); err != nil {
		return Outcome{}, err
	}
	listing.Price = price
	listing.UpdatedAt = latest(listing.UpdatedAt, e.now().UTC())
	applied, err := e.records.UpsertListing(ctx, listing)
	return Outcome{Direction: integration.SyncDirectionPush, Applied: applied}, err
}

func (e *SyncExecutor) pushOrder(ctx context.Context, order *integration.Order, target Target) (Outcome, error) {
	if err := target.Connector.UpdateOrderStatus(ctx, order.PlatformOrderID, integration.OrderStatusUpdate{
		Status:         order.Status,
		TrackingNumber: order.TrackingNumber,
		Carrier:        order.Carrier,
	}); err != nil {
		return Outcome{}, err
	}
	return Outcome{Direction: integration.SyncDirectionPush, Applied: true}, nil
}

// ---------------------------------------------------------------------------
// Sync
// ---------------------------------------------------------------------------

// sync keeps whichever copy was written last. Equal timestamps are a no-op.
func (e *SyncExecutor) sync(ctx context.Context, item *integration.JobItem, target Target) (Outcome, error) {
	if item.ItemType == integration.ItemTypeOrder {
		return e.syncOrder(ctx, item, target)
	}

	listing, err := e.loadListing(ctx, item.ItemID, target)
	if err != nil {
		return Outcome{}, err
	}
	if listing.PlatformProductID == "" {
		if item.ItemType == integration.ItemTypeProduct {
			return e.pushProduct(ctx, listing, target)
		}
		return Outcome{}, fmt.Errorf("%w: %s", ErrListingNotPublished, listing.ID)
	}

	remote, err := target.Connector.GetProduct(ctx, listing.PlatformProductID)
	if err != nil {
		return Outcome{}, err
	}

	canonicalUpdatedAt := listing.UpdatedAt
	if item.ItemType == integration.ItemTypeProduct {
		product, err := e.records.GetProduct(ctx, listing.ProductID)
		if err != nil {
			return Outcome{}, err
		}
		canonicalUpdatedAt = product.UpdatedAt
	}

	direction := integration.ResolveLastWriteWins(canonicalUpdatedAt, remote.UpdatedAt)
	switch direction {
	case integration.SyncDirectionPush:
		switch item.ItemType {
		case integration.ItemTypeProduct:
			return e.pushProduct(ctx, listing, target)
		case integration.ItemTypeStock:
			return e.pushStock(ctx, listing, listing.Stock, target)
		case integration.ItemTypePrice:
			return e.pushPrice(ctx, listing, listing.Price, nil, target)
		default:
			return Outcome{}, fmt.Errorf("%w: item type %q", ErrUnsupportedItem, item.ItemType)
		}
	case integration.SyncDirectionPull:
		applied, err := e.storeProduct(ctx, target, remote)
		return Outcome{Direction: direction, Applied: applied}, err
	default:
		return Outcome{Direction: integration.SyncDirectionNone}, nil
	}
}

func (e *SyncExecutor) syncOrder(ctx context.Context, item *integration.JobItem, target Target) (Outcome, error) {
	order, err := e.loadOrder(ctx, item.ItemID, target)
	if err != nil {
		return Outcome{}, err
	}
	remote, err := target.Connector.GetOrder(ctx, order.PlatformOrderID)
	if err != nil {
		return Outcome{}, err
	}

	direction := integration.ResolveLastWriteWins(order.UpdatedAt, remote.UpdatedAt)
	switch direction {
	case integration.SyncDirectionPush:
		return e.pushOrder(ctx, order, target)
	case integration.SyncDirectionPull:
		applied, err := e.storeOrder(ctx, target, remote, order.ID)
		return Outcome{Direction: direction, Applied: applied}, err
	default:
		return Outcome{Direction: integration.SyncDirectionNone}, nil
	}
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func (e *SyncExecutor) loadListing(ctx context.Context, itemID string, target Target) (*integration.Listing, error) {
	id, err := uuid.Parse(itemID)
	if err != nil {
		return nil, fmt.Errorf("%w: listing id %q", ErrInvalidItem, itemID)
	}
	listing, err := e.records.GetListing(ctx, id)
	if err != nil {
		return nil, err
	}
	if listing.ChannelAccountID != target.Account.ID {
		return nil, fmt.Errorf("%w: listing %s belongs to another account", ErrInvalidItem, id)
	}
	return listing, nil
}

func (e *SyncExecutor) loadOrder(ctx context.Context, itemID string, target Target) (*integration.Order, error) {
	id, err := uuid.Parse(itemID)
	if err != nil {
		return nil, fmt.Errorf("%w: order id %q", ErrInvalidItem, itemID)
	}
	order, err := e.records.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if order.ChannelAccountID != target.Account.ID {
		return nil, fmt.Errorf("%w: order %s belongs to another account", ErrInvalidItem, id)
	}
	if order.PlatformOrderID == "" {
		return nil, fmt.Errorf("%w: order %s has no platform order id", ErrInvalidItem, id)
	}
	return order, nil
}

// metadataDecimal reads a price that may be a JSON string or number
func metadataDecimal(m integration.Metadata, key string) (decimal.Decimal, bool, error) {
	raw, ok := m[key]
	if !ok || raw == nil {
		return decimal.Zero, false, nil
	}
	var (
		d   decimal.Decimal
		err error
	)
	switch v := raw.(type) {
	case string:
		d, err = decimal.NewFromString(v)
	case float64:
		d = decimal.NewFromFloat(v)
	case int:
		d = decimal.NewFromInt(int64(v))
	case json.Number:
		d, err = decimal.NewFromString(v.String())
	case decimal.Decimal:
		d = v
	default:
		err = fmt.Errorf("unsupported type %T", raw)
	}
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("%w: metadata %s: %v", ErrInvalidItem, key, err)
	}
	return d, true, nil
}

func latest(a, b time.Time) time.Time {
	if b.After(a) {
		return b
	}
	return a
}

var _ ItemExecutor = (*SyncExecutor)(nil)
