package scheduler

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storefront/backend/internal/domain/integration"
)

var executorNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type executorFixture struct {
	executor  *SyncExecutor
	records   *memRecords
	connector *fakeConnector
	target    Target
}

func newExecutorFixture() *executorFixture {
	records := newMemRecords()
	connector := newFakeConnector()
	executor := NewSyncExecutor(records, newTestLogger())
	executor.now = func() time.Time { return executorNow }
	return &executorFixture{
		executor:  executor,
		records:   records,
		connector: connector,
		target:    Target{Account: newTestAccount(), Connector: connector},
	}
}

func (f *executorFixture) run(t *testing.T, jobType integration.JobType, itemType integration.ItemType, itemID string, metadata integration.Metadata) (Outcome, error) {
	t.Helper()
	job := &integration.Job{ID: uuid.New(), Type: jobType, Channel: f.target.Account.Platform, ChannelAccountID: &f.target.Account.ID}
	item := &integration.JobItem{ID: uuid.New(), JobID: job.ID, ItemType: itemType, ItemID: itemID, Metadata: metadata}
	return f.executor.Execute(context.Background(), job, item, f.target)
}

// seedListing stores a product and its listing on the fixture account
func (f *executorFixture) seedListing(t *testing.T, platformID string, updatedAt time.Time) *integration.Listing {
	t.Helper()
	product := &integration.Product{
		ID:        uuid.New(),
		SKU:       "SKU-1",
		Title:     "Tea cup",
		Price:     decimal.NewFromInt(30),
		Stock:     12,
		Status:    integration.ProductStatusActive,
		UpdatedAt: updatedAt,
	}
	_, err := f.records.UpsertProduct(context.Background(), product)
	require.NoError(t, err)

	listing := &integration.Listing{
		ID:                uuid.New(),
		ProductID:         product.ID,
		ChannelAccountID:  f.target.Account.ID,
		PlatformProductID: platformID,
		Stock:             12,
		Price:             decimal.NewFromInt(30),
		UpdatedAt:         updatedAt,
	}
	_, err = f.records.UpsertListing(context.Background(), listing)
	require.NoError(t, err)
	return listing
}

func (f *executorFixture) seedOrder(t *testing.T, platformOrderID string, status integration.OrderStatus, updatedAt time.Time) *integration.Order {
	t.Helper()
	order := &integration.Order{
		ID:               uuid.New(),
		ChannelAccountID: f.target.Account.ID,
		PlatformOrderID:  platformOrderID,
		Status:           status,
		TrackingNumber:   "SF100",
		Carrier:          "SF",
		UpdatedAt:        updatedAt,
	}
	_, err := f.records.UpsertOrder(context.Background(), order)
	require.NoError(t, err)
	return order
}

// ---------------------------------------------------------------------------
// Pull Tests
// ---------------------------------------------------------------------------

func TestSyncExecutor_PullProduct_CreatesListing(t *testing.T) {
	f := newExecutorFixture()
	remoteAt := executorNow.Add(-time.Hour)
	f.connector.products["P1"] = &integration.Product{
		PlatformID: "P1",
		Title:      "Tea cup",
		Price:      decimal.RequireFromString("19.90"),
		Stock:      7,
		UpdatedAt:  remoteAt,
	}

	outcome, err := f.run(t, integration.JobTypePull, integration.ItemTypeProduct, "P1", nil)
	require.NoError(t, err)
	assert.Equal(t, integration.SyncDirectionPull, outcome.Direction)
	assert.True(t, outcome.Applied)

	listing, err := f.records.FindListingByPlatformID(context.Background(), f.target.Account.ID, "P1")
	require.NoError(t, err)
	assert.Equal(t, 7, listing.Stock)
	assert.True(t, listing.Price.Equal(decimal.RequireFromString("19.90")))
	assert.Equal(t, remoteAt, listing.UpdatedAt)

	product, err := f.records.GetProduct(context.Background(), listing.ProductID)
	require.NoError(t, err)
	assert.Equal(t, "Tea cup", product.Title)
}

func TestSyncExecutor_PullProduct_KeepsCanonicalIdentity(t *testing.T) {
	f := newExecutorFixture()
	listing := f.seedListing(t, "P1", executorNow.Add(-2*time.Hour))
	f.connector.products["P1"] = &integration.Product{PlatformID: "P1", Title: "Tea cup v2", Stock: 3, UpdatedAt: executorNow}

	_, err := f.run(t, integration.JobTypePull, integration.ItemTypeStock, "P1", integration.Metadata{integration.MetaStockHint: 4})
	require.NoError(t, err)

	stored, err := f.records.GetListing(context.Background(), listing.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, stored.Stock)
	product, err := f.records.GetProduct(context.Background(), listing.ProductID)
	require.NoError(t, err)
	assert.Equal(t, "Tea cup v2", product.Title)
}

func TestSyncExecutor_PullProduct_OlderCopyNotApplied(t *testing.T) {
	f := newExecutorFixture()
	listing := f.seedListing(t, "P1", executorNow)
	f.connector.products["P1"] = &integration.Product{PlatformID: "P1", Title: "Stale", Stock: 99, UpdatedAt: executorNow.Add(-time.Hour)}

	outcome, err := f.run(t, integration.JobTypePull, integration.ItemTypeProduct, "P1", nil)
	require.NoError(t, err)
	assert.False(t, outcome.Applied)

	stored, err := f.records.GetListing(context.Background(), listing.ID)
	require.NoError(t, err)
	assert.Equal(t, 12, stored.Stock)
}

func TestSyncExecutor_PullOrder(t *testing.T) {
	f := newExecutorFixture()
	f.connector.orders["O1"] = &integration.Order{PlatformOrderID: "O1", Status: integration.OrderStatusPaid, UpdatedAt: executorNow}

	_, err := f.run(t, integration.JobTypePull, integration.ItemTypeOrder, "O1", nil)
	require.NoError(t, err)
	first, err := f.records.FindOrderByPlatformID(context.Background(), f.target.Account.ID, "O1")
	require.NoError(t, err)
	assert.Equal(t, integration.OrderStatusPaid, first.Status)

	f.connector.orders["O1"] = &integration.Order{PlatformOrderID: "O1", Status: integration.OrderStatusShipped, UpdatedAt: executorNow.Add(time.Minute)}
	_, err = f.run(t, integration.JobTypePull, integration.ItemTypeOrder, "O1", nil)
	require.NoError(t, err)

	second, err := f.records.FindOrderByPlatformID(context.Background(), f.target.Account.ID, "O1")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, integration.OrderStatusShipped, second.Status)
}

func TestSyncExecutor_PullProduct_ConnectorError(t *testing.T) {
	f := newExecutorFixture()

	_, err := f.run(t, integration.JobTypePull, integration.ItemTypeProduct, "missing", nil)

	connErr, ok := integration.AsConnectorError(err)
	require.True(t, ok)
	assert.Equal(t, integration.ConnectorErrNotFound, connErr.Code)
}

// ---------------------------------------------------------------------------
// Push Tests
// ---------------------------------------------------------------------------

func TestSyncExecutor_PushStock_UsesMetadata(t *testing.T) {
	f := newExecutorFixture()
	listing := f.seedListing(t, "P1", executorNow.Add(-time.Hour))

	outcome, err := f.run(t, integration.JobTypePush, integration.ItemTypeStock, listing.ID.String(),
		integration.Metadata{integration.MetaNewStock: float64(40)})
	require.NoError(t, err)
	assert.Equal(t, integration.SyncDirectionPush, outcome.Direction)
	assert.Equal(t, 40, f.connector.stockUpdates["P1"])

	stored, err := f.records.GetListing(context.Background(), listing.ID)
	require.NoError(t, err)
	assert.Equal(t, 40, stored.Stock)
	assert.Equal(t, executorNow, stored.UpdatedAt)
}

func TestSyncExecutor_PushStock_Unpublished(t *testing.T) {
	f := newExecutorFixture()
	listing := f.seedListing(t, "", executorNow)

	_, err := f.run(t, integration.JobTypePush, integration.ItemTypeStock, listing.ID.String(), nil)

	assert.ErrorIs(t, err, ErrListingNotPublished)
	assert.Empty(t, f.connector.stockUpdates)
}

func TestSyncExecutor_PushPrice(t *testing.T) {
	f := newExecutorFixture()
	listing := f.seedListing(t, "P1", executorNow.Add(-time.Hour))

	_, err := f.run(t, integration.JobTypePush, integration.ItemTypePrice, listing.ID.String(),
		integration.Metadata{integration.MetaPrice: "25.50", integration.MetaCompareAtPrice: 30.0})
	require.NoError(t, err)

	assert.True(t, f.connector.priceUpdates["P1"].Equal(decimal.RequireFromString("25.50")))
	stored, err := f.records.GetListing(context.Background(), listing.ID)
	require.NoError(t, err)
	assert.True(t, stored.Price.Equal(decimal.RequireFromString("25.50")))
}

func TestSyncExecutor_PushPrice_InvalidMetadata(t *testing.T) {
	f := newExecutorFixture()
	listing := f.seedListing(t, "P1", executorNow)

	_, err := f.run(t, integration.JobTypePush, integration.ItemTypePrice, listing.ID.String(),
		integration.Metadata{integration.MetaPrice: "cheap"})

	assert.ErrorIs(t, err, ErrInvalidItem)
}

func TestSyncExecutor_PushProduct_CreatesOnFirstPush(t *testing.T) {
	f := newExecutorFixture()
	listing := f.seedListing(t, "", executorNow.Add(-time.Hour))

	_, err := f.run(t, integration.JobTypePush, integration.ItemTypeProduct, listing.ID.String(), nil)
	require.NoError(t, err)

	require.Len(t, f.connector.created, 1)
	stored, err := f.records.GetListing(context.Background(), listing.ID)
	require.NoError(t, err)
	assert.Equal(t, "P-NEW", stored.PlatformProductID)

	// The second push updates the platform product
	_, err = f.run(t, integration.JobTypePush, integration.ItemTypeProduct, listing.ID.String(), nil)
	require.NoError(t, err)
	assert.Len(t, f.connector.created, 1)
	assert.Contains(t, f.connector.updated, "P-NEW")
}

func TestSyncExecutor_PushOrder(t *testing.T) {
	f := newExecutorFixture()
	order := f.seedOrder(t, "O1", integration.OrderStatusShipped, executorNow)

	_, err := f.run(t, integration.JobTypePush, integration.ItemTypeOrder, order.ID.String(), nil)
	require.NoError(t, err)

	update := f.connector.statusUpdates["O1"]
	assert.Equal(t, integration.OrderStatusShipped, update.Status)
	assert.Equal(t, "SF100", update.TrackingNumber)
	assert.Equal(t, "SF", update.Carrier)
}

func TestSyncExecutor_Push_InvalidItems(t *testing.T) {
	f := newExecutorFixture()

	_, err := f.run(t, integration.JobTypePush, integration.ItemTypeStock, "not-a-uuid", nil)
	assert.ErrorIs(t, err, ErrInvalidItem)

	_, err = f.run(t, integration.JobTypePush, integration.ItemTypeStock, uuid.New().String(), nil)
	assert.ErrorIs(t, err, integration.ErrRecordNotFound)

	foreign := &integration.Listing{ID: uuid.New(), ChannelAccountID: uuid.New(), PlatformProductID: "P9"}
	_, err = f.records.UpsertListing(context.Background(), foreign)
	require.NoError(t, err)
	_, err = f.run(t, integration.JobTypePush, integration.ItemTypeStock, foreign.ID.String(), nil)
	assert.ErrorIs(t, err, ErrInvalidItem)

	order := f.seedOrder(t, "", integration.OrderStatusShipped, executorNow)
	_, err = f.run(t, integration.JobTypePush, integration.ItemTypeOrder, order.ID.String(), nil)
	assert.ErrorIs(t, err, ErrInvalidItem)
}

// ---------------------------------------------------------------------------
// Sync Tests
// ---------------------------------------------------------------------------

func TestSyncExecutor_SyncStock_LastWriteWins(t *testing.T) {
	tests := []struct {
		name          string
		remoteAt      time.Time
		wantDirection integration.SyncDirection
		wantStock     int
		wantPushed    bool
	}{
		{name: "canonical newer pushes", remoteAt: executorNow.Add(-2 * time.Hour), wantDirection: integration.SyncDirectionPush, wantStock: 12, wantPushed: true},
		{name: "platform newer pulls", remoteAt: executorNow, wantDirection: integration.SyncDirectionPull, wantStock: 5},
		{name: "equal timestamps are a no-op", remoteAt: executorNow.Add(-time.Hour), wantDirection: integration.SyncDirectionNone, wantStock: 12},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newExecutorFixture()
			listing := f.seedListing(t, "P1", executorNow.Add(-time.Hour))
			f.connector.products["P1"] = &integration.Product{PlatformID: "P1", Title: "Tea cup", Stock: 5, UpdatedAt: tt.remoteAt}

			outcome, err := f.run(t, integration.JobTypeSync, integration.ItemTypeStock, listing.ID.String(), nil)
			require.NoError(t, err)
			assert.Equal(t, tt.wantDirection, outcome.Direction)

			_, pushed := f.connector.stockUpdates["P1"]
			assert.Equal(t, tt.wantPushed, pushed)

			stored, err := f.records.GetListing(context.Background(), listing.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStock, stored.Stock)
		})
	}
}

func TestSyncExecutor_SyncProduct_UnpublishedCreates(t *testing.T) {
	f := newExecutorFixture()
	listing := f.seedListing(t, "", executorNow)

	outcome, err := f.run(t, integration.JobTypeSync, integration.ItemTypeProduct, listing.ID.String(), nil)
	require.NoError(t, err)

	assert.Equal(t, integration.SyncDirectionPush, outcome.Direction)
	assert.Len(t, f.connector.created, 1)
}

func TestSyncExecutor_SyncPrice_Unpublished(t *testing.T) {
	f := newExecutorFixture()
	listing := f.seedListing(t, "", executorNow)

	_, err := f.run(t, integration.JobTypeSync, integration.ItemTypePrice, listing.ID.String(), nil)

	assert.ErrorIs(t, err, ErrListingNotPublished)
}

func TestSyncExecutor_SyncOrder(t *testing.T) {
	t.Run("canonical newer pushes status", func(t *testing.T) {
		f := newExecutorFixture()
		order := f.seedOrder(t, "O1", integration.OrderStatusShipped, executorNow)
		f.connector.orders["O1"] = &integration.Order{PlatformOrderID: "O1", Status: integration.OrderStatusPaid, UpdatedAt: executorNow.Add(-time.Hour)}

		outcome, err := f.run(t, integration.JobTypeSync, integration.ItemTypeOrder, order.ID.String(), nil)
		require.NoError(t, err)

		assert.Equal(t, integration.SyncDirectionPush, outcome.Direction)
		assert.Equal(t, integration.OrderStatusShipped, f.connector.statusUpdates["O1"].Status)
	})

	t.Run("platform newer pulls into the same order", func(t *testing.T) {
		f := newExecutorFixture()
		order := f.seedOrder(t, "O1", integration.OrderStatusPaid, executorNow.Add(-time.Hour))
		f.connector.orders["O1"] = &integration.Order{PlatformOrderID: "O1", Status: integration.OrderStatusCompleted, UpdatedAt: executorNow}

		outcome, err := f.run(t, integration.JobTypeSync, integration.ItemTypeOrder, order.ID.String(), nil)
		require.NoError(t, err)

		assert.Equal(t, integration.SyncDirectionPull, outcome.Direction)
		stored, err := f.records.GetOrder(context.Background(), order.ID)
		require.NoError(t, err)
		assert.Equal(t, integration.OrderStatusCompleted, stored.Status)
		assert.Empty(t, f.connector.statusUpdates)
	})
}

func TestSyncExecutor_UnsupportedJobType(t *testing.T) {
	f := newExecutorFixture()

	_, err := f.run(t, integration.JobType("mirror"), integration.ItemTypeProduct, "P1", nil)

	assert.ErrorIs(t, err, ErrUnsupportedItem)
}

// ---------------------------------------------------------------------------
// Helper Tests
// ---------------------------------------------------------------------------

func TestMetadataDecimal(t *testing.T) {
	tests := []struct {
		name    string
		value   any
		want    string
		wantOK  bool
		wantErr bool
	}{
		{name: "missing", value: nil},
		{name: "string", value: "12.30", want: "12.3", wantOK: true},
		{name: "float", value: 9.5, want: "9.5", wantOK: true},
		{name: "int", value: 7, want: "7", wantOK: true},
		{name: "json number", value: json.Number("1.25"), want: "1.25", wantOK: true},
		{name: "bad string", value: "abc", wantErr: true},
		{name: "bad type", value: true, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := integration.Metadata{}
			if tt.value != nil {
				m["price"] = tt.value
			}
			d, ok, err := metadataDecimal(m, "price")
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidItem)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.want, d.String())
			}
		})
	}
}
