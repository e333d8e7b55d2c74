package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/storefront/backend/internal/domain/integration"
)

// ---------------------------------------------------------------------------
// Test Helpers
// ---------------------------------------------------------------------------

func newTestLogger() *zap.Logger {
	logger, _ := zap.NewDevelopment()
	return logger
}

func newTestAccount() *integration.ChannelAccount {
	return &integration.ChannelAccount{
		ID:          uuid.New(),
		TenantID:    uuid.New(),
		Platform:    integration.PlatformCodeTaobao,
		ShopID:      "shop-1",
		AppKey:      "app-key",
		AppSecret:   "app-secret",
		AccessToken: "token",
		IsActive:    true,
	}
}

// ---------------------------------------------------------------------------
// memJobRepo
// ---------------------------------------------------------------------------

// memJobRepo is an in-memory JobRepository with the store's claim semantics
type memJobRepo struct {
	mu    sync.Mutex
	jobs  map[uuid.UUID]*integration.Job
	items map[uuid.UUID][]*integration.JobItem

	saveErr error
}

func newMemJobRepo() *memJobRepo {
	return &memJobRepo{
		jobs:  make(map[uuid.UUID]*integration.Job),
		items: make(map[uuid.UUID][]*integration.JobItem),
	}
}

func (r *memJobRepo) Create(ctx context.Context, job *integration.Job, items []*integration.JobItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	j := *job
	r.jobs[job.ID] = &j
	for _, item := range items {
		i := *item
		r.items[job.ID] = append(r.items[job.ID], &i)
	}
	return nil
}

func (r *memJobRepo) FindByID(ctx context.Context, id uuid.UUID) (*integration.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return nil, integration.ErrJobNotFound
	}
	j := *job
	return &j, nil
}

func (r *memJobRepo) List(ctx context.Context, filter integration.JobFilter) ([]integration.Job, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	jobs := make([]integration.Job, 0, len(r.jobs))
	for _, job := range r.jobs {
		jobs = append(jobs, *job)
	}
	return jobs, int64(len(jobs)), nil
}

func (r *memJobRepo) FindItems(ctx context.Context, jobID uuid.UUID) ([]integration.JobItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	items := make([]integration.JobItem, 0, len(r.items[jobID]))
	for _, item := range r.items[jobID] {
		items = append(items, *item)
	}
	return items, nil
}

func (r *memJobRepo) CountItemsByStatus(ctx context.Context, jobID uuid.UUID) (integration.ItemStatusCounts, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := integration.ItemStatusCounts{}
	for _, item := range r.items[jobID] {
		counts[item.Status]++
	}
	return counts, nil
}

func (r *memJobRepo) ClaimPendingJobs(ctx context.Context, limit int) ([]integration.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var claimed []integration.Job
	for _, job := range r.jobs {
		if len(claimed) >= limit {
			break
		}
		if job.Status != integration.JobStatusPending {
			continue
		}
		if err := job.Start(time.Now()); err != nil {
			return nil, err
		}
		claimed = append(claimed, *job)
	}
	return claimed, nil
}

func (r *memJobRepo) FindJobsWithDueItems(ctx context.Context, now time.Time, limit int) ([]integration.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var due []integration.Job
	for id, job := range r.jobs {
		if len(due) >= limit {
			break
		}
		if job.Status != integration.JobStatusRunning {
			continue
		}
		for _, item := range r.items[id] {
			if item.IsDue(now) {
				due = append(due, *job)
				break
			}
		}
	}
	return due, nil
}

func (r *memJobRepo) ClaimDueItems(ctx context.Context, jobID uuid.UUID, now time.Time, limit int) ([]*integration.JobItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var claimed []*integration.JobItem
	for _, item := range r.items[jobID] {
		if len(claimed) >= limit {
			break
		}
		if !item.IsDue(now) {
			continue
		}
		if err := item.MarkProcessing(now); err != nil {
			return nil, err
		}
		i := *item
		claimed = append(claimed, &i)
	}
	return claimed, nil
}

func (r *memJobRepo) SaveItemOutcome(ctx context.Context, item *integration.JobItem, terminal bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return r.saveErr
	}
	for idx, stored := range r.items[item.JobID] {
		if stored.ID != item.ID {
			continue
		}
		i := *item
		r.items[item.JobID][idx] = &i
	}
	if terminal {
		job := r.jobs[item.JobID]
		if item.Status == integration.ItemStatusCompleted {
			job.CompletedItems++
		} else {
			job.FailedItems++
		}
	}
	return nil
}

func (r *memJobRepo) completeIfFinished(jobID uuid.UUID, now time.Time) bool {
	job := r.jobs[jobID]
	if job == nil || job.Status != integration.JobStatusRunning {
		return false
	}
	for _, item := range r.items[jobID] {
		if !item.Status.IsTerminal() {
			return false
		}
	}
	return job.Complete(now) == nil
}

func (r *memJobRepo) CompleteIfFinished(ctx context.Context, jobID uuid.UUID, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.completeIfFinished(jobID, now), nil
}

func (r *memJobRepo) CompleteFinishedJobs(ctx context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id := range r.jobs {
		if r.completeIfFinished(id, now) {
			n++
		}
	}
	return n, nil
}

func (r *memJobRepo) MarkFailed(ctx context.Context, jobID uuid.UUID, message string, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[jobID]
	if !ok {
		return integration.ErrJobNotFound
	}
	return job.Fail(message, now)
}

func (r *memJobRepo) Cancel(ctx context.Context, jobID uuid.UUID, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[jobID]
	if !ok {
		return integration.ErrJobNotFound
	}
	return job.Cancel(now)
}

func (r *memJobRepo) ResetFailedItems(ctx context.Context, jobID uuid.UUID, now time.Time) (int, error) {
	return 0, nil
}

func (r *memJobRepo) RecoverStaleItems(ctx context.Context, olderThan time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, items := range r.items {
		for _, item := range items {
			if item.Status == integration.ItemStatusProcessing && item.UpdatedAt.Before(olderThan) {
				item.Status = integration.ItemStatusPending
				n++
			}
		}
	}
	return n, nil
}

func (r *memJobRepo) job(id uuid.UUID) integration.Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *r.jobs[id]
}

func (r *memJobRepo) item(jobID uuid.UUID, idx int) integration.JobItem {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *r.items[jobID][idx]
}

var _ integration.JobRepository = (*memJobRepo)(nil)

// ---------------------------------------------------------------------------
// Other fakes
// ---------------------------------------------------------------------------

type memSyncLogs struct {
	mu      sync.Mutex
	entries []integration.SyncLog
}

func (l *memSyncLogs) Append(ctx context.Context, entry *integration.SyncLog) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, *entry)
	return nil
}

func (l *memSyncLogs) ListByJob(ctx context.Context, jobID uuid.UUID, limit int) ([]integration.SyncLog, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []integration.SyncLog
	for _, entry := range l.entries {
		if entry.JobID != nil && *entry.JobID == jobID {
			out = append(out, entry)
		}
	}
	return out, nil
}

func (l *memSyncLogs) messages() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, 0, len(l.entries))
	for _, entry := range l.entries {
		out = append(out, entry.Message)
	}
	return out
}

type fakeAccounts struct {
	accounts map[uuid.UUID]*integration.ChannelAccount
}

func newFakeAccounts(accounts ...*integration.ChannelAccount) *fakeAccounts {
	f := &fakeAccounts{accounts: make(map[uuid.UUID]*integration.ChannelAccount)}
	for _, a := range accounts {
		f.accounts[a.ID] = a
	}
	return f
}

func (f *fakeAccounts) FindByID(ctx context.Context, id uuid.UUID) (*integration.ChannelAccount, error) {
	a, ok := f.accounts[id]
	if !ok {
		return nil, integration.ErrAccountNotFound
	}
	return a, nil
}

func (f *fakeAccounts) FindActiveByPlatform(ctx context.Context, platform integration.PlatformCode) ([]integration.ChannelAccount, error) {
	var out []integration.ChannelAccount
	for _, a := range f.accounts {
		if a.IsActive && a.Platform == platform {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (f *fakeAccounts) FindExpiring(ctx context.Context, before time.Time) ([]integration.ChannelAccount, error) {
	return nil, nil
}

func (f *fakeAccounts) SaveTokens(ctx context.Context, id uuid.UUID, tokens *integration.TokenSet, refreshedAt time.Time) error {
	return nil
}

func (f *fakeAccounts) RecordRefreshFailure(ctx context.Context, id uuid.UUID, message string, at time.Time) error {
	return nil
}

type fakeProvider struct {
	connector integration.Connector
	err       error
}

func (p *fakeProvider) ForAccount(account *integration.ChannelAccount) (integration.Connector, error) {
	if p.err != nil {
		return nil, p.err
	}
	return p.connector, nil
}

func (p *fakeProvider) Invalidate(accountID uuid.UUID) {}

// fakeConnector records writes and serves products and orders from maps
type fakeConnector struct {
	mu sync.Mutex

	products map[string]*integration.Product
	orders   map[string]*integration.Order
	err      error

	created       []*integration.Product
	updated       map[string]*integration.Product
	stockUpdates  map[string]int
	priceUpdates  map[string]decimal.Decimal
	statusUpdates map[string]integration.OrderStatusUpdate
}

func newFakeConnector() *fakeConnector {
	return &fakeConnector{
		products:      make(map[string]*integration.Product),
		orders:        make(map[string]*integration.Order),
		updated:       make(map[string]*integration.Product),
		stockUpdates:  make(map[string]int),
		priceUpdates:  make(map[string]decimal.Decimal),
		statusUpdates: make(map[string]integration.OrderStatusUpdate),
	}
}

func (c *fakeConnector) Platform() integration.PlatformCode { return integration.PlatformCodeTaobao }

func (c *fakeConnector) VerifySignature(rawBody []byte, signature string) bool { return true }

func (c *fakeConnector) DecodeEvent(envelope *integration.WebhookEnvelope) (integration.WebhookEvent, error) {
	return nil, nil
}

func (c *fakeConnector) GetProduct(ctx context.Context, platformProductID string) (*integration.Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	p, ok := c.products[platformProductID]
	if !ok {
		return nil, integration.NewConnectorError(integration.ConnectorErrNotFound, "product %s", platformProductID)
	}
	cp := *p
	return &cp, nil
}

func (c *fakeConnector) CreateProduct(ctx context.Context, product *integration.Product) (*integration.Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	written := *product
	written.PlatformID = "P-NEW"
	c.created = append(c.created, &written)
	return &written, nil
}

func (c *fakeConnector) UpdateProduct(ctx context.Context, platformProductID string, product *integration.Product) (*integration.Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	written := *product
	written.PlatformID = platformProductID
	c.updated[platformProductID] = &written
	return &written, nil
}

func (c *fakeConnector) UpdateStock(ctx context.Context, platformProductID string, stock int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.stockUpdates[platformProductID] = stock
	return nil
}

func (c *fakeConnector) UpdatePrice(ctx context.Context, platformProductID string, price decimal.Decimal, compareAt *decimal.Decimal) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.priceUpdates[platformProductID] = price
	return nil
}

func (c *fakeConnector) ListOrders(ctx context.Context, filter integration.OrderFilter) ([]integration.Order, error) {
	return nil, nil
}

func (c *fakeConnector) GetOrder(ctx context.Context, platformOrderID string) (*integration.Order, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	o, ok := c.orders[platformOrderID]
	if !ok {
		return nil, integration.NewConnectorError(integration.ConnectorErrNotFound, "order %s", platformOrderID)
	}
	cp := *o
	return &cp, nil
}

func (c *fakeConnector) UpdateOrderStatus(ctx context.Context, platformOrderID string, update integration.OrderStatusUpdate) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.statusUpdates[platformOrderID] = update
	return nil
}

func (c *fakeConnector) HealthCheck(ctx context.Context) error { return c.err }

var _ integration.Connector = (*fakeConnector)(nil)

// memRecords is an in-memory RecordStore applying last-write-wins on upsert
type memRecords struct {
	mu       sync.Mutex
	products map[uuid.UUID]*integration.Product
	orders   map[uuid.UUID]*integration.Order
	listings map[uuid.UUID]*integration.Listing
}

func newMemRecords() *memRecords {
	return &memRecords{
		products: make(map[uuid.UUID]*integration.Product),
		orders:   make(map[uuid.UUID]*integration.Order),
		listings: make(map[uuid.UUID]*integration.Listing),
	}
}

func (s *memRecords) GetProduct(ctx context.Context, id uuid.UUID) (*integration.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return nil, integration.ErrRecordNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *memRecords) UpsertProduct(ctx context.Context, product *integration.Product) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if stored, ok := s.products[product.ID]; ok && stored.UpdatedAt.After(product.UpdatedAt) {
		return false, nil
	}
	cp := *product
	s.products[product.ID] = &cp
	return true, nil
}

func (s *memRecords) GetOrder(ctx context.Context, id uuid.UUID) (*integration.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, integration.ErrRecordNotFound
	}
	cp := *o
	return &cp, nil
}

func (s *memRecords) FindOrderByPlatformID(ctx context.Context, accountID uuid.UUID, platformOrderID string) (*integration.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.orders {
		if o.ChannelAccountID == accountID && o.PlatformOrderID == platformOrderID {
			cp := *o
			return &cp, nil
		}
	}
	return nil, integration.ErrRecordNotFound
}

func (s *memRecords) UpsertOrder(ctx context.Context, order *integration.Order) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	if stored, ok := s.orders[order.ID]; ok && stored.UpdatedAt.After(order.UpdatedAt) {
		return false, nil
	}
	cp := *order
	s.orders[order.ID] = &cp
	return true, nil
}

func (s *memRecords) GetListing(ctx context.Context, id uuid.UUID) (*integration.Listing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.listings[id]
	if !ok {
		return nil, integration.ErrRecordNotFound
	}
	cp := *l
	return &cp, nil
}

func (s *memRecords) FindListingsByIDs(ctx context.Context, ids []uuid.UUID) ([]integration.Listing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []integration.Listing
	for _, id := range ids {
		if l, ok := s.listings[id]; ok {
			out = append(out, *l)
		}
	}
	return out, nil
}

func (s *memRecords) FindListingByPlatformID(ctx context.Context, accountID uuid.UUID, platformProductID string) (*integration.Listing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range s.listings {
		if l.ChannelAccountID == accountID && l.PlatformProductID == platformProductID {
			cp := *l
			return &cp, nil
		}
	}
	return nil, integration.ErrRecordNotFound
}

func (s *memRecords) UpsertListing(ctx context.Context, listing *integration.Listing) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if listing.ID == uuid.Nil {
		listing.ID = uuid.New()
	}
	if stored, ok := s.listings[listing.ID]; ok && stored.UpdatedAt.After(listing.UpdatedAt) {
		return false, nil
	}
	cp := *listing
	s.listings[listing.ID] = &cp
	return true, nil
}

var _ integration.RecordStore = (*memRecords)(nil)
