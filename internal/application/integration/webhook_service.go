package integration

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/storefront/backend/internal/domain/integration"
	"github.com/storefront/backend/internal/domain/shared"
	"github.com/storefront/backend/internal/infrastructure/telemetry"
)

// Webhook errors. Each maps to the HTTP status the platform sees.
var (
	ErrWebhookUnauthorized = shared.NewDomainError("UNAUTHORIZED", "Webhook authentication failed")
	ErrWebhookMalformed    = shared.NewDomainError("BAD_REQUEST", "Malformed webhook payload")
	ErrWebhookInvalid      = shared.NewDomainError("INVALID_INPUT", "Webhook payload is missing required fields")
	ErrShopMismatch        = shared.NewDomainError("INVALID_INPUT", "Webhook shop_id does not match the channel account")
)

// DefaultTimestampTolerance is how far a delivery's timestamp may drift from now
const DefaultTimestampTolerance = 5 * time.Minute

// WebhookService turns verified platform webhooks into sync jobs
type WebhookService struct {
	accounts    integration.ChannelAccountRepository
	connectors  integration.ConnectorProvider
	jobs        *JobService
	idempotency shared.IdempotencyStore
	notifier    JobNotifier
	tolerance   time.Duration
	dedupeTTL   time.Duration
	logger      *zap.Logger
	now         func() time.Time
}

// WebhookServiceConfig contains configuration for WebhookService
type WebhookServiceConfig struct {
	Accounts   integration.ChannelAccountRepository
	Connectors integration.ConnectorProvider
	Jobs       *JobService
	// Idempotency enables delivery dedupe. Nil disables it.
	Idempotency shared.IdempotencyStore
	Notifier    JobNotifier
	// TimestampTolerance defaults to 5 minutes
	TimestampTolerance time.Duration
	// DedupeWindow defaults to the idempotency store default (24h)
	DedupeWindow time.Duration
	Logger       *zap.Logger
}

// NewWebhookService creates a new WebhookService
func NewWebhookService(cfg WebhookServiceConfig) *WebhookService {
	tolerance := cfg.TimestampTolerance
	if tolerance <= 0 {
		tolerance = DefaultTimestampTolerance
	}
	window := cfg.DedupeWindow
	if window <= 0 {
		window = shared.DefaultIdempotencyConfig().TTL
	}
	return &WebhookService{
		accounts:    cfg.Accounts,
		connectors:  cfg.Connectors,
		jobs:        cfg.Jobs,
		idempotency: cfg.Idempotency,
		notifier:    cfg.Notifier,
		tolerance:   tolerance,
		dedupeTTL:   window,
		logger:      cfg.Logger,
		now:         time.Now,
	}
}

// HandleWebhook authenticates, parses and dispatches one delivery
func (s *WebhookService) HandleWebhook(ctx context.Context, d WebhookDelivery) (result *WebhookResult, err error) {
	ctx, span := telemetry.StartSpan(ctx, "sync.webhook.handle",
		telemetry.WithAttribute(telemetry.SpanAttrChannel, d.Platform),
		telemetry.WithAttribute(telemetry.SpanAttrAccountID, d.AccountID),
	)
	defer func() {
		if err != nil {
			telemetry.RecordError(span, err)
		} else if result != nil {
			telemetry.SetAttributes(span,
				telemetry.SpanAttrEvent, result.Event,
				"sync.duplicate", result.Duplicate,
				"sync.created_jobs", len(result.CreatedJobs),
			)
		}
		span.End()
	}()

	started := s.now()
	logger := s.logger.With(
		zap.String("platform", d.Platform.String()),
		zap.String("account_id", d.AccountID.String()),
	)

	// received -> signature-verified
	account, connector, err := s.authenticate(ctx, d, logger)
	if err != nil {
		return nil, err
	}

	// signature-verified -> parsed -> validated
	envelope, err := integration.ParseEnvelope(d.Body)
	if err != nil {
		logger.Warn("Rejected webhook payload", zap.Error(err))
		if errors.Is(err, integration.ErrMalformedPayload) {
			return nil, ErrWebhookMalformed
		}
		return nil, fmt.Errorf("%w: %v", ErrWebhookInvalid, err)
	}
	if envelope.ShopID.String() != account.ShopID {
		logger.Warn("Webhook shop_id mismatch",
			zap.String("shop_id", envelope.ShopID.String()),
			zap.String("expected_shop_id", account.ShopID),
		)
		return nil, ErrShopMismatch
	}
	event, err := connector.DecodeEvent(envelope)
	if err != nil {
		logger.Warn("Failed to decode webhook event", zap.String("event", envelope.Event), zap.Error(err))
		if errors.Is(err, integration.ErrMalformedPayload) {
			return nil, ErrWebhookMalformed
		}
		return nil, fmt.Errorf("%w: %v", ErrWebhookInvalid, err)
	}

	result = &WebhookResult{
		Success:     true,
		Event:       event.Name(),
		CreatedJobs: []uuid.UUID{},
	}
	finish := func() *WebhookResult {
		result.ProcessingTime = s.now().Sub(started).Milliseconds()
		return result
	}

	key := dedupeKey(d, envelope)
	claimed, duplicate := s.claim(ctx, key, logger)
	if duplicate {
		logger.Info("Duplicate webhook delivery ignored",
			zap.String("event", event.Name()),
			zap.String("event_id", envelope.EventID.String()),
		)
		result.Duplicate = true
		return finish(), nil
	}

	// validated -> dispatched
	planner := &jobPlanner{
		ctx:     ctx,
		jobs:    s.jobs,
		account: account,
		metadata: integration.Metadata{
			"source":  "webhook",
			"event":   event.Name(),
			"eventId": envelope.EventID.String(),
		},
	}
	if err := event.Accept(planner); err != nil {
		logger.Error("Failed to create jobs for webhook", zap.String("event", event.Name()), zap.Error(err))
		s.withdraw(ctx, planner.created, logger)
		if claimed {
			s.release(ctx, key, logger)
		}
		return nil, err
	}

	result.Processed = planner.handled
	result.CreatedJobs = planner.created
	if len(planner.created) > 0 && s.notifier != nil {
		s.notifier.Notify()
	}

	if planner.handled {
		logger.Info("Webhook dispatched",
			zap.String("event", event.Name()),
			zap.Int("jobs", len(planner.created)),
		)
	} else {
		logger.Debug("Unhandled webhook event", zap.String("event", event.Name()))
	}
	return finish(), nil
}

// authenticate resolves the account and checks timestamp and signature.
// Every failure is reported to the caller as ErrWebhookUnauthorized.
func (s *WebhookService) authenticate(
	ctx context.Context,
	d WebhookDelivery,
	logger *zap.Logger,
) (*integration.ChannelAccount, integration.Connector, error) {
	account, err := s.accounts.FindByID(ctx, d.AccountID)
	if err != nil {
		if errors.Is(err, integration.ErrAccountNotFound) {
			logger.Warn("Webhook for unknown channel account")
			return nil, nil, ErrWebhookUnauthorized
		}
		return nil, nil, err
	}
	if !account.IsActive || account.Platform != d.Platform {
		logger.Warn("Webhook for inactive or mismatched channel account",
			zap.Bool("active", account.IsActive),
			zap.String("account_platform", account.Platform.String()),
		)
		return nil, nil, ErrWebhookUnauthorized
	}

	ts, err := parseWebhookTimestamp(d.Timestamp)
	if err != nil {
		logger.Warn("Webhook timestamp rejected", zap.String("timestamp", d.Timestamp), zap.Error(err))
		return nil, nil, ErrWebhookUnauthorized
	}
	if drift := s.now().Sub(ts); drift > s.tolerance || drift < -s.tolerance {
		logger.Warn("Webhook timestamp outside tolerance",
			zap.Time("timestamp", ts),
			zap.Duration("drift", drift),
		)
		return nil, nil, ErrWebhookUnauthorized
	}

	connector, err := s.connectors.ForAccount(account)
	if err != nil {
		return nil, nil, err
	}

	if account.SignatureUnverified {
		logger.Warn("Webhook signature verification skipped for unverified account")
		return account, connector, nil
	}
	if d.Signature == "" {
		logger.Warn("Webhook signature missing")
		return nil, nil, ErrWebhookUnauthorized
	}
	if !connector.VerifySignature(d.Body, d.Signature) {
		logger.Warn("Webhook signature verification failed", zap.Error(integration.ErrInvalidSignature))
		return nil, nil, ErrWebhookUnauthorized
	}
	return account, connector, nil
}

// claim records key before any job is created so concurrent deliveries of
// the same event dispatch once. A store failure lets the delivery through
// unclaimed.
func (s *WebhookService) claim(ctx context.Context, key string, logger *zap.Logger) (claimed, duplicate bool) {
	if s.idempotency == nil {
		return false, false
	}
	fresh, err := s.idempotency.MarkProcessed(ctx, key, s.dedupeTTL)
	if err != nil {
		logger.Warn("Webhook dedupe store unavailable, processing delivery", zap.Error(err))
		return false, false
	}
	return fresh, !fresh
}

// release forgets a claimed key after a failed dispatch so the platform's
// redelivery is processed
func (s *WebhookService) release(ctx context.Context, key string, logger *zap.Logger) {
	if err := s.idempotency.Release(ctx, key); err != nil {
		logger.Error("Failed to release webhook dedupe key", zap.String("key", key), zap.Error(err))
	}
}

// withdraw cancels jobs created before a dispatch failed
func (s *WebhookService) withdraw(ctx context.Context, jobIDs []uuid.UUID, logger *zap.Logger) {
	for _, id := range jobIDs {
		if _, err := s.jobs.CancelJob(ctx, id); err != nil {
			logger.Warn("Failed to cancel job of failed webhook dispatch",
				zap.String("job_id", id.String()),
				zap.Error(err),
			)
		}
	}
}

func dedupeKey(d WebhookDelivery, env *integration.WebhookEnvelope) string {
	id := env.EventID.String()
	if id == "" {
		sum := sha256.Sum256(d.Body)
		id = hex.EncodeToString(sum[:])
	}
	return fmt.Sprintf("webhook:%s:%s:%s", d.Platform.Slug(), d.AccountID, id)
}

// parseWebhookTimestamp accepts unix seconds, unix milliseconds or RFC3339
func parseWebhookTimestamp(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, errors.New("timestamp missing")
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		if n > 1e12 {
			return time.UnixMilli(n), nil
		}
		return time.Unix(n, 0), nil
	}
	ts, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("unrecognized timestamp format: %w", err)
	}
	return ts, nil
}

// ---------------------------------------------------------------------------
// Event dispatch
// ---------------------------------------------------------------------------

// jobPlanner submits the pull jobs each event calls for
type jobPlanner struct {
	ctx      context.Context
	jobs     *JobService
	account  *integration.ChannelAccount
	metadata integration.Metadata
	created  []uuid.UUID
	handled  bool
}

func (p *jobPlanner) OnOrderCreated(e integration.OrderCreated) error {
	if err := p.pull(integration.ItemTypeOrder, itemSpec(e.PlatformOrderID, nil)); err != nil {
		return err
	}
	if len(e.ProductIDs) == 0 {
		return nil
	}
	specs := make([]integration.JobItemSpec, 0, len(e.ProductIDs))
	seen := make(map[string]struct{}, len(e.ProductIDs))
	for _, id := range e.ProductIDs {
		if _, dup := seen[id]; dup || id == "" {
			continue
		}
		seen[id] = struct{}{}
		specs = append(specs, itemSpec(id, nil))
	}
	return p.pull(integration.ItemTypeProduct, specs...)
}

func (p *jobPlanner) OnOrderUpdated(e integration.OrderUpdated) error {
	var meta integration.Metadata
	if e.PlatformStatus != "" {
		meta = integration.Metadata{"platformStatus": e.PlatformStatus}
	}
	return p.pull(integration.ItemTypeOrder, itemSpec(e.PlatformOrderID, meta))
}

func (p *jobPlanner) OnOrderCancelled(e integration.OrderCancelled) error {
	var meta integration.Metadata
	if e.Reason != "" {
		meta = integration.Metadata{integration.MetaReason: e.Reason}
	}
	return p.pull(integration.ItemTypeOrder, itemSpec(e.PlatformOrderID, meta))
}

func (p *jobPlanner) OnProductUpdated(e integration.ProductUpdated) error {
	return p.pull(integration.ItemTypeProduct, itemSpec(e.PlatformProductID, nil))
}

func (p *jobPlanner) OnInventoryUpdated(e integration.InventoryUpdated) error {
	return p.pull(integration.ItemTypeStock, itemSpec(e.PlatformProductID, integration.Metadata{
		integration.MetaStockHint: e.Stock,
	}))
}

func (p *jobPlanner) OnUnhandled(integration.UnhandledEvent) error {
	return nil
}

func (p *jobPlanner) pull(itemType integration.ItemType, specs ...integration.JobItemSpec) error {
	p.handled = true
	if len(specs) == 0 {
		return nil
	}
	for i := range specs {
		specs[i].ItemType = itemType
	}
	meta := make(integration.Metadata, len(p.metadata))
	for k, v := range p.metadata {
		meta[k] = v
	}
	job, err := p.jobs.submitForAccount(p.ctx, p.account, integration.JobTypePull, specs, meta)
	if err != nil {
		return err
	}
	p.created = append(p.created, job.ID)
	return nil
}

func itemSpec(id string, meta integration.Metadata) integration.JobItemSpec {
	return integration.JobItemSpec{ItemID: id, Metadata: meta}
}
