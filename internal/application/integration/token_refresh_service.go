package integration

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/storefront/backend/internal/domain/integration"
)

// DefaultRefreshLeadTime is how long before expiry a token is refreshed
const DefaultRefreshLeadTime = 30 * time.Minute

// TokenRefreshService renews access tokens of accounts close to expiry.
// A failing account never aborts the run.
type TokenRefreshService struct {
	accounts   integration.ChannelAccountRepository
	refresher  integration.TokenRefresher
	connectors integration.ConnectorProvider
	logs       integration.SyncLogRepository
	leadTime   time.Duration
	logger     *zap.Logger
	now        func() time.Time
}

// TokenRefreshServiceConfig contains configuration for TokenRefreshService
type TokenRefreshServiceConfig struct {
	Accounts   integration.ChannelAccountRepository
	Refresher  integration.TokenRefresher
	Connectors integration.ConnectorProvider
	Logs       integration.SyncLogRepository
	LeadTime   time.Duration
	Logger     *zap.Logger
}

// NewTokenRefreshService creates a new TokenRefreshService
func NewTokenRefreshService(cfg TokenRefreshServiceConfig) *TokenRefreshService {
	lead := cfg.LeadTime
	if lead <= 0 {
		lead = DefaultRefreshLeadTime
	}
	return &TokenRefreshService{
		accounts:   cfg.Accounts,
		refresher:  cfg.Refresher,
		connectors: cfg.Connectors,
		logs:       cfg.Logs,
		leadTime:   lead,
		logger:     cfg.Logger,
		now:        time.Now,
	}
}

// RefreshExpiring refreshes every active account whose token expires within
// the lead time
func (s *TokenRefreshService) RefreshExpiring(ctx context.Context) (integration.TokenRefreshSummary, error) {
	summary := integration.TokenRefreshSummary{Failures: []integration.TokenRefreshFailure{}}

	accounts, err := s.accounts.FindExpiring(ctx, s.now().Add(s.leadTime))
	if err != nil {
		return summary, err
	}
	summary.Checked = len(accounts)

	for i := range accounts {
		if ctx.Err() != nil {
			return summary, ctx.Err()
		}
		account := &accounts[i]
		if err := s.refreshOne(ctx, account); err != nil {
			summary.Failed++
			summary.Failures = append(summary.Failures, integration.TokenRefreshFailure{
				AccountID: account.ID,
				Platform:  account.Platform,
				Error:     err.Error(),
			})
			s.recordFailure(ctx, account, err)
			continue
		}
		summary.Refreshed++
	}
	return summary, nil
}

func (s *TokenRefreshService) refreshOne(ctx context.Context, account *integration.ChannelAccount) error {
	tokens, err := s.refresher.RefreshToken(ctx, account)
	if err != nil {
		return err
	}
	if err := s.accounts.SaveTokens(ctx, account.ID, tokens, s.now()); err != nil {
		return err
	}
	s.connectors.Invalidate(account.ID)

	s.logger.Info("Access token refreshed",
		zap.String("account_id", account.ID.String()),
		zap.String("platform", account.Platform.String()),
		zap.Time("expires_at", tokens.ExpiresAt),
	)
	return nil
}

func (s *TokenRefreshService) recordFailure(ctx context.Context, account *integration.ChannelAccount, cause error) {
	s.logger.Warn("Access token refresh failed",
		zap.String("account_id", account.ID.String()),
		zap.String("platform", account.Platform.String()),
		zap.Error(cause),
	)
	if err := s.accounts.RecordRefreshFailure(ctx, account.ID, cause.Error(), s.now()); err != nil {
		s.logger.Error("Failed to record token refresh failure",
			zap.String("account_id", account.ID.String()),
			zap.Error(err),
		)
	}
	entry := integration.NewSyncLog(nil, integration.LogLevelWarning, "Token refresh failed", integration.Metadata{
		"accountId": account.ID.String(),
		"platform":  account.Platform.String(),
		"error":     cause.Error(),
	})
	if err := s.logs.Append(ctx, entry); err != nil {
		s.logger.Warn("Failed to append sync log", zap.Error(err))
	}
}
