package integration

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/storefront/backend/internal/domain/integration"
)

// AccountService reports on channel accounts
type AccountService struct {
	accounts   integration.ChannelAccountRepository
	connectors integration.ConnectorProvider
	logger     *zap.Logger
	now        func() time.Time
}

// NewAccountService creates a new AccountService
func NewAccountService(
	accounts integration.ChannelAccountRepository,
	connectors integration.ConnectorProvider,
	logger *zap.Logger,
) *AccountService {
	return &AccountService{
		accounts:   accounts,
		connectors: connectors,
		logger:     logger,
		now:        time.Now,
	}
}

// CheckHealth calls the platform's health endpoint with the account's
// credentials. An unreachable platform is reported in the response, not as
// an error.
func (s *AccountService) CheckHealth(ctx context.Context, id uuid.UUID) (*AccountHealthResponse, error) {
	account, err := s.accounts.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, integration.ErrAccountNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	connector, err := s.connectors.ForAccount(account)
	if err != nil {
		return nil, err
	}

	started := s.now()
	resp := &AccountHealthResponse{
		AccountID: account.ID,
		Platform:  account.Platform,
		Healthy:   true,
	}
	err = connector.HealthCheck(ctx)
	resp.CheckedAt = s.now()
	resp.Latency = resp.CheckedAt.Sub(started).Milliseconds()

	if err != nil {
		resp.Healthy = false
		resp.Error = err.Error()
		if connErr, ok := integration.AsConnectorError(err); ok {
			resp.Code = string(connErr.Code)
			resp.Error = connErr.Message
		}
		s.logger.Warn("Channel account health check failed",
			zap.String("account_id", account.ID.String()),
			zap.String("platform", account.Platform.String()),
			zap.Error(err),
		)
	}
	return resp, nil
}
