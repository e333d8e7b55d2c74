package ecommerce

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/storefront/backend/internal/domain/integration"
	"github.com/storefront/backend/internal/infrastructure/config"
)

// ConnectorFactory builds one connector per channel account and caches it
// until the account's credentials change or it is invalidated.
type ConnectorFactory struct {
	endpoints  map[integration.PlatformCode]Endpoints
	rules      RuleSet
	httpClient *http.Client
	logger     *zap.Logger

	mu    sync.RWMutex
	cache map[uuid.UUID]cachedConnector
}

type cachedConnector struct {
	connector   integration.Connector
	accessToken string
	updatedAt   time.Time
}

// EndpointsFromConfig maps the connectors config section by platform
func EndpointsFromConfig(cfg config.ConnectorsConfig) map[integration.PlatformCode]Endpoints {
	return map[integration.PlatformCode]Endpoints{
		integration.PlatformCodeTaobao:   {BaseURL: cfg.Taobao.BaseURL, TokenURL: cfg.Taobao.TokenURL},
		integration.PlatformCodeDouyin:   {BaseURL: cfg.Douyin.BaseURL, TokenURL: cfg.Douyin.TokenURL},
		integration.PlatformCodeKuaishou: {BaseURL: cfg.Kuaishou.BaseURL, TokenURL: cfg.Kuaishou.TokenURL},
	}
}

// NewConnectorFactory creates a factory. A nil httpClient uses a client
// without its own timeout; per-call deadlines come from the account.
func NewConnectorFactory(endpoints map[integration.PlatformCode]Endpoints, rules RuleSet, httpClient *http.Client, logger *zap.Logger) *ConnectorFactory {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if rules == nil {
		rules = DefaultRules()
	}
	return &ConnectorFactory{
		endpoints:  endpoints,
		rules:      rules,
		httpClient: httpClient,
		logger:     logger,
		cache:      make(map[uuid.UUID]cachedConnector),
	}
}

// ForAccount returns the connector bound to account
func (f *ConnectorFactory) ForAccount(account *integration.ChannelAccount) (integration.Connector, error) {
	if account == nil {
		return nil, fmt.Errorf("%w: nil account", integration.ErrAccountNotFound)
	}
	if !account.IsActive {
		return nil, fmt.Errorf("%w: %s", integration.ErrAccountInactive, account.ID)
	}

	f.mu.RLock()
	cached, ok := f.cache[account.ID]
	f.mu.RUnlock()
	if ok && cached.accessToken == account.AccessToken && cached.updatedAt.Equal(account.UpdatedAt) {
		return cached.connector, nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	// Another caller may have rebuilt it while we waited for the lock
	if cached, ok := f.cache[account.ID]; ok &&
		cached.accessToken == account.AccessToken && cached.updatedAt.Equal(account.UpdatedAt) {
		return cached.connector, nil
	}

	connector, err := f.build(account)
	if err != nil {
		return nil, err
	}
	f.cache[account.ID] = cachedConnector{
		connector:   connector,
		accessToken: account.AccessToken,
		updatedAt:   account.UpdatedAt,
	}
	f.logger.Debug("Connector built",
		zap.String("account_id", account.ID.String()),
		zap.String("platform", account.Platform.String()),
	)
	return connector, nil
}

func (f *ConnectorFactory) build(account *integration.ChannelAccount) (integration.Connector, error) {
	// Connectors hold their own copy of the account
	acct := *account
	opts := Options{
		Endpoints:  f.endpoints[account.Platform],
		HTTPClient: f.httpClient,
		Rules:      f.rules.For(account.Platform),
	}
	switch account.Platform {
	case integration.PlatformCodeTaobao:
		return NewTaobaoConnector(&acct, opts), nil
	case integration.PlatformCodeDouyin:
		return NewDouyinConnector(&acct, opts), nil
	case integration.PlatformCodeKuaishou:
		return NewKuaishouConnector(&acct, opts), nil
	default:
		return nil, fmt.Errorf("%w: %s", integration.ErrPlatformNotSupported, account.Platform)
	}
}

// Invalidate drops the cached connector of an account
func (f *ConnectorFactory) Invalidate(accountID uuid.UUID) {
	f.mu.Lock()
	delete(f.cache, accountID)
	f.mu.Unlock()
}

var _ integration.ConnectorProvider = (*ConnectorFactory)(nil)
