package ecommerce

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	"github.com/storefront/backend/internal/domain/integration"
)

// OAuthTokenRefresher runs the refresh_token grant against each platform's
// token endpoint.
type OAuthTokenRefresher struct {
	endpoints  map[integration.PlatformCode]Endpoints
	httpClient *http.Client
}

// NewOAuthTokenRefresher creates a refresher for the given endpoints
func NewOAuthTokenRefresher(endpoints map[integration.PlatformCode]Endpoints, httpClient *http.Client) *OAuthTokenRefresher {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &OAuthTokenRefresher{endpoints: endpoints, httpClient: httpClient}
}

func (r *OAuthTokenRefresher) oauthConfig(account *integration.ChannelAccount) (*oauth2.Config, error) {
	endpoints, ok := r.endpoints[account.Platform]
	if !ok || endpoints.TokenURL == "" {
		return nil, fmt.Errorf("%w: no token endpoint for %s", integration.ErrPlatformNotSupported, account.Platform)
	}
	return &oauth2.Config{
		ClientID:     account.AppKey,
		ClientSecret: account.AppSecret,
		Endpoint: oauth2.Endpoint{
			TokenURL:  endpoints.TokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}, nil
}

// RefreshToken exchanges the account's refresh token for a new token set.
// Failures are connector errors so callers can tell a revoked grant from a
// platform outage.
func (r *OAuthTokenRefresher) RefreshToken(ctx context.Context, account *integration.ChannelAccount) (*integration.TokenSet, error) {
	if account.RefreshToken == "" {
		return nil, integration.NewConnectorError(integration.ConnectorErrUnauthorized, "%s: account %s has no refresh token", account.Platform, account.ID)
	}
	cfg, err := r.oauthConfig(account)
	if err != nil {
		return nil, err
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, r.httpClient)
	// An expired seed token forces the source to hit the token endpoint
	seed := &oauth2.Token{
		AccessToken:  account.AccessToken,
		RefreshToken: account.RefreshToken,
		Expiry:       time.Unix(1, 0),
	}
	token, err := cfg.TokenSource(ctx, seed).Token()
	if err != nil {
		return nil, classifyTokenError(ctx, account.Platform, err)
	}

	return &integration.TokenSet{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ExpiresAt:    token.Expiry.UTC(),
	}, nil
}

func classifyTokenError(ctx context.Context, platform integration.PlatformCode, err error) error {
	if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) {
		return integration.NewConnectorError(integration.ConnectorErrTimeout, "%s: token refresh: %v", platform, err)
	}
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) && retrieveErr.Response != nil {
		if retrieveErr.ErrorCode == "invalid_grant" || retrieveErr.Response.StatusCode == http.StatusBadRequest {
			return integration.NewConnectorError(integration.ConnectorErrUnauthorized, "%s: refresh token rejected: %s", platform, retrieveErr.ErrorCode)
		}
		return classifyHTTPStatus(platform, retrieveErr.Response.StatusCode, retrieveErr.Body)
	}
	return integration.NewConnectorError(integration.ConnectorErrPlatformUnavailable, "%s: token refresh: %v", platform, err)
}

var _ integration.TokenRefresher = (*OAuthTokenRefresher)(nil)
