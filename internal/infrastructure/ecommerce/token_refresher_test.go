package ecommerce

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storefront/backend/internal/domain/integration"
)

func tokenServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
		assert.Equal(t, "test_refresh_token", r.PostForm.Get("refresh_token"))
		assert.Equal(t, "test_app_key", r.PostForm.Get("client_id"))
		assert.Equal(t, "test_app_secret", r.PostForm.Get("client_secret"))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func newTestRefresher(tokenURL string) *OAuthTokenRefresher {
	return NewOAuthTokenRefresher(map[integration.PlatformCode]Endpoints{
		integration.PlatformCodeTaobao: {TokenURL: tokenURL},
	}, nil)
}

func TestOAuthTokenRefresher_RefreshToken(t *testing.T) {
	server := tokenServer(t, http.StatusOK,
		`{"access_token":"new_access","refresh_token":"new_refresh","expires_in":3600,"token_type":"Bearer"}`)
	refresher := newTestRefresher(server.URL)

	before := time.Now()
	tokens, err := refresher.RefreshToken(context.Background(), newTestAccount(integration.PlatformCodeTaobao))
	require.NoError(t, err)
	assert.Equal(t, "new_access", tokens.AccessToken)
	assert.Equal(t, "new_refresh", tokens.RefreshToken)
	assert.WithinDuration(t, before.Add(time.Hour), tokens.ExpiresAt, time.Minute)
}

func TestOAuthTokenRefresher_KeepsRefreshTokenWhenNotRotated(t *testing.T) {
	server := tokenServer(t, http.StatusOK, `{"access_token":"new_access","expires_in":3600,"token_type":"Bearer"}`)

	tokens, err := newTestRefresher(server.URL).RefreshToken(context.Background(), newTestAccount(integration.PlatformCodeTaobao))
	require.NoError(t, err)
	assert.Equal(t, "test_refresh_token", tokens.RefreshToken)
}

func TestOAuthTokenRefresher_Errors(t *testing.T) {
	t.Run("invalid grant", func(t *testing.T) {
		server := tokenServer(t, http.StatusBadRequest, `{"error":"invalid_grant","error_description":"revoked"}`)
		_, err := newTestRefresher(server.URL).RefreshToken(context.Background(), newTestAccount(integration.PlatformCodeTaobao))
		requireConnectorError(t, err, integration.ConnectorErrUnauthorized)
	})

	t.Run("platform outage", func(t *testing.T) {
		server := tokenServer(t, http.StatusServiceUnavailable, `{"error":"unavailable"}`)
		_, err := newTestRefresher(server.URL).RefreshToken(context.Background(), newTestAccount(integration.PlatformCodeTaobao))
		requireConnectorError(t, err, integration.ConnectorErrPlatformUnavailable)
	})

	t.Run("no refresh token", func(t *testing.T) {
		account := newTestAccount(integration.PlatformCodeTaobao)
		account.RefreshToken = ""
		_, err := newTestRefresher("http://127.0.0.1:0").RefreshToken(context.Background(), account)
		requireConnectorError(t, err, integration.ConnectorErrUnauthorized)
	})

	t.Run("no token endpoint", func(t *testing.T) {
		_, err := newTestRefresher("").RefreshToken(context.Background(), newTestAccount(integration.PlatformCodeDouyin))
		assert.ErrorIs(t, err, integration.ErrPlatformNotSupported)
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := newTestRefresher("http://127.0.0.1:0").RefreshToken(ctx, newTestAccount(integration.PlatformCodeTaobao))
		requireConnectorError(t, err, integration.ConnectorErrTimeout)
	})
}
