package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/storefront/backend/internal/domain/integration"
	"github.com/storefront/backend/internal/interfaces/http/handler"
)

func TestSyncRoutes(t *testing.T) {
	g := SyncRoutes(handler.NewJobHandler(nil), handler.NewStockHandler(nil), handler.NewSyncAdminHandler(nil, nil))

	assert.ElementsMatch(t, []RouteInfo{
		{Method: "POST", Path: "/sync/jobs"},
		{Method: "GET", Path: "/sync/jobs"},
		{Method: "GET", Path: "/sync/jobs/:id"},
		{Method: "GET", Path: "/sync/jobs/:id/items"},
		{Method: "GET", Path: "/sync/jobs/:id/logs"},
		{Method: "POST", Path: "/sync/jobs/:id/retry"},
		{Method: "POST", Path: "/sync/jobs/:id/cancel"},
		{Method: "POST", Path: "/sync/stock/batch"},
		{Method: "POST", Path: "/sync/token-refresh"},
		{Method: "GET", Path: "/sync/accounts/:id/health"},
	}, g.Routes())

	engine := gin.New()
	NewRouter(engine).Register(g).Setup()

	// malformed ids are rejected before any service is consulted
	for _, path := range []string{"/api/v1/sync/jobs/nope", "/api/v1/sync/accounts/nope/health"} {
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest("GET", path, nil))
		assert.Equal(t, http.StatusBadRequest, w.Code, path)
	}
}

func TestWebhookRoutes(t *testing.T) {
	t.Run("one route per platform", func(t *testing.T) {
		g := WebhookRoutes(handler.NewWebhookHandler(nil, 0), integration.SupportedPlatforms)

		assert.ElementsMatch(t, []RouteInfo{
			{Method: "POST", Path: "/webhooks/taobao/:accountId"},
			{Method: "POST", Path: "/webhooks/douyin/:accountId"},
			{Method: "POST", Path: "/webhooks/kuaishou/:accountId"},
		}, g.Routes())
	})

	t.Run("unknown platform is not routed", func(t *testing.T) {
		engine := gin.New()
		NewRouter(engine).Register(WebhookRoutes(handler.NewWebhookHandler(nil, 0), integration.SupportedPlatforms)).Setup()

		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest("POST", "/api/v1/webhooks/shopify/x", nil))
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}
