package router

import (
	"github.com/storefront/backend/internal/domain/integration"
	"github.com/storefront/backend/internal/interfaces/http/handler"
)

// WebhookRoutes mounts one POST /webhooks/<platform>/:accountId route per
// platform. Deliveries are not rate limited: a 429 would make the platform
// retry.
func WebhookRoutes(h *handler.WebhookHandler, platforms []integration.PlatformCode) *DomainGroup {
	webhooks := NewDomainGroup("webhooks", "/webhooks")
	for _, platform := range platforms {
		webhooks.Group(platform.String(), "/"+platform.Slug()).POST("/:accountId", h.Receive(platform))
	}
	return webhooks
}

// SyncRoutes mounts the job, stock reconciliation and maintenance endpoints
// under /sync.
func SyncRoutes(jobs *handler.JobHandler, stock *handler.StockHandler, admin *handler.SyncAdminHandler) *DomainGroup {
	sync := NewDomainGroup("sync", "/sync")

	sync.Group("jobs", "/jobs").
		POST("", jobs.SubmitJob).
		GET("", jobs.ListJobs).
		GET("/:id", jobs.GetJob).
		GET("/:id/items", jobs.GetJobItems).
		GET("/:id/logs", jobs.GetJobLogs).
		POST("/:id/retry", jobs.RetryJob).
		POST("/:id/cancel", jobs.CancelJob)

	sync.Group("stock", "/stock").
		POST("/batch", stock.ReconcileStock)

	sync.POST("/token-refresh", admin.RefreshTokens)
	sync.GET("/accounts/:id/health", admin.CheckAccountHealth)

	return sync
}
