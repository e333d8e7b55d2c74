package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	integrationapp "github.com/storefront/backend/internal/application/integration"
	"github.com/storefront/backend/internal/domain/integration"
)

// TokenRefreshTrigger runs one token refresh pass on demand
type TokenRefreshTrigger interface {
	RunNow(ctx context.Context) (integration.TokenRefreshSummary, error)
}

// AccountHealthChecker probes a channel account's platform API
type AccountHealthChecker interface {
	CheckHealth(ctx context.Context, id uuid.UUID) (*integrationapp.AccountHealthResponse, error)
}

// SyncAdminHandler exposes operational sync endpoints
type SyncAdminHandler struct {
	BaseHandler
	refresh  TokenRefreshTrigger
	accounts AccountHealthChecker
}

// NewSyncAdminHandler creates a new SyncAdminHandler
func NewSyncAdminHandler(refresh TokenRefreshTrigger, accounts AccountHealthChecker) *SyncAdminHandler {
	return &SyncAdminHandler{
		refresh:  refresh,
		accounts: accounts,
	}
}

// RefreshTokens godoc
//
//	@ID				refreshChannelTokens
//	@Summary		Refresh expiring channel access tokens now
//	@Description	Runs the scheduled token refresh immediately. Per-account failures are reported in the result.
//	@Tags			sync-admin
//	@Produce		json
//	@Success		200	{object}	APIResponse[integration.TokenRefreshSummary]
//	@Failure		500	{object}	ErrorResponse
//	@Router			/sync/token-refresh [post]
func (h *SyncAdminHandler) RefreshTokens(c *gin.Context) {
	summary, err := h.refresh.RunNow(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, summary)
}

// CheckAccountHealth godoc
//
//	@ID				checkChannelAccountHealth
//	@Summary		Check a channel account's platform connectivity
//	@Tags			sync-admin
//	@Produce		json
//	@Param			id	path		string	true	"Channel account ID"
//	@Success		200	{object}	APIResponse[integrationapp.AccountHealthResponse]
//	@Failure		404	{object}	ErrorResponse
//	@Router			/sync/accounts/{id}/health [get]
func (h *SyncAdminHandler) CheckAccountHealth(c *gin.Context) {
	id, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}

	health, err := h.accounts.CheckHealth(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, health)
}
