package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	integrationapp "github.com/storefront/backend/internal/application/integration"
	"github.com/storefront/backend/internal/interfaces/http/middleware"
)

// IdempotencyKeyHeader may carry the idempotency key of a stock batch commit
const IdempotencyKeyHeader = "Idempotency-Key"

// StockReconciler validates and applies bulk stock changes
type StockReconciler interface {
	ReconcileStock(ctx context.Context, req integrationapp.StockBatchRequest) (*integrationapp.StockBatchResult, error)
}

// StockHandler handles batch stock reconciliation
type StockHandler struct {
	BaseHandler
	reconciler StockReconciler
}

// NewStockHandler creates a new StockHandler
func NewStockHandler(reconciler StockReconciler) *StockHandler {
	return &StockHandler{reconciler: reconciler}
}

// StockUpdateRequest is one proposed stock level
type StockUpdateRequest struct {
	ListingID uuid.UUID `json:"listingId" binding:"required"`
	// NewStock is a pointer so that an explicit zero is accepted
	NewStock *int   `json:"newStock" binding:"required"`
	Reason   string `json:"reason" binding:"max=255"`
}

// StockBatchRequest is the body of POST /sync/stock/batch
type StockBatchRequest struct {
	Updates        []StockUpdateRequest `json:"updates" binding:"required,min=1,max=1000,dive"`
	CommitMode     string               `json:"commitMode" binding:"omitempty,oneof=preview commit"`
	IdempotencyKey string               `json:"idempotencyKey" binding:"max=128"`
	DryRun         bool                 `json:"dryRun"`
}

// ReconcileStock godoc
//
//	@ID				reconcileStockBatch
//	@Summary		Validate or commit a batch of stock changes
//	@Description	Every item is validated independently. In commit mode, valid changes are pushed as one job per channel account.
//	@Tags			sync-stock
//	@Accept			json
//	@Produce		json
//	@Param			Idempotency-Key	header		string				false	"Idempotency key for commits"
//	@Param			request			body		StockBatchRequest	true	"Stock changes"
//	@Success		200				{object}	integrationapp.StockBatchResult
//	@Failure		400				{object}	ErrorResponse
//	@Failure		409				{object}	ErrorResponse	"Idempotency key already used"
//	@Router			/sync/stock/batch [post]
func (h *StockHandler) ReconcileStock(c *gin.Context) {
	var req StockBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	key := req.IdempotencyKey
	if key == "" {
		key = c.GetHeader(IdempotencyKeyHeader)
	}

	updates := make([]integrationapp.StockUpdate, 0, len(req.Updates))
	for _, u := range req.Updates {
		updates = append(updates, integrationapp.StockUpdate{
			ListingID: u.ListingID,
			NewStock:  *u.NewStock,
			Reason:    u.Reason,
		})
	}

	result, err := h.reconciler.ReconcileStock(c.Request.Context(), integrationapp.StockBatchRequest{
		Updates:        updates,
		CommitMode:     integrationapp.CommitMode(req.CommitMode),
		IdempotencyKey: key,
		DryRun:         req.DryRun,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}
