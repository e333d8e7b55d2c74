package handler

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	integrationapp "github.com/storefront/backend/internal/application/integration"
	"github.com/storefront/backend/internal/domain/integration"
)

// DefaultWebhookPayloadSize is the webhook body cap (64KB). Platform event
// envelopes are small; anything larger is rejected before parsing.
const DefaultWebhookPayloadSize = 64 << 10

// WebhookHeaders names the signature and timestamp headers of one platform
type WebhookHeaders struct {
	Signature string
	Timestamp string
}

// platformWebhookHeaders lists the headers each platform sends with a push
var platformWebhookHeaders = map[integration.PlatformCode]WebhookHeaders{
	integration.PlatformCodeTaobao:   {Signature: "X-Taobao-Sign", Timestamp: "X-Taobao-Timestamp"},
	integration.PlatformCodeDouyin:   {Signature: "X-Douyin-Signature", Timestamp: "X-Douyin-Timestamp"},
	integration.PlatformCodeKuaishou: {Signature: "X-Kuaishou-Signature", Timestamp: "X-Kuaishou-Timestamp"},
}

// HeadersFor returns the webhook headers of a platform
func HeadersFor(platform integration.PlatformCode) (WebhookHeaders, bool) {
	h, ok := platformWebhookHeaders[platform]
	return h, ok
}

// WebhookProcessor turns an authenticated webhook delivery into sync jobs
type WebhookProcessor interface {
	HandleWebhook(ctx context.Context, d integrationapp.WebhookDelivery) (*integrationapp.WebhookResult, error)
}

// WebhookHandler receives platform push notifications.
// These endpoints are called by the platforms and authenticate by signature.
type WebhookHandler struct {
	BaseHandler
	processor  WebhookProcessor
	maxPayload int64
}

// NewWebhookHandler creates a new WebhookHandler. A maxPayload of zero or
// less uses DefaultWebhookPayloadSize.
func NewWebhookHandler(processor WebhookProcessor, maxPayload int64) *WebhookHandler {
	if maxPayload <= 0 {
		maxPayload = DefaultWebhookPayloadSize
	}
	return &WebhookHandler{
		processor:  processor,
		maxPayload: maxPayload,
	}
}

// Receive returns the handler for one platform's webhook route
//
//	@ID				receivePlatformWebhook
//	@Summary		Receive a platform webhook
//	@Description	Verify, parse and dispatch a platform event into sync jobs
//	@Tags			webhooks
//	@Accept			json
//	@Produce		json
//	@Param			platform	path		string	true	"taobao, douyin or kuaishou"
//	@Param			accountId	path		string	true	"Channel account ID"
//	@Success		200			{object}	integrationapp.WebhookResult
//	@Failure		400			{object}	ErrorResponse	"Malformed payload or missing field"
//	@Failure		401			{object}	ErrorResponse	"Signature or timestamp rejected"
//	@Failure		413			{object}	ErrorResponse	"Payload too large"
//	@Router			/webhooks/{platform}/{accountId} [post]
func (h *WebhookHandler) Receive(platform integration.PlatformCode) gin.HandlerFunc {
	headers := platformWebhookHeaders[platform]

	return func(c *gin.Context) {
		// A malformed account id is answered like an unknown account
		accountID, err := uuid.Parse(c.Param("accountId"))
		if err != nil {
			h.Unauthorized(c, "Webhook authentication failed")
			return
		}

		// Signature verification needs the raw body
		payload, err := io.ReadAll(io.LimitReader(c.Request.Body, h.maxPayload+1))
		if err != nil {
			h.BadRequest(c, "Failed to read request body")
			return
		}
		if int64(len(payload)) > h.maxPayload {
			h.PayloadTooLarge(c, "Webhook payload too large")
			return
		}

		result, err := h.processor.HandleWebhook(c.Request.Context(), integrationapp.WebhookDelivery{
			Platform:  platform,
			AccountID: accountID,
			Body:      payload,
			Signature: c.GetHeader(headers.Signature),
			Timestamp: c.GetHeader(headers.Timestamp),
		})
		if err != nil {
			h.HandleError(c, err)
			return
		}

		c.JSON(http.StatusOK, result)
	}
}
