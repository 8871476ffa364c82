package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ticketwell/metering/internal/app/service/webhook"
	"github.com/ticketwell/metering/pkg/logctx"
	"github.com/ticketwell/metering/pkg/response"
)

// @Summary      Billing Webhook
// @Description  Receives billing provider events (subscription lifecycle and invoice outcomes). Deliveries are at-least-once; every handler downstream is idempotent.
// @Tags         Webhook
// @Accept       json
// @Produce      json
// @Param        event body webhook.Event true "Billing event envelope"
// @Success      200  {object}  handlers.RespOK
// @Router       /api/v1/webhooks/billing [post]
func ApiBillingWebhook(h *webhook.Handler, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var event webhook.Event
		if err := c.ShouldBindJSON(&event); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}

		var traceID string
		if v, ok := c.Get("traceID"); ok {
			if s, ok2 := v.(string); ok2 {
				traceID = s
			}
		}

		logctx.FromCtx(c, log).Infow("billing_webhook_received",
			"event_id", event.EventID, "type", event.Type)

		result, err := h.HandleEvent(c.Request.Context(), traceID, &event)
		if err != nil {
			logctx.FromCtx(c, log).Errorw("billing_webhook_handle_error",
				"event_id", event.EventID, "type", event.Type, "error", err.Error())
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(result))
	}
}

func RegisterWebhookRoutes(r gin.IRouter, h *webhook.Handler, log *zap.SugaredLogger) {
	r.POST("/billing", ApiBillingWebhook(h, log))
}
