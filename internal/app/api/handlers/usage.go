package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ticketwell/metering/internal/app/service/aggregator"
	"github.com/ticketwell/metering/internal/app/service/ledger"
	"github.com/ticketwell/metering/internal/app/service/subscription"
	"github.com/ticketwell/metering/pkg/response"
	"github.com/ticketwell/metering/pkg/types"
)

type UsageSummaryResponse struct {
	SubscriptionID string                 `json:"subscription_id"`
	Period         string                 `json:"period"`
	Counts         types.UsageCounts      `json:"counts"`
	Limits         types.TicketLimits     `json:"limits"`
	Percentages    types.UsagePercentages `json:"percentages"`
}

// @Summary      Get Usage Summary
// @Description  Returns cached usage counts for one subscription and period, with percentages against the effective limits.
// @Tags         Usage
// @Produce      json
// @Param        subscription_id path string true "Subscription ID"
// @Param        period path string true "Period key, e.g. 2026-09"
// @Success      200  {object}  handlers.RespUsageSummary
// @Router       /api/v1/usage/{subscription_id}/{period} [get]
func ApiGetUsageSummary(agg *aggregator.Service, subs *subscription.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		period, err := types.ParsePeriod(c.Param("period"))
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		subscriptionID := c.Param("subscription_id")

		ent, err := subs.ResolveEntitlements(c.Request.Context(), subscriptionID)
		if err != nil {
			if errors.Is(err, subscription.ErrNotFound) {
				c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeNotFound, err.Error()))
				return
			}
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		counts, err := agg.GetUsage(c.Request.Context(), subscriptionID, period)
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}

		c.JSON(http.StatusOK, response.OKT(&UsageSummaryResponse{
			SubscriptionID: subscriptionID,
			Period:         period.String(),
			Counts:         counts,
			Limits:         ent.Limits,
			Percentages:    aggregator.Percentages(counts, ent.Limits),
		}))
	}
}

// @Summary      List Usage Events
// @Description  Paginated, filterable listing over the usage ledger for one subscription.
// @Tags         Usage
// @Accept       json
// @Produce      json
// @Param        request body ledger.ListEventsRequest true "List request with filters and pagination"
// @Success      200  {object}  handlers.RespListUsageEvents
// @Router       /api/v1/usage/events [post]
func ApiListUsageEvents(led *ledger.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ledger.ListEventsRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		res, err := led.ListEvents(c.Request.Context(), &req)
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

type ReconcileRequest struct {
	SubscriptionID string `json:"subscription_id" binding:"required"`
	Period         string `json:"period" binding:"required"`
}

// @Summary      Reconcile Usage Summary
// @Description  Recomputes the period's counts from the ledger and overwrites the cached summary.
// @Tags         Usage
// @Accept       json
// @Produce      json
// @Param        request body ReconcileRequest true "Reconcile request"
// @Success      200  {object}  handlers.RespReconcile
// @Router       /api/v1/usage/reconcile [post]
func ApiReconcileUsage(agg *aggregator.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ReconcileRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		period, err := types.ParsePeriod(req.Period)
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		res, err := agg.Reconcile(c.Request.Context(), req.SubscriptionID, period)
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

func RegisterUsageRoutes(r gin.IRouter, agg *aggregator.Service, subs *subscription.Service, led *ledger.Service) {
	r.GET("/:subscription_id/:period", ApiGetUsageSummary(agg, subs))
	r.POST("/events", ApiListUsageEvents(led))
	r.POST("/reconcile", ApiReconcileUsage(agg))
}
