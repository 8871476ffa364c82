package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ticketwell/metering/internal/app/service/analytics"
	"github.com/ticketwell/metering/internal/app/service/billing"
	"github.com/ticketwell/metering/internal/app/service/catalog"
	"github.com/ticketwell/metering/internal/app/service/eventlog"
	"github.com/ticketwell/metering/internal/app/service/subscription"
	"github.com/ticketwell/metering/pkg/response"
	"github.com/ticketwell/metering/pkg/types"
)

// periodFromQuery resolves the ?period= parameter, defaulting to the current
// month. A false return means the error response has already been written.
func periodFromQuery(c *gin.Context) (types.PeriodKey, bool) {
	period := types.PeriodOf(time.Now())
	if q := c.Query("period"); q != "" {
		var err error
		if period, err = types.ParsePeriod(q); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return period, false
		}
	}
	return period, true
}

// @Summary      List Plans (Admin)
// @Description  Lists catalog plans. Deactivated plans are included when include_inactive=true.
// @Tags         Admin
// @Produce      json
// @Param        include_inactive query bool false "Include deactivated plans"
// @Success      200  {object}  handlers.RespListPlans
// @Router       /api/v1/admin/plans [get]
func ApiListPlans(svc *catalog.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		includeInactive := c.Query("include_inactive") == "true"
		plans, err := svc.ListPlans(c.Request.Context(), includeInactive)
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(plans))
	}
}

// @Summary      Get Plan (Admin)
// @Description  Resolves one plan by id. Deactivated plans still resolve so existing subscriptions keep their limits.
// @Tags         Admin
// @Produce      json
// @Param        id path string true "Plan ID"
// @Success      200  {object}  handlers.RespPlan
// @Router       /api/v1/admin/plans/{id} [get]
func ApiGetPlan(svc *catalog.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		plan, err := svc.GetPlan(c.Request.Context(), c.Param("id"))
		if err != nil {
			if errors.Is(err, catalog.ErrPlanNotFound) {
				c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeNotFound, err.Error()))
				return
			}
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(plan))
	}
}

// @Summary      Deactivate Plan (Admin)
// @Description  Retires a plan from new signups. Plans are never deleted.
// @Tags         Admin
// @Produce      json
// @Param        id path string true "Plan ID"
// @Success      200  {object}  handlers.RespOK
// @Router       /api/v1/admin/plans/{id}/deactivate [post]
func ApiDeactivatePlan(svc *catalog.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := svc.DeactivatePlan(c.Request.Context(), c.Param("id")); err != nil {
			if errors.Is(err, catalog.ErrPlanNotFound) {
				c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeNotFound, err.Error()))
				return
			}
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT[any](nil))
	}
}

// @Summary      Get Revenue Statistics (Admin)
// @Description  Resolves revenue data items (daily, monthly, cumulative, outstanding, failed attempts) over the billing records.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        request body billing.RevenueStatisticRequest true "Statistic request parameters"
// @Success      200  {object}  handlers.RespRevenueStatistic
// @Router       /api/v1/admin/revenue_statistic [post]
func ApiGetRevenueStatistic(svc *billing.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req billing.RevenueStatisticRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		res, err := svc.GetRevenueStatistic(c.Request.Context(), &req)
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

// @Summary      Get Analytics Summary (Admin)
// @Description  Headline metrics for one period: MRR, churn, trial conversion and estimated CLV.
// @Tags         Admin
// @Produce      json
// @Param        period query string false "Period key, e.g. 2026-09; defaults to the current month"
// @Success      200  {object}  handlers.RespAnalyticsSummary
// @Router       /api/v1/admin/analytics_summary [get]
func ApiGetAnalyticsSummary(svc *analytics.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		period, ok := periodFromQuery(c)
		if !ok {
			return
		}
		res, err := svc.GetSummary(c.Request.Context(), period)
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

// @Summary      Get MRR Report (Admin)
// @Description  Monthly recurring revenue with new, churned and net growth breakdown for one period.
// @Tags         Admin
// @Produce      json
// @Param        period query string false "Period key, e.g. 2026-09; defaults to the current month"
// @Success      200  {object}  handlers.RespMRRReport
// @Router       /api/v1/admin/analytics/mrr [get]
func ApiGetMRRReport(svc *analytics.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		period, ok := periodFromQuery(c)
		if !ok {
			return
		}
		res, err := svc.GetMRRReport(c.Request.Context(), period)
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

// @Summary      Get Churn Report (Admin)
// @Tags         Admin
// @Produce      json
// @Param        period query string false "Period key, e.g. 2026-09; defaults to the current month"
// @Success      200  {object}  handlers.RespChurnReport
// @Router       /api/v1/admin/analytics/churn [get]
func ApiGetChurnReport(svc *analytics.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		period, ok := periodFromQuery(c)
		if !ok {
			return
		}
		res, err := svc.GetChurnReport(c.Request.Context(), period)
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

// @Summary      Get Trial Conversion Report (Admin)
// @Tags         Admin
// @Produce      json
// @Param        period query string false "Period key, e.g. 2026-09; defaults to the current month"
// @Success      200  {object}  handlers.RespConversionReport
// @Router       /api/v1/admin/analytics/conversion [get]
func ApiGetConversionReport(svc *analytics.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		period, ok := periodFromQuery(c)
		if !ok {
			return
		}
		res, err := svc.GetConversionReport(c.Request.Context(), period)
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

// @Summary      Get CLV Report (Admin)
// @Description  Customer lifetime value estimate with a paginated per-customer paid-revenue breakdown.
// @Tags         Admin
// @Produce      json
// @Param        period query string false "Period key, e.g. 2026-09; defaults to the current month"
// @Param        page query int false "Page number, starting at 1"
// @Param        page_size query int false "Page size, default 50, max 500"
// @Success      200  {object}  handlers.RespCLVReport
// @Router       /api/v1/admin/analytics/clv [get]
func ApiGetCLVReport(svc *analytics.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		period, ok := periodFromQuery(c)
		if !ok {
			return
		}
		page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
		pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "50"))
		res, err := svc.GetCLVReport(c.Request.Context(), period, page, pageSize)
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

type GrantSubscriptionRequest struct {
	CustomerID       string               `json:"customer_id" binding:"required"`
	PlanID           *string              `json:"plan_id"`
	CustomLimits     *types.LimitOverride `json:"custom_limits"`
	CustomPriceCents *int64               `json:"custom_price_cents"`
	PeriodStart      time.Time            `json:"period_start" binding:"required"`
	PeriodEnd        time.Time            `json:"period_end" binding:"required"`
	EventTime        time.Time            `json:"event_time"`
}

// @Summary      Grant Subscription (Admin)
// @Description  Opens a complimentary subscription with custom limits or a plan, outside the billing event stream.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        request body handlers.GrantSubscriptionRequest true "Grant parameters"
// @Success      200  {object}  handlers.RespSubscription
// @Router       /api/v1/admin/grants [post]
func ApiGrantSubscription(svc *subscription.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req GrantSubscriptionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		if req.EventTime.IsZero() {
			req.EventTime = time.Now()
		}
		sub, err := svc.Create(c.Request.Context(), subscription.CreateParams{
			CustomerID:       req.CustomerID,
			PlanID:           req.PlanID,
			PeriodStart:      req.PeriodStart,
			PeriodEnd:        req.PeriodEnd,
			CustomLimits:     req.CustomLimits,
			CustomPriceCents: req.CustomPriceCents,
			Reason:           types.SubscriptionChangeReasonAdminGrant,
			EventTime:        req.EventTime,
		})
		if err != nil {
			if errors.Is(err, subscription.ErrCustomerHasLiveSubscription) {
				c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
				return
			}
			if errors.Is(err, catalog.ErrPlanNotFound) {
				c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeNotFound, err.Error()))
				return
			}
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(sub))
	}
}

// @Summary      List Billing Records (Admin)
// @Tags         Admin
// @Produce      json
// @Param        subscription_id path string true "Subscription ID"
// @Success      200  {object}  handlers.RespListBillingRecords
// @Router       /api/v1/admin/billing_records/{subscription_id} [get]
func ApiListBillingRecords(svc *billing.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		records, err := svc.ListBySubscription(c.Request.Context(), c.Param("subscription_id"))
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(records))
	}
}

// @Summary      List Billing Event Deliveries (Admin)
// @Description  Returns all logged delivery attempts for one provider event id, for replay diagnosis.
// @Tags         Admin
// @Produce      json
// @Param        event_id path string true "Provider event ID"
// @Success      200  {object}  handlers.RespOK
// @Router       /api/v1/admin/billing_events/{event_id} [get]
func ApiListBillingEventLogs(svc *eventlog.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		rows, err := svc.ListByEventID(c.Request.Context(), c.Param("event_id"))
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(rows))
	}
}

func RegisterAdminRoutes(r gin.IRouter, cat *catalog.Service, bil *billing.Service, ana *analytics.Service, logs *eventlog.Service, subs *subscription.Service) {
	r.GET("/plans", ApiListPlans(cat))
	r.GET("/plans/:id", ApiGetPlan(cat))
	r.POST("/plans/:id/deactivate", ApiDeactivatePlan(cat))
	r.POST("/grants", ApiGrantSubscription(subs))
	r.POST("/revenue_statistic", ApiGetRevenueStatistic(bil))
	r.GET("/analytics_summary", ApiGetAnalyticsSummary(ana))
	r.GET("/analytics/mrr", ApiGetMRRReport(ana))
	r.GET("/analytics/churn", ApiGetChurnReport(ana))
	r.GET("/analytics/conversion", ApiGetConversionReport(ana))
	r.GET("/analytics/clv", ApiGetCLVReport(ana))
	r.GET("/billing_records/:subscription_id", ApiListBillingRecords(bil))
	r.GET("/billing_events/:event_id", ApiListBillingEventLogs(logs))
}
