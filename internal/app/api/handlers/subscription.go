package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	subsvc "github.com/ticketwell/metering/internal/app/service/subscription"
	"github.com/ticketwell/metering/pkg/response"
	"github.com/ticketwell/metering/pkg/types"
)

type CreateSubscriptionRequest struct {
	CustomerID       string               `json:"customer_id" binding:"required"`
	PlanID           *string              `json:"plan_id"`
	ExternalRef      *string              `json:"external_ref"`
	PeriodStart      time.Time            `json:"period_start" binding:"required"`
	PeriodEnd        time.Time            `json:"period_end" binding:"required"`
	TrialStart       *time.Time           `json:"trial_start"`
	TrialEnd         *time.Time           `json:"trial_end"`
	CustomLimits     *types.LimitOverride `json:"custom_limits"`
	CustomPriceCents *int64               `json:"custom_price_cents"`
	EventTime        time.Time            `json:"event_time" binding:"required"`
}

// @Summary      Create Subscription
// @Description  Opens a subscription for a customer. At most one live subscription per customer is allowed.
// @Tags         Subscription
// @Accept       json
// @Produce      json
// @Param        request body CreateSubscriptionRequest true "Create subscription request"
// @Success      200  {object}  handlers.RespSubscription
// @Router       /api/v1/subscriptions [post]
func ApiCreateSubscription(svc *subsvc.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateSubscriptionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		sub, err := svc.Create(c.Request.Context(), subsvc.CreateParams{
			CustomerID:       req.CustomerID,
			PlanID:           req.PlanID,
			ExternalRef:      req.ExternalRef,
			PeriodStart:      req.PeriodStart,
			PeriodEnd:        req.PeriodEnd,
			TrialStart:       req.TrialStart,
			TrialEnd:         req.TrialEnd,
			CustomLimits:     req.CustomLimits,
			CustomPriceCents: req.CustomPriceCents,
			Reason:           types.SubscriptionChangeReasonSignup,
			EventTime:        req.EventTime,
		})
		if err != nil {
			if errors.Is(err, subsvc.ErrCustomerHasLiveSubscription) {
				c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
				return
			}
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(sub))
	}
}

// @Summary      Get Subscription
// @Tags         Subscription
// @Produce      json
// @Param        id path string true "Subscription ID"
// @Success      200  {object}  handlers.RespSubscription
// @Router       /api/v1/subscriptions/{id} [get]
func ApiGetSubscription(svc *subsvc.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		sub, err := svc.GetByID(c.Request.Context(), c.Param("id"))
		if err != nil {
			c.JSON(http.StatusOK, subscriptionErrorResponse(err))
			return
		}
		c.JSON(http.StatusOK, response.OKT(sub))
	}
}

// @Summary      Get Subscription Entitlements
// @Description  Resolves the subscription's effective limits: custom override when present, plan limits otherwise.
// @Tags         Subscription
// @Produce      json
// @Param        id path string true "Subscription ID"
// @Success      200  {object}  handlers.RespEntitlements
// @Router       /api/v1/subscriptions/{id}/entitlements [get]
func ApiGetEntitlements(svc *subsvc.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		ent, err := svc.ResolveEntitlements(c.Request.Context(), c.Param("id"))
		if err != nil {
			c.JSON(http.StatusOK, subscriptionErrorResponse(err))
			return
		}
		c.JSON(http.StatusOK, response.OKT(ent))
	}
}

type CancelSubscriptionRequest struct {
	AtPeriodEnd bool      `json:"at_period_end"`
	EventTime   time.Time `json:"event_time" binding:"required"`
}

// @Summary      Cancel Subscription
// @Description  Cancels immediately or flags cancel-at-period-end. Cancellation is soft; the record remains for analytics.
// @Tags         Subscription
// @Accept       json
// @Produce      json
// @Param        id path string true "Subscription ID"
// @Param        request body CancelSubscriptionRequest true "Cancel request"
// @Success      200  {object}  handlers.RespSubscription
// @Router       /api/v1/subscriptions/{id}/cancel [post]
func ApiCancelSubscription(svc *subsvc.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CancelSubscriptionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		sub, err := svc.Cancel(c.Request.Context(), c.Param("id"), req.AtPeriodEnd, req.EventTime)
		if err != nil {
			c.JSON(http.StatusOK, subscriptionErrorResponse(err))
			return
		}
		c.JSON(http.StatusOK, response.OKT(sub))
	}
}

type ChangePlanRequest struct {
	PlanID    string    `json:"plan_id" binding:"required"`
	EventTime time.Time `json:"event_time" binding:"required"`
}

// @Summary      Change Plan
// @Description  Swaps the subscription's plan and clears any custom limit override.
// @Tags         Subscription
// @Accept       json
// @Produce      json
// @Param        id path string true "Subscription ID"
// @Param        request body ChangePlanRequest true "Change plan request"
// @Success      200  {object}  handlers.RespSubscription
// @Router       /api/v1/subscriptions/{id}/change_plan [post]
func ApiChangePlan(svc *subsvc.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ChangePlanRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		sub, err := svc.ChangePlan(c.Request.Context(), c.Param("id"), req.PlanID, req.EventTime)
		if err != nil {
			c.JSON(http.StatusOK, subscriptionErrorResponse(err))
			return
		}
		c.JSON(http.StatusOK, response.OKT(sub))
	}
}

type SubscriptionEventTimeRequest struct {
	EventTime time.Time `json:"event_time" binding:"required"`
}

func subscriptionAction(fn func(*gin.Context, string, time.Time) (any, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req SubscriptionEventTimeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		out, err := fn(c, c.Param("id"), req.EventTime)
		if err != nil {
			c.JSON(http.StatusOK, subscriptionErrorResponse(err))
			return
		}
		c.JSON(http.StatusOK, response.OKT(out))
	}
}

// @Summary      Convert Trial
// @Tags         Subscription
// @Accept       json
// @Produce      json
// @Param        id path string true "Subscription ID"
// @Param        request body SubscriptionEventTimeRequest true "Event time"
// @Success      200  {object}  handlers.RespSubscription
// @Router       /api/v1/subscriptions/{id}/convert_trial [post]
func ApiConvertTrial(svc *subsvc.Service) gin.HandlerFunc {
	return subscriptionAction(func(c *gin.Context, id string, at time.Time) (any, error) {
		return svc.ConvertTrial(c.Request.Context(), id, at)
	})
}

// @Summary      Suspend Subscription (Admin)
// @Tags         Subscription
// @Accept       json
// @Produce      json
// @Param        id path string true "Subscription ID"
// @Param        request body SubscriptionEventTimeRequest true "Event time"
// @Success      200  {object}  handlers.RespSubscription
// @Router       /api/v1/subscriptions/{id}/suspend [post]
func ApiSuspendSubscription(svc *subsvc.Service) gin.HandlerFunc {
	return subscriptionAction(func(c *gin.Context, id string, at time.Time) (any, error) {
		return svc.Suspend(c.Request.Context(), id, at)
	})
}

// @Summary      Resume Subscription (Admin)
// @Tags         Subscription
// @Accept       json
// @Produce      json
// @Param        id path string true "Subscription ID"
// @Param        request body SubscriptionEventTimeRequest true "Event time"
// @Success      200  {object}  handlers.RespSubscription
// @Router       /api/v1/subscriptions/{id}/resume [post]
func ApiResumeSubscription(svc *subsvc.Service) gin.HandlerFunc {
	return subscriptionAction(func(c *gin.Context, id string, at time.Time) (any, error) {
		return svc.Resume(c.Request.Context(), id, at)
	})
}

func subscriptionErrorResponse(err error) *response.APIResponse[any] {
	switch {
	case errors.Is(err, subsvc.ErrNotFound):
		return response.ErrorT[any](response.APIResponseCodeNotFound, err.Error())
	case errors.Is(err, subsvc.ErrInvalidTransition):
		return response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error())
	}
	return response.ErrorT[any](response.APIResponseCodeError, err.Error())
}

func RegisterSubscriptionRoutes(r gin.IRouter, svc *subsvc.Service) {
	r.POST("", ApiCreateSubscription(svc))
	r.GET("/:id", ApiGetSubscription(svc))
	r.GET("/:id/entitlements", ApiGetEntitlements(svc))
	r.POST("/:id/cancel", ApiCancelSubscription(svc))
	r.POST("/:id/change_plan", ApiChangePlan(svc))
	r.POST("/:id/convert_trial", ApiConvertTrial(svc))
	r.POST("/:id/suspend", ApiSuspendSubscription(svc))
	r.POST("/:id/resume", ApiResumeSubscription(svc))
}
