package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ticketwell/metering/internal/app/service/entitlement"
	"github.com/ticketwell/metering/internal/app/service/ledger"
	"github.com/ticketwell/metering/internal/app/service/subscription"
	"github.com/ticketwell/metering/pkg/response"
	"github.com/ticketwell/metering/pkg/types"
)

type CheckEntitlementRequest struct {
	SubscriptionID string `json:"subscription_id" binding:"required"`
	Action         string `json:"action" binding:"required"`
	// Period defaults to the calendar month of the request when empty.
	Period string `json:"period"`
}

// @Summary      Check Entitlement
// @Description  Answers whether a subscription may perform a ticket action in the given period. Advisory only; nothing is recorded.
// @Tags         Entitlement
// @Accept       json
// @Produce      json
// @Param        request body CheckEntitlementRequest true "Entitlement check request"
// @Success      200  {object}  handlers.RespDecision
// @Router       /api/v1/entitlement/check [post]
func ApiCheckEntitlement(gate *entitlement.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CheckEntitlementRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}

		period := types.PeriodOf(time.Now())
		if req.Period != "" {
			var err error
			if period, err = types.ParsePeriod(req.Period); err != nil {
				c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
				return
			}
		}

		decision, err := gate.CanPerform(c.Request.Context(), req.SubscriptionID, types.GateAction(req.Action), period)
		if err != nil {
			if errors.Is(err, subscription.ErrNotFound) {
				c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeNotFound, err.Error()))
				return
			}
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(decision))
	}
}

type RecordUsageRequest struct {
	SubscriptionID string         `json:"subscription_id" binding:"required"`
	TicketID       string         `json:"ticket_id" binding:"required"`
	Action         string         `json:"action" binding:"required"`
	PreviousStatus string         `json:"previous_status"`
	NewStatus      string         `json:"new_status"`
	OccurredAt     time.Time      `json:"occurred_at" binding:"required"`
	Metadata       map[string]any `json:"metadata"`
}

type RecordUsageResponse struct {
	Decision *entitlement.Decision `json:"decision"`
	EventID  string                `json:"event_id,omitempty"`
	// Duplicate is set when the same logical event was already recorded; the
	// stored event is returned and counters are untouched.
	Duplicate bool `json:"duplicate,omitempty"`
}

// gateActionFor maps ledger actions to the admission decision they require.
// Archive and delete free capacity and are never gated.
func gateActionFor(action types.TicketAction) (types.GateAction, bool) {
	switch action {
	case types.TicketActionCreated:
		return types.GateActionCreate, true
	case types.TicketActionCompleted:
		return types.GateActionComplete, true
	}
	return "", false
}

// @Summary      Record Usage
// @Description  Runs the admission decision for the action and, when allowed, appends the usage event to the ledger.
// @Tags         Entitlement
// @Accept       json
// @Produce      json
// @Param        request body RecordUsageRequest true "Usage record request"
// @Success      200  {object}  handlers.RespRecordUsage
// @Router       /api/v1/entitlement/record [post]
func ApiRecordUsage(gate *entitlement.Service, led *ledger.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req RecordUsageRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}

		params := ledger.RecordParams{
			SubscriptionID: req.SubscriptionID,
			TicketID:       req.TicketID,
			Action:         types.TicketAction(req.Action),
			PreviousStatus: types.TicketStatus(req.PreviousStatus),
			NewStatus:      types.TicketStatus(req.NewStatus),
			OccurredAt:     req.OccurredAt,
			Metadata:       req.Metadata,
		}

		gateAction, gated := gateActionFor(params.Action)
		if !gated {
			event, err := led.Record(c.Request.Context(), params)
			if err != nil && !errors.Is(err, ledger.ErrDuplicateEvent) {
				c.JSON(http.StatusOK, recordErrorResponse(err))
				return
			}
			c.JSON(http.StatusOK, response.OKT(&RecordUsageResponse{
				EventID:   event.ID,
				Duplicate: errors.Is(err, ledger.ErrDuplicateEvent),
			}))
			return
		}

		decision, event, err := gate.RecordAdmitted(c.Request.Context(), params, gateAction)
		if err != nil && !errors.Is(err, ledger.ErrDuplicateEvent) {
			c.JSON(http.StatusOK, recordErrorResponse(err))
			return
		}
		out := &RecordUsageResponse{
			Decision:  decision,
			Duplicate: errors.Is(err, ledger.ErrDuplicateEvent),
		}
		if event != nil {
			out.EventID = event.ID
		}
		if !decision.Allowed {
			c.JSON(http.StatusOK, response.ErrorT(response.APIResponseCodeLimitExceeded, out))
			return
		}
		c.JSON(http.StatusOK, response.OKT(out))
	}
}

func recordErrorResponse(err error) *response.APIResponse[any] {
	if errors.Is(err, ledger.ErrSubscriptionNotFound) || errors.Is(err, subscription.ErrNotFound) {
		return response.ErrorT[any](response.APIResponseCodeNotFound, err.Error())
	}
	return response.ErrorT[any](response.APIResponseCodeError, err.Error())
}

func RegisterEntitlementRoutes(r gin.IRouter, gate *entitlement.Service, led *ledger.Service) {
	r.POST("/check", ApiCheckEntitlement(gate))
	r.POST("/record", ApiRecordUsage(gate, led))
}
