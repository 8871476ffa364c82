package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/samber/lo"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/ticketwell/metering/internal/app/service/billing"
	"github.com/ticketwell/metering/internal/app/service/eventlog"
	"github.com/ticketwell/metering/internal/app/service/subscription"
	"github.com/ticketwell/metering/internal/models"
	"github.com/ticketwell/metering/pkg/logctx"
	"github.com/ticketwell/metering/pkg/metrics"
	"github.com/ticketwell/metering/pkg/types"
)

// Handler turns provider billing events into subscription and billing record
// mutations. Every delivery is logged on receipt and again with its outcome;
// replays converge because every downstream write is idempotent.
type Handler struct {
	subSvc     *subscription.Service
	billingSvc *billing.Service
	eventLog   *eventlog.Service
	log        *zap.SugaredLogger
}

func NewHandler(subSvc *subscription.Service, billingSvc *billing.Service, eventLog *eventlog.Service, log *zap.SugaredLogger) *Handler {
	return &Handler{subSvc: subSvc, billingSvc: billingSvc, eventLog: eventLog, log: log}
}

// HandleEvent validates, logs and dispatches one webhook delivery. The
// returned map is echoed to the provider in the response body.
func (h *Handler) HandleEvent(ctx context.Context, traceID string, event *Event) (result map[string]any, resErr error) {
	if err := event.Validate(); err != nil {
		metrics.BillingWebhookEvents.WithLabelValues(string(event.Type), "invalid").Inc()
		return nil, err
	}

	data := event.rawData()
	subscriptionRef := event.SubscriptionRef()

	h.eventLog.Save(ctx, &models.BillingEventLog{
		EventID:         event.EventID,
		EventType:       string(event.Type),
		SubscriptionRef: lo.Ternary(subscriptionRef != "", lo.ToPtr(subscriptionRef), nil),
		TraceID:         traceID,
		EventTime:       event.CreatedAt,
		Data:            datatypes.JSON(data),
		Status:          models.BillingEventLogStatusReceived,
	})

	defer func() {
		resMap := map[string]any{"result": result}
		if resErr != nil {
			resMap["error"] = resErr.Error()
		}
		resBytes, _ := json.Marshal(resMap)
		status := models.BillingEventLogStatusHandled
		outcome := "handled"
		if resErr != nil {
			status = models.BillingEventLogStatusHandleFailed
			outcome = "handle_failed"
		}
		metrics.BillingWebhookEvents.WithLabelValues(string(event.Type), outcome).Inc()
		h.eventLog.Save(ctx, &models.BillingEventLog{
			EventID:         event.EventID,
			EventType:       string(event.Type),
			SubscriptionRef: lo.Ternary(subscriptionRef != "", lo.ToPtr(subscriptionRef), nil),
			TraceID:         traceID,
			EventTime:       event.CreatedAt,
			Data:            datatypes.JSON(data),
			Result:          func() *datatypes.JSON { j := datatypes.JSON(resBytes); return &j }(),
			Status:          status,
		})
	}()

	switch event.Type {
	case types.BillingEventSubscriptionCreated:
		result, resErr = h.handleSubscriptionCreated(ctx, event)
	case types.BillingEventSubscriptionUpdated:
		result, resErr = h.handleSubscriptionUpdated(ctx, event)
	case types.BillingEventSubscriptionDeleted:
		result, resErr = h.handleSubscriptionDeleted(ctx, event)
	case types.BillingEventInvoicePaid:
		result, resErr = h.handleInvoicePaid(ctx, event)
	case types.BillingEventInvoiceFailed:
		result, resErr = h.handleInvoiceFailed(ctx, event)
	default:
		resErr = fmt.Errorf("unsupported event type: %s", event.Type)
	}
	return result, resErr
}

func (h *Handler) handleSubscriptionCreated(ctx context.Context, event *Event) (map[string]any, error) {
	payload := event.Data.Subscription

	// Replay: the ref already resolves, first delivery won.
	if existing, err := h.subSvc.GetByExternalRef(ctx, payload.ExternalRef); err == nil {
		logctx.FromCtx(ctx, h.log).Infow("subscription already exists for external ref, ignoring replay",
			"external_ref", payload.ExternalRef, "subscription_id", existing.ID)
		return map[string]any{"subscription_id": existing.ID, "replay": true}, nil
	} else if !errors.Is(err, subscription.ErrNotFound) {
		return nil, err
	}

	sub, err := h.subSvc.Create(ctx, subscription.CreateParams{
		CustomerID:  payload.CustomerID,
		PlanID:      payload.PlanID,
		ExternalRef: lo.ToPtr(payload.ExternalRef),
		PeriodStart: payload.CurrentPeriodStart,
		PeriodEnd:   payload.CurrentPeriodEnd,
		TrialStart:  payload.TrialStart,
		TrialEnd:    payload.TrialEnd,
		Reason:      types.SubscriptionChangeReasonBillingEvent,
		EventTime:   event.CreatedAt,
	})
	if err != nil {
		return nil, err
	}
	return map[string]any{"subscription_id": sub.ID}, nil
}

func (h *Handler) handleSubscriptionUpdated(ctx context.Context, event *Event) (map[string]any, error) {
	payload := event.Data.Subscription
	sub, err := h.subSvc.GetByExternalRef(ctx, payload.ExternalRef)
	if err != nil {
		return nil, err
	}

	if payload.PlanID != nil && (sub.PlanID == nil || *sub.PlanID != *payload.PlanID) {
		sub, err = h.subSvc.ChangePlan(ctx, sub.ID, *payload.PlanID, event.CreatedAt)
		if err != nil {
			return nil, err
		}
	}
	if payload.CancelAtPeriodEnd && !sub.CancelAtPeriodEnd {
		sub, err = h.subSvc.Cancel(ctx, sub.ID, true, event.CreatedAt)
		if err != nil {
			return nil, err
		}
	}
	return map[string]any{"subscription_id": sub.ID, "status": sub.Status}, nil
}

func (h *Handler) handleSubscriptionDeleted(ctx context.Context, event *Event) (map[string]any, error) {
	sub, err := h.subSvc.GetByExternalRef(ctx, event.Data.Subscription.ExternalRef)
	if err != nil {
		return nil, err
	}
	if sub.Status == types.SubscriptionStatusCancelled {
		return map[string]any{"subscription_id": sub.ID, "status": sub.Status, "replay": true}, nil
	}
	sub, err = h.subSvc.Cancel(ctx, sub.ID, false, event.CreatedAt)
	if err != nil {
		return nil, err
	}
	return map[string]any{"subscription_id": sub.ID, "status": sub.Status}, nil
}

// handleInvoicePaid settles the subscription first, then mirrors the invoice.
// If the billing write fails the next replay repairs it; the subscription
// mutation discards the replayed event by timestamp.
func (h *Handler) handleInvoicePaid(ctx context.Context, event *Event) (map[string]any, error) {
	invoice := event.Data.Invoice
	sub, err := h.subSvc.GetByExternalRef(ctx, invoice.SubscriptionRef)
	if err != nil {
		return nil, err
	}

	sub, err = h.subSvc.HandleInvoicePaid(ctx, sub.ID, event.CreatedAt, invoice.PeriodStart, invoice.PeriodEnd)
	if err != nil {
		return nil, err
	}

	if _, err = h.billingSvc.Create(ctx, h.createParams(sub.ID, invoice)); err != nil {
		return nil, err
	}
	record, err := h.billingSvc.MarkPaid(ctx, invoice.ExternalInvoiceID, invoice.AmountPaidCents, invoice.ExternalPaymentIntentID, event.CreatedAt)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"subscription_id":   sub.ID,
		"status":            sub.Status,
		"billing_record_id": record.ID,
	}, nil
}

func (h *Handler) handleInvoiceFailed(ctx context.Context, event *Event) (map[string]any, error) {
	invoice := event.Data.Invoice
	sub, err := h.subSvc.GetByExternalRef(ctx, invoice.SubscriptionRef)
	if err != nil {
		return nil, err
	}

	sub, err = h.subSvc.HandlePaymentFailed(ctx, sub.ID, event.CreatedAt)
	if err != nil {
		return nil, err
	}

	if _, err = h.billingSvc.Create(ctx, h.createParams(sub.ID, invoice)); err != nil {
		return nil, err
	}
	record, err := h.billingSvc.RecordFailedAttempt(ctx, invoice.ExternalInvoiceID, invoice.FailureReason, event.CreatedAt)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"subscription_id":   sub.ID,
		"status":            sub.Status,
		"billing_record_id": record.ID,
		"attempt_count":     record.AttemptCount,
	}, nil
}

func (h *Handler) createParams(subscriptionID string, invoice *InvoicePayload) billing.CreateParams {
	return billing.CreateParams{
		SubscriptionID:          subscriptionID,
		ExternalInvoiceID:       invoice.ExternalInvoiceID,
		ExternalPaymentIntentID: invoice.ExternalPaymentIntentID,
		AmountDueCents:          invoice.AmountDueCents,
		Currency:                invoice.Currency,
		BillingDate:             invoice.BillingDate,
		DueDate:                 invoice.DueDate,
		LineItems:               invoice.LineItems,
	}
}
