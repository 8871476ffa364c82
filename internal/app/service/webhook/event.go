package webhook

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/ticketwell/metering/pkg/types"
)

// Event is the provider's webhook envelope. The provider delivers at least
// once; EventID plus the idempotent handlers downstream make replays safe.
type Event struct {
	EventID   string                 `json:"event_id" binding:"required"`
	Type      types.BillingEventType `json:"type" binding:"required"`
	CreatedAt time.Time              `json:"created_at" binding:"required"`
	Data      EventData              `json:"data"`
}

type EventData struct {
	Subscription *SubscriptionPayload `json:"subscription,omitempty"`
	Invoice      *InvoicePayload      `json:"invoice,omitempty"`
}

// SubscriptionPayload carries the provider's view of a subscription. The
// external ref is the join key into our subscription table.
type SubscriptionPayload struct {
	ExternalRef        string     `json:"external_ref"`
	CustomerID         string     `json:"customer_id"`
	PlanID             *string    `json:"plan_id"`
	CurrentPeriodStart time.Time  `json:"current_period_start"`
	CurrentPeriodEnd   time.Time  `json:"current_period_end"`
	TrialStart         *time.Time `json:"trial_start,omitempty"`
	TrialEnd           *time.Time `json:"trial_end,omitempty"`
	CancelAtPeriodEnd  bool       `json:"cancel_at_period_end"`
}

type InvoicePayload struct {
	ExternalInvoiceID       string           `json:"external_invoice_id"`
	ExternalPaymentIntentID *string          `json:"external_payment_intent_id,omitempty"`
	SubscriptionRef         string           `json:"subscription_ref"`
	AmountDueCents          int64            `json:"amount_due_cents"`
	AmountPaidCents         int64            `json:"amount_paid_cents"`
	Currency                string           `json:"currency"`
	BillingDate             time.Time        `json:"billing_date"`
	DueDate                 *time.Time       `json:"due_date,omitempty"`
	PeriodStart             time.Time        `json:"period_start"`
	PeriodEnd               time.Time        `json:"period_end"`
	FailureReason           string           `json:"failure_reason,omitempty"`
	LineItems               []types.LineItem `json:"line_items,omitempty"`
}

func (e *Event) Validate() error {
	if e.EventID == "" {
		return fmt.Errorf("event_id is required")
	}
	if !e.Type.Valid() {
		return fmt.Errorf("unsupported event type: %s", e.Type)
	}
	if e.CreatedAt.IsZero() {
		return fmt.Errorf("created_at is required")
	}
	switch e.Type {
	case types.BillingEventSubscriptionCreated, types.BillingEventSubscriptionUpdated, types.BillingEventSubscriptionDeleted:
		if e.Data.Subscription == nil || e.Data.Subscription.ExternalRef == "" {
			return fmt.Errorf("%s requires data.subscription.external_ref", e.Type)
		}
	case types.BillingEventInvoicePaid, types.BillingEventInvoiceFailed:
		if e.Data.Invoice == nil || e.Data.Invoice.ExternalInvoiceID == "" || e.Data.Invoice.SubscriptionRef == "" {
			return fmt.Errorf("%s requires data.invoice with external_invoice_id and subscription_ref", e.Type)
		}
	}
	return nil
}

// SubscriptionRef returns the external subscription reference the event is
// about, empty when the payload carries none.
func (e *Event) SubscriptionRef() string {
	switch {
	case e.Data.Subscription != nil:
		return e.Data.Subscription.ExternalRef
	case e.Data.Invoice != nil:
		return e.Data.Invoice.SubscriptionRef
	}
	return ""
}

func (e *Event) rawData() []byte {
	b, _ := json.Marshal(e.Data)
	return b
}
