package webhook

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ticketwell/metering/pkg/types"
)

func validSubscriptionEvent() *Event {
	return &Event{
		EventID:   "evt-1",
		Type:      types.BillingEventSubscriptionCreated,
		CreatedAt: time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC),
		Data: EventData{Subscription: &SubscriptionPayload{
			ExternalRef: "sub_ext_1",
			CustomerID:  "cust-1",
		}},
	}
}

func TestEventValidate_Subscription(t *testing.T) {
	require.NoError(t, validSubscriptionEvent().Validate())

	e := validSubscriptionEvent()
	e.Data.Subscription = nil
	require.Error(t, e.Validate())

	e = validSubscriptionEvent()
	e.Data.Subscription.ExternalRef = ""
	require.Error(t, e.Validate())

	e = validSubscriptionEvent()
	e.EventID = ""
	require.Error(t, e.Validate())

	e = validSubscriptionEvent()
	e.Type = "invoice.refunded"
	require.Error(t, e.Validate())

	e = validSubscriptionEvent()
	e.CreatedAt = time.Time{}
	require.Error(t, e.Validate())
}

func TestEventValidate_Invoice(t *testing.T) {
	e := &Event{
		EventID:   "evt-2",
		Type:      types.BillingEventInvoicePaid,
		CreatedAt: time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC),
		Data: EventData{Invoice: &InvoicePayload{
			ExternalInvoiceID: "in_1",
			SubscriptionRef:   "sub_ext_1",
		}},
	}
	require.NoError(t, e.Validate())

	e.Data.Invoice.SubscriptionRef = ""
	require.Error(t, e.Validate())

	e.Data.Invoice = nil
	require.Error(t, e.Validate())
}

func TestEventSubscriptionRef(t *testing.T) {
	e := validSubscriptionEvent()
	require.Equal(t, "sub_ext_1", e.SubscriptionRef())

	e = &Event{Data: EventData{Invoice: &InvoicePayload{SubscriptionRef: "sub_ext_2"}}}
	require.Equal(t, "sub_ext_2", e.SubscriptionRef())

	require.Empty(t, (&Event{}).SubscriptionRef())
}
