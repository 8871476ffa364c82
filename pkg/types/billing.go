package types

type BillingStatus string

const (
	BillingStatusDraft         BillingStatus = "draft"
	BillingStatusOpen          BillingStatus = "open"
	BillingStatusPaid          BillingStatus = "paid"
	BillingStatusVoid          BillingStatus = "void"
	BillingStatusUncollectible BillingStatus = "uncollectible"
)

// Terminal reports whether a billing record can no longer change status.
// Uncollectible is not terminal: a late payment may still land.
func (s BillingStatus) Terminal() bool {
	return s == BillingStatusPaid || s == BillingStatusVoid
}

type BillingEventType string

const (
	BillingEventSubscriptionCreated BillingEventType = "subscription.created"
	BillingEventSubscriptionUpdated BillingEventType = "subscription.updated"
	BillingEventSubscriptionDeleted BillingEventType = "subscription.deleted"
	BillingEventInvoicePaid         BillingEventType = "invoice.paid"
	BillingEventInvoiceFailed       BillingEventType = "invoice.payment_failed"
)

func (t BillingEventType) Valid() bool {
	switch t {
	case BillingEventSubscriptionCreated, BillingEventSubscriptionUpdated,
		BillingEventSubscriptionDeleted, BillingEventInvoicePaid, BillingEventInvoiceFailed:
		return true
	}
	return false
}

// LineItem is a fixed-shape invoice line with an open extension map for
// provider-specific fields.
type LineItem struct {
	Description string            `json:"description"`
	Quantity    int64             `json:"quantity"`
	AmountCents int64             `json:"amount_cents"`
	Extra       map[string]string `json:"extra,omitempty"`
}
