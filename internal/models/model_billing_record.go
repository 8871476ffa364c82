package models

import (
	"time"

	"gorm.io/datatypes"

	"github.com/ticketwell/metering/pkg/types"
)

// BillingRecord mirrors the payment provider's invoice lifecycle for a
// subscription. Uniqueness by external invoice id is the idempotency anchor
// for at-least-once webhook delivery.
type BillingRecord struct {
	ID                string `gorm:"column:id;type:uuid;primary_key" json:"id"`
	SubscriptionID    string `gorm:"column:subscription_id;type:uuid;not null;index" json:"subscription_id"`
	ExternalInvoiceID string `gorm:"column:external_invoice_id;type:varchar(128);not null;uniqueIndex" json:"external_invoice_id"`
	// ExternalPaymentIntentID is set once the provider attaches a payment.
	ExternalPaymentIntentID *string             `gorm:"column:external_payment_intent_id;type:varchar(128)" json:"external_payment_intent_id"`
	Status                  types.BillingStatus `gorm:"column:status;type:varchar(32);not null" json:"status"`
	AmountDueCents          int64               `gorm:"column:amount_due_cents;type:bigint;not null" json:"amount_due_cents"`
	AmountPaidCents         int64               `gorm:"column:amount_paid_cents;type:bigint;not null;default:0" json:"amount_paid_cents"`
	// AmountRemainingCents is recomputed on every paid-amount change and
	// forced to zero on void/uncollectible.
	AmountRemainingCents int64      `gorm:"column:amount_remaining_cents;type:bigint;not null" json:"amount_remaining_cents"`
	Currency             string     `gorm:"column:currency;type:varchar(8);not null" json:"currency"`
	BillingDate          time.Time  `gorm:"column:billing_date;not null" json:"billing_date"`
	DueDate              *time.Time `gorm:"column:due_date" json:"due_date"`
	PaidAt               *time.Time `gorm:"column:paid_at" json:"paid_at"`
	VoidedAt             *time.Time `gorm:"column:voided_at" json:"voided_at"`
	// AttemptCount increments on each failed payment attempt, independent of
	// status.
	AttemptCount      int64                               `gorm:"column:attempt_count;not null;default:0" json:"attempt_count"`
	LastFailureReason *string                             `gorm:"column:last_failure_reason;type:varchar(255)" json:"last_failure_reason"`
	LineItems         datatypes.JSONType[[]types.LineItem] `gorm:"column:line_items;type:jsonb;default:'[]'" json:"line_items"`
	Metadata          datatypes.JSONMap                   `gorm:"column:metadata;type:jsonb;default:'{}'" json:"metadata"`
	CreatedAt         time.Time                           `json:"created_at"`
	UpdatedAt         time.Time                           `json:"updated_at"`
}

func (BillingRecord) TableName() string {
	return "billing_record"
}
