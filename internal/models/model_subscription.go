package models

import (
	"time"

	"gorm.io/datatypes"

	"github.com/ticketwell/metering/pkg/types"
)

// Subscription is the per-customer subscription state machine. At most one
// subscription per customer may be live (trial or active) at a time; the
// partial unique index below backs the service-level check.
type Subscription struct {
	ID         string `gorm:"column:id;type:uuid;primary_key" json:"id"`
	CustomerID string `gorm:"column:customer_id;type:varchar(64);not null;index;uniqueIndex:udx_customer_live,where:status IN ('trial','active')" json:"customer_id"`
	// PlanID is nil for fully custom-priced subscriptions.
	PlanID *string                  `gorm:"column:plan_id;type:varchar(64)" json:"plan_id"`
	Status types.SubscriptionStatus `gorm:"column:status;type:varchar(32);not null" json:"status"`
	// ExternalRef is the payment provider's subscription identifier.
	ExternalRef        *string   `gorm:"column:external_ref;type:varchar(128);uniqueIndex" json:"external_ref"`
	CurrentPeriodStart time.Time `gorm:"column:current_period_start;not null" json:"current_period_start"`
	CurrentPeriodEnd   time.Time `gorm:"column:current_period_end;not null" json:"current_period_end"`
	TrialStart         *time.Time `gorm:"column:trial_start" json:"trial_start"`
	TrialEnd           *time.Time `gorm:"column:trial_end" json:"trial_end"`
	CancelAtPeriodEnd  bool       `gorm:"column:cancel_at_period_end;not null;default:false" json:"cancel_at_period_end"`
	// CustomLimits overrides the plan's limits when present.
	CustomLimits     datatypes.JSONType[*types.LimitOverride] `gorm:"column:custom_limits;type:jsonb;default:'null'" json:"custom_limits"`
	CustomPriceCents *int64                                   `gorm:"column:custom_price_cents" json:"custom_price_cents"`
	// ActivatedAt is the first transition into active, kept for conversion
	// and lifetime analytics.
	ActivatedAt *time.Time `gorm:"column:activated_at" json:"activated_at"`
	CancelledAt *time.Time `gorm:"column:cancelled_at" json:"cancelled_at"`
	// LastEventAt orders billing events; events at or before it are stale.
	LastEventAt *time.Time `gorm:"column:last_event_at" json:"last_event_at"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func (Subscription) TableName() string {
	return "subscription"
}

// OverrideLimits returns the custom limit override, or nil when the plan's
// limits apply.
func (s *Subscription) OverrideLimits() *types.LimitOverride {
	if s == nil {
		return nil
	}
	return s.CustomLimits.Data()
}

func (s *Subscription) Live() bool {
	return s != nil && s.Status.Live()
}
