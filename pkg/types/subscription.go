package types

type SubscriptionStatus string

const (
	SubscriptionStatusTrial     SubscriptionStatus = "trial"
	SubscriptionStatusActive    SubscriptionStatus = "active"
	SubscriptionStatusPastDue   SubscriptionStatus = "past_due"
	SubscriptionStatusCancelled SubscriptionStatus = "cancelled"
	SubscriptionStatusSuspended SubscriptionStatus = "suspended"
)

// Live reports whether the status counts against the one-live-subscription-
// per-customer rule.
func (s SubscriptionStatus) Live() bool {
	return s == SubscriptionStatusTrial || s == SubscriptionStatusActive
}

type SubscriptionChangeReason string

const (
	SubscriptionChangeReasonSignup        SubscriptionChangeReason = "signup"
	SubscriptionChangeReasonBillingEvent  SubscriptionChangeReason = "billing_event"
	SubscriptionChangeReasonPeriodRoll    SubscriptionChangeReason = "period_roll"
	SubscriptionChangeReasonCancel        SubscriptionChangeReason = "cancel"
	SubscriptionChangeReasonPlanChange    SubscriptionChangeReason = "plan_change"
	SubscriptionChangeReasonAdminGrant    SubscriptionChangeReason = "admin_grant"
	SubscriptionChangeReasonAdminSuspend  SubscriptionChangeReason = "admin_suspend"
	SubscriptionChangeReasonAdminResume   SubscriptionChangeReason = "admin_resume"
	SubscriptionChangeReasonTrialConvert  SubscriptionChangeReason = "trial_convert"
	SubscriptionChangeReasonPaymentFailed SubscriptionChangeReason = "payment_failed"
)

type BillingInterval string

const (
	BillingIntervalMonthly BillingInterval = "monthly"
	BillingIntervalAnnual  BillingInterval = "annual"
)

// MonthlyPriceCents normalizes a price to a monthly figure. Annual prices are
// divided by twelve; the result is fractional cents, so callers keep float64
// until the report edge.
func (i BillingInterval) MonthlyPriceCents(priceCents int64) float64 {
	if i == BillingIntervalAnnual {
		return float64(priceCents) / 12
	}
	return float64(priceCents)
}

// LimitOverride carries per-subscription limit overrides with the same shape
// as a plan's limits. A nil field means "no override for this limit".
type LimitOverride struct {
	ActiveTicketLimit    *int64 `json:"active_ticket_limit,omitempty"`
	CompletedTicketLimit *int64 `json:"completed_ticket_limit,omitempty"`
	TotalTicketLimit     *int64 `json:"total_ticket_limit,omitempty"`
}

// TicketLimits is the effective limit set the entitlement gate decides
// against. A nil limit means unlimited.
type TicketLimits struct {
	Active    *int64 `json:"active"`
	Completed *int64 `json:"completed"`
	Total     *int64 `json:"total"`
}
