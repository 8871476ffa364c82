package analytics

import (
	"time"

	"github.com/ticketwell/metering/pkg/types"
)

// RevenueLine is one subscription's contribution to recurring revenue.
type RevenueLine struct {
	Status     types.SubscriptionStatus `json:"status"`
	Interval   types.BillingInterval    `json:"interval"`
	PriceCents int64                    `json:"price_cents"`
}

// ComputeMRR sums normalized monthly revenue across subscriptions that count
// toward recurring revenue. Active and trial subscriptions count; cancelled,
// suspended and past_due do not. Annual prices are spread over twelve months.
func ComputeMRR(lines []RevenueLine) float64 {
	var mrr float64
	for _, line := range lines {
		switch line.Status {
		case types.SubscriptionStatusActive, types.SubscriptionStatusTrial:
			mrr += line.Interval.MonthlyPriceCents(line.PriceCents)
		}
	}
	return mrr
}

// SumMonthlyCents normalizes and sums every line regardless of status. Used
// for churned-MRR, where the lines are already cancelled by construction.
func SumMonthlyCents(lines []RevenueLine) float64 {
	var sum float64
	for _, line := range lines {
		sum += line.Interval.MonthlyPriceCents(line.PriceCents)
	}
	return sum
}

// ComputeChurnRate is the fraction of subscriptions live at period start that
// cancelled during the period. Zero live at start yields zero, not NaN.
func ComputeChurnRate(liveAtStart, cancelledDuring int64) float64 {
	if liveAtStart <= 0 {
		return 0
	}
	return float64(cancelledDuring) / float64(liveAtStart)
}

// ComputeConversionRate is the fraction of trials started in a period that
// later converted to active.
func ComputeConversionRate(trialsStarted, trialsConverted int64) float64 {
	if trialsStarted <= 0 {
		return 0
	}
	return float64(trialsConverted) / float64(trialsStarted)
}

// ComputeLifetimeMonths estimates average subscription lifetime from the
// monthly churn rate. Zero churn means no observed lifetime bound, reported
// as zero rather than infinity.
func ComputeLifetimeMonths(churnRate float64) float64 {
	if churnRate <= 0 {
		return 0
	}
	return 1 / churnRate
}

// ComputeCLV estimates customer lifetime value as average monthly revenue per
// account times the estimated lifetime in months.
func ComputeCLV(averageMonthlyRevenueCents, churnRate float64) float64 {
	return averageMonthlyRevenueCents * ComputeLifetimeMonths(churnRate)
}

// CancelledDuring reports whether a cancellation timestamp falls inside the
// half-open period window.
func CancelledDuring(cancelledAt *time.Time, start, end time.Time) bool {
	if cancelledAt == nil {
		return false
	}
	return !cancelledAt.Before(start) && cancelledAt.Before(end)
}
