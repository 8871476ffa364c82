package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ticketwell/metering/pkg/types"
)

func TestComputeMRR_SpreadsAnnualOverTwelveMonths(t *testing.T) {
	lines := []RevenueLine{
		{Status: types.SubscriptionStatusActive, Interval: types.BillingIntervalMonthly, PriceCents: 2900},
		{Status: types.SubscriptionStatusActive, Interval: types.BillingIntervalAnnual, PriceCents: 29000},
	}
	require.InDelta(t, 2900+29000.0/12, ComputeMRR(lines), 1e-9)
}

func TestComputeMRR_CountsOnlyLiveStatuses(t *testing.T) {
	lines := []RevenueLine{
		{Status: types.SubscriptionStatusActive, Interval: types.BillingIntervalMonthly, PriceCents: 1000},
		{Status: types.SubscriptionStatusTrial, Interval: types.BillingIntervalMonthly, PriceCents: 1000},
		{Status: types.SubscriptionStatusPastDue, Interval: types.BillingIntervalMonthly, PriceCents: 1000},
		{Status: types.SubscriptionStatusCancelled, Interval: types.BillingIntervalMonthly, PriceCents: 1000},
		{Status: types.SubscriptionStatusSuspended, Interval: types.BillingIntervalMonthly, PriceCents: 1000},
	}
	require.InDelta(t, 2000, ComputeMRR(lines), 1e-9)
}

func TestSumMonthlyCents_IgnoresStatus(t *testing.T) {
	lines := []RevenueLine{
		{Status: types.SubscriptionStatusCancelled, Interval: types.BillingIntervalMonthly, PriceCents: 1000},
		{Status: types.SubscriptionStatusCancelled, Interval: types.BillingIntervalAnnual, PriceCents: 12000},
	}
	require.InDelta(t, 2000, SumMonthlyCents(lines), 1e-9)
}

func TestComputeChurnRate(t *testing.T) {
	require.InDelta(t, 0.2, ComputeChurnRate(5, 1), 1e-9)
	require.InDelta(t, 0, ComputeChurnRate(0, 3), 1e-9)
	require.InDelta(t, 1, ComputeChurnRate(4, 4), 1e-9)
}

func TestComputeConversionRate(t *testing.T) {
	require.InDelta(t, 0.25, ComputeConversionRate(8, 2), 1e-9)
	require.InDelta(t, 0, ComputeConversionRate(0, 0), 1e-9)
}

func TestComputeCLV(t *testing.T) {
	// ARPA 2000 cents, 10% monthly churn -> 10 month lifetime -> 20000 cents.
	require.InDelta(t, 10, ComputeLifetimeMonths(0.1), 1e-9)
	require.InDelta(t, 20000, ComputeCLV(2000, 0.1), 1e-9)
	// zero churn reads as zero, not infinity
	require.InDelta(t, 0, ComputeLifetimeMonths(0), 1e-9)
	require.InDelta(t, 0, ComputeCLV(2000, 0), 1e-9)
}

func TestCancelledDuring(t *testing.T) {
	start := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)

	inside := start.Add(24 * time.Hour)
	require.True(t, CancelledDuring(&inside, start, end))
	require.True(t, CancelledDuring(&start, start, end))
	require.False(t, CancelledDuring(&end, start, end))
	require.False(t, CancelledDuring(nil, start, end))
}
