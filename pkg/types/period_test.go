package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPeriodOf_UsesUTC(t *testing.T) {
	// 2026-03-01 00:30 +02:00 is still February in UTC.
	loc := time.FixedZone("EET", 2*60*60)
	ts := time.Date(2026, 3, 1, 0, 30, 0, 0, loc)
	require.Equal(t, PeriodKey("2026-02"), PeriodOf(ts))
}

func TestParsePeriod(t *testing.T) {
	p, err := ParsePeriod("2026-09")
	require.NoError(t, err)
	require.Equal(t, PeriodKey("2026-09"), p)

	_, err = ParsePeriod("2026-13")
	require.Error(t, err)
	_, err = ParsePeriod("september")
	require.Error(t, err)
}

func TestPeriodBounds_HalfOpen(t *testing.T) {
	start, end, err := PeriodKey("2026-01").Bounds()
	require.NoError(t, err)
	require.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), start)
	require.Equal(t, time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC), end)

	// December rolls into the next year.
	start, end, err = PeriodKey("2026-12").Bounds()
	require.NoError(t, err)
	require.Equal(t, time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC), start)
	require.Equal(t, time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC), end)
}

func TestPeriodPrev(t *testing.T) {
	prev, err := PeriodKey("2026-01").Prev()
	require.NoError(t, err)
	require.Equal(t, PeriodKey("2025-12"), prev)

	_, err = PeriodKey("bogus").Prev()
	require.Error(t, err)
}

func TestTicketStatus_Terminal(t *testing.T) {
	require.True(t, TicketStatusCompleted.Terminal())
	require.True(t, TicketStatusArchived.Terminal())
	require.True(t, TicketStatusDeleted.Terminal())
	require.True(t, TicketStatus("").Terminal())

	require.False(t, TicketStatusOpen.Terminal())
	require.False(t, TicketStatusPending.Terminal())
	require.False(t, TicketStatusInProgress.Terminal())
}

func TestBillingStatus_Terminal(t *testing.T) {
	require.True(t, BillingStatusPaid.Terminal())
	require.True(t, BillingStatusVoid.Terminal())
	// A late payment may still land on an uncollectible invoice.
	require.False(t, BillingStatusUncollectible.Terminal())
	require.False(t, BillingStatusOpen.Terminal())
	require.False(t, BillingStatusDraft.Terminal())
}

func TestBillingInterval_MonthlyPriceCents(t *testing.T) {
	require.Equal(t, float64(2900), BillingIntervalMonthly.MonthlyPriceCents(2900))
	require.InDelta(t, 29000.0/12, BillingIntervalAnnual.MonthlyPriceCents(29000), 1e-9)
}
