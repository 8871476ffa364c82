package entitlement

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ticketwell/metering/internal/app/service/aggregator"
	"github.com/ticketwell/metering/internal/app/service/ledger"
	"github.com/ticketwell/metering/internal/app/service/subscription"
	"github.com/ticketwell/metering/internal/models"
	"github.com/ticketwell/metering/pkg/config"
	"github.com/ticketwell/metering/pkg/types"
)

func limit(v int64) *int64 { return &v }

func TestDecide_CreateBoundary(t *testing.T) {
	limits := types.TicketLimits{Active: limit(100)}

	d := Decide(types.GateActionCreate, types.SubscriptionStatusActive,
		types.UsageCounts{Active: 99}, limits, 80)
	require.True(t, d.Allowed)
	require.True(t, d.WarnThresholdHit)
	require.Equal(t, int64(99), d.UsedPercent)

	// equality with the limit denies
	d = Decide(types.GateActionCreate, types.SubscriptionStatusActive,
		types.UsageCounts{Active: 100}, limits, 80)
	require.False(t, d.Allowed)
	require.Equal(t, "active_limit_reached", d.Reason)
	require.Equal(t, types.LimitTypeActive, d.LimitType)
}

func TestDecide_TotalLimitBacksUpActive(t *testing.T) {
	limits := types.TicketLimits{Active: limit(100), Total: limit(10)}
	d := Decide(types.GateActionCreate, types.SubscriptionStatusActive,
		types.UsageCounts{Active: 2, Total: 10}, limits, 0)
	require.False(t, d.Allowed)
	require.Equal(t, types.LimitTypeTotal, d.LimitType)
}

func TestDecide_CompleteBoundary(t *testing.T) {
	limits := types.TicketLimits{Completed: limit(50)}

	d := Decide(types.GateActionComplete, types.SubscriptionStatusActive,
		types.UsageCounts{Completed: 49}, limits, 80)
	require.True(t, d.Allowed)

	d = Decide(types.GateActionComplete, types.SubscriptionStatusActive,
		types.UsageCounts{Completed: 50}, limits, 80)
	require.False(t, d.Allowed)
	require.Equal(t, "completed_limit_reached", d.Reason)
}

func TestDecide_NilLimitIsUnlimited(t *testing.T) {
	d := Decide(types.GateActionCreate, types.SubscriptionStatusActive,
		types.UsageCounts{Active: 1 << 40}, types.TicketLimits{}, 80)
	require.True(t, d.Allowed)
	require.False(t, d.WarnThresholdHit)
}

func TestDecide_StatusGating(t *testing.T) {
	limits := types.TicketLimits{Active: limit(100)}

	d := Decide(types.GateActionCreate, types.SubscriptionStatusCancelled, types.UsageCounts{}, limits, 80)
	require.False(t, d.Allowed)
	require.Equal(t, "subscription_cancelled", d.Reason)

	d = Decide(types.GateActionCreate, types.SubscriptionStatusSuspended, types.UsageCounts{}, limits, 80)
	require.False(t, d.Allowed)
	require.Equal(t, "subscription_suspended", d.Reason)

	// past_due keeps limit-based admission
	d = Decide(types.GateActionCreate, types.SubscriptionStatusPastDue, types.UsageCounts{Active: 1}, limits, 80)
	require.True(t, d.Allowed)

	d = Decide(types.GateActionCreate, types.SubscriptionStatusTrial, types.UsageCounts{}, limits, 80)
	require.True(t, d.Allowed)
}

func TestDecide_WarnThreshold(t *testing.T) {
	limits := types.TicketLimits{Active: limit(10)}

	d := Decide(types.GateActionCreate, types.SubscriptionStatusActive,
		types.UsageCounts{Active: 7}, limits, 80)
	require.True(t, d.Allowed)
	require.False(t, d.WarnThresholdHit)

	d = Decide(types.GateActionCreate, types.SubscriptionStatusActive,
		types.UsageCounts{Active: 8}, limits, 80)
	require.True(t, d.Allowed)
	require.True(t, d.WarnThresholdHit)
	require.Equal(t, int64(80), d.UsedPercent)
}

// fakeStore backs the gate with in-memory state so admission behavior can be
// exercised without a database.
type fakeStore struct {
	mu     sync.Mutex
	status types.SubscriptionStatus
	limits types.TicketLimits
	counts types.UsageCounts
	events []*models.UsageEvent
}

func (f *fakeStore) ResolveEntitlements(_ context.Context, subscriptionID string) (*subscription.Entitlements, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &subscription.Entitlements{SubscriptionID: subscriptionID, Status: f.status, Limits: f.limits}, nil
}

func (f *fakeStore) GetUsage(_ context.Context, _ string, _ types.PeriodKey) (types.UsageCounts, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.counts, nil
}

func (f *fakeStore) Record(_ context.Context, p ledger.RecordParams) (*models.UsageEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ev := &models.UsageEvent{
		ID:             fmt.Sprintf("ev-%d", len(f.events)+1),
		SubscriptionID: p.SubscriptionID,
		TicketID:       p.TicketID,
		Action:         p.Action,
		OccurredAt:     p.OccurredAt,
	}
	f.events = append(f.events, ev)
	f.counts = f.counts.Add(aggregator.DeltaFor(p.Action, p.PreviousStatus, p.NewStatus))
	return ev, nil
}

func gateConfig(strict bool) *config.Config {
	return &config.Config{
		Entitlement: config.EntitlementConfig{Strict: strict, WarnThresholdPercent: 80},
	}
}

func TestRecordAdmitted_DeniedRecordsNothing(t *testing.T) {
	store := &fakeStore{
		status: types.SubscriptionStatusActive,
		limits: types.TicketLimits{Active: limit(1)},
		counts: types.UsageCounts{Active: 1},
	}
	gate := NewWithStores(gateConfig(false), store, store, store, zap.NewNop().Sugar())

	d, ev, err := gate.RecordAdmitted(context.Background(), ledger.RecordParams{
		SubscriptionID: "sub-1",
		TicketID:       "t-1",
		Action:         types.TicketActionCreated,
		NewStatus:      types.TicketStatusOpen,
		OccurredAt:     time.Date(2026, 9, 10, 12, 0, 0, 0, time.UTC),
	}, types.GateActionCreate)

	require.NoError(t, err)
	require.False(t, d.Allowed)
	require.Nil(t, ev)
	require.Empty(t, store.events)
}

func TestRecordAdmitted_StrictModeNeverOvershoots(t *testing.T) {
	const racers = 20
	const capacity = 5

	store := &fakeStore{
		status: types.SubscriptionStatusActive,
		limits: types.TicketLimits{Active: limit(capacity)},
	}
	gate := NewWithStores(gateConfig(true), store, store, store, zap.NewNop().Sugar())

	var wg sync.WaitGroup
	var admitted int64
	var mu sync.Mutex
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			d, _, err := gate.RecordAdmitted(context.Background(), ledger.RecordParams{
				SubscriptionID: "sub-1",
				TicketID:       fmt.Sprintf("t-%d", n),
				Action:         types.TicketActionCreated,
				NewStatus:      types.TicketStatusOpen,
				OccurredAt:     time.Date(2026, 9, 10, 12, 0, 0, 0, time.UTC).Add(time.Duration(n) * time.Minute),
			}, types.GateActionCreate)
			require.NoError(t, err)
			if d.Allowed {
				mu.Lock()
				admitted++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	require.Equal(t, int64(capacity), admitted)
	require.Len(t, store.events, capacity)
	require.Equal(t, int64(capacity), store.counts.Active)
}
