package aggregator

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/ticketwell/metering/internal/models"
	"github.com/ticketwell/metering/pkg/config"
	"github.com/ticketwell/metering/pkg/tool"
	"github.com/ticketwell/metering/pkg/types"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.UsageEvent{}, &models.UsageSummary{}))

	cfg := &config.Config{Aggregator: config.AggregatorConfig{DriftTolerance: 0}}
	return NewService(cfg, db, zap.NewNop().Sugar())
}

func insertEvent(t *testing.T, db *gorm.DB, subID, ticketID string, action types.TicketAction, prev, next types.TicketStatus, at time.Time) {
	t.Helper()
	ev := &models.UsageEvent{
		ID:             tool.GenerateUUIDV7(),
		SubscriptionID: subID,
		TicketID:       ticketID,
		Action:         action,
		PreviousStatus: prev,
		NewStatus:      next,
		OccurredAt:     at,
		Period:         types.PeriodOf(at).String(),
		DedupKey:       models.UsageEventDedupKey(subID, ticketID, action, at),
	}
	require.NoError(t, db.Create(ev).Error)
}

func TestApplyDelta_CreatesRowOnFirstEvent(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	period := types.PeriodKey("2026-09")

	err := svc.ApplyDelta(ctx, "sub-1", period, types.UsageCounts{Active: 1, Total: 1})
	require.NoError(t, err)

	counts, err := svc.GetUsage(ctx, "sub-1", period)
	require.NoError(t, err)
	require.Equal(t, types.UsageCounts{Active: 1, Total: 1}, counts)

	err = svc.ApplyDelta(ctx, "sub-1", period, types.UsageCounts{Active: -1, Completed: 1})
	require.NoError(t, err)

	counts, err = svc.GetUsage(ctx, "sub-1", period)
	require.NoError(t, err)
	require.Equal(t, types.UsageCounts{Active: 0, Completed: 1, Total: 1}, counts)
}

// A failed first-event delta leaves ledger rows with no summary row at all;
// reconciliation must create the row, not just update an absent one.
func TestReconcile_CreatesMissingSummaryRow(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	base := time.Date(2026, 9, 10, 12, 0, 0, 0, time.UTC)
	period := types.PeriodOf(base)

	insertEvent(t, svc.db, "sub-1", "t-1", types.TicketActionCreated, "", types.TicketStatusOpen, base)
	insertEvent(t, svc.db, "sub-1", "t-2", types.TicketActionCreated, "", types.TicketStatusOpen, base.Add(time.Minute))
	insertEvent(t, svc.db, "sub-1", "t-1", types.TicketActionCompleted, types.TicketStatusOpen, types.TicketStatusCompleted, base.Add(2*time.Minute))

	res, err := svc.Reconcile(ctx, "sub-1", period)
	require.NoError(t, err)
	require.True(t, res.Drifted)
	require.Equal(t, types.UsageCounts{}, res.Cached)
	require.Equal(t, types.UsageCounts{Active: 1, Completed: 1, Total: 2}, res.Recomputed)

	counts, err := svc.GetUsage(ctx, "sub-1", period)
	require.NoError(t, err)
	require.Equal(t, res.Recomputed, counts)
}

func TestReconcile_OverwritesDriftedRow(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	base := time.Date(2026, 9, 10, 12, 0, 0, 0, time.UTC)
	period := types.PeriodOf(base)

	insertEvent(t, svc.db, "sub-1", "t-1", types.TicketActionCreated, "", types.TicketStatusOpen, base)

	// seed a summary that lost an event
	require.NoError(t, svc.ApplyDelta(ctx, "sub-1", period, types.UsageCounts{Active: 3, Total: 3}))

	res, err := svc.Reconcile(ctx, "sub-1", period)
	require.NoError(t, err)
	require.True(t, res.Drifted)

	counts, err := svc.GetUsage(ctx, "sub-1", period)
	require.NoError(t, err)
	require.Equal(t, types.UsageCounts{Active: 1, Total: 1}, counts)
}

func TestReconcile_NoDriftIsANoOp(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	base := time.Date(2026, 9, 10, 12, 0, 0, 0, time.UTC)
	period := types.PeriodOf(base)

	insertEvent(t, svc.db, "sub-1", "t-1", types.TicketActionCreated, "", types.TicketStatusOpen, base)
	require.NoError(t, svc.ApplyDelta(ctx, "sub-1", period, types.UsageCounts{Active: 1, Total: 1}))

	res, err := svc.Reconcile(ctx, "sub-1", period)
	require.NoError(t, err)
	require.False(t, res.Drifted)
	require.Equal(t, res.Recomputed, res.Cached)
}
