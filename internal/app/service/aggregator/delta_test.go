package aggregator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ticketwell/metering/internal/models"
	"github.com/ticketwell/metering/pkg/types"
)

func TestDeltaFor(t *testing.T) {
	cases := []struct {
		name     string
		action   types.TicketAction
		previous types.TicketStatus
		next     types.TicketStatus
		want     types.UsageCounts
	}{
		{
			name:   "fresh create",
			action: types.TicketActionCreated,
			next:   types.TicketStatusOpen,
			want:   types.UsageCounts{Active: 1, Total: 1},
		},
		{
			name:     "reopen after completion counts active but not total",
			action:   types.TicketActionCreated,
			previous: types.TicketStatusCompleted,
			next:     types.TicketStatusOpen,
			want:     types.UsageCounts{Active: 1},
		},
		{
			name:     "complete an active ticket",
			action:   types.TicketActionCompleted,
			previous: types.TicketStatusInProgress,
			next:     types.TicketStatusCompleted,
			want:     types.UsageCounts{Active: -1, Completed: 1},
		},
		{
			name:     "complete replay from terminal state leaves active alone",
			action:   types.TicketActionCompleted,
			previous: types.TicketStatusCompleted,
			next:     types.TicketStatusCompleted,
			want:     types.UsageCounts{Completed: 1},
		},
		{
			name:     "archive an open ticket",
			action:   types.TicketActionArchived,
			previous: types.TicketStatusOpen,
			next:     types.TicketStatusArchived,
			want:     types.UsageCounts{Active: -1, Archived: 1},
		},
		{
			name:     "archive a completed ticket",
			action:   types.TicketActionArchived,
			previous: types.TicketStatusCompleted,
			next:     types.TicketStatusArchived,
			want:     types.UsageCounts{Archived: 1},
		},
		{
			name:     "delete an active ticket",
			action:   types.TicketActionDeleted,
			previous: types.TicketStatusPending,
			next:     types.TicketStatusDeleted,
			want:     types.UsageCounts{Active: -1},
		},
		{
			name:     "delete an archived ticket",
			action:   types.TicketActionDeleted,
			previous: types.TicketStatusArchived,
			next:     types.TicketStatusDeleted,
			want:     types.UsageCounts{},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, DeltaFor(tc.action, tc.previous, tc.next))
		})
	}
}

func event(ticket string, action types.TicketAction, prev, next types.TicketStatus, at time.Time) *models.UsageEvent {
	return &models.UsageEvent{
		TicketID:       ticket,
		Action:         action,
		PreviousStatus: prev,
		NewStatus:      next,
		OccurredAt:     at,
	}
}

func TestFoldEvents_FullLifecycle(t *testing.T) {
	t0 := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	events := []*models.UsageEvent{
		event("t1", types.TicketActionCreated, "", types.TicketStatusOpen, t0),
		event("t2", types.TicketActionCreated, "", types.TicketStatusOpen, t0.Add(time.Minute)),
		event("t1", types.TicketActionCompleted, types.TicketStatusOpen, types.TicketStatusCompleted, t0.Add(2*time.Minute)),
		event("t1", types.TicketActionArchived, types.TicketStatusCompleted, types.TicketStatusArchived, t0.Add(3*time.Minute)),
		event("t2", types.TicketActionDeleted, types.TicketStatusOpen, types.TicketStatusDeleted, t0.Add(4*time.Minute)),
	}

	counts := FoldEvents(events)
	require.Equal(t, types.UsageCounts{Active: 0, Completed: 1, Total: 2, Archived: 1}, counts)
}

func TestFoldEvents_TrustsTrackedStateOverReportedPrevious(t *testing.T) {
	t0 := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	// The second event misreports the previous status as open; the fold has
	// already seen t1 complete and must not decrement active twice.
	events := []*models.UsageEvent{
		event("t1", types.TicketActionCreated, "", types.TicketStatusOpen, t0),
		event("t1", types.TicketActionCompleted, types.TicketStatusOpen, types.TicketStatusCompleted, t0.Add(time.Minute)),
		event("t1", types.TicketActionCompleted, types.TicketStatusOpen, types.TicketStatusCompleted, t0.Add(2*time.Minute)),
	}

	counts := FoldEvents(events)
	require.Equal(t, types.UsageCounts{Active: 0, Completed: 2, Total: 1}, counts)
}

func TestFoldEvents_MatchesIncrementalDeltas(t *testing.T) {
	// The cached summary applies DeltaFor per event as it arrives; the
	// recompute folds the same events. With consistent previous statuses the
	// two must agree, otherwise every reconcile pass would report drift.
	t0 := time.Date(2026, 9, 3, 8, 0, 0, 0, time.UTC)
	events := []*models.UsageEvent{
		event("a", types.TicketActionCreated, "", types.TicketStatusOpen, t0),
		event("b", types.TicketActionCreated, "", types.TicketStatusPending, t0.Add(time.Minute)),
		event("a", types.TicketActionCompleted, types.TicketStatusOpen, types.TicketStatusCompleted, t0.Add(2*time.Minute)),
		event("a", types.TicketActionCreated, types.TicketStatusCompleted, types.TicketStatusOpen, t0.Add(3*time.Minute)),
		event("b", types.TicketActionArchived, types.TicketStatusPending, types.TicketStatusArchived, t0.Add(4*time.Minute)),
		event("a", types.TicketActionDeleted, types.TicketStatusOpen, types.TicketStatusDeleted, t0.Add(5*time.Minute)),
	}

	var incremental types.UsageCounts
	for _, ev := range events {
		incremental = incremental.Add(DeltaFor(ev.Action, ev.PreviousStatus, ev.NewStatus))
	}
	require.Equal(t, incremental, FoldEvents(events))
}

func TestPercentages(t *testing.T) {
	limit := func(v int64) *int64 { return &v }

	counts := types.UsageCounts{Active: 50, Completed: 200, Total: 99}
	limits := types.TicketLimits{Active: limit(100), Completed: limit(100), Total: limit(100)}

	p := Percentages(counts, limits)
	require.Equal(t, int64(50), p.Active)
	// capped at 100
	require.Equal(t, int64(100), p.Completed)
	require.Equal(t, int64(99), p.Total)

	// nil limit means unlimited and reads as 0%
	p = Percentages(counts, types.TicketLimits{})
	require.Equal(t, int64(0), p.Active)
	require.Equal(t, int64(0), p.Completed)
	require.Equal(t, int64(0), p.Total)
}
