package aggregator

import (
	"github.com/ticketwell/metering/internal/models"
	"github.com/ticketwell/metering/pkg/types"
)

// DeltaFor derives the summary counter delta for a single lifecycle event.
//
// Active tickets are counted by transition, not by raw action tally: an event
// only decrements the active count when it actually moves the ticket out of a
// non-terminal status, so a ticket cycling through statuses several times in
// one period nets out correctly. A created event whose previous status is
// terminal is a reopen and does not touch the total count again.
func DeltaFor(action types.TicketAction, previous, next types.TicketStatus) types.UsageCounts {
	var d types.UsageCounts
	switch action {
	case types.TicketActionCreated:
		if previous == "" {
			d.Total++
		}
		if !next.Terminal() {
			d.Active++
		}
	case types.TicketActionCompleted:
		d.Completed++
		if !previous.Terminal() {
			d.Active--
		}
	case types.TicketActionArchived:
		d.Archived++
		if !previous.Terminal() {
			d.Active--
		}
	case types.TicketActionDeleted:
		if !previous.Terminal() {
			d.Active--
		}
	}
	return d
}

// FoldEvents replays ledger rows in order and sums their deltas, tracking
// each ticket's current status so repeats within the slice use the tracked
// state rather than the caller-reported previous status. This is the
// authoritative recompute the cached summary must agree with.
func FoldEvents(events []*models.UsageEvent) types.UsageCounts {
	state := make(map[string]types.TicketStatus, len(events))
	var counts types.UsageCounts
	for _, ev := range events {
		prev := ev.PreviousStatus
		if seen, ok := state[ev.TicketID]; ok {
			prev = seen
		}
		counts = counts.Add(DeltaFor(ev.Action, prev, ev.NewStatus))
		state[ev.TicketID] = ev.NewStatus
	}
	return counts
}
