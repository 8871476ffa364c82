package subscription

import (
	"github.com/ticketwell/metering/pkg/types"
)

// allowedTransitions is the subscription status machine. Cancelled is
// terminal; the record survives for analytics but never transitions again.
var allowedTransitions = map[types.SubscriptionStatus][]types.SubscriptionStatus{
	types.SubscriptionStatusTrial: {
		types.SubscriptionStatusActive,
		types.SubscriptionStatusPastDue,
		types.SubscriptionStatusCancelled,
		types.SubscriptionStatusSuspended,
	},
	types.SubscriptionStatusActive: {
		types.SubscriptionStatusPastDue,
		types.SubscriptionStatusCancelled,
		types.SubscriptionStatusSuspended,
	},
	types.SubscriptionStatusPastDue: {
		types.SubscriptionStatusActive,
		types.SubscriptionStatusCancelled,
		types.SubscriptionStatusSuspended,
	},
	types.SubscriptionStatusSuspended: {
		types.SubscriptionStatusActive,
		types.SubscriptionStatusCancelled,
	},
	types.SubscriptionStatusCancelled: {},
}

// CanTransition reports whether the status machine permits from -> to.
// Same-state transitions are permitted (idempotent replays) except out of
// cancelled.
func CanTransition(from, to types.SubscriptionStatus) bool {
	if from == types.SubscriptionStatusCancelled {
		return false
	}
	if from == to {
		return true
	}
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
