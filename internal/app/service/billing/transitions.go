package billing

import "github.com/ticketwell/metering/pkg/types"

var allowedTransitions = map[types.BillingStatus][]types.BillingStatus{
	types.BillingStatusDraft:         {types.BillingStatusOpen, types.BillingStatusVoid},
	types.BillingStatusOpen:          {types.BillingStatusPaid, types.BillingStatusVoid, types.BillingStatusUncollectible},
	types.BillingStatusUncollectible: {types.BillingStatusPaid, types.BillingStatusVoid},
	types.BillingStatusPaid:          {},
	types.BillingStatusVoid:          {},
}

// CanTransition reports whether a billing record may move from one status to
// another. Same-status is allowed only on non-terminal records; paid->paid
// replays are handled by the caller as no-ops before reaching here.
func CanTransition(from, to types.BillingStatus) bool {
	if from == to {
		return !from.Terminal()
	}
	for _, allowed := range allowedTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}
