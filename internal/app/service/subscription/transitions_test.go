package subscription

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ticketwell/metering/pkg/types"
)

func TestCanTransition(t *testing.T) {
	trial := types.SubscriptionStatusTrial
	active := types.SubscriptionStatusActive
	pastDue := types.SubscriptionStatusPastDue
	cancelled := types.SubscriptionStatusCancelled
	suspended := types.SubscriptionStatusSuspended

	cases := []struct {
		from, to types.SubscriptionStatus
		want     bool
	}{
		{trial, active, true},
		{trial, pastDue, true},
		{trial, cancelled, true},
		{trial, suspended, true},

		{active, pastDue, true},
		{active, cancelled, true},
		{active, suspended, true},
		{active, trial, false},

		{pastDue, active, true},
		{pastDue, cancelled, true},
		{pastDue, suspended, true},
		{pastDue, trial, false},

		{suspended, active, true},
		{suspended, cancelled, true},
		{suspended, pastDue, false},

		// cancelled is terminal
		{cancelled, active, false},
		{cancelled, trial, false},
		{cancelled, suspended, false},
		{cancelled, cancelled, false},

		// same-state is a no-op everywhere else
		{active, active, true},
		{trial, trial, true},
		{pastDue, pastDue, true},
		{suspended, suspended, true},
	}

	for _, tc := range cases {
		require.Equal(t, tc.want, CanTransition(tc.from, tc.to),
			"%s -> %s", tc.from, tc.to)
	}
}
