package billing

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ticketwell/metering/pkg/types"
)

func TestCanTransition(t *testing.T) {
	draft := types.BillingStatusDraft
	open := types.BillingStatusOpen
	paid := types.BillingStatusPaid
	void := types.BillingStatusVoid
	uncollectible := types.BillingStatusUncollectible

	cases := []struct {
		from, to types.BillingStatus
		want     bool
	}{
		{draft, open, true},
		{draft, void, true},
		{draft, paid, false},

		{open, paid, true},
		{open, void, true},
		{open, uncollectible, true},
		{open, draft, false},

		// a late payment can still settle an uncollectible invoice
		{uncollectible, paid, true},
		{uncollectible, void, true},
		{uncollectible, open, false},

		{paid, void, false},
		{paid, open, false},
		{void, paid, false},
		{void, open, false},

		// same-status only on non-terminal records
		{open, open, true},
		{draft, draft, true},
		{uncollectible, uncollectible, true},
		{paid, paid, false},
		{void, void, false},
	}

	for _, tc := range cases {
		require.Equal(t, tc.want, CanTransition(tc.from, tc.to),
			"%s -> %s", tc.from, tc.to)
	}
}
