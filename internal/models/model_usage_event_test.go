package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ticketwell/metering/pkg/types"
)

func TestUsageEventDedupKey_MinuteBucket(t *testing.T) {
	base := time.Date(2026, 9, 1, 10, 30, 5, 0, time.UTC)

	k1 := UsageEventDedupKey("sub-1", "t-1", types.TicketActionCreated, base)
	k2 := UsageEventDedupKey("sub-1", "t-1", types.TicketActionCreated, base.Add(40*time.Second))
	require.Equal(t, k1, k2, "retries within the same minute must collide")

	k3 := UsageEventDedupKey("sub-1", "t-1", types.TicketActionCreated, base.Add(time.Minute))
	require.NotEqual(t, k1, k3, "the next minute is a new logical event")
}

func TestUsageEventDedupKey_NormalizesTimezone(t *testing.T) {
	utc := time.Date(2026, 9, 1, 10, 30, 0, 0, time.UTC)
	est := utc.In(time.FixedZone("EST", -5*60*60))
	require.Equal(t,
		UsageEventDedupKey("s", "t", types.TicketActionCompleted, utc),
		UsageEventDedupKey("s", "t", types.TicketActionCompleted, est),
	)
}

func TestUsageEventDedupKey_DistinguishesDimensions(t *testing.T) {
	at := time.Date(2026, 9, 1, 10, 30, 0, 0, time.UTC)
	base := UsageEventDedupKey("s1", "t1", types.TicketActionCreated, at)

	require.NotEqual(t, base, UsageEventDedupKey("s2", "t1", types.TicketActionCreated, at))
	require.NotEqual(t, base, UsageEventDedupKey("s1", "t2", types.TicketActionCreated, at))
	require.NotEqual(t, base, UsageEventDedupKey("s1", "t1", types.TicketActionDeleted, at))
}
