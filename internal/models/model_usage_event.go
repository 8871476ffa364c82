package models

import (
	"fmt"
	"time"

	"gorm.io/datatypes"

	"github.com/ticketwell/metering/pkg/types"
)

// UsageEvent is an append-only ledger row recording one ticket lifecycle
// action against a subscription. Rows are never updated or deleted; a ticket
// deletion is itself an event. The ledger is the system of record for all
// usage counts, everything else is a derived cache.
type UsageEvent struct {
	ID             string             `gorm:"column:id;type:uuid;primary_key" json:"id"`
	SubscriptionID string             `gorm:"column:subscription_id;type:uuid;not null;index:idx_sub_occurred,priority:1;index:idx_sub_action_occurred,priority:1" json:"subscription_id"`
	TicketID       string             `gorm:"column:ticket_id;type:varchar(64);not null" json:"ticket_id"`
	Action         types.TicketAction `gorm:"column:action;type:varchar(32);not null;index:idx_sub_action_occurred,priority:2" json:"action"`
	PreviousStatus types.TicketStatus `gorm:"column:previous_status;type:varchar(32)" json:"previous_status"`
	NewStatus      types.TicketStatus `gorm:"column:new_status;type:varchar(32)" json:"new_status"`
	OccurredAt     time.Time          `gorm:"column:occurred_at;not null;index:idx_sub_occurred,priority:2;index:idx_sub_action_occurred,priority:3" json:"occurred_at"`
	// Period is the calendar-month key derived from OccurredAt at write time.
	Period string `gorm:"column:period;type:varchar(7);not null;index" json:"period"`
	// DedupKey is the natural key that makes webhook replays idempotent.
	DedupKey  string            `gorm:"column:dedup_key;type:varchar(255);not null;uniqueIndex" json:"dedup_key"`
	Metadata  datatypes.JSONMap `gorm:"column:metadata;type:jsonb;default:'{}'" json:"metadata"`
	CreatedAt time.Time         `json:"created_at"`
}

func (UsageEvent) TableName() string {
	return "usage_event"
}

// UsageEventDedupKey buckets the timestamp to the minute so a retried
// delivery of the same logical event maps to the same key.
func UsageEventDedupKey(subscriptionID, ticketID string, action types.TicketAction, occurredAt time.Time) string {
	bucket := occurredAt.UTC().Truncate(time.Minute).Format(time.RFC3339)
	return fmt.Sprintf("%s|%s|%s|%s", subscriptionID, ticketID, action, bucket)
}
