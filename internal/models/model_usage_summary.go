package models

import (
	"time"

	"github.com/ticketwell/metering/pkg/types"
)

// UsageSummary is the denormalized per-period counter cache derived from the
// usage event ledger. One row per (subscription, period); all mutation goes
// through the aggregator's atomic increment.
type UsageSummary struct {
	ID             string    `gorm:"column:id;type:uuid;primary_key" json:"id"`
	SubscriptionID string    `gorm:"column:subscription_id;type:uuid;not null;uniqueIndex:udx_sub_period,priority:1" json:"subscription_id"`
	Period         string    `gorm:"column:period;type:varchar(7);not null;uniqueIndex:udx_sub_period,priority:2" json:"period"`
	ActiveCount    int64     `gorm:"column:active_count;not null;default:0" json:"active_count"`
	CompletedCount int64     `gorm:"column:completed_count;not null;default:0" json:"completed_count"`
	TotalCount     int64     `gorm:"column:total_count;not null;default:0" json:"total_count"`
	ArchivedCount  int64     `gorm:"column:archived_count;not null;default:0" json:"archived_count"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (UsageSummary) TableName() string {
	return "usage_summary"
}

func (s *UsageSummary) Counts() types.UsageCounts {
	if s == nil {
		return types.UsageCounts{}
	}
	return types.UsageCounts{
		Active:    s.ActiveCount,
		Completed: s.CompletedCount,
		Total:     s.TotalCount,
		Archived:  s.ArchivedCount,
	}
}
