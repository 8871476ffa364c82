package models

import (
	"time"

	"github.com/ticketwell/metering/pkg/types"
)

// Plan is a catalog entry of ticket limits and pricing. Plans are never
// deleted once referenced; Deactivated marks them unavailable for new
// subscriptions while existing ones keep resolving their limits.
type Plan struct {
	ID   string `gorm:"column:id;type:varchar(64);primary_key" json:"id"`
	Name string `gorm:"column:name;type:varchar(128);not null" json:"name"`
	// Nil limits mean unlimited.
	ActiveTicketLimit    *int64                `gorm:"column:active_ticket_limit" json:"active_ticket_limit"`
	CompletedTicketLimit *int64                `gorm:"column:completed_ticket_limit" json:"completed_ticket_limit"`
	TotalTicketLimit     *int64                `gorm:"column:total_ticket_limit" json:"total_ticket_limit"`
	Interval             types.BillingInterval `gorm:"column:interval;type:varchar(16);not null" json:"interval"`
	PriceCents           int64                 `gorm:"column:price_cents;type:bigint;not null" json:"price_cents"`
	Currency             string                `gorm:"column:currency;type:varchar(8);not null" json:"currency"`
	Active               bool                  `gorm:"column:active;not null;default:true" json:"active"`
	CreatedAt            time.Time             `json:"created_at"`
	UpdatedAt            time.Time             `json:"updated_at"`
}

func (Plan) TableName() string {
	return "plan"
}

// Limits returns the plan's caps in the shape the entitlement gate consumes.
func (p *Plan) Limits() types.TicketLimits {
	return types.TicketLimits{
		Active:    p.ActiveTicketLimit,
		Completed: p.CompletedTicketLimit,
		Total:     p.TotalTicketLimit,
	}
}
