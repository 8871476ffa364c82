package types

type TicketAction string

const (
	TicketActionCreated   TicketAction = "created"
	TicketActionCompleted TicketAction = "completed"
	TicketActionArchived  TicketAction = "archived"
	TicketActionDeleted   TicketAction = "deleted"
)

func (a TicketAction) Valid() bool {
	switch a {
	case TicketActionCreated, TicketActionCompleted, TicketActionArchived, TicketActionDeleted:
		return true
	}
	return false
}

type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "open"
	TicketStatusPending    TicketStatus = "pending"
	TicketStatusInProgress TicketStatus = "in_progress"
	TicketStatusCompleted  TicketStatus = "completed"
	TicketStatusArchived   TicketStatus = "archived"
	TicketStatusDeleted    TicketStatus = "deleted"
)

// Terminal reports whether a ticket in this status no longer counts as active.
// The empty status (ticket did not exist yet) is treated as terminal too.
func (s TicketStatus) Terminal() bool {
	switch s {
	case TicketStatusCompleted, TicketStatusArchived, TicketStatusDeleted, "":
		return true
	}
	return false
}

// UsageCounts is the per-period counter set kept in usage summaries.
type UsageCounts struct {
	Active    int64 `json:"active"`
	Completed int64 `json:"completed"`
	Total     int64 `json:"total"`
	Archived  int64 `json:"archived"`
}

func (c UsageCounts) Add(d UsageCounts) UsageCounts {
	return UsageCounts{
		Active:    c.Active + d.Active,
		Completed: c.Completed + d.Completed,
		Total:     c.Total + d.Total,
		Archived:  c.Archived + d.Archived,
	}
}

func (c UsageCounts) IsZero() bool {
	return c == UsageCounts{}
}

// UsagePercentages expresses counts relative to limits, capped at 100.
// An unlimited (nil) limit yields 0.
type UsagePercentages struct {
	Active    int64 `json:"active"`
	Completed int64 `json:"completed"`
	Total     int64 `json:"total"`
}

type GateAction string

const (
	GateActionCreate   GateAction = "create"
	GateActionComplete GateAction = "complete"
)

func (a GateAction) Valid() bool {
	return a == GateActionCreate || a == GateActionComplete
}

type LimitType string

const (
	LimitTypeActive    LimitType = "active"
	LimitTypeCompleted LimitType = "completed"
	LimitTypeTotal     LimitType = "total"
)
