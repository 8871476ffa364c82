package types

import (
	"fmt"
	"time"
)

// PeriodKey is a calendar-month key in the form "2006-01". Usage summaries
// are unique per (subscription, period). Callers compute the key once from
// the event timestamp and pass it explicitly; nothing in this module reads
// the wall clock to decide which period a write belongs to.
type PeriodKey string

const periodLayout = "2006-01"

func PeriodOf(t time.Time) PeriodKey {
	return PeriodKey(t.UTC().Format(periodLayout))
}

func ParsePeriod(s string) (PeriodKey, error) {
	if _, err := time.Parse(periodLayout, s); err != nil {
		return "", fmt.Errorf("invalid period %q: %w", s, err)
	}
	return PeriodKey(s), nil
}

func (p PeriodKey) String() string { return string(p) }

// Bounds returns the half-open [start, end) interval covered by the period.
func (p PeriodKey) Bounds() (time.Time, time.Time, error) {
	start, err := time.Parse(periodLayout, string(p))
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid period %q: %w", p, err)
	}
	return start, start.AddDate(0, 1, 0), nil
}

// Prev returns the preceding calendar month's key.
func (p PeriodKey) Prev() (PeriodKey, error) {
	start, err := time.Parse(periodLayout, string(p))
	if err != nil {
		return "", fmt.Errorf("invalid period %q: %w", p, err)
	}
	return PeriodOf(start.AddDate(0, -1, 0)), nil
}
