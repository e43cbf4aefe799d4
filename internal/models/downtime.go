package models

import "time"

// Shift is one of the three fixed production shifts.
type Shift string

const (
	Shift1 Shift = "SHIFT 01"
	Shift2 Shift = "SHIFT 02"
	Shift3 Shift = "SHIFT 03"
)

// Shifts lists all shifts in order.
var Shifts = []Shift{Shift1, Shift2, Shift3}

// DowntimeCycle is one contiguous interval during which a machine was not confirmed producing.
// End is nil while the cycle is open.
type DowntimeCycle struct {
	ID                string     `json:"id"`
	Machine           string     `json:"machine"`
	Hierarchy         Hierarchy  `json:"hierarchy"`
	Start             time.Time  `json:"start"`
	End               *time.Time `json:"end,omitempty"`
	DurationMinutes   float64    `json:"duration_minutes"`
	DurationFormatted string     `json:"duration_formatted"`
	Reason            string     `json:"reason"`
	Shift             Shift      `json:"shift"`
}

// IsOpen reports whether the cycle has not been closed yet.
func (c DowntimeCycle) IsOpen() bool {
	return c.End == nil
}

// TransitionEvent records one confirmed status change.
type TransitionEvent struct {
	Timestamp time.Time `json:"timestamp"`
	Machine   string    `json:"machine"`
	Previous  Status    `json:"previous"`
	Next      Status    `json:"next"`
}
