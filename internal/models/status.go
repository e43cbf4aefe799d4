package models

import "strings"

// Status is the confirmed (or fused) operating state of a machine.
type Status string

const (
	StatusProducing  Status = "PRODUCING"
	StatusStopped    Status = "STOPPED"
	StatusNoNetwork  Status = "NO_NETWORK"
	StatusTagFailure Status = "TAG_FAILURE"
	StatusReadError  Status = "READ_ERROR"
	StatusUnknown    Status = "UNKNOWN"
)

// AllStatuses lists every status in display order.
var AllStatuses = []Status{
	StatusProducing,
	StatusStopped,
	StatusNoNetwork,
	StatusTagFailure,
	StatusReadError,
	StatusUnknown,
}

// ParseStatus maps a persisted string back to a Status. The second return value is
// false when the string is not a known status, in which case StatusUnknown is returned.
func ParseStatus(s string) (Status, bool) {
	candidate := Status(strings.ToUpper(strings.TrimSpace(s)))
	for _, st := range AllStatuses {
		if st == candidate {
			return st, true
		}
	}
	return StatusUnknown, false
}

// IsProducing reports whether s is StatusProducing.
func (s Status) IsProducing() bool {
	return s == StatusProducing
}

// IsCritical reports whether s means the machine cannot be observed at all.
func (s Status) IsCritical() bool {
	return s == StatusNoNetwork || s == StatusTagFailure
}

func (s Status) String() string {
	return string(s)
}
