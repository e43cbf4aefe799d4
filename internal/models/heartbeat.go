package models

import "time"

// Heartbeat is published periodically so that an external watchdog can tell the monitor is alive.
type Heartbeat struct {
	SiteID    string       `json:"site_id"`
	Timestamp time.Time    `json:"timestamp"`
	Status    string       `json:"status"`
	Fleet     FleetSummary `json:"fleet"`
	Host      *HostMetrics `json:"host,omitempty"`
}

// FleetSummary counts machines per confirmed status.
type FleetSummary struct {
	Total        int            `json:"total"`
	Producing    int            `json:"producing"`
	Stopped      int            `json:"stopped"`
	Critical     int            `json:"critical"`
	Availability float64        `json:"availability"`
	ByStatus     map[Status]int `json:"by_status,omitempty"`
}
