package models

import "time"

// Snapshot is the durable document holding the current state of every machine.
// It is read at startup to resume and overwritten atomically by the scan loop.
type Snapshot struct {
	Metadata SnapshotMetadata         `json:"metadata"`
	Machines map[string]MachineRecord `json:"machines"`
}

// SnapshotMetadata describes the writer of the snapshot.
type SnapshotMetadata struct {
	LastHeartbeat time.Time `json:"last_heartbeat"`
	ServiceState  string    `json:"service_state"`
	Version       string    `json:"version"`
	SiteID        string    `json:"site_id,omitempty"`
}

// MachineRecord is the snapshot entry of one machine.
type MachineRecord struct {
	Status       string    `json:"status"`
	Detail       string    `json:"detail,omitempty"`
	Color        string    `json:"color"`
	Since        time.Time `json:"since"`
	FailureCount int       `json:"failure_count"`
	Address      string    `json:"address"`
	Unit         string    `json:"unit"`
	Plant        string    `json:"plant"`
	Sector       string    `json:"sector"`
}
