package constants

import "time"

// Service states written into the snapshot metadata and the heartbeat.
const (
	ServiceStateRunning  = "RUNNING"
	ServiceStateStopping = "STOPPING"
)

// SnapshotVersion identifies the layout of the snapshot document.
const SnapshotVersion = "loomwatch/1"

// Scan loop defaults.
const (
	DefaultScanInterval      = 5 * time.Second
	DefaultFailureThreshold  = 3
	DefaultStability         = 60 * time.Second
	DefaultSnapshotMaxAge    = 30 * time.Second
	DefaultProbeWorkers      = 30
	DefaultProbeTimeout      = time.Second
	DefaultTagConcurrency    = 64
	DefaultConnectTimeout    = 10 * time.Second
	DefaultSessionTimeout    = 30 * time.Second
	DriverCloseGrace         = 2 * time.Second
	DefaultFeedTimeout       = 3 * time.Second
	DefaultHeartbeatInterval = 30 * time.Second
	DefaultNotifierQueueSize = 64
)

// Notification reasons that are not tied to a machine.
const (
	ReasonSystem = "SYSTEM"
)
