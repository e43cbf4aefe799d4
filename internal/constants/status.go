package constants

// Connectivity labels produced by the prober.
const (
	// InfraOnline means the host answered and the service port (if any) accepted a connection.
	InfraOnline = "ONLINE"
	// InfraFailedPort means the host answered but the service port refused or timed out.
	InfraFailedPort = "FAILED_PORT"
	// InfraNoNetwork means the host did not answer at all.
	InfraNoNetwork = "NO_NETWORK"
)

// Status colors, hex encoded for the dashboard.
const (
	ColorGreen  = "#28a745"
	ColorRed    = "#dc3545"
	ColorYellow = "#ffc107"
	ColorOrange = "#fd7e14"
	ColorGray   = "#808080"
)

// Placeholder descriptions sent by the classification feed while an operator has not
// classified the stop yet. They carry no information and are never shown as a detail.
const (
	ClassificationAwaiting = "AWAITING CLASSIFICATION"
	ClassificationUnknown  = "UNKNOWN"
)

// DefaultHierarchy is used for unit/plant/sector when the configuration leaves them empty.
const DefaultHierarchy = "General"
