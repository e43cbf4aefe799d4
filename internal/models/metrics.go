package models

// HostMetricsConfig selects which host metrics are attached to the heartbeat.
type HostMetricsConfig struct {
	MonitorCPU        bool   `yaml:"cpu"`
	MonitorMemory     bool   `yaml:"memory"`
	MonitorDisk       bool   `yaml:"disk"`
	MonitorGoroutines bool   `yaml:"goroutines"`
	DiskPath          string `yaml:"disk_path"` // Filesystem holding the snapshot and history, defaults to "/"
}

// Any reports whether at least one host metric is enabled.
func (c HostMetricsConfig) Any() bool {
	return c.MonitorCPU || c.MonitorMemory || c.MonitorDisk || c.MonitorGoroutines
}

// HostMetrics carries the resource usage of the machine running the monitor.
type HostMetrics struct {
	CPUUsage   *float64 `json:"cpu_usage,omitempty"`
	Memory     *float64 `json:"memory,omitempty"`
	Disk       *float64 `json:"disk,omitempty"`
	Goroutines *float64 `json:"goroutines,omitempty"`
}
