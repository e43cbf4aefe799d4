package metrics_collectors

import (
	"context"

	"github.com/benmeehan/loomwatch/internal/models"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/disk"
)

// DiskMetricCollector collects usage of the filesystem holding the state files.
type DiskMetricCollector struct {
	Path   string
	Logger zerolog.Logger
}

func (d *DiskMetricCollector) Name() string {
	return "disk"
}

func (d *DiskMetricCollector) Collect(ctx context.Context) *float64 {
	path := d.Path
	if path == "" {
		path = "/"
	}
	diskStats, err := disk.UsageWithContext(ctx, path)
	if err != nil {
		d.Logger.Error().Err(err).Str("path", path).Msg("Failed to get disk usage")
		return nil
	}
	return &diskStats.UsedPercent
}

func (d *DiskMetricCollector) IsEnabled(config *models.HostMetricsConfig) bool {
	return config.MonitorDisk
}

func (d *DiskMetricCollector) Unit() string {
	return "percentage"
}
