package metrics_collectors

import (
	"context"

	"github.com/benmeehan/loomwatch/internal/models"
)

// MetricCollector defines the interface for collecting a single host metric.
type MetricCollector interface {
	Name() string                                    // Name of the metric (e.g., "cpu", "memory")
	Collect(ctx context.Context) *float64            // Collect the metric, nil when unavailable
	IsEnabled(config *models.HostMetricsConfig) bool // Check if the metric is enabled in the config
	Unit() string                                    // Unit of the metric (e.g., "percentage", "count")
}
