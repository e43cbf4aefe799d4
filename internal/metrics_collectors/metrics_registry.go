package metrics_collectors

import (
	"context"
	"sync"

	"github.com/benmeehan/loomwatch/internal/models"
	"github.com/rs/zerolog"
)

// MetricsRegistry holds the host metric collectors attached to the heartbeat.
type MetricsRegistry struct {
	collectors map[string]MetricCollector
}

// NewMetricsRegistry creates a new MetricsRegistry instance.
func NewMetricsRegistry() *MetricsRegistry {
	return &MetricsRegistry{
		collectors: make(map[string]MetricCollector),
	}
}

// NewDefaultRegistry registers the cpu, memory, disk and goroutine collectors.
func NewDefaultRegistry(diskPath string, logger zerolog.Logger) *MetricsRegistry {
	r := NewMetricsRegistry()
	r.Register(&CPUMetricCollector{Logger: logger})
	r.Register(&MemoryMetricCollector{Logger: logger})
	r.Register(&DiskMetricCollector{Path: diskPath, Logger: logger})
	r.Register(&GoroutineMetricCollector{Logger: logger})
	return r
}

// Register adds a new metric collector to the registry.
func (r *MetricsRegistry) Register(collector MetricCollector) {
	r.collectors[collector.Name()] = collector
}

// GetCollectors returns all the metric collectors registered in the registry.
func (r *MetricsRegistry) GetCollectors() map[string]MetricCollector {
	return r.collectors
}

// Collect runs every enabled collector concurrently and returns the host metrics.
func (r *MetricsRegistry) Collect(ctx context.Context, config *models.HostMetricsConfig) *models.HostMetrics {
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		results = make(map[string]*float64, len(r.collectors))
	)

	for name, collector := range r.collectors {
		if !collector.IsEnabled(config) {
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			v := collector.Collect(ctx)

			mu.Lock()
			defer mu.Unlock()
			results[name] = v
		}()
	}
	wg.Wait()

	return &models.HostMetrics{
		CPUUsage:   results["cpu"],
		Memory:     results["memory"],
		Disk:       results["disk"],
		Goroutines: results["goroutines"],
	}
}
