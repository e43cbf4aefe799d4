// Package telemetry exposes the monitor's Prometheus metrics.
package telemetry

import (
	"net/http"
	"time"

	"github.com/benmeehan/loomwatch/internal/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "loomwatch"

// Metrics holds every collector on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	scanDuration         prometheus.Histogram
	scanCycles           prometheus.Counter
	machineStatus        *prometheus.GaugeVec
	fleetMachines        *prometheus.GaugeVec
	fleetAvailability    prometheus.Gauge
	transitions          *prometheus.CounterVec
	downtimeCycles       *prometheus.CounterVec
	downtimeMinutes      *prometheus.CounterVec
	tagReadFailures      prometheus.Counter
	machinePanics        prometheus.Counter
	persistenceErrors    *prometheus.CounterVec
	notificationsSent    *prometheus.CounterVec
	notificationsDropped prometheus.Counter
}

// NewMetrics creates the collectors together with Go runtime and process collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		scanDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "scan",
			Name:      "duration_seconds",
			Help:      "Duration of one scan cycle in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}),
		scanCycles: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scan",
			Name:      "cycles_total",
			Help:      "Total number of completed scan cycles",
		}),
		machineStatus: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "machine",
			Name:      "status",
			Help:      "Confirmed status of a machine (1 for the current status, 0 otherwise)",
		}, []string{"machine", "status"}),
		fleetMachines: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "fleet",
			Name:      "machines",
			Help:      "Number of machines per confirmed status",
		}, []string{"status"}),
		fleetAvailability: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "fleet",
			Name:      "availability_percent",
			Help:      "Share of configured machines currently producing",
		}),
		transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "machine",
			Name:      "transitions_total",
			Help:      "Confirmed status transitions",
		}, []string{"from", "to"}),
		downtimeCycles: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "downtime",
			Name:      "cycles_total",
			Help:      "Closed downtime cycles per shift",
		}, []string{"shift"}),
		downtimeMinutes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "downtime",
			Name:      "minutes_total",
			Help:      "Minutes of closed downtime cycles per shift",
		}, []string{"shift"}),
		tagReadFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tag",
			Name:      "read_failures_total",
			Help:      "Tag reads that produced no value",
		}),
		machinePanics: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scan",
			Name:      "machine_panics_total",
			Help:      "Recovered panics while processing a machine",
		}),
		persistenceErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "errors_total",
			Help:      "Failed writes per store",
		}, []string{"store"}),
		notificationsSent: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notifier",
			Name:      "sent_total",
			Help:      "Notifications delivered per sink",
		}, []string{"sink"}),
		notificationsDropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notifier",
			Name:      "dropped_total",
			Help:      "Notifications dropped because the queue was full",
		}),
	}
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveScan records one finished scan cycle.
func (m *Metrics) ObserveScan(elapsed time.Duration) {
	m.scanDuration.Observe(elapsed.Seconds())
	m.scanCycles.Inc()
}

// SetMachineStatus flags the current status of a machine.
func (m *Metrics) SetMachineStatus(machine string, status models.Status) {
	for _, s := range models.AllStatuses {
		v := 0.0
		if s == status {
			v = 1
		}
		m.machineStatus.WithLabelValues(machine, s.String()).Set(v)
	}
}

// RemoveMachine deletes the series of a machine that is no longer configured.
func (m *Metrics) RemoveMachine(machine string) {
	m.machineStatus.DeletePartialMatch(prometheus.Labels{"machine": machine})
}

// SetFleet publishes the fleet summary.
func (m *Metrics) SetFleet(summary models.FleetSummary) {
	for _, s := range models.AllStatuses {
		m.fleetMachines.WithLabelValues(s.String()).Set(float64(summary.ByStatus[s]))
	}
	m.fleetAvailability.Set(summary.Availability)
}

// Transition counts a confirmed status change.
func (m *Metrics) Transition(from, to models.Status) {
	m.transitions.WithLabelValues(from.String(), to.String()).Inc()
}

// CycleClosed counts a closed downtime cycle.
func (m *Metrics) CycleClosed(cycle models.DowntimeCycle) {
	m.downtimeCycles.WithLabelValues(string(cycle.Shift)).Inc()
	m.downtimeMinutes.WithLabelValues(string(cycle.Shift)).Add(cycle.DurationMinutes)
}

// TagReadFailures adds n failed tag reads.
func (m *Metrics) TagReadFailures(n int) {
	m.tagReadFailures.Add(float64(n))
}

// MachinePanic counts a recovered per-machine panic.
func (m *Metrics) MachinePanic() {
	m.machinePanics.Inc()
}

// PersistenceError counts a failed write to store ("snapshot" or "history").
func (m *Metrics) PersistenceError(store string) {
	m.persistenceErrors.WithLabelValues(store).Inc()
}

// NotificationSent counts a delivered notification.
func (m *Metrics) NotificationSent(sink string) {
	m.notificationsSent.WithLabelValues(sink).Inc()
}

// NotificationDropped counts a notification lost to a full queue.
func (m *Metrics) NotificationDropped() {
	m.notificationsDropped.Inc()
}
