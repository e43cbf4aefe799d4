package telemetry

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/benmeehan/loomwatch/internal/models"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_MachineStatus(t *testing.T) {
	m := NewMetrics()
	m.SetMachineStatus("LOOM_01", models.StatusStopped)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.machineStatus.WithLabelValues("LOOM_01", "STOPPED")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.machineStatus.WithLabelValues("LOOM_01", "PRODUCING")))

	m.SetMachineStatus("LOOM_01", models.StatusProducing)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.machineStatus.WithLabelValues("LOOM_01", "STOPPED")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.machineStatus.WithLabelValues("LOOM_01", "PRODUCING")))

	m.RemoveMachine("LOOM_01")
	assert.Equal(t, 0, testutil.CollectAndCount(m.machineStatus))
}

func TestMetrics_Counters(t *testing.T) {
	m := NewMetrics()
	m.ObserveScan(200 * time.Millisecond)
	m.Transition(models.StatusProducing, models.StatusStopped)
	m.CycleClosed(models.DowntimeCycle{Shift: models.Shift2, DurationMinutes: 12.5})
	m.CycleClosed(models.DowntimeCycle{Shift: models.Shift2, DurationMinutes: 2.5})
	m.TagReadFailures(3)
	m.NotificationDropped()
	m.PersistenceError("history")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.scanCycles))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.transitions.WithLabelValues("PRODUCING", "STOPPED")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.downtimeCycles.WithLabelValues("SHIFT 02")))
	assert.Equal(t, 15.0, testutil.ToFloat64(m.downtimeMinutes.WithLabelValues("SHIFT 02")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.tagReadFailures))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.notificationsDropped))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.persistenceErrors.WithLabelValues("history")))
}

func TestMetrics_Handler(t *testing.T) {
	m := NewMetrics()
	m.SetFleet(models.FleetSummary{
		Total:        2,
		Producing:    1,
		Availability: 50,
		ByStatus:     map[models.Status]int{models.StatusProducing: 1, models.StatusStopped: 1},
	})

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `loomwatch_fleet_machines{status="PRODUCING"} 1`)
	assert.Contains(t, string(body), "loomwatch_fleet_availability_percent 50")
	assert.Contains(t, string(body), "go_goroutines")
}
