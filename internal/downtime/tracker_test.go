package downtime

import (
	"fmt"
	"testing"
	"time"

	"github.com/benmeehan/loomwatch/internal/models"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var loom = models.Machine{Name: "LOOM_01", ExternalID: "tear01", Plant: "P1"}

func state(status models.Status, detail string) models.MachineState {
	return models.MachineState{Status: status, Detail: detail}
}

func newTestTracker() *Tracker {
	tr := NewTracker(zerolog.Nop())
	n := 0
	tr.newID = func() string {
		n++
		return fmt.Sprintf("cycle-%d", n)
	}
	return tr
}

func TestTracker_OpenAndClose(t *testing.T) {
	tr := newTestTracker()
	start := time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)

	closed := tr.Observe(loom, state(models.StatusProducing, ""), state(models.StatusStopped, "WARP BREAK"), start)
	assert.Nil(t, closed)

	open, ok := tr.Open("LOOM_01")
	require.True(t, ok)
	assert.True(t, open.IsOpen())
	assert.Equal(t, "cycle-1", open.ID)
	assert.Equal(t, models.Hierarchy{Unit: "General", Plant: "P1", Sector: "General"}, open.Hierarchy)

	end := start.Add(90*time.Minute + 30*time.Second)
	closed = tr.Observe(loom, state(models.StatusStopped, "Quebra de urdume ⚠️"), state(models.StatusProducing, ""), end)
	require.NotNil(t, closed)
	assert.Equal(t, start, closed.Start)
	assert.Equal(t, end, *closed.End)
	assert.Equal(t, 90.5, closed.DurationMinutes)
	assert.Equal(t, "01:30:30", closed.DurationFormatted)
	assert.Equal(t, "STOPPED | QUEBRA DE URDUME", closed.Reason)
	assert.Equal(t, models.Shift1, closed.Shift)

	_, ok = tr.Open("LOOM_01")
	assert.False(t, ok)
}

func TestTracker_AtMostOneOpenCycle(t *testing.T) {
	tr := newTestTracker()
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	tr.Observe(loom, state(models.StatusProducing, ""), state(models.StatusStopped, ""), now)
	tr.Observe(loom, state(models.StatusProducing, ""), state(models.StatusNoNetwork, ""), now.Add(time.Minute))

	assert.Len(t, tr.OpenCycles(), 1)
	open, _ := tr.Open("LOOM_01")
	assert.Equal(t, now, open.Start)
}

func TestTracker_RecoveryWithoutOpenCycle(t *testing.T) {
	tr := newTestTracker()
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	closed := tr.Observe(loom, state(models.StatusUnknown, ""), state(models.StatusProducing, ""), now)
	assert.Nil(t, closed)
	assert.Empty(t, tr.OpenCycles())
}

func TestTracker_NonProducingChangesKeepCycleOpen(t *testing.T) {
	tr := newTestTracker()
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	tr.Observe(loom, state(models.StatusProducing, ""), state(models.StatusStopped, ""), now)
	closed := tr.Observe(loom, state(models.StatusStopped, ""), state(models.StatusNoNetwork, ""), now.Add(time.Minute))
	assert.Nil(t, closed)

	closed = tr.Observe(loom, state(models.StatusNoNetwork, ""), state(models.StatusProducing, ""), now.Add(2*time.Minute))
	require.NotNil(t, closed)
	assert.Equal(t, "NO_NETWORK", closed.Reason)
	assert.Equal(t, 2.0, closed.DurationMinutes)
}

func TestTracker_Forget(t *testing.T) {
	tr := newTestTracker()
	now := time.Now()

	tr.Observe(loom, state(models.StatusProducing, ""), state(models.StatusStopped, ""), now)
	tr.Forget(map[string]struct{}{"LOOM_02": {}})
	assert.Empty(t, tr.OpenCycles())
}

func TestShiftOf(t *testing.T) {
	at := func(h, m, s int) time.Time { return time.Date(2025, 3, 10, h, m, s, 0, time.UTC) }

	tests := []struct {
		at     time.Time
		expect models.Shift
	}{
		{at(6, 0, 0), models.Shift1},
		{at(14, 29, 59), models.Shift1},
		{at(14, 30, 0), models.Shift2},
		{at(22, 51, 59), models.Shift2},
		{at(22, 52, 0), models.Shift3},
		{at(0, 0, 0), models.Shift3},
		{at(5, 59, 59), models.Shift3},
	}

	for _, tt := range tests {
		t.Run(tt.at.Format("15:04:05"), func(t *testing.T) {
			assert.Equal(t, tt.expect, ShiftOf(tt.at))
		})
	}
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "00:00:00", FormatDuration(0))
	assert.Equal(t, "00:00:59", FormatDuration(59*time.Second+900*time.Millisecond))
	assert.Equal(t, "23:59:59", FormatDuration(24*time.Hour-time.Second))
	assert.Equal(t, "01-00:00:00", FormatDuration(24*time.Hour))
	assert.Equal(t, "03-04:05:06", FormatDuration(76*time.Hour+5*time.Minute+6*time.Second))
}

func TestRoundMinutes(t *testing.T) {
	assert.Equal(t, 1.0, RoundMinutes(time.Minute))
	assert.Equal(t, 0.02, RoundMinutes(time.Second))
	assert.Equal(t, 1.33, RoundMinutes(80*time.Second))
}

func TestCleanReason(t *testing.T) {
	assert.Equal(t, "STOPPED | MANUTENO", CleanReason("STOPPED | Manutenção"))
	assert.Equal(t, "READ_ERROR", CleanReason(" ⚠️ read_error "))
	assert.Equal(t, "⚠️", CleanReason("⚠️"))
}

func TestRecoveryNotification(t *testing.T) {
	start := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	end := start.Add(3 * time.Minute)
	n := RecoveryNotification(models.DowntimeCycle{
		Machine:           "LOOM_01",
		Start:             start,
		End:               &end,
		DurationMinutes:   3,
		DurationFormatted: "00:03:00",
		Reason:            "STOPPED",
	})

	assert.Equal(t, "STOPPED", n.Reason)
	assert.Equal(t, 3.0, n.Minutes)
	assert.Equal(t, end, n.Timestamp)
	assert.Contains(t, n.Message, "LOOM_01 recovered")
	assert.Contains(t, n.Message, "00:03:00 (3.00 min)")
}
