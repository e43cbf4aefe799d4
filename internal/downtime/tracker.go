// Package downtime keeps track of downtime cycles: an interval that starts when a producing
// machine is confirmed stopped and ends when it is confirmed producing again.
package downtime

import (
	"fmt"
	"sort"
	"time"

	"github.com/benmeehan/loomwatch/internal/models"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Tracker holds the open cycle of every machine. It is not safe for concurrent use; the
// scan loop is its only caller.
type Tracker struct {
	open   map[string]*models.DowntimeCycle
	newID  func() string
	Logger zerolog.Logger
}

// NewTracker creates an empty tracker.
func NewTracker(logger zerolog.Logger) *Tracker {
	return &Tracker{
		open:   make(map[string]*models.DowntimeCycle),
		newID:  func() string { return uuid.New().String() },
		Logger: logger,
	}
}

// Observe reacts to one filter step of a machine. prev and next are the confirmed states
// before and after the step. It returns the cycle closed by this step, if any.
func (t *Tracker) Observe(machine models.Machine, prev, next models.MachineState, now time.Time) *models.DowntimeCycle {
	id := machine.ID()

	switch {
	case prev.Status.IsProducing() && !next.Status.IsProducing():
		if _, ok := t.open[id]; ok {
			return nil
		}
		t.open[id] = &models.DowntimeCycle{
			ID:        t.newID(),
			Machine:   id,
			Hierarchy: machine.Hierarchy(),
			Start:     now,
		}
		t.Logger.Debug().Str("machine", id).Str("status", next.Status.String()).Msg("Downtime cycle opened")
		return nil

	case !prev.Status.IsProducing() && next.Status.IsProducing():
		cycle, ok := t.open[id]
		if !ok {
			return nil
		}
		delete(t.open, id)

		end := now
		if end.Before(cycle.Start) {
			end = cycle.Start
		}
		elapsed := end.Sub(cycle.Start)

		cycle.End = &end
		cycle.DurationMinutes = RoundMinutes(elapsed)
		cycle.DurationFormatted = FormatDuration(elapsed)
		cycle.Reason = CleanReason(prev.Label())
		cycle.Shift = ShiftOf(cycle.Start)

		t.Logger.Info().
			Str("machine", id).
			Str("reason", cycle.Reason).
			Float64("minutes", cycle.DurationMinutes).
			Msg("Downtime cycle closed")
		return cycle
	}

	return nil
}

// Open returns a copy of the open cycle of a machine.
func (t *Tracker) Open(machineID string) (models.DowntimeCycle, bool) {
	cycle, ok := t.open[machineID]
	if !ok {
		return models.DowntimeCycle{}, false
	}
	return *cycle, true
}

// OpenCycles returns copies of all open cycles ordered by machine.
func (t *Tracker) OpenCycles() []models.DowntimeCycle {
	cycles := make([]models.DowntimeCycle, 0, len(t.open))
	for _, c := range t.open {
		cycles = append(cycles, *c)
	}
	sort.Slice(cycles, func(i, j int) bool { return cycles[i].Machine < cycles[j].Machine })
	return cycles
}

// Forget drops the open cycle of machines that are no longer configured.
func (t *Tracker) Forget(configured map[string]struct{}) {
	for id := range t.open {
		if _, ok := configured[id]; !ok {
			t.Logger.Debug().Str("machine", id).Msg("Dropping open cycle of removed machine")
			delete(t.open, id)
		}
	}
}

// RecoveryNotification builds the message sent when a cycle closes.
func RecoveryNotification(cycle models.DowntimeCycle) models.Notification {
	ts := cycle.Start
	if cycle.End != nil {
		ts = *cycle.End
	}
	return models.Notification{
		Message: fmt.Sprintf("%s recovered\nStopped for: %s (%.2f min)\nReason: %s",
			cycle.Machine, cycle.DurationFormatted, cycle.DurationMinutes, cycle.Reason),
		Reason:    cycle.Reason,
		Minutes:   cycle.DurationMinutes,
		Machine:   cycle.Machine,
		Timestamp: ts,
	}
}
