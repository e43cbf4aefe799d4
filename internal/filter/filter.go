// Package filter smooths fused statuses: network loss must be seen several times in a row
// before it is confirmed, and production must hold for a while before a recovery is confirmed.
// Stops are confirmed immediately.
package filter

import (
	"time"

	"github.com/benmeehan/loomwatch/internal/constants"
	"github.com/benmeehan/loomwatch/internal/fusion"
	"github.com/benmeehan/loomwatch/internal/models"
)

// Config holds the smoothing parameters.
type Config struct {
	FailureThreshold int
	Stability        time.Duration
}

// DefaultConfig returns the thresholds used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		FailureThreshold: constants.DefaultFailureThreshold,
		Stability:        constants.DefaultStability,
	}
}

// Filter is stateless; all per-machine memory travels in models.MachineState.
type Filter struct {
	cfg Config
}

// New creates a Filter. Non-positive values fall back to the defaults.
func New(cfg Config) *Filter {
	def := DefaultConfig()
	if cfg.FailureThreshold < 1 {
		cfg.FailureThreshold = def.FailureThreshold
	}
	if cfg.Stability < 0 {
		cfg.Stability = def.Stability
	}
	return &Filter{cfg: cfg}
}

// Decision is the outcome of one filter step.
type Decision struct {
	// State is the memory to keep for the next cycle.
	State models.MachineState
	// Previous is the confirmed status before this step.
	Previous models.Status
	// StatusChanged is true when the confirmed status differs from Previous.
	StatusChanged bool
	// Changed is true when anything shown to a viewer changed (status, detail or color).
	Changed bool
}

// Apply evaluates fused against the previous memory at time now.
func (f *Filter) Apply(prev models.MachineState, fused fusion.Result, now time.Time) Decision {
	next := prev

	if fused.Status == models.StatusNoNetwork {
		next.FailureCount = prev.FailureCount + 1
	} else {
		next.FailureCount = 0
	}

	switch {
	case fused.Status == models.StatusNoNetwork && next.FailureCount < f.cfg.FailureThreshold:
		// debounced: keep the confirmed status and leave any recovery timer running

	case fused.Status.IsProducing() && !prev.Status.IsProducing():
		if next.RecoveryFrom == nil {
			started := now
			next.RecoveryFrom = &started
		}
		if now.Sub(*next.RecoveryFrom) >= f.cfg.Stability {
			next.RecoveryFrom = nil
			confirm(&next, fused)
		}

	default:
		next.RecoveryFrom = nil
		confirm(&next, fused)
	}

	d := Decision{
		State:         next,
		Previous:      prev.Status,
		StatusChanged: next.Status != prev.Status,
	}
	if d.StatusChanged {
		d.State.Since = now
	}
	d.Changed = d.StatusChanged || next.Detail != prev.Detail || next.Color != prev.Color
	return d
}

func confirm(state *models.MachineState, fused fusion.Result) {
	state.Status = fused.Status
	state.Detail = fused.Detail
	state.Color = fused.Color
}
