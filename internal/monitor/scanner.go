// Package monitor drives the scan cycle: acquire connectivity, tags and classifications for
// every machine, fuse and smooth them into a confirmed status, track downtime and persist.
package monitor

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/benmeehan/loomwatch/internal/classification"
	"github.com/benmeehan/loomwatch/internal/constants"
	"github.com/benmeehan/loomwatch/internal/downtime"
	"github.com/benmeehan/loomwatch/internal/filter"
	"github.com/benmeehan/loomwatch/internal/fusion"
	"github.com/benmeehan/loomwatch/internal/models"
	"github.com/benmeehan/loomwatch/internal/storage"
	"github.com/rs/zerolog"
)

// Prober labels the connectivity of every machine.
type Prober interface {
	ProbeAll(ctx context.Context, machines []models.Machine) map[string]string
}

// TagReader reads the running tag of every machine. Missing keys mean the read failed.
type TagReader interface {
	ReadAll(ctx context.Context, machines []models.Machine) map[string]bool
}

// Notifier accepts notifications without blocking.
type Notifier interface {
	Notify(n models.Notification)
}

// SnapshotWriter persists the snapshot document.
type SnapshotWriter interface {
	Save(snapshot models.Snapshot) error
}

// Recorder receives per-cycle measurements.
type Recorder interface {
	ObserveScan(elapsed time.Duration)
	SetMachineStatus(machine string, status models.Status)
	RemoveMachine(machine string)
	SetFleet(summary models.FleetSummary)
	Transition(from, to models.Status)
	CycleClosed(cycle models.DowntimeCycle)
	TagReadFailures(n int)
	MachinePanic()
	PersistenceError(store string)
}

// Config holds the scan loop settings.
type Config struct {
	SiteID         string
	Interval       time.Duration
	SnapshotMaxAge time.Duration
	Filter         filter.Config
}

// Deps are the collaborators of a Scanner. Classification, History, Notifier and Recorder
// are optional.
type Deps struct {
	Machines       MachineSource
	Prober         Prober
	Tags           TagReader
	Classification classification.Fetcher
	Snapshots      SnapshotWriter
	History        storage.History
	Notifier       Notifier
	Recorder       Recorder
}

// CycleReport describes what one cycle did.
type CycleReport struct {
	Started  time.Time
	Elapsed  time.Duration
	Machines int
	Changed  bool
	Saved    bool
	Aborted  bool
	Events   []models.TransitionEvent
	Closed   []models.DowntimeCycle
	Summary  models.FleetSummary
}

// Scanner owns the per-machine memory and the open downtime cycles. RunCycle must only be
// called from one goroutine; Summary and States may be called concurrently.
type Scanner struct {
	cfg     Config
	deps    Deps
	filter  *filter.Filter
	tracker *downtime.Tracker

	mu       sync.RWMutex
	states   map[string]models.MachineState
	summary  models.FleetSummary
	machines []models.Machine

	lastSave   time.Time
	firstCycle bool

	now    func() time.Time
	fuse   func(fusion.Input) fusion.Result
	Logger zerolog.Logger
}

// NewScanner creates a Scanner with empty memory.
func NewScanner(cfg Config, deps Deps, logger zerolog.Logger) *Scanner {
	if cfg.Interval <= 0 {
		cfg.Interval = constants.DefaultScanInterval
	}
	if cfg.SnapshotMaxAge <= 0 {
		cfg.SnapshotMaxAge = constants.DefaultSnapshotMaxAge
	}
	if deps.Classification == nil {
		deps.Classification = classification.Disabled{}
	}
	if deps.Recorder == nil {
		deps.Recorder = nopRecorder{}
	}
	logger = logger.With().Str("component", "scanner").Logger()

	return &Scanner{
		cfg:        cfg,
		deps:       deps,
		filter:     filter.New(cfg.Filter),
		tracker:    downtime.NewTracker(logger),
		states:     make(map[string]models.MachineState),
		firstCycle: true,
		now:        time.Now,
		fuse:       fusion.Fuse,
		Logger:     logger,
	}
}

// Restore seeds the per-machine memory, typically from the last snapshot.
func (s *Scanner) Restore(states map[string]models.MachineState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, st := range states {
		s.states[id] = st
	}
}

// States returns a copy of the per-machine memory.
func (s *Scanner) States() map[string]models.MachineState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]models.MachineState, len(s.states))
	for id, st := range s.states {
		out[id] = st
	}
	return out
}

// Summary returns the fleet summary of the last cycle.
func (s *Scanner) Summary() models.FleetSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.summary
}

// OpenCycles returns the downtime cycles that have not closed yet.
func (s *Scanner) OpenCycles() []models.DowntimeCycle {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tracker.OpenCycles()
}

// Run executes cycles until ctx is cancelled. Each cycle starts one interval after the
// previous one started, or immediately when a cycle overran the interval.
func (s *Scanner) Run(ctx context.Context) error {
	s.Logger.Info().Dur("interval", s.cfg.Interval).Msg("Scan loop started")

	for {
		report := s.RunCycle(ctx)

		wait := max(0, s.cfg.Interval-report.Elapsed)
		select {
		case <-ctx.Done():
			s.persistStopping()
			s.Logger.Info().Msg("Scan loop stopped")
			return nil
		case <-time.After(wait):
		}
	}
}

// RunCycle executes one scan cycle.
func (s *Scanner) RunCycle(ctx context.Context) CycleReport {
	started := time.Now()
	report := CycleReport{Started: s.now()}

	machines, err := s.deps.Machines.Load()
	if err != nil {
		s.Logger.Warn().Err(err).Msg("Failed to load machines, skipping cycle")
		machines = nil
	}
	report.Machines = len(machines)
	if len(machines) == 0 {
		report.Elapsed = time.Since(started)
		return report
	}

	infra, tags, feed := s.acquire(ctx, machines)
	if err := ctx.Err(); err != nil {
		// Reads cut short by cancellation say nothing about the machines.
		s.Logger.Info().Err(err).Msg("Scan cycle interrupted, discarding results")
		report.Aborted = true
		report.Elapsed = time.Since(started)
		return report
	}
	now := s.now()

	s.mu.Lock()
	configured := make(map[string]struct{}, len(machines))
	tagFailures := 0
	for _, machine := range machines {
		id := machine.ID()
		configured[id] = struct{}{}

		in := fusion.Input{Infra: infra[id]}
		if in.Infra == "" {
			in.Infra = constants.InfraNoNetwork
		}
		if v, ok := tags[id]; ok {
			in.Tag = &v
		} else if machine.HasTag() {
			tagFailures++
		}
		if c, ok := feed[machine.ClassificationKey()]; ok {
			in.Classification = &c
		}

		prev, known := s.states[id]
		if !known {
			prev = models.NewMachineState(report.Started)
		}

		decision, closed := s.evaluate(machine, in, prev, now)
		s.states[id] = decision.State
		report.Changed = report.Changed || decision.Changed || !known

		if decision.StatusChanged {
			report.Events = append(report.Events, models.TransitionEvent{
				Timestamp: now,
				Machine:   id,
				Previous:  decision.Previous,
				Next:      decision.State.Status,
			})
			s.Logger.Info().
				Str("machine", id).
				Str("from", decision.Previous.String()).
				Str("to", decision.State.Status.String()).
				Msg("Status changed")
		}
		if closed != nil {
			report.Closed = append(report.Closed, *closed)
		}
	}

	for id := range s.states {
		if _, ok := configured[id]; !ok {
			delete(s.states, id)
			s.deps.Recorder.RemoveMachine(id)
			report.Changed = true
		}
	}
	s.tracker.Forget(configured)
	s.machines = machines
	s.summary = summarize(machines, s.states)
	report.Summary = s.summary
	s.mu.Unlock()

	s.deps.Recorder.TagReadFailures(tagFailures)
	s.persistHistory(ctx, report)

	if s.firstCycle {
		s.notify(models.Notification{
			Message:   "System restarted",
			Reason:    constants.ReasonSystem,
			Timestamp: now,
		})
	}

	if s.firstCycle || report.Changed || now.Sub(s.lastSave) > s.cfg.SnapshotMaxAge {
		report.Saved = s.saveSnapshot(now, constants.ServiceStateRunning)
	}
	s.firstCycle = false

	s.publishMetrics(report)
	report.Elapsed = time.Since(started)
	s.deps.Recorder.ObserveScan(report.Elapsed)

	s.Logger.Debug().
		Int("machines", report.Machines).
		Int("producing", report.Summary.Producing).
		Int("critical", report.Summary.Critical).
		Int("events", len(report.Events)).
		Dur("elapsed", report.Elapsed).
		Msg("Scan cycle finished")
	return report
}

// acquire runs the prober, the tag reader and the classification fetch concurrently.
func (s *Scanner) acquire(ctx context.Context, machines []models.Machine) (map[string]string, map[string]bool, models.ClassificationMap) {
	var (
		wg    sync.WaitGroup
		infra map[string]string
		tags  map[string]bool
		feed  models.ClassificationMap
	)

	wg.Add(3)
	go func() {
		defer wg.Done()
		infra = s.deps.Prober.ProbeAll(ctx, machines)
	}()
	go func() {
		defer wg.Done()
		tags = s.deps.Tags.ReadAll(ctx, machines)
	}()
	go func() {
		defer wg.Done()
		feed = s.deps.Classification.Fetch(ctx)
	}()
	wg.Wait()

	return infra, tags, feed
}

// evaluate runs fusion, filter and tracker for one machine. A panic anywhere in that chain
// is contained to this machine, which is then treated as a read error.
func (s *Scanner) evaluate(machine models.Machine, in fusion.Input, prev models.MachineState, now time.Time) (filter.Decision, *models.DowntimeCycle) {
	decision, closed, err := s.tryEvaluate(machine, in, prev, now)
	if err == nil {
		return decision, closed
	}

	s.Logger.Error().Err(err).Str("machine", machine.ID()).Msg("Machine processing failed, marking as read error")
	s.deps.Recorder.MachinePanic()

	decision = s.filter.Apply(prev, fusion.Result{Status: models.StatusReadError, Color: constants.ColorOrange}, now)
	func() {
		defer func() {
			if r := recover(); r != nil {
				s.Logger.Error().Interface("panic", r).Str("machine", machine.ID()).Msg("Downtime tracking failed")
			}
		}()
		closed = s.tracker.Observe(machine, prev, decision.State, now)
	}()
	return decision, closed
}

func (s *Scanner) tryEvaluate(machine models.Machine, in fusion.Input, prev models.MachineState, now time.Time) (d filter.Decision, closed *models.DowntimeCycle, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	fused := s.fuse(in)
	d = s.filter.Apply(prev, fused, now)
	closed = s.tracker.Observe(machine, prev, d.State, now)
	return d, closed, nil
}

func (s *Scanner) persistHistory(ctx context.Context, report CycleReport) {
	for _, event := range report.Events {
		s.deps.Recorder.Transition(event.Previous, event.Next)
		if s.deps.History == nil {
			continue
		}
		if err := s.deps.History.RecordEvent(ctx, event); err != nil {
			s.Logger.Error().Err(err).Str("machine", event.Machine).Msg("Failed to record transition")
			s.deps.Recorder.PersistenceError("history")
		}
	}

	for _, cycle := range report.Closed {
		s.deps.Recorder.CycleClosed(cycle)
		if s.deps.History != nil {
			if err := s.deps.History.SaveCycle(ctx, cycle); err != nil {
				s.Logger.Error().Err(err).Str("machine", cycle.Machine).Msg("Failed to save downtime cycle")
				s.deps.Recorder.PersistenceError("history")
			}
		}
		s.notify(downtime.RecoveryNotification(cycle))
	}
}

func (s *Scanner) notify(n models.Notification) {
	if s.deps.Notifier == nil {
		return
	}
	s.deps.Notifier.Notify(n)
}

func (s *Scanner) saveSnapshot(now time.Time, serviceState string) bool {
	if s.deps.Snapshots == nil {
		return false
	}

	s.mu.RLock()
	snapshot := storage.BuildSnapshot(s.cfg.SiteID, s.machines, s.states, now)
	s.mu.RUnlock()
	snapshot.Metadata.ServiceState = serviceState

	if err := s.deps.Snapshots.Save(snapshot); err != nil {
		s.Logger.Error().Err(err).Msg("Failed to save snapshot")
		s.deps.Recorder.PersistenceError("snapshot")
		return false
	}
	s.lastSave = now
	return true
}

// persistStopping writes a final snapshot flagged as stopping so viewers can tell a clean
// shutdown from a crash.
func (s *Scanner) persistStopping() {
	s.mu.RLock()
	empty := len(s.machines) == 0
	s.mu.RUnlock()
	if empty {
		return
	}
	s.saveSnapshot(s.now(), constants.ServiceStateStopping)
}

func (s *Scanner) publishMetrics(report CycleReport) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for id, st := range s.states {
		s.deps.Recorder.SetMachineStatus(id, st.Status)
	}
	s.deps.Recorder.SetFleet(report.Summary)
}

func summarize(machines []models.Machine, states map[string]models.MachineState) models.FleetSummary {
	summary := models.FleetSummary{ByStatus: make(map[models.Status]int, len(models.AllStatuses))}
	for _, m := range machines {
		st, ok := states[m.ID()]
		if !ok {
			continue
		}
		summary.Total++
		summary.ByStatus[st.Status]++
		switch {
		case st.Status.IsProducing():
			summary.Producing++
		case st.Status == models.StatusStopped:
			summary.Stopped++
		}
		if st.Status.IsCritical() {
			summary.Critical++
		}
	}
	if summary.Total > 0 {
		summary.Availability = math.Round(float64(summary.Producing)/float64(summary.Total)*10000) / 100
	}
	return summary
}

type nopRecorder struct{}

func (nopRecorder) ObserveScan(time.Duration)               {}
func (nopRecorder) SetMachineStatus(string, models.Status)  {}
func (nopRecorder) RemoveMachine(string)                    {}
func (nopRecorder) SetFleet(models.FleetSummary)            {}
func (nopRecorder) Transition(models.Status, models.Status) {}
func (nopRecorder) CycleClosed(models.DowntimeCycle)        {}
func (nopRecorder) TagReadFailures(int)                     {}
func (nopRecorder) MachinePanic()                           {}
func (nopRecorder) PersistenceError(string)                 {}
