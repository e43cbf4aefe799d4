package storage

import (
	"errors"
	"fmt"
	"time"

	"github.com/benmeehan/loomwatch/internal/constants"
	"github.com/benmeehan/loomwatch/internal/models"
	"github.com/benmeehan/loomwatch/pkg/file"
	"github.com/rs/zerolog"
)

// SnapshotStore reads and atomically replaces the snapshot document.
type SnapshotStore struct {
	path       string
	fileClient file.FileOperations
	Logger     zerolog.Logger
}

// NewSnapshotStore creates a store for the document at path.
func NewSnapshotStore(path string, fileClient file.FileOperations, logger zerolog.Logger) *SnapshotStore {
	return &SnapshotStore{
		path:       path,
		fileClient: fileClient,
		Logger:     logger.With().Str("component", "snapshot").Logger(),
	}
}

// Path returns the location of the snapshot document.
func (s *SnapshotStore) Path() string {
	return s.path
}

// Load reads the snapshot. It returns ErrNotFound when no snapshot has been written yet.
func (s *SnapshotStore) Load() (models.Snapshot, error) {
	var snapshot models.Snapshot

	exists, err := s.fileClient.IsFileExists(s.path)
	if err != nil {
		return snapshot, fmt.Errorf("failed to stat snapshot: %w", err)
	}
	if !exists {
		return snapshot, ErrNotFound
	}

	if err := s.fileClient.ReadJsonFile(s.path, &snapshot); err != nil {
		return snapshot, fmt.Errorf("failed to read snapshot %s: %w", s.path, err)
	}
	if snapshot.Machines == nil {
		snapshot.Machines = make(map[string]models.MachineRecord)
	}
	return snapshot, nil
}

// Save replaces the snapshot document.
func (s *SnapshotStore) Save(snapshot models.Snapshot) error {
	if err := s.fileClient.WriteJsonFile(s.path, snapshot); err != nil {
		return fmt.Errorf("failed to write snapshot %s: %w", s.path, err)
	}
	return nil
}

// Restore loads the snapshot and converts it into per-machine memory. A missing or malformed
// snapshot yields an empty map; unknown statuses become UNKNOWN.
func (s *SnapshotStore) Restore(now time.Time) map[string]models.MachineState {
	states := make(map[string]models.MachineState)

	snapshot, err := s.Load()
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.Logger.Info().Str("path", s.path).Msg("No snapshot found, starting fresh")
		} else {
			s.Logger.Warn().Err(err).Msg("Ignoring unreadable snapshot")
		}
		return states
	}

	for name, record := range snapshot.Machines {
		state, ok := StateFromRecord(record, now)
		if !ok {
			s.Logger.Warn().Str("machine", name).Str("status", record.Status).Msg("Unknown status in snapshot")
		}
		states[name] = state
	}

	s.Logger.Info().Int("machines", len(states)).Msg("Snapshot restored")
	return states
}

// BuildSnapshot assembles the document for the configured machines. States of machines that
// are no longer configured are left out.
func BuildSnapshot(siteID string, machines []models.Machine, states map[string]models.MachineState, now time.Time) models.Snapshot {
	snapshot := models.Snapshot{
		Metadata: models.SnapshotMetadata{
			LastHeartbeat: now,
			ServiceState:  constants.ServiceStateRunning,
			Version:       constants.SnapshotVersion,
			SiteID:        siteID,
		},
		Machines: make(map[string]models.MachineRecord, len(machines)),
	}

	for _, machine := range machines {
		state, ok := states[machine.ID()]
		if !ok {
			continue
		}
		snapshot.Machines[machine.ID()] = RecordFromState(machine, state)
	}
	return snapshot
}

// RecordFromState converts machine memory into its snapshot entry.
func RecordFromState(machine models.Machine, state models.MachineState) models.MachineRecord {
	h := machine.Hierarchy()
	return models.MachineRecord{
		Status:       state.Status.String(),
		Detail:       state.Detail,
		Color:        state.Color,
		Since:        state.Since,
		FailureCount: state.FailureCount,
		Address:      machine.Address,
		Unit:         h.Unit,
		Plant:        h.Plant,
		Sector:       h.Sector,
	}
}

// StateFromRecord converts a snapshot entry back into machine memory. The second return
// value is false when the stored status is not recognised.
func StateFromRecord(record models.MachineRecord, now time.Time) (models.MachineState, bool) {
	status, ok := models.ParseStatus(record.Status)

	state := models.MachineState{
		Status:       status,
		Detail:       record.Detail,
		Color:        record.Color,
		Since:        record.Since,
		FailureCount: max(record.FailureCount, 0),
	}
	if !ok {
		state = models.NewMachineState(now)
	}
	if state.Since.IsZero() {
		state.Since = now
	}
	if state.Color == "" {
		state.Color = constants.ColorGray
	}
	return state, ok
}
