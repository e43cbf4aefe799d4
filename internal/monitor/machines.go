package monitor

import (
	"fmt"
	"strings"

	"github.com/benmeehan/loomwatch/internal/models"
	"github.com/benmeehan/loomwatch/internal/utils"
	"github.com/benmeehan/loomwatch/pkg/file"
	"github.com/rs/zerolog"
)

// MachineSource provides the configured machines. It is consulted at the start of every
// cycle so edits take effect without a restart.
type MachineSource interface {
	Load() ([]models.Machine, error)
}

// FileMachineSource reads the machines from a JSON array on disk.
type FileMachineSource struct {
	path       string
	fileClient file.FileOperations
	lastHash   string
	Logger     zerolog.Logger
}

// NewFileMachineSource creates a source for the file at path.
func NewFileMachineSource(path string, fileClient file.FileOperations, logger zerolog.Logger) *FileMachineSource {
	return &FileMachineSource{
		path:       path,
		fileClient: fileClient,
		Logger:     logger.With().Str("component", "machines").Logger(),
	}
}

// Load reads and sanitises the machines file. Entries without a name are skipped and
// duplicate names keep their first occurrence.
func (s *FileMachineSource) Load() ([]models.Machine, error) {
	var raw []models.Machine
	if err := s.fileClient.ReadJsonFile(s.path, &raw); err != nil {
		return nil, fmt.Errorf("failed to read machines file %s: %w", s.path, err)
	}

	if hash, err := s.fileClient.GetFileHash(s.path); err == nil {
		if s.lastHash != "" && hash != s.lastHash {
			s.Logger.Info().Str("path", s.path).Msg("Machines file changed, reloading")
		}
		s.lastHash = hash
	}

	return sanitizeMachines(raw, s.Logger), nil
}

func sanitizeMachines(raw []models.Machine, logger zerolog.Logger) []models.Machine {
	names := make([]string, 0, len(raw))
	machines := make([]models.Machine, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))

	for _, m := range raw {
		m.Name = strings.TrimSpace(m.Name)
		if m.Name == "" {
			logger.Warn().Str("address", m.Address).Msg("Skipping machine without a name")
			continue
		}
		names = append(names, m.Name)
		if _, dup := seen[m.Name]; dup {
			continue
		}
		seen[m.Name] = struct{}{}
		machines = append(machines, m)
	}

	if dups := utils.Duplicates(names); len(dups) > 0 {
		logger.Warn().Strs("machines", dups).Msg("Duplicate machine names, keeping the first entry")
	}
	return machines
}

// StaticMachineSource always returns the same machines.
type StaticMachineSource []models.Machine

// Load implements MachineSource.
func (s StaticMachineSource) Load() ([]models.Machine, error) {
	return s, nil
}
