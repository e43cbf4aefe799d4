package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/benmeehan/loomwatch/internal/models"
	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// History persists closed downtime cycles and confirmed status transitions.
type History interface {
	SaveCycle(ctx context.Context, cycle models.DowntimeCycle) error
	RecordEvent(ctx context.Context, event models.TransitionEvent) error
	Cycle(ctx context.Context, id string) (models.DowntimeCycle, error)
	CyclesByMachine(ctx context.Context, machine string, from, to time.Time) ([]models.DowntimeCycle, error)
	CyclesByPeriod(ctx context.Context, from, to time.Time) ([]models.DowntimeCycle, error)
	RecentEvents(ctx context.Context, machine string, limit int) ([]models.TransitionEvent, error)
	Close() error
}

type downtimeCycleRow struct {
	ID                string    `gorm:"primaryKey;size:36"`
	Machine           string    `gorm:"size:128;not null;index:idx_cycles_machine_start,priority:1"`
	Unit              string    `gorm:"size:128"`
	Plant             string    `gorm:"size:128"`
	Sector            string    `gorm:"size:128"`
	StartedAt         time.Time `gorm:"not null;index:idx_cycles_machine_start,priority:2;index:idx_cycles_start"`
	EndedAt           time.Time `gorm:"not null"`
	DurationMinutes   float64
	DurationFormatted string `gorm:"size:32"`
	Reason            string `gorm:"size:255"`
	Shift             string `gorm:"size:16;index"`
}

func (downtimeCycleRow) TableName() string { return "downtime_cycles" }

type transitionEventRow struct {
	ID         uint      `gorm:"primaryKey"`
	OccurredAt time.Time `gorm:"not null;index:idx_events_machine_time,priority:2"`
	Machine    string    `gorm:"size:128;not null;index:idx_events_machine_time,priority:1"`
	Previous   string    `gorm:"size:32"`
	Next       string    `gorm:"size:32"`
}

func (transitionEventRow) TableName() string { return "transition_events" }

// SQLiteHistory is a History backed by a SQLite file in WAL mode, so a dashboard can read
// while the monitor writes.
type SQLiteHistory struct {
	db     *gorm.DB
	Logger zerolog.Logger
}

// OpenHistory opens (creating if needed) the history database at path. Use ":memory:" for a
// throwaway database.
func OpenHistory(path string, logger zerolog.Logger) (*SQLiteHistory, error) {
	if path != ":memory:" {
		if err := ensureParentDir(path); err != nil {
			return nil, err
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open history database %s: %w", path, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access database handle: %w", err)
	}
	// SQLite allows a single writer; one connection also keeps ":memory:" databases shared.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(0)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	} {
		if err := db.Exec(pragma).Error; err != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	if err := db.AutoMigrate(&downtimeCycleRow{}, &transitionEventRow{}); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to migrate history database: %w", err)
	}

	return &SQLiteHistory{
		db:     db,
		Logger: logger.With().Str("component", "history").Logger(),
	}, nil
}

// SaveCycle stores a closed cycle. Open cycles are rejected.
func (h *SQLiteHistory) SaveCycle(ctx context.Context, cycle models.DowntimeCycle) error {
	if cycle.IsOpen() {
		return fmt.Errorf("cycle %s of %s is still open", cycle.ID, cycle.Machine)
	}

	row := downtimeCycleRow{
		ID:                cycle.ID,
		Machine:           cycle.Machine,
		Unit:              cycle.Hierarchy.Unit,
		Plant:             cycle.Hierarchy.Plant,
		Sector:            cycle.Hierarchy.Sector,
		StartedAt:         cycle.Start.UTC(),
		EndedAt:           cycle.End.UTC(),
		DurationMinutes:   cycle.DurationMinutes,
		DurationFormatted: cycle.DurationFormatted,
		Reason:            cycle.Reason,
		Shift:             string(cycle.Shift),
	}
	if err := h.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("failed to save downtime cycle %s: %w", cycle.ID, err)
	}
	return nil
}

// RecordEvent stores a confirmed status transition.
func (h *SQLiteHistory) RecordEvent(ctx context.Context, event models.TransitionEvent) error {
	row := transitionEventRow{
		OccurredAt: event.Timestamp.UTC(),
		Machine:    event.Machine,
		Previous:   event.Previous.String(),
		Next:       event.Next.String(),
	}
	if err := h.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("failed to record transition of %s: %w", event.Machine, err)
	}
	return nil
}

// Cycle returns one cycle by id, or ErrNotFound.
func (h *SQLiteHistory) Cycle(ctx context.Context, id string) (models.DowntimeCycle, error) {
	var row downtimeCycleRow
	err := h.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.DowntimeCycle{}, fmt.Errorf("cycle %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return models.DowntimeCycle{}, fmt.Errorf("failed to load cycle %s: %w", id, err)
	}
	return row.toModel(), nil
}

// CyclesByMachine returns the cycles of one machine that started in [from, to), oldest first.
func (h *SQLiteHistory) CyclesByMachine(ctx context.Context, machine string, from, to time.Time) ([]models.DowntimeCycle, error) {
	return h.findCycles(h.db.WithContext(ctx).Where("machine = ?", machine), from, to)
}

// CyclesByPeriod returns the cycles of every machine that started in [from, to), oldest first.
func (h *SQLiteHistory) CyclesByPeriod(ctx context.Context, from, to time.Time) ([]models.DowntimeCycle, error) {
	return h.findCycles(h.db.WithContext(ctx), from, to)
}

func (h *SQLiteHistory) findCycles(query *gorm.DB, from, to time.Time) ([]models.DowntimeCycle, error) {
	var rows []downtimeCycleRow
	err := query.
		Where("started_at >= ? AND started_at < ?", from.UTC(), to.UTC()).
		Order("started_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query downtime cycles: %w", err)
	}

	cycles := make([]models.DowntimeCycle, 0, len(rows))
	for _, row := range rows {
		cycles = append(cycles, row.toModel())
	}
	return cycles, nil
}

// RecentEvents returns the latest transitions, newest first. An empty machine means all machines.
func (h *SQLiteHistory) RecentEvents(ctx context.Context, machine string, limit int) ([]models.TransitionEvent, error) {
	if limit <= 0 {
		limit = 100
	}

	query := h.db.WithContext(ctx).Order("occurred_at DESC").Order("id DESC").Limit(limit)
	if machine != "" {
		query = query.Where("machine = ?", machine)
	}

	var rows []transitionEventRow
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to query transition events: %w", err)
	}

	events := make([]models.TransitionEvent, 0, len(rows))
	for _, row := range rows {
		prev, _ := models.ParseStatus(row.Previous)
		next, _ := models.ParseStatus(row.Next)
		events = append(events, models.TransitionEvent{
			Timestamp: row.OccurredAt,
			Machine:   row.Machine,
			Previous:  prev,
			Next:      next,
		})
	}
	return events, nil
}

// Close releases the database.
func (h *SQLiteHistory) Close() error {
	sqlDB, err := h.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (r downtimeCycleRow) toModel() models.DowntimeCycle {
	end := r.EndedAt
	return models.DowntimeCycle{
		ID:      r.ID,
		Machine: r.Machine,
		Hierarchy: models.Hierarchy{
			Unit:   r.Unit,
			Plant:  r.Plant,
			Sector: r.Sector,
		},
		Start:             r.StartedAt,
		End:               &end,
		DurationMinutes:   r.DurationMinutes,
		DurationFormatted: r.DurationFormatted,
		Reason:            r.Reason,
		Shift:             models.Shift(r.Shift),
	}
}
