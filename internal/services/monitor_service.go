package services

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"
)

// Runner is a blocking loop that returns when ctx is cancelled.
type Runner interface {
	Run(ctx context.Context) error
}

// MonitorService runs the scan loop in the background.
type MonitorService struct {
	Runner Runner
	Logger zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewMonitorService wraps the scan loop as a service.
func NewMonitorService(runner Runner, logger zerolog.Logger) *MonitorService {
	return &MonitorService{
		Runner: runner,
		Logger: logger.With().Str("service", "monitor").Logger(),
	}
}

// Start launches the scan loop in a separate goroutine.
func (m *MonitorService) Start() error {
	if m.ctx != nil {
		m.Logger.Warn().Msg("MonitorService is already running")
		return errors.New("monitor service is already running")
	}

	m.ctx, m.cancel = context.WithCancel(context.Background())

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		if err := m.Runner.Run(m.ctx); err != nil {
			m.Logger.Error().Err(err).Msg("Scan loop exited with error")
		}
	}()

	m.Logger.Info().Msg("MonitorService started successfully")
	return nil
}

// Stop cancels the scan loop and waits for the final snapshot to be written.
func (m *MonitorService) Stop() error {
	if m.ctx == nil {
		m.Logger.Warn().Msg("MonitorService is not running")
		return errors.New("monitor service is not running")
	}

	m.cancel()
	m.wg.Wait()

	m.ctx = nil
	m.cancel = nil

	m.Logger.Info().Msg("MonitorService stopped successfully")
	return nil
}
