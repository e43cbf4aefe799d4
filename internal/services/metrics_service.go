package services

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// MetricsService serves the Prometheus exposition endpoint at /metrics.
type MetricsService struct {
	address string
	handler http.Handler
	logger  zerolog.Logger

	server *http.Server
	addr   net.Addr
	wg     sync.WaitGroup
}

// NewMetricsService creates the service. handler is usually telemetry.Metrics.Handler().
func NewMetricsService(address string, handler http.Handler, logger zerolog.Logger) *MetricsService {
	return &MetricsService{
		address: address,
		handler: handler,
		logger:  logger.With().Str("service", "metrics").Logger(),
	}
}

// Start binds the listen address and serves in the background.
func (m *MetricsService) Start() error {
	if m.server != nil {
		m.logger.Warn().Msg("MetricsService is already running")
		return errors.New("metrics service is already running")
	}

	listener, err := net.Listen("tcp", m.address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", m.address, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", m.handler)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	m.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	m.addr = listener.Addr()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		if err := m.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.logger.Error().Err(err).Msg("Metrics server failed")
		}
	}()

	m.logger.Info().Str("address", m.addr.String()).Msg("MetricsService started successfully")
	return nil
}

// Addr returns the bound address, or nil before Start.
func (m *MetricsService) Addr() net.Addr {
	return m.addr
}

// Stop shuts the server down, waiting up to five seconds for open requests.
func (m *MetricsService) Stop() error {
	if m.server == nil {
		m.logger.Warn().Msg("MetricsService is not running")
		return errors.New("metrics service is not running")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := m.server.Shutdown(ctx)
	m.wg.Wait()

	m.server = nil
	m.addr = nil

	m.logger.Info().Msg("MetricsService stopped successfully")
	return err
}
