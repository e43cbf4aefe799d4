// Package tagreader reads the boolean "running" tag of every machine over its automation
// protocol. Each read uses its own short-lived session which is always closed afterwards.
package tagreader

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benmeehan/loomwatch/internal/constants"
	"github.com/benmeehan/loomwatch/internal/models"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrUnsupportedProtocol is returned for a communication type without a registered driver.
	ErrUnsupportedProtocol = errors.New("unsupported protocol")
	// ErrNotBoolean is returned when a tag value cannot be interpreted as a boolean.
	ErrNotBoolean = errors.New("tag value is not boolean")
)

// Driver reads one boolean tag from one endpoint. Implementations open a fresh session for
// every call and close it before returning.
type Driver interface {
	ReadBool(ctx context.Context, endpoint, tag string) (bool, error)
}

// Config bounds the reader.
type Config struct {
	MaxConcurrency int
	ConnectTimeout time.Duration
	SessionTimeout time.Duration
}

// Reader dispatches reads to the driver registered for each communication type.
type Reader struct {
	cfg     Config
	drivers map[models.CommunicationType]Driver
	Logger  zerolog.Logger

	closeGrace time.Duration
}

// NewReader creates a Reader with no drivers registered.
func NewReader(cfg Config, logger zerolog.Logger) *Reader {
	if cfg.MaxConcurrency < 1 {
		cfg.MaxConcurrency = constants.DefaultTagConcurrency
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = constants.DefaultConnectTimeout
	}
	if cfg.SessionTimeout <= 0 {
		cfg.SessionTimeout = constants.DefaultSessionTimeout
	}
	return &Reader{
		cfg:        cfg,
		drivers:    make(map[models.CommunicationType]Driver),
		Logger:     logger.With().Str("component", "tagreader").Logger(),
		closeGrace: constants.DriverCloseGrace,
	}
}

// NewDefaultReader creates a Reader with the OPC UA, Modbus TCP and MQTT drivers registered.
func NewDefaultReader(cfg Config, logger zerolog.Logger) *Reader {
	r := NewReader(cfg, logger)
	r.Register(models.CommunicationOPCUA, NewOPCUADriver(r.cfg.ConnectTimeout, r.cfg.SessionTimeout))
	r.Register(models.CommunicationModbusTCP, NewModbusDriver(r.cfg.ConnectTimeout))
	r.Register(models.CommunicationMQTT, NewMQTTDriver(r.cfg.ConnectTimeout))
	return r
}

// Register adds or replaces the driver for a communication type.
func (r *Reader) Register(kind models.CommunicationType, driver Driver) {
	r.drivers[kind] = driver
}

// ReadAll reads the tag of every machine concurrently. The result only contains the
// machines whose read succeeded; a missing key means the value is unknown this cycle.
func (r *Reader) ReadAll(ctx context.Context, machines []models.Machine) map[string]bool {
	results := make(map[string]bool, len(machines))
	var mu sync.Mutex

	var g errgroup.Group
	g.SetLimit(r.cfg.MaxConcurrency)

	for _, machine := range machines {
		if !machine.HasTag() {
			continue
		}
		g.Go(func() error {
			value, err := r.Read(ctx, machine)
			if err != nil {
				r.Logger.Debug().Err(err).Str("machine", machine.ID()).Msg("Tag read failed")
				return nil
			}

			mu.Lock()
			results[machine.ID()] = value
			mu.Unlock()
			return nil
		})
	}

	_ = g.Wait()
	return results
}

// Read reads the running tag of one machine within the session timeout.
func (r *Reader) Read(ctx context.Context, machine models.Machine) (value bool, err error) {
	if !machine.HasTag() {
		return false, fmt.Errorf("machine %s has no tag configured", machine.ID())
	}

	comm := machine.Communication
	driver, ok := r.drivers[comm.Type]
	if !ok {
		return false, fmt.Errorf("%w: %q", ErrUnsupportedProtocol, comm.Type)
	}

	ctx, cancel := context.WithTimeout(ctx, r.cfg.SessionTimeout)
	defer cancel()

	type outcome struct {
		value bool
		err   error
	}
	done := make(chan outcome, 1)

	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- outcome{err: fmt.Errorf("driver panic: %v", p)}
			}
		}()
		v, err := driver.ReadBool(ctx, comm.Endpoint, comm.Tag)
		done <- outcome{value: v, err: err}
	}()

	select {
	case res := <-done:
		return res.value, res.err
	case <-ctx.Done():
		err := fmt.Errorf("reading %s from %s: %w", comm.Tag, comm.Endpoint, ctx.Err())
		// Give the driver time to close its session before the result is handed back.
		select {
		case <-done:
		case <-time.After(r.closeGrace):
			r.Logger.Warn().Str("machine", machine.ID()).Msg("Driver did not return after cancellation")
		}
		return false, err
	}
}
