// Package prober checks the network reachability of every machine and, when the host
// answers, whether its protocol port accepts connections.
package prober

import (
	"context"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/benmeehan/loomwatch/internal/constants"
	"github.com/benmeehan/loomwatch/internal/models"
	"github.com/benmeehan/loomwatch/internal/utils"
	probing "github.com/prometheus-community/pro-bing"
	"github.com/rs/zerolog"
)

// PingFunc sends one echo request and reports whether a reply arrived within timeout.
type PingFunc func(ctx context.Context, host string, timeout time.Duration) (bool, error)

// DialFunc opens and immediately closes a TCP connection to address.
type DialFunc func(ctx context.Context, address string, timeout time.Duration) error

// Config controls how machines are probed.
type Config struct {
	Workers         int
	Timeout         time.Duration
	Privileged      bool
	TCPFallbackPort int
}

// Prober probes machines concurrently on a bounded worker pool.
type Prober struct {
	cfg    Config
	ping   PingFunc
	dial   DialFunc
	Logger zerolog.Logger
}

// NewProber creates a Prober using ICMP echo and TCP connects.
func NewProber(cfg Config, logger zerolog.Logger) *Prober {
	if cfg.Workers < 1 {
		cfg.Workers = constants.DefaultProbeWorkers
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = constants.DefaultProbeTimeout
	}
	return &Prober{
		cfg:    cfg,
		ping:   ICMPPing(cfg.Privileged),
		dial:   TCPDial,
		Logger: logger.With().Str("component", "prober").Logger(),
	}
}

// WithFuncs replaces the ping and dial implementations.
func (p *Prober) WithFuncs(ping PingFunc, dial DialFunc) *Prober {
	if ping != nil {
		p.ping = ping
	}
	if dial != nil {
		p.dial = dial
	}
	return p
}

// ProbeAll probes every machine and returns its connectivity label keyed by machine id.
// Every machine gets a label; failures degrade to the negative result.
func (p *Prober) ProbeAll(ctx context.Context, machines []models.Machine) map[string]string {
	results := make(map[string]string, len(machines))
	if len(machines) == 0 {
		return results
	}

	var mu sync.Mutex
	tasks := make([]func(), 0, len(machines))
	for _, machine := range machines {
		tasks = append(tasks, func() {
			label := p.Probe(ctx, machine)

			mu.Lock()
			defer mu.Unlock()
			results[machine.ID()] = label
		})
	}

	utils.RunBatch(p.cfg.Workers, tasks)
	return results
}

// Probe returns the connectivity label of one machine.
func (p *Prober) Probe(ctx context.Context, machine models.Machine) (label string) {
	logger := p.Logger.With().Str("machine", machine.ID()).Str("address", machine.Address).Logger()

	defer func() {
		if r := recover(); r != nil {
			logger.Error().Interface("panic", r).Msg("Probe panicked")
			label = constants.InfraNoNetwork
		}
	}()

	if machine.Address == "" {
		logger.Debug().Msg("No address configured")
		return constants.InfraNoNetwork
	}

	if !p.reachable(ctx, machine.Address, logger) {
		return constants.InfraNoNetwork
	}

	if machine.Port <= 0 {
		return constants.InfraOnline
	}

	address := net.JoinHostPort(machine.Address, strconv.Itoa(machine.Port))
	if err := p.dial(ctx, address, p.cfg.Timeout); err != nil {
		logger.Debug().Err(err).Int("port", machine.Port).Msg("Protocol port check failed")
		return constants.InfraFailedPort
	}

	return constants.InfraOnline
}

func (p *Prober) reachable(ctx context.Context, host string, logger zerolog.Logger) bool {
	ok, err := p.ping(ctx, host, p.cfg.Timeout)
	if err != nil {
		logger.Debug().Err(err).Msg("Ping failed")
	}
	if ok {
		return true
	}

	if p.cfg.TCPFallbackPort > 0 {
		address := net.JoinHostPort(host, strconv.Itoa(p.cfg.TCPFallbackPort))
		if err := p.dial(ctx, address, p.cfg.Timeout); err == nil {
			logger.Debug().Int("port", p.cfg.TCPFallbackPort).Msg("Host reachable through TCP fallback")
			return true
		}
	}

	return false
}

// ICMPPing returns a PingFunc backed by pro-bing. Unprivileged mode uses UDP ping sockets,
// which need net.ipv4.ping_group_range on Linux.
func ICMPPing(privileged bool) PingFunc {
	return func(ctx context.Context, host string, timeout time.Duration) (bool, error) {
		pinger, err := probing.NewPinger(host)
		if err != nil {
			return false, err
		}
		pinger.Count = 1
		pinger.Timeout = timeout
		pinger.SetPrivileged(privileged)

		if err := pinger.RunWithContext(ctx); err != nil {
			return false, err
		}
		return pinger.Statistics().PacketsRecv > 0, nil
	}
}

// TCPDial is the default DialFunc.
func TCPDial(ctx context.Context, address string, timeout time.Duration) error {
	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return err
	}
	return conn.Close()
}
