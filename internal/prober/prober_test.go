package prober

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benmeehan/loomwatch/internal/constants"
	"github.com/benmeehan/loomwatch/internal/models"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pingSet(up ...string) PingFunc {
	set := map[string]bool{}
	for _, h := range up {
		set[h] = true
	}
	return func(_ context.Context, host string, _ time.Duration) (bool, error) {
		return set[host], nil
	}
}

func dialSet(open ...string) DialFunc {
	set := map[string]bool{}
	for _, a := range open {
		set[a] = true
	}
	return func(_ context.Context, address string, _ time.Duration) error {
		if set[address] {
			return nil
		}
		return errors.New("connection refused")
	}
}

func TestProbeAll_Labels(t *testing.T) {
	p := NewProber(Config{Workers: 2, Timeout: 10 * time.Millisecond}, zerolog.Nop()).
		WithFuncs(pingSet("10.0.0.1", "10.0.0.2", "10.0.0.4"), dialSet("10.0.0.1:4840"))

	machines := []models.Machine{
		{Name: "online", Address: "10.0.0.1", Port: 4840},
		{Name: "port-closed", Address: "10.0.0.2", Port: 4840},
		{Name: "down", Address: "10.0.0.3", Port: 4840},
		{Name: "no-port", Address: "10.0.0.4"},
		{Name: "no-address"},
	}

	results := p.ProbeAll(context.Background(), machines)
	assert.Equal(t, map[string]string{
		"online":      constants.InfraOnline,
		"port-closed": constants.InfraFailedPort,
		"down":        constants.InfraNoNetwork,
		"no-port":     constants.InfraOnline,
		"no-address":  constants.InfraNoNetwork,
	}, results)
}

func TestProbeAll_Empty(t *testing.T) {
	p := NewProber(Config{}, zerolog.Nop())
	assert.Empty(t, p.ProbeAll(context.Background(), nil))
}

func TestProbe_PingErrorDegradesToNoNetwork(t *testing.T) {
	p := NewProber(Config{}, zerolog.Nop()).WithFuncs(
		func(context.Context, string, time.Duration) (bool, error) { return false, errors.New("socket: permission denied") },
		dialSet(),
	)
	assert.Equal(t, constants.InfraNoNetwork, p.Probe(context.Background(), models.Machine{Name: "m", Address: "10.0.0.1"}))
}

func TestProbe_TCPFallback(t *testing.T) {
	p := NewProber(Config{TCPFallbackPort: 80}, zerolog.Nop()).
		WithFuncs(pingSet(), dialSet("10.0.0.1:80"))

	assert.Equal(t, constants.InfraOnline, p.Probe(context.Background(), models.Machine{Name: "m", Address: "10.0.0.1"}))
	assert.Equal(t, constants.InfraNoNetwork, p.Probe(context.Background(), models.Machine{Name: "m", Address: "10.0.0.2"}))
}

func TestProbe_PanicIsContained(t *testing.T) {
	p := NewProber(Config{}, zerolog.Nop()).WithFuncs(
		func(context.Context, string, time.Duration) (bool, error) { panic("boom") },
		dialSet(),
	)
	assert.Equal(t, constants.InfraNoNetwork, p.Probe(context.Background(), models.Machine{Name: "m", Address: "10.0.0.1"}))
}

func TestProbeAll_BoundedConcurrency(t *testing.T) {
	var inFlight, peak int32
	ping := func(context.Context, string, time.Duration) (bool, error) {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			old := atomic.LoadInt32(&peak)
			if n <= old || atomic.CompareAndSwapInt32(&peak, old, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		return true, nil
	}

	p := NewProber(Config{Workers: 3}, zerolog.Nop()).WithFuncs(ping, dialSet())
	machines := make([]models.Machine, 20)
	for i := range machines {
		machines[i] = models.Machine{Name: fmt.Sprintf("m%02d", i), Address: fmt.Sprintf("10.0.0.%d", i)}
	}

	results := p.ProbeAll(context.Background(), machines)
	assert.Len(t, results, 20)
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(3))
}

func TestTCPDial(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()

	port := ln.Addr().(*net.TCPAddr).Port
	assert.NoError(t, TCPDial(context.Background(), net.JoinHostPort("127.0.0.1", strconv.Itoa(port)), time.Second))

	ln2, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	closedAddr := ln2.Addr().String()
	ln2.Close()
	assert.Error(t, TCPDial(context.Background(), closedAddr, 200*time.Millisecond))
}
