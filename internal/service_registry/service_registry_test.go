package service_registry

import (
	"context"
	"errors"
	"testing"

	"github.com/benmeehan/loomwatch/internal/mocks"
	"github.com/benmeehan/loomwatch/internal/services"
	"github.com/benmeehan/loomwatch/internal/telemetry"
	"github.com/benmeehan/loomwatch/internal/utils"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type orderService struct {
	name     string
	log      *[]string
	startErr error
}

func (s *orderService) Start() error {
	if s.startErr != nil {
		return s.startErr
	}
	*s.log = append(*s.log, "start "+s.name)
	return nil
}

func (s *orderService) Stop() error {
	*s.log = append(*s.log, "stop "+s.name)
	return nil
}

type idleRunner struct{}

func (idleRunner) Run(ctx context.Context) error {
	<-ctx.Done()
	return nil
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, string, []byte) error { return nil }

func testConfig() *utils.Config {
	cfg := &utils.Config{}
	cfg.Site.ID = "site-1"
	cfg.ApplyDefaults()
	return cfg
}

func TestServiceRegistry_StartStopOrder(t *testing.T) {
	// Setup
	var log []string
	sr := NewServiceRegistry(nil, zerolog.Nop())
	sr.RegisterService("a", &orderService{name: "a", log: &log})
	sr.RegisterService("b", &orderService{name: "b", log: &log})
	sr.RegisterService("a", &orderService{name: "dup", log: &log})

	// Execute
	require.NoError(t, sr.StartServices())
	require.NoError(t, sr.StopServices())

	// Assert
	assert.Equal(t, []string{"start a", "start b", "stop b", "stop a"}, log)
}

func TestServiceRegistry_StartFailureRollsBack(t *testing.T) {
	// Setup
	var log []string
	sr := NewServiceRegistry(nil, zerolog.Nop())
	sr.RegisterService("a", &orderService{name: "a", log: &log})
	sr.RegisterService("b", &orderService{name: "b", log: &log, startErr: errors.New("port in use")})

	// Execute
	err := sr.StartServices()

	// Assert
	assert.ErrorContains(t, err, "failed to start b")
	assert.Equal(t, []string{"start a", "stop a"}, log)
}

func TestServiceRegistry_RegisterServices(t *testing.T) {
	// Setup
	cfg := testConfig()
	cfg.MQTT.Enabled = true
	cfg.Services.Metrics.Enabled = true
	cfg.Services.Metrics.Address = "127.0.0.1:0"
	cfg.Services.Heartbeat.Enabled = true
	cfg.Services.Notifier.Enabled = true

	client := new(mocks.MockMQTTClient)
	metrics := telemetry.NewMetrics()
	notifier := BuildNotifier(cfg, client, nil, metrics, zerolog.Nop())
	require.NotNil(t, notifier)

	sr := NewServiceRegistry(client, zerolog.Nop())

	// Execute
	err := sr.RegisterServices(cfg, Dependencies{
		Runner:   idleRunner{},
		Notifier: notifier,
		Metrics:  metrics,
	})

	// Assert
	require.NoError(t, err)
	assert.Equal(t, []string{"metrics", "notifier", "heartbeat", "monitor"}, sr.Names())
}

func TestServiceRegistry_RegisterServicesMinimal(t *testing.T) {
	// Setup
	sr := NewServiceRegistry(nil, zerolog.Nop())

	// Execute
	err := sr.RegisterServices(testConfig(), Dependencies{Runner: idleRunner{}})

	// Assert
	require.NoError(t, err)
	assert.Equal(t, []string{"monitor"}, sr.Names())
}

func TestServiceRegistry_HeartbeatWithoutMQTT(t *testing.T) {
	// Setup
	cfg := testConfig()
	cfg.Services.Heartbeat.Enabled = true
	sr := NewServiceRegistry(nil, zerolog.Nop())

	// Execute
	err := sr.RegisterServices(cfg, Dependencies{Runner: idleRunner{}})

	// Assert
	assert.Error(t, err)
}

func TestBuildNotifier(t *testing.T) {
	cfg := testConfig()
	assert.Nil(t, BuildNotifier(cfg, nil, nil, nil, zerolog.Nop()))

	cfg.Services.Notifier.Enabled = true
	cfg.Services.Notifier.MinMinutes = 2
	n := BuildNotifier(cfg, new(mocks.MockMQTTClient), nopPublisher{}, nil, zerolog.Nop())
	require.NotNil(t, n)
	require.Len(t, n.Sinks, 2)
	assert.IsType(t, &services.MQTTSink{}, n.Sinks[0])
	assert.Equal(t, "nats", n.Sinks[1].Name())
	assert.Equal(t, 2.0, n.MinMinutes)
}
