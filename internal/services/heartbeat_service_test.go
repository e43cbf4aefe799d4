package services_test

import (
	"sync"
	"testing"
	"time"

	"github.com/benmeehan/loomwatch/internal/constants"
	"github.com/benmeehan/loomwatch/internal/mocks"
	"github.com/benmeehan/loomwatch/internal/models"
	"github.com/benmeehan/loomwatch/internal/services"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type staticFleet models.FleetSummary

func (f staticFleet) Summary() models.FleetSummary { return models.FleetSummary(f) }

// TestHeartbeatService_StartStop tests the lifecycle guards of the HeartbeatService.
func TestHeartbeatService_StartStop(t *testing.T) {
	// Setup
	mockMQTTClient := new(mocks.MockMQTTClient)
	mockMQTTClient.On("Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(mocks.NewDoneToken(nil)).Maybe()

	h := services.NewHeartbeatService("test-topic", time.Second, "site-1", 1, mockMQTTClient, nil, models.HostMetricsConfig{}, zerolog.Nop())

	// Execute
	err := h.Start()

	// Assert
	assert.NoError(t, err)

	err = h.Start()
	assert.EqualError(t, err, "heartbeat service is already running")

	assert.NoError(t, h.Stop())

	err = h.Stop()
	assert.EqualError(t, err, "heartbeat service is not running")
}

// TestHeartbeatService_PublishesFleetAndHost tests the heartbeat payload.
func TestHeartbeatService_PublishesFleetAndHost(t *testing.T) {
	// Setup
	var (
		mu       sync.Mutex
		payloads [][]byte
	)
	mockMQTTClient := new(mocks.MockMQTTClient)
	mockMQTTClient.On("Publish", "loomwatch/site-1/heartbeat", byte(1), false, mock.Anything).
		Run(func(args mock.Arguments) {
			mu.Lock()
			defer mu.Unlock()
			payloads = append(payloads, args.Get(3).([]byte))
		}).
		Return(mocks.NewDoneToken(nil))

	fleet := staticFleet{Total: 4, Producing: 3, Stopped: 1, Availability: 75}
	h := services.NewHeartbeatService("loomwatch/site-1/heartbeat", 50*time.Millisecond, "site-1", 1,
		mockMQTTClient, fleet, models.HostMetricsConfig{MonitorGoroutines: true}, zerolog.Nop())

	// Execute
	require.NoError(t, h.Start())
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(payloads) > 0
	}, time.Second, 10*time.Millisecond)
	require.NoError(t, h.Stop())

	// Assert
	mu.Lock()
	defer mu.Unlock()
	var hb models.Heartbeat
	require.NoError(t, json.Unmarshal(payloads[0], &hb))
	assert.Equal(t, "site-1", hb.SiteID)
	assert.Equal(t, constants.ServiceStateRunning, hb.Status)
	assert.Equal(t, 3, hb.Fleet.Producing)
	assert.Equal(t, 75.0, hb.Fleet.Availability)
	require.NotNil(t, hb.Host)
	require.NotNil(t, hb.Host.Goroutines)
	assert.Nil(t, hb.Host.CPUUsage)
}
