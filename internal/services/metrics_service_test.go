package services_test

import (
	"fmt"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/benmeehan/loomwatch/internal/models"
	"github.com/benmeehan/loomwatch/internal/services"
	"github.com/benmeehan/loomwatch/internal/telemetry"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsService_ServesRegistry(t *testing.T) {
	// Setup
	metrics := telemetry.NewMetrics()
	metrics.SetMachineStatus("L-01", models.StatusProducing)
	m := services.NewMetricsService("127.0.0.1:0", metrics.Handler(), zerolog.Nop())
	require.NoError(t, m.Start())
	defer m.Stop()

	client := &http.Client{Timeout: 2 * time.Second}

	// Execute
	resp, err := client.Get(fmt.Sprintf("http://%s/metrics", m.Addr()))
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	// Assert
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `loomwatch_machine_status{machine="L-01",status="PRODUCING"} 1`)

	health, err := client.Get(fmt.Sprintf("http://%s/healthz", m.Addr()))
	require.NoError(t, err)
	health.Body.Close()
	assert.Equal(t, http.StatusOK, health.StatusCode)
}

func TestMetricsService_StartStopErrors(t *testing.T) {
	m := services.NewMetricsService("127.0.0.1:0", http.NotFoundHandler(), zerolog.Nop())

	assert.EqualError(t, m.Stop(), "metrics service is not running")
	require.NoError(t, m.Start())
	assert.EqualError(t, m.Start(), "metrics service is already running")
	require.NoError(t, m.Stop())
	assert.Nil(t, m.Addr())
}
