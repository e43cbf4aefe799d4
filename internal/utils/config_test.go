package utils

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/benmeehan/loomwatch/internal/constants"
	"github.com/benmeehan/loomwatch/internal/mocks"
	"github.com/benmeehan/loomwatch/pkg/file"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	// Setup
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
site:
  id: weaving-01
monitor:
  interval: 10s
  stability: 2m
prober:
  workers: 8
services:
  heartbeat:
    host:
      cpu: true
      disk_path: /data
`), 0o644))

	// Execute
	cfg, err := LoadConfig(path, file.NewFileService())

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "weaving-01", cfg.Site.ID)
	assert.Equal(t, 10*time.Second, cfg.Monitor.Interval)
	assert.Equal(t, 2*time.Minute, cfg.Monitor.Stability)
	assert.Equal(t, constants.DefaultFailureThreshold, cfg.Monitor.FailureThreshold)
	assert.Equal(t, 8, cfg.Prober.Workers)
	assert.Equal(t, constants.DefaultFeedTimeout, cfg.Classification.Timeout)
	assert.Equal(t, "loomwatch/weaving-01/heartbeat", cfg.Services.Heartbeat.Topic)
	assert.True(t, cfg.Services.Heartbeat.Host.MonitorCPU)
	assert.Equal(t, "/data", cfg.Services.Heartbeat.Host.DiskPath)
}

func TestLoadConfig_ReadError(t *testing.T) {
	fileClient := new(mocks.MockFileOperations)
	fileClient.On("ReadYamlFile", "missing.yaml", mock.Anything).Return(os.ErrNotExist)

	_, err := LoadConfig("missing.yaml", fileClient)

	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestConfig_Validate(t *testing.T) {
	// Setup
	var cfg Config
	cfg.ApplyDefaults()
	cfg.Monitor.Interval = -time.Second
	cfg.Classification.Enabled = true
	cfg.Services.Heartbeat.Enabled = true

	// Execute
	err := cfg.Validate()

	// Assert
	require.Error(t, err)
	assert.Contains(t, err.Error(), "monitor.interval")
	assert.Contains(t, err.Error(), "classification.url")
	assert.Contains(t, err.Error(), "services.heartbeat")
}

func TestConfig_DefaultsAreValid(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()
	assert.NoError(t, cfg.Validate())
}
