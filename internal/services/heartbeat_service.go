package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/benmeehan/loomwatch/internal/constants"
	"github.com/benmeehan/loomwatch/internal/metrics_collectors"
	"github.com/benmeehan/loomwatch/internal/models"
	"github.com/benmeehan/loomwatch/pkg/mqtt"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

// FleetSource reports the fleet summary of the last scan cycle.
type FleetSource interface {
	Summary() models.FleetSummary
}

// HeartbeatService manages periodic heartbeat messages.
type HeartbeatService struct {
	PubTopic   string
	Interval   time.Duration
	SiteID     string
	QOS        int
	MqttClient mqtt.MQTTClient
	Fleet      FleetSource
	HostConfig models.HostMetricsConfig
	Collectors *metrics_collectors.MetricsRegistry
	Logger     zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewHeartbeatService initializes a new HeartbeatService. Host metrics are attached only
// when at least one of them is enabled in hostConfig.
func NewHeartbeatService(pubTopic string, interval time.Duration, siteID string, qos int, mqttClient mqtt.MQTTClient,
	fleet FleetSource, hostConfig models.HostMetricsConfig, logger zerolog.Logger) *HeartbeatService {

	logger = logger.With().Str("service", "heartbeat").Logger()
	h := &HeartbeatService{
		PubTopic:   pubTopic,
		Interval:   interval,
		SiteID:     siteID,
		QOS:        qos,
		MqttClient: mqttClient,
		Fleet:      fleet,
		HostConfig: hostConfig,
		Logger:     logger,
	}
	if hostConfig.Any() {
		h.Collectors = metrics_collectors.NewDefaultRegistry(hostConfig.DiskPath, logger)
	}
	return h
}

// Start launches the heartbeat loop in a separate goroutine.
func (h *HeartbeatService) Start() error {
	if h.ctx != nil {
		h.Logger.Warn().Msg("HeartbeatService is already running")
		return errors.New("heartbeat service is already running")
	}

	h.ctx, h.cancel = context.WithCancel(context.Background())

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		h.runHeartbeatLoop()
	}()

	h.Logger.Info().Str("topic", h.PubTopic).Msg("HeartbeatService started successfully")
	return nil
}

// Stop gracefully stops the heartbeat service.
func (h *HeartbeatService) Stop() error {
	if h.ctx == nil {
		h.Logger.Warn().Msg("HeartbeatService is not running")
		return errors.New("heartbeat service is not running")
	}

	h.cancel()
	h.wg.Wait()

	h.ctx = nil
	h.cancel = nil

	h.Logger.Info().Msg("HeartbeatService stopped successfully")
	return nil
}

// runHeartbeatLoop continuously sends heartbeat messages at the specified interval.
func (h *HeartbeatService) runHeartbeatLoop() {
	ticker := time.NewTicker(h.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := h.publish(h.buildHeartbeat()); err != nil {
				h.Logger.Error().Err(err).Msg("Failed to publish heartbeat message")
			} else {
				h.Logger.Debug().Msg("Heartbeat published successfully")
			}

		case <-h.ctx.Done():
			h.Logger.Info().Msg("HeartbeatService stopping gracefully")
			return
		}
	}
}

func (h *HeartbeatService) buildHeartbeat() models.Heartbeat {
	heartbeat := models.Heartbeat{
		SiteID:    h.SiteID,
		Timestamp: time.Now().UTC(),
		Status:    constants.ServiceStateRunning,
	}
	if h.Fleet != nil {
		heartbeat.Fleet = h.Fleet.Summary()
	}
	if h.Collectors != nil {
		ctx, cancel := context.WithTimeout(h.ctx, h.Interval/2)
		heartbeat.Host = h.Collectors.Collect(ctx, &h.HostConfig)
		cancel()
	}
	return heartbeat
}

func (h *HeartbeatService) publish(heartbeat models.Heartbeat) error {
	payload, err := json.Marshal(heartbeat)
	if err != nil {
		return err
	}

	token := h.MqttClient.Publish(h.PubTopic, byte(h.QOS), false, payload)
	token.Wait()
	return token.Error()
}
