package service_registry

import (
	"errors"
	"fmt"

	"github.com/benmeehan/loomwatch/internal/services"
	"github.com/benmeehan/loomwatch/internal/telemetry"
	"github.com/benmeehan/loomwatch/internal/utils"
	"github.com/benmeehan/loomwatch/pkg/mqtt"
	"github.com/rs/zerolog"
)

// Service is the lifecycle every background component implements.
type Service interface {
	Start() error
	Stop() error
}

// Dependencies are the long-lived objects the services are built around.
type Dependencies struct {
	Runner   services.Runner
	Fleet    services.FleetSource
	Notifier *services.NotificationService
	Metrics  *telemetry.Metrics
}

// ServiceRegistry manages the lifecycle of various services in the system.
type ServiceRegistry struct {
	services    map[string]Service // Stores registered services
	serviceKeys []string           // Maintains order of service registration
	mqttClient  mqtt.MQTTClient
	Logger      zerolog.Logger
}

// NewServiceRegistry initializes a new service registry with dependencies.
func NewServiceRegistry(mqttClient mqtt.MQTTClient, logger zerolog.Logger) *ServiceRegistry {
	return &ServiceRegistry{
		services:   make(map[string]Service),
		mqttClient: mqttClient,
		Logger:     logger,
	}
}

// RegisterService adds a new service to the registry.
func (sr *ServiceRegistry) RegisterService(name string, svc Service) {
	if _, exists := sr.services[name]; exists {
		sr.Logger.Warn().Msgf("Service %s is already registered", name)
		return
	}
	sr.services[name] = svc
	sr.serviceKeys = append(sr.serviceKeys, name)
	sr.Logger.Info().Msgf("Registered service: %s", name)
}

// Names returns the registered service names in start order.
func (sr *ServiceRegistry) Names() []string {
	return append([]string(nil), sr.serviceKeys...)
}

// StartServices initiates all registered services in order.
// If a service fails to start, it stops already started services.
func (sr *ServiceRegistry) StartServices() error {
	startedServices := []string{}

	for _, name := range sr.serviceKeys {
		svc := sr.services[name]
		sr.Logger.Info().Msgf("Starting service: %s", name)
		if err := svc.Start(); err != nil {
			sr.Logger.Error().Err(err).Msgf("Failed to start service: %s", name)

			sr.Logger.Warn().Msg("Stopping already started services due to startup failure...")
			for i := len(startedServices) - 1; i >= 0; i-- {
				_ = sr.services[startedServices[i]].Stop()
			}
			return fmt.Errorf("failed to start %s: %w", name, err)
		}
		startedServices = append(startedServices, name)
	}

	return nil
}

// StopServices stops all services in reverse order. The scan loop is registered last, so it
// stops first and its final notifications still reach a running notifier.
func (sr *ServiceRegistry) StopServices() error {
	var stopErrors []error
	for i := len(sr.serviceKeys) - 1; i >= 0; i-- {
		name := sr.serviceKeys[i]
		if err := sr.services[name].Stop(); err != nil {
			stopErrors = append(stopErrors, fmt.Errorf("failed to stop %s: %w", name, err))
		}
	}
	if len(stopErrors) > 0 {
		for _, e := range stopErrors {
			sr.Logger.Error().Err(e).Msg("Service stop failure")
		}
		return errors.Join(stopErrors...)
	}
	return nil
}

// RegisterServices initializes and registers enabled services based on configuration.
func (sr *ServiceRegistry) RegisterServices(config *utils.Config, deps Dependencies) error {
	servicesInOrder := []struct {
		name        string
		enabled     bool
		constructor func() (Service, error)
	}{
		{
			name:    "metrics",
			enabled: config.Services.Metrics.Enabled,
			constructor: func() (Service, error) {
				if deps.Metrics == nil {
					return nil, errors.New("metrics service needs a metrics registry")
				}
				return services.NewMetricsService(config.Services.Metrics.Address, deps.Metrics.Handler(), sr.Logger), nil
			},
		},
		{
			name:    "notifier",
			enabled: deps.Notifier != nil,
			constructor: func() (Service, error) {
				return deps.Notifier, nil
			},
		},
		{
			name:    "heartbeat",
			enabled: config.Services.Heartbeat.Enabled,
			constructor: func() (Service, error) {
				if sr.mqttClient == nil {
					return nil, errors.New("heartbeat service needs an MQTT client")
				}
				return services.NewHeartbeatService(
					config.Services.Heartbeat.Topic,
					config.Services.Heartbeat.Interval,
					config.Site.ID,
					config.Services.Heartbeat.QOS,
					sr.mqttClient,
					deps.Fleet,
					config.Services.Heartbeat.Host,
					sr.Logger,
				), nil
			},
		},
		{
			name:    "monitor",
			enabled: true,
			constructor: func() (Service, error) {
				if deps.Runner == nil {
					return nil, errors.New("monitor service needs a scan loop")
				}
				return services.NewMonitorService(deps.Runner, sr.Logger), nil
			},
		},
	}

	registeredServices := []string{}
	for _, svc := range servicesInOrder {
		if !svc.enabled {
			continue
		}
		serviceInstance, err := svc.constructor()
		if err != nil {
			sr.Logger.Error().Err(err).Msgf("Failed to create %s service", svc.name)
			return err
		}
		sr.RegisterService(svc.name, serviceInstance)
		registeredServices = append(registeredServices, svc.name)
	}

	sr.Logger.Info().Msgf("Registered services in order: %v", registeredServices)
	return nil
}

// BuildNotifier creates the notification service with an MQTT sink when mqttClient is set and
// a NATS sink when publisher is set. It returns nil when notifications are disabled.
func BuildNotifier(config *utils.Config, mqttClient mqtt.MQTTClient, publisher services.NATSPublisher,
	recorder services.NotificationRecorder, logger zerolog.Logger) *services.NotificationService {

	if !config.Services.Notifier.Enabled {
		return nil
	}

	var sinks []services.Sink
	if mqttClient != nil {
		sinks = append(sinks, &services.MQTTSink{
			Client: mqttClient,
			Topic:  config.Services.Notifier.Topic,
			QOS:    config.Services.Notifier.QOS,
		})
	}
	if publisher != nil {
		sinks = append(sinks, &services.NATSSink{Publisher: publisher, Subject: config.NATS.Subject})
	}
	if len(sinks) == 0 {
		logger.Warn().Msg("Notifier enabled without MQTT or NATS, notifications will only be logged")
	}

	return services.NewNotificationService(
		sinks,
		config.Services.Notifier.QueueSize,
		config.Services.Notifier.MinMinutes,
		recorder,
		logger,
	)
}
