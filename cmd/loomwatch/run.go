package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/benmeehan/loomwatch/internal/classification"
	"github.com/benmeehan/loomwatch/internal/filter"
	"github.com/benmeehan/loomwatch/internal/monitor"
	"github.com/benmeehan/loomwatch/internal/prober"
	"github.com/benmeehan/loomwatch/internal/service_registry"
	"github.com/benmeehan/loomwatch/internal/services"
	"github.com/benmeehan/loomwatch/internal/storage"
	"github.com/benmeehan/loomwatch/internal/tagreader"
	"github.com/benmeehan/loomwatch/internal/telemetry"
	"github.com/benmeehan/loomwatch/internal/utils"
	"github.com/benmeehan/loomwatch/pkg/file"
	"github.com/benmeehan/loomwatch/pkg/mqtt"
	natsclient "github.com/benmeehan/loomwatch/pkg/nats"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

func newRunCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the scan loop and the enabled services until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			config, err := opts.load()
			if err != nil {
				return err
			}

			logger, err := newLogger(os.Stdout, config.Log.Level, config.Log.Pretty)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return runMonitor(ctx, config, logger)
		},
	}
}

func runMonitor(ctx context.Context, config *utils.Config, logger zerolog.Logger) error {
	logger = logger.With().Str("site", config.Site.ID).Logger()
	fileClient := file.NewFileService()
	metrics := telemetry.NewMetrics()

	// Shared MQTT connection for the heartbeat and notifications
	var mqttClient mqtt.MQTTClient
	if config.MQTT.Enabled {
		clientID := config.MQTT.ClientID + "-" + uuid.New().String()
		logger.Info().Str("client_id", clientID).Msg("Connecting to MQTT broker")

		mqttService := mqtt.NewMqttService(fileClient)
		if err := mqttService.Initialize(mqtt.Options{
			Broker:         config.MQTT.Broker,
			ClientID:       clientID,
			Username:       config.MQTT.Username,
			Password:       config.MQTT.Password,
			CACertPath:     config.MQTT.CACertificate,
			ConnectTimeout: config.TagReader.ConnectTimeout,
		}); err != nil {
			return fmt.Errorf("failed to initialize MQTT connection: %w", err)
		}
		defer mqttService.Disconnect(250)
		mqttClient = mqttService
	}

	var publisher services.NATSPublisher
	if config.NATS.Enabled {
		natsPublisher, err := natsclient.NewPublisher(config.NATS.URL, "loomwatch-"+config.Site.ID, logger)
		if err != nil {
			return fmt.Errorf("failed to connect to NATS: %w", err)
		}
		defer natsPublisher.Close()
		publisher = natsPublisher
	}

	history, err := storage.OpenHistory(config.Storage.HistoryDB, logger)
	if err != nil {
		return err
	}
	defer history.Close()

	snapshots := storage.NewSnapshotStore(config.Storage.SnapshotFile, fileClient, logger)

	var feed classification.Fetcher = classification.Disabled{}
	if config.Classification.Enabled {
		feed = classification.NewClient(config.Classification.URL, config.Classification.Timeout, logger)
	}

	deps := monitor.Deps{
		Machines: monitor.NewFileMachineSource(config.Monitor.MachinesFile, fileClient, logger),
		Prober: prober.NewProber(prober.Config{
			Workers:         config.Prober.Workers,
			Timeout:         config.Prober.Timeout,
			Privileged:      config.Prober.Privileged,
			TCPFallbackPort: config.Prober.TCPFallbackPort,
		}, logger),
		Tags: tagreader.NewDefaultReader(tagreader.Config{
			MaxConcurrency: config.TagReader.MaxConcurrency,
			ConnectTimeout: config.TagReader.ConnectTimeout,
			SessionTimeout: config.TagReader.SessionTimeout,
		}, logger),
		Classification: feed,
		Snapshots:      snapshots,
		History:        history,
		Recorder:       metrics,
	}

	notifier := service_registry.BuildNotifier(config, mqttClient, publisher, metrics, logger)
	if notifier != nil {
		deps.Notifier = notifier
	}

	scanner := monitor.NewScanner(monitor.Config{
		SiteID:         config.Site.ID,
		Interval:       config.Monitor.Interval,
		SnapshotMaxAge: config.Monitor.SnapshotMaxAge,
		Filter: filter.Config{
			FailureThreshold: config.Monitor.FailureThreshold,
			Stability:        config.Monitor.Stability,
		},
	}, deps, logger)
	scanner.Restore(snapshots.Restore(time.Now()))

	registry := service_registry.NewServiceRegistry(mqttClient, logger)
	if err := registry.RegisterServices(config, service_registry.Dependencies{
		Runner:   scanner,
		Fleet:    scanner,
		Notifier: notifier,
		Metrics:  metrics,
	}); err != nil {
		return err
	}

	if err := registry.StartServices(); err != nil {
		return err
	}
	logger.Info().Strs("services", registry.Names()).Msg("All services started successfully")

	<-ctx.Done()

	logger.Info().Msg("Shutting down gracefully...")
	return registry.StopServices()
}
