package utils

import (
	"errors"
	"fmt"
	"time"

	"github.com/benmeehan/loomwatch/internal/constants"
	"github.com/benmeehan/loomwatch/internal/models"
	"github.com/benmeehan/loomwatch/pkg/file"
)

// Config represents the structure of the configuration file.
type Config struct {
	Site struct {
		ID   string `yaml:"id"`   // Identifier of this monitor instance
		Name string `yaml:"name"` // Human readable site name
	} `yaml:"site"`

	Log struct {
		Level  string `yaml:"level"`  // zerolog level name (debug, info, warn, error)
		Pretty bool   `yaml:"pretty"` // Use the console writer instead of JSON
	} `yaml:"log"`

	Monitor struct {
		Interval         time.Duration `yaml:"interval"`          // Fixed scan cycle length
		FailureThreshold int           `yaml:"failure_threshold"` // Consecutive NO_NETWORK samples before confirming
		Stability        time.Duration `yaml:"stability"`         // Continuous PRODUCING time before confirming recovery
		SnapshotMaxAge   time.Duration `yaml:"snapshot_max_age"`  // Rewrite the snapshot at least this often
		MachinesFile     string        `yaml:"machines_file"`     // Path to the machines list, re-read every cycle
	} `yaml:"monitor"`

	Prober struct {
		Workers         int           `yaml:"workers"`           // Maximum concurrent probes
		Timeout         time.Duration `yaml:"timeout"`           // Per check timeout
		Privileged      bool          `yaml:"privileged"`        // Raw ICMP sockets instead of UDP pings
		TCPFallbackPort int           `yaml:"tcp_fallback_port"` // Port tried when ICMP gets no reply
	} `yaml:"prober"`

	TagReader struct {
		MaxConcurrency int           `yaml:"max_concurrency"` // Maximum concurrent protocol sessions
		ConnectTimeout time.Duration `yaml:"connect_timeout"` // Transport connect timeout
		SessionTimeout time.Duration `yaml:"session_timeout"` // Handshake + read budget per machine
	} `yaml:"tag_reader"`

	Classification struct {
		Enabled bool          `yaml:"enabled"` // Query the classification feed every cycle
		URL     string        `yaml:"url"`     // Feed endpoint
		Timeout time.Duration `yaml:"timeout"` // Request timeout, never retried
	} `yaml:"classification"`

	Storage struct {
		SnapshotFile string `yaml:"snapshot_file"` // Current state document
		HistoryDB    string `yaml:"history_db"`    // SQLite file with cycles and events
	} `yaml:"storage"`

	MQTT struct {
		Enabled       bool   `yaml:"enabled"`        // Connect the shared MQTT client
		Broker        string `yaml:"broker"`         // MQTT broker address
		ClientID      string `yaml:"client_id"`      // MQTT client ID
		Username      string `yaml:"username"`       // Optional broker username
		Password      string `yaml:"password"`       // Optional broker password
		CACertificate string `yaml:"ca_certificate"` // Path to the CA certificate, empty for plain TCP
	} `yaml:"mqtt"`

	NATS struct {
		Enabled bool   `yaml:"enabled"` // Publish notifications to NATS as well
		URL     string `yaml:"url"`     // NATS server URL
		Subject string `yaml:"subject"` // Subject for notifications
	} `yaml:"nats"`

	Services struct {
		Heartbeat struct {
			Enabled  bool                     `yaml:"enabled"`  // Enable/disable heartbeat service
			Topic    string                   `yaml:"topic"`    // MQTT topic for heartbeat messages
			Interval time.Duration            `yaml:"interval"` // Interval between heartbeats
			QOS      int                      `yaml:"qos"`      // MQTT QoS level for heartbeat messages
			Host     models.HostMetricsConfig `yaml:"host"`     // Host metrics attached to every heartbeat
		} `yaml:"heartbeat"`

		Notifier struct {
			Enabled    bool    `yaml:"enabled"`     // Enable/disable notification fan-out
			Topic      string  `yaml:"topic"`       // MQTT topic for notifications
			QOS        int     `yaml:"qos"`         // MQTT QoS level for notifications
			QueueSize  int     `yaml:"queue_size"`  // Pending notifications before dropping
			MinMinutes float64 `yaml:"min_minutes"` // Recoveries shorter than this are not sent
		} `yaml:"notifier"`

		Metrics struct {
			Enabled bool   `yaml:"enabled"` // Serve Prometheus metrics
			Address string `yaml:"address"` // Listen address, e.g. ":9100"
		} `yaml:"metrics"`
	} `yaml:"services"`
}

// LoadConfig loads the YAML configuration from the specified file, applies defaults and validates it.
func LoadConfig(filename string, fileClient file.FileOperations) (*Config, error) {
	var config Config
	if err := fileClient.ReadYamlFile(filename, &config); err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", filename, err)
	}

	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", filename, err)
	}

	return &config, nil
}

// ApplyDefaults fills every zero value that has a sensible default.
func (c *Config) ApplyDefaults() {
	if c.Site.ID == "" {
		c.Site.ID = "loomwatch"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}

	if c.Monitor.Interval == 0 {
		c.Monitor.Interval = constants.DefaultScanInterval
	}
	if c.Monitor.FailureThreshold == 0 {
		c.Monitor.FailureThreshold = constants.DefaultFailureThreshold
	}
	if c.Monitor.Stability == 0 {
		c.Monitor.Stability = constants.DefaultStability
	}
	if c.Monitor.SnapshotMaxAge == 0 {
		c.Monitor.SnapshotMaxAge = constants.DefaultSnapshotMaxAge
	}
	if c.Monitor.MachinesFile == "" {
		c.Monitor.MachinesFile = "configs/machines.json"
	}

	if c.Prober.Workers == 0 {
		c.Prober.Workers = constants.DefaultProbeWorkers
	}
	if c.Prober.Timeout == 0 {
		c.Prober.Timeout = constants.DefaultProbeTimeout
	}

	if c.TagReader.MaxConcurrency == 0 {
		c.TagReader.MaxConcurrency = constants.DefaultTagConcurrency
	}
	if c.TagReader.ConnectTimeout == 0 {
		c.TagReader.ConnectTimeout = constants.DefaultConnectTimeout
	}
	if c.TagReader.SessionTimeout == 0 {
		c.TagReader.SessionTimeout = constants.DefaultSessionTimeout
	}

	if c.Classification.Timeout == 0 {
		c.Classification.Timeout = constants.DefaultFeedTimeout
	}

	if c.Storage.SnapshotFile == "" {
		c.Storage.SnapshotFile = "data/state.json"
	}
	if c.Storage.HistoryDB == "" {
		c.Storage.HistoryDB = "data/history.db"
	}

	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = "loomwatch"
	}
	if c.NATS.Subject == "" {
		c.NATS.Subject = "loomwatch.notifications"
	}

	if c.Services.Heartbeat.Interval == 0 {
		c.Services.Heartbeat.Interval = constants.DefaultHeartbeatInterval
	}
	if c.Services.Heartbeat.Topic == "" {
		c.Services.Heartbeat.Topic = "loomwatch/" + c.Site.ID + "/heartbeat"
	}
	if c.Services.Notifier.Topic == "" {
		c.Services.Notifier.Topic = "loomwatch/" + c.Site.ID + "/notifications"
	}
	if c.Services.Notifier.QueueSize == 0 {
		c.Services.Notifier.QueueSize = constants.DefaultNotifierQueueSize
	}
	if c.Services.Metrics.Address == "" {
		c.Services.Metrics.Address = ":9100"
	}
}

// Validate rejects configurations the monitor cannot run with.
func (c *Config) Validate() error {
	var errs []error

	if c.Monitor.Interval <= 0 {
		errs = append(errs, errors.New("monitor.interval must be positive"))
	}
	if c.Monitor.FailureThreshold < 1 {
		errs = append(errs, errors.New("monitor.failure_threshold must be at least 1"))
	}
	if c.Monitor.Stability < 0 {
		errs = append(errs, errors.New("monitor.stability must not be negative"))
	}
	if c.Prober.Workers < 1 {
		errs = append(errs, errors.New("prober.workers must be at least 1"))
	}
	if c.TagReader.MaxConcurrency < 1 {
		errs = append(errs, errors.New("tag_reader.max_concurrency must be at least 1"))
	}
	if c.Classification.Enabled && c.Classification.URL == "" {
		errs = append(errs, errors.New("classification.url is required when classification is enabled"))
	}
	if c.MQTT.Enabled && c.MQTT.Broker == "" {
		errs = append(errs, errors.New("mqtt.broker is required when mqtt is enabled"))
	}
	if c.NATS.Enabled && c.NATS.URL == "" {
		errs = append(errs, errors.New("nats.url is required when nats is enabled"))
	}
	if c.Services.Heartbeat.Enabled && !c.MQTT.Enabled {
		errs = append(errs, errors.New("services.heartbeat requires mqtt to be enabled"))
	}

	return errors.Join(errs...)
}
