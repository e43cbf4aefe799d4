package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benmeehan/loomwatch/internal/constants"
	"github.com/benmeehan/loomwatch/internal/models"
	"github.com/benmeehan/loomwatch/pkg/mqtt"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

// Sink delivers one encoded notification to an external system.
type Sink interface {
	Name() string
	Send(ctx context.Context, payload []byte) error
}

// NotificationRecorder counts deliveries. *telemetry.Metrics satisfies it.
type NotificationRecorder interface {
	NotificationSent(sink string)
	NotificationDropped()
}

// NotificationService queues notifications from the scan loop and fans them out to every
// sink in the background, so a slow broker never delays a cycle.
type NotificationService struct {
	Sinks       []Sink
	MinMinutes  float64
	SendTimeout time.Duration
	Recorder    NotificationRecorder
	Logger      zerolog.Logger

	queue  chan models.Notification
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewNotificationService creates the service with a queue of queueSize pending notifications.
// Recoveries shorter than minMinutes are discarded; system notifications always pass.
func NewNotificationService(sinks []Sink, queueSize int, minMinutes float64, recorder NotificationRecorder, logger zerolog.Logger) *NotificationService {
	if queueSize < 1 {
		queueSize = constants.DefaultNotifierQueueSize
	}
	return &NotificationService{
		Sinks:       sinks,
		MinMinutes:  minMinutes,
		SendTimeout: 5 * time.Second,
		Recorder:    recorder,
		Logger:      logger.With().Str("service", "notifier").Logger(),
		queue:       make(chan models.Notification, queueSize),
	}
}

// Notify enqueues n without blocking. When the queue is full the notification is dropped.
func (s *NotificationService) Notify(n models.Notification) {
	if n.Reason != constants.ReasonSystem && n.Minutes < s.MinMinutes {
		s.Logger.Debug().Str("machine", n.Machine).Float64("minutes", n.Minutes).Msg("Notification below minimum duration, skipping")
		return
	}

	select {
	case s.queue <- n:
	default:
		s.Logger.Warn().Str("machine", n.Machine).Msg("Notification queue full, dropping notification")
		if s.Recorder != nil {
			s.Recorder.NotificationDropped()
		}
	}
}

// Start launches the delivery loop.
func (s *NotificationService) Start() error {
	if s.ctx != nil {
		s.Logger.Warn().Msg("NotificationService is already running")
		return errors.New("notification service is already running")
	}

	s.ctx, s.cancel = context.WithCancel(context.Background())

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run()
	}()

	s.Logger.Info().Int("sinks", len(s.Sinks)).Msg("NotificationService started successfully")
	return nil
}

// Stop delivers what is still queued and stops the delivery loop.
func (s *NotificationService) Stop() error {
	if s.ctx == nil {
		s.Logger.Warn().Msg("NotificationService is not running")
		return errors.New("notification service is not running")
	}

	s.cancel()
	s.wg.Wait()

	s.ctx = nil
	s.cancel = nil

	s.Logger.Info().Msg("NotificationService stopped successfully")
	return nil
}

func (s *NotificationService) run() {
	for {
		select {
		case n := <-s.queue:
			s.deliver(n)
		case <-s.ctx.Done():
			for {
				select {
				case n := <-s.queue:
					s.deliver(n)
				default:
					return
				}
			}
		}
	}
}

func (s *NotificationService) deliver(n models.Notification) {
	payload, err := json.Marshal(n)
	if err != nil {
		s.Logger.Error().Err(err).Msg("Failed to serialize notification")
		return
	}

	if len(s.Sinks) == 0 {
		s.Logger.Info().Str("machine", n.Machine).Str("reason", n.Reason).Msg(n.Message)
		return
	}

	for _, sink := range s.Sinks {
		ctx, cancel := context.WithTimeout(context.Background(), s.SendTimeout)
		err := sink.Send(ctx, payload)
		cancel()

		if err != nil {
			s.Logger.Error().Err(err).Str("sink", sink.Name()).Str("machine", n.Machine).Msg("Failed to deliver notification")
			continue
		}
		if s.Recorder != nil {
			s.Recorder.NotificationSent(sink.Name())
		}
		s.Logger.Debug().Str("sink", sink.Name()).Str("machine", n.Machine).Msg("Notification delivered")
	}
}

// MQTTSink publishes notifications to an MQTT topic.
type MQTTSink struct {
	Client mqtt.MQTTClient
	Topic  string
	QOS    int
}

func (m *MQTTSink) Name() string {
	return "mqtt"
}

// Send publishes payload and waits for the broker acknowledgement or ctx.
func (m *MQTTSink) Send(ctx context.Context, payload []byte) error {
	token := m.Client.Publish(m.Topic, byte(m.QOS), false, payload)
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return fmt.Errorf("publish to %s: %w", m.Topic, ctx.Err())
	}
}

// NATSPublisher is the part of the NATS publisher used by NATSSink.
type NATSPublisher interface {
	Publish(ctx context.Context, subject string, payload []byte) error
}

// NATSSink publishes notifications to a NATS subject.
type NATSSink struct {
	Publisher NATSPublisher
	Subject   string
}

func (n *NATSSink) Name() string {
	return "nats"
}

func (n *NATSSink) Send(ctx context.Context, payload []byte) error {
	return n.Publisher.Publish(ctx, n.Subject, payload)
}
