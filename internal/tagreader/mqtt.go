package tagreader

import (
	"context"
	"fmt"
	"time"

	pkgmqtt "github.com/benmeehan/loomwatch/pkg/mqtt"
	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
)

// ClientFactory builds an MQTT client from options.
type ClientFactory func(opts *paho.ClientOptions) pkgmqtt.MQTTClient

// MQTTDriver reads the retained message of a topic. The tag is the topic name and the
// endpoint the broker URL, e.g. tcp://10.0.0.5:1883.
type MQTTDriver struct {
	ConnectTimeout time.Duration
	newClient      ClientFactory
}

// NewMQTTDriver creates an MQTT driver backed by paho clients.
func NewMQTTDriver(connectTimeout time.Duration) *MQTTDriver {
	return &MQTTDriver{
		ConnectTimeout: connectTimeout,
		newClient: func(opts *paho.ClientOptions) pkgmqtt.MQTTClient {
			return paho.NewClient(opts)
		},
	}
}

// WithClientFactory replaces the paho client constructor.
func (d *MQTTDriver) WithClientFactory(factory ClientFactory) *MQTTDriver {
	d.newClient = factory
	return d
}

// ReadBool connects, subscribes to the topic and waits for the first message, which for a
// retained topic arrives immediately. The session is disconnected in every case.
func (d *MQTTDriver) ReadBool(ctx context.Context, endpoint, topic string) (bool, error) {
	opts, err := pkgmqtt.BuildClientOptions(pkgmqtt.Options{
		Broker:         endpoint,
		ClientID:       "loomwatch-read-" + uuid.NewString(),
		ConnectTimeout: d.ConnectTimeout,
	}, nil)
	if err != nil {
		return false, err
	}
	opts.SetCleanSession(true)

	client := d.newClient(opts)
	if err := waitToken(ctx, client.Connect()); err != nil {
		// A connect still in flight may complete later; drop it.
		client.Disconnect(0)
		return false, fmt.Errorf("failed to connect to %s: %w", endpoint, err)
	}
	defer client.Disconnect(0)

	payloads := make(chan []byte, 1)
	handler := func(_ paho.Client, msg paho.Message) {
		select {
		case payloads <- msg.Payload():
		default:
		}
	}

	if err := waitToken(ctx, client.Subscribe(topic, 1, handler)); err != nil {
		return false, fmt.Errorf("failed to subscribe to %s: %w", topic, err)
	}

	select {
	case payload := <-payloads:
		return CoerceBool(payload)
	case <-ctx.Done():
		return false, fmt.Errorf("no message on %s: %w", topic, ctx.Err())
	}
}

func waitToken(ctx context.Context, token paho.Token) error {
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}
