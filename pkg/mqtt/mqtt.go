package mqtt

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"time"

	"github.com/benmeehan/loomwatch/pkg/file"
	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MQTTClient defines the interface for an MQTT client.
type MQTTClient interface {
	Connect() mqtt.Token
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token
	Unsubscribe(topics ...string) mqtt.Token
	Disconnect(quiesce uint)
}

// Options holds the broker settings shared by the long-lived client and per-read sessions.
type Options struct {
	Broker         string
	ClientID       string
	Username       string
	Password       string
	CACertPath     string
	ConnectTimeout time.Duration
	AutoReconnect  bool
}

// MqttService provides methods for MQTT operations.
type MqttService struct {
	client     MQTTClient
	fileClient file.FileOperations
}

// NewMqttService creates a new MqttService instance.
func NewMqttService(fileClient file.FileOperations) *MqttService {
	return &MqttService{
		fileClient: fileClient,
	}
}

// Initialize sets up the MQTT client and starts the connection.
func (s *MqttService) Initialize(opts Options) error {
	opts.AutoReconnect = true
	clientOpts, err := BuildClientOptions(opts, s.fileClient)
	if err != nil {
		return err
	}

	s.client = mqtt.NewClient(clientOpts)

	token := s.Connect()
	if token.Wait() && token.Error() != nil {
		return token.Error()
	}

	return nil
}

// BuildClientOptions turns Options into paho client options. TLS is enabled when a CA
// certificate path is given.
func BuildClientOptions(opts Options, fileClient file.FileOperations) (*mqtt.ClientOptions, error) {
	clientOpts := mqtt.NewClientOptions()
	clientOpts.AddBroker(opts.Broker)
	clientOpts.SetClientID(opts.ClientID)
	clientOpts.SetAutoReconnect(opts.AutoReconnect)
	clientOpts.SetConnectRetry(false)
	if opts.ConnectTimeout > 0 {
		clientOpts.SetConnectTimeout(opts.ConnectTimeout)
	}
	if opts.Username != "" {
		clientOpts.SetUsername(opts.Username)
		clientOpts.SetPassword(opts.Password)
	}

	if opts.CACertPath != "" {
		caCert, err := fileClient.ReadFileRaw(opts.CACertPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA certificate: %w", err)
		}

		caCertPool := x509.NewCertPool()
		if !caCertPool.AppendCertsFromPEM(caCert) {
			return nil, fmt.Errorf("failed to append CA certificate")
		}
		clientOpts.SetTLSConfig(&tls.Config{
			RootCAs:    caCertPool,
			MinVersion: tls.VersionTLS12,
		})
	}

	return clientOpts, nil
}

// Connect connects to the MQTT broker.
func (s *MqttService) Connect() mqtt.Token {
	return s.client.Connect()
}

// Publish sends a message to the specified topic.
func (s *MqttService) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	return s.client.Publish(topic, qos, retained, payload)
}

// Subscribe subscribes to the specified topic with a message handler.
func (s *MqttService) Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token {
	return s.client.Subscribe(topic, qos, callback)
}

// Unsubscribe unsubscribes from the specified topics.
func (s *MqttService) Unsubscribe(topics ...string) mqtt.Token {
	return s.client.Unsubscribe(topics...)
}

// Disconnect gracefully disconnects the MQTT client.
func (s *MqttService) Disconnect(quiesce uint) {
	if s.client == nil {
		return
	}
	s.client.Disconnect(quiesce)
}
