package natsclient

import (
	"context"
	"errors"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// ErrNotConnected is returned when publishing on a closed connection.
var ErrNotConnected = errors.New("nats not connected")

// Publisher publishes raw payloads to NATS subjects and reconnects forever in the background.
type Publisher struct {
	nc     *nats.Conn
	url    string
	logger zerolog.Logger
}

// NewPublisher connects to the NATS server at url.
func NewPublisher(url, name string, logger zerolog.Logger) (*Publisher, error) {
	logger = logger.With().Str("component", "nats").Logger()

	opts := []nats.Option{
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.Timeout(5 * time.Second),
		nats.RetryOnFailedConnect(true),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logger.Warn().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	}
	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, err
	}
	return &Publisher{nc: nc, url: url, logger: logger}, nil
}

// Publish sends payload on subject and waits for the server to acknowledge the flush,
// bounded by ctx.
func (p *Publisher) Publish(ctx context.Context, subject string, payload []byte) error {
	if p.nc == nil || p.nc.IsClosed() {
		return ErrNotConnected
	}
	if err := p.nc.Publish(subject, payload); err != nil {
		return err
	}
	if _, ok := ctx.Deadline(); !ok {
		return nil
	}
	return p.nc.FlushWithContext(ctx)
}

// Close drains pending messages and closes the connection.
func (p *Publisher) Close() {
	if p.nc != nil {
		if err := p.nc.Drain(); err != nil {
			p.logger.Debug().Err(err).Msg("NATS drain failed")
		}
		p.nc.Close()
	}
}
