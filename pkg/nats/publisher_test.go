package natsclient

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// unreachable has nothing listening, so the connection stays in the reconnecting state.
const unreachable = "nats://127.0.0.1:1"

func newOfflinePublisher(t *testing.T) *Publisher {
	t.Helper()
	p, err := NewPublisher(unreachable, "loomwatch-test", zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(p.Close)
	return p
}

func TestPublish_WithoutConnection(t *testing.T) {
	p := &Publisher{logger: zerolog.Nop()}

	err := p.Publish(context.Background(), "looms.events", []byte("{}"))
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestPublish_ClosedConnection(t *testing.T) {
	// Setup
	p := newOfflinePublisher(t)
	p.Close()

	// Execute
	err := p.Publish(context.Background(), "looms.events", []byte("{}"))

	// Assert
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestPublish_NoDeadlineSkipsFlush(t *testing.T) {
	// Setup
	p := newOfflinePublisher(t)

	// Execute
	start := time.Now()
	err := p.Publish(context.Background(), "looms.events", []byte("{}"))

	// Assert
	assert.NoError(t, err)
	assert.Less(t, time.Since(start), time.Second)
}

func TestPublish_DeadlineWaitsForFlush(t *testing.T) {
	// Setup
	p := newOfflinePublisher(t)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	// Execute
	err := p.Publish(ctx, "looms.events", []byte("{}"))

	// Assert
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
