package tagreader

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/benmeehan/loomwatch/internal/mocks"
	pkgmqtt "github.com/benmeehan/loomwatch/pkg/mqtt"
	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func mockFactory(client *mocks.MockMQTTClient, seen **paho.ClientOptions) ClientFactory {
	return func(opts *paho.ClientOptions) pkgmqtt.MQTTClient {
		*seen = opts
		return client
	}
}

func TestMQTTDriver_ReadsRetainedMessage(t *testing.T) {
	// Setup
	client := new(mocks.MockMQTTClient)
	client.On("Connect").Return(mocks.NewDoneToken(nil))
	client.On("Subscribe", "looms/01/running", byte(1), mock.Anything).
		Run(func(args mock.Arguments) {
			handler := args.Get(2).(paho.MessageHandler)
			handler(nil, mocks.NewMockMessage("looms/01/running", []byte("true"), true))
		}).
		Return(mocks.NewDoneToken(nil))
	client.On("Disconnect", uint(0)).Return()

	var opts *paho.ClientOptions
	d := NewMQTTDriver(time.Second).WithClientFactory(mockFactory(client, &opts))

	// Execute
	v, err := d.ReadBool(context.Background(), "tcp://broker:1883", "looms/01/running")

	// Assert
	require.NoError(t, err)
	assert.True(t, v)
	require.NotNil(t, opts)
	assert.Contains(t, opts.ClientID, "loomwatch-read-")
	client.AssertExpectations(t)
}

func TestMQTTDriver_ConnectFailure(t *testing.T) {
	client := new(mocks.MockMQTTClient)
	client.On("Connect").Return(mocks.NewDoneToken(errors.New("not authorized")))
	client.On("Disconnect", uint(0)).Return()

	var opts *paho.ClientOptions
	d := NewMQTTDriver(time.Second).WithClientFactory(mockFactory(client, &opts))

	_, err := d.ReadBool(context.Background(), "tcp://broker:1883", "looms/01/running")
	assert.ErrorContains(t, err, "not authorized")
	client.AssertCalled(t, "Disconnect", uint(0))
}

func TestMQTTDriver_PendingConnectIsDisconnected(t *testing.T) {
	// Setup
	client := new(mocks.MockMQTTClient)
	client.On("Connect").Return(mocks.NewPendingToken())
	client.On("Disconnect", uint(0)).Return()

	var opts *paho.ClientOptions
	d := NewMQTTDriver(time.Second).WithClientFactory(mockFactory(client, &opts))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	// Execute
	_, err := d.ReadBool(ctx, "tcp://broker:1883", "looms/03/running")

	// Assert
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	client.AssertCalled(t, "Disconnect", uint(0))
	client.AssertNotCalled(t, "Subscribe", mock.Anything, mock.Anything, mock.Anything)
}

func TestMQTTDriver_NoMessageTimesOut(t *testing.T) {
	client := new(mocks.MockMQTTClient)
	client.On("Connect").Return(mocks.NewDoneToken(nil))
	client.On("Subscribe", "looms/02/running", byte(1), mock.Anything).Return(mocks.NewDoneToken(nil))
	client.On("Disconnect", uint(0)).Return()

	var opts *paho.ClientOptions
	d := NewMQTTDriver(time.Second).WithClientFactory(mockFactory(client, &opts))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := d.ReadBool(ctx, "tcp://broker:1883", "looms/02/running")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	client.AssertCalled(t, "Disconnect", uint(0))
}

func TestMQTTDriver_NonBooleanPayload(t *testing.T) {
	client := new(mocks.MockMQTTClient)
	client.On("Connect").Return(mocks.NewDoneToken(nil))
	client.On("Subscribe", "t", byte(1), mock.Anything).
		Run(func(args mock.Arguments) {
			args.Get(2).(paho.MessageHandler)(nil, mocks.NewMockMessage("t", []byte(`{"speed":3}`), true))
		}).
		Return(mocks.NewDoneToken(nil))
	client.On("Disconnect", uint(0)).Return()

	var opts *paho.ClientOptions
	d := NewMQTTDriver(time.Second).WithClientFactory(mockFactory(client, &opts))

	_, err := d.ReadBool(context.Background(), "tcp://broker:1883", "t")
	assert.ErrorIs(t, err, ErrNotBoolean)
}
