package tagreader

import (
	"context"
	"fmt"
	"time"

	"github.com/gopcua/opcua"
	"github.com/gopcua/opcua/ua"
)

// OPCUADriver reads a node value over an unsecured OPC UA session.
type OPCUADriver struct {
	ConnectTimeout time.Duration
	SessionTimeout time.Duration
}

// NewOPCUADriver creates an OPC UA driver.
func NewOPCUADriver(connectTimeout, sessionTimeout time.Duration) *OPCUADriver {
	return &OPCUADriver{ConnectTimeout: connectTimeout, SessionTimeout: sessionTimeout}
}

// ReadBool connects to endpoint, reads the value attribute of the node id in tag and
// closes the session.
func (d *OPCUADriver) ReadBool(ctx context.Context, endpoint, tag string) (bool, error) {
	nodeID, err := ua.ParseNodeID(tag)
	if err != nil {
		return false, fmt.Errorf("invalid node id %q: %w", tag, err)
	}

	client, err := opcua.NewClient(endpoint,
		opcua.SecurityMode(ua.MessageSecurityModeNone),
		opcua.DialTimeout(d.ConnectTimeout),
		opcua.SessionTimeout(d.SessionTimeout),
		opcua.RequestTimeout(d.SessionTimeout),
		opcua.AutoReconnect(false),
	)
	if err != nil {
		return false, fmt.Errorf("failed to create OPC UA client: %w", err)
	}

	if err := client.Connect(ctx); err != nil {
		return false, fmt.Errorf("failed to connect to %s: %w", endpoint, err)
	}
	defer client.Close(context.Background())

	resp, err := client.Read(ctx, &ua.ReadRequest{
		NodesToRead: []*ua.ReadValueID{
			{NodeID: nodeID, AttributeID: ua.AttributeIDValue},
		},
		TimestampsToReturn: ua.TimestampsToReturnBoth,
	})
	if err != nil {
		return false, fmt.Errorf("read request failed: %w", err)
	}
	if len(resp.Results) == 0 {
		return false, fmt.Errorf("empty read response for %s", tag)
	}

	result := resp.Results[0]
	if result.Status != ua.StatusOK {
		return false, fmt.Errorf("bad status for %s: %v", tag, result.Status)
	}
	if result.Value == nil {
		return false, fmt.Errorf("%w: empty value", ErrNotBoolean)
	}

	return CoerceBool(result.Value.Value())
}
