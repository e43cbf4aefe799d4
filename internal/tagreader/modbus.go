package tagreader

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/simonvetter/modbus"
)

// ModbusArea is the Modbus data table a tag points into.
type ModbusArea string

const (
	AreaCoil          ModbusArea = "coil"
	AreaDiscrete      ModbusArea = "discrete"
	AreaHolding       ModbusArea = "holding"
	AreaInputRegister ModbusArea = "input"
)

// ModbusTag is a parsed Modbus tag of the form "<area>:<address>[@<unit>]".
type ModbusTag struct {
	Area    ModbusArea
	Address uint16
	Unit    uint8
}

// ParseModbusTag parses tags such as "coil:12", "discrete:3@2" or "holding:100".
func ParseModbusTag(tag string) (ModbusTag, error) {
	parsed := ModbusTag{Unit: 1}

	body := strings.TrimSpace(tag)
	if at := strings.LastIndex(body, "@"); at >= 0 {
		unit, err := strconv.ParseUint(body[at+1:], 10, 8)
		if err != nil {
			return parsed, fmt.Errorf("invalid unit id in %q: %w", tag, err)
		}
		parsed.Unit = uint8(unit)
		body = body[:at]
	}

	area, addr, ok := strings.Cut(body, ":")
	if !ok {
		return parsed, fmt.Errorf("invalid modbus tag %q, want <area>:<address>", tag)
	}

	switch a := ModbusArea(strings.ToLower(area)); a {
	case AreaCoil, AreaDiscrete, AreaHolding, AreaInputRegister:
		parsed.Area = a
	default:
		return parsed, fmt.Errorf("unknown modbus area %q", area)
	}

	address, err := strconv.ParseUint(addr, 10, 16)
	if err != nil {
		return parsed, fmt.Errorf("invalid address in %q: %w", tag, err)
	}
	parsed.Address = uint16(address)

	return parsed, nil
}

// ModbusDriver reads a coil, discrete input or register over Modbus TCP.
type ModbusDriver struct {
	Timeout time.Duration
}

// NewModbusDriver creates a Modbus TCP driver.
func NewModbusDriver(timeout time.Duration) *ModbusDriver {
	return &ModbusDriver{Timeout: timeout}
}

// ReadBool opens a TCP connection to endpoint, reads the tag and closes the connection.
// Registers are true when non-zero.
func (d *ModbusDriver) ReadBool(ctx context.Context, endpoint, tag string) (bool, error) {
	parsed, err := ParseModbusTag(tag)
	if err != nil {
		return false, err
	}

	timeout := d.Timeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = min(timeout, time.Until(deadline))
	}
	if timeout <= 0 {
		return false, context.DeadlineExceeded
	}

	client, err := modbus.NewClient(&modbus.ClientConfiguration{
		URL:     modbusURL(endpoint),
		Timeout: timeout,
	})
	if err != nil {
		return false, fmt.Errorf("failed to create modbus client: %w", err)
	}

	if err := client.Open(); err != nil {
		return false, fmt.Errorf("failed to connect to %s: %w", endpoint, err)
	}
	defer client.Close()

	if err := client.SetUnitId(parsed.Unit); err != nil {
		return false, fmt.Errorf("failed to set unit id: %w", err)
	}

	switch parsed.Area {
	case AreaCoil:
		return client.ReadCoil(parsed.Address)
	case AreaDiscrete:
		return client.ReadDiscreteInput(parsed.Address)
	case AreaHolding:
		v, err := client.ReadRegister(parsed.Address, modbus.HOLDING_REGISTER)
		if err != nil {
			return false, err
		}
		return CoerceBool(v)
	default:
		v, err := client.ReadRegister(parsed.Address, modbus.INPUT_REGISTER)
		if err != nil {
			return false, err
		}
		return CoerceBool(v)
	}
}

func modbusURL(endpoint string) string {
	if strings.Contains(endpoint, "://") {
		return endpoint
	}
	return "tcp://" + endpoint
}
