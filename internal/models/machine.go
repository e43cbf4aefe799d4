package models

import (
	"strings"
	"time"

	"github.com/benmeehan/loomwatch/internal/constants"
)

// CommunicationType names the protocol used to read the running tag of a machine.
type CommunicationType string

const (
	CommunicationOPCUA     CommunicationType = "OPC_UA"
	CommunicationModbusTCP CommunicationType = "MODBUS_TCP"
	CommunicationMQTT      CommunicationType = "MQTT"
)

// Hierarchy places a machine in the business structure. Only used for filtering and reporting.
type Hierarchy struct {
	Unit   string `json:"unit" yaml:"unit"`
	Plant  string `json:"plant" yaml:"plant"`
	Sector string `json:"sector" yaml:"sector"`
}

// Communication describes how the running tag of a machine is read.
type Communication struct {
	Type     CommunicationType `json:"type" yaml:"type"`
	Endpoint string            `json:"endpoint" yaml:"endpoint"`
	Tag      string            `json:"tag" yaml:"tag"`
}

// Machine is one entry of the machines file.
type Machine struct {
	Name          string         `json:"name" yaml:"name"`
	ExternalID    string         `json:"api_id" yaml:"api_id"`
	Address       string         `json:"ip" yaml:"ip"`
	Port          int            `json:"port,omitempty" yaml:"port,omitempty"`
	Unit          string         `json:"unit,omitempty" yaml:"unit,omitempty"`
	Plant         string         `json:"plant,omitempty" yaml:"plant,omitempty"`
	Sector        string         `json:"sector,omitempty" yaml:"sector,omitempty"`
	Communication *Communication `json:"communication,omitempty" yaml:"communication,omitempty"`
}

// ID returns the key used for every per-machine map in the monitor.
func (m Machine) ID() string {
	return m.Name
}

// ClassificationKey returns the key under which the classification feed reports this machine.
func (m Machine) ClassificationKey() string {
	return strings.ToUpper(strings.TrimSpace(m.ExternalID))
}

// Hierarchy returns the machine hierarchy with empty levels replaced by the default.
func (m Machine) Hierarchy() Hierarchy {
	return Hierarchy{
		Unit:   orDefault(m.Unit),
		Plant:  orDefault(m.Plant),
		Sector: orDefault(m.Sector),
	}
}

// HasTag reports whether the machine has a readable running tag configured.
func (m Machine) HasTag() bool {
	return m.Communication != nil && m.Communication.Endpoint != "" && m.Communication.Tag != ""
}

func orDefault(s string) string {
	if strings.TrimSpace(s) == "" {
		return constants.DefaultHierarchy
	}
	return s
}

// MachineState is the per-machine memory owned by the scan loop. It is the only
// state the debounce/hysteresis filter reads and writes.
type MachineState struct {
	Status       Status     `json:"status"`
	Detail       string     `json:"detail,omitempty"`
	Color        string     `json:"color"`
	Since        time.Time  `json:"since"`
	FailureCount int        `json:"failure_count"`
	RecoveryFrom *time.Time `json:"-"`
}

// NewMachineState returns the state of a machine that has never been observed.
func NewMachineState(now time.Time) MachineState {
	return MachineState{
		Status: StatusUnknown,
		Color:  constants.ColorGray,
		Since:  now,
	}
}

// Label is the human readable status, e.g. "STOPPED | MECHANICAL MAINTENANCE".
func (s MachineState) Label() string {
	return StatusLabel(s.Status, s.Detail)
}

// StatusLabel joins a status and its display detail.
func StatusLabel(status Status, detail string) string {
	detail = strings.TrimSpace(detail)
	if detail == "" {
		return string(status)
	}
	return string(status) + " | " + detail
}
