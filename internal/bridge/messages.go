package bridge

import (
	"strings"
	"time"

	"github.com/nerrad567/hubspace-bridge/internal/device"
	"github.com/nerrad567/hubspace-bridge/internal/entity"
)

// StateMessage is the retained JSON published on an entity's state topic.
// Field names follow the Home Assistant MQTT JSON schema so discovery
// configs can read them with plain value templates.
type StateMessage struct {
	// State is ON/OFF for lights, fans and switches, open/closed for
	// valves, and LOCKED/UNLOCKED/LOCKING/UNLOCKING/JAMMED for locks.
	State string `json:"state,omitempty"`

	Brightness *int             `json:"brightness,omitempty"`
	ColorMode  entity.ColorMode `json:"color_mode,omitempty"`
	ColorTemp  *int             `json:"color_temp,omitempty"` // kelvin
	Color      *entity.RGB      `json:"color,omitempty"`
	Percentage *int             `json:"percentage,omitempty"`
	PresetMode string           `json:"preset_mode,omitempty"`
	Direction  string           `json:"direction,omitempty"`

	Available  bool           `json:"available"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// NewStateMessage converts an entity snapshot into its MQTT state message.
func NewStateMessage(s entity.Snapshot) StateMessage {
	msg := StateMessage{
		Brightness: s.Brightness,
		ColorMode:  s.ColorMode,
		ColorTemp:  s.ColorTempKelvin,
		Color:      s.RGB,
		Percentage: s.Percentage,
		PresetMode: s.PresetMode,
		Direction:  s.Direction,
		Available:  s.Available,
		Attributes: s.Attributes,
	}

	switch s.Kind {
	case entity.KindValve:
		msg.State = s.Position
	case entity.KindLock:
		msg.State = strings.ToUpper(s.Position)
	default:
		if s.On != nil {
			msg.State = "OFF"
			if *s.On {
				msg.State = "ON"
			}
		}
	}
	return msg
}

// CommandMessage is the escape-hatch payload on an entity's command topic.
//
//	{"id": "c1", "function_class": "toggle", "function_instance": "comfort-breeze", "value": "enabled"}
type CommandMessage struct {
	ID               string `json:"id,omitempty"`
	FunctionClass    string `json:"function_class"`
	FunctionInstance string `json:"function_instance,omitempty"`
	Value            any    `json:"value"`
}

// Tuple returns the state tuple the command writes.
func (c CommandMessage) Tuple() device.State {
	return device.State{Class: c.FunctionClass, Instance: c.FunctionInstance, Value: c.Value}
}

// AckStatus is the outcome reported in an acknowledgement.
type AckStatus string

// Acknowledgement statuses.
const (
	AckAccepted AckStatus = "accepted"
	AckFailed   AckStatus = "failed"
)

// Error codes carried in failed acknowledgements.
const (
	ErrCodeInvalidPayload = "INVALID_PAYLOAD"
	ErrCodeNotSupported   = "NOT_SUPPORTED"
	ErrCodeInvalidValue   = "INVALID_VALUE"
	ErrCodeNotFound       = "ENTITY_NOT_FOUND"
	ErrCodeCloudError     = "CLOUD_ERROR"
)

// AckMessage is published on hubspace/ack/<uid> after every set or command.
type AckMessage struct {
	CommandID string    `json:"command_id,omitempty"`
	EntityID  string    `json:"entity_id"`
	Action    string    `json:"action,omitempty"`
	Status    AckStatus `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Error     *AckError `json:"error,omitempty"`
}

// AckError describes why a command failed.
type AckError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Payloads understood on bridge topics.
const (
	// PayloadPress is sent by the diagnostics button.
	PayloadPress = "PRESS"

	// PayloadOnline is the Home Assistant birth message.
	PayloadOnline = "online"
)
