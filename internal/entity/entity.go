package entity

import (
	"encoding/json"
	"maps"

	"github.com/nerrad567/hubspace-bridge/internal/device"
)

// Kind is the host entity type. Values match Home Assistant component names.
type Kind string

// Supported entity kinds.
const (
	KindLight  Kind = "light"
	KindFan    Kind = "fan"
	KindSwitch Kind = "switch"
	KindValve  Kind = "valve"
	KindLock   Kind = "lock"
)

// Logger defines the logging interface used by the entity package.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Entity is a host-facing view of one controllable part of a device.
//
// Capabilities are fixed at construction. Observed state changes only
// through Apply. Entities are not safe for concurrent use; callers
// serialise access.
type Entity interface {
	// UniqueID is stable across restarts and unique within the account.
	UniqueID() string
	Name() string
	Kind() Kind

	// ChildID is the cloud id every write for this entity targets.
	ChildID() string

	// Descriptor returns the device descriptor the entity was built from.
	Descriptor() device.Device

	Available() bool
	SetAvailable(available bool)

	// Apply projects state tuples onto the observed state.
	Apply(states []device.State)

	// Translate turns an action into the tuples to write. A nil slice with a
	// nil error means there is nothing to send.
	Translate(a Action) ([]device.State, error)

	// Snapshot returns a copy of the observable properties.
	Snapshot() Snapshot
}

// RGB is an 8-bit color triple.
type RGB struct {
	R int `json:"r"`
	G int `json:"g"`
	B int `json:"b"`
}

// Snapshot is the host-facing property set of an entity.
type Snapshot struct {
	UniqueID  string `json:"unique_id"`
	Name      string `json:"name"`
	Kind      Kind   `json:"kind"`
	ChildID   string `json:"child_id"`
	Available bool   `json:"available"`

	On              *bool     `json:"is_on,omitempty"`
	Brightness      *int      `json:"brightness,omitempty"`
	ColorMode       ColorMode `json:"color_mode,omitempty"`
	ColorTempKelvin *int      `json:"color_temp_kelvin,omitempty"`
	RGB             *RGB      `json:"rgb_color,omitempty"`
	Percentage      *int      `json:"percentage,omitempty"`
	PresetMode      string    `json:"preset_mode,omitempty"`
	Direction       string    `json:"direction,omitempty"`

	// Position is the valve (open/closed) or lock position.
	Position string `json:"position,omitempty"`

	Attributes map[string]any `json:"attributes"`
}

// Record converts the snapshot into the JSON-shaped map stored in history.
func (s Snapshot) Record() device.Snapshot {
	raw, err := json.Marshal(s)
	if err != nil {
		return device.Snapshot{"unique_id": s.UniqueID}
	}
	var out device.Snapshot
	if err := json.Unmarshal(raw, &out); err != nil {
		return device.Snapshot{"unique_id": s.UniqueID}
	}
	return out
}

// base carries the identity and side-channel attributes shared by all kinds.
type base struct {
	uniqueID  string
	name      string
	kind      Kind
	dev       device.Device
	available bool
	attrs     map[string]any
	logger    Logger
}

func newBase(kind Kind, uniqueID, name string, d device.Device, logger Logger) base {
	if logger == nil {
		logger = noopLogger{}
	}
	dev := d.DeepCopy()
	dev.States = nil
	return base{
		uniqueID:  uniqueID,
		name:      name,
		kind:      kind,
		dev:       *dev,
		available: true,
		attrs: map[string]any{
			"model":    d.Model,
			"deviceId": d.DeviceID,
			"Child ID": d.ID,
		},
		logger: logger,
	}
}

func (b *base) UniqueID() string             { return b.uniqueID }
func (b *base) Name() string                 { return b.name }
func (b *base) Kind() Kind                   { return b.kind }
func (b *base) ChildID() string              { return b.dev.ID }
func (b *base) Available() bool              { return b.available }
func (b *base) SetAvailable(available bool)  { b.available = available }
func (b *base) Descriptor() device.Device    { return *b.dev.DeepCopy() }
func (b *base) keepAttribute(s device.State) { b.attrs[s.Key()] = s.Value }

func (b *base) snapshot() Snapshot {
	return Snapshot{
		UniqueID:   b.uniqueID,
		Name:       b.name,
		Kind:       b.kind,
		ChildID:    b.dev.ID,
		Available:  b.available,
		Attributes: maps.Clone(b.attrs),
	}
}

// tuple builds a write request for class on the recorded instance.
func tuple(class, instance string, value any) device.State {
	return device.State{Class: class, Instance: instance, Value: value}
}

// recordInstance stores the first instance seen for each class.
func recordInstance(instances map[string]string, f device.Function) {
	if _, ok := instances[f.Class]; !ok {
		instances[f.Class] = f.Instance
	}
}

func stringValue(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

func ptr[T any](v T) *T { return &v }
