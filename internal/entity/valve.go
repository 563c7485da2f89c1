package entity

import (
	"fmt"

	"github.com/nerrad567/hubspace-bridge/internal/device"
)

// Valve positions.
const (
	ValveOpen   = "open"
	ValveClosed = "closed"
)

// Valve is one zone of a water timer, driven by a toggle instance.
type Valve struct {
	base
	instance string

	open *bool
}

// NewValve builds a valve bound to one toggle instance of a descriptor.
func NewValve(d device.Device, instance string, logger Logger) *Valve {
	name := d.FriendlyName
	if instance != "" {
		name = d.FriendlyName + " " + instance
	}
	return &Valve{
		base:     newBase(KindValve, d.ID+"_"+instance, name, d, logger),
		instance: instance,
	}
}

// Instance returns the toggle instance the valve is bound to.
func (v *Valve) Instance() string { return v.instance }

// Apply implements Entity.
func (v *Valve) Apply(states []device.State) {
	for _, s := range states {
		if s.Class == device.FunctionToggle {
			if s.Instance == v.instance {
				v.open = ptr(stringValue(s.Value) == "on")
			}
			continue
		}
		v.keepAttribute(s)
	}
}

// Translate implements Entity.
func (v *Valve) Translate(a Action) ([]device.State, error) {
	switch a.(type) {
	case OpenValve:
		return []device.State{tuple(device.FunctionToggle, v.instance, "on")}, nil
	case CloseValve:
		return []device.State{tuple(device.FunctionToggle, v.instance, "off")}, nil
	default:
		return nil, fmt.Errorf("%w: %s on valve", ErrNotSupported, a.ActionName())
	}
}

// Snapshot implements Entity.
func (v *Valve) Snapshot() Snapshot {
	s := v.snapshot()
	if v.open != nil {
		s.Position = ValveClosed
		if *v.open {
			s.Position = ValveOpen
		}
	}
	return s
}
