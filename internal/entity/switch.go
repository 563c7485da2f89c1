package entity

import (
	"fmt"

	"github.com/nerrad567/hubspace-bridge/internal/device"
)

// Switch is an on/off control bound to one function class and instance,
// such as a single socket of a multi-outlet plug.
type Switch struct {
	base
	class    string
	instance string

	on *bool
}

// NewSwitch builds a switch bound to one function of a descriptor.
//
// Entities for one instance of a multi-instance device are named
// "<friendly name> <instance>" and get the instance appended to their id.
func NewSwitch(d device.Device, f device.Function, logger Logger) *Switch {
	suffix := f.Instance
	name := d.FriendlyName
	if suffix == "" {
		suffix = f.Class
	} else {
		name = d.FriendlyName + " " + f.Instance
	}
	return &Switch{
		base:     newBase(KindSwitch, d.ID+"_"+suffix, name, d, logger),
		class:    f.Class,
		instance: f.Instance,
	}
}

// Instance returns the function instance the switch is bound to.
func (s *Switch) Instance() string { return s.instance }

// Apply implements Entity. Only tuples for the bound class and instance
// change the switch position.
func (s *Switch) Apply(states []device.State) {
	for _, st := range states {
		if st.Class == device.FunctionToggle || st.Class == device.FunctionPower {
			if st.Class == s.class && st.Instance == s.instance {
				s.on = ptr(stringValue(st.Value) == "on")
			}
			continue
		}
		s.keepAttribute(st)
	}
}

// Translate implements Entity.
func (s *Switch) Translate(a Action) ([]device.State, error) {
	switch act := a.(type) {
	case TurnOn:
		if act.Brightness != nil || act.ColorTempKelvin != nil || act.RGB != nil ||
			act.Percentage != nil || act.PresetMode != nil {
			return nil, fmt.Errorf("%w: attributes on switch", ErrNotSupported)
		}
		return []device.State{tuple(s.class, s.instance, "on")}, nil
	case TurnOff:
		return []device.State{tuple(s.class, s.instance, "off")}, nil
	default:
		return nil, fmt.Errorf("%w: %s on switch", ErrNotSupported, a.ActionName())
	}
}

// Snapshot implements Entity. On is nil until the first state is seen.
func (s *Switch) Snapshot() Snapshot {
	snap := s.snapshot()
	if s.on != nil {
		snap.On = ptr(*s.on)
	}
	return snap
}
