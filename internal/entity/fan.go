package entity

import (
	"fmt"
	"slices"

	"github.com/nerrad567/hubspace-bridge/internal/device"
)

// FanFeature is a bit set of optional fan features.
type FanFeature int

// Fan features. Values match Home Assistant's FanEntityFeature.
const (
	FanFeatureSetSpeed   FanFeature = 1
	FanFeatureOscillate  FanFeature = 2
	FanFeatureDirection  FanFeature = 4
	FanFeaturePresetMode FanFeature = 8
	FanFeatureTurnOff    FanFeature = 16
	FanFeatureTurnOn     FanFeature = 32
)

// Has reports whether all bits of f are set.
func (s FanFeature) Has(f FanFeature) bool { return s&f == f }

// presetNames maps toggle instances to host preset names.
var presetNames = map[string]string{
	"comfort-breeze": "breeze",
}

// PresetName returns the host preset name for a toggle instance.
// Unknown instances keep their name.
func PresetName(instance string) string {
	if name, ok := presetNames[instance]; ok {
		return name
	}
	return instance
}

// FanCapabilities is the immutable feature set of a fan.
type FanCapabilities struct {
	Features FanFeature

	// Speeds is the sorted speed ladder with off sentinels removed.
	Speeds []string

	// Presets maps host preset names to toggle instances, first wins.
	Presets     map[string]string
	PresetOrder []string

	PowerInstance string
	Instances     map[string]string
}

// PresetModes returns the preset names in discovery order.
func (c FanCapabilities) PresetModes() []string {
	return slices.Clone(c.PresetOrder)
}

// MapFanCapabilities derives fan capabilities from a function list.
func MapFanCapabilities(functions []device.Function, logger Logger) FanCapabilities {
	if logger == nil {
		logger = noopLogger{}
	}
	caps := FanCapabilities{
		Presets:   make(map[string]string),
		Instances: make(map[string]string),
	}
	speedsSeen := false

	for _, f := range functions {
		switch f.Class {
		case device.FunctionToggle:
			if f.Instance == "" {
				logger.Debug("ignoring toggle without instance")
				continue
			}
			name := PresetName(f.Instance)
			if _, dup := caps.Presets[name]; dup {
				continue
			}
			caps.Presets[name] = f.Instance
			caps.PresetOrder = append(caps.PresetOrder, name)
			caps.Features |= FanFeaturePresetMode
		case device.FunctionFanSpeed:
			recordInstance(caps.Instances, f)
			if speedsSeen {
				continue
			}
			speedsSeen = true
			caps.Speeds = speedLadder(f.Values, logger)
			caps.Features |= FanFeatureSetSpeed
		case device.FunctionFanReverse:
			recordInstance(caps.Instances, f)
			caps.Features |= FanFeatureDirection
		case device.FunctionPower:
			recordInstance(caps.Instances, f)
			caps.PowerInstance = caps.Instances[device.FunctionPower]
			caps.Features |= FanFeatureTurnOn | FanFeatureTurnOff
		default:
			logger.Debug("unmapped fan function", "class", f.Class, "instance", f.Instance)
		}
	}
	return caps
}

// speedLadder collects speed names, expanding ranged values and removing
// the off sentinel. A range that cannot be expanded is skipped.
func speedLadder(values []device.FunctionValue, logger Logger) []string {
	var speeds []string
	for _, v := range values {
		names := []string{v.Name}
		if v.Range != nil {
			labels, err := v.Range.Labels(v.Name)
			if err != nil {
				logger.Debug("ignoring fan speed range", "name", v.Name, "error", err)
				continue
			}
			names = labels
		}
		for _, n := range names {
			if IsOffSpeed(n) || slices.Contains(speeds, n) {
				continue
			}
			speeds = append(speeds, n)
		}
	}
	slices.Sort(speeds)
	return speeds
}

// Fan is a ceiling or standing fan with speed, direction and presets.
type Fan struct {
	base
	caps FanCapabilities

	on           bool
	speed        string
	reverse      bool
	activePreset string // toggle instance, empty when none
}

// NewFan builds a fan entity for a descriptor.
func NewFan(d device.Device, logger Logger) *Fan {
	return &Fan{
		base: newBase(KindFan, d.ID+"_fan", d.FriendlyName, d, logger),
		caps: MapFanCapabilities(d.Functions, logger),
	}
}

// Capabilities returns the fan's immutable feature set.
func (f *Fan) Capabilities() FanCapabilities { return f.caps }

// Apply implements Entity.
func (f *Fan) Apply(states []device.State) {
	for _, s := range states {
		switch s.Class {
		case device.FunctionFanSpeed, device.FunctionFanReverse, device.FunctionPower:
			if s.Instance != "" && s.Instance != f.caps.Instances[s.Class] {
				continue
			}
		}
		switch s.Class {
		case device.FunctionToggle:
			if _, known := f.presetFor(s.Instance); !known {
				f.keepAttribute(s)
				continue
			}
			switch stringValue(s.Value) {
			case "enabled":
				f.activePreset = s.Instance
			case "disabled":
				if f.activePreset == s.Instance {
					f.activePreset = ""
				}
			}
		case device.FunctionFanSpeed:
			f.speed = stringValue(s.Value)
		case device.FunctionFanReverse:
			f.reverse = stringValue(s.Value) == DirectionReverse
		case device.FunctionPower:
			f.on = stringValue(s.Value) == "on"
		default:
			f.keepAttribute(s)
		}
	}
}

// Percentage returns the current speed as a percentage of the ladder.
func (f *Fan) Percentage() int {
	if f.speed == "" || IsOffSpeed(f.speed) {
		return 0
	}
	pct, err := OrderedListItemToPercentage(f.caps.Speeds, f.speed)
	if err != nil {
		return 0
	}
	return pct
}

// Translate implements Entity.
func (f *Fan) Translate(a Action) ([]device.State, error) {
	switch act := a.(type) {
	case TurnOn:
		return f.turnOn(act)
	case TurnOff:
		if !f.caps.Features.Has(FanFeatureTurnOff) {
			return nil, fmt.Errorf("%w: turn_off on fan", ErrNotSupported)
		}
		return []device.State{f.power("off")}, nil
	case SetPercentage:
		return f.setPercentage(act.Percentage)
	case SetPresetMode:
		return f.setPreset(act.PresetMode)
	case SetDirection:
		return f.setDirection(act.Direction)
	default:
		return nil, fmt.Errorf("%w: %s on fan", ErrNotSupported, a.ActionName())
	}
}

func (f *Fan) turnOn(act TurnOn) ([]device.State, error) {
	if !f.caps.Features.Has(FanFeatureTurnOn) {
		return nil, fmt.Errorf("%w: turn_on on fan", ErrNotSupported)
	}
	if act.Brightness != nil || act.ColorTempKelvin != nil || act.RGB != nil {
		return nil, fmt.Errorf("%w: light attributes on fan", ErrNotSupported)
	}

	out := []device.State{f.power("on")}
	if act.Percentage != nil && *act.Percentage > 0 {
		speed, err := f.speedTuple(*act.Percentage)
		if err != nil {
			return nil, err
		}
		out = append(out, speed)
	}
	if act.PresetMode != nil {
		preset, err := f.setPreset(*act.PresetMode)
		if err != nil {
			return nil, err
		}
		out = append(out, preset...)
	}
	return out, nil
}

func (f *Fan) setPercentage(pct int) ([]device.State, error) {
	if pct < 0 || pct > 100 {
		return nil, fmt.Errorf("%w: percentage %d", ErrInvalidValue, pct)
	}
	if pct == 0 {
		if !f.caps.Features.Has(FanFeatureTurnOff) {
			return nil, fmt.Errorf("%w: turn_off on fan", ErrNotSupported)
		}
		return []device.State{f.power("off")}, nil
	}
	speed, err := f.speedTuple(pct)
	if err != nil {
		return nil, err
	}
	return []device.State{speed}, nil
}

func (f *Fan) speedTuple(pct int) (device.State, error) {
	if pct < 0 || pct > 100 {
		return device.State{}, fmt.Errorf("%w: percentage %d", ErrInvalidValue, pct)
	}
	if !f.caps.Features.Has(FanFeatureSetSpeed) || len(f.caps.Speeds) == 0 {
		return device.State{}, fmt.Errorf("%w: set_percentage on fan", ErrNotSupported)
	}
	speed, err := PercentageToOrderedListItem(f.caps.Speeds, pct)
	if err != nil {
		return device.State{}, err
	}
	return tuple(device.FunctionFanSpeed, f.caps.Instances[device.FunctionFanSpeed], speed), nil
}

// setPreset activates a preset, or clears the active one when mode is empty.
func (f *Fan) setPreset(mode string) ([]device.State, error) {
	if !f.caps.Features.Has(FanFeaturePresetMode) {
		return nil, fmt.Errorf("%w: set_preset_mode on fan", ErrNotSupported)
	}
	if mode == "" {
		if f.activePreset == "" {
			return nil, nil
		}
		return []device.State{tuple(device.FunctionToggle, f.activePreset, "disabled")}, nil
	}
	instance, ok := f.caps.Presets[mode]
	if !ok {
		return nil, fmt.Errorf("%w: preset %q", ErrInvalidValue, mode)
	}
	return []device.State{tuple(device.FunctionToggle, instance, "enabled")}, nil
}

func (f *Fan) setDirection(direction string) ([]device.State, error) {
	if !f.caps.Features.Has(FanFeatureDirection) {
		return nil, fmt.Errorf("%w: set_direction on fan", ErrNotSupported)
	}
	if direction != DirectionForward && direction != DirectionReverse {
		return nil, fmt.Errorf("%w: direction %q", ErrInvalidValue, direction)
	}
	return []device.State{tuple(device.FunctionFanReverse, f.caps.Instances[device.FunctionFanReverse], direction)}, nil
}

func (f *Fan) power(value string) device.State {
	return tuple(device.FunctionPower, f.caps.PowerInstance, value)
}

// presetFor returns the host preset name of a toggle instance.
func (f *Fan) presetFor(instance string) (string, bool) {
	for name, inst := range f.caps.Presets {
		if inst == instance {
			return name, true
		}
	}
	return "", false
}

// Snapshot implements Entity.
func (f *Fan) Snapshot() Snapshot {
	s := f.snapshot()
	s.On = ptr(f.on)
	if f.caps.Features.Has(FanFeatureSetSpeed) {
		s.Percentage = ptr(f.Percentage())
	}
	if f.caps.Features.Has(FanFeatureDirection) {
		s.Direction = DirectionForward
		if f.reverse {
			s.Direction = DirectionReverse
		}
	}
	if f.activePreset != "" {
		s.PresetMode, _ = f.presetFor(f.activePreset)
	}
	return s
}
