package entity

import (
	"fmt"
	"slices"
	"strings"

	"github.com/nerrad567/hubspace-bridge/internal/device"
)

// ColorMode is a light color mode as understood by the host.
type ColorMode string

// Supported color modes.
const (
	ColorModeOnOff      ColorMode = "onoff"
	ColorModeBrightness ColorMode = "brightness"
	ColorModeColorTemp  ColorMode = "color_temp"
	ColorModeRGB        ColorMode = "rgb"
)

// Device-side color-mode values.
const (
	deviceColorModeColor = "color"
	deviceColorModeWhite = "white"
)

// LightCapabilities is the immutable feature set of a light.
type LightCapabilities struct {
	PowerInstance   string
	Brightness      bool
	BrightnessRange device.Range
	ColorTemps      []int // Kelvin, ascending
	RGB             bool
	ColorModes      []ColorMode

	// Instances maps each function class to the instance recorded for it.
	Instances map[string]string
}

// MinKelvin returns the lowest supported color temperature, or 0.
func (c LightCapabilities) MinKelvin() int {
	if len(c.ColorTemps) == 0 {
		return 0
	}
	return c.ColorTemps[0]
}

// MaxKelvin returns the highest supported color temperature, or 0.
func (c LightCapabilities) MaxKelvin() int {
	if len(c.ColorTemps) == 0 {
		return 0
	}
	return c.ColorTemps[len(c.ColorTemps)-1]
}

// SupportsColorMode reports whether mode is one of the light's color modes.
func (c LightCapabilities) SupportsColorMode(mode ColorMode) bool {
	return slices.Contains(c.ColorModes, mode)
}

// MapLightCapabilities derives light capabilities from a function list.
func MapLightCapabilities(functions []device.Function, logger Logger) LightCapabilities {
	if logger == nil {
		logger = noopLogger{}
	}
	caps := LightCapabilities{
		BrightnessRange: device.Range{Min: 0, Max: 100, Step: 1},
		Instances:       make(map[string]string),
	}
	seenTemps := make(map[int]bool)

	for _, f := range functions {
		switch f.Class {
		case device.FunctionPower:
			recordInstance(caps.Instances, f)
			caps.PowerInstance = caps.Instances[device.FunctionPower]
		case device.FunctionBrightness:
			if !caps.Brightness {
				caps.Brightness = true
				if len(f.Values) > 0 && f.Values[0].Range != nil {
					caps.BrightnessRange = *f.Values[0].Range
				}
			}
			recordInstance(caps.Instances, f)
		case device.FunctionColorTemperature:
			recordInstance(caps.Instances, f)
			for _, v := range f.Values {
				k, err := ParseKelvin(v.Name)
				if err != nil {
					logger.Debug("skipping color temperature", "value", v.Name, "error", err)
					continue
				}
				if !seenTemps[k] {
					seenTemps[k] = true
					caps.ColorTemps = append(caps.ColorTemps, k)
				}
			}
		case device.FunctionColorRGB:
			caps.RGB = true
			recordInstance(caps.Instances, f)
		case device.FunctionColorMode:
			recordInstance(caps.Instances, f)
		default:
			logger.Debug("unmapped light function", "class", f.Class, "instance", f.Instance)
		}
	}
	slices.Sort(caps.ColorTemps)

	if len(caps.ColorTemps) > 0 {
		caps.ColorModes = append(caps.ColorModes, ColorModeColorTemp)
	}
	if caps.RGB {
		caps.ColorModes = append(caps.ColorModes, ColorModeRGB)
	}
	if len(caps.ColorModes) == 0 {
		if caps.Brightness {
			caps.ColorModes = []ColorMode{ColorModeBrightness}
		} else {
			caps.ColorModes = []ColorMode{ColorModeOnOff}
		}
	}
	return caps
}

// Light is a dimmable, optionally color-capable light.
type Light struct {
	base
	caps LightCapabilities

	on         bool
	brightness int
	kelvin     int
	rgb        *RGB
	colorMode  ColorMode
}

// NewLight builds a light entity for a descriptor.
func NewLight(d device.Device, logger Logger) *Light {
	caps := MapLightCapabilities(d.Functions, logger)
	l := &Light{
		base: newBase(KindLight, d.ID, d.FriendlyName, d, logger),
		caps: caps,
	}
	if len(caps.ColorTemps) > 0 {
		temps := make([]string, len(caps.ColorTemps))
		for i, k := range caps.ColorTemps {
			temps[i] = fmt.Sprintf("%dK", k)
		}
		l.attrs["Supported Temperatures"] = temps
	} else {
		l.attrs["Supported Temperatures"] = "NK"
	}
	l.colorMode = l.fallbackColorMode()
	return l
}

// Capabilities returns the light's immutable feature set.
func (l *Light) Capabilities() LightCapabilities { return l.caps }

// Apply implements Entity.
func (l *Light) Apply(states []device.State) {
	for _, s := range states {
		switch s.Class {
		case device.FunctionPower:
			if s.Instance != "" && s.Instance != l.caps.PowerInstance {
				continue
			}
			l.on = stringValue(s.Value) == "on"
		case device.FunctionBrightness:
			l.brightness = BrightnessToHost(s.Value)
		case device.FunctionColorTemperature:
			k, err := ParseKelvin(s.Value)
			if err != nil {
				l.logger.Debug("ignoring color temperature", "entity", l.uniqueID, "value", s.Value)
				continue
			}
			l.kelvin = k
		case device.FunctionColorMode:
			l.colorMode = l.resolveColorMode(stringValue(s.Value))
		case device.FunctionColorRGB:
			if rgb, ok := parseRGB(s.Value); ok {
				l.rgb = rgb
			}
		default:
			l.keepAttribute(s)
		}
	}
}

// Translate implements Entity.
func (l *Light) Translate(a Action) ([]device.State, error) {
	switch act := a.(type) {
	case TurnOn:
		return l.turnOn(act)
	case TurnOff:
		return []device.State{tuple(device.FunctionPower, l.caps.PowerInstance, "off")}, nil
	default:
		return nil, fmt.Errorf("%w: %s on light", ErrNotSupported, a.ActionName())
	}
}

func (l *Light) turnOn(act TurnOn) ([]device.State, error) {
	if act.Percentage != nil || act.PresetMode != nil {
		return nil, fmt.Errorf("%w: fan attributes on light", ErrNotSupported)
	}

	out := []device.State{tuple(device.FunctionPower, l.caps.PowerInstance, "on")}

	if act.Brightness != nil {
		if !l.caps.Brightness {
			return nil, fmt.Errorf("%w: brightness", ErrNotSupported)
		}
		if *act.Brightness < 0 || *act.Brightness > 255 {
			return nil, fmt.Errorf("%w: brightness %d", ErrInvalidValue, *act.Brightness)
		}
		out = append(out, tuple(device.FunctionBrightness,
			l.caps.Instances[device.FunctionBrightness], BrightnessToDevice(*act.Brightness)))
	}

	if act.ColorTempKelvin != nil {
		if len(l.caps.ColorTemps) == 0 {
			return nil, fmt.Errorf("%w: color temperature", ErrNotSupported)
		}
		k := SelectColorTemp(l.caps.ColorTemps, *act.ColorTempKelvin)
		if l.caps.RGB {
			out = append(out, tuple(device.FunctionColorMode,
				l.caps.Instances[device.FunctionColorMode], deviceColorModeWhite))
		}
		out = append(out, tuple(device.FunctionColorTemperature,
			l.caps.Instances[device.FunctionColorTemperature], fmt.Sprintf("%dK", k)))
	}

	if act.RGB != nil {
		if !l.caps.RGB {
			return nil, fmt.Errorf("%w: rgb color", ErrNotSupported)
		}
		for _, c := range []int{act.RGB.R, act.RGB.G, act.RGB.B} {
			if c < 0 || c > 255 {
				return nil, fmt.Errorf("%w: rgb component %d out of range", ErrInvalidValue, c)
			}
		}
		out = append(out,
			tuple(device.FunctionColorMode, l.caps.Instances[device.FunctionColorMode], deviceColorModeColor),
			tuple(device.FunctionColorRGB, l.caps.Instances[device.FunctionColorRGB], map[string]any{
				"color-rgb": map[string]any{"r": act.RGB.R, "g": act.RGB.G, "b": act.RGB.B},
			}),
		)
	}
	return out, nil
}

// Snapshot implements Entity.
func (l *Light) Snapshot() Snapshot {
	s := l.snapshot()
	s.On = ptr(l.on)
	s.ColorMode = l.colorMode
	if l.caps.Brightness {
		s.Brightness = ptr(l.brightness)
	}
	if len(l.caps.ColorTemps) > 0 && l.kelvin > 0 {
		s.ColorTempKelvin = ptr(l.kelvin)
	}
	if l.caps.RGB && l.rgb != nil {
		rgb := *l.rgb
		s.RGB = &rgb
	}
	return s
}

// resolveColorMode maps a device color-mode value onto a supported mode.
func (l *Light) resolveColorMode(v string) ColorMode {
	switch strings.ToLower(v) {
	case deviceColorModeColor:
		if l.caps.RGB {
			return ColorModeRGB
		}
	case deviceColorModeWhite:
		if len(l.caps.ColorTemps) > 0 {
			return ColorModeColorTemp
		}
	}
	return l.fallbackColorMode()
}

func (l *Light) fallbackColorMode() ColorMode {
	for _, m := range []ColorMode{ColorModeColorTemp, ColorModeBrightness, ColorModeRGB, ColorModeOnOff} {
		if l.caps.SupportsColorMode(m) {
			return m
		}
	}
	return ColorModeOnOff
}

// parseRGB reads {"color-rgb": {"r":..,"g":..,"b":..}} or a flat {r,g,b} map.
func parseRGB(v any) (*RGB, bool) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, false
	}
	if nested, ok := m["color-rgb"].(map[string]any); ok {
		m = nested
	}
	var out RGB
	for key, dst := range map[string]*int{"r": &out.R, "g": &out.G, "b": &out.B} {
		f, ok := toFloat(m[key])
		if !ok {
			return nil, false
		}
		*dst = clamp(int(f), 0, 255)
	}
	return &out, true
}
