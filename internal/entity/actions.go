package entity

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Action is a host-level request against an entity.
type Action interface {
	// ActionName identifies the action in logs and API payloads.
	ActionName() string
}

// TurnOn switches an entity on, optionally setting attributes in the same
// request. Unset fields are left unchanged. Brightness is 0-255, Percentage
// is 0-100 and an empty PresetMode clears the active preset.
type TurnOn struct {
	Brightness      *int
	ColorTempKelvin *int
	RGB             *RGB
	Percentage      *int
	PresetMode      *string
}

// TurnOff switches an entity off.
type TurnOff struct{}

// SetPercentage sets a fan speed as a percentage. Zero turns the fan off.
type SetPercentage struct {
	Percentage int
}

// SetPresetMode activates a preset. An empty mode clears the active preset.
type SetPresetMode struct {
	PresetMode string
}

// SetDirection sets the fan direction, "forward" or "reverse".
type SetDirection struct {
	Direction string
}

// OpenValve opens a valve.
type OpenValve struct{}

// CloseValve closes a valve.
type CloseValve struct{}

// Lock engages a lock.
type Lock struct{}

// Unlock releases a lock.
type Unlock struct{}

func (TurnOn) ActionName() string        { return "turn_on" }
func (TurnOff) ActionName() string       { return "turn_off" }
func (SetPercentage) ActionName() string { return "set_percentage" }
func (SetPresetMode) ActionName() string { return "set_preset_mode" }
func (SetDirection) ActionName() string  { return "set_direction" }
func (OpenValve) ActionName() string     { return "open_valve" }
func (CloseValve) ActionName() string    { return "close_valve" }
func (Lock) ActionName() string          { return "lock" }
func (Unlock) ActionName() string        { return "unlock" }

// Fan directions.
const (
	DirectionForward = "forward"
	DirectionReverse = "reverse"
)

// ActionRequest is the JSON form of an action used by the HTTP API.
//
//	{"action": "turn_on", "brightness": 128, "color_temp_kelvin": 3000}
type ActionRequest struct {
	Action          string  `json:"action"`
	Brightness      *int    `json:"brightness,omitempty"`
	ColorTempKelvin *int    `json:"color_temp_kelvin,omitempty"`
	RGBColor        []int   `json:"rgb_color,omitempty"`
	Percentage      *int    `json:"percentage,omitempty"`
	PresetMode      *string `json:"preset_mode,omitempty"`
	Direction       string  `json:"direction,omitempty"`
}

// ToAction converts the request into a typed Action.
func (r ActionRequest) ToAction() (Action, error) {
	switch r.Action {
	case "turn_on":
		on := TurnOn{
			Brightness:      r.Brightness,
			ColorTempKelvin: r.ColorTempKelvin,
			Percentage:      r.Percentage,
			PresetMode:      normalisePreset(r.PresetMode),
		}
		if r.RGBColor != nil {
			rgb, err := rgbFromSlice(r.RGBColor)
			if err != nil {
				return nil, err
			}
			on.RGB = rgb
		}
		return on, nil
	case "turn_off":
		return TurnOff{}, nil
	case "set_percentage":
		if r.Percentage == nil {
			return nil, fmt.Errorf("%w: percentage is required", ErrInvalidAction)
		}
		return SetPercentage{Percentage: *r.Percentage}, nil
	case "set_preset_mode":
		mode := ""
		if p := normalisePreset(r.PresetMode); p != nil {
			mode = *p
		}
		return SetPresetMode{PresetMode: mode}, nil
	case "set_direction":
		return SetDirection{Direction: r.Direction}, nil
	case "open_valve":
		return OpenValve{}, nil
	case "close_valve":
		return CloseValve{}, nil
	case "lock":
		return Lock{}, nil
	case "unlock":
		return Unlock{}, nil
	default:
		return nil, fmt.Errorf("%w: unknown action %q", ErrInvalidAction, r.Action)
	}
}

// setPayload is the Home Assistant JSON schema for command topics.
type setPayload struct {
	State           string  `json:"state"`
	Brightness      *int    `json:"brightness"`
	ColorTempKelvin *int    `json:"color_temp_kelvin"`
	ColorTemp       *int    `json:"color_temp"` // kelvin when discovery sets color_temp_kelvin
	Color           *RGB    `json:"color"`
	Percentage      *int    `json:"percentage"`
	PresetMode      *string `json:"preset_mode"`
	Direction       string  `json:"direction"`
}

// DecodeSetPayload decodes an MQTT command payload for an entity kind.
//
// Plain payloads (ON, OFF, OPEN, CLOSE, LOCK, UNLOCK) and JSON objects in the
// Home Assistant schema are accepted. A JSON object may produce more than one
// action, for example a fan turned on with a new direction.
func DecodeSetPayload(kind Kind, payload []byte) ([]Action, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrInvalidAction)
	}

	if trimmed[0] != '{' {
		a, err := plainAction(kind, strings.Trim(string(trimmed), `"`))
		if err != nil {
			return nil, err
		}
		return []Action{a}, nil
	}

	var p setPayload
	if err := json.Unmarshal(trimmed, &p); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidAction, err)
	}

	switch kind {
	case KindLight, KindSwitch:
		if strings.EqualFold(p.State, "OFF") {
			return []Action{TurnOff{}}, nil
		}
		kelvin := p.ColorTempKelvin
		if kelvin == nil {
			kelvin = p.ColorTemp
		}
		return []Action{TurnOn{Brightness: p.Brightness, ColorTempKelvin: kelvin, RGB: p.Color}}, nil
	case KindFan:
		return fanActions(p)
	case KindValve, KindLock:
		a, err := plainAction(kind, p.State)
		if err != nil {
			return nil, err
		}
		return []Action{a}, nil
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalidAction, kind)
	}
}

func fanActions(p setPayload) ([]Action, error) {
	var actions []Action
	switch {
	case strings.EqualFold(p.State, "OFF"):
		return []Action{TurnOff{}}, nil
	case strings.EqualFold(p.State, "ON"):
		actions = append(actions, TurnOn{Percentage: p.Percentage, PresetMode: normalisePreset(p.PresetMode)})
	case p.State != "":
		return nil, fmt.Errorf("%w: state %q", ErrInvalidAction, p.State)
	default:
		if p.Percentage != nil {
			actions = append(actions, SetPercentage{Percentage: *p.Percentage})
		}
		if p.PresetMode != nil {
			actions = append(actions, SetPresetMode{PresetMode: *normalisePreset(p.PresetMode)})
		}
	}
	if p.Direction != "" {
		actions = append(actions, SetDirection{Direction: p.Direction})
	}
	if len(actions) == 0 {
		return nil, fmt.Errorf("%w: nothing to do", ErrInvalidAction)
	}
	return actions, nil
}

func plainAction(kind Kind, s string) (Action, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "ON":
		if kind == KindLight || kind == KindFan || kind == KindSwitch {
			return TurnOn{}, nil
		}
	case "OFF":
		if kind == KindLight || kind == KindFan || kind == KindSwitch {
			return TurnOff{}, nil
		}
	case "OPEN":
		if kind == KindValve {
			return OpenValve{}, nil
		}
	case "CLOSE":
		if kind == KindValve {
			return CloseValve{}, nil
		}
	case "LOCK":
		if kind == KindLock {
			return Lock{}, nil
		}
	case "UNLOCK":
		if kind == KindLock {
			return Unlock{}, nil
		}
	}
	return nil, fmt.Errorf("%w: %q for %s", ErrInvalidAction, s, kind)
}

// normalisePreset maps the host's "none" to the empty preset.
func normalisePreset(p *string) *string {
	if p == nil {
		return nil
	}
	if strings.EqualFold(*p, "none") {
		return ptr("")
	}
	return p
}

func rgbFromSlice(v []int) (*RGB, error) {
	if len(v) != 3 {
		return nil, fmt.Errorf("%w: rgb_color needs 3 components", ErrInvalidAction)
	}
	for _, c := range v {
		if c < 0 || c > 255 {
			return nil, fmt.Errorf("%w: rgb component %d out of range", ErrInvalidValue, c)
		}
	}
	return &RGB{R: v[0], G: v[1], B: v[2]}, nil
}
