package device

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"time"
)

// Type identifiers used by the cloud listing.
const (
	TypeIDDevice = "metadevice.device"
	TypeIDRoom   = "metadevice.room"
)

// Device classes the bridge knows how to expose.
const (
	ClassLight       = "light"
	ClassFan         = "fan"
	ClassSwitch      = "switch"
	ClassPowerOutlet = "power-outlet"
	ClassWaterTimer  = "water-timer"
	ClassLock        = "lock"
	ClassDoorLock    = "door-lock"
)

// Function classes with a typed mapping.
const (
	FunctionPower            = "power"
	FunctionBrightness       = "brightness"
	FunctionColorTemperature = "color-temperature"
	FunctionColorMode        = "color-mode"
	FunctionColorRGB         = "color-rgb"
	FunctionFanSpeed         = "fan-speed"
	FunctionFanReverse       = "fan-reverse"
	FunctionToggle           = "toggle"
	FunctionLockControl      = "lock-control"
)

// Device is the descriptor of one controllable child of a physical vendor
// device. It is built by Parse and never mutated afterwards; rediscovery
// replaces it wholesale.
type Device struct {
	// ID is the child id used for every state read and write.
	ID string `json:"id"`

	// DeviceID is the parent (physical) device identifier.
	DeviceID string `json:"device_id"`

	FriendlyName string `json:"friendly_name"`
	RoomName     string `json:"room_name,omitempty"`
	DeviceClass  string `json:"device_class"`
	Model        string `json:"model,omitempty"`
	Manufacturer string `json:"manufacturer,omitempty"`
	TypeID       string `json:"type_id,omitempty"`

	// Functions is the ordered list of supported functions.
	Functions []Function `json:"functions"`

	// States holds any state tuples embedded in the listing.
	States []State `json:"states,omitempty"`
}

// Function describes one controllable or observable attribute of a device.
type Function struct {
	Class    string          `json:"functionClass"`
	Instance string          `json:"functionInstance,omitempty"`
	Type     string          `json:"type,omitempty"`
	Values   []FunctionValue `json:"values,omitempty"`
}

// FunctionValue is one legal value of a function: either a plain name or a
// numeric range.
type FunctionValue struct {
	Name  string `json:"name"`
	Range *Range `json:"range,omitempty"`
}

// Range is a numeric range with a step.
type Range struct {
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
	Step float64 `json:"step"`
}

// Range expansion limits. Ranges come from the cloud and are not trusted.
const (
	// MaxRangeSteps is the largest number of values a range may expand to.
	MaxRangeSteps = 1000

	// maxRangeValue bounds Min and Max so int arithmetic cannot overflow.
	maxRangeValue = 1e9
)

// Steps expands the range into its discrete values, min and max inclusive.
// A non-positive step yields only the endpoints. Ranges with non-finite or
// huge bounds, or more than MaxRangeSteps values, return ErrInvalidRange.
func (r Range) Steps() ([]int, error) {
	for _, v := range []float64{r.Min, r.Max, r.Step} {
		if math.IsNaN(v) || math.Abs(v) > maxRangeValue {
			return nil, fmt.Errorf("%w: %v..%v step %v", ErrInvalidRange, r.Min, r.Max, r.Step)
		}
	}
	lo := int(math.Round(r.Min))
	hi := int(math.Round(r.Max))
	step := int(math.Round(r.Step))
	if hi < lo {
		return nil, nil
	}
	if step <= 0 {
		if lo == hi {
			return []int{lo}, nil
		}
		return []int{lo, hi}, nil
	}
	n := (hi-lo)/step + 1
	if n > MaxRangeSteps {
		return nil, fmt.Errorf("%w: %d steps exceeds %d", ErrInvalidRange, n, MaxRangeSteps)
	}
	out := make([]int, 0, n)
	for v := lo; v <= hi; v += step {
		out = append(out, v)
	}
	return out, nil
}

// Labels expands the range into "<name>-NNN" labels. Numbers are zero
// padded to at least three digits and to the width of the largest value,
// so the labels of one range sort in numeric order.
func (r Range) Labels(name string) ([]string, error) {
	steps, err := r.Steps()
	if err != nil || len(steps) == 0 {
		return nil, err
	}
	width := max(3, len(strconv.Itoa(steps[len(steps)-1])))
	out := make([]string, 0, len(steps))
	for _, v := range steps {
		out = append(out, fmt.Sprintf("%s-%0*d", name, width, v))
	}
	return out, nil
}

// State is a single (functionClass, functionInstance, value) tuple.
// Value is a string, a float64, or a nested map for structured values
// such as RGB.
type State struct {
	Class      string `json:"functionClass"`
	Instance   string `json:"functionInstance,omitempty"`
	Value      any    `json:"value"`
	LastUpdate int64  `json:"lastUpdateTime,omitempty"`
}

// Key returns the effective identity of the tuple within a snapshot.
func (s State) Key() string {
	if s.Instance == "" {
		return s.Class
	}
	return s.Class + "/" + s.Instance
}

// UpdatedAt converts LastUpdate (epoch milliseconds) to a time.
func (s State) UpdatedAt() time.Time {
	if s.LastUpdate == 0 {
		return time.Time{}
	}
	return time.UnixMilli(s.LastUpdate).UTC()
}

// Room is a named group of devices from the listing.
type Room struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Children []string `json:"children"`
}

// Listing is the typed result of parsing a cloud device listing.
type Listing struct {
	Devices []Device
	Rooms   []Room

	// Skipped counts records and functions dropped as malformed.
	Skipped int
}

// FunctionsFor returns all functions of the given class in listing order.
func (d *Device) FunctionsFor(class string) []Function {
	var out []Function
	for _, f := range d.Functions {
		if f.Class == class {
			out = append(out, f)
		}
	}
	return out
}

// SameFunctions reports whether two descriptors expose identical function lists.
func (d *Device) SameFunctions(other *Device) bool {
	return slices.EqualFunc(d.Functions, other.Functions, func(a, b Function) bool {
		return a.Class == b.Class &&
			a.Instance == b.Instance &&
			a.Type == b.Type &&
			slices.EqualFunc(a.Values, b.Values, func(x, y FunctionValue) bool {
				if x.Name != y.Name || (x.Range == nil) != (y.Range == nil) {
					return false
				}
				return x.Range == nil || *x.Range == *y.Range
			})
	})
}

// DeepCopy creates an independent copy of the Device.
// Slices are cloned so modifications to the copy do not affect the original.
func (d *Device) DeepCopy() *Device {
	if d == nil {
		return nil
	}

	cpy := *d

	if d.Functions != nil {
		cpy.Functions = make([]Function, len(d.Functions))
		for i, f := range d.Functions {
			fc := f
			if f.Values != nil {
				fc.Values = make([]FunctionValue, len(f.Values))
				for j, v := range f.Values {
					vc := v
					if v.Range != nil {
						r := *v.Range
						vc.Range = &r
					}
					fc.Values[j] = vc
				}
			}
			cpy.Functions[i] = fc
		}
	}

	if d.States != nil {
		cpy.States = make([]State, len(d.States))
		for i, s := range d.States {
			s.Value = deepCopyValue(s.Value)
			cpy.States[i] = s
		}
	}

	return &cpy
}

// deepCopyMap creates a deep copy of a map[string]any.
func deepCopyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	cpy := make(map[string]any, len(m))
	for k, v := range m {
		cpy[k] = deepCopyValue(v)
	}
	return cpy
}

// deepCopyValue recursively copies a value, handling nested maps and slices.
func deepCopyValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return deepCopyMap(val)
	case []any:
		cpy := make([]any, len(val))
		for i, elem := range val {
			cpy[i] = deepCopyValue(elem)
		}
		return cpy
	default:
		return v
	}
}
