package diagnostics

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/nerrad567/hubspace-bridge/internal/device"
)

// DefaultOutputPath is the file written when no path is configured.
const DefaultOutputPath = "hubspace_data.json"

// DeviceDump is the anonymised form of one device.
type DeviceDump struct {
	ID           string            `json:"id"`
	DeviceID     string            `json:"device_id"`
	FriendlyName string            `json:"friendly_name"`
	DeviceClass  string            `json:"device_class"`
	Model        string            `json:"model"`
	Manufacturer string            `json:"manufacturerName"`
	TypeID       string            `json:"type_id,omitempty"`
	Functions    []device.Function `json:"functions"`
	States       []StateDump       `json:"states"`
}

// StateDump is an anonymised state tuple. FunctionInstance is null when
// the function has no instance.
type StateDump struct {
	FunctionClass    string  `json:"functionClass"`
	FunctionInstance *string `json:"functionInstance"`
	Value            any     `json:"value"`
	LastUpdateTime   int64   `json:"lastUpdateTime"`
}

// Anonymizer replaces identifying data in device dumps. Names are numbered
// in the order devices are passed; parent ids map consistently for the
// lifetime of the Anonymizer. Not safe for concurrent use.
type Anonymizer struct {
	next    int
	parents map[string]string
	newID   func() string
}

// NewAnonymizer creates an Anonymizer that numbers devices from zero.
func NewAnonymizer() *Anonymizer {
	return &Anonymizer{
		parents: make(map[string]string),
		newID:   func() string { return uuid.NewString() },
	}
}

// Device anonymises one descriptor and its states.
func (a *Anonymizer) Device(d device.Device, states []device.State) DeviceDump {
	parent, ok := a.parents[d.DeviceID]
	if !ok {
		parent = a.newID()
		a.parents[d.DeviceID] = parent
	}

	dump := DeviceDump{
		ID:           a.newID(),
		DeviceID:     parent,
		FriendlyName: fmt.Sprintf("friendly-device-%d", a.next),
		DeviceClass:  d.DeviceClass,
		Model:        d.Model,
		Manufacturer: d.Manufacturer,
		TypeID:       d.TypeID,
		Functions:    d.DeepCopy().Functions,
		States:       make([]StateDump, 0, len(states)),
	}
	if dump.Functions == nil {
		dump.Functions = []device.Function{}
	}
	a.next++

	for _, s := range states {
		dump.States = append(dump.States, a.state(s))
	}
	return dump
}

// Devices anonymises a device set. States are looked up by child id;
// descriptors with embedded states use those when the map has none.
func (a *Anonymizer) Devices(devices []device.Device, states map[string][]device.State) []DeviceDump {
	out := make([]DeviceDump, 0, len(devices))
	for _, d := range devices {
		st, ok := states[d.ID]
		if !ok {
			st = d.States
		}
		out = append(out, a.Device(d, st))
	}
	return out
}

func (a *Anonymizer) state(s device.State) StateDump {
	out := StateDump{FunctionClass: s.Class, Value: s.Value}
	if s.Instance != "" {
		inst := s.Instance
		out.FunctionInstance = &inst
	}
	switch {
	case s.Class == "wifi-ssid":
		out.Value = a.newID()
	case strings.Contains(s.Class, "mac"):
		if _, isString := s.Value.(string); isString {
			out.Value = a.newID()
		}
	}
	return out
}

// Marshal encodes dumps as indented JSON.
func Marshal(dumps []DeviceDump) ([]byte, error) {
	if dumps == nil {
		dumps = []DeviceDump{}
	}
	data, err := json.MarshalIndent(dumps, "", "    ")
	if err != nil {
		return nil, fmt.Errorf("encoding diagnostics: %w", err)
	}
	return data, nil
}

// WriteFile writes dumps to path, creating parent directories.
func WriteFile(path string, dumps []DeviceDump) error {
	if path == "" {
		path = DefaultOutputPath
	}
	data, err := Marshal(dumps)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("creating diagnostics directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing diagnostics: %w", err)
	}
	return nil
}
