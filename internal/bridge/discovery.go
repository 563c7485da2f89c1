package bridge

import (
	"github.com/nerrad567/hubspace-bridge/internal/entity"
	"github.com/nerrad567/hubspace-bridge/internal/infrastructure/mqtt"
)

// Discovery template strings shared by every config.
const (
	stateTemplate      = "{{ value_json.state }}"
	availableTemplate  = "{{ 'online' if value_json.available else 'offline' }}"
	bridgeTemplate     = "{{ value_json.status }}"
	attributesTemplate = "{{ value_json.attributes | tojson }}"
	diagnosticsUID     = "hubspace_bridge_diagnostics"
)

// DiscoveryDevice groups entities under one device in Home Assistant.
type DiscoveryDevice struct {
	Identifiers   []string `json:"identifiers"`
	Name          string   `json:"name"`
	Model         string   `json:"model,omitempty"`
	Manufacturer  string   `json:"manufacturer,omitempty"`
	SuggestedArea string   `json:"suggested_area,omitempty"`
}

// Availability is one entry of a discovery availability list.
type Availability struct {
	Topic         string `json:"topic"`
	ValueTemplate string `json:"value_template"`
}

// DiscoveryConfig is the retained Home Assistant MQTT discovery payload.
// Only the keys used by the bridge's entity kinds are modelled.
type DiscoveryConfig struct {
	Name             string          `json:"name"`
	UniqueID         string          `json:"unique_id"`
	ObjectID         string          `json:"object_id,omitempty"`
	Device           DiscoveryDevice `json:"device"`
	Availability     []Availability  `json:"availability"`
	AvailabilityMode string          `json:"availability_mode,omitempty"`

	StateTopic             string `json:"state_topic,omitempty"`
	CommandTopic           string `json:"command_topic"`
	ValueTemplate          string `json:"value_template,omitempty"`
	JSONAttributesTopic    string `json:"json_attributes_topic,omitempty"`
	JSONAttributesTemplate string `json:"json_attributes_template,omitempty"`

	// light (JSON schema)
	Schema              string   `json:"schema,omitempty"`
	Brightness          *bool    `json:"brightness,omitempty"`
	BrightnessScale     int      `json:"brightness_scale,omitempty"`
	SupportedColorModes []string `json:"supported_color_modes,omitempty"`
	ColorTempKelvin     *bool    `json:"color_temp_kelvin,omitempty"`
	MinKelvin           int      `json:"min_kelvin,omitempty"`
	MaxKelvin           int      `json:"max_kelvin,omitempty"`

	// fan
	StateValueTemplate        string   `json:"state_value_template,omitempty"`
	CommandTemplate           string   `json:"command_template,omitempty"`
	PercentageStateTopic      string   `json:"percentage_state_topic,omitempty"`
	PercentageCommandTopic    string   `json:"percentage_command_topic,omitempty"`
	PercentageValueTemplate   string   `json:"percentage_value_template,omitempty"`
	PercentageCommandTemplate string   `json:"percentage_command_template,omitempty"`
	SpeedRangeMax             int      `json:"speed_range_max,omitempty"`
	PresetModes               []string `json:"preset_modes,omitempty"`
	PresetModeStateTopic      string   `json:"preset_mode_state_topic,omitempty"`
	PresetModeCommandTopic    string   `json:"preset_mode_command_topic,omitempty"`
	PresetModeValueTemplate   string   `json:"preset_mode_value_template,omitempty"`
	PresetModeCommandTemplate string   `json:"preset_mode_command_template,omitempty"`
	DirectionStateTopic       string   `json:"direction_state_topic,omitempty"`
	DirectionCommandTopic     string   `json:"direction_command_topic,omitempty"`
	DirectionValueTemplate    string   `json:"direction_value_template,omitempty"`
	DirectionCommandTemplate  string   `json:"direction_command_template,omitempty"`
	PayloadOn                 string   `json:"payload_on,omitempty"`
	PayloadOff                string   `json:"payload_off,omitempty"`

	// switch
	StateOn  string `json:"state_on,omitempty"`
	StateOff string `json:"state_off,omitempty"`

	// valve
	PayloadOpen     string `json:"payload_open,omitempty"`
	PayloadClose    string `json:"payload_close,omitempty"`
	StateOpen       string `json:"state_open,omitempty"`
	StateClosed     string `json:"state_closed,omitempty"`
	ReportsPosition *bool  `json:"reports_position,omitempty"`

	// lock
	PayloadLock   string `json:"payload_lock,omitempty"`
	PayloadUnlock string `json:"payload_unlock,omitempty"`

	// button
	PayloadPress   string `json:"payload_press,omitempty"`
	EntityCategory string `json:"entity_category,omitempty"`
}

// BuildDiscoveryConfig returns the discovery payload for an entity.
func BuildDiscoveryConfig(e entity.Entity, topics mqtt.Topics) DiscoveryConfig {
	uid := e.UniqueID()
	d := e.Descriptor()
	state := topics.EntityState(uid)
	set := topics.EntitySet(uid)

	cfg := DiscoveryConfig{
		Name:     e.Name(),
		UniqueID: uid,
		ObjectID: uid,
		Device: DiscoveryDevice{
			Identifiers:   []string{d.ID},
			Name:          d.FriendlyName,
			Model:         d.Model,
			Manufacturer:  d.Manufacturer,
			SuggestedArea: d.RoomName,
		},
		Availability: []Availability{
			{Topic: topics.BridgeStatus(), ValueTemplate: bridgeTemplate},
			{Topic: state, ValueTemplate: availableTemplate},
		},
		AvailabilityMode:       "all",
		StateTopic:             state,
		CommandTopic:           set,
		JSONAttributesTopic:    state,
		JSONAttributesTemplate: attributesTemplate,
	}

	switch v := e.(type) {
	case *entity.Light:
		lightDiscovery(&cfg, v.Capabilities())
	case *entity.Fan:
		fanDiscovery(&cfg, v.Capabilities(), state, set)
	case *entity.Switch:
		cfg.ValueTemplate = stateTemplate
		cfg.PayloadOn, cfg.PayloadOff = "ON", "OFF"
		cfg.StateOn, cfg.StateOff = "ON", "OFF"
	case *entity.Valve:
		cfg.ValueTemplate = stateTemplate
		cfg.PayloadOpen, cfg.PayloadClose = "OPEN", "CLOSE"
		cfg.StateOpen, cfg.StateClosed = entity.ValveOpen, entity.ValveClosed
		cfg.ReportsPosition = ptr(false)
	case *entity.DoorLock:
		cfg.ValueTemplate = stateTemplate
		cfg.PayloadLock, cfg.PayloadUnlock = "LOCK", "UNLOCK"
	}
	return cfg
}

func lightDiscovery(cfg *DiscoveryConfig, caps entity.LightCapabilities) {
	cfg.Schema = "json"
	for _, mode := range caps.ColorModes {
		cfg.SupportedColorModes = append(cfg.SupportedColorModes, string(mode))
	}
	if caps.Brightness {
		cfg.Brightness = ptr(true)
		cfg.BrightnessScale = 255
	}
	if caps.SupportsColorMode(entity.ColorModeColorTemp) {
		cfg.ColorTempKelvin = ptr(true)
		cfg.MinKelvin = caps.MinKelvin()
		cfg.MaxKelvin = caps.MaxKelvin()
	}
}

// fanDiscovery maps every fan property onto the set topic with JSON
// command templates, so all fan writes go through DecodeSetPayload.
func fanDiscovery(cfg *DiscoveryConfig, caps entity.FanCapabilities, state, set string) {
	cfg.StateValueTemplate = stateTemplate
	cfg.PayloadOn, cfg.PayloadOff = "ON", "OFF"
	cfg.CommandTemplate = `{"state":"{{ value }}"}`

	if caps.Features.Has(entity.FanFeatureSetSpeed) {
		cfg.PercentageStateTopic = state
		cfg.PercentageCommandTopic = set
		cfg.PercentageValueTemplate = "{{ value_json.percentage }}"
		cfg.PercentageCommandTemplate = `{"percentage":{{ value }}}`
		cfg.SpeedRangeMax = 100
	}
	if caps.Features.Has(entity.FanFeaturePresetMode) {
		cfg.PresetModes = caps.PresetModes()
		cfg.PresetModeStateTopic = state
		cfg.PresetModeCommandTopic = set
		cfg.PresetModeValueTemplate = "{{ value_json.preset_mode | default('None') }}"
		cfg.PresetModeCommandTemplate = `{"preset_mode":"{{ value }}"}`
	}
	if caps.Features.Has(entity.FanFeatureDirection) {
		cfg.DirectionStateTopic = state
		cfg.DirectionCommandTopic = set
		cfg.DirectionValueTemplate = "{{ value_json.direction }}"
		cfg.DirectionCommandTemplate = `{"direction":"{{ value }}"}`
	}
}

// BuildDiagnosticsButton returns the discovery payload of the bridge's
// diagnostics button. Pressing it writes an anonymised dump.
func BuildDiagnosticsButton(topics mqtt.Topics) DiscoveryConfig {
	return DiscoveryConfig{
		Name:     "Write diagnostics",
		UniqueID: diagnosticsUID,
		ObjectID: diagnosticsUID,
		Device: DiscoveryDevice{
			Identifiers: []string{"hubspace_bridge"},
			Name:        "HubSpace Bridge",
		},
		Availability: []Availability{
			{Topic: topics.BridgeStatus(), ValueTemplate: bridgeTemplate},
		},
		CommandTopic:   topics.BridgeDiagnostics(),
		PayloadPress:   PayloadPress,
		EntityCategory: "diagnostic",
	}
}

func ptr[T any](v T) *T { return &v }
