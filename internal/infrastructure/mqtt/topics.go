package mqtt

import (
	"fmt"
	"strings"
)

// Default topic roots.
const (
	// DefaultTopicPrefix is the root for all bridge topics.
	DefaultTopicPrefix = "hubspace"

	// DefaultDiscoveryPrefix is the Home Assistant discovery root.
	DefaultDiscoveryPrefix = "homeassistant"
)

// Topics provides builders for the bridge's MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.NewTopics("hubspace", "homeassistant")
//	stateTopic := topics.EntityState("f2e1_fan")
//	// Returns: "hubspace/entity/f2e1_fan/state"
type Topics struct {
	Prefix          string
	DiscoveryPrefix string
}

// NewTopics returns topic builders for the given roots. Empty roots use the defaults.
func NewTopics(prefix, discoveryPrefix string) Topics {
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	if discoveryPrefix == "" {
		discoveryPrefix = DefaultDiscoveryPrefix
	}
	return Topics{
		Prefix:          strings.TrimRight(prefix, "/"),
		DiscoveryPrefix: strings.TrimRight(discoveryPrefix, "/"),
	}
}

// BridgeStatus returns the availability topic. It carries the LWT.
//
// Example: hubspace/bridge/status
func (t Topics) BridgeStatus() string {
	return fmt.Sprintf("%s/bridge/status", t.Prefix)
}

// BridgeDiagnostics returns the command topic of the diagnostics button.
//
// Example: hubspace/bridge/diagnostics
func (t Topics) BridgeDiagnostics() string {
	return fmt.Sprintf("%s/bridge/diagnostics", t.Prefix)
}

// HomeAssistantStatus returns the topic on which Home Assistant announces
// its own availability. An "online" message follows every HA restart.
//
// Example: homeassistant/status
func (t Topics) HomeAssistantStatus() string {
	return t.DiscoveryPrefix + "/status"
}

// EntityState returns the retained state topic of one entity.
//
// Example: hubspace/entity/f2e1_fan/state
func (t Topics) EntityState(uid string) string {
	return fmt.Sprintf("%s/entity/%s/state", t.Prefix, uid)
}

// EntitySet returns the topic on which typed actions for an entity arrive.
//
// Example: hubspace/entity/f2e1_fan/set
func (t Topics) EntitySet(uid string) string {
	return fmt.Sprintf("%s/entity/%s/set", t.Prefix, uid)
}

// EntityCommand returns the topic for raw function writes to an entity.
//
// Example: hubspace/entity/f2e1_fan/command
func (t Topics) EntityCommand(uid string) string {
	return fmt.Sprintf("%s/entity/%s/command", t.Prefix, uid)
}

// Ack returns the topic on which command results are published.
//
// Example: hubspace/ack/f2e1_fan
func (t Topics) Ack(uid string) string {
	return fmt.Sprintf("%s/ack/%s", t.Prefix, uid)
}

// Discovery returns the retained Home Assistant discovery config topic.
//
// Example: homeassistant/fan/f2e1_fan/config
func (t Topics) Discovery(component, uid string) string {
	return fmt.Sprintf("%s/%s/%s/config", t.DiscoveryPrefix, component, uid)
}

// AllEntitySets returns a pattern matching the set topic of every entity.
//
// Pattern: hubspace/entity/+/set
func (t Topics) AllEntitySets() string {
	return fmt.Sprintf("%s/entity/+/set", t.Prefix)
}

// AllEntityCommands returns a pattern matching the command topic of every entity.
//
// Pattern: hubspace/entity/+/command
func (t Topics) AllEntityCommands() string {
	return fmt.Sprintf("%s/entity/+/command", t.Prefix)
}

// EntityFromTopic extracts the entity uid from a set or command topic.
// It returns false when the topic is not an entity topic under this prefix.
func (t Topics) EntityFromTopic(topic string) (string, bool) {
	rest, ok := strings.CutPrefix(topic, t.Prefix+"/entity/")
	if !ok {
		return "", false
	}
	uid, suffix, ok := strings.Cut(rest, "/")
	if !ok || uid == "" || (suffix != "set" && suffix != "command") {
		return "", false
	}
	return uid, true
}
