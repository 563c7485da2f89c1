package bridge

import (
	"slices"
	"testing"

	"github.com/nerrad567/hubspace-bridge/internal/device"
	"github.com/nerrad567/hubspace-bridge/internal/entity"
	"github.com/nerrad567/hubspace-bridge/internal/infrastructure/mqtt"
)

func TestNewStateMessage(t *testing.T) {
	on, off := true, false
	tests := []struct {
		name string
		snap entity.Snapshot
		want string
	}{
		{"light on", entity.Snapshot{Kind: entity.KindLight, On: &on}, "ON"},
		{"switch off", entity.Snapshot{Kind: entity.KindSwitch, On: &off}, "OFF"},
		{"switch unknown", entity.Snapshot{Kind: entity.KindSwitch}, ""},
		{"valve open", entity.Snapshot{Kind: entity.KindValve, Position: entity.ValveOpen}, "open"},
		{"lock jammed", entity.Snapshot{Kind: entity.KindLock, Position: entity.LockJammed}, "JAMMED"},
		{"lock locking", entity.Snapshot{Kind: entity.KindLock, Position: entity.LockLocking}, "LOCKING"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NewStateMessage(tt.snap).State; got != tt.want {
				t.Errorf("State = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNewStateMessage_LightFields(t *testing.T) {
	k := 3000
	rgb := &entity.RGB{R: 1, G: 2, B: 3}
	msg := NewStateMessage(entity.Snapshot{
		Kind:            entity.KindLight,
		Available:       true,
		ColorMode:       entity.ColorModeColorTemp,
		ColorTempKelvin: &k,
		RGB:             rgb,
		Attributes:      map[string]any{"model": "Dimmer"},
	})
	if msg.ColorTemp == nil || *msg.ColorTemp != 3000 || msg.Color != rgb || !msg.Available {
		t.Errorf("message = %+v", msg)
	}
	if msg.Attributes["model"] != "Dimmer" {
		t.Errorf("attributes = %v", msg.Attributes)
	}
}

func TestBuildDiscoveryConfig_Fan(t *testing.T) {
	d := device.Device{
		ID:           "fan-1",
		FriendlyName: "Bedroom Fan",
		DeviceClass:  device.ClassFan,
		Functions: []device.Function{
			{Class: device.FunctionPower, Instance: "fan-power"},
			{Class: device.FunctionFanSpeed, Instance: "fan-speed", Values: []device.FunctionValue{
				{Name: "fan-speed-000"}, {Name: "fan-speed-050"}, {Name: "fan-speed-100"},
			}},
			{Class: device.FunctionFanReverse, Instance: "fan-reverse"},
			{Class: device.FunctionToggle, Instance: "comfort-breeze"},
		},
	}
	fan := entity.NewFan(d, nil)
	cfg := BuildDiscoveryConfig(fan, mqtt.NewTopics("", ""))

	if cfg.CommandTopic != "hubspace/entity/fan-1/set" || cfg.StateTopic != "hubspace/entity/fan-1/state" {
		t.Errorf("topics = %q / %q", cfg.CommandTopic, cfg.StateTopic)
	}
	if cfg.PercentageCommandTopic != cfg.CommandTopic || cfg.SpeedRangeMax != 100 {
		t.Errorf("percentage = %q max %d", cfg.PercentageCommandTopic, cfg.SpeedRangeMax)
	}
	if !slices.Contains(cfg.PresetModes, "breeze") {
		t.Errorf("preset modes = %v, want breeze", cfg.PresetModes)
	}
	if cfg.DirectionCommandTopic == "" {
		t.Error("direction topic missing")
	}
	if len(cfg.Availability) != 2 || cfg.AvailabilityMode != "all" {
		t.Errorf("availability = %+v (%s)", cfg.Availability, cfg.AvailabilityMode)
	}
}

func TestBuildDiscoveryConfig_Kinds(t *testing.T) {
	topics := mqtt.NewTopics("", "")
	valve := entity.NewValve(device.Device{ID: "timer-1", FriendlyName: "Garden", DeviceClass: device.ClassWaterTimer}, "spigot-1", nil)
	lock := entity.NewDoorLock(device.Device{
		ID:          "lock-1",
		DeviceClass: device.ClassDoorLock,
		Functions:   []device.Function{{Class: device.FunctionLockControl}},
	}, nil)
	light := entity.NewLight(device.Device{
		ID:          "light-2",
		DeviceClass: device.ClassLight,
		Functions:   []device.Function{{Class: device.FunctionPower}},
	}, nil)

	v := BuildDiscoveryConfig(valve, topics)
	if v.PayloadOpen != "OPEN" || v.StateClosed != entity.ValveClosed || v.ReportsPosition == nil || *v.ReportsPosition {
		t.Errorf("valve config = %+v", v)
	}
	l := BuildDiscoveryConfig(lock, topics)
	if l.PayloadLock != "LOCK" || l.ValueTemplate != stateTemplate {
		t.Errorf("lock config = %+v", l)
	}
	li := BuildDiscoveryConfig(light, topics)
	if !slices.Equal(li.SupportedColorModes, []string{"onoff"}) || li.Brightness != nil || li.ColorTempKelvin != nil {
		t.Errorf("on/off light config = %+v", li)
	}
}
