package entity

import (
	"testing"

	"github.com/nerrad567/hubspace-bridge/internal/device"
)

func TestBuild(t *testing.T) {
	tests := []struct {
		name string
		dev  device.Device
		want []string
	}{
		{"light", testLight(), []string{"light-1"}},
		{"fan", testFan(), []string{"fan-1_fan"}},
		{"outlet per instance", testOutlet(), []string{"outlet-1_outlet1", "outlet-1_outlet2"}},
		{"valve per instance", testWaterTimer(), []string{"timer-1_spigot-1", "timer-1_spigot-2"}},
		{"lock", testLock(), []string{"lock-1_lock"}},
		{
			name: "switch without toggles binds power",
			dev: device.Device{ID: "sw", DeviceClass: device.ClassSwitch, Functions: []device.Function{
				{Class: device.FunctionPower, Instance: "primary"},
			}},
			want: []string{"sw_primary"},
		},
		{"lock without lock-control", device.Device{ID: "l", DeviceClass: device.ClassLock}, nil},
		{"unknown class", device.Device{ID: "x", DeviceClass: "thermostat"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Build(tt.dev, nil)
			if len(got) != len(tt.want) {
				t.Fatalf("Build() = %d entities, want %d", len(got), len(tt.want))
			}
			for i, e := range got {
				if e.UniqueID() != tt.want[i] {
					t.Errorf("entity %d UniqueID() = %q, want %q", i, e.UniqueID(), tt.want[i])
				}
				if e.ChildID() != tt.dev.ID {
					t.Errorf("entity %d ChildID() = %q, want %q", i, e.ChildID(), tt.dev.ID)
				}
			}
		})
	}
}

func TestBuildAll(t *testing.T) {
	got := BuildAll([]device.Device{testLight(), testOutlet()}, nil)
	if len(got) != 3 {
		t.Fatalf("BuildAll() = %d entities, want 3", len(got))
	}
	if got[0].Kind() != KindLight || got[2].Kind() != KindSwitch {
		t.Errorf("kinds = %s, %s", got[0].Kind(), got[2].Kind())
	}
}

func TestEntity_DescriptorIsCopy(t *testing.T) {
	e := NewLight(testLight(), nil)
	d := e.Descriptor()
	d.Functions[0].Class = "mutated"
	if e.Descriptor().Functions[0].Class != device.FunctionPower {
		t.Error("Descriptor() should return an independent copy")
	}
}

func TestSnapshot_Record(t *testing.T) {
	l := NewLight(testLight(), nil)
	l.Apply([]device.State{{Class: device.FunctionPower, Instance: "light-power", Value: "on"}})

	rec := l.Snapshot().Record()
	if rec["unique_id"] != "light-1" || rec["is_on"] != true {
		t.Errorf("Record() = %v", rec)
	}
	if _, ok := rec["attributes"].(map[string]any); !ok {
		t.Errorf("Record() attributes = %T", rec["attributes"])
	}
}
