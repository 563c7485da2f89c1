package entity

import (
	"errors"
	"reflect"
	"testing"
)

func TestDecodeSetPayload(t *testing.T) {
	tests := []struct {
		name    string
		kind    Kind
		payload string
		want    []Action
		wantErr error
	}{
		{name: "plain on", kind: KindSwitch, payload: "ON", want: []Action{TurnOn{}}},
		{name: "plain off lowercase", kind: KindLight, payload: "off", want: []Action{TurnOff{}}},
		{name: "valve open", kind: KindValve, payload: "OPEN", want: []Action{OpenValve{}}},
		{name: "valve close json", kind: KindValve, payload: `{"state":"CLOSE"}`, want: []Action{CloseValve{}}},
		{name: "lock quoted", kind: KindLock, payload: `"LOCK"`, want: []Action{Lock{}}},
		{name: "unlock", kind: KindLock, payload: "UNLOCK", want: []Action{Unlock{}}},
		{
			name:    "light json",
			kind:    KindLight,
			payload: `{"state":"ON","brightness":128,"color_temp_kelvin":3000}`,
			want:    []Action{TurnOn{Brightness: ptr(128), ColorTempKelvin: ptr(3000)}},
		},
		{
			name:    "light json color_temp",
			kind:    KindLight,
			payload: `{"state":"ON","color_temp":2700}`,
			want:    []Action{TurnOn{ColorTempKelvin: ptr(2700)}},
		},
		{
			name:    "light json rgb",
			kind:    KindLight,
			payload: `{"state":"ON","color":{"r":1,"g":2,"b":3}}`,
			want:    []Action{TurnOn{RGB: &RGB{R: 1, G: 2, B: 3}}},
		},
		{name: "light json off", kind: KindLight, payload: `{"state":"OFF","brightness":3}`, want: []Action{TurnOff{}}},
		{
			name:    "fan on with direction",
			kind:    KindFan,
			payload: `{"state":"ON","percentage":50,"preset_mode":"breeze","direction":"reverse"}`,
			want: []Action{
				TurnOn{Percentage: ptr(50), PresetMode: ptr("breeze")},
				SetDirection{Direction: "reverse"},
			},
		},
		{
			name:    "fan preset none",
			kind:    KindFan,
			payload: `{"preset_mode":"none"}`,
			want:    []Action{SetPresetMode{PresetMode: ""}},
		},
		{
			name:    "fan percentage only",
			kind:    KindFan,
			payload: `{"percentage":0}`,
			want:    []Action{SetPercentage{Percentage: 0}},
		},
		{name: "fan empty object", kind: KindFan, payload: `{}`, wantErr: ErrInvalidAction},
		{name: "empty payload", kind: KindLight, payload: "  ", wantErr: ErrInvalidAction},
		{name: "bad json", kind: KindLight, payload: `{"state":`, wantErr: ErrInvalidAction},
		{name: "open on light", kind: KindLight, payload: "OPEN", wantErr: ErrInvalidAction},
		{name: "on on lock", kind: KindLock, payload: "ON", wantErr: ErrInvalidAction},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeSetPayload(tt.kind, []byte(tt.payload))
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("DecodeSetPayload() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("DecodeSetPayload() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("DecodeSetPayload() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestActionRequest_ToAction(t *testing.T) {
	tests := []struct {
		name    string
		req     ActionRequest
		want    Action
		wantErr error
	}{
		{
			name: "turn on with rgb",
			req:  ActionRequest{Action: "turn_on", RGBColor: []int{10, 20, 30}},
			want: TurnOn{RGB: &RGB{R: 10, G: 20, B: 30}},
		},
		{name: "turn off", req: ActionRequest{Action: "turn_off"}, want: TurnOff{}},
		{name: "percentage", req: ActionRequest{Action: "set_percentage", Percentage: ptr(40)}, want: SetPercentage{Percentage: 40}},
		{name: "preset none", req: ActionRequest{Action: "set_preset_mode", PresetMode: ptr("none")}, want: SetPresetMode{}},
		{name: "direction", req: ActionRequest{Action: "set_direction", Direction: "forward"}, want: SetDirection{Direction: "forward"}},
		{name: "open", req: ActionRequest{Action: "open_valve"}, want: OpenValve{}},
		{name: "unlock", req: ActionRequest{Action: "unlock"}, want: Unlock{}},
		{name: "missing percentage", req: ActionRequest{Action: "set_percentage"}, wantErr: ErrInvalidAction},
		{name: "short rgb", req: ActionRequest{Action: "turn_on", RGBColor: []int{1}}, wantErr: ErrInvalidAction},
		{name: "rgb out of range", req: ActionRequest{Action: "turn_on", RGBColor: []int{1, 2, 256}}, wantErr: ErrInvalidValue},
		{name: "unknown", req: ActionRequest{Action: "explode"}, wantErr: ErrInvalidAction},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.req.ToAction()
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("ToAction() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ToAction() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ToAction() = %#v, want %#v", got, tt.want)
			}
		})
	}
}
