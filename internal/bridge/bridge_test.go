package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/hubspace-bridge/internal/coordinator"
	"github.com/nerrad567/hubspace-bridge/internal/device"
	"github.com/nerrad567/hubspace-bridge/internal/entity"
	"github.com/nerrad567/hubspace-bridge/internal/hubspace"
	"github.com/nerrad567/hubspace-bridge/internal/infrastructure/config"
	"github.com/nerrad567/hubspace-bridge/internal/infrastructure/database"
	"github.com/nerrad567/hubspace-bridge/internal/infrastructure/mqtt"
	"github.com/nerrad567/hubspace-bridge/migrations"
)

// mockMQTT implements MQTTClient for testing.
type mockMQTT struct {
	mu        sync.Mutex
	published map[string][][]byte
	retained  map[string]bool
	handlers  map[string]mqtt.MessageHandler
	connected bool
	subErr    error
}

func newMockMQTT() *mockMQTT {
	return &mockMQTT{
		published: make(map[string][][]byte),
		retained:  make(map[string]bool),
		handlers:  make(map[string]mqtt.MessageHandler),
		connected: true,
	}
}

func (m *mockMQTT) Publish(topic string, payload []byte, _ byte, retained bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published[topic] = append(m.published[topic], payload)
	m.retained[topic] = retained
	return nil
}

func (m *mockMQTT) PublishJSON(topic string, v any, retained bool) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return m.Publish(topic, data, 1, retained)
}

func (m *mockMQTT) Subscribe(topic string, _ byte, handler mqtt.MessageHandler) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.subErr != nil {
		return m.subErr
	}
	m.handlers[topic] = handler
	return nil
}

func (m *mockMQTT) IsConnected() bool { return m.connected }

func (m *mockMQTT) messages(topic string) [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]byte(nil), m.published[topic]...)
}

func (m *mockMQTT) last(t *testing.T, topic string, v any) {
	t.Helper()
	msgs := m.messages(topic)
	if len(msgs) == 0 {
		t.Fatalf("nothing published on %s", topic)
	}
	if err := json.Unmarshal(msgs[len(msgs)-1], v); err != nil {
		t.Fatalf("payload on %s is not JSON: %v", topic, err)
	}
}

type write struct {
	childID string
	states  []device.State
}

// mockCloud implements CloudClient for testing.
type mockCloud struct {
	mu         sync.Mutex
	loginErrs  []error // consumed one per Login call
	accountErr error
	setErr     error
	logins     int
	writes     []write
}

func (c *mockCloud) Login(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.logins++
	if len(c.loginErrs) > 0 {
		err := c.loginErrs[0]
		c.loginErrs = c.loginErrs[1:]
		return err
	}
	return nil
}

func (c *mockCloud) AccountID(context.Context) (string, error) {
	if c.accountErr != nil {
		return "", c.accountErr
	}
	return "acct-1", nil
}

func (c *mockCloud) SetStates(_ context.Context, childID string, states []device.State) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.setErr != nil {
		return c.setErr
	}
	c.writes = append(c.writes, write{childID: childID, states: states})
	return nil
}

// fakePoller implements Poller without polling.
type fakePoller struct {
	mu        sync.Mutex
	listeners []coordinator.Listener
	last      *coordinator.Snapshot
	refreshes int
	running   chan struct{}
}

func (p *fakePoller) Subscribe(l coordinator.Listener) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listeners = append(p.listeners, l)
}

func (p *fakePoller) Run(ctx context.Context) error {
	if p.running != nil {
		close(p.running)
	}
	<-ctx.Done()
	return ctx.Err()
}

func (p *fakePoller) Refresh(context.Context) (coordinator.Snapshot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.refreshes++
	if p.last == nil {
		return coordinator.Snapshot{}, coordinator.ErrUpdateFailed
	}
	return *p.last, nil
}

func (p *fakePoller) Last() (coordinator.Snapshot, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.last == nil {
		return coordinator.Snapshot{}, false
	}
	return *p.last, true
}

// fakeTelemetry implements TelemetryWriter for testing.
type fakeTelemetry struct {
	mu     sync.Mutex
	states map[string]map[string]any
	polls  []bool
}

func (f *fakeTelemetry) WriteEntityState(uid, _ string, fields map[string]any, _ time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.states == nil {
		f.states = make(map[string]map[string]any)
	}
	f.states[uid] = fields
}

func (f *fakeTelemetry) WritePollResult(_ int, _ time.Duration, success bool, _ time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.polls = append(f.polls, success)
}

func lightDevice(functions ...device.Function) device.Device {
	fns := []device.Function{
		{Class: device.FunctionPower, Values: []device.FunctionValue{{Name: "on"}, {Name: "off"}}},
		{Class: device.FunctionBrightness, Values: []device.FunctionValue{
			{Name: "brightness", Range: &device.Range{Min: 0, Max: 100, Step: 1}},
		}},
	}
	return device.Device{
		ID:           "light-1",
		DeviceID:     "parent-light",
		FriendlyName: "Kitchen Light",
		RoomName:     "Kitchen",
		DeviceClass:  device.ClassLight,
		Model:        "Dimmer",
		Functions:    append(fns, functions...),
	}
}

func outletDevice() device.Device {
	return device.Device{
		ID:           "outlet-1",
		DeviceID:     "parent-outlet",
		FriendlyName: "Porch Plug",
		DeviceClass:  device.ClassPowerOutlet,
		Functions: []device.Function{
			{Class: device.FunctionToggle, Instance: "outlet1"},
			{Class: device.FunctionToggle, Instance: "outlet2"},
		},
	}
}

func testSnapshot(devices ...device.Device) coordinator.Snapshot {
	return coordinator.Snapshot{
		Devices: devices,
		States: map[string][]device.State{
			"light-1": {
				{Class: device.FunctionPower, Value: "on"},
				{Class: device.FunctionBrightness, Value: 50.0},
			},
			"outlet-1": {
				{Class: device.FunctionToggle, Instance: "outlet1", Value: "off"},
				{Class: device.FunctionToggle, Instance: "outlet2", Value: "on"},
			},
		},
		UpdatedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Duration:  40 * time.Millisecond,
	}
}

type testBridge struct {
	*Bridge
	mqtt   *mockMQTT
	cloud  *mockCloud
	poller *fakePoller
}

func newTestBridge(t *testing.T, mutate func(*Options)) testBridge {
	t.Helper()
	m := newMockMQTT()
	c := &mockCloud{}
	p := &fakePoller{}
	opts := Options{
		Cloud:           c,
		MQTT:            m,
		Poller:          p,
		SetupRetryDelay: time.Millisecond,
		DiagnosticsPath: filepath.Join(t.TempDir(), "dump.json"),
	}
	if mutate != nil {
		mutate(&opts)
	}
	b, err := New(opts)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(b.Stop)
	return testBridge{Bridge: b, mqtt: m, cloud: c, poller: p}
}

func TestNew_MissingDependencies(t *testing.T) {
	tests := []struct {
		name string
		opts Options
	}{
		{"no cloud", Options{MQTT: newMockMQTT(), Poller: &fakePoller{}}},
		{"no mqtt", Options{Cloud: &mockCloud{}, Poller: &fakePoller{}}},
		{"no poller", Options{Cloud: &mockCloud{}, MQTT: newMockMQTT()}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.opts); !errors.Is(err, ErrMissingDependency) {
				t.Errorf("New() error = %v, want ErrMissingDependency", err)
			}
		})
	}
}

func TestNew_Defaults(t *testing.T) {
	b, err := New(Options{Cloud: &mockCloud{}, MQTT: newMockMQTT(), Poller: &fakePoller{}})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if b.topics.Prefix != mqtt.DefaultTopicPrefix {
		t.Errorf("topic prefix = %q", b.topics.Prefix)
	}
	if b.opts.CommandTimeout != defaultCommandTimeout || b.opts.SetupRetryDelay != defaultSetupRetryDelay {
		t.Errorf("timeouts = %v/%v", b.opts.CommandTimeout, b.opts.SetupRetryDelay)
	}
}

func TestSetup_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		loginErr   error
		accountErr error
		want       error
	}{
		{"success", nil, nil, nil},
		{"bad credentials", fmt.Errorf("token: %w", hubspace.ErrAuthFailed), nil, ErrInvalidAuth},
		{"unreachable", fmt.Errorf("dial: %w", hubspace.ErrConnectionFailed), nil, ErrNotReady},
		{"no account", nil, hubspace.ErrNoAccount, ErrNotReady},
		{"account rejected", nil, hubspace.ErrAuthFailed, ErrInvalidAuth},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tb := newTestBridge(t, nil)
			if tt.loginErr != nil {
				tb.cloud.loginErrs = []error{tt.loginErr}
			}
			tb.cloud.accountErr = tt.accountErr

			err := tb.Setup(context.Background())
			if tt.want == nil {
				if err != nil {
					t.Errorf("Setup() error = %v", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("Setup() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestSetupWithRetry(t *testing.T) {
	t.Run("retries until connected", func(t *testing.T) {
		tb := newTestBridge(t, nil)
		tb.cloud.loginErrs = []error{hubspace.ErrConnectionFailed, hubspace.ErrConnectionFailed}

		if err := tb.SetupWithRetry(context.Background()); err != nil {
			t.Fatalf("SetupWithRetry() error = %v", err)
		}
		if tb.cloud.logins != 3 {
			t.Errorf("logins = %d, want 3", tb.cloud.logins)
		}
	})

	t.Run("invalid auth is not retried", func(t *testing.T) {
		tb := newTestBridge(t, nil)
		tb.cloud.loginErrs = []error{hubspace.ErrAuthFailed}

		if err := tb.SetupWithRetry(context.Background()); !errors.Is(err, ErrInvalidAuth) {
			t.Errorf("SetupWithRetry() error = %v, want ErrInvalidAuth", err)
		}
		if tb.cloud.logins != 1 {
			t.Errorf("logins = %d, want 1", tb.cloud.logins)
		}
	})

	t.Run("stops when context ends", func(t *testing.T) {
		tb := newTestBridge(t, func(o *Options) { o.SetupRetryDelay = time.Hour })
		tb.cloud.loginErrs = []error{hubspace.ErrConnectionFailed}

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		if err := tb.SetupWithRetry(ctx); !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("SetupWithRetry() error = %v, want deadline exceeded", err)
		}
	})
}

func TestStart(t *testing.T) {
	running := make(chan struct{})
	tb := newTestBridge(t, nil)
	tb.poller.running = running

	if err := tb.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	select {
	case <-running:
	case <-time.After(time.Second):
		t.Fatal("poller not started")
	}

	for _, topic := range []string{"hubspace/entity/+/set", "hubspace/entity/+/command", "hubspace/bridge/diagnostics", "homeassistant/status"} {
		if _, ok := tb.mqtt.handlers[topic]; !ok {
			t.Errorf("not subscribed to %s", topic)
		}
	}
	if len(tb.poller.listeners) != 1 {
		t.Errorf("listeners = %d, want 1", len(tb.poller.listeners))
	}

	var button DiscoveryConfig
	tb.mqtt.last(t, "homeassistant/button/"+diagnosticsUID+"/config", &button)
	if button.CommandTopic != "hubspace/bridge/diagnostics" || button.PayloadPress != PayloadPress {
		t.Errorf("button = %+v", button)
	}
}

func TestStart_SubscribeError(t *testing.T) {
	tb := newTestBridge(t, nil)
	tb.mqtt.subErr = mqtt.ErrNotConnected
	if err := tb.Start(context.Background()); !errors.Is(err, mqtt.ErrNotConnected) {
		t.Errorf("Start() error = %v, want ErrNotConnected", err)
	}
}

func TestOnUpdate_BuildsEntities(t *testing.T) {
	tb := newTestBridge(t, nil)
	tb.OnUpdate(testSnapshot(lightDevice(), outletDevice()))

	got := tb.Entities()
	wantIDs := []string{"light-1", "outlet-1_outlet1", "outlet-1_outlet2"}
	if len(got) != len(wantIDs) {
		t.Fatalf("Entities() = %d entities, want %d", len(got), len(wantIDs))
	}
	for i, id := range wantIDs {
		if got[i].UniqueID != id {
			t.Errorf("Entities()[%d] = %q, want %q", i, got[i].UniqueID, id)
		}
		if !got[i].Available {
			t.Errorf("%s not available", id)
		}
	}

	var light DiscoveryConfig
	tb.mqtt.last(t, "homeassistant/light/light-1/config", &light)
	if light.Schema != "json" || light.Brightness == nil || !*light.Brightness {
		t.Errorf("light discovery = %+v", light)
	}
	if light.Device.SuggestedArea != "Kitchen" {
		t.Errorf("suggested area = %q", light.Device.SuggestedArea)
	}
	if !tb.mqtt.retained["homeassistant/switch/outlet-1_outlet2/config"] {
		t.Error("switch discovery not retained")
	}

	var state StateMessage
	tb.mqtt.last(t, "hubspace/entity/light-1/state", &state)
	if state.State != "ON" || state.Brightness == nil || *state.Brightness != 128 || !state.Available {
		t.Errorf("light state = %+v", state)
	}
	tb.mqtt.last(t, "hubspace/entity/outlet-1_outlet1/state", &state)
	if state.State != "OFF" {
		t.Errorf("outlet1 state = %q, want OFF", state.State)
	}

	status := tb.Status()
	if !status.Ready || status.Entities != 3 || status.LastError != "" {
		t.Errorf("Status() = %+v", status)
	}
}

func TestOnUpdate_UnchangedStateNotRepublished(t *testing.T) {
	tb := newTestBridge(t, nil)
	snap := testSnapshot(outletDevice())
	tb.OnUpdate(snap)
	tb.OnUpdate(snap)

	if n := len(tb.mqtt.messages("hubspace/entity/outlet-1_outlet1/state")); n != 1 {
		t.Errorf("state published %d times, want 1", n)
	}
	if n := len(tb.mqtt.messages("homeassistant/switch/outlet-1_outlet1/config")); n != 1 {
		t.Errorf("discovery published %d times, want 1", n)
	}

	snap.States["outlet-1"] = []device.State{{Class: device.FunctionToggle, Instance: "outlet1", Value: "on"}}
	tb.OnUpdate(snap)
	if n := len(tb.mqtt.messages("hubspace/entity/outlet-1_outlet1/state")); n != 2 {
		t.Errorf("state published %d times after change, want 2", n)
	}
}

func TestHomeAssistantBirthRepublishes(t *testing.T) {
	tb := newTestBridge(t, nil)
	if err := tb.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	tb.OnUpdate(testSnapshot(outletDevice()))

	handler := tb.mqtt.handlers["homeassistant/status"]
	if handler == nil {
		t.Fatal("no handler for homeassistant/status")
	}

	// Anything other than the birth message is ignored.
	if err := handler("homeassistant/status", []byte("offline")); err != nil {
		t.Fatalf("handler(offline) error = %v", err)
	}
	if n := len(tb.mqtt.messages("hubspace/entity/outlet-1_outlet1/state")); n != 1 {
		t.Errorf("state published %d times after offline, want 1", n)
	}

	if err := handler("homeassistant/status", []byte("online")); err != nil {
		t.Fatalf("handler(online) error = %v", err)
	}
	if n := len(tb.mqtt.messages("homeassistant/switch/outlet-1_outlet1/config")); n != 2 {
		t.Errorf("discovery published %d times, want 2", n)
	}
	if n := len(tb.mqtt.messages("hubspace/entity/outlet-1_outlet1/state")); n != 2 {
		t.Errorf("unchanged state published %d times, want 2", n)
	}
	if n := len(tb.mqtt.messages("homeassistant/button/" + diagnosticsUID + "/config")); n != 2 {
		t.Errorf("button discovery published %d times, want 2", n)
	}
}

func TestOnUpdate_RemovesVanishedDevices(t *testing.T) {
	tb := newTestBridge(t, nil)
	tb.OnUpdate(testSnapshot(lightDevice(), outletDevice()))
	tb.OnUpdate(testSnapshot(lightDevice()))

	if _, err := tb.Entity("outlet-1_outlet1"); !errors.Is(err, ErrEntityNotFound) {
		t.Errorf("Entity(outlet-1_outlet1) error = %v, want ErrEntityNotFound", err)
	}
	msgs := tb.mqtt.messages("homeassistant/switch/outlet-1_outlet1/config")
	if len(msgs) != 2 || len(msgs[1]) != 0 {
		t.Errorf("discovery not cleared: %q", msgs)
	}
	if len(tb.Devices()) != 1 {
		t.Errorf("Devices() = %d, want 1", len(tb.Devices()))
	}
}

func TestOnUpdate_RebuildsOnFunctionChange(t *testing.T) {
	tb := newTestBridge(t, nil)
	tb.OnUpdate(testSnapshot(lightDevice()))

	warm := device.Function{Class: device.FunctionColorTemperature, Values: []device.FunctionValue{
		{Name: "2700K"}, {Name: "3000K"},
	}}
	tb.OnUpdate(testSnapshot(lightDevice(warm)))

	msgs := tb.mqtt.messages("homeassistant/light/light-1/config")
	if len(msgs) != 2 {
		t.Fatalf("discovery published %d times, want 2", len(msgs))
	}
	var cfg DiscoveryConfig
	if err := json.Unmarshal(msgs[1], &cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.MinKelvin != 2700 || cfg.MaxKelvin != 3000 {
		t.Errorf("kelvin range = %d-%d, want 2700-3000", cfg.MinKelvin, cfg.MaxKelvin)
	}
	if _, err := tb.Entity("light-1"); err != nil {
		t.Errorf("rebuilt light missing: %v", err)
	}
}

func TestOnUpdateFailed_MarksUnavailable(t *testing.T) {
	tel := &fakeTelemetry{}
	tb := newTestBridge(t, func(o *Options) { o.Telemetry = tel })
	tb.OnUpdate(testSnapshot(outletDevice()))
	tb.OnUpdateFailed(coordinator.ErrUpdateFailed)

	var state StateMessage
	tb.mqtt.last(t, "hubspace/entity/outlet-1_outlet2/state", &state)
	if state.Available {
		t.Error("entity still available after failed update")
	}
	if s := tb.Status(); s.LastError == "" {
		t.Error("Status().LastError empty after failure")
	}
	if len(tel.polls) != 2 || !tel.polls[0] || tel.polls[1] {
		t.Errorf("poll results = %v, want [true false]", tel.polls)
	}

	tb.OnUpdate(testSnapshot(outletDevice()))
	tb.mqtt.last(t, "hubspace/entity/outlet-1_outlet2/state", &state)
	if !state.Available {
		t.Error("entity not available after recovery")
	}
}

func TestExecute(t *testing.T) {
	tb := newTestBridge(t, nil)
	tb.OnUpdate(testSnapshot(lightDevice(), outletDevice()))
	ctx := context.Background()

	snap, err := tb.Execute(ctx, "outlet-1_outlet1", entity.TurnOn{})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if snap.On == nil || !*snap.On {
		t.Errorf("snapshot On = %v, want true", snap.On)
	}
	if len(tb.cloud.writes) != 1 {
		t.Fatalf("writes = %d, want 1", len(tb.cloud.writes))
	}
	w := tb.cloud.writes[0]
	want := device.State{Class: device.FunctionToggle, Instance: "outlet1", Value: "on"}
	if w.childID != "outlet-1" || len(w.states) != 1 || w.states[0] != want {
		t.Errorf("write = %+v, want %+v on outlet-1", w, want)
	}

	var state StateMessage
	tb.mqtt.last(t, "hubspace/entity/outlet-1_outlet1/state", &state)
	if state.State != "ON" {
		t.Errorf("published state = %q, want ON", state.State)
	}

	tests := []struct {
		name   string
		uid    string
		action entity.Action
		setErr error
		want   error
	}{
		{"unknown entity", "nope", entity.TurnOn{}, nil, ErrEntityNotFound},
		{"unsupported action", "outlet-1_outlet1", entity.SetPercentage{Percentage: 50}, nil, entity.ErrNotSupported},
		{"cloud failure", "light-1", entity.TurnOff{}, hubspace.ErrConnectionFailed, ErrCommandFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tb.cloud.setErr = tt.setErr
			defer func() { tb.cloud.setErr = nil }()
			if _, err := tb.Execute(ctx, tt.uid, tt.action); !errors.Is(err, tt.want) {
				t.Errorf("Execute() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestSendCommand(t *testing.T) {
	tb := newTestBridge(t, nil)
	tb.OnUpdate(testSnapshot(lightDevice()))
	ctx := context.Background()

	if _, err := tb.SendCommand(ctx, "light-1", "color-mode", "", "white"); err != nil {
		t.Fatalf("SendCommand() error = %v", err)
	}
	w := tb.cloud.writes[0]
	if w.childID != "light-1" || w.states[0].Class != "color-mode" || w.states[0].Value != "white" {
		t.Errorf("write = %+v", w)
	}

	if _, err := tb.SendCommand(ctx, "light-1", "", "", "x"); !errors.Is(err, ErrInvalidCommand) {
		t.Errorf("empty class error = %v, want ErrInvalidCommand", err)
	}
	if _, err := tb.SendCommand(ctx, "nope", "power", "", "on"); !errors.Is(err, ErrEntityNotFound) {
		t.Errorf("unknown entity error = %v, want ErrEntityNotFound", err)
	}
}

func TestHandleSet(t *testing.T) {
	tb := newTestBridge(t, nil)
	tb.OnUpdate(testSnapshot(outletDevice()))

	tests := []struct {
		name     string
		uid      string
		payload  string
		wantStat AckStatus
		wantCode string
	}{
		{"plain on", "outlet-1_outlet1", "ON", AckAccepted, ""},
		{"json off", "outlet-1_outlet2", `{"state":"OFF"}`, AckAccepted, ""},
		{"bad payload", "outlet-1_outlet1", "OPEN", AckFailed, ErrCodeInvalidPayload},
		{"unknown entity", "missing", "ON", AckFailed, ErrCodeNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tb.handleSet("hubspace/entity/"+tt.uid+"/set", []byte(tt.payload)); err != nil {
				t.Fatalf("handleSet() error = %v", err)
			}
			var ack AckMessage
			tb.mqtt.last(t, "hubspace/ack/"+tt.uid, &ack)
			if ack.Status != tt.wantStat {
				t.Errorf("ack status = %q, want %q", ack.Status, tt.wantStat)
			}
			if tt.wantCode != "" && (ack.Error == nil || ack.Error.Code != tt.wantCode) {
				t.Errorf("ack error = %+v, want code %s", ack.Error, tt.wantCode)
			}
		})
	}

	if err := tb.handleSet("other/topic", []byte("ON")); err != nil {
		t.Errorf("handleSet() on foreign topic error = %v", err)
	}
}

func TestHandleCommand(t *testing.T) {
	tb := newTestBridge(t, nil)
	tb.OnUpdate(testSnapshot(outletDevice()))
	topic := "hubspace/entity/outlet-1_outlet2/command"

	payload := `{"id":"c-7","function_class":"toggle","function_instance":"outlet2","value":"off"}`
	if err := tb.handleCommand(topic, []byte(payload)); err != nil {
		t.Fatalf("handleCommand() error = %v", err)
	}
	var ack AckMessage
	tb.mqtt.last(t, "hubspace/ack/outlet-1_outlet2", &ack)
	if ack.Status != AckAccepted || ack.CommandID != "c-7" || ack.Action != "send_command" {
		t.Errorf("ack = %+v", ack)
	}

	_ = tb.handleCommand(topic, []byte(`{"value":1}`))
	tb.mqtt.last(t, "hubspace/ack/outlet-1_outlet2", &ack)
	if ack.Status != AckFailed || ack.Error.Code != ErrCodeInvalidPayload {
		t.Errorf("ack = %+v, want invalid payload", ack)
	}

	_ = tb.handleCommand(topic, []byte(`not json`))
	tb.mqtt.last(t, "hubspace/ack/outlet-1_outlet2", &ack)
	if ack.Status != AckFailed || ack.Error.Code != ErrCodeInvalidPayload {
		t.Errorf("ack = %+v, want invalid payload", ack)
	}
}

func TestStateListenerAndTelemetry(t *testing.T) {
	tel := &fakeTelemetry{}
	tb := newTestBridge(t, func(o *Options) { o.Telemetry = tel })

	var mu sync.Mutex
	seen := make(map[string]int)
	tb.OnStateChange(func(s entity.Snapshot) {
		mu.Lock()
		seen[s.UniqueID]++
		mu.Unlock()
	})

	tb.OnUpdate(testSnapshot(lightDevice()))
	if _, err := tb.Execute(context.Background(), "light-1", entity.TurnOff{}); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	if seen["light-1"] != 2 {
		t.Errorf("listener saw light-1 %d times, want 2", seen["light-1"])
	}
	fields := tel.states["light-1"]
	if fields["on"] != false || fields["available"] != true {
		t.Errorf("telemetry fields = %v", fields)
	}
}

func openHistory(t *testing.T) *device.SQLiteStateHistoryRepository {
	t.Helper()
	db, err := database.Open(config.DatabaseConfig{Path: ":memory:", BusyTimeout: 5})
	if err != nil {
		t.Fatalf("database.Open() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := db.Migrate(context.Background(), migrations.FS); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return device.NewSQLiteStateHistoryRepository(db.DB)
}

func TestHistory(t *testing.T) {
	repo := openHistory(t)
	tb := newTestBridge(t, func(o *Options) { o.History = repo })
	ctx := context.Background()

	tb.OnUpdate(testSnapshot(outletDevice()))
	if _, err := tb.Execute(ctx, "outlet-1_outlet1", entity.TurnOn{}); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	entries, err := tb.History(ctx, "outlet-1_outlet1", 10)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("History() = %d entries, want 2", len(entries))
	}
	if entries[0].Source != device.StateHistorySourceCommand || entries[1].Source != device.StateHistorySourcePoll {
		t.Errorf("sources = %s, %s", entries[0].Source, entries[1].Source)
	}
	if entries[0].State["is_on"] != true {
		t.Errorf("latest state = %v", entries[0].State)
	}
}

func TestHistory_NoStore(t *testing.T) {
	tb := newTestBridge(t, nil)
	entries, err := tb.History(context.Background(), "light-1", 10)
	if err != nil || entries != nil {
		t.Errorf("History() = %v, %v; want nil, nil", entries, err)
	}
}

func TestDiagnostics(t *testing.T) {
	tb := newTestBridge(t, nil)
	if _, err := tb.Diagnostics(); !errors.Is(err, ErrNotReady) {
		t.Errorf("Diagnostics() before refresh error = %v, want ErrNotReady", err)
	}

	snap := testSnapshot(lightDevice(), outletDevice())
	tb.poller.last = &snap

	dumps, err := tb.Diagnostics()
	if err != nil {
		t.Fatalf("Diagnostics() error = %v", err)
	}
	if len(dumps) != 2 || dumps[0].FriendlyName != "friendly-device-0" {
		t.Errorf("dumps = %+v", dumps)
	}

	if err := tb.handleDiagnostics("hubspace/bridge/diagnostics", []byte(PayloadPress)); err != nil {
		t.Fatalf("handleDiagnostics() error = %v", err)
	}
	data, err := os.ReadFile(tb.opts.DiagnosticsPath)
	if err != nil {
		t.Fatalf("dump not written: %v", err)
	}
	var written []map[string]any
	if err := json.Unmarshal(data, &written); err != nil || len(written) != 2 {
		t.Errorf("dump = %s (err %v)", data, err)
	}
}

func TestDiagnostics_IncludesExcludedDevices(t *testing.T) {
	tb := newTestBridge(t, nil)

	excluded := outletDevice()
	excluded.States = []device.State{{Class: device.FunctionToggle, Instance: "outlet1", Value: "on"}}
	snap := testSnapshot(lightDevice())
	snap.Listed = []device.Device{lightDevice(), excluded}
	tb.poller.last = &snap

	dumps, err := tb.Diagnostics()
	if err != nil {
		t.Fatalf("Diagnostics() error = %v", err)
	}
	if len(dumps) != 2 {
		t.Fatalf("Diagnostics() = %d devices, want the full listing of 2", len(dumps))
	}
	if len(dumps[0].States) != 2 {
		t.Errorf("tracked device states = %+v, want the polled pair", dumps[0].States)
	}
	if dumps[1].DeviceClass != excluded.DeviceClass || len(dumps[1].States) != 1 {
		t.Errorf("excluded device dump = %+v", dumps[1])
	}
	if dumps[1].FriendlyName == excluded.FriendlyName {
		t.Error("excluded device name should be anonymised")
	}
}

func TestRefresh(t *testing.T) {
	tb := newTestBridge(t, nil)
	if err := tb.Refresh(context.Background()); !errors.Is(err, coordinator.ErrUpdateFailed) {
		t.Errorf("Refresh() error = %v", err)
	}
	if tb.poller.refreshes != 1 {
		t.Errorf("refreshes = %d, want 1", tb.poller.refreshes)
	}
}

func TestErrorCode(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{fmt.Errorf("x: %w", ErrEntityNotFound), ErrCodeNotFound},
		{fmt.Errorf("x: %w", entity.ErrNotSupported), ErrCodeNotSupported},
		{fmt.Errorf("x: %w", entity.ErrInvalidValue), ErrCodeInvalidValue},
		{entity.ErrInvalidAction, ErrCodeInvalidPayload},
		{ErrInvalidCommand, ErrCodeInvalidPayload},
		{fmt.Errorf("%w: timeout", ErrCommandFailed), ErrCodeCloudError},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := ErrorCode(tt.err); got != tt.want {
				t.Errorf("ErrorCode(%v) = %q, want %q", tt.err, got, tt.want)
			}
		})
	}
}
