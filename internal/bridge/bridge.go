package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/nerrad567/hubspace-bridge/internal/coordinator"
	"github.com/nerrad567/hubspace-bridge/internal/device"
	"github.com/nerrad567/hubspace-bridge/internal/diagnostics"
	"github.com/nerrad567/hubspace-bridge/internal/entity"
	"github.com/nerrad567/hubspace-bridge/internal/hubspace"
	"github.com/nerrad567/hubspace-bridge/internal/infrastructure/mqtt"
)

// Default settings.
const (
	defaultCommandTimeout  = 10 * time.Second
	defaultSetupRetryDelay = 30 * time.Second
	pruneInterval          = time.Hour

	// stateQoS is used for state, discovery and ack messages.
	stateQoS = 1
)

// Logger defines the logging interface used by the bridge.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// CloudClient is the subset of the cloud API the bridge uses.
// Implemented by *hubspace.Client.
type CloudClient interface {
	Login(ctx context.Context) error
	AccountID(ctx context.Context) (string, error)
	SetStates(ctx context.Context, childID string, states []device.State) error
}

// MQTTClient defines the MQTT operations the bridge needs.
// Implemented by *mqtt.Client; tests use a mock.
type MQTTClient interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	PublishJSON(topic string, v any, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	IsConnected() bool
}

// Poller is the polling coordinator as seen by the bridge.
// Implemented by *coordinator.Coordinator.
type Poller interface {
	Subscribe(l coordinator.Listener)
	Run(ctx context.Context) error
	Refresh(ctx context.Context) (coordinator.Snapshot, error)
	Last() (coordinator.Snapshot, bool)
}

// DeviceRegistry persists discovered descriptors. Implemented by *device.Registry.
type DeviceRegistry interface {
	Sync(ctx context.Context, devices []device.Device) (device.SyncResult, error)
	ListDevices() []device.Device
}

// HistoryStore records entity snapshots.
// Implemented by *device.SQLiteStateHistoryRepository.
type HistoryStore interface {
	RecordStateChange(ctx context.Context, entityID string, state device.Snapshot, source string) error
	GetHistory(ctx context.Context, entityID string, limit int) ([]device.StateHistoryEntry, error)
	PruneHistory(ctx context.Context, olderThan time.Duration) (int64, error)
}

// TelemetryWriter receives time-series points. Implemented by *influxdb.Client.
type TelemetryWriter interface {
	WriteEntityState(uid, domain string, fields map[string]any, at time.Time)
	WritePollResult(devices int, duration time.Duration, success bool, at time.Time)
}

// StateFunc is called with every entity snapshot that is published.
type StateFunc func(s entity.Snapshot)

// Options configures a Bridge.
type Options struct {
	// Cloud is the HubSpace API client (required).
	Cloud CloudClient

	// MQTT is the broker connection (required).
	MQTT MQTTClient

	// Poller drives refreshes (required).
	Poller Poller

	// Topics are the topic builders. Zero value uses the default prefixes.
	Topics mqtt.Topics

	// Optional stores.
	Registry  DeviceRegistry
	History   HistoryStore
	Telemetry TelemetryWriter

	Logger Logger

	// CommandTimeout bounds a single cloud write started from MQTT.
	// Default: 10s
	CommandTimeout time.Duration

	// SetupRetryDelay is the wait between setup attempts while the cloud is
	// unreachable. Default: 30s
	SetupRetryDelay time.Duration

	// HistoryRetention enables hourly pruning when positive.
	HistoryRetention time.Duration

	// DiagnosticsPath is where button presses write the dump.
	// Default: diagnostics.DefaultOutputPath
	DiagnosticsPath string
}

// Status summarises the bridge for health endpoints.
type Status struct {
	Ready         bool      `json:"ready"`
	Entities      int       `json:"entities"`
	MQTTConnected bool      `json:"mqtt_connected"`
	LastUpdate    time.Time `json:"last_update,omitzero"`
	LastError     string    `json:"last_error,omitempty"`
}

// Bridge connects cloud devices to the host.
//
// Thread Safety: all methods are safe for concurrent use.
type Bridge struct {
	cloud     CloudClient
	mqtt      MQTTClient
	poller    Poller
	topics    mqtt.Topics
	registry  DeviceRegistry
	history   HistoryStore
	telemetry TelemetryWriter
	logger    Logger
	opts      Options
	now       func() time.Time

	// mu guards entity state and the indexes below.
	mu         sync.RWMutex
	entities   map[string]entity.Entity
	byDevice   map[string][]string // child id -> entity uids
	devices    map[string]device.Device
	ready      bool
	lastUpdate time.Time
	lastErr    error

	pubMu     sync.Mutex
	published map[string][]byte // uid -> last state message

	listenerMu sync.RWMutex
	listeners  []StateFunc

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a bridge. Call Start to connect and begin polling.
//
// Parameters:
//   - opts: Bridge options; Cloud, MQTT and Poller are required
//
// Returns:
//   - *Bridge: Configured bridge
//   - error: Wraps ErrMissingDependency when a required option is nil
func New(opts Options) (*Bridge, error) {
	if opts.Cloud == nil {
		return nil, fmt.Errorf("%w: cloud client", ErrMissingDependency)
	}
	if opts.MQTT == nil {
		return nil, fmt.Errorf("%w: mqtt client", ErrMissingDependency)
	}
	if opts.Poller == nil {
		return nil, fmt.Errorf("%w: poller", ErrMissingDependency)
	}
	if opts.Topics.Prefix == "" || opts.Topics.DiscoveryPrefix == "" {
		opts.Topics = mqtt.NewTopics(opts.Topics.Prefix, opts.Topics.DiscoveryPrefix)
	}
	if opts.CommandTimeout <= 0 {
		opts.CommandTimeout = defaultCommandTimeout
	}
	if opts.SetupRetryDelay <= 0 {
		opts.SetupRetryDelay = defaultSetupRetryDelay
	}
	if opts.DiagnosticsPath == "" {
		opts.DiagnosticsPath = diagnostics.DefaultOutputPath
	}
	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Bridge{
		cloud:     opts.Cloud,
		mqtt:      opts.MQTT,
		poller:    opts.Poller,
		topics:    opts.Topics,
		registry:  opts.Registry,
		history:   opts.History,
		telemetry: opts.Telemetry,
		logger:    logger,
		opts:      opts,
		now:       time.Now,
		entities:  make(map[string]entity.Entity),
		byDevice:  make(map[string][]string),
		devices:   make(map[string]device.Device),
		published: make(map[string][]byte),
		ctx:       ctx,
		cancel:    cancel,
	}, nil
}

// Setup logs in and resolves the account.
//
// Returns:
//   - error: Wraps ErrInvalidAuth when the credentials are rejected, or
//     ErrNotReady for any other failure
func (b *Bridge) Setup(ctx context.Context) error {
	if err := b.cloud.Login(ctx); err != nil {
		return setupError(err)
	}
	account, err := b.cloud.AccountID(ctx)
	if err != nil {
		return setupError(err)
	}
	b.logger.Info("connected to hubspace", "account", account)
	return nil
}

func setupError(err error) error {
	if errors.Is(err, hubspace.ErrAuthFailed) {
		return fmt.Errorf("%w: %w", ErrInvalidAuth, err)
	}
	return fmt.Errorf("%w: %w", ErrNotReady, err)
}

// SetupWithRetry calls Setup until it succeeds, fails with anything other
// than ErrNotReady, or ctx ends.
func (b *Bridge) SetupWithRetry(ctx context.Context) error {
	for {
		err := b.Setup(ctx)
		if err == nil || !errors.Is(err, ErrNotReady) {
			return err
		}
		b.logger.Warn("hubspace not ready, retrying",
			"error", err,
			"retry_in", b.opts.SetupRetryDelay,
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(b.opts.SetupRetryDelay):
		}
	}
}

// Start runs setup, subscribes to command topics and starts polling in the
// background. It blocks only while setup retries.
func (b *Bridge) Start(ctx context.Context) error {
	if err := b.SetupWithRetry(ctx); err != nil {
		return err
	}

	subs := []struct {
		topic   string
		handler mqtt.MessageHandler
	}{
		{b.topics.AllEntitySets(), b.handleSet},
		{b.topics.AllEntityCommands(), b.handleCommand},
		{b.topics.BridgeDiagnostics(), b.handleDiagnostics},
		{b.topics.HomeAssistantStatus(), b.handleHomeAssistantStatus},
	}
	for _, s := range subs {
		if err := b.mqtt.Subscribe(s.topic, stateQoS, s.handler); err != nil {
			return fmt.Errorf("subscribing to %s: %w", s.topic, err)
		}
	}

	b.publishButton()
	b.poller.Subscribe(b)

	if b.history != nil && b.opts.HistoryRetention > 0 {
		b.wg.Add(1)
		go b.pruneLoop()
	}

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		_ = b.poller.Run(b.ctx)
	}()

	b.logger.Info("bridge started", "prefix", b.topics.Prefix)
	return nil
}

func (b *Bridge) publishButton() {
	button := BuildDiagnosticsButton(b.topics)
	if err := b.mqtt.PublishJSON(b.topics.Discovery("button", button.UniqueID), button, true); err != nil {
		b.logger.Warn("failed to publish diagnostics button", "error", err)
	}
}

// Republish sends discovery and state for every entity again, whether or
// not the state changed. It runs when Home Assistant comes back online.
func (b *Bridge) Republish(ctx context.Context) {
	b.mu.RLock()
	discovery := make([]DiscoveryConfig, 0, len(b.entities))
	kinds := make([]entity.Kind, 0, len(b.entities))
	for _, e := range b.entities {
		discovery = append(discovery, BuildDiscoveryConfig(e, b.topics))
		kinds = append(kinds, e.Kind())
	}
	snapshots := b.snapshotsLocked()
	b.mu.RUnlock()

	b.pubMu.Lock()
	clear(b.published)
	b.pubMu.Unlock()

	b.publishButton()
	for i, cfg := range discovery {
		if err := b.mqtt.PublishJSON(b.topics.Discovery(string(kinds[i]), cfg.UniqueID), cfg, true); err != nil {
			b.logger.Warn("failed to publish discovery", "entity", cfg.UniqueID, "error", err)
		}
	}
	now := b.now()
	for _, s := range snapshots {
		b.publishState(ctx, s, device.StateHistorySourcePoll, now)
	}
	b.logger.Info("republished entities", "count", len(snapshots))
}

// Stop cancels polling and waits for background work to finish.
func (b *Bridge) Stop() {
	b.cancel()
	b.wg.Wait()
	b.logger.Info("bridge stopped")
}

// OnStateChange registers fn to receive every published snapshot.
func (b *Bridge) OnStateChange(fn StateFunc) {
	b.listenerMu.Lock()
	defer b.listenerMu.Unlock()
	b.listeners = append(b.listeners, fn)
}

// OnUpdate implements coordinator.Listener.
func (b *Bridge) OnUpdate(snap coordinator.Snapshot) {
	ctx, cancel := context.WithTimeout(b.ctx, b.opts.CommandTimeout)
	defer cancel()

	if b.registry != nil {
		if _, err := b.registry.Sync(ctx, snap.Devices); err != nil {
			b.logger.Error("device registry sync failed", "error", err)
		}
	}

	b.mu.Lock()
	added, removed := b.reconcileLocked(snap.Devices)
	discovery := make([]DiscoveryConfig, 0, len(added))
	kinds := make([]entity.Kind, 0, len(added))
	for _, e := range added {
		discovery = append(discovery, BuildDiscoveryConfig(e, b.topics))
		kinds = append(kinds, e.Kind())
	}
	for _, e := range b.entities {
		e.Apply(snap.States[e.ChildID()])
		e.SetAvailable(true)
	}
	snapshots := b.snapshotsLocked()
	b.ready = true
	b.lastUpdate = snap.UpdatedAt
	b.lastErr = nil
	b.mu.Unlock()

	for _, r := range removed {
		b.clearEntity(r)
	}
	for i, cfg := range discovery {
		if err := b.mqtt.PublishJSON(b.topics.Discovery(string(kinds[i]), cfg.UniqueID), cfg, true); err != nil {
			b.logger.Warn("failed to publish discovery", "entity", cfg.UniqueID, "error", err)
		}
	}
	for _, s := range snapshots {
		b.publishState(ctx, s, device.StateHistorySourcePoll, snap.UpdatedAt)
	}

	if b.telemetry != nil {
		b.telemetry.WritePollResult(len(snap.Devices), snap.Duration, true, snap.UpdatedAt)
	}
}

// OnUpdateFailed implements coordinator.Listener. Every entity is marked
// unavailable until the next successful refresh.
func (b *Bridge) OnUpdateFailed(err error) {
	ctx, cancel := context.WithTimeout(b.ctx, b.opts.CommandTimeout)
	defer cancel()

	b.mu.Lock()
	for _, e := range b.entities {
		e.SetAvailable(false)
	}
	snapshots := b.snapshotsLocked()
	b.lastErr = err
	b.mu.Unlock()

	now := b.now()
	for _, s := range snapshots {
		b.publishState(ctx, s, device.StateHistorySourcePoll, now)
	}
	if b.telemetry != nil {
		b.telemetry.WritePollResult(0, 0, false, now)
	}
}

type removedEntity struct {
	uid  string
	kind entity.Kind
}

// reconcileLocked brings the entity set in line with the tracked devices.
// Devices whose function list changed are rebuilt. Caller holds b.mu.
func (b *Bridge) reconcileLocked(devices []device.Device) ([]entity.Entity, []removedEntity) {
	var added []entity.Entity
	var dropped []removedEntity
	seen := make(map[string]bool, len(devices))

	for i := range devices {
		d := devices[i]
		seen[d.ID] = true

		prev, known := b.devices[d.ID]
		if known && prev.SameFunctions(&d) {
			continue
		}
		if known {
			b.logger.Info("device functions changed, rebuilding entities", "device", d.ID)
			dropped = append(dropped, b.dropDeviceLocked(d.ID)...)
		}

		built := entity.Build(d, b.logger)
		uids := make([]string, 0, len(built))
		for _, e := range built {
			b.entities[e.UniqueID()] = e
			uids = append(uids, e.UniqueID())
		}
		b.byDevice[d.ID] = uids
		stored := d.DeepCopy()
		stored.States = nil
		b.devices[d.ID] = *stored
		added = append(added, built...)
	}

	for id := range b.devices {
		if !seen[id] {
			b.logger.Info("device no longer tracked", "device", id)
			dropped = append(dropped, b.dropDeviceLocked(id)...)
			delete(b.devices, id)
		}
	}

	// A rebuilt entity keeping its uid is not removed.
	removed := dropped[:0]
	for _, r := range dropped {
		if _, ok := b.entities[r.uid]; !ok {
			removed = append(removed, r)
		}
	}
	return added, removed
}

func (b *Bridge) dropDeviceLocked(childID string) []removedEntity {
	var out []removedEntity
	for _, uid := range b.byDevice[childID] {
		if e, ok := b.entities[uid]; ok {
			out = append(out, removedEntity{uid: uid, kind: e.Kind()})
			delete(b.entities, uid)
		}
	}
	delete(b.byDevice, childID)
	return out
}

// snapshotsLocked returns all entity snapshots sorted by uid. Caller holds b.mu.
func (b *Bridge) snapshotsLocked() []entity.Snapshot {
	out := make([]entity.Snapshot, 0, len(b.entities))
	for _, e := range b.entities {
		out = append(out, e.Snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UniqueID < out[j].UniqueID })
	return out
}

// clearEntity removes the retained discovery and state of a removed entity.
func (b *Bridge) clearEntity(r removedEntity) {
	b.pubMu.Lock()
	delete(b.published, r.uid)
	b.pubMu.Unlock()

	for _, topic := range []string{b.topics.Discovery(string(r.kind), r.uid), b.topics.EntityState(r.uid)} {
		if err := b.mqtt.Publish(topic, nil, stateQoS, true); err != nil {
			b.logger.Warn("failed to clear retained topic", "topic", topic, "error", err)
		}
	}
}

// publishState publishes a snapshot when it differs from the last one sent
// for the entity, then records it in history and telemetry and notifies
// state listeners. Command results are always recorded.
func (b *Bridge) publishState(ctx context.Context, s entity.Snapshot, source string, at time.Time) {
	data, err := json.Marshal(NewStateMessage(s))
	if err != nil {
		b.logger.Error("failed to encode state", "entity", s.UniqueID, "error", err)
		return
	}

	b.pubMu.Lock()
	unchanged := string(b.published[s.UniqueID]) == string(data)
	b.published[s.UniqueID] = data
	b.pubMu.Unlock()
	if unchanged && source == device.StateHistorySourcePoll {
		return
	}

	if err := b.mqtt.Publish(b.topics.EntityState(s.UniqueID), data, stateQoS, true); err != nil {
		b.logger.Warn("failed to publish state", "entity", s.UniqueID, "error", err)
	}

	if b.history != nil {
		if err := b.history.RecordStateChange(ctx, s.UniqueID, s.Record(), source); err != nil {
			b.logger.Warn("failed to record state history", "entity", s.UniqueID, "error", err)
		}
	}
	if b.telemetry != nil {
		b.telemetry.WriteEntityState(s.UniqueID, string(s.Kind), telemetryFields(s), at)
	}

	b.listenerMu.RLock()
	listeners := append([]StateFunc(nil), b.listeners...)
	b.listenerMu.RUnlock()
	for _, fn := range listeners {
		fn(s)
	}
}

// telemetryFields returns the numeric and boolean properties of a snapshot.
func telemetryFields(s entity.Snapshot) map[string]any {
	fields := map[string]any{"available": s.Available}
	if s.On != nil {
		fields["on"] = *s.On
	}
	if s.Brightness != nil {
		fields["brightness"] = *s.Brightness
	}
	if s.ColorTempKelvin != nil {
		fields["color_temp_kelvin"] = *s.ColorTempKelvin
	}
	if s.Percentage != nil {
		fields["percentage"] = *s.Percentage
	}
	if s.Position != "" {
		fields["position"] = s.Position
	}
	return fields
}

// Execute translates a typed action for an entity and writes it to the
// cloud. On success the written tuples are applied to the entity and the
// new state is published.
//
// Returns:
//   - entity.Snapshot: The entity state after the write
//   - error: ErrEntityNotFound, the entity's translation error
//     (entity.ErrNotSupported, entity.ErrInvalidValue), or ErrCommandFailed
func (b *Bridge) Execute(ctx context.Context, uid string, a entity.Action) (entity.Snapshot, error) {
	b.mu.Lock()
	e, ok := b.entities[uid]
	if !ok {
		b.mu.Unlock()
		return entity.Snapshot{}, fmt.Errorf("%w: %s", ErrEntityNotFound, uid)
	}
	states, err := e.Translate(a)
	b.mu.Unlock()
	if err != nil {
		return entity.Snapshot{}, err
	}
	if len(states) == 0 {
		return b.Entity(uid)
	}

	b.logger.Debug("executing action", "entity", uid, "action", a.ActionName(), "states", len(states))
	return b.write(ctx, e, states)
}

// SendCommand writes one raw function tuple to an entity's child id,
// bypassing typed actions.
func (b *Bridge) SendCommand(ctx context.Context, uid, functionClass, functionInstance string, value any) (entity.Snapshot, error) {
	if functionClass == "" {
		return entity.Snapshot{}, fmt.Errorf("%w: function class is required", ErrInvalidCommand)
	}

	b.mu.RLock()
	e, ok := b.entities[uid]
	b.mu.RUnlock()
	if !ok {
		return entity.Snapshot{}, fmt.Errorf("%w: %s", ErrEntityNotFound, uid)
	}

	b.logger.Info("sending raw command",
		"entity", uid,
		"class", functionClass,
		"instance", functionInstance,
	)
	return b.write(ctx, e, []device.State{{Class: functionClass, Instance: functionInstance, Value: value}})
}

func (b *Bridge) write(ctx context.Context, e entity.Entity, states []device.State) (entity.Snapshot, error) {
	uid := e.UniqueID()
	if err := b.cloud.SetStates(ctx, e.ChildID(), states); err != nil {
		b.logger.Error("command failed", "entity", uid, "error", err)
		return entity.Snapshot{}, fmt.Errorf("%w: %w", ErrCommandFailed, err)
	}

	b.mu.Lock()
	current, ok := b.entities[uid]
	if !ok || current != e {
		b.mu.Unlock()
		return entity.Snapshot{}, fmt.Errorf("%w: %s was removed", ErrEntityNotFound, uid)
	}
	e.Apply(states)
	snap := e.Snapshot()
	b.mu.Unlock()

	b.publishState(ctx, snap, device.StateHistorySourceCommand, b.now())
	return snap, nil
}

// Entities returns snapshots of every entity sorted by unique id.
func (b *Bridge) Entities() []entity.Snapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.snapshotsLocked()
}

// Entity returns the snapshot of one entity.
func (b *Bridge) Entity(uid string) (entity.Snapshot, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	e, ok := b.entities[uid]
	if !ok {
		return entity.Snapshot{}, fmt.Errorf("%w: %s", ErrEntityNotFound, uid)
	}
	return e.Snapshot(), nil
}

// Devices returns the tracked descriptors, from the registry when one is
// configured.
func (b *Bridge) Devices() []device.Device {
	if b.registry != nil {
		return b.registry.ListDevices()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]device.Device, 0, len(b.devices))
	for _, d := range b.devices {
		out = append(out, *d.DeepCopy())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// History returns recorded snapshots of an entity, newest first. It returns
// nothing when no history store is configured.
func (b *Bridge) History(ctx context.Context, uid string, limit int) ([]device.StateHistoryEntry, error) {
	if b.history == nil {
		return nil, nil
	}
	return b.history.GetHistory(ctx, uid, limit)
}

// Diagnostics returns an anonymised dump of every device on the account as
// of the last successful refresh, including devices the allow-lists exclude.
// Excluded devices carry the states embedded in the listing, if any.
func (b *Bridge) Diagnostics() ([]diagnostics.DeviceDump, error) {
	snap, ok := b.poller.Last()
	if !ok {
		return nil, fmt.Errorf("%w: no successful refresh yet", ErrNotReady)
	}
	devices := snap.Listed
	if devices == nil {
		devices = snap.Devices
	}
	return diagnostics.NewAnonymizer().Devices(devices, snap.States), nil
}

// WriteDiagnostics writes the anonymised dump to path, or to the configured
// diagnostics path when path is empty. It returns the path written.
func (b *Bridge) WriteDiagnostics(path string) (string, error) {
	if path == "" {
		path = b.opts.DiagnosticsPath
	}
	dumps, err := b.Diagnostics()
	if err != nil {
		return "", err
	}
	if err := diagnostics.WriteFile(path, dumps); err != nil {
		return "", err
	}
	b.logger.Info("diagnostics written", "path", path, "devices", len(dumps))
	return path, nil
}

// Refresh forces an immediate poll outside the regular interval.
func (b *Bridge) Refresh(ctx context.Context) error {
	_, err := b.poller.Refresh(ctx)
	return err
}

// Status returns a summary for health checks.
func (b *Bridge) Status() Status {
	b.mu.RLock()
	defer b.mu.RUnlock()
	s := Status{
		Ready:         b.ready,
		Entities:      len(b.entities),
		MQTTConnected: b.mqtt.IsConnected(),
		LastUpdate:    b.lastUpdate,
	}
	if b.lastErr != nil {
		s.LastError = b.lastErr.Error()
	}
	return s
}

func (b *Bridge) pruneLoop() {
	defer b.wg.Done()

	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()

	for {
		b.pruneHistory()
		select {
		case <-b.ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (b *Bridge) pruneHistory() {
	ctx, cancel := context.WithTimeout(b.ctx, b.opts.CommandTimeout)
	defer cancel()
	n, err := b.history.PruneHistory(ctx, b.opts.HistoryRetention)
	if err != nil {
		b.logger.Warn("state history prune failed", "error", err)
		return
	}
	if n > 0 {
		b.logger.Debug("state history pruned", "rows", n)
	}
}
