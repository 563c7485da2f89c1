package coordinator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/hubspace-bridge/internal/device"
)

// Defaults for Options.
const (
	DefaultInterval = 30 * time.Second
	DefaultTimeout  = 10 * time.Second
)

// Logger defines the logging interface used by the coordinator.
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

// Source is the cloud API as seen by the coordinator.
// Implemented by *hubspace.Client.
type Source interface {
	Metadevices(ctx context.Context) ([]byte, error)
	DeviceState(ctx context.Context, childID string) ([]device.State, error)
}

// Listener receives the outcome of every refresh cycle.
type Listener interface {
	OnUpdate(snap Snapshot)
	OnUpdateFailed(err error)
}

// ListenerFuncs adapts plain functions to a Listener. Nil fields are skipped.
type ListenerFuncs struct {
	Update       func(Snapshot)
	UpdateFailed func(error)
}

// OnUpdate implements Listener.
func (l ListenerFuncs) OnUpdate(s Snapshot) {
	if l.Update != nil {
		l.Update(s)
	}
}

// OnUpdateFailed implements Listener.
func (l ListenerFuncs) OnUpdateFailed(err error) {
	if l.UpdateFailed != nil {
		l.UpdateFailed(err)
	}
}

// Options configures a Coordinator.
type Options struct {
	// FriendlyNames and RoomNames form the allow-list passed to device.Filter.
	FriendlyNames []string
	RoomNames     []string

	// Interval between refresh cycles. Default 30s.
	Interval time.Duration

	// Timeout bounds one refresh cycle. Default 10s.
	Timeout time.Duration
}

// Snapshot is the result of one successful refresh cycle.
type Snapshot struct {
	// Devices are the tracked descriptors after filtering, in listing order.
	Devices []device.Device

	// Listed is every parsed descriptor on the account, before the
	// friendly-name and room allow-lists are applied.
	Listed []device.Device

	// States maps child id to its state tuples.
	States map[string][]device.State

	// Rooms from the listing.
	Rooms []device.Room

	UpdatedAt time.Time

	// Duration is how long the cycle took.
	Duration time.Duration
}

// Coordinator runs the polling loop.
type Coordinator struct {
	source Source
	parser *device.Parser
	opts   Options
	logger Logger
	now    func() time.Time

	mu        sync.RWMutex
	listeners []Listener
	last      *Snapshot
	lastErr   error

	// refreshMu serialises refresh cycles.
	refreshMu sync.Mutex
}

// New creates a coordinator. Call Run to start polling.
func New(source Source, opts Options) *Coordinator {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	return &Coordinator{
		source: source,
		parser: device.NewParser(),
		opts:   opts,
		logger: noopLogger{},
		now:    time.Now,
	}
}

// SetLogger sets the logger for the coordinator and its parser.
func (c *Coordinator) SetLogger(logger Logger) {
	c.logger = logger
	c.parser.SetLogger(logger)
}

// Subscribe registers a listener. Listeners are called in registration
// order from the goroutine running the refresh.
func (c *Coordinator) Subscribe(l Listener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, l)
}

// Last returns the most recent successful snapshot, if any.
func (c *Coordinator) Last() (Snapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.last == nil {
		return Snapshot{}, false
	}
	return *c.last, true
}

// LastError returns the error of the most recent cycle, nil after a success.
func (c *Coordinator) LastError() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastErr
}

// Run refreshes immediately and then on every interval until ctx is done.
// It always returns ctx.Err().
func (c *Coordinator) Run(ctx context.Context) error {
	c.logger.Info("coordinator started", "interval", c.opts.Interval, "timeout", c.opts.Timeout)

	_, _ = c.Refresh(ctx)

	ticker := time.NewTicker(c.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("coordinator stopped")
			return ctx.Err()
		case <-ticker.C:
			_, _ = c.Refresh(ctx)
		}
	}
}

// Refresh runs one cycle under the configured timeout and notifies
// listeners.
//
// Returns:
//   - Snapshot: The new snapshot on success
//   - error: Wraps ErrUpdateFailed when any step fails
func (c *Coordinator) Refresh(ctx context.Context) (Snapshot, error) {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	cycleCtx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	start := c.now()
	snap, err := c.collect(cycleCtx)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrUpdateFailed, err)
		c.logger.Warn("refresh failed", "error", err)

		c.mu.Lock()
		c.lastErr = err
		listeners := append([]Listener(nil), c.listeners...)
		c.mu.Unlock()

		for _, l := range listeners {
			l.OnUpdateFailed(err)
		}
		return Snapshot{}, err
	}

	snap.Duration = c.now().Sub(start)

	c.mu.Lock()
	c.last = &snap
	c.lastErr = nil
	listeners := append([]Listener(nil), c.listeners...)
	c.mu.Unlock()

	c.logger.Debug("refresh complete",
		"devices", len(snap.Devices),
		"duration", snap.Duration,
	)
	for _, l := range listeners {
		l.OnUpdate(snap)
	}
	return snap, nil
}

func (c *Coordinator) collect(ctx context.Context) (Snapshot, error) {
	raw, err := c.source.Metadevices(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("listing devices: %w", err)
	}
	listing, err := c.parser.Parse(raw)
	if err != nil {
		return Snapshot{}, err
	}
	if listing.Skipped > 0 {
		c.logger.Debug("listing had malformed entries", "skipped", listing.Skipped)
	}

	tracked := device.Filter(listing.Devices, c.opts.FriendlyNames, c.opts.RoomNames)

	states := make(map[string][]device.State, len(tracked))
	for i := range tracked {
		d := &tracked[i]
		if d.States != nil {
			states[d.ID] = d.States
			continue
		}
		st, err := c.source.DeviceState(ctx, d.ID)
		if err != nil {
			return Snapshot{}, fmt.Errorf("fetching state of %s: %w", d.ID, err)
		}
		states[d.ID] = st
	}

	return Snapshot{
		Devices:   tracked,
		Listed:    listing.Devices,
		States:    states,
		Rooms:     listing.Rooms,
		UpdatedAt: c.now(),
	}, nil
}
