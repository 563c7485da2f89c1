package device

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Registry provides descriptor management with caching and thread safety.
// It wraps a Repository and adds an in-memory cache for fast lookups.
//
// The cache is populated on startup via RefreshCache() and kept in sync by
// Sync, which is called with every freshly discovered device set.
//
// All public methods are thread-safe.
type Registry struct {
	repo    Repository
	cache   map[string]*Device // Cached descriptors by child id
	cacheMu sync.RWMutex       // Protects cache
	logger  Logger
}

// NewRegistry creates a new device registry.
// The repository is used for persistence; the registry adds caching.
func NewRegistry(repo Repository) *Registry {
	return &Registry{
		repo:   repo,
		cache:  make(map[string]*Device),
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// RefreshCache reloads all descriptors from the repository into the cache.
// This should be called on application startup.
func (r *Registry) RefreshCache(ctx context.Context) error {
	devices, err := r.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("loading devices: %w", err)
	}

	r.cacheMu.Lock()
	defer r.cacheMu.Unlock()

	r.cache = make(map[string]*Device, len(devices))
	for i := range devices {
		d := devices[i]
		r.cache[d.ID] = d.DeepCopy()
	}

	r.logger.Info("device cache refreshed", "count", len(devices))
	return nil
}

// GetDevice retrieves a descriptor by child id.
// Returns ErrDeviceNotFound if the device does not exist.
// The returned device is a deep copy; callers can safely modify it.
func (r *Registry) GetDevice(ctx context.Context, id string) (*Device, error) {
	r.cacheMu.RLock()
	cached, ok := r.cache[id]
	r.cacheMu.RUnlock()

	if ok {
		return cached.DeepCopy(), nil
	}

	return r.repo.GetByID(ctx, id)
}

// ListDevices returns all cached descriptors ordered by friendly name.
// The returned devices are deep copies; callers can safely modify them.
func (r *Registry) ListDevices() []Device {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()

	devices := make([]Device, 0, len(r.cache))
	for _, d := range r.cache {
		devices = append(devices, *d.DeepCopy())
	}
	sort.Slice(devices, func(i, j int) bool {
		if devices[i].FriendlyName != devices[j].FriendlyName {
			return devices[i].FriendlyName < devices[j].FriendlyName
		}
		return devices[i].ID < devices[j].ID
	})
	return devices
}

// SyncResult lists the child ids affected by a Sync.
type SyncResult struct {
	Added   []string
	Changed []string // Function list differs from the cached descriptor
	Removed []string
}

// Sync replaces the cached device set with a freshly discovered one.
//
// New and changed descriptors are persisted, descriptors no longer present
// are deleted. Descriptors whose metadata changed but whose function list is
// identical are persisted without being reported as Changed.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - devices: The complete set of tracked devices after filtering
//
// Returns:
//   - SyncResult: Ids added, changed or removed, sorted
//   - error: The first persistence error; the cache is left consistent with
//     what was persisted before the failure
func (r *Registry) Sync(ctx context.Context, devices []Device) (SyncResult, error) {
	r.cacheMu.Lock()
	defer r.cacheMu.Unlock()

	var result SyncResult
	seen := make(map[string]bool, len(devices))

	for i := range devices {
		d := &devices[i]
		seen[d.ID] = true

		existing, ok := r.cache[d.ID]
		switch {
		case !ok:
			result.Added = append(result.Added, d.ID)
		case !existing.SameFunctions(d):
			result.Changed = append(result.Changed, d.ID)
		case existing.FriendlyName == d.FriendlyName &&
			existing.RoomName == d.RoomName &&
			existing.DeviceID == d.DeviceID &&
			existing.Model == d.Model:
			continue
		}

		if err := r.repo.Upsert(ctx, d); err != nil {
			return result, fmt.Errorf("persisting device %s: %w", d.ID, err)
		}
		cpy := d.DeepCopy()
		cpy.States = nil
		r.cache[d.ID] = cpy
	}

	for id := range r.cache {
		if seen[id] {
			continue
		}
		if err := r.repo.Delete(ctx, id); err != nil && !errors.Is(err, ErrDeviceNotFound) {
			return result, fmt.Errorf("removing device %s: %w", id, err)
		}
		delete(r.cache, id)
		result.Removed = append(result.Removed, id)
	}

	sort.Strings(result.Added)
	sort.Strings(result.Changed)
	sort.Strings(result.Removed)

	if len(result.Added)+len(result.Changed)+len(result.Removed) > 0 {
		r.logger.Info("device registry synced",
			"added", len(result.Added),
			"changed", len(result.Changed),
			"removed", len(result.Removed),
		)
	}
	return result, nil
}

// GetDeviceCount returns the number of cached devices.
func (r *Registry) GetDeviceCount() int {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()
	return len(r.cache)
}

// Stats returns registry statistics for monitoring.
type Stats struct {
	TotalDevices int
	ByClass      map[string]int
	ByRoom       map[string]int
}

// GetStats returns current registry statistics.
func (r *Registry) GetStats() Stats {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()

	stats := Stats{
		TotalDevices: len(r.cache),
		ByClass:      make(map[string]int),
		ByRoom:       make(map[string]int),
	}
	for _, d := range r.cache {
		stats.ByClass[d.DeviceClass]++
		stats.ByRoom[d.RoomName]++
	}
	return stats
}
