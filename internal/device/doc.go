// Package device models HubSpace device descriptors and their persistence.
//
// The cloud API returns a listing of metadevices: one record per controllable
// child of a physical device, plus room records. This package is the typed
// boundary for that data.
//
// # Key Types
//
//   - Device: Immutable descriptor (child id, parent id, class, functions)
//   - Function: A functionClass with an optional functionInstance and its legal values
//   - State: A (functionClass, functionInstance, value) tuple
//   - Registry: Cached, SQLite-backed set of tracked descriptors
//
// # Usage
//
//	listing, err := device.Parse(body)
//	if err != nil {
//	    return err // ErrInvalidListing
//	}
//	tracked := device.Filter(listing.Devices, cfg.FriendlyNames, cfg.RoomNames)
//	changes, err := registry.Sync(ctx, tracked)
//
// # Thread Safety
//
// Registry is safe for concurrent use. Device values are treated as
// immutable once parsed; use DeepCopy before modifying one.
package device
