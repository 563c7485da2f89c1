package device

import "errors"

// Domain errors for the device package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, device.ErrDeviceNotFound) {
//	    // handle not found case
//	}
var (
	// ErrDeviceNotFound is returned when a device ID does not exist.
	ErrDeviceNotFound = errors.New("device: not found")

	// ErrInvalidListing is returned when a cloud listing does not have the
	// expected top-level shape.
	ErrInvalidListing = errors.New("device: invalid listing")

	// ErrInvalidState is returned when a state snapshot cannot be decoded.
	ErrInvalidState = errors.New("device: invalid state")

	// ErrInvalidRange is returned when a function value range cannot be
	// expanded safely.
	ErrInvalidRange = errors.New("device: invalid range")

	// ErrInvalidDevice is returned when a descriptor is missing required fields.
	ErrInvalidDevice = errors.New("device: invalid")
)
