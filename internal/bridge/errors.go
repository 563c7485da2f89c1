package bridge

import "errors"

// Domain-specific errors for the bridge.
var (
	// ErrNotReady indicates the cloud could not be reached during setup.
	// The service retries setup until its context ends.
	ErrNotReady = errors.New("bridge: cloud not ready")

	// ErrInvalidAuth indicates the cloud rejected the configured credentials.
	ErrInvalidAuth = errors.New("bridge: invalid authentication")

	// ErrEntityNotFound indicates no entity has the requested unique id.
	ErrEntityNotFound = errors.New("bridge: entity not found")

	// ErrCommandFailed indicates the cloud rejected or never received a write.
	ErrCommandFailed = errors.New("bridge: command failed")

	// ErrInvalidCommand indicates a malformed command or set payload.
	ErrInvalidCommand = errors.New("bridge: invalid command")

	// ErrMissingDependency indicates a required dependency was not provided.
	ErrMissingDependency = errors.New("bridge: missing required dependency")
)
