package mdns

import "errors"

var (
	// ErrAlreadyStarted is returned when Start is called twice.
	ErrAlreadyStarted = errors.New("mdns: already advertising")

	// ErrInvalidPort is returned for a port outside 1-65535.
	ErrInvalidPort = errors.New("mdns: invalid port")
)
