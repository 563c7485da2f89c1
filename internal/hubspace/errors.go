package hubspace

import "errors"

// Domain errors for the cloud client.
var (
	// ErrAuthFailed is returned when the cloud rejects the credentials.
	// The user has to fix the username or password.
	ErrAuthFailed = errors.New("hubspace: authentication failed")

	// ErrConnectionFailed is returned when the cloud cannot be reached or a
	// request times out.
	ErrConnectionFailed = errors.New("hubspace: connection failed")

	// ErrUnexpectedResponse is returned for non-2xx responses other than
	// authentication failures, and for bodies that cannot be decoded.
	ErrUnexpectedResponse = errors.New("hubspace: unexpected response")

	// ErrNoAccount is returned when the user has no account access entry.
	ErrNoAccount = errors.New("hubspace: no account for user")

	// ErrInvalidConfig is returned by New for incomplete configuration.
	ErrInvalidConfig = errors.New("hubspace: invalid config")
)
