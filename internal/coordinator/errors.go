package coordinator

import "errors"

// ErrUpdateFailed wraps any failure of a refresh cycle. Subscribers are
// notified and the next tick tries again.
var ErrUpdateFailed = errors.New("coordinator: update failed")
