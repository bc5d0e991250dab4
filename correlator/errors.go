package correlator

import "errors"

// ErrRequestTimeout is returned when a pending request's deadline
// elapses before a response arrives.
var ErrRequestTimeout = errors.New("correlator: request timed out")
