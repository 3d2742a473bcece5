package oracle

import "errors"

// Domain errors for oracle calls.
var (
	// ErrUnavailable covers transport failures, timeouts, and 5xx responses.
	ErrUnavailable = errors.New("oracle unavailable")
	// ErrMalformed covers responses that decode to nothing usable.
	ErrMalformed = errors.New("oracle response malformed")
)
