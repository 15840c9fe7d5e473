package api

import (
	"github.com/pkg/errors"
)

// Sentinels matching the view-level error taxonomy. Callers test with
// errors.Is; everything else is either a connectivity error or generic.
var (
	ErrAuthRequired   = errors.New("authentication required")
	ErrAccessDenied   = errors.New("access denied")
	ErrNotFound       = errors.New("not found")
	ErrAlreadyReacted = errors.New("already reacted")
)

// connectivityError wraps transport-level failures so the session can tell
// "check your connection" apart from application errors.
type connectivityError struct{ err error }

func (e *connectivityError) Error() string { return "connectivity: " + e.err.Error() }
func (e *connectivityError) Unwrap() error { return e.err }

// WrapConnectivity marks err as a network-level failure. Exposed so callers
// simulating transport faults produce errors IsConnectivity recognizes.
func WrapConnectivity(err error) error {
	if err == nil {
		return nil
	}
	return &connectivityError{err: err}
}

// IsConnectivity reports whether err failed at the network level rather than
// inside the application.
func IsConnectivity(err error) bool {
	var ce *connectivityError
	return errors.As(err, &ce)
}
