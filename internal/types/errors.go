package types

import "errors"

// Gateway error taxonomy. Drivers wrap their failures in one of these so
// the session layer can decide between retry and abort.
var (
	// ErrTransientNetwork marks a recoverable gateway-connection failure
	// (the vendor's transient network error codes, e.g. 11001).
	ErrTransientNetwork = errors.New("transient network error")

	// ErrAuthFailed marks a non-success login response. Retried up to the
	// re-login cap, then fatal.
	ErrAuthFailed = errors.New("authentication failed")

	// ErrNotLoggedIn is returned by operations that require a live session.
	ErrNotLoggedIn = errors.New("not logged in")

	// ErrTerminated is returned by a manager that has been shut down.
	ErrTerminated = errors.New("gateway manager has been terminated")
)
