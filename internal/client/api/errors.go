package api

import (
	"errors"
	"fmt"
)

var (
	// ErrAuthFailed means the session is terminally dead: the refresh
	// credential was rejected and the local token cache has been cleared.
	// The only recovery is a fresh Login.
	ErrAuthFailed = errors.New("authentication failed")

	// ErrUnavailable covers timeouts and connection failures. Unlike
	// ErrAuthFailed, retrying the same call later is reasonable.
	ErrUnavailable = errors.New("service unavailable")
)

// StatusError reports a non-2xx response that is not an auth failure.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned status %d", e.Code)
	}
	return fmt.Sprintf("server returned status %d: %s", e.Code, e.Message)
}
