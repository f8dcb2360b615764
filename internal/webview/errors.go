package webview

import (
	"errors"
	"fmt"
)

// Sentinel errors for navigation and gating.
var (
	ErrNoHistory     = errors.New("no history to go back to")
	ErrNoForward     = errors.New("no forward history")
	ErrNoPage        = errors.New("no page loaded")
	ErrNoSuchLink    = errors.New("no such link")
	ErrHostBlocked   = errors.New("host not allowed")
	ErrSchemeBlocked = errors.New("scheme not allowed")
)

// HTTPError reports a fetch that completed with a non-success status.
type HTTPError struct {
	URL        string
	StatusCode int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("fetch %s: status %d", e.URL, e.StatusCode)
}

// LoadError wraps a failed fetch with the address that failed.
type LoadError struct {
	URL string
	Err error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load %s: %v", e.URL, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }
