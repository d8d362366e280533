// Package remote implements the typed HTTP JSON facade (C3) over the
// lox_api object store protocol: metadata, transfer, folder management,
// key publication, and share contracts consumed by the sync engine.
package remote

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for the failure taxonomy in spec §4.1/§7.
// Use errors.Is(err, remote.ErrNotFound) etc. to classify.
var (
	ErrTransport = errors.New("remote: transport error")
	ErrProtocol  = errors.New("remote: protocol error")
	ErrNotFound  = errors.New("remote: not found")
	ErrAuth      = errors.New("remote: authentication error")
	ErrFatal     = errors.New("remote: fatal error")
)

// Error wraps a sentinel with the HTTP status and server message for
// debugging, while remaining classifiable with errors.Is via Unwrap.
type Error struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("remote: %s", e.Message)
	}

	return fmt.Sprintf("remote: HTTP %d: %s", e.StatusCode, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// classifyStatus maps an HTTP status code to a sentinel error. Returns nil
// for success codes the caller should treat as normal (2xx). NotFound is
// callers' responsibility to special-case where "absent" is meaningful
// (Meta); classifyStatus still reports it so non-meta callers can detect it.
func classifyStatus(code int) error {
	switch {
	case code >= http.StatusOK && code < http.StatusMultipleChoices:
		return nil
	case code == http.StatusNotFound:
		return ErrNotFound
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return ErrAuth
	case code >= http.StatusBadRequest && code < http.StatusInternalServerError:
		return ErrProtocol
	default:
		return ErrProtocol
	}
}
