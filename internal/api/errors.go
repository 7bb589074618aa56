package api

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound = errors.New("operation not found")
	ErrConflict = errors.New("operation conflicts with an existing record")
	ErrInvalid  = errors.New("operation rejected by backend")
	ErrRemote   = errors.New("backend request failed")
)

// RemoteError describes a failed call to the backend. It unwraps to
// ErrNotFound, ErrConflict, ErrInvalid or ErrRemote so callers can branch with errors.Is.
type RemoteError struct {
	Op     string
	Status int // 0 for transport failures
	Body   string
	Err    error
}

func (e *RemoteError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	if e.Body != "" {
		return fmt.Sprintf("%s: status %d: %s", e.Op, e.Status, e.Body)
	}
	return fmt.Sprintf("%s: status %d", e.Op, e.Status)
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

// Kind returns a short label for logs and metrics.
func Kind(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrInvalid):
		return "invalid"
	default:
		return "error"
	}
}
