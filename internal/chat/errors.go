package chat

import (
	"errors"
	"fmt"
)

var (
	// ErrNetwork marks failures where the transport could not complete a call.
	ErrNetwork = errors.New("network failure")
	// ErrBusy is returned when a send is attempted while another is in flight.
	ErrBusy = errors.New("a message is already being sent")
	// ErrStaleResponse marks a response for a session that is no longer active.
	ErrStaleResponse = errors.New("response targets an inactive session")

	ErrEmptyMessage   = errors.New("message text is empty")
	ErrInvalidVerdict = errors.New("feedback verdict must be up or down")
	ErrNotRateable    = errors.New("message cannot be rated")
)

// BackendError is a completed call that returned a non-success status.
type BackendError struct {
	Op      string
	Status  int
	Message string
}

func (e *BackendError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: backend returned status %d", e.Op, e.Status)
	}
	return fmt.Sprintf("%s: backend returned status %d: %s", e.Op, e.Status, e.Message)
}

// IsNotFound reports whether err is a backend 404.
func IsNotFound(err error) bool {
	var be *BackendError
	return errors.As(err, &be) && be.Status == 404
}
