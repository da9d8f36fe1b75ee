// internal/errors/errors.go
package appErrors

import (
	"errors"
	"fmt"
)

// ErrBatchRunning is returned when a trigger arrives while a batch is
// already executing. Triggers are rejected, never queued.
var ErrBatchRunning = errors.New("batch already running")

// ErrSenderNotReady is returned when the delivery channel has not been
// paired yet. The run refuses to start.
var ErrSenderNotReady = errors.New("whatsapp sender not ready")

// ErrFetchUsers wraps a data-source failure. Fatal to the run: no sends
// happen after one of these.
type ErrFetchUsers struct {
	Err error
}

func (e *ErrFetchUsers) Error() string {
	return fmt.Sprintf("fetching users: %v", e.Err)
}

func (e *ErrFetchUsers) Unwrap() error { return e.Err }

// NewFetchUsers wraps err as a fatal fetch error.
func NewFetchUsers(err error) error {
	return &ErrFetchUsers{Err: err}
}
