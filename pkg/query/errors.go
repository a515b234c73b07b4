package query

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrInvalidArgument is returned for bad call parameters. Not retryable.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrIllegalState is returned when a cursor or a handle set is used outside
	// of its lifecycle. Not retryable.
	ErrIllegalState = errors.New("illegal state")
	// ErrEndOfResults is the expected terminal signal of a cursor.
	ErrEndOfResults = errors.New("end of results")
	// ErrTimeout is matched by every *TimeoutError.
	ErrTimeout = errors.New("timeout")
)

// BackendError wraps whatever the Backend reported, without interpreting it.
type BackendError struct {
	Err error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("backend error: %v", e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }

// Cause implements the github.com/pkg/errors causer interface.
func (e *BackendError) Cause() error { return e.Err }

// TimeoutError marks a pending request that did not reach a terminal state
// before the aggregator's deadline expired.
type TimeoutError struct {
	Index int
	Err   error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("request %d: timed out waiting for result: %v", e.Index, e.Err)
}

func (e *TimeoutError) Is(target error) bool { return target == ErrTimeout }

func (e *TimeoutError) Unwrap() error { return e.Err }

func asBackendError(err error) error {
	if err == nil {
		return nil
	}
	var be *BackendError
	if errors.As(err, &be) {
		return be
	}
	return &BackendError{Err: err}
}
