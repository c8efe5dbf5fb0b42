package stream

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyTitle keeps the user-facing casing; it is shown verbatim.
	ErrEmptyTitle       = errors.New("Please enter a stream title")
	ErrNoSeatsAvailable = errors.New("no seats available")
	ErrNoPendingRequest = errors.New("no pending seat request for user")
	ErrSeatOutOfRange   = errors.New("seat number out of range")
	ErrAlreadySeated    = errors.New("user already occupies a seat")
	ErrAlreadyLive      = errors.New("stream already started")
	ErrAlreadyJoined    = errors.New("already joined a stream")
)

// OpError wraps a failure with the operation that produced it.
type OpError struct {
	Op      string
	Err     error
	Details string
}

func (e *OpError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %v (%s)", e.Op, e.Err, e.Details)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *OpError) Unwrap() error {
	return e.Err
}

func opErr(op string, err error) *OpError {
	return &OpError{Op: op, Err: err}
}
