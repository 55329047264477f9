package protocol

import (
	"errors"
	"fmt"
)

var (
	// ErrTimeout indicates no matching ack arrived in time. The command
	// may be retried.
	ErrTimeout = errors.New("ack timeout")
	// ErrInvalidState indicates an operation was requested in a state
	// which doesn't allow it. Nothing was written to the device.
	ErrInvalidState = errors.New("invalid state")
)

// CommandError is returned when the device acks a command with a
// failure status.
type CommandError struct {
	Command uint16
	Status  Status
}

// Error implements error.
func (e *CommandError) Error() string {
	return fmt.Sprintf("%s: device returned %s", CommandName(e.Command), e.Status)
}

// MalformedAckError indicates an ack matched the command but its
// payload can't be decoded.
type MalformedAckError struct {
	Command uint16
	Reason  string
}

// Error implements error.
func (e *MalformedAckError) Error() string {
	return fmt.Sprintf("%s: malformed ack: %s", CommandName(e.Command), e.Reason)
}

// IsRetryable tells if the failed command may be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTimeout)
}
