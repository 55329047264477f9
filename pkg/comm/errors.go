package comm

import (
	"errors"
	"fmt"
	"os"
)

// Reasons of FramingError.
const (
	ReasonLength  = "length out of range"
	ReasonTrailer = "trailer mismatch"
	ReasonShort   = "frame too short"
	ReasonPayload = "malformed payload"
)

// FramingError reports a rejected candidate frame. The parser has
// already resynchronized when it is returned.
type FramingError struct {
	Dialect Dialect
	Reason  string
	Length  int
}

// Error implements error.
func (e *FramingError) Error() string {
	return fmt.Sprintf("%s frame: %s (length %d)", e.Dialect, e.Reason, e.Length)
}

// TransportError wraps a failure of the underlying byte transport.
type TransportError struct {
	Op  string
	Err error
}

// Error implements error.
func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s: %v", e.Op, e.Err)
}

// Unwrap returns the transport failure.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsFramingError tells if err is a FramingError.
func IsFramingError(err error) bool {
	var fe *FramingError
	return errors.As(err, &fe)
}

// IsTransportError tells if err is a TransportError.
func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

func isNoData(err error) bool {
	return os.IsTimeout(err)
}
