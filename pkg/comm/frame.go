package comm

import (
	"fmt"
	"io"
)

// Dialect selects the framing convention of a frame.
type Dialect int

// Dialects.
const (
	DialectConfig Dialect = iota
	DialectReport
)

// Marker is a 4-byte frame header or trailer.
type Marker [4]byte

// Frame markers.
var (
	ConfigHeader  = Marker{0xfd, 0xfc, 0xfb, 0xfa}
	ConfigTrailer = Marker{0x04, 0x03, 0x02, 0x01}
	ReportHeader  = Marker{0xf4, 0xf3, 0xf2, 0xf1}
	ReportTrailer = Marker{0xf8, 0xf7, 0xf6, 0xf5}
)

// Frame size constraints.
const (
	MarkerSize = 4
	LengthSize = 2
	// Overhead is the size of a frame around its payload.
	Overhead = 2*MarkerSize + LengthSize
	// MinPayloadSize is the smallest payload a valid frame carries:
	// a command word or a report type with its first field.
	MinPayloadSize = 2
	// MinFrameSize is the smallest valid frame.
	MinFrameSize = Overhead + MinPayloadSize
	// MaxPayloadSize bounds the declared length.
	MaxPayloadSize = 256
)

var dialects = []Dialect{DialectConfig, DialectReport}

// Header returns the header marker of the dialect.
func (d Dialect) Header() Marker {
	if d == DialectReport {
		return ReportHeader
	}
	return ConfigHeader
}

// Trailer returns the trailer marker of the dialect.
func (d Dialect) Trailer() Marker {
	if d == DialectReport {
		return ReportTrailer
	}
	return ConfigTrailer
}

// String implements fmt.Stringer.
func (d Dialect) String() string {
	switch d {
	case DialectConfig:
		return "config"
	case DialectReport:
		return "report"
	}
	return fmt.Sprintf("dialect(%d)", int(d))
}

// Frame is a single framed message.
type Frame struct {
	Dialect Dialect
	// Type is the first payload byte: the report type of report frames,
	// the low byte of the command word of config frames.
	Type    byte
	Payload []byte
}

// NewFrame creates a frame with the payload.
func NewFrame(d Dialect, payload []byte) *Frame {
	f := &Frame{Dialect: d, Payload: payload}
	if len(payload) > 0 {
		f.Type = payload[0]
	}
	return f
}

// Len returns the declared length, which is always the payload length.
func (f *Frame) Len() int {
	return len(f.Payload)
}

// Bytes returns encoded bytes for sending.
func (f *Frame) Bytes() []byte {
	header, trailer := f.Dialect.Header(), f.Dialect.Trailer()
	b := make([]byte, 0, Overhead+len(f.Payload))
	b = append(b, header[:]...)
	b = append(b, byte(len(f.Payload)), byte(len(f.Payload)>>8))
	b = append(b, f.Payload...)
	return append(b, trailer[:]...)
}

// WriteTo writes the encoded frame with a single Write so it is never
// interleaved with other writers.
func (f *Frame) WriteTo(w io.Writer) (int64, error) {
	b := f.Bytes()
	n, err := w.Write(b)
	if err == nil && n < len(b) {
		err = io.ErrShortWrite
	}
	return int64(n), err
}

// String implements fmt.Stringer.
func (f *Frame) String() string {
	return fmt.Sprintf("%s[% x]", f.Dialect, f.Payload)
}
