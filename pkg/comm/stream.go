package comm

import (
	"io"

	"github.com/golang/glog"
)

// FrameHandler is called when a frame is received.
type FrameHandler interface {
	HandleFrame(*Frame)
}

// HandleFrameFunc is func type of FrameHandler.
type HandleFrameFunc func(*Frame)

// HandleFrame implements FrameHandler.
func (f HandleFrameFunc) HandleFrame(frame *Frame) {
	f(frame)
}

// Stats counts stream activity.
type Stats struct {
	BytesRead uint64
	Frames    uint64
	Corrupted uint64
}

// DefaultReadSize is the size of a single transport read.
const DefaultReadSize = 256

// Stream sends frames over a transport and parses frames from it. It is
// not safe for concurrent use; a single goroutine owns it.
type Stream struct {
	ReadWriter io.ReadWriter
	Handler    FrameHandler

	parser  Parser
	readBuf []byte
	stats   Stats
}

// NewStream creates a Stream.
func NewStream(rw io.ReadWriter) *Stream {
	return &Stream{ReadWriter: rw, readBuf: make([]byte, DefaultReadSize)}
}

// Stats returns the counters.
func (s *Stream) Stats() Stats {
	return s.stats
}

// Fill performs a single read from the transport and feeds whatever
// arrived into the parser. A read timeout is treated as no data.
func (s *Stream) Fill() (int, error) {
	if s.readBuf == nil {
		s.readBuf = make([]byte, DefaultReadSize)
	}
	n, err := s.ReadWriter.Read(s.readBuf)
	if n > 0 {
		s.parser.Feed(s.readBuf[:n])
		s.stats.BytesRead += uint64(n)
	}
	if err != nil && !isNoData(err) {
		return n, &TransportError{Op: "read", Err: err}
	}
	return n, nil
}

// Next returns the next buffered frame, nil if none is complete.
func (s *Stream) Next() (*Frame, error) {
	f, err := s.parser.Next()
	if err != nil {
		s.stats.Corrupted++
		return nil, err
	}
	if f != nil {
		s.stats.Frames++
	}
	return f, nil
}

// Poll fills once and dispatches every complete frame to Handler.
// Framing errors are logged and skipped; only transport errors are returned.
func (s *Stream) Poll() error {
	_, err := s.Fill()
	for {
		f, ferr := s.Next()
		if ferr != nil {
			glog.V(2).Infof("skip: %v", ferr)
			continue
		}
		if f == nil {
			break
		}
		if h := s.Handler; h != nil {
			h.HandleFrame(f)
		}
	}
	return err
}

// Send writes a frame.
func (s *Stream) Send(f *Frame) error {
	if glog.V(3) {
		glog.Infof("SND %s", f)
	}
	if _, err := f.WriteTo(s.ReadWriter); err != nil {
		return &TransportError{Op: "write", Err: err}
	}
	return nil
}

// Resync drops everything buffered by the parser.
func (s *Stream) Resync() {
	s.parser.Reset()
}
