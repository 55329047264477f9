// Package serial opens the UART the radar is attached to.
package serial

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/tarm/serial"
)

// DefaultBaud is the factory baud rate of LD2410S radars.
const DefaultBaud = 115200

// Config holds serial port configuration.
type Config struct {
	// Device path (e.g., "/dev/ttyUSB0", "COM3").
	Device string
	Baud   int
	// ReadTimeout bounds a single Read; the driver polls, so it should be short.
	ReadTimeout time.Duration
}

// DefaultConfig returns the default configuration for device.
func DefaultConfig(device string) *Config {
	return &Config{
		Device:      device,
		Baud:        DefaultBaud,
		ReadTimeout: 10 * time.Millisecond,
	}
}

// Port is an opened serial port.
type Port struct {
	port *serial.Port
	cfg  Config
}

// Open opens a serial port.
func Open(cfg *Config) (*Port, error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}
	port, err := serial.OpenPort(&serial.Config{
		Name:        cfg.Device,
		Baud:        cfg.Baud,
		ReadTimeout: cfg.ReadTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", cfg.Device, err)
	}
	return &Port{port: port, cfg: *cfg}, nil
}

// Name returns the device path.
func (p *Port) Name() string {
	return p.cfg.Device
}

// Read implements io.Reader. An expired read timeout returns 0, nil.
func (p *Port) Read(b []byte) (int, error) {
	n, err := p.port.Read(b)
	if n == 0 && err == io.EOF {
		return 0, nil
	}
	return n, err
}

// Write implements io.Writer.
func (p *Port) Write(b []byte) (int, error) {
	return p.port.Write(b)
}

// Flush discards data received but not read yet.
func (p *Port) Flush() error {
	return p.port.Flush()
}

// Close implements io.Closer.
func (p *Port) Close() error {
	return p.port.Close()
}
