package radar

import (
	"errors"
	"fmt"
	"time"

	"github.com/robotalks/ld2410s/pkg/protocol"
)

var (
	// ErrInvalidGate indicates a gate index outside [0, 15].
	ErrInvalidGate = errors.New("invalid gate")
	// ErrOutOfRange indicates a parameter outside of its valid range.
	ErrOutOfRange = errors.New("out of range")
)

// Parameter ranges.
const (
	MinUnmannedDelay = 10
	MaxUnmannedDelay = 120
	MinReportFreq    = 0.5
	MaxReportFreq    = 8.0
	MaxFactor        = 100
	DefaultThrottle  = 50 * time.Millisecond
)

// GeneralParams are the device parameters written in one command.
type GeneralParams struct {
	FarthestGate uint8
	NearestGate  uint8
	// UnmannedDelay in seconds.
	UnmannedDelay uint32
	// Report frequencies in Hz.
	StatusReportFreq   float64
	DistanceReportFreq float64
}

// DeviceConfig mirrors what has been successfully written to the device,
// plus the host side throttle.
type DeviceConfig struct {
	Throttle      time.Duration
	OutputMode    protocol.OutputMode
	ResponseSpeed protocol.ResponseSpeed
	GeneralParams
	TriggerThresholds [protocol.GateCount]uint8
	HoldThresholds    [protocol.GateCount]uint8
	AutoThreshold     protocol.AutoThreshold
}

// DefaultDeviceConfig returns the configuration of a factory reset device.
func DefaultDeviceConfig() DeviceConfig {
	c := DeviceConfig{
		Throttle:      DefaultThrottle,
		OutputMode:    protocol.OutputStandard,
		ResponseSpeed: protocol.SpeedNormal,
		GeneralParams: GeneralParams{
			FarthestGate:       12,
			NearestGate:        0,
			UnmannedDelay:      10,
			StatusReportFreq:   8,
			DistanceReportFreq: 8,
		},
		AutoThreshold: protocol.AutoThreshold{TriggerFactor: 2, HoldFactor: 1, ScanTime: 60},
	}
	for gate := range c.TriggerThresholds {
		c.TriggerThresholds[gate] = 40
		c.HoldThresholds[gate] = 30
	}
	return c
}

// ValidateGate checks a gate index.
func ValidateGate(gate int) error {
	if gate < 0 || gate > protocol.MaxGate {
		return fmt.Errorf("%w: %d", ErrInvalidGate, gate)
	}
	return nil
}

// Validate checks the parameters are within the device limits.
func (p GeneralParams) Validate() error {
	if err := ValidateGate(int(p.FarthestGate)); err != nil {
		return fmt.Errorf("farthest gate: %w", err)
	}
	if err := ValidateGate(int(p.NearestGate)); err != nil {
		return fmt.Errorf("nearest gate: %w", err)
	}
	if p.NearestGate > p.FarthestGate {
		return fmt.Errorf("%w: nearest gate %d beyond farthest gate %d", ErrOutOfRange, p.NearestGate, p.FarthestGate)
	}
	if p.UnmannedDelay < MinUnmannedDelay || p.UnmannedDelay > MaxUnmannedDelay {
		return fmt.Errorf("%w: unmanned delay %ds", ErrOutOfRange, p.UnmannedDelay)
	}
	if err := validateFreq("status report", p.StatusReportFreq); err != nil {
		return err
	}
	return validateFreq("distance report", p.DistanceReportFreq)
}

func validateFreq(name string, hz float64) error {
	if hz < MinReportFreq || hz > MaxReportFreq {
		return fmt.Errorf("%w: %s frequency %vHz", ErrOutOfRange, name, hz)
	}
	return nil
}

// Values encodes the parameters as general parameter words.
func (p GeneralParams) Values() []protocol.ParamValue {
	return []protocol.ParamValue{
		{Word: protocol.ParamFarthestGate, Value: uint32(p.FarthestGate)},
		{Word: protocol.ParamNearestGate, Value: uint32(p.NearestGate)},
		{Word: protocol.ParamUnmannedDelay, Value: p.UnmannedDelay},
		{Word: protocol.ParamStatusReportFreq, Value: protocol.FrequencyToWire(p.StatusReportFreq)},
		{Word: protocol.ParamDistanceReportFreq, Value: protocol.FrequencyToWire(p.DistanceReportFreq)},
	}
}

var generalParamWords = []uint16{
	protocol.ParamFarthestGate,
	protocol.ParamNearestGate,
	protocol.ParamUnmannedDelay,
	protocol.ParamStatusReportFreq,
	protocol.ParamDistanceReportFreq,
}

// generalParamsFrom decodes values read for generalParamWords. Gates are
// checked on the wire value, before narrowing.
func generalParamsFrom(values []uint32) (GeneralParams, error) {
	for n, name := range []string{"farthest gate", "nearest gate"} {
		if values[n] > protocol.MaxGate {
			return GeneralParams{}, fmt.Errorf("%s: %w: %d", name, ErrInvalidGate, values[n])
		}
	}
	return GeneralParams{
		FarthestGate:       uint8(values[0]),
		NearestGate:        uint8(values[1]),
		UnmannedDelay:      values[2],
		StatusReportFreq:   protocol.FrequencyFromWire(values[3]),
		DistanceReportFreq: protocol.FrequencyFromWire(values[4]),
	}, nil
}

// ValidateThresholds checks a threshold list, which may be shorter than
// the number of gates.
func ValidateThresholds(values []uint8) error {
	if len(values) > protocol.GateCount {
		return fmt.Errorf("%w: %d thresholds for %d gates", ErrInvalidGate, len(values), protocol.GateCount)
	}
	for gate, v := range values {
		if v > protocol.MaxThreshold {
			return fmt.Errorf("%w: threshold %d of gate %d", ErrOutOfRange, v, gate)
		}
	}
	return nil
}

// ValidateAutoThreshold checks auto threshold factors.
func ValidateAutoThreshold(a protocol.AutoThreshold) error {
	if a.TriggerFactor > MaxFactor || a.HoldFactor > MaxFactor || a.ScanTime > MaxFactor {
		return fmt.Errorf("%w: auto threshold %+v", ErrOutOfRange, a)
	}
	return nil
}

// Validate checks the whole configuration.
func (c *DeviceConfig) Validate() error {
	if c.Throttle < 0 {
		return fmt.Errorf("%w: negative throttle", ErrOutOfRange)
	}
	if c.ResponseSpeed != protocol.SpeedNormal && c.ResponseSpeed != protocol.SpeedFast {
		return fmt.Errorf("%w: response speed %d", ErrOutOfRange, uint32(c.ResponseSpeed))
	}
	if err := c.GeneralParams.Validate(); err != nil {
		return err
	}
	if err := ValidateThresholds(c.TriggerThresholds[:]); err != nil {
		return err
	}
	if err := ValidateThresholds(c.HoldThresholds[:]); err != nil {
		return err
	}
	return ValidateAutoThreshold(c.AutoThreshold)
}
