package protocol

import (
	"encoding/binary"
	"fmt"
)

// ParamValue is a general parameter word with its value.
type ParamValue struct {
	Word  uint16
	Value uint32
}

// ThresholdKind selects trigger or hold thresholds.
type ThresholdKind int

// Threshold kinds.
const (
	TriggerThresholds ThresholdKind = iota
	HoldThresholds
)

// String implements fmt.Stringer.
func (k ThresholdKind) String() string {
	if k == HoldThresholds {
		return "hold"
	}
	return "trigger"
}

// WriteCommand returns the command word writing the thresholds.
func (k ThresholdKind) WriteCommand() uint16 {
	if k == HoldThresholds {
		return CmdWriteHoldThresholds
	}
	return CmdWriteTriggerThresholds
}

// ReadCommand returns the command word reading the thresholds.
func (k ThresholdKind) ReadCommand() uint16 {
	if k == HoldThresholds {
		return CmdReadHoldThresholds
	}
	return CmdReadTriggerThresholds
}

// OutputMode is the reporting format.
type OutputMode int

// Output modes.
const (
	OutputStandard OutputMode = iota
	OutputSimple
)

// String implements fmt.Stringer.
func (m OutputMode) String() string {
	if m == OutputSimple {
		return "simple"
	}
	return "standard"
}

// ParseOutputMode parses "standard" or "simple".
func ParseOutputMode(s string) (OutputMode, error) {
	switch s {
	case "standard":
		return OutputStandard, nil
	case "simple", "minimal":
		return OutputSimple, nil
	}
	return 0, fmt.Errorf("invalid output mode %q", s)
}

// ReportType returns the report type emitted in this mode.
func (m OutputMode) ReportType() byte {
	if m == OutputSimple {
		return ReportSimple
	}
	return ReportStandard
}

// FrequencyToWire converts a frequency in Hz into its wire value: tenths
// of Hz, truncated. The tiny bias keeps values such as 2.3 from
// truncating to 22 due to binary floating point.
func FrequencyToWire(hz float64) uint32 {
	return uint32(hz*10 + 1e-9)
}

// FrequencyFromWire converts tenths of Hz into Hz.
func FrequencyFromWire(v uint32) float64 {
	return float64(v) / 10
}

// EncodeParamWrites encodes the parameters of CmdWriteGeneralParams.
func EncodeParamWrites(values []ParamValue) []byte {
	b := make([]byte, 6*len(values))
	for n, v := range values {
		binary.LittleEndian.PutUint16(b[n*6:], v.Word)
		binary.LittleEndian.PutUint32(b[n*6+2:], v.Value)
	}
	return b
}

// EncodeParamReads encodes the parameters of CmdReadGeneralParams.
func EncodeParamReads(words []uint16) []byte {
	b := make([]byte, 2*len(words))
	for n, w := range words {
		binary.LittleEndian.PutUint16(b[n*2:], w)
	}
	return b
}

// DecodeParamValues decodes count u32 values from ack data.
func DecodeParamValues(cmd uint16, data []byte, count int) ([]uint32, error) {
	if len(data) != 4*count {
		return nil, &MalformedAckError{
			Command: cmd,
			Reason:  fmt.Sprintf("expect %d bytes of values, got %d", 4*count, len(data)),
		}
	}
	values := make([]uint32, count)
	for n := range values {
		values[n] = binary.LittleEndian.Uint32(data[n*4:])
	}
	return values, nil
}

// PadThresholds zero pads thresholds to GateCount entries.
func PadThresholds(values []uint8) ([GateCount]uint8, error) {
	var out [GateCount]uint8
	if len(values) > GateCount {
		return out, fmt.Errorf("%d thresholds exceed %d gates", len(values), GateCount)
	}
	for n, v := range values {
		if v > MaxThreshold {
			return out, fmt.Errorf("threshold %d of gate %d exceeds %d", v, n, MaxThreshold)
		}
		out[n] = v
	}
	return out, nil
}

// EncodeThresholdWrites encodes the parameters of a threshold write: one
// (gate, value) pair for every gate.
func EncodeThresholdWrites(values [GateCount]uint8) []byte {
	pairs := make([]ParamValue, GateCount)
	for gate, v := range values {
		pairs[gate] = ParamValue{Word: uint16(gate), Value: uint32(v)}
	}
	return EncodeParamWrites(pairs)
}

// EncodeThresholdReads encodes the parameters of a threshold read.
func EncodeThresholdReads() []byte {
	words := make([]uint16, GateCount)
	for gate := range words {
		words[gate] = uint16(gate)
	}
	return EncodeParamReads(words)
}

// DecodeThresholds decodes the ack data of a threshold read.
func DecodeThresholds(cmd uint16, data []byte) ([GateCount]uint8, error) {
	var out [GateCount]uint8
	values, err := DecodeParamValues(cmd, data, GateCount)
	if err != nil {
		return out, err
	}
	for gate, v := range values {
		if v > MaxThreshold {
			return out, &MalformedAckError{
				Command: cmd,
				Reason:  fmt.Sprintf("threshold %d of gate %d out of range", v, gate),
			}
		}
		out[gate] = uint8(v)
	}
	return out, nil
}

// EncodeOutputMode encodes the parameters of CmdSwitchOutputMode.
func EncodeOutputMode(mode OutputMode) []byte {
	b := make([]byte, 6)
	if mode == OutputStandard {
		b[3] = 1
	}
	return b
}

// AutoThreshold holds the parameters of CmdStartAutoThreshold.
type AutoThreshold struct {
	TriggerFactor uint16
	HoldFactor    uint16
	ScanTime      uint16
}

// Encode encodes the parameters.
func (a AutoThreshold) Encode() []byte {
	b := make([]byte, 6)
	binary.LittleEndian.PutUint16(b, a.TriggerFactor)
	binary.LittleEndian.PutUint16(b[2:], a.HoldFactor)
	binary.LittleEndian.PutUint16(b[4:], a.ScanTime)
	return b
}

// DecodeAutoThreshold decodes the parameters of CmdStartAutoThreshold.
func DecodeAutoThreshold(b []byte) (AutoThreshold, error) {
	if len(b) != 6 {
		return AutoThreshold{}, fmt.Errorf("auto threshold params: expect 6 bytes, got %d", len(b))
	}
	return AutoThreshold{
		TriggerFactor: binary.LittleEndian.Uint16(b),
		HoldFactor:    binary.LittleEndian.Uint16(b[2:]),
		ScanTime:      binary.LittleEndian.Uint16(b[4:]),
	}, nil
}

// ConfigInfo is returned by CmdEnableConfig.
type ConfigInfo struct {
	ProtocolVersion uint16
	BufferSize      uint16
}

// FirmwareVersion is returned by CmdReadFirmwareVersion.
type FirmwareVersion struct {
	Major uint16
	Minor uint16
	Build uint32
}

// String implements fmt.Stringer.
func (v FirmwareVersion) String() string {
	return fmt.Sprintf("v%d.%d.%d", v.Major, v.Minor, v.Build)
}

// Bytes encodes the version as ack data.
func (v FirmwareVersion) Bytes() []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint16(b, v.Major)
	binary.LittleEndian.PutUint16(b[2:], v.Minor)
	binary.LittleEndian.PutUint32(b[4:], v.Build)
	return b
}
