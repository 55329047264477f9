package protocol

import (
	"fmt"
	"strings"
)

// Command words.
const (
	CmdReadFirmwareVersion    uint16 = 0x0000
	CmdStartAutoThreshold     uint16 = 0x0009
	CmdReadSerialNumber       uint16 = 0x0011
	CmdWriteGeneralParams     uint16 = 0x0070
	CmdReadGeneralParams      uint16 = 0x0071
	CmdWriteTriggerThresholds uint16 = 0x0072
	CmdReadTriggerThresholds  uint16 = 0x0073
	CmdWriteHoldThresholds    uint16 = 0x0076
	CmdReadHoldThresholds     uint16 = 0x0077
	CmdSwitchOutputMode       uint16 = 0x007a
	CmdDisableConfig          uint16 = 0x00fe
	CmdEnableConfig           uint16 = 0x00ff

	// AckFlag is set in the command word of acks.
	AckFlag uint16 = 0x0100
)

// EnableConfigValue is the parameter of CmdEnableConfig.
const EnableConfigValue uint16 = 0x0001

// General parameter words used with CmdWriteGeneralParams/CmdReadGeneralParams.
const (
	ParamStatusReportFreq   uint16 = 0x0002
	ParamFarthestGate       uint16 = 0x0005
	ParamUnmannedDelay      uint16 = 0x0006
	ParamNearestGate        uint16 = 0x000a
	ParamResponseSpeed      uint16 = 0x000b
	ParamDistanceReportFreq uint16 = 0x000c
)

// Report types, the first payload byte of report frames.
const (
	ReportStandard byte = 0x01
	ReportSimple   byte = 0x02
	ReportProgress byte = 0x03
)

// Device limits.
const (
	GateCount    = 16
	MaxGate      = GateCount - 1
	MaxThreshold = 100
)

// Status is the status word of an ack.
type Status uint16

// Statuses.
const (
	StatusSuccess Status = 0
	StatusFailure Status = 1
)

// String implements fmt.Stringer.
func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusFailure:
		return "failure"
	}
	return fmt.Sprintf("status(%d)", uint16(s))
}

// ResponseSpeed is the value of ParamResponseSpeed.
type ResponseSpeed uint32

// Response speeds.
const (
	SpeedNormal ResponseSpeed = 5
	SpeedFast   ResponseSpeed = 10
)

// String implements fmt.Stringer.
func (s ResponseSpeed) String() string {
	switch s {
	case SpeedNormal:
		return "normal"
	case SpeedFast:
		return "fast"
	}
	return fmt.Sprintf("speed(%d)", uint32(s))
}

// ParseResponseSpeed parses "normal" or "fast".
func ParseResponseSpeed(s string) (ResponseSpeed, error) {
	switch strings.ToLower(s) {
	case "normal":
		return SpeedNormal, nil
	case "fast":
		return SpeedFast, nil
	}
	return 0, fmt.Errorf("invalid response speed %q", s)
}

var commandNames = map[uint16]string{
	CmdReadFirmwareVersion:    "read firmware version",
	CmdStartAutoThreshold:     "start auto threshold",
	CmdReadSerialNumber:       "read serial number",
	CmdWriteGeneralParams:     "write general params",
	CmdReadGeneralParams:      "read general params",
	CmdWriteTriggerThresholds: "write trigger thresholds",
	CmdReadTriggerThresholds:  "read trigger thresholds",
	CmdWriteHoldThresholds:    "write hold thresholds",
	CmdReadHoldThresholds:     "read hold thresholds",
	CmdSwitchOutputMode:       "switch output mode",
	CmdDisableConfig:          "disable config",
	CmdEnableConfig:           "enable config",
}

// CommandName returns a readable name of a command word.
func CommandName(cmd uint16) string {
	if name, ok := commandNames[cmd]; ok {
		return name
	}
	return fmt.Sprintf("command 0x%04x", cmd)
}
