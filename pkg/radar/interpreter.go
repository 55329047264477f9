package radar

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/ld2410s/pkg/comm"
	fx "github.com/robotalks/ld2410s/pkg/framework"
	"github.com/robotalks/ld2410s/pkg/protocol"
)

// TargetState is the target state field of reports.
type TargetState uint8

// Target states. The device reports 0 or 1 when nobody is present and
// 2 or 3 when the area is occupied.
const (
	TargetNone TargetState = iota
	TargetUnoccupied
	TargetOccupied
	TargetOccupiedHold
)

// Occupied tells whether the state means someone is present.
func (s TargetState) Occupied() bool {
	return s == TargetOccupied || s == TargetOccupiedHold
}

// String implements fmt.Stringer.
func (s TargetState) String() string {
	switch s {
	case TargetNone:
		return "none"
	case TargetUnoccupied:
		return "unoccupied"
	case TargetOccupied:
		return "occupied"
	case TargetOccupiedHold:
		return "occupied(hold)"
	}
	return fmt.Sprintf("target(%d)", uint8(s))
}

// DistanceUnit is the unit of published distances.
type DistanceUnit int

// Units.
const (
	Centimeters DistanceUnit = iota
	Meters
)

// String implements fmt.Stringer.
func (u DistanceUnit) String() string {
	if u == Meters {
		return "m"
	}
	return "cm"
}

// ParseDistanceUnit parses "cm" or "m".
func ParseDistanceUnit(s string) (DistanceUnit, error) {
	switch s {
	case "cm":
		return Centimeters, nil
	case "m":
		return Meters, nil
	}
	return 0, fmt.Errorf("invalid distance unit %q", s)
}

// Convert converts centimeters into the unit.
func (u DistanceUnit) Convert(cm uint16) float64 {
	if u == Meters {
		return float64(cm) / 100
	}
	return float64(cm)
}

// Report payload sizes.
const (
	SimpleReportSize   = 4
	StandardReportSize = 6 + protocol.GateCount
	ProgressReportSize = 3
)

// SensorReading is a decoded report.
type SensorReading struct {
	Presence bool
	State    TargetState
	// Distance in the unit of the interpreter.
	Distance float64
	// GateEnergies are valid only when HasEnergies, i.e. from standard reports.
	GateEnergies [protocol.GateCount]uint8
	HasEnergies  bool
	Timestamp    time.Time
}

// Interpreter turns report frames into readings, and limits how often
// readings are forwarded.
type Interpreter struct {
	Clock fx.Clock
	Unit  DistanceUnit
	// OnProgress receives auto threshold calibration progress in percent.
	OnProgress func(uint16)

	config        DeviceConfig
	latest        SensorReading
	hasLatest     bool
	lastForwarded time.Time
	forwarded     bool
	lastPresence  time.Time
	warnedMode    bool
}

// NewInterpreter creates an Interpreter.
func NewInterpreter(unit DistanceUnit, config DeviceConfig) *Interpreter {
	return &Interpreter{Clock: fx.SystemClock{}, Unit: unit, config: config}
}

// SetConfig replaces the configuration snapshot.
func (i *Interpreter) SetConfig(config DeviceConfig) {
	if config.OutputMode != i.config.OutputMode {
		i.warnedMode = false
	}
	i.config = config
}

// Latest returns the most recent reading, forwarded or not.
func (i *Interpreter) Latest() (SensorReading, bool) {
	return i.latest, i.hasLatest
}

// LastPresence returns when presence was last reported.
func (i *Interpreter) LastPresence() time.Time {
	return i.lastPresence
}

// OnReportFrame decodes a report frame. It returns the reading if it is
// due to be forwarded, nil otherwise.
func (i *Interpreter) OnReportFrame(f *comm.Frame) (*SensorReading, error) {
	if f.Dialect != comm.DialectReport || len(f.Payload) == 0 {
		return nil, &comm.FramingError{Dialect: f.Dialect, Reason: comm.ReasonPayload, Length: f.Len()}
	}
	now := i.Clock.Now()
	if f.Type == protocol.ReportProgress {
		return nil, i.handleProgress(f)
	}
	reading, err := i.decode(f)
	if err != nil {
		return nil, err
	}
	reading.Timestamp = now
	i.latest, i.hasLatest = reading, true
	if reading.Presence {
		i.lastPresence = now
	}
	if i.forwarded && now.Sub(i.lastForwarded) < i.config.Throttle {
		return nil, nil
	}
	i.lastForwarded, i.forwarded = now, true
	return &reading, nil
}

func (i *Interpreter) decode(f *comm.Frame) (SensorReading, error) {
	var r SensorReading
	p := f.Payload
	switch f.Type {
	case protocol.ReportStandard:
		if len(p) < StandardReportSize {
			return r, &comm.FramingError{Dialect: f.Dialect, Reason: comm.ReasonPayload, Length: len(p)}
		}
		copy(r.GateEnergies[:], p[6:StandardReportSize])
		for gate, e := range r.GateEnergies {
			if e > protocol.MaxThreshold {
				glog.V(2).Infof("gate %d energy %d clipped", gate, e)
				r.GateEnergies[gate] = protocol.MaxThreshold
			}
		}
		r.HasEnergies = true
	case protocol.ReportSimple:
		if len(p) < SimpleReportSize {
			return r, &comm.FramingError{Dialect: f.Dialect, Reason: comm.ReasonPayload, Length: len(p)}
		}
	default:
		return r, &comm.FramingError{Dialect: f.Dialect, Reason: fmt.Sprintf("unknown report type 0x%02x", f.Type), Length: len(p)}
	}
	if f.Type != i.config.OutputMode.ReportType() && !i.warnedMode {
		glog.Warningf("%s mode configured but report type 0x%02x received", i.config.OutputMode, f.Type)
		i.warnedMode = true
	}
	r.State = TargetState(p[1])
	r.Presence = r.State.Occupied()
	r.Distance = i.Unit.Convert(binary.LittleEndian.Uint16(p[2:]))
	return r, nil
}

func (i *Interpreter) handleProgress(f *comm.Frame) error {
	if len(f.Payload) < ProgressReportSize {
		return &comm.FramingError{Dialect: f.Dialect, Reason: comm.ReasonPayload, Length: f.Len()}
	}
	progress := binary.LittleEndian.Uint16(f.Payload[1:])
	glog.V(2).Infof("auto threshold progress %d%%", progress)
	if fn := i.OnProgress; fn != nil {
		fn(progress)
	}
	return nil
}
