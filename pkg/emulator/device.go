// Package emulator provides an in-memory HLK-LD2410S which speaks the
// wire protocol. It is used by tests and to run the tools without hardware.
package emulator

import (
	"bytes"
	"context"
	"encoding/binary"
	"sync"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/ld2410s/pkg/comm"
	"github.com/robotalks/ld2410s/pkg/protocol"
)

// Target is what the simulated radar sees.
type Target struct {
	// State is the target state: 0 or 1 unoccupied, 2 or 3 occupied.
	State uint8
	// Distance in centimeters.
	Distance uint16
	Energies [protocol.GateCount]uint8
}

// Device simulates a radar on the far end of a UART. Writes are commands
// from the host; reads return acks and reports. Read never blocks.
type Device struct {
	Version protocol.FirmwareVersion
	Serial  string

	lock       sync.Mutex
	parser     comm.Parser
	out        bytes.Buffer
	configMode bool
	mode       protocol.OutputMode
	params     map[uint16]uint32
	thresholds [2][protocol.GateCount]uint8
	auto       protocol.AutoThreshold
	progress   int
	muted      map[uint16]bool
	failing    map[uint16]bool
	requests   []protocol.Request
	writeErr   error
}

// New creates a Device with factory settings.
func New() *Device {
	d := &Device{
		Version:  protocol.FirmwareVersion{Major: 2, Minor: 4, Build: 24052718},
		Serial:   "LD2410S-EMU-0001",
		params:   make(map[uint16]uint32),
		muted:    make(map[uint16]bool),
		failing:  make(map[uint16]bool),
		progress: -1,
	}
	d.params[protocol.ParamFarthestGate] = 12
	d.params[protocol.ParamNearestGate] = 0
	d.params[protocol.ParamUnmannedDelay] = 10
	d.params[protocol.ParamStatusReportFreq] = 80
	d.params[protocol.ParamDistanceReportFreq] = 80
	d.params[protocol.ParamResponseSpeed] = uint32(protocol.SpeedNormal)
	for gate := range d.thresholds[0] {
		d.thresholds[protocol.TriggerThresholds][gate] = 40
		d.thresholds[protocol.HoldThresholds][gate] = 30
	}
	return d
}

// Read implements io.Reader.
func (d *Device) Read(p []byte) (int, error) {
	d.lock.Lock()
	defer d.lock.Unlock()
	if d.out.Len() == 0 {
		return 0, nil
	}
	return d.out.Read(p)
}

// Write implements io.Writer.
func (d *Device) Write(p []byte) (int, error) {
	d.lock.Lock()
	defer d.lock.Unlock()
	if d.writeErr != nil {
		return 0, d.writeErr
	}
	d.parser.Feed(p)
	for {
		f, err := d.parser.Next()
		if err != nil {
			glog.V(2).Infof("emulator: %v", err)
			continue
		}
		if f == nil {
			break
		}
		if f.Dialect == comm.DialectConfig {
			d.handle(f)
		}
	}
	return len(p), nil
}

// Close implements io.Closer.
func (d *Device) Close() error {
	return nil
}

// Mute makes the device ignore cmd, so the host times out.
func (d *Device) Mute(cmd uint16, muted bool) {
	d.lock.Lock()
	d.muted[cmd] = muted
	d.lock.Unlock()
}

// Fail makes the device answer cmd with a failure status.
func (d *Device) Fail(cmd uint16, failing bool) {
	d.lock.Lock()
	d.failing[cmd] = failing
	d.lock.Unlock()
}

// SetWriteError makes every Write fail with err, nil restores.
func (d *Device) SetWriteError(err error) {
	d.lock.Lock()
	d.writeErr = err
	d.lock.Unlock()
}

// Inject queues raw bytes to be read by the host.
func (d *Device) Inject(b []byte) {
	d.lock.Lock()
	d.out.Write(b)
	d.lock.Unlock()
}

// Requests returns the commands received so far.
func (d *Device) Requests() []protocol.Request {
	d.lock.Lock()
	defer d.lock.Unlock()
	return append([]protocol.Request(nil), d.requests...)
}

// LastParams returns the parameters of the last received cmd.
func (d *Device) LastParams(cmd uint16) ([]byte, bool) {
	d.lock.Lock()
	defer d.lock.Unlock()
	for n := len(d.requests) - 1; n >= 0; n-- {
		if d.requests[n].Command == cmd {
			return d.requests[n].Params, true
		}
	}
	return nil, false
}

// ConfigMode tells if the device is in configuration mode.
func (d *Device) ConfigMode() bool {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.configMode
}

// OutputMode returns the current report format.
func (d *Device) OutputMode() protocol.OutputMode {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.mode
}

// Param returns a general parameter.
func (d *Device) Param(word uint16) uint32 {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.params[word]
}

// Thresholds returns stored thresholds.
func (d *Device) Thresholds(kind protocol.ThresholdKind) [protocol.GateCount]uint8 {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.thresholds[kind]
}

// AutoThreshold returns the parameters of the last calibration.
func (d *Device) AutoThreshold() protocol.AutoThreshold {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.auto
}

// Report queues a report of t in the current output mode. Reports are
// suppressed in configuration mode.
func (d *Device) Report(t Target) {
	d.lock.Lock()
	defer d.lock.Unlock()
	if d.configMode {
		return
	}
	d.out.Write(comm.NewFrame(comm.DialectReport, EncodeReport(d.mode, t)).Bytes())
}

// AdvanceAutoThreshold moves a running calibration forward by step
// percent and reports the progress. It returns false when no calibration
// is running.
func (d *Device) AdvanceAutoThreshold(step int) bool {
	d.lock.Lock()
	defer d.lock.Unlock()
	if d.progress < 0 || d.configMode {
		return false
	}
	if d.progress += step; d.progress > 100 {
		d.progress = 100
	}
	payload := []byte{protocol.ReportProgress, 0, 0}
	binary.LittleEndian.PutUint16(payload[1:], uint16(d.progress))
	d.out.Write(comm.NewFrame(comm.DialectReport, payload).Bytes())
	if d.progress == 100 {
		d.progress = -1
	}
	return true
}

// Run generates reports of a target walking back and forth until ctx
// is done.
func (d *Device) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	var walk Walk
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if !d.AdvanceAutoThreshold(10) {
				d.Report(walk.Next())
			}
		}
	}
}

// EncodeReport encodes a report payload.
func EncodeReport(mode protocol.OutputMode, t Target) []byte {
	if mode == protocol.OutputSimple {
		payload := []byte{protocol.ReportSimple, t.State, 0, 0}
		binary.LittleEndian.PutUint16(payload[2:], t.Distance)
		return payload
	}
	payload := make([]byte, 6, 6+protocol.GateCount)
	payload[0], payload[1] = protocol.ReportStandard, t.State
	binary.LittleEndian.PutUint16(payload[2:], t.Distance)
	return append(payload, t.Energies[:]...)
}

func (d *Device) handle(f *comm.Frame) {
	word, _ := protocol.CommandWord(f)
	req := protocol.Request{Command: word, Params: append([]byte(nil), f.Payload[2:]...)}
	d.requests = append(d.requests, req)
	if d.muted[word] {
		return
	}
	ack := &protocol.Ack{Command: word}
	switch {
	case d.failing[word]:
		ack.Status = protocol.StatusFailure
	case word == protocol.CmdEnableConfig:
		d.configMode = true
		ack.Data = []byte{0x01, 0x00, 0x40, 0x00}
	case word == protocol.CmdDisableConfig:
		d.configMode = false
	case !d.configMode:
		ack.Status = protocol.StatusFailure
	default:
		ack.Data, ack.Status = d.execute(req)
	}
	d.out.Write(ack.Frame().Bytes())
}

func (d *Device) execute(req protocol.Request) ([]byte, protocol.Status) {
	p := req.Params
	switch req.Command {
	case protocol.CmdReadFirmwareVersion:
		return d.Version.Bytes(), protocol.StatusSuccess
	case protocol.CmdReadSerialNumber:
		data := make([]byte, 2, 2+len(d.Serial))
		binary.LittleEndian.PutUint16(data, uint16(len(d.Serial)))
		return append(data, d.Serial...), protocol.StatusSuccess
	case protocol.CmdWriteGeneralParams:
		if len(p)%6 != 0 {
			break
		}
		for n := 0; n < len(p); n += 6 {
			d.params[binary.LittleEndian.Uint16(p[n:])] = binary.LittleEndian.Uint32(p[n+2:])
		}
		return nil, protocol.StatusSuccess
	case protocol.CmdReadGeneralParams:
		if len(p)%2 != 0 {
			break
		}
		data := make([]byte, 0, len(p)*2)
		for n := 0; n < len(p); n += 2 {
			data = binary.LittleEndian.AppendUint32(data, d.params[binary.LittleEndian.Uint16(p[n:])])
		}
		return data, protocol.StatusSuccess
	case protocol.CmdWriteTriggerThresholds, protocol.CmdWriteHoldThresholds:
		kind := protocol.TriggerThresholds
		if req.Command == protocol.CmdWriteHoldThresholds {
			kind = protocol.HoldThresholds
		}
		if len(p) != 6*protocol.GateCount {
			break
		}
		values := d.thresholds[kind]
		for n := 0; n < len(p); n += 6 {
			gate, v := binary.LittleEndian.Uint16(p[n:]), binary.LittleEndian.Uint32(p[n+2:])
			if gate > protocol.MaxGate || v > protocol.MaxThreshold {
				return nil, protocol.StatusFailure
			}
			values[gate] = uint8(v)
		}
		d.thresholds[kind] = values
		return nil, protocol.StatusSuccess
	case protocol.CmdReadTriggerThresholds, protocol.CmdReadHoldThresholds:
		kind := protocol.TriggerThresholds
		if req.Command == protocol.CmdReadHoldThresholds {
			kind = protocol.HoldThresholds
		}
		data := make([]byte, 0, len(p)*2)
		for n := 0; n+1 < len(p); n += 2 {
			gate := binary.LittleEndian.Uint16(p[n:])
			if gate > protocol.MaxGate {
				return nil, protocol.StatusFailure
			}
			data = binary.LittleEndian.AppendUint32(data, uint32(d.thresholds[kind][gate]))
		}
		return data, protocol.StatusSuccess
	case protocol.CmdSwitchOutputMode:
		if len(p) != 6 {
			break
		}
		d.mode = protocol.OutputSimple
		if p[3] == 1 {
			d.mode = protocol.OutputStandard
		}
		return nil, protocol.StatusSuccess
	case protocol.CmdStartAutoThreshold:
		auto, err := protocol.DecodeAutoThreshold(p)
		if err != nil {
			break
		}
		d.auto, d.progress = auto, 0
		return nil, protocol.StatusSuccess
	}
	return nil, protocol.StatusFailure
}
