package radar

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/ld2410s/pkg/comm"
	fx "github.com/robotalks/ld2410s/pkg/framework"
	"github.com/robotalks/ld2410s/pkg/protocol"
)

// Options of the Driver.
type Options struct {
	Unit  DistanceUnit
	Clock fx.Clock
	// ApplyOnSetup writes the whole DeviceConfig during Setup.
	ApplyOnSetup bool
}

// Driver is the facade over an LD2410S radar. It is not safe for
// concurrent use: call it from the polling loop, and post CallMsg from
// other goroutines.
type Driver struct {
	Outputs Outputs

	options     Options
	config      DeviceConfig
	desired     DeviceConfig
	stream      *comm.Stream
	client      *protocol.Client
	session     *Session
	interp      *Interpreter
	available   bool
	availKnown  bool
	version     protocol.FirmwareVersion
	haveVersion bool
}

// New creates a Driver over a transport. cfg is the configuration
// written to the device when Options.ApplyOnSetup is set; until then the
// mirror starts from it as well.
func New(rw io.ReadWriter, cfg DeviceConfig, opts Options) *Driver {
	if opts.Clock == nil {
		opts.Clock = fx.SystemClock{}
	}
	d := &Driver{options: opts, config: cfg, desired: cfg}
	d.stream = comm.NewStream(rw)
	d.stream.Handler = comm.HandleFrameFunc(d.handleFrame)
	d.client = protocol.NewClient(d.stream)
	d.client.Clock = opts.Clock
	d.client.Discarded = d.stream.Handler
	d.session = NewSession(d.client, &d.config)
	d.interp = NewInterpreter(opts.Unit, cfg)
	d.interp.Clock = opts.Clock
	d.interp.OnProgress = d.Outputs.publishProgress
	d.session.OnStateChange = d.stateChanged
	d.session.OnConfigChange = d.interp.SetConfig
	return d
}

// Client exposes the command client, e.g. to tune timing.
func (d *Driver) Client() *protocol.Client {
	return d.client
}

// Session exposes the configuration session.
func (d *Driver) Session() *Session {
	return d.session
}

// Config returns a snapshot of the configuration mirror.
func (d *Driver) Config() DeviceConfig {
	return d.config
}

// Latest returns the most recent reading.
func (d *Driver) Latest() (SensorReading, bool) {
	return d.interp.Latest()
}

// LastPresence returns when presence was last seen.
func (d *Driver) LastPresence() time.Time {
	return d.interp.LastPresence()
}

// Stats returns frame counters.
func (d *Driver) Stats() comm.Stats {
	return d.stream.Stats()
}

// Available tells if the device is reachable.
func (d *Driver) Available() bool {
	return d.available
}

// FirmwareVersion returns the version read during Setup.
func (d *Driver) FirmwareVersion() (protocol.FirmwareVersion, bool) {
	return d.version, d.haveVersion
}

// Setup initializes the outputs, reads the firmware version and, if
// requested, writes the desired configuration.
func (d *Driver) Setup(ctx context.Context) error {
	d.Outputs.publishConfigMode(false)
	return d.Configure(ctx, func(ctx context.Context, s *Session) error {
		version, err := s.ReadFirmwareVersion(ctx)
		if err != nil {
			return fmt.Errorf("read firmware version: %w", err)
		}
		d.version, d.haveVersion = version, true
		glog.Infof("LD2410S firmware %s", version)
		if d.options.ApplyOnSetup {
			return s.Apply(ctx, d.desired)
		}
		return nil
	})
}

// Configure enters configuration mode, runs fn and always leaves
// configuration mode again.
func (d *Driver) Configure(ctx context.Context, fn func(context.Context, *Session) error) error {
	if err := d.session.Enter(ctx); err != nil {
		d.checkTransport(err)
		return err
	}
	var errs fx.AggregatedError
	errs.Add(fn(ctx, d.session))
	errs.Add(d.session.Exit(ctx))
	err := errs.Aggregate()
	d.checkTransport(err)
	return err
}

// EnableConfig enters configuration mode and stays there. Reports are
// not forwarded until DisableConfig.
func (d *Driver) EnableConfig(ctx context.Context) error {
	err := d.session.Enter(ctx)
	d.checkTransport(err)
	return err
}

// DisableConfig leaves configuration mode.
func (d *Driver) DisableConfig(ctx context.Context) error {
	err := d.session.Exit(ctx)
	d.checkTransport(err)
	return err
}

// SetResponseSpeed writes the response speed in its own session.
func (d *Driver) SetResponseSpeed(ctx context.Context, speed protocol.ResponseSpeed) error {
	return d.InSession(ctx, func(ctx context.Context, s *Session) error {
		return s.SetResponseSpeed(ctx, speed)
	})
}

// SetOutputMode switches the report format in its own session.
func (d *Driver) SetOutputMode(ctx context.Context, mode protocol.OutputMode) error {
	return d.InSession(ctx, func(ctx context.Context, s *Session) error {
		return s.SetOutputMode(ctx, mode)
	})
}

// StartAutoThreshold starts calibration in its own session.
func (d *Driver) StartAutoThreshold(ctx context.Context, params protocol.AutoThreshold) error {
	return d.InSession(ctx, func(ctx context.Context, s *Session) error {
		return s.StartAutoThreshold(ctx, params)
	})
}

// WriteGeneralParams writes gates, unmanned delay and report frequencies.
func (d *Driver) WriteGeneralParams(ctx context.Context, p GeneralParams) error {
	if err := p.Validate(); err != nil {
		return err
	}
	return d.InSession(ctx, func(ctx context.Context, s *Session) error {
		return s.WriteGeneralParams(ctx, p)
	})
}

// SetUnmannedDelay writes the unmanned delay in seconds.
func (d *Driver) SetUnmannedDelay(ctx context.Context, seconds uint32) error {
	p := d.config.GeneralParams
	p.UnmannedDelay = seconds
	return d.WriteGeneralParams(ctx, p)
}

// SetStatusReportFreq writes the status report frequency in Hz.
func (d *Driver) SetStatusReportFreq(ctx context.Context, hz float64) error {
	p := d.config.GeneralParams
	p.StatusReportFreq = hz
	return d.WriteGeneralParams(ctx, p)
}

// SetDistanceReportFreq writes the distance report frequency in Hz.
func (d *Driver) SetDistanceReportFreq(ctx context.Context, hz float64) error {
	p := d.config.GeneralParams
	p.DistanceReportFreq = hz
	return d.WriteGeneralParams(ctx, p)
}

// SetGateThreshold changes the trigger or hold threshold of one gate,
// keeping the other gates as mirrored.
func (d *Driver) SetGateThreshold(ctx context.Context, kind protocol.ThresholdKind, gate int, value uint8) error {
	if err := ValidateGate(gate); err != nil {
		return err
	}
	if value > protocol.MaxThreshold {
		return fmt.Errorf("%w: threshold %d", ErrOutOfRange, value)
	}
	return d.InSession(ctx, func(ctx context.Context, s *Session) error {
		values := *thresholdsOf(&d.config, kind)
		values[gate] = value
		return s.writeThresholds(ctx, kind, values[:])
	})
}

// InSession runs fn inside the session already opened by
// EnableConfig, or brackets it in a new one.
func (d *Driver) InSession(ctx context.Context, fn func(context.Context, *Session) error) error {
	if d.session.State() == StateConfiguring {
		err := fn(ctx, d.session)
		d.checkTransport(err)
		return err
	}
	return d.Configure(ctx, fn)
}

// Poll performs one transport read and handles every complete frame.
func (d *Driver) Poll(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := d.stream.Poll()
	d.checkTransport(err)
	return err
}

func (d *Driver) handleFrame(f *comm.Frame) {
	switch f.Dialect {
	case comm.DialectReport:
		d.setAvailable(true)
		if d.session.State() != StateNormal {
			glog.V(3).Infof("report ignored in %s state", d.session.State())
			return
		}
		reading, err := d.interp.OnReportFrame(f)
		if err != nil {
			glog.V(2).Infof("report: %v", err)
			return
		}
		if reading != nil {
			d.Outputs.publishReading(reading)
		}
	case comm.DialectConfig:
		glog.V(2).Infof("unsolicited config frame: %s", f)
	}
}

func (d *Driver) stateChanged(state ConfigModeState) {
	switch state {
	case StateConfiguring:
		d.Outputs.publishConfigMode(true)
	case StateNormal:
		d.Outputs.publishConfigMode(false)
	}
}

func (d *Driver) checkTransport(err error) {
	if err == nil {
		return
	}
	if comm.IsTransportError(err) {
		glog.Warningf("device unavailable: %v", err)
		d.session.Reset()
		d.setAvailable(false)
		return
	}
	if protocol.IsRetryable(err) {
		glog.Warningf("device not responding: %v", err)
	}
}

func (d *Driver) setAvailable(on bool) {
	if d.availKnown && d.available == on {
		return
	}
	d.available, d.availKnown = on, true
	d.Outputs.publishAvailable(on)
}

// AddToLoop implements LoopAdder.
func (d *Driver) AddToLoop(loop *fx.Loop) {
	loop.AddController(fx.PrLvPoll, fx.ControlFunc(d.pollControl))
	loop.AddController(fx.PrLvCommand, fx.ControlFunc(d.commandControl))
}

func (d *Driver) pollControl(cc fx.ControlContext) error {
	return d.Poll(cc.Context())
}

func (d *Driver) commandControl(cc fx.ControlContext) error {
	var errs fx.AggregatedError
	cc.Messages().ProcessMessages(func(msg fx.Message) bool {
		call, ok := msg.(*CallMsg)
		if !ok {
			return false
		}
		err := call.Fn(cc.Context(), d)
		if call.Result != nil {
			call.Result <- err
		} else {
			errs.Add(err)
		}
		return true
	})
	return errs.Aggregate()
}

// CallMsg runs Fn on the polling loop where the driver is owned. The
// error is sent to Result if it is not nil, otherwise logged by the loop.
type CallMsg struct {
	Fn     func(context.Context, *Driver) error
	Result chan<- error
}

// Call posts fn to the loop and waits for it to run.
func Call(ctx context.Context, loop fx.LoopControl, fn func(context.Context, *Driver) error) error {
	result := make(chan error, 1)
	loop.PostMessage(&CallMsg{Fn: fn, Result: result})
	loop.TriggerNext()
	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
