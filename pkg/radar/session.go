package radar

import (
	"context"
	"fmt"

	"github.com/golang/glog"

	fx "github.com/robotalks/ld2410s/pkg/framework"
	"github.com/robotalks/ld2410s/pkg/protocol"
)

// ConfigModeState is the state of the configuration session.
type ConfigModeState int

// States.
const (
	StateNormal ConfigModeState = iota
	StateEntering
	StateConfiguring
	StateExiting
)

// String implements fmt.Stringer.
func (s ConfigModeState) String() string {
	switch s {
	case StateNormal:
		return "normal"
	case StateEntering:
		return "entering"
	case StateConfiguring:
		return "configuring"
	case StateExiting:
		return "exiting"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Session brackets configuration commands between entering and leaving
// configuration mode, and keeps DeviceConfig in sync with what the device
// acknowledged.
type Session struct {
	// OnStateChange is called on every state transition.
	OnStateChange func(ConfigModeState)
	// OnConfigChange is called after the mirror is updated.
	OnConfigChange func(DeviceConfig)

	client *protocol.Client
	config *DeviceConfig
	state  ConfigModeState
	info   protocol.ConfigInfo
}

// NewSession creates a Session updating config.
func NewSession(client *protocol.Client, config *DeviceConfig) *Session {
	return &Session{client: client, config: config}
}

// State returns the current state.
func (s *Session) State() ConfigModeState {
	return s.state
}

// Info returns what the device reported when entering configuration mode.
func (s *Session) Info() protocol.ConfigInfo {
	return s.info
}

// Reset forces the state back to Normal without talking to the device,
// e.g. after the transport is lost.
func (s *Session) Reset() {
	s.setState(StateNormal)
}

func (s *Session) setState(state ConfigModeState) {
	if s.state == state {
		return
	}
	glog.V(2).Infof("config session %s -> %s", s.state, state)
	s.state = state
	if fn := s.OnStateChange; fn != nil {
		fn(state)
	}
}

func (s *Session) require(op string, state ConfigModeState) error {
	if s.state != state {
		return fmt.Errorf("%w: %s in %s state", protocol.ErrInvalidState, op, s.state)
	}
	return nil
}

func (s *Session) update(fn func(*DeviceConfig)) {
	fn(s.config)
	if cb := s.OnConfigChange; cb != nil {
		cb(*s.config)
	}
}

// Enter enters configuration mode.
func (s *Session) Enter(ctx context.Context) error {
	if err := s.require("enter", StateNormal); err != nil {
		return err
	}
	s.setState(StateEntering)
	info, err := s.client.EnableConfig(ctx)
	if err != nil {
		s.setState(StateNormal)
		return fmt.Errorf("enter config mode: %w", err)
	}
	s.info = info
	s.setState(StateConfiguring)
	glog.Infof("config mode entered, protocol %d, buffer %d", info.ProtocolVersion, info.BufferSize)
	return nil
}

// Exit leaves configuration mode. The session is back to Normal even if
// the device didn't acknowledge.
func (s *Session) Exit(ctx context.Context) error {
	if err := s.require("exit", StateConfiguring); err != nil {
		return err
	}
	s.setState(StateExiting)
	err := s.client.DisableConfig(ctx)
	s.setState(StateNormal)
	if err != nil {
		glog.Warningf("exit config mode: %v", err)
		return fmt.Errorf("exit config mode: %w", err)
	}
	glog.Info("config mode exited")
	return nil
}

// ReadFirmwareVersion reads the firmware version.
func (s *Session) ReadFirmwareVersion(ctx context.Context) (protocol.FirmwareVersion, error) {
	if err := s.require("read firmware version", StateConfiguring); err != nil {
		return protocol.FirmwareVersion{}, err
	}
	return s.client.ReadFirmwareVersion(ctx)
}

// ReadSerialNumber reads the serial number.
func (s *Session) ReadSerialNumber(ctx context.Context) (string, error) {
	if err := s.require("read serial number", StateConfiguring); err != nil {
		return "", err
	}
	return s.client.ReadSerialNumber(ctx)
}

// WriteGeneralParams writes gates, unmanned delay and report frequencies.
func (s *Session) WriteGeneralParams(ctx context.Context, p GeneralParams) error {
	if err := s.require("write general params", StateConfiguring); err != nil {
		return err
	}
	if err := p.Validate(); err != nil {
		return err
	}
	if err := s.client.WriteParams(ctx, p.Values()...); err != nil {
		return err
	}
	s.update(func(c *DeviceConfig) { c.GeneralParams = p })
	return nil
}

// ReadGeneralParams reads gates, unmanned delay and report frequencies.
func (s *Session) ReadGeneralParams(ctx context.Context) (GeneralParams, error) {
	if err := s.require("read general params", StateConfiguring); err != nil {
		return GeneralParams{}, err
	}
	values, err := s.client.ReadParams(ctx, generalParamWords...)
	if err != nil {
		return GeneralParams{}, err
	}
	p, err := generalParamsFrom(values)
	if err != nil {
		return p, &protocol.MalformedAckError{Command: protocol.CmdReadGeneralParams, Reason: err.Error()}
	}
	s.update(func(c *DeviceConfig) { c.GeneralParams = p })
	return p, nil
}

// SetResponseSpeed writes the response speed.
func (s *Session) SetResponseSpeed(ctx context.Context, speed protocol.ResponseSpeed) error {
	if err := s.require("set response speed", StateConfiguring); err != nil {
		return err
	}
	if speed != protocol.SpeedNormal && speed != protocol.SpeedFast {
		return fmt.Errorf("%w: response speed %d", ErrOutOfRange, uint32(speed))
	}
	err := s.client.WriteParams(ctx, protocol.ParamValue{Word: protocol.ParamResponseSpeed, Value: uint32(speed)})
	if err != nil {
		return err
	}
	s.update(func(c *DeviceConfig) { c.ResponseSpeed = speed })
	return nil
}

// WriteTriggerThresholds writes trigger thresholds, zero padded to all gates.
func (s *Session) WriteTriggerThresholds(ctx context.Context, values []uint8) error {
	return s.writeThresholds(ctx, protocol.TriggerThresholds, values)
}

// WriteHoldThresholds writes hold thresholds, zero padded to all gates.
func (s *Session) WriteHoldThresholds(ctx context.Context, values []uint8) error {
	return s.writeThresholds(ctx, protocol.HoldThresholds, values)
}

// ReadTriggerThresholds reads trigger thresholds.
func (s *Session) ReadTriggerThresholds(ctx context.Context) ([protocol.GateCount]uint8, error) {
	return s.readThresholds(ctx, protocol.TriggerThresholds)
}

// ReadHoldThresholds reads hold thresholds.
func (s *Session) ReadHoldThresholds(ctx context.Context) ([protocol.GateCount]uint8, error) {
	return s.readThresholds(ctx, protocol.HoldThresholds)
}

func (s *Session) writeThresholds(ctx context.Context, kind protocol.ThresholdKind, values []uint8) error {
	if err := s.require("write "+kind.String()+" thresholds", StateConfiguring); err != nil {
		return err
	}
	if err := ValidateThresholds(values); err != nil {
		return err
	}
	padded, err := protocol.PadThresholds(values)
	if err != nil {
		return err
	}
	if err := s.client.WriteThresholds(ctx, kind, padded); err != nil {
		return err
	}
	s.update(func(c *DeviceConfig) { *thresholdsOf(c, kind) = padded })
	return nil
}

func (s *Session) readThresholds(ctx context.Context, kind protocol.ThresholdKind) ([protocol.GateCount]uint8, error) {
	if err := s.require("read "+kind.String()+" thresholds", StateConfiguring); err != nil {
		return [protocol.GateCount]uint8{}, err
	}
	values, err := s.client.ReadThresholds(ctx, kind)
	if err != nil {
		return values, err
	}
	s.update(func(c *DeviceConfig) { *thresholdsOf(c, kind) = values })
	return values, nil
}

func thresholdsOf(c *DeviceConfig, kind protocol.ThresholdKind) *[protocol.GateCount]uint8 {
	if kind == protocol.HoldThresholds {
		return &c.HoldThresholds
	}
	return &c.TriggerThresholds
}

// SetOutputMode selects the report format.
func (s *Session) SetOutputMode(ctx context.Context, mode protocol.OutputMode) error {
	if err := s.require("set output mode", StateConfiguring); err != nil {
		return err
	}
	if err := s.client.SwitchOutputMode(ctx, mode); err != nil {
		return err
	}
	s.update(func(c *DeviceConfig) { c.OutputMode = mode })
	return nil
}

// StartAutoThreshold starts the automatic threshold calibration. The
// device reports the progress once configuration mode is left.
func (s *Session) StartAutoThreshold(ctx context.Context, params protocol.AutoThreshold) error {
	if err := s.require("start auto threshold", StateConfiguring); err != nil {
		return err
	}
	if err := ValidateAutoThreshold(params); err != nil {
		return err
	}
	if err := s.client.StartAutoThreshold(ctx, params); err != nil {
		return err
	}
	s.update(func(c *DeviceConfig) { c.AutoThreshold = params })
	return nil
}

// Apply writes every device parameter of cfg. It keeps going after a
// failed command and returns all errors.
func (s *Session) Apply(ctx context.Context, cfg DeviceConfig) error {
	if err := s.require("apply", StateConfiguring); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	var errs fx.AggregatedError
	errs.Add(
		s.WriteGeneralParams(ctx, cfg.GeneralParams),
		s.SetResponseSpeed(ctx, cfg.ResponseSpeed),
		s.WriteTriggerThresholds(ctx, cfg.TriggerThresholds[:]),
		s.WriteHoldThresholds(ctx, cfg.HoldThresholds[:]),
		s.SetOutputMode(ctx, cfg.OutputMode),
	)
	if err := ctx.Err(); err != nil {
		return err
	}
	s.update(func(c *DeviceConfig) { c.Throttle = cfg.Throttle })
	return errs.Aggregate()
}
