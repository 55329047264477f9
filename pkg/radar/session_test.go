package radar

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/ld2410s/pkg/comm"
	"github.com/robotalks/ld2410s/pkg/emulator"
	fx "github.com/robotalks/ld2410s/pkg/framework"
	"github.com/robotalks/ld2410s/pkg/protocol"
)

type sessionTestEnv struct {
	device  *emulator.Device
	config  DeviceConfig
	session *Session
	states  []ConfigModeState
	changes int
}

func newSessionTestEnv() *sessionTestEnv {
	env := &sessionTestEnv{device: emulator.New(), config: DefaultDeviceConfig()}
	client := protocol.NewClient(comm.NewStream(env.device))
	client.Clock = fx.NewManualClock(time.Unix(1700000000, 0))
	env.session = NewSession(client, &env.config)
	env.session.OnStateChange = func(s ConfigModeState) { env.states = append(env.states, s) }
	env.session.OnConfigChange = func(DeviceConfig) { env.changes++ }
	return env
}

func TestSessionEnterExit(t *testing.T) {
	env := newSessionTestEnv()
	ctx := context.Background()
	require.NoError(t, env.session.Enter(ctx))
	require.Equal(t, StateConfiguring, env.session.State())
	require.True(t, env.device.ConfigMode())
	require.Equal(t, uint16(1), env.session.Info().ProtocolVersion)

	err := env.session.Enter(ctx)
	require.True(t, errors.Is(err, protocol.ErrInvalidState))
	require.Len(t, env.device.Requests(), 1)

	require.NoError(t, env.session.Exit(ctx))
	require.Equal(t, StateNormal, env.session.State())
	require.False(t, env.device.ConfigMode())
	require.Equal(t, []ConfigModeState{StateEntering, StateConfiguring, StateExiting, StateNormal}, env.states)

	err = env.session.Exit(ctx)
	require.True(t, errors.Is(err, protocol.ErrInvalidState))
}

func TestSessionEnterFailure(t *testing.T) {
	env := newSessionTestEnv()
	env.device.Mute(protocol.CmdEnableConfig, true)
	err := env.session.Enter(context.Background())
	require.True(t, errors.Is(err, protocol.ErrTimeout))
	require.Equal(t, StateNormal, env.session.State())
}

func TestSessionExitIsBestEffort(t *testing.T) {
	env := newSessionTestEnv()
	ctx := context.Background()
	require.NoError(t, env.session.Enter(ctx))
	env.device.Fail(protocol.CmdDisableConfig, true)
	err := env.session.Exit(ctx)
	var cmdErr *protocol.CommandError
	require.True(t, errors.As(err, &cmdErr))
	require.Equal(t, StateNormal, env.session.State())
}

func TestSessionRequiresConfiguring(t *testing.T) {
	env := newSessionTestEnv()
	ctx := context.Background()
	ops := map[string]func() error{
		"general params": func() error { return env.session.WriteGeneralParams(ctx, env.config.GeneralParams) },
		"thresholds":     func() error { return env.session.WriteTriggerThresholds(ctx, []uint8{10}) },
		"output mode":    func() error { return env.session.SetOutputMode(ctx, protocol.OutputSimple) },
		"speed":          func() error { return env.session.SetResponseSpeed(ctx, protocol.SpeedFast) },
		"auto threshold": func() error { return env.session.StartAutoThreshold(ctx, env.config.AutoThreshold) },
		"read hold": func() error {
			_, err := env.session.ReadHoldThresholds(ctx)
			return err
		},
	}
	for name, op := range ops {
		t.Run(name, func(t *testing.T) {
			require.True(t, errors.Is(op(), protocol.ErrInvalidState))
		})
	}
	require.Empty(t, env.device.Requests())
}

func TestSessionThresholds(t *testing.T) {
	env := newSessionTestEnv()
	ctx := context.Background()
	require.NoError(t, env.session.Enter(ctx))

	require.NoError(t, env.session.WriteTriggerThresholds(ctx, []uint8{50, 60}))
	params, ok := env.device.LastParams(protocol.CmdWriteTriggerThresholds)
	require.True(t, ok)
	require.Len(t, params, 6*protocol.GateCount)
	expect := [protocol.GateCount]uint8{50, 60}
	require.Equal(t, expect, env.config.TriggerThresholds)

	values, err := env.session.ReadTriggerThresholds(ctx)
	require.NoError(t, err)
	require.Equal(t, expect, values)

	err = env.session.WriteHoldThresholds(ctx, []uint8{10, 101})
	require.True(t, errors.Is(err, ErrOutOfRange))
	_, ok = env.device.LastParams(protocol.CmdWriteHoldThresholds)
	require.False(t, ok)
}

func TestSessionTimeoutKeepsConfig(t *testing.T) {
	env := newSessionTestEnv()
	ctx := context.Background()
	require.NoError(t, env.session.Enter(ctx))
	before := env.config
	changes := env.changes

	env.device.Mute(protocol.CmdWriteGeneralParams, true)
	p := before.GeneralParams
	p.UnmannedDelay = 60
	err := env.session.WriteGeneralParams(ctx, p)
	require.True(t, errors.Is(err, protocol.ErrTimeout))
	require.Equal(t, before, env.config)
	require.Equal(t, changes, env.changes)
	require.Equal(t, StateConfiguring, env.session.State())
}

func TestSessionGeneralParams(t *testing.T) {
	env := newSessionTestEnv()
	ctx := context.Background()
	require.NoError(t, env.session.Enter(ctx))

	p := GeneralParams{FarthestGate: 10, NearestGate: 2, UnmannedDelay: 30, StatusReportFreq: 2.3, DistanceReportFreq: 0.5}
	require.NoError(t, env.session.WriteGeneralParams(ctx, p))
	require.Equal(t, uint32(23), env.device.Param(protocol.ParamStatusReportFreq))
	require.Equal(t, uint32(5), env.device.Param(protocol.ParamDistanceReportFreq))

	got, err := env.session.ReadGeneralParams(ctx)
	require.NoError(t, err)
	require.Equal(t, p, got)

	bad := p
	bad.FarthestGate = 16
	require.True(t, errors.Is(env.session.WriteGeneralParams(ctx, bad), ErrInvalidGate))
	bad = p
	bad.UnmannedDelay = 5
	require.True(t, errors.Is(env.session.WriteGeneralParams(ctx, bad), ErrOutOfRange))
}

func TestSessionReadGeneralParamsGateOverflow(t *testing.T) {
	env := newSessionTestEnv()
	ctx := context.Background()
	require.NoError(t, env.session.Enter(ctx))
	require.NoError(t, env.session.client.WriteParams(ctx, protocol.ParamValue{Word: protocol.ParamFarthestGate, Value: 256}))
	changes := env.changes

	_, err := env.session.ReadGeneralParams(ctx)
	var malformed *protocol.MalformedAckError
	require.True(t, errors.As(err, &malformed))
	require.Equal(t, protocol.CmdReadGeneralParams, malformed.Command)
	require.Equal(t, changes, env.changes)
	require.Equal(t, uint8(12), env.config.FarthestGate)
}

func TestGeneralParamsFrom(t *testing.T) {
	p, err := generalParamsFrom([]uint32{15, 0, 10, 80, 5})
	require.NoError(t, err)
	require.Equal(t, GeneralParams{FarthestGate: 15, UnmannedDelay: 10, StatusReportFreq: 8, DistanceReportFreq: 0.5}, p)

	_, err = generalParamsFrom([]uint32{256, 0, 10, 80, 80})
	require.True(t, errors.Is(err, ErrInvalidGate))
	_, err = generalParamsFrom([]uint32{12, 16, 10, 80, 80})
	require.True(t, errors.Is(err, ErrInvalidGate))
}

func TestSessionSetters(t *testing.T) {
	env := newSessionTestEnv()
	ctx := context.Background()
	require.NoError(t, env.session.Enter(ctx))

	require.NoError(t, env.session.SetResponseSpeed(ctx, protocol.SpeedFast))
	require.Equal(t, uint32(10), env.device.Param(protocol.ParamResponseSpeed))
	require.Equal(t, protocol.SpeedFast, env.config.ResponseSpeed)

	require.NoError(t, env.session.SetOutputMode(ctx, protocol.OutputSimple))
	require.Equal(t, protocol.OutputSimple, env.device.OutputMode())
	require.Equal(t, protocol.OutputSimple, env.config.OutputMode)

	auto := protocol.AutoThreshold{TriggerFactor: 3, HoldFactor: 2, ScanTime: 40}
	require.NoError(t, env.session.StartAutoThreshold(ctx, auto))
	require.Equal(t, auto, env.device.AutoThreshold())

	sn, err := env.session.ReadSerialNumber(ctx)
	require.NoError(t, err)
	require.Equal(t, env.device.Serial, sn)
}

func TestSessionApply(t *testing.T) {
	env := newSessionTestEnv()
	ctx := context.Background()
	require.NoError(t, env.session.Enter(ctx))

	cfg := DefaultDeviceConfig()
	cfg.OutputMode = protocol.OutputSimple
	cfg.HoldThresholds[3] = 77
	env.device.Fail(protocol.CmdWriteTriggerThresholds, true)
	err := env.session.Apply(ctx, cfg)
	var cmdErr *protocol.CommandError
	require.True(t, errors.As(err, &cmdErr))
	require.Equal(t, protocol.CmdWriteTriggerThresholds, cmdErr.Command)
	require.Equal(t, uint8(77), env.device.Thresholds(protocol.HoldThresholds)[3])
	require.Equal(t, protocol.OutputSimple, env.config.OutputMode)
}

func TestSessionTransportError(t *testing.T) {
	env := newSessionTestEnv()
	env.device.SetWriteError(io.ErrClosedPipe)
	err := env.session.Enter(context.Background())
	require.True(t, comm.IsTransportError(err))
	require.Equal(t, StateNormal, env.session.State())
}
