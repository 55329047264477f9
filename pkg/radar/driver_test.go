package radar

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/ld2410s/pkg/emulator"
	fx "github.com/robotalks/ld2410s/pkg/framework"
	"github.com/robotalks/ld2410s/pkg/protocol"
)

type driverTestEnv struct {
	device     *emulator.Device
	clock      *fx.ManualClock
	driver     *Driver
	distances  []float64
	presence   []bool
	energies   map[int]float64
	configMode []bool
	available  []bool
	progress   []float64
}

func newDriverTestEnv(opts Options) *driverTestEnv {
	env := &driverTestEnv{
		device:   emulator.New(),
		clock:    fx.NewManualClock(time.Unix(1700000000, 0)),
		energies: make(map[int]float64),
	}
	opts.Clock = env.clock
	env.driver = New(env.device, DefaultDeviceConfig(), opts)
	o := &env.driver.Outputs
	o.Distance = SensorFunc(func(v float64) { env.distances = append(env.distances, v) })
	o.Presence = BinarySensorFunc(func(v bool) { env.presence = append(env.presence, v) })
	for gate := range o.GateEnergy {
		gate := gate
		o.GateEnergy[gate] = SensorFunc(func(v float64) { env.energies[gate] = v })
	}
	o.ConfigMode = BinarySensorFunc(func(v bool) { env.configMode = append(env.configMode, v) })
	o.Available = BinarySensorFunc(func(v bool) { env.available = append(env.available, v) })
	o.AutoThresholdProgress = SensorFunc(func(v float64) { env.progress = append(env.progress, v) })
	return env
}

func TestDriverSetup(t *testing.T) {
	env := newDriverTestEnv(Options{ApplyOnSetup: true})
	require.NoError(t, env.driver.Setup(context.Background()))
	version, ok := env.driver.FirmwareVersion()
	require.True(t, ok)
	require.Equal(t, env.device.Version, version)
	require.False(t, env.device.ConfigMode())
	require.Equal(t, []bool{false, true, false}, env.configMode)
	_, ok = env.device.LastParams(protocol.CmdWriteHoldThresholds)
	require.True(t, ok)
	require.Equal(t, StateNormal, env.driver.Session().State())
}

func TestDriverPollForwardsReadings(t *testing.T) {
	env := newDriverTestEnv(Options{Unit: Meters})
	ctx := context.Background()
	env.device.Report(emulator.TargetAt(2, 250))
	require.NoError(t, env.driver.Poll(ctx))
	require.Equal(t, []float64{2.5}, env.distances)
	require.Equal(t, []bool{true}, env.presence)
	require.Equal(t, 100.0, env.energies[3])
	require.Equal(t, []bool{true}, env.available)

	env.clock.Advance(10 * time.Millisecond)
	env.device.Report(emulator.Target{})
	require.NoError(t, env.driver.Poll(ctx))
	require.Len(t, env.distances, 1)
	latest, ok := env.driver.Latest()
	require.True(t, ok)
	require.False(t, latest.Presence)

	env.clock.Advance(DefaultThrottle)
	env.device.Report(emulator.Target{})
	require.NoError(t, env.driver.Poll(ctx))
	require.Equal(t, []bool{true, false}, env.presence)
}

func TestDriverIgnoresReportsInConfigMode(t *testing.T) {
	env := newDriverTestEnv(Options{})
	ctx := context.Background()
	require.NoError(t, env.driver.EnableConfig(ctx))
	require.Equal(t, []bool{true}, env.configMode)

	env.device.Inject(reportFrame(protocol.OutputStandard, emulator.TargetAt(2, 100)).Bytes())
	require.NoError(t, env.driver.Poll(ctx))
	require.Empty(t, env.distances)
	_, ok := env.driver.Latest()
	require.False(t, ok)

	require.NoError(t, env.driver.SetResponseSpeed(ctx, protocol.SpeedFast))
	require.Equal(t, StateConfiguring, env.driver.Session().State())

	require.NoError(t, env.driver.DisableConfig(ctx))
	require.Equal(t, []bool{true, false}, env.configMode)
	require.Equal(t, protocol.SpeedFast, env.driver.Config().ResponseSpeed)
}

func TestDriverAutoThresholdProgress(t *testing.T) {
	env := newDriverTestEnv(Options{})
	ctx := context.Background()
	require.NoError(t, env.driver.StartAutoThreshold(ctx, protocol.AutoThreshold{TriggerFactor: 2, HoldFactor: 1, ScanTime: 10}))
	require.True(t, env.device.AdvanceAutoThreshold(50))
	require.NoError(t, env.driver.Poll(ctx))
	require.Equal(t, []float64{50}, env.progress)
}

func TestDriverTransportLoss(t *testing.T) {
	env := newDriverTestEnv(Options{})
	ctx := context.Background()
	require.NoError(t, env.driver.EnableConfig(ctx))
	env.device.SetWriteError(io.ErrClosedPipe)
	err := env.driver.SetOutputMode(ctx, protocol.OutputSimple)
	require.Error(t, err)
	require.Equal(t, StateNormal, env.driver.Session().State())
	require.Equal(t, []bool{false}, env.available)
	require.False(t, env.driver.Available())
	require.Equal(t, protocol.OutputStandard, env.driver.Config().OutputMode)

	env.device.SetWriteError(nil)
	env.device.Inject(reportFrame(protocol.OutputStandard, emulator.TargetAt(2, 80)).Bytes())
	require.NoError(t, env.driver.Poll(ctx))
	require.Equal(t, []bool{false, true}, env.available)
}

func TestDriverCallMsg(t *testing.T) {
	env := newDriverTestEnv(Options{})
	loop := fx.NewLoop()
	loop.Add(env.driver)

	done := make(chan error, 1)
	loop.PostMessage(&CallMsg{
		Fn: func(ctx context.Context, d *Driver) error {
			return d.SetOutputMode(ctx, protocol.OutputSimple)
		},
		Result: done,
	})
	loop.RunIteration(context.Background())
	require.NoError(t, <-done)
	require.Equal(t, protocol.OutputSimple, env.device.OutputMode())

	loop.PostMessage(&CallMsg{
		Fn: func(ctx context.Context, d *Driver) error {
			return d.DisableConfig(ctx)
		},
		Result: done,
	})
	loop.RunIteration(context.Background())
	require.True(t, errors.Is(<-done, protocol.ErrInvalidState))
}

func TestDriverGeneralParamSetters(t *testing.T) {
	env := newDriverTestEnv(Options{})
	ctx := context.Background()

	require.NoError(t, env.driver.SetUnmannedDelay(ctx, 45))
	require.Equal(t, uint32(45), env.device.Param(protocol.ParamUnmannedDelay))
	require.Equal(t, uint32(45), env.driver.Config().UnmannedDelay)
	require.False(t, env.device.ConfigMode())

	require.NoError(t, env.driver.SetStatusReportFreq(ctx, 2.5))
	require.Equal(t, uint32(25), env.device.Param(protocol.ParamStatusReportFreq))
	require.NoError(t, env.driver.SetDistanceReportFreq(ctx, 0.5))
	require.Equal(t, uint32(5), env.device.Param(protocol.ParamDistanceReportFreq))
	require.Equal(t, uint32(45), env.device.Param(protocol.ParamUnmannedDelay))

	p := env.driver.Config().GeneralParams
	p.FarthestGate, p.NearestGate = 9, 1
	require.NoError(t, env.driver.WriteGeneralParams(ctx, p))
	require.Equal(t, uint32(9), env.device.Param(protocol.ParamFarthestGate))
	require.Equal(t, p, env.driver.Config().GeneralParams)

	requests := len(env.device.Requests())
	require.True(t, errors.Is(env.driver.SetUnmannedDelay(ctx, 121), ErrOutOfRange))
	require.True(t, errors.Is(env.driver.SetStatusReportFreq(ctx, 9), ErrOutOfRange))
	require.Len(t, env.device.Requests(), requests)
	require.Equal(t, uint32(45), env.driver.Config().UnmannedDelay)
}

func TestDriverSetGateThreshold(t *testing.T) {
	env := newDriverTestEnv(Options{})
	ctx := context.Background()

	require.NoError(t, env.driver.SetGateThreshold(ctx, protocol.TriggerThresholds, 3, 55))
	trigger := env.device.Thresholds(protocol.TriggerThresholds)
	require.Equal(t, uint8(55), trigger[3])
	require.Equal(t, uint8(40), trigger[2])
	require.Equal(t, trigger, env.driver.Config().TriggerThresholds)

	require.NoError(t, env.driver.SetGateThreshold(ctx, protocol.HoldThresholds, 15, 20))
	hold := env.device.Thresholds(protocol.HoldThresholds)
	require.Equal(t, uint8(20), hold[15])
	require.Equal(t, uint8(30), hold[0])
	require.Equal(t, uint8(55), env.device.Thresholds(protocol.TriggerThresholds)[3])

	requests := len(env.device.Requests())
	require.True(t, errors.Is(env.driver.SetGateThreshold(ctx, protocol.TriggerThresholds, 16, 10), ErrInvalidGate))
	require.True(t, errors.Is(env.driver.SetGateThreshold(ctx, protocol.HoldThresholds, -1, 10), ErrInvalidGate))
	require.True(t, errors.Is(env.driver.SetGateThreshold(ctx, protocol.HoldThresholds, 0, 101), ErrOutOfRange))
	require.Len(t, env.device.Requests(), requests)
	require.False(t, env.device.ConfigMode())
}

func TestDriverSetGateThresholdInOpenSession(t *testing.T) {
	env := newDriverTestEnv(Options{})
	ctx := context.Background()
	require.NoError(t, env.driver.EnableConfig(ctx))
	require.NoError(t, env.driver.SetGateThreshold(ctx, protocol.HoldThresholds, 0, 70))
	require.True(t, env.device.ConfigMode())
	require.Equal(t, uint8(70), env.device.Thresholds(protocol.HoldThresholds)[0])
	require.NoError(t, env.driver.DisableConfig(ctx))
}
