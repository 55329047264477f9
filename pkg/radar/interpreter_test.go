package radar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/ld2410s/pkg/comm"
	"github.com/robotalks/ld2410s/pkg/emulator"
	fx "github.com/robotalks/ld2410s/pkg/framework"
	"github.com/robotalks/ld2410s/pkg/protocol"
)

func newTestInterpreter(unit DistanceUnit, mode protocol.OutputMode) (*Interpreter, *fx.ManualClock) {
	cfg := DefaultDeviceConfig()
	cfg.OutputMode = mode
	clock := fx.NewManualClock(time.Unix(1700000000, 0))
	interp := NewInterpreter(unit, cfg)
	interp.Clock = clock
	return interp, clock
}

func reportFrame(mode protocol.OutputMode, t emulator.Target) *comm.Frame {
	return comm.NewFrame(comm.DialectReport, emulator.EncodeReport(mode, t))
}

func TestInterpreterDecode(t *testing.T) {
	testCases := []struct {
		name     string
		unit     DistanceUnit
		mode     protocol.OutputMode
		target   emulator.Target
		presence bool
		distance float64
	}{
		{"standard occupied cm", Centimeters, protocol.OutputStandard, emulator.TargetAt(2, 300), true, 300},
		{"standard none", Centimeters, protocol.OutputStandard, emulator.Target{}, false, 0},
		{"standard unoccupied", Centimeters, protocol.OutputStandard, emulator.TargetAt(1, 300), false, 300},
		{"simple unoccupied", Centimeters, protocol.OutputSimple, emulator.Target{State: 1, Distance: 100}, false, 100},
		{"simple occupied m", Meters, protocol.OutputSimple, emulator.Target{State: 2, Distance: 125}, true, 1.25},
		{"simple occupied hold", Centimeters, protocol.OutputSimple, emulator.Target{State: 3, Distance: 42}, true, 42},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			interp, _ := newTestInterpreter(tc.unit, tc.mode)
			r, err := interp.OnReportFrame(reportFrame(tc.mode, tc.target))
			require.NoError(t, err)
			require.NotNil(t, r)
			require.Equal(t, tc.presence, r.Presence)
			require.Equal(t, TargetState(tc.target.State), r.State)
			require.InDelta(t, tc.distance, r.Distance, 1e-9)
			require.Equal(t, tc.mode == protocol.OutputStandard, r.HasEnergies)
			if r.HasEnergies {
				require.Equal(t, tc.target.Energies, r.GateEnergies)
			}
		})
	}
}

func TestInterpreterThrottle(t *testing.T) {
	interp, clock := newTestInterpreter(Centimeters, protocol.OutputSimple)
	frame := reportFrame(protocol.OutputSimple, emulator.Target{State: 2, Distance: 100})

	r, err := interp.OnReportFrame(frame)
	require.NoError(t, err)
	require.NotNil(t, r)

	clock.Advance(DefaultThrottle / 2)
	r, err = interp.OnReportFrame(reportFrame(protocol.OutputSimple, emulator.Target{State: 2, Distance: 110}))
	require.NoError(t, err)
	require.Nil(t, r)
	latest, ok := interp.Latest()
	require.True(t, ok)
	require.Equal(t, 110.0, latest.Distance)

	clock.Advance(DefaultThrottle / 2)
	r, err = interp.OnReportFrame(frame)
	require.NoError(t, err)
	require.NotNil(t, r)
	require.Equal(t, 100.0, r.Distance)
}

func TestInterpreterLastPresence(t *testing.T) {
	interp, clock := newTestInterpreter(Centimeters, protocol.OutputSimple)
	require.True(t, interp.LastPresence().IsZero())
	_, err := interp.OnReportFrame(reportFrame(protocol.OutputSimple, emulator.Target{State: 3, Distance: 100}))
	require.NoError(t, err)
	seen := clock.Now()
	clock.Advance(time.Second)
	_, err = interp.OnReportFrame(reportFrame(protocol.OutputSimple, emulator.Target{}))
	require.NoError(t, err)
	require.Equal(t, seen, interp.LastPresence())
}

func TestInterpreterMalformed(t *testing.T) {
	interp, _ := newTestInterpreter(Centimeters, protocol.OutputStandard)
	testCases := []struct {
		name    string
		payload []byte
	}{
		{"short standard", []byte{protocol.ReportStandard, 0x01, 0x64, 0x00, 0x00, 0x00, 0x10}},
		{"short simple", []byte{protocol.ReportSimple, 0x01, 0x64}},
		{"short progress", []byte{protocol.ReportProgress, 0x10}},
		{"unknown type", []byte{0x7f, 0x01, 0x64, 0x00}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			r, err := interp.OnReportFrame(comm.NewFrame(comm.DialectReport, tc.payload))
			require.Nil(t, r)
			require.True(t, comm.IsFramingError(err))
		})
	}
	_, ok := interp.Latest()
	require.False(t, ok)
}

func TestInterpreterProgress(t *testing.T) {
	interp, _ := newTestInterpreter(Centimeters, protocol.OutputStandard)
	var progress []uint16
	interp.OnProgress = func(p uint16) { progress = append(progress, p) }
	r, err := interp.OnReportFrame(comm.NewFrame(comm.DialectReport, []byte{protocol.ReportProgress, 40, 0}))
	require.NoError(t, err)
	require.Nil(t, r)
	require.Equal(t, []uint16{40}, progress)
}
