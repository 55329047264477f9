package emulator

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/ld2410s/pkg/comm"
	"github.com/robotalks/ld2410s/pkg/protocol"
)

func readFrames(t *testing.T, d *Device) []*comm.Frame {
	var p comm.Parser
	buf := make([]byte, 512)
	for {
		n, err := d.Read(buf)
		require.NoError(t, err)
		if n == 0 {
			break
		}
		p.Feed(buf[:n])
	}
	var frames []*comm.Frame
	for {
		f, err := p.Next()
		require.NoError(t, err)
		if f == nil {
			return frames
		}
		frames = append(frames, f)
	}
}

func send(t *testing.T, d *Device, cmd uint16, params []byte) *protocol.Ack {
	req := &protocol.Request{Command: cmd, Params: params}
	_, err := req.Frame().WriteTo(d)
	require.NoError(t, err)
	frames := readFrames(t, d)
	require.Len(t, frames, 1)
	ack, err := protocol.ParseAck(frames[0])
	require.NoError(t, err)
	require.Equal(t, cmd, ack.Command)
	return ack
}

func TestDeviceConfigMode(t *testing.T) {
	d := New()
	ack := send(t, d, protocol.CmdReadFirmwareVersion, nil)
	require.Equal(t, protocol.StatusFailure, ack.Status)

	ack = send(t, d, protocol.CmdEnableConfig, []byte{0x01, 0x00})
	require.Equal(t, protocol.StatusSuccess, ack.Status)
	require.True(t, d.ConfigMode())

	d.Report(TargetAt(3, 100))
	require.Empty(t, readFrames(t, d))

	ack = send(t, d, protocol.CmdReadFirmwareVersion, nil)
	require.Equal(t, d.Version.Bytes(), ack.Data)

	send(t, d, protocol.CmdDisableConfig, nil)
	require.False(t, d.ConfigMode())
}

func TestDeviceReports(t *testing.T) {
	d := New()
	d.Report(TargetAt(2, 150))
	frames := readFrames(t, d)
	require.Len(t, frames, 1)
	require.Equal(t, comm.DialectReport, frames[0].Dialect)
	require.Equal(t, protocol.ReportStandard, frames[0].Type)
	require.Len(t, frames[0].Payload, 6+protocol.GateCount)
	require.Equal(t, []byte{0x01, 0x02, 150, 0x00}, frames[0].Payload[:4])
	require.Equal(t, uint8(100), frames[0].Payload[6+2])
}

func TestDeviceAutoThreshold(t *testing.T) {
	d := New()
	require.False(t, d.AdvanceAutoThreshold(50))
	send(t, d, protocol.CmdEnableConfig, []byte{0x01, 0x00})
	auto := protocol.AutoThreshold{TriggerFactor: 2, HoldFactor: 1, ScanTime: 60}
	send(t, d, protocol.CmdStartAutoThreshold, auto.Encode())
	send(t, d, protocol.CmdDisableConfig, nil)
	require.Equal(t, auto, d.AutoThreshold())

	require.True(t, d.AdvanceAutoThreshold(60))
	require.True(t, d.AdvanceAutoThreshold(60))
	require.False(t, d.AdvanceAutoThreshold(60))
	frames := readFrames(t, d)
	require.Len(t, frames, 2)
	require.Equal(t, []byte{protocol.ReportProgress, 100, 0}, frames[1].Payload)
}

func TestWalk(t *testing.T) {
	var w Walk
	first := w.Next()
	require.Equal(t, uint8(3), first.State)
	require.Equal(t, uint16(walkNear), first.Distance)
	seen := make(map[uint8]bool)
	for i := 0; i < 200; i++ {
		seen[w.Next().State] = true
	}
	require.Equal(t, map[uint8]bool{0: true, 1: true, 2: true, 3: true}, seen)
}
