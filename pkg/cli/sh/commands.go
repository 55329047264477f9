package sh

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/ld2410s/pkg/msgs"
	"github.com/robotalks/ld2410s/pkg/protocol"
	"github.com/robotalks/ld2410s/pkg/radar"
)

// ParseGeneralParams applies KEY=VALUE args on top of p. Keys are
// nearest, farthest, delay, status-freq and distance-freq.
func ParseGeneralParams(p radar.GeneralParams, args []string) (radar.GeneralParams, error) {
	if len(args) == 0 {
		return p, fmt.Errorf("KEY=VALUE required")
	}
	for _, arg := range args {
		kv := strings.SplitN(arg, "=", 2)
		if len(kv) != 2 {
			return p, fmt.Errorf("invalid %q, expect KEY=VALUE", arg)
		}
		key, val := kv[0], kv[1]
		var err error
		switch key {
		case "nearest", "farthest":
			var gate uint64
			if gate, err = strconv.ParseUint(val, 10, 8); err == nil {
				if key == "nearest" {
					p.NearestGate = uint8(gate)
				} else {
					p.FarthestGate = uint8(gate)
				}
			}
		case "delay":
			var delay uint64
			if delay, err = strconv.ParseUint(val, 10, 32); err == nil {
				p.UnmannedDelay = uint32(delay)
			}
		case "status-freq":
			p.StatusReportFreq, err = strconv.ParseFloat(val, 64)
		case "distance-freq":
			p.DistanceReportFreq, err = strconv.ParseFloat(val, 64)
		default:
			return p, fmt.Errorf("unknown parameter %q", key)
		}
		if err != nil {
			return p, fmt.Errorf("invalid %s: %w", key, err)
		}
	}
	return p, p.Validate()
}

// FormatGeneralParams formats p for display.
func FormatGeneralParams(p radar.GeneralParams) string {
	return fmt.Sprintf("nearest=%d farthest=%d delay=%d status-freq=%g distance-freq=%g",
		p.NearestGate, p.FarthestGate, p.UnmannedDelay, p.StatusReportFreq, p.DistanceReportFreq)
}

func parseThresholdKind(s string) (protocol.ThresholdKind, error) {
	switch s {
	case "trigger":
		return protocol.TriggerThresholds, nil
	case "hold":
		return protocol.HoldThresholds, nil
	}
	return 0, fmt.Errorf("invalid threshold kind %q, expect trigger or hold", s)
}

type thresholdsOutput struct {
	Trigger []int `json:"trigger"`
	Hold    []int `json:"hold"`
}

// ints avoids []uint8 being encoded as base64 in JSON.
func ints(values []uint8) []int {
	out := make([]int, len(values))
	for n, v := range values {
		out[n] = int(v)
	}
	return out
}

var (
	// StatusCmd shows the driver status.
	StatusCmd = ishell.Cmd{
		Name:    "status",
		Aliases: []string{"st"},
		Help:    "",
		Func: MustBeOpen(func(c *ishell.Context) {
			var status *msgs.DeviceStatus
			var state radar.ConfigModeState
			if !Do(c, func(ctx context.Context, d *radar.Driver) error {
				status, state = msgs.NewDeviceStatus(d), d.Session().State()
				return nil
			}) {
				return
			}
			Print(c, status, fmt.Sprintf("state=%s available=%v firmware=%s frames=%d corrupted=%d",
				state, status.Available, status.Firmware, status.Frames, status.CorruptedFrames))
		}),
	}

	// ReadingCmd shows the latest reading.
	ReadingCmd = ishell.Cmd{
		Name:    "reading",
		Aliases: []string{"r"},
		Help:    "",
		Func: MustBeOpen(func(c *ishell.Context) {
			var reading radar.SensorReading
			var ok bool
			if !Do(c, func(ctx context.Context, d *radar.Driver) error {
				reading, ok = d.Latest()
				return nil
			}) {
				return
			}
			if !ok {
				c.Err(fmt.Errorf("no reading yet"))
				return
			}
			text := fmt.Sprintf("presence=%v state=%s distance=%g", reading.Presence, reading.State, reading.Distance)
			if reading.HasEnergies {
				text += " energies=" + radar.FormatThresholds(reading.GateEnergies[:])
			}
			Print(c, msgs.NewReading(&reading), text)
		}),
	}

	// VersionCmd reads firmware version and serial number.
	VersionCmd = ishell.Cmd{
		Name:    "version",
		Aliases: []string{"ver"},
		Help:    "",
		Func: MustBeOpen(func(c *ishell.Context) {
			var ver protocol.FirmwareVersion
			var serial string
			if !Do(c, func(ctx context.Context, d *radar.Driver) error {
				return d.InSession(ctx, func(ctx context.Context, s *radar.Session) (err error) {
					if ver, err = s.ReadFirmwareVersion(ctx); err != nil {
						return err
					}
					serial, err = s.ReadSerialNumber(ctx)
					return err
				})
			}) {
				return
			}
			Print(c, map[string]string{"firmware": ver.String(), "serial": serial},
				fmt.Sprintf("firmware %s serial %s", ver, serial))
		}),
	}

	// ConfigEnableCmd enters configuration mode.
	ConfigEnableCmd = ishell.Cmd{
		Name: "config.enable",
		Help: "",
		Func: MustBeOpen(func(c *ishell.Context) {
			if Do(c, func(ctx context.Context, d *radar.Driver) error { return d.EnableConfig(ctx) }) {
				c.Println("OK")
			}
		}),
	}

	// ConfigDisableCmd leaves configuration mode.
	ConfigDisableCmd = ishell.Cmd{
		Name: "config.disable",
		Help: "",
		Func: MustBeOpen(func(c *ishell.Context) {
			if Do(c, func(ctx context.Context, d *radar.Driver) error { return d.DisableConfig(ctx) }) {
				c.Println("OK")
			}
		}),
	}

	// ParamsCmd reads general parameters.
	ParamsCmd = ishell.Cmd{
		Name: "params",
		Help: "",
		Func: MustBeOpen(func(c *ishell.Context) {
			var p radar.GeneralParams
			if !Do(c, func(ctx context.Context, d *radar.Driver) error {
				return d.InSession(ctx, func(ctx context.Context, s *radar.Session) (err error) {
					p, err = s.ReadGeneralParams(ctx)
					return err
				})
			}) {
				return
			}
			Print(c, p, FormatGeneralParams(p))
		}),
	}

	// ParamsSetCmd writes general parameters.
	ParamsSetCmd = ishell.Cmd{
		Name: "params.set",
		Help: "KEY=VALUE... (nearest, farthest, delay, status-freq, distance-freq)",
		Func: MustBeOpen(func(c *ishell.Context) {
			var p radar.GeneralParams
			if !Do(c, func(ctx context.Context, d *radar.Driver) error {
				p = d.Config().GeneralParams
				return nil
			}) {
				return
			}
			p, err := ParseGeneralParams(p, c.Args)
			if err != nil {
				c.Err(err)
				return
			}
			if Do(c, func(ctx context.Context, d *radar.Driver) error {
				return d.InSession(ctx, func(ctx context.Context, s *radar.Session) error {
					return s.WriteGeneralParams(ctx, p)
				})
			}) {
				c.Println("OK")
			}
		}),
	}

	// ThresholdsCmd reads trigger and hold thresholds.
	ThresholdsCmd = ishell.Cmd{
		Name: "thresholds",
		Help: "",
		Func: MustBeOpen(func(c *ishell.Context) {
			var trigger, hold [protocol.GateCount]uint8
			if !Do(c, func(ctx context.Context, d *radar.Driver) error {
				return d.InSession(ctx, func(ctx context.Context, s *radar.Session) (err error) {
					if trigger, err = s.ReadTriggerThresholds(ctx); err != nil {
						return err
					}
					hold, err = s.ReadHoldThresholds(ctx)
					return err
				})
			}) {
				return
			}
			Print(c, &thresholdsOutput{Trigger: ints(trigger[:]), Hold: ints(hold[:])},
				fmt.Sprintf("trigger %s\nhold    %s", radar.FormatThresholds(trigger[:]), radar.FormatThresholds(hold[:])))
		}),
	}

	// ThresholdsSetCmd writes trigger or hold thresholds.
	ThresholdsSetCmd = ishell.Cmd{
		Name: "thresholds.set",
		Help: "trigger|hold V0,V1,...",
		Func: MustBeOpen(func(c *ishell.Context) {
			if len(c.Args) != 2 {
				c.Err(fmt.Errorf("KIND and VALUES required"))
				return
			}
			kind, err := parseThresholdKind(c.Args[0])
			if err != nil {
				c.Err(err)
				return
			}
			values, err := radar.ParseThresholds(c.Args[1])
			if err != nil {
				c.Err(err)
				return
			}
			if Do(c, func(ctx context.Context, d *radar.Driver) error {
				return d.InSession(ctx, func(ctx context.Context, s *radar.Session) error {
					if kind == protocol.HoldThresholds {
						return s.WriteHoldThresholds(ctx, values)
					}
					return s.WriteTriggerThresholds(ctx, values)
				})
			}) {
				c.Println("OK")
			}
		}),
	}

	// ModeCmd switches the output mode.
	ModeCmd = ishell.Cmd{
		Name: "mode",
		Help: "standard|simple",
		Func: MustBeOpen(func(c *ishell.Context) {
			if len(c.Args) != 1 {
				c.Err(fmt.Errorf("MODE required"))
				return
			}
			mode, err := protocol.ParseOutputMode(c.Args[0])
			if err != nil {
				c.Err(err)
				return
			}
			if Do(c, func(ctx context.Context, d *radar.Driver) error { return d.SetOutputMode(ctx, mode) }) {
				c.Println("OK")
			}
		}),
	}

	// SpeedCmd sets the response speed.
	SpeedCmd = ishell.Cmd{
		Name: "speed",
		Help: "normal|fast",
		Func: MustBeOpen(func(c *ishell.Context) {
			if len(c.Args) != 1 {
				c.Err(fmt.Errorf("SPEED required"))
				return
			}
			speed, err := protocol.ParseResponseSpeed(c.Args[0])
			if err != nil {
				c.Err(err)
				return
			}
			if Do(c, func(ctx context.Context, d *radar.Driver) error { return d.SetResponseSpeed(ctx, speed) }) {
				c.Println("OK")
			}
		}),
	}

	// AutoThresholdCmd starts auto threshold calibration.
	AutoThresholdCmd = ishell.Cmd{
		Name:    "autothreshold",
		Aliases: []string{"auto"},
		Help:    "[TRIGGER,HOLD,SCAN]",
		Func: MustBeOpen(func(c *ishell.Context) {
			var params *protocol.AutoThreshold
			if len(c.Args) > 0 {
				a, err := radar.ParseAutoThreshold(c.Args[0])
				if err != nil {
					c.Err(err)
					return
				}
				params = &a
			}
			if Do(c, func(ctx context.Context, d *radar.Driver) error {
				if params == nil {
					return d.StartAutoThreshold(ctx, d.Config().AutoThreshold)
				}
				return d.StartAutoThreshold(ctx, *params)
			}) {
				c.Println("OK")
			}
		}),
	}
)

func init() {
	AddCmds(
		&StatusCmd,
		&ReadingCmd,
		&VersionCmd,
		&ConfigEnableCmd,
		&ConfigDisableCmd,
		&ParamsCmd,
		&ParamsSetCmd,
		&ThresholdsCmd,
		&ThresholdsSetCmd,
		&ModeCmd,
		&SpeedCmd,
		&AutoThresholdCmd,
	)
}
