package radar

import (
	"flag"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/robotalks/ld2410s/pkg/protocol"
)

// Config defines the host side configuration of the driver.
type Config struct {
	Device       DeviceConfig
	Unit         DistanceUnit
	ApplyOnSetup bool
	PollInterval time.Duration
}

var defaultConfig = Config{
	Device:       DefaultDeviceConfig(),
	Unit:         Centimeters,
	PollInterval: 20 * time.Millisecond,
}

// SetupFlags sets command line flags.
func SetupFlags() {
	SetupFlagsOn(flag.CommandLine, &defaultConfig)
}

// SetupFlagsOn registers the flags of c on fs.
func SetupFlagsOn(fs *flag.FlagSet, c *Config) {
	d := &c.Device
	fs.DurationVar(&d.Throttle, "throttle", d.Throttle, "Minimum interval between forwarded readings.")
	fs.Var((*outputModeFlag)(&d.OutputMode), "output-mode", "Report format: standard or simple.")
	fs.Var((*speedFlag)(&d.ResponseSpeed), "response-speed", "Response speed: normal or fast.")
	fs.Var((*uint32Flag)(&d.UnmannedDelay), "unmanned-delay", "Seconds before absence is reported (10-120).")
	fs.Float64Var(&d.StatusReportFreq, "status-freq", d.StatusReportFreq, "Status report frequency in Hz (0.5-8).")
	fs.Float64Var(&d.DistanceReportFreq, "distance-freq", d.DistanceReportFreq, "Distance report frequency in Hz (0.5-8).")
	fs.Var((*gateFlag)(&d.NearestGate), "nearest-gate", "Nearest detection gate (0-15).")
	fs.Var((*gateFlag)(&d.FarthestGate), "farthest-gate", "Farthest detection gate (0-15).")
	fs.Var((*thresholdsFlag)(&d.TriggerThresholds), "trigger-thresholds", "Comma separated trigger thresholds per gate (0-100).")
	fs.Var((*thresholdsFlag)(&d.HoldThresholds), "hold-thresholds", "Comma separated hold thresholds per gate (0-100).")
	fs.Var((*autoThresholdFlag)(&d.AutoThreshold), "auto-threshold", "Auto threshold TRIGGER,HOLD,SCAN factors (0-100).")
	fs.Var((*unitFlag)(&c.Unit), "unit", "Distance unit: cm or m.")
	fs.BoolVar(&c.ApplyOnSetup, "apply-config", c.ApplyOnSetup, "Write the configuration to the device on startup.")
	fs.DurationVar(&c.PollInterval, "poll-interval", c.PollInterval, "Interval of polling the device.")
}

// Default gets default config.
func Default() *Config {
	return &defaultConfig
}

// NewConfig creates a config with defaults.
func NewConfig() *Config {
	conf := defaultConfig
	return &conf
}

// NewDriver validates the config and creates a Driver over rw.
func (c *Config) NewDriver(rw io.ReadWriter) (*Driver, error) {
	if err := c.Device.Validate(); err != nil {
		return nil, err
	}
	return New(rw, c.Device, Options{Unit: c.Unit, ApplyOnSetup: c.ApplyOnSetup}), nil
}

type outputModeFlag protocol.OutputMode

func (f *outputModeFlag) String() string { return protocol.OutputMode(*f).String() }
func (f *outputModeFlag) Set(s string) error {
	m, err := protocol.ParseOutputMode(s)
	*f = outputModeFlag(m)
	return err
}

type speedFlag protocol.ResponseSpeed

func (f *speedFlag) String() string { return protocol.ResponseSpeed(*f).String() }
func (f *speedFlag) Set(s string) error {
	v, err := protocol.ParseResponseSpeed(s)
	*f = speedFlag(v)
	return err
}

type unitFlag DistanceUnit

func (f *unitFlag) String() string { return DistanceUnit(*f).String() }
func (f *unitFlag) Set(s string) error {
	u, err := ParseDistanceUnit(s)
	*f = unitFlag(u)
	return err
}

type uint32Flag uint32

func (f *uint32Flag) String() string { return strconv.FormatUint(uint64(*f), 10) }
func (f *uint32Flag) Set(s string) error {
	v, err := strconv.ParseUint(s, 10, 32)
	*f = uint32Flag(v)
	return err
}

type gateFlag uint8

func (f *gateFlag) String() string { return strconv.Itoa(int(*f)) }
func (f *gateFlag) Set(s string) error {
	v, err := strconv.Atoi(s)
	if err != nil {
		return err
	}
	if err := ValidateGate(v); err != nil {
		return err
	}
	*f = gateFlag(v)
	return nil
}

type thresholdsFlag [protocol.GateCount]uint8

func (f *thresholdsFlag) String() string { return FormatThresholds(f[:]) }
func (f *thresholdsFlag) Set(s string) error {
	values, err := ParseThresholds(s)
	if err != nil {
		return err
	}
	padded, err := protocol.PadThresholds(values)
	*f = padded
	return err
}

type autoThresholdFlag protocol.AutoThreshold

func (f *autoThresholdFlag) String() string {
	return fmt.Sprintf("%d,%d,%d", f.TriggerFactor, f.HoldFactor, f.ScanTime)
}
func (f *autoThresholdFlag) Set(s string) error {
	a, err := ParseAutoThreshold(s)
	*f = autoThresholdFlag(a)
	return err
}

// ParseThresholds parses a comma separated threshold list.
func ParseThresholds(s string) ([]uint8, error) {
	var values []uint8
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item == "" {
			continue
		}
		v, err := strconv.ParseUint(item, 10, 8)
		if err != nil {
			return nil, fmt.Errorf("invalid threshold %q: %w", item, err)
		}
		values = append(values, uint8(v))
	}
	return values, ValidateThresholds(values)
}

// FormatThresholds formats thresholds as a comma separated list.
func FormatThresholds(values []uint8) string {
	items := make([]string, len(values))
	for n, v := range values {
		items[n] = strconv.Itoa(int(v))
	}
	return strings.Join(items, ",")
}

// ParseAutoThreshold parses TRIGGER,HOLD,SCAN.
func ParseAutoThreshold(s string) (protocol.AutoThreshold, error) {
	var a protocol.AutoThreshold
	items := strings.Split(s, ",")
	if len(items) != 3 {
		return a, fmt.Errorf("expect TRIGGER,HOLD,SCAN, got %q", s)
	}
	var values [3]uint16
	for n, item := range items {
		v, err := strconv.ParseUint(strings.TrimSpace(item), 10, 16)
		if err != nil {
			return a, fmt.Errorf("invalid factor %q: %w", item, err)
		}
		values[n] = uint16(v)
	}
	a = protocol.AutoThreshold{TriggerFactor: values[0], HoldFactor: values[1], ScanTime: values[2]}
	return a, ValidateAutoThreshold(a)
}
