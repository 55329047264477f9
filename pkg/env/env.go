// Package env sets up the process environment shared by the commands:
// which device to open and where to publish.
package env

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/denisbrodbeck/machineid"
	"github.com/golang/glog"

	"github.com/robotalks/ld2410s/pkg/emulator"
	fx "github.com/robotalks/ld2410s/pkg/framework"
	"github.com/robotalks/ld2410s/pkg/serial"
)

// EmulatorDevice is the device name selecting the built-in emulator.
const EmulatorDevice = "emulator"

// Config provides common options of the commands.
type Config struct {
	// Device is the serial device path, or EmulatorDevice.
	Device string
	Baud   int
	// MQTTBrokerURL specifies the MQTT broker to use, empty to disable.
	// e.g. mqtt://host:port/topic-prefix
	MQTTBrokerURL string
	// ID identifies this radar in topics.
	ID string
	// EmulatorInterval is the report interval of the emulator.
	EmulatorInterval time.Duration
}

var defaultConfig = Config{
	Device:           "/dev/ttyUSB0",
	Baud:             serial.DefaultBaud,
	EmulatorInterval: 125 * time.Millisecond,
}

func init() {
	if val := os.Getenv("LD2410S_DEVICE"); val != "" {
		defaultConfig.Device = val
	}
	if val := os.Getenv("LD2410S_BAUD"); val != "" {
		if baud, err := strconv.Atoi(val); err == nil {
			defaultConfig.Baud = baud
		}
	}
	if val := os.Getenv("LD2410S_MQTT_URL"); val != "" {
		defaultConfig.MQTTBrokerURL = val
	}
	defaultConfig.ID = MachineID()
}

// MachineID retrieves the unique ID identifying the machine.
func MachineID() string {
	id, err := machineid.ProtectedID("ld2410s")
	if err != nil {
		glog.Warningf("machine id unavailable: %v", err)
		return "ld2410s"
	}
	return id[:12]
}

// SetupFlags sets command line flags.
func SetupFlags() {
	flag.StringVar(&defaultConfig.Device, "device", defaultConfig.Device, "Serial device, or \"emulator\".")
	flag.IntVar(&defaultConfig.Baud, "baud", defaultConfig.Baud, "Serial baud rate.")
	flag.StringVar(&defaultConfig.MQTTBrokerURL, "mqtt", defaultConfig.MQTTBrokerURL, "MQTT broker URL, empty to disable.")
	flag.StringVar(&defaultConfig.ID, "id", defaultConfig.ID, "Radar ID used in MQTT topics.")
	flag.DurationVar(&defaultConfig.EmulatorInterval, "emulator-interval", defaultConfig.EmulatorInterval, "Report interval of the emulator.")
}

// Default gets default config.
func Default() *Config {
	return &defaultConfig
}

// NewConfig creates a Config with default configurations.
func NewConfig() *Config {
	conf := defaultConfig
	return &conf
}

// Transport is an opened device.
type Transport struct {
	io.ReadWriteCloser
	Name string
	// Emulator is set when the built-in emulator is used.
	Emulator *emulator.Device
	interval time.Duration
}

// Open opens the configured device.
func (c *Config) Open() (*Transport, error) {
	if c.Device == EmulatorDevice {
		dev := emulator.New()
		return &Transport{ReadWriteCloser: dev, Name: EmulatorDevice, Emulator: dev, interval: c.EmulatorInterval}, nil
	}
	port, err := serial.Open(&serial.Config{Device: c.Device, Baud: c.Baud, ReadTimeout: 10 * time.Millisecond})
	if err != nil {
		return nil, err
	}
	if err := port.Flush(); err != nil {
		glog.Warningf("flush %s: %v", c.Device, err)
	}
	return &Transport{ReadWriteCloser: port, Name: port.Name()}, nil
}

// MustOpen opens the device and fails on error.
func (c *Config) MustOpen() *Transport {
	t, err := c.Open()
	if err != nil {
		log.Fatalln(err)
	}
	return t
}

// AddToLoop implements LoopAdder. It runs the emulator, if any, and closes
// the transport when the loop stops.
func (t *Transport) AddToLoop(loop *fx.Loop) {
	loop.AddRunnable(t)
}

// Run implements Runnable.
func (t *Transport) Run(ctx context.Context) error {
	if t.Emulator != nil {
		return fx.RunWithContextCloser(ctx, t, func() error {
			return t.Emulator.Run(ctx, t.interval)
		})
	}
	<-ctx.Done()
	return t.Close()
}

// String implements fmt.Stringer.
func (t *Transport) String() string {
	return fmt.Sprintf("transport(%s)", t.Name)
}
