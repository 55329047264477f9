// Package sh provides an interactive shell to inspect and configure
// the radar.
package sh

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/abiosoft/ishell"
	"github.com/golang/glog"

	"github.com/robotalks/ld2410s/pkg/env"
	fx "github.com/robotalks/ld2410s/pkg/framework"
	"github.com/robotalks/ld2410s/pkg/radar"
)

// Shell provides ishell backed interactive shell.
type Shell struct {
	Interactive bool
	OutputJSON  bool
	Timeout     time.Duration

	Shell  *ishell.Shell
	Env    *env.Config
	Radar  *radar.Config
	Device *DeviceLoop
}

// DeviceLoop is a running loop owning the driver.
type DeviceLoop struct {
	Ctx       context.Context
	Cancel    func()
	Loop      *fx.Loop
	Driver    *radar.Driver
	Transport *env.Transport
}

const (
	shellKey          = "$shell"
	unconnectedPrompt = "[none] > "
)

var (
	// flags

	evalOnly   bool
	outputJSON bool

	commands = []*ishell.Cmd{
		&OpenCmd,
		&CloseCmd,
	}
)

func init() {
	flag.BoolVar(&evalOnly, "e", evalOnly, "Evaluation only, no interactive shell.")
	flag.BoolVar(&outputJSON, "json", outputJSON, "Print output in JSON.")
}

// AddCmds is used by other commands providers during init func.
func AddCmds(cmds ...*ishell.Cmd) {
	commands = append(commands, cmds...)
}

// New creates a new shell.
func New(e *env.Config, r *radar.Config) *Shell {
	s := &Shell{
		Interactive: !evalOnly,
		OutputJSON:  outputJSON,
		Timeout:     5 * time.Second,

		Shell: ishell.New(),
		Env:   e,
		Radar: r,
	}
	s.Shell.Set(shellKey, s)
	s.Shell.SetPrompt(unconnectedPrompt)
	for _, cmd := range commands {
		s.Shell.AddCmd(cmd)
	}
	return s
}

// ShellFrom gets Shell from ishell context.
func ShellFrom(c *ishell.Context) *Shell {
	return c.Get(shellKey).(*Shell)
}

// MustBeOpen wraps command func requires an opened device.
func MustBeOpen(fn func(c *ishell.Context)) func(c *ishell.Context) {
	return func(c *ishell.Context) {
		if ShellFrom(c).Device == nil {
			c.Err(fmt.Errorf("device not open"))
			return
		}
		fn(c)
	}
}

// Open opens the configured device and runs the driver on a loop.
func (s *Shell) Open() error {
	t, err := s.Env.Open()
	if err != nil {
		return err
	}
	d, err := s.Radar.NewDriver(t)
	if err != nil {
		t.Close()
		return err
	}
	dl := &DeviceLoop{Driver: d, Transport: t}
	dl.Ctx, dl.Cancel = context.WithCancel(context.Background())
	dl.Loop = fx.NewLoop()
	dl.Loop.Interval = s.Radar.PollInterval
	dl.Loop.Add(t, d)
	s.Close()
	s.Device = dl
	go func() {
		if err := dl.Loop.Run(dl.Ctx); err != nil && err != context.Canceled {
			glog.Errorf("loop stopped: %v", err)
		}
	}()
	if err := s.Call(func(ctx context.Context, d *radar.Driver) error { return d.Setup(ctx) }); err != nil {
		s.Close()
		return err
	}
	s.Shell.SetPrompt(fmt.Sprintf("%s > ", t.Name))
	return nil
}

// Close stops the loop and closes the device.
func (s *Shell) Close() {
	if s.Device != nil {
		s.Device.Cancel()
		s.Device = nil
		s.Shell.SetPrompt(unconnectedPrompt)
	}
}

// Call runs fn on the device loop and waits for the result.
func (s *Shell) Call(fn func(context.Context, *radar.Driver) error) error {
	if s.Device == nil {
		return fmt.Errorf("device not open")
	}
	ctx, cancel := context.WithTimeout(s.Device.Ctx, s.Timeout)
	defer cancel()
	return radar.Call(ctx, s.Device.Loop, fn)
}

// Do runs fn on the device loop and reports errors to c.
func Do(c *ishell.Context, fn func(context.Context, *radar.Driver) error) bool {
	if err := ShellFrom(c).Call(fn); err != nil {
		c.Err(err)
		return false
	}
	return true
}

// Print prints v as JSON in JSON mode, or text otherwise.
func Print(c *ishell.Context, v interface{}, text string) {
	if ShellFrom(c).OutputJSON {
		out, err := json.Marshal(v)
		if err != nil {
			c.Err(err)
			return
		}
		c.Println(string(out))
		return
	}
	c.Println(text)
}

// Run runs the shell.
func (s *Shell) Run(args ...string) {
	if s.Interactive {
		s.Shell.Printf("Opening %s ...\n", s.Env.Device)
	}
	if err := s.Open(); err != nil {
		log.Fatalf("open %q failed: %v", s.Env.Device, err)
	}
	defer s.Close()

	if len(args) > 0 {
		if err := s.Shell.Process(args...); err != nil {
			log.Fatalln(err)
		}
		return
	}
	if s.Interactive {
		s.Shell.Run()
		return
	}
	log.Fatalln("command expected")
}

var (
	// OpenCmd (re)opens the device.
	OpenCmd = ishell.Cmd{
		Name: "open",
		Help: "[DEVICE]",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			if len(c.Args) > 0 {
				s.Env.Device = c.Args[0]
			}
			if err := s.Open(); err != nil {
				c.Err(err)
			}
		},
	}

	// CloseCmd closes the device.
	CloseCmd = ishell.Cmd{
		Name: "close",
		Help: "",
		Func: func(c *ishell.Context) {
			ShellFrom(c).Close()
		},
	}
)

// Main is a helper to provide a single call in main.
func Main() {
	flag.Parse()
	New(env.NewConfig(), radar.NewConfig()).Run(flag.Args()...)
}
