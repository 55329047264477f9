package mqtt

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/golang/glog"

	fx "github.com/robotalks/ld2410s/pkg/framework"
	"github.com/robotalks/ld2410s/pkg/msgs"
	"github.com/robotalks/ld2410s/pkg/protocol"
	"github.com/robotalks/ld2410s/pkg/radar"
)

// Availability payloads.
const (
	Online  = "online"
	Offline = "offline"
)

// ReconnectDelay is the wait between failed initial connects.
var ReconnectDelay = 5 * time.Second

// Command topics, relative to the radar topic.
const (
	CmdEnableConfig  = "cmd/enable_config"
	CmdDisableConfig = "cmd/disable_config"
	CmdResponseSpeed = "cmd/response_speed"
	CmdOutputMode    = "cmd/output_mode"
	CmdAutoThreshold = "cmd/auto_threshold"

	CmdUnmannedDelay      = "cmd/unmanned_delay"
	CmdStatusReportFreq   = "cmd/status_report_freq"
	CmdDistanceReportFreq = "cmd/distance_report_freq"

	// Per gate thresholds, as cmd/gate/<n>/trigger_threshold and
	// cmd/gate/<n>/hold_threshold.
	CmdGateTriggerThreshold = "cmd/gate/+/trigger_threshold"
	CmdGateHoldThreshold    = "cmd/gate/+/hold_threshold"
)

var commandTopics = []string{
	CmdEnableConfig, CmdDisableConfig, CmdResponseSpeed, CmdOutputMode, CmdAutoThreshold,
	CmdUnmannedDelay, CmdStatusReportFreq, CmdDistanceReportFreq,
	CmdGateTriggerThreshold, CmdGateHoldThreshold,
}

// Bridge publishes driver outputs to MQTT and turns command topics into
// driver calls on the loop.
type Bridge struct {
	ID    string
	Queue *Queue
	// Pub defaults to Queue.
	Pub Publisher
	// Loop receives the commands. Set by AddToLoop.
	Loop fx.LoopControl

	driver    *radar.Driver
	available atomic.Bool
}

// NewBridge creates a Bridge connecting to brokerURL.
func NewBridge(brokerURL, id string) (*Bridge, error) {
	opts, topicPrefix, err := ClientOptionsFromURL(brokerURL)
	if err != nil {
		return nil, err
	}
	b := &Bridge{ID: id}
	opts.SetBinaryWill(topicPrefix+b.Topic("available"), []byte(Offline), 1, true)
	if opts.ClientID == "" {
		opts.SetClientID("ld2410s:" + id)
	}
	b.Queue = NewQueue(opts, topicPrefix)
	b.Queue.OnConnect = func(*Queue) { b.publishAvailable(b.available.Load()) }
	b.Pub = b.Queue
	for _, topic := range commandTopics {
		b.Queue.Sub(b.Topic(topic), b.handleCommand)
	}
	return b, nil
}

// Topic returns the topic of name under this radar.
func (b *Bridge) Topic(name string) string {
	return b.ID + "/" + name
}

// Attach fills the output slots of d with publishers.
func (b *Bridge) Attach(d *radar.Driver) {
	b.driver = d
	out := &d.Outputs
	out.Distance = radar.SensorFunc(b.publishFloat("distance"))
	out.Presence = radar.BinarySensorFunc(b.publishBool("presence"))
	for gate := range out.GateEnergy {
		out.GateEnergy[gate] = radar.SensorFunc(b.publishFloat(fmt.Sprintf("gate/%d/energy", gate)))
	}
	out.ConfigMode = radar.BinarySensorFunc(func(on bool) {
		b.publish("config_mode", boolPayload(on), false)
		b.publishStatus()
	})
	out.Available = radar.BinarySensorFunc(func(on bool) {
		b.available.Store(on)
		b.publishAvailable(on)
		b.publishStatus()
	})
	out.AutoThresholdProgress = radar.SensorFunc(b.publishFloat("auto_threshold"))
	out.Reading = radar.HandleReadingFunc(func(r *radar.SensorReading) {
		data, err := msgs.Encode(msgs.NewReading(r))
		if err != nil {
			glog.Errorf("encode reading: %v", err)
			return
		}
		b.publish("reading", data, false)
	})
}

// AddToLoop implements LoopAdder.
func (b *Bridge) AddToLoop(loop *fx.Loop) {
	b.Loop = loop
	loop.AddRunnable(b)
}

// Run implements Runnable.
func (b *Bridge) Run(ctx context.Context) error {
	for {
		token := b.Queue.Connect()
		if token.Wait() && token.Error() == nil {
			break
		}
		glog.Warningf("mqtt connect: %v", token.Error())
		select {
		case <-ctx.Done():
			return b.Queue.Close()
		case <-time.After(ReconnectDelay):
		}
	}
	<-ctx.Done()
	b.publish("available", []byte(Offline), true).Wait()
	return b.Queue.Close()
}

func (b *Bridge) publish(name string, payload []byte, retain bool) paho.Token {
	return b.Pub.PubWith(b.Topic(name), payload, 0, retain)
}

func (b *Bridge) publishAvailable(on bool) {
	payload := Offline
	if on {
		payload = Online
	}
	b.publish("available", []byte(payload), true)
}

func (b *Bridge) publishFloat(name string) func(float64) {
	return func(v float64) {
		b.publish(name, []byte(strconv.FormatFloat(v, 'f', -1, 64)), false)
	}
}

func (b *Bridge) publishBool(name string) func(bool) {
	return func(v bool) {
		b.publish(name, boolPayload(v), false)
	}
}

func (b *Bridge) publishStatus() {
	if b.driver == nil {
		return
	}
	data, err := msgs.Encode(msgs.NewDeviceStatus(b.driver))
	if err != nil {
		glog.Errorf("encode status: %v", err)
		return
	}
	b.publish("status", data, true)
}

func (b *Bridge) handleCommand(topic string, payload []byte) {
	name := strings.TrimPrefix(topic, b.ID+"/")
	fn, err := CommandFor(name, payload)
	if err != nil {
		glog.Warningf("%s: %v", topic, err)
		return
	}
	if b.Loop == nil {
		glog.Warningf("%s: bridge not on a loop", topic)
		return
	}
	b.Loop.PostMessage(&radar.CallMsg{Fn: fn})
	b.Loop.TriggerNext()
}

// CommandFor translates a command topic and its payload into a driver call.
func CommandFor(name string, payload []byte) (func(context.Context, *radar.Driver) error, error) {
	arg := strings.TrimSpace(string(payload))
	switch name {
	case CmdEnableConfig:
		return func(ctx context.Context, d *radar.Driver) error {
			return d.EnableConfig(ctx)
		}, nil
	case CmdDisableConfig:
		return func(ctx context.Context, d *radar.Driver) error {
			return d.DisableConfig(ctx)
		}, nil
	case CmdResponseSpeed:
		speed, err := protocol.ParseResponseSpeed(arg)
		if err != nil {
			return nil, err
		}
		return func(ctx context.Context, d *radar.Driver) error {
			return d.SetResponseSpeed(ctx, speed)
		}, nil
	case CmdOutputMode:
		mode, err := protocol.ParseOutputMode(arg)
		if err != nil {
			return nil, err
		}
		return func(ctx context.Context, d *radar.Driver) error {
			return d.SetOutputMode(ctx, mode)
		}, nil
	case CmdAutoThreshold:
		if arg == "" {
			return func(ctx context.Context, d *radar.Driver) error {
				return d.StartAutoThreshold(ctx, d.Config().AutoThreshold)
			}, nil
		}
		params, err := radar.ParseAutoThreshold(arg)
		if err != nil {
			return nil, err
		}
		return func(ctx context.Context, d *radar.Driver) error {
			return d.StartAutoThreshold(ctx, params)
		}, nil
	case CmdUnmannedDelay:
		seconds, err := strconv.ParseUint(arg, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("unmanned delay: %w", err)
		}
		return func(ctx context.Context, d *radar.Driver) error {
			return d.SetUnmannedDelay(ctx, uint32(seconds))
		}, nil
	case CmdStatusReportFreq, CmdDistanceReportFreq:
		hz, err := strconv.ParseFloat(arg, 64)
		if err != nil {
			return nil, fmt.Errorf("report frequency: %w", err)
		}
		if name == CmdStatusReportFreq {
			return func(ctx context.Context, d *radar.Driver) error {
				return d.SetStatusReportFreq(ctx, hz)
			}, nil
		}
		return func(ctx context.Context, d *radar.Driver) error {
			return d.SetDistanceReportFreq(ctx, hz)
		}, nil
	}
	if MatchTopic(name, CmdGateTriggerThreshold) || MatchTopic(name, CmdGateHoldThreshold) {
		return gateThresholdCommand(name, arg)
	}
	return nil, fmt.Errorf("unknown command %q", name)
}

// gateThresholdCommand handles cmd/gate/<n>/<kind>_threshold.
func gateThresholdCommand(name, arg string) (func(context.Context, *radar.Driver) error, error) {
	parts := strings.Split(name, "/")
	gate, err := strconv.Atoi(parts[2])
	if err != nil {
		return nil, fmt.Errorf("%w: %q", radar.ErrInvalidGate, parts[2])
	}
	if err := radar.ValidateGate(gate); err != nil {
		return nil, err
	}
	kind := protocol.TriggerThresholds
	if parts[3] == "hold_threshold" {
		kind = protocol.HoldThresholds
	}
	value, err := strconv.ParseUint(arg, 10, 8)
	if err != nil {
		return nil, fmt.Errorf("%s threshold: %w", kind, err)
	}
	return func(ctx context.Context, d *radar.Driver) error {
		return d.SetGateThreshold(ctx, kind, gate, uint8(value))
	}, nil
}

func boolPayload(v bool) []byte {
	if v {
		return []byte("ON")
	}
	return []byte("OFF")
}
