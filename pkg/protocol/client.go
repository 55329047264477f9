package protocol

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/ld2410s/pkg/comm"
	fx "github.com/robotalks/ld2410s/pkg/framework"
)

// Defaults of Client.
const (
	DefaultTimeout      = time.Second
	DefaultCommandDelay = 100 * time.Millisecond
	DefaultPollInterval = 5 * time.Millisecond
)

// Client issues commands over a Stream, one at a time.
type Client struct {
	Stream *comm.Stream
	// Timeout bounds the wait for an ack.
	Timeout time.Duration
	// CommandDelay is the minimum pause between the completion of a
	// command and the transmission of the next one.
	CommandDelay time.Duration
	// PollInterval is the pause between reads while waiting for an ack.
	PollInterval time.Duration
	Clock        fx.Clock
	// Discarded receives frames read while waiting which are not the
	// expected ack.
	Discarded comm.FrameHandler

	lock     sync.Mutex
	busy     bool
	inflight uint16
	lastDone time.Time
}

// NewClient creates a Client with default timing.
func NewClient(s *comm.Stream) *Client {
	return &Client{
		Stream:       s,
		Timeout:      DefaultTimeout,
		CommandDelay: DefaultCommandDelay,
		PollInterval: DefaultPollInterval,
		Clock:        fx.SystemClock{},
	}
}

// Busy tells if a command is outstanding.
func (c *Client) Busy() bool {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.busy
}

// Do sends a command and waits for its ack. A failure status is returned
// as *CommandError along with the ack.
func (c *Client) Do(ctx context.Context, cmd uint16, params []byte) (*Ack, error) {
	if err := c.acquire(cmd); err != nil {
		return nil, err
	}
	defer c.release()

	if err := c.waitCommandDelay(ctx); err != nil {
		return nil, err
	}
	req := &Request{Command: cmd, Params: params}
	err := c.Stream.Send(req.Frame())
	if err != nil {
		c.lastDone = c.Clock.Now()
		return nil, fmt.Errorf("%s: %w", CommandName(cmd), err)
	}
	ack, err := c.waitAck(ctx, cmd)
	c.lastDone = c.Clock.Now()
	if err != nil {
		return nil, err
	}
	glog.V(3).Infof("ACK %s: %s % x", CommandName(cmd), ack.Status, ack.Data)
	if ack.Status != StatusSuccess {
		return ack, &CommandError{Command: cmd, Status: ack.Status}
	}
	return ack, nil
}

func (c *Client) acquire(cmd uint16) error {
	c.lock.Lock()
	defer c.lock.Unlock()
	if c.busy {
		return fmt.Errorf("%w: %s while %s in flight", ErrInvalidState, CommandName(cmd), CommandName(c.inflight))
	}
	c.busy, c.inflight = true, cmd
	return nil
}

func (c *Client) release() {
	c.lock.Lock()
	c.busy = false
	c.lock.Unlock()
}

func (c *Client) waitCommandDelay(ctx context.Context) error {
	if c.lastDone.IsZero() {
		return nil
	}
	if wait := c.CommandDelay - c.Clock.Now().Sub(c.lastDone); wait > 0 {
		c.Clock.Sleep(wait)
	}
	return ctx.Err()
}

func (c *Client) waitAck(ctx context.Context, cmd uint16) (*Ack, error) {
	deadline := c.Clock.Now().Add(c.Timeout)
	expect := AckWord(cmd)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if _, err := c.Stream.Fill(); err != nil {
			return nil, fmt.Errorf("%s: %w", CommandName(cmd), err)
		}
		for {
			f, err := c.Stream.Next()
			if err != nil {
				glog.V(2).Infof("skip: %v", err)
				continue
			}
			if f == nil {
				break
			}
			if word, ok := CommandWord(f); ok && word == expect {
				return ParseAck(f)
			}
			glog.V(3).Infof("discard while waiting %s: %s", CommandName(cmd), f)
			if h := c.Discarded; h != nil {
				h.HandleFrame(f)
			}
		}
		if !c.Clock.Now().Before(deadline) {
			return nil, fmt.Errorf("%s: %w", CommandName(cmd), ErrTimeout)
		}
		c.Clock.Sleep(c.PollInterval)
	}
}

// EnableConfig enters configuration mode.
func (c *Client) EnableConfig(ctx context.Context) (ConfigInfo, error) {
	params := make([]byte, 2)
	binary.LittleEndian.PutUint16(params, EnableConfigValue)
	ack, err := c.Do(ctx, CmdEnableConfig, params)
	if err != nil {
		return ConfigInfo{}, err
	}
	if len(ack.Data) < 4 {
		return ConfigInfo{}, &MalformedAckError{Command: CmdEnableConfig, Reason: "short config info"}
	}
	return ConfigInfo{
		ProtocolVersion: binary.LittleEndian.Uint16(ack.Data),
		BufferSize:      binary.LittleEndian.Uint16(ack.Data[2:]),
	}, nil
}

// DisableConfig leaves configuration mode.
func (c *Client) DisableConfig(ctx context.Context) error {
	_, err := c.Do(ctx, CmdDisableConfig, nil)
	return err
}

// ReadFirmwareVersion reads the firmware version.
func (c *Client) ReadFirmwareVersion(ctx context.Context) (FirmwareVersion, error) {
	ack, err := c.Do(ctx, CmdReadFirmwareVersion, nil)
	if err != nil {
		return FirmwareVersion{}, err
	}
	if len(ack.Data) < 8 {
		return FirmwareVersion{}, &MalformedAckError{Command: CmdReadFirmwareVersion, Reason: "short version"}
	}
	return FirmwareVersion{
		Major: binary.LittleEndian.Uint16(ack.Data),
		Minor: binary.LittleEndian.Uint16(ack.Data[2:]),
		Build: binary.LittleEndian.Uint32(ack.Data[4:]),
	}, nil
}

// ReadSerialNumber reads the serial number.
func (c *Client) ReadSerialNumber(ctx context.Context) (string, error) {
	ack, err := c.Do(ctx, CmdReadSerialNumber, nil)
	if err != nil {
		return "", err
	}
	if len(ack.Data) < 2 {
		return "", &MalformedAckError{Command: CmdReadSerialNumber, Reason: "missing length"}
	}
	size := int(binary.LittleEndian.Uint16(ack.Data))
	if len(ack.Data) < 2+size {
		return "", &MalformedAckError{Command: CmdReadSerialNumber, Reason: "short serial number"}
	}
	return string(ack.Data[2 : 2+size]), nil
}

// WriteParams writes general parameters.
func (c *Client) WriteParams(ctx context.Context, values ...ParamValue) error {
	_, err := c.Do(ctx, CmdWriteGeneralParams, EncodeParamWrites(values))
	return err
}

// ReadParams reads general parameters, in the order of words.
func (c *Client) ReadParams(ctx context.Context, words ...uint16) ([]uint32, error) {
	ack, err := c.Do(ctx, CmdReadGeneralParams, EncodeParamReads(words))
	if err != nil {
		return nil, err
	}
	return DecodeParamValues(CmdReadGeneralParams, ack.Data, len(words))
}

// WriteThresholds writes thresholds of all gates.
func (c *Client) WriteThresholds(ctx context.Context, kind ThresholdKind, values [GateCount]uint8) error {
	_, err := c.Do(ctx, kind.WriteCommand(), EncodeThresholdWrites(values))
	return err
}

// ReadThresholds reads thresholds of all gates.
func (c *Client) ReadThresholds(ctx context.Context, kind ThresholdKind) ([GateCount]uint8, error) {
	ack, err := c.Do(ctx, kind.ReadCommand(), EncodeThresholdReads())
	if err != nil {
		return [GateCount]uint8{}, err
	}
	return DecodeThresholds(kind.ReadCommand(), ack.Data)
}

// SwitchOutputMode selects the report format.
func (c *Client) SwitchOutputMode(ctx context.Context, mode OutputMode) error {
	_, err := c.Do(ctx, CmdSwitchOutputMode, EncodeOutputMode(mode))
	return err
}

// StartAutoThreshold starts the automatic threshold calibration.
func (c *Client) StartAutoThreshold(ctx context.Context, params AutoThreshold) error {
	_, err := c.Do(ctx, CmdStartAutoThreshold, params.Encode())
	return err
}
