package protocol

import (
	"encoding/binary"

	"github.com/robotalks/ld2410s/pkg/comm"
)

// Request is a command to be sent.
type Request struct {
	Command uint16
	Params  []byte
}

// Frame encodes the request as a config frame.
func (r *Request) Frame() *comm.Frame {
	payload := make([]byte, 2, 2+len(r.Params))
	binary.LittleEndian.PutUint16(payload, r.Command)
	return comm.NewFrame(comm.DialectConfig, append(payload, r.Params...))
}

// Ack is the decoded answer to a Request.
type Ack struct {
	// Command is the request command word, without AckFlag.
	Command uint16
	Status  Status
	Data    []byte
}

// AckWord returns the command word an ack for cmd carries.
func AckWord(cmd uint16) uint16 {
	return cmd | AckFlag
}

// CommandWord returns the leading command word of a config frame.
func CommandWord(f *comm.Frame) (uint16, bool) {
	if f.Dialect != comm.DialectConfig || len(f.Payload) < 2 {
		return 0, false
	}
	return binary.LittleEndian.Uint16(f.Payload), true
}

// ParseAck decodes an ack frame.
func ParseAck(f *comm.Frame) (*Ack, error) {
	word, ok := CommandWord(f)
	if !ok || word&AckFlag == 0 {
		return nil, &MalformedAckError{Command: word &^ AckFlag, Reason: "not an ack frame"}
	}
	cmd := word &^ AckFlag
	if len(f.Payload) < 4 {
		return nil, &MalformedAckError{Command: cmd, Reason: "missing status"}
	}
	return &Ack{
		Command: cmd,
		Status:  Status(binary.LittleEndian.Uint16(f.Payload[2:])),
		Data:    f.Payload[4:],
	}, nil
}

// Frame encodes the ack as a config frame.
func (a *Ack) Frame() *comm.Frame {
	payload := make([]byte, 4, 4+len(a.Data))
	binary.LittleEndian.PutUint16(payload, AckWord(a.Command))
	binary.LittleEndian.PutUint16(payload[2:], uint16(a.Status))
	return comm.NewFrame(comm.DialectConfig, append(payload, a.Data...))
}
