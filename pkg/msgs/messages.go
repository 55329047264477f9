// Package msgs defines the protobuf messages published by the bridge.
package msgs

import (
	"github.com/golang/protobuf/proto"

	"github.com/robotalks/ld2410s/pkg/radar"
)

// Reading is a forwarded sensor reading.
type Reading struct {
	Presence     bool     `protobuf:"varint,1,opt,name=presence,proto3" json:"presence,omitempty"`
	TargetState  uint32   `protobuf:"varint,2,opt,name=target_state,json=targetState,proto3" json:"target_state,omitempty"`
	Distance     float32  `protobuf:"fixed32,3,opt,name=distance,proto3" json:"distance,omitempty"`
	GateEnergies []uint32 `protobuf:"varint,4,rep,packed,name=gate_energies,json=gateEnergies,proto3" json:"gate_energies,omitempty"`
	TimestampMs  int64    `protobuf:"varint,5,opt,name=timestamp_ms,json=timestampMs,proto3" json:"timestamp_ms,omitempty"`
}

// ProtoMessage implements proto.Message.
func (m *Reading) ProtoMessage() {}

// Reset implements proto.Message.
func (m *Reading) Reset() { *m = Reading{} }

// String implements proto.Message.
func (m *Reading) String() string { return proto.CompactTextString(m) }

// NewReading converts a SensorReading.
func NewReading(r *radar.SensorReading) *Reading {
	m := &Reading{
		Presence:    r.Presence,
		TargetState: uint32(r.State),
		Distance:    float32(r.Distance),
		TimestampMs: r.Timestamp.UnixNano() / 1e6,
	}
	if r.HasEnergies {
		m.GateEnergies = make([]uint32, len(r.GateEnergies))
		for n, e := range r.GateEnergies {
			m.GateEnergies[n] = uint32(e)
		}
	}
	return m
}

// DeviceStatus summarizes the driver.
type DeviceStatus struct {
	ConfigMode      bool   `protobuf:"varint,1,opt,name=config_mode,json=configMode,proto3" json:"config_mode,omitempty"`
	Available       bool   `protobuf:"varint,2,opt,name=available,proto3" json:"available,omitempty"`
	Firmware        string `protobuf:"bytes,3,opt,name=firmware,proto3" json:"firmware,omitempty"`
	CorruptedFrames uint64 `protobuf:"varint,4,opt,name=corrupted_frames,json=corruptedFrames,proto3" json:"corrupted_frames,omitempty"`
	Frames          uint64 `protobuf:"varint,5,opt,name=frames,proto3" json:"frames,omitempty"`
}

// ProtoMessage implements proto.Message.
func (m *DeviceStatus) ProtoMessage() {}

// Reset implements proto.Message.
func (m *DeviceStatus) Reset() { *m = DeviceStatus{} }

// String implements proto.Message.
func (m *DeviceStatus) String() string { return proto.CompactTextString(m) }

// NewDeviceStatus snapshots the driver.
func NewDeviceStatus(d *radar.Driver) *DeviceStatus {
	stats := d.Stats()
	m := &DeviceStatus{
		ConfigMode:      d.Session().State() != radar.StateNormal,
		Available:       d.Available(),
		CorruptedFrames: stats.Corrupted,
		Frames:          stats.Frames,
	}
	if ver, ok := d.FirmwareVersion(); ok {
		m.Firmware = ver.String()
	}
	return m
}

// Encode serializes a message.
func Encode(m proto.Message) ([]byte, error) {
	return proto.Marshal(m)
}

// Decode parses data into m.
func Decode(data []byte, m proto.Message) error {
	return proto.Unmarshal(data, m)
}
