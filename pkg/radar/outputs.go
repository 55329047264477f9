package radar

import "github.com/robotalks/ld2410s/pkg/protocol"

// Sensor receives numeric states.
type Sensor interface {
	PublishState(float64)
}

// SensorFunc is func type of Sensor.
type SensorFunc func(float64)

// PublishState implements Sensor.
func (f SensorFunc) PublishState(v float64) {
	f(v)
}

// BinarySensor receives on/off states.
type BinarySensor interface {
	PublishBinary(bool)
}

// BinarySensorFunc is func type of BinarySensor.
type BinarySensorFunc func(bool)

// PublishBinary implements BinarySensor.
func (f BinarySensorFunc) PublishBinary(v bool) {
	f(v)
}

// ReadingHandler receives every forwarded reading as a whole.
type ReadingHandler interface {
	HandleReading(*SensorReading)
}

// HandleReadingFunc is func type of ReadingHandler.
type HandleReadingFunc func(*SensorReading)

// HandleReading implements ReadingHandler.
func (f HandleReadingFunc) HandleReading(r *SensorReading) {
	f(r)
}

// Outputs are the slots the driver publishes to. Every slot is optional.
type Outputs struct {
	Distance              Sensor
	Presence              BinarySensor
	GateEnergy            [protocol.GateCount]Sensor
	ConfigMode            BinarySensor
	Available             BinarySensor
	AutoThresholdProgress Sensor
	Reading               ReadingHandler
}

func (o *Outputs) publishReading(r *SensorReading) {
	if s := o.Distance; s != nil {
		s.PublishState(r.Distance)
	}
	if s := o.Presence; s != nil {
		s.PublishBinary(r.Presence)
	}
	if r.HasEnergies {
		for gate, s := range o.GateEnergy {
			if s != nil {
				s.PublishState(float64(r.GateEnergies[gate]))
			}
		}
	}
	if h := o.Reading; h != nil {
		h.HandleReading(r)
	}
}

func (o *Outputs) publishConfigMode(on bool) {
	if s := o.ConfigMode; s != nil {
		s.PublishBinary(on)
	}
}

func (o *Outputs) publishAvailable(on bool) {
	if s := o.Available; s != nil {
		s.PublishBinary(on)
	}
}

func (o *Outputs) publishProgress(percent uint16) {
	if s := o.AutoThresholdProgress; s != nil {
		s.PublishState(float64(percent))
	}
}
