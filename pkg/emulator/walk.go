package emulator

// Walk simulates a person walking away and back, pausing at both ends,
// and leaving the room once per round trip.
type Walk struct {
	tick int
}

const (
	walkNear   = 60
	walkFar    = 480
	walkStep   = 20
	walkPause  = 10
	walkAbsent = 20
	// gateSize is the depth of a distance gate in centimeters.
	gateSize = 70
)

// Next returns the next observation.
func (w *Walk) Next() Target {
	leg := (walkFar - walkNear) / walkStep
	period := 2*leg + 2*walkPause + walkAbsent
	t := w.tick % period
	w.tick++

	var dist int
	state := uint8(3)
	switch {
	case t < leg:
		dist = walkNear + t*walkStep
	case t < leg+walkPause:
		dist, state = walkFar, 2
	case t < 2*leg+walkPause:
		dist = walkFar - (t-leg-walkPause)*walkStep
	case t < 2*leg+2*walkPause:
		dist, state = walkNear, 2
	case t < 2*leg+2*walkPause+walkAbsent/2:
		return Target{State: 1}
	default:
		return Target{}
	}
	return TargetAt(state, uint16(dist))
}

// TargetAt builds a target at distance with energy peaking on its gate.
func TargetAt(state uint8, distance uint16) Target {
	t := Target{State: state, Distance: distance}
	peak := int(distance) / gateSize
	for gate := range t.Energies {
		delta := gate - peak
		if delta < 0 {
			delta = -delta
		}
		if e := 100 - 25*delta; e > 0 {
			t.Energies[gate] = uint8(e)
		}
	}
	return t
}
