package traffic

import (
	"math"

	"trafficwarn/internal/geo"
)

// angleDiff folds a-b into (-180, 180]; a half turn is always +180.
func angleDiff(a, b float64) float64 {
	d := a - b
	for d > 180 {
		d -= 360
	}
	for d <= -180 {
		d += 360
	}
	return d
}

// projectVelocities fills six velocity samples at +3..+18 s, in quarter-m/s
// N/S and E/W components, assuming the turn rate holds for the horizon.
func projectVelocities(speedKt, courseDeg, turnRate float64, ew, ns *[6]int16) {
	speedQ := speedKt * KnotsToMps * 4
	for i := 0; i < 6; i++ {
		c := geo.DegToRad * (courseDeg + turnRate*float64(3*i+3))
		ew[i] = int16(speedQ * math.Sin(c))
		ns[i] = int16(speedQ * math.Cos(c))
	}
}

// projectSlot refreshes a target's short-horizon projections. Turn rate is
// taken from the packet when the protocol carries it, otherwise estimated
// from the two-snapshot course history.
func projectSlot(fop *Slot) {
	if fop.ProjTimeMs == fop.GNSSTimeMs && fop.ProjTimeMs != 0 {
		return // already projected for this packet
	}
	turnRate := fop.TurnRate
	if fop.Protocol != ProtocolLatest {
		if fop.PrevTimeMs != 0 && fop.GNSSTimeMs > fop.PrevTimeMs {
			dt := float64(fop.GNSSTimeMs-fop.PrevTimeMs) / 1000.0
			if dt >= 1.0 {
				turnRate = angleDiff(fop.Course, fop.PrevCourse) / dt
			}
		}
		fop.TurnRate = turnRate
	}
	if turnRate > 2.0 {
		fop.Circling = 1
	} else if turnRate < -2.0 {
		fop.Circling = -1
	} else {
		fop.Circling = 0
	}
	projectVelocities(fop.Speed, fop.Course, turnRate, &fop.AirEW, &fop.AirNS)
	fop.ProjTimeMs = fop.GNSSTimeMs
}

// ProjectHost refreshes the host's own projections from the current GNSS
// state. No wind correction is applied: the samples are built from ground
// speed and course.
func ProjectHost(h *HostState) {
	projectVelocities(h.Speed, h.Course, h.TurnRate, &h.AirEW, &h.AirNS)
	h.ProjTimeMs = h.GNSSTimeMs
	if h.TurnRate > 2.0 {
		h.Circling = 1
	} else if h.TurnRate < -2.0 {
		h.Circling = -1
	} else {
		h.Circling = 0
	}
}
