package traffic

import (
	"math"

	"trafficwarn/internal/geo"
)

// Algorithm selects the collision-prediction strategy.
type Algorithm uint8

const (
	AlgorithmDistance Algorithm = iota
	AlgorithmVector
	AlgorithmLatest
	AlgorithmNone
)

// ParseAlgorithm maps a config string to an Algorithm, defaulting to latest.
func ParseAlgorithm(s string) Algorithm {
	switch s {
	case "none":
		return AlgorithmNone
	case "distance":
		return AlgorithmDistance
	case "vector":
		return AlgorithmVector
	default:
		return AlgorithmLatest
	}
}

// adjAltDiff biases the raw altitude difference by the relative vertical
// speed projected 10 s ahead, only when that reduces the separation, then
// applies the 30 m GPS slack dead-band.
func adjAltDiff(host *HostState, fop *Slot) float64 {
	altDiff := fop.AltDiff
	vsr := fop.Vs - host.Vs // fpm, positive: target rising relative to host
	if vsr > 2000 {
		vsr = 2000
	}
	if vsr < -2000 {
		vsr = -2000
	}
	altChange := vsr * 0.05 // expected change in 10 s, meters

	// only adjust towards higher alarm level
	if altDiff > 0 && altChange < 0 {
		altDiff += altChange
		if altDiff < 0 {
			return 0
		}
	} else if altDiff < 0 && altChange > 0 {
		altDiff += altChange
		if altDiff > 0 {
			return 0
		}
	}

	if altDiff > VerticalSlack {
		return altDiff - VerticalSlack
	}
	if altDiff < -VerticalSlack {
		return altDiff + VerticalSlack
	}
	return 0
}

// alarmDistance assigns a level from the altitude-adjusted distance alone.
func (w *World) alarmDistance(fop *Slot) AlarmLevel {
	distance := fop.Distance
	if distance > AlarmZoneClose || math.Abs(fop.AdjAltDiff) > VerticalSeparation {
		return AlarmNone
	}

	adjDistance := fop.AdjDistance
	if adjDistance < distance {
		adjDistance = distance
	}

	if adjDistance < AlarmZoneExtreme && fop.AlertLevel > AlarmNone {
		fop.AlertLevel-- // may sound a new alarm for the same urgent level
	}
	switch {
	case adjDistance < AlarmZoneUrgent:
		return AlarmUrgent
	case adjDistance < AlarmZoneImportant:
		return AlarmImportant
	case adjDistance < AlarmZoneLow:
		return AlarmLow
	case adjDistance < AlarmZoneClose:
		return AlarmClose
	}
	return AlarmNone
}

// alarmVector is the straight-line collision predictor from course and
// ground speed. Unusable while either aircraft is turning.
func (w *World) alarmVector(fop *Slot) AlarmLevel {
	host := &w.Host

	if fop.TxType <= TxTypeS {
		return w.alarmDistance(fop) // non-directional target
	}
	if fop.Speed == 0 {
		return w.alarmDistance(fop) // no velocity received yet
	}

	rval := AlarmNone

	if fop.GNSSTimeMs-fop.PrevTimeMs > 3000 { // also catches PrevTimeMs == 0
		return w.alarmDistance(fop)
	}

	distance := fop.Distance
	if distance > 2*AlarmZoneClose {
		return AlarmNone
	}

	absAltDiff := math.Abs(fop.AdjAltDiff)
	if absAltDiff > VerticalSeparation {
		return AlarmNone
	}

	if distance > (fop.Speed+host.Speed)*(AlarmTimeLow*KnotsToMps) {
		return AlarmNone
	}

	if math.Abs(host.TurnRate) > 3.0 || math.Abs(fop.TurnRate) > 3.0 {
		return w.alarmDistance(fop)
	}

	adjDistance := fop.AdjDistance
	if adjDistance < distance {
		adjDistance = distance
	}

	// Subtract the 2D velocity vectors.
	hostCourse := geo.DegToRad * host.Course
	thatCourse := geo.DegToRad * fop.Course
	vRelY := host.Speed*math.Cos(hostCourse) - fop.Speed*math.Cos(thatCourse)
	vRelX := host.Speed*math.Sin(hostCourse) - fop.Speed*math.Sin(thatCourse)

	vRelMagnitude := math.Hypot(vRelX, vRelY) * KnotsToMps
	vRelDirection := geo.RadToDeg * math.Atan2(vRelX, vRelY) // direction fop comes from
	if vRelDirection < 0 {
		vRelDirection += 360
	}

	t := math.Inf(1) // time to closest approach; stays +Inf below the speed gate

	if vRelMagnitude > AlarmVectorSpeed {
		t = adjDistance / vRelMagnitude

		relAngle := math.Abs(vRelDirection - fop.Bearing)
		if relAngle > 180 {
			relAngle = 360 - relAngle
		}

		if relAngle < AlarmVectorAngle && vRelMagnitude > 3*AlarmVectorSpeed {
			// near-collision course, time limits per FLARM data port bands
			if t < AlarmTimeClose {
				rval = AlarmClose
				if t < AlarmTimeLow {
					rval = AlarmLow
					if t < AlarmTimeImportant {
						rval = AlarmImportant
						if t < AlarmTimeUrgent {
							rval = AlarmUrgent
						}
					}
				}
			}
		} else if relAngle < 2*AlarmVectorAngle {
			// less direct course: one level weaker for the same time
			if t < AlarmTimeLow {
				rval = AlarmClose
				if t < AlarmTimeImportant {
					rval = AlarmLow
					if t < AlarmTimeUrgent {
						rval = AlarmImportant
						if t < AlarmTimeExtreme {
							rval = AlarmUrgent
						}
					}
				}
			}
		} else if relAngle < 3*AlarmVectorAngle {
			if t < AlarmTimeImportant {
				rval = AlarmClose
				if t < AlarmTimeUrgent {
					rval = AlarmLow
					if t < AlarmTimeExtreme {
						rval = AlarmImportant
					}
				}
			}
		}
	}

	if rval >= AlarmLow && t < AlarmTimeExtreme && fop.AlertLevel > AlarmNone {
		fop.AlertLevel-- // may sound a new alarm for the same urgent level
	}

	if w.cfg.DebugAlarm && w.telemetry != nil {
		w.telemetry.VectorDebug(host, fop, rval, vRelMagnitude, vRelDirection, t)
	}

	return rval
}

// alarmLatest is the short-horizon simulator: both trajectories are walked
// second by second for the next 18 s using the stored airspeed projections,
// accounting for circling and for energy available for a zoom climb.
func (w *World) alarmLatest(fop *Slot) AlarmLevel {
	host := &w.Host

	if fop.Distance > 2*AlarmZoneClose {
		return AlarmNone
	}
	if fop.TxType <= TxTypeS {
		return w.alarmDistance(fop) // non-directional target
	}
	if fop.Speed == 0 {
		return w.alarmDistance(fop)
	}
	if fop.TxType == TxTypeTISB || fop.Relayed {
		return w.alarmVector(fop) // data not timely enough for this algorithm
	}

	v2 := fop.Speed + host.Speed
	if fop.Distance > v2*(AlarmTimeLow*KnotsToMps) {
		return AlarmNone
	}

	vv := int(v2)
	dz := (vv * vv) >> 8 // rough potential zoom-up altitude exchange
	if int(math.Abs(fop.AdjAltDiff))-dz > VerticalSeparation {
		return AlarmNone
	}

	// The latest radio protocol carries turn rate explicitly; if neither
	// aircraft is turning the straight-line predictor is good enough.
	if fop.Protocol == ProtocolLatest &&
		math.Abs(host.TurnRate) < 2.0 && math.Abs(fop.TurnRate) < 2.0 {
		return w.alarmVector(fop)
	}

	projectSlot(fop)

	if fop.Protocol != ProtocolLatest &&
		math.Abs(host.TurnRate) < 2.0 && math.Abs(fop.TurnRate) < 2.0 {
		return w.alarmVector(fop)
	}

	gaggling := abs8(host.Circling+fop.Circling) == 2

	towing := (host.AircraftType == AircraftTowplane && fop.AircraftType == AircraftGlider) ||
		(host.AircraftType == AircraftGlider && fop.AircraftType == AircraftTowplane)
	if towing {
		courseDiff := math.Abs(host.Course - fop.Course)
		if courseDiff > 20.0 && courseDiff < 340.0 {
			towing = false
		}
		if math.Abs(host.TurnRate-fop.TurnRate) > 6.0 {
			towing = false
		}
		if math.Abs(host.Speed-fop.Speed) > 15.0 {
			towing = false
		}
	}

	// Integer math from here on, quarter-meters and quarter-m/s.

	dzm := int(fop.AltDiff) // raw alt diff: zoom-up is re-computed here
	vsr := fop.Vs - host.Vs
	absdz := dzm
	if absdz < 0 {
		absdz = -absdz
	}
	adjdz := absdz

	// The lower aircraft may convert speed into a zoom climb.
	var zvx, zvy int
	vv = 0
	if dzm < 0 && fop.Circling == 0 && vsr > 400 {
		zvx = int(fop.AirEW[0])
		zvy = int(fop.AirNS[0])
		vv = zvx*zvx + zvy*zvy
	} else if dzm > 0 && host.Circling == 0 && vsr < -400 {
		zvx = int(host.AirEW[0])
		zvy = int(host.AirNS[0])
		vv = zvx*zvx + zvy*zvy
	}
	zoom := false
	var factor int
	if vv > 20*20*4*4 {
		vv20 := vv - 20*20*4*4 // can zoom until airspeed decays to 20 m/s
		adjdz -= vv20 >> 9     // about 2/3 of the possible zoom
		if vv20 > 8000 {
			zoom = true
			// speed decays while zooming: scale by (64 - 5*16*64*|dz|/vv)/64
			factor = (5 * 16 * 64) * absdz
			factor = 64 - factor/vv
			if factor < 48 {
				factor = 48
			}
		}
	}
	adjdz -= int(VerticalSlack)
	if adjdz < 0 {
		adjdz = 0
	}
	if adjdz > 60 {
		return AlarmNone // cannot reach the 120 m 3D threshold below
	}

	// Expand the 3 s projection samples into 1 s velocity steps.
	var thisvx, thisvy, thatvx, thatvy [19]int
	expand(&thisvx, &thisvy, host.AirEW, host.AirNS, zoom && dzm > 15, factor)
	expand(&thatvx, &thatvy, fop.AirEW, fop.AirNS, zoom && dzm < -15, factor)

	// Relative position in quarter-meters.
	dx := int(fop.Dx) << 2
	dy := int(fop.Dy) << 2

	minsqdist := 200 * 200 * 4 * 4
	mintime := AlarmTimeClose
	vxmin, vymin := 0, 0

	// Offset the arrays if the two projections started at different times.
	var i, j int
	if fop.ProjTimeMs > host.ProjTimeMs+500 {
		// host projection is older, shift it one second
		i, j = 0, 1
		dx -= thisvx[0]
		dy -= thisvy[0]
	} else if host.ProjTimeMs > fop.ProjTimeMs+500 {
		i, j = 1, 0
		dx += thatvx[0]
		dy += thatvy[0]
	}

	adjdz <<= 3 // <<2 into quarter-meters, <<1 to weight vertical 2x
	sqdz := adjdz * adjdz
	cursqdist := dx*dx + dy*dy + sqdz

	for t := 0; t < 18; t++ {
		vx := thatvx[i] - thisvx[j]
		vy := thatvy[i] - thisvy[j]
		dx += vx
		dy += vy
		sqdist := dx*dx + dy*dy + sqdz
		if sqdist < minsqdist {
			minsqdist = sqdist
			vxmin = vx
			vymin = vy
			mintime = t
		}
		i++
		j++
	}

	if cursqdist <= minsqdist || mintime == 0 {
		// not getting any closer than the current situation
		return AlarmNone
	}

	rval := AlarmNone

	// Thresholds squeezed between thermal size, tow rope length and the
	// accuracy of the prediction.
	if minsqdist < 40*40*4*4 {
		if mintime < AlarmTimeUrgent {
			rval = AlarmUrgent
		} else if mintime < AlarmTimeImportant {
			rval = AlarmImportant
		} else {
			rval = AlarmLow
		}
	} else if minsqdist < 70*70*4*4 && !gaggling && !towing {
		if mintime < AlarmTimeExtreme {
			rval = AlarmUrgent
		} else if mintime < AlarmTimeUrgent {
			rval = AlarmImportant
		} else if mintime < AlarmTimeImportant {
			rval = AlarmLow
		} else {
			rval = AlarmClose
		}
	} else if minsqdist < 120*120*4*4 && !gaggling && !towing {
		if mintime < AlarmTimeExtreme {
			rval = AlarmImportant
		} else if mintime < AlarmTimeUrgent {
			rval = AlarmLow
		} else if mintime < AlarmTimeImportant {
			rval = AlarmClose
		}
	}

	// Soften the level when the closing speed at the minimum is small.
	sqspeed := 0
	if rval > AlarmNone {
		sqspeed = vxmin*vxmin + vymin*vymin
		if sqspeed < 6*6*4*4 {
			rval--
			if sqspeed < 4*4*4*4 {
				rval--
				if sqspeed < 2*2*4*4 {
					rval--
				}
			}
		}
	}
	if rval < AlarmNone {
		rval = AlarmNone
	}

	if rval >= AlarmLow && mintime < AlarmTimeExtreme && fop.AlertLevel > AlarmNone {
		fop.AlertLevel--
	}

	if rval > AlarmClose || fop.Distance < 300 || minsqdist < 120*120*4*4 {
		if w.cfg.DebugAlarm && w.telemetry != nil {
			w.telemetry.LatestDebug(host, fop, rval, mintime, minsqdist, sqspeed)
		}
	}

	return rval
}

// expand replicates six 3 s velocity samples into eighteen 1 s steps plus
// one extrapolated second, optionally scaled by the zoom decay factor.
func expand(px, py *[19]int, ew, ns [6]int16, scaled bool, factor int) {
	k := 0
	var vx, vy int
	for i := 0; i < 6; i++ {
		vx = int(ew[i])
		vy = int(ns[i])
		if scaled {
			vx = (vx * factor) >> 6
			vy = (vy * factor) >> 6
		}
		for j := 0; j < 3; j++ {
			px[k] = vx
			py[k] = vy
			k++
		}
	}
	px[18] = vx
	py[18] = vy
}

// alarmLevel dispatches on the configured algorithm.
func (w *World) alarmLevel(fop *Slot) AlarmLevel {
	switch w.cfg.Algorithm {
	case AlgorithmNone:
		return AlarmNone
	case AlgorithmDistance:
		return w.alarmDistance(fop)
	case AlgorithmVector:
		return w.alarmVector(fop)
	default:
		return w.alarmLatest(fop)
	}
}

func abs8(v int8) int8 {
	if v < 0 {
		return -v
	}
	return v
}
