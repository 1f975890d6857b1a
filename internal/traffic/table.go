package traffic

import (
	"math"

	"trafficwarn/internal/geo"
	"trafficwarn/internal/identity"
)

// copyReport overwrites the slot's report fields while preserving history
// and statistics. A callsign already on file wins over an empty incoming one;
// an ICAO address with no callsign at all gets a computed registration when
// operating on the North American band.
func (w *World) copyReport(cip *Slot, rpt *Report) {
	callsign := cip.Callsign
	cip.Report = *rpt
	if rpt.Callsign == "" && callsign != "" {
		cip.Callsign = callsign
	}
	if cip.Callsign == "" && cip.AddrType == AddrTypeICAO && w.cfg.NorthAmerica {
		cip.Callsign = identity.FromICAO(cip.Addr)
	}
}

// computeGeo refreshes the slot's position relative to the host.
func (w *World) computeGeo(cip *Slot) {
	o := geo.Relative(w.cos, w.Host.Latitude, w.Host.Longitude, cip.Latitude, cip.Longitude)
	cip.Dx = o.Dx
	cip.Dy = o.Dy
	cip.Distance = o.Distance
	cip.Bearing = o.Bearing
	cip.AltDiff = cip.Altitude - w.Host.Altitude
}

func (w *World) considerRelay(nowMs int64, cip *Slot) {
	if w.relayer != nil {
		w.relayer.Consider(nowMs, &w.Host, cip)
	}
}

// Add admits one decoded report to the tracking table. It either refreshes
// the existing entry for the same address, claims an empty or expired slot,
// or evicts the farthest-away tracked object when the table is full and the
// newcomer is closer. A full table with nothing farther away drops the
// report on the floor.
func (w *World) Add(nowSec, nowMs int64, rpt *Report) {
	for i := range w.Table {
		cip := &w.Table[i]
		if cip.Addr != rpt.Addr || cip.Empty() {
			continue
		}

		fopExternal := rpt.Protocol.External()
		cipExternal := cip.Protocol.External()

		switch {
		case fopExternal && !cipExternal:
			// Ignore external data about aircraft we also hear directly,
			// unless the direct copy itself arrived via relay.
			if !cip.Relayed && nowSec <= cip.Timestamp+EntryExpirationSec {
				return
			}
		case cipExternal && !fopExternal:
			// Direct data overwrites external data, but a relayed packet
			// may itself have originated as ADS-B, so it does not.
			if rpt.Relayed && nowSec <= cip.Timestamp+EntryExpirationSec {
				return
			}
		case cipExternal && fopExternal:
			// Both external: prefer direct ADS-B over TIS-B.
			if rpt.TxType == TxTypeTISB && cip.TxType > TxTypeTISB &&
				nowSec <= cip.Timestamp+EntryExpirationSec {
				return
			}
		}

		// A repeated identical position is the second time slot of the same
		// transmission. Keep the entry alive but do not disturb history.
		if rpt.Altitude == cip.Altitude &&
			rpt.Latitude == cip.Latitude &&
			rpt.Longitude == cip.Longitude {
			cip.LastCRC = rpt.LastCRC
			cip.Timestamp = rpt.Timestamp
			w.considerRelay(nowMs, cip)
			return
		}

		// Rotate the two-snapshot history when packets are spaced far
		// enough apart, or when the stored history has gone stale.
		if rpt.GNSSTimeMs-cip.GNSSTimeMs > 1200 ||
			rpt.GNSSTimeMs-cip.PrevTimeMs > 2600 {
			cip.PrevTimeMs = cip.GNSSTimeMs
			cip.PrevCourse = cip.Course
			cip.PrevHeading = cip.Heading
			cip.PrevAltitude = cip.Altitude
		}

		if cip.AircraftType != AircraftUnknown && rpt.LandedOut() {
			if w.events != nil {
				w.events.LandedOut(nowSec, cip)
			}
		}

		w.copyReport(cip, rpt)
		w.computeGeo(cip)
		w.update(nowSec, nowMs, cip)
		w.considerRelay(nowMs, cip)
		return
	}

	// New object.
	if rpt.LandedOut() && w.events != nil {
		newcomer := Slot{Report: *rpt}
		w.events.LandedOut(nowSec, &newcomer)
	}

	for i := range w.Table {
		if w.Table[i].Empty() {
			cip := &w.Table[i]
			*cip = Slot{}
			w.copyReport(cip, rpt)
			w.computeGeo(cip)
			w.update(nowSec, nowMs, cip)
			if w.sampler != nil {
				w.sampler.Sample(&w.Host, cip)
			}
			w.considerRelay(nowMs, cip)
			return
		}
	}

	for i := range w.Table {
		if nowSec > w.Table[i].Timestamp+EntryExpirationSec {
			cip := &w.Table[i]
			*cip = Slot{}
			w.copyReport(cip, rpt)
			w.computeGeo(cip)
			w.update(nowSec, nowMs, cip)
			w.considerRelay(nowMs, cip)
			return
		}
	}

	// Table full. The newcomer's alarm level cannot be computed yet, so
	// assume that if it deserves one it is probably closer than something
	// already tracked. Find the farthest unprotected entry.
	maxDistNdx := -1
	maxDist := 0.0
	for i := range w.Table {
		c := &w.Table[i]
		if c.AlarmLevel != AlarmNone || c.Addr == w.cfg.FollowID || c.Relayed {
			continue
		}
		adj := c.AdjDistance
		if adj < c.Distance {
			adj = c.Distance
		}
		if adj > maxDist {
			maxDistNdx = i
			maxDist = adj
		}
	}

	o := geo.Relative(w.cos, w.Host.Latitude, w.Host.Longitude, rpt.Latitude, rpt.Longitude)
	altDiff := rpt.Altitude - w.Host.Altitude
	adjDistance := o.Distance + VerticalSlope*math.Abs(altDiff)
	if maxDistNdx >= 0 &&
		(adjDistance < maxDist || rpt.Addr == w.cfg.FollowID || rpt.Relayed) {
		cip := &w.Table[maxDistNdx]
		*cip = Slot{}
		w.copyReport(cip, rpt)
		cip.Dx = o.Dx
		cip.Dy = o.Dy
		cip.Distance = o.Distance
		cip.Bearing = o.Bearing
		cip.AltDiff = altDiff
		w.update(nowSec, nowMs, cip)
		w.considerRelay(nowMs, cip)
	}
	// Otherwise ignore the new object.
}
