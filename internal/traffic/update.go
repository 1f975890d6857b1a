package traffic

import (
	"math"

	"trafficwarn/internal/geo"
)

// update recomputes the slot's derived fields and alarm level after its
// position fields and relative geometry have been refreshed. It also runs
// the per-target alert hysteresis and the global re-arm timer decay.
func (w *World) update(nowSec, nowMs int64, fop *Slot) {
	if fop.TxType <= TxTypeS { // non-directional target

		fop.AdjAltDiff = fop.AltDiff
		fop.AdjDistance = fop.Distance + VerticalSlope*math.Abs(fop.AltDiff)
		fop.RelativeHeading = 0
		if fop.Protocol == ProtocolADSB1090 {
			if fop.MaxRSSI == 0 || fop.RSSI > fop.MaxRSSI {
				fop.MaxRSSI = fop.RSSI
				fop.MaxRSSIRelAlt = fop.AltDiff
			}
		}
		if !w.Host.Airborne {
			fop.AlarmLevel = AlarmNone
			return
		}

	} else {

		fop.RelativeHeading = geo.RelativeHeading(fop.Bearing, w.Host.Heading)

		if fop.Protocol == ProtocolADSB1090 {
			if fop.MinDist == 0 || fop.Distance < fop.MinDist {
				fop.MinDist = fop.Distance
				fop.MinDistRSSI = fop.RSSI
			}
			if fop.MaxRSSI == 0 || fop.RSSI > fop.MaxRSSI {
				fop.MaxRSSI = fop.RSSI
				fop.MaxRSSIRelAlt = fop.AltDiff
			}
		}

		adj := adjAltDiff(&w.Host, fop)
		fop.AdjAltDiff = adj
		fop.AdjDistance = fop.Distance + VerticalSlope*math.Abs(adj)

		// Per FLARM guidance no alarms are issued about targets on the
		// ground, nor while the host itself is on the ground.
		if (!fop.Airborne || !w.Host.Airborne) && !w.cfg.AlarmDemo {
			fop.AlarmLevel = AlarmNone
			return
		}

		// Skip alarm computation on stale data.
		if nowSec > w.Host.Timestamp+2 || nowSec > fop.Timestamp+2 {
			return
		}
	}

	old := fop.AlarmLevel
	fop.AlarmLevel = w.alarmLevel(fop)

	// Sound an alarm on a new alert, or when closer than the previous
	// alert, or (hysteresis) after backing off two levels and returning.
	// E.g. an alert at LOW latches alert_level at LOW; a new alert sounds
	// once the target becomes IMPORTANT. Dropping to CLOSE and back to LOW
	// stays silent, but dropping to NONE resets the latch to CLOSE so the
	// next LOW alarm sounds again.
	if fop.AlarmLevel < fop.AlertLevel {
		fop.AlertLevel = fop.AlarmLevel + 1
	}

	if w.alarmTimerMs != 0 && nowMs > w.alarmTimerMs {
		if fop.AlertLevel > AlarmNone {
			fop.AlertLevel--
		}
		w.alarmTimerMs = 0
	}

	if fop.AlarmLevel > old && w.events != nil {
		w.events.TrafficRecord("LPLTA", nowSec, &w.Host, fop)
	}
}
