package traffic

// TickIntervalMs is the cadence of the traffic loop.
const TickIntervalMs = 500

// Tick runs one pass of the periodic traffic loop: expires stale entries,
// refreshes the displayed aggregates and sounds at most one notification,
// picking the most severe target that has passed the hysteresis gate.
func (w *World) Tick(nowSec, nowMs int64) {
	if nowMs < w.lastTickMs+TickIntervalMs {
		return
	}
	w.lastTickMs = nowMs

	var mfop *Slot
	w.MaxAlarmLevel = AlarmNone
	w.AlarmAhead = false
	soundLevel := AlarmNone
	alarmCount := 0

	for i := range w.Table {
		fop := &w.Table[i]
		if fop.Empty() {
			continue
		}

		if fop.Expired(nowSec) {
			if fop.Protocol == ProtocolADSB1090 && w.cfg.DebugDeeper && w.telemetry != nil {
				w.telemetry.ADSBStats(fop)
			}
			if w.sampler != nil {
				w.sampler.Sample(&w.Host, fop)
			}
			fop.Addr = 0
			continue
		}

		// Skip entries whose derived fields have not been refreshed
		// recently enough for the alarm level to be trusted.
		if nowSec-fop.Timestamp >= VectorUpdateIntervalSec {
			continue
		}

		if fop.AlarmLevel > w.MaxAlarmLevel {
			w.MaxAlarmLevel = fop.AlarmLevel
		}

		// Traffic ahead with at least a low-level alarm drives the
		// strobe into its faster pattern.
		if fop.AlarmLevel >= AlarmLow && abs(fop.RelativeHeading) < 45 {
			w.AlarmAhead = true
		}

		if fop.AlarmLevel > fop.AlertLevel && fop.AlarmLevel > AlarmClose {
			alarmCount++
			if fop.AlarmLevel > soundLevel {
				soundLevel = fop.AlarmLevel
				mfop = fop
			}
		}
	}

	if soundLevel <= AlarmClose {
		return
	}

	multiple := alarmCount > 1
	if w.notifier != nil {
		w.notifier.Buzzer(soundLevel, multiple)
		w.notifier.Voice(&w.Host, mfop, multiple)
	}

	// Advisory output follows the same hysteresis as the sounds. External
	// displays driven by the plain traffic reports run their own logic and
	// are unaffected.
	if w.telemetry != nil {
		w.telemetry.AlarmNotice(&w.Host, mfop, multiple)
	}

	mfop.AlertLevel = mfop.AlarmLevel
	if w.alarmTimerMs == 0 {
		w.alarmTimerMs = nowMs + RearmMillis
	}

	if w.events != nil {
		w.events.AlarmRecord(nowSec, &w.Host, mfop, alarmCount)
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
