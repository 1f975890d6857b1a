package traffic

import "testing"

type recordingNotifier struct {
	buzzes []AlarmLevel
	multi  []bool
}

func (n *recordingNotifier) Buzzer(level AlarmLevel, multiple bool) bool {
	n.buzzes = append(n.buzzes, level)
	n.multi = append(n.multi, multiple)
	return true
}

func (n *recordingNotifier) Voice(host *HostState, fop *Slot, multiple bool) bool {
	return false
}

type recordingTelemetry struct {
	notices []uint32
}

func (r *recordingTelemetry) AlarmNotice(host *HostState, fop *Slot, multiple bool) {
	r.notices = append(r.notices, fop.Addr)
}
func (r *recordingTelemetry) VectorDebug(host *HostState, fop *Slot, level AlarmLevel, relSpeed, relDir, t float64) {
}
func (r *recordingTelemetry) LatestDebug(host *HostState, fop *Slot, level AlarmLevel, minTime, minSqDist, sqSpeed int) {
}
func (r *recordingTelemetry) ADSBStats(fop *Slot) {}

func TestTickRateLimited(t *testing.T) {
	w := NewWorld(Config{}, Hooks{})
	w.Tick(1000, 1000000)
	if w.lastTickMs != 1000000 {
		t.Fatal("first tick did not run")
	}
	w.Tick(1000, 1000300)
	if w.lastTickMs != 1000000 {
		t.Fatal("tick ran again inside the 500 ms window")
	}
	w.Tick(1000, 1000500)
	if w.lastTickMs != 1000500 {
		t.Fatal("tick did not run after the window elapsed")
	}
}

func TestTickExpiresEntries(t *testing.T) {
	const nowSec = 2000
	w := NewWorld(Config{}, Hooks{})
	w.UpdateHost(testHost(nowSec))

	dir := directReport(0x3E6001, 800, nowSec)
	w.Add(nowSec, nowSec*1000, &dir)

	nondir := directReport(0x3E6002, 900, nowSec)
	nondir.TxType = TxTypeS
	w.Add(nowSec, nowSec*1000, &nondir)

	// Bearingless targets expire after five seconds, directional after ten.
	w.Tick(nowSec+NonDirExpirationSec+1, (nowSec+NonDirExpirationSec+1)*1000)
	if w.findSlot(0x3E6002) != nil {
		t.Fatal("bearingless target survived past its expiration")
	}
	if w.findSlot(0x3E6001) == nil {
		t.Fatal("directional target expired too early")
	}

	w.Tick(nowSec+EntryExpirationSec+1, (nowSec+EntryExpirationSec+1)*1000)
	if w.findSlot(0x3E6001) != nil {
		t.Fatal("directional target survived past its expiration")
	}
}

func TestTickNotifiesOnceAndLatches(t *testing.T) {
	const nowSec = 1000
	notifier := &recordingNotifier{}
	telem := &recordingTelemetry{}
	w := NewWorld(Config{Algorithm: AlgorithmVector}, Hooks{Notifier: notifier, Telemetry: telem})
	w.UpdateHost(testHost(nowSec))

	// Head-on target from the vector scenario ends up urgent.
	rpt := directReport(0x123456, 800, nowSec)
	rpt.Speed = 80
	w.Add(nowSec, nowSec*1000, &rpt)
	rpt2 := rpt
	rpt2.Latitude = latNorthOf(47.0, 800-1.5*80*KnotsToMps)
	rpt2.Timestamp = nowSec + 1
	rpt2.GNSSTimeMs = nowSec*1000 + 1500
	w.Add(nowSec+1, nowSec*1000+1500, &rpt2)

	w.Tick(nowSec+1, nowSec*1000+1600)

	if len(notifier.buzzes) != 1 || notifier.buzzes[0] != AlarmUrgent {
		t.Fatalf("buzzer calls %v, want one urgent", notifier.buzzes)
	}
	if notifier.multi[0] {
		t.Fatal("single target flagged as multiple")
	}
	if len(telem.notices) != 1 || telem.notices[0] != 0x123456 {
		t.Fatalf("advisory notices %v", telem.notices)
	}
	fop := w.findSlot(0x123456)
	if fop.AlertLevel != AlarmUrgent {
		t.Fatalf("alert level not latched: %v", fop.AlertLevel)
	}
	if w.alarmTimerMs != nowSec*1000+1600+RearmMillis {
		t.Fatalf("re-arm timer = %d", w.alarmTimerMs)
	}
	if w.MaxAlarmLevel != AlarmUrgent {
		t.Fatalf("MaxAlarmLevel = %v", w.MaxAlarmLevel)
	}
	if !w.AlarmAhead {
		t.Fatal("target dead ahead did not set AlarmAhead")
	}

	// Same alarm level on the next tick stays silent.
	w.Tick(nowSec+1, nowSec*1000+2100)
	if len(notifier.buzzes) != 1 {
		t.Fatalf("latched alarm sounded again: %v", notifier.buzzes)
	}
}

func TestTickSkipsStaleVectors(t *testing.T) {
	const nowSec = 2000
	w := NewWorld(Config{}, Hooks{})
	w.UpdateHost(testHost(nowSec))

	rpt := directReport(0x3E6003, 800, nowSec)
	w.Add(nowSec, nowSec*1000, &rpt)
	fop := w.findSlot(0x3E6003)
	fop.AlarmLevel = AlarmUrgent // stale level from an old update

	w.Tick(nowSec+VectorUpdateIntervalSec, (nowSec+VectorUpdateIntervalSec)*1000)
	if w.MaxAlarmLevel != AlarmNone {
		t.Fatal("stale entry contributed to the displayed alarm level")
	}
}

func TestCountAndByDistance(t *testing.T) {
	const nowSec = 2000
	w := NewWorld(Config{}, Hooks{})
	w.UpdateHost(testHost(nowSec))

	near := directReport(0x3E6004, 600, nowSec)
	near.RSSI = -40
	w.Add(nowSec, nowSec*1000, &near)

	far := directReport(0x3E6005, 1800, nowSec)
	far.RSSI = -70
	w.Add(nowSec, nowSec*1000, &far)

	adsb := directReport(0x3E6006, 1200, nowSec)
	adsb.Protocol = ProtocolADSB1090
	adsb.TxType = TxTypeADSB
	adsb.RSSI = -10
	w.Add(nowSec, nowSec*1000, &adsb)

	c := w.Count(nowSec)
	if c.Occupied != 3 || c.Radio != 2 || c.External != 1 {
		t.Fatalf("census = %+v", c)
	}
	if c.MaxRSSI != -40 {
		t.Fatalf("MaxRSSI = %d, want -40 (external sources excluded)", c.MaxRSSI)
	}

	byDist := w.ByDistance(nowSec)
	if len(byDist) != 3 {
		t.Fatalf("snapshot length %d", len(byDist))
	}
	if byDist[0].Addr != 0x3E6004 || byDist[2].Addr != 0x3E6005 {
		t.Fatalf("snapshot out of order: %06X %06X %06X",
			byDist[0].Addr, byDist[1].Addr, byDist[2].Addr)
	}
}
