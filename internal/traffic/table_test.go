package traffic

import (
	"fmt"
	"testing"
)

func directReport(addr uint32, distM float64, nowSec int64) Report {
	return Report{
		Addr:         addr,
		AddrType:     AddrTypeICAO,
		TxType:       TxTypeFLARM,
		Protocol:     ProtocolLegacy,
		AircraftType: AircraftGlider,
		Latitude:     latNorthOf(47.0, distM),
		Longitude:    8.0,
		Altitude:     1000,
		Speed:        60,
		Course:       180,
		Airborne:     true,
		Timestamp:    nowSec,
		GNSSTimeMs:   nowSec * 1000,
	}
}

func (w *World) findSlot(addr uint32) *Slot {
	for i := range w.Table {
		if w.Table[i].Addr == addr {
			return &w.Table[i]
		}
	}
	return nil
}

func TestAddComputesGeometry(t *testing.T) {
	const nowSec = 2000
	w := NewWorld(Config{}, Hooks{})
	w.UpdateHost(testHost(nowSec))

	rpt := directReport(0x3E5001, 800, nowSec)
	w.Add(nowSec, nowSec*1000, &rpt)

	fop := w.findSlot(0x3E5001)
	if fop == nil {
		t.Fatal("target not admitted")
	}
	if fop.Distance < 799 || fop.Distance > 801 {
		t.Fatalf("Distance = %v, want ~800", fop.Distance)
	}
	if fop.Dy < 799 || fop.Dy > 801 {
		t.Fatalf("Dy = %v, want ~800", fop.Dy)
	}
	if fop.Bearing > 1 && fop.Bearing < 359 {
		t.Fatalf("Bearing = %v, want ~0", fop.Bearing)
	}
}

func TestComputedCallsign(t *testing.T) {
	const nowSec = 2000
	w := NewWorld(Config{NorthAmerica: true}, Hooks{})
	w.UpdateHost(testHost(nowSec))

	rpt := directReport(0xA00001, 800, nowSec)
	w.Add(nowSec, nowSec*1000, &rpt)
	if got := w.findSlot(0xA00001).Callsign; got != "N1?" {
		t.Fatalf("computed callsign %q, want N1?", got)
	}

	// A received callsign survives later packets without one.
	rpt2 := directReport(0xA00002, 800, nowSec)
	rpt2.Callsign = "GRACE"
	w.Add(nowSec, nowSec*1000, &rpt2)
	rpt3 := directReport(0xA00002, 700, nowSec+1)
	w.Add(nowSec+1, (nowSec+1)*1000, &rpt3)
	if got := w.findSlot(0xA00002).Callsign; got != "GRACE" {
		t.Fatalf("callsign lost on refresh: %q", got)
	}
}

func TestDuplicatePositionOnlyRefreshes(t *testing.T) {
	const nowSec = 2000
	w := NewWorld(Config{}, Hooks{})
	w.UpdateHost(testHost(nowSec))

	rpt := directReport(0x3E5002, 800, nowSec)
	w.Add(nowSec, nowSec*1000, &rpt)

	dup := rpt
	dup.Timestamp = nowSec + 1
	dup.GNSSTimeMs = nowSec*1000 + 2000
	dup.LastCRC = 0xBEEF
	w.Add(nowSec+1, nowSec*1000+2000, &dup)

	fop := w.findSlot(0x3E5002)
	if fop.Timestamp != nowSec+1 || fop.LastCRC != 0xBEEF {
		t.Fatal("duplicate position did not refresh liveness")
	}
	if fop.GNSSTimeMs != nowSec*1000 {
		t.Fatal("duplicate position must not disturb the packet time")
	}
	if fop.PrevTimeMs != 0 {
		t.Fatal("duplicate position must not rotate history")
	}
}

func TestHistoryRotation(t *testing.T) {
	const nowSec = 2000
	w := NewWorld(Config{}, Hooks{})
	w.UpdateHost(testHost(nowSec))

	rpt := directReport(0x3E5003, 800, nowSec)
	rpt.Course = 170
	w.Add(nowSec, nowSec*1000, &rpt)

	// An empty history counts as stale, so the first refresh rotates even
	// though the packets are only 1000 ms apart.
	quick := directReport(0x3E5003, 790, nowSec)
	quick.GNSSTimeMs = nowSec*1000 + 1000
	w.Add(nowSec, nowSec*1000+1000, &quick)
	fop := w.findSlot(0x3E5003)
	if fop.PrevTimeMs != nowSec*1000 {
		t.Fatalf("PrevTimeMs = %d after quick refresh", fop.PrevTimeMs)
	}
	if fop.PrevCourse != 170 {
		t.Fatalf("PrevCourse = %v, want 170", fop.PrevCourse)
	}

	// Far enough apart: history rotates to the previous packet.
	later := directReport(0x3E5003, 700, nowSec+2)
	later.GNSSTimeMs = nowSec*1000 + 2500
	w.Add(nowSec+2, nowSec*1000+2500, &later)
	if fop.PrevTimeMs != nowSec*1000+1000 {
		t.Fatalf("PrevTimeMs = %d, want %d", fop.PrevTimeMs, nowSec*1000+1000)
	}
}

func TestExternalDoesNotOverrideDirect(t *testing.T) {
	const nowSec = 2000
	w := NewWorld(Config{}, Hooks{})
	w.UpdateHost(testHost(nowSec))

	rpt := directReport(0x3E5004, 800, nowSec)
	w.Add(nowSec, nowSec*1000, &rpt)

	adsb := directReport(0x3E5004, 700, nowSec+1)
	adsb.Protocol = ProtocolADSB1090
	adsb.TxType = TxTypeADSB
	w.Add(nowSec+1, (nowSec+1)*1000, &adsb)

	fop := w.findSlot(0x3E5004)
	if fop.Protocol != ProtocolLegacy {
		t.Fatalf("external data replaced a fresh direct track (protocol %v)", fop.Protocol)
	}
}

func TestDirectOverridesExternal(t *testing.T) {
	const nowSec = 2000
	w := NewWorld(Config{}, Hooks{})
	w.UpdateHost(testHost(nowSec))

	adsb := directReport(0x3E5005, 800, nowSec)
	adsb.Protocol = ProtocolADSB1090
	adsb.TxType = TxTypeADSB
	w.Add(nowSec, nowSec*1000, &adsb)

	rpt := directReport(0x3E5005, 700, nowSec+1)
	w.Add(nowSec+1, (nowSec+1)*1000, &rpt)

	fop := w.findSlot(0x3E5005)
	if fop.Protocol != ProtocolLegacy {
		t.Fatalf("direct packet did not take over (protocol %v)", fop.Protocol)
	}
}

func TestDirectADSBPreferredOverTISB(t *testing.T) {
	const nowSec = 2000
	w := NewWorld(Config{}, Hooks{})
	w.UpdateHost(testHost(nowSec))

	adsb := directReport(0x3E5006, 800, nowSec)
	adsb.Protocol = ProtocolADSB1090
	adsb.TxType = TxTypeADSB
	w.Add(nowSec, nowSec*1000, &adsb)

	tisb := directReport(0x3E5006, 700, nowSec+1)
	tisb.Protocol = ProtocolADSB1090
	tisb.TxType = TxTypeTISB
	w.Add(nowSec+1, (nowSec+1)*1000, &tisb)

	if got := w.findSlot(0x3E5006).TxType; got != TxTypeADSB {
		t.Fatalf("TIS-B replaced direct ADS-B (tx type %v)", got)
	}
}

func TestFullTableEvictsFarthest(t *testing.T) {
	const nowSec = 2000
	host := testHost(nowSec)
	host.Airborne = false // keep alarm levels at none
	w := NewWorld(Config{}, Hooks{})
	w.UpdateHost(host)

	for i := 0; i < MaxTrackingObjects; i++ {
		rpt := directReport(uint32(0x400000+i), 2000+float64(i)*100, nowSec)
		w.Add(nowSec, nowSec*1000, &rpt)
	}
	if w.Occupied() != MaxTrackingObjects {
		t.Fatalf("table not full: %d", w.Occupied())
	}
	farthest := uint32(0x400000 + MaxTrackingObjects - 1)

	closer := directReport(0x500000, 1500, nowSec)
	w.Add(nowSec, nowSec*1000, &closer)
	if w.findSlot(0x500000) == nil {
		t.Fatal("closer newcomer rejected")
	}
	if w.findSlot(farthest) != nil {
		t.Fatal("farthest entry was not evicted")
	}

	// A newcomer farther than everything tracked is dropped.
	far := directReport(0x500001, 99000, nowSec)
	w.Add(nowSec, nowSec*1000, &far)
	if w.findSlot(0x500001) != nil {
		t.Fatal("distant newcomer admitted to a full table of closer traffic")
	}
}

func TestFollowedTargetAlwaysAdmitted(t *testing.T) {
	const nowSec = 2000
	host := testHost(nowSec)
	host.Airborne = false
	w := NewWorld(Config{FollowID: 0x600001}, Hooks{})
	w.UpdateHost(host)

	for i := 0; i < MaxTrackingObjects; i++ {
		rpt := directReport(uint32(0x400000+i), 2000+float64(i)*100, nowSec)
		w.Add(nowSec, nowSec*1000, &rpt)
	}

	followed := directReport(0x600001, 99000, nowSec)
	w.Add(nowSec, nowSec*1000, &followed)
	if w.findSlot(0x600001) == nil {
		t.Fatal("followed target rejected from full table")
	}
}

func TestExpiredSlotReclaimed(t *testing.T) {
	const nowSec = 2000
	w := NewWorld(Config{}, Hooks{})
	w.UpdateHost(testHost(nowSec))

	for i := 0; i < MaxTrackingObjects; i++ {
		rpt := directReport(uint32(0x400000+i), 2000+float64(i)*100, nowSec)
		w.Add(nowSec, nowSec*1000, &rpt)
	}

	// Past everyone's expiration the newcomer claims a slot regardless of
	// distance.
	later := int64(nowSec + EntryExpirationSec + 1)
	rpt := directReport(0x700001, 99000, later)
	w.Add(later, later*1000, &rpt)
	if w.findSlot(0x700001) == nil {
		t.Fatal("newcomer could not reclaim an expired slot")
	}
}

type recordingEvents struct {
	landedOut []uint32
	records   []string
}

func (r *recordingEvents) AlarmRecord(nowSec int64, host *HostState, fop *Slot, count int) {}
func (r *recordingEvents) TrafficRecord(label string, nowSec int64, host *HostState, fop *Slot) {
	r.records = append(r.records, fmt.Sprintf("%s:%06X", label, fop.Addr))
}
func (r *recordingEvents) LandedOut(nowSec int64, fop *Slot) {
	r.landedOut = append(r.landedOut, fop.Addr)
}

func TestLandedOutTransitionReported(t *testing.T) {
	const nowSec = 2000
	ev := &recordingEvents{}
	w := NewWorld(Config{}, Hooks{Events: ev})
	w.UpdateHost(testHost(nowSec))

	rpt := directReport(0x3E5007, 800, nowSec)
	w.Add(nowSec, nowSec*1000, &rpt)

	down := directReport(0x3E5007, 820, nowSec+1)
	down.AircraftType = AircraftUnknown
	down.Airborne = false
	down.GNSSTimeMs = nowSec*1000 + 2000
	w.Add(nowSec+1, nowSec*1000+2000, &down)

	if len(ev.landedOut) != 1 || ev.landedOut[0] != 0x3E5007 {
		t.Fatalf("landed-out transition not reported: %v", ev.landedOut)
	}
}
