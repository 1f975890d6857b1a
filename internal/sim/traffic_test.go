package sim

import (
	"math"
	"testing"
	"time"

	"trafficwarn/internal/traffic"
)

func TestTrafficSim_ReportsAt_CountAndInvariants(t *testing.T) {
	s := TrafficSim{
		CenterLatDeg: 45.0,
		CenterLonDeg: -122.0,
		BaseAltFeet:  4500,
		GroundKt:     120,
		RadiusNm:     2.0,
		Period:       90 * time.Second,
	}

	now := time.Date(2025, 12, 20, 19, 0, 0, 0, time.UTC)
	reps := s.ReportsAt(now, 5)
	if len(reps) != 5 {
		t.Fatalf("expected 5 reports, got %d", len(reps))
	}

	radiusDeg := s.RadiusNm / 60.0
	maxLonDeg := radiusDeg / math.Cos(s.CenterLatDeg*math.Pi/180.0)

	for i, rep := range reps {
		if rep.Addr != uint32(trafficBaseAddr+i) {
			t.Fatalf("rep[%d] addr: got %06X", i, rep.Addr)
		}
		if rep.TxType != traffic.TxTypeFLARM || rep.Protocol != traffic.ProtocolLatest {
			t.Fatalf("rep[%d] identity: tx=%d proto=%d", i, rep.TxType, rep.Protocol)
		}
		if !rep.Airborne {
			t.Fatalf("rep[%d] not airborne", i)
		}
		if rep.Speed != 120 {
			t.Fatalf("rep[%d] speed: got %v", i, rep.Speed)
		}
		if rep.Course < 0 || rep.Course >= 360 {
			t.Fatalf("rep[%d] course out of range: %v", i, rep.Course)
		}
		if math.Abs(rep.Latitude-s.CenterLatDeg) > radiusDeg*1.01 {
			t.Fatalf("rep[%d] lat offset too large", i)
		}
		if math.Abs(rep.Longitude-s.CenterLonDeg) > maxLonDeg*1.01 {
			t.Fatalf("rep[%d] lon offset too large", i)
		}
	}

	// Altitude staggering: 300 ft steps around the base.
	wantAlt0 := float64(4500+(0-5/2)*300) * feetToMeters
	if math.Abs(reps[0].Altitude-wantAlt0) > 0.01 {
		t.Fatalf("rep[0] altitude: got %v want %v", reps[0].Altitude, wantAlt0)
	}
	if reps[1].Altitude-reps[0].Altitude < 1 {
		t.Fatalf("expected staggered altitudes: %v then %v", reps[0].Altitude, reps[1].Altitude)
	}
}

func TestTrafficSim_ReportsAt_ZeroCountNil(t *testing.T) {
	s := TrafficSim{}
	if got := s.ReportsAt(time.Now(), 0); got != nil {
		t.Fatalf("expected nil for count=0")
	}
	if got := s.ReportsAt(time.Now(), -1); got != nil {
		t.Fatalf("expected nil for count<0")
	}
}
