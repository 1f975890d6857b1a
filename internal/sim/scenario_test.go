package sim

import (
	"testing"
	"time"

	"trafficwarn/internal/traffic"
)

func TestScenario_ParseAndInterpolateAngleWrap(t *testing.T) {
	yaml := []byte(`
version: 1
# duration derived from last keyframe
ownship:
  icao: "DD0000"
  type: glider
  keyframes:
    - t: 0s
      lat_deg: 0
      lon_deg: 0
      alt_feet: 0
      ground_kt: 100
      track_deg: 350
    - t: 10s
      lat_deg: 10
      lon_deg: 20
      alt_feet: 1000
      ground_kt: 200
      track_deg: 10
`)

	script, err := ParseScript(yaml)
	if err != nil {
		t.Fatalf("ParseScript: %v", err)
	}
	scn, err := NewScenario(script)
	if err != nil {
		t.Fatalf("NewScenario: %v", err)
	}
	if scn.Duration() != 10*time.Second {
		t.Fatalf("duration: got %s want %s", scn.Duration(), 10*time.Second)
	}

	now := time.Date(2025, 12, 20, 19, 0, 0, 0, time.UTC)
	host := scn.HostAt(now, 5*time.Second, false)

	if host.Addr != 0xDD0000 {
		t.Fatalf("addr: got %06X", host.Addr)
	}
	// Track 350->10 should interpolate via the +20deg shortest path:
	// halfway is 0 degrees.
	if host.Course != 0 {
		t.Fatalf("track wrap interpolation: got %v want 0", host.Course)
	}
	if host.Latitude != 5 {
		t.Fatalf("lat interpolation: got %v want 5", host.Latitude)
	}
	if host.Longitude != 10 {
		t.Fatalf("lon interpolation: got %v want 10", host.Longitude)
	}
	if host.Altitude != 500*feetToMeters {
		t.Fatalf("alt interpolation: got %v want %v", host.Altitude, 500*feetToMeters)
	}
	if host.Speed != 150 {
		t.Fatalf("gs interpolation: got %v want 150", host.Speed)
	}
	if host.Timestamp != now.Unix() || host.GNSSTimeMs != now.UnixMilli() {
		t.Fatalf("timestamps: %d / %d", host.Timestamp, host.GNSSTimeMs)
	}
}

func TestScenario_LoopAndClamp(t *testing.T) {
	yaml := []byte(`
version: 1
duration: 10s
ownship:
  keyframes:
    - t: 0s
      lat_deg: 0
      lon_deg: 0
      alt_feet: 0
      ground_kt: 0
      track_deg: 0
    - t: 10s
      lat_deg: 10
      lon_deg: 0
      alt_feet: 0
      ground_kt: 0
      track_deg: 0
`)

	script, err := ParseScript(yaml)
	if err != nil {
		t.Fatalf("ParseScript: %v", err)
	}
	scn, err := NewScenario(script)
	if err != nil {
		t.Fatalf("NewScenario: %v", err)
	}

	now := time.Date(2025, 12, 20, 19, 0, 0, 0, time.UTC)

	// Clamp (no loop): 11s -> end state.
	host := scn.HostAt(now, 11*time.Second, false)
	if host.Latitude != 10 {
		t.Fatalf("clamp lat: got %v want 10", host.Latitude)
	}

	// Loop: 11s -> 1s.
	host2 := scn.HostAt(now, 11*time.Second, true)
	if host2.Latitude != 1 {
		t.Fatalf("loop lat: got %v want 1", host2.Latitude)
	}
}

func TestScenario_TrafficReports(t *testing.T) {
	yaml := []byte(`
version: 1
duration: 10s
ownship:
  icao: "DD0000"
  keyframes:
    - t: 0s
      lat_deg: 47
      lon_deg: 8
      alt_feet: 3300
      ground_kt: 80
      track_deg: 0
traffic:
  - icao: "DD0001"
    callsign: "TGT1"
    type: towplane
    keyframes:
      - t: 0s
        lat_deg: 47.01
        lon_deg: 8
        alt_feet: 3300
        ground_kt: 90
        track_deg: 180
  - callsign: "TGT2"
    keyframes:
      - t: 0s
        lat_deg: 47.02
        lon_deg: 8
        alt_feet: 3600
        ground_kt: 70
        track_deg: 90
        ground: true
`)

	script, err := ParseScript(yaml)
	if err != nil {
		t.Fatalf("ParseScript: %v", err)
	}
	scn, err := NewScenario(script)
	if err != nil {
		t.Fatalf("NewScenario: %v", err)
	}

	now := time.Date(2025, 12, 20, 19, 0, 0, 0, time.UTC)
	reps := scn.ReportsAt(now, 0, false)
	if len(reps) != 2 {
		t.Fatalf("expected 2 reports, got %d", len(reps))
	}

	if reps[0].Addr != 0xDD0001 {
		t.Fatalf("rep[0] addr: got %06X", reps[0].Addr)
	}
	if reps[0].Callsign != "TGT1" {
		t.Fatalf("rep[0] callsign: %q", reps[0].Callsign)
	}
	if reps[0].AircraftType != traffic.AircraftTowplane {
		t.Fatalf("rep[0] type: %d", reps[0].AircraftType)
	}
	if reps[0].TxType != traffic.TxTypeFLARM || reps[0].Protocol != traffic.ProtocolLatest {
		t.Fatalf("rep[0] identity: tx=%d proto=%d", reps[0].TxType, reps[0].Protocol)
	}
	if !reps[0].Airborne {
		t.Fatal("rep[0] should be airborne")
	}

	// Second target has no ICAO, so it gets a sequential address, and its
	// keyframe marks it on the ground.
	if reps[1].Addr != uint32(trafficBaseAddr+1) {
		t.Fatalf("rep[1] addr: got %06X", reps[1].Addr)
	}
	if reps[1].Airborne {
		t.Fatal("rep[1] should be on the ground")
	}
}

func TestScenario_Validation(t *testing.T) {
	cases := []struct {
		name   string
		script Script
	}{
		{"no ownship keyframes", Script{Version: 1}},
		{"bad version", Script{Version: 2, Ownship: ScriptAircraft{Keyframes: []Keyframe{{}}}}},
		{"bad icao", Script{Version: 1, Ownship: ScriptAircraft{ICAO: "xyz", Keyframes: []Keyframe{{}}}}},
		{"unsorted keyframes", Script{Version: 1, Ownship: ScriptAircraft{Keyframes: []Keyframe{
			{T: 5 * time.Second}, {T: 2 * time.Second},
		}}}},
		{"traffic without keyframes", Script{Version: 1,
			Ownship: ScriptAircraft{Keyframes: []Keyframe{{T: time.Second}}},
			Traffic: []ScriptAircraft{{ICAO: "DD0001"}},
		}},
	}
	for _, tc := range cases {
		if _, err := NewScenario(tc.script); err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
	}
}
