package gps

import (
	"math"
	"testing"
	"time"
)

func TestGPSDDecoder_TPVFix(t *testing.T) {
	var d gpsdDecoder
	now := time.Date(2025, 12, 22, 12, 0, 5, 0, time.UTC)

	// scaled=true stream: speed/climb m/s, altitude meters.
	line := `{"class":"TPV","mode":3,"time":"2025-12-22T12:00:00.000Z","lat":45.5,"lon":-122.9,"altMSL":100.0,"speed":50.0,"track":270.0,"climb":1.0,"eph":4.2}`
	changed, err := d.feed(now, line)
	if err != nil {
		t.Fatalf("feed: %v", err)
	}
	if !changed || !d.haveFix {
		t.Fatalf("expected a fix, changed=%v haveFix=%v", changed, d.haveFix)
	}

	if math.Abs(d.fix.LatDeg-45.5) > 1e-9 || math.Abs(d.fix.LonDeg-(-122.9)) > 1e-9 {
		t.Fatalf("lat/lon = %v/%v", d.fix.LatDeg, d.fix.LonDeg)
	}
	// 50 m/s is 97.19 kt.
	if !d.fix.HasSpeed || math.Abs(d.fix.GroundKt-97.192) > 0.01 {
		t.Fatalf("ground speed = %v kt", d.fix.GroundKt)
	}
	if !d.fix.HasTrack || math.Abs(d.fix.TrackDeg-270.0) > 1e-9 {
		t.Fatalf("track = %v", d.fix.TrackDeg)
	}
	// 1 m/s climb is 196.85 ft/min.
	if !d.fix.HasClimb || math.Abs(d.fix.ClimbFPM-196.85) > 0.01 {
		t.Fatalf("climb = %v fpm", d.fix.ClimbFPM)
	}
	if !d.fix.HasAlt || math.Abs(d.fix.AltM-100.0) > 1e-9 {
		t.Fatalf("altitude = %v m", d.fix.AltM)
	}
	if !d.fix.HasHAcc || math.Abs(d.fix.HorizAccM-4.2) > 1e-9 {
		t.Fatalf("horizontal accuracy = %v", d.fix.HorizAccM)
	}

	// The fix timestamp comes from the TPV, not the local clock.
	want := time.Date(2025, 12, 22, 12, 0, 0, 0, time.UTC)
	if !d.fix.Time.Equal(want) {
		t.Fatalf("fix time = %v want %v", d.fix.Time, want)
	}

	h := d.health("127.0.0.1:2947")
	if h.FixMode == nil || *h.FixMode != 3 {
		t.Fatalf("fix mode = %+v", h.FixMode)
	}
	if h.LastFixUTC == "" {
		t.Fatalf("expected last fix timestamp")
	}
}

func TestGPSDDecoder_NoFixBelow2D(t *testing.T) {
	var d gpsdDecoder
	line := `{"class":"TPV","mode":1,"lat":45.5,"lon":-122.9}`
	changed, err := d.feed(time.Now().UTC(), line)
	if err != nil {
		t.Fatalf("feed: %v", err)
	}
	if !changed {
		t.Fatalf("mode should still be recorded")
	}
	if d.haveFix {
		t.Fatalf("mode 1 must not produce a fix")
	}
}

func TestGPSDDecoder_EpxEpyFallback(t *testing.T) {
	var d gpsdDecoder
	line := `{"class":"TPV","mode":2,"lat":45.5,"lon":-122.9,"epx":3.0,"epy":4.0}`
	if _, err := d.feed(time.Now().UTC(), line); err != nil {
		t.Fatalf("feed: %v", err)
	}
	if !d.fix.HasHAcc || math.Abs(d.fix.HorizAccM-5.0) > 1e-9 {
		t.Fatalf("horizontal accuracy = %v (has=%v)", d.fix.HorizAccM, d.fix.HasHAcc)
	}
}

func TestGPSDDecoder_SKY(t *testing.T) {
	var d gpsdDecoder
	line := `{"class":"SKY","hdop":0.9,"satellites":[{"used":true},{"used":false},{"used":true}]}`
	changed, err := d.feed(time.Now().UTC(), line)
	if err != nil {
		t.Fatalf("feed: %v", err)
	}
	if !changed {
		t.Fatalf("expected change")
	}
	h := d.health("127.0.0.1:2947")
	if h.Satellites == nil || *h.Satellites != 2 {
		t.Fatalf("satellites = %+v", h.Satellites)
	}
	if h.HDOP == nil || math.Abs(*h.HDOP-0.9) > 1e-9 {
		t.Fatalf("hdop = %+v", h.HDOP)
	}
	if h.GPSDAddr != "127.0.0.1:2947" {
		t.Fatalf("health = %+v", h)
	}
}

func TestGPSDDecoder_IgnoresChatter(t *testing.T) {
	var d gpsdDecoder
	changed, err := d.feed(time.Now().UTC(), `{"class":"VERSION","release":"3.25"}`)
	if err != nil || changed {
		t.Fatalf("chatter: changed=%v err=%v", changed, err)
	}
}
