package gps

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net"
	"time"
)

const (
	gpsdDefaultAddr = "127.0.0.1:2947"

	// scaled=true makes gpsd report SI units and decimal degrees.
	gpsdWatchCmd = "?WATCH={\"enable\":true,\"json\":true,\"scaled\":true}\n"
)

const (
	mpsToKnots = 1.9438444924406
	mpsToFPM   = 196.8503937007874
)

func dialGPSD(ctx context.Context, addr string) (net.Conn, error) {
	d := &net.Dialer{Timeout: 2 * time.Second}
	return d.DialContext(ctx, "tcp", addr)
}

// tpvReport is the subset of a gpsd TPV message the decoder reads.
type tpvReport struct {
	Mode *int   `json:"mode"`
	Time string `json:"time"`

	Lat *float64 `json:"lat"`
	Lon *float64 `json:"lon"`

	Alt    *float64 `json:"alt"`
	AltMSL *float64 `json:"altMSL"`
	Speed  *float64 `json:"speed"`
	Track  *float64 `json:"track"`
	Climb  *float64 `json:"climb"`

	// Horizontal error estimate, meters. Older gpsd versions report the
	// per-axis epx/epy pair instead of eph.
	Eph *float64 `json:"eph"`
	Epx *float64 `json:"epx"`
	Epy *float64 `json:"epy"`
}

// skyReport carries the satellite view; only the used count and HDOP matter.
type skyReport struct {
	HDOP       *float64 `json:"hdop"`
	Satellites []struct {
		Used bool `json:"used"`
	} `json:"satellites"`
}

// gpsdDecoder folds the JSON stream into a Fix. A TPV only yields a usable
// fix once the reported mode reaches 2D.
type gpsdDecoder struct {
	fix     Fix
	haveFix bool

	mode       int
	satellites int
	hdop       float64
	haveMode   bool
	haveSats   bool
	haveHDOP   bool
}

// feed applies one stream line and reports whether the fix or the quality
// block changed. VERSION/DEVICES/WATCH chatter is ignored.
func (d *gpsdDecoder) feed(now time.Time, line string) (bool, error) {
	var probe struct {
		Class string `json:"class"`
	}
	if err := json.Unmarshal([]byte(line), &probe); err != nil {
		return false, fmt.Errorf("gpsd: %v", err)
	}
	switch probe.Class {
	case "TPV":
		var tpv tpvReport
		if err := json.Unmarshal([]byte(line), &tpv); err != nil {
			return false, fmt.Errorf("gpsd tpv: %v", err)
		}
		return d.applyTPV(now, tpv), nil
	case "SKY":
		var sky skyReport
		if err := json.Unmarshal([]byte(line), &sky); err != nil {
			return false, fmt.Errorf("gpsd sky: %v", err)
		}
		return d.applySKY(sky), nil
	}
	return false, nil
}

func (d *gpsdDecoder) applyTPV(now time.Time, tpv tpvReport) bool {
	changed := false
	if tpv.Mode != nil {
		d.mode = *tpv.Mode
		d.haveMode = true
		changed = true
	}
	if d.mode < 2 || tpv.Lat == nil || tpv.Lon == nil {
		return changed
	}

	d.fix.LatDeg = *tpv.Lat
	d.fix.LonDeg = *tpv.Lon
	if tpv.Speed != nil {
		d.fix.GroundKt = *tpv.Speed * mpsToKnots
		d.fix.HasSpeed = true
	}
	if tpv.Track != nil {
		d.fix.TrackDeg = *tpv.Track
		d.fix.HasTrack = true
	}
	if tpv.Climb != nil {
		d.fix.ClimbFPM = *tpv.Climb * mpsToFPM
		d.fix.HasClimb = true
	}
	if tpv.AltMSL != nil {
		d.fix.AltM = *tpv.AltMSL
		d.fix.HasAlt = true
	} else if tpv.Alt != nil {
		d.fix.AltM = *tpv.Alt
		d.fix.HasAlt = true
	}
	switch {
	case tpv.Eph != nil:
		d.fix.HorizAccM = *tpv.Eph
		d.fix.HasHAcc = true
	case tpv.Epx != nil && tpv.Epy != nil:
		d.fix.HorizAccM = math.Hypot(*tpv.Epx, *tpv.Epy)
		d.fix.HasHAcc = true
	}

	d.fix.Time = now
	if t, err := time.Parse(time.RFC3339Nano, tpv.Time); err == nil {
		d.fix.Time = t.UTC()
	}
	d.haveFix = true
	return true
}

func (d *gpsdDecoder) applySKY(sky skyReport) bool {
	changed := false
	if sky.HDOP != nil {
		d.hdop = *sky.HDOP
		d.haveHDOP = true
		changed = true
	}
	if len(sky.Satellites) > 0 {
		used := 0
		for _, sat := range sky.Satellites {
			if sat.Used {
				used++
			}
		}
		d.satellites = used
		d.haveSats = true
		changed = true
	}
	return changed
}

// health is the receiver view for the status endpoint.
func (d *gpsdDecoder) health(addr string) Snapshot {
	h := Snapshot{Source: "gpsd", GPSDAddr: addr}
	if d.haveMode {
		v := d.mode
		h.FixMode = &v
	}
	if d.haveSats {
		v := d.satellites
		h.Satellites = &v
	}
	if d.haveHDOP {
		v := d.hdop
		h.HDOP = &v
	}
	if d.haveFix {
		h.LastFixUTC = d.fix.Time.UTC().Format(time.RFC3339Nano)
	}
	return h
}
