package gps

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// checksumSplit validates the "$...*hh" sentence framing and returns the
// comma-split payload fields, talker prefix included in field 0.
func checksumSplit(line string) ([]string, error) {
	if len(line) < 4 || line[0] != '$' {
		return nil, fmt.Errorf("nmea: not a sentence")
	}
	star := strings.LastIndexByte(line, '*')
	if star < 0 || len(line) < star+3 {
		return nil, fmt.Errorf("nmea: no checksum")
	}
	want, err := strconv.ParseUint(line[star+1:star+3], 16, 8)
	if err != nil {
		return nil, fmt.Errorf("nmea: malformed checksum")
	}
	var sum byte
	for _, b := range []byte(line[1:star]) {
		sum ^= b
	}
	if sum != byte(want) {
		return nil, fmt.Errorf("nmea: checksum %02X does not match %02X", sum, byte(want))
	}
	return strings.Split(line[1:star], ","), nil
}

// sentenceKey reduces the talker-prefixed type field (GPRMC, GNRMC, ...) to
// the bare sentence id.
func sentenceKey(field0 string) string {
	if len(field0) < 3 {
		return ""
	}
	return strings.ToUpper(field0[len(field0)-3:])
}

// nmeaDecoder folds RMC and GGA sentences into a Fix. RMC carries the
// velocity vector, GGA the altitude and quality block; receivers interleave
// the two, so position fields merge across sentences.
type nmeaDecoder struct {
	fix     Fix
	haveFix bool

	quality    int
	satellites int
	hdop       float64
	haveQual   bool
	haveSats   bool
	haveHDOP   bool
}

// feed applies one raw line and reports whether the fix or the quality
// block changed.
func (d *nmeaDecoder) feed(now time.Time, line string) (bool, error) {
	fields, err := checksumSplit(line)
	if err != nil {
		return false, err
	}
	switch sentenceKey(fields[0]) {
	case "RMC":
		return d.applyRMC(now, fields), nil
	case "GGA":
		return d.applyGGA(now, fields), nil
	}
	return false, nil
}

// RMC fields: 1 time, 2 status (A/V), 3-4 lat, 5-6 lon, 7 ground speed
// (knots), 8 course (deg), 9 date.
func (d *nmeaDecoder) applyRMC(now time.Time, f []string) bool {
	if len(f) < 10 || strings.TrimSpace(f[2]) != "A" {
		return false
	}
	lat, latOK := parseCoordinate(f[3], f[4])
	lon, lonOK := parseCoordinate(f[5], f[6])
	if !latOK || !lonOK {
		return false
	}
	d.fix.LatDeg = lat
	d.fix.LonDeg = lon
	if kt, ok := parseFloat(f[7]); ok {
		d.fix.GroundKt = kt
		d.fix.HasSpeed = true
	}
	if crs, ok := parseFloat(f[8]); ok {
		d.fix.TrackDeg = math.Mod(crs+360, 360)
		d.fix.HasTrack = true
	}
	d.fix.Time = now
	d.haveFix = true
	return true
}

// GGA fields: 1 time, 2-3 lat, 4-5 lon, 6 fix quality, 7 satellites,
// 8 HDOP, 9 altitude (meters above geoid).
func (d *nmeaDecoder) applyGGA(now time.Time, f []string) bool {
	if len(f) < 10 {
		return false
	}
	q, err := strconv.Atoi(strings.TrimSpace(f[6]))
	if err != nil || q == 0 {
		return false
	}
	d.quality = q
	d.haveQual = true
	if n, err := strconv.Atoi(strings.TrimSpace(f[7])); err == nil {
		d.satellites = n
		d.haveSats = true
	}
	if h, ok := parseFloat(f[8]); ok {
		d.hdop = h
		d.haveHDOP = true
	}

	lat, latOK := parseCoordinate(f[2], f[3])
	lon, lonOK := parseCoordinate(f[4], f[5])
	if !latOK || !lonOK {
		return true
	}
	d.fix.LatDeg = lat
	d.fix.LonDeg = lon
	if m, ok := parseFloat(f[9]); ok {
		d.fix.AltM = m
		d.fix.HasAlt = true
	}
	d.fix.Time = now
	d.haveFix = true
	return true
}

// health is the receiver view for the status endpoint.
func (d *nmeaDecoder) health(device string, baud int) Snapshot {
	h := Snapshot{Source: "nmea", Device: device, Baud: baud}
	if d.haveQual {
		v := d.quality
		h.FixQuality = &v
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

// parseCoordinate converts a ddmm.mmmm (latitude) or dddmm.mmmm (longitude)
// field and its hemisphere letter into signed decimal degrees.
func parseCoordinate(value, hemi string) (float64, bool) {
	raw, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil || raw < 0 {
		return 0, false
	}
	deg := math.Floor(raw / 100)
	min := raw - deg*100
	if min >= 60 {
		return 0, false
	}
	dec := deg + min/60
	switch strings.TrimSpace(hemi) {
	case "N", "E":
		return dec, true
	case "S", "W":
		return -dec, true
	}
	return 0, false
}

func parseFloat(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
