// Package sim generates deterministic host fixes and traffic reports for
// bench testing the alarm chain without radios. The orbit generators give
// continuous motion; scripted scenarios reproduce specific encounters.
package sim

import (
	"math"
	"time"

	"trafficwarn/internal/traffic"
)

const feetToMeters = 0.3048

type OwnshipSim struct {
	Addr         uint32
	AircraftType traffic.AircraftType

	CenterLatDeg float64
	CenterLonDeg float64
	AltFeet      int
	GroundKt     int
	RadiusNm     float64
	Period       time.Duration
}

// HostAt returns the simulated host snapshot for the given instant.
func (s OwnshipSim) HostAt(now time.Time) traffic.HostState {
	lat, lon, trk, altFeet, vvelFpm := s.kinematics(now)

	groundKt := s.GroundKt
	if groundKt <= 0 {
		groundKt = 90
	}
	acft := s.AircraftType
	if acft == traffic.AircraftUnknown {
		acft = traffic.AircraftGlider
	}

	return traffic.HostState{
		Addr:         s.Addr,
		AircraftType: acft,
		Latitude:     lat,
		Longitude:    lon,
		Altitude:     float64(altFeet) * feetToMeters,
		Speed:        float64(groundKt),
		Course:       trk,
		Heading:      trk,
		Vs:           float64(vvelFpm),
		Airborne:     true,
		Timestamp:    now.Unix(),
		GNSSTimeMs:   now.UnixMilli(),
	}
}

// kinematics returns deterministic position plus a simple vertical profile.
// Altitude is a sinusoid around AltFeet, and vertical speed is its
// derivative.
func (s OwnshipSim) kinematics(now time.Time) (latDeg, lonDeg, trackDeg float64, altFeet int, vvelFpm int) {
	latDeg, lonDeg, trackDeg = s.position(now)

	baseAlt := s.AltFeet
	if baseAlt == 0 {
		baseAlt = 3000
	}
	period := s.Period
	if period <= 0 {
		period = 120 * time.Second
	}
	// Vertical period is decoupled from horizontal to avoid repetitive sync.
	vp := period / 2
	if vp < 30*time.Second {
		vp = 30 * time.Second
	}
	amp := 500.0 // ft

	phase := float64(now.UnixNano()%vp.Nanoseconds()) / float64(vp.Nanoseconds())
	w := 2 * math.Pi * phase

	alt := float64(baseAlt) + amp*math.Sin(w)
	altFeet = int(math.Round(alt))

	// d/dt (amp*sin(w)) where w = 2πt/T => amp*(2π/T)*cos(w)
	ftPerSec := amp * (2 * math.Pi / vp.Seconds()) * math.Cos(w)
	vvelFpm = int(math.Round(ftPerSec * 60))
	return latDeg, lonDeg, trackDeg, altFeet, vvelFpm
}

// position returns a deterministic figure-eight track around the configured
// center, staying within the configured radius.
func (s OwnshipSim) position(now time.Time) (latDeg, lonDeg, trackDeg float64) {
	period := s.Period
	if period <= 0 {
		period = 120 * time.Second
	}
	radiusNm := s.RadiusNm
	if radiusNm <= 0 {
		radiusNm = 0.5
	}

	// Convert NM to degrees latitude (~60 NM per degree).
	radiusDeg := radiusNm / 60.0

	phase := float64(now.UnixNano()%period.Nanoseconds()) / float64(period.Nanoseconds())

	// Lissajous path: x = cos(2πt), y = 0.5*sin(4πt), y kept within
	// [-0.5, 0.5] so the track remains inside the radius bounds.
	w := 2 * math.Pi * phase
	x := math.Cos(w)
	y := 0.5 * math.Sin(2*w)

	latDeg = s.CenterLatDeg + radiusDeg*y
	lonDeg = s.CenterLonDeg + (radiusDeg*x)/math.Cos(s.CenterLatDeg*math.Pi/180.0)

	// Track based on instantaneous velocity (atan2(east, north)).
	vx := -2 * math.Pi * math.Sin(w)
	vy := 2 * math.Pi * math.Cos(2*w)
	trackRad := math.Atan2(vx, vy)
	trackDeg = math.Mod((trackRad*180/math.Pi)+360, 360)
	return latDeg, lonDeg, trackDeg
}
