package sim

import (
	"math"
	"time"

	"trafficwarn/internal/traffic"
)

// trafficBaseAddr numbers the simulated targets sequentially. The range is
// outside the ICAO allocations so simulated traffic is recognizable in logs.
const trafficBaseAddr = 0xDDE000

type TrafficSim struct {
	CenterLatDeg float64
	CenterLonDeg float64
	BaseAltFeet  int
	GroundKt     int
	RadiusNm     float64
	Period       time.Duration
}

// ReportsAt returns count simulated targets orbiting the configured center,
// ready for table admission.
func (s TrafficSim) ReportsAt(now time.Time, count int) []traffic.Report {
	if count <= 0 {
		return nil
	}

	period := s.Period
	if period <= 0 {
		period = 90 * time.Second
	}
	radiusNm := s.RadiusNm
	if radiusNm <= 0 {
		radiusNm = 2.0
	}
	groundKt := s.GroundKt
	if groundKt <= 0 {
		groundKt = 120
	}

	// Convert NM to degrees latitude (~60 NM per degree).
	radiusDeg := radiusNm / 60.0

	phase := float64(now.UnixNano()%period.Nanoseconds()) / float64(period.Nanoseconds())
	baseTheta := 2 * math.Pi * phase

	out := make([]traffic.Report, 0, count)
	for i := 0; i < count; i++ {
		offset := 2 * math.Pi * (float64(i) / float64(count))
		theta := baseTheta + offset

		latDeg := s.CenterLatDeg + radiusDeg*math.Cos(theta)
		lonDeg := s.CenterLonDeg + radiusDeg*math.Sin(theta)/math.Cos(s.CenterLatDeg*math.Pi/180.0)
		trk := math.Mod((theta*180/math.Pi)+90, 360)

		alt := s.BaseAltFeet
		if alt == 0 {
			alt = 4500
		}
		// Stagger altitude a little between targets.
		alt += (i - count/2) * 300

		out = append(out, traffic.Report{
			Addr:         uint32(trafficBaseAddr + i),
			AddrType:     traffic.AddrTypeICAO,
			TxType:       traffic.TxTypeFLARM,
			Protocol:     traffic.ProtocolLatest,
			AircraftType: traffic.AircraftGlider,
			Latitude:     latDeg,
			Longitude:    lonDeg,
			Altitude:     float64(alt) * feetToMeters,
			Speed:        float64(groundKt),
			Course:       trk,
			Heading:      trk,
			Airborne:     true,
			Timestamp:    now.Unix(),
			GNSSTimeMs:   now.UnixMilli(),
		})
	}

	return out
}
