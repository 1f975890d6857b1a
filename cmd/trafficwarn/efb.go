package main

import (
	"log"
	"time"

	"trafficwarn/internal/gdl90"
	"trafficwarn/internal/traffic"
	"trafficwarn/internal/udp"
)

// efbSender streams the GDL90 subset display apps draw from: a heartbeat and
// ownship report every second, a traffic report per tracked target, and the
// periodic ForeFlight ID message.
type efbSender struct {
	sender      *udp.Broadcaster
	lastBeatSec int64
}

// metersToFeet matches the altitude resolution EFBs expect.
const metersToFeet = 3.280839895013123

func icao3(addr uint32) [3]byte {
	return [3]byte{byte(addr >> 16), byte(addr >> 8), byte(addr)}
}

// emitterCategory maps the FLARM aircraft category onto the GDL90 emitter
// category table.
func emitterCategory(t traffic.AircraftType) byte {
	switch t {
	case traffic.AircraftGlider:
		return 9
	case traffic.AircraftHelicopter:
		return 7
	case traffic.AircraftSkydiver:
		return 11
	case traffic.AircraftHangGlider, traffic.AircraftParaglider:
		return 12
	case traffic.AircraftJet:
		return 2
	case traffic.AircraftBalloon, traffic.AircraftAirship:
		return 10
	case traffic.AircraftUAV:
		return 14
	default:
		return 1
	}
}

func gdl90AddrType(a traffic.AddrType) byte {
	if a == traffic.AddrTypeICAO {
		return 0
	}
	return 1
}

// emit sends one per-second burst. Runs on the dispatcher goroutine since it
// walks the live table.
func (e *efbSender) emit(now time.Time, w *traffic.World, horizAccM float64) {
	if e == nil {
		return
	}
	nowSec := now.Unix()
	if nowSec == e.lastBeatSec {
		return
	}
	e.lastBeatSec = nowSec

	gpsValid := w.Host.Timestamp > 0 && nowSec-w.Host.Timestamp <= gpsStaleSec

	e.send(gdl90.HeartbeatFrameAt(now.UTC(), gpsValid, false))
	if nowSec%10 == 0 {
		e.send(gdl90.ForeFlightIDFrame("", ""))
	}

	if gpsValid {
		e.send(gdl90.OwnshipReportFrame(gdl90.Ownship{
			ICAO:        icao3(w.Host.Addr),
			LatDeg:      w.Host.Latitude,
			LonDeg:      w.Host.Longitude,
			AltFeet:     int(w.Host.Altitude * metersToFeet),
			HaveNICNACp: true,
			NIC:         8,
			NACp:        gdl90.NACpFromHorizontalAccuracyMeters(horizAccM),
			GroundKt:    int(w.Host.Speed),
			TrackDeg:    w.Host.Course,
			OnGround:    !w.Host.Airborne,
			VvelFpm:     int(w.Host.Vs),
			VvelValid:   true,
			Emitter:     emitterCategory(w.Host.AircraftType),
		}))
	}

	for _, fop := range w.ByDistance(nowSec) {
		e.send(gdl90.TrafficReportFrame(gdl90.Traffic{
			AddrType:        gdl90AddrType(fop.AddrType),
			ICAO:            icao3(fop.Addr),
			LatDeg:          fop.Latitude,
			LonDeg:          fop.Longitude,
			AltFeet:         int(fop.Altitude * metersToFeet),
			NIC:             8,
			NACp:            8,
			GroundKt:        int(fop.Speed),
			TrackDeg:        fop.Course,
			VvelFpm:         int(fop.Vs),
			OnGround:        !fop.Airborne,
			Alert:           fop.AlarmLevel >= traffic.AlarmLow,
			EmitterCategory: emitterCategory(fop.AircraftType),
			Tail:            fop.Callsign,
		}))
	}
}

func (e *efbSender) send(frame []byte) {
	if err := e.sender.Send(frame); err != nil {
		log.Printf("gdl90 send failed: %v", err)
	}
}

func (e *efbSender) Close() {
	if e == nil || e.sender == nil {
		return
	}
	_ = e.sender.Close()
	e.sender = nil
}
