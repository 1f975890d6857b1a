// Package nmea formats the proprietary advisory and debug sentences sent to
// connected displays. Sentences are checksum-framed and handed to a byte
// sink, normally the UDP broadcaster.
package nmea

import (
	"fmt"
	"log"
	"time"

	"trafficwarn/internal/traffic"
)

// Sink carries one framed sentence to the displays.
type Sink interface {
	Send(payload []byte) error
}

// Frame wraps a sentence body (without the leading $) in the standard
// $...*CS\r\n envelope.
func Frame(body string) []byte {
	var cs byte
	for i := 0; i < len(body); i++ {
		cs ^= body[i]
	}
	return []byte(fmt.Sprintf("$%s*%02X\r\n", body, cs))
}

// Emitter implements traffic.Telemetry and the relay notifications.
type Emitter struct {
	sink Sink
}

// NewEmitter binds the sentence formatter to an output sink.
func NewEmitter(sink Sink) *Emitter {
	return &Emitter{sink: sink}
}

func (e *Emitter) send(body string) {
	if e == nil || e.sink == nil {
		return
	}
	if err := e.sink.Send(Frame(body)); err != nil {
		log.Printf("nmea: send: %v", err)
	}
}

// AlarmNotice emits $PSRAA for a sounded notification. The level is shifted
// to the one-based external scale; displays sounding their own alarms from
// the regular traffic output are unaffected.
func (e *Emitter) AlarmNotice(host *traffic.HostState, fop *traffic.Slot, multiple bool) {
	m := 0
	if multiple {
		m = 1
	}
	e.send(fmt.Sprintf("PSRAA,%d,%d,%06X", int(fop.AlarmLevel)-1, m, fop.Addr))
}

// VectorDebug emits $PSALV with the relative-velocity solution behind one
// vector-alarm evaluation.
func (e *Emitter) VectorDebug(host *traffic.HostState, fop *traffic.Slot, level traffic.AlarmLevel, relSpeed, relDir, t float64) {
	e.send(fmt.Sprintf("PSALV,%06X,%d,%d,%.1f,%.1f,%.1f,%.1f,%.5f,%.5f,%.1f,%.1f,%.1f,%.5f,%.5f,%.1f,%.1f,%.1f",
		fop.Addr, fop.GNSSTimeMs, int(level), relSpeed, relDir, fop.Bearing, t,
		host.Latitude, host.Longitude, host.Altitude, host.Speed, host.Course,
		fop.Latitude, fop.Longitude, fop.Altitude, fop.Speed, fop.Course))
}

// LatestDebug emits $PSALL with the projected-path minimum behind one
// latest-alarm evaluation.
func (e *Emitter) LatestDebug(host *traffic.HostState, fop *traffic.Slot, level traffic.AlarmLevel, minTime, minSqDist, sqSpeed int) {
	e.send(fmt.Sprintf("PSALL,%06X,%d,%d,%d,%d,%d,%d,%.1f,%.1f,%.1f,%d,%d,%.1f,%.1f,%.1f,%.1f",
		fop.Addr, fop.ProjTimeMs, host.ProjTimeMs, int(level), minTime, minSqDist, sqSpeed,
		host.Speed, host.Heading, host.TurnRate, fop.Dy, fop.Dx, fop.AltDiff,
		fop.Speed, fop.Heading, fop.TurnRate))
}

// ADSBStats emits $PSADX with the per-aircraft reception statistics of an
// expiring ADS-B target.
func (e *Emitter) ADSBStats(fop *traffic.Slot) {
	e.send(fmt.Sprintf("PSADX,%06X,%d,%d,%d,%d,%d",
		fop.Addr, fop.TxType, int(fop.MaxRSSIRelAlt),
		int(fop.MinDist), fop.MinDistRSSI, fop.MaxRSSI))
}

// RelayNotice emits $PSRLY the first time a target is relayed.
func (e *Emitter) RelayNotice(nowSec int64, fop *traffic.Slot) {
	t := time.Unix(nowSec, 0).UTC()
	e.send(fmt.Sprintf("PSRLY,%02d:%02d,%06x,%s",
		t.Hour(), t.Minute(), fop.Addr, fop.Callsign))
}

// RelayDebug emits $PSARL after every successful relay transmission.
func (e *Emitter) RelayDebug(fop *traffic.Slot) {
	e.send(fmt.Sprintf("PSARL,1,%06X,%d", fop.Addr, fop.TimeRelayed))
}

// LandedOut emits $PSRLO for a target that stopped declaring an aircraft
// type while on the ground.
func (e *Emitter) LandedOut(nowSec int64, fop *traffic.Slot) {
	t := time.Unix(nowSec, 0).UTC()
	e.send(fmt.Sprintf("PSRLO,%02d:%02d,%06x,%.5f,%.5f",
		t.Hour(), t.Minute(), fop.Addr, fop.Latitude, fop.Longitude))
}
