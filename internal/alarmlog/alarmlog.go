// Package alarmlog persists flight events: collision alarms, close-traffic
// records and landed-out sightings. The log opens on takeoff and closes on
// landing; an existing file is appended to while disk space allows and
// recreated otherwise.
package alarmlog

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"trafficwarn/internal/traffic"
)

const fileName = "alarmlog.txt"

const header = "date,time,lat,lon,level,count,ID,relbrg,hdist,vdist\n"

// Config tunes the event log.
type Config struct {
	LogAlarms  bool
	LogTraffic bool

	// MinFreeKB is the free-space floor below which the old log file is
	// discarded instead of appended to.
	MinFreeKB int64
}

// Log writes flight events. It is driven from the dispatcher goroutine.
type Log struct {
	dir string
	cfg Config
	f   *os.File
}

// New prepares an event log rooted at dir. Nothing is opened until the
// first takeoff.
func New(dir string, cfg Config) *Log {
	return &Log{dir: dir, cfg: cfg}
}

// Open reports whether the log file is currently open.
func (l *Log) Open() bool { return l.f != nil }

// Start opens the log on takeoff. An existing file is appended to when
// enough disk space remains, otherwise it is replaced.
func (l *Log) Start() {
	if !l.cfg.LogAlarms && !l.cfg.LogTraffic {
		return
	}
	if l.f != nil {
		return
	}
	path := filepath.Join(l.dir, fileName)
	append_ := false
	if _, err := os.Stat(path); err == nil {
		if free := freeSpaceKB(l.dir); free < 0 || free > l.cfg.MinFreeKB {
			append_ = true
		} else {
			os.Remove(path)
		}
	}
	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if append_ {
		flags = os.O_WRONLY | os.O_APPEND
	}
	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		log.Printf("alarmlog: open: %v", err)
		return
	}
	l.f = f
	if !append_ {
		l.write(header)
	}
}

// Stop closes the log after landing.
func (l *Log) Stop() {
	if l.f != nil {
		l.f.Close()
		l.f = nil
	}
}

func (l *Log) write(s string) {
	if l.f == nil {
		return
	}
	if _, err := l.f.WriteString(s); err != nil {
		// probably out of space
		log.Printf("alarmlog: write: %v", err)
		l.f.Close()
		l.f = nil
	}
}

// AlarmRecord implements part of traffic.EventLog: one CSV line per sounded
// notification.
func (l *Log) AlarmRecord(nowSec int64, host *traffic.HostState, fop *traffic.Slot, count int) {
	if !l.cfg.LogAlarms || l.f == nil {
		return
	}
	t := time.Unix(nowSec, 0).UTC()
	l.write(fmt.Sprintf("%02d%02d%02d,%02d%02d%02d,%.5f,%.5f,%d,%d,%06x,%d,%d,%d\n",
		t.Year()%100, int(t.Month()), t.Day(),
		t.Hour(), t.Minute(), t.Second(),
		host.Latitude, host.Longitude,
		int(fop.AlarmLevel)-1, count, fop.Addr,
		fop.RelativeHeading, int(fop.Distance), int(fop.AltDiff)))
}

// TrafficRecord implements part of traffic.EventLog: a flight-log line for
// one target, labeled LPLTA for alarm transitions and LPLTT for the
// periodic close-traffic sweep. Stealthy FLARM targets are anonymized.
func (l *Log) TrafficRecord(label string, nowSec int64, host *traffic.HostState, fop *traffic.Slot) {
	if !l.cfg.LogTraffic || l.f == nil {
		return
	}
	addr := fop.Addr
	if fop.NoTrack && fop.TxType == traffic.TxTypeFLARM {
		addr = 0xAAAAAA
	}
	level := int(fop.AlarmLevel) - 1
	if level < 0 {
		level = 0
	}
	l.write(fmt.Sprintf("%s,%d,%d,%d,%d,%06x,%d,%d,%d,%d,%d,%d,%d,%d,%d,%d,%d\n",
		label, level, fop.TxType, fop.Protocol, fop.AircraftType, addr,
		int(fop.Distance), int(fop.Bearing),
		int(fop.Speed), int(fop.Course), int(fop.TurnRate),
		fop.RelativeHeading, int(fop.AltDiff), int(fop.Vs-host.Vs),
		int(host.Speed), int(host.Course), int(host.TurnRate)))
}

// LandedOut implements part of traffic.EventLog: a target stopped declaring
// an aircraft type while on the ground, the glider-retrieve case.
func (l *Log) LandedOut(nowSec int64, fop *traffic.Slot) {
	t := time.Unix(nowSec, 0).UTC()
	line := fmt.Sprintf("LO,%02d:%02d,%06x,%.5f,%.5f\n",
		t.Hour(), t.Minute(), fop.Addr, fop.Latitude, fop.Longitude)
	log.Printf("landed-out aircraft %06X at %.5f,%.5f", fop.Addr, fop.Latitude, fop.Longitude)
	l.write(line)
}

// CloseTraffic sweeps the table and records every airborne target that is
// within a kilometer (altitude-adjusted) or currently alarmed. Meant to be
// called at the flight-log cadence, not every tick.
func (l *Log) CloseTraffic(nowSec int64, w *traffic.World) {
	if !l.cfg.LogTraffic || l.f == nil {
		return
	}
	for i := range w.Table {
		fop := &w.Table[i]
		if fop.Empty() || !fop.Airborne {
			continue
		}
		if fop.AdjDistance > 1000 && fop.AlarmLevel == traffic.AlarmNone {
			continue
		}
		if nowSec > fop.Timestamp+3 {
			continue
		}
		l.TrafficRecord("LPLTT", nowSec, &w.Host, fop)
	}
}
