package web

import (
	"fmt"
	"sync/atomic"
	"time"

	"trafficwarn/internal/traffic"
)

// Status is the published view of the tracking core. The dispatcher owns the
// World, so it publishes immutable snapshots here and the HTTP handlers only
// ever read atomically.
type Status struct {
	startUnixNano int64
	static        atomic.Value // StaticInfo
	world         atomic.Value // WorldSnapshot
	feed          atomic.Value // any, decoder feed health
	gps           atomic.Value // any, GNSS receiver health
	rangeInfo     atomic.Value // any, reception range statistics
}

// StaticInfo is filled once at startup.
type StaticInfo struct {
	Algorithm string `json:"algorithm"`
	RelayMode string `json:"relay_mode"`
	NMEADest  string `json:"nmea_dest,omitempty"`
}

func NewStatus() *Status {
	s := &Status{}
	atomic.StoreInt64(&s.startUnixNano, time.Now().UTC().UnixNano())
	s.static.Store(StaticInfo{})
	s.world.Store(WorldSnapshot{})
	return s
}

func (s *Status) SetStatic(info StaticInfo) {
	s.static.Store(info)
}

// PublishWorld replaces the world view. Called from the dispatcher at the
// traffic-loop cadence.
func (s *Status) PublishWorld(snap WorldSnapshot) {
	s.world.Store(snap)
}

// PublishFeed replaces the decoder feed health view.
func (s *Status) PublishFeed(v any) {
	s.feed.Store(v)
}

// PublishGPS replaces the GNSS receiver health view.
func (s *Status) PublishGPS(v any) {
	s.gps.Store(v)
}

// PublishRange replaces the reception-range statistics view.
func (s *Status) PublishRange(v any) {
	s.rangeInfo.Store(v)
}

// TrafficEntry is the JSON view of one tracked target.
type TrafficEntry struct {
	Addr         string  `json:"addr"`
	Callsign     string  `json:"callsign,omitempty"`
	TxType       uint8   `json:"tx_type"`
	Protocol     uint8   `json:"protocol"`
	AircraftType uint8   `json:"aircraft_type"`
	Distance     int     `json:"distance_m"`
	Bearing      int     `json:"bearing_deg"`
	AltDiff      int     `json:"alt_diff_m"`
	Speed        float64 `json:"speed_kt"`
	Course       float64 `json:"course_deg"`
	Alarm        string  `json:"alarm"`
	Airborne     bool    `json:"airborne"`
	Relayed      bool    `json:"relayed,omitempty"`
	RSSI         int8    `json:"rssi,omitempty"`
	AgeSec       int64   `json:"age_sec"`
}

// HostView is the JSON view of the host snapshot.
type HostView struct {
	Addr     string  `json:"addr"`
	Latitude float64 `json:"lat"`
	Longitude float64 `json:"lon"`
	Altitude float64 `json:"alt_m"`
	Speed    float64 `json:"speed_kt"`
	Course   float64 `json:"course_deg"`
	Airborne bool    `json:"airborne"`
}

// WorldSnapshot is one immutable view of the tracking table.
type WorldSnapshot struct {
	Host          HostView       `json:"host"`
	Occupied      int            `json:"occupied"`
	Radio         int            `json:"radio"`
	External      int            `json:"external"`
	MaxRSSI       int8           `json:"max_rssi"`
	MaxAlarm      string         `json:"max_alarm"`
	AlarmAhead    bool           `json:"alarm_ahead"`
	Traffic       []TrafficEntry `json:"traffic"`
}

// BuildWorldSnapshot converts the live table into a publishable view. Must
// run on the dispatcher goroutine.
func BuildWorldSnapshot(w *traffic.World, nowSec int64) WorldSnapshot {
	census := w.Count(nowSec)
	slots := w.ByDistance(nowSec)

	entries := make([]TrafficEntry, 0, len(slots))
	for i := range slots {
		fop := &slots[i]
		entries = append(entries, TrafficEntry{
			Addr:         fmt.Sprintf("%06X", fop.Addr),
			Callsign:     fop.Callsign,
			TxType:       uint8(fop.TxType),
			Protocol:     uint8(fop.Protocol),
			AircraftType: uint8(fop.AircraftType),
			Distance:     int(fop.Distance),
			Bearing:      int(fop.Bearing),
			AltDiff:      int(fop.AltDiff),
			Speed:        fop.Speed,
			Course:       fop.Course,
			Alarm:        fop.AlarmLevel.String(),
			Airborne:     fop.Airborne,
			Relayed:      fop.Relayed,
			RSSI:         fop.RSSI,
			AgeSec:       nowSec - fop.Timestamp,
		})
	}

	return WorldSnapshot{
		Host: HostView{
			Addr:      fmt.Sprintf("%06X", w.Host.Addr),
			Latitude:  w.Host.Latitude,
			Longitude: w.Host.Longitude,
			Altitude:  w.Host.Altitude,
			Speed:     w.Host.Speed,
			Course:    w.Host.Course,
			Airborne:  w.Host.Airborne,
		},
		Occupied:   census.Occupied,
		Radio:      census.Radio,
		External:   census.External,
		MaxRSSI:    census.MaxRSSI,
		MaxAlarm:   w.MaxAlarmLevel.String(),
		AlarmAhead: w.AlarmAhead,
		Traffic:    entries,
	}
}

// StatusSnapshot is the /api/status payload.
type StatusSnapshot struct {
	Service   string        `json:"service"`
	NowUTC    string        `json:"now_utc"`
	UptimeSec int64         `json:"uptime_sec"`
	Static    StaticInfo    `json:"config"`
	World     WorldSnapshot `json:"world"`
	Feed      any           `json:"feed,omitempty"`
	GPS       any           `json:"gps,omitempty"`
	Range     any           `json:"range,omitempty"`
}

func (s *Status) Snapshot(nowUTC time.Time) StatusSnapshot {
	if nowUTC.IsZero() {
		nowUTC = time.Now().UTC()
	}
	start := time.Unix(0, atomic.LoadInt64(&s.startUnixNano)).UTC()

	snap := StatusSnapshot{
		Service:   "trafficwarn",
		NowUTC:    nowUTC.UTC().Format(time.RFC3339Nano),
		UptimeSec: int64(nowUTC.Sub(start).Seconds()),
		Static:    s.static.Load().(StaticInfo),
		World:     s.world.Load().(WorldSnapshot),
	}
	if v := s.feed.Load(); v != nil {
		snap.Feed = v
	}
	if v := s.gps.Load(); v != nil {
		snap.GPS = v
	}
	if v := s.rangeInfo.Load(); v != nil {
		snap.Range = v
	}
	return snap
}

// World returns the last published world view, for the /api/traffic handler.
func (s *Status) World() WorldSnapshot {
	return s.world.Load().(WorldSnapshot)
}
