package traffic

import (
	"trafficwarn/internal/geo"
)

// Config is the tracking-table tuning surface, filled from the application
// configuration at startup.
type Config struct {
	Algorithm Algorithm

	// FollowID pins one address so it never loses its slot to eviction.
	FollowID uint32

	// AlarmDemo lets alarms fire on the ground, for bench testing.
	AlarmDemo bool

	DebugAlarm  bool
	DebugDeeper bool

	// NorthAmerica enables computed N-number / C-registration callsigns
	// for ICAO addresses that arrive without one.
	NorthAmerica bool
}

// Notifier sounds an alarm toward the pilot. Implementations report whether
// they actually emitted anything; Tick latches the alert level and arms the
// global re-arm timer whether or not they did.
type Notifier interface {
	Buzzer(level AlarmLevel, multiple bool) bool
	Voice(host *HostState, fop *Slot, multiple bool) bool
}

// Relayer is offered each admitted radio packet so it can schedule a
// retransmission of targets the ground station would otherwise miss.
type Relayer interface {
	Consider(nowMs int64, host *HostState, fop *Slot)
}

// RangeSampler accumulates reception-range statistics from targets about to
// leave the table.
type RangeSampler interface {
	Sample(host *HostState, fop *Slot)
}

// EventLog records flight events to persistent storage.
type EventLog interface {
	AlarmRecord(nowSec int64, host *HostState, fop *Slot, count int)
	TrafficRecord(label string, nowSec int64, host *HostState, fop *Slot)
	LandedOut(nowSec int64, fop *Slot)
}

// Telemetry emits advisory and debug sentences to the connected displays.
type Telemetry interface {
	AlarmNotice(host *HostState, fop *Slot, multiple bool)
	VectorDebug(host *HostState, fop *Slot, level AlarmLevel, relSpeed, relDir, t float64)
	LatestDebug(host *HostState, fop *Slot, level AlarmLevel, minTime, minSqDist, sqSpeed int)
	ADSBStats(fop *Slot)
}

// Hooks bundles the optional collaborators of the tracking core. Any field
// may be nil.
type Hooks struct {
	Notifier  Notifier
	Relayer   Relayer
	Sampler   RangeSampler
	Events    EventLog
	Telemetry Telemetry
}

// World owns the tracking table and the host snapshot. It is confined to the
// dispatcher goroutine: admission, host updates and the periodic tick must
// all be invoked from the same loop.
type World struct {
	cfg  Config
	Host HostState

	Table [MaxTrackingObjects]Slot

	cos *geo.CosLat

	notifier  Notifier
	relayer   Relayer
	sampler   RangeSampler
	events    EventLog
	telemetry Telemetry

	// alarmTimerMs holds the wall-clock millisecond deadline of the global
	// re-arm timer, zero when disarmed.
	alarmTimerMs int64

	// Aggregates refreshed by each tick, read by the telemetry emitters.
	MaxAlarmLevel AlarmLevel
	AlarmAhead    bool

	lastTickMs int64
}

// NewWorld builds an empty table around the given tuning and collaborators.
func NewWorld(cfg Config, hooks Hooks) *World {
	return &World{
		cfg:       cfg,
		cos:       geo.NewCosLat(),
		notifier:  hooks.Notifier,
		relayer:   hooks.Relayer,
		sampler:   hooks.Sampler,
		events:    hooks.Events,
		telemetry: hooks.Telemetry,
	}
}

// UpdateHost replaces the host snapshot and refreshes the latitude cosine
// cache and the host's own velocity projections.
func (w *World) UpdateHost(h HostState) {
	w.Host = h
	w.cos.Update(h.Latitude)
	ProjectHost(&w.Host)
}

// Occupied returns the number of live slots.
func (w *World) Occupied() int {
	n := 0
	for i := range w.Table {
		if !w.Table[i].Empty() {
			n++
		}
	}
	return n
}
