// Package traffic holds the fixed-capacity tracking table, the collision
// alarm algorithms and the periodic traffic loop. It is single-threaded by
// design: one dispatcher owns the World and invokes packet admission and the
// tick serially.
package traffic

// AlarmLevel is the advisory severity for one target.
type AlarmLevel int8

const (
	AlarmNone AlarmLevel = iota
	AlarmClose
	AlarmLow
	AlarmImportant
	AlarmUrgent
)

func (l AlarmLevel) String() string {
	switch l {
	case AlarmClose:
		return "close"
	case AlarmLow:
		return "low"
	case AlarmImportant:
		return "important"
	case AlarmUrgent:
		return "urgent"
	default:
		return "none"
	}
}

// Protocol identifies which decoder produced a report.
type Protocol uint8

const (
	ProtocolLegacy Protocol = iota
	ProtocolOGNTP
	ProtocolP3I
	ProtocolFANET
	ProtocolLatest
	ProtocolGDL90
	ProtocolADSB1090
	ProtocolADSBUAT
)

// Radio reports whether the protocol is one of the short-range radio link
// protocols (as opposed to an external ADS-B source).
func (p Protocol) Radio() bool {
	return p == ProtocolLegacy || p == ProtocolLatest
}

// External reports whether the protocol carries data relayed from outside
// the short-range radio network.
func (p Protocol) External() bool {
	return p == ProtocolGDL90 || p == ProtocolADSB1090
}

// TxType describes the transmission kind of the last packet. The ordering is
// meaningful: anything at or below TxTypeS is non-directional, anything below
// TxTypeFLARM came from an external (ADS-B family) source.
type TxType uint8

const (
	TxTypeNone TxType = iota
	TxTypeS           // bearingless mode-S
	TxTypeTISB
	TxTypeADSR
	TxTypeADSB
	TxTypeFLARM
)

// AddrType is the claimed provenance of the 24-bit address.
type AddrType uint8

const (
	AddrTypeRandom AddrType = iota
	AddrTypeICAO
	AddrTypeSelfAssigned
	AddrTypeAnonymous
)

// AircraftType uses the FLARM category encoding.
type AircraftType uint8

const (
	AircraftUnknown AircraftType = iota
	AircraftGlider
	AircraftTowplane
	AircraftHelicopter
	AircraftSkydiver
	AircraftDropPlane
	AircraftHangGlider
	AircraftParaglider
	AircraftPowered
	AircraftJet
	AircraftUFO
	AircraftBalloon
	AircraftAirship
	AircraftUAV
	AircraftReserved
	AircraftStatic
)

// ParseAircraftType maps a config or script string onto the FLARM category,
// defaulting to glider.
func ParseAircraftType(s string) AircraftType {
	switch s {
	case "towplane":
		return AircraftTowplane
	case "helicopter":
		return AircraftHelicopter
	case "skydiver":
		return AircraftSkydiver
	case "dropplane":
		return AircraftDropPlane
	case "hangglider":
		return AircraftHangGlider
	case "paraglider":
		return AircraftParaglider
	case "powered":
		return AircraftPowered
	case "jet":
		return AircraftJet
	case "balloon":
		return AircraftBalloon
	case "airship":
		return AircraftAirship
	case "uav":
		return AircraftUAV
	case "static":
		return AircraftStatic
	default:
		return AircraftGlider
	}
}

// Core tuning constants. Zone radii in meters, times in seconds.
const (
	MaxTrackingObjects = 50

	EntryExpirationSec  = 10 // directional targets
	NonDirExpirationSec = 5  // bearingless targets go stale faster

	EntryRelayTimeSec = 15 // per-target re-relay interval
	AnyRelayTimeSec   = 5  // global re-relay interval

	AlarmZoneExtreme   = 250.0
	AlarmZoneUrgent    = 400.0
	AlarmZoneImportant = 600.0
	AlarmZoneLow       = 1000.0
	AlarmZoneClose     = 1500.0

	AlarmTimeExtreme   = 6
	AlarmTimeUrgent    = 10
	AlarmTimeImportant = 14
	AlarmTimeLow       = 19
	AlarmTimeClose     = 30

	AlarmVectorAngle = 10.0 // degrees
	AlarmVectorSpeed = 2.0  // m/s

	VerticalSeparation = 300.0 // m
	VerticalSlack      = 30.0  // m dead-band on GPS altitude differences
	VerticalSlope      = 4.0   // m of adjusted distance per m of altitude gap

	KnotsToMps = 0.514444

	// VectorUpdateIntervalSec guards the loop against acting on slots whose
	// derived fields have not been refreshed recently.
	VectorUpdateIntervalSec = 2

	// RearmMillis is the delay of the global re-arm timer started by a
	// sounded notification; when it runs out, the next updated target has
	// its latched alert level lowered by one.
	RearmMillis = 9000
)

// Report is one decoded position report, before admission to the table.
type Report struct {
	Addr         uint32
	AddrType     AddrType
	TxType       TxType
	Protocol     Protocol
	AircraftType AircraftType

	Latitude         float64
	Longitude        float64
	Altitude         float64 // m
	PressureAltitude float64 // m
	Speed            float64 // knots, over ground
	Course           float64 // deg
	Heading          float64 // deg, estimated through-the-air
	TurnRate         float64 // deg/s
	Vs               float64 // fpm

	Timestamp  int64 // wall clock, unix seconds
	GNSSTimeMs int64 // GNSS-derived milliseconds
	LastCRC    uint32
	RSSI       int8

	Airborne bool
	Circling int8 // -1 left, 0 straight, +1 right
	Stealth  bool
	NoTrack  bool
	Relayed  bool

	Callsign string
}

// Directional reports whether the target transmits position with velocity.
func (r *Report) Directional() bool { return r.TxType > TxTypeS }

// LandedOut reports the glider-retrieve state: a target that stopped
// declaring an aircraft type while on the ground.
func (r *Report) LandedOut() bool {
	return r.AircraftType == AircraftUnknown && !r.Airborne
}

// Slot is one entry of the tracking table. Addr == 0 marks it empty.
type Slot struct {
	Report

	// Derived per update, relative to the host.
	Dx              int32 // m east
	Dy              int32 // m north
	Distance        float64
	Bearing         float64
	AltDiff         float64 // m, target minus host
	AdjAltDiff      float64
	AdjDistance     float64
	RelativeHeading int // deg, -180..180

	// Two-snapshot history for turn-rate estimation.
	PrevTimeMs   int64
	PrevCourse   float64
	PrevHeading  float64
	PrevAltitude float64

	// Short-horizon airspeed projections, quarter-m/s at +3..+18 s.
	AirEW      [6]int16
	AirNS      [6]int16
	ProjTimeMs int64

	AlarmLevel AlarmLevel
	AlertLevel AlarmLevel // latched threshold for hysteresis

	TimeRelayed int64 // unix seconds of last relay of this target

	// Per-aircraft reception statistics (ADS-B debug).
	MinDist       float64
	MinDistRSSI   int8
	MaxRSSI       int8
	MaxRSSIRelAlt float64
}

// Empty reports whether the slot is unoccupied.
func (s *Slot) Empty() bool { return s.Addr == 0 }

func (s *Slot) expirationSec() int64 {
	if s.TxType <= TxTypeS {
		return NonDirExpirationSec
	}
	return EntryExpirationSec
}

// Expired reports whether the slot has passed its expiration window.
func (s *Slot) Expired(nowSec int64) bool {
	return nowSec > s.Timestamp+s.expirationSec()
}

// HostState is the host aircraft snapshot, refreshed externally on each
// GNSS fix.
type HostState struct {
	Addr             uint32
	AircraftType     AircraftType
	Latitude         float64
	Longitude        float64
	Altitude         float64 // m
	PressureAltitude float64 // m
	Speed            float64 // knots
	Course           float64 // deg
	Heading          float64 // deg
	Vs               float64 // fpm
	TurnRate         float64 // deg/s
	Airborne         bool
	Circling         int8

	AirEW      [6]int16 // quarter-m/s projections at +3..+18 s
	AirNS      [6]int16
	ProjTimeMs int64

	Timestamp  int64 // unix seconds of last fix
	GNSSTimeMs int64
}
