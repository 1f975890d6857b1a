package sim

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"trafficwarn/internal/traffic"
)

// Script is a deterministic, keyframe-driven encounter description used to
// reproduce specific alarm situations on the bench.
//
// Time is expressed as Go duration strings ("0s", "250ms", "10s"). If
// Duration is zero it is derived from the latest keyframe time.
//
// YAML schema (v1):
//
//	version: 1
//	duration: 30s
//	ownship:
//	  icao: "DD0000"
//	  type: glider
//	  keyframes:
//	    - t: 0s
//	      lat_deg: 47.0
//	      lon_deg: 8.0
//	      alt_feet: 3300
//	      ground_kt: 80
//	      track_deg: 0
//	traffic:
//	  - icao: "DD0001"
//	    callsign: "TGT1"
//	    type: glider
//	    keyframes: ...
//
// All keyframes must be sorted by non-decreasing t.
type Script struct {
	Version  int            `yaml:"version"`
	Duration time.Duration  `yaml:"duration"`
	Ownship  ScriptAircraft `yaml:"ownship"`
	Traffic  []ScriptAircraft `yaml:"traffic"`
}

// ScriptAircraft is one aircraft timeline, ownship or traffic.
type ScriptAircraft struct {
	ICAO      string     `yaml:"icao"`
	Callsign  string     `yaml:"callsign"`
	Type      string     `yaml:"type"`
	Keyframes []Keyframe `yaml:"keyframes"`
}

// Keyframe is a time-stamped aircraft state.
type Keyframe struct {
	T        time.Duration `yaml:"t"`
	LatDeg   float64       `yaml:"lat_deg"`
	LonDeg   float64       `yaml:"lon_deg"`
	AltFeet  int           `yaml:"alt_feet"`
	GroundKt int           `yaml:"ground_kt"`
	TrackDeg float64       `yaml:"track_deg"`
	Ground   bool          `yaml:"ground"`
}

// Scenario is the validated, runtime representation. Use HostAt and
// ReportsAt to sample the deterministic state at a given elapsed time.
type Scenario struct {
	script   Script
	duration time.Duration

	ownAddr   uint32
	ownType   traffic.AircraftType
	addrs     []uint32
	acftTypes []traffic.AircraftType
}

// LoadScript reads and unmarshals a YAML scenario script from path.
func LoadScript(path string) (Script, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Script{}, err
	}
	return ParseScript(b)
}

// ParseScript parses a YAML scenario script.
func ParseScript(b []byte) (Script, error) {
	var s Script
	if err := yaml.Unmarshal(b, &s); err != nil {
		return Script{}, err
	}
	return s, nil
}

// NewScenario validates script and returns a runtime Scenario.
func NewScenario(script Script) (*Scenario, error) {
	if script.Version == 0 {
		script.Version = 1
	}
	if script.Version != 1 {
		return nil, fmt.Errorf("unsupported scenario version %d", script.Version)
	}
	if len(script.Ownship.Keyframes) == 0 {
		return nil, fmt.Errorf("ownship.keyframes is required")
	}
	if err := validateKeyframes("ownship", script.Ownship.Keyframes); err != nil {
		return nil, err
	}

	sc := &Scenario{script: script}

	var err error
	if sc.ownAddr, err = parseAddr(script.Ownship.ICAO); err != nil {
		return nil, fmt.Errorf("ownship.icao: %w", err)
	}
	sc.ownType = traffic.ParseAircraftType(script.Ownship.Type)

	for i := range script.Traffic {
		name := fmt.Sprintf("traffic[%d]", i)
		if len(script.Traffic[i].Keyframes) == 0 {
			return nil, fmt.Errorf("%s.keyframes is required", name)
		}
		if err := validateKeyframes(name, script.Traffic[i].Keyframes); err != nil {
			return nil, err
		}
		addr, err := parseAddr(script.Traffic[i].ICAO)
		if err != nil {
			return nil, fmt.Errorf("%s.icao: %w", name, err)
		}
		if addr == 0 {
			addr = uint32(trafficBaseAddr + i)
		}
		sc.addrs = append(sc.addrs, addr)
		sc.acftTypes = append(sc.acftTypes, traffic.ParseAircraftType(script.Traffic[i].Type))
	}

	dur := script.Duration
	if dur <= 0 {
		dur = maxKeyframeTime(script)
	}
	if dur <= 0 {
		return nil, fmt.Errorf("duration is required (or deriveable from keyframes)")
	}
	sc.duration = dur
	return sc, nil
}

// Duration returns the effective scenario duration.
func (s *Scenario) Duration() time.Duration {
	if s == nil {
		return 0
	}
	return s.duration
}

// HostAt computes the ownship snapshot at elapsed. If loop is true, elapsed
// wraps around Duration(); otherwise it is clamped.
func (s *Scenario) HostAt(now time.Time, elapsed time.Duration, loop bool) traffic.HostState {
	if s == nil {
		return traffic.HostState{}
	}
	kf := sample(s.script.Ownship.Keyframes, s.clamp(elapsed, loop))

	acft := s.ownType
	if acft == traffic.AircraftUnknown {
		acft = traffic.AircraftGlider
	}
	return traffic.HostState{
		Addr:         s.ownAddr,
		AircraftType: acft,
		Latitude:     kf.LatDeg,
		Longitude:    kf.LonDeg,
		Altitude:     float64(kf.AltFeet) * feetToMeters,
		Speed:        float64(kf.GroundKt),
		Course:       kf.TrackDeg,
		Heading:      kf.TrackDeg,
		Airborne:     !kf.Ground,
		Timestamp:    now.Unix(),
		GNSSTimeMs:   now.UnixMilli(),
	}
}

// ReportsAt computes all traffic reports at elapsed.
func (s *Scenario) ReportsAt(now time.Time, elapsed time.Duration, loop bool) []traffic.Report {
	if s == nil || len(s.script.Traffic) == 0 {
		return nil
	}
	t := s.clamp(elapsed, loop)

	out := make([]traffic.Report, 0, len(s.script.Traffic))
	for i := range s.script.Traffic {
		tr := &s.script.Traffic[i]
		kf := sample(tr.Keyframes, t)
		out = append(out, traffic.Report{
			Addr:         s.addrs[i],
			AddrType:     traffic.AddrTypeICAO,
			TxType:       traffic.TxTypeFLARM,
			Protocol:     traffic.ProtocolLatest,
			AircraftType: s.acftTypes[i],
			Latitude:     kf.LatDeg,
			Longitude:    kf.LonDeg,
			Altitude:     float64(kf.AltFeet) * feetToMeters,
			Speed:        float64(kf.GroundKt),
			Course:       kf.TrackDeg,
			Heading:      kf.TrackDeg,
			Airborne:     !kf.Ground,
			Timestamp:    now.Unix(),
			GNSSTimeMs:   now.UnixMilli(),
			Callsign:     tr.Callsign,
		})
	}
	return out
}

func (s *Scenario) clamp(elapsed time.Duration, loop bool) time.Duration {
	if elapsed < 0 {
		elapsed = 0
	}
	if s.duration > 0 {
		if loop {
			elapsed = elapsed % s.duration
		} else if elapsed > s.duration {
			elapsed = s.duration
		}
	}
	return elapsed
}

func parseAddr(s string) (uint32, error) {
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil || v > 0xFFFFFF {
		return 0, fmt.Errorf("not a 24-bit hex address: %q", s)
	}
	return uint32(v), nil
}

func validateKeyframes(name string, kfs []Keyframe) error {
	for i := range kfs {
		if kfs[i].T < 0 {
			return fmt.Errorf("%s.keyframes[%d].t must be >= 0", name, i)
		}
		if i > 0 && kfs[i].T < kfs[i-1].T {
			return fmt.Errorf("%s.keyframes must be sorted by t (index %d)", name, i)
		}
	}
	return nil
}

func maxKeyframeTime(s Script) time.Duration {
	max := time.Duration(0)
	for _, kf := range s.Ownship.Keyframes {
		if kf.T > max {
			max = kf.T
		}
	}
	for _, tr := range s.Traffic {
		for _, kf := range tr.Keyframes {
			if kf.T > max {
				max = kf.T
			}
		}
	}
	return max
}

// sample interpolates the keyframe timeline at t.
func sample(kfs []Keyframe, t time.Duration) Keyframe {
	k0, k1, alpha := selectSegment(kfs, t)
	if alpha == 0 {
		return k0
	}
	return Keyframe{
		LatDeg:   lerp(k0.LatDeg, k1.LatDeg, alpha),
		LonDeg:   lerp(k0.LonDeg, k1.LonDeg, alpha),
		AltFeet:  int(lerp(float64(k0.AltFeet), float64(k1.AltFeet), alpha)),
		GroundKt: int(lerp(float64(k0.GroundKt), float64(k1.GroundKt), alpha)),
		TrackDeg: lerpAngleDeg(k0.TrackDeg, k1.TrackDeg, alpha),
		Ground:   k0.Ground,
	}
}

func selectSegment(kfs []Keyframe, t time.Duration) (Keyframe, Keyframe, float64) {
	if len(kfs) == 1 {
		return kfs[0], kfs[0], 0
	}
	idx := sort.Search(len(kfs), func(i int) bool { return kfs[i].T > t })
	if idx <= 0 {
		return kfs[0], kfs[0], 0
	}
	if idx >= len(kfs) {
		last := kfs[len(kfs)-1]
		return last, last, 0
	}
	k0 := kfs[idx-1]
	k1 := kfs[idx]
	dt := k1.T - k0.T
	if dt <= 0 {
		return k1, k1, 0
	}
	alpha := float64(t-k0.T) / float64(dt)
	if alpha < 0 {
		alpha = 0
	}
	if alpha > 1 {
		alpha = 1
	}
	return k0, k1, alpha
}

func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

// lerpAngleDeg interpolates along the shortest path across wraparound.
func lerpAngleDeg(a0, a1, t float64) float64 {
	norm := func(x float64) float64 {
		for x < 0 {
			x += 360
		}
		for x >= 360 {
			x -= 360
		}
		return x
	}
	a0 = norm(a0)
	a1 = norm(a1)
	delta := a1 - a0
	if delta > 180 {
		delta -= 360
	} else if delta < -180 {
		delta += 360
	}
	return norm(a0 + delta*t)
}
