// Package adsb feeds dump1090-style aircraft JSON into the tracking table.
// Targets decoded here arrive on the external path: they never displace a
// fresh direct radio track, and they are relayed onto the air only in the
// "all" relay mode.
package adsb

import (
	"bytes"
	"math"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"trafficwarn/internal/traffic"
)

// ParseAircraftJSON parses one aircraft.json document (dump1090-fa or
// readsb layout) into position reports. It is intentionally tolerant:
// unknown fields are ignored and parse failures return an empty slice so
// the feed stays healthy.
func ParseAircraftJSON(raw []byte, nowSec int64) []traffic.Report {
	var wrap struct {
		Aircraft []jsonAircraft `json:"aircraft"`
	}
	if err := json.Unmarshal(raw, &wrap); err != nil {
		return nil
	}
	if len(wrap.Aircraft) > 0 {
		out := make([]traffic.Report, 0, len(wrap.Aircraft))
		for _, a := range wrap.Aircraft {
			if r, ok := a.toReport(nowSec); ok {
				out = append(out, r)
			}
		}
		return out
	}

	var single jsonAircraft
	if err := json.Unmarshal(raw, &single); err != nil {
		return nil
	}
	if r, ok := single.toReport(nowSec); ok {
		return []traffic.Report{r}
	}
	return nil
}

type jsonAircraft struct {
	Hex      string          `json:"hex"`
	Type     string          `json:"type"`
	Lat      *float64        `json:"lat"`
	Lon      *float64        `json:"lon"`
	AltBaro  json.RawMessage `json:"alt_baro"` // feet, or the string "ground"
	AltGeom  *int            `json:"alt_geom"` // feet
	GS       *float64        `json:"gs"`       // knots
	Track    *float64        `json:"track"`
	BaroRate *int            `json:"baro_rate"` // fpm
	GeomRate *int            `json:"geom_rate"`
	Flight   string          `json:"flight"`
	Category string          `json:"category"`
	RSSI     *float64        `json:"rssi"`
	SeenPos  *float64        `json:"seen_pos"` // seconds since last position
}

const feetToMeters = 0.3048

func (a jsonAircraft) toReport(nowSec int64) (traffic.Report, bool) {
	hex := strings.TrimSpace(a.Hex)
	addrType := traffic.AddrTypeICAO
	if strings.HasPrefix(hex, "~") {
		// readsb marks non-ICAO (TIS-B track file) addresses with a tilde.
		hex = hex[1:]
		addrType = traffic.AddrTypeSelfAssigned
	}
	addr, err := strconv.ParseUint(hex, 16, 32)
	if err != nil || addr == 0 || addr > 0xFFFFFF {
		return traffic.Report{}, false
	}
	if a.Lat == nil || a.Lon == nil {
		// Not a usable target without a position.
		return traffic.Report{}, false
	}

	onGround := bytes.Equal(a.AltBaro, []byte(`"ground"`))
	altFeet := 0
	if a.AltGeom != nil {
		altFeet = *a.AltGeom
	} else if len(a.AltBaro) > 0 && !onGround {
		if v, err := strconv.Atoi(string(a.AltBaro)); err == nil {
			altFeet = v
		}
	}

	speedKt := 0.0
	if a.GS != nil && *a.GS > 0 {
		speedKt = *a.GS
	}

	course := 0.0
	if a.Track != nil {
		course = *a.Track
	}

	vs := 0.0
	if a.GeomRate != nil {
		vs = float64(*a.GeomRate)
	} else if a.BaroRate != nil {
		vs = float64(*a.BaroRate)
	}

	rssi := int8(0)
	if a.RSSI != nil {
		v := math.Round(*a.RSSI)
		if v < -127 {
			v = -127
		}
		if v > 0 {
			v = 0
		}
		rssi = int8(v)
	}

	ts := nowSec
	if a.SeenPos != nil && *a.SeenPos > 0 {
		ts -= int64(*a.SeenPos)
	}

	callsign := strings.TrimSpace(a.Flight)
	if len(callsign) > 8 {
		callsign = callsign[:8]
	}

	return traffic.Report{
		Addr:         uint32(addr),
		AddrType:     addrType,
		TxType:       txType(a.Type),
		Protocol:     traffic.ProtocolADSB1090,
		AircraftType: aircraftType(a.Category),
		Latitude:     *a.Lat,
		Longitude:    *a.Lon,
		Altitude:     float64(altFeet) * feetToMeters,
		Speed:        speedKt,
		Course:       course,
		Heading:      course,
		Vs:           vs,
		Timestamp:    ts,
		GNSSTimeMs:   ts * 1000,
		RSSI:         rssi,
		Airborne:     !onGround,
		Callsign:     callsign,
	}, true
}

func txType(s string) traffic.TxType {
	switch {
	case strings.HasPrefix(s, "adsb"):
		return traffic.TxTypeADSB
	case strings.HasPrefix(s, "adsr"):
		return traffic.TxTypeADSR
	case strings.HasPrefix(s, "tisb"):
		return traffic.TxTypeTISB
	case strings.HasPrefix(s, "mode_s"):
		return traffic.TxTypeS
	default:
		return traffic.TxTypeADSB
	}
}

// aircraftType maps the ADS-B emitter category onto the radio protocol's
// aircraft types, the same buckets the table and relay policy reason about.
func aircraftType(category string) traffic.AircraftType {
	switch category {
	case "A1", "A2":
		return traffic.AircraftPowered
	case "A3", "A4", "A5":
		return traffic.AircraftJet
	case "A7":
		return traffic.AircraftHelicopter
	case "B1":
		return traffic.AircraftGlider
	case "B2":
		return traffic.AircraftBalloon
	case "B3":
		return traffic.AircraftSkydiver
	case "B4":
		return traffic.AircraftHangGlider
	case "B6":
		return traffic.AircraftUAV
	default:
		return traffic.AircraftPowered
	}
}
