package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	// DataDir holds the alarm log and the range-statistics files.
	DataDir string `yaml:"data_dir"`

	Aircraft AircraftConfig `yaml:"aircraft"`
	Alarm    AlarmConfig    `yaml:"alarm"`
	Radio    RadioConfig    `yaml:"radio"`
	Relay    RelayConfig    `yaml:"relay"`
	Log      LogConfig      `yaml:"log"`
	GPS      GPSConfig      `yaml:"gps"`
	NMEA     NMEAConfig     `yaml:"nmea"`
	GDL90    GDL90Config    `yaml:"gdl90"`
	ADSB     ADSBConfig     `yaml:"adsb"`
	Web      WebConfig      `yaml:"web"`
	Buzzer   BuzzerConfig   `yaml:"buzzer"`
	Sim      SimConfig      `yaml:"sim"`
	Debug    DebugConfig    `yaml:"debug"`
}

type AircraftConfig struct {
	// ICAO is the host 24-bit address in hex. Empty selects a generated
	// self-assigned id.
	ICAO string `yaml:"icao"`
	Type string `yaml:"type"`
}

type AlarmConfig struct {
	// Algorithm is one of none, distance, vector, latest.
	Algorithm string `yaml:"algorithm"`

	// Follow pins one hex address so it never loses its table slot to
	// eviction; it still expires like any other entry.
	Follow string `yaml:"follow"`

	// Demo lets alarms fire on the ground, for bench testing.
	Demo bool `yaml:"demo"`

	// NorthAmerica enables computed N-number / C- registration callsigns.
	NorthAmerica bool `yaml:"north_america"`
}

type RadioConfig struct {
	// Protocol is the host link protocol, legacy or latest.
	Protocol string `yaml:"protocol"`
}

type RelayConfig struct {
	// Mode is one of off, landed, all, only.
	Mode string `yaml:"mode"`
}

type LogConfig struct {
	// Alarms enables one CSV line per sounded notification.
	Alarms bool `yaml:"alarms"`

	// Flight is one of none, traffic. Traffic adds per-target flight-log
	// lines and the periodic close-traffic sweep.
	Flight string `yaml:"flight"`

	// MinFreeKB is the free-space floor below which an existing alarm log
	// is discarded instead of appended to.
	MinFreeKB int64 `yaml:"min_free_kb"`

	// App optionally redirects operational log output to a rotating file.
	App AppLogConfig `yaml:"app"`
}

type AppLogConfig struct {
	Path       string `yaml:"path"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
}

// GPSConfig selects the live host position source. Ignored while a
// simulator or scenario drives the ownship.
type GPSConfig struct {
	Enable bool `yaml:"enable"`

	// Source is nmea (direct serial) or gpsd.
	Source string `yaml:"source"`

	// GPSDAddr is the gpsd host:port when source is gpsd.
	GPSDAddr string `yaml:"gpsd_addr"`

	// Device is the serial device path, empty to auto-detect.
	Device string `yaml:"device"`
	Baud   int    `yaml:"baud"`
}

type NMEAConfig struct {
	// Dest is the UDP host:port the telemetry sentences are sent to.
	Dest string `yaml:"dest"`
}

// GDL90Config streams the display subset (heartbeat, ownship, traffic) to
// an EFB app over UDP.
type GDL90Config struct {
	// Dest is the UDP host:port of the display, empty to disable.
	Dest string `yaml:"dest"`
}

type ADSBConfig struct {
	Enable bool `yaml:"enable"`

	// AircraftJSON is the dump1090-style aircraft.json path to poll.
	AircraftJSON string        `yaml:"aircraft_json"`
	Poll         time.Duration `yaml:"poll"`
}

type WebConfig struct {
	Listen string `yaml:"listen"`
}

type BuzzerConfig struct {
	Enable bool   `yaml:"enable"`
	Chip   string `yaml:"chip"`
	Line   int    `yaml:"line"`
}

type SimConfig struct {
	Ownship  OwnshipSimConfig  `yaml:"ownship"`
	Traffic  TrafficSimConfig  `yaml:"traffic"`
	Scenario ScenarioSimConfig `yaml:"scenario"`
}

// ScenarioSimConfig selects a keyframe script instead of the orbit
// generators. When enabled it takes precedence over sim.ownship.
type ScenarioSimConfig struct {
	Enable bool   `yaml:"enable"`
	Path   string `yaml:"path"`
	Loop   bool   `yaml:"loop"`
}

type OwnshipSimConfig struct {
	Enable       bool          `yaml:"enable"`
	CenterLatDeg float64       `yaml:"center_lat_deg"`
	CenterLonDeg float64       `yaml:"center_lon_deg"`
	AltFeet      int           `yaml:"alt_feet"`
	GroundKt     int           `yaml:"ground_kt"`
	RadiusNm     float64       `yaml:"radius_nm"`
	Period       time.Duration `yaml:"period"`
}

type TrafficSimConfig struct {
	Enable   bool          `yaml:"enable"`
	Count    int           `yaml:"count"`
	RadiusNm float64       `yaml:"radius_nm"`
	Period   time.Duration `yaml:"period"`
	GroundKt int           `yaml:"ground_kt"`
}

type DebugConfig struct {
	// Alarm emits the per-evaluation $PSALV / $PSALL sentences.
	Alarm bool `yaml:"alarm"`

	// Deeper adds the per-aircraft reception statistics at expiry.
	Deeper bool `yaml:"deeper"`
}

// HexID parses a 24-bit hex address field, zero when empty.
func HexID(s string) (uint32, error) {
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil || v > 0xFFFFFF {
		return 0, fmt.Errorf("not a 24-bit hex address: %q", s)
	}
	return uint32(v), nil
}

func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("config: %w", err)
	}

	if cfg.DataDir == "" {
		cfg.DataDir = "."
	}

	switch cfg.Alarm.Algorithm {
	case "":
		cfg.Alarm.Algorithm = "latest"
	case "none", "distance", "vector", "latest":
	default:
		return Config{}, fmt.Errorf("alarm.algorithm %q is not one of none, distance, vector, latest", cfg.Alarm.Algorithm)
	}
	if _, err := HexID(cfg.Alarm.Follow); err != nil {
		return Config{}, fmt.Errorf("alarm.follow: %w", err)
	}
	if _, err := HexID(cfg.Aircraft.ICAO); err != nil {
		return Config{}, fmt.Errorf("aircraft.icao: %w", err)
	}

	switch cfg.Radio.Protocol {
	case "":
		cfg.Radio.Protocol = "latest"
	case "legacy", "latest":
	default:
		return Config{}, fmt.Errorf("radio.protocol %q is not one of legacy, latest", cfg.Radio.Protocol)
	}

	switch cfg.Relay.Mode {
	case "":
		cfg.Relay.Mode = "landed"
	case "off", "landed", "all", "only":
	default:
		return Config{}, fmt.Errorf("relay.mode %q is not one of off, landed, all, only", cfg.Relay.Mode)
	}

	switch cfg.Log.Flight {
	case "":
		cfg.Log.Flight = "none"
	case "none", "traffic":
	default:
		return Config{}, fmt.Errorf("log.flight %q is not one of none, traffic", cfg.Log.Flight)
	}
	if cfg.Log.MinFreeKB <= 0 {
		cfg.Log.MinFreeKB = 15
	}
	if cfg.Log.App.Path != "" {
		if cfg.Log.App.MaxSizeMB <= 0 {
			cfg.Log.App.MaxSizeMB = 5
		}
		if cfg.Log.App.MaxBackups <= 0 {
			cfg.Log.App.MaxBackups = 2
		}
	}

	if cfg.ADSB.Enable {
		if cfg.ADSB.AircraftJSON == "" {
			return Config{}, fmt.Errorf("adsb.aircraft_json is required when adsb.enable is true")
		}
		if cfg.ADSB.Poll <= 0 {
			cfg.ADSB.Poll = 1 * time.Second
		}
	}

	if cfg.Buzzer.Enable {
		if cfg.Buzzer.Chip == "" {
			cfg.Buzzer.Chip = "gpiochip0"
		}
	}

	if cfg.GPS.Enable {
		switch cfg.GPS.Source {
		case "":
			cfg.GPS.Source = "nmea"
		case "nmea", "gpsd":
		default:
			return Config{}, fmt.Errorf("gps.source %q is not one of nmea, gpsd", cfg.GPS.Source)
		}
		if cfg.GPS.Baud <= 0 {
			cfg.GPS.Baud = 9600
		}
	}

	if cfg.Sim.Scenario.Enable && cfg.Sim.Scenario.Path == "" {
		return Config{}, fmt.Errorf("sim.scenario.path is required when sim.scenario.enable is true")
	}

	// Simulator defaults (safe even if disabled).
	if cfg.Sim.Ownship.Period <= 0 {
		cfg.Sim.Ownship.Period = 120 * time.Second
	}
	if cfg.Sim.Ownship.RadiusNm <= 0 {
		cfg.Sim.Ownship.RadiusNm = 0.5
	}
	if cfg.Sim.Ownship.GroundKt <= 0 {
		cfg.Sim.Ownship.GroundKt = 90
	}
	if cfg.Sim.Ownship.AltFeet == 0 {
		cfg.Sim.Ownship.AltFeet = 3000
	}
	if cfg.Sim.Traffic.Count <= 0 {
		cfg.Sim.Traffic.Count = 3
	}
	if cfg.Sim.Traffic.RadiusNm <= 0 {
		cfg.Sim.Traffic.RadiusNm = 2.0
	}
	if cfg.Sim.Traffic.Period <= 0 {
		cfg.Sim.Traffic.Period = 90 * time.Second
	}
	if cfg.Sim.Traffic.GroundKt <= 0 {
		cfg.Sim.Traffic.GroundKt = 120
	}

	return cfg, nil
}
