package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"trafficwarn/internal/adsb"
	"trafficwarn/internal/alarmlog"
	"trafficwarn/internal/buzzer"
	"trafficwarn/internal/config"
	"trafficwarn/internal/gps"
	"trafficwarn/internal/identity"
	"trafficwarn/internal/nmea"
	"trafficwarn/internal/rangestats"
	"trafficwarn/internal/relay"
	"trafficwarn/internal/sim"
	"trafficwarn/internal/traffic"
	"trafficwarn/internal/udp"
	"trafficwarn/internal/web"
)

// tickInterval paces the dispatcher loop. The traffic loop itself gates at
// its own cadence, so ticking faster only tightens admission latency.
const tickInterval = 250 * time.Millisecond

// closeTrafficIntervalSec is the flight-log sweep cadence.
const closeTrafficIntervalSec = 4

const (
	// airborneGroundKt is the ground-speed threshold for the takeoff and
	// landing transitions when the position comes from a live receiver.
	airborneGroundKt = 30.0

	// gpsStaleSec stops host updates when the last fix is this old. The
	// host then ages out the same way a silent target does.
	gpsStaleSec = 10
)

// eventFanout routes flight events to the persistent log and mirrors the
// landed-out sighting onto the sentence output.
type eventFanout struct {
	log     *alarmlog.Log
	emitter *nmea.Emitter
}

func (e *eventFanout) AlarmRecord(nowSec int64, host *traffic.HostState, fop *traffic.Slot, count int) {
	e.log.AlarmRecord(nowSec, host, fop, count)
}

func (e *eventFanout) TrafficRecord(label string, nowSec int64, host *traffic.HostState, fop *traffic.Slot) {
	e.log.TrafficRecord(label, nowSec, host, fop)
}

func (e *eventFanout) LandedOut(nowSec int64, fop *traffic.Slot) {
	e.log.LandedOut(nowSec, fop)
	e.emitter.LandedOut(nowSec, fop)
}

// runtime owns the dispatcher goroutine: every World access, admission and
// tick happens on it. Other goroutines only feed the reports channel or read
// the published status snapshots.
type runtime struct {
	cfg    config.Config
	status *web.Status

	world      *traffic.World
	emitter    *nmea.Emitter
	sender     *udp.Broadcaster
	alarmLog   *alarmlog.Log
	rangeStats *rangestats.Stats
	relaySch   *relay.Scheduler
	beeper     *buzzer.Beeper
	poller     *adsb.Poller
	gpsSvc     *gps.Service
	efb        *efbSender

	reports chan []traffic.Report

	hostAddr uint32
	hostType traffic.AircraftType

	ownSim     sim.OwnshipSim
	trafficSim sim.TrafficSim
	scenario   *sim.Scenario

	started      time.Time
	wasAirborne  bool
	lastSweepSec int64
	lastRangeSec int64
}

func newRuntime(cfg config.Config) (*runtime, error) {
	hostAddr, err := config.HexID(cfg.Aircraft.ICAO)
	if err != nil {
		return nil, fmt.Errorf("aircraft.icao: %w", err)
	}
	if hostAddr == 0 {
		hostAddr = identity.RandomID(time.Now().UnixMilli(), false)
		log.Printf("no aircraft.icao configured, using generated id %06X", hostAddr)
	}
	followID, err := config.HexID(cfg.Alarm.Follow)
	if err != nil {
		return nil, fmt.Errorf("alarm.follow: %w", err)
	}

	r := &runtime{
		cfg:      cfg,
		status:   web.NewStatus(),
		reports:  make(chan []traffic.Report, 16),
		hostAddr: hostAddr,
		hostType: traffic.ParseAircraftType(cfg.Aircraft.Type),
		started:  time.Now(),
	}

	if cfg.NMEA.Dest != "" {
		sender, err := udp.NewBroadcaster(cfg.NMEA.Dest)
		if err != nil {
			return nil, fmt.Errorf("nmea dest: %w", err)
		}
		r.sender = sender
		r.emitter = nmea.NewEmitter(sender)
	} else {
		r.emitter = nmea.NewEmitter(nil)
	}

	r.alarmLog = alarmlog.New(cfg.DataDir, alarmlog.Config{
		LogAlarms:  cfg.Log.Alarms,
		LogTraffic: cfg.Log.Flight == "traffic",
		MinFreeKB:  cfg.Log.MinFreeKB,
	})
	r.rangeStats = rangestats.New(cfg.DataDir)

	protocol := traffic.ProtocolLatest
	if cfg.Radio.Protocol == "legacy" {
		protocol = traffic.ProtocolLegacy
	}

	simulated := cfg.Sim.Ownship.Enable || cfg.Sim.Scenario.Enable
	// No radio transmitter is attached on this build; the scheduler keeps
	// the policy and telemetry in place for when one is.
	r.relaySch = relay.NewScheduler(relay.Config{
		Mode:      relay.ParseMode(cfg.Relay.Mode),
		Protocol:  protocol,
		Simulated: simulated,
	}, nil)
	r.relaySch.Telemetry = r.emitter

	hooks := traffic.Hooks{
		Relayer:   r.relaySch,
		Sampler:   r.rangeStats,
		Events:    &eventFanout{log: r.alarmLog, emitter: r.emitter},
		Telemetry: r.emitter,
	}

	if cfg.Buzzer.Enable {
		beeper, err := buzzer.New(cfg.Buzzer.Chip, cfg.Buzzer.Line)
		if err != nil {
			// Keep running without a sounder.
			log.Printf("buzzer init failed: %v", err)
		} else {
			r.beeper = beeper
			hooks.Notifier = beeper
		}
	}

	r.world = traffic.NewWorld(traffic.Config{
		Algorithm:    traffic.ParseAlgorithm(cfg.Alarm.Algorithm),
		FollowID:     followID,
		AlarmDemo:    cfg.Alarm.Demo,
		DebugAlarm:   cfg.Debug.Alarm,
		DebugDeeper:  cfg.Debug.Deeper,
		NorthAmerica: cfg.Alarm.NorthAmerica,
	}, hooks)

	if cfg.Sim.Scenario.Enable {
		script, err := sim.LoadScript(cfg.Sim.Scenario.Path)
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("sim.scenario.path: %w", err)
		}
		scn, err := sim.NewScenario(script)
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("sim scenario: %w", err)
		}
		r.scenario = scn
		log.Printf("scenario %s duration=%s loop=%v", cfg.Sim.Scenario.Path, scn.Duration(), cfg.Sim.Scenario.Loop)
	}

	r.ownSim = sim.OwnshipSim{
		Addr:         hostAddr,
		AircraftType: r.hostType,
		CenterLatDeg: cfg.Sim.Ownship.CenterLatDeg,
		CenterLonDeg: cfg.Sim.Ownship.CenterLonDeg,
		AltFeet:      cfg.Sim.Ownship.AltFeet,
		GroundKt:     cfg.Sim.Ownship.GroundKt,
		RadiusNm:     cfg.Sim.Ownship.RadiusNm,
		Period:       cfg.Sim.Ownship.Period,
	}
	r.trafficSim = sim.TrafficSim{
		CenterLatDeg: cfg.Sim.Ownship.CenterLatDeg,
		CenterLonDeg: cfg.Sim.Ownship.CenterLonDeg,
		BaseAltFeet:  cfg.Sim.Ownship.AltFeet,
		GroundKt:     cfg.Sim.Traffic.GroundKt,
		RadiusNm:     cfg.Sim.Traffic.RadiusNm,
		Period:       cfg.Sim.Traffic.Period,
	}

	if cfg.GDL90.Dest != "" {
		sender, err := udp.NewBroadcaster(cfg.GDL90.Dest)
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("gdl90 dest: %w", err)
		}
		r.efb = &efbSender{sender: sender}
	}

	if cfg.GPS.Enable {
		r.gpsSvc = gps.New(gps.Config{
			Enable:   true,
			Source:   cfg.GPS.Source,
			GPSDAddr: cfg.GPS.GPSDAddr,
			Device:   cfg.GPS.Device,
			Baud:     cfg.GPS.Baud,
		})
	}

	if cfg.ADSB.Enable {
		poller, err := adsb.NewPoller(adsb.PollerConfig{
			Path:     cfg.ADSB.AircraftJSON,
			Interval: cfg.ADSB.Poll,
		})
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("adsb: %w", err)
		}
		r.poller = poller
	}

	r.status.SetStatic(web.StaticInfo{
		Algorithm: cfg.Alarm.Algorithm,
		RelayMode: cfg.Relay.Mode,
		NMEADest:  cfg.NMEA.Dest,
	})

	return r, nil
}

func (r *runtime) enqueueReports(reports []traffic.Report) {
	select {
	case r.reports <- reports:
	default:
		// The dispatcher is behind; the next poll supersedes this batch.
	}
}

// run drives the dispatcher loop until ctx is done.
func (r *runtime) run(ctx context.Context) {
	if r.poller != nil {
		if err := r.poller.Start(ctx, r.enqueueReports); err != nil {
			log.Printf("adsb poller start failed: %v", err)
		}
	}
	if r.gpsSvc != nil {
		if err := r.gpsSvc.Start(ctx); err != nil {
			log.Printf("gps start failed: %v", err)
		}
	}

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.shutdown()
			return
		case reports := <-r.reports:
			r.admit(time.Now(), reports)
		case now := <-ticker.C:
			r.step(now.UTC())
		}
	}
}

func (r *runtime) admit(now time.Time, reports []traffic.Report) {
	nowSec := now.Unix()
	nowMs := now.UnixMilli()
	for i := range reports {
		r.world.Add(nowSec, nowMs, &reports[i])
	}
}

// step runs one dispatcher pass: host update, simulated traffic, the alarm
// loop, log lifecycle and status publication.
func (r *runtime) step(now time.Time) {
	nowSec := now.Unix()
	nowMs := now.UnixMilli()

	switch {
	case r.scenario != nil:
		elapsed := now.Sub(r.started)
		loop := r.cfg.Sim.Scenario.Loop
		r.world.UpdateHost(r.scenario.HostAt(now, elapsed, loop))
		r.admit(now, r.scenario.ReportsAt(now, elapsed, loop))
	case r.cfg.Sim.Ownship.Enable:
		r.world.UpdateHost(r.ownSim.HostAt(now))
	case r.gpsSvc != nil:
		if host, ok := r.hostFromGPS(now); ok {
			r.world.UpdateHost(host)
		}
	}
	if r.cfg.Sim.Traffic.Enable {
		r.admit(now, r.trafficSim.ReportsAt(now, r.cfg.Sim.Traffic.Count))
	}

	airborne := r.world.Host.Airborne
	if airborne && !r.wasAirborne {
		log.Printf("takeoff detected")
		r.alarmLog.Start()
	}
	if !airborne && r.wasAirborne {
		log.Printf("landing detected")
		r.alarmLog.Stop()
		if err := r.rangeStats.Save(); err != nil {
			log.Printf("rangestats save failed: %v", err)
		}
	}
	r.wasAirborne = airborne

	r.world.Tick(nowSec, nowMs)

	if nowSec >= r.lastSweepSec+closeTrafficIntervalSec {
		r.lastSweepSec = nowSec
		r.alarmLog.CloseTraffic(nowSec, r.world)
	}

	if r.efb != nil {
		var horizAcc float64
		if r.gpsSvc != nil {
			if fix, ok := r.gpsSvc.Fix(); ok && fix.HasHAcc {
				horizAcc = fix.HorizAccM
			}
		}
		r.efb.emit(now, r.world, horizAcc)
	}

	r.publish(nowSec)
}

// hostFromGPS converts the latest receiver fix into a host update. Missing
// or stale fixes leave the host untouched so it ages out naturally.
func (r *runtime) hostFromGPS(now time.Time) (traffic.HostState, bool) {
	fix, ok := r.gpsSvc.Fix()
	if !ok || now.Unix()-fix.Time.Unix() > gpsStaleSec {
		return traffic.HostState{}, false
	}

	h := traffic.HostState{
		Addr:         r.hostAddr,
		AircraftType: r.hostType,
		Latitude:     fix.LatDeg,
		Longitude:    fix.LonDeg,
		Timestamp:    fix.Time.Unix(),
		GNSSTimeMs:   fix.Time.UnixMilli(),
	}
	if fix.HasAlt {
		h.Altitude = fix.AltM
	}
	if fix.HasSpeed {
		h.Speed = fix.GroundKt
	}
	if fix.HasTrack {
		h.Course = fix.TrackDeg
		h.Heading = fix.TrackDeg
	}
	if fix.HasClimb {
		h.Vs = fix.ClimbFPM
	}
	h.Airborne = h.Speed >= airborneGroundKt
	return h, true
}

func (r *runtime) publish(nowSec int64) {
	r.status.PublishWorld(web.BuildWorldSnapshot(r.world, nowSec))
	if r.poller != nil {
		r.status.PublishFeed(r.poller.Snapshot())
	}
	if r.gpsSvc != nil {
		r.status.PublishGPS(r.gpsSvc.Snapshot())
	}
	if nowSec >= r.lastRangeSec+10 {
		r.lastRangeSec = nowSec
		ranges, rssiMean, rssiMSD := r.rangeStats.Snapshot()
		r.status.PublishRange(struct {
			Sectors  []rangestats.SectorRange `json:"sectors"`
			RSSIMean float64                  `json:"rssi_mean"`
			RSSIMSD  float64                  `json:"rssi_msd"`
		}{Sectors: ranges[:], RSSIMean: rssiMean, RSSIMSD: rssiMSD})
	}
}

func (r *runtime) shutdown() {
	if r.wasAirborne {
		r.alarmLog.Stop()
		if err := r.rangeStats.Save(); err != nil {
			log.Printf("rangestats save failed: %v", err)
		}
		r.wasAirborne = false
	}
}

func (r *runtime) Close() {
	if r == nil {
		return
	}
	if r.poller != nil {
		r.poller.Close()
		r.poller = nil
	}
	if r.gpsSvc != nil {
		r.gpsSvc.Close()
		r.gpsSvc = nil
	}
	if r.efb != nil {
		r.efb.Close()
		r.efb = nil
	}
	if r.beeper != nil {
		_ = r.beeper.Close()
		r.beeper = nil
	}
	if r.sender != nil {
		_ = r.sender.Close()
		r.sender = nil
	}
}
