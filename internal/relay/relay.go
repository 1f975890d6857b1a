// Package relay re-transmits other aircraft's position packets once while
// the host is airborne (in the "only" mode also on the ground), extending
// network range for landed-out gliders and
// for ADS-B targets invisible to nearby short-range receivers.
package relay

import (
	"log"

	"trafficwarn/internal/traffic"
)

// Mode is the relay policy selector.
type Mode uint8

const (
	ModeOff Mode = iota
	ModeLanded
	ModeAll
	ModeOnly // relay without flying: ground station use
)

// ParseMode maps a config string onto a Mode, defaulting to landed-out only.
func ParseMode(s string) Mode {
	switch s {
	case "off":
		return ModeOff
	case "all":
		return ModeAll
	case "only":
		return ModeOnly
	default:
		return ModeLanded
	}
}

// Transmitter is the radio side of the scheduler. SlotEndMs is the wall
// clock millisecond at which the current transmit slot closes.
type Transmitter interface {
	CurrentSlot() int
	TransmitHappened() bool
	SlotEndMs() int64
	Relay(fop *traffic.Slot) bool
}

// Telemetry receives relay notifications for the sentence output. All
// methods may be called from the dispatcher goroutine only.
type Telemetry interface {
	RelayNotice(nowSec int64, fop *traffic.Slot)
	RelayDebug(fop *traffic.Slot)
}

// Config tunes the scheduler.
type Config struct {
	Mode Mode

	// Protocol is the host radio protocol. Relaying only makes sense on
	// the short-range link protocols.
	Protocol traffic.Protocol

	// Simulated suppresses relaying while replaying recorded traffic.
	Simulated bool
}

// Scheduler decides, packet by packet, whether to re-transmit. It is driven
// from the dispatcher goroutine via Consider and keeps no locks.
type Scheduler struct {
	cfg Config
	tx  Transmitter

	// Telemetry, when set, is told about successful relays.
	Telemetry Telemetry

	lastRelayMs int64

	// Waiting is set when a landed-out relay could not be transmitted, so
	// the radio layer should hold the host's own next slot-0 broadcast and
	// leave room for another attempt.
	Waiting bool
}

// NewScheduler wires the policy to a radio.
func NewScheduler(cfg Config, tx Transmitter) *Scheduler {
	return &Scheduler{cfg: cfg, tx: tx}
}

// Consider implements traffic.Relayer.
func (s *Scheduler) Consider(nowMs int64, host *traffic.HostState, cip *traffic.Slot) {
	if s.tx == nil || s.cfg.Mode == ModeOff || s.cfg.Simulated {
		return
	}
	if !s.cfg.Protocol.Radio() {
		return
	}
	if !host.Airborne && s.cfg.Mode != ModeOnly {
		return
	}
	if cip.Relayed || cip.TxType <= traffic.TxTypeS {
		return // one hop only, and never bearingless targets
	}

	landedOut := cip.Protocol.Radio() && cip.AircraftType == traffic.AircraftUnknown
	often := landedOut
	if !landedOut {
		if s.cfg.Mode < ModeAll {
			return
		}
		if s.cfg.Mode == ModeOnly && cip.TxType < traffic.TxTypeFLARM {
			return
		}
		if cip.AircraftType != traffic.AircraftJet && cip.AircraftType != traffic.AircraftHelicopter {
			// Anything slow enough to also carry a short-range transmitter
			// is only relayed when close, where that transmitter would
			// already have been heard directly if present.
			if cip.Distance > 10000 {
				return
			}
		}
		often = true
	}

	if nowMs < s.lastRelayMs+1000*traffic.AnyRelayTimeSec {
		return
	}
	perTarget := int64(traffic.EntryRelayTimeSec)
	if often {
		perTarget = traffic.AnyRelayTimeSec + 2
	}
	if cip.TimeRelayed+perTarget > cip.Timestamp {
		return
	}

	relayed := false
	if s.tx.CurrentSlot() == 0 && !s.tx.TransmitHappened() && nowMs+15 < s.tx.SlotEndMs() {
		relayed = s.tx.Relay(cip)
	}

	first := cip.TimeRelayed == 0
	if first {
		// first relay attempt since the slot was (re)claimed
		cip.TimeRelayed = 1
	}

	if relayed {
		cip.TimeRelayed = host.Timestamp
		s.lastRelayMs = nowMs
		s.Waiting = false
		if s.Telemetry != nil {
			if first && !landedOut {
				s.Telemetry.RelayNotice(host.Timestamp, cip)
			}
			s.Telemetry.RelayDebug(cip)
		}
		if landedOut {
			log.Printf("relay sent addr=%06X landed-out", cip.Addr)
		} else {
			log.Printf("relay sent addr=%06X tx_type=%d", cip.Addr, cip.TxType)
		}
	} else if landedOut {
		// Hold our own next slot-0 broadcast so a fresh packet from the
		// landed-out aircraft can be relayed instead.
		s.Waiting = true
	}
}
