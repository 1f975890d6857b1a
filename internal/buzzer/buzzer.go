// Package buzzer drives a piezo sounder on a GPIO output line. Alarm levels
// map to beep patterns; playback runs on its own goroutine so the traffic
// dispatcher never blocks on a sounder.
package buzzer

import (
	"log"
	"time"

	"trafficwarn/internal/traffic"
)

// outputLine is the part of a requested GPIO line the beeper uses.
type outputLine interface {
	SetValue(v int) error
	Close() error
}

// pattern is one playback request. Higher alarm levels beep more and faster.
type pattern struct {
	beeps int
	on    time.Duration
	off   time.Duration
}

func patternFor(level traffic.AlarmLevel, multiple bool) (pattern, bool) {
	var p pattern
	switch level {
	case traffic.AlarmLow:
		p = pattern{beeps: 1, on: 700 * time.Millisecond, off: 400 * time.Millisecond}
	case traffic.AlarmImportant:
		p = pattern{beeps: 2, on: 250 * time.Millisecond, off: 250 * time.Millisecond}
	case traffic.AlarmUrgent:
		p = pattern{beeps: 4, on: 120 * time.Millisecond, off: 120 * time.Millisecond}
	default:
		return pattern{}, false
	}
	if multiple {
		p.beeps++
	}
	return p, true
}

// Beeper implements the alarm sounder half of the notifier contract.
// Voice output is not available on this hardware.
type Beeper struct {
	line outputLine
	ch   chan pattern
	done chan struct{}
}

// New opens the configured GPIO line and starts the playback goroutine.
// chip is a character device name like "gpiochip0".
func New(chip string, line int) (*Beeper, error) {
	l, err := openLine(chip, line)
	if err != nil {
		return nil, err
	}
	return newBeeper(l), nil
}

func newBeeper(l outputLine) *Beeper {
	b := &Beeper{
		line: l,
		ch:   make(chan pattern, 1),
		done: make(chan struct{}),
	}
	go b.run()
	return b
}

// Buzzer reports true when a pattern was sounded (or is already sounding).
// A playback in progress is not
// interrupted; one request queues behind it and any further overlapping
// request is dropped.
func (b *Beeper) Buzzer(level traffic.AlarmLevel, multiple bool) bool {
	if b == nil {
		return false
	}
	p, ok := patternFor(level, multiple)
	if !ok {
		return false
	}
	select {
	case b.ch <- p:
	default:
		// Already playing. The sounder is audible either way.
	}
	return true
}

// Voice is a no-op; there is no speech synthesis behind a GPIO sounder.
func (b *Beeper) Voice(host *traffic.HostState, fop *traffic.Slot, multiple bool) bool {
	return false
}

func (b *Beeper) run() {
	for p := range b.ch {
		for i := 0; i < p.beeps; i++ {
			if err := b.line.SetValue(1); err != nil {
				log.Printf("buzzer: set line: %v", err)
				continue
			}
			time.Sleep(p.on)
			_ = b.line.SetValue(0)
			if i < p.beeps-1 {
				time.Sleep(p.off)
			}
		}
	}
	_ = b.line.SetValue(0)
	_ = b.line.Close()
	close(b.done)
}

// Close stops playback and releases the line.
func (b *Beeper) Close() error {
	if b == nil {
		return nil
	}
	close(b.ch)
	<-b.done
	return nil
}
