package traffic

import "sort"

// Census summarizes the table for status displays.
type Census struct {
	Occupied int
	Radio    int // heard over the short-range radio link
	External int // relayed from ADS-B sources
	MaxRSSI  int8
}

// Count tallies the live slots. MaxRSSI covers radio-link targets only.
func (w *World) Count(nowSec int64) Census {
	var c Census
	for i := range w.Table {
		s := &w.Table[i]
		if s.Empty() || s.Expired(nowSec) {
			continue
		}
		c.Occupied++
		if s.Protocol.External() {
			c.External++
		} else {
			if c.Radio == 0 || s.RSSI > c.MaxRSSI {
				c.MaxRSSI = s.RSSI
			}
			c.Radio++
		}
	}
	return c
}

// ByDistance returns the live slots ordered nearest first. The slots are
// copied so callers may hold the snapshot across ticks.
func (w *World) ByDistance(nowSec int64) []Slot {
	out := make([]Slot, 0, MaxTrackingObjects)
	for i := range w.Table {
		s := &w.Table[i]
		if s.Empty() || s.Expired(nowSec) {
			continue
		}
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].AdjDistance < out[j].AdjDistance
	})
	return out
}
