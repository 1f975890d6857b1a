// Package rangestats accumulates radio reception range and RSSI statistics
// across flights. Ranges are binned into twelve clock sectors around the
// host's heading; the persisted file keeps log-domain means so short and
// long flights weigh in fairly.
package rangestats

import (
	"bufio"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"

	"trafficwarn/internal/traffic"
)

const (
	fileVersion = 1
	sectors     = 12

	fileName    = "range.txt"
	oldFileName = "oldrange.txt"
)

// Stats is confined to the dispatcher goroutine, like the tracking table
// that feeds it.
type Stats struct {
	dir string

	// Persisted means from previous flights.
	oldRange  [sectors]float64 // mean log2(km) per sector
	oldRangeN [sectors]uint32

	// Accumulators for the current flight.
	newRange  [sectors]float64 // sum of log2(km) per sector
	newRangeN [sectors]uint32

	oldRSSIMean float64
	oldRSSIN    uint32
	oldRSSISSD  float64 // mean squared deviation

	newRSSISum float64
	newRSSIDev float64 // sum of deviations from the old mean
	newRSSISSD float64 // sum of squared deviations from the old mean
	newRSSIN   uint32
}

// New loads any persisted statistics from dir. A missing or malformed file
// just starts the accumulators from zero.
func New(dir string) *Stats {
	s := &Stats{dir: dir}
	if err := s.load(); err != nil {
		log.Printf("rangestats: %v", err)
	}
	return s
}

func (s *Stats) zero() {
	*s = Stats{dir: s.dir}
}

func (s *Stats) load() error {
	s.zero()
	f, err := os.Open(filepath.Join(s.dir, fileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	if !sc.Scan() {
		return fmt.Errorf("empty %s", fileName)
	}
	var version int
	if _, err := fmt.Sscanf(sc.Text(), "%d", &version); err != nil || version != fileVersion {
		return fmt.Errorf("wrong version of %s", fileName)
	}
	for oclock := 0; oclock < sectors; oclock++ {
		if !sc.Scan() {
			s.zero()
			return fmt.Errorf("%s ended early", fileName)
		}
		var linRange float64 // kept for readability of the file, ignored
		if _, err := fmt.Sscanf(sc.Text(), "%f,%f,%d",
			&linRange, &s.oldRange[oclock], &s.oldRangeN[oclock]); err != nil {
			s.zero()
			return fmt.Errorf("%s sector %d: %v", fileName, oclock, err)
		}
		s.oldRSSIN += s.oldRangeN[oclock]
	}
	if !sc.Scan() {
		s.zero()
		return fmt.Errorf("%s ended early", fileName)
	}
	if _, err := fmt.Sscanf(sc.Text(), "%f,%f", &s.oldRSSIMean, &s.oldRSSISSD); err != nil {
		s.zero()
		return fmt.Errorf("%s rssi line: %v", fileName, err)
	}
	return nil
}

// Sample implements traffic.RangeSampler. Called for targets about to leave
// the table and for fresh admissions, it records the reception distance in
// the sector the target was heard from. Targets mostly above or below are
// skipped since their range says little about the antenna pattern.
func (s *Stats) Sample(host *traffic.HostState, fop *traffic.Slot) {
	if !host.Airborne || !fop.Airborne {
		return
	}
	if fop.TxType < traffic.TxTypeFLARM {
		return
	}
	if fop.Distance < 1000 {
		return
	}
	if 4*math.Abs(fop.AltDiff) > fop.Distance {
		return
	}
	oclock := fop.RelativeHeading + 15
	if oclock < 0 {
		oclock += 360
	}
	if oclock >= 360 {
		oclock -= 360
	}
	oclock /= 30
	s.newRange[oclock] += math.Log2(0.001 * fop.Distance)
	s.newRangeN[oclock]++

	rssi := float64(fop.RSSI)
	s.newRSSISum += rssi
	dev := rssi - s.oldRSSIMean
	s.newRSSIDev += dev
	s.newRSSISSD += dev * dev
	s.newRSSIN++
}

// Save merges this flight's samples into the persisted means and rewrites
// the stats file, keeping the previous file as a backup. Intended to run
// after landing. With no new samples it does nothing.
func (s *Stats) Save() error {
	if s.newRSSIN == 0 {
		return nil
	}
	path := filepath.Join(s.dir, fileName)
	oldPath := filepath.Join(s.dir, oldFileName)
	os.Remove(oldPath)
	os.Rename(path, oldPath)

	f, err := os.Create(path)
	if err != nil {
		return err
	}

	fmt.Fprintf(f, "%d\n", fileVersion)
	for oclock := 0; oclock < sectors; oclock++ {
		if s.newRangeN[oclock] != 0 {
			sum := s.newRange[oclock] + s.oldRange[oclock]*float64(s.oldRangeN[oclock])
			s.newRangeN[oclock] += s.oldRangeN[oclock]
			s.newRange[oclock] = sum / float64(s.newRangeN[oclock]) // new mean
		} else {
			s.newRange[oclock] = s.oldRange[oclock]
			s.newRangeN[oclock] = s.oldRangeN[oclock]
		}
		lin := 0.0
		if s.newRangeN[oclock] != 0 {
			lin = math.Exp2(s.newRange[oclock])
		}
		fmt.Fprintf(f, "%.1f,%f,%d\n", lin, s.newRange[oclock], s.newRangeN[oclock])
	}

	// Combine the RSSI mean and mean squared deviation with the persisted
	// values. The new deviations were taken against the old mean, so the
	// parallel-axis correction re-centers them on the combined mean.
	s.newRSSISum += s.oldRSSIMean * float64(s.oldRSSIN)
	s.newRSSIN += s.oldRSSIN
	s.newRSSISum /= float64(s.newRSSIN) // combined mean
	devSquared := s.newRSSIDev * s.newRSSIDev
	ssd := s.oldRSSISSD*float64(s.oldRSSIN) + s.newRSSISSD
	ssd -= devSquared / float64(s.newRSSIN)
	ssd /= float64(s.newRSSIN)
	fmt.Fprintf(f, "%f,%f\n", s.newRSSISum, ssd)

	if err := f.Close(); err != nil {
		return err
	}
	return s.load() // re-seed the accumulators in case of another flight
}

// SectorRange is one clock sector of the persisted statistics.
type SectorRange struct {
	MeanKm  float64
	Samples uint32
}

// Snapshot returns the persisted per-sector ranges and the RSSI summary
// for status displays. Current-flight samples are not included until saved.
func (s *Stats) Snapshot() (ranges [sectors]SectorRange, rssiMean, rssiMSD float64) {
	for i := 0; i < sectors; i++ {
		if s.oldRangeN[i] != 0 {
			ranges[i] = SectorRange{MeanKm: math.Exp2(s.oldRange[i]), Samples: s.oldRangeN[i]}
		}
	}
	return ranges, s.oldRSSIMean, s.oldRSSISSD
}
