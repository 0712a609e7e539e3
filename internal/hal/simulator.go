package hal

import (
	"context"
	"time"

	"github.com/gotrigger/crankdecoder/internal/config"
)

// SimulatorSource generates a synthetic toothed-wheel edge stream without
// any hardware, for `decode simulate` and for scenario tests that need a
// realistic primary/secondary pattern rather than hand-fed timestamps.
type SimulatorSource struct {
	cfg config.Settings
	rpm uint16

	// Clock, when set, is used instead of time.Sleep to advance the
	// simulated timestamp — tests substitute an instant, non-sleeping
	// clock so a whole run completes without wall-clock delay.
	Clock func(us uint32, step time.Duration) uint32
}

// NewSimulatorSource builds a simulator for the wheel geometry in cfg,
// spinning at a constant rpm.
func NewSimulatorSource(cfg config.Settings, rpm uint16) *SimulatorSource {
	return &SimulatorSource{cfg: cfg, rpm: rpm}
}

// secondaryPulse reports whether the secondary/cam signal should pulse on
// the given 1-based tooth index of the current primary revolution, and at
// what level, for the configured secondary pattern.
func (s *SimulatorSource) secondaryPulse(tooth, patternTeeth uint16) (bool, bool) {
	switch s.cfg.TrigPatternSec {
	case config.SecondarySingle:
		return tooth == 1, true
	case config.Secondary4_1:
		// A 4-tooth sub-pattern: one pulse low, one high, repeating every
		// quarter of the primary pattern.
		quarter := patternTeeth / 4
		if quarter == 0 {
			return false, false
		}
		if tooth%quarter == 1 {
			return true, (tooth/quarter)%2 == 0
		}
		return false, false
	default:
		return false, false
	}
}

// Run produces a continuous missing-tooth (or evenly-spaced, for a
// distributor/dual-wheel config) primary stream at the configured RPM,
// with a secondary pulse shaped by TrigPatternSec, until ctx is
// canceled.
func (s *SimulatorSource) Run(ctx context.Context, primary, secondary, tertiary chan<- Edge) error {
	patternTeeth := s.cfg.PatternTeeth()
	actualTeeth := s.cfg.ActualTeeth()
	if patternTeeth == 0 {
		patternTeeth = uint16(s.cfg.NCylinders)
		actualTeeth = patternTeeth
	}
	if s.rpm == 0 {
		s.rpm = 1000
	}

	revTimeUS := uint32(60_000_000 / uint32(s.rpm))
	toothPeriod := revTimeUS / uint32(patternTeeth)
	gapTeeth := patternTeeth - actualTeeth

	var now uint32
	var tooth uint16

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		tooth++
		period := toothPeriod
		if gapTeeth > 0 && tooth == 1 {
			period = toothPeriod * uint32(gapTeeth+1)
		}
		now = s.advance(now, period)

		level := tooth%2 == 0
		select {
		case primary <- Edge{Channel: Primary, Direction: level, TimestampUS: now}:
		case <-ctx.Done():
			return nil
		}

		if ok, dir := s.secondaryPulse(tooth, patternTeeth); ok {
			select {
			case secondary <- Edge{Channel: Secondary, Direction: dir, TimestampUS: now}:
			case <-ctx.Done():
				return nil
			}
		}

		if tooth >= actualTeeth {
			tooth = 0
		}
	}
}

func (s *SimulatorSource) advance(now uint32, step uint32) uint32 {
	if s.Clock != nil {
		return s.Clock(now, time.Duration(step)*time.Microsecond)
	}
	time.Sleep(time.Duration(step) * time.Microsecond)
	return now + step
}
