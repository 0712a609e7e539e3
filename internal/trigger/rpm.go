package trigger

import "github.com/gotrigger/crankdecoder/internal/config"

// crankingRPMThreshold is the "RPM < crankRPM" guard value stdGetRPM
// checks before trusting a first revolution; below it, a still-zero
// startRevolutions means the engine hasn't completed a real revolution
// yet, so any RPM figure would be a startup spike.
const crankingRPMThreshold = 500

// usInMinute is the constant µsToRPM divisor.
const usInMinute = 60_000_000

// stdGetRPM computes RPM from the time between the two most recent
// sightings of tooth #1 (one revolution, or two when degreesOver is 720,
// in which case the interval is halved).
func (s *State) stdGetRPM(degreesOver uint16) uint16 {
	if !s.HasSync && !s.HalfSync {
		return 0
	}
	var rpmNow uint16
	var startRevs uint16
	var t1, t0 uint32
	s.withLock(func() {
		rpmNow = s.RPM
		startRevs = s.StartRevolutions
		t1 = s.ToothOneTime
		t0 = s.ToothOneMinusOneTime
	})
	if rpmNow < crankingRPMThreshold && startRevs == 0 {
		return 0
	}
	if t1 == 0 || t0 == 0 {
		return 0
	}
	revTime := t1 - t0
	if degreesOver == 720 {
		revTime /= 2
	}
	if revTime == 0 {
		return 0
	}
	rpm := uint32(usInMinute) / revTime
	if rpm >= uint32(s.Cfg.MaxRPM) {
		return rpmNow
	}
	return uint16(rpm)
}

// crankingGetRPM extrapolates RPM from the single most recent tooth gap,
// usable before a full revolution has completed. Only trusted once at
// least StgCycles revolutions have accumulated.
func (s *State) crankingGetRPM(totalTeeth uint16, degreesOver uint16) uint16 {
	var startRevs uint16
	var rpmNow uint16
	var tLast, tLastMinusOne uint32
	s.withLock(func() {
		startRevs = s.StartRevolutions
		rpmNow = s.RPM
		tLast = s.ToothLastToothTime
		tLastMinusOne = s.ToothLastMinusOneToothTime
	})
	if startRevs < uint16(s.Cfg.StgCycles) {
		return 0
	}
	if tLast == 0 || tLastMinusOne == 0 {
		return 0
	}
	gap := tLast - tLastMinusOne
	revTime := gap * uint32(totalTeeth)
	if degreesOver == 720 {
		revTime /= 2
	}
	if revTime == 0 {
		return 0
	}
	rpm := uint32(usInMinute) / revTime
	if rpm >= uint32(s.Cfg.MaxRPM) {
		return rpmNow
	}
	return uint16(rpm)
}

// dispatchRPM picks cranking or full-revolution RPM depending on how many
// revolutions have accumulated, then publishes the result to RPM so the
// next call's spike clamp has something to fall back to.
func (s *State) dispatchRPM(totalTeeth, degreesOver uint16) uint16 {
	var rpm uint16
	if s.StartRevolutions <= uint16(s.Cfg.StgCycles) {
		rpm = s.crankingGetRPM(totalTeeth, degreesOver)
	} else {
		rpm = s.stdGetRPM(degreesOver)
	}
	s.withLock(func() {
		s.RPM = rpm
	})
	return rpm
}

// degreesOverFor returns 720 for a cam-speed wheel (whose pattern spans
// two crank revolutions) and 360 otherwise.
func degreesOverFor(speed config.TriggerSpeed) uint16 {
	if speed == config.CamSpeed {
		return 720
	}
	return 360
}
