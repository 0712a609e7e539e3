package trigger

import "github.com/gotrigger/crankdecoder/internal/config"

// emaFilter applies a configurable-weight exponential moving average,
// integer-only: delta = (sample-old)*weightPct/100.
func emaFilter(old, sample int16, weightPct uint8) int16 {
	diff := int32(sample) - int32(old)
	delta := diff * int32(weightPct) / 100
	return int16(int32(old) + delta)
}

// sampleVVT1Locked measures the cam-1 phase angle from the current crank
// angle: normalize to [0,360), subtract the trigger angle offset and, in
// closed-loop mode, the configured duty-cycle angle, then feed the
// half-degree-resolution result through the exponential filter. Must be
// called with the state lock already held.
func (s *State) sampleVVT1Locked(now uint32) {
	angle := s.crankAngleNowLocked(now, false)
	a := normalizeAngle(angle, 360)
	a -= int32(s.TriggerAngleOffset)
	if s.Cfg.VVTMode == config.VVTClosedLoop {
		a -= int32(s.Cfg.VVTCL0DutyAng)
	}
	a = normalizeAngle(a, 360)
	sample := int16(a << 1)
	s.VVT1Angle = emaFilter(s.VVT1Angle, sample, s.Cfg.AngleFilterVVT)
}

// sampleVVT2Locked is the tertiary-channel mirror of sampleVVT1Locked.
func (s *State) sampleVVT2Locked(now uint32) {
	angle := s.crankAngleNowLocked(now, false)
	a := normalizeAngle(angle, 360)
	a -= int32(s.TriggerAngleOffset)
	if s.Cfg.VVTMode == config.VVTClosedLoop {
		a -= int32(s.Cfg.VVTCL0DutyAng)
	}
	a = normalizeAngle(a, 360)
	sample := int16(a << 1)
	s.VVT2Angle = emaFilter(s.VVT2Angle, sample, s.Cfg.AngleFilterVVT)
}
