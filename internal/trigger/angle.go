package trigger

import (
	"github.com/gotrigger/crankdecoder/internal/config"
	"github.com/gotrigger/crankdecoder/internal/crankmath"
)

// crankAngleSnapshot is the plain-old-data copy taken under the critical
// section before the interpolation arithmetic runs lock-free.
type crankAngleSnapshot struct {
	toothCurrentCount  uint16
	toothLastToothTime uint32
	revolutionOne      bool
	rpm                uint16
}

func (s *State) takeCrankAngleSnapshot() crankAngleSnapshot {
	var snap crankAngleSnapshot
	s.withLock(func() {
		snap = crankAngleSnapshot{
			toothCurrentCount:  s.ToothCurrentCount,
			toothLastToothTime: s.ToothLastToothTime,
			revolutionOne:      s.RevolutionOne,
			rpm:                s.RPM,
		}
	})
	return snap
}

// crankAngleFrom computes crank angle ATDC from a snapshot plus the
// caller-supplied "now". divideByAngleMul divides the tooth-count term by
// TriggerAngleMul before adding the offset, the non-360 dual decoder's
// variant of the formula.
func (s *State) crankAngleFrom(snap crankAngleSnapshot, now uint32, divideByAngleMul bool) int32 {
	base := int32(snap.toothCurrentCount-1) * int32(s.TriggerToothAngle)
	if divideByAngleMul && s.Cfg.TriggerAngleMul > 0 {
		base /= int32(s.Cfg.TriggerAngleMul)
	}
	base += int32(s.TriggerAngleOffset)
	if s.Flags.Has(FlagIsSequential) && snap.revolutionOne && s.Cfg.TrigSpeed == config.CrankSpeed {
		base += 360
	}

	var revolutionTimeUS uint32
	if snap.rpm > 0 {
		revolutionTimeUS = usInMinute / uint32(snap.rpm)
	}
	elapsed := now - snap.toothLastToothTime
	angle := base + crankmath.TimeToAngle(elapsed, revolutionTimeUS)
	return normalizeAngle(angle, s.Cfg.CrankAngleMax())
}

// GetCrankAngle is the snapshot-then-release implementation shared by
// every decoder that does not need a different formula (the non-360 dual
// decoder overrides it to divide by TriggerAngleMul).
func (s *State) GetCrankAngle(now uint32) int32 {
	snap := s.takeCrankAngleSnapshot()
	return s.crankAngleFrom(snap, now, false)
}

// crankAngleNowLocked computes the current crank angle directly from live
// fields, for callers (the VVT sampler) that already hold the state lock
// and cannot re-enter withLock.
func (s *State) crankAngleNowLocked(now uint32, divideByAngleMul bool) int32 {
	snap := crankAngleSnapshot{
		toothCurrentCount:  s.ToothCurrentCount,
		toothLastToothTime: s.ToothLastToothTime,
		revolutionOne:      s.RevolutionOne,
		rpm:                s.RPM,
	}
	return s.crankAngleFrom(snap, now, divideByAngleMul)
}
