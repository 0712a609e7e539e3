package trigger

import (
	"github.com/gotrigger/crankdecoder/internal/crankmath"
	"github.com/gotrigger/crankdecoder/internal/ignition"
)

// computeEndTooth converts a configured ignition end-angle into the tooth
// index after which the ignition end-compare register must already be
// staged. period is the tooth count of a full spark cycle (one wheel
// revolution, or two when sequential CRANK_SPEED folds a second
// revolution in); patternTeeth is the bare, undoubled wheel pattern size
// used to recognize the missing-tooth slot; actualTeeth is the physical
// tooth count (pattern minus the missing teeth); extraPeriod is the tooth
// offset added for the second revolution's half of a folded cycle.
func computeEndTooth(endAngle, angleOffset int16, toothAngle, period, patternTeeth, actualTeeth, extraPeriod uint16) uint16 {
	if toothAngle == 0 {
		return 0
	}
	tempEnd := (int32(endAngle)-int32(angleOffset))/int32(toothAngle) - 1

	p := int32(period)
	for tempEnd > p {
		tempEnd -= p
	}
	for tempEnd <= 0 {
		tempEnd += p
	}

	a := int32(actualTeeth)
	if tempEnd > a && tempEnd <= int32(patternTeeth) {
		tempEnd = a
	}
	if tempEnd > a+int32(extraPeriod) {
		tempEnd = a + int32(extraPeriod)
	}
	return uint16(tempEnd)
}

// checkPerToothTiming is called once per accepted primary tooth when
// per-tooth ignition is enabled. It compares the current tooth against
// every channel's configured end-tooth and, on a match, converts the
// channel's remaining degrees-to-end into a timer-compare value: a
// Running channel has its live end-compare register updated directly,
// while a channel still cranking gets its register pre-staged once
// enough revolutions have accumulated to trust the estimate.
func checkPerToothTiming(s *State, sched *ignition.Scheduler, currentAngle int32, tooth uint16, now uint32) {
	for n := 0; n < len(s.IgnitionEndTooth); n++ {
		if s.IgnitionEndTooth[n] == 0 || s.IgnitionEndTooth[n] != tooth {
			continue
		}

		var revolutionTimeUS uint32
		if s.RPM > 0 {
			revolutionTimeUS = usInMinute / uint32(s.RPM)
		}
		degreesRemaining := crankmath.Limit(int32(s.Cfg.IgnitionEndAngle[n]) - currentAngle)
		ticks := now + crankmath.MicrosecondsToTimerTicks(crankmath.FastDegreesToUS(degreesRemaining, revolutionTimeUS))

		ch := sched.Channel(n + 1)
		switch {
		case ch.State() == ignition.Running:
			ch.UpdateEndCompare(ticks)
		case s.StartRevolutions > ignition.MinCyclesForEndCompare:
			ch.StageEndCompare(ticks)
		}
	}
}
