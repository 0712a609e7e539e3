// Package crankmath implements the integer-only degree/time conversions
// the decoder core treats as an external collaborator. Kept deliberately
// tiny and allocation-free: every function is a single multiply/divide,
// no trig, no floating point, so it stays safe to call from the hot path.
package crankmath

// TicksPerMicrosecond is the timer-compare resolution assumed by
// MicrosecondsToTimerTicks. A real platform's prescaler would make this
// a run-time value; here it is fixed so the module has no hardware
// dependency.
const TicksPerMicrosecond = 2

// TimeToAngle converts an elapsed time since the last tooth into degrees
// of crank rotation, given the duration of one full revolution at the
// current speed. Returns 0 if revolutionTimeUS is unknown (zero).
func TimeToAngle(elapsedUS uint32, revolutionTimeUS uint32) int32 {
	if revolutionTimeUS == 0 {
		return 0
	}
	return int32((uint64(elapsedUS) * 360) / uint64(revolutionTimeUS))
}

// FastDegreesToUS converts a number of crank degrees into microseconds,
// given the duration of one full revolution at the current speed.
func FastDegreesToUS(degrees int32, revolutionTimeUS uint32) uint32 {
	if degrees <= 0 {
		return 0
	}
	return uint32((uint64(degrees) * uint64(revolutionTimeUS)) / 360)
}

// MicrosecondsToTimerTicks converts a microsecond duration into
// timer-compare ticks.
func MicrosecondsToTimerTicks(us uint32) uint32 {
	return us * TicksPerMicrosecond
}

// Limit clamps a degrees-remaining value to zero when the target has
// already passed, mirroring the source's defensive "limit()" helper used
// before arming a timer-compare register.
func Limit(degreesRemaining int32) int32 {
	if degreesRemaining < 0 {
		return 0
	}
	return degreesRemaining
}
