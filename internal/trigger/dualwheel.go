package trigger

import (
	"github.com/gotrigger/crankdecoder/internal/config"
	"github.com/gotrigger/crankdecoder/internal/ignition"
)

// DualWheelDecoder handles a crank wheel with evenly-spaced teeth paired
// with a cam wheel whose own single gap provides revolution sync. Unlike
// MissingToothDecoder there is no primary-only gap to detect: sync comes
// entirely from the secondary, so an unsynced secondary forces a hard
// resync on crank tooth one.
type DualWheelDecoder struct {
	*State
	Scheduler *ignition.Scheduler
}

// NewDualWheelDecoder constructs and initializes a DualWheelDecoder.
func NewDualWheelDecoder(cfg config.Settings) *DualWheelDecoder {
	d := &DualWheelDecoder{State: NewState(cfg), Scheduler: ignition.NewScheduler()}
	d.Setup(cfg)
	return d
}

func (d *DualWheelDecoder) Setup(cfg config.Settings) {
	d.Cfg = cfg
	d.PatternTeeth = cfg.TriggerTeeth
	d.TriggerActualTeeth = cfg.TriggerTeeth
	if cfg.TriggerTeeth > 0 {
		d.TriggerToothAngle = 360 / cfg.TriggerTeeth
	}
	d.TriggerAngleOffset = cfg.TriggerAngle
	d.TriggerFilterTime = 0
	d.TriggerSecFilterTime = 0

	d.ToothCurrentCount = 0
	d.ToothLastToothTime = 0
	d.ToothLastMinusOneToothTime = 0
	d.ToothLastSecToothTime = 0
	d.ToothLastMinusOneSecToothTime = 0
	d.ToothOneTime = 0
	d.ToothOneMinusOneTime = 0
	d.SecondaryToothCount = 0
	d.RevolutionOne = false
	d.HasSync = false
	d.HalfSync = false
	d.StartRevolutions = 0

	d.Flags = 0
	if cfg.Sequential {
		d.Flags.Set(FlagIsSequential)
	}

	if d.TriggerActualTeeth > 0 {
		revTimeAt50RPM := uint32(usInMinute) / 50
		d.MaxStallTime = (revTimeAt50RPM / uint32(d.TriggerActualTeeth)) * 2
	}
}

// Primary always advances the tooth count regardless of sync state — the
// crank wheel has no gap of its own to wait for. Once synced, a wrap (tooth
// count hits 1, or runs past PatternTeeth) marks a revolution boundary: toggle revolutionOne, shift the tooth-one timestamps, and
// bump startRevolutions (twice in CAM_SPEED mode, since one cam-speed
// pattern spans two crank revolutions).
func (d *DualWheelDecoder) Primary(timestampUS uint32, level bool) {
	d.withLock(func() {
		d.LastPrimaryLevel = level

		curGap := timestampUS - d.ToothLastToothTime
		if d.ToothLastToothTime != 0 && curGap < d.TriggerFilterTime {
			return
		}

		d.ToothCurrentCount++
		d.Flags.Set(FlagValidTrigger)
		d.TriggerFilterTime = SetFilter(d.Cfg.TriggerFilter, curGap)

		if d.HasSync && (d.ToothCurrentCount == 1 || d.ToothCurrentCount > d.PatternTeeth) {
			d.ToothCurrentCount = 1
			d.RevolutionOne = !d.RevolutionOne

			d.ToothOneMinusOneTime = d.ToothOneTime
			d.ToothOneTime = timestampUS
			if d.ToothOneMinusOneTime != 0 {
				d.pushRevolutionTime(d.ToothOneTime - d.ToothOneMinusOneTime)
			}

			if d.Cfg.TrigSpeed == config.CamSpeed {
				d.StartRevolutions += 2
			} else {
				d.StartRevolutions++
			}
		}

		d.logToothLocked(curGap)
		d.logCompositeLocked(timestampUS, level, d.LastSecondaryLevel, false, false)

		d.ToothLastMinusOneToothTime = d.ToothLastToothTime
		d.ToothLastToothTime = timestampUS

		if d.Cfg.PerToothIgn && d.StartRevolutions > uint16(d.Cfg.StgCycles) {
			angle := d.crankAngleNowLocked(timestampUS, false)
			checkPerToothTiming(d.State, d.Scheduler, angle, d.ToothCurrentCount, timestampUS)
		}
	})
}

// Secondary is the cam wheel's single-per-revolution reference. While
// unsynced, or still within the first StgCycles revolutions, it
// hard-resyncs: snaps toothCurrentCount to PatternTeeth, back-dates the
// primary's previous-tooth timestamp so the cranking RPM estimator reads
// a safe 10 RPM floor, and clears the primary filter. Once past that
// window it only corrects drift: a toothCurrentCount mismatch after more
// than two revolutions counts as a sync loss, optionally corrected by
// snapping back to PatternTeeth when UseResync is enabled.
func (d *DualWheelDecoder) Secondary(timestampUS uint32, level bool) {
	d.withLock(func() {
		d.LastSecondaryLevel = level
		d.logCompositeLocked(timestampUS, d.LastPrimaryLevel, level, true, false)

		curGap := timestampUS - d.ToothLastSecToothTime
		if d.ToothLastSecToothTime != 0 && curGap < d.TriggerSecFilterTime {
			if d.RPM > 0 {
				d.TriggerSecFilterTime = (uint32(usInMinute) / uint32(d.RPM)) / 2
			}
			return
		}

		d.SecondaryToothCount++

		if !d.HasSync || d.StartRevolutions <= uint16(d.Cfg.StgCycles) {
			d.ToothCurrentCount = d.PatternTeeth
			const floorRPM = 10
			revTimeAtFloor := uint32(usInMinute) / floorRPM
			gap := revTimeAtFloor / uint32(d.PatternTeeth)
			d.ToothLastMinusOneToothTime = d.ToothLastToothTime - gap
			d.TriggerFilterTime = 0
			d.HasSync = true
			d.HalfSync = false
		} else {
			if d.ToothCurrentCount != d.PatternTeeth && d.StartRevolutions > 2 {
				d.SyncLossCounter++
			}
			if d.Cfg.UseResync {
				d.ToothCurrentCount = d.PatternTeeth
			}
		}
		d.RevolutionOne = true

		d.TriggerSecFilterTime = curGap >> 2

		d.ToothLastMinusOneSecToothTime = d.ToothLastSecToothTime
		d.ToothLastSecToothTime = timestampUS

		if d.Cfg.VVTEnabled && d.RevolutionOne {
			d.sampleVVT1Locked(timestampUS)
		}
	})
}

// Tertiary is the second cam channel, VVT-only as with every other
// variant.
func (d *DualWheelDecoder) Tertiary(timestampUS uint32, level bool) {
	d.withLock(func() {
		d.logCompositeLocked(timestampUS, d.LastPrimaryLevel, level, false, true)
		if d.Cfg.VVTEnabled && d.RevolutionOne {
			d.sampleVVT2Locked(timestampUS)
		}
	})
}

func (d *DualWheelDecoder) GetRPM() uint16 {
	return d.dispatchRPM(d.TriggerActualTeeth, degreesOverFor(d.Cfg.TrigSpeed))
}

func (d *DualWheelDecoder) GetCrankAngle() int32 {
	return d.State.GetCrankAngle(d.Clock())
}

func (d *DualWheelDecoder) SetEndTeeth() {
	d.withLock(func() {
		period := d.PatternTeeth
		extraPeriod := uint16(0)
		if d.Flags.Has(FlagIsSequential) && d.Cfg.TrigSpeed == config.CrankSpeed {
			period = d.PatternTeeth * 2
			extraPeriod = d.PatternTeeth
		}
		for n := 0; n < len(d.Cfg.IgnitionEndAngle); n++ {
			theta := d.Cfg.IgnitionEndAngle[n]
			if theta == 0 {
				continue
			}
			d.IgnitionEndTooth[n] = computeEndTooth(int16(theta), d.TriggerAngleOffset, d.TriggerToothAngle, period, d.PatternTeeth, d.TriggerActualTeeth, extraPeriod)
		}
	})
}

func (d *DualWheelDecoder) Core() *State { return d.State }
