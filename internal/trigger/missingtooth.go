package trigger

import (
	"github.com/gotrigger/crankdecoder/internal/config"
	"github.com/gotrigger/crankdecoder/internal/ignition"
)

// MissingToothDecoder handles a wheel with P logical positions and M
// consecutive missing teeth (M ∈ {1,2}), the most common crank-wheel
// family. It owns an optional cam secondary for sequential sync and VVT.
type MissingToothDecoder struct {
	*State
	Scheduler *ignition.Scheduler
}

// NewMissingToothDecoder constructs and initializes a MissingToothDecoder.
func NewMissingToothDecoder(cfg config.Settings) *MissingToothDecoder {
	d := &MissingToothDecoder{State: NewState(cfg), Scheduler: ignition.NewScheduler()}
	d.Setup(cfg)
	return d
}

// Setup initializes tooth geometry and clears all counters. SyncLossCounter
// is a since-boot diagnostic and is deliberately left untouched.
func (d *MissingToothDecoder) Setup(cfg config.Settings) {
	d.Cfg = cfg
	d.PatternTeeth = cfg.TriggerTeeth
	d.TriggerActualTeeth = cfg.ActualTeeth()
	if cfg.TriggerTeeth > 0 {
		d.TriggerToothAngle = 360 / cfg.TriggerTeeth
	}
	d.TriggerAngleOffset = cfg.TriggerAngle
	d.TriggerFilterTime = 0
	d.TriggerSecFilterTime = 0

	d.ToothCurrentCount = 0
	d.ToothSystemCount = 0
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
	d.LastPrimaryLevel = false
	d.LastSecondaryLevel = false
	d.VVT1Angle = 0
	d.VVT2Angle = 0

	d.Flags = 0
	if cfg.Sequential {
		d.Flags.Set(FlagIsSequential)
	}

	if d.TriggerActualTeeth > 0 {
		revTimeAt50RPM := uint32(usInMinute) / 50
		d.MaxStallTime = (revTimeAt50RPM / uint32(d.TriggerActualTeeth)) * 2
	}
}

// Primary handles each accepted edge of the crank signal: filtering, gap
// detection, sync state transitions, and the tooth-log write.
func (d *MissingToothDecoder) Primary(timestampUS uint32, level bool) {
	d.withLock(func() {
		d.LastPrimaryLevel = level

		curGap := timestampUS - d.ToothLastToothTime
		if d.ToothLastToothTime != 0 && curGap < d.TriggerFilterTime {
			return
		}

		d.ToothCurrentCount++
		d.Flags.Set(FlagValidTrigger)

		isGap := false
		if d.ToothLastToothTime != 0 && d.ToothLastMinusOneToothTime != 0 {
			lastGap := d.ToothLastToothTime - d.ToothLastMinusOneToothTime
			var targetGap uint32
			if d.Cfg.TriggerMissingTeeth == 1 {
				targetGap = (lastGap * 3) >> 1
			} else {
				targetGap = lastGap * uint32(d.Cfg.TriggerMissingTeeth)
			}
			attempt := !d.HasSync || d.RPM < 2000 || uint32(d.ToothCurrentCount)*4 >= uint32(d.TriggerActualTeeth)*3
			if attempt && (curGap > targetGap || d.ToothCurrentCount > d.TriggerActualTeeth) {
				isGap = true
			}
		}

		if isGap {
			if d.ToothCurrentCount < d.TriggerActualTeeth && d.HasSync {
				d.HasSync = false
				d.HalfSync = false
				d.SyncLossCounter++
			} else {
				if d.HasSync || d.HalfSync {
					if d.Cfg.TrigSpeed == config.CamSpeed {
						d.StartRevolutions += 2
					} else {
						d.StartRevolutions++
					}
				} else {
					d.StartRevolutions = 0
				}
				d.ToothCurrentCount = 1

				if d.Cfg.TrigPatternSec == config.SecondaryPoll {
					d.RevolutionOne = d.LastSecondaryLevel == d.Cfg.PollLevelPolarity
				} else {
					d.RevolutionOne = !d.RevolutionOne
				}

				d.ToothOneMinusOneTime = d.ToothOneTime
				d.ToothOneTime = timestampUS
				if d.ToothOneMinusOneTime != 0 {
					d.pushRevolutionTime(d.ToothOneTime - d.ToothOneMinusOneTime)
				}

				if d.Flags.Has(FlagIsSequential) {
					camConfirmed := d.SecondaryToothCount > 0 || d.Cfg.TrigSpeed == config.CamSpeed || d.Cfg.TrigPatternSec == config.SecondaryPoll
					if camConfirmed {
						d.HasSync = true
						d.HalfSync = false
					} else if !d.HalfSync {
						d.HalfSync = true
					}
				} else {
					d.HasSync = true
					d.HalfSync = false
				}

				d.TriggerFilterTime = 0
				d.Flags.Clear(FlagToothAngCorrect)
			}
		} else {
			d.TriggerFilterTime = SetFilter(d.Cfg.TriggerFilter, curGap)
			d.Flags.Set(FlagToothAngCorrect)
		}

		d.logToothLocked(curGap)
		d.logCompositeLocked(timestampUS, level, d.LastSecondaryLevel, false, false)

		d.ToothLastMinusOneToothTime = d.ToothLastToothTime
		d.ToothLastToothTime = timestampUS

		if d.Cfg.PerToothIgn && d.StartRevolutions > uint16(d.Cfg.StgCycles) {
			d.runPerToothIgnitionLocked(timestampUS)
		}
	})
}

// runPerToothIgnitionLocked computes the expected crank angle of the
// current tooth, folding the second-revolution tooth count in sequential
// CRANK_SPEED mode, and hands it to the per-tooth ignition patcher.
func (d *MissingToothDecoder) runPerToothIgnitionLocked(now uint32) {
	tooth := d.ToothCurrentCount
	if d.Flags.Has(FlagIsSequential) && d.Cfg.TrigSpeed == config.CrankSpeed && d.RevolutionOne {
		tooth += d.PatternTeeth
	}
	angle := d.crankAngleNowLocked(now, false)
	checkPerToothTiming(d.State, d.Scheduler, angle, tooth, now)
}

// Secondary handles each accepted edge of the cam signal: 4-1, single, or
// poll-level pattern recognition, then VVT sampling on revolution one.
func (d *MissingToothDecoder) Secondary(timestampUS uint32, level bool) {
	d.withLock(func() {
		d.LastSecondaryLevel = level
		// Always log composite entries on secondary edges when composite
		// logging is on, regardless of what the pattern handler below
		// does with sync state.
		d.logCompositeLocked(timestampUS, d.LastPrimaryLevel, level, true, false)

		switch d.Cfg.TrigPatternSec {
		case config.Secondary4_1:
			d.secondary4_1Locked(timestampUS)
		case config.SecondarySingle:
			d.secondarySingleLocked(timestampUS)
		case config.SecondaryPoll:
			// no edges consumed; level is sampled at the primary's tooth-1.
		}

		if d.Cfg.VVTEnabled && d.RevolutionOne {
			d.sampleVVT1Locked(timestampUS)
		}
	})
}

func (d *MissingToothDecoder) secondary4_1Locked(timestampUS uint32) {
	curGap := timestampUS - d.ToothLastSecToothTime
	if d.ToothLastSecToothTime != 0 && curGap < d.TriggerSecFilterTime {
		return
	}

	isGap := false
	if d.ToothLastSecToothTime != 0 && d.ToothLastMinusOneSecToothTime != 0 {
		lastGap := d.ToothLastSecToothTime - d.ToothLastMinusOneSecToothTime
		targetGap := (lastGap * 3) >> 1
		if curGap > targetGap {
			isGap = true
		}
	}

	if isGap {
		d.SecondaryToothCount = 1
		d.RevolutionOne = true
		d.promoteHalfSync()
		d.TriggerSecFilterTime = 0
	} else {
		d.SecondaryToothCount++
		d.TriggerSecFilterTime = curGap >> 2
	}

	d.ToothLastMinusOneSecToothTime = d.ToothLastSecToothTime
	d.ToothLastSecToothTime = timestampUS
}

func (d *MissingToothDecoder) secondarySingleLocked(timestampUS uint32) {
	curGap := timestampUS - d.ToothLastSecToothTime
	if d.ToothLastSecToothTime != 0 && curGap < d.TriggerSecFilterTime {
		return
	}

	d.RevolutionOne = true
	d.SecondaryToothCount++
	d.promoteHalfSync()
	d.TriggerSecFilterTime = curGap >> 1

	d.ToothLastMinusOneSecToothTime = d.ToothLastSecToothTime
	d.ToothLastSecToothTime = timestampUS
}

// Tertiary handles the second cam channel, a VVT-only input with no
// effect on primary sync.
func (d *MissingToothDecoder) Tertiary(timestampUS uint32, level bool) {
	d.withLock(func() {
		d.logCompositeLocked(timestampUS, d.LastPrimaryLevel, level, false, true)
		if d.Cfg.VVTEnabled && d.RevolutionOne {
			d.sampleVVT2Locked(timestampUS)
		}
	})
}

// GetRPM dispatches to cranking or full-revolution RPM depending on how
// far into startup the engine is.
func (d *MissingToothDecoder) GetRPM() uint16 {
	return d.dispatchRPM(d.TriggerActualTeeth, degreesOverFor(d.Cfg.TrigSpeed))
}

// GetCrankAngle uses the shared snapshot-then-release formula.
func (d *MissingToothDecoder) GetCrankAngle() int32 {
	return d.State.GetCrankAngle(d.Clock())
}

// SetEndTeeth recomputes every configured ignition channel's end-tooth
// index from its end-angle.
func (d *MissingToothDecoder) SetEndTeeth() {
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

// Core exposes the decoder's shared state for telemetry and tests.
func (d *MissingToothDecoder) Core() *State { return d.State }
