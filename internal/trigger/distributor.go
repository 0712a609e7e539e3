package trigger

import (
	"github.com/gotrigger/crankdecoder/internal/config"
	"github.com/gotrigger/crankdecoder/internal/ignition"
)

// BasicDistributorDecoder handles a distributor-driven trigger: one tooth
// per cylinder event, spaced 720/N crank degrees apart, with no missing
// tooth and no separate cam signal. Sync is declared after only two
// consecutive teeth since there is no pattern to wait out.
type BasicDistributorDecoder struct {
	*State
	Scheduler *ignition.Scheduler
}

// NewBasicDistributorDecoder constructs and initializes a
// BasicDistributorDecoder.
func NewBasicDistributorDecoder(cfg config.Settings) *BasicDistributorDecoder {
	d := &BasicDistributorDecoder{State: NewState(cfg), Scheduler: ignition.NewScheduler()}
	d.Setup(cfg)
	return d
}

func (d *BasicDistributorDecoder) Setup(cfg config.Settings) {
	d.Cfg = cfg
	n := uint16(cfg.NCylinders)
	if n == 0 {
		n = 1
	}
	d.PatternTeeth = n
	d.TriggerActualTeeth = n
	d.TriggerToothAngle = uint16(720 / int32(n))
	d.TriggerAngleOffset = cfg.TriggerAngle

	d.ToothCurrentCount = 0
	d.ToothLastToothTime = 0
	d.ToothLastMinusOneToothTime = 0
	d.ToothOneTime = 0
	d.ToothOneMinusOneTime = 0
	d.HasSync = false
	d.HalfSync = false
	d.StartRevolutions = 0

	// The distributor fires once per cylinder event over a full 720
	// degree cycle, so it is always treated as sequential regardless of
	// the configured Sequential flag: there is no half-speed cam to
	// resolve revolution parity with.
	d.Flags = 0
	d.Flags.Set(FlagIsSequential)

	d.MaxStallTime = minStallTimeUS
}

// minStallTimeUS is the "not less than 50 RPM worth" floor on the
// distributor's dynamic stall time.
const minStallTimeUS = 366667

// Primary advances the per-cylinder tooth count, wrapping at PatternTeeth
// and declaring sync after the second tooth is seen — there is no
// missing-tooth gap to wait for here, only tooth-to-tooth spacing.
func (d *BasicDistributorDecoder) Primary(timestampUS uint32, level bool) {
	d.withLock(func() {
		d.LastPrimaryLevel = level

		curGap := timestampUS - d.ToothLastToothTime
		if d.ToothLastToothTime != 0 && curGap < d.TriggerFilterTime {
			return
		}

		d.ToothCurrentCount++
		if d.ToothCurrentCount > d.PatternTeeth {
			d.ToothCurrentCount = 1
			d.StartRevolutions++
			d.ToothOneMinusOneTime = d.ToothOneTime
			d.ToothOneTime = timestampUS
			if d.ToothOneMinusOneTime != 0 {
				revTime := d.ToothOneTime - d.ToothOneMinusOneTime
				d.pushRevolutionTime(revTime)
				d.MaxStallTime = revTime * 2
				if d.MaxStallTime < minStallTimeUS {
					d.MaxStallTime = minStallTimeUS
				}
			}
		}
		// Sync needs nothing but tooth-to-tooth spacing: the second
		// observed edge is enough to know the wheel is turning evenly.
		if d.ToothCurrentCount >= 2 {
			d.HasSync = true
		}
		d.Flags.Set(FlagValidTrigger)
		d.TriggerFilterTime = SetFilter(d.Cfg.TriggerFilter, curGap)

		d.logToothLocked(curGap)
		d.logCompositeLocked(timestampUS, level, d.LastSecondaryLevel, false, false)

		d.ToothLastMinusOneToothTime = d.ToothLastToothTime
		d.ToothLastToothTime = timestampUS

		if d.Cfg.IgnCranklock && d.StartRevolutions > 0 {
			d.endAllRunningChannelsLocked()
		}

		if d.Cfg.PerToothIgn && d.StartRevolutions > uint16(d.Cfg.StgCycles) {
			tooth := d.ToothCurrentCount
			half := d.PatternTeeth / 2
			if half > 0 && tooth > half {
				tooth -= half
			}
			angle := d.crankAngleNowLocked(timestampUS, false)
			checkPerToothTiming(d.State, d.Scheduler, angle, tooth, timestampUS)
		}
	})
}

// endAllRunningChannelsLocked immediately ends every currently running
// ignition channel's coil charge, locking timing to the mechanical
// reference during cranking rather than letting a free-running timer
// decide when to fire.
func (d *BasicDistributorDecoder) endAllRunningChannelsLocked() {
	for n := 1; n <= len(d.IgnitionEndTooth); n++ {
		ch := d.Scheduler.Channel(n)
		if ch.State() == ignition.Running {
			ch.SetState(ignition.Off)
		}
	}
}

// Secondary is unused by a basic distributor (no cam signal); it is kept
// to satisfy the Decoder interface and simply records the composite log
// entry when that mode is active.
func (d *BasicDistributorDecoder) Secondary(timestampUS uint32, level bool) {
	d.withLock(func() {
		d.LastSecondaryLevel = level
		d.logCompositeLocked(timestampUS, d.LastPrimaryLevel, level, true, false)
	})
}

// Tertiary is likewise unused.
func (d *BasicDistributorDecoder) Tertiary(timestampUS uint32, level bool) {
	d.withLock(func() {
		d.logCompositeLocked(timestampUS, d.LastPrimaryLevel, level, false, true)
	})
}

func (d *BasicDistributorDecoder) GetRPM() uint16 {
	// The distributor wheel is cam-mounted: one full pattern spans 720
	// crank degrees, so dispatchRPM must halve the same way a cam-speed
	// crank wheel does.
	return d.dispatchRPM(d.TriggerActualTeeth, degreesOverFor(config.CamSpeed))
}

func (d *BasicDistributorDecoder) GetCrankAngle() int32 {
	return d.State.GetCrankAngle(d.Clock())
}

// SetEndTeeth folds each configured end-angle into the single 720-degree
// cylinder-event cycle this decoder runs on.
func (d *BasicDistributorDecoder) SetEndTeeth() {
	d.withLock(func() {
		for n := 0; n < len(d.Cfg.IgnitionEndAngle); n++ {
			theta := d.Cfg.IgnitionEndAngle[n]
			if theta == 0 {
				continue
			}
			d.IgnitionEndTooth[n] = computeEndTooth(int16(theta), d.TriggerAngleOffset, d.TriggerToothAngle, d.PatternTeeth, d.PatternTeeth, d.TriggerActualTeeth, 0)
		}
	})
}

func (d *BasicDistributorDecoder) Core() *State { return d.State }
