package trigger

import (
	"testing"

	"github.com/gotrigger/crankdecoder/internal/config"
)

// feedTeeth drives n evenly-spaced primary teeth starting at baseUS with
// the given period, returning the timestamp one period after the last
// tooth fed (where the next evenly-spaced tooth would fall).
func feedTeeth(d *MissingToothDecoder, baseUS, periodUS uint32, n int) uint32 {
	t := baseUS
	for i := 0; i < n; i++ {
		d.Primary(t, i%2 == 0)
		t += periodUS
	}
	return t
}

func TestMissingToothDecoder_Setup(t *testing.T) {
	cfg := baseCfg()
	d := NewMissingToothDecoder(cfg)
	if d.TriggerActualTeeth != 35 {
		t.Errorf("TriggerActualTeeth = %d, want 35", d.TriggerActualTeeth)
	}
	if d.TriggerToothAngle != 10 {
		t.Errorf("TriggerToothAngle = %d, want 10", d.TriggerToothAngle)
	}
	if !d.Flags.Has(FlagIsSequential) {
		t.Error("expected FlagIsSequential set for Sequential config")
	}
}

func TestMissingToothDecoder_AcquiresSyncAfterOneGap(t *testing.T) {
	cfg := baseCfg()
	cfg.Sequential = false
	d := NewMissingToothDecoder(cfg)

	const period = uint32(1000)
	last := feedTeeth(d, 0, period, int(d.TriggerActualTeeth))
	// gap tooth: 2.5x the running gap after the last tooth fed
	d.Primary(last+period+period/2, true)

	if !d.HasSync {
		t.Fatal("expected HasSync after first missing-tooth gap in non-sequential mode")
	}
	if d.ToothCurrentCount != 1 {
		t.Errorf("ToothCurrentCount = %d, want 1 after gap tooth", d.ToothCurrentCount)
	}
}

func TestMissingToothDecoder_SequentialNeedsCamForFullSync(t *testing.T) {
	cfg := baseCfg()
	cfg.Sequential = true
	d := NewMissingToothDecoder(cfg)

	const period = uint32(1000)
	last := feedTeeth(d, 0, period, int(d.TriggerActualTeeth))
	d.Primary(last+period+period/2, true)

	if d.HasSync {
		t.Error("expected HalfSync, not HasSync, before any cam edge in sequential mode")
	}
	if !d.HalfSync {
		t.Error("expected HalfSync set after first gap with no cam confirmation yet")
	}
}

func TestMissingToothDecoder_SecondaryPromotesHalfSyncToFull(t *testing.T) {
	cfg := baseCfg()
	cfg.Sequential = true
	cfg.TrigPatternSec = config.SecondarySingle
	d := NewMissingToothDecoder(cfg)

	const period = uint32(1000)
	last := feedTeeth(d, 0, period, int(d.TriggerActualTeeth))
	d.Primary(last+period+period/2, true)
	if !d.HalfSync || d.HasSync {
		t.Fatal("expected HalfSync before cam edge")
	}

	d.Secondary(last+period+period/2+10, true)
	if !d.HasSync {
		t.Error("expected HasSync after secondary edge promotes HalfSync")
	}
}

func TestMissingToothDecoder_PrematureGapDropsSync(t *testing.T) {
	cfg := baseCfg()
	cfg.Sequential = false
	d := NewMissingToothDecoder(cfg)

	const period = uint32(1000)
	last := feedTeeth(d, 0, period, int(d.TriggerActualTeeth))
	d.Primary(last+period+period/2, true) // acquire sync
	if !d.HasSync {
		t.Fatal("expected sync acquired")
	}
	lossesBefore := d.SyncLossCounter

	// Feed only a handful of teeth then force an early "gap" well short of
	// a full pattern, which should be read as sync loss rather than a
	// legitimate top-of-pattern marker.
	t2 := last + period + period/2
	for i := 0; i < 3; i++ {
		t2 += period
		d.Primary(t2, true)
	}
	t2 += period * 20 // huge artificial gap long before the real one is due
	d.Primary(t2, true)

	if d.HasSync {
		t.Error("expected sync to drop on a premature oversized gap")
	}
	if d.SyncLossCounter <= lossesBefore {
		t.Error("expected SyncLossCounter to increment on premature gap")
	}
}

func TestMissingToothDecoder_GetRPMZeroWithoutSync(t *testing.T) {
	d := NewMissingToothDecoder(baseCfg())
	if got := d.GetRPM(); got != 0 {
		t.Errorf("GetRPM() = %d, want 0 before sync", got)
	}
}

func TestMissingToothDecoder_SetEndTeethPopulatesNonzeroAngles(t *testing.T) {
	cfg := baseCfg()
	cfg.IgnitionEndAngle = [8]uint16{355, 175, 0, 0, 0, 0, 0, 0}
	d := NewMissingToothDecoder(cfg)
	d.SetEndTeeth()

	if d.IgnitionEndTooth[0] == 0 {
		t.Error("expected IgnitionEndTooth[0] to be populated for nonzero end angle")
	}
	if d.IgnitionEndTooth[2] != 0 {
		t.Error("expected IgnitionEndTooth[2] to stay zero for unconfigured channel")
	}
}

func TestMissingToothDecoder_Secondary4_1AcquiresCount(t *testing.T) {
	cfg := baseCfg()
	cfg.TrigPatternSec = config.Secondary4_1
	d := NewMissingToothDecoder(cfg)

	const period = uint32(2000)
	t0 := uint32(1000)
	d.Secondary(t0, true)
	t0 += period
	d.Secondary(t0, true)
	t0 += period
	d.Secondary(t0, true)
	t0 += period * 2 // gap: the missing 4th tooth of the 4-1 pattern doubles the spacing
	d.Secondary(t0, true)

	if d.SecondaryToothCount != 1 {
		t.Errorf("SecondaryToothCount = %d, want 1 after the pattern gap resets it", d.SecondaryToothCount)
	}
}

func TestMissingToothDecoder_TertiarySamplesVVT2WhenEnabled(t *testing.T) {
	cfg := baseCfg()
	cfg.VVTEnabled = true
	cfg.AngleFilterVVT = 100
	d := NewMissingToothDecoder(cfg)
	d.RevolutionOne = true
	d.ToothCurrentCount = 5
	d.TriggerToothAngle = 10

	d.Tertiary(1000, true)
	if d.VVT2Angle == 0 {
		t.Error("expected VVT2Angle to move after a tertiary sample with VVT enabled")
	}
}
