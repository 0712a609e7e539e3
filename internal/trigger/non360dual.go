package trigger

import "github.com/gotrigger/crankdecoder/internal/config"

// NonSixtyDualDecoder is a DualWheelDecoder whose crank wheel does not
// complete a full mechanical revolution per decoder "turn" — e.g. a
// half-moon wheel driven at cam speed, or a geometry where the sensed
// wheel runs at some multiple of crank speed. TriggerAngleMul scales the
// wheel's own degrees back into crank degrees; every behavior other than
// tooth-angle setup and angle readback is inherited unchanged from
// DualWheelDecoder.
type NonSixtyDualDecoder struct {
	*DualWheelDecoder
}

// NewNonSixtyDualDecoder constructs and initializes a NonSixtyDualDecoder.
func NewNonSixtyDualDecoder(cfg config.Settings) *NonSixtyDualDecoder {
	d := &NonSixtyDualDecoder{DualWheelDecoder: NewDualWheelDecoder(cfg)}
	d.Setup(cfg)
	return d
}

// Setup scales the tooth angle by TriggerAngleMul instead of assuming a
// plain 360/teeth split, since one wheel revolution does not correspond
// to 360 crank degrees here.
func (d *NonSixtyDualDecoder) Setup(cfg config.Settings) {
	d.DualWheelDecoder.Setup(cfg)
	if cfg.TriggerTeeth > 0 && cfg.TriggerAngleMul > 0 {
		d.TriggerToothAngle = uint16((360 * uint32(cfg.TriggerAngleMul)) / uint32(cfg.TriggerTeeth))
	}
}

// GetCrankAngle divides the tooth-count term of the reconstructed angle by
// TriggerAngleMul before adding the offset, the one place this wheel geometry
// needs a formula distinct from the plain dual-wheel decoder.
func (d *NonSixtyDualDecoder) GetCrankAngle() int32 {
	snap := d.takeCrankAngleSnapshot()
	return d.crankAngleFrom(snap, d.Clock(), true)
}

func (d *NonSixtyDualDecoder) Core() *State { return d.State }
