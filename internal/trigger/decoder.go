package trigger

import (
	"fmt"

	"github.com/gotrigger/crankdecoder/internal/config"
)

// Decoder is the contract every wheel-family variant implements. Setup is
// called once at boot and whenever configuration changes; Primary,
// Secondary, and Tertiary are the edge entry points called from
// interrupt-equivalent context; GetRPM, GetCrankAngle, and SetEndTeeth
// are polled from mainline.
type Decoder interface {
	Setup(cfg config.Settings)
	Primary(timestampUS uint32, level bool)
	Secondary(timestampUS uint32, level bool)
	Tertiary(timestampUS uint32, level bool)
	GetRPM() uint16
	GetCrankAngle() int32
	SetEndTeeth()
	Core() *State
}

// New constructs the decoder variant named by cfg.DecoderType, already
// initialized via Setup. This is the tagged-variant dispatch point: the
// tag is cfg.DecoderType, selected once at configuration time rather than
// looked up per edge.
func New(cfg config.Settings) (Decoder, error) {
	switch cfg.DecoderType {
	case config.MissingTooth:
		return NewMissingToothDecoder(cfg), nil
	case config.DualWheel:
		return NewDualWheelDecoder(cfg), nil
	case config.BasicDistributor:
		return NewBasicDistributorDecoder(cfg), nil
	case config.NonSixtyDual:
		return NewNonSixtyDualDecoder(cfg), nil
	default:
		return nil, fmt.Errorf("trigger: unknown decoder type %q", cfg.DecoderType)
	}
}
