// Package telemetry encodes decoder status and log drains for shipment
// to an external tuning-software link. Wire records are tagged by field
// index rather than name, the way seedhammer's bc/urtypes package keeps
// its CBOR layout compact and stable across versions.
package telemetry

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/gotrigger/crankdecoder/internal/trigger"
)

// StatusSnapshot is the periodic decoder-health frame: RPM, sync state,
// and the VVT angle pair.
type StatusSnapshot struct {
	RPM              uint16 `cbor:"1,keyasint"`
	HasSync          bool   `cbor:"2,keyasint"`
	HalfSync         bool   `cbor:"3,keyasint"`
	SyncLossCounter  uint16 `cbor:"4,keyasint"`
	StartRevolutions uint16 `cbor:"5,keyasint"`
	VVT1Angle        int16  `cbor:"6,keyasint"`
	VVT2Angle        int16  `cbor:"7,keyasint"`
}

// ToothLogFrame is a drained batch of tooth-interval gaps.
type ToothLogFrame struct {
	GapsUS []uint32 `cbor:"1,keyasint"`
}

// CompositeLogFrame is a drained batch of decoded composite-log entries.
type CompositeLogFrame struct {
	TimestampsUS    []uint32 `cbor:"1,keyasint"`
	PrimaryLevels   []bool   `cbor:"2,keyasint"`
	SecondaryLevels []bool   `cbor:"3,keyasint"`
	CamEdges        []bool   `cbor:"4,keyasint"`
	SecondCamEdges  []bool   `cbor:"5,keyasint"`
	SyncHeld        []bool   `cbor:"6,keyasint"`
}

var encMode cbor.EncMode
var decMode cbor.DecMode

func init() {
	em, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	encMode = em
	dm, err := cbor.DecOptions{}.DecMode()
	if err != nil {
		panic(err)
	}
	decMode = dm
}

// BuildStatusSnapshot reads a decoder's current health fields into a
// wire-ready StatusSnapshot.
func BuildStatusSnapshot(rpm uint16, core *trigger.State) StatusSnapshot {
	return StatusSnapshot{
		RPM:              rpm,
		HasSync:          core.HasSync,
		HalfSync:         core.HalfSync,
		SyncLossCounter:  core.SyncLossCounter,
		StartRevolutions: core.StartRevolutions,
		VVT1Angle:        core.VVT1Angle,
		VVT2Angle:        core.VVT2Angle,
	}
}

// BuildToothLogFrame converts a drained tooth-interval log into its wire
// frame.
func BuildToothLogFrame(records []trigger.ToothLogRecord) ToothLogFrame {
	frame := ToothLogFrame{GapsUS: make([]uint32, len(records))}
	for i, r := range records {
		frame.GapsUS[i] = r.GapUS
	}
	return frame
}

// BuildCompositeLogFrame converts a drained composite log into its wire
// frame.
func BuildCompositeLogFrame(records []trigger.CompositeLogRecord) CompositeLogFrame {
	frame := CompositeLogFrame{
		TimestampsUS:    make([]uint32, len(records)),
		PrimaryLevels:   make([]bool, len(records)),
		SecondaryLevels: make([]bool, len(records)),
		CamEdges:        make([]bool, len(records)),
		SecondCamEdges:  make([]bool, len(records)),
		SyncHeld:        make([]bool, len(records)),
	}
	for i, r := range records {
		frame.TimestampsUS[i] = r.TimestampUS
		frame.PrimaryLevels[i] = r.PrimaryLevel
		frame.SecondaryLevels[i] = r.SecondaryLevel
		frame.CamEdges[i] = r.IsCamEdge
		frame.SecondCamEdges[i] = r.IsSecondCam
		frame.SyncHeld[i] = r.SyncHeld
	}
	return frame
}

// Encode marshals any telemetry frame type to CBOR.
func Encode(v any) ([]byte, error) {
	b, err := encMode.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("telemetry: encode: %w", err)
	}
	return b, nil
}

// Decode unmarshals CBOR bytes into v, a pointer to one of the frame
// types.
func Decode(b []byte, v any) error {
	if err := decMode.Unmarshal(b, v); err != nil {
		return fmt.Errorf("telemetry: decode: %w", err)
	}
	return nil
}
