package decode

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/gotrigger/crankdecoder/internal/config"
	"github.com/gotrigger/crankdecoder/internal/telemetry"
	"github.com/gotrigger/crankdecoder/internal/trigger"
)

// RunReplay reads a stream of length-prefixed CBOR ToothLogFrame values
// (the same framing SerialSink.Send writes) from r and feeds each
// recorded gap into a fresh decoder as a primary edge, returning the
// status snapshot once the stream is exhausted.
func RunReplay(cfg config.Settings, r io.Reader) (telemetry.StatusSnapshot, error) {
	d, err := trigger.New(cfg)
	if err != nil {
		return telemetry.StatusSnapshot{}, err
	}

	var now uint32
	for {
		var hdr [4]byte
		if _, err := io.ReadFull(r, hdr[:]); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return telemetry.StatusSnapshot{}, fmt.Errorf("decode: replay: read frame header: %w", err)
		}
		n := binary.BigEndian.Uint32(hdr[:])
		body := make([]byte, n)
		if _, err := io.ReadFull(r, body); err != nil {
			return telemetry.StatusSnapshot{}, fmt.Errorf("decode: replay: read frame body: %w", err)
		}

		var frame telemetry.ToothLogFrame
		if err := telemetry.Decode(body, &frame); err != nil {
			return telemetry.StatusSnapshot{}, fmt.Errorf("decode: replay: decode frame: %w", err)
		}
		for _, gap := range frame.GapsUS {
			now += gap
			d.Primary(now, true)
		}
	}

	d.SetEndTeeth()
	return telemetry.BuildStatusSnapshot(d.GetRPM(), d.Core()), nil
}
