// Package decode wires a trigger decoder to an edge source and an
// optional telemetry sink, and drives the run loop a CLI subcommand
// needs: dispatch edges, keep end-tooth angles current, and publish a
// status snapshot on a steady interval.
package decode

import (
	"context"
	"fmt"
	"time"

	"github.com/gotrigger/crankdecoder/internal/config"
	"github.com/gotrigger/crankdecoder/internal/hal"
	"github.com/gotrigger/crankdecoder/internal/recovery"
	"github.com/gotrigger/crankdecoder/internal/telemetry"
	"github.com/gotrigger/crankdecoder/internal/trigger"
)

// StatusInterval is how often the run loop re-derives end-tooth angles
// and publishes a status snapshot.
const StatusInterval = 100 * time.Millisecond

// Session owns one decoder, the edge source feeding it, and an optional
// telemetry sink for status/log output.
type Session struct {
	Decoder trigger.Decoder
	Source  hal.EdgeSource
	Sink    *telemetry.SerialSink

	// OnStatus, if set, is called with each published StatusSnapshot
	// instead of (or alongside, if Sink is also set) shipping it out a
	// serial link — the simulate and live subcommands use this to print a
	// running summary without opening a serial port.
	OnStatus func(telemetry.StatusSnapshot)
}

// NewSession constructs a decoder for cfg and pairs it with source.
func NewSession(cfg config.Settings, source hal.EdgeSource) (*Session, error) {
	d, err := trigger.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("decode: new session: %w", err)
	}
	return &Session{Decoder: d, Source: source}, nil
}

// Run launches the edge source and dispatches its output into the
// decoder until ctx is canceled or the source returns an error.
func (s *Session) Run(ctx context.Context) error {
	primary := make(chan hal.Edge, 64)
	secondary := make(chan hal.Edge, 64)
	tertiary := make(chan hal.Edge, 64)

	sourceErr := make(chan error, 1)
	go func() {
		defer recovery.HandlePanicFunc(func() { sourceErr <- fmt.Errorf("decode: edge source panicked") })
		sourceErr <- s.Source.Run(ctx, primary, secondary, tertiary)
	}()

	ticker := time.NewTicker(StatusInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-sourceErr:
			return err
		case e := <-primary:
			s.Decoder.Primary(e.TimestampUS, e.Direction)
		case e := <-secondary:
			s.Decoder.Secondary(e.TimestampUS, e.Direction)
		case e := <-tertiary:
			s.Decoder.Tertiary(e.TimestampUS, e.Direction)
		case <-ticker.C:
			s.Decoder.SetEndTeeth()
			s.publishStatus()
		}
	}
}

func (s *Session) publishStatus() {
	rpm := s.Decoder.GetRPM()
	snap := telemetry.BuildStatusSnapshot(rpm, s.Decoder.Core())
	if s.OnStatus != nil {
		s.OnStatus(snap)
	}
	if s.Sink != nil {
		_ = s.Sink.Send(snap)
	}
}
