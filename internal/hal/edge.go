// Package hal provides the edge-source boundary between physical (or
// simulated) trigger hardware and the decoder core in internal/trigger.
// Nothing in here knows about tooth patterns or sync state; it only
// produces timestamped level changes on up to three channels.
package hal

import "context"

// Channel identifies which decoder input an Edge belongs to.
type Channel uint8

const (
	Primary Channel = iota
	Secondary
	Tertiary
)

// Edge is one timestamped level change. Channel is redundant with which
// of Run's three output channels it arrived on, but is carried alongside
// so a single consumer loop (the CLI's run loop, telemetry logging) can
// fan values back in without losing provenance.
type Edge struct {
	Channel     Channel
	Direction   bool
	TimestampUS uint32
}

// EdgeSource produces edges on up to three channels until ctx is
// canceled or an unrecoverable error occurs. Implementations own the
// channels they are given and must not close them; Run returns when it
// stops sending. secondary and tertiary may go unused by a source whose
// hardware doesn't wire those signals, in which case Run simply never
// sends on them.
type EdgeSource interface {
	Run(ctx context.Context, primary, secondary, tertiary chan<- Edge) error
}
