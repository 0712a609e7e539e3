package hal

import (
	"context"
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// LineConfig names one GPIO line request: which chip offset feeds which
// decoder channel.
type LineConfig struct {
	Channel Channel
	Offset  int
}

// GpiocdevSource reads trigger edges off real GPIO lines via the Linux
// character-device GPIO API, timestamping each event with the kernel's
// own monotonic clock rather than a userspace read of time.Now.
type GpiocdevSource struct {
	chipName string
	lines    []LineConfig
}

// NewGpiocdevSource builds a source that will request one line per entry
// in lines against chipName (e.g. "gpiochip0").
func NewGpiocdevSource(chipName string, lines []LineConfig) *GpiocdevSource {
	return &GpiocdevSource{chipName: chipName, lines: lines}
}

// Run requests every configured line with both-edge detection and blocks
// until ctx is canceled, forwarding each event as an Edge on the channel
// matching its LineConfig.
func (s *GpiocdevSource) Run(ctx context.Context, primary, secondary, tertiary chan<- Edge) error {
	out := make([]chan<- Edge, 3)
	out[Primary] = primary
	out[Secondary] = secondary
	out[Tertiary] = tertiary

	lines := make([]*gpiocdev.Line, 0, len(s.lines))
	defer func() {
		for _, l := range lines {
			l.Close()
		}
	}()

	for _, lc := range s.lines {
		ch := lc.Channel
		dst := out[ch]
		line, err := gpiocdev.RequestLine(s.chipName, lc.Offset,
			gpiocdev.WithBothEdges,
			gpiocdev.WithEventHandler(func(evt gpiocdev.LineEvent) {
				edge := Edge{
					Channel:     ch,
					Direction:   evt.Type == gpiocdev.LineEventRisingEdge,
					TimestampUS: uint32(evt.Timestamp.Microseconds()),
				}
				select {
				case dst <- edge:
				case <-ctx.Done():
				}
			}),
		)
		if err != nil {
			return fmt.Errorf("hal: request line %s:%d: %w", s.chipName, lc.Offset, err)
		}
		lines = append(lines, line)
	}

	<-ctx.Done()
	return nil
}
