// Package ignition stands in for the external ignition/injection
// scheduler: the per-tooth end-angle patcher hands it a freshly computed
// timer-compare value, and it carries just enough state — a per-channel
// run state and an end-compare register — to exercise real transitions
// instead of a no-op mock.
package ignition

import "sync"

// MaxChannels bounds the number of ignition channels a scheduler can own.
const MaxChannels = 8

// MinCyclesForEndCompare is the minimum number of cranking revolutions
// before a channel's end-compare register is trusted enough to schedule
// from, mirroring the stability guard real schedulers apply during cranking.
const MinCyclesForEndCompare = 6

// State is a channel's run state.
type State uint8

const (
	Off State = iota
	Staged
	Running
)

// Schedule is one ignition channel's live timer-compare state.
type Schedule struct {
	mu sync.Mutex

	state                   State
	endCompare              uint32
	endScheduleSetByDecoder bool
}

func (s *Schedule) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// SetState is used by tests and by the (external, unmodeled) scheduler
// to move a channel between Off/Staged/Running.
func (s *Schedule) SetState(state State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
}

// UpdateEndCompare overwrites the live timer-compare register. Only
// meaningful while the channel is Running — the scheduler reads this
// register to decide when to end the coil charge.
func (s *Schedule) UpdateEndCompare(ticks uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.endCompare = ticks
}

// StageEndCompare pre-loads endCompare before the channel starts
// running and marks it as decoder-set, so the scheduler honors it the
// moment the schedule transitions to Running instead of computing its
// own default.
func (s *Schedule) StageEndCompare(ticks uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.endCompare = ticks
	s.endScheduleSetByDecoder = true
}

func (s *Schedule) EndCompare() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.endCompare
}

func (s *Schedule) EndScheduleSetByDecoder() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.endScheduleSetByDecoder
}

// Scheduler owns one Schedule per ignition channel.
type Scheduler struct {
	channels [MaxChannels]*Schedule
}

// NewScheduler returns a Scheduler with all channels Off.
func NewScheduler() *Scheduler {
	sch := &Scheduler{}
	for i := range sch.channels {
		sch.channels[i] = &Schedule{}
	}
	return sch
}

// Channel returns the Schedule for ignition channel n (1-based). Panics
// on an out-of-range channel — a programmer error, not a runtime condition.
func (sch *Scheduler) Channel(n int) *Schedule {
	return sch.channels[n-1]
}
