// Package trigger implements the crank/cam trigger decoder core: the
// synchronization state machine, RPM estimators, crank angle
// reconstruction, and per-tooth ignition patching shared by every wheel
// family this module supports.
package trigger

import (
	"sync"
	"time"

	"github.com/gotrigger/crankdecoder/internal/config"
)

// ToothLogSize is the capacity of both the tooth-interval ring buffer and
// the composite-log ring buffer.
const ToothLogSize = 256

// Flag is one bit of decoderFlags.
type Flag uint8

const (
	FlagValidTrigger Flag = 1 << iota
	FlagIsSequential
	FlagHasFixedCranking
	FlagToothAngCorrect
	FlagSecondDeriv
)

// Flags is the decoder's bitset of Flag values.
type Flags uint8

func (f Flags) Has(flag Flag) bool { return f&Flags(flag) != 0 }
func (f *Flags) Set(flag Flag)     { *f |= Flags(flag) }
func (f *Flags) Clear(flag Flag)   { *f &^= Flags(flag) }

// LogMode selects which of the two mutually exclusive ring-buffer formats
// the tooth logger writes.
type LogMode uint8

const (
	ToothLogMode LogMode = iota
	CompositeLogMode
)

// Composite log bit flags, bit-compatible with the wider telemetry record
// layout: primary level, secondary level, cam-edge marker, second-cam
// marker, and whether sync was held at the time of the sample.
const (
	CompositePRI  uint8 = 1 << iota
	CompositeSEC
	CompositeTRIG
	CompositeSEC2
	CompositeSYNC
)

// State is the shared decoder state: timestamps, tooth counters, and sync
// flags written by edge handlers and read by the mainline getters. Every
// decoder variant owns one State; the variants differ only in how they
// interpret and advance it.
type State struct {
	mu sync.Mutex

	// ISR-writable fields: tooth accounting, timestamps, sync state.
	ToothCurrentCount              uint16
	ToothSystemCount               uint8
	ToothLastToothTime             uint32
	ToothLastMinusOneToothTime     uint32
	ToothLastSecToothTime          uint32
	ToothLastMinusOneSecToothTime  uint32
	ToothOneTime                   uint32
	ToothOneMinusOneTime           uint32
	SecondaryToothCount            uint16
	RevolutionOne                  bool
	HasSync                        bool
	HalfSync                       bool
	SyncLossCounter                uint16
	StartRevolutions               uint16
	Flags                          Flags
	LastPrimaryLevel                bool
	LastSecondaryLevel              bool
	VVT1Angle                       int16
	VVT2Angle                       int16

	// revTimeHistory keeps the last 4 revolution durations for jitter
	// diagnostics, beyond the 2 the RPM estimators need.
	revTimeHistory      [4]uint32
	revTimeHistoryCount int

	// mainline-writable fields: configuration-derived constants set from
	// Setup() or SetEndTeeth(). The edge handlers also adapt the two filter
	// thresholds, and the distributor's Primary updates MaxStallTime.
	TriggerFilterTime    uint32
	TriggerSecFilterTime uint32
	TriggerToothAngle    uint16
	TriggerAngleOffset   int16
	TriggerActualTeeth   uint16
	PatternTeeth         uint16
	MaxStallTime         uint32
	IgnitionEndTooth     [8]uint16

	RPM uint16

	Cfg config.Settings

	LogMode             LogMode
	ToothHistory        [ToothLogSize]uint32
	CompositeLogHistory [ToothLogSize]uint8
	ToothHistoryIndex   uint16
	ToothLogReady       bool

	// Clock returns the current monotonic microsecond timestamp. Tests
	// substitute a deterministic clock; production wiring uses the
	// wall-clock default below.
	Clock func() uint32
}

// NewState returns a zero-initialized State for cfg, matching the
// "zero-initialized at boot, no dynamic allocation" lifecycle.
func NewState(cfg config.Settings) *State {
	return &State{
		Cfg:   cfg,
		Clock: defaultClock,
	}
}

func defaultClock() uint32 {
	return uint32(time.Now().UnixMicro())
}

// withLock runs fn with the state mutex held, modeling the
// interrupt-disabled critical section the source uses around multi-word
// shared state.
func (s *State) withLock(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn()
}

// promoteHalfSync promotes a half-synced decoder to full sync once a
// secondary (cam) edge confirms revolution parity. A no-op if already
// fully synced or not yet half-synced.
func (s *State) promoteHalfSync() {
	if s.HalfSync && !s.HasSync {
		s.HasSync = true
		s.HalfSync = false
	}
}

// pushRevolutionTime records a freshly completed revolution's duration
// into the jitter history, dropping the oldest sample once full.
func (s *State) pushRevolutionTime(us uint32) {
	for i := len(s.revTimeHistory) - 1; i > 0; i-- {
		s.revTimeHistory[i] = s.revTimeHistory[i-1]
	}
	s.revTimeHistory[0] = us
	if s.revTimeHistoryCount < len(s.revTimeHistory) {
		s.revTimeHistoryCount++
	}
}

// RevolutionJitterUS returns the spread (max-min) of the stored
// revolution-time samples, a diagnostic of how stable the engine speed
// has been over the last few revolutions. Returns 0 with fewer than two
// samples.
func (s *State) RevolutionJitterUS() uint32 {
	var jitter uint32
	s.withLock(func() {
		if s.revTimeHistoryCount < 2 {
			jitter = 0
			return
		}
		min, max := s.revTimeHistory[0], s.revTimeHistory[0]
		for i := 1; i < s.revTimeHistoryCount; i++ {
			if s.revTimeHistory[i] < min {
				min = s.revTimeHistory[i]
			}
			if s.revTimeHistory[i] > max {
				max = s.revTimeHistory[i]
			}
		}
		jitter = max - min
	})
	return jitter
}

// Snapshot is a plain-old-data copy of the fields the mainline getters
// need, taken under the critical section and then used for arithmetic
// after the lock is released.
type Snapshot struct {
	ToothCurrentCount          uint16
	ToothLastToothTime         uint32
	ToothLastMinusOneToothTime uint32
	RevolutionOne              bool
	ToothOneTime               uint32
	ToothOneMinusOneTime       uint32
	HasSync                    bool
	HalfSync                   bool
	RPM                        uint16
}

// TakeSnapshot captures a Snapshot under the critical section.
func (s *State) TakeSnapshot() Snapshot {
	var snap Snapshot
	s.withLock(func() {
		snap = Snapshot{
			ToothCurrentCount:          s.ToothCurrentCount,
			ToothLastToothTime:         s.ToothLastToothTime,
			ToothLastMinusOneToothTime: s.ToothLastMinusOneToothTime,
			RevolutionOne:              s.RevolutionOne,
			ToothOneTime:               s.ToothOneTime,
			ToothOneMinusOneTime:       s.ToothOneMinusOneTime,
			HasSync:                    s.HasSync,
			HalfSync:                   s.HalfSync,
			RPM:                        s.RPM,
		}
	})
	return snap
}

func normalizeAngle(angle int32, max int32) int32 {
	angle %= max
	if angle < 0 {
		angle += max
	}
	return angle
}
