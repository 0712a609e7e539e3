package trigger

// logToothLocked records an accepted primary gap into the tooth-interval
// ring buffer. No-op outside ToothLogMode or once the buffer has filled
// and is awaiting a reader.
func (s *State) logToothLocked(gapUS uint32) {
	if s.ToothLogReady || s.LogMode != ToothLogMode {
		return
	}
	s.ToothHistory[s.ToothHistoryIndex] = gapUS
	s.advanceLogIndexLocked()
}

// logCompositeLocked records an absolute timestamp plus a bit-packed
// snapshot of both input levels, whether the sample came from a cam edge,
// and whether sync was held. No-op outside CompositeLogMode or once full.
func (s *State) logCompositeLocked(nowUS uint32, priLevel, secLevel, isCamEdge, isSecondCam bool) {
	if s.ToothLogReady || s.LogMode != CompositeLogMode {
		return
	}
	var b uint8
	if priLevel {
		b |= CompositePRI
	}
	if secLevel {
		b |= CompositeSEC
	}
	if isCamEdge {
		b |= CompositeTRIG
	}
	if isSecondCam {
		b |= CompositeSEC2
	}
	if s.HasSync {
		b |= CompositeSYNC
	}
	s.ToothHistory[s.ToothHistoryIndex] = nowUS
	s.CompositeLogHistory[s.ToothHistoryIndex] = b
	s.advanceLogIndexLocked()
}

func (s *State) advanceLogIndexLocked() {
	s.ToothHistoryIndex++
	if s.ToothHistoryIndex >= ToothLogSize-1 {
		s.ToothLogReady = true
	}
}

// ToothLogRecord is one drained entry from the tooth-interval log.
type ToothLogRecord struct {
	GapUS uint32
}

// CompositeLogRecord is one decoded entry from the composite log, with
// the packed flag byte unpacked into booleans for readers.
type CompositeLogRecord struct {
	TimestampUS  uint32
	PrimaryLevel bool
	SecondaryLevel bool
	IsCamEdge    bool
	IsSecondCam  bool
	SyncHeld     bool
}

// decodeComposite unpacks a raw composite-log byte into a CompositeLogRecord.
func decodeComposite(timestampUS uint32, flags uint8) CompositeLogRecord {
	return CompositeLogRecord{
		TimestampUS:    timestampUS,
		PrimaryLevel:   flags&CompositePRI != 0,
		SecondaryLevel: flags&CompositeSEC != 0,
		IsCamEdge:      flags&CompositeTRIG != 0,
		IsSecondCam:    flags&CompositeSEC2 != 0,
		SyncHeld:       flags&CompositeSYNC != 0,
	}
}

// DrainToothLog copies out all currently logged tooth-interval records
// and resets the ring buffer so capture can resume.
func (s *State) DrainToothLog() []ToothLogRecord {
	var records []ToothLogRecord
	s.withLock(func() {
		records = make([]ToothLogRecord, s.ToothHistoryIndex)
		for i := uint16(0); i < s.ToothHistoryIndex; i++ {
			records[i] = ToothLogRecord{GapUS: s.ToothHistory[i]}
		}
		s.ToothHistoryIndex = 0
		s.ToothLogReady = false
	})
	return records
}

// DrainCompositeLog copies out and decodes all currently logged composite
// records and resets the ring buffer so capture can resume.
func (s *State) DrainCompositeLog() []CompositeLogRecord {
	var records []CompositeLogRecord
	s.withLock(func() {
		records = make([]CompositeLogRecord, s.ToothHistoryIndex)
		for i := uint16(0); i < s.ToothHistoryIndex; i++ {
			records[i] = decodeComposite(s.ToothHistory[i], s.CompositeLogHistory[i])
		}
		s.ToothHistoryIndex = 0
		s.ToothLogReady = false
	})
	return records
}

// ToothLogReadyFlag reports whether the ring buffer has filled and is
// awaiting a drain, the TOOTHLOG1READY condition.
func (s *State) ToothLogReadyFlag() bool {
	var ready bool
	s.withLock(func() { ready = s.ToothLogReady })
	return ready
}
