package system

import (
	"time"

	"github.com/infinigrid/server/internal/core/event"
	coresys "github.com/infinigrid/server/internal/core/system"
	"github.com/infinigrid/server/internal/persist"
	"go.uber.org/zap"
)

// JournalSystem records lifecycle events from the bus and flushes the
// journal once per tick. Phase 5 (Persist).
type JournalSystem struct {
	journal *persist.Journal
	log     *zap.Logger
	failed  int
}

// NewJournalSystem subscribes to every lifecycle event on bus.
func NewJournalSystem(bus *event.Bus, j *persist.Journal, log *zap.Logger) *JournalSystem {
	s := &JournalSystem{journal: j, log: log}

	event.Subscribe(bus, func(e event.ViewerJoined) {
		s.append(persist.JournalRecord{Session: e.SessionID, Kind: "join", Detail: e.Name})
	})
	event.Subscribe(bus, func(e event.ViewerLeft) {
		s.append(persist.JournalRecord{Session: e.SessionID, Kind: "leave"})
	})
	event.Subscribe(bus, func(e event.ChunkCreated) {
		s.append(persist.JournalRecord{
			Session: e.SessionID, Kind: "create",
			X: e.Chunk.Coord.X, Y: e.Chunk.Coord.Y, Start: e.Chunk.StartIndex, Gen: e.Chunk.Gen,
		})
	})
	event.Subscribe(bus, func(e event.ChunkSettled) {
		s.append(persist.JournalRecord{Session: e.SessionID, Kind: "settle", X: e.Coord.X, Y: e.Coord.Y, Gen: e.Gen})
	})
	event.Subscribe(bus, func(e event.ChunkEvicted) {
		s.append(persist.JournalRecord{
			Session: e.SessionID, Kind: "evict",
			X: e.Chunk.Coord.X, Y: e.Chunk.Coord.Y, Start: e.Chunk.StartIndex, Gen: e.Chunk.Gen,
		})
	})
	event.Subscribe(bus, func(e event.GridReset) {
		s.append(persist.JournalRecord{Session: e.SessionID, Kind: "reset", Start: e.Origin.StartIndex, Gen: e.Origin.Gen})
	})
	event.Subscribe(bus, func(e event.InvariantViolated) {
		s.append(persist.JournalRecord{Session: e.SessionID, Kind: "violation", Detail: e.Reason})
	})
	return s
}

func (s *JournalSystem) Phase() coresys.Phase { return coresys.PhasePersist }

func (s *JournalSystem) Update(_ time.Duration) {
	if _, err := s.journal.Flush(); err != nil {
		s.log.Error("journal flush failed", zap.Error(err))
	}
}

// Close flushes and closes the journal. Called on shutdown.
func (s *JournalSystem) Close() error {
	return s.journal.Close()
}

// Failed returns how many records could not be appended.
func (s *JournalSystem) Failed() int {
	return s.failed
}

func (s *JournalSystem) append(rec persist.JournalRecord) {
	if err := s.journal.Append(rec); err != nil {
		s.failed++
		s.log.Error("journal append failed", zap.String("kind", rec.Kind), zap.Error(err))
	}
}
