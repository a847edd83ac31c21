package system

import (
	"time"

	"github.com/infinigrid/server/internal/core/event"
	coresys "github.com/infinigrid/server/internal/core/system"
)

// EventDispatchSystem rotates the bus and delivers last tick's events.
// Phase 1 (PreUpdate).
type EventDispatchSystem struct {
	bus        *event.Bus
	dispatched int
}

func NewEventDispatchSystem(bus *event.Bus) *EventDispatchSystem {
	return &EventDispatchSystem{bus: bus}
}

func (s *EventDispatchSystem) Phase() coresys.Phase { return coresys.PhasePreUpdate }

func (s *EventDispatchSystem) Update(_ time.Duration) {
	s.bus.SwapBuffers()
	s.dispatched += s.bus.DispatchAll()
}

// Dispatched returns the total number of events delivered so far.
func (s *EventDispatchSystem) Dispatched() int {
	return s.dispatched
}
