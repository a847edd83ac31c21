package system

import (
	"time"

	coresys "github.com/infinigrid/server/internal/core/system"
	"github.com/infinigrid/server/internal/world"
)

// CleanupSystem closes the engines of viewers that left this tick.
// Phase 6 (Cleanup).
type CleanupSystem struct {
	world *world.State
}

func NewCleanupSystem(ws *world.State) *CleanupSystem {
	return &CleanupSystem{world: ws}
}

func (s *CleanupSystem) Phase() coresys.Phase { return coresys.PhaseCleanup }

func (s *CleanupSystem) Update(_ time.Duration) {
	for _, v := range s.world.TakeDepartures() {
		if v.Engine != nil {
			v.Engine.Close()
		}
	}
}
