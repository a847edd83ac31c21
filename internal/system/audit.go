package system

import (
	"time"

	"github.com/infinigrid/server/internal/core/event"
	coresys "github.com/infinigrid/server/internal/core/system"
	"github.com/infinigrid/server/internal/world"
	"go.uber.org/zap"
)

// AuditSystem checks every viewer's registry invariants every interval
// ticks. Phase 2 (Update).
type AuditSystem struct {
	world     *world.State
	bus       *event.Bus
	log       *zap.Logger
	tickCount int
	interval  int
}

func NewAuditSystem(ws *world.State, bus *event.Bus, intervalTicks int, log *zap.Logger) *AuditSystem {
	if intervalTicks < 1 {
		intervalTicks = 1
	}
	return &AuditSystem{world: ws, bus: bus, log: log, interval: intervalTicks}
}

func (s *AuditSystem) Phase() coresys.Phase { return coresys.PhaseUpdate }

func (s *AuditSystem) Update(_ time.Duration) {
	s.tickCount++
	if s.tickCount < s.interval {
		return
	}
	s.tickCount = 0
	s.AuditAll()
}

// AuditAll runs the audit immediately and returns how many viewers needed
// repair.
func (s *AuditSystem) AuditAll() int {
	repaired := 0
	s.world.ForEachViewer(func(v *world.Viewer) {
		if v.Engine == nil {
			return
		}
		if err := v.Engine.Audit(); err != nil {
			repaired++
			s.log.Warn("grid invariant violated",
				zap.Uint64("session", v.SessionID),
				zap.Error(err),
			)
			event.Emit(s.bus, event.InvariantViolated{SessionID: v.SessionID, Reason: err.Error()})
		}
	})
	return repaired
}
