package system

import (
	"time"

	coresys "github.com/infinigrid/server/internal/core/system"
	"github.com/infinigrid/server/internal/viewport"
	"github.com/infinigrid/server/internal/world"
	"go.uber.org/zap"
)

// maxSettlePasses bounds how many evaluate/apply rounds one viewer gets per
// tick. A single pan settles in two or three passes; anything left over is
// picked up on the next tick.
const maxSettlePasses = 8

// VisibilitySystem feeds viewport transitions into each viewer's reactor and
// applies everything queued. Server-tracked viewers are evaluated here;
// client-tracked viewers only have their handler-submitted events drained.
// Phase 0 (Input), registered after InputSystem.
type VisibilitySystem struct {
	world *world.State
	log   *zap.Logger
}

func NewVisibilitySystem(ws *world.State, log *zap.Logger) *VisibilitySystem {
	return &VisibilitySystem{world: ws, log: log}
}

func (s *VisibilitySystem) Phase() coresys.Phase { return coresys.PhaseInput }

func (s *VisibilitySystem) Update(_ time.Duration) {
	s.world.ForEachViewer(func(v *world.Viewer) {
		if v.Reactor == nil {
			return
		}
		if v.Tracking != world.TrackServer || v.View == nil {
			v.Reactor.Drain()
			return
		}
		s.settle(v)
	})
}

func (s *VisibilitySystem) settle(v *world.Viewer) {
	if _, ok := viewport.Pump(v.View, v.Reactor, maxSettlePasses); !ok {
		s.log.Debug("visibility did not settle this tick",
			zap.Uint64("session", v.SessionID),
			zap.Int("live", v.Engine.Len()),
		)
	}
}
