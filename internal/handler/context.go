package handler

import (
	"github.com/infinigrid/server/internal/config"
	"github.com/infinigrid/server/internal/core/event"
	"github.com/infinigrid/server/internal/grid"
	"github.com/infinigrid/server/internal/net"
	"github.com/infinigrid/server/internal/net/packet"
	"github.com/infinigrid/server/internal/world"
	"go.uber.org/zap"
)

// Deps holds shared dependencies injected into all packet handlers.
type Deps struct {
	Config      *config.Config
	Log         *zap.Logger
	World       *world.State
	Bus         *event.Bus
	GridOptions grid.Options
	Layout      grid.Layout
	Mapper      *grid.Mapper
	HelloLimit  *AttemptLimiter
}

// RegisterAll registers all packet handlers into the registry.
func RegisterAll(reg *packet.Registry, deps *Deps) {
	reg.Register(packet.C_OPCODE_HELLO,
		[]packet.SessionState{packet.StateHandshake},
		func(sess any, r *packet.Reader) {
			HandleHello(sess.(*net.Session), r, deps)
		},
	)

	viewing := []packet.SessionState{packet.StateViewing}

	reg.Register(packet.C_OPCODE_VISIBILITY, viewing,
		func(sess any, r *packet.Reader) {
			HandleVisibility(sess.(*net.Session), r, deps)
		},
	)
	reg.Register(packet.C_OPCODE_SETTLED, viewing,
		func(sess any, r *packet.Reader) {
			HandleSettled(sess.(*net.Session), r, deps)
		},
	)
	reg.Register(packet.C_OPCODE_PAN, viewing,
		func(sess any, r *packet.Reader) {
			HandlePan(sess.(*net.Session), r, deps)
		},
	)
	reg.Register(packet.C_OPCODE_RESIZE, viewing,
		func(sess any, r *packet.Reader) {
			HandleResize(sess.(*net.Session), r, deps)
		},
	)
	reg.Register(packet.C_OPCODE_SNAPSHOT, viewing,
		func(sess any, r *packet.Reader) {
			HandleSnapshot(sess.(*net.Session), r, deps)
		},
	)
	reg.Register(packet.C_OPCODE_BYE,
		[]packet.SessionState{packet.StateHandshake, packet.StateViewing},
		func(sess any, r *packet.Reader) {
			HandleBye(sess.(*net.Session), r, deps)
		},
	)
}
