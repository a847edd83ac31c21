package handler

import (
	"fmt"

	"github.com/infinigrid/server/internal/grid"
	"github.com/infinigrid/server/internal/net"
	"github.com/infinigrid/server/internal/net/packet"
	"github.com/infinigrid/server/internal/world"
	"go.uber.org/zap"
)

// HandleVisibility processes C_VISIBILITY from a client-tracking viewer.
// Format: [D cx][D cy][Q gen][C edge][C intersecting]
func HandleVisibility(sess *net.Session, r *packet.Reader, deps *Deps) {
	cx, cy := r.ReadD(), r.ReadD()
	gen := r.ReadQ()
	edge := r.ReadC()
	in := r.ReadC() != 0
	if r.Short() {
		return
	}
	v := deps.World.GetBySession(sess.ID)
	if v == nil {
		return
	}
	if v.Tracking != world.TrackClient {
		deps.Log.Debug("visibility from server-tracked viewer ignored", zap.Uint64("session", sess.ID))
		return
	}
	v.Reactor.Enqueue(grid.Event{
		Coord:        grid.Coord{X: cx, Y: cy},
		Gen:          gen,
		Edge:         grid.Edge(edge),
		Intersecting: in,
	})
}

// HandleSettled processes C_SETTLED. Format: [D cx][D cy][Q gen]
func HandleSettled(sess *net.Session, r *packet.Reader, deps *Deps) {
	cx, cy := r.ReadD(), r.ReadD()
	gen := r.ReadQ()
	if r.Short() {
		return
	}
	v := deps.World.GetBySession(sess.ID)
	if v == nil {
		return
	}
	v.Reactor.EnqueueSettle(grid.Coord{X: cx, Y: cy}, gen)
}

// HandlePan processes C_PAN. Format: [D x][D y][DU epoch], the absolute view
// offset tagged with the last recenter epoch the client applied. Pans from an
// earlier epoch were measured against the old origin and are dropped.
func HandlePan(sess *net.Session, r *packet.Reader, deps *Deps) {
	x, y := float64(r.ReadD()), float64(r.ReadD())
	epoch := r.ReadDU()
	if r.Short() {
		return
	}
	v := deps.World.GetBySession(sess.ID)
	if v == nil {
		return
	}
	if epoch != v.Epoch {
		deps.Log.Debug("stale pan ignored",
			zap.Uint64("session", sess.ID),
			zap.Uint32("epoch", epoch),
			zap.Uint32("current", v.Epoch),
		)
		return
	}
	if x == v.PanX && y == v.PanY {
		return
	}
	v.Moved = true
	v.PanX, v.PanY = x, y
	if v.View != nil {
		v.View.MoveTo(x, y)
	}
}

// HandleResize processes C_RESIZE. Format: [D view w][D view h]
func HandleResize(sess *net.Session, r *packet.Reader, deps *Deps) {
	w, h := r.ReadD(), r.ReadD()
	if r.Short() || w <= 0 || h <= 0 {
		return
	}
	v := deps.World.GetBySession(sess.ID)
	if v == nil || v.View == nil {
		return
	}
	v.View.Resize(float64(w), float64(h))
}

// HandleSnapshot processes C_SNAPSHOT: re-send every live chunk.
func HandleSnapshot(sess *net.Session, _ *packet.Reader, deps *Deps) {
	v := deps.World.GetBySession(sess.ID)
	if v == nil {
		return
	}
	sendSnapshot(sess, v.Engine.Snapshot(), deps.Layout, deps.Mapper)
}

// HandleBye processes C_BYE. InputSystem does the cleanup once the session
// reports closed.
func HandleBye(sess *net.Session, _ *packet.Reader, deps *Deps) {
	deps.Log.Info(fmt.Sprintf("viewer left  session=%d  name=%s", sess.ID, sess.ViewerName))
	disconnect(sess, packet.DisconnectBye)
}
