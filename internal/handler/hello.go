package handler

import (
	"fmt"
	stdnet "net"
	"strings"
	"time"

	"github.com/infinigrid/server/internal/core/event"
	"github.com/infinigrid/server/internal/grid"
	"github.com/infinigrid/server/internal/net"
	"github.com/infinigrid/server/internal/net/packet"
	"github.com/infinigrid/server/internal/viewport"
	"github.com/infinigrid/server/internal/world"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/text/unicode/norm"
)

const (
	defaultViewWidth  = 1280
	defaultViewHeight = 720
	maxNameLen        = 32
)

// HandleHello processes C_HELLO.
// Format: [S name][S access key][D view w][D view h][C tracking]
func HandleHello(sess *net.Session, r *packet.Reader, deps *Deps) {
	name := norm.NFC.String(strings.TrimSpace(r.ReadS()))
	key := r.ReadS()
	viewW := r.ReadD()
	viewH := r.ReadD()
	mode := r.ReadC()
	if r.Short() {
		deps.Log.Debug("truncated hello", zap.Uint64("session", sess.ID))
		return
	}

	if !deps.HelloLimit.Allow(hostOf(sess.IP)) {
		deps.Log.Warn("hello rate exceeded", zap.String("ip", sess.IP))
		disconnect(sess, packet.DisconnectRateLimit)
		return
	}

	if hash := deps.Config.Network.AccessKeyHash; hash != "" {
		if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(key)); err != nil {
			deps.Log.Info(fmt.Sprintf("access key rejected  session=%d  ip=%s", sess.ID, sess.IP))
			disconnect(sess, packet.DisconnectBadKey)
			return
		}
	}

	if name == "" {
		name = fmt.Sprintf("viewer-%d", sess.ID)
	}
	if len([]rune(name)) > maxNameLen {
		name = string([]rune(name)[:maxNameLen])
	}
	w, h := float64(viewW), float64(viewH)
	if w <= 0 || h <= 0 {
		w, h = defaultViewWidth, defaultViewHeight
	}
	tracking := world.Tracking(mode)
	if tracking != world.TrackClient {
		tracking = world.TrackServer
	}

	v := &world.Viewer{
		SessionID: sess.ID,
		Session:   sess,
		Name:      name,
		Tracking:  tracking,
		JoinedAt:  time.Now(),
	}
	if tracking == world.TrackServer {
		v.View = viewport.New(w, h)
	}

	// Welcome precedes the origin chunk the engine streams on construction.
	sendWelcome(sess, deps.Config.Server.Name, deps.GridOptions, deps.Layout, tracking)

	log := sess.Log().With(zap.String("viewer", name))
	engine, err := grid.NewEngine(deps.GridOptions, &viewerSource{viewer: v, deps: deps}, log)
	if err != nil {
		deps.Log.Error("create grid engine", zap.Error(err))
		sess.Close()
		return
	}
	v.Engine = engine
	v.Reactor = grid.NewReactor(engine, deps.Config.Grid.EventQueueSize, outcomeEmitter(deps, sess.ID), log)

	if !deps.World.AddViewer(v) {
		engine.Close()
		return
	}
	sess.ViewerName = name
	sess.SetState(packet.StateViewing)

	event.Emit(deps.Bus, event.ViewerJoined{SessionID: sess.ID, Name: name})
	if origin, ok := engine.Chunk(grid.Origin); ok {
		event.Emit(deps.Bus, event.ChunkCreated{SessionID: sess.ID, Chunk: origin})
	}

	deps.Log.Info(fmt.Sprintf("viewer joined  session=%d  name=%s  tracking=%d  view=%dx%d",
		sess.ID, name, tracking, int(w), int(h)))
}

// outcomeEmitter turns engine outcomes into lifecycle events on the bus.
func outcomeEmitter(deps *Deps, sessionID uint64) func(grid.Outcome) {
	return func(o grid.Outcome) {
		switch o.Kind {
		case grid.OutcomeCreated:
			event.Emit(deps.Bus, event.ChunkCreated{SessionID: sessionID, Chunk: o.Chunk})
		case grid.OutcomeSettled:
			event.Emit(deps.Bus, event.ChunkSettled{SessionID: sessionID, Coord: o.Coord, Gen: o.Chunk.Gen})
		case grid.OutcomeEvicted:
			event.Emit(deps.Bus, event.ChunkEvicted{SessionID: sessionID, Chunk: o.Chunk})
			if o.Reset {
				event.Emit(deps.Bus, event.GridReset{SessionID: sessionID, Origin: o.Origin})
			}
		}
	}
}

func disconnect(sess *net.Session, reason byte) {
	SendDisconnect(sess, reason)
	sess.FlushOutput()
	sess.Close()
}

func hostOf(addr string) string {
	host, _, err := stdnet.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}
