package system

import (
	"time"

	"github.com/infinigrid/server/internal/core/event"
	coresys "github.com/infinigrid/server/internal/core/system"
	"github.com/infinigrid/server/internal/net"
	"github.com/infinigrid/server/internal/net/packet"
	"github.com/infinigrid/server/internal/world"
	"go.uber.org/zap"
)

// SessionSource hands accepted and dead sessions to the game loop.
// *net.Server satisfies it.
type SessionSource interface {
	NewSessions() <-chan *net.Session
	DeadSessions() <-chan uint64
	NotifyDead(sessionID uint64)
}

// InputSystem drains packet queues from all sessions and dispatches them
// through the packet registry. Phase 0 (Input).
type InputSystem struct {
	sessions   SessionSource
	registry   *packet.Registry
	store      *net.SessionStore
	world      *world.State
	bus        *event.Bus
	maxPerTick int
	log        *zap.Logger
}

func NewInputSystem(
	sessions SessionSource,
	registry *packet.Registry,
	store *net.SessionStore,
	ws *world.State,
	bus *event.Bus,
	maxPerTick int,
	log *zap.Logger,
) *InputSystem {
	return &InputSystem{
		sessions:   sessions,
		registry:   registry,
		store:      store,
		world:      ws,
		bus:        bus,
		maxPerTick: maxPerTick,
		log:        log,
	}
}

func (s *InputSystem) Phase() coresys.Phase { return coresys.PhaseInput }

func (s *InputSystem) Update(_ time.Duration) {
	// Accept new sessions
	for {
		select {
		case sess := <-s.sessions.NewSessions():
			s.store.Add(sess)
		default:
			goto doneNew
		}
	}
doneNew:

	// Process dead sessions
	for {
		select {
		case id := <-s.sessions.DeadSessions():
			s.store.Remove(id)
		default:
			goto doneDead
		}
	}
doneDead:

	for id, sess := range s.store.Raw() {
		if sess.IsClosed() {
			// Input left on a closed session is dropped; its engine closes in Cleanup.
			sess.FlushOutput()
			s.handleDisconnect(sess)
			s.sessions.NotifyDead(id)
			s.store.Remove(id)
			continue
		}

		s.drain(sess)
	}
}

// drain dispatches up to maxPerTick queued packets from one session.
func (s *InputSystem) drain(sess *net.Session) {
	for i := 0; i < s.maxPerTick; i++ {
		select {
		case data := <-sess.InQueue:
			if err := s.registry.Dispatch(sess, sess.State(), data); err != nil {
				s.log.Debug("packet dispatch error",
					zap.Uint64("session", sess.ID),
					zap.Error(err),
				)
			}
		default:
			return
		}
	}
}

// handleDisconnect removes the viewer from world state. The engine itself
// is released by CleanupSystem at the end of the tick.
func (s *InputSystem) handleDisconnect(sess *net.Session) {
	v := s.world.RemoveViewer(sess.ID)
	if v == nil {
		return
	}
	event.Emit(s.bus, event.ViewerLeft{SessionID: sess.ID})
	s.log.Info("viewer disconnected",
		zap.Uint64("session", sess.ID),
		zap.String("name", v.Name),
		zap.Duration("online", time.Since(v.JoinedAt)),
	)
}

// SessionCount returns the current number of open sessions.
func (s *InputSystem) SessionCount() int {
	return s.store.Count()
}
