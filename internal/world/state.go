package world

import (
	"sort"
	"time"

	"github.com/infinigrid/server/internal/grid"
	"github.com/infinigrid/server/internal/net"
	"github.com/infinigrid/server/internal/viewport"
)

// Tracking selects who derives visibility for a viewer.
type Tracking byte

const (
	// TrackServer: the client reports pan offsets and the server's viewport
	// derives edge and body transitions.
	TrackServer Tracking = 0
	// TrackClient: the client runs its own intersection detection and
	// reports transitions and settle signals directly.
	TrackClient Tracking = 1
)

// Viewer holds in-memory data for one connected viewer.
// Accessed only from the game loop goroutine; no locks needed.
type Viewer struct {
	SessionID uint64
	Session   *net.Session
	Name      string
	Tracking  Tracking
	JoinedAt  time.Time

	Engine  *grid.Engine
	Reactor *grid.Reactor
	View    *viewport.Source // server-side viewport; used only with TrackServer

	Moved bool    // set by the first pan, cleared by recenter
	PanX  float64 // last reported view offset
	PanY  float64
	Epoch uint32 // bumped by every recenter; pans tagged with an older epoch are ignored
}

// State is the table of connected viewers. Viewers that leave are queued
// until the cleanup phase releases their engines.
type State struct {
	viewers    map[uint64]*Viewer
	departures []*Viewer
}

func NewState() *State {
	return &State{viewers: make(map[uint64]*Viewer)}
}

// AddViewer registers v under its session ID, replacing nothing: a second
// viewer for the same session is rejected.
func (s *State) AddViewer(v *Viewer) bool {
	if _, exists := s.viewers[v.SessionID]; exists {
		return false
	}
	s.viewers[v.SessionID] = v
	return true
}

// GetBySession returns the viewer attached to a session, or nil.
func (s *State) GetBySession(sessionID uint64) *Viewer {
	return s.viewers[sessionID]
}

// RemoveViewer detaches the viewer from the table and queues it for cleanup.
func (s *State) RemoveViewer(sessionID uint64) *Viewer {
	v, ok := s.viewers[sessionID]
	if !ok {
		return nil
	}
	delete(s.viewers, sessionID)
	s.departures = append(s.departures, v)
	return v
}

// TakeDepartures returns and clears the queue of departed viewers.
func (s *State) TakeDepartures() []*Viewer {
	out := s.departures
	s.departures = nil
	return out
}

// ForEachViewer visits viewers in session order.
func (s *State) ForEachViewer(fn func(*Viewer)) {
	ids := make([]uint64, 0, len(s.viewers))
	for id := range s.viewers {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		fn(s.viewers[id])
	}
}

// ViewerCount returns the number of connected viewers.
func (s *State) ViewerCount() int {
	return len(s.viewers)
}

// LiveChunks sums the live chunks of every viewer.
func (s *State) LiveChunks() int {
	n := 0
	for _, v := range s.viewers {
		if v.Engine != nil {
			n += v.Engine.Len()
		}
	}
	return n
}
