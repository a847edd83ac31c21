// Package viewport is an in-process visibility source: it tracks a pannable
// view rectangle and derives edge and body intersections for every observed
// chunk.
package viewport

import (
	"sort"
	"sync"

	"github.com/infinigrid/server/internal/grid"
)

// Settle is a one-shot placement-complete signal for a chunk.
type Settle struct {
	Coord grid.Coord
	Gen   uint64
}

// Frame is the output of one Evaluate pass. Settle signals precede
// transitions so a chunk placed in this pass can be evicted by it.
type Frame struct {
	Settled []Settle
	Events  []grid.Event
}

// Empty reports whether the frame carries nothing to apply.
func (f Frame) Empty() bool { return len(f.Settled) == 0 && len(f.Events) == 0 }

const (
	stateUnknown int8 = iota - 1
	stateOut
	stateIn
)

type watch struct {
	src     *Source
	id      uint64
	chunk   grid.Chunk
	rect    grid.Rect
	reqs    [5]grid.WatchRequest
	state   [5]int8
	placed  bool
	removed bool
}

// Detach stops the watch. Safe to call more than once.
func (w *watch) Detach() {
	w.src.mu.Lock()
	defer w.src.mu.Unlock()
	if w.removed {
		return
	}
	w.removed = true
	delete(w.src.watches, w.id)
}

// PanFunc receives the view offset after every pan or recenter.
type PanFunc func(x, y float64)

// Source implements grid.Source over a view rectangle of fixed size whose
// top-left corner sits at the pan offset. The origin chunk's top-left is at
// offset (0,0).
type Source struct {
	mu      sync.Mutex
	width   float64
	height  float64
	x, y    float64
	moved   bool
	watches map[uint64]*watch
	nextID  uint64
	onPan   []PanFunc
}

// New creates a source with a view of w×h units at offset (0,0).
func New(w, h float64) *Source {
	return &Source{
		width:   w,
		height:  h,
		watches: make(map[uint64]*watch),
	}
}

// Observe registers a chunk's rectangle and watch requests. The first
// Evaluate after registration reports the initial state of every watch.
func (s *Source) Observe(ch grid.Chunk, rect grid.Rect, reqs [5]grid.WatchRequest) grid.Watch {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	w := &watch{src: s, id: s.nextID, chunk: ch, rect: rect, reqs: reqs}
	for i := range w.state {
		w.state[i] = stateUnknown
	}
	s.watches[w.id] = w
	return w
}

// Recenter moves the view back to the origin and clears the moved flag.
func (s *Source) Recenter() {
	s.mu.Lock()
	s.x, s.y = 0, 0
	s.moved = false
	subs := s.onPan
	s.mu.Unlock()
	for _, fn := range subs {
		fn(0, 0)
	}
}

// Pan shifts the view by (dx, dy).
func (s *Source) Pan(dx, dy float64) {
	if dx == 0 && dy == 0 {
		return
	}
	s.mu.Lock()
	s.x += dx
	s.y += dy
	s.moved = true
	x, y := s.x, s.y
	subs := s.onPan
	s.mu.Unlock()
	for _, fn := range subs {
		fn(x, y)
	}
}

// MoveTo places the view's top-left corner at (x, y).
func (s *Source) MoveTo(x, y float64) {
	s.mu.Lock()
	dx, dy := x-s.x, y-s.y
	s.mu.Unlock()
	s.Pan(dx, dy)
}

// OnPan subscribes fn to offset changes. fn runs without the source lock held.
func (s *Source) OnPan(fn PanFunc) {
	s.mu.Lock()
	s.onPan = append(s.onPan, fn)
	s.mu.Unlock()
}

// Offset returns the view's top-left corner.
func (s *Source) Offset() (x, y float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.x, s.y
}

// Moved reports whether the view has panned since creation or the last recenter.
func (s *Source) Moved() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.moved
}

// Resize changes the view size.
func (s *Source) Resize(w, h float64) {
	s.mu.Lock()
	s.width, s.height = w, h
	s.mu.Unlock()
}

// View returns the current view rectangle.
func (s *Source) View() grid.Rect {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

// Live returns the number of attached watches.
func (s *Source) Live() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.watches)
}

func (s *Source) viewLocked() grid.Rect {
	return grid.Rect{X: s.x, Y: s.y, W: s.width, H: s.height}
}

// Evaluate recomputes every watch against the current view and returns the
// settle signals for newly placed chunks followed by the transitions since
// the previous pass. It must not be called while holding the engine lock.
func (s *Source) Evaluate() Frame {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]uint64, 0, len(s.watches))
	for id := range s.watches {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	view := s.viewLocked()
	var f Frame
	for _, id := range ids {
		w := s.watches[id]
		if !w.placed {
			w.placed = true
			f.Settled = append(f.Settled, Settle{Coord: w.chunk.Coord, Gen: w.chunk.Gen})
		}
		for i, req := range w.reqs {
			in := intersects(w.rect, req, view)
			next := stateOut
			if in {
				next = stateIn
			}
			if w.state[i] == next {
				continue
			}
			w.state[i] = next
			f.Events = append(f.Events, grid.Event{
				Coord:        w.chunk.Coord,
				Gen:          w.chunk.Gen,
				Edge:         req.Edge,
				Intersecting: in,
			})
		}
	}
	return f
}
