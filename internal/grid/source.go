package grid

import (
	"fmt"
	"math"
)

// Insets expand the observation root on each side, like a CSS root margin.
type Insets struct {
	Top    float64
	Right  float64
	Bottom float64
	Left   float64
}

// Margins are the visibility buffer distances. Body must exceed Edge by a dead
// band: a chunk evicted by one motion is only re-created after the view moves
// back by more than Body-Edge.
type Margins struct {
	Edge float64
	Body float64
}

// MinDeadBand is the smallest Body-Edge gap accepted for a chunk size: half
// the shorter chunk side.
func MinDeadBand(chunkWidth, chunkHeight float64) float64 {
	return math.Min(chunkWidth, chunkHeight) / 2
}

// Validate rejects negative margins and a dead band narrower than
// MinDeadBand.
func (m Margins) Validate(chunkWidth, chunkHeight float64) error {
	if m.Edge < 0 || m.Body < 0 {
		return fmt.Errorf("margins must not be negative, got edge=%v body=%v", m.Edge, m.Body)
	}
	if band := MinDeadBand(chunkWidth, chunkHeight); m.Body-m.Edge < band {
		return fmt.Errorf("body margin %v must exceed edge margin %v by at least %v", m.Body, m.Edge, band)
	}
	return nil
}

// WatchRequest asks the visibility source to report transitions of one edge
// (or the body) against the viewport expanded by Root.
type WatchRequest struct {
	Edge Edge
	Root Insets
}

// Requests builds the five watch requests for a chunk. Each edge watch only
// extends the root in its own direction; the body watch extends all sides.
func (m Margins) Requests() [5]WatchRequest {
	return [5]WatchRequest{
		{Edge: EdgeTop, Root: Insets{Top: m.Edge}},
		{Edge: EdgeRight, Root: Insets{Right: m.Edge}},
		{Edge: EdgeBottom, Root: Insets{Bottom: m.Edge}},
		{Edge: EdgeLeft, Root: Insets{Left: m.Edge}},
		{Edge: EdgeBody, Root: Insets{Top: m.Body, Right: m.Body, Bottom: m.Body, Left: m.Body}},
	}
}

// Watch is the observation handle a source returns for one chunk. Detach is
// called exactly once, in the same critical section that removes the chunk.
type Watch interface {
	Detach()
}

// Source is the visibility collaborator (viewport or remote renderer).
// Observe and Recenter are called with the engine lock held and must not call
// back into the engine.
type Source interface {
	Observe(ch Chunk, rect Rect, reqs [5]WatchRequest) Watch
	Recenter()
}

// Event is one visibility transition for a chunk's edge or body.
// Gen is the chunk generation the watcher was attached to; zero skips the check.
type Event struct {
	Coord        Coord
	Gen          uint64
	Edge         Edge
	Intersecting bool
}

type nopSource struct{}

func (nopSource) Observe(Chunk, Rect, [5]WatchRequest) Watch { return nopWatch{} }
func (nopSource) Recenter()                                  {}

type nopWatch struct{}

func (nopWatch) Detach() {}
