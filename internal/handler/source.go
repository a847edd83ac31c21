package handler

import (
	"github.com/infinigrid/server/internal/grid"
	"github.com/infinigrid/server/internal/world"
)

// viewerSource is the grid.Source of one remote viewer. Every observed chunk
// is streamed to the client; detaching a watch tells the client to drop it.
// With server tracking the viewer's viewport derives visibility; with client
// tracking the client reports transitions itself.
type viewerSource struct {
	viewer *world.Viewer
	deps   *Deps
}

type viewerWatch struct {
	src   *viewerSource
	chunk grid.Chunk
	inner grid.Watch
}

func (s *viewerSource) Observe(ch grid.Chunk, rect grid.Rect, reqs [5]grid.WatchRequest) grid.Watch {
	w := &viewerWatch{src: s, chunk: ch}
	if s.viewer.View != nil {
		w.inner = s.viewer.View.Observe(ch, rect, reqs)
	}
	sendChunkPut(s.viewer.Session, ch, s.deps.Layout, s.deps.Mapper)
	return w
}

func (s *viewerSource) Recenter() {
	if s.viewer.View != nil {
		s.viewer.View.Recenter()
	}
	s.viewer.Epoch++
	s.viewer.Moved = false
	s.viewer.PanX, s.viewer.PanY = 0, 0
	sendRecenter(s.viewer.Session, s.viewer.Epoch)
}

func (w *viewerWatch) Detach() {
	if w.inner != nil {
		w.inner.Detach()
	}
	sendChunkRemove(w.src.viewer.Session, w.chunk)
}
