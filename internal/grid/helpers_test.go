package grid

import "sync"

// recordingSource tracks observe/detach/recenter calls.
type recordingSource struct {
	mu        sync.Mutex
	observed  []Chunk
	rects     map[Coord]Rect
	detached  map[uint64]int
	recenters int
}

func newRecordingSource() *recordingSource {
	return &recordingSource{
		rects:    make(map[Coord]Rect),
		detached: make(map[uint64]int),
	}
}

func (s *recordingSource) Observe(ch Chunk, rect Rect, _ [5]WatchRequest) Watch {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observed = append(s.observed, ch)
	s.rects[ch.Coord] = rect
	return &recordingWatch{src: s, gen: ch.Gen}
}

func (s *recordingSource) Recenter() {
	s.mu.Lock()
	s.recenters++
	s.mu.Unlock()
}

func (s *recordingSource) detachCount(gen uint64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.detached[gen]
}

type recordingWatch struct {
	src *recordingSource
	gen uint64
}

func (w *recordingWatch) Detach() {
	w.src.mu.Lock()
	w.src.detached[w.gen]++
	w.src.mu.Unlock()
}

func testOptions() Options {
	return Options{
		ChunkWidth:    1000,
		ChunkHeight:   900,
		ItemsPerChunk: DefaultItemsPerChunk,
		Margins:       Margins{Edge: 500, Body: 1000},
	}
}

func mustEngine(t interface{ Fatalf(string, ...any) }, src Source) *Engine {
	e, err := NewEngine(testOptions(), src, nil)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return e
}
