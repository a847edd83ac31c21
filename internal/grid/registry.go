package grid

import "sort"

// Chunk is one live tile of the grid.
type Chunk struct {
	Coord      Coord
	StartIndex int    // first content index owned by the chunk; immutable
	Settled    bool   // placement complete; gates eviction
	Gen        uint64 // distinguishes successive chunks created at one coordinate
}

type record struct {
	chunk Chunk
	watch Watch
}

// Registry is the authoritative map of live chunks. It holds no lock of its
// own: the Engine serialises every access under its mutex.
type Registry struct {
	chunks map[Coord]*record
}

func NewRegistry() *Registry {
	return &Registry{
		chunks: make(map[Coord]*record, 16),
	}
}

func (r *Registry) Has(c Coord) bool {
	_, ok := r.chunks[c]
	return ok
}

func (r *Registry) Get(c Coord) (Chunk, bool) {
	rec, ok := r.chunks[c]
	if !ok {
		return Chunk{}, false
	}
	return rec.chunk, true
}

// Put inserts ch unless its coordinate is already present. It reports whether
// the chunk was inserted.
func (r *Registry) Put(ch Chunk) bool {
	if _, ok := r.chunks[ch.Coord]; ok {
		return false
	}
	r.chunks[ch.Coord] = &record{chunk: ch}
	return true
}

// Remove deletes the chunk at c and returns it along with the watch that was
// attached to it. No-op if absent.
func (r *Registry) Remove(c Coord) (Chunk, Watch, bool) {
	rec, ok := r.chunks[c]
	if !ok {
		return Chunk{}, nil, false
	}
	delete(r.chunks, c)
	return rec.chunk, rec.watch, true
}

func (r *Registry) Size() int {
	return len(r.chunks)
}

// Entries returns the live chunks ordered by start index, which is creation
// order within one reset epoch.
func (r *Registry) Entries() []Chunk {
	out := make([]Chunk, 0, len(r.chunks))
	for _, rec := range r.chunks {
		out = append(out, rec.chunk)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartIndex != out[j].StartIndex {
			return out[i].StartIndex < out[j].StartIndex
		}
		return out[i].Gen < out[j].Gen
	})
	return out
}

// attach binds the observation handle owned by the chunk at c.
func (r *Registry) attach(c Coord, w Watch) {
	if rec, ok := r.chunks[c]; ok {
		rec.watch = w
	}
}

// markSettled flips the settled flag; it never resets it.
func (r *Registry) markSettled(c Coord) bool {
	rec, ok := r.chunks[c]
	if !ok || rec.chunk.Settled {
		return false
	}
	rec.chunk.Settled = true
	return true
}

// drain removes every chunk and returns the watches that were attached.
func (r *Registry) drain() []Watch {
	watches := make([]Watch, 0, len(r.chunks))
	for c, rec := range r.chunks {
		if rec.watch != nil {
			watches = append(watches, rec.watch)
		}
		delete(r.chunks, c)
	}
	return watches
}
