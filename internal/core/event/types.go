package event

import "github.com/infinigrid/server/internal/grid"

// Lifecycle events emitted by handlers and systems. Consumers see them one
// tick later, after SwapBuffers.

type ViewerJoined struct {
	SessionID uint64
	Name      string
}

type ViewerLeft struct {
	SessionID uint64
}

type ChunkCreated struct {
	SessionID uint64
	Chunk     grid.Chunk
}

type ChunkEvicted struct {
	SessionID uint64
	Chunk     grid.Chunk
}

type ChunkSettled struct {
	SessionID uint64
	Coord     grid.Coord
	Gen       uint64
}

// GridReset fires when a viewer's registry emptied and was re-seeded.
type GridReset struct {
	SessionID uint64
	Origin    grid.Chunk
}

// InvariantViolated fires when an audit found and repaired a broken registry.
type InvariantViolated struct {
	SessionID uint64
	Reason    string
}
