package event

import (
	"testing"

	"github.com/infinigrid/server/internal/grid"
)

func TestBusDeliversNextTick(t *testing.T) {
	b := NewBus()
	var created []grid.Coord
	var resets int
	Subscribe(b, func(e ChunkCreated) { created = append(created, e.Chunk.Coord) })
	Subscribe(b, func(GridReset) { resets++ })

	Emit(b, ChunkCreated{SessionID: 1, Chunk: grid.Chunk{Coord: grid.Coord{X: 1}}})
	Emit(b, ChunkCreated{SessionID: 1, Chunk: grid.Chunk{Coord: grid.Coord{X: 2}}})
	Emit(b, GridReset{SessionID: 1})
	if Pending[ChunkCreated](b) != 2 {
		t.Fatalf("pending = %d", Pending[ChunkCreated](b))
	}

	if n := b.DispatchAll(); n != 0 || len(created) != 0 {
		t.Fatalf("events delivered before swap: n=%d", n)
	}
	b.SwapBuffers()
	if n := b.DispatchAll(); n != 3 {
		t.Fatalf("delivered %d, want 3", n)
	}
	if len(created) != 2 || created[0].X != 1 || created[1].X != 2 || resets != 1 {
		t.Fatalf("created=%v resets=%d", created, resets)
	}

	b.SwapBuffers()
	if n := b.DispatchAll(); n != 0 {
		t.Fatalf("events replayed: %d", n)
	}
}

func TestBusUnsubscribedTypeIsDropped(t *testing.T) {
	b := NewBus()
	Emit(b, ViewerLeft{SessionID: 9})
	b.SwapBuffers()
	if n := b.DispatchAll(); n != 1 {
		t.Fatalf("delivered %d, want 1 counted with no handler", n)
	}
}
