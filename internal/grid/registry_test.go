package grid

import "testing"

func TestRegistryPutIsInsertIfAbsent(t *testing.T) {
	r := NewRegistry()
	c := Coord{X: 2, Y: 0}
	if !r.Put(Chunk{Coord: c, StartIndex: 22}) {
		t.Fatalf("first put should insert")
	}
	if r.Put(Chunk{Coord: c, StartIndex: 44}) {
		t.Fatalf("second put for the same coordinate should be a no-op")
	}
	got, ok := r.Get(c)
	if !ok || got.StartIndex != 22 {
		t.Fatalf("Get = %+v, %v; want start 22", got, ok)
	}
	if r.Size() != 1 {
		t.Fatalf("Size = %d, want 1", r.Size())
	}
}

func TestRegistryRemoveAbsentIsNoop(t *testing.T) {
	r := NewRegistry()
	if _, _, ok := r.Remove(Coord{X: 9, Y: 9}); ok {
		t.Fatalf("remove of absent coordinate reported success")
	}
}

func TestRegistryEntriesOrderedByStart(t *testing.T) {
	r := NewRegistry()
	r.Put(Chunk{Coord: Coord{X: 0, Y: -1}, StartIndex: 44})
	r.Put(Chunk{Coord: Coord{X: 0, Y: 0}, StartIndex: 0})
	r.Put(Chunk{Coord: Coord{X: 1, Y: 0}, StartIndex: 22})

	entries := r.Entries()
	want := []int{0, 22, 44}
	for i, ch := range entries {
		if ch.StartIndex != want[i] {
			t.Fatalf("entry %d start = %d, want %d", i, ch.StartIndex, want[i])
		}
	}
}

func TestRegistryMarkSettledOnce(t *testing.T) {
	r := NewRegistry()
	r.Put(Chunk{Coord: Origin})
	if !r.markSettled(Origin) {
		t.Fatalf("first settle should flip")
	}
	if r.markSettled(Origin) {
		t.Fatalf("second settle should not flip")
	}
}

func TestCoordRoundTrip(t *testing.T) {
	for _, c := range []Coord{{0, 0}, {-3, 7}, {12, -1}} {
		got, err := ParseCoord(c.String())
		if err != nil || got != c {
			t.Fatalf("ParseCoord(%q) = %v, %v", c.String(), got, err)
		}
	}
	if _, err := ParseCoord("1;2"); err == nil {
		t.Fatalf("expected error for malformed coord")
	}
}

func TestEdgeNeighbor(t *testing.T) {
	c := Coord{X: 3, Y: 4}
	cases := []struct {
		edge Edge
		want Coord
	}{
		{EdgeTop, Coord{X: 3, Y: 3}},
		{EdgeRight, Coord{X: 4, Y: 4}},
		{EdgeBottom, Coord{X: 3, Y: 5}},
		{EdgeLeft, Coord{X: 2, Y: 4}},
	}
	for _, tc := range cases {
		got, ok := tc.edge.Neighbor(c)
		if !ok || got != tc.want {
			t.Fatalf("%s neighbor = %v, %v; want %v", tc.edge, got, ok, tc.want)
		}
	}
	if _, ok := EdgeBody.Neighbor(c); ok {
		t.Fatalf("body should have no neighbor")
	}
	if e, err := ParseEdge("left"); err != nil || e != EdgeLeft {
		t.Fatalf("ParseEdge(left) = %v, %v", e, err)
	}
	if _, err := ParseEdge("diagonal"); err == nil {
		t.Fatalf("expected error for unknown edge")
	}
}
