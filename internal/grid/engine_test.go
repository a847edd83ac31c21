package grid

import (
	"errors"
	"sync"
	"testing"
)

func edgeEvent(c Coord, e Edge, on bool) Event {
	return Event{Coord: c, Edge: e, Intersecting: on}
}

func TestEngineSeedsOrigin(t *testing.T) {
	src := newRecordingSource()
	e := mustEngine(t, src)

	origin, ok := e.Chunk(Origin)
	if !ok || origin.StartIndex != 0 || origin.Settled {
		t.Fatalf("origin = %+v, %v; want pending chunk at index 0", origin, ok)
	}
	if e.NextIndex() != 22 {
		t.Fatalf("NextIndex = %d, want 22", e.NextIndex())
	}
	if len(src.observed) != 1 {
		t.Fatalf("origin should be observed once, got %d", len(src.observed))
	}
	if r := src.rects[Origin]; r.W != 1000 || r.H != 900 || r.X != 0 || r.Y != 0 {
		t.Fatalf("origin rect = %+v", r)
	}
}

func TestEngineScenarios(t *testing.T) {
	src := newRecordingSource()
	e := mustEngine(t, src)

	// A: right edge of the origin reveals (1,0).
	out, err := e.HandleEvent(edgeEvent(Origin, EdgeRight, true))
	if err != nil || out.Kind != OutcomeCreated {
		t.Fatalf("scenario A: %+v, %v", out, err)
	}
	right := Coord{X: 1, Y: 0}
	if ch, _ := e.Chunk(right); ch.StartIndex != 22 {
		t.Fatalf("scenario A: start = %d, want 22", ch.StartIndex)
	}
	if e.NextIndex() != 44 {
		t.Fatalf("scenario A: next = %d, want 44", e.NextIndex())
	}

	// B: top edge of the origin reveals (0,-1).
	out, _ = e.HandleEvent(edgeEvent(Origin, EdgeTop, true))
	top := Coord{X: 0, Y: -1}
	if out.Kind != OutcomeCreated || out.Coord != top {
		t.Fatalf("scenario B: %+v", out)
	}
	if ch, _ := e.Chunk(top); ch.StartIndex != 44 {
		t.Fatalf("scenario B: start = %d, want 44", ch.StartIndex)
	}
	if e.NextIndex() != 66 {
		t.Fatalf("scenario B: next = %d, want 66", e.NextIndex())
	}

	// C: settle (1,0) and let its body leave the view.
	if !e.Settle(right, 0) {
		t.Fatalf("scenario C: settle failed")
	}
	out, _ = e.HandleEvent(edgeEvent(right, EdgeBody, false))
	if out.Kind != OutcomeEvicted || out.Reset {
		t.Fatalf("scenario C: %+v", out)
	}
	if e.Has(right) || e.Len() != 2 || e.NextIndex() != 66 {
		t.Fatalf("scenario C: has=%v len=%d next=%d", e.Has(right), e.Len(), e.NextIndex())
	}

	// D: evict the rest; the last eviction resets to the origin.
	for _, c := range []Coord{top, Origin} {
		e.Settle(c, 0)
	}
	if out, _ = e.HandleEvent(edgeEvent(top, EdgeBody, false)); out.Kind != OutcomeEvicted {
		t.Fatalf("scenario D: evict top: %+v", out)
	}
	out, _ = e.HandleEvent(edgeEvent(Origin, EdgeBody, false))
	if out.Kind != OutcomeEvicted || !out.Reset {
		t.Fatalf("scenario D: expected reset, got %+v", out)
	}
	snap := e.Snapshot()
	if len(snap) != 1 || snap[0].Coord != Origin || snap[0].StartIndex != 0 || snap[0].Settled {
		t.Fatalf("scenario D: registry after reset = %+v", snap)
	}
	if out.Origin.Coord != Origin || out.Origin.StartIndex != 0 {
		t.Fatalf("scenario D: outcome origin = %+v", out.Origin)
	}
	if e.NextIndex() != 22 {
		t.Fatalf("scenario D: next after reseed = %d, want 22", e.NextIndex())
	}
	if src.recenters != 1 || e.Resets() != 1 {
		t.Fatalf("scenario D: recenters=%d resets=%d", src.recenters, e.Resets())
	}
}

func TestEngineDuplicateCreate(t *testing.T) {
	e := mustEngine(t, nil)
	c := Coord{X: 2, Y: 0}
	before := e.NextIndex()

	first := e.Create(c)
	second := e.Create(c)
	if first.Kind != OutcomeCreated || second.Kind != OutcomeDuplicate {
		t.Fatalf("outcomes = %s, %s", first.Kind, second.Kind)
	}
	if got := e.NextIndex() - before; got != 22 {
		t.Fatalf("allocator advanced by %d, want one stride", got)
	}
}

func TestEngineConcurrentDuplicateCreate(t *testing.T) {
	e := mustEngine(t, nil)
	target := Coord{X: 2, Y: 0}
	// Every worker reports the same right edge of (1,0).
	e.Create(Coord{X: 1, Y: 0})
	before := e.NextIndex()

	const workers = 16
	var wg sync.WaitGroup
	var mu sync.Mutex
	created := 0
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := e.HandleEvent(edgeEvent(Coord{X: 1, Y: 0}, EdgeRight, true))
			if err != nil {
				t.Errorf("HandleEvent: %v", err)
				return
			}
			if out.Kind == OutcomeCreated {
				mu.Lock()
				created++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if created != 1 {
		t.Fatalf("created %d chunks, want exactly 1", created)
	}
	if !e.Has(target) || e.NextIndex()-before != 22 {
		t.Fatalf("has=%v advanced=%d", e.Has(target), e.NextIndex()-before)
	}
}

func TestEnginePrematureEvictionIgnored(t *testing.T) {
	e := mustEngine(t, nil)
	e.Create(Coord{X: 1, Y: 0})

	out, _ := e.HandleEvent(edgeEvent(Coord{X: 1, Y: 0}, EdgeBody, false))
	if out.Kind != OutcomePremature {
		t.Fatalf("outcome = %s, want premature", out.Kind)
	}
	if !e.Has(Coord{X: 1, Y: 0}) {
		t.Fatalf("unsettled chunk was removed")
	}
}

func TestEngineIgnoresNonTransitions(t *testing.T) {
	e := mustEngine(t, nil)
	for _, ev := range []Event{
		edgeEvent(Origin, EdgeTop, false),
		edgeEvent(Origin, EdgeBody, true),
	} {
		out, err := e.HandleEvent(ev)
		if err != nil || out.Kind != OutcomeIgnored {
			t.Fatalf("%+v: %+v, %v", ev, out, err)
		}
	}
	if e.Len() != 1 || e.NextIndex() != 22 {
		t.Fatalf("state changed: len=%d next=%d", e.Len(), e.NextIndex())
	}
}

func TestEngineRejectsUnknownEdge(t *testing.T) {
	e := mustEngine(t, nil)
	_, err := e.HandleEvent(Event{Coord: Origin, Edge: Edge(9), Intersecting: true})
	if !errors.Is(err, ErrUnknownEdge) {
		t.Fatalf("err = %v, want ErrUnknownEdge", err)
	}
}

func TestEngineStaleAndAbsentEvents(t *testing.T) {
	src := newRecordingSource()
	e := mustEngine(t, src)
	c := Coord{X: 1, Y: 0}
	first := e.Create(c).Chunk
	e.Settle(c, first.Gen)
	e.Evict(c)

	out, _ := e.HandleEvent(Event{Coord: c, Gen: first.Gen, Edge: EdgeRight, Intersecting: true})
	if out.Kind != OutcomeAbsent {
		t.Fatalf("event for evicted chunk: %s, want absent", out.Kind)
	}

	second := e.Create(c).Chunk
	if second.Gen == first.Gen {
		t.Fatalf("recreated chunk reused generation %d", second.Gen)
	}
	out, _ = e.HandleEvent(Event{Coord: c, Gen: first.Gen, Edge: EdgeRight, Intersecting: true})
	if out.Kind != OutcomeStale {
		t.Fatalf("old-generation event: %s, want stale", out.Kind)
	}
	if e.Settle(c, first.Gen) {
		t.Fatalf("stale settle flipped the new chunk")
	}
	if src.detachCount(first.Gen) != 1 {
		t.Fatalf("evicted watch detached %d times, want 1", src.detachCount(first.Gen))
	}
}

func TestEngineIndexNotReused(t *testing.T) {
	e := mustEngine(t, nil)
	c := Coord{X: 0, Y: 1}
	first := e.Create(c).Chunk
	e.Settle(c, 0)
	e.Evict(c)
	second := e.Create(c).Chunk
	if second.StartIndex <= first.StartIndex {
		t.Fatalf("index reused: first=%d second=%d", first.StartIndex, second.StartIndex)
	}
}

func TestEngineCloseDetachesAll(t *testing.T) {
	src := newRecordingSource()
	e := mustEngine(t, src)
	e.Create(Coord{X: 1, Y: 0})
	e.Create(Coord{X: -1, Y: 0})
	e.Close()
	e.Close()

	for _, ch := range src.observed {
		if n := src.detachCount(ch.Gen); n != 1 {
			t.Fatalf("gen %d detached %d times", ch.Gen, n)
		}
	}
	out, _ := e.HandleEvent(edgeEvent(Origin, EdgeTop, true))
	if out.Kind != OutcomeClosed {
		t.Fatalf("outcome after close = %s", out.Kind)
	}
}

func TestEngineAuditSelfHeals(t *testing.T) {
	src := newRecordingSource()
	e := mustEngine(t, src)
	e.Create(Coord{X: 1, Y: 0})
	if err := e.Audit(); err != nil {
		t.Fatalf("healthy engine failed audit: %v", err)
	}

	// Corrupt the allocator so the next chunk collides with the origin.
	e.alloc.Reset()
	e.Create(Coord{X: 0, Y: 1})

	err := e.Audit()
	if !errors.Is(err, ErrInvariantViolation) {
		t.Fatalf("Audit = %v, want invariant violation", err)
	}
	snap := e.Snapshot()
	if len(snap) != 1 || snap[0].Coord != Origin || snap[0].StartIndex != 0 {
		t.Fatalf("after self-heal registry = %+v", snap)
	}
	if src.recenters != 1 {
		t.Fatalf("recenters = %d, want 1", src.recenters)
	}
	if err := e.Audit(); err != nil {
		t.Fatalf("audit after heal: %v", err)
	}
}

func TestEngineAuditStrictPanics(t *testing.T) {
	opts := testOptions()
	opts.Strict = true
	e, err := NewEngine(opts, nil, nil)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	e.alloc.Reset()
	e.Create(Coord{X: 0, Y: 1})

	defer func() {
		if recover() == nil {
			t.Fatalf("strict audit did not panic")
		}
	}()
	_ = e.Audit()
}

func TestEngineOptionsValidation(t *testing.T) {
	cases := []struct {
		name string
		mod  func(*Options)
	}{
		{"zero width", func(o *Options) { o.ChunkWidth = 0 }},
		{"negative height", func(o *Options) { o.ChunkHeight = -1 }},
		{"no items", func(o *Options) { o.ItemsPerChunk = 0 }},
		{"negative margin", func(o *Options) { o.Margins.Edge = -5 }},
		{"no hysteresis", func(o *Options) { o.Margins = Margins{Edge: 800, Body: 400} }},
		{"equal margins", func(o *Options) { o.Margins = Margins{Edge: 800, Body: 800} }},
		{"narrow dead band", func(o *Options) { o.Margins = Margins{Edge: 800, Body: 1000} }},
	}
	for _, tc := range cases {
		opts := testOptions()
		tc.mod(&opts)
		if _, err := NewEngine(opts, nil, nil); err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
	}
}

// TestEngineRandomWalkInvariants drives a random event sequence and checks
// the disjointness and settle-gate properties after every step.
func TestEngineRandomWalkInvariants(t *testing.T) {
	e := mustEngine(t, nil)
	seed := uint32(7)
	next := func(n int) int {
		seed = seed*1664525 + 1013904223
		return int(seed>>8) % n
	}

	for step := 0; step < 5000; step++ {
		snap := e.Snapshot()
		target := snap[next(len(snap))]
		switch next(3) {
		case 0:
			e.Settle(target.Coord, target.Gen)
		case 1:
			edge := Edges[next(4)]
			e.HandleEvent(Event{Coord: target.Coord, Gen: target.Gen, Edge: edge, Intersecting: true})
		default:
			out, _ := e.HandleEvent(Event{Coord: target.Coord, Gen: target.Gen, Edge: EdgeBody})
			if out.Kind == OutcomeEvicted && !out.Chunk.Settled {
				t.Fatalf("step %d: evicted unsettled chunk %+v", step, out.Chunk)
			}
		}
		if err := e.Audit(); err != nil {
			t.Fatalf("step %d: %v", step, err)
		}
	}
}
