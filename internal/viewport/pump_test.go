package viewport

import (
	"testing"

	"github.com/infinigrid/server/internal/grid"
)

func TestPumpReachesRest(t *testing.T) {
	src, e := newPair(t)
	var created, settled int
	r := grid.NewReactor(e, 4, func(o grid.Outcome) {
		switch o.Kind {
		case grid.OutcomeCreated:
			created++
		case grid.OutcomeSettled:
			settled++
		}
	}, nil)

	passes, ok := Pump(src, r, 10)
	if !ok {
		t.Fatalf("pump did not settle")
	}
	if passes < 2 {
		t.Fatalf("passes=%d, want at least 2", passes)
	}
	if e.Len() != 5 || created != 4 || settled != 5 {
		t.Fatalf("live=%d created=%d settled=%d", e.Len(), created, settled)
	}

	if passes, ok := Pump(src, r, 10); !ok || passes != 0 {
		t.Fatalf("idle pump: passes=%d ok=%v", passes, ok)
	}
}

func TestPumpStopsAtLimit(t *testing.T) {
	src, e := newPair(t)
	r := grid.NewReactor(e, 64, nil, nil)
	if _, ok := Pump(src, r, 1); ok {
		t.Fatalf("one pass cannot bring a fresh viewport to rest")
	}
	for i := 0; i < 12; i++ {
		src.Pan(200, 0)
		if _, ok := Pump(src, r, 50); !ok {
			t.Fatalf("pump did not settle after pan %d", i)
		}
	}
	for _, c := range coveringCells(src.View()) {
		if !e.Has(c) {
			t.Fatalf("view cell %v not live", c)
		}
	}
}
