package world

import "testing"

func TestStateLifecycle(t *testing.T) {
	s := NewState()
	a := &Viewer{SessionID: 2, Name: "a"}
	b := &Viewer{SessionID: 1, Name: "b"}
	if !s.AddViewer(a) || !s.AddViewer(b) {
		t.Fatalf("AddViewer failed")
	}
	if s.AddViewer(&Viewer{SessionID: 2}) {
		t.Fatalf("duplicate session accepted")
	}

	var order []uint64
	s.ForEachViewer(func(v *Viewer) { order = append(order, v.SessionID) })
	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Fatalf("visit order = %v", order)
	}

	if got := s.RemoveViewer(2); got != a {
		t.Fatalf("RemoveViewer returned %+v", got)
	}
	if s.RemoveViewer(2) != nil {
		t.Fatalf("second remove returned a viewer")
	}
	if s.GetBySession(2) != nil || s.ViewerCount() != 1 {
		t.Fatalf("viewer still present")
	}
	dep := s.TakeDepartures()
	if len(dep) != 1 || dep[0] != a || len(s.TakeDepartures()) != 0 {
		t.Fatalf("departures = %v", dep)
	}
	if s.LiveChunks() != 0 {
		t.Fatalf("LiveChunks without engines = %d", s.LiveChunks())
	}
}
