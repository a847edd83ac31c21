package viewport

import "github.com/infinigrid/server/internal/grid"

// Pump evaluates src and applies the resulting frames through r until a pass
// reports nothing or maxPasses is reached. Settle signals are submitted ahead
// of each frame's transitions. It returns the number of non-empty passes and
// whether the viewport came to rest.
func Pump(src *Source, r *grid.Reactor, maxPasses int) (int, bool) {
	r.Drain()
	for pass := 0; pass < maxPasses; pass++ {
		f := src.Evaluate()
		if f.Empty() {
			return pass, true
		}
		for _, st := range f.Settled {
			r.EnqueueSettle(st.Coord, st.Gen)
		}
		for _, ev := range f.Events {
			r.Enqueue(ev)
		}
		r.Drain()
	}
	return maxPasses, false
}
