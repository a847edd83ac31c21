package viewport

import "github.com/infinigrid/server/internal/grid"

// expand grows r outward by the given insets.
func expand(r grid.Rect, in grid.Insets) grid.Rect {
	return grid.Rect{
		X: r.X - in.Left,
		Y: r.Y - in.Top,
		W: r.W + in.Left + in.Right,
		H: r.H + in.Top + in.Bottom,
	}
}

// overlap is the open-interval overlap test: touching spans do not count.
func overlap(a0, a1, b0, b1 float64) bool {
	return a0 < b1 && b0 < a1
}

func inside(v, lo, hi float64) bool {
	return lo < v && v < hi
}

// intersects tests one watch request of a chunk against the view. Edges are
// zero-thickness segments on the chunk boundary, tested against the view
// expanded by the request's root insets. The body is the chunk rectangle.
func intersects(chunk grid.Rect, req grid.WatchRequest, view grid.Rect) bool {
	root := expand(view, req.Root)
	switch req.Edge {
	case grid.EdgeTop:
		return inside(chunk.Y, root.Y, root.Bottom()) && overlap(chunk.X, chunk.Right(), root.X, root.Right())
	case grid.EdgeBottom:
		return inside(chunk.Bottom(), root.Y, root.Bottom()) && overlap(chunk.X, chunk.Right(), root.X, root.Right())
	case grid.EdgeLeft:
		return inside(chunk.X, root.X, root.Right()) && overlap(chunk.Y, chunk.Bottom(), root.Y, root.Bottom())
	case grid.EdgeRight:
		return inside(chunk.Right(), root.X, root.Right()) && overlap(chunk.Y, chunk.Bottom(), root.Y, root.Bottom())
	case grid.EdgeBody:
		return overlap(chunk.X, chunk.Right(), root.X, root.Right()) && overlap(chunk.Y, chunk.Bottom(), root.Y, root.Bottom())
	}
	return false
}
