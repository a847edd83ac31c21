package grid

import "fmt"

// Edge names one of the five watched regions of a chunk.
type Edge uint8

const (
	EdgeTop Edge = iota
	EdgeRight
	EdgeBottom
	EdgeLeft
	EdgeBody
)

// Edges lists the four neighbour-creating edges in watch order.
var Edges = [4]Edge{EdgeTop, EdgeRight, EdgeBottom, EdgeLeft}

// edgeOffsets maps an edge to the coordinate offset of the neighbour it reveals.
var edgeOffsets = [4]Coord{
	EdgeTop:    {X: 0, Y: -1},
	EdgeRight:  {X: 1, Y: 0},
	EdgeBottom: {X: 0, Y: 1},
	EdgeLeft:   {X: -1, Y: 0},
}

var edgeNames = [5]string{
	EdgeTop:    "top",
	EdgeRight:  "right",
	EdgeBottom: "bottom",
	EdgeLeft:   "left",
	EdgeBody:   "body",
}

func (e Edge) Valid() bool { return e <= EdgeBody }

// Neighbor returns the coordinate revealed by edge e of the chunk at c.
// The body has no neighbour.
func (e Edge) Neighbor(c Coord) (Coord, bool) {
	if e >= EdgeBody {
		return Coord{}, false
	}
	return c.Add(edgeOffsets[e]), true
}

func (e Edge) String() string {
	if !e.Valid() {
		return fmt.Sprintf("Edge(%d)", uint8(e))
	}
	return edgeNames[e]
}

// ParseEdge maps a lower-case edge name back to its Edge.
func ParseEdge(s string) (Edge, error) {
	for i, name := range edgeNames {
		if name == s {
			return Edge(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownEdge, s)
}
