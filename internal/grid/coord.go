package grid

import (
	"fmt"
	"strconv"
	"strings"
)

// Coord identifies a chunk on the unbounded grid. It is comparable and used
// directly as the registry key, so equal coordinates never alias.
type Coord struct {
	X int32
	Y int32
}

// Origin is the chunk the grid is seeded with and reset to.
var Origin = Coord{}

func (c Coord) Add(o Coord) Coord {
	return Coord{X: c.X + o.X, Y: c.Y + o.Y}
}

// String renders the coordinate as "x,y", the key format renderers use.
func (c Coord) String() string {
	return strconv.FormatInt(int64(c.X), 10) + "," + strconv.FormatInt(int64(c.Y), 10)
}

// ParseCoord parses the "x,y" form produced by String.
func ParseCoord(s string) (Coord, error) {
	xs, ys, ok := strings.Cut(s, ",")
	if !ok {
		return Coord{}, fmt.Errorf("parse coord %q: missing comma", s)
	}
	x, err := strconv.ParseInt(strings.TrimSpace(xs), 10, 32)
	if err != nil {
		return Coord{}, fmt.Errorf("parse coord %q: %w", s, err)
	}
	y, err := strconv.ParseInt(strings.TrimSpace(ys), 10, 32)
	if err != nil {
		return Coord{}, fmt.Errorf("parse coord %q: %w", s, err)
	}
	return Coord{X: int32(x), Y: int32(y)}, nil
}

// Rect is an axis-aligned rectangle in logical (pixel) units.
type Rect struct {
	X float64
	Y float64
	W float64
	H float64
}

func (r Rect) Right() float64  { return r.X + r.W }
func (r Rect) Bottom() float64 { return r.Y + r.H }

// ChunkRect returns the logical rectangle covered by the chunk at c.
func ChunkRect(c Coord, width, height float64) Rect {
	return Rect{
		X: float64(c.X) * width,
		Y: float64(c.Y) * height,
		W: width,
		H: height,
	}
}
