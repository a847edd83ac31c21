package grid

import "fmt"

// SizeClass is the visual size of one cell slot.
type SizeClass uint8

const (
	Small SizeClass = iota
	Large
)

func (s SizeClass) String() string {
	switch s {
	case Small:
		return "small"
	case Large:
		return "large"
	default:
		return fmt.Sprintf("SizeClass(%d)", uint8(s))
	}
}

// ParseSizeClass accepts "small" or "large".
func ParseSizeClass(s string) (SizeClass, error) {
	switch s {
	case "small":
		return Small, nil
	case "large":
		return Large, nil
	}
	return 0, fmt.Errorf("unknown size class %q", s)
}

// Slot is one cell of the layout template, in row-major order.
type Slot struct {
	Index int
	Row   int
	Col   int
	Size  SizeClass
}

// Layout is the ordered cell template shared by the mapper and renderers.
type Layout struct {
	slots []Slot
	rows  []int
}

// NewLayout builds a layout from rows of size classes.
func NewLayout(rows [][]SizeClass) (Layout, error) {
	if len(rows) == 0 {
		return Layout{}, fmt.Errorf("layout has no rows")
	}
	l := Layout{rows: make([]int, 0, len(rows))}
	for r, row := range rows {
		if len(row) == 0 {
			return Layout{}, fmt.Errorf("layout row %d is empty", r)
		}
		for c, size := range row {
			if size > Large {
				return Layout{}, fmt.Errorf("layout row %d col %d: invalid size class %d", r, c, size)
			}
			l.slots = append(l.slots, Slot{Index: len(l.slots), Row: r, Col: c, Size: size})
		}
		l.rows = append(l.rows, len(row))
	}
	return l, nil
}

var defaultRows = [][]SizeClass{
	{Small, Small, Large, Small, Large, Small},
	{Large, Small, Small},
	{Small, Small, Small, Small, Large},
	{Small, Large, Small, Large},
	{Small, Small, Small, Small},
}

// DefaultLayout returns the 22-slot template (rows of 6, 3, 5, 4, 4).
func DefaultLayout() Layout {
	l, err := NewLayout(defaultRows)
	if err != nil {
		panic(err)
	}
	return l
}

// Len returns the number of cells per chunk.
func (l Layout) Len() int { return len(l.slots) }

// Slots returns a copy of the slots in cell order.
func (l Layout) Slots() []Slot {
	out := make([]Slot, len(l.slots))
	copy(out, l.slots)
	return out
}

// Slot returns cell i.
func (l Layout) Slot(i int) (Slot, bool) {
	if i < 0 || i >= len(l.slots) {
		return Slot{}, false
	}
	return l.slots[i], true
}

// Rows returns the number of cells in each row.
func (l Layout) Rows() []int {
	out := make([]int, len(l.rows))
	copy(out, l.rows)
	return out
}

// Row returns the slots of row r.
func (l Layout) Row(r int) []Slot {
	var out []Slot
	for _, s := range l.slots {
		if s.Row == r {
			out = append(out, s)
		}
	}
	return out
}
