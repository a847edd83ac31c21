package grid

// Item is one entry of the content list. The engine treats it as opaque
// beyond its Key; the other fields are for renderers.
type Item struct {
	Key    string `yaml:"key" json:"key"`
	Title  string `yaml:"title" json:"title"`
	Color  string `yaml:"color" json:"color"`
	URL    string `yaml:"url" json:"url"`
	Width  int    `yaml:"width" json:"width"`
	Height int    `yaml:"height" json:"height"`
}

// Placeholder is rendered when the content list is empty.
var Placeholder = Item{Key: "placeholder", Title: "", Color: "#AAAAAA"}

// Mapper resolves chunk cells to content items by cyclic indexing. Reuse of
// items once indices exceed the list length is expected.
type Mapper struct {
	items []Item
	cells int
}

// NewMapper copies items; the list is never mutated afterwards.
func NewMapper(items []Item, cellsPerChunk int) *Mapper {
	cp := make([]Item, len(items))
	copy(cp, items)
	return &Mapper{items: cp, cells: cellsPerChunk}
}

func (m *Mapper) Len() int { return len(m.items) }

// IndexFor returns (startIndex + cell) mod L.
func (m *Mapper) IndexFor(ch Chunk, cell int) (int, error) {
	if cell < 0 || cell >= m.cells {
		return 0, ErrCellOutOfRange
	}
	if len(m.items) == 0 {
		return 0, ErrEmptyContent
	}
	i := (ch.StartIndex + cell) % len(m.items)
	if i < 0 {
		i += len(m.items)
	}
	return i, nil
}

// ContentFor returns the item shown in cell of ch.
func (m *Mapper) ContentFor(ch Chunk, cell int) (Item, error) {
	i, err := m.IndexFor(ch, cell)
	if err != nil {
		return Item{}, err
	}
	return m.items[i], nil
}

// Cells resolves every cell of ch, substituting Placeholder when the list
// is empty.
func (m *Mapper) Cells(ch Chunk) []Item {
	out := make([]Item, m.cells)
	for i := range out {
		it, err := m.ContentFor(ch, i)
		if err != nil {
			it = Placeholder
		}
		out[i] = it
	}
	return out
}
