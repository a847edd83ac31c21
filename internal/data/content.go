package data

import (
	"fmt"
	"os"
	"strings"

	"github.com/infinigrid/server/internal/grid"
	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"
)

// ContentList is the ordered content catalog.
type ContentList struct {
	items []grid.Item
	byKey map[string]int
}

// LoadContentList loads content_list.yaml.
func LoadContentList(path string) (*ContentList, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read content list: %w", err)
	}
	return ParseContentList(raw)
}

// ParseContentList decodes a YAML sequence of items. Text fields are
// normalized to NFC; keys must be present and unique.
func ParseContentList(raw []byte) (*ContentList, error) {
	var entries []grid.Item
	if err := yaml.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("parse content list: %w", err)
	}
	return NewContentList(entries)
}

// NewContentList validates and normalizes items in order.
func NewContentList(items []grid.Item) (*ContentList, error) {
	l := &ContentList{
		items: make([]grid.Item, 0, len(items)),
		byKey: make(map[string]int, len(items)),
	}
	for i, it := range items {
		it.Key = norm.NFC.String(strings.TrimSpace(it.Key))
		it.Title = norm.NFC.String(it.Title)
		it.Color = strings.TrimSpace(it.Color)
		it.URL = strings.TrimSpace(it.URL)
		if it.Key == "" {
			return nil, fmt.Errorf("content item %d: missing key", i)
		}
		if prev, dup := l.byKey[it.Key]; dup {
			return nil, fmt.Errorf("content item %d: key %q already used by item %d", i, it.Key, prev)
		}
		if it.Width < 0 || it.Height < 0 {
			return nil, fmt.Errorf("content item %q: negative size %dx%d", it.Key, it.Width, it.Height)
		}
		l.byKey[it.Key] = len(l.items)
		l.items = append(l.items, it)
	}
	return l, nil
}

// Items returns the catalog in order.
func (l *ContentList) Items() []grid.Item {
	return l.items
}

// Get returns the item with the given key.
func (l *ContentList) Get(key string) (grid.Item, bool) {
	i, ok := l.byKey[norm.NFC.String(key)]
	if !ok {
		return grid.Item{}, false
	}
	return l.items[i], true
}

func (l *ContentList) Count() int {
	return len(l.items)
}
