package data

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"

	"github.com/infinigrid/server/internal/grid"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

//go:embed layout.schema.json
var layoutSchemaJSON []byte

const layoutSchemaURL = "layout.schema.json"

var layoutSchema = mustCompileLayoutSchema()

func mustCompileLayoutSchema() *jsonschema.Schema {
	c := jsonschema.NewCompiler()
	if err := c.AddResource(layoutSchemaURL, bytes.NewReader(layoutSchemaJSON)); err != nil {
		panic(fmt.Sprintf("add layout schema: %v", err))
	}
	s, err := c.Compile(layoutSchemaURL)
	if err != nil {
		panic(fmt.Sprintf("compile layout schema: %v", err))
	}
	return s
}

type layoutFile struct {
	Rows [][]string `yaml:"rows"`
}

// LoadLayout loads a layout template YAML file. An empty path returns the
// default 22-slot layout.
func LoadLayout(path string) (grid.Layout, error) {
	if path == "" {
		return grid.DefaultLayout(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return grid.Layout{}, fmt.Errorf("read layout: %w", err)
	}
	return ParseLayout(raw)
}

// ParseLayout validates raw against the layout schema and builds the layout.
func ParseLayout(raw []byte) (grid.Layout, error) {
	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return grid.Layout{}, fmt.Errorf("parse layout: %w", err)
	}
	// The validator expects JSON-shaped values.
	js, err := json.Marshal(doc)
	if err != nil {
		return grid.Layout{}, fmt.Errorf("convert layout: %w", err)
	}
	var inst any
	if err := json.Unmarshal(js, &inst); err != nil {
		return grid.Layout{}, fmt.Errorf("convert layout: %w", err)
	}
	if err := layoutSchema.Validate(inst); err != nil {
		return grid.Layout{}, fmt.Errorf("invalid layout: %w", err)
	}

	var f layoutFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return grid.Layout{}, fmt.Errorf("parse layout: %w", err)
	}
	rows := make([][]grid.SizeClass, len(f.Rows))
	for r, row := range f.Rows {
		rows[r] = make([]grid.SizeClass, len(row))
		for c, name := range row {
			sc, err := grid.ParseSizeClass(name)
			if err != nil {
				return grid.Layout{}, fmt.Errorf("layout row %d col %d: %w", r, c, err)
			}
			rows[r][c] = sc
		}
	}
	return grid.NewLayout(rows)
}
