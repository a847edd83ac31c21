package scripting

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/infinigrid/server/internal/grid"
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// Engine wraps a single gopher-lua VM for grid policy hooks.
// Single-goroutine access only.
type Engine struct {
	vm  *lua.LState
	log *zap.Logger
}

// NewEngine creates a Lua engine and loads all scripts from the given
// directory. Missing subdirectories are skipped.
func NewEngine(scriptsDir string, log *zap.Logger) (*Engine, error) {
	vm := lua.NewState(lua.Options{
		SkipOpenLibs: false,
	})

	vm.SetGlobal("API_VERSION", lua.LNumber(1))

	e := &Engine{vm: vm, log: log}

	for _, sub := range []string{"core", "grid"} {
		p := filepath.Join(scriptsDir, sub)
		if err := e.loadDir(p); err != nil {
			vm.Close()
			return nil, fmt.Errorf("load %s scripts: %w", sub, err)
		}
	}

	return e, nil
}

// loadDir loads all .lua files in a directory.
func (e *Engine) loadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".lua" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := e.vm.DoFile(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		e.log.Debug("loaded lua script", zap.String("file", path))
	}
	return nil
}

// DoString runs a chunk of Lua source. Used by tests and the console.
func (e *Engine) DoString(src string) error {
	return e.vm.DoString(src)
}

// MarginContext is passed to calc_margins.
type MarginContext struct {
	ChunkWidth  float64
	ChunkHeight float64
	ViewWidth   float64
	ViewHeight  float64
}

// CalcMargins calls the Lua calc_margins function. ok is false when the
// script is missing, fails, or returns margins without the dead band; the
// caller then keeps its configured margins.
func (e *Engine) CalcMargins(ctx MarginContext) (m grid.Margins, ok bool) {
	fn := e.vm.GetGlobal("calc_margins")
	if fn == lua.LNil {
		return grid.Margins{}, false
	}

	t := e.vm.NewTable()
	t.RawSetString("chunk_width", lua.LNumber(ctx.ChunkWidth))
	t.RawSetString("chunk_height", lua.LNumber(ctx.ChunkHeight))
	t.RawSetString("view_width", lua.LNumber(ctx.ViewWidth))
	t.RawSetString("view_height", lua.LNumber(ctx.ViewHeight))

	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, t); err != nil {
		e.log.Error("lua calc_margins error", zap.Error(err))
		return grid.Margins{}, false
	}

	result := e.vm.Get(-1)
	e.vm.Pop(1)

	rt, isTable := result.(*lua.LTable)
	if !isTable {
		e.log.Error("lua calc_margins returned non-table")
		return grid.Margins{}, false
	}

	m = grid.Margins{
		Edge: lFloat(rt, "edge"),
		Body: lFloat(rt, "body"),
	}
	if err := m.Validate(ctx.ChunkWidth, ctx.ChunkHeight); err != nil {
		e.log.Warn("lua calc_margins violates hysteresis, ignoring",
			zap.Float64("edge", m.Edge),
			zap.Float64("body", m.Body),
			zap.Error(err),
		)
		return grid.Margins{}, false
	}
	return m, true
}

// lFloat reads a number field from a Lua table.
func lFloat(t *lua.LTable, key string) float64 {
	return float64(lua.LVAsNumber(t.RawGetString(key)))
}

// Close shuts down the Lua VM.
func (e *Engine) Close() {
	e.vm.Close()
}
