// Command gridview runs a grid engine locally and draws it in the terminal.
// It reads the same config as the server and pans with the keyboard.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/infinigrid/server/internal/config"
	"github.com/infinigrid/server/internal/data"
	"github.com/infinigrid/server/internal/grid"
	"github.com/infinigrid/server/internal/scripting"
	"github.com/infinigrid/server/internal/tui"
	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "gridview: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to server.toml")
	viewW := flag.Float64("view-width", 1280, "viewport width in world units")
	viewH := flag.Float64("view-height", 720, "viewport height in world units")
	step := flag.Float64("step", 0, "pan step in world units (default: a quarter of the view width)")
	logPath := flag.String("log", "", "write debug logs to this file")
	flag.Parse()

	cfg, err := config.Load(config.Resolve(*configPath))
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// The terminal is busy drawing; logs go to a file or nowhere.
	log := zap.NewNop()
	if *logPath != "" {
		zc := zap.NewDevelopmentConfig()
		zc.OutputPaths = []string{*logPath}
		zc.ErrorOutputPaths = []string{*logPath}
		if log, err = zc.Build(); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		defer log.Sync()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	content, err := data.LoadConfiguredContent(ctx, cfg, log)
	cancel()
	if err != nil {
		return fmt.Errorf("content: %w", err)
	}

	margins := grid.Margins{Edge: cfg.Grid.EdgeMargin, Body: cfg.Grid.BodyMargin}
	if lua, err := scripting.NewEngine(cfg.Scripting.Dir, log); err == nil {
		if m, ok := lua.CalcMargins(scripting.MarginContext{
			ChunkWidth:  cfg.Grid.ChunkWidth,
			ChunkHeight: cfg.Grid.ChunkHeight,
			ViewWidth:   *viewW,
			ViewHeight:  *viewH,
		}); ok {
			margins = m
		}
		lua.Close()
	} else {
		log.Warn("margin script unavailable", zap.Error(err))
	}

	screen, err := tcell.NewScreen()
	if err != nil {
		return fmt.Errorf("open terminal: %w", err)
	}
	if err := screen.Init(); err != nil {
		return fmt.Errorf("init terminal: %w", err)
	}
	defer screen.Fini()

	app, err := tui.New(screen, tui.Options{
		Grid: grid.Options{
			ChunkWidth:    cfg.Grid.ChunkWidth,
			ChunkHeight:   cfg.Grid.ChunkHeight,
			ItemsPerChunk: cfg.Grid.ItemsPerChunk,
			Margins:       margins,
			Strict:        cfg.Grid.StrictInvariants,
		},
		ViewWidth:  *viewW,
		ViewHeight: *viewH,
		PanStep:    *step,
	}, grid.NewMapper(content.Items(), cfg.Grid.ItemsPerChunk), log)
	if err != nil {
		return err
	}
	app.Run()
	return nil
}
