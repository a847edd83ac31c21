// Package tui renders one grid engine in a terminal: live chunks as boxes,
// the viewport as a highlighted frame, and keys to pan around.
package tui

import (
	"fmt"
	"math"

	"github.com/gdamore/tcell/v2"
	"github.com/infinigrid/server/internal/grid"
	"github.com/infinigrid/server/internal/viewport"
	"go.uber.org/zap"
)

const (
	chunkCols = 24 // terminal columns per chunk
	chunkRows = 8  // terminal rows per chunk
	maxPasses = 16
)

var (
	styleChunk   = tcell.StyleDefault.Foreground(tcell.ColorSilver)
	stylePending = tcell.StyleDefault.Foreground(tcell.ColorYellow)
	styleView    = tcell.StyleDefault.Foreground(tcell.ColorAqua).Bold(true)
	styleStatus  = tcell.StyleDefault.Foreground(tcell.ColorBlack).Background(tcell.ColorSilver)
	styleHelp    = tcell.StyleDefault.Foreground(tcell.ColorGray)
)

// Options configure an App.
type Options struct {
	Grid       grid.Options
	ViewWidth  float64
	ViewHeight float64
	PanStep    float64 // world units per arrow key press; 0 = quarter view width
}

// App owns a local engine driven by a viewport that the keyboard moves.
type App struct {
	screen  tcell.Screen
	engine  *grid.Engine
	reactor *grid.Reactor
	view    *viewport.Source
	mapper  *grid.Mapper
	opts    Options
	log     *zap.Logger

	created int
	evicted int
	lastMsg string
}

// New builds the engine and brings the initial viewport to rest.
func New(screen tcell.Screen, opts Options, mapper *grid.Mapper, log *zap.Logger) (*App, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.PanStep <= 0 {
		opts.PanStep = opts.ViewWidth / 4
	}
	a := &App{
		screen: screen,
		view:   viewport.New(opts.ViewWidth, opts.ViewHeight),
		mapper: mapper,
		opts:   opts,
		log:    log,
	}
	engine, err := grid.NewEngine(opts.Grid, a.view, log)
	if err != nil {
		return nil, err
	}
	a.engine = engine
	a.reactor = grid.NewReactor(engine, 0, a.onOutcome, log)
	a.Step()
	return a, nil
}

func (a *App) onOutcome(o grid.Outcome) {
	switch o.Kind {
	case grid.OutcomeCreated:
		a.created++
	case grid.OutcomeEvicted:
		a.evicted++
		if o.Reset {
			a.lastMsg = fmt.Sprintf("reset: origin start %d", o.Origin.StartIndex)
		}
	}
}

// Step applies viewport changes until the grid is at rest.
func (a *App) Step() int {
	passes, ok := viewport.Pump(a.view, a.reactor, maxPasses)
	if !ok {
		a.log.Warn("viewport did not come to rest", zap.Int("passes", passes))
	}
	return passes
}

// Pan moves the viewport and settles the grid.
func (a *App) Pan(dx, dy float64) {
	a.view.Pan(dx, dy)
	a.Step()
}

func (a *App) Engine() *grid.Engine { return a.engine }

func (a *App) View() *viewport.Source { return a.view }

// HandleEvent applies one terminal event and reports whether to keep running.
func (a *App) HandleEvent(ev tcell.Event) bool {
	switch ev := ev.(type) {
	case *tcell.EventKey:
		step := a.opts.PanStep
		switch ev.Key() {
		case tcell.KeyEscape, tcell.KeyCtrlC:
			return false
		case tcell.KeyLeft:
			a.Pan(-step, 0)
		case tcell.KeyRight:
			a.Pan(step, 0)
		case tcell.KeyUp:
			a.Pan(0, -step)
		case tcell.KeyDown:
			a.Pan(0, step)
		case tcell.KeyRune:
			switch ev.Rune() {
			case 'q':
				return false
			case 'h':
				a.Pan(-step, 0)
			case 'l':
				a.Pan(step, 0)
			case 'k':
				a.Pan(0, -step)
			case 'j':
				a.Pan(0, step)
			case 'H':
				a.Pan(-a.opts.Grid.ChunkWidth*4, 0)
			case 'L':
				a.Pan(a.opts.Grid.ChunkWidth*4, 0)
			case 'K':
				a.Pan(0, -a.opts.Grid.ChunkHeight*4)
			case 'J':
				a.Pan(0, a.opts.Grid.ChunkHeight*4)
			case 'a':
				if err := a.engine.Audit(); err != nil {
					a.lastMsg = err.Error()
				} else {
					a.lastMsg = "audit ok"
				}
			}
		}
	case *tcell.EventResize:
		a.screen.Sync()
	}
	return true
}

// Run polls terminal events until the user quits.
func (a *App) Run() {
	a.Draw()
	for {
		ev := a.screen.PollEvent()
		if ev == nil {
			return
		}
		if !a.HandleEvent(ev) {
			return
		}
		a.Draw()
	}
}

// Draw renders the current state.
func (a *App) Draw() {
	a.screen.Clear()
	w, h := a.screen.Size()
	c := newCanvas(w, h)
	a.render(c)
	c.flush(a.screen)
	a.screen.Show()
}

// project maps world coordinates to terminal cells with the view centred.
func (a *App) project(x, y float64, w, h int) (int, int) {
	v := a.view.View()
	cx := v.X + v.W/2
	cy := v.Y + v.H/2
	sx := (x-cx)/a.opts.Grid.ChunkWidth*chunkCols + float64(w)/2
	sy := (y-cy)/a.opts.Grid.ChunkHeight*chunkRows + float64(h)/2
	return int(math.Floor(sx)), int(math.Floor(sy))
}

func (a *App) render(c *canvas) {
	top, bottom := 1, c.h-1
	for _, ch := range a.engine.Snapshot() {
		r := grid.ChunkRect(ch.Coord, a.opts.Grid.ChunkWidth, a.opts.Grid.ChunkHeight)
		x0, y0 := a.project(r.X, r.Y, c.w, c.h)
		x1, y1 := a.project(r.Right(), r.Bottom(), c.w, c.h)
		style := styleChunk
		if !ch.Settled {
			style = stylePending
		}
		c.box(x0, y0, x1-1, y1-1, style, top, bottom)
		c.text(x0+2, y0+1, x1-x0-3, fmt.Sprintf("%s #%d", ch.Coord, ch.StartIndex), style, top, bottom)
		if items := a.mapper.Cells(ch); len(items) > 0 {
			c.text(x0+2, y0+2, x1-x0-3, items[0].Title, style, top, bottom)
		}
	}

	v := a.view.View()
	vx0, vy0 := a.project(v.X, v.Y, c.w, c.h)
	vx1, vy1 := a.project(v.Right(), v.Bottom(), c.w, c.h)
	c.corners(vx0, vy0, vx1-1, vy1-1, styleView, top, bottom)

	ox, oy := a.view.Offset()
	status := fmt.Sprintf(" offset %.0f,%.0f  live %d  next %d  created %d  evicted %d  resets %d ",
		ox, oy, a.engine.Len(), a.engine.NextIndex(), a.created, a.evicted, a.engine.Resets())
	if a.lastMsg != "" {
		status += " | " + a.lastMsg
	}
	c.fill(0, styleStatus)
	c.text(0, 0, c.w, status, styleStatus, 0, 1)
	c.text(0, c.h-1, c.w, " arrows/hjkl pan  HJKL jump  a audit  q quit", styleHelp, c.h-1, c.h)
}
