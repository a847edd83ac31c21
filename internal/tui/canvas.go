package tui

import (
	"github.com/gdamore/tcell/v2"
	"golang.org/x/text/width"
)

type cell struct {
	r     rune
	style tcell.Style
}

// canvas is an off-screen cell buffer; rows outside [minY, maxY) passed to
// each primitive are clipped so chunk boxes never overwrite the status bars.
type canvas struct {
	w, h  int
	cells []cell
}

func newCanvas(w, h int) *canvas {
	if w < 0 {
		w = 0
	}
	if h < 0 {
		h = 0
	}
	c := &canvas{w: w, h: h, cells: make([]cell, w*h)}
	for i := range c.cells {
		c.cells[i] = cell{r: ' ', style: tcell.StyleDefault}
	}
	return c
}

func (c *canvas) set(x, y int, r rune, style tcell.Style, minY, maxY int) {
	if x < 0 || x >= c.w || y < 0 || y >= c.h || y < minY || y >= maxY {
		return
	}
	c.cells[y*c.w+x] = cell{r: r, style: style}
}

func (c *canvas) at(x, y int) rune {
	if x < 0 || x >= c.w || y < 0 || y >= c.h {
		return 0
	}
	return c.cells[y*c.w+x].r
}

func (c *canvas) fill(y int, style tcell.Style) {
	for x := 0; x < c.w; x++ {
		c.set(x, y, ' ', style, y, y+1)
	}
}

func (c *canvas) box(x0, y0, x1, y1 int, style tcell.Style, minY, maxY int) {
	if x1 <= x0 || y1 <= y0 {
		return
	}
	for x := x0 + 1; x < x1; x++ {
		c.set(x, y0, '─', style, minY, maxY)
		c.set(x, y1, '─', style, minY, maxY)
	}
	for y := y0 + 1; y < y1; y++ {
		c.set(x0, y, '│', style, minY, maxY)
		c.set(x1, y, '│', style, minY, maxY)
	}
	c.set(x0, y0, '┌', style, minY, maxY)
	c.set(x1, y0, '┐', style, minY, maxY)
	c.set(x0, y1, '└', style, minY, maxY)
	c.set(x1, y1, '┘', style, minY, maxY)
}

// corners marks the four corners of a rectangle, leaving its interior and
// any boxes underneath visible.
func (c *canvas) corners(x0, y0, x1, y1 int, style tcell.Style, minY, maxY int) {
	c.set(x0, y0, '╔', style, minY, maxY)
	c.set(x1, y0, '╗', style, minY, maxY)
	c.set(x0, y1, '╚', style, minY, maxY)
	c.set(x1, y1, '╝', style, minY, maxY)
}

// text writes s starting at (x, y), truncated to max display columns. Wide
// runes take two cells; the second holds a zero rune.
func (c *canvas) text(x, y, max int, s string, style tcell.Style, minY, maxY int) int {
	used := 0
	for _, r := range s {
		w := runeWidth(r)
		if used+w > max {
			break
		}
		c.set(x+used, y, r, style, minY, maxY)
		if w == 2 {
			c.set(x+used+1, y, 0, style, minY, maxY)
		}
		used += w
	}
	return used
}

func (c *canvas) flush(s tcell.Screen) {
	for y := 0; y < c.h; y++ {
		for x := 0; x < c.w; x++ {
			cl := c.cells[y*c.w+x]
			if cl.r == 0 {
				continue
			}
			s.SetContent(x, y, cl.r, nil, cl.style)
		}
	}
}

// runeWidth returns the terminal column count of r.
func runeWidth(r rune) int {
	switch width.LookupRune(r).Kind() {
	case width.EastAsianWide, width.EastAsianFullwidth:
		return 2
	}
	return 1
}
