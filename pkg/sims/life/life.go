// Package life implements Conway's Game of Life on the fixed toroidal board
// used by stored patterns, plus the generation history helpers built on it.
package life

import "lifereg/pkg/core"

// Life is a double-buffered Conway board with toroidal wrapping.
type Life struct {
	w, h int
	cur  []uint8
	nxt  []uint8
}

// New returns a Life simulation with the provided dimensions.
func New(w, h int) *Life {
	cells := make([]uint8, w*h)
	return &Life{w: w, h: h, cur: cells, nxt: make([]uint8, len(cells))}
}

// FromGrid returns a board loaded with g.
func FromGrid(g core.Grid) *Life {
	l := New(core.GridSize, core.GridSize)
	l.Load(g)
	return l
}

// Size returns the grid dimensions.
func (l *Life) Size() core.Size { return core.Size{W: l.w, H: l.h} }

// Cells exposes the current grid values.
func (l *Life) Cells() []uint8 { return l.cur }

// Load replaces the board with g. On a board that is not core.GridSize square
// only the overlapping corner is copied and the rest is cleared.
func (l *Life) Load(g core.Grid) {
	for y := 0; y < l.h; y++ {
		for x := 0; x < l.w; x++ {
			idx := y*l.w + x
			l.cur[idx] = 0
			if y < core.GridSize && x < core.GridSize && g[y][x] {
				l.cur[idx] = 1
			}
		}
	}
}

// Grid snapshots the overlapping corner of the board.
func (l *Life) Grid() core.Grid {
	var g core.Grid
	for y := 0; y < min(l.h, core.GridSize); y++ {
		for x := 0; x < min(l.w, core.GridSize); x++ {
			g[y][x] = l.cur[y*l.w+x] == 1
		}
	}
	return g
}

// Step advances the simulation by one generation.
func (l *Life) Step() {
	w, h := l.w, l.h
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			neighbors := 0
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					if dx == 0 && dy == 0 {
						continue
					}
					nx := (x + dx + w) % w
					ny := (y + dy + h) % h
					neighbors += int(l.cur[ny*w+nx])
				}
			}
			idx := y*w + x
			alive := l.cur[idx] == 1
			l.nxt[idx] = 0
			if (alive && (neighbors == 2 || neighbors == 3)) || (!alive && neighbors == 3) {
				l.nxt[idx] = 1
			}
		}
	}
	l.cur, l.nxt = l.nxt, l.cur
}

// Step returns the generation after g.
func Step(g core.Grid) core.Grid {
	l := FromGrid(g)
	l.Step()
	return l.Grid()
}

// Advance returns the grid n generations after g without keeping the
// intermediate states.
func Advance(g core.Grid, n int) core.Grid {
	if n <= 0 {
		return g
	}
	l := FromGrid(g)
	for i := 0; i < n; i++ {
		l.Step()
	}
	return l.Grid()
}
