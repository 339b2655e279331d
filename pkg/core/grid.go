package core

// Grid is a GridSize×GridSize boolean board indexed [row][col]. It is a value
// type: assignment copies the board and == compares every cell.
type Grid [GridSize][GridSize]bool

// GridFromCells builds a grid with the listed cells alive. Coordinates are
// wrapped onto the torus.
func GridFromCells(cells ...Cell) Grid {
	var g Grid
	for _, c := range cells {
		g.Set(c.Row, c.Col, true)
	}
	return g
}

// Alive reports whether the cell at (row, col) is live, wrapping coordinates.
func (g *Grid) Alive(row, col int) bool {
	row, col = Wrap(row, col)
	return g[row][col]
}

// Set assigns the cell at (row, col), wrapping coordinates.
func (g *Grid) Set(row, col int, alive bool) {
	row, col = Wrap(row, col)
	g[row][col] = alive
}

// Population counts live cells.
func (g *Grid) Population() int {
	n := 0
	for row := range g {
		for _, alive := range g[row] {
			if alive {
				n++
			}
		}
	}
	return n
}

// Live lists live cells in row-major order.
func (g *Grid) Live() []Cell {
	var cells []Cell
	for row := range g {
		for col, alive := range g[row] {
			if alive {
				cells = append(cells, Cell{Row: row, Col: col})
			}
		}
	}
	return cells
}

// Wrap applies toroidal wrapping to the provided coordinates.
func Wrap(row, col int) (int, int) {
	row = (row%GridSize + GridSize) % GridSize
	col = (col%GridSize + GridSize) % GridSize
	return row, col
}
