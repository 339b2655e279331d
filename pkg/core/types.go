package core

// GridSize is the side length of every stored pattern.
const GridSize = 64

// Size describes the dimensions of a simulation grid.
type Size struct {
	W int
	H int
}

// Cell is a (row, col) coordinate on the grid.
type Cell struct {
	Row int
	Col int
}
