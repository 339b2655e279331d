// Package bitmap packs live-cell coordinates into the fixed-width bit buffer
// stored with every pattern. Bit index is row*size+col, least significant bit
// first within each byte.
package bitmap

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"lifereg/pkg/core"
)

// Bytes is the encoded length of a core.GridSize board.
const Bytes = core.GridSize * core.GridSize / 8

// Bitmap is the encoded form of a 64×64 grid.
type Bitmap [Bytes]byte

// ErrOutOfRange reports a coordinate outside the grid.
var ErrOutOfRange = errors.New("bitmap: coordinate out of range")

// Len returns the encoded length for a size×size grid.
func Len(size int) int {
	return size * size / 8
}

// Encode sets one bit per listed cell. Unlisted cells are dead.
func Encode(cells []core.Cell, size int) ([]byte, error) {
	buf := make([]byte, Len(size))
	for _, c := range cells {
		if c.Row < 0 || c.Col < 0 || c.Row >= size || c.Col >= size {
			return nil, fmt.Errorf("%w: (%d,%d) on %dx%d grid", ErrOutOfRange, c.Row, c.Col, size, size)
		}
		bit := c.Row*size + c.Col
		buf[bit/8] |= 1 << (bit % 8)
	}
	return buf, nil
}

// Decode lists the live cells of buf in row-major order. buf must be Len(size)
// bytes long.
func Decode(buf []byte, size int) []core.Cell {
	cells := []core.Cell{}
	for i, b := range buf {
		if b == 0 {
			continue
		}
		for off := 0; off < 8; off++ {
			if b&(1<<off) == 0 {
				continue
			}
			bit := i*8 + off
			cells = append(cells, core.Cell{Row: bit / size, Col: bit % size})
		}
	}
	return cells
}

// EncodeGrid packs a board.
func EncodeGrid(g core.Grid) Bitmap {
	var bm Bitmap
	for row := range g {
		for col, alive := range g[row] {
			if alive {
				bit := row*core.GridSize + col
				bm[bit/8] |= 1 << (bit % 8)
			}
		}
	}
	return bm
}

// DecodeGrid unpacks a board.
func DecodeGrid(bm Bitmap) core.Grid {
	var g core.Grid
	for bit := 0; bit < core.GridSize*core.GridSize; bit++ {
		if bm[bit/8]&(1<<(bit%8)) != 0 {
			g[bit/core.GridSize][bit%core.GridSize] = true
		}
	}
	return g
}

// FromBytes copies a buffer of exactly Bytes length.
func FromBytes(buf []byte) (Bitmap, bool) {
	var bm Bitmap
	if len(buf) != Bytes {
		return bm, false
	}
	copy(bm[:], buf)
	return bm, true
}

// ParseCells reads the "row,col;row,col" text form.
func ParseCells(s string) ([]core.Cell, error) {
	var cells []core.Cell
	for _, part := range strings.Split(s, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		rc := strings.SplitN(part, ",", 2)
		if len(rc) != 2 {
			return nil, fmt.Errorf("bitmap: malformed cell %q", part)
		}
		row, err := strconv.Atoi(strings.TrimSpace(rc[0]))
		if err != nil {
			return nil, fmt.Errorf("bitmap: row in %q: %w", part, err)
		}
		col, err := strconv.Atoi(strings.TrimSpace(rc[1]))
		if err != nil {
			return nil, fmt.Errorf("bitmap: col in %q: %w", part, err)
		}
		cells = append(cells, core.Cell{Row: row, Col: col})
	}
	return cells, nil
}

// FormatCells renders cells in the form ParseCells accepts.
func FormatCells(cells []core.Cell) string {
	parts := make([]string, len(cells))
	for i, c := range cells {
		parts[i] = strconv.Itoa(c.Row) + "," + strconv.Itoa(c.Col)
	}
	return strings.Join(parts, ";")
}
