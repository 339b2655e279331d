// Package render draws pattern grids as text or RGBA images.
package render

import (
	"image"
	"image/color"
	"image/png"
	"io"
	"strings"

	"lifereg/pkg/core"
)

// Default colors for Image.
var (
	On  = color.RGBA{R: 0x63, G: 0x66, B: 0xf1, A: 0xff}
	Off = color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
)

// Text renders g one row per line using on and off runes.
func Text(g core.Grid, on, off rune) string {
	var b strings.Builder
	b.Grow(core.GridSize * (core.GridSize + 1))
	for r := 0; r < core.GridSize; r++ {
		for c := 0; c < core.GridSize; c++ {
			if g[r][c] {
				b.WriteRune(on)
			} else {
				b.WriteRune(off)
			}
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// Image renders g with each cell drawn as a scale×scale block.
func Image(g core.Grid, scale int, on, off color.Color) *image.RGBA {
	if scale < 1 {
		scale = 1
	}
	n := core.GridSize * scale
	img := image.NewRGBA(image.Rect(0, 0, n, n))
	cells := make([]uint8, n)
	for r := 0; r < core.GridSize; r++ {
		for c := 0; c < core.GridSize; c++ {
			var v uint8
			if g[r][c] {
				v = 1
			}
			for dx := 0; dx < scale; dx++ {
				cells[c*scale+dx] = v
			}
		}
		for dy := 0; dy < scale; dy++ {
			row := img.Pix[(r*scale+dy)*img.Stride:]
			fillBinaryRGBA(row[:n*4], cells, on, off)
		}
	}
	return img
}

// WritePNG encodes Image(g, scale, On, Off) to w.
func WritePNG(w io.Writer, g core.Grid, scale int) error {
	return png.Encode(w, Image(g, scale, On, Off))
}

// fillBinaryRGBA converts binary cell data (0/1) into RGBA pixels in buf.
func fillBinaryRGBA(buf []byte, cells []uint8, on, off color.Color) {
	rOn, gOn, bOn, aOn := on.RGBA()
	rOff, gOff, bOff, aOff := off.RGBA()
	for i, c := range cells {
		base := i * 4
		if c != 0 {
			buf[base+0] = uint8(rOn >> 8)
			buf[base+1] = uint8(gOn >> 8)
			buf[base+2] = uint8(bOn >> 8)
			buf[base+3] = uint8(aOn >> 8)
			continue
		}
		buf[base+0] = uint8(rOff >> 8)
		buf[base+1] = uint8(gOff >> 8)
		buf[base+2] = uint8(bOff >> 8)
		buf[base+3] = uint8(aOff >> 8)
	}
}
