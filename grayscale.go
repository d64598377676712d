package haar

import (
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
	"github.com/esimov/haar/utils"
	pigo "github.com/esimov/pigo/core"
)

// Grid is a row-major grayscale intensity grid. It is the single input
// representation accepted by the training and the detection routines.
type Grid struct {
	Pixels []uint8
	Rows   int
	Cols   int
}

// NewGrid allocates a zero filled grid of the provided dimension.
func NewGrid(rows, cols int) Grid {
	if rows < 0 || cols < 0 {
		rows, cols = 0, 0
	}
	return Grid{
		Pixels: make([]uint8, rows*cols),
		Rows:   rows,
		Cols:   cols,
	}
}

// GridFromImage converts any image type to a grayscale grid.
func GridFromImage(img image.Image) Grid {
	// pigo reads the pixels starting from (0, 0), so the bounds have to be normalized first.
	src := imaging.Clone(img)
	return Grid{
		Pixels: pigo.RgbToGrayscale(src),
		Rows:   src.Bounds().Dy(),
		Cols:   src.Bounds().Dx(),
	}
}

// At returns the intensity value at column x and row y.
func (g Grid) At(x, y int) uint8 {
	return g.Pixels[y*g.Cols+x]
}

// Set sets the intensity value at column x and row y.
func (g Grid) Set(x, y int, v uint8) {
	g.Pixels[y*g.Cols+x] = v
}

// Size returns the grid dimension as a point, where X holds the width and Y the height.
func (g Grid) Size() image.Point {
	return image.Pt(g.Cols, g.Rows)
}

// Empty reports whether the grid has no pixels.
func (g Grid) Empty() bool {
	return g.Rows <= 0 || g.Cols <= 0
}

// Image returns the grid as an *image.Gray sharing no memory with the grid.
func (g Grid) Image() *image.Gray {
	dst := image.NewGray(image.Rect(0, 0, g.Cols, g.Rows))
	for y := 0; y < g.Rows; y++ {
		for x := 0; x < g.Cols; x++ {
			dst.SetGray(x, y, color.Gray{Y: g.At(x, y)})
		}
	}
	return dst
}

// EqualizeHist spreads the intensity histogram of the grid over the full 0-255 range.
// The returned grid is a new copy; the source grid is left untouched.
func EqualizeHist(g Grid) Grid {
	dst := NewGrid(g.Rows, g.Cols)
	total := len(g.Pixels)
	if total == 0 {
		return dst
	}

	var hist [256]int
	for _, px := range g.Pixels {
		hist[px]++
	}

	var (
		cdf    [256]int
		cdfMin int
		acc    int
	)
	for i, n := range hist {
		acc += n
		cdf[i] = acc
		if cdfMin == 0 && acc > 0 {
			cdfMin = acc
		}
	}

	// A flat image has nothing to spread.
	if total == cdfMin {
		copy(dst.Pixels, g.Pixels)
		return dst
	}

	var lut [256]uint8
	for i := range lut {
		v := float64(cdf[i]-cdfMin) * 255 / float64(total-cdfMin)
		lut[i] = uint8(utils.Clamp(math.Round(v), 0, 255))
	}
	for i, px := range g.Pixels {
		dst.Pixels[i] = lut[px]
	}
	return dst
}
