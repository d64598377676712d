package haar

import (
	"image"
	"math"

	"github.com/pkg/errors"
)

// IntegralImage is a summed-area table built from a grayscale grid. It holds one row and
// one column more than the source, the first row and column being zero, so that the cell
// at (x, y) contains the sum of all the source pixels with column < x and row < y.
type IntegralImage struct {
	width  int
	height int
	table  []int64
}

// NewIntegralImage computes the integral image of the provided grid in a single pass.
// A grid without pixels produces an all-zero table.
func NewIntegralImage(g Grid) *IntegralImage {
	return newIntegral(g, func(px uint8) int64 { return int64(px) })
}

// NewSquaredIntegralImage computes the integral image of the squared pixel values.
// Together with the regular integral image it gives the variance of any rectangle.
func NewSquaredIntegralImage(g Grid) *IntegralImage {
	return newIntegral(g, func(px uint8) int64 { return int64(px) * int64(px) })
}

func newIntegral(g Grid, fn func(uint8) int64) *IntegralImage {
	rows, cols := g.Rows, g.Cols
	if g.Empty() || len(g.Pixels) < rows*cols {
		rows, cols = max(rows, 0), max(cols, 0)
		return &IntegralImage{
			width:  cols,
			height: rows,
			table:  make([]int64, (rows+1)*(cols+1)),
		}
	}

	ii := &IntegralImage{
		width:  cols,
		height: rows,
		table:  make([]int64, (rows+1)*(cols+1)),
	}
	for y := 1; y <= rows; y++ {
		for x := 1; x <= cols; x++ {
			px := fn(g.Pixels[(y-1)*cols+(x-1)])
			ii.set(x, y, ii.get(x, y-1)+ii.get(x-1, y)-ii.get(x-1, y-1)+px)
		}
	}
	return ii
}

// get returns the table value without bounds checking.
func (ii *IntegralImage) get(x, y int) int64 {
	return ii.table[x+y*(ii.width+1)]
}

func (ii *IntegralImage) set(x, y int, v int64) {
	ii.table[x+y*(ii.width+1)] = v
}

// Bounds returns the rectangle covered by the source grid.
func (ii *IntegralImage) Bounds() image.Rectangle {
	return image.Rect(0, 0, ii.width, ii.height)
}

// At returns the table cell at (x, y), where 0 <= x <= width and 0 <= y <= height.
func (ii *IntegralImage) At(x, y int) int64 {
	if x < 0 || y < 0 || x > ii.width || y > ii.height {
		return 0
	}
	return ii.get(x, y)
}

// Contains reports whether the rectangle lies fully inside the source grid
// and has a positive area.
func (ii *IntegralImage) Contains(r image.Rectangle) bool {
	return r.Min.X >= 0 && r.Min.Y >= 0 &&
		r.Dx() > 0 && r.Dy() > 0 &&
		r.Max.X <= ii.width && r.Max.Y <= ii.height
}

// Sum returns the sum of the source pixels inside the rectangle using four table lookups.
func (ii *IntegralImage) Sum(r image.Rectangle) (int64, error) {
	if !ii.Contains(r) {
		return 0, errors.Wrapf(ErrInvalidRegion, "rectangle %v outside of %v", r, ii.Bounds())
	}
	return ii.sum(r), nil
}

func (ii *IntegralImage) sum(r image.Rectangle) int64 {
	return ii.get(r.Min.X, r.Min.Y) + ii.get(r.Max.X, r.Max.Y) -
		ii.get(r.Max.X, r.Min.Y) - ii.get(r.Min.X, r.Max.Y)
}

// WindowStdDev returns the standard deviation of the pixel intensities inside r,
// given the regular and the squared integral image of the same grid.
func WindowStdDev(ii, sq *IntegralImage, r image.Rectangle) (float64, error) {
	s, err := ii.Sum(r)
	if err != nil {
		return 0, err
	}
	s2, err := sq.Sum(r)
	if err != nil {
		return 0, err
	}
	area := float64(r.Dx() * r.Dy())
	mean := float64(s) / area
	variance := float64(s2)/area - mean*mean
	if variance <= 0 {
		return 0, nil
	}
	return math.Sqrt(variance), nil
}
