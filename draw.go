package haar

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

// DrawDetections returns a copy of the image with the detection rectangles outlined.
func DrawDetections(img image.Image, dets []Detection, col color.Color, thickness int) *image.NRGBA {
	dst := imaging.Clone(img)
	if thickness <= 0 {
		thickness = 1
	}
	offset := img.Bounds().Min
	for _, det := range dets {
		r := det.Rect.Add(offset).Intersect(img.Bounds()).Sub(img.Bounds().Min)
		if r.Empty() {
			continue
		}
		for t := 0; t < thickness; t++ {
			for x := r.Min.X; x < r.Max.X; x++ {
				dst.Set(x, r.Min.Y+t, col)
				dst.Set(x, r.Max.Y-1-t, col)
			}
			for y := r.Min.Y; y < r.Max.Y; y++ {
				dst.Set(r.Min.X+t, y, col)
				dst.Set(r.Max.X-1-t, y, col)
			}
		}
	}
	return dst
}
