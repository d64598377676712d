package haar

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDraw_ShouldOutlineDetections(t *testing.T) {
	assert := assert.New(t)

	img := image.NewNRGBA(image.Rect(0, 0, 20, 20))
	black := color.NRGBA{A: 255}
	for x := 0; x < 20; x++ {
		for y := 0; y < 20; y++ {
			img.Set(x, y, black)
		}
	}
	red := color.NRGBA{R: 255, A: 255}

	dst := DrawDetections(img, []Detection{{Rect: image.Rect(5, 5, 15, 15)}}, red, 1)
	assert.Equal(red, dst.NRGBAAt(5, 5))
	assert.Equal(red, dst.NRGBAAt(14, 14))
	assert.Equal(red, dst.NRGBAAt(10, 5))
	assert.Equal(black, dst.NRGBAAt(10, 10))
	assert.Equal(black, dst.NRGBAAt(15, 15))
	assert.Equal(black, img.NRGBAAt(5, 5))

	thick := DrawDetections(img, []Detection{{Rect: image.Rect(5, 5, 15, 15)}}, red, 2)
	assert.Equal(red, thick.NRGBAAt(6, 10))
	assert.Equal(black, thick.NRGBAAt(7, 10))
}

func TestDraw_ShouldClipToImage(t *testing.T) {
	img := image.NewNRGBA(image.Rect(10, 10, 30, 30))
	red := color.NRGBA{R: 255, A: 255}

	dst := DrawDetections(img, []Detection{
		{Rect: image.Rect(15, 15, 40, 40)},
		{Rect: image.Rect(50, 50, 60, 60)},
	}, red, 0)

	assert.Equal(t, image.Rect(0, 0, 20, 20), dst.Bounds())
	assert.Equal(t, red, dst.NRGBAAt(15, 15))
	assert.Equal(t, red, dst.NRGBAAt(19, 19))
	assert.Equal(t, color.NRGBA{}, dst.NRGBAAt(16, 16))
}
