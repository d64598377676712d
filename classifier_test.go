package haar

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifier_PolarityRule(t *testing.T) {
	assert := assert.New(t)

	ii := NewIntegralImage(uniformGrid(4, 4, 10))
	w := SampleWindow(ii)
	f := Feature{Region: image.Rect(0, 0, 4, 4), Kind: Diagonal}

	above := WeakClassifier{Feature: f, Threshold: 100, Polarity: 1}
	assert.True(above.Passes(w))
	assert.Equal(1, above.Predict(w))

	// value*(-1) >= -100 holds only for values up to 100.
	below := WeakClassifier{Feature: f, Threshold: -100, Polarity: -1}
	assert.False(below.Passes(w))
	assert.Equal(-1, below.Predict(w))

	equal := WeakClassifier{Feature: f, Threshold: 160, Polarity: 1}
	assert.True(equal.Passes(w))
}

func TestClassifier_ShouldNotPassOutsideWindow(t *testing.T) {
	ii := NewIntegralImage(uniformGrid(4, 4, 10))
	wc := WeakClassifier{
		Feature:   Feature{Region: image.Rect(0, 0, 4, 4), Kind: Diagonal},
		Threshold: -1e18,
		Polarity:  1,
	}

	assert.True(t, wc.Passes(NewWindow(ii, image.Point{}, 1)))
	assert.False(t, wc.Passes(NewWindow(ii, image.Pt(1, 0), 1)))
	assert.False(t, wc.Passes(NewWindow(ii, image.Point{}, 2)))

	_, err := wc.Evaluate(NewWindow(ii, image.Pt(1, 1), 1))
	assert.ErrorIs(t, err, ErrInvalidRegion)
}

func TestClassifier_Region(t *testing.T) {
	r := image.Rect(1, 2, 3, 4)
	wc := WeakClassifier{Feature: Feature{Region: r, Kind: EdgeVertical}}
	assert.Equal(t, r, wc.Region())
	assert.Contains(t, wc.String(), "edge-vertical")
}
