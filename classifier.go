package haar

import (
	"fmt"
	"image"
)

// Window is the feature context of a single detection window: the integral image
// backing it, the window's top-left corner and its scale relative to the training samples.
type Window struct {
	ii     *IntegralImage
	Origin image.Point
	Scale  float64
}

// NewWindow returns a window positioned at origin over the integral image.
func NewWindow(ii *IntegralImage, origin image.Point, scale float64) Window {
	if scale <= 0 {
		scale = 1
	}
	return Window{ii: ii, Origin: origin, Scale: scale}
}

// SampleWindow returns the unscaled window covering the whole integral image,
// which is the context a training sample is evaluated in.
func SampleWindow(ii *IntegralImage) Window {
	return NewWindow(ii, image.Point{}, 1)
}

// WeakClassifier is a single thresholded feature rule. The threshold is stored
// polarity-normalized: a window passes when value*Polarity >= Threshold.
type WeakClassifier struct {
	Feature   Feature
	Threshold float64
	Polarity  int
	// Alpha is the boosting weight assigned to the classifier in its training round.
	Alpha float64
}

// Region returns the rectangle the classifier's feature is computed on.
func (wc WeakClassifier) Region() image.Rectangle {
	return wc.Feature.Region
}

// Evaluate returns the feature value of the classifier inside the window.
func (wc WeakClassifier) Evaluate(w Window) (float64, error) {
	return wc.Feature.ValueAt(w.ii, w.Origin, w.Scale)
}

// Passes reports whether the window satisfies the classifier's decision rule.
// A feature which cannot be evaluated inside the window never passes.
func (wc WeakClassifier) Passes(w Window) bool {
	v, err := wc.Evaluate(w)
	if err != nil {
		return false
	}
	return wc.accept(v)
}

// Predict returns +1 when the window passes and -1 otherwise.
func (wc WeakClassifier) Predict(w Window) int {
	if wc.Passes(w) {
		return 1
	}
	return -1
}

func (wc WeakClassifier) accept(v float64) bool {
	return v*float64(wc.Polarity) >= wc.Threshold
}

func (wc WeakClassifier) String() string {
	return fmt.Sprintf("%v%v threshold=%.2f polarity=%+d alpha=%.4f",
		wc.Feature.Kind, wc.Feature.Region, wc.Threshold, wc.Polarity, wc.Alpha)
}
