package haar

import (
	"fmt"
	"image"
	"math"

	"github.com/pkg/errors"
)

// FeatureKind defines how a feature region is split into its white and black parts.
type FeatureKind int

const (
	// Diagonal pairs the main-diagonal corners of the region (white)
	// against the anti-diagonal corners (black), requiring exactly four lookups.
	Diagonal FeatureKind = iota
	// DiagonalInverse is Diagonal with the colors swapped.
	DiagonalInverse
	// EdgeHorizontal subtracts the right half of the region from the left half.
	EdgeHorizontal
	// EdgeVertical subtracts the bottom half of the region from the top half.
	EdgeVertical
)

func (k FeatureKind) String() string {
	switch k {
	case Diagonal:
		return "diagonal"
	case DiagonalInverse:
		return "diagonal-inverse"
	case EdgeHorizontal:
		return "edge-horizontal"
	case EdgeVertical:
		return "edge-vertical"
	default:
		return fmt.Sprintf("FeatureKind(%d)", int(k))
	}
}

// Feature is a Haar-like feature: a region of the detection window and the way
// the region is split into white and black rectangles.
type Feature struct {
	Region image.Rectangle
	Kind   FeatureKind
}

// ComputeHaarFeatureValue returns the white minus black value of the diagonal feature
// spanning the (x, y, width, height) region of the integral image.
func ComputeHaarFeatureValue(ii *IntegralImage, x, y, width, height int) (int64, error) {
	if width <= 0 || height <= 0 {
		return 0, errors.Wrapf(ErrInvalidRegion, "region size %dx%d", width, height)
	}
	f := Feature{Region: image.Rect(x, y, x+width, y+height), Kind: Diagonal}
	return f.Value(ii)
}

// Value evaluates the feature over the integral image. The region has to lie fully
// inside the integral image, otherwise ErrInvalidRegion is returned.
func (f Feature) Value(ii *IntegralImage) (int64, error) {
	if !ii.Contains(f.Region) {
		return 0, errors.Wrapf(ErrInvalidRegion, "%v feature %v outside of %v", f.Kind, f.Region, ii.Bounds())
	}
	if !f.Kind.splittable(f.Region) {
		return 0, errors.Wrapf(ErrInvalidRegion, "%v feature %v cannot be split in halves", f.Kind, f.Region)
	}
	return f.value(ii, f.Region), nil
}

// ValueAt evaluates the feature inside a detection window placed at origin and scaled by
// the provided factor relative to the window the feature was defined on. The result is
// normalized back to the area of the unscaled region, so thresholds learned at the
// training resolution can be applied to any window size.
func (f Feature) ValueAt(ii *IntegralImage, origin image.Point, scale float64) (float64, error) {
	r := f.scaled(origin, scale)
	if !ii.Contains(r) {
		return 0, errors.Wrapf(ErrInvalidRegion, "scaled feature %v outside of %v", r, ii.Bounds())
	}
	if !f.Kind.splittable(r) {
		return 0, errors.Wrapf(ErrInvalidRegion, "%v feature %v cannot be split in halves", f.Kind, r)
	}
	v := float64(f.value(ii, r))
	base := float64(f.Region.Dx() * f.Region.Dy())
	return v * base / float64(r.Dx()*r.Dy()), nil
}

// scaled maps the feature region into the window coordinate space. Both corners are
// scaled, so a region inside the base window stays inside the scaled window.
func (f Feature) scaled(origin image.Point, scale float64) image.Rectangle {
	if scale == 1 {
		return f.Region.Add(origin)
	}
	r := image.Rect(
		int(math.Round(float64(f.Region.Min.X)*scale)),
		int(math.Round(float64(f.Region.Min.Y)*scale)),
		int(math.Round(float64(f.Region.Max.X)*scale)),
		int(math.Round(float64(f.Region.Max.Y)*scale)),
	)
	return r.Add(origin)
}

func (f Feature) value(ii *IntegralImage, r image.Rectangle) int64 {
	switch f.Kind {
	case DiagonalInverse:
		return -diagonal(ii, r)
	case EdgeHorizontal:
		mid := r.Min.X + r.Dx()/2
		left := image.Rect(r.Min.X, r.Min.Y, mid, r.Max.Y)
		right := image.Rect(mid, r.Min.Y, mid+r.Dx()/2, r.Max.Y)
		return ii.sum(left) - ii.sum(right)
	case EdgeVertical:
		mid := r.Min.Y + r.Dy()/2
		top := image.Rect(r.Min.X, r.Min.Y, r.Max.X, mid)
		bottom := image.Rect(r.Min.X, mid, r.Max.X, mid+r.Dy()/2)
		return ii.sum(top) - ii.sum(bottom)
	default:
		return diagonal(ii, r)
	}
}

// diagonal returns the main-diagonal corner sum minus the anti-diagonal corner sum.
func diagonal(ii *IntegralImage, r image.Rectangle) int64 {
	white := ii.get(r.Min.X, r.Min.Y) + ii.get(r.Max.X, r.Max.Y)
	black := ii.get(r.Max.X, r.Min.Y) + ii.get(r.Min.X, r.Max.Y)
	return white - black
}

// splittable reports whether the region is large enough for the two-rectangle kinds.
func (k FeatureKind) splittable(r image.Rectangle) bool {
	switch k {
	case EdgeHorizontal:
		return r.Dx() >= 2
	case EdgeVertical:
		return r.Dy() >= 2
	}
	return true
}

// EnumerateFeatures generates candidate features of every kind inside a window of the
// provided size. Regions start at multiples of step and grow by step in both directions.
// The whole window diagonal feature is always the first candidate.
func EnumerateFeatures(size image.Point, step int) []Feature {
	whole := Feature{Region: image.Rect(0, 0, size.X, size.Y), Kind: Diagonal}
	if size.X <= 0 || size.Y <= 0 {
		return nil
	}
	if step <= 0 {
		step = 1
	}

	features := []Feature{whole}
	kinds := []FeatureKind{Diagonal, EdgeHorizontal, EdgeVertical}
	for y := 0; y < size.Y; y += step {
		for x := 0; x < size.X; x += step {
			for h := step; y+h <= size.Y; h += step {
				for w := step; x+w <= size.X; w += step {
					r := image.Rect(x, y, x+w, y+h)
					for _, k := range kinds {
						f := Feature{Region: r, Kind: k}
						if f == whole || !k.splittable(r) {
							continue
						}
						features = append(features, f)
					}
				}
			}
		}
	}
	return features
}
