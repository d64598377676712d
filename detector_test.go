package haar

import (
	"context"
	"image"
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// thresholdCascade returns a single stage cascade over a 24x24 window, accepting
// the windows whose summed intensity is at least threshold.
func thresholdCascade(threshold float64) *Cascade {
	return &Cascade{
		Stages: []Stage{{
			WeakClassifier{
				Feature:   Feature{Region: image.Rect(0, 0, 24, 24), Kind: Diagonal},
				Threshold: threshold,
				Polarity:  1,
			},
		}},
		Window: image.Pt(24, 24),
	}
}

func alwaysPass() *Cascade { return thresholdCascade(-1e18) }

func fixedParams() DetectParams {
	return DetectParams{
		ScaleFactor:  1.1,
		ShiftFactor:  1.0,
		MinNeighbors: 1,
		MinSize:      image.Pt(24, 24),
		MaxSize:      image.Pt(24, 24),
		IoUThreshold: 0.2,
		Workers:      2,
	}
}

func rects(dets []Detection) []image.Rectangle {
	res := make([]image.Rectangle, len(dets))
	for i, d := range dets {
		res[i] = d.Rect
	}
	return res
}

func TestDetector_AlwaysPassShouldReturnEveryWindowCluster(t *testing.T) {
	dets := Detect(randomGrid(24, 48, 3), alwaysPass(), fixedParams())

	want := []image.Rectangle{
		image.Rect(0, 0, 24, 24),
		image.Rect(24, 0, 48, 24),
	}
	if diff := cmp.Diff(want, rects(dets)); diff != "" {
		t.Errorf("detections mismatch (-want +got):\n%s", diff)
	}
}

func TestDetector_ShouldGroupSlidingWindows(t *testing.T) {
	assert := assert.New(t)

	p := fixedParams()
	p.ShiftFactor = 0.25

	dets := Detect(randomGrid(24, 48, 3), alwaysPass(), p)
	if assert.Len(dets, 1) {
		assert.Equal(image.Rect(12, 0, 36, 24), dets[0].Rect)
		assert.Equal(5, dets[0].Neighbors)
		assert.Equal(1, dets[0].Depth)
	}

	p.MinNeighbors = 6
	assert.Nil(Detect(randomGrid(24, 48, 3), alwaysPass(), p))
}

func TestDetector_ShouldReturnNothing(t *testing.T) {
	assert := assert.New(t)
	p := fixedParams()

	assert.Nil(Detect(NewGrid(0, 0), alwaysPass(), p))
	assert.Nil(Detect(randomGrid(24, 48, 3), nil, p))
	assert.Nil(Detect(randomGrid(24, 48, 3), &Cascade{Window: image.Pt(24, 24)}, p))
	assert.Nil(Detect(randomGrid(24, 48, 3), thresholdCascade(1e18), p))
	// The image is smaller than the minimum window.
	assert.Nil(Detect(randomGrid(20, 20, 3), alwaysPass(), p))
}

func TestDetector_ShouldFilterAspectRatio(t *testing.T) {
	p := fixedParams()
	p.AspectRatio = AspectRange{Min: 0.8, Max: 1.2}
	assert.Len(t, Detect(randomGrid(24, 48, 3), alwaysPass(), p), 2)

	p.AspectRatio = AspectRange{Min: 1.5}
	assert.Nil(t, Detect(randomGrid(24, 48, 3), alwaysPass(), p))
}

func TestDetector_ShouldRejectFlatWindows(t *testing.T) {
	p := fixedParams()
	flat := uniformGrid(24, 48, 128)
	assert.Len(t, Detect(flat, alwaysPass(), p), 2)

	p.MinStdDev = 1
	assert.Nil(t, Detect(flat, alwaysPass(), p))
	assert.Len(t, Detect(randomGrid(24, 48, 3), alwaysPass(), p), 2)
}

func TestDetector_ShouldFindBrightObject(t *testing.T) {
	assert := assert.New(t)

	g := NewGrid(60, 60)
	for y := 20; y < 44; y++ {
		for x := 30; x < 54; x++ {
			g.Set(x, y, 250)
		}
	}
	p := fixedParams()
	p.ShiftFactor = 1.0 / 24

	// Only the exact object position reaches the threshold.
	dets := Detect(g, thresholdCascade(24*24*250), p)
	if assert.Len(dets, 1) {
		assert.Equal(image.Rect(30, 20, 54, 44), dets[0].Rect)
	}
}

func TestDetector_ScanSizes(t *testing.T) {
	assert := assert.New(t)

	p := DetectParams{ScaleFactor: 2, MinSize: image.Pt(24, 24)}
	var sizes []image.Point
	for _, s := range p.scans(image.Pt(24, 24), image.Pt(100, 100)) {
		sizes = append(sizes, s.size)
		assert.Equal(float64(s.size.X)/24, s.scale)
	}
	assert.Equal([]image.Point{{24, 24}, {48, 48}, {96, 96}}, sizes)

	p.MaxSize = image.Pt(50, 50)
	assert.Len(p.scans(image.Pt(24, 24), image.Pt(100, 100)), 2)

	p = DetectParams{ScaleFactor: 1.1}
	scans := p.scans(image.Pt(24, 24), image.Pt(30, 30))
	if assert.NotEmpty(scans) {
		assert.Equal(image.Pt(24, 24), scans[0].size)
	}
	for i := 1; i < len(scans); i++ {
		assert.NotEqual(scans[i-1].size, scans[i].size)
	}
	assert.Nil(p.scans(image.Point{}, image.Pt(30, 30)))
}

func TestDetector_SerialAndParallelShouldMatch(t *testing.T) {
	g := randomGrid(80, 90, 11)
	c := thresholdCascade(24 * 24 * 128)

	p := DefaultDetectParams()
	p.MinSize = image.Pt(24, 24)
	p.MinNeighbors = 2

	p.Workers = 1
	serial := Detect(g, c, p)
	p.Workers = 8
	parallel := Detect(g, c, p)

	if diff := cmp.Diff(serial, parallel); diff != "" {
		t.Errorf("serial and parallel detections differ (-serial +parallel):\n%s", diff)
	}
}

func TestDetector_ShouldStopOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := DetectContext(ctx, randomGrid(200, 200, 5), alwaysPass(), DefaultDetectParams())
	require.ErrorIs(t, err, context.Canceled)
}

func TestDetector_Defaults(t *testing.T) {
	assert := assert.New(t)

	p := DetectParams{}.withDefaults()
	assert.Equal(1.1, p.ScaleFactor)
	assert.Equal(0.1, p.ShiftFactor)
	assert.Equal(0.2, p.IoUThreshold)
	assert.Positive(p.Workers)

	p = DetectParams{ScaleFactor: math.NaN(), ShiftFactor: math.Inf(1), IoUThreshold: math.NaN()}.withDefaults()
	assert.Equal(1.1, p.ScaleFactor)
	assert.Equal(0.1, p.ShiftFactor)
	assert.Equal(0.2, p.IoUThreshold)

	d := DefaultDetectParams()
	assert.Equal(3, d.MinNeighbors)
	assert.Equal(image.Pt(30, 30), d.MinSize)
	assert.Equal(AspectRange{Min: 0.8, Max: 1.2}, d.AspectRatio)
}

func TestDetector_ScanSizesWithExtremeFactors(t *testing.T) {
	for _, tc := range []struct {
		name   string
		factor float64
		want   int
	}{
		{"huge", 1e19, 1},
		{"max float", math.MaxFloat64, 1},
		{"infinite", math.Inf(1), 8},
		{"not a number", math.NaN(), 8},
		{"not growing", 1, 8},
	} {
		t.Run(tc.name, func(t *testing.T) {
			p := DetectParams{ScaleFactor: tc.factor}
			res := make(chan []scan, 1)
			go func() { res <- p.scans(image.Pt(24, 24), image.Pt(48, 48)) }()

			select {
			case scans := <-res:
				assert.Len(t, scans, tc.want)
				for _, s := range scans {
					assert.LessOrEqual(t, s.size.X, 48)
					assert.GreaterOrEqual(t, s.size.X, 24)
				}
			case <-time.After(5 * time.Second):
				t.Fatalf("window sizes with scale factor %v were not computed in time", tc.factor)
			}
		})
	}
}

func TestDetector_Step(t *testing.T) {
	assert := assert.New(t)

	assert.Equal(2, DetectParams{ShiftFactor: 0.1}.step(24))
	assert.Equal(1, DetectParams{ShiftFactor: 0.01}.step(24))
	assert.Equal(1, DetectParams{ShiftFactor: math.NaN()}.step(24))
	assert.Equal(math.MaxInt32, DetectParams{ShiftFactor: 1e300}.step(24))
}

func TestDetector_HugeFactorsShouldScanBaseWindowOnly(t *testing.T) {
	p := fixedParams()
	p.MaxSize = image.Point{}
	p.ScaleFactor = 1e19
	p.ShiftFactor = 1e19

	dets := Detect(randomGrid(48, 48, 3), alwaysPass(), p)
	if diff := cmp.Diff([]image.Rectangle{image.Rect(0, 0, 24, 24)}, rects(dets)); diff != "" {
		t.Errorf("detections mismatch (-want +got):\n%s", diff)
	}
}

func BenchmarkDetector(b *testing.B) {
	g := randomGrid(240, 320, 17)
	c := thresholdCascade(24 * 24 * 128)
	p := DefaultDetectParams()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Detect(g, c, p)
	}
}
