package haar

import (
	"context"
	"image"
	"math"
	"runtime"
	"sync"

	"github.com/esimov/haar/utils"
)

// DetectParams contains the parameters of the multi-scale sliding window search.
//
// ScaleFactor: the geometric step between two consecutive window sizes (> 1).
// ShiftFactor: the sliding step of the window as a fraction of its width.
// MinNeighbors: the minimum number of merged raw windows to keep a detection.
// MinSize, MaxSize: the window size bounds. A zero MinSize starts from the cascade
// window, a zero MaxSize grows the window up to the image bounds.
// AspectRatio: optional filter on the width/height ratio of the detections.
// IoUThreshold: the overlap above which two raw windows belong to the same object.
// MinStdDev: windows with a lower intensity deviation are rejected without
// running the cascade. Zero disables the check.
// Workers: the number of goroutines scanning the image.
type DetectParams struct {
	ScaleFactor  float64
	ShiftFactor  float64
	MinNeighbors int
	MinSize      image.Point
	MaxSize      image.Point
	AspectRatio  AspectRange
	IoUThreshold float64
	MinStdDev    float64
	Workers      int
}

const (
	defaultScaleFactor  = 1.1
	defaultShiftFactor  = 0.1
	defaultIoUThreshold = 0.2
)

// DefaultDetectParams returns the commonly used detection parameters.
func DefaultDetectParams() DetectParams {
	return DetectParams{
		ScaleFactor:  defaultScaleFactor,
		ShiftFactor:  defaultShiftFactor,
		MinNeighbors: 3,
		MinSize:      image.Pt(30, 30),
		AspectRatio:  AspectRange{Min: 0.8, Max: 1.2},
		IoUThreshold: defaultIoUThreshold,
	}
}

// scan is a single window size of the search.
type scan struct {
	scale float64
	size  image.Point
}

// row is a unit of work: one row of windows of a given size.
type row struct {
	scan
	y int
}

// Detect searches the grid for the objects recognized by the cascade
// and returns the merged detections. It returns nil when nothing is found.
func Detect(g Grid, c *Cascade, p DetectParams) []Detection {
	dets, _ := DetectContext(context.Background(), g, c, p)
	return dets
}

// DetectContext is like Detect but stops scanning when the context is done. In that
// case the detections found up to that point are returned together with the context error.
func DetectContext(ctx context.Context, g Grid, c *Cascade, p DetectParams) ([]Detection, error) {
	if c == nil || len(c.Stages) == 0 || g.Empty() {
		return nil, nil
	}
	p = p.withDefaults()

	ii := NewIntegralImage(g)
	var sq *IntegralImage
	if p.MinStdDev > 0 {
		sq = NewSquaredIntegralImage(g)
	}

	scans := p.scans(c.Window, g.Size())
	if len(scans) == 0 {
		return nil, nil
	}

	var (
		wg   sync.WaitGroup
		jobs = make(chan row)
		res  = make(chan []Detection)
		done = ctx.Done()
	)

	wg.Add(p.Workers)
	for i := 0; i < p.Workers; i++ {
		go func() {
			defer wg.Done()
			for r := range jobs {
				res <- scanRow(ii, sq, c, r, p)
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, s := range scans {
			step := p.step(s.size.X)
			for y := 0; y+s.size.Y <= g.Rows; y += step {
				select {
				case <-done:
					return
				case jobs <- row{scan: s, y: y}:
				}
			}
		}
	}()

	go func() {
		defer close(res)
		wg.Wait()
	}()

	var raw []Detection
	for dets := range res {
		raw = append(raw, dets...)
	}
	sortDetections(raw)

	grouped := GroupDetections(raw, p.MinNeighbors, p.IoUThreshold)
	dets := grouped[:0]
	for _, det := range grouped {
		if p.AspectRatio.Contains(det.Rect) {
			dets = append(dets, det)
		}
	}
	if len(dets) == 0 {
		dets = nil
	}
	return dets, ctx.Err()
}

// scanRow slides the window along a single row of the image.
func scanRow(ii, sq *IntegralImage, c *Cascade, r row, p DetectParams) []Detection {
	var dets []Detection
	step := p.step(r.size.X)
	width := ii.Bounds().Dx()

	for x := 0; x+r.size.X <= width; x += step {
		rect := image.Rect(x, r.y, x+r.size.X, r.y+r.size.Y)
		if sq != nil {
			if dev, err := WindowStdDev(ii, sq, rect); err != nil || dev < p.MinStdDev {
				continue
			}
		}
		w := NewWindow(ii, rect.Min, r.scale)
		if ok, depth, score := c.ClassifyScore(w); ok {
			dets = append(dets, Detection{Rect: rect, Neighbors: 1, Depth: depth, Score: score})
		}
	}
	return dets
}

// scans returns the window sizes to search, from the smallest to the largest.
func (p DetectParams) scans(base, bounds image.Point) []scan {
	if base.X <= 0 || base.Y <= 0 {
		return nil
	}

	limit := bounds
	if p.MaxSize.X > 0 {
		limit.X = utils.Min(limit.X, p.MaxSize.X)
	}
	if p.MaxSize.Y > 0 {
		limit.Y = utils.Min(limit.Y, p.MaxSize.Y)
	}

	scale := 1.0
	if p.MinSize.X > 0 || p.MinSize.Y > 0 {
		scale = math.Max(
			float64(p.MinSize.X)/float64(base.X),
			float64(p.MinSize.Y)/float64(base.Y),
		)
	}

	var (
		scans []scan
		prev  image.Point
	)
	factor := p.ScaleFactor
	if !validFactor(factor) || factor <= 1 {
		factor = defaultScaleFactor
	}
	for ; ; scale *= factor {
		// Compare before converting, an overflowing size would wrap around.
		fx, fy := float64(base.X)*scale, float64(base.Y)*scale
		if !(math.Round(fx) <= float64(limit.X)) || !(math.Round(fy) <= float64(limit.Y)) {
			break
		}
		size := image.Pt(
			utils.Max(1, int(math.Round(fx))),
			utils.Max(1, int(math.Round(fy))),
		)
		if size == prev {
			continue
		}
		prev = size
		// The effective scale keeps every feature inside the rounded window.
		eff := math.Min(float64(size.X)/float64(base.X), float64(size.Y)/float64(base.Y))
		scans = append(scans, scan{scale: eff, size: size})
	}
	return scans
}

func (p DetectParams) withDefaults() DetectParams {
	if !validFactor(p.ScaleFactor) || p.ScaleFactor <= 1 {
		p.ScaleFactor = defaultScaleFactor
	}
	if !validFactor(p.ShiftFactor) || p.ShiftFactor <= 0 {
		p.ShiftFactor = defaultShiftFactor
	}
	if !validFactor(p.IoUThreshold) || p.IoUThreshold <= 0 {
		p.IoUThreshold = defaultIoUThreshold
	}
	if p.Workers <= 0 {
		p.Workers = runtime.NumCPU()
	}
	return p
}

// step returns the sliding step of a window of the provided width.
func (p DetectParams) step(width int) int {
	v := math.Round(p.ShiftFactor * float64(width))
	if !(v >= 1) {
		return 1
	}
	// A step wider than the image leaves a single window per row.
	if v > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(v)
}

// validFactor reports whether v is a finite number.
func validFactor(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
