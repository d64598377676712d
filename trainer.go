package haar

import (
	"image"
	"math"
	"runtime"
	"sync"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
)

// epsilon keeps the boosting weight finite for perfectly separating classifiers.
const epsilon = 1e-10

// Trainer holds the options of the boosting process.
type Trainer struct {
	// Candidates is the pool of features searched in every boosting round.
	// When empty, a single diagonal feature spanning the whole sample is used.
	Candidates []Feature
	// Workers is the number of goroutines extracting the sample features.
	// It defaults to the number of CPUs.
	Workers int
	// Progress, when set, is called after every boosting round.
	Progress func(round int, wc WeakClassifier)
}

// Train runs the boosting process with the default options.
func Train(positives, negatives []Grid, numStages int) ([]WeakClassifier, error) {
	t := &Trainer{}
	return t.Train(positives, negatives, numStages)
}

// stump is a decision stump fitted over the values of a single feature.
type stump struct {
	threshold float64
	err       float64
}

// Train produces numStages weak classifiers, one per AdaBoost round. Every round fits
// a decision stump on the currently reweighted distribution, so each classifier focuses
// on the samples the previous ones misclassified. All the samples must share the same size.
func (t *Trainer) Train(positives, negatives []Grid, numStages int) ([]WeakClassifier, error) {
	if len(positives) == 0 || len(negatives) == 0 {
		return nil, errors.Wrapf(ErrInsufficientData,
			"got %d positive and %d negative samples", len(positives), len(negatives))
	}
	if numStages <= 0 {
		return nil, errors.Wrapf(ErrInvalidStageCount, "cannot train %d rounds", numStages)
	}

	size := positives[0].Size()
	samples := make([]Grid, 0, len(positives)+len(negatives))
	samples = append(samples, positives...)
	samples = append(samples, negatives...)
	for i, s := range samples {
		if s.Empty() || s.Size() != size || len(s.Pixels) < s.Rows*s.Cols {
			return nil, errors.Wrapf(ErrInsufficientData,
				"sample %d has size %v, expected %v", i, s.Size(), size)
		}
	}

	candidates := t.Candidates
	if len(candidates) == 0 {
		candidates = []Feature{{Region: image.Rect(0, 0, size.X, size.Y), Kind: Diagonal}}
	}
	bounds := image.Rect(0, 0, size.X, size.Y)
	for _, f := range candidates {
		if !f.Region.In(bounds) || f.Region.Empty() || !f.Kind.splittable(f.Region) {
			return nil, errors.Wrapf(ErrInvalidRegion, "candidate %v %v outside of sample %v", f.Kind, f.Region, bounds)
		}
	}

	values, err := t.extract(samples, candidates)
	if err != nil {
		return nil, err
	}

	labels := make([]float64, len(samples))
	weights := make([]float64, len(samples))
	for i := range samples {
		if i < len(positives) {
			labels[i] = 1
			weights[i] = 1 / float64(2*len(positives))
		} else {
			labels[i] = -1
			weights[i] = 1 / float64(2*len(negatives))
		}
	}

	// The sample order along each feature does not depend on the weights.
	orders := make([][]int, len(candidates))
	sorted := make([][]float64, len(candidates))
	for c := range candidates {
		sorted[c] = make([]float64, len(samples))
		orders[c] = make([]int, len(samples))
		copy(sorted[c], values[c])
		floats.Argsort(sorted[c], orders[c])
	}

	classifiers := make([]WeakClassifier, 0, numStages)
	predictions := make([]float64, len(samples))

	for round := 0; round < numStages; round++ {
		floats.Scale(1/floats.Sum(weights), weights)

		best, bestIdx := stump{err: math.Inf(1)}, 0
		for c := range candidates {
			s := fitStump(sorted[c], orders[c], labels, weights)
			if s.err < best.err {
				best, bestIdx = s, c
			}
		}

		wc := calibrate(candidates[bestIdx], best.threshold, values[bestIdx], labels)

		var werr float64
		for i, v := range values[bestIdx] {
			predictions[i] = -1
			if wc.accept(v) {
				predictions[i] = 1
			}
			if predictions[i] != labels[i] {
				werr += weights[i]
			}
		}
		werr = math.Min(math.Max(werr, epsilon), 1-epsilon)
		wc.Alpha = 0.5 * math.Log((1-werr)/werr)

		for i := range weights {
			weights[i] *= math.Exp(-wc.Alpha * labels[i] * predictions[i])
		}

		classifiers = append(classifiers, wc)
		if t.Progress != nil {
			t.Progress(round, wc)
		}
	}
	return classifiers, nil
}

// calibrate turns a fitted split into a weak classifier. The raw rule predicts a positive
// sample for values at or above the threshold; when this rule disagrees with the labels
// more often than it agrees, the polarity is flipped and the threshold negated.
func calibrate(f Feature, threshold float64, values, labels []float64) WeakClassifier {
	var matches, mismatches int
	for i, v := range values {
		pred := -1.0
		if v >= threshold {
			pred = 1
		}
		if pred*labels[i] < 0 {
			mismatches++
		} else {
			matches++
		}
	}

	wc := WeakClassifier{Feature: f, Threshold: threshold, Polarity: 1}
	if mismatches > matches {
		wc.Polarity = -1
		wc.Threshold = -threshold
	}
	return wc
}

// fitStump finds the threshold splitting the sorted values with the lowest weighted
// error, considering both orientations of the split. Thresholds are placed halfway
// between distinct consecutive values, so no sample ever lies on a threshold.
func fitStump(sorted []float64, order []int, labels, weights []float64) stump {
	var totalPos, totalNeg float64
	for i, l := range labels {
		if l > 0 {
			totalPos += weights[i]
		} else {
			totalNeg += weights[i]
		}
	}

	n := len(sorted)
	best := stump{err: math.Inf(1)}

	// belowPos and belowNeg are the weights of the samples under the candidate threshold.
	var belowPos, belowNeg float64
	for k := 0; k <= n; k++ {
		if k > 0 {
			idx := order[k-1]
			if labels[idx] > 0 {
				belowPos += weights[idx]
			} else {
				belowNeg += weights[idx]
			}
		}
		if k > 0 && k < n && sorted[k-1] == sorted[k] {
			continue
		}

		var threshold float64
		switch {
		case k == 0:
			threshold = sorted[0] - 1
		case k == n:
			threshold = sorted[n-1] + 1
		default:
			threshold = (sorted[k-1] + sorted[k]) / 2
		}

		// Positive above the threshold, or positive below it.
		errAbove := belowPos + (totalNeg - belowNeg)
		errBelow := belowNeg + (totalPos - belowPos)
		if e := math.Min(errAbove, errBelow); e < best.err {
			best = stump{threshold: threshold, err: e}
		}
	}
	return best
}

// extract computes the value of every candidate feature over every sample.
// The integral images are built concurrently and released right after extraction.
func (t *Trainer) extract(samples []Grid, features []Feature) ([][]float64, error) {
	values := make([][]float64, len(features))
	for i := range values {
		values[i] = make([]float64, len(samples))
	}
	errs := make([]error, len(samples))

	workers := t.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	var wg sync.WaitGroup
	jobs := make(chan int)

	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for i := range jobs {
				ii := NewIntegralImage(samples[i])
				for f, feature := range features {
					v, err := feature.Value(ii)
					if err != nil {
						errs[i] = err
						break
					}
					values[f][i] = float64(v)
				}
			}
		}()
	}
	for i := range samples {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return values, nil
}
