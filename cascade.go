package haar

import (
	"fmt"
	"image"

	"github.com/pkg/errors"
)

// Stage is an ordered sequence of weak classifiers evaluated as a logical AND.
type Stage []WeakClassifier

// Cascade is an ordered sequence of stages. A window is accepted only if it passes
// every stage in order; a rejection at any stage ends the evaluation.
// A cascade must not be modified once built, which makes it safe for concurrent use.
type Cascade struct {
	Stages []Stage
	// Window is the size of the training samples, i.e. the smallest detection window.
	Window image.Point
}

// PartitionPolicy defines what happens with the classifiers left over when the
// number of classifiers is not a multiple of the number of stages.
type PartitionPolicy int

const (
	// DropRemainder discards the leftover classifiers.
	DropRemainder PartitionPolicy = iota
	// MergeRemainder appends the leftover classifiers to the last stage.
	MergeRemainder
)

// BuildCascade partitions the weak classifiers into numStages stages of equal size,
// assigned contiguously in training order. Leftover classifiers are dropped.
func BuildCascade(classifiers []WeakClassifier, numStages int, window image.Point) (*Cascade, error) {
	return BuildCascadeWithPolicy(classifiers, numStages, window, DropRemainder)
}

// BuildCascadeWithPolicy is like BuildCascade, but the leftover classifiers are handled
// according to the provided partition policy.
func BuildCascadeWithPolicy(
	classifiers []WeakClassifier,
	numStages int,
	window image.Point,
	policy PartitionPolicy,
) (*Cascade, error) {
	if numStages <= 0 {
		return nil, fmt.Errorf("%w: %w: %d stages", ErrInvalidPartition, ErrInvalidStageCount, numStages)
	}
	if len(classifiers) < numStages {
		return nil, errors.Wrapf(ErrInvalidPartition,
			"%d classifiers cannot fill %d stages", len(classifiers), numStages)
	}

	perStage := len(classifiers) / numStages
	stages := make([]Stage, numStages)
	for i := range stages {
		stage := make(Stage, perStage)
		copy(stage, classifiers[i*perStage:(i+1)*perStage])
		stages[i] = stage
	}
	if policy == MergeRemainder {
		last := numStages - 1
		stages[last] = append(stages[last], classifiers[numStages*perStage:]...)
	}

	return &Cascade{
		Stages: stages,
		Window: window,
	}, nil
}

// Len returns the total number of weak classifiers in the cascade.
func (c *Cascade) Len() int {
	var n int
	for _, s := range c.Stages {
		n += len(s)
	}
	return n
}

// Classify runs the window through the cascade. It returns whether the window has
// been accepted and the number of stages it passed.
func (c *Cascade) Classify(w Window) (bool, int) {
	ok, depth, _ := c.evaluate(w, nil)
	return ok, depth
}

// ClassifyScore is like Classify, but it also returns the confidence of the decision:
// the sum of the boosting weights of the classifiers the window passed.
func (c *Cascade) ClassifyScore(w Window) (bool, int, float64) {
	return c.evaluate(w, nil)
}

// evaluate is the cascade evaluation loop. The optional probe is called
// before each weak classifier is applied.
func (c *Cascade) evaluate(w Window, probe func(stage, idx int)) (bool, int, float64) {
	var score float64
	for s, stage := range c.Stages {
		for i, wc := range stage {
			if probe != nil {
				probe(s, i)
			}
			if !wc.Passes(w) {
				return false, s, score
			}
			score += wc.Alpha
		}
	}
	return len(c.Stages) > 0, len(c.Stages), score
}
