package haar

import "errors"

var (
	// ErrInsufficientData is returned when a training sample set is empty
	// or the samples do not share the same dimensions.
	ErrInsufficientData = errors.New("insufficient training data")

	// ErrInvalidStageCount is returned for a non-positive stage count
	// or a stage count exceeding the available classifiers.
	ErrInvalidStageCount = errors.New("invalid stage count")

	// ErrInvalidRegion is returned when a feature or window rectangle
	// exceeds the bounds of the backing integral image.
	ErrInvalidRegion = errors.New("invalid region")

	// ErrInvalidPartition is returned when a cascade cannot be built with the requested stage count.
	ErrInvalidPartition = errors.New("invalid partition")
)
