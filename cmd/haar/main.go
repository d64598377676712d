package main

import (
	"flag"
	"fmt"
	"image"
	"log"
	"os"
	"runtime"
	"time"

	"github.com/esimov/haar"
	"github.com/esimov/haar/utils"
)

const HelpBanner = `
┬ ┬┌─┐┌─┐┬─┐
├─┤├─┤├─┤├┬┘
┴ ┴┴ ┴┴ ┴┴└─

Haar cascade training and object detection.
    Version: %s

`

// pipeName is the file name that indicates stdin/stdout is being used.
const pipeName = "-"

// Version indicates the current build version.
var Version string

var (
	// Flags
	positives   = flag.String("pos", "", "Directory of positive training samples")
	negatives   = flag.String("neg", "", "Directory of negative training samples")
	sampleSize  = flag.Int("size", 24, "Training sample size in pixels")
	rounds      = flag.Int("rounds", 0, "Number of boosting rounds (defaults to the number of stages)")
	stages      = flag.Int("stages", 5, "Number of cascade stages")
	policy      = flag.String("policy", "drop", "Remainder policy of the stage partition: drop or merge")
	featureStep = flag.Int("step", 0, "Feature enumeration step (0 uses the whole sample diagonal feature only)")
	equalize    = flag.Bool("equalize", false, "Equalize the histogram of the samples and the searched images")
	source      = flag.String("in", "", "Source image, directory or URL to search")
	destination = flag.String("out", "", "Destination of the annotated image")
	scaleFactor = flag.Float64("scale", 1.1, "Window scale factor")
	shiftFactor = flag.Float64("shift", 0.1, "Window shift factor")
	neighbors   = flag.Int("neighbors", 3, "Minimum number of neighbors of a grouped detection")
	minSize     = flag.Int("min", 30, "Minimum window size")
	maxSize     = flag.Int("max", 0, "Maximum window size (0 means the image size)")
	aspectMin   = flag.Float64("aspect-min", 0.8, "Minimum width/height ratio of a detection (0 disables the bound)")
	aspectMax   = flag.Float64("aspect-max", 1.2, "Maximum width/height ratio of a detection (0 disables the bound)")
	iou         = flag.Float64("iou", 0.2, "Overlap threshold used for grouping the detections")
	stdDev      = flag.Float64("stddev", 0, "Reject windows with a lower pixel standard deviation")
	workers     = flag.Int("conc", runtime.NumCPU(), "Number of concurrently running workers")
)

func main() {
	log.SetFlags(0)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, HelpBanner, Version)
		flag.PrintDefaults()
	}
	flag.Parse()

	if *positives == "" || *negatives == "" {
		flag.Usage()
		log.Fatal(utils.DecorateText("\nBoth the -pos and -neg sample directories are required!", utils.ErrorMessage))
	}

	var partition haar.PartitionPolicy
	switch *policy {
	case "drop":
		partition = haar.DropRemainder
	case "merge":
		partition = haar.MergeRemainder
	default:
		log.Fatalf(utils.DecorateText("Unknown partition policy: %s", utils.ErrorMessage), *policy)
	}

	params := haar.DefaultDetectParams()
	params.ScaleFactor = *scaleFactor
	params.ShiftFactor = *shiftFactor
	params.MinNeighbors = *neighbors
	params.MinSize = image.Pt(*minSize, *minSize)
	if *maxSize > 0 {
		params.MaxSize = image.Pt(*maxSize, *maxSize)
	}
	params.AspectRatio = haar.AspectRange{Min: *aspectMin, Max: *aspectMax}
	params.IoUThreshold = *iou
	params.MinStdDev = *stdDev
	params.Workers = *workers

	op := &haar.Ops{
		Positives:   *positives,
		Negatives:   *negatives,
		SampleSize:  image.Pt(*sampleSize, *sampleSize),
		Rounds:      *rounds,
		Stages:      *stages,
		Policy:      partition,
		FeatureStep: *featureStep,
		Equalize:    *equalize,
		Src:         *source,
		Dst:         *destination,
		PipeName:    pipeName,
		Params:      params,
		Workers:     *workers,
		Spinner:     utils.NewSpinner("", time.Millisecond*100, true),
	}
	if err := op.Execute(); err != nil {
		log.Fatal(err)
	}
}
