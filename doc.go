/*
Package haar implements a Haar feature based object detector: an integral image,
diagonal and edge Haar features, discrete AdaBoost training of decision stumps,
an attentional cascade and a multi-scale sliding window detector which groups
the overlapping windows into the final detections.

The package provides a command line interface, which trains a cascade from two
directories of positive and negative samples and runs it over an image.
To check the supported commands type:

	$ haar --help

In case you wish to integrate the API in a self constructed environment here is a simple example:

	package main

	import (
		"fmt"
		"image"

		"github.com/esimov/haar"
	)

	func main() {
		pos, _ := haar.LoadSamples("faces", image.Pt(24, 24), 4)
		neg, _ := haar.LoadSamples("background", image.Pt(24, 24), 4)

		classifiers, err := haar.Train(pos, neg, 10)
		if err != nil {
			fmt.Printf("Error training the classifiers: %v", err)
			return
		}
		cascade, _ := haar.BuildCascade(classifiers, 5, image.Pt(24, 24))

		grid, _ := haar.LoadImage("group.jpg")
		for _, det := range haar.Detect(grid, cascade, haar.DefaultDetectParams()) {
			fmt.Println(det.Rect)
		}
	}
*/
package haar
