package haar

import (
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/esimov/haar/utils"
	"golang.org/x/image/bmp"
)

// validExtensions lists the supported image file types.
var validExtensions = []string{".jpg", ".png", ".jpeg", ".bmp", ".gif"}

// decodeImg decodes an image applying the EXIF orientation, if any.
func decodeImg(r io.Reader) (image.Image, error) {
	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("could not decode the image: %w", err)
	}
	return img, nil
}

// LoadImage opens an image file and returns it as a grayscale grid.
func LoadImage(path string) (Grid, error) {
	ctype, err := utils.DetectContentType(path)
	if err != nil {
		return Grid{}, err
	}
	if !strings.Contains(ctype, "image") {
		return Grid{}, fmt.Errorf("%s is not an image file", path)
	}

	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return Grid{}, fmt.Errorf("could not open the image file: %w", err)
	}
	return GridFromImage(img), nil
}

// sampleResult is the outcome of loading a single training sample.
type sampleResult struct {
	path string
	grid Grid
	err  error
}

// LoadSamples reads every supported image file from the directory tree, resizes
// them to the provided sample size and converts them to grayscale grids.
// The files are processed concurrently; the samples are returned in path order.
func LoadSamples(dir string, size image.Point, workers int) ([]Grid, error) {
	if size.X <= 0 || size.Y <= 0 {
		return nil, fmt.Errorf("invalid sample size %v", size)
	}
	if workers <= 0 || workers > maxWorkers {
		workers = maxWorkers
	}

	done := make(chan interface{})
	defer close(done)

	paths, errc := walkDir(done, dir, validExtensions)
	ch := make(chan sampleResult)

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for path := range paths {
				grid, err := loadSample(path, size)
				select {
				case <-done:
					return
				case ch <- sampleResult{path: path, grid: grid, err: err}:
				}
			}
		}()
	}

	// Close the channel after the values are consumed.
	go func() {
		defer close(ch)
		wg.Wait()
	}()

	var results []sampleResult
	for res := range ch {
		if res.err != nil {
			return nil, fmt.Errorf("unable to load sample %s: %w", res.path, res.err)
		}
		results = append(results, res)
	}
	if err := <-errc; err != nil {
		return nil, err
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].path < results[j].path
	})
	samples := make([]Grid, len(results))
	for i, res := range results {
		samples[i] = res.grid
	}
	return samples, nil
}

// loadSample decodes an image file and resizes it to the sample size.
func loadSample(path string, size image.Point) (Grid, error) {
	f, err := os.Open(path)
	if err != nil {
		return Grid{}, err
	}
	defer f.Close()

	img, err := decodeImg(f)
	if err != nil {
		return Grid{}, err
	}
	if b := img.Bounds(); b.Dx() != size.X || b.Dy() != size.Y {
		img = imaging.Resize(img, size.X, size.Y, imaging.Lanczos)
	}
	return GridFromImage(img), nil
}

// encodeImg encodes an image to a destination of type io.Writer.
// Files are encoded based on their extension, any other writer receives a JPEG.
func encodeImg(w io.Writer, img image.Image) error {
	switch w := w.(type) {
	case *os.File:
		switch filepath.Ext(w.Name()) {
		case "", ".jpg", ".jpeg":
			return jpeg.Encode(w, img, &jpeg.Options{Quality: 100})
		case ".png":
			return png.Encode(w, img)
		case ".bmp":
			return bmp.Encode(w, img)
		default:
			return errors.New("unsupported image format")
		}
	default:
		return jpeg.Encode(w, img, &jpeg.Options{Quality: 100})
	}
}

// isValidExtension checks for the supported extensions.
func isValidExtension(ext string, extensions []string) bool {
	for _, ex := range extensions {
		if strings.EqualFold(ex, ext) {
			return true
		}
	}
	return false
}
