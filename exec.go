package haar

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/esimov/haar/utils"
	"golang.org/x/term"
)

// maxWorkers sets the maximum number of concurrently running workers.
const maxWorkers = 20

// Ops holds the options of a command line run: the training sets,
// the boosting and cascade options and the images to search.
type Ops struct {
	Positives, Negatives string
	SampleSize           image.Point
	Rounds               int
	Stages               int
	Policy               PartitionPolicy
	FeatureStep          int
	Equalize             bool

	Src, Dst, PipeName string
	Params             DetectParams
	Color              color.Color
	Workers            int

	Spinner *utils.Spinner
	Logger  *log.Logger
}

// result holds the relevant information about the detection process of a single image.
type result struct {
	path string
	err  error
}

// Execute trains a cascade on the sample directories and runs it over the source,
// which can be an image file, a directory of images, an URL or the stdin pipe.
func (op *Ops) Execute() error {
	op.init()

	// Capture CTRL-C signal and restores back the cursor visibility.
	signalChan := make(chan os.Signal, 1)
	done := make(chan struct{})
	signal.Notify(signalChan, os.Interrupt, syscall.SIGTERM)
	defer func() {
		signal.Stop(signalChan)
		close(done)
	}()
	go op.watchSignals(signalChan, done)

	now := time.Now()
	cascade, err := op.Train()
	if err != nil {
		return err
	}
	op.Logger.Printf("%s %s",
		utils.DecorateText("cascade ready:", utils.StatusMessage),
		utils.DecorateText(fmt.Sprintf("%d stages, %d classifiers in %s",
			len(cascade.Stages), cascade.Len(), utils.FormatTime(time.Since(now))), utils.SuccessMessage),
	)

	if op.Src == "" {
		return nil
	}
	now = time.Now()
	if err := op.detect(cascade); err != nil {
		return err
	}
	op.Logger.Printf("\nExecution time: %s\n", utils.DecorateText(utils.FormatTime(time.Since(now)), utils.SuccessMessage))
	return nil
}

// watchSignals restores the cursor and exits on an interrupt signal.
// It returns when done is closed.
func (op *Ops) watchSignals(sig <-chan os.Signal, done <-chan struct{}) {
	select {
	case <-sig:
		op.Spinner.RestoreCursor()
		os.Exit(1)
	case <-done:
	}
}

// Train loads the sample sets, runs the boosting process and partitions
// the resulting weak classifiers into the cascade stages.
func (op *Ops) Train() (*Cascade, error) {
	op.init()
	op.Spinner.SetMessage(fmt.Sprintf("%s %s",
		utils.DecorateText("⚡ HAAR", utils.StatusMessage),
		utils.DecorateText("⇢ loading the training samples...", utils.DefaultMessage),
	))
	op.Spinner.Start()
	defer op.Spinner.Stop()

	pos, err := LoadSamples(op.Positives, op.SampleSize, op.Workers)
	if err != nil {
		return nil, fmt.Errorf("unable to load the positive samples: %w", err)
	}
	neg, err := LoadSamples(op.Negatives, op.SampleSize, op.Workers)
	if err != nil {
		return nil, fmt.Errorf("unable to load the negative samples: %w", err)
	}
	if op.Equalize {
		for i := range pos {
			pos[i] = EqualizeHist(pos[i])
		}
		for i := range neg {
			neg[i] = EqualizeHist(neg[i])
		}
	}

	rounds := op.Rounds
	if rounds <= 0 {
		rounds = op.Stages
	}
	trainer := &Trainer{Workers: op.Workers}
	if op.FeatureStep > 0 {
		trainer.Candidates = EnumerateFeatures(op.SampleSize, op.FeatureStep)
	}
	trainer.Progress = func(round int, wc WeakClassifier) {
		op.Spinner.SetMessage(fmt.Sprintf("%s %s",
			utils.DecorateText("⚡ HAAR", utils.StatusMessage),
			utils.DecorateText(fmt.Sprintf("⇢ boosting round %d/%d: %v", round+1, rounds, wc), utils.DefaultMessage),
		))
	}

	classifiers, err := trainer.Train(pos, neg, rounds)
	if err != nil {
		return nil, err
	}
	return BuildCascadeWithPolicy(classifiers, op.Stages, op.SampleSize, op.Policy)
}

// init sets the defaults of the unset options.
func (op *Ops) init() {
	if op.Logger == nil {
		op.Logger = log.New(os.Stderr, "", 0)
	}
	if op.Workers <= 0 || op.Workers > maxWorkers {
		op.Workers = utils.Min(runtime.NumCPU(), maxWorkers)
	}
	if op.Spinner == nil {
		op.Spinner = utils.NewSpinner("", 80*time.Millisecond, true)
	}
}

// detect runs the cascade over the source path.
func (op *Ops) detect(c *Cascade) error {
	var (
		fs  os.FileInfo
		err error
	)

	// Check if source path is a local image or URL.
	if utils.IsValidUrl(op.Src) {
		src, err := utils.DownloadImage(op.Src)
		if err != nil {
			return fmt.Errorf("failed to load the source image: %w", err)
		}
		defer os.Remove(src.Name())
		defer src.Close()

		return op.printOpStatus(op.Dst, op.process(c, src, op.Dst))
	}

	// Check if the source is a pipe name or a regular file.
	if op.Src == op.PipeName {
		fs, err = os.Stdin.Stat()
	} else {
		fs, err = os.Stat(op.Src)
	}
	if err != nil {
		return fmt.Errorf("failed to load the source image: %w", err)
	}

	switch mode := fs.Mode(); {
	case mode.IsDir():
		if op.Dst == "" || op.Dst == op.PipeName {
			return errors.New("a destination directory is required when the source is a directory")
		}
		if _, err := os.Stat(op.Dst); err != nil {
			if err := os.Mkdir(op.Dst, 0755); err != nil {
				return fmt.Errorf("unable to create the destination directory: %w", err)
			}
		}

		// Process recursively the image files from the specified directory concurrently.
		ch := make(chan result)
		done := make(chan interface{})
		defer close(done)

		paths, errc := walkDir(done, op.Src, validExtensions)

		var wg sync.WaitGroup
		wg.Add(op.Workers)
		for i := 0; i < op.Workers; i++ {
			go func() {
				defer wg.Done()
				op.consumer(c, op.Dst, ch, done, paths)
			}()
		}

		// Close the channel after the values are consumed.
		go func() {
			defer close(ch)
			wg.Wait()
		}()

		for res := range ch {
			if err := op.printOpStatus(res.path, res.err); err != nil {
				return err
			}
		}
		return <-errc

	case mode.IsRegular() || mode&os.ModeNamedPipe != 0:
		ext := filepath.Ext(op.Dst)
		if op.Dst != "" && op.Dst != op.PipeName && !isValidExtension(ext, validExtensions) {
			return fmt.Errorf("%v file type not supported", ext)
		}
		src, err := op.openSource(op.Src)
		if err != nil {
			return err
		}
		defer src.Close()

		return op.printOpStatus(op.Dst, op.process(c, src, op.Dst))
	}
	return fmt.Errorf("unsupported source: %s", op.Src)
}

// consumer reads the path names from the paths channel and runs the detection over each image.
func (op *Ops) consumer(
	c *Cascade,
	dest string,
	res chan<- result,
	done <-chan interface{},
	paths <-chan string,
) {
	for src := range paths {
		dst := filepath.Join(dest, filepath.Base(src))
		f, err := os.Open(src)
		if err == nil {
			err = op.process(c, f, dst)
			f.Close()
		}

		select {
		case <-done:
			return
		case res <- result{
			path: src,
			err:  err,
		}:
		}
	}
}

// process decodes the source image, searches it and writes the annotated image to out.
// The detections are logged even when no output is requested.
func (op *Ops) process(c *Cascade, r io.Reader, out string) error {
	img, err := decodeImg(r)
	if err != nil {
		return err
	}

	grid := GridFromImage(img)
	if op.Equalize {
		grid = EqualizeHist(grid)
	}
	dets := Detect(grid, c, op.Params)
	for _, det := range dets {
		op.Logger.Printf("%s %s neighbors=%d score=%.4f",
			utils.DecorateText("detection:", utils.StatusMessage),
			utils.FormatRect(det.Rect), det.Neighbors, det.Score,
		)
	}

	if out == "" {
		return nil
	}
	dst, err := op.openDestination(out)
	if err != nil {
		return err
	}
	defer func() {
		if f, ok := dst.(*os.File); ok && f != os.Stdout {
			if err := f.Close(); err != nil {
				op.Logger.Printf("could not close the opened file: %v", err)
			}
		}
	}()

	col := op.Color
	if col == nil {
		col = color.NRGBA{R: 0xff, A: 0xff}
	}
	if err := encodeImg(dst, DrawDetections(img, dets, col, 2)); err != nil {
		if f, ok := dst.(*os.File); ok && f != os.Stdout {
			os.Remove(f.Name())
		}
		return err
	}
	return nil
}

// openSource returns the reader of a source path, which can be the stdin pipe.
func (op *Ops) openSource(in string) (io.ReadCloser, error) {
	if in == op.PipeName {
		if term.IsTerminal(int(os.Stdin.Fd())) {
			return nil, errors.New("`-` should be used with a pipe for stdin")
		}
		return io.NopCloser(os.Stdin), nil
	}
	src, err := os.Open(in)
	if err != nil {
		return nil, fmt.Errorf("unable to open the source file: %w", err)
	}
	return src, nil
}

// openDestination returns the writer of a destination path, which can be the stdout pipe.
func (op *Ops) openDestination(out string) (io.Writer, error) {
	if out == op.PipeName {
		if term.IsTerminal(int(os.Stdout.Fd())) {
			return nil, errors.New("`-` should be used with a pipe for stdout")
		}
		return os.Stdout, nil
	}
	dst, err := os.OpenFile(out, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return nil, fmt.Errorf("unable to create the destination file: %w", err)
	}
	return dst, nil
}

// printOpStatus displays the relevant information about the detection process.
func (op *Ops) printOpStatus(fname string, err error) error {
	if err != nil {
		return fmt.Errorf("%s %w",
			utils.DecorateText("error detecting objects:", utils.ErrorMessage), err)
	}
	if fname != "" && fname != op.PipeName {
		op.Logger.Printf("The annotated image has been saved as: %s",
			utils.DecorateText(filepath.Base(fname), utils.SuccessMessage),
		)
	}
	return nil
}

// walkDir starts a new goroutine to walk the specified directory tree
// in recursive manner and sends the path of each supported file to a new channel.
// It finishes in case the done channel is getting closed.
func walkDir(
	done <-chan interface{},
	src string,
	srcExts []string,
) (<-chan string, <-chan error) {
	pathChan := make(chan string)
	errChan := make(chan error, 1)

	go func() {
		// Close the paths channel after Walk returns.
		defer close(pathChan)

		errChan <- filepath.Walk(src, func(path string, f os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if !f.Mode().IsRegular() || !isValidExtension(filepath.Ext(f.Name()), srcExts) {
				return nil
			}

			select {
			case <-done:
				return errors.New("directory walk cancelled")
			case pathChan <- path:
			}
			return nil
		})
	}()
	return pathChan, errChan
}
