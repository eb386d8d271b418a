package segment

import (
	"errors"
	"fmt"

	"github.com/jedib0t/go-pretty/v6/progress"
	"gonum.org/v1/gonum/mat"

	"mrainet/pkg/patch"
)

var ErrInvalidShape = errors.New("segment: invalid shape")

// Classifier is the downstream model applied per pixel. Predict returns
// one row per feature vector: a single class code, or a per-class
// posterior when the driver is asked to collapse to the maximum
// a-posteriori class.
type Classifier interface {
	Predict(features [][]float64) ([][]float64, error)
}

// Embedder maps patches of one scanner into the learned embedding space.
// *network.Net satisfies this.
type Embedder interface {
	Embed(patches [][]float64, scannerID float64) ([][]float64, error)
}

// Options control one segmentation pass.
type Options struct {
	// FeedThroughNetwork replaces raw patches with their embeddings
	// before classification. Disabling it classifies raw patch pixels,
	// which is for experiments only.
	FeedThroughNetwork bool
	// MapToMaxPosterior collapses per-class posterior rows to the
	// arg-max class code.
	MapToMaxPosterior bool
	ScannerID         float64
}

// Driver segments whole slices with a trained embedding plus an external
// classifier.
type Driver struct {
	Net     Embedder
	Patch   patch.Size
	Classes []float64
}

// Segment classifies every pixel of img and returns a label image of the
// same shape. The image is zero-padded by the patch half-extents first, so
// every pixel is a valid patch centre.
func (d *Driver) Segment(pw progress.Writer, img *mat.Dense, clf Classifier, opts Options) (*mat.Dense, error) {
	if img == nil {
		return nil, fmt.Errorf("%w: nil image", ErrInvalidShape)
	}
	h, w := img.Dims()
	vstep, hstep := d.Patch.Steps()

	padded := pad(img, vstep, hstep)

	coords := make(patch.Points, 0, h*w)
	for r := 0; r < h; r++ {
		for c := 0; c < w; c++ {
			coords = append(coords, [2]int{r + vstep, c + hstep})
		}
	}

	var tracker *progress.Tracker
	if pw != nil {
		tracker = &progress.Tracker{
			Message: "Segmenting image",
			Total:   int64(h * w),
			Units:   progress.UnitsDefault,
		}
		pw.AppendTracker(tracker)
		tracker.Start()
	}

	features, err := patch.Extract(padded, coords, d.Patch)
	if err != nil {
		return nil, err
	}

	if opts.FeedThroughNetwork {
		features, err = d.Net.Embed(features, opts.ScannerID)
		if err != nil {
			return nil, err
		}
	}

	preds, err := clf.Predict(features)
	if err != nil {
		return nil, err
	}
	if len(preds) != h*w {
		return nil, fmt.Errorf("%w: %d predictions for %d pixels", ErrInvalidShape, len(preds), h*w)
	}

	out := mat.NewDense(h, w, nil)
	for i, row := range preds {
		if len(row) == 0 {
			return nil, fmt.Errorf("%w: empty prediction row %d", ErrInvalidShape, i)
		}
		v := row[0]
		if opts.MapToMaxPosterior {
			v = float64(argmax(row)) + minClass(d.Classes)
		}
		out.Set(i/w, i%w, v)
		if tracker != nil {
			tracker.Increment(1)
		}
	}
	if tracker != nil {
		tracker.MarkAsDone()
	}

	return out, nil
}

// pad surrounds img with a zero-filled border of vstep rows and hstep
// columns.
func pad(img *mat.Dense, vstep, hstep int) *mat.Dense {
	h, w := img.Dims()
	out := mat.NewDense(h+2*vstep, w+2*hstep, nil)
	for r := 0; r < h; r++ {
		for c := 0; c < w; c++ {
			out.Set(r+vstep, c+hstep, img.At(r, c))
		}
	}
	return out
}

func argmax(row []float64) int {
	maxIndex := 0
	maxValue := row[0]
	for i, value := range row {
		if value > maxValue {
			maxValue = value
			maxIndex = i
		}
	}
	return maxIndex
}

func minClass(classes []float64) float64 {
	if len(classes) == 0 {
		return 0
	}
	min := classes[0]
	for _, c := range classes[1:] {
		if c < min {
			min = c
		}
	}
	return min
}
