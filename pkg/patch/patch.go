package patch

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

var (
	ErrInvalidShape = errors.New("patch: invalid patch dimensions")
	ErrEmptyIndex   = errors.New("patch: no coordinates supplied")
	ErrInvalidIndex = errors.New("patch: invalid coordinate index")
)

// Size holds the patch extent in pixels. Both dimensions should be odd so
// that a patch centres exactly on its coordinate; even dimensions truncate
// asymmetrically by floor((size-1)/2).
type Size struct {
	Height int
	Width  int
}

func (s Size) validate() error {
	if s.Height < 1 || s.Width < 1 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidShape, s.Height, s.Width)
	}
	return nil
}

// Steps returns the half-extents from a patch centre to its edge.
func (s Size) Steps() (vstep, hstep int) {
	return (s.Height - 1) / 2, (s.Width - 1) / 2
}

// Area is the number of pixels in one patch.
func (s Size) Area() int {
	return s.Height * s.Width
}

// Coords enumerates patch centres against an image shape. Exactly one
// representation is used per extraction call.
type Coords interface {
	Len() int
	at(i, rows, cols int) (r, c int, err error)
}

// Linear indexes pixels by row-major flat offset into the image.
type Linear []int

func (l Linear) Len() int { return len(l) }

func (l Linear) at(i, rows, cols int) (int, int, error) {
	idx := l[i]
	if idx < 0 || idx >= rows*cols {
		return 0, 0, fmt.Errorf("%w: linear index %d outside %dx%d image", ErrInvalidIndex, idx, rows, cols)
	}
	return idx / cols, idx % cols, nil
}

// Points lists explicit (row, col) patch centres.
type Points [][2]int

func (p Points) Len() int { return len(p) }

func (p Points) at(i, _, _ int) (int, int, error) {
	return p[i][0], p[i][1], nil
}

// Extract slices one size patch per coordinate out of img. Patches are
// returned flattened row-major, one []float64 per coordinate, covering
// the window centred on the coordinate: (2*vstep+1)*(2*hstep+1) values,
// which is size.Area() for odd dimensions and one row or column short of
// it for even ones.
//
// Every centre must lie at least (vstep, hstep) inside the image border;
// the hot path does not bounds-check the slice window. SegmentationDriver
// pre-pads its image to satisfy this.
func Extract(img *mat.Dense, coords Coords, size Size) ([][]float64, error) {
	if err := size.validate(); err != nil {
		return nil, err
	}
	if coords == nil {
		return nil, fmt.Errorf("%w: nil coordinate set", ErrInvalidIndex)
	}
	if coords.Len() == 0 {
		return nil, ErrEmptyIndex
	}

	rows, cols := img.Dims()
	vstep, hstep := size.Steps()

	out := make([][]float64, coords.Len())
	for i := range out {
		r, c, err := coords.at(i, rows, cols)
		if err != nil {
			return nil, err
		}
		p := make([]float64, 0, size.Area())
		for pr := r - vstep; pr <= r+vstep; pr++ {
			p = append(p, img.RawRowView(pr)[c-hstep:c+hstep+1]...)
		}
		out[i] = p
	}
	return out, nil
}
