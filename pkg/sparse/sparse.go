package sparse

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/mat"
)

var ErrInvalidShape = errors.New("sparse: label image is not a 2D matrix")

// Entry is a single labelled pixel: its row, its column and the tissue
// class found there.
type Entry struct {
	Row   int
	Col   int
	Class float64
}

// Map is a dense label image reduced to its labelled pixels. Entries are
// ordered by (row, col) row-major scan order.
type Map []Entry

// Build enumerates the labelled pixels of labels. border[0] rows and
// border[1] columns are cropped from each edge before enumeration. NaN
// entries mark unknown labels and are skipped when excludeUnknown is set.
// A border that swallows the image in either dimension yields an empty map.
func Build(labels *mat.Dense, border [2]int, excludeUnknown bool) (Map, error) {
	if labels == nil {
		return nil, ErrInvalidShape
	}
	h, w := labels.Dims()
	if border[0] < 0 || border[1] < 0 {
		return nil, fmt.Errorf("%w: negative border %v", ErrInvalidShape, border)
	}

	out := make(Map, 0, max(0, h-2*border[0])*max(0, w-2*border[1]))
	for r := border[0]; r < h-border[0]; r++ {
		for c := border[1]; c < w-border[1]; c++ {
			v := labels.At(r, c)
			if excludeUnknown && math.IsNaN(v) {
				continue
			}
			out = append(out, Entry{Row: r, Col: c, Class: v})
		}
	}
	return out, nil
}

// Classes returns the distinct classes in the map, ascending. NaN entries
// are not reported.
func (m Map) Classes() []float64 {
	seen := map[float64]struct{}{}
	out := []float64{}
	for _, e := range m {
		if math.IsNaN(e.Class) {
			continue
		}
		if _, ok := seen[e.Class]; !ok {
			seen[e.Class] = struct{}{}
			out = append(out, e.Class)
		}
	}
	slices.Sort(out)
	return out
}

// OfClass returns the (row, col) coordinates of every entry with class c,
// in map order.
func (m Map) OfClass(c float64) [][2]int {
	out := [][2]int{}
	for _, e := range m {
		if e.Class == c {
			out = append(out, [2]int{e.Row, e.Col})
		}
	}
	return out
}

// Intersect returns the classes present in both maps, ascending.
func (m Map) Intersect(other Map) []float64 {
	theirs := map[float64]struct{}{}
	for _, c := range other.Classes() {
		theirs[c] = struct{}{}
	}
	out := []float64{}
	for _, c := range m.Classes() {
		if _, ok := theirs[c]; ok {
			out = append(out, c)
		}
	}
	return out
}
