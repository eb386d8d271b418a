package scans

import (
	"encoding/json"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Slice is one 2D MRI slice of a subject together with its (possibly
// partial) label image. Labels hold NaN where the tissue class is unknown.
type Slice struct {
	Scanner string
	Subject string
	Index   int
	Height  int
	Width   int
	Pixels  []float64
	Labels  []float64
}

// Image returns the slice intensities as a dense matrix.
func (s Slice) Image() *mat.Dense {
	return mat.NewDense(s.Height, s.Width, s.Pixels)
}

// LabelMap returns the label image as a dense matrix, NaN where unknown.
func (s Slice) LabelMap() *mat.Dense {
	return mat.NewDense(s.Height, s.Width, s.Labels)
}

func (s Slice) key() []byte {
	return fmt.Appendf([]byte{}, "%s/%s/%06d", s.Scanner, s.Subject, s.Index)
}

// Marshal to an array. JSON has no NaN, so unknown labels serialize as
// null.
func (s Slice) MarshalJSON() ([]byte, error) {
	labels := make([]any, len(s.Labels))
	for i, l := range s.Labels {
		if math.IsNaN(l) {
			labels[i] = nil
		} else {
			labels[i] = l
		}
	}
	return json.Marshal([]any{
		s.Scanner, s.Subject, s.Index,
		s.Height, s.Width,
		s.Pixels, labels,
	})
}

// Unmarshal from an array
func (s *Slice) UnmarshalJSON(data []byte) error {
	var arr [7]json.RawMessage
	if err := json.Unmarshal(data, &arr); err != nil {
		return err
	}

	if err := json.Unmarshal(arr[0], &s.Scanner); err != nil {
		return err
	}
	if err := json.Unmarshal(arr[1], &s.Subject); err != nil {
		return err
	}
	if err := json.Unmarshal(arr[2], &s.Index); err != nil {
		return err
	}
	if err := json.Unmarshal(arr[3], &s.Height); err != nil {
		return err
	}
	if err := json.Unmarshal(arr[4], &s.Width); err != nil {
		return err
	}
	if err := json.Unmarshal(arr[5], &s.Pixels); err != nil {
		return err
	}

	var labels []*float64
	if err := json.Unmarshal(arr[6], &labels); err != nil {
		return err
	}
	s.Labels = make([]float64, len(labels))
	for i, l := range labels {
		if l == nil {
			s.Labels[i] = math.NaN()
		} else {
			s.Labels[i] = *l
		}
	}

	if len(s.Pixels) != s.Height*s.Width || len(s.Labels) != s.Height*s.Width {
		return fmt.Errorf("scans: slice %s/%s/%d has %d pixels and %d labels for shape %dx%d",
			s.Scanner, s.Subject, s.Index, len(s.Pixels), len(s.Labels), s.Height, s.Width)
	}
	return nil
}
