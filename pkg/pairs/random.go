package pairs

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"mrainet/pkg/patch"
	"mrainet/pkg/sample"
	"mrainet/pkg/sparse"
)

// RandomLabelled draws numDraw patches of each class from every slice in
// the stack, keeping patch centres clear of the image border. It returns
// the patches together with their tissue classes, which is the training
// input for the downstream classifier consumed by segmentation.
func (s *Sampler) RandomLabelled(imgs, labelImgs []*mat.Dense, classes []float64, numDraw int) ([][]float64, []float64, error) {
	if len(imgs) != len(labelImgs) {
		return nil, nil, fmt.Errorf("pairs: %d images but %d label images", len(imgs), len(labelImgs))
	}

	vstep, hstep := s.Patch.Steps()

	patches := make([][]float64, 0, len(imgs)*len(classes)*numDraw)
	labels := make([]float64, 0, len(imgs)*len(classes)*numDraw)

	for i := range imgs {
		m, err := sparse.Build(labelImgs[i], [2]int{vstep, hstep}, true)
		if err != nil {
			return nil, nil, err
		}
		for _, class := range classes {
			coords, err := sample.Rows(s.Rand, m.OfClass(class), numDraw)
			if err != nil {
				return nil, nil, fmt.Errorf("%w: slice %d class %g: %v", ErrInsufficientLabels, i, class, err)
			}
			p, err := patch.Extract(imgs[i], patch.Points(coords), s.Patch)
			if err != nil {
				return nil, nil, err
			}
			patches = append(patches, p...)
			for range p {
				labels = append(labels, class)
			}
		}
	}

	return patches, labels, nil
}
