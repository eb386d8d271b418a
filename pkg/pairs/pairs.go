package pairs

import (
	"errors"
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"mrainet/pkg/patch"
	"mrainet/pkg/sample"
	"mrainet/pkg/sparse"
)

var ErrInsufficientLabels = errors.New("pairs: insufficient labels")

const (
	// Scanner identity tags fed to the network alongside each patch.
	ScannerSource = 0.0
	ScannerTarget = 1.0
)

// Batch holds paired patches ready for contrastive training. The five
// sequences always have equal length: A[i] and B[i] are the two patches of
// pair i, ScannerA[i]/ScannerB[i] tag which acquisition each came from, and
// S[i] is 1 for a same-class pair and 0 for a cross-class pair.
type Batch struct {
	A        [][]float64
	B        [][]float64
	ScannerA []float64
	ScannerB []float64
	S        []float64
}

func (b *Batch) Len() int { return len(b.S) }

// Similar reports how many pairs carry similarity label 1.
func (b *Batch) Similar() int {
	n := 0
	for _, s := range b.S {
		if s == 1 {
			n++
		}
	}
	return n
}

// Sampler draws balanced pair batches from two labelled slices.
type Sampler struct {
	Patch patch.Size
	Rand  *rand.Rand
}

// Sample builds a pair batch from a source and a target slice. For every
// class present in both label maps it draws nSrc source and nTgt target
// coordinates and emits all source-source, source-target and target-target
// combinations as similar pairs, then repeats the three combination groups
// against a fresh draw from every other shared class as dissimilar pairs.
//
// Draw counts are quadratic in batch size per class pair; keep them small.
func (s *Sampler) Sample(srcImg *mat.Dense, srcLabels sparse.Map, tgtImg *mat.Dense, tgtLabels sparse.Map, nSrc, nTgt int) (*Batch, error) {
	if nSrc > len(srcLabels) || nTgt > len(tgtLabels) {
		return nil, fmt.Errorf("%w: draw counts (%d, %d) exceed label counts (%d, %d)",
			ErrInsufficientLabels, nSrc, nTgt, len(srcLabels), len(tgtLabels))
	}

	classes := srcLabels.Intersect(tgtLabels)
	batch := &Batch{}

	for _, class := range classes {
		srcK, err := s.draw(srcLabels, class, nSrc)
		if err != nil {
			return nil, err
		}
		tgtK, err := s.draw(tgtLabels, class, nTgt)
		if err != nil {
			return nil, err
		}

		// same-class combinations, within and across scanners
		if err := s.emit(batch, group{srcImg, srcK, ScannerSource}, group{srcImg, srcK, ScannerSource}, 1); err != nil {
			return nil, err
		}
		if err := s.emit(batch, group{srcImg, srcK, ScannerSource}, group{tgtImg, tgtK, ScannerTarget}, 1); err != nil {
			return nil, err
		}
		if err := s.emit(batch, group{tgtImg, tgtK, ScannerTarget}, group{tgtImg, tgtK, ScannerTarget}, 1); err != nil {
			return nil, err
		}

		for _, other := range classes {
			if other == class {
				continue
			}
			srcL, err := s.draw(srcLabels, other, nSrc)
			if err != nil {
				return nil, err
			}
			tgtL, err := s.draw(tgtLabels, other, nTgt)
			if err != nil {
				return nil, err
			}

			if err := s.emit(batch, group{srcImg, srcK, ScannerSource}, group{srcImg, srcL, ScannerSource}, 0); err != nil {
				return nil, err
			}
			if err := s.emit(batch, group{srcImg, srcK, ScannerSource}, group{tgtImg, tgtL, ScannerTarget}, 0); err != nil {
				return nil, err
			}
			if err := s.emit(batch, group{tgtImg, tgtK, ScannerTarget}, group{tgtImg, tgtL, ScannerTarget}, 0); err != nil {
				return nil, err
			}
		}
	}

	return batch, nil
}

func (s *Sampler) draw(labels sparse.Map, class float64, n int) ([][2]int, error) {
	coords, err := sample.Rows(s.Rand, labels.OfClass(class), n)
	if err != nil {
		return nil, fmt.Errorf("%w: class %g: %v", ErrInsufficientLabels, class, err)
	}
	return coords, nil
}

type group struct {
	img     *mat.Dense
	coords  [][2]int
	scanner float64
}

// emit appends the full Cartesian product of ga.coords x gb.coords to the
// batch, extracting patch content immediately so the index combinations
// need not be retained.
func (s *Sampler) emit(b *Batch, ga, gb group, similarity float64) error {
	n := len(ga.coords) * len(gb.coords)
	combsA := make(patch.Points, 0, n)
	combsB := make(patch.Points, 0, n)
	for _, p := range ga.coords {
		for _, q := range gb.coords {
			combsA = append(combsA, p)
			combsB = append(combsB, q)
		}
	}

	pa, err := patch.Extract(ga.img, combsA, s.Patch)
	if err != nil {
		return err
	}
	pb, err := patch.Extract(gb.img, combsB, s.Patch)
	if err != nil {
		return err
	}

	b.A = append(b.A, pa...)
	b.B = append(b.B, pb...)
	for range pa {
		b.ScannerA = append(b.ScannerA, ga.scanner)
		b.ScannerB = append(b.ScannerB, gb.scanner)
		b.S = append(b.S, similarity)
	}
	return nil
}
