package pairs_test

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"mrainet/pkg/pairs"
	"mrainet/pkg/patch"
	"mrainet/pkg/sparse"
)

// classImage builds a 10x10 image whose pixel values equal the tissue
// class laid out in three horizontal bands. Using the class value as pixel
// intensity lets tests recover the class of a sampled patch from its
// content.
func classImage() *mat.Dense {
	img := mat.NewDense(10, 10, nil)
	for r := 0; r < 10; r++ {
		class := float64(1 + r/4)
		if class > 3 {
			class = 3
		}
		for c := 0; c < 10; c++ {
			img.Set(r, c, class)
		}
	}
	return img
}

func testSampler(size patch.Size) *pairs.Sampler {
	return &pairs.Sampler{
		Patch: size,
		Rand:  rand.New(rand.NewPCG(99, 99)),
	}
}

func buildMaps(t *testing.T) (*mat.Dense, sparse.Map, *mat.Dense, sparse.Map) {
	t.Helper()
	src, tgt := classImage(), classImage()
	srcMap, err := sparse.Build(src, [2]int{0, 0}, true)
	require.NoError(t, err)
	tgtMap, err := sparse.Build(tgt, [2]int{0, 0}, true)
	require.NoError(t, err)
	return src, srcMap, tgt, tgtMap
}

func TestSampleBatchInvariant(t *testing.T) {
	src, srcMap, tgt, tgtMap := buildMaps(t)

	batch, err := testSampler(patch.Size{Height: 1, Width: 1}).Sample(src, srcMap, tgt, tgtMap, 2, 1)
	require.NoError(t, err)

	n := batch.Len()
	require.Positive(t, n)
	assert.Len(t, batch.A, n)
	assert.Len(t, batch.B, n)
	assert.Len(t, batch.ScannerA, n)
	assert.Len(t, batch.ScannerB, n)
	for _, s := range batch.S {
		assert.Contains(t, []float64{0, 1}, s)
	}
}

func TestSampleBalancedCounts(t *testing.T) {
	src, srcMap, tgt, tgtMap := buildMaps(t)

	// 3 shared classes, nSrc=2, nTgt=1: each class contributes
	// 4+2+1 similar pairs, each ordered class pair 4+2+1 dissimilar.
	batch, err := testSampler(patch.Size{Height: 1, Width: 1}).Sample(src, srcMap, tgt, tgtMap, 2, 1)
	require.NoError(t, err)

	similar := batch.Similar()
	assert.Equal(t, 3*(4+2+1), similar)
	assert.Equal(t, 3*2*(4+2+1), batch.Len()-similar)
}

func TestSampleSimilarityCorrectness(t *testing.T) {
	src, srcMap, tgt, tgtMap := buildMaps(t)

	// 1x1 patches: a patch's sole pixel is its coordinate's class.
	batch, err := testSampler(patch.Size{Height: 1, Width: 1}).Sample(src, srcMap, tgt, tgtMap, 3, 2)
	require.NoError(t, err)

	for i, s := range batch.S {
		classA, classB := batch.A[i][0], batch.B[i][0]
		if s == 1 {
			assert.Equal(t, classA, classB, "similar pair %d spans classes", i)
		} else {
			assert.NotEqual(t, classA, classB, "dissimilar pair %d shares a class", i)
		}
	}
}

func TestSampleScannerTags(t *testing.T) {
	src, srcMap, tgt, tgtMap := buildMaps(t)

	batch, err := testSampler(patch.Size{Height: 1, Width: 1}).Sample(src, srcMap, tgt, tgtMap, 2, 2)
	require.NoError(t, err)

	for i := range batch.S {
		a, b := batch.ScannerA[i], batch.ScannerB[i]
		assert.Contains(t, []float64{pairs.ScannerSource, pairs.ScannerTarget}, a)
		assert.Contains(t, []float64{pairs.ScannerSource, pairs.ScannerTarget}, b)
		// target-source ordering never occurs: groups are emitted as
		// source-source, source-target, target-target
		assert.False(t, a == pairs.ScannerTarget && b == pairs.ScannerSource)
	}
}

func TestSampleInsufficientLabels(t *testing.T) {
	src, srcMap, tgt, tgtMap := buildMaps(t)

	_, err := testSampler(patch.Size{Height: 1, Width: 1}).Sample(src, srcMap, tgt, tgtMap, 2, len(tgtMap)+1)
	assert.ErrorIs(t, err, pairs.ErrInsufficientLabels)

	// per-class shortfall: class 2 has 40 pixels, ask for more
	_, err = testSampler(patch.Size{Height: 1, Width: 1}).Sample(src, srcMap, tgt, tgtMap, 41, 1)
	assert.ErrorIs(t, err, pairs.ErrInsufficientLabels)
}

func TestSampleDegenerateSingleClass(t *testing.T) {
	src := classImage()
	tgt := mat.NewDense(10, 10, nil)
	for r := 0; r < 10; r++ {
		for c := 0; c < 10; c++ {
			tgt.Set(r, c, 2) // only class 2
		}
	}
	srcMap, err := sparse.Build(src, [2]int{0, 0}, true)
	require.NoError(t, err)
	tgtMap, err := sparse.Build(tgt, [2]int{0, 0}, true)
	require.NoError(t, err)

	batch, err := testSampler(patch.Size{Height: 1, Width: 1}).Sample(src, srcMap, tgt, tgtMap, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, batch.Len(), batch.Similar(), "single shared class must yield no dissimilar pairs")
	assert.Positive(t, batch.Len())
}

func TestRandomLabelled(t *testing.T) {
	img := classImage()
	labels := classImage()

	s := testSampler(patch.Size{Height: 3, Width: 3})
	patches, classes, err := s.RandomLabelled([]*mat.Dense{img}, []*mat.Dense{labels}, []float64{1, 2, 3}, 4)
	require.NoError(t, err)
	require.Len(t, patches, 3*4)
	require.Len(t, classes, 3*4)

	for i, p := range patches {
		require.Len(t, p, 9)
		assert.Equal(t, classes[i], p[4], "centre pixel must match the drawn class")
		assert.False(t, math.IsNaN(classes[i]))
	}
}
