package network

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorgonia.org/tensor"

	"mrainet/pkg/pairs"
)

func testParams() Params {
	return Params{
		PatchHeight:     7,
		PatchWidth:      7,
		Classes:         []float64{1, 2, 3},
		NumKernels:      []int{4},
		KernelSizes:     [][2]int{{3, 3}},
		DenseSizes:      []int{8},
		EmbeddingSize:   2,
		DropoutRate:     0.1,
		L2Penalty:       0.001,
		Margin:          1,
		LearnRate:       0.001,
		BatchSize:       8,
		Epochs:          1,
		ValidationSplit: 0.1,
	}
}

func TestConvOutput(t *testing.T) {
	p := testParams()
	h, w, ch := p.convOutput()
	// 7 -> valid 3x3 conv -> 5 -> valid 2x2 pool -> 2
	assert.Equal(t, 2, h)
	assert.Equal(t, 2, w)
	assert.Equal(t, 4, ch)

	p.PatchHeight, p.PatchWidth = 31, 31
	h, w, _ = p.convOutput()
	assert.Equal(t, 14, h)
	assert.Equal(t, 14, w)
}

func TestInitWeightShapes(t *testing.T) {
	p := testParams()
	ws := initWeights(p)
	require.Len(t, ws, 3)

	assert.True(t, ws[0].Shape().Eq(tensor.Shape{4, 1, 3, 3}))
	// flattened conv output 4*2*2 plus the scanner-id scalar
	assert.True(t, ws[1].Shape().Eq(tensor.Shape{17, 8}))
	assert.True(t, ws[2].Shape().Eq(tensor.Shape{8, 2}))
}

func TestNewValidation(t *testing.T) {
	p := testParams()
	p.PatchHeight = 0
	_, err := New(p)
	assert.Error(t, err)

	p = testParams()
	p.DenseSizes = nil
	_, err = New(p)
	assert.Error(t, err)

	p = testParams()
	p.KernelSizes = [][2]int{{3, 3}, {3, 3}}
	_, err = New(p)
	assert.Error(t, err)

	p = testParams()
	p.PatchHeight, p.PatchWidth = 3, 3
	p.KernelSizes = [][2]int{{3, 3}}
	_, err = New(p)
	assert.Error(t, err, "conv stack must not collapse the patch to nothing")

	p = testParams()
	p.DistanceNorm = "l3"
	_, err = New(p)
	assert.Error(t, err)
}

func TestDistanceNormAccepted(t *testing.T) {
	for _, norm := range []string{"", NormL1, NormL2} {
		p := testParams()
		p.DistanceNorm = norm
		_, err := New(p)
		assert.NoError(t, err, "norm %q", norm)
	}
}

func normBatch(area int) *pairs.Batch {
	a := make([]float64, area)
	b := make([]float64, area)
	for i := range a {
		a[i] = float64(i) / float64(area)
		b[i] = 1 - a[i]
	}
	return &pairs.Batch{
		A:        [][]float64{a, b},
		B:        [][]float64{b, a},
		ScannerA: []float64{0, 0},
		ScannerB: []float64{1, 1},
		S:        []float64{1, 0},
	}
}

func TestDistanceNormL2(t *testing.T) {
	p := testParams()
	p.EmbeddingSize = 1

	l1, err := New(p)
	require.NoError(t, err)
	p.DistanceNorm = NormL2
	l2, err := New(p)
	require.NoError(t, err)
	l2.weights = l1.weights

	batch := normBatch(p.PatchHeight * p.PatchWidth)
	dl1, err := l1.Forward(batch)
	require.NoError(t, err)
	dl2, err := l2.Forward(batch)
	require.NoError(t, err)

	// both norms reduce to |a-b| on a one-dimensional embedding
	require.Len(t, dl2, batch.Len())
	for i := range dl1 {
		assert.InDelta(t, dl1[i], dl2[i], 1e-9)
	}
}

func TestDistanceNormL2Embedded(t *testing.T) {
	p := testParams()

	l1, err := New(p)
	require.NoError(t, err)
	p.DistanceNorm = NormL2
	l2, err := New(p)
	require.NoError(t, err)
	l2.weights = l1.weights

	batch := normBatch(p.PatchHeight * p.PatchWidth)
	dl1, err := l1.Forward(batch)
	require.NoError(t, err)
	dl2, err := l2.Forward(batch)
	require.NoError(t, err)

	// the L2 norm never exceeds the L1 norm of the same difference
	for i := range dl1 {
		assert.GreaterOrEqual(t, dl2[i], 0.0)
		assert.LessOrEqual(t, dl2[i], dl1[i]+1e-9)
	}
}

func TestFitOptionsDefaults(t *testing.T) {
	n, err := New(testParams())
	require.NoError(t, err)

	o := n.fitOptions(FitOptions{})
	assert.Equal(t, 1, o.Epochs)
	assert.Equal(t, 8, o.BatchSize)
	assert.InDelta(t, 0.1, o.ValidationSplit, 1e-12)

	o = n.fitOptions(FitOptions{Epochs: 3, BatchSize: 4, ValidationSplit: 0.2})
	assert.Equal(t, 3, o.Epochs)
	assert.Equal(t, 4, o.BatchSize)
	assert.InDelta(t, 0.2, o.ValidationSplit, 1e-12)

	// NoValidation holds out nothing rather than falling back to params
	o = n.fitOptions(FitOptions{ValidationSplit: NoValidation})
	assert.Zero(t, o.ValidationSplit)
}
