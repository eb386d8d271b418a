package sparse_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"mrainet/pkg/sparse"
)

func TestBuildEmitsEveryPixel(t *testing.T) {
	labels := mat.NewDense(4, 5, []float64{
		1, 1, 2, 2, 3,
		1, 2, 2, 3, 3,
		3, 3, 1, 1, 2,
		2, 1, 3, 2, 1,
	})

	m, err := sparse.Build(labels, [2]int{0, 0}, true)
	require.NoError(t, err)
	require.Len(t, m, 4*5)

	// row-major scan order, class multiset preserved
	counts := map[float64]int{}
	prev := sparse.Entry{Row: -1, Col: -1}
	for _, e := range m {
		assert.Equal(t, labels.At(e.Row, e.Col), e.Class)
		assert.True(t, e.Row > prev.Row || (e.Row == prev.Row && e.Col > prev.Col),
			"entries must be in row-major order")
		prev = e
		counts[e.Class]++
	}
	assert.Equal(t, map[float64]int{1: 7, 2: 7, 3: 6}, counts)
}

func TestBuildBorderExclusion(t *testing.T) {
	labels := mat.NewDense(6, 6, nil)
	for r := 0; r < 6; r++ {
		for c := 0; c < 6; c++ {
			labels.Set(r, c, 1)
		}
	}

	m, err := sparse.Build(labels, [2]int{2, 1}, true)
	require.NoError(t, err)
	require.Len(t, m, 2*4)
	for _, e := range m {
		assert.GreaterOrEqual(t, e.Row, 2)
		assert.Less(t, e.Row, 4)
		assert.GreaterOrEqual(t, e.Col, 1)
		assert.Less(t, e.Col, 5)
	}
}

func TestBuildExcludesUnknown(t *testing.T) {
	nan := math.NaN()
	labels := mat.NewDense(2, 3, []float64{
		1, nan, 2,
		nan, 3, nan,
	})

	m, err := sparse.Build(labels, [2]int{0, 0}, true)
	require.NoError(t, err)
	assert.Equal(t, sparse.Map{
		{Row: 0, Col: 0, Class: 1},
		{Row: 0, Col: 2, Class: 2},
		{Row: 1, Col: 1, Class: 3},
	}, m)

	kept, err := sparse.Build(labels, [2]int{0, 0}, false)
	require.NoError(t, err)
	assert.Len(t, kept, 6)
}

func TestBuildBorderSwallowsImage(t *testing.T) {
	labels := mat.NewDense(4, 4, nil)

	// oversized in one dimension only
	m, err := sparse.Build(labels, [2]int{3, 0}, true)
	require.NoError(t, err)
	assert.Empty(t, m)

	m, err = sparse.Build(labels, [2]int{0, 3}, true)
	require.NoError(t, err)
	assert.Empty(t, m)

	m, err = sparse.Build(labels, [2]int{5, 5}, true)
	require.NoError(t, err)
	assert.Empty(t, m)
}

func TestBuildInvalidShape(t *testing.T) {
	_, err := sparse.Build(nil, [2]int{0, 0}, true)
	assert.ErrorIs(t, err, sparse.ErrInvalidShape)

	labels := mat.NewDense(2, 2, nil)
	_, err = sparse.Build(labels, [2]int{-1, 0}, true)
	assert.ErrorIs(t, err, sparse.ErrInvalidShape)
}

func TestClassesAndIntersect(t *testing.T) {
	a := sparse.Map{{0, 0, 3}, {0, 1, 1}, {1, 0, 2}, {1, 1, 1}}
	b := sparse.Map{{0, 0, 2}, {0, 1, 4}, {1, 0, 3}}

	assert.Equal(t, []float64{1, 2, 3}, a.Classes())
	assert.Equal(t, []float64{2, 3}, a.Intersect(b))
	assert.Equal(t, [][2]int{{0, 1}, {1, 1}}, a.OfClass(1))
}
