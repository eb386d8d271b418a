package sample_test

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mrainet/pkg/sample"
)

func testRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed))
}

func TestRowsNoReplacement(t *testing.T) {
	x := make([][2]int, 50)
	for i := range x {
		x[i] = [2]int{i, i * 2}
	}

	drawn, err := sample.Rows(testRand(7), x, 20)
	require.NoError(t, err)
	require.Len(t, drawn, 20)

	seen := map[[2]int]struct{}{}
	for _, row := range drawn {
		_, dup := seen[row]
		assert.False(t, dup, "row %v drawn twice", row)
		seen[row] = struct{}{}
	}
}

func TestRowsInsufficient(t *testing.T) {
	x := [][2]int{{0, 0}, {1, 1}}
	_, err := sample.Rows(testRand(1), x, 3)
	assert.ErrorIs(t, err, sample.ErrInsufficientRows)
}

func TestRowsSeededDeterminism(t *testing.T) {
	x := make([][2]int, 30)
	for i := range x {
		x[i] = [2]int{i, i}
	}

	a, err := sample.Rows(testRand(42), x, 10)
	require.NoError(t, err)
	b, err := sample.Rows(testRand(42), x, 10)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}
