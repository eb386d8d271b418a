package patch_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"mrainet/pkg/patch"
)

func gradientImage(h, w int) *mat.Dense {
	img := mat.NewDense(h, w, nil)
	for r := 0; r < h; r++ {
		for c := 0; c < w; c++ {
			img.Set(r, c, float64(r*w+c))
		}
	}
	return img
}

func TestExtractShapeAndCenter(t *testing.T) {
	img := gradientImage(10, 12)
	size := patch.Size{Height: 3, Width: 5}
	coords := patch.Points{{3, 4}, {5, 6}, {8, 9}}

	patches, err := patch.Extract(img, coords, size)
	require.NoError(t, err)
	require.Len(t, patches, coords.Len())

	vstep, hstep := size.Steps()
	for i, p := range patches {
		require.Len(t, p, size.Area())
		center := p[vstep*size.Width+hstep]
		assert.Equal(t, img.At(coords[i][0], coords[i][1]), center)
	}
}

func TestExtractLinearMatchesPoints(t *testing.T) {
	img := gradientImage(9, 9)
	size := patch.Size{Height: 3, Width: 3}

	fromPoints, err := patch.Extract(img, patch.Points{{4, 5}}, size)
	require.NoError(t, err)
	fromLinear, err := patch.Extract(img, patch.Linear{4*9 + 5}, size)
	require.NoError(t, err)

	assert.Equal(t, fromPoints, fromLinear)
}

func TestExtractPatchContent(t *testing.T) {
	img := gradientImage(5, 5)
	patches, err := patch.Extract(img, patch.Points{{2, 2}}, patch.Size{Height: 3, Width: 3})
	require.NoError(t, err)
	assert.Equal(t, []float64{
		6, 7, 8,
		11, 12, 13,
		16, 17, 18,
	}, patches[0])
}

func TestExtractEvenSizeTruncates(t *testing.T) {
	img := gradientImage(8, 8)

	// even dimensions keep only the window centred on the coordinate
	patches, err := patch.Extract(img, patch.Points{{4, 4}}, patch.Size{Height: 4, Width: 4})
	require.NoError(t, err)
	require.Len(t, patches[0], 3*3)
	assert.Equal(t, img.At(4, 4), patches[0][4])
}

func TestExtractErrors(t *testing.T) {
	img := gradientImage(6, 6)
	size := patch.Size{Height: 3, Width: 3}

	_, err := patch.Extract(img, patch.Points{}, size)
	assert.ErrorIs(t, err, patch.ErrEmptyIndex)

	_, err = patch.Extract(img, nil, size)
	assert.ErrorIs(t, err, patch.ErrInvalidIndex)

	_, err = patch.Extract(img, patch.Linear{36}, size)
	assert.ErrorIs(t, err, patch.ErrInvalidIndex)

	_, err = patch.Extract(img, patch.Points{{3, 3}}, patch.Size{Height: 0, Width: 3})
	assert.ErrorIs(t, err, patch.ErrInvalidShape)
}
