package haar

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeature_DiagonalShouldMatchRegionSum(t *testing.T) {
	ii := NewIntegralImage(randomGrid(12, 10, 7))

	for _, r := range []image.Rectangle{
		image.Rect(0, 0, 10, 12),
		image.Rect(2, 3, 7, 9),
		image.Rect(9, 11, 10, 12),
	} {
		sum, err := ii.Sum(r)
		require.NoError(t, err)

		v, err := Feature{Region: r, Kind: Diagonal}.Value(ii)
		require.NoError(t, err)
		assert.Equal(t, sum, v)

		inv, err := Feature{Region: r, Kind: DiagonalInverse}.Value(ii)
		require.NoError(t, err)
		assert.Equal(t, -v, inv)
	}
}

func TestFeature_ComputeHaarFeatureValue(t *testing.T) {
	assert := assert.New(t)
	ii := NewIntegralImage(uniformGrid(4, 4, 255))

	v, err := ComputeHaarFeatureValue(ii, 0, 0, 4, 4)
	assert.NoError(err)
	assert.Equal(int64(4080), v)

	v, err = ComputeHaarFeatureValue(ii, 1, 1, 2, 2)
	assert.NoError(err)
	assert.Equal(int64(4*255), v)

	for _, tc := range []struct {
		name                string
		x, y, width, height int
	}{
		{"overflow", 0, 0, 5, 4},
		{"negative origin", -1, 0, 2, 2},
		{"zero width", 1, 1, 0, 2},
		{"negative height", 2, 2, 1, -1},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ComputeHaarFeatureValue(ii, tc.x, tc.y, tc.width, tc.height)
			assert.ErrorIs(err, ErrInvalidRegion)
		})
	}
}

func TestFeature_EdgeKinds(t *testing.T) {
	assert := assert.New(t)

	// Left half white, right half black.
	g := NewGrid(2, 4)
	for y := 0; y < 2; y++ {
		g.Set(0, y, 255)
		g.Set(1, y, 255)
	}
	ii := NewIntegralImage(g)

	v, err := Feature{Region: image.Rect(0, 0, 4, 2), Kind: EdgeHorizontal}.Value(ii)
	assert.NoError(err)
	assert.Equal(int64(1020), v)

	v, err = Feature{Region: image.Rect(0, 0, 4, 2), Kind: EdgeVertical}.Value(ii)
	assert.NoError(err)
	assert.Zero(v)

	_, err = Feature{Region: image.Rect(0, 0, 1, 2), Kind: EdgeHorizontal}.Value(ii)
	assert.ErrorIs(err, ErrInvalidRegion)

	_, err = Feature{Region: image.Rect(0, 0, 4, 1), Kind: EdgeVertical}.Value(ii)
	assert.ErrorIs(err, ErrInvalidRegion)
}

func TestFeature_ValueAtShouldNormalizeScale(t *testing.T) {
	assert := assert.New(t)

	ii := NewIntegralImage(uniformGrid(8, 8, 10))
	f := Feature{Region: image.Rect(0, 0, 4, 4), Kind: Diagonal}

	base, err := f.ValueAt(ii, image.Point{}, 1)
	assert.NoError(err)
	assert.Equal(160.0, base)

	scaled, err := f.ValueAt(ii, image.Point{}, 2)
	assert.NoError(err)
	assert.Equal(base, scaled)

	shifted, err := f.ValueAt(ii, image.Pt(4, 4), 1)
	assert.NoError(err)
	assert.Equal(base, shifted)

	_, err = f.ValueAt(ii, image.Pt(6, 6), 1)
	assert.ErrorIs(err, ErrInvalidRegion)
}

func TestFeature_EnumerateFeatures(t *testing.T) {
	assert := assert.New(t)

	features := EnumerateFeatures(image.Pt(2, 2), 1)
	assert.Len(features, 15)
	assert.Equal(Feature{Region: image.Rect(0, 0, 2, 2), Kind: Diagonal}, features[0])

	seen := make(map[Feature]bool)
	bounds := image.Rect(0, 0, 2, 2)
	for _, f := range features {
		assert.False(seen[f], "duplicated feature %v", f)
		seen[f] = true
		assert.True(f.Region.In(bounds))
		assert.True(f.Kind.splittable(f.Region))
	}

	assert.Nil(EnumerateFeatures(image.Pt(0, 4), 1))
	assert.Len(EnumerateFeatures(image.Pt(4, 4), 4), 3)
}

func TestFeature_KindString(t *testing.T) {
	assert.Equal(t, "diagonal", Diagonal.String())
	assert.Equal(t, "edge-vertical", EdgeVertical.String())
	assert.Equal(t, "FeatureKind(9)", FeatureKind(9).String())
}
