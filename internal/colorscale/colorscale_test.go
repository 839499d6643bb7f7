package colorscale

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeismicAnchors(t *testing.T) {
	assert.Equal(t, "#00004c", Seismic(-1))
	assert.Equal(t, "#6e8bc6", Seismic(-0.5))
	assert.Equal(t, "#ffffff", Seismic(0))
	assert.Equal(t, "#d68383", Seismic(0.5))
	assert.Equal(t, "#800000", Seismic(1))
}

func TestSeismicInterpolatesWithinSegment(t *testing.T) {
	// x = 0.125, halfway between deep blue and light blue
	assert.Equal(t, "#374689", Seismic(-0.75))
}

func TestSeismicClampsOutOfRange(t *testing.T) {
	for _, v := range []float64{-1.0001, -3, -1e9, 1.0001, 2.5, 1e12} {
		clamped := math.Max(-1, math.Min(1, v))
		assert.Equal(t, Seismic(clamped), Seismic(v), "v=%v", v)
	}
}

func TestNonFiniteIsNeutral(t *testing.T) {
	q := NewQuantile([]float64{1, 2, 3}, 3)
	for _, v := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		assert.Equal(t, Neutral, Seismic(v))
		assert.Equal(t, Neutral, q.Color(v))
		assert.Equal(t, -1, q.Bucket(v))
	}
}

func TestQuantileEmptyIsConstantNeutral(t *testing.T) {
	for _, n := range []int{0, 1, 7, 12} {
		q := NewQuantile(nil, n)
		for _, v := range []float64{-10, 0, 0.5, 1e6} {
			assert.Equal(t, Neutral, q.Color(v))
		}
	}
	q := NewQuantile([]float64{math.NaN(), math.Inf(1)}, 7)
	assert.Equal(t, Neutral, q.Color(3))
}

func TestQuantileBreakpoints(t *testing.T) {
	q := NewQuantile([]float64{8, 3, 1, 5, 2, 7, 4, 6}, 7)
	require.Equal(t, []float64{1, 2, 3, 4, 5, 6, 7, 8}, q.Breaks())

	assert.Equal(t, 0, q.Bucket(-5))
	assert.Equal(t, 0, q.Bucket(1))
	assert.Equal(t, 0, q.Bucket(2))
	assert.Equal(t, 1, q.Bucket(2.5))
	assert.Equal(t, 6, q.Bucket(8))
	assert.Equal(t, 6, q.Bucket(100))
	assert.Equal(t, Palette[6], q.Color(100))
	assert.Equal(t, Palette[0], q.Color(1))
}

func TestQuantileDefaultBucketCount(t *testing.T) {
	q := NewQuantile([]float64{1, 2, 3, 4, 5, 6, 7, 8}, 0)
	assert.Len(t, q.Breaks(), DefaultBuckets+1)
}

func TestQuantilePaletteWrapsToLastColor(t *testing.T) {
	vals := make([]float64, 0, 11)
	for i := 1; i <= 11; i++ {
		vals = append(vals, float64(i))
	}
	q := NewQuantile(vals, 10)
	assert.Equal(t, 9, q.Bucket(11))
	assert.Equal(t, Palette[len(Palette)-1], q.Color(11))
}

func TestQuantileMonotonic(t *testing.T) {
	samples := []float64{0.3, -2, 5, 5, 5, 11, 0, 7.25, -0.5, 3, 9, 1e3}
	q := NewQuantile(samples, 7)
	probes := []float64{-1e6, -3, -2, -1, -0.5, 0, 0.1, 0.3, 1, 3, 4.99, 5, 6, 7.25, 8, 9, 10, 11, 999, 1e3, 1e7}
	for i := 1; i < len(probes); i++ {
		assert.LessOrEqual(t, q.Bucket(probes[i-1]), q.Bucket(probes[i]), "a=%v b=%v", probes[i-1], probes[i])
	}
}

func TestDivergingSwatches(t *testing.T) {
	sw := DivergingSwatches(9)
	require.Len(t, sw, 9)
	assert.Equal(t, Seismic(-1), sw[0])
	assert.Equal(t, Seismic(0), sw[4])
	assert.Equal(t, Seismic(1), sw[8])
}
