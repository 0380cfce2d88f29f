package domain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sharpPeak(n, at int) []float64 {
	p := make([]float64, n)
	for i := range p {
		p[i] = 0.01
	}
	p[at] = 1
	return p
}

func TestProfileWidth_SharpPeak(t *testing.T) {
	w := ProfileWidth(sharpPeak(17, 8), 100)
	assert.Greater(t, w, 0.0)
	assert.Less(t, w, 2.0)
}

func TestProfileWidth_FlatProfileSpansDomain(t *testing.T) {
	flat := []float64{5, 5, 5, 5, 5, 5, 5, 5, 5}
	w := ProfileWidth(flat, 100)
	assert.InDelta(t, 8.0, w, 1e-9)
}

func TestProfileWidth_ZeroProfileNeverNegative(t *testing.T) {
	w := ProfileWidth(make([]float64, 17), 100)
	assert.True(t, w == WidthUndefined || w >= 0, "width %v", w)
}

func TestProfileWidth_Undefined(t *testing.T) {
	assert.Equal(t, WidthUndefined, ProfileWidth(nil, 100))
	assert.Equal(t, WidthUndefined, ProfileWidth(sharpPeak(17, 8), 1))
	assert.Equal(t, WidthUndefined, ProfileWidth(sharpPeak(17, 8), 0))

	nan := []float64{math.NaN(), math.NaN(), math.NaN(), math.NaN(), math.NaN()}
	assert.Equal(t, WidthUndefined, ProfileWidth(nan, 50))
}

func TestProfileWidth_WiderPeakIsWider(t *testing.T) {
	narrow := sharpPeak(17, 8)
	wide := sharpPeak(17, 8)
	wide[7], wide[9] = 0.95, 0.95

	assert.Greater(t, ProfileWidth(wide, 100), ProfileWidth(narrow, 100))
}

func TestProfileWidth_ShortProfileFallsBackToLinear(t *testing.T) {
	w := ProfileWidth([]float64{0, 1, 0}, 5)
	// Samples at 0, 0.5, 1, 1.5, 2 give 0, .5, 1, .5, 0; only x=1 reaches 0.7.
	assert.Equal(t, WidthUndefined, w)

	w = ProfileWidth([]float64{1, 1}, 3)
	assert.InDelta(t, 1.0, w, 1e-12)
}

func TestCube_ProfileTakesDopplerMax(t *testing.T) {
	c, err := NewCube(1, 2, 3, []float64{
		1, 7, 2,
		4, 0, 5,
	})
	require.NoError(t, err)
	assert.Equal(t, []float64{7, 5}, c.Profile(0))
}

func TestNewCube_SizeMismatch(t *testing.T) {
	_, err := NewCube(2, 2, 2, make([]float64, 7))
	require.Error(t, err)
}

func TestWaveformWidths_PerObservationIndependence(t *testing.T) {
	const a, b = 17, 3
	peak := sharpPeak(a, 8)
	flat := make([]float64, a)
	for i := range flat {
		flat[i] = 2
	}

	data := make([]float64, 0, 2*a*b)
	for _, profile := range [][]float64{flat, peak} {
		for _, v := range profile {
			data = append(data, v, v/2, 0)
		}
	}
	c, err := NewCube(2, a, b, data)
	require.NoError(t, err)

	widths := WaveformWidths(c, 100)
	require.Len(t, widths, 2)
	assert.InDelta(t, 16.0, widths[0], 1e-9)
	assert.Equal(t, ProfileWidth(peak, 100), widths[1])
}

func TestLinspace(t *testing.T) {
	assert.Equal(t, []float64{0, 0.5, 1, 1.5, 2}, linspace(0, 2, 5))
	assert.Equal(t, []float64{3}, linspace(3, 9, 1))
}
