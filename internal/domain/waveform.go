package domain

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/interp"
)

// WidthUndefined is emitted when fewer than two resampled points reach the
// threshold. It is a sentinel, not a physical width.
const WidthUndefined = -1.0

// halfPowerFraction is the share of the interpolated peak a point must reach
// to count towards the width.
const halfPowerFraction = 0.7

// Cube is a dense [N][A][B] block of float64 values stored row-major.
// For DDMs, N is the observation, A the delay bin and B the Doppler bin.
type Cube struct {
	N, A, B int
	Data    []float64
}

// NewCube wraps data as an N×A×B cube.
func NewCube(n, a, b int, data []float64) (Cube, error) {
	if n < 0 || a < 0 || b < 0 || len(data) != n*a*b {
		return Cube{}, fmt.Errorf("cube %dx%dx%d does not match %d values", n, a, b, len(data))
	}
	return Cube{N: n, A: a, B: b, Data: data}, nil
}

// Row returns the B values at (n, a).
func (c Cube) Row(n, a int) []float64 {
	off := (n*c.A + a) * c.B
	return c.Data[off : off+c.B]
}

// Profile reduces observation n to its per-delay peak: for every row a the
// maximum over the Doppler axis.
func (c Cube) Profile(n int) []float64 {
	profile := make([]float64, c.A)
	if c.B == 0 {
		return profile
	}
	for a := 0; a < c.A; a++ {
		profile[a] = floats.Max(c.Row(n, a))
	}
	return profile
}

// WaveformWidths returns one half-power width per observation of the cube,
// each computed independently with resolution k.
func WaveformWidths(c Cube, k int) []float64 {
	widths := make([]float64, c.N)
	for n := 0; n < c.N; n++ {
		widths[n] = ProfileWidth(c.Profile(n), k)
	}
	return widths
}

// ProfileWidth fits a cubic spline through profile over its index domain,
// resamples it at k evenly spaced points, and returns the span between the
// first and last samples at or above 70% of the resampled peak. It returns
// WidthUndefined when fewer than two samples qualify.
func ProfileWidth(profile []float64, k int) float64 {
	if len(profile) == 0 || k < 1 {
		return WidthUndefined
	}

	predict := fitProfile(profile)
	xs := linspace(0, float64(len(profile)-1), k)
	curve := make([]float64, k)
	for i, x := range xs {
		curve[i] = predict(x)
	}

	threshold := halfPowerFraction * floats.Max(curve)
	first, last := -1, -1
	for i, v := range curve {
		if v >= threshold {
			if first < 0 {
				first = i
			}
			last = i
		}
	}
	if first < 0 || first == last {
		return WidthUndefined
	}
	return xs[last] - xs[first]
}

// fitProfile returns a predictor over [0, len(profile)-1]. Not-a-knot cubic
// needs four knots; shorter profiles use linear interpolation and a single
// sample is held constant.
func fitProfile(profile []float64) func(float64) float64 {
	xs := make([]float64, len(profile))
	for i := range xs {
		xs[i] = float64(i)
	}

	if len(profile) >= 4 {
		var spline interp.NotAKnotCubic
		if err := spline.Fit(xs, profile); err == nil {
			return spline.Predict
		}
	}
	if len(profile) >= 2 {
		var pl interp.PiecewiseLinear
		if err := pl.Fit(xs, profile); err == nil {
			return pl.Predict
		}
	}
	v := profile[0]
	return func(float64) float64 { return v }
}

// linspace mirrors numpy.linspace(start, stop, num) with an inclusive end.
func linspace(start, stop float64, num int) []float64 {
	out := make([]float64, num)
	if num == 1 {
		out[0] = start
		return out
	}
	step := (stop - start) / float64(num-1)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	out[num-1] = stop
	return out
}
