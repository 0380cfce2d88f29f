package domain

import (
	"fmt"
	"time"
)

// CYGNSS variable names the pipeline relies on.
const (
	VarSpecularLat = "sp_lat"
	VarSpecularLon = "sp_lon"
	VarTimestamp   = "ddm_timestamp_utc"
	VarBRCS        = "brcs"
)

// Satellites is the number of spacecraft in the constellation (IDs 1..8).
const Satellites = 8

// Channels is the number of DDMs produced per sample (IDs 1..4).
const Channels = 4

// Variable is one decoded granule variable. Data is row-major over Shape
// and the first dimension is always the observation index.
type Variable struct {
	Name  string
	Shape []int
	Data  []float64
}

// Len returns the observation count (leading dimension).
func (v Variable) Len() int {
	if len(v.Shape) == 0 {
		return 0
	}
	return v.Shape[0]
}

// stride is the number of values per observation.
func (v Variable) stride() int {
	s := 1
	for _, d := range v.Shape[1:] {
		s *= d
	}
	return s
}

// Value returns the scalar for observation obs on channel ch (1-based).
// One-dimensional variables are per sample and ignore ch.
func (v Variable) Value(obs, ch int) (float64, error) {
	if obs < 0 || obs >= v.Len() {
		return 0, fmt.Errorf("%s: observation %d out of range [0,%d)", v.Name, obs, v.Len())
	}
	switch len(v.Shape) {
	case 1:
		return v.Data[obs], nil
	case 2:
		if ch < 1 || ch > v.Shape[1] {
			return 0, fmt.Errorf("%s: channel %d out of range [1,%d]", v.Name, ch, v.Shape[1])
		}
		return v.Data[obs*v.Shape[1]+ch-1], nil
	default:
		return 0, fmt.Errorf("%s: %d-dimensional variable has no scalar value", v.Name, len(v.Shape))
	}
}

// Column returns the per-observation values for channel ch.
func (v Variable) Column(ch int) ([]float64, error) {
	out := make([]float64, v.Len())
	for i := range out {
		val, err := v.Value(i, ch)
		if err != nil {
			return nil, err
		}
		out[i] = val
	}
	return out, nil
}

// ChannelCube extracts the [len(obs)][A][B] waveform cube for channel ch
// from a [N][C][A][B] variable.
func (v Variable) ChannelCube(ch int, obs []int) (Cube, error) {
	if len(v.Shape) != 4 {
		return Cube{}, fmt.Errorf("%s: want 4 dimensions, have %d", v.Name, len(v.Shape))
	}
	nCh, a, b := v.Shape[1], v.Shape[2], v.Shape[3]
	if ch < 1 || ch > nCh {
		return Cube{}, fmt.Errorf("%s: channel %d out of range [1,%d]", v.Name, ch, nCh)
	}

	data := make([]float64, 0, len(obs)*a*b)
	plane := a * b
	for _, o := range obs {
		if o < 0 || o >= v.Len() {
			return Cube{}, fmt.Errorf("%s: observation %d out of range [0,%d)", v.Name, o, v.Len())
		}
		off := (o*nCh + ch - 1) * plane
		data = append(data, v.Data[off:off+plane]...)
	}
	return NewCube(len(obs), a, b, data)
}

// ObservationBatch is one decoded (date, satellite) granule.
type ObservationBatch struct {
	Date      time.Time
	Satellite int
	Variables map[string]Variable
}

// Var looks up a variable by name.
func (b ObservationBatch) Var(name string) (Variable, bool) {
	v, ok := b.Variables[name]
	return v, ok
}

// Len returns the shared observation count, or 0 for an empty batch.
func (b ObservationBatch) Len() int {
	for _, v := range b.Variables {
		return v.Len()
	}
	return 0
}

// Validate checks that every variable's data matches its shape and that all
// variables share the same leading length.
func (b ObservationBatch) Validate() error {
	n := -1
	for name, v := range b.Variables {
		if len(v.Shape) == 0 {
			return fmt.Errorf("%s: scalar variable in observation batch", name)
		}
		if v.Len()*v.stride() != len(v.Data) {
			return fmt.Errorf("%s: shape %v does not match %d values", name, v.Shape, len(v.Data))
		}
		if n < 0 {
			n = v.Len()
			continue
		}
		if v.Len() != n {
			return fmt.Errorf("%s: leading length %d, want %d", name, v.Len(), n)
		}
	}
	return nil
}

// Granule is the raw payload of one (date, satellite) subset request.
// Attempts is set even when the fetch fails.
type Granule struct {
	Date      time.Time
	Satellite int
	Body      []byte
	Attempts  int
}
