package domain

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"time"
)

// Extra input columns written after the requested variables.
const (
	ColumnChannel  = "ddm_channel"
	ColumnDate     = "date"
	ColumnDistance = "dist_to_station"
	ColumnStation  = "station"

	// TargetColumn names the target values in the output snapshot.
	TargetColumn = "soil_moisture"
)

// requiredVariables are needed to locate and time-match observations.
var requiredVariables = []string{VarSpecularLat, VarSpecularLon, VarTimestamp}

// Schema fixes the ordered feature columns of every dataset row. It is
// derived once from the configured variable list.
type Schema struct {
	variables []string
	index     map[string]int
}

// NewSchema validates a variable list and builds the row schema from it.
func NewSchema(variables []string) (Schema, error) {
	if len(variables) == 0 {
		return Schema{}, errors.New("schema: empty variable list")
	}
	index := make(map[string]int, len(variables))
	for i, v := range variables {
		if v == "" {
			return Schema{}, fmt.Errorf("schema: empty variable name at position %d", i)
		}
		if _, dup := index[v]; dup {
			return Schema{}, fmt.Errorf("schema: duplicate variable %q", v)
		}
		index[v] = i
	}
	for _, req := range requiredVariables {
		if _, ok := index[req]; !ok {
			return Schema{}, fmt.Errorf("schema: variable %q is required", req)
		}
	}
	return Schema{variables: slices.Clone(variables), index: index}, nil
}

// Variables returns the feature variable names in column order.
func (s Schema) Variables() []string {
	return slices.Clone(s.variables)
}

// Columns returns every input column name in snapshot order.
func (s Schema) Columns() []string {
	return append(s.Variables(), ColumnChannel, ColumnDate, ColumnDistance, ColumnStation)
}

// Sample is one training row: the feature values of one observation on one
// channel, paired with the matched ground truth.
type Sample struct {
	Values       []float64
	Channel      int
	Date         time.Time
	DistanceKm   float64
	StationKey   string
	SoilMoisture float64
}

// SampleMeta carries the non-feature fields of a Sample.
type SampleMeta struct {
	Channel      int
	Date         time.Time
	DistanceKm   float64
	StationKey   string
	SoilMoisture float64
}

// NewSample builds a row from named feature values. Every schema variable
// must be present; extra names are rejected too. The target must be finite.
func (s Schema) NewSample(values map[string]float64, meta SampleMeta) (Sample, error) {
	if len(values) != len(s.variables) {
		for name := range values {
			if _, ok := s.index[name]; !ok {
				return Sample{}, fmt.Errorf("%w: unknown variable %q", ErrInvalidRow, name)
			}
		}
	}
	row := make([]float64, len(s.variables))
	for i, name := range s.variables {
		v, ok := values[name]
		if !ok {
			return Sample{}, fmt.Errorf("%w: missing variable %q", ErrInvalidRow, name)
		}
		row[i] = v
	}
	if meta.Channel < 1 || meta.Channel > Channels {
		return Sample{}, fmt.Errorf("%w: channel %d out of range", ErrInvalidRow, meta.Channel)
	}
	if meta.Date.IsZero() {
		return Sample{}, fmt.Errorf("%w: missing date", ErrInvalidRow)
	}
	if math.IsNaN(meta.SoilMoisture) || math.IsInf(meta.SoilMoisture, 0) {
		return Sample{}, fmt.Errorf("%w: soil moisture %v is not finite", ErrInvalidRow, meta.SoilMoisture)
	}
	return Sample{
		Values:       row,
		Channel:      meta.Channel,
		Date:         meta.Date,
		DistanceKm:   meta.DistanceKm,
		StationKey:   meta.StationKey,
		SoilMoisture: meta.SoilMoisture,
	}, nil
}

// Dataset accumulates input rows and their targets in append order. It is
// owned by a single writer.
type Dataset struct {
	schema  Schema
	samples []Sample
}

// NewDataset returns an empty accumulator for schema.
func NewDataset(schema Schema) *Dataset {
	return &Dataset{schema: schema}
}

// Schema returns the row schema.
func (d *Dataset) Schema() Schema { return d.schema }

// Len returns the number of accumulated rows.
func (d *Dataset) Len() int { return len(d.samples) }

// Append adds one row and its target.
func (d *Dataset) Append(s Sample) error {
	if len(s.Values) != len(d.schema.variables) {
		return fmt.Errorf("%w: %d values for %d columns", ErrInvalidRow, len(s.Values), len(d.schema.variables))
	}
	d.samples = append(d.samples, s)
	return nil
}

// Since returns the rows appended after the first n.
func (d *Dataset) Since(n int) []Sample {
	if n >= len(d.samples) {
		return nil
	}
	return d.samples[n:]
}

// Samples returns all rows. The slice must not be modified.
func (d *Dataset) Samples() []Sample { return d.samples }

// Column returns the values of one feature variable across all rows.
func (d *Dataset) Column(name string) ([]float64, bool) {
	i, ok := d.schema.index[name]
	if !ok {
		return nil, false
	}
	col := make([]float64, len(d.samples))
	for r, s := range d.samples {
		col[r] = s.Values[i]
	}
	return col, true
}

// Targets returns the matched soil moisture values, index-aligned with rows.
func (d *Dataset) Targets() []float64 {
	out := make([]float64, len(d.samples))
	for i, s := range d.samples {
		out[i] = s.SoilMoisture
	}
	return out
}
