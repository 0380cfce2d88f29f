package domain

import (
	"context"
	"fmt"
	"math"
	"time"
)

// Station is one ISMN sensor from the pre-built registry. Its time series
// lives in FilePath and is only read when an observation lands nearby.
type Station struct {
	Key       string
	CSE       string
	Network   string
	Name      string
	Latitude  float64
	Longitude float64
	Elevation float64
	DepthFrom float64
	DepthTo   float64
	FilePath  string
}

// Location returns the station's coordinates.
func (s Station) Location() Point {
	return Point{Lat: s.Latitude, Lon: s.Longitude}
}

// SeriesEntry is one ground sample: its calendar date, time of day in
// seconds and soil moisture value.
type SeriesEntry struct {
	Date         time.Time
	SecondsOfDay int
	Value        float64
}

// Series is a station time series in file order. Entries are neither
// sorted nor deduplicated here.
type Series []SeriesEntry

// SeriesLoader reads the backing time series of a station.
type SeriesLoader interface {
	LoadSeries(ctx context.Context, st Station) (Series, error)
}

// Match returns the first entry, in file order, dated on the calendar day of
// date whose time of day is strictly within tolerance seconds of obsSeconds.
// The first qualifying entry wins even if a later one is closer in time.
// It returns ErrMatchNotFound when no entry qualifies.
func (s Series) Match(date time.Time, obsSeconds, tolerance float64) (SeriesEntry, int, error) {
	y, m, d := date.UTC().Date()
	for i, e := range s {
		ey, em, ed := e.Date.UTC().Date()
		if ey != y || em != m || ed != d {
			continue
		}
		if math.Abs(float64(e.SecondsOfDay)-obsSeconds) < tolerance {
			return e, i, nil
		}
	}
	return SeriesEntry{}, -1, fmt.Errorf("%s at %.0fs: %w", date.Format(time.DateOnly), obsSeconds, ErrMatchNotFound)
}
