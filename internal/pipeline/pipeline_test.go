package pipeline_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shauryavardhanm/IITK/internal/domain"
	"github.com/shauryavardhanm/IITK/internal/observability"
	"github.com/shauryavardhanm/IITK/internal/pipeline"
)

var day0 = time.Date(2022, time.June, 30, 0, 0, 0, 0, time.UTC)

// --- mocks ---

type mockFetcher struct {
	satellites map[int]bool // satellites with data; all others 404
	clock      *clockwork.FakeClock
	step       time.Duration
	calls      int
	cancel     context.CancelFunc // called on the first fetch when set
	err        error              // returned instead of ErrGranuleNotFound when set
}

func (m *mockFetcher) Fetch(_ context.Context, date time.Time, sat int, _ []string) (domain.Granule, error) {
	m.calls++
	if m.clock != nil {
		m.clock.Advance(m.step)
	}
	if m.cancel != nil {
		m.cancel()
	}
	g := domain.Granule{Date: date, Satellite: sat, Attempts: 1}
	if !m.satellites[sat] {
		if m.err != nil {
			return g, m.err
		}
		return g, domain.ErrGranuleNotFound
	}
	g.Body = []byte("granule")
	return g, nil
}

type mockDecoder struct {
	batch domain.ObservationBatch
	err   error
}

func (m *mockDecoder) Decode(_ []byte, _ []string) (domain.ObservationBatch, error) {
	if m.err != nil {
		return domain.ObservationBatch{}, m.err
	}
	return m.batch, nil
}

type mockSeries struct {
	series domain.Series
	err    error
	calls  int
}

func (m *mockSeries) LoadSeries(_ context.Context, _ domain.Station) (domain.Series, error) {
	m.calls++
	return m.series, m.err
}

type mockSink struct {
	rows []int // dataset length at each snapshot
	err  error
}

func (m *mockSink) WriteSnapshot(_ context.Context, ds *domain.Dataset) error {
	m.rows = append(m.rows, ds.Len())
	return m.err
}

type mockPublisher struct {
	batches [][]domain.Sample
}

func (m *mockPublisher) PublishSamples(_ context.Context, _ domain.Schema, samples []domain.Sample) error {
	m.batches = append(m.batches, append([]domain.Sample(nil), samples...))
	return nil
}

// --- helpers ---

var testVars = []string{domain.VarSpecularLat, domain.VarSpecularLon, domain.VarTimestamp, domain.VarBRCS}

// kmNorth returns the latitude that lies km north of the equator.
func kmNorth(km float64) float64 {
	return km / (domain.EarthRadiusKm * math.Pi / 180)
}

// syntheticBatch has three observations whose channel-1 specular points lie
// 1, 4 and 10 km from (0, 0). Channels 2..4 are far away.
func syntheticBatch() domain.ObservationBatch {
	const n, chans, delay, doppler = 3, 4, 5, 2
	far := 10.0
	lat := []float64{
		kmNorth(1), far, far, far,
		kmNorth(4), far, far, far,
		kmNorth(10), far, far, far,
	}
	lon := make([]float64, n*chans)

	brcs := make([]float64, 0, n*chans*delay*doppler)
	profile := []float64{0, 1, 5, 1, 0}
	for range n * chans {
		for _, v := range profile {
			brcs = append(brcs, v, v/2)
		}
	}

	return domain.ObservationBatch{Variables: map[string]domain.Variable{
		domain.VarSpecularLat: {Name: domain.VarSpecularLat, Shape: []int{n, chans}, Data: lat},
		domain.VarSpecularLon: {Name: domain.VarSpecularLon, Shape: []int{n, chans}, Data: lon},
		domain.VarTimestamp:   {Name: domain.VarTimestamp, Shape: []int{n}, Data: []float64{3600, 3700, 3800}},
		domain.VarBRCS:        {Name: domain.VarBRCS, Shape: []int{n, chans, delay, doppler}, Data: brcs},
	}}
}

func stationSeries() domain.Series {
	return domain.Series{
		{Date: day0.AddDate(0, 0, -1), SecondsOfDay: 3600, Value: 0.10},
		{Date: day0, SecondsOfDay: 3600, Value: 0.25},
		{Date: day0, SecondsOfDay: 7200, Value: 0.26},
	}
}

type fixture struct {
	fetcher   *mockFetcher
	decoder   *mockDecoder
	series    *mockSeries
	sink      *mockSink
	publisher *mockPublisher
	metrics   *observability.Metrics
	clock     *clockwork.FakeClock
	logs      bytes.Buffer
}

func newFixture() *fixture {
	clock := clockwork.NewFakeClock()
	return &fixture{
		fetcher:   &mockFetcher{satellites: map[int]bool{1: true}, clock: clock, step: time.Minute},
		decoder:   &mockDecoder{batch: syntheticBatch()},
		series:    &mockSeries{series: stationSeries()},
		sink:      &mockSink{},
		publisher: &mockPublisher{},
		metrics:   observability.NewMetricsForTesting(),
		clock:     clock,
	}
}

func (f *fixture) pipeline(t *testing.T, days int) *pipeline.Pipeline {
	t.Helper()
	schema, err := domain.NewSchema(testVars)
	require.NoError(t, err)

	stations := []domain.Station{{Key: "0", Network: "SCAN", Name: "origin", Latitude: 0, Longitude: 0, FilePath: "origin.stm"}}
	opts := pipeline.Options{
		StartDate:      day0,
		EndDate:        day0.AddDate(0, 0, days),
		MaxDistanceKm:  5,
		MatchTolerance: 1800,
		Resolution:     100,
	}
	logger := slog.New(slog.NewTextHandler(&f.logs, nil))
	return pipeline.New(f.fetcher, f.decoder, f.series, f.sink, f.publisher, stations, schema, opts, f.clock, logger, f.metrics)
}

// --- tests ---

func TestPipeline_Run_SelectsCloseObservations(t *testing.T) {
	f := newFixture()
	p := f.pipeline(t, 1)

	require.NoError(t, p.Run(context.Background()))

	ds := p.Dataset()
	require.Equal(t, 2, ds.Len(), "1 km and 4 km points match, 10 km point does not")

	lats, _ := ds.Column(domain.VarSpecularLat)
	assert.InDelta(t, kmNorth(1), lats[0], 1e-12)
	assert.InDelta(t, kmNorth(4), lats[1], 1e-12)

	samples := ds.Samples()
	assert.InDelta(t, 1.0, samples[0].DistanceKm, 1e-9)
	assert.InDelta(t, 4.0, samples[1].DistanceKm, 1e-9)
	for _, s := range samples {
		assert.Equal(t, 1, s.Channel)
		assert.Equal(t, day0, s.Date)
		assert.Equal(t, "0", s.StationKey)
		assert.Equal(t, 0.25, s.SoilMoisture)
	}
	if diff := cmp.Diff([]float64{0.25, 0.25}, ds.Targets()); diff != "" {
		t.Fatalf("targets mismatch (-want +got):\n%s", diff)
	}

	widths, _ := ds.Column(domain.VarBRCS)
	for _, w := range widths {
		assert.Greater(t, w, 0.0)
	}

	assert.Equal(t, 8, f.fetcher.calls)
	assert.Equal(t, []int{2}, f.sink.rows)
	require.Len(t, f.publisher.batches, 1)
	assert.Len(t, f.publisher.batches[0], 2)

	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.CloseObservations))
	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.SamplesAccepted))
	assert.Equal(t, 0.0, testutil.ToFloat64(f.metrics.MatchMisses))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.DatesCompleted))
	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.DatasetRows))
	assert.NoError(t, p.CheckReadiness(context.Background()))
}

func TestPipeline_Run_MatchNotFoundSkipsObservation(t *testing.T) {
	f := newFixture()
	// Only an entry for the day before the run.
	f.series.series = stationSeries()[:1]
	p := f.pipeline(t, 1)

	require.NoError(t, p.Run(context.Background()))

	assert.Equal(t, 0, p.Dataset().Len())
	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.MatchMisses))
	assert.Equal(t, []int{0}, f.sink.rows, "snapshot is still written")
	assert.Empty(t, f.publisher.batches)
}

func TestPipeline_Run_ToleranceIsPerObservation(t *testing.T) {
	f := newFixture()
	// Both close points (t=3600, t=3700) are more than 1800 s from 7200.
	f.series.series = domain.Series{{Date: day0, SecondsOfDay: 7200, Value: 0.3}}
	p := f.pipeline(t, 1)

	require.NoError(t, p.Run(context.Background()))
	assert.Equal(t, 0, p.Dataset().Len())
	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.MatchMisses))
}

func TestPipeline_Run_DecodeFailureSkipsGranule(t *testing.T) {
	f := newFixture()
	f.decoder.err = domain.ErrDecode
	p := f.pipeline(t, 1)

	require.NoError(t, p.Run(context.Background()))

	assert.Equal(t, 0, p.Dataset().Len())
	assert.Equal(t, 8, f.fetcher.calls, "remaining satellites are still fetched")
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.DecodeFailures))
	assert.Equal(t, []int{0}, f.sink.rows)
}

func TestPipeline_Run_UnexpectedFetchErrorIsLogged(t *testing.T) {
	f := newFixture()
	f.fetcher.err = errors.New("archive returned an unsupported encoding")
	p := f.pipeline(t, 1)

	require.NoError(t, p.Run(context.Background()))

	assert.Equal(t, 8, f.fetcher.calls)
	logs := f.logs.String()
	assert.Equal(t, 7, strings.Count(logs, "granule fetch failed with unexpected error"))
	assert.Contains(t, logs, "unsupported encoding")
}

func TestPipeline_Run_NotFoundIsNotWarned(t *testing.T) {
	f := newFixture()
	p := f.pipeline(t, 1)

	require.NoError(t, p.Run(context.Background()))

	assert.NotContains(t, f.logs.String(), "unexpected error")
}

func TestPipeline_Run_SeriesLoadFailureSkipsStation(t *testing.T) {
	f := newFixture()
	f.series.err = errors.New("permission denied")
	p := f.pipeline(t, 1)

	require.NoError(t, p.Run(context.Background()))
	assert.Equal(t, 0, p.Dataset().Len())
	assert.Equal(t, 1, f.series.calls)
}

func TestPipeline_Run_SnapshotPerDate(t *testing.T) {
	f := newFixture()
	p := f.pipeline(t, 3)

	require.NoError(t, p.Run(context.Background()))

	// Series only has entries for day0, so later dates add nothing.
	assert.Equal(t, []int{2, 2, 2}, f.sink.rows)
	assert.Equal(t, 24, f.fetcher.calls)
	assert.Len(t, f.publisher.batches, 1, "dates without new rows publish nothing")
	assert.Equal(t, 3.0, testutil.ToFloat64(f.metrics.DatesCompleted))

	st := p.Status()
	assert.Equal(t, domain.RunStatus{
		CurrentDate:      "2022-07-02",
		UnitsDone:        24,
		UnitsTotal:       24,
		DatesDone:        3,
		Rows:             2,
		ElapsedSeconds:   (24 * time.Minute).Seconds(),
		RemainingSeconds: 0,
	}, st)
}

func TestPipeline_Run_SnapshotFailureContinues(t *testing.T) {
	f := newFixture()
	f.sink.err = errors.New("disk full")
	p := f.pipeline(t, 2)

	require.NoError(t, p.Run(context.Background()))
	assert.Len(t, f.sink.rows, 2)
}

func TestPipeline_Run_ContextCancellation(t *testing.T) {
	f := newFixture()
	p := f.pipeline(t, 2)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, p.Run(ctx))
	assert.Zero(t, f.fetcher.calls)
	assert.Empty(t, f.sink.rows)
	assert.Error(t, p.CheckReadiness(context.Background()))
}

func TestPipeline_Run_CancelMidDateSkipsSnapshot(t *testing.T) {
	f := newFixture()
	ctx, cancel := context.WithCancel(context.Background())
	f.fetcher.cancel = cancel
	p := f.pipeline(t, 1)

	require.NoError(t, p.Run(ctx))
	assert.Equal(t, 1, f.fetcher.calls)
	assert.Empty(t, f.sink.rows, "an incomplete date is not snapshotted")
}

func TestPipeline_Run_RemainingTimeReachesZero(t *testing.T) {
	f := newFixture()
	p := f.pipeline(t, 2)

	require.NoError(t, p.Run(context.Background()))
	assert.Equal(t, 0.0, testutil.ToFloat64(f.metrics.RemainingSeconds))
	assert.Equal(t, 0.0, testutil.ToFloat64(f.metrics.PipelineRunning))
}
