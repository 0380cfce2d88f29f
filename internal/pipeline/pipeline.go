package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/shauryavardhanm/IITK/internal/domain"
	"github.com/shauryavardhanm/IITK/internal/observability"
)

// GranuleFetcher retrieves the raw granule for one (date, satellite).
type GranuleFetcher interface {
	Fetch(ctx context.Context, date time.Time, satellite int, vars []string) (domain.Granule, error)
}

// GranuleDecoder turns a raw granule into named arrays.
type GranuleDecoder interface {
	Decode(raw []byte, vars []string) (domain.ObservationBatch, error)
}

// SnapshotSink persists the full dataset. Each call replaces the previous snapshot.
type SnapshotSink interface {
	WriteSnapshot(ctx context.Context, ds *domain.Dataset) error
}

// SamplePublisher streams the rows completed for one date.
type SamplePublisher interface {
	PublishSamples(ctx context.Context, schema domain.Schema, samples []domain.Sample) error
}

// Options are the run parameters of the builder.
type Options struct {
	StartDate      time.Time
	EndDate        time.Time // exclusive
	MaxDistanceKm  float64
	MatchTolerance float64 // seconds
	Resolution     int     // waveform interpolation points
}

// Pipeline walks dates × satellites × channels × stations and accumulates
// matched samples into a Dataset.
type Pipeline struct {
	fetcher   GranuleFetcher
	decoder   GranuleDecoder
	series    domain.SeriesLoader
	sink      SnapshotSink
	publisher SamplePublisher
	stations  []domain.Station
	dataset   *domain.Dataset
	opts      Options
	clock     clockwork.Clock
	logger    *slog.Logger
	metrics   *observability.Metrics
	ready     atomic.Bool
	progress  Progress
	datesDone int
	status    atomic.Pointer[domain.RunStatus]
}

// New creates a Pipeline. publisher may be nil.
func New(
	f GranuleFetcher,
	d GranuleDecoder,
	series domain.SeriesLoader,
	sink SnapshotSink,
	publisher SamplePublisher,
	stations []domain.Station,
	schema domain.Schema,
	opts Options,
	clock clockwork.Clock,
	logger *slog.Logger,
	metrics *observability.Metrics,
) *Pipeline {
	return &Pipeline{
		fetcher:   f,
		decoder:   d,
		series:    series,
		sink:      sink,
		publisher: publisher,
		stations:  stations,
		dataset:   domain.NewDataset(schema),
		opts:      opts,
		clock:     clock,
		logger:    logger,
		metrics:   metrics,
	}
}

// Dataset returns the accumulator. It must not be modified while Run is active.
func (p *Pipeline) Dataset() *domain.Dataset { return p.dataset }

// CheckReadiness returns nil once the first date has been snapshotted.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("no date has completed yet")
	}
	return nil
}

// Status returns the latest progress view. It is safe to call while Run is active.
func (p *Pipeline) Status() domain.RunStatus {
	if s := p.status.Load(); s != nil {
		return *s
	}
	return domain.RunStatus{}
}

// Run processes every date in [StartDate, EndDate). Per-granule faults are
// skipped; only context cancellation ends the run early, in which case the
// last snapshot on disk is the last completed date.
func (p *Pipeline) Run(ctx context.Context) error {
	days := daysBetween(p.opts.StartDate, p.opts.EndDate)
	p.progress = newProgress(p.clock, days*domain.Satellites)
	p.publishStatus("")

	p.logger.Info("pipeline started",
		"start_date", p.opts.StartDate.Format(time.DateOnly),
		"end_date", p.opts.EndDate.Format(time.DateOnly),
		"days", days,
		"stations", len(p.stations),
		"max_distance_km", p.opts.MaxDistanceKm,
	)
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	for date := p.opts.StartDate; date.Before(p.opts.EndDate); date = date.AddDate(0, 0, 1) {
		before := p.dataset.Len()

		for sat := 1; sat <= domain.Satellites; sat++ {
			if err := ctx.Err(); err != nil {
				p.logger.Info("pipeline stopping", "reason", err)
				return nil
			}
			p.processGranule(ctx, date, sat)
			if ctx.Err() != nil {
				p.logger.Info("pipeline stopping", "reason", ctx.Err())
				return nil
			}
			p.reportProgress(date, sat)
		}

		p.completeDate(ctx, date, before)
	}

	p.logger.Info("pipeline finished",
		"rows", p.dataset.Len(),
		"elapsed", p.progress.Elapsed().Round(time.Second).String(),
	)
	return nil
}

// processGranule fetches, decodes, and matches one (date, satellite).
// Every failure is logged and turns into zero observations.
func (p *Pipeline) processGranule(ctx context.Context, date time.Time, sat int) {
	vars := p.dataset.Schema().Variables()

	g, err := p.fetcher.Fetch(ctx, date, sat, vars)
	if err != nil {
		switch {
		case ctx.Err() != nil:
		case domain.IsNoData(err):
			p.logger.Debug("granule skipped",
				"date", date.Format(time.DateOnly),
				"satellite", sat,
				"attempts", g.Attempts,
				"error", err,
			)
		default:
			p.logger.Warn("granule fetch failed with unexpected error",
				"date", date.Format(time.DateOnly),
				"satellite", sat,
				"attempts", g.Attempts,
				"error", err,
			)
		}
		return
	}

	batch, err := p.decoder.Decode(g.Body, vars)
	if err != nil {
		p.metrics.DecodeFailures.Inc()
		p.logger.Warn("granule decode failed",
			"date", date.Format(time.DateOnly),
			"satellite", sat,
			"bytes", len(g.Body),
			"error", err,
		)
		return
	}
	batch.Date = date
	batch.Satellite = sat

	if err := p.matchBatch(ctx, batch); err != nil {
		p.logger.Warn("granule skipped",
			"date", date.Format(time.DateOnly),
			"satellite", sat,
			"error", err,
		)
	}
}

// matchBatch appends one row per close, time-matched observation for every
// channel and station.
func (p *Pipeline) matchBatch(ctx context.Context, batch domain.ObservationBatch) error {
	lat, _ := batch.Var(domain.VarSpecularLat)
	lon, _ := batch.Var(domain.VarSpecularLon)
	ts, _ := batch.Var(domain.VarTimestamp)
	if lat.Len() == 0 || lon.Len() == 0 || ts.Len() == 0 {
		return errors.New("batch is missing position or timestamp variables")
	}

	for ch := 1; ch <= domain.Channels; ch++ {
		lats, err := lat.Column(ch)
		if err != nil {
			return err
		}
		lons, err := lon.Column(ch)
		if err != nil {
			return err
		}

		for _, st := range p.stations {
			if ctx.Err() != nil {
				return nil
			}
			dist := domain.DistancesKm(lats, lons, st.Location())
			near := domain.SelectWithin(dist, p.opts.MaxDistanceKm)
			if len(near) == 0 {
				continue
			}
			p.metrics.CloseObservations.Add(float64(len(near)))

			if err := p.matchStation(ctx, batch, ch, st, near, dist, ts); err != nil {
				p.logger.Warn("station skipped",
					"date", batch.Date.Format(time.DateOnly),
					"satellite", batch.Satellite,
					"channel", ch,
					"station", st.Key,
					"error", err,
				)
			}
		}
	}
	return nil
}

func (p *Pipeline) matchStation(
	ctx context.Context,
	batch domain.ObservationBatch,
	ch int,
	st domain.Station,
	near []int,
	dist []float64,
	ts domain.Variable,
) error {
	series, err := p.series.LoadSeries(ctx, st)
	if err != nil {
		return fmt.Errorf("load series: %w", err)
	}

	matched := make([]int, 0, len(near))
	truth := make([]float64, 0, len(near))
	for _, obs := range near {
		t, err := ts.Value(obs, ch)
		if err != nil {
			return err
		}
		entry, _, err := series.Match(batch.Date, t, p.opts.MatchTolerance)
		if errors.Is(err, domain.ErrMatchNotFound) {
			p.metrics.MatchMisses.Inc()
			continue
		}
		if err != nil {
			return err
		}
		matched = append(matched, obs)
		truth = append(truth, entry.Value)
	}
	if len(matched) == 0 {
		p.logger.Debug("no time match for close observations",
			"date", batch.Date.Format(time.DateOnly),
			"satellite", batch.Satellite,
			"channel", ch,
			"station", st.Key,
			"close", len(near),
		)
		return nil
	}

	features, err := p.features(batch, ch, matched)
	if err != nil {
		return err
	}

	schema := p.dataset.Schema()
	for i, obs := range matched {
		values := make(map[string]float64, len(features))
		for name, col := range features {
			values[name] = col[i]
		}
		s, err := schema.NewSample(values, domain.SampleMeta{
			Channel:      ch,
			Date:         batch.Date,
			DistanceKm:   dist[obs],
			StationKey:   st.Key,
			SoilMoisture: truth[i],
		})
		if err != nil {
			return err
		}
		if err := p.dataset.Append(s); err != nil {
			return err
		}
		p.metrics.SamplesAccepted.Inc()
	}
	return nil
}

// features gathers the value of every schema variable for the matched
// observations, aligned with obs. Waveform cubes are reduced to their
// half-power width.
func (p *Pipeline) features(batch domain.ObservationBatch, ch int, obs []int) (map[string][]float64, error) {
	names := p.dataset.Schema().Variables()
	out := make(map[string][]float64, len(names))
	for _, name := range names {
		v, ok := batch.Var(name)
		if !ok {
			return nil, fmt.Errorf("variable %s missing from batch", name)
		}

		if len(v.Shape) == 4 {
			cube, err := v.ChannelCube(ch, obs)
			if err != nil {
				return nil, err
			}
			widths := domain.WaveformWidths(cube, p.opts.Resolution)
			for _, w := range widths {
				if w == domain.WidthUndefined {
					p.metrics.UndefinedWidths.Inc()
				}
			}
			out[name] = widths
			continue
		}

		col := make([]float64, len(obs))
		for i, o := range obs {
			val, err := v.Value(o, ch)
			if err != nil {
				return nil, err
			}
			col[i] = val
		}
		out[name] = col
	}
	return out, nil
}

// completeDate snapshots the full dataset and streams the date's new rows.
// Sink failures are logged; the next date rewrites the full snapshot.
func (p *Pipeline) completeDate(ctx context.Context, date time.Time, before int) {
	added := p.dataset.Len() - before

	if err := p.sink.WriteSnapshot(ctx, p.dataset); err != nil {
		p.logger.Error("snapshot write failed", "date", date.Format(time.DateOnly), "error", err)
	}

	if p.publisher != nil && added > 0 {
		if err := p.publisher.PublishSamples(ctx, p.dataset.Schema(), p.dataset.Since(before)); err != nil {
			p.logger.Warn("publish samples failed", "date", date.Format(time.DateOnly), "count", added, "error", err)
		}
	}

	p.datesDone++
	p.metrics.DatesCompleted.Inc()
	p.metrics.DatasetRows.Set(float64(p.dataset.Len()))
	p.publishStatus(date.Format(time.DateOnly))
	p.ready.Store(true)

	p.logger.Info("date completed",
		"date", date.Format(time.DateOnly),
		"new_rows", added,
		"rows", p.dataset.Len(),
	)
}

func (p *Pipeline) reportProgress(date time.Time, sat int) {
	p.progress.Step()
	remaining := p.progress.Remaining()
	p.metrics.RemainingSeconds.Set(remaining.Seconds())
	p.publishStatus(date.Format(time.DateOnly))

	p.logger.Info("progress",
		"date", date.Format(time.DateOnly),
		"satellite", sat,
		"done", p.progress.Done(),
		"total", p.progress.Total(),
		"elapsed", p.progress.Elapsed().Round(time.Second).String(),
		"remaining", remaining.Round(time.Second).String(),
		"cases", p.dataset.Len(),
	)
}

func (p *Pipeline) publishStatus(date string) {
	p.status.Store(&domain.RunStatus{
		CurrentDate:      date,
		UnitsDone:        p.progress.Done(),
		UnitsTotal:       p.progress.Total(),
		DatesDone:        p.datesDone,
		Rows:             p.dataset.Len(),
		ElapsedSeconds:   p.progress.Elapsed().Seconds(),
		RemainingSeconds: p.progress.Remaining().Seconds(),
	})
}

func daysBetween(start, end time.Time) int {
	n := 0
	for d := start; d.Before(end); d = d.AddDate(0, 0, 1) {
		n++
	}
	return n
}
