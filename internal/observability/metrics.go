package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "cygnss_ismn"

// Metrics holds the Prometheus counters, histograms, and gauges for the builder.
type Metrics struct {
	PipelineRunning prometheus.Gauge

	// Granule retrieval.
	FetchAttempts  prometheus.Counter
	FetchOutcomes  *prometheus.CounterVec // labels: outcome={ok,not_found,transient,permanent,exhausted}
	FetchDuration  prometheus.Histogram
	GranuleBytes   prometheus.Histogram
	DecodeFailures prometheus.Counter

	// Matching.
	CloseObservations prometheus.Counter
	MatchMisses       prometheus.Counter
	SamplesAccepted   prometheus.Counter
	UndefinedWidths   prometheus.Counter

	// Station series cache.
	SeriesCache *prometheus.CounterVec // labels: result={hit,miss}

	// Progress.
	DatesCompleted   prometheus.Counter
	DatasetRows      prometheus.Gauge
	RemainingSeconds prometheus.Gauge
	SnapshotDuration prometheus.Histogram
}

// NewMetrics creates and registers all builder metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.PipelineRunning,
		m.FetchAttempts,
		m.FetchOutcomes,
		m.FetchDuration,
		m.GranuleBytes,
		m.DecodeFailures,
		m.CloseObservations,
		m.MatchMisses,
		m.SamplesAccepted,
		m.UndefinedWidths,
		m.SeriesCache,
		m.DatesCompleted,
		m.DatasetRows,
		m.RemainingSeconds,
		m.SnapshotDuration,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 while the builder is iterating dates, 0 otherwise.",
		}),
		FetchAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_attempts_total",
			Help:      "HTTP requests issued against the OpenDAP archive.",
		}),
		FetchOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_outcomes_total",
			Help:      "Granule fetches by final outcome.",
		}, []string{"outcome"}),
		FetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Wall time of a granule fetch including retries.",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		}),
		GranuleBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "granule_bytes",
			Help:      "Size of fetched granule payloads.",
			Buckets:   prometheus.ExponentialBuckets(1<<20, 2, 10),
		}),
		DecodeFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decode_failures_total",
			Help:      "Granules whose payload could not be decoded.",
		}),
		CloseObservations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "close_observations_total",
			Help:      "Specular points within the distance threshold of a station.",
		}),
		MatchMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "match_misses_total",
			Help:      "Close observations with no ground sample inside the time tolerance.",
		}),
		SamplesAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "samples_accepted_total",
			Help:      "Rows appended to the dataset.",
		}),
		UndefinedWidths: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "undefined_widths_total",
			Help:      "Accepted rows whose waveform width is undefined (-1).",
		}),
		SeriesCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "series_cache_total",
			Help:      "Station series cache lookups by result.",
		}, []string{"result"}),
		DatesCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dates_completed_total",
			Help:      "Calendar dates fully swept and snapshotted.",
		}),
		DatasetRows: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "dataset_rows",
			Help:      "Rows currently held by the accumulator.",
		}),
		RemainingSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "estimated_remaining_seconds",
			Help:      "Estimated time to finish the run window.",
		}),
		SnapshotDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "snapshot_duration_seconds",
			Help:      "Duration of a full dataset snapshot write.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
		}),
	}
}
