package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	httpadapter "github.com/shauryavardhanm/IITK/internal/adapter/http"
	"github.com/shauryavardhanm/IITK/internal/adapter/ismn"
	kafkaadapter "github.com/shauryavardhanm/IITK/internal/adapter/kafka"
	"github.com/shauryavardhanm/IITK/internal/adapter/netcdf"
	"github.com/shauryavardhanm/IITK/internal/adapter/opendap"
	"github.com/shauryavardhanm/IITK/internal/adapter/snapshot"
	"github.com/shauryavardhanm/IITK/internal/config"
	"github.com/shauryavardhanm/IITK/internal/domain"
	"github.com/shauryavardhanm/IITK/internal/observability"
	"github.com/shauryavardhanm/IITK/internal/pipeline"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	runID := uuid.NewString()
	logger := observability.NewLogger(cfg).With("run_id", runID)
	metrics := observability.NewMetrics()

	schema, err := domain.NewSchema(cfg.Variables)
	if err != nil {
		logger.Error("invalid variable list", "error", err)
		os.Exit(1)
	}
	creds, err := opendap.LoadCredentials(cfg.CredentialsFile)
	if err != nil {
		logger.Error("failed to load credentials", "path", cfg.CredentialsFile, "error", err)
		os.Exit(1)
	}
	stations, err := ismn.LoadRegistry(cfg.StationsFile)
	if err != nil {
		logger.Error("failed to load station registry", "path", cfg.StationsFile, "error", err)
		os.Exit(1)
	}
	logger.Info("station registry loaded", "stations", len(stations), "days", cfg.Days())

	client := opendap.NewClient(cfg, creds, metrics, logger)
	decoder := netcdf.NewDecoder(cfg.TempDir, logger)
	series := ismn.NewCachedSeriesLoader(ismn.NewFileSeriesLoader(logger), cfg.SeriesCacheSize, metrics)
	sink := snapshot.NewWriter(cfg.InputPath(), cfg.OutputPath(), metrics, logger)

	// The sample stream is optional (KAFKA_BROKERS).
	var (
		publisher pipeline.SamplePublisher
		writer    *kafkaadapter.Writer
	)
	if cfg.KafkaEnabled {
		writer = kafkaadapter.NewWriter(cfg, runID, logger)
		publisher = writer
		logger.Info("sample stream enabled", "topic", cfg.KafkaTopic, "brokers", cfg.KafkaBrokers)
	}

	p := pipeline.New(client, decoder, series, sink, publisher, stations, schema, pipeline.Options{
		StartDate:      cfg.StartDate,
		EndDate:        cfg.EndDate,
		MaxDistanceKm:  cfg.MaxDistanceKm,
		MatchTolerance: cfg.MatchToleranceSeconds,
		Resolution:     cfg.InterpolationResolution,
	}, clockwork.NewRealClock(), logger, metrics)

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	select {
	case err := <-done:
		if err != nil {
			logger.Error("pipeline error", "error", err)
		}
	case <-ctx.Done():
		logger.Info("shutting down")
		<-done
	}

	shutdown(cfg.ShutdownTimeout, srv, writer, logger)
	logger.Info("shutdown complete", "rows", p.Dataset().Len())
}

func shutdown(timeout time.Duration, srv *httpadapter.Server, writer *kafkaadapter.Writer, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}
}
