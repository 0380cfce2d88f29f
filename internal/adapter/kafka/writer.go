package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/shauryavardhanm/IITK/internal/config"
	"github.com/shauryavardhanm/IITK/internal/domain"
)

// Writer streams dataset rows to a Kafka topic, one message per sample.
// It implements pipeline.SamplePublisher.
type Writer struct {
	writer *kafkago.Writer
	runID  string
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured sample topic.
func NewWriter(cfg *config.Config, runID string, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, runID: runID, logger: logger}
}

// PublishSamples sends the rows completed for one date in a single
// WriteMessages call.
func (w *Writer) PublishSamples(ctx context.Context, schema domain.Schema, samples []domain.Sample) error {
	if len(samples) == 0 {
		return nil
	}
	vars := schema.Variables()
	msgs := make([]kafkago.Message, len(samples))
	for i := range samples {
		msg, err := serializeToMessage(w.runID, vars, samples[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish %d samples: %w", len(msgs), err)
	}
	w.logger.Debug("samples published", "count", len(msgs))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// sampleRecord is the wire form of one dataset row. Non-finite numbers are
// sent as null.
type sampleRecord struct {
	Date         string              `json:"date"`
	Station      string              `json:"station"`
	Channel      int                 `json:"ddm_channel"`
	DistanceKm   *float64            `json:"dist_to_station"`
	SoilMoisture *float64            `json:"soil_moisture"`
	Features     map[string]*float64 `json:"features"`
}

func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// serializeToMessage marshals a Sample into a Kafka message keyed by
// station, so one station's rows stay on one partition.
func serializeToMessage(runID string, vars []string, s domain.Sample) (kafkago.Message, error) {
	rec := sampleRecord{
		Date:         s.Date.UTC().Format(time.DateOnly),
		Station:      s.StationKey,
		Channel:      s.Channel,
		DistanceKm:   finite(s.DistanceKm),
		SoilMoisture: finite(s.SoilMoisture),
		Features:     make(map[string]*float64, len(vars)),
	}
	for i, name := range vars {
		rec.Features[name] = finite(s.Values[i])
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize sample: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(s.StationKey),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "run_id", Value: []byte(runID)},
			{Key: "date", Value: []byte(rec.Date)},
		},
	}, nil
}
