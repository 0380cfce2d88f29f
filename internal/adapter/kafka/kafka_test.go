package kafka

import (
	"context"
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shauryavardhanm/IITK/internal/config"
	"github.com/shauryavardhanm/IITK/internal/domain"
)

func TestSerializeToMessage(t *testing.T) {
	day := time.Date(2022, time.July, 4, 0, 0, 0, 0, time.UTC)
	sample := domain.Sample{
		Values:       []float64{35.5, -97.1, math.NaN()},
		Channel:      2,
		Date:         day,
		DistanceKm:   1.5,
		StationKey:   "42",
		SoilMoisture: 0.31,
	}

	msg, err := serializeToMessage("run-1", []string{"sp_lat", "sp_lon", "ddm_snr"}, sample)
	require.NoError(t, err)

	assert.Equal(t, []byte("42"), msg.Key)
	assert.JSONEq(t, `{
		"date": "2022-07-04",
		"station": "42",
		"ddm_channel": 2,
		"dist_to_station": 1.5,
		"soil_moisture": 0.31,
		"features": {"sp_lat": 35.5, "sp_lon": -97.1, "ddm_snr": null}
	}`, string(msg.Value))
	require.Len(t, msg.Headers, 2)
	assert.Equal(t, "run_id", msg.Headers[0].Key)
	assert.Equal(t, []byte("run-1"), msg.Headers[0].Value)
	assert.Equal(t, "date", msg.Headers[1].Key)
	assert.Equal(t, []byte("2022-07-04"), msg.Headers[1].Value)
}

func TestSerializeToMessage_NonFiniteTargetIsNull(t *testing.T) {
	sample := domain.Sample{
		Values:       []float64{35.5},
		Channel:      1,
		Date:         time.Date(2022, time.July, 4, 0, 0, 0, 0, time.UTC),
		DistanceKm:   math.Inf(1),
		StationKey:   "42",
		SoilMoisture: math.NaN(),
	}

	msg, err := serializeToMessage("run-1", []string{"sp_lat"}, sample)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"date": "2022-07-04",
		"station": "42",
		"ddm_channel": 1,
		"dist_to_station": null,
		"soil_moisture": null,
		"features": {"sp_lat": 35.5}
	}`, string(msg.Value))
}

func TestPublishSamples_EmptyIsNoop(t *testing.T) {
	cfg := &config.Config{KafkaBrokers: []string{"127.0.0.1:1"}, KafkaTopic: "unused"}
	w := NewWriter(cfg, "run-1", slog.New(slog.NewTextHandler(io.Discard, nil)))
	defer w.Close()

	schema, err := domain.NewSchema([]string{"sp_lat", "sp_lon", "ddm_timestamp_utc"})
	require.NoError(t, err)
	assert.NoError(t, w.PublishSamples(context.Background(), schema, nil))
}
