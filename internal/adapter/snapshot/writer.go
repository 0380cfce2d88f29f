package snapshot

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/shauryavardhanm/IITK/internal/domain"
	"github.com/shauryavardhanm/IITK/internal/observability"
)

const dateLayout = "2006-01-02"

// Writer persists the full dataset as two column-oriented JSON documents:
// one with every input column and one with the target column. Each call
// replaces both files, so the pair on disk always reflects the last
// completed date.
type Writer struct {
	inputPath  string
	outputPath string
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewWriter creates a Writer for the two snapshot paths.
func NewWriter(inputPath, outputPath string, metrics *observability.Metrics, logger *slog.Logger) *Writer {
	return &Writer{
		inputPath:  inputPath,
		outputPath: outputPath,
		metrics:    metrics,
		logger:     logger,
	}
}

// WriteSnapshot encodes ds and atomically replaces both snapshot files.
func (w *Writer) WriteSnapshot(ctx context.Context, ds *domain.Dataset) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	start := time.Now()

	inputs, err := EncodeInputs(ds)
	if err != nil {
		return err
	}
	outputs, err := EncodeOutputs(ds)
	if err != nil {
		return err
	}

	if err := replaceFile(w.inputPath, inputs); err != nil {
		return fmt.Errorf("write input snapshot: %w", err)
	}
	if err := replaceFile(w.outputPath, outputs); err != nil {
		return fmt.Errorf("write output snapshot: %w", err)
	}

	w.metrics.SnapshotDuration.Observe(time.Since(start).Seconds())
	w.logger.Debug("snapshot written", "rows", ds.Len(), "input", w.inputPath, "output", w.outputPath)
	return nil
}

// EncodeInputs renders every input column of ds, in schema order.
func EncodeInputs(ds *domain.Dataset) ([]byte, error) {
	schema := ds.Schema()
	samples := ds.Samples()

	cols := make(columns, 0, len(schema.Columns()))
	for _, name := range schema.Variables() {
		vals, _ := ds.Column(name)
		cols = append(cols, column{name: name, values: floatsOf(vals)})
	}

	channels := make([]any, len(samples))
	dates := make([]any, len(samples))
	dists := make([]any, len(samples))
	stations := make([]any, len(samples))
	for i, s := range samples {
		channels[i] = s.Channel
		dates[i] = s.Date.UTC().Format(dateLayout)
		dists[i] = nullableFloat(s.DistanceKm)
		stations[i] = s.StationKey
	}
	cols = append(cols,
		column{name: domain.ColumnChannel, values: channels},
		column{name: domain.ColumnDate, values: dates},
		column{name: domain.ColumnDistance, values: dists},
		column{name: domain.ColumnStation, values: stations},
	)
	return marshal(cols)
}

// EncodeOutputs renders the target column of ds. Targets are always finite
// (domain.Schema.NewSample rejects others), so the column never holds null.
func EncodeOutputs(ds *domain.Dataset) ([]byte, error) {
	return marshal(columns{{name: domain.TargetColumn, values: floatsOf(ds.Targets())}})
}

func marshal(cols columns) ([]byte, error) {
	b, err := json.MarshalIndent(cols, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return append(b, '\n'), nil
}

// column is one named JSON array.
type column struct {
	name   string
	values []any
}

// columns marshals as a JSON object whose keys keep slice order.
type columns []column

func (cs columns) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, c := range cs {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(c.name)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')

		vals := c.values
		if vals == nil {
			vals = []any{}
		}
		arr, err := json.Marshal(vals)
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", c.name, err)
		}
		buf.Write(arr)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// nullableFloat encodes NaN and infinities as null, which JSON cannot
// represent otherwise.
type nullableFloat float64

func (f nullableFloat) MarshalJSON() ([]byte, error) {
	v := float64(f)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return []byte("null"), nil
	}
	return json.Marshal(v)
}

func floatsOf(vals []float64) []any {
	out := make([]any, len(vals))
	for i, v := range vals {
		out[i] = nullableFloat(v)
	}
	return out
}

// replaceFile writes data beside path and renames it into place.
func replaceFile(path string, data []byte) (err error) {
	dir := filepath.Dir(path)
	f, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	tmp := f.Name()
	defer func() {
		if err != nil {
			_ = os.Remove(tmp)
		}
	}()

	_, werr := f.Write(data)
	cerr := f.Close()
	if err := errors.Join(werr, cerr); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
