package netcdf

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"math"
	"os"

	nc "github.com/fhs/go-netcdf/netcdf"

	"github.com/shauryavardhanm/IITK/internal/domain"
)

// Decoder turns DAP4 NetCDF-4 payloads into observation batches. The
// NetCDF library only reads from paths, so each payload is staged in a
// temporary file that is removed before Decode returns.
type Decoder struct {
	tempDir string
	logger  *slog.Logger
}

// NewDecoder creates a Decoder staging files in tempDir (the OS default when empty).
func NewDecoder(tempDir string, logger *slog.Logger) *Decoder {
	return &Decoder{tempDir: tempDir, logger: logger}
}

// Decode reads vars from raw. Every failure wraps domain.ErrDecode.
// Date and Satellite of the returned batch are left for the caller to set.
func (d *Decoder) Decode(raw []byte, vars []string) (batch domain.ObservationBatch, err error) {
	f, err := os.CreateTemp(d.tempDir, "granule-*.nc4")
	if err != nil {
		return batch, fmt.Errorf("%w: create temp file: %w", domain.ErrDecode, err)
	}
	path := f.Name()
	defer func() {
		if rmErr := os.Remove(path); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
			d.logger.Warn("remove temp granule failed", "path", path, "error", rmErr)
		}
	}()

	_, werr := f.Write(raw)
	cerr := f.Close()
	if werr != nil || cerr != nil {
		return batch, fmt.Errorf("%w: stage payload: %w", domain.ErrDecode, errors.Join(werr, cerr))
	}

	ds, err := nc.OpenFile(path, nc.NOWRITE)
	if err != nil {
		return batch, fmt.Errorf("%w: open: %w", domain.ErrDecode, err)
	}
	defer ds.Close()

	batch.Variables = make(map[string]domain.Variable, len(vars))
	for _, name := range vars {
		v, err := readVariable(ds, name)
		if err != nil {
			return domain.ObservationBatch{}, fmt.Errorf("%w: %s: %w", domain.ErrDecode, name, err)
		}
		batch.Variables[name] = v
	}

	if err := batch.Validate(); err != nil {
		return domain.ObservationBatch{}, fmt.Errorf("%w: %w", domain.ErrDecode, err)
	}
	return batch, nil
}

func readVariable(ds nc.Dataset, name string) (domain.Variable, error) {
	v, err := ds.Var(name)
	if err != nil {
		return domain.Variable{}, err
	}

	dims, err := v.Dims()
	if err != nil {
		return domain.Variable{}, err
	}
	shape := make([]int, len(dims))
	for i, dim := range dims {
		n, err := dim.Len()
		if err != nil {
			return domain.Variable{}, err
		}
		shape[i] = int(n)
	}

	data, err := readFloat64s(v)
	if err != nil {
		return domain.Variable{}, err
	}
	return domain.Variable{Name: name, Shape: shape, Data: data}, nil
}

// readFloat64s reads a numeric variable of any storage type as float64.
// Floating-point fill values become NaN.
func readFloat64s(v nc.Var) ([]float64, error) {
	t, err := v.Type()
	if err != nil {
		return nil, err
	}

	switch t {
	case nc.DOUBLE:
		data, err := nc.GetFloat64s(v)
		if err != nil {
			return nil, err
		}
		if fill, ok := fillValue64(v); ok {
			for i, x := range data {
				if x == fill {
					data[i] = math.NaN()
				}
			}
		}
		return data, nil
	case nc.FLOAT:
		raw, err := nc.GetFloat32s(v)
		if err != nil {
			return nil, err
		}
		fill, hasFill := fillValue32(v)
		data := make([]float64, len(raw))
		for i, x := range raw {
			if hasFill && x == fill {
				data[i] = math.NaN()
				continue
			}
			data[i] = float64(x)
		}
		return data, nil
	case nc.INT64:
		return widen(nc.GetInt64s(v))
	case nc.UINT64:
		return widen(nc.GetUint64s(v))
	case nc.INT:
		return widen(nc.GetInt32s(v))
	case nc.UINT:
		return widen(nc.GetUint32s(v))
	case nc.SHORT:
		return widen(nc.GetInt16s(v))
	case nc.USHORT:
		return widen(nc.GetUint16s(v))
	case nc.BYTE:
		return widen(nc.GetInt8s(v))
	case nc.UBYTE:
		return widen(nc.GetUint8s(v))
	default:
		return nil, fmt.Errorf("unsupported variable type %v", t)
	}
}

type integer interface {
	~int8 | ~int16 | ~int32 | ~int64 | ~uint8 | ~uint16 | ~uint32 | ~uint64
}

func widen[T integer](raw []T, err error) ([]float64, error) {
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(raw))
	for i, x := range raw {
		out[i] = float64(x)
	}
	return out, nil
}

func fillValue64(v nc.Var) (float64, bool) {
	a := v.Attr("_FillValue")
	if n, err := a.Len(); err != nil || n != 1 {
		return 0, false
	}
	buf := make([]float64, 1)
	if err := a.ReadFloat64s(buf); err != nil {
		return 0, false
	}
	return buf[0], true
}

func fillValue32(v nc.Var) (float32, bool) {
	a := v.Attr("_FillValue")
	if n, err := a.Len(); err != nil || n != 1 {
		return 0, false
	}
	buf := make([]float32, 1)
	if err := a.ReadFloat32s(buf); err != nil {
		return 0, false
	}
	return buf[0], true
}
