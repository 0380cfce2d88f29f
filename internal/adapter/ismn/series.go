package ismn

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shauryavardhanm/IITK/internal/domain"
)

// FileSeriesLoader reads station series from ISMN .stm files.
// It implements domain.SeriesLoader.
type FileSeriesLoader struct {
	logger *slog.Logger
}

// NewFileSeriesLoader creates a loader that reads .stm files from disk.
func NewFileSeriesLoader(logger *slog.Logger) *FileSeriesLoader {
	return &FileSeriesLoader{logger: logger}
}

// LoadSeries reads st.FilePath. Lines that do not parse are skipped and
// counted in a single warning.
func (l *FileSeriesLoader) LoadSeries(_ context.Context, st domain.Station) (domain.Series, error) {
	f, err := os.Open(st.FilePath)
	if err != nil {
		return nil, fmt.Errorf("open station series: %w", err)
	}
	defer f.Close()

	series, skipped, err := ParseSeries(f)
	if err != nil {
		return nil, fmt.Errorf("read station series %s: %w", st.FilePath, err)
	}
	if skipped > 0 {
		l.logger.Warn("skipped malformed station series lines",
			"station", st.Key,
			"path", st.FilePath,
			"skipped", skipped,
		)
	}
	return series, nil
}

// ParseSeries reads an .stm stream: a header line, then
// "YYYY/MM/DD HH:MM value ..." per sample. It returns the entries in file
// order and the number of data lines that could not be parsed. Non-finite
// values count as unparsable.
func ParseSeries(r io.Reader) (domain.Series, int, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var (
		series  domain.Series
		skipped int
		header  = true
	)
	for sc.Scan() {
		if header {
			header = false
			continue
		}
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		e, ok := parseSeriesLine(line)
		if !ok {
			skipped++
			continue
		}
		series = append(series, e)
	}
	if err := sc.Err(); err != nil {
		return nil, skipped, err
	}
	return series, skipped, nil
}

func parseSeriesLine(line string) (domain.SeriesEntry, bool) {
	fields := strings.Fields(line)
	if len(fields) < 3 {
		return domain.SeriesEntry{}, false
	}
	date, err := time.ParseInLocation("2006/01/02", fields[0], time.UTC)
	if err != nil {
		return domain.SeriesEntry{}, false
	}
	secs, ok := parseClock(fields[1])
	if !ok {
		return domain.SeriesEntry{}, false
	}
	value, err := strconv.ParseFloat(fields[2], 64)
	if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
		return domain.SeriesEntry{}, false
	}
	return domain.SeriesEntry{Date: date, SecondsOfDay: secs, Value: value}, true
}

// parseClock converts "HH:MM" (or "HH") into seconds since midnight.
func parseClock(s string) (int, bool) {
	hh, mm, hasMinutes := strings.Cut(s, ":")
	hour, err := strconv.Atoi(hh)
	if err != nil || hour < 0 || hour > 23 {
		return 0, false
	}
	minute := 0
	if hasMinutes {
		minute, err = strconv.Atoi(mm)
		if err != nil || minute < 0 || minute > 59 {
			return 0, false
		}
	}
	return hour*3600 + minute*60, true
}
