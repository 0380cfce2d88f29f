// Command validate checks a pair of dataset snapshots for internal
// consistency: column lengths, row alignment with targets, value ranges,
// and date ordering.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -input input_sm_data.json \
//	  -output output_sm_data.json \
//	  -max-distance 5
package main

import (
	"flag"
	"fmt"
	"math"
	"os"
	"sort"
	"time"

	"github.com/shauryavardhanm/IITK/internal/adapter/snapshot"
	"github.com/shauryavardhanm/IITK/internal/domain"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

// maxReported caps the errors printed per phase.
const maxReported = 20

func main() {
	input := flag.String("input", "input_sm_data.json", "path to the input snapshot")
	output := flag.String("output", "output_sm_data.json", "path to the target snapshot")
	maxDistance := flag.Float64("max-distance", 5, "distance threshold the snapshot was built with, in km")
	flag.Parse()

	os.Exit(run(*input, *output, *maxDistance))
}

func run(inputPath, outputPath string, maxDistance float64) int {
	fmt.Println("=== Soil Moisture Snapshot Validation ===")
	fmt.Println()

	snap, err := snapshot.Read(inputPath, outputPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		return 1
	}

	phases := []*phase{
		validateShape(snap),
		validateValues(snap, maxDistance),
		validateOrdering(snap),
	}

	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	printSummary(snap)

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			if i == maxReported {
				fmt.Printf("  ... %d more\n", len(p.errors)-maxReported)
				break
			}
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

// ── Phases ──

var requiredColumns = []string{
	domain.VarSpecularLat, domain.VarSpecularLon, domain.VarTimestamp,
	domain.ColumnChannel, domain.ColumnDate, domain.ColumnDistance, domain.ColumnStation,
}

func validateShape(s snapshot.Snapshot) *phase {
	p := &phase{name: "Phase 1: Column shape"}
	for _, name := range requiredColumns {
		if _, ok := s.Inputs[name]; !ok {
			p.errorf("missing column %q", name)
		}
	}
	for _, name := range sortedColumns(s) {
		if n := len(s.Inputs[name]); n != s.Rows() {
			p.errorf("column %q has %d values, targets have %d", name, n, s.Rows())
		}
	}
	return p
}

func validateValues(s snapshot.Snapshot, maxDistance float64) *phase {
	p := &phase{name: "Phase 2: Value ranges"}

	for i, v := range s.Targets {
		if _, ok := v.(float64); !ok {
			p.errorf("row %d: soil_moisture is %v, want a finite number", i, v)
		}
	}
	for i, v := range s.Inputs[domain.ColumnChannel] {
		ch, ok := v.(float64)
		if !ok || ch != math.Trunc(ch) || ch < 1 || ch > domain.Channels {
			p.errorf("row %d: ddm_channel %v out of range", i, v)
		}
	}
	for i, v := range s.Inputs[domain.ColumnDistance] {
		d, ok := v.(float64)
		if !ok || d < 0 || d >= maxDistance {
			p.errorf("row %d: dist_to_station %v not in [0, %g)", i, v, maxDistance)
		}
	}
	for i, v := range s.Inputs[domain.ColumnDate] {
		str, _ := v.(string)
		if _, err := time.Parse(time.DateOnly, str); err != nil {
			p.errorf("row %d: date %v is not YYYY-MM-DD", i, v)
		}
	}
	for i, v := range s.Inputs[domain.VarBRCS] {
		w, ok := v.(float64)
		if ok && w < 0 && w != domain.WidthUndefined {
			p.errorf("row %d: brcs width %g is negative but not the undefined marker", i, w)
		}
	}
	return p
}

func validateOrdering(s snapshot.Snapshot) *phase {
	p := &phase{name: "Phase 3: Date ordering"}
	prev := ""
	for i, v := range s.Inputs[domain.ColumnDate] {
		str, _ := v.(string)
		if str < prev {
			p.errorf("row %d: date %s follows %s", i, str, prev)
		}
		prev = str
	}
	return p
}

// ── Summary ──

func printSummary(s snapshot.Snapshot) {
	stations := map[any]int{}
	for _, v := range s.Inputs[domain.ColumnStation] {
		stations[v]++
	}
	undefined := 0
	for _, v := range s.Inputs[domain.VarBRCS] {
		if w, ok := v.(float64); ok && w == domain.WidthUndefined {
			undefined++
		}
	}
	dates := s.Inputs[domain.ColumnDate]

	fmt.Printf("Rows: %d, columns: %d, stations: %d\n", s.Rows(), len(s.Inputs), len(stations))
	if len(dates) > 0 {
		fmt.Printf("Dates: %v .. %v\n", dates[0], dates[len(dates)-1])
	}
	if _, ok := s.Inputs[domain.VarBRCS]; ok {
		fmt.Printf("Undefined waveform widths: %d\n", undefined)
	}
}

func sortedColumns(s snapshot.Snapshot) []string {
	names := make([]string, 0, len(s.Inputs))
	for name := range s.Inputs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
