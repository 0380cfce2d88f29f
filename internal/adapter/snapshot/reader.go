package snapshot

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/shauryavardhanm/IITK/internal/domain"
)

// Snapshot is a decoded pair of snapshot files. Numbers decode as float64,
// nulls as nil.
type Snapshot struct {
	Inputs  map[string][]any
	Targets []any
}

// Read loads the input and target snapshot files.
func Read(inputPath, outputPath string) (Snapshot, error) {
	var s Snapshot
	if err := readJSON(inputPath, &s.Inputs); err != nil {
		return Snapshot{}, err
	}

	var out map[string][]any
	if err := readJSON(outputPath, &out); err != nil {
		return Snapshot{}, err
	}
	targets, ok := out[domain.TargetColumn]
	if !ok {
		return Snapshot{}, fmt.Errorf("%s: missing %q", outputPath, domain.TargetColumn)
	}
	s.Targets = targets
	return s, nil
}

// Rows returns the target count, which every input column must match.
func (s Snapshot) Rows() int { return len(s.Targets) }

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read snapshot: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse snapshot %s: %w", path, err)
	}
	return nil
}
