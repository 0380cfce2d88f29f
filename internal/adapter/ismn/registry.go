package ismn

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/shauryavardhanm/IITK/internal/domain"
)

// registryEntry is one station in ISMN_stations.json. The registry builder
// stores numbers as the strings it split from .stm headers, so numeric
// fields accept both forms. The inline Date/Time/sm arrays are not used;
// the series is re-read from file_path when needed.
type registryEntry struct {
	CSE       string    `json:"CSE"`
	Network   string    `json:"Network"`
	Station   string    `json:"Station"`
	Latitude  flexFloat `json:"Latitude"`
	Longitude flexFloat `json:"Longitude"`
	Elevation flexFloat `json:"Elevation"`
	DepthFrom flexFloat `json:"Depth from"`
	DepthTo   flexFloat `json:"Depth to"`
	FilePath  string    `json:"file_path"`
}

// flexFloat decodes a JSON number or a numeric string.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		b = []byte(strings.TrimSpace(s))
	}
	v, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return fmt.Errorf("not a number: %q", b)
	}
	*f = flexFloat(v)
	return nil
}

// LoadRegistry reads the station registry and returns its stations ordered
// by their integer keys.
func LoadRegistry(path string) ([]domain.Station, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read station registry: %w", err)
	}
	return ParseRegistry(data)
}

// ParseRegistry decodes registry JSON. Keys must be integers.
func ParseRegistry(data []byte) ([]domain.Station, error) {
	var raw map[string]registryEntry
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse station registry: %w", err)
	}

	type keyed struct {
		n   int
		key string
	}
	keys := make([]keyed, 0, len(raw))
	for k := range raw {
		n, err := strconv.Atoi(k)
		if err != nil {
			return nil, fmt.Errorf("station registry key %q is not an integer", k)
		}
		keys = append(keys, keyed{n: n, key: k})
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].n < keys[j].n })

	stations := make([]domain.Station, 0, len(keys))
	for _, k := range keys {
		e := raw[k.key]
		if e.FilePath == "" {
			return nil, fmt.Errorf("station %s (%s/%s): missing file_path", k.key, e.Network, e.Station)
		}
		stations = append(stations, domain.Station{
			Key:       k.key,
			CSE:       e.CSE,
			Network:   e.Network,
			Name:      e.Station,
			Latitude:  float64(e.Latitude),
			Longitude: float64(e.Longitude),
			Elevation: float64(e.Elevation),
			DepthFrom: float64(e.DepthFrom),
			DepthTo:   float64(e.DepthTo),
			FilePath:  e.FilePath,
		})
	}
	return stations, nil
}
