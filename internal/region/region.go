// Package region resolves the city served by an OLT from its label.
package region

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultCity is returned when no OLT fragment matches.
const DefaultCity = "Outra"

type entry struct {
	fragment string
	city     string
}

// Map matches OLT labels against known label fragments. Longer fragments
// are tried first so the most specific entry wins.
type Map struct {
	entries  []entry
	fallback string
}

// Override is the YAML layout of a region map file.
//
//	default: Outra
//	replace: false
//	olts:
//	  OLT-LDB-HUAWEI-DC: Londrina
type Override struct {
	Default string            `yaml:"default"`
	Replace bool              `yaml:"replace"`
	OLTs    map[string]string `yaml:"olts"`
}

// Builtin returns the map of known OLTs.
func Builtin() *Map {
	return newMap(builtinOLTs, DefaultCity)
}

// Load returns the built-in map merged with the override file at path.
// An empty path returns the built-in map.
func Load(path string) (*Map, error) {
	if path == "" {
		return Builtin(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read region map: %w", err)
	}
	return Parse(data)
}

// Parse merges a YAML override document over the built-in map.
func Parse(data []byte) (*Map, error) {
	var o Override
	if err := yaml.Unmarshal(data, &o); err != nil {
		return nil, fmt.Errorf("parse region map: %w", err)
	}

	merged := make(map[string]string, len(builtinOLTs)+len(o.OLTs))
	if !o.Replace {
		for k, v := range builtinOLTs {
			merged[k] = v
		}
	}
	for k, v := range o.OLTs {
		k = strings.TrimSpace(k)
		if k == "" || strings.TrimSpace(v) == "" {
			return nil, fmt.Errorf("parse region map: empty OLT or city in entry %q", k)
		}
		merged[k] = strings.TrimSpace(v)
	}

	fallback := strings.TrimSpace(o.Default)
	if fallback == "" {
		fallback = DefaultCity
	}
	return newMap(merged, fallback), nil
}

func newMap(olts map[string]string, fallback string) *Map {
	entries := make([]entry, 0, len(olts))
	for k, v := range olts {
		entries = append(entries, entry{fragment: k, city: v})
	}
	sort.Slice(entries, func(i, j int) bool {
		if len(entries[i].fragment) != len(entries[j].fragment) {
			return len(entries[i].fragment) > len(entries[j].fragment)
		}
		return entries[i].fragment < entries[j].fragment
	})
	return &Map{entries: entries, fallback: fallback}
}

// City returns the city for an OLT label. Any known fragment contained in
// the label matches.
func (m *Map) City(olt string) string {
	if olt == "" {
		return m.fallback
	}
	for _, e := range m.entries {
		if strings.Contains(olt, e.fragment) {
			return e.city
		}
	}
	return m.fallback
}

// Len returns the number of known OLT fragments.
func (m *Map) Len() int {
	return len(m.entries)
}
