// Package geo holds the fixed U.S. region tables used to key the directory:
// FIPS codes as drawn by the map topology, display names and the two-letter
// postal abbreviations found in the provider dataset.
//
// A Table is immutable once built; callers receive it by injection rather
// than reaching for package-level maps.
package geo

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

//go:embed states.yaml
var statesYAML []byte

// Region is one entry of the FIPS table.
type Region struct {
	FIPS         string `yaml:"fips" json:"fips"`
	Name         string `yaml:"name" json:"name"`
	Abbreviation string `yaml:"abbreviation,omitempty" json:"abbreviation,omitempty"`
}

// Table provides lookups across FIPS codes, names and abbreviations.
type Table struct {
	regions   []Region
	byFIPS    map[string]Region
	nameToAbb map[string]string
	abbToName map[string]string
}

type regionFile struct {
	Regions []Region `yaml:"regions"`
}

var (
	defaultOnce  sync.Once
	defaultTable *Table
	defaultErr   error
)

// Default returns the table compiled into the binary.
func Default() (*Table, error) {
	defaultOnce.Do(func() {
		defaultTable, defaultErr = Parse(statesYAML)
	})
	return defaultTable, defaultErr
}

// MustDefault is Default for program start-up paths.
func MustDefault() *Table {
	t, err := Default()
	if err != nil {
		panic(err)
	}
	return t
}

// Parse builds a Table from a YAML document with a top-level "regions" list.
func Parse(data []byte) (*Table, error) {
	var f regionFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse region table: %w", err)
	}
	return NewTable(f.Regions)
}

// NewTable validates regions and indexes them. FIPS codes and abbreviations
// must be unique.
func NewTable(regions []Region) (*Table, error) {
	t := &Table{
		regions:   make([]Region, 0, len(regions)),
		byFIPS:    make(map[string]Region, len(regions)),
		nameToAbb: make(map[string]string),
		abbToName: make(map[string]string),
	}
	for _, r := range regions {
		if r.FIPS == "" || r.Name == "" {
			return nil, fmt.Errorf("region %+v: fips and name are required", r)
		}
		if _, dup := t.byFIPS[r.FIPS]; dup {
			return nil, fmt.Errorf("duplicate fips code %q", r.FIPS)
		}
		t.byFIPS[r.FIPS] = r
		t.regions = append(t.regions, r)

		if r.Abbreviation == "" {
			continue
		}
		abb := strings.ToUpper(r.Abbreviation)
		if _, dup := t.abbToName[abb]; dup {
			return nil, fmt.Errorf("duplicate abbreviation %q", abb)
		}
		t.abbToName[abb] = r.Name
		t.nameToAbb[r.Name] = abb
	}
	sort.Slice(t.regions, func(i, j int) bool { return t.regions[i].FIPS < t.regions[j].FIPS })
	return t, nil
}

// Regions returns every region ordered by FIPS code.
func (t *Table) Regions() []Region {
	out := make([]Region, len(t.regions))
	copy(out, t.regions)
	return out
}

// NameForFIPS returns the display name for a FIPS code.
func (t *Table) NameForFIPS(fips string) (string, bool) {
	r, ok := t.byFIPS[fips]
	return r.Name, ok
}

// Abbreviation returns the postal code for a full state name. Territories
// have none.
func (t *Table) Abbreviation(name string) (string, bool) {
	abb, ok := t.nameToAbb[name]
	return abb, ok
}

// NameForAbbreviation expands a two-letter code, case-insensitively.
func (t *Table) NameForAbbreviation(abb string) (string, bool) {
	name, ok := t.abbToName[strings.ToUpper(abb)]
	return name, ok
}

// AbbreviationCount is the size of the abbreviation table.
func (t *Table) AbbreviationCount() int {
	return len(t.abbToName)
}

// StateKey resolves a raw dataset state value into the bucket key: the value
// is uppercased, expanded when it is a known postal code, and title-cased.
// Unknown values pass through unexpanded.
func (t *Table) StateKey(raw string) string {
	upper := strings.ToUpper(raw)
	full, ok := t.abbToName[upper]
	if !ok {
		full = upper
	}
	return TitleWords(full)
}

// TitleWords capitalises the first character of every space-separated token
// and lowercases the rest. Runs of spaces are kept as empty tokens.
func TitleWords(s string) string {
	words := strings.Split(s, " ")
	for i, w := range words {
		if w == "" {
			continue
		}
		r, size := utf8.DecodeRuneInString(w)
		words[i] = string(unicode.ToUpper(r)) + strings.ToLower(w[size:])
	}
	return strings.Join(words, " ")
}
