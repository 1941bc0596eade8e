package provider

import (
	"fmt"
	"sort"
	"strings"

	"github.com/oncofinder/oncofinder/internal/geo"
)

// Catalog is the normalized dataset: doctors bucketed by full state name.
// Bucket order follows the global ranking by pancreatic cancer count; keys
// keep the order in which they first appeared in that ranking. A Catalog is
// never modified after Normalize returns.
type Catalog struct {
	table   *geo.Table
	buckets map[string][]Doctor
	keys    []string
	size    int
}

// Normalize ranks records by descending pancreatic cancer count (stable) and
// buckets them by resolved state. No record is dropped.
func Normalize(records []RawProviderRecord, table *geo.Table) *Catalog {
	ranked := make([]RawProviderRecord, len(records))
	copy(ranked, records)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ParseCount(string(ranked[i].TotalPancreaticCancer)) > ParseCount(string(ranked[j].TotalPancreaticCancer))
	})

	cat := &Catalog{
		table:   table,
		buckets: make(map[string][]Doctor),
	}
	for _, r := range ranked {
		key, d := NormalizeRecord(r, table)
		if _, ok := cat.buckets[key]; !ok {
			cat.keys = append(cat.keys, key)
		}
		cat.buckets[key] = append(cat.buckets[key], d)
		cat.size++
	}
	return cat
}

// NormalizeRecord derives the bucket key and display record for one raw
// record.
func NormalizeRecord(r RawProviderRecord, table *geo.Table) (string, Doctor) {
	stateUpper := strings.ToUpper(string(r.State))

	d := Doctor{
		NPINumber: string(r.NPINumber),
		Name:      string(r.ProviderName),
		Specialty: string(r.PrimaryHCPSegment),
		Address: fmt.Sprintf("%s, %s, %s, %s, %s",
			r.AffiliatedHCO, r.City, r.County, stateUpper, r.ZipCode),
		TotalWhippleProcedures: string(r.TotalWhippleProcedures),
		TotalPancreaticCancer:  string(r.TotalPancreaticCancer),
		URL:                    string(r.URL),
	}
	if r.County != "" {
		county := geo.TitleWords(string(r.County))
		d.County = &county
	}
	return table.StateKey(string(r.State)), d
}

// Len is the total number of doctors.
func (c *Catalog) Len() int { return c.size }

// Keys returns bucket keys in first-appearance order.
func (c *Catalog) Keys() []string {
	out := make([]string, len(c.keys))
	copy(out, c.keys)
	return out
}

// Bucket returns a copy of one state's doctors.
func (c *Catalog) Bucket(state string) ([]Doctor, bool) {
	b, ok := c.buckets[state]
	if !ok {
		return nil, false
	}
	out := make([]Doctor, len(b))
	copy(out, b)
	return out, true
}

// All flattens every bucket in key order.
func (c *Catalog) All() []Doctor {
	out := make([]Doctor, 0, c.size)
	for _, k := range c.keys {
		out = append(out, c.buckets[k]...)
	}
	return out
}

// States lists the bucket keys that are known state names, sorted. Keys that
// are blank or that did not expand from the abbreviation table are left out.
func (c *Catalog) States() []string {
	states := make([]string, 0, len(c.keys))
	for _, k := range c.keys {
		if strings.TrimSpace(k) == "" {
			continue
		}
		if c.table != nil {
			if _, ok := c.table.Abbreviation(k); !ok {
				continue
			}
		}
		states = append(states, k)
	}
	sort.Strings(states)
	return states
}

// Counties lists the distinct non-empty counties of a state, sorted.
func (c *Catalog) Counties(state string) []string {
	counties := []string{}
	if state == "" {
		return counties
	}
	seen := make(map[string]bool)
	for _, d := range c.buckets[state] {
		name := d.CountyName()
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		counties = append(counties, name)
	}
	sort.Strings(counties)
	return counties
}

// Lookup finds a doctor by NPI number.
func (c *Catalog) Lookup(npi string) (Doctor, bool) {
	for _, k := range c.keys {
		for _, d := range c.buckets[k] {
			if d.NPINumber == npi {
				return d, true
			}
		}
	}
	return Doctor{}, false
}
