package provider

import (
	"sort"
	"strings"

	"github.com/oncofinder/oncofinder/pkg/pagination"
)

// Specialty filter options.
const (
	SpecialtySurgical  = "Surgical Oncology"
	SpecialtyRadiation = "Radiation Oncology"
	SpecialtyMedical   = "Medical Oncology"
)

// HighVolumeLimit caps the records taken from a high-volume state's bucket.
const HighVolumeLimit = 2000

var highVolumeStates = map[string]bool{
	"New York":     true,
	"Pennsylvania": true,
	"Florida":      true,
	"Texas":        true,
}

// specialtySynonyms maps a lowercased filter option to the dataset
// specialty tokens it accepts.
var specialtySynonyms = map[string][]string{
	"surgical oncology":  {"surgery", "surgical", "surgical critical care", "surgical oncology"},
	"radiation oncology": {"radiation oncology"},
	"medical oncology":   {"oncology", "medical oncology", "hematology", "hematology & oncology"},
}

// Specialties returns the filter options in display order.
func Specialties() []string {
	return []string{SpecialtySurgical, SpecialtyRadiation, SpecialtyMedical}
}

// IsKnownSpecialty reports whether s is "" or one of the filter options,
// ignoring case.
func IsKnownSpecialty(s string) bool {
	if s == "" {
		return true
	}
	_, ok := specialtySynonyms[strings.ToLower(s)]
	return ok
}

// Result is one rendered page of the finder.
type Result struct {
	Doctors    []Doctor
	Total      int
	Page       int
	TotalPages int
	Window     pagination.Window
}

// Find runs the finder pipeline: scope by state, filter, refine and re-rank
// for surgical oncology, then cut the requested page. The catalog is not
// modified.
func Find(cat *Catalog, sel Selection) Result {
	filtered := filterDoctors(scope(cat, sel.State), sel)

	if isSurgical(sel.Specialty) {
		filtered = refineByWhipple(filtered)
	}

	page := pagination.Normalize(sel.Page)
	total := len(filtered)
	start, end := pagination.Bounds(page, total)
	doctors := make([]Doctor, end-start)
	copy(doctors, filtered[start:end])

	totalPages := pagination.TotalPages(total)
	return Result{
		Doctors:    doctors,
		Total:      total,
		Page:       page,
		TotalPages: totalPages,
		Window:     pagination.NewWindow(page, totalPages),
	}
}

func scope(cat *Catalog, state string) []Doctor {
	if state == "" {
		return cat.All()
	}
	bucket, ok := cat.Bucket(state)
	if !ok {
		return nil
	}
	if highVolumeStates[state] && len(bucket) > HighVolumeLimit {
		return bucket[:HighVolumeLimit]
	}
	return bucket
}

func filterDoctors(in []Doctor, sel Selection) []Doctor {
	query := strings.ToLower(sel.Query)
	synonyms := specialtySynonyms[strings.ToLower(sel.Specialty)]

	out := make([]Doctor, 0, len(in))
	for i := range in {
		d := &in[i]
		if sel.County != "" && !strings.EqualFold(d.CountyName(), sel.County) {
			continue
		}
		if sel.Specialty != "" && !hasAnySpecialty(d, synonyms) {
			continue
		}
		if sel.Query != "" && !strings.Contains(strings.ToLower(d.Name), query) {
			continue
		}
		out = append(out, *d)
	}
	return out
}

func hasAnySpecialty(d *Doctor, accepted []string) bool {
	for _, token := range d.Specialties() {
		for _, a := range accepted {
			if token == a {
				return true
			}
		}
	}
	return false
}

func isSurgical(specialty string) bool {
	return strings.EqualFold(specialty, SpecialtySurgical)
}

// refineByWhipple keeps only doctors with at least one Whipple procedure,
// ranked by that count, unless none qualify; then the input is returned in
// its original order.
func refineByWhipple(in []Doctor) []Doctor {
	refined := make([]Doctor, 0, len(in))
	for i := range in {
		if in[i].WhippleCount() >= 1 {
			refined = append(refined, in[i])
		}
	}
	if len(refined) == 0 {
		return in
	}
	sort.SliceStable(refined, func(i, j int) bool {
		return refined[i].WhippleCount() > refined[j].WhippleCount()
	})
	return refined
}
