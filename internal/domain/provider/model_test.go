package provider

import (
	"encoding/json"
	"math"
	"testing"
)

func TestParseCount(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"", 0},
		{"0", 0},
		{"42", 42},
		{"  17", 17},
		{"+8", 8},
		{"-3", -3},
		{"12abc", 12},
		{"3.9", 3},
		{"abc", 0},
		{"N/A", 0},
		{"-", 0},
		{"99999999999999999999999", math.MaxInt},
	}
	for _, tt := range tests {
		if got := ParseCount(tt.in); got != tt.want {
			t.Errorf("ParseCount(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestText_UnmarshalJSON(t *testing.T) {
	input := `{
		"npi_number": 1234567890,
		"provider_name": "Jane Doe",
		"county": null,
		"zip_code": "02115",
		"total_whipple_procedures": 12,
		"total_pancreatic_cancer": "7"
	}`

	var r RawProviderRecord
	if err := json.Unmarshal([]byte(input), &r); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.NPINumber != "1234567890" {
		t.Errorf("expected numeric npi to keep its digits, got %q", r.NPINumber)
	}
	if r.ProviderName != "Jane Doe" {
		t.Errorf("expected provider name, got %q", r.ProviderName)
	}
	if r.County != "" {
		t.Errorf("expected null county to decode as empty, got %q", r.County)
	}
	if r.State != "" {
		t.Errorf("expected absent state to decode as empty, got %q", r.State)
	}
	if r.ZipCode != "02115" {
		t.Errorf("expected zip with leading zero, got %q", r.ZipCode)
	}
	if r.TotalWhippleProcedures != "12" || r.TotalPancreaticCancer != "7" {
		t.Errorf("unexpected totals %q / %q", r.TotalWhippleProcedures, r.TotalPancreaticCancer)
	}
}

func TestText_UnmarshalJSON_InvalidString(t *testing.T) {
	var tx Text
	if err := tx.UnmarshalJSON([]byte(`"unterminated`)); err == nil {
		t.Fatal("expected error for malformed string")
	}
}

func TestDoctor_Specialties(t *testing.T) {
	d := Doctor{Specialty: "Surgery, Surgical Oncology ,HEMATOLOGY"}
	got := d.Specialties()
	want := []string{"surgery", "surgical oncology", "hematology"}
	if len(got) != len(want) {
		t.Fatalf("expected %d tokens, got %d (%v)", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("token %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}

func TestDoctor_Counts(t *testing.T) {
	d := Doctor{TotalWhippleProcedures: "5", TotalPancreaticCancer: "n/a"}
	if d.WhippleCount() != 5 {
		t.Errorf("expected whipple 5, got %d", d.WhippleCount())
	}
	if d.CancerCount() != 0 {
		t.Errorf("expected cancer 0, got %d", d.CancerCount())
	}
	if d.CountyName() != "" {
		t.Errorf("expected empty county name, got %q", d.CountyName())
	}
}

func TestDoctor_JSONOmitsEmptyCounty(t *testing.T) {
	b, err := json.Marshal(Doctor{NPINumber: "1", Name: "A"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var m map[string]interface{}
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := m["county"]; ok {
		t.Error("expected county to be omitted")
	}
	if _, ok := m["url"]; ok {
		t.Error("expected url to be omitted")
	}
}
