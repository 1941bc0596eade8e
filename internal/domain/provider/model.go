package provider

import (
	"bytes"
	"encoding/json"
	"math"
	"strings"
	"unicode"
)

// Text is a dataset field kept in its original textual form. The upstream
// blob mixes strings, bare numbers and nulls for the same column, so numbers
// keep their literal digits and null/absent values decode to "".
type Text string

func (t *Text) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*t = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*t = Text(s)
		return nil
	}
	*t = Text(b)
	return nil
}

func (t Text) String() string { return string(t) }

// RawProviderRecord is one entry of the upstream provider dataset.
type RawProviderRecord struct {
	NPINumber              Text `json:"npi_number"`
	ProviderName           Text `json:"provider_name"`
	PrimaryHCPSegment      Text `json:"primary_hcp_segment"`
	AffiliatedHCO          Text `json:"affiliated_hco"`
	City                   Text `json:"city"`
	County                 Text `json:"county"`
	State                  Text `json:"state"`
	ZipCode                Text `json:"zip_code"`
	TotalWhippleProcedures Text `json:"total_whipple_procedures"`
	TotalPancreaticCancer  Text `json:"total_pancreatic_cancer"`
	URL                    Text `json:"url"`
}

// Doctor is a provider record reshaped into the directory's display schema.
// County is nil when the source county was empty. The two totals keep the
// source text; use WhippleCount and CancerCount for ranking.
type Doctor struct {
	NPINumber              string  `json:"npi_number"`
	Name                   string  `json:"name"`
	Specialty              string  `json:"specialty"`
	Address                string  `json:"address"`
	County                 *string `json:"county,omitempty"`
	TotalWhippleProcedures string  `json:"total_whipple_procedures,omitempty"`
	TotalPancreaticCancer  string  `json:"total_pancreatic_cancer,omitempty"`
	URL                    string  `json:"url,omitempty"`
}

// WhippleCount is the parsed Whipple procedure total, 0 when unparseable.
func (d *Doctor) WhippleCount() int { return ParseCount(d.TotalWhippleProcedures) }

// CancerCount is the parsed pancreatic cancer total, 0 when unparseable.
func (d *Doctor) CancerCount() int { return ParseCount(d.TotalPancreaticCancer) }

// CountyName returns the title-cased county or "".
func (d *Doctor) CountyName() string {
	if d.County == nil {
		return ""
	}
	return *d.County
}

// Specialties splits the comma-joined specialty string into lowercased,
// trimmed tokens.
func (d *Doctor) Specialties() []string {
	parts := strings.Split(strings.ToLower(d.Specialty), ",")
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	return parts
}

// ParseCount reads a leading base-10 integer the way browsers' parseInt
// does: leading whitespace and an optional sign are accepted, parsing stops
// at the first non-digit, and input without digits yields 0.
func ParseCount(s string) int {
	s = strings.TrimLeftFunc(s, unicode.IsSpace)
	neg := false
	if s != "" && (s[0] == '+' || s[0] == '-') {
		neg = s[0] == '-'
		s = s[1:]
	}

	n := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < '0' || c > '9' {
			break
		}
		d := int(c - '0')
		if n > (math.MaxInt-d)/10 {
			n = math.MaxInt
			break
		}
		n = n*10 + d
	}
	if neg {
		return -n
	}
	return n
}
