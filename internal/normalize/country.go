package normalize

import (
	"strings"

	"github.com/codepoint-impute/internal/codepoint"
)

// countryPrefixes maps the leading letter of a GSS country code to the
// country name. Checked in this order.
var countryPrefixes = []struct {
	Prefix string
	Name   string
}{
	{"S", "Scotland"},
	{"E", "England"},
	{"W", "Wales"},
}

// CountryName returns the full country name for a code beginning with S, E or W.
// Matching is case-sensitive.
func CountryName(code string) (string, bool) {
	for _, cp := range countryPrefixes {
		if strings.HasPrefix(code, cp.Prefix) {
			return cp.Name, true
		}
	}
	return "", false
}

// Countries replaces country codes with full country names. Missing values
// and codes with any other prefix are left as they are.
func Countries(in codepoint.Table) (codepoint.Table, []codepoint.Change) {
	out := in.Clone()
	var changes []codepoint.Change

	for i := range out {
		old := out[i].CountryCode
		if old == nil {
			continue
		}
		name, ok := CountryName(*old)
		if !ok || name == *old {
			continue
		}
		out[i].CountryCode = codepoint.String(name)
		changes = append(changes, codepoint.Change{
			Row:      i,
			Postcode: out[i].Postcode,
			Field:    codepoint.FieldCountryCode,
			Old:      old,
			New:      out[i].CountryCode,
		})
	}

	return out, changes
}
