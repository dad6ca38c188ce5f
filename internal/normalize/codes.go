package normalize

import (
	"github.com/codepoint-impute/internal/codepoint"
)

// CodeFields are the columns rewritten from area names to official codes
var CodeFields = []codepoint.Field{
	codepoint.FieldAdminDistrictCode,
	codepoint.FieldAdminWardCode,
	codepoint.FieldCountryCode,
}

// CodeResolver resolves an area name to its official code
type CodeResolver interface {
	Code(name string) (string, bool)
}

// Codes replaces any field value that is a known area name with its code.
// Unknown values, including values that are already codes, pass through.
func Codes(in codepoint.Table, resolver CodeResolver) (codepoint.Table, []codepoint.Change) {
	out := in.Clone()
	var changes []codepoint.Change

	for _, field := range CodeFields {
		for i := range out {
			old := out[i].Get(field)
			if old == nil {
				continue
			}
			code, ok := resolver.Code(*old)
			if !ok || code == *old {
				continue
			}
			out[i].Set(field, codepoint.String(code))
			changes = append(changes, codepoint.Change{
				Row:      i,
				Postcode: out[i].Postcode,
				Field:    field,
				Old:      old,
				New:      out[i].Get(field),
			})
		}
	}

	return out, changes
}
