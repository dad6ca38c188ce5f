package impute

import (
	"errors"
	"fmt"

	"github.com/codepoint-impute/internal/codepoint"
	"github.com/codepoint-impute/internal/debug"
	"github.com/codepoint-impute/internal/spatial"
)

// ErrNoKnownPoints is returned when records need imputing but no record has a district code
var ErrNoKnownPoints = errors.New("no postcode points with a known district code")

// WardPolicy controls how ward codes are merged back onto imputed rows
type WardPolicy string

const (
	// WardIndependent fills the ward only where the ward itself was missing.
	// A row with a present ward keeps it even when its district is imputed.
	WardIndependent WardPolicy = "independent"
	// WardPaired copies the neighbour's ward together with its district
	WardPaired WardPolicy = "paired"
)

// ParseWardPolicy validates a policy name
func ParseWardPolicy(s string) (WardPolicy, error) {
	switch WardPolicy(s) {
	case "", WardIndependent:
		return WardIndependent, nil
	case WardPaired:
		return WardPaired, nil
	}
	return "", fmt.Errorf("unknown ward policy %q (want %s or %s)", s, WardIndependent, WardPaired)
}

// Options configures the nearest-neighbour imputer
type Options struct {
	// MaxDistance bounds the neighbour search in metres; 0 means unlimited
	MaxDistance float64
	WardPolicy  WardPolicy
	Debug       bool
}

// Match is the neighbour chosen for one missing record
type Match struct {
	Row          int
	Postcode     string
	NeighbourRow int
	Neighbour    string
	Distance     float64
}

// Report summarises an imputation run
type Report struct {
	Known      int
	Missing    int
	Imputed    int
	Unresolved int
	Matches    []Match
}

// Imputer fills missing district and ward codes from the nearest known point
type Imputer struct {
	opts Options
}

// NewImputer creates an imputer
func NewImputer(opts Options) *Imputer {
	if opts.WardPolicy == "" {
		opts.WardPolicy = WardIndependent
	}
	return &Imputer{opts: opts}
}

// Partition splits row indexes by whether the district code is present
func Partition(t codepoint.Table) (known, missing []int) {
	for i := range t {
		if t[i].AdminDistrictCode != nil {
			known = append(known, i)
		} else {
			missing = append(missing, i)
		}
	}
	return known, missing
}

// Impute returns a copy of the table with missing district codes filled from
// the nearest known point. Every missing row gets at most one neighbour, so
// the row count never changes.
func (im *Imputer) Impute(in codepoint.Table) (codepoint.Table, []codepoint.Change, *Report, error) {
	debug.DebugHeader(im.opts.Debug)
	defer debug.DebugFooter(im.opts.Debug)

	known, missing := Partition(in)
	report := &Report{Known: len(known), Missing: len(missing)}

	debug.DebugOutput(im.opts.Debug, "Partitioned %d rows: %d known, %d missing", len(in), len(known), len(missing))

	out := in.Clone()
	if len(missing) == 0 {
		return out, nil, report, nil
	}
	if len(known) == 0 {
		return nil, nil, report, ErrNoKnownPoints
	}

	done := debug.DebugTiming(im.opts.Debug, "build spatial index")
	items := make([]spatial.Item, 0, len(known))
	for _, row := range known {
		x, y, ok := in[row].XY()
		if !ok {
			continue
		}
		items = append(items, spatial.Item{X: x, Y: y, Key: in[row].Postcode, Ref: row})
	}
	index := spatial.NewIndex(items)
	done()

	if index.Len() == 0 {
		return nil, nil, report, fmt.Errorf("%w: none of %d known points has a geometry", ErrNoKnownPoints, len(known))
	}

	// One match per missing row
	matches := make(map[int]Match, len(missing))
	for n, row := range missing {
		debug.DebugProgress(im.opts.Debug, "Nearest-neighbour search", n, len(missing), 100000)

		x, y, ok := in[row].XY()
		if !ok {
			continue
		}
		nearest, dist, ok := index.Nearest(x, y)
		if !ok {
			continue
		}
		if im.opts.MaxDistance > 0 && dist > im.opts.MaxDistance {
			continue
		}
		matches[row] = Match{
			Row:          row,
			Postcode:     in[row].Postcode,
			NeighbourRow: nearest.Ref,
			Neighbour:    nearest.Key,
			Distance:     dist,
		}
	}

	var changes []codepoint.Change
	for _, row := range missing {
		m, ok := matches[row]
		if !ok {
			report.Unresolved++
			continue
		}
		report.Matches = append(report.Matches, m)

		src := in[m.NeighbourRow]
		dst := &out[row]

		// District: only rows where it was missing, which is every row here
		changes = append(changes, codepoint.Change{
			Row: row, Postcode: dst.Postcode, Field: codepoint.FieldAdminDistrictCode,
			Old: dst.AdminDistrictCode, New: src.AdminDistrictCode,
		})
		dst.AdminDistrictCode = src.AdminDistrictCode
		report.Imputed++

		// Ward: filled on its own null mask unless paired with the district
		if dst.AdminWardCode == nil || im.opts.WardPolicy == WardPaired {
			if !codepoint.Equal(dst.AdminWardCode, src.AdminWardCode) {
				changes = append(changes, codepoint.Change{
					Row: row, Postcode: dst.Postcode, Field: codepoint.FieldAdminWardCode,
					Old: dst.AdminWardCode, New: src.AdminWardCode,
				})
			}
			dst.AdminWardCode = src.AdminWardCode
		}
	}

	debug.DebugOutput(im.opts.Debug, "Imputed %d of %d missing rows (%d unresolved)",
		report.Imputed, report.Missing, report.Unresolved)

	return out, changes, report, nil
}
